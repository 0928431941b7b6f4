package orders

import (
	"time"

	"github.com/google/uuid"
)

// Status tracks an order through the shop workflow.
type Status string

const (
	StatusPending      Status = "pending"
	StatusInProduction Status = "in_production"
	StatusReady        Status = "ready"
	StatusDelivered    Status = "delivered"
	StatusCancelled    Status = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProduction, StatusReady, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// allowedTransitions is the status state machine. Delivered and cancelled are
// terminal; cancellation branches off every non-terminal state.
var allowedTransitions = map[Status][]Status{
	StatusPending:      {StatusInProduction, StatusCancelled},
	StatusInProduction: {StatusReady, StatusCancelled},
	StatusReady:        {StatusDelivered, StatusCancelled},
	StatusDelivered:    {},
	StatusCancelled:    {},
}

// AllowedNext returns the statuses reachable from s.
func (s Status) AllowedNext() []Status {
	return allowedTransitions[s]
}

// CanTransitionTo reports whether next is reachable from s.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Item is one order line referencing a catalog product. The product id is kept
// as received so malformed references can be skipped at the stock step instead
// of corrupting the whole order.
type Item struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// Prescription holds the optical prescription attached to an order.
type Prescription struct {
	Doctor          *string    `json:"doctor,omitempty"`
	Clinic          *string    `json:"clinic,omitempty"`
	AppointmentDate *time.Time `json:"appointment_date,omitempty"`

	LeftSphere  *float64 `json:"left_sphere,omitempty"`
	LeftCyl     *float64 `json:"left_cyl,omitempty"`
	LeftAxis    *float64 `json:"left_axis,omitempty"`
	RightSphere *float64 `json:"right_sphere,omitempty"`
	RightCyl    *float64 `json:"right_cyl,omitempty"`
	RightAxis   *float64 `json:"right_axis,omitempty"`
}

// Order is the central transactional record tying actors, line items and
// financials together.
type Order struct {
	ID                  uuid.UUID  `json:"id"`
	ClientID            uuid.UUID  `json:"client_id"`
	EmployeeID          uuid.UUID  `json:"employee_id"`
	ResponsibleClientID *uuid.UUID `json:"responsible_client_id,omitempty"`

	Items []Item `json:"items"`

	TotalPrice   float64 `json:"total_price"`
	Discount     float64 `json:"discount"`
	PaymentEntry float64 `json:"payment_entry"`
	Installments *int    `json:"installments,omitempty"`
	FinalPrice   float64 `json:"final_price"`

	Status       Status        `json:"status"`
	DeliveryDate *time.Time    `json:"delivery_date,omitempty"`
	Prescription *Prescription `json:"prescription,omitempty"`
	Observations *string       `json:"observations,omitempty"`

	IsDeleted bool       `json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	DeletedBy *uuid.UUID `json:"deleted_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecomputeFinalPrice keeps the derived price consistent after financial edits.
func (o *Order) RecomputeFinalPrice() {
	o.FinalPrice = o.TotalPrice - o.Discount
}

// RemainingAmount is the unpaid balance attributed to debt.
func (o *Order) RemainingAmount() float64 {
	return (o.TotalPrice - o.Discount) - o.PaymentEntry
}
