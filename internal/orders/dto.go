package orders

import (
	"time"

	"github.com/google/uuid"
)

type orderItemRequest struct {
	ProductID string  `json:"product_id" validate:"required"`
	Quantity  int     `json:"quantity" validate:"gte=0"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
}

type prescriptionRequest struct {
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

type createOrderRequest struct {
	ClientID            string  `json:"client_id" validate:"required,uuid"`
	EmployeeID          string  `json:"employee_id" validate:"required,uuid"`
	ResponsibleClientID *string `json:"responsible_client_id,omitempty" validate:"omitempty,uuid"`

	Items []orderItemRequest `json:"items" validate:"required,min=1,dive"`

	TotalPrice   float64 `json:"total_price" validate:"required,gt=0"`
	Discount     float64 `json:"discount" validate:"gte=0"`
	PaymentEntry float64 `json:"payment_entry" validate:"gte=0"`
	Installments *int    `json:"installments,omitempty" validate:"omitempty,gt=0"`

	DeliveryDate *time.Time           `json:"delivery_date,omitempty"`
	Observations *string              `json:"observations,omitempty"`
	Prescription *prescriptionRequest `json:"prescription,omitempty"`
}

func (req createOrderRequest) toDomain() *Order {
	ord := &Order{
		TotalPrice:   req.TotalPrice,
		Discount:     req.Discount,
		PaymentEntry: req.PaymentEntry,
		Installments: req.Installments,
		DeliveryDate: req.DeliveryDate,
		Observations: req.Observations,
		Status:       StatusPending,
	}
	ord.ClientID, _ = uuid.Parse(req.ClientID)
	ord.EmployeeID, _ = uuid.Parse(req.EmployeeID)
	if req.ResponsibleClientID != nil {
		if id, err := uuid.Parse(*req.ResponsibleClientID); err == nil {
			ord.ResponsibleClientID = &id
		}
	}
	for _, item := range req.Items {
		ord.Items = append(ord.Items, Item{ProductID: item.ProductID, Quantity: item.Quantity, UnitPrice: item.UnitPrice})
	}
	if req.Prescription != nil {
		ord.Prescription = req.Prescription.toDomain()
	}
	return ord
}

func (req *prescriptionRequest) toDomain() *Prescription {
	return &Prescription{
		Doctor:          req.Doctor,
		Clinic:          req.Clinic,
		AppointmentDate: req.AppointmentDate,
		LeftSphere:      req.LeftSphere,
		LeftCyl:         req.LeftCyl,
		LeftAxis:        req.LeftAxis,
		RightSphere:     req.RightSphere,
		RightCyl:        req.RightCyl,
		RightAxis:       req.RightAxis,
	}
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type updateOrderRequest struct {
	Items        *[]orderItemRequest `json:"items,omitempty" validate:"omitempty,min=1,dive"`
	TotalPrice   *float64            `json:"total_price,omitempty"`
	Discount     *float64            `json:"discount,omitempty"`
	PaymentEntry *float64            `json:"payment_entry,omitempty"`
	Installments *int                `json:"installments,omitempty"`

	DeliveryDate *time.Time           `json:"delivery_date,omitempty"`
	Observations *string              `json:"observations,omitempty"`
	Prescription *prescriptionRequest `json:"prescription,omitempty"`
}

func (req updateOrderRequest) toInput() UpdateInput {
	input := UpdateInput{
		TotalPrice:   req.TotalPrice,
		Discount:     req.Discount,
		PaymentEntry: req.PaymentEntry,
		Installments: req.Installments,
		DeliveryDate: req.DeliveryDate,
		Observations: req.Observations,
	}
	if req.Items != nil {
		items := make([]Item, 0, len(*req.Items))
		for _, item := range *req.Items {
			items = append(items, Item{ProductID: item.ProductID, Quantity: item.Quantity, UnitPrice: item.UnitPrice})
		}
		input.Items = &items
	}
	if req.Prescription != nil {
		input.Prescription = req.Prescription.toDomain()
	}
	return input
}
