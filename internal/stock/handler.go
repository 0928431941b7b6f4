package stock

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/optica-erp/optica-erp/internal/platform/httpx"
)

// Handler exposes the stock endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// MountRoutes attaches stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/availability", h.checkAvailability)
	r.Put("/products/{id}", h.setStock)
	r.Get("/products/{id}/history", h.history)
}

type availabilityRequest struct {
	Items []availabilityItem `json:"items" validate:"required,min=1,dive"`
}

type availabilityItem struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=0"`
}

func (h *Handler) checkAvailability(w http.ResponseWriter, r *http.Request) {
	var req availabilityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	items := make([]OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, OrderItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	shortages, err := h.service.CheckStockAvailability(r.Context(), items)
	if err != nil {
		h.logger.Error("check stock availability", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"available": len(shortages) == 0,
		"shortages": shortages,
	})
}

type setStockRequest struct {
	Stock  int    `json:"stock" validate:"gte=0"`
	Reason string `json:"reason" validate:"required"`
}

func (h *Handler) setStock(w http.ResponseWriter, r *http.Request) {
	var req setStockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	product, err := h.service.UpdateProductStock(r.Context(), chi.URLParam(r, "id"), req.Stock, req.Reason, r.Header.Get("X-Actor-ID"))
	if err != nil {
		respondStockError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.service.History(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		respondStockError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

// respondStockError maps engine errors onto problem responses. Every engine
// error carries a message suitable for direct display.
func respondStockError(w http.ResponseWriter, err error) {
	switch err {
	case ErrProductNotFound:
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		return
	case ErrInvalidProductID, ErrInvalidQuantity, ErrNegativeStock, ErrNoStockControl:
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if _, ok := err.(*InsufficientStockError); ok {
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
		return
	}
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
