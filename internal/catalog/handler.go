package catalog

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/optica-erp/optica-erp/internal/platform/httpx"
)

// Handler exposes the product endpoints the order flow depends on.
type Handler struct {
	logger   *slog.Logger
	repo     *Repository
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, repo *Repository) *Handler {
	return &Handler{
		logger:   logger,
		repo:     repo,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// MountRoutes attaches product routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
}

type createProductRequest struct {
	Type        string   `json:"product_type" validate:"required"`
	Name        string   `json:"name" validate:"required"`
	Description *string  `json:"description,omitempty"`
	SellPrice   float64  `json:"sell_price" validate:"required,gt=0"`
	CostPrice   *float64 `json:"cost_price,omitempty"`

	Color     *string `json:"color,omitempty"`
	Shape     *string `json:"shape,omitempty"`
	Reference *string `json:"reference,omitempty"`
	FrameType *string `json:"frame_type,omitempty"`
	Stock     *int    `json:"stock,omitempty" validate:"omitempty,gte=0"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	productType := ProductType(req.Type)
	product := Product{
		ID:          uuid.New(),
		Type:        productType,
		Name:        req.Name,
		Description: req.Description,
		SellPrice:   req.SellPrice,
		CostPrice:   req.CostPrice,
	}
	// Frame-only fields are ignored on lens variants.
	if productType.HasStock() {
		product.Color = req.Color
		product.Shape = req.Shape
		product.Reference = req.Reference
		product.FrameType = req.FrameType
		product.Stock = req.Stock
	}

	if err := h.repo.Create(r.Context(), product); err != nil {
		if errors.Is(err, ErrInvalidType) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "Tipo de produto inválido")
			return
		}
		h.logger.Error("create product", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "ID de produto inválido")
		return
	}
	product, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "Produto não encontrado")
			return
		}
		h.logger.Error("find product", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}
