package relations

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/optica-erp/optica-erp/internal/platform/httpx"
)

// Handler exposes the client debt endpoints.
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

// MountRoutes attaches client debt routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}/debt", h.debt)
	r.Post("/transfer-debt", h.transferDebt)
}

func (h *Handler) debt(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "ID de cliente inválido")
		return
	}
	balance, err := h.service.RecalculateClientDebt(r.Context(), id)
	if err != nil {
		h.logger.Error("recalculate client debt", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"client_id": id, "debt": balance})
}

type transferDebtRequest struct {
	FromClientID string  `json:"from_client_id" validate:"required,uuid"`
	ToClientID   string  `json:"to_client_id" validate:"required,uuid"`
	Amount       float64 `json:"amount" validate:"required,gt=0"`
}

func (h *Handler) transferDebt(w http.ResponseWriter, r *http.Request) {
	var req transferDebtRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	fromID, _ := uuid.Parse(req.FromClientID)
	toID, _ := uuid.Parse(req.ToClientID)
	if err := h.service.TransferDebt(r.Context(), fromID, toID, req.Amount); err != nil {
		switch err {
		case ErrSourceClientNotFound, ErrTargetClientNotFound:
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		case ErrInvalidTransferAmount, ErrInsufficientDebt:
			httpx.Problem(w, http.StatusUnprocessableEntity, "Transfer Rejected", err.Error())
		default:
			h.logger.Error("transfer debt", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "transferred"})
}
