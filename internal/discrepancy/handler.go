package discrepancy

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-retail/backoffice/internal/auth"
	"github.com/meridian-retail/backoffice/internal/platform/httpx"
	"github.com/meridian-retail/backoffice/internal/shared"
)

// Handler exposes discrepancy report endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers discrepancy routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/items/{itemID}", h.getByItem)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(shared.RoleWarehouse))
		r.Put("/items/{itemID}/reason", h.upsertReason)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := Filter{}
	filter.OrderID, _ = strconv.ParseInt(r.URL.Query().Get("order_id"), 10, 64)
	filter.Classification = Classification(r.URL.Query().Get("classification"))
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))

	reports, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list reports", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (h *Handler) getByItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid item id")
		return
	}
	rep, err := h.service.GetByOrderItem(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, ErrReportNotFound) {
			httpx.ProblemCode(w, http.StatusNotFound, "NotFound", "Not Found", err.Error())
			return
		}
		h.logger.Error("get report", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rep)
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

func (h *Handler) upsertReason(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid item id")
		return
	}
	var req reasonRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, "Validation", "Validation Failed", err.Error())
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())

	rep, err := h.service.UpsertReason(r.Context(), itemID, req.Reason, actor.ID)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyReason):
			httpx.ProblemCode(w, http.StatusBadRequest, "EmptyReason", "Validation Failed", err.Error())
		case errors.Is(err, ErrReportNotFound):
			httpx.ProblemCode(w, http.StatusNotFound, "NotFound", "Not Found", err.Error())
		default:
			h.logger.Error("upsert reason", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, rep)
}
