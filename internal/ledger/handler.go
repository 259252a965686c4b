package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-retail/backoffice/internal/auth"
	"github.com/meridian-retail/backoffice/internal/platform/httpx"
	"github.com/meridian-retail/backoffice/internal/shared"
)

// Handler exposes ledger endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	snapshots *SnapshotCache
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, snapshots *SnapshotCache) *Handler {
	return &Handler{logger: logger, service: service, snapshots: snapshots, validator: validator.New()}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/levels", h.getLevel)
	r.Get("/snapshot/{locationID}", h.snapshot)
	r.Get("/movements", h.movements)
	r.Get("/low-stock", h.lowStock)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(shared.RoleWarehouse))
		r.Post("/adjustments", h.adjust)
	})
}

func (h *Handler) getLevel(w http.ResponseWriter, r *http.Request) {
	productID, _ := strconv.ParseInt(r.URL.Query().Get("product_id"), 10, 64)
	locationID, _ := strconv.ParseInt(r.URL.Query().Get("location_id"), 10, 64)
	if productID == 0 || locationID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "product_id and location_id are required")
		return
	}
	level, err := h.service.GetLevel(r.Context(), productID, locationID)
	if err != nil {
		h.logger.Error("get level", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, level)
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	locationID, err := strconv.ParseInt(chi.URLParam(r, "locationID"), 10, 64)
	if err != nil || locationID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid location id")
		return
	}
	snap, err := h.snapshots.Get(r.Context(), locationID)
	if err != nil {
		h.logger.Error("ledger snapshot", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}

func (h *Handler) movements(w http.ResponseWriter, r *http.Request) {
	filter := MovementFilter{}
	filter.ProductID, _ = strconv.ParseInt(r.URL.Query().Get("product_id"), 10, 64)
	filter.LocationID, _ = strconv.ParseInt(r.URL.Query().Get("location_id"), 10, 64)
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if from := r.URL.Query().Get("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filter.From = t
		}
	}
	if to := r.URL.Query().Get("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filter.To = t
		}
	}

	movements, err := h.service.Movements(r.Context(), filter)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": movements})
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	levels, err := h.service.LowStock(r.Context())
	if err != nil {
		h.logger.Error("low stock", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"levels": levels})
}

type adjustRequest struct {
	ProductID  int64  `json:"product_id" validate:"required,gt=0"`
	LocationID int64  `json:"location_id" validate:"required,gt=0"`
	Qty        int64  `json:"qty" validate:"required"`
	Note       string `json:"note" validate:"max=500"`
	RequestKey string `json:"request_key" validate:"max=100"`
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, "Validation", "Validation Failed", err.Error())
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())

	level, err := h.service.Adjust(r.Context(), AdjustmentInput{
		ProductID:  req.ProductID,
		LocationID: req.LocationID,
		Qty:        req.Qty,
		Note:       req.Note,
		ActorID:    actor.ID,
		RequestKey: req.RequestKey,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInsufficientStock):
			httpx.ProblemCode(w, http.StatusConflict, "InsufficientStock", "Insufficient Stock", err.Error())
		case errors.Is(err, ErrInvalidQuantity):
			httpx.ProblemCode(w, http.StatusBadRequest, "Validation", "Validation Failed", err.Error())
		case errors.Is(err, shared.ErrIdempotencyConflict):
			httpx.ProblemCode(w, http.StatusConflict, "Duplicate", "Duplicate", err.Error())
		default:
			h.logger.Error("ledger adjust", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}
	if h.snapshots != nil {
		h.snapshots.Invalidate(r.Context(), req.LocationID)
	}
	httpx.JSON(w, http.StatusOK, level)
}
