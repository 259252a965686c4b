package orders

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-retail/backoffice/internal/auth"
	"github.com/meridian-retail/backoffice/internal/ledger"
	"github.com/meridian-retail/backoffice/internal/platform/httpx"
	"github.com/meridian-retail/backoffice/internal/shared"
)

// Handler exposes the transfer order endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers order routes. Store actors create, reject, deliver
// and delete; warehouse actors confirm, ship, cancel and edit.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{orderID}", h.get)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(shared.RoleStore))
		r.Post("/", h.create)
		r.Post("/{orderID}/reject", h.reject)
		r.Post("/{orderID}/deliver", h.deliver)
		r.Delete("/{orderID}", h.remove)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(shared.RoleWarehouse))
		r.Post("/{orderID}/confirm", h.confirm)
		r.Post("/{orderID}/ship", h.ship)
		r.Post("/{orderID}/cancel", h.cancel)
		r.Patch("/{orderID}/items/{itemID}", h.updateItem)
		r.Patch("/{orderID}/expected-delivery", h.updateDate)
	})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, shared.ErrNotFound):
		httpx.ProblemCode(w, http.StatusNotFound, "NotFound", "Not Found", err.Error())
	case errors.Is(err, ErrInvalidTransition):
		httpx.ProblemCode(w, http.StatusConflict, "InvalidTransition", "Invalid Transition", err.Error())
	case errors.Is(err, ledger.ErrInsufficientStock):
		httpx.ProblemCode(w, http.StatusConflict, "InsufficientStock", "Insufficient Stock", err.Error())
	case errors.Is(err, ErrImmutableAfterShipment):
		httpx.ProblemCode(w, http.StatusConflict, "ImmutableAfterShipment", "Order Not Editable", err.Error())
	case errors.Is(err, ErrWrongLocation):
		httpx.ProblemCode(w, http.StatusForbidden, "Forbidden", "Forbidden", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.ProblemCode(w, http.StatusConflict, "Duplicate", "Duplicate Request", err.Error())
	case errors.Is(err, ErrMissingDeliveryDate):
		httpx.ProblemCode(w, http.StatusBadRequest, "MissingDeliveryDate", "Validation Failed", err.Error())
	case errors.Is(err, ErrPastDeliveryDate):
		httpx.ProblemCode(w, http.StatusBadRequest, "PastDeliveryDate", "Validation Failed", err.Error())
	case errors.Is(err, ErrEmptyReason):
		httpx.ProblemCode(w, http.StatusBadRequest, "EmptyReason", "Validation Failed", err.Error())
	case errors.Is(err, ErrEmptyItems):
		httpx.ProblemCode(w, http.StatusBadRequest, "EmptyItems", "Validation Failed", err.Error())
	case errors.Is(err, ErrInvalidQuantity):
		httpx.ProblemCode(w, http.StatusBadRequest, "InvalidQuantity", "Validation Failed", err.Error())
	case errors.Is(err, ErrReceiptMissing):
		httpx.ProblemCode(w, http.StatusBadRequest, "ReceiptMissing", "Validation Failed", err.Error())
	default:
		h.logger.Error("orders request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func orderID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	req := ListRequest{}
	q := r.URL.Query()
	req.TargetLocationID, _ = strconv.ParseInt(q.Get("target_location_id"), 10, 64)
	req.Status = Status(q.Get("status"))
	if req.Status != "" && !req.Status.IsValid() {
		httpx.ProblemCode(w, http.StatusBadRequest, "Validation", "Validation Failed", "unknown status")
		return
	}
	req.Limit, _ = strconv.Atoi(q.Get("limit"))
	req.Offset, _ = strconv.Atoi(q.Get("offset"))
	if from := q.Get("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			req.DateFrom = t
		}
	}
	if to := q.Get("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			req.DateTo = t
		}
	}

	list, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"orders": NewOrderViews(list),
		"total":  total,
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return
	}
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewOrderView(order))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, "Validation", "Validation Failed", err.Error())
		return
	}

	order, err := h.service.Create(r.Context(), req, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, NewOrderView(order))
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return
	}
	var req ConfirmRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
			return
		}
	}

	result, err := h.service.Confirm(r.Context(), id, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"order":       NewOrderView(result.Order),
		"adjustments": result.Adjustments,
	})
}

func (h *Handler) ship(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return
	}
	order, err := h.service.Ship(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewOrderView(order))
}

func (h *Handler) deliver(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return
	}
	var req DeliverRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, "Validation", "Validation Failed", err.Error())
		return
	}

	result, err := h.service.Deliver(r.Context(), id, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"order":         NewOrderView(result.Order),
		"discrepancies": result.Discrepancies,
	})
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	h.withReason(w, r, h.service.Reject)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.withReason(w, r, h.service.Cancel)
}

func (h *Handler) withReason(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, id int64, req ReasonRequest) (*Order, error)) {
	id, ok := orderID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return
	}
	var req ReasonRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, "Validation", "Validation Failed", err.Error())
		return
	}

	order, err := fn(r.Context(), id, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewOrderView(order))
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return
	}
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil || itemID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid item id")
		return
	}
	var req ItemQuantityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, "Validation", "Validation Failed", err.Error())
		return
	}

	order, err := h.service.UpdateItemQuantity(r.Context(), id, itemID, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewOrderView(order))
}

func (h *Handler) updateDate(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return
	}
	var req ExpectedDeliveryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, "Validation", "Validation Failed", err.Error())
		return
	}

	order, err := h.service.UpdateExpectedDelivery(r.Context(), id, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewOrderView(order))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
