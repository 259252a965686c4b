package jobs

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/meridian-retail/backoffice/internal/shared"
)

func newJobsRouter(t *testing.T, client *Client) chi.Router {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, client, logger).MountRoutes)
	return r
}

func TestHealthWithoutInspector(t *testing.T) {
	r := newJobsRouter(t, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"pending":0`)
}

func TestEnqueueRoutesAbsentWithoutClient(t *testing.T) {
	r := newJobsRouter(t, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/reorder-scan", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEnqueueRequiresWarehouseRole(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	require.NoError(t, err)
	defer func() { _ = client.Close() }()
	r := newJobsRouter(t, client)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/reorder-scan", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/jobs/discrepancy-digest", nil)
	ctx := shared.ContextWithActor(req.Context(), shared.Actor{ID: 7, Role: shared.RoleStore, LocationID: 2})
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req.WithContext(ctx))
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestEnqueueReorderScanAccepted(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	require.NoError(t, err)
	defer func() { _ = client.Close() }()
	r := newJobsRouter(t, client)

	body := strings.NewReader(`{"location_id": 3}`)
	req := httptest.NewRequest(http.MethodPost, "/jobs/reorder-scan", body)
	ctx := shared.ContextWithActor(req.Context(), shared.Actor{ID: 3, Role: shared.RoleWarehouse, LocationID: 1})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req.WithContext(ctx))

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp struct {
		TaskID string `json:"task_id"`
		Queue  string `json:"queue"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.TaskID)
	require.Equal(t, QueueDefault, resp.Queue)
}
