package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probelab/uitester/jobs"
	"github.com/probelab/uitester/logger"
	"github.com/probelab/uitester/plan"
	"github.com/probelab/uitester/report"
	"github.com/probelab/uitester/testutil"
)

// noopEngine satisfies jobs.Executor for handler tests. The dispatcher
// is never started, so jobs stay in the created state.
type noopEngine struct{}

func (noopEngine) Execute(ctx context.Context, req plan.Request, p plan.Plan) report.Result {
	return report.Result{Success: true}
}

func setupHandler(t *testing.T) (*JobHandler, jobs.Store) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	testutil.AutoMigrate(t, db, &jobs.Job{})

	log := logger.NewTestLogger()
	store := jobs.NewMySQLStore(db, log)
	dispatcher := jobs.NewDispatcher(1, store, noopEngine{}, log)

	return NewJobHandler(store, dispatcher, log), store
}

func newRouter(h *JobHandler) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/api/v1/jobs", h.Create).Methods("POST")
	router.HandleFunc("/api/v1/jobs", h.List).Methods("GET")
	router.HandleFunc("/api/v1/jobs/{id}", h.GetByID).Methods("GET")
	router.HandleFunc("/api/v1/jobs/{id}/result", h.GetResult).Methods("GET")
	router.HandleFunc("/api/v1/jobs/{id}", h.Stop).Methods("DELETE")
	router.HandleFunc("/api/v1/stats", h.Stats).Methods("GET")
	return router
}

func submitBody(t *testing.T) *bytes.Buffer {
	t.Helper()

	body, err := json.Marshal(CreateJobRequest{
		Request: plan.Request{
			URL:        "https://example.com",
			TestIntent: "log in with valid credentials",
			Type:       plan.TestTypeLogin,
		},
		Plan: plan.Plan{
			Description: "login flow",
			Steps: []plan.Step{
				{Action: plan.ActionNavigate},
				{Action: plan.ActionType, Target: "#email", Value: "{email}"},
				{Action: plan.ActionClick, Target: "#submit"},
			},
		},
	})
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func TestJobHandlerCreate(t *testing.T) {
	t.Run("valid submission is persisted as created", func(t *testing.T) {
		h, store := setupHandler(t)
		router := newRouter(h)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/jobs", submitBody(t)))

		require.Equal(t, http.StatusCreated, w.Code)

		var created jobs.Job
		require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
		assert.NotEqual(t, uuid.Nil, created.ID)
		assert.Equal(t, jobs.StatusCreated, created.Status)

		stored, err := store.GetByID(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, "https://example.com", stored.Request.URL)
	})

	t.Run("malformed body is rejected", func(t *testing.T) {
		h, _ := setupHandler(t)
		router := newRouter(h)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewBufferString("{not json")))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing url is rejected", func(t *testing.T) {
		h, _ := setupHandler(t)
		router := newRouter(h)

		body, err := json.Marshal(CreateJobRequest{
			Request: plan.Request{Type: plan.TestTypeLogin},
			Plan:    plan.Plan{Steps: []plan.Step{{Action: plan.ActionNavigate}}},
		})
		require.NoError(t, err)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewBuffer(body)))

		require.Equal(t, http.StatusBadRequest, w.Code)

		var resp ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Contains(t, resp.Error, "url")
	})

	t.Run("empty plan is accepted as a trivial job", func(t *testing.T) {
		h, _ := setupHandler(t)
		router := newRouter(h)

		body, err := json.Marshal(CreateJobRequest{
			Request: plan.Request{URL: "https://example.com", Type: plan.TestTypeLogin},
		})
		require.NoError(t, err)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewBuffer(body)))

		assert.Equal(t, http.StatusCreated, w.Code)
	})
}

func TestJobHandlerList(t *testing.T) {
	h, _ := setupHandler(t)
	router := newRouter(h)

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/jobs", submitBody(t)))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	t.Run("default pagination", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))

		require.Equal(t, http.StatusOK, w.Code)

		var resp PaginatedResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, 5, resp.Total)
		assert.Equal(t, 20, resp.Limit)
		assert.Equal(t, 0, resp.Offset)
	})

	t.Run("limit and offset applied", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs?limit=2&offset=4", nil))

		require.Equal(t, http.StatusOK, w.Code)

		var resp PaginatedResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, 5, resp.Total)
		assert.Equal(t, 2, resp.Limit)
		assert.Equal(t, 4, resp.Offset)

		items, ok := resp.Items.([]interface{})
		require.True(t, ok)
		assert.Len(t, items, 1)
	})
}

func TestJobHandlerGetByID(t *testing.T) {
	h, _ := setupHandler(t)
	router := newRouter(h)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/jobs", submitBody(t)))
	require.Equal(t, http.StatusCreated, w.Code)

	var created jobs.Job
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))

	t.Run("found", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+created.ID.String(), nil))

		require.Equal(t, http.StatusOK, w.Code)

		var got jobs.Job
		require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("unknown id", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+uuid.New().String(), nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/not-a-uuid", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestJobHandlerGetResult(t *testing.T) {
	h, store := setupHandler(t)
	router := newRouter(h)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/jobs", submitBody(t)))
	require.Equal(t, http.StatusCreated, w.Code)

	var created jobs.Job
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))

	t.Run("unfinished job conflicts", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/jobs/%s/result", created.ID), nil))

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("finished job returns result", func(t *testing.T) {
		ctx := context.Background()
		claimed, err := store.ClaimNextCreated(ctx)
		require.NoError(t, err)
		require.NotNil(t, claimed)

		result := jobs.ResultJSON(report.Result{
			JobID:    "abcd1234",
			URL:      "https://example.com",
			Success:  true,
			Duration: 3 * time.Second,
		})
		require.NoError(t, store.Complete(ctx, claimed.ID, jobs.StatusSuccess, &result))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/jobs/%s/result", created.ID), nil))

		require.Equal(t, http.StatusOK, w.Code)

		var got report.Result
		require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
		assert.Equal(t, "abcd1234", got.JobID)
		assert.True(t, got.Success)
	})
}

func TestJobHandlerStop(t *testing.T) {
	h, store := setupHandler(t)
	router := newRouter(h)

	submit := func(t *testing.T) uuid.UUID {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/jobs", submitBody(t)))
		require.Equal(t, http.StatusCreated, w.Code)

		var created jobs.Job
		require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
		return created.ID
	}

	t.Run("queued job is stopped", func(t *testing.T) {
		id := submit(t)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/jobs/"+id.String(), nil))

		require.Equal(t, http.StatusOK, w.Code)

		stored, err := store.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, jobs.StatusStopped, stored.Status)

		// A stopped job still counts toward completion accounting.
		w = httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var stats jobs.Stats
		require.NoError(t, json.NewDecoder(w.Body).Decode(&stats))
		assert.Equal(t, 1, stats.Completed)
		assert.Equal(t, 1, stats.Stopped)
	})

	t.Run("running job conflicts", func(t *testing.T) {
		id := submit(t)
		require.NoError(t, store.Update(context.Background(), id, jobs.SetStatus(jobs.StatusRunning)))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/jobs/"+id.String(), nil))

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("unknown job", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/jobs/"+uuid.New().String(), nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestJobHandlerStats(t *testing.T) {
	h, _ := setupHandler(t)
	router := newRouter(h)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/jobs", submitBody(t)))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var stats jobs.Stats
	require.NoError(t, json.NewDecoder(w.Body).Decode(&stats))
	assert.Equal(t, 3, stats.Submitted)
	assert.Equal(t, 0, stats.Completed)
}

func TestHealthHandler(t *testing.T) {
	w := httptest.NewRecorder()
	HealthHandler(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "healthy", resp.Status)
}
