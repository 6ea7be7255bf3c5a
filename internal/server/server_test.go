package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zephyrtronium/calculator"
	"github.com/zephyrtronium/calculator/internal/auth"
	"github.com/zephyrtronium/calculator/internal/config"
	"github.com/zephyrtronium/calculator/internal/jobs"
	"github.com/zephyrtronium/calculator/internal/results"
)

type fixture struct {
	srv   *Server
	queue *jobs.Queue
	store *results.Memory
}

func newFixture(t *testing.T, modify func(*config.Config)) fixture {
	t.Helper()
	cfg := config.Default()
	cfg.Queue.Capacity = 2
	cfg.RateLimit.Enabled = false
	cfg.Auth.Users = map[string]string{"admin": "hunter2"}
	if modify != nil {
		modify(&cfg)
	}
	store := results.NewMemory(cfg.Results.TTL.Std())
	queue := jobs.New(cfg.Queue.Capacity, cfg.Queue.Workers, store)
	srv := New(cfg, queue, store, auth.New(auth.NewStatic(cfg.Auth.Users)))
	return fixture{srv: srv, queue: queue, store: store}
}

func (f fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func TestCalculate(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do("POST", "/calculator/calculate", `{"id":"1","expression":"2+3*4"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"id":"1","result":14}`, rec.Body.String())
}

func TestCalculateErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		status int
		kind   calculator.Kind
		fn     string
	}{
		{"illegal", `{"id":"a","expression":"2+2$"}`, http.StatusBadRequest, calculator.ValidationError, ""},
		{"unsupported", `{"id":"a","expression":"foo(1)"}`, http.StatusBadRequest, calculator.ValidationError, ""},
		{"domain", `{"id":"a","expression":"sqrt(-4)"}`, http.StatusBadRequest, calculator.MathError, "sqrt"},
		{"divide", `{"id":"a","expression":"1/0"}`, http.StatusBadRequest, calculator.MathError, "/"},
		{"syntax", `{"id":"a","expression":"(1+2"}`, http.StatusBadRequest, calculator.SyntaxError, ""},
		{"empty", `{"id":"a","expression":""}`, http.StatusBadRequest, calculator.SyntaxError, ""},
		{"missing", `{"id":"a"}`, http.StatusBadRequest, calculator.ValidationError, ""},
		{"not json", `expression=1`, http.StatusBadRequest, calculator.ValidationError, ""},
		{"no body", ``, http.StatusBadRequest, calculator.ValidationError, ""},
		{"trailing", `{"expression":"1"}{}`, http.StatusBadRequest, calculator.ValidationError, ""},
		{"unit", `{"expression":"1","unit":"grad"}`, http.StatusBadRequest, calculator.ValidationError, ""},
	}
	f := newFixture(t, nil)
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := f.do("POST", "/calculator/calculate", c.body)
			assert.Equal(t, c.status, rec.Code)
			var res calculator.Result
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			require.NotNil(t, res.Err, rec.Body.String())
			assert.Equal(t, c.kind, res.Err.Kind)
			assert.Equal(t, c.fn, res.Err.Function)
			assert.NotEmpty(t, res.Err.Message)
		})
	}
}

func TestCalculateRequestDetails(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do("POST", "/calculator/calculate", `{"id":"q"}`)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "q", body["id"])
	assert.Equal(t, "VALIDATION_ERROR", body["errorType"])
	details, ok := body["details"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	assert.Contains(t, details["reason"], "expression failed required")
}

func TestCalculateFieldCase(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do("POST", "/calculator/calculate", `{"Id":"7","Expression":"sin(pi/2)","unit":"rad"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"7","result":1}`, rec.Body.String())
}

func TestCalculateUnits(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do("POST", "/calculator/calculate", `{"id":"d","expression":"cos(180)"}`)
	assert.JSONEq(t, `{"id":"d","result":-1}`, rec.Body.String())

	f = newFixture(t, func(c *config.Config) { c.Unit = "rad" })
	rec = f.do("POST", "/calculator/calculate", `{"id":"r","expression":"cos(pi)"}`)
	assert.JSONEq(t, `{"id":"r","result":-1}`, rec.Body.String())
	rec = f.do("POST", "/calculator/calculate", `{"id":"r","expression":"cos(180)","unit":"degrees"}`)
	assert.JSONEq(t, `{"id":"r","result":-1}`, rec.Body.String())
}

func TestCalculateGeneratesID(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do("POST", "/calculator/calculate", `{"expression":"1+1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var res calculator.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	_, err := uuid.Parse(res.ID)
	assert.NoError(t, err, "id %q", res.ID)
	assert.Equal(t, 2.0, res.Value)
}

func TestCalculateBodyLimit(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Server.MaxBodyBytes = 32 })
	rec := f.do("POST", "/calculator/calculate", `{"expression":"`+strings.Repeat("1+", 64)+`1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do("GET", "/calculator/calculate", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

type submitted struct {
	RequestID     string  `json:"request_id"`
	QueuePosition int     `json:"queue_position"`
	EstimatedWait float64 `json:"estimated_wait"`
}

func TestJobsLifecycle(t *testing.T) {
	f := newFixture(t, nil)

	var subs []submitted
	for i, expr := range []string{"2^10", "ln(0)"} {
		rec := f.do("POST", "/calculator/jobs", `{"expression":"`+expr+`"}`)
		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
		var s submitted
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
		assert.Equal(t, i+1, s.QueuePosition)
		assert.Equal(t, float64(2*(i+1)), s.EstimatedWait)
		subs = append(subs, s)
	}

	rec := f.do("POST", "/calculator/jobs", `{"id":"late","expression":"1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"server busy, try again later","request_id":"late"}`, rec.Body.String())

	rec = f.do("GET", "/calculator/result/"+subs[0].RequestID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"pending"}`, rec.Body.String())

	f.queue.Close()
	require.NoError(t, f.queue.Run(context.Background()))

	rec = f.do("GET", "/calculator/result/"+subs[0].RequestID, "")
	assert.JSONEq(t, `{"status":"completed","result":{"id":"`+subs[0].RequestID+`","result":1024}}`, rec.Body.String())
	rec = f.do("GET", "/calculator/result/"+subs[1].RequestID, "")
	var poll struct {
		Status string            `json:"status"`
		Result calculator.Result `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &poll))
	assert.Equal(t, "completed", poll.Status)
	require.NotNil(t, poll.Result.Err)
	assert.Equal(t, calculator.MathError, poll.Result.Err.Kind)
	assert.Equal(t, "ln", poll.Result.Err.Function)

	// Results are handed out once.
	rec = f.do("GET", "/calculator/result/"+subs[0].RequestID, "")
	assert.JSONEq(t, `{"status":"pending"}`, rec.Body.String())

	rec = f.do("POST", "/calculator/jobs", `{"expression":"1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestJobsBadRequest(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do("POST", "/calculator/jobs", `{"unit":"rad"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, f.queue.Len())
}

func TestCORS(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do("POST", "/calculator/calculate", `{"expression":"1"}`)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, GET", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))

	rec = f.do("OPTIONS", "/calculator/jobs", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSOriginList(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.CORS.AllowedOrigins = []string{"https://a.example", "https://b.example"}
	})
	cases := []struct {
		origin string
		want   string
	}{
		{"https://a.example", "https://a.example"},
		{"https://b.example", "https://b.example"},
		{"https://evil.example", ""},
		{"", ""},
	}
	for _, c := range cases {
		for _, method := range []string{"POST", "OPTIONS"} {
			req := httptest.NewRequest(method, "/calculator/calculate", strings.NewReader(`{"expression":"1"}`))
			if c.origin != "" {
				req.Header.Set("Origin", c.origin)
			}
			rec := httptest.NewRecorder()
			f.srv.ServeHTTP(rec, req)
			assert.Equal(t, c.want, rec.Header().Get("Access-Control-Allow-Origin"), "%s from %q", method, c.origin)
			assert.Equal(t, []string{"Origin"}, rec.Header().Values("Vary"), "%s from %q", method, c.origin)
		}
	}
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 2}
	})
	for i := 0; i < 2; i++ {
		rec := f.do("GET", "/healthz", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	rec := f.do("GET", "/healthz", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestLogin(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do("POST", "/auth/login", `{"username":"admin","password":"hunter2"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Token)

	rec = f.do("POST", "/auth/login", `{"Username":"admin","Password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"invalid credentials"}`, rec.Body.String())

	rec = f.do("POST", "/auth/login", `{"username":"admin"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "password failed required")
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.queue.Submit(jobs.Job{ID: "x", Expression: "1"})
	require.NoError(t, err)
	rec := f.do("GET", "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","queued":1}`, rec.Body.String())
}

type panicStore struct{}

func (panicStore) Put(context.Context, string, results.Outcome) error { return nil }

func (panicStore) Take(context.Context, string) (results.Outcome, error) {
	panic("store exploded")
}

type errStore struct{}

func (errStore) Put(context.Context, string, results.Outcome) error { return nil }

func (errStore) Take(context.Context, string) (results.Outcome, error) {
	return results.Outcome{}, context.DeadlineExceeded
}

func TestResultStoreFailures(t *testing.T) {
	cfg := config.Default()
	cfg.RateLimit.Enabled = false
	queue := jobs.New(1, 1, results.NewMemory(time.Minute))

	srv := New(cfg, queue, panicStore{}, auth.New(auth.NewStatic(nil)))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/calculator/result/x", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"id":"","errorType":"INTERNAL_ERROR","message":"internal error"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "exploded")

	srv = New(cfg, queue, errStore{}, auth.New(auth.NewStatic(nil)))
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/calculator/result/x", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error","request_id":"x"}`, rec.Body.String())
}
