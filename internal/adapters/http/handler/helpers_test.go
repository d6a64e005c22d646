package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ogurasousui/masters-service/internal/adapters/http/middleware"
	"github.com/ogurasousui/masters-service/internal/core/handover"
	"github.com/ogurasousui/masters-service/internal/core/master"
	"github.com/ogurasousui/masters-service/internal/core/schedule"
	"github.com/ogurasousui/masters-service/internal/core/scope"
	"github.com/ogurasousui/masters-service/internal/platform/obs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeMasters struct {
	identity scope.Identity
	listIn   master.ListInput
	createIn master.CreateInput
	statsIn  master.StatsRange
	lastID   string
	status   master.Status

	list    *master.ListResult
	master  *master.Master
	masters []*master.Master
	stats   *master.OrderStats
	err     error
}

func (f *fakeMasters) List(_ context.Context, identity scope.Identity, in master.ListInput) (*master.ListResult, error) {
	f.identity, f.listIn = identity, in
	return f.list, f.err
}

func (f *fakeMasters) Get(_ context.Context, identity scope.Identity, id string) (*master.Master, error) {
	f.identity, f.lastID = identity, id
	return f.master, f.err
}

func (f *fakeMasters) ByCity(_ context.Context, identity scope.Identity, city string) ([]*master.Master, error) {
	f.identity, f.lastID = identity, city
	return f.masters, f.err
}

func (f *fakeMasters) Profile(_ context.Context, identity scope.Identity) (*master.Master, error) {
	f.identity = identity
	return f.master, f.err
}

func (f *fakeMasters) Create(_ context.Context, identity scope.Identity, in master.CreateInput) (*master.Master, error) {
	f.identity, f.createIn = identity, in
	return f.master, f.err
}

func (f *fakeMasters) UpdateStatus(_ context.Context, identity scope.Identity, id string, status master.Status) (*master.Master, error) {
	f.identity, f.lastID, f.status = identity, id, status
	return f.master, f.err
}

func (f *fakeMasters) Delete(_ context.Context, identity scope.Identity, id string) error {
	f.identity, f.lastID = identity, id
	return f.err
}

func (f *fakeMasters) OrderStats(_ context.Context, identity scope.Identity, id string, r master.StatsRange) (*master.OrderStats, error) {
	f.identity, f.lastID, f.statsIn = identity, id, r
	return f.stats, f.err
}

type fakeSchedules struct {
	identity scope.Identity
	masterID string
	days     []schedule.Day
	rng      schedule.Range
	city     *string

	read    []schedule.Day
	all     []schedule.MasterSchedule
	updated int
	err     error
}

func (f *fakeSchedules) Replace(_ context.Context, identity scope.Identity, masterID string, days []schedule.Day) (*schedule.ReplaceResult, error) {
	f.identity, f.masterID, f.days = identity, masterID, days
	if f.err != nil {
		return nil, f.err
	}
	return &schedule.ReplaceResult{UpdatedCount: f.updated}, nil
}

func (f *fakeSchedules) Read(_ context.Context, identity scope.Identity, masterID string, r schedule.Range) ([]schedule.Day, error) {
	f.identity, f.masterID, f.rng = identity, masterID, r
	return f.read, f.err
}

func (f *fakeSchedules) ReadAll(_ context.Context, identity scope.Identity, city *string, r schedule.Range) ([]schedule.MasterSchedule, error) {
	f.identity, f.city, f.rng = identity, city, r
	return f.all, f.err
}

type fakeHandovers struct {
	identity scope.Identity
	orderID  string
	masterID string
	city     *string
	decided  handover.Decision

	order   *handover.Order
	summary *handover.Summary
	detail  *handover.Detail
	err     error
}

func (f *fakeHandovers) Approve(_ context.Context, orderID string, actor scope.Identity) (*handover.Order, error) {
	f.identity, f.orderID, f.decided = actor, orderID, handover.DecisionApprove
	return f.order, f.err
}

func (f *fakeHandovers) Reject(_ context.Context, orderID string, actor scope.Identity) (*handover.Order, error) {
	f.identity, f.orderID, f.decided = actor, orderID, handover.DecisionReject
	return f.order, f.err
}

func (f *fakeHandovers) Summarize(_ context.Context, identity scope.Identity, city *string) (*handover.Summary, error) {
	f.identity, f.city = identity, city
	return f.summary, f.err
}

func (f *fakeHandovers) Details(_ context.Context, identity scope.Identity, masterID string) (*handover.Detail, error) {
	f.identity, f.masterID = identity, masterID
	return f.detail, f.err
}

type testServer struct {
	masters   *fakeMasters
	schedules *fakeSchedules
	handovers *fakeHandovers
	handler   http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{
		masters:   &fakeMasters{},
		schedules: &fakeSchedules{},
		handovers: &fakeHandovers{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	h := New(ts.masters, ts.schedules, ts.handovers, logger)
	ts.handler = NewRouter(h, RouterConfig{
		Auth:        middleware.NewAuthenticator(testSecret, logger),
		Limiter:     middleware.NewRateLimiter(1000, 1000),
		Metrics:     obs.NewMetrics(reg),
		Gatherer:    reg,
		CORSOrigins: []string{"*"},
		Logger:      logger,
	})
	return ts
}

func tokenFor(t *testing.T, sub, role string, cities ...string) string {
	t.Helper()

	now := time.Now()
	claims := middleware.Claims{
		Role:   role,
		Cities: cities,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

type envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Pagination *struct {
		Page       int `json:"page"`
		Limit      int `json:"limit"`
		Total      int `json:"total"`
		TotalPages int `json:"totalPages"`
	} `json:"pagination"`
}

func (ts *testServer) do(t *testing.T, method, path, token, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}
