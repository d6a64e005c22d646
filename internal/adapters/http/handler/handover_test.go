package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/ogurasousui/masters-service/internal/core/handover"
	"github.com/ogurasousui/masters-service/internal/core/scope"
	pgdb "github.com/ogurasousui/masters-service/internal/platform/db/postgres"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const orderID = "5b0f4a9e-2c11-4a43-9a1e-6c1f0b6a9d10"

func TestHandoverSummary_PassesIdentityAndFilter(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.handovers.summary = &handover.Summary{
		Masters: []handover.MasterTotal{
			{ID: "m-1", Name: "Ivan", Cities: []string{"Moscow"}, Total: decimal.RequireFromString("150"), OrdersCount: 2},
		},
		Total: decimal.RequireFromString("150"),
	}

	rec, env := ts.do(t, http.MethodGet, "/api/v1/master-handover/summary?city=Moscow", tokenFor(t, "d-1", "director", "Moscow", "Kazan"), "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, scope.Identity{ID: "d-1", Role: scope.RoleTenantAdmin, Tenants: []string{"Moscow", "Kazan"}}, ts.handovers.identity)
	require.NotNil(t, ts.handovers.city)
	assert.Equal(t, "Moscow", *ts.handovers.city)
	assert.Contains(t, string(env.Data), `"totalAmount":150.00`)
	assert.Contains(t, string(env.Data), `"ordersCount":2`)
}

func TestHandoverSummary_WithoutCityFilter(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.handovers.summary = &handover.Summary{Masters: []handover.MasterTotal{}, Total: decimal.Zero}

	rec, env := ts.do(t, http.MethodGet, "/api/v1/master-handover/summary", tokenFor(t, "a-1", "callcentre_admin"), "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, ts.handovers.city)
	assert.JSONEq(t, `{"masters":[],"totalAmount":0.00}`, string(env.Data))
}

func TestHandover_RoleGuard(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	rec, env := ts.do(t, http.MethodGet, "/api/v1/master-handover/summary", tokenFor(t, "m-1", "master", "Moscow"), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, env.Success)

	rec, _ = ts.do(t, http.MethodPost, "/api/v1/master-handover/approve/"+orderID, "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestApproveHandover(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	at := time.Date(2026, 1, 27, 12, 0, 0, 0, time.UTC)
	actor := "d-1"
	ts.handovers.order = &handover.Order{
		ID:         orderID,
		MasterID:   "m-1",
		MasterName: "Ivan",
		City:       "Moscow",
		Clean:      decimal.RequireFromString("99.9"),
		CashStatus: handover.CashApproved,
		ApprovedBy: &actor,
		ApprovedAt: &at,
		CreatedAt:  at,
	}

	rec, env := ts.do(t, http.MethodPost, "/api/v1/master-handover/approve/"+orderID, tokenFor(t, "d-1", "director", "Moscow"), "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, orderID, ts.handovers.orderID)
	assert.Equal(t, handover.DecisionApprove, ts.handovers.decided)

	var got map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "approved", got["cashSubmissionStatus"])
	assert.Equal(t, "d-1", got["cashApprovedBy"])
	assert.Contains(t, string(env.Data), `"clean":99.90`)
}

func TestRejectHandover_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "already decided", err: handover.ErrAlreadyDecided, want: http.StatusConflict},
		{name: "order missing", err: fmt.Errorf("order x: %w", handover.ErrOrderNotFound), want: http.StatusNotFound},
		{name: "invalid id", err: handover.ErrInvalidID, want: http.StatusBadRequest},
		{name: "forbidden", err: handover.ErrForbidden, want: http.StatusForbidden},
		{name: "timeout", err: fmt.Errorf("query: %w", pgdb.ErrTimeout), want: http.StatusGatewayTimeout},
		{name: "unexpected", err: fmt.Errorf("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ts := newTestServer(t)
			ts.handovers.err = tt.err

			rec, env := ts.do(t, http.MethodPost, "/api/v1/master-handover/reject/"+orderID, tokenFor(t, "a-1", "callcentre_admin"), "")

			assert.Equal(t, tt.want, rec.Code)
			assert.False(t, env.Success)
			assert.Equal(t, handover.DecisionReject, ts.handovers.decided)
			if tt.want >= http.StatusInternalServerError {
				assert.NotContains(t, env.Message, "boom")
			}
		})
	}
}

func TestHandoverDetails(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.handovers.detail = &handover.Detail{
		Master: handover.MasterRef{ID: "m-1", Name: "Ivan", Cities: []string{"Moscow"}},
		Orders: []*handover.Order{
			{ID: "o-1", MasterID: "m-1", MasterName: "Ivan", Clean: decimal.RequireFromString("10"), CashStatus: handover.CashPendingReview},
		},
		Total: decimal.RequireFromString("10"),
	}

	rec, env := ts.do(t, http.MethodGet, "/api/v1/master-handover/m-1", tokenFor(t, "d-1", "director", "Moscow"), "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "m-1", ts.handovers.masterID)

	var got struct {
		Master struct {
			Name string `json:"name"`
		} `json:"master"`
		Orders []struct {
			MasterName string `json:"masterName"`
			Status     string `json:"cashSubmissionStatus"`
		} `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "Ivan", got.Master.Name)
	require.Len(t, got.Orders, 1)
	assert.Equal(t, "Ivan", got.Orders[0].MasterName)
	assert.Equal(t, "pending_review", got.Orders[0].Status)
}
