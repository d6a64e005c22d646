package handover

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/ogurasousui/masters-service/internal/core/scope"
	"github.com/shopspring/decimal"
)

const (
	masterA = "00000000-0000-0000-0000-0000000000a1"
	masterB = "00000000-0000-0000-0000-0000000000b1"
	masterC = "00000000-0000-0000-0000-0000000000c1"

	order1 = "10000000-0000-0000-0000-000000000001"
	order2 = "10000000-0000-0000-0000-000000000002"
	order3 = "10000000-0000-0000-0000-000000000003"
	order4 = "10000000-0000-0000-0000-000000000004"
	order5 = "10000000-0000-0000-0000-000000000005"
)

type stubClock struct {
	now time.Time
}

func (c stubClock) Now() time.Time { return c.now }

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recordingObserver) ObserveDecision(decision, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, decision+":"+outcome)
}

type fakeRepo struct {
	mu          sync.Mutex
	masters     map[string]MasterRef
	orders      map[string]*Order
	findCalls   int
	summaryErr  error
	transitions int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{masters: map[string]MasterRef{}, orders: map[string]*Order{}}
}

func (r *fakeRepo) addMaster(id, name string, cities ...string) {
	r.masters[id] = MasterRef{ID: id, Name: name, Cities: cities}
}

func (r *fakeRepo) addOrder(id, masterID, city, clean string, status CashStatus) {
	r.orders[id] = &Order{
		ID:         id,
		MasterID:   masterID,
		City:       city,
		Status:     ReadyLifecycleStatus,
		Clean:      decimal.RequireFromString(clean),
		CashStatus: status,
	}
}

func (r *fakeRepo) FindOrderByID(_ context.Context, id string) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findCalls++

	o, ok := r.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	clone := *o
	return &clone, nil
}

func (r *fakeRepo) TransitionCashStatus(_ context.Context, in Transition) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[in.OrderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	if !slices.Contains(in.From, o.CashStatus) {
		return nil, ErrAlreadyDecided
	}
	r.transitions++
	o.CashStatus = in.To
	actor := in.ActorID
	at := in.At
	o.ApprovedBy = &actor
	o.ApprovedAt = &at

	clone := *o
	return &clone, nil
}

func (r *fakeRepo) visible(p scope.Predicate, o *Order) bool {
	if id, ok := p.WorkerID(); ok {
		return o.MasterID == id
	}
	return p.AllowsTenant(o.City)
}

func (r *fakeRepo) SummarizeOutstanding(_ context.Context, p scope.Predicate) ([]MasterTotal, error) {
	if r.summaryErr != nil {
		return nil, r.summaryErr
	}

	byMaster := map[string]*MasterTotal{}
	for _, o := range r.orders {
		if o.Status != ReadyLifecycleStatus || !o.CashStatus.Outstanding() || !r.visible(p, o) {
			continue
		}
		m := r.masters[o.MasterID]
		row, ok := byMaster[o.MasterID]
		if !ok {
			row = &MasterTotal{ID: m.ID, Name: m.Name, Cities: m.Cities}
			byMaster[o.MasterID] = row
		}
		row.Total = row.Total.Add(o.Clean)
		row.OrdersCount++
	}

	out := make([]MasterTotal, 0, len(byMaster))
	for _, row := range byMaster {
		out = append(out, *row)
	}
	return out, nil
}

func (r *fakeRepo) FindMaster(_ context.Context, id string, p scope.Predicate) (*MasterRef, error) {
	m, ok := r.masters[id]
	if !ok || !p.AllowsWorker(m.ID, m.Cities) {
		return nil, ErrMasterNotFound
	}
	return &m, nil
}

func (r *fakeRepo) ListOutstanding(_ context.Context, masterID string, p scope.Predicate) ([]*Order, error) {
	var out []*Order
	for _, o := range r.orders {
		if o.MasterID != masterID || o.Status != ReadyLifecycleStatus || !o.CashStatus.Outstanding() || !r.visible(p, o) {
			continue
		}
		clone := *o
		out = append(out, &clone)
	}
	slices.SortFunc(out, func(a, b *Order) int {
		if a.ID < b.ID {
			return -1
		}
		return 1
	})
	return out, nil
}

var (
	director = scope.Identity{ID: "20000000-0000-0000-0000-0000000000d1", Role: scope.RoleTenantAdmin, Tenants: []string{"A"}}
	operator = scope.Identity{ID: "20000000-0000-0000-0000-0000000000e1", Role: scope.RoleGlobalAdmin}
)

func seedScenario() *fakeRepo {
	repo := newFakeRepo()
	repo.addMaster(masterA, "Ivan", "A")
	repo.addMaster(masterB, "Boris", "B")
	repo.addOrder(order1, masterA, "A", "100.00", CashNotSubmitted)
	repo.addOrder(order2, masterA, "A", "50.00", CashPendingReview)
	repo.addOrder(order3, masterA, "A", "30.00", CashApproved)
	repo.addOrder(order4, masterB, "B", "70.10", CashNotSubmitted)
	return repo
}

func TestService_SummarizeScopedScenario(t *testing.T) {
	t.Parallel()

	svc := NewService(seedScenario(), nil, nil)

	summary, err := svc.Summarize(context.Background(), director, nil)
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}

	if len(summary.Masters) != 1 {
		t.Fatalf("expected 1 master, got %d", len(summary.Masters))
	}
	got := summary.Masters[0]
	if got.ID != masterA || got.OrdersCount != 2 || !got.Total.Equal(decimal.RequireFromString("150.00")) {
		t.Fatalf("unexpected row: %+v", got)
	}
	if !summary.Total.Equal(decimal.RequireFromString("150.00")) {
		t.Fatalf("unexpected total: %s", summary.Total)
	}
}

func TestService_SummarizeOutOfScopeFilterIsClamped(t *testing.T) {
	t.Parallel()

	svc := NewService(seedScenario(), nil, nil)

	summary, err := svc.Summarize(context.Background(), director, strPtr("B"))
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	for _, m := range summary.Masters {
		if m.ID == masterB {
			t.Fatalf("master outside scope leaked: %+v", m)
		}
	}
	if len(summary.Masters) != 1 {
		t.Fatalf("expected clamped result for own tenant, got %+v", summary.Masters)
	}
}

func TestService_SummarizeTotalMatchesRoundedRows(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.addMaster(masterA, "Anna", "A")
	repo.addMaster(masterB, "Anna", "A")
	repo.addMaster(masterC, "Zoya", "A")
	repo.addOrder(order1, masterA, "A", "0.005", CashNotSubmitted)
	repo.addOrder(order2, masterB, "A", "0.005", CashNotSubmitted)
	repo.addOrder(order3, masterC, "A", "10.104", CashPendingReview)
	repo.addOrder(order4, masterC, "A", "0.10", CashPendingReview)

	svc := NewService(repo, nil, nil)
	summary, err := svc.Summarize(context.Background(), operator, nil)
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}

	sum := decimal.Zero
	for _, m := range summary.Masters {
		if m.Total.Exponent() < -2 {
			t.Fatalf("row total not rounded: %s", m.Total)
		}
		sum = sum.Add(m.Total)
	}
	if !sum.Equal(summary.Total) {
		t.Fatalf("total %s differs from sum of rows %s", summary.Total, sum)
	}

	ids := []string{summary.Masters[0].ID, summary.Masters[1].ID, summary.Masters[2].ID}
	if !slices.Equal(ids, []string{masterA, masterB, masterC}) {
		t.Fatalf("unexpected ordering: %v", ids)
	}
}

func TestService_SummarizeEmpty(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeRepo(), nil, nil)
	summary, err := svc.Summarize(context.Background(), operator, nil)
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if summary.Masters == nil || len(summary.Masters) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", summary.Masters)
	}
	if summary.Total.StringFixed(2) != "0.00" {
		t.Fatalf("expected 0.00, got %s", summary.Total.StringFixed(2))
	}
}

func TestService_SummarizePropagatesStorageError(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.summaryErr = errors.New("boom")
	svc := NewService(repo, nil, nil)

	if _, err := svc.Summarize(context.Background(), operator, nil); !errors.Is(err, repo.summaryErr) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestService_ApproveThenRejectConflicts(t *testing.T) {
	t.Parallel()

	repo := seedScenario()
	now := time.Date(2026, 1, 27, 10, 0, 0, 0, time.UTC)
	obs := &recordingObserver{}
	svc := NewService(repo, stubClock{now: now}, nil, WithObserver(obs))

	approved, err := svc.Approve(context.Background(), order1, director)
	if err != nil {
		t.Fatalf("Approve returned error: %v", err)
	}
	if approved.CashStatus != CashApproved {
		t.Fatalf("expected approved, got %s", approved.CashStatus)
	}
	if approved.ApprovedBy == nil || *approved.ApprovedBy != director.ID {
		t.Fatalf("unexpected approver: %v", approved.ApprovedBy)
	}
	if approved.ApprovedAt == nil || !approved.ApprovedAt.Equal(now) {
		t.Fatalf("unexpected approval time: %v", approved.ApprovedAt)
	}

	if _, err := svc.Reject(context.Background(), order1, director); !errors.Is(err, ErrAlreadyDecided) {
		t.Fatalf("expected ErrAlreadyDecided, got %v", err)
	}
	if repo.orders[order1].CashStatus != CashApproved {
		t.Fatalf("stored status regressed: %s", repo.orders[order1].CashStatus)
	}
	if !slices.Equal(obs.outcomes, []string{"approve:ok", "reject:conflict"}) {
		t.Fatalf("unexpected observations: %v", obs.outcomes)
	}
}

func TestService_ConcurrentDecisionsExactlyOneWins(t *testing.T) {
	t.Parallel()

	repo := seedScenario()
	svc := NewService(repo, nil, nil)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = svc.Approve(context.Background(), order2, operator)
			} else {
				_, err = svc.Reject(context.Background(), order2, operator)
			}
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrAlreadyDecided):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if successes != 1 || conflicts != 7 {
		t.Fatalf("expected 1 success and 7 conflicts, got %d and %d", successes, conflicts)
	}
	if repo.transitions != 1 {
		t.Fatalf("expected a single stored transition, got %d", repo.transitions)
	}
}

func TestService_DecisionValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		orderID string
		actor   scope.Identity
		wantErr error
	}{
		{name: "missing actor", orderID: order1, actor: scope.Identity{Role: scope.RoleTenantAdmin}, wantErr: ErrMissingActor},
		{name: "worker cannot decide", orderID: order1, actor: scope.Identity{ID: masterA, Role: scope.RoleSelfWorker}, wantErr: ErrForbidden},
		{name: "malformed id", orderID: "42", actor: director, wantErr: ErrInvalidID},
		{name: "unknown order", orderID: order5, actor: director, wantErr: ErrOrderNotFound},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := seedScenario()
			svc := NewService(repo, nil, nil)

			if _, err := svc.Approve(context.Background(), tt.orderID, tt.actor); !errors.Is(err, tt.wantErr) {
				t.Fatalf("want %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr != ErrOrderNotFound && repo.findCalls != 0 {
				t.Fatalf("storage must not be touched on validation failure")
			}
		})
	}
}

func TestService_Details(t *testing.T) {
	t.Parallel()

	svc := NewService(seedScenario(), nil, nil)

	detail, err := svc.Details(context.Background(), director, masterA)
	if err != nil {
		t.Fatalf("Details returned error: %v", err)
	}
	if detail.Master.Name != "Ivan" {
		t.Fatalf("unexpected master: %+v", detail.Master)
	}
	if len(detail.Orders) != 2 {
		t.Fatalf("expected 2 outstanding orders, got %d", len(detail.Orders))
	}
	for _, o := range detail.Orders {
		if o.MasterName != "Ivan" {
			t.Fatalf("master name not denormalized: %+v", o)
		}
	}
	if detail.Total.StringFixed(2) != "150.00" {
		t.Fatalf("unexpected total: %s", detail.Total)
	}
}

func TestService_DetailsScope(t *testing.T) {
	t.Parallel()

	svc := NewService(seedScenario(), nil, nil)

	if _, err := svc.Details(context.Background(), director, masterB); !errors.Is(err, ErrMasterNotFound) {
		t.Fatalf("expected not found for out-of-scope master, got %v", err)
	}

	worker := scope.Identity{ID: masterA, Role: scope.RoleSelfWorker}
	if _, err := svc.Details(context.Background(), worker, masterB); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.Details(context.Background(), worker, masterA); err != nil {
		t.Fatalf("worker must see own details: %v", err)
	}
}

func strPtr(s string) *string { return &s }
