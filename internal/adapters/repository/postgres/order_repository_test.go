package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/ogurasousui/masters-service/internal/core/handover"
	"github.com/ogurasousui/masters-service/internal/core/scope"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

var orderRowColumns = []string{
	"id", "master_id", "name", "city", "address", "problem", "status", "result", "clean", "master_change",
	"cash_submission_status", "cash_receipt_doc", "closed_at", "cash_approved_by", "cash_approved_at", "created_at",
}

func TestOrderRepository_TransitionCashStatus(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewOrderRepository(mock)
	at := time.Date(2026, 1, 27, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`AND cash_submission_status = ANY($5::text[])`)).
		WithArgs("approved", "d-1", at, "o-1", []string{"not_submitted", "pending_review"}).
		WillReturnRows(pgxmock.NewRows(orderRowColumns).
			AddRow("o-1", "m-1", "Ivan", "Moscow", "Lenina 1", "leak", "ready", "120.00", "100.00", "20.00",
				"approved", nil, nil, "d-1", at, at))

	order, err := repo.TransitionCashStatus(context.Background(), handover.Transition{
		OrderID: "o-1",
		From:    handover.DecidableStatuses(),
		To:      handover.CashApproved,
		ActorID: "d-1",
		At:      at,
	})
	if err != nil {
		t.Fatalf("TransitionCashStatus returned error: %v", err)
	}
	if order.CashStatus != handover.CashApproved || order.MasterName != "Ivan" {
		t.Fatalf("unexpected order: %+v", order)
	}
	if order.Clean.StringFixed(2) != "100.00" {
		t.Fatalf("unexpected clean: %s", order.Clean)
	}
	if order.ApprovedBy == nil || *order.ApprovedBy != "d-1" || order.ReceiptDoc != nil {
		t.Fatalf("unexpected nullable fields: %+v", order)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestOrderRepository_TransitionCashStatusConflict(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewOrderRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE orders`)).
		WithArgs("rejected", "d-1", pgxmock.AnyArg(), "o-1", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(orderRowColumns))

	_, err = repo.TransitionCashStatus(context.Background(), handover.Transition{
		OrderID: "o-1",
		From:    handover.DecidableStatuses(),
		To:      handover.CashRejected,
		ActorID: "d-1",
		At:      time.Now(),
	})
	if !errors.Is(err, handover.ErrAlreadyDecided) {
		t.Fatalf("expected ErrAlreadyDecided, got %v", err)
	}
}

func TestOrderRepository_FindOrderByIDNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewOrderRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE o.id = $1`)).
		WithArgs("o-404").
		WillReturnRows(pgxmock.NewRows(orderRowColumns))

	if _, err := repo.FindOrderByID(context.Background(), "o-404"); !errors.Is(err, handover.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderRepository_SummarizeOutstandingScoped(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewOrderRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta(`AND o.city = ANY($3::text[])`)).
		WithArgs("ready", []string{"not_submitted", "pending_review"}, []string{"Moscow"}).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "cities", "count", "sum"}).
			AddRow("m-1", "Ivan", []string{"Moscow"}, int64(2), "150.00").
			AddRow("m-2", "Oleg", []string{"Moscow", "Tver"}, int64(1), "0.1"))

	totals, err := repo.SummarizeOutstanding(context.Background(), scope.ForTenants("Moscow"))
	if err != nil {
		t.Fatalf("SummarizeOutstanding returned error: %v", err)
	}
	if len(totals) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(totals))
	}
	if totals[0].OrdersCount != 2 || totals[0].Total.StringFixed(2) != "150.00" {
		t.Fatalf("unexpected first row: %+v", totals[0])
	}
	if totals[1].Total.StringFixed(2) != "0.10" {
		t.Fatalf("unexpected second row: %+v", totals[1])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestOrderRepository_SummarizeOutstandingSelfScoped(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewOrderRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta(`AND o.master_id = $3`)).
		WithArgs("ready", pgxmock.AnyArg(), "m-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "cities", "count", "sum"}))

	totals, err := repo.SummarizeOutstanding(context.Background(), scope.ForWorker("m-1"))
	if err != nil {
		t.Fatalf("SummarizeOutstanding returned error: %v", err)
	}
	if totals == nil || len(totals) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", totals)
	}
}

func TestOrderRepository_FindMasterOutsideScope(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewOrderRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta(`AND m.cities && $2::text[]`)).
		WithArgs("m-2", []string{"Moscow"}).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "cities"}))

	if _, err := repo.FindMaster(context.Background(), "m-2", scope.ForTenants("Moscow")); !errors.Is(err, handover.ErrMasterNotFound) {
		t.Fatalf("expected ErrMasterNotFound, got %v", err)
	}
}
