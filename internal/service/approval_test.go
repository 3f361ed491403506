package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"nx-server/internal/model"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

var prizeColumns = []string{
	"prize_id", "bet_id", "account_id", "draw_label", "game_kind", "amount",
	"status", "approved_by", "approved_at", "trace_id", "created_at", "updated_at",
}

// 审批通过：条件更新抢到单后入账并写账本，同事务提交
func TestApprovePrizeCreditsOnce(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM prizes").WithArgs("PRZ1").WillReturnRows(
		sqlmock.NewRows(prizeColumns).
			AddRow("PRZ1", "BET1", "ACC1", "2026-01-01-kalyan", int8(1), 85.0,
				model.PrizeStatusPending, "", int64(0), "t1", int64(0), int64(0)))
	mock.ExpectExec("UPDATE prizes").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM accounts").WithArgs("ACC1").WillReturnRows(accountRows("ACC1", 1, 15))
	mock.ExpectExec("UPDATE accounts").WithArgs(100.0, sqlmock.AnyArg(), "ACC1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO wallet_ledger").
		WithArgs("ACC1", sqlmock.AnyArg(), sqlmock.AnyArg(), 85.0, 15.0, 100.0,
			"PRZ1", "2026-01-01-kalyan", "prize approved", "t1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO outbox").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	out, err := NewApprovalService().Approve(context.Background(), ApproveInput{
		Kind: "prize", ID: "PRZ1", ApprovedBy: "admin", TraceID: "t1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Amount != "85.00" || out.Balance != "100.00" {
		t.Fatalf("unexpected output: %+v", out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// 重复审批：条件更新0行命中，报已处理且不入账不提交
func TestApprovePrizeAlreadyProcessed(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM prizes").WithArgs("PRZ1").WillReturnRows(
		sqlmock.NewRows(prizeColumns).
			AddRow("PRZ1", "BET1", "ACC1", "2026-01-01-kalyan", int8(1), 85.0,
				model.PrizeStatusApproved, "admin", int64(1), "t1", int64(0), int64(0)))
	mock.ExpectExec("UPDATE prizes").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := NewApprovalService().Approve(context.Background(), ApproveInput{
		Kind: "prize", ID: "PRZ1", ApprovedBy: "admin", TraceID: "t1",
	})
	if !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("expect ErrAlreadyProcessed, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApproveTopupNotFound(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM topups").WithArgs("TPU1").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := NewApprovalService().Approve(context.Background(), ApproveInput{
		Kind: "topup", ID: "TPU1", ApprovedBy: "admin", TraceID: "t1",
	})
	if !errors.Is(err, ErrApprovalNotFound) {
		t.Fatalf("expect ErrApprovalNotFound, got %v", err)
	}
}

func TestApproveUnknownKind(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := NewApprovalService().Approve(context.Background(), ApproveInput{
		Kind: "bonus", ID: "X1", ApprovedBy: "admin", TraceID: "t1",
	})
	if !errors.Is(err, ErrUnknownApprovalKind) {
		t.Fatalf("expect ErrUnknownApprovalKind, got %v", err)
	}
}
