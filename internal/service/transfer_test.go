package service

import (
	"context"
	"errors"
	"testing"

	"nx-server/common/constant"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestTransferKind(t *testing.T) {
	cases := []struct {
		from, to int8
		want     int8
		wantErr  bool
	}{
		{constant.RoleDealer, constant.RoleUser, constant.LedgerDealerCredit, false},
		{constant.RoleAdmin, constant.RoleUser, constant.LedgerAdminCredit, false},
		{constant.RoleAdmin, constant.RoleDealer, constant.LedgerAdminCredit, false},
		{constant.RoleUser, constant.RoleAdmin, constant.LedgerUserDebit, false},
		{constant.RoleDealer, constant.RoleAdmin, constant.LedgerUserDebit, false},
		// 不允许的方向
		{constant.RoleUser, constant.RoleUser, 0, true},
		{constant.RoleUser, constant.RoleDealer, 0, true},
		{constant.RoleDealer, constant.RoleDealer, 0, true},
	}
	for _, c := range cases {
		got, err := transferKind(c.from, c.to)
		if c.wantErr {
			if !errors.Is(err, ErrTransferNotAllowed) {
				t.Fatalf("%d->%d: expect ErrTransferNotAllowed, got %v", c.from, c.to, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%d->%d: unexpected error: %v", c.from, c.to, err)
		}
		if got != c.want {
			t.Fatalf("%d->%d: got %d, want %d", c.from, c.to, got, c.want)
		}
	}
}

func TestNewIDFormat(t *testing.T) {
	id := newID(idPrefixBet)
	if len(id) != len(idPrefixBet)+14+3+8 {
		t.Fatalf("unexpected id length: %s", id)
	}
	if id[:3] != idPrefixBet {
		t.Fatalf("missing prefix: %s", id)
	}
	for _, ch := range id[3 : 3+17] {
		if ch < '0' || ch > '9' {
			t.Fatalf("timestamp part must be digits: %s", id)
		}
	}
}

// 整批预生成也不允许撞号（单事务内批量出单）
func TestNewIDBatchUnique(t *testing.T) {
	for batch := 0; batch < 50; batch++ {
		seen := map[string]bool{}
		for i := 0; i < 100; i++ {
			id := newID(idPrefixBet)
			if seen[id] {
				t.Fatalf("duplicate id in one batch: %s", id)
			}
			seen[id] = true
		}
	}
}

// 转账守恒：转出转入等额反号，双方余额与账本 before/after 闭合，同事务提交
func TestTransferConservation(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM accounts").WithArgs("ACCA").WillReturnRows(accountRows("ACCA", constant.RoleDealer, 100))
	mock.ExpectQuery("FROM accounts").WithArgs("ACCB").WillReturnRows(accountRows("ACCB", constant.RoleUser, 50))
	mock.ExpectExec("UPDATE accounts").WithArgs(70.0, sqlmock.AnyArg(), "ACCA").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE accounts").WithArgs(80.0, sqlmock.AnyArg(), "ACCB").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO wallet_ledger").
		WithArgs("ACCA", sqlmock.AnyArg(), sqlmock.AnyArg(), -30.0, 100.0, 70.0,
			sqlmock.AnyArg(), "", "test transfer", "t1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO wallet_ledger").
		WithArgs("ACCB", sqlmock.AnyArg(), sqlmock.AnyArg(), 30.0, 50.0, 80.0,
			sqlmock.AnyArg(), "", "test transfer", "t1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec("INSERT INTO outbox").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	out, err := NewTransferService().Transfer(context.Background(), TransferInput{
		FromAccountID: "ACCA",
		ToAccountID:   "ACCB",
		Amount:        "30",
		Remark:        "test transfer",
		TraceID:       "t1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.FromBalance != "70.00" || out.ToBalance != "80.00" || out.Kind != "dealer_credit" {
		t.Fatalf("unexpected output: %+v", out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// 加锁按账户ID字典序，与参数顺序无关
func TestTransferLocksInLexicalOrder(t *testing.T) {
	mock := newMockDB(t)

	disabled := sqlmock.NewRows(accountColumns).
		AddRow("A1", "1234567897", "u_A1", constant.RoleUser, 10.0, "", 0.0, 0.0, 0.0, 0.0, 0.0, int8(2), int64(0), int64(0))

	mock.ExpectBegin()
	mock.ExpectQuery("FROM accounts").WithArgs("A1").WillReturnRows(disabled)
	mock.ExpectQuery("FROM accounts").WithArgs("B2").WillReturnRows(accountRows("B2", constant.RoleDealer, 100))
	mock.ExpectRollback()

	_, err := NewTransferService().Transfer(context.Background(), TransferInput{
		FromAccountID: "B2",
		ToAccountID:   "A1",
		Amount:        "10",
		TraceID:       "t1",
	})
	if !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expect ErrAccountDisabled, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
