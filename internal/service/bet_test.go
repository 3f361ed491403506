package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"nx-server/internal/config"
	"nx-server/internal/model"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	decimal "github.com/shopspring/decimal"
)

func TestPlaceBetsEmptyBatchNoop(t *testing.T) {
	out, err := NewBetService().PlaceBets(context.Background(), PlaceBetsInput{
		AccountID: "ACC1",
		DrawLabel: "2026-01-01-kalyan",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Bets) != 0 || out.DrawLabel != "2026-01-01-kalyan" {
		t.Fatalf("expect empty result, got %+v", out)
	}
}

func TestPlaceBetsStakeBoundsFromConfig(t *testing.T) {
	config.SetCurrent(&config.Config{Thresholds: map[string]int64{
		"stake_min_paise": 100, // 最小注金 1.00
		"stake_max":       100,
	}})
	defer config.SetCurrent(nil)

	svc := NewBetService()
	_, err := svc.PlaceBets(context.Background(), PlaceBetsInput{
		AccountID: "ACC1",
		DrawLabel: "2026-01-01-kalyan",
		Wagers:    []WagerInput{{GameKind: "jodi", Number: "44", Stake: "0.50"}},
	})
	if err == nil || !strings.Contains(err.Error(), "below minimum") {
		t.Fatalf("expect below-minimum error, got %v", err)
	}

	_, err = svc.PlaceBets(context.Background(), PlaceBetsInput{
		AccountID: "ACC1",
		DrawLabel: "2026-01-01-kalyan",
		Wagers:    []WagerInput{{GameKind: "jodi", Number: "44", Stake: "200"}},
	})
	if err == nil || !strings.Contains(err.Error(), "exceeds maximum") {
		t.Fatalf("expect exceeds-maximum error, got %v", err)
	}
}

func TestPlaceBetsPausedByFeatureFlag(t *testing.T) {
	config.SetCurrent(&config.Config{FeatureFlags: map[string]bool{"betting_paused": true}})
	defer config.SetCurrent(nil)

	_, err := NewBetService().PlaceBets(context.Background(), PlaceBetsInput{
		AccountID: "ACC1",
		DrawLabel: "2026-01-01-kalyan",
		Wagers:    []WagerInput{{GameKind: "jodi", Number: "44", Stake: "10"}},
	})
	if !errors.Is(err, ErrBettingPaused) {
		t.Fatalf("expect ErrBettingPaused, got %v", err)
	}
}

func TestCheckBetLimits(t *testing.T) {
	dec := func(s string) decimal.Decimal {
		d, _ := decimal.NewFromString(s)
		return d
	}
	cases := []struct {
		name    string
		acc     model.Account
		stakes  []string
		prior   string
		total   string
		wantErr bool
	}{
		{"无限额", model.Account{}, []string{"999999"}, "0", "999999", false},
		{"单注限额内", model.Account{BetLimitSingle: 50}, []string{"50", "10"}, "0", "60", false},
		{"单注超限", model.Account{BetLimitSingle: 50}, []string{"50.01"}, "0", "50.01", true},
		{"单期限额内", model.Account{BetLimitDraw: 100}, []string{"40"}, "60", "40", false},
		{"单期超限", model.Account{BetLimitDraw: 100}, []string{"41"}, "60", "41", true},
		{"双限额同时生效", model.Account{BetLimitSingle: 30, BetLimitDraw: 100}, []string{"31"}, "0", "31", true},
	}
	for _, c := range cases {
		stakes := make([]decimal.Decimal, 0, len(c.stakes))
		for _, s := range c.stakes {
			stakes = append(stakes, dec(s))
		}
		err := checkBetLimits(&c.acc, stakes, dec(c.prior), dec(c.total))
		if c.wantErr && !errors.Is(err, ErrBetLimitExceeded) {
			t.Fatalf("%s: expect ErrBetLimitExceeded, got %v", c.name, err)
		}
		if !c.wantErr && err != nil {
			t.Fatalf("%s: unexpected error: %v", c.name, err)
		}
	}
}

// 批内任意一条落单失败，整批回滚：不得扣款、不得提交
func TestPlaceBetsRollsBackOnFault(t *testing.T) {
	config.SetCurrent(nil)
	mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM draw_results").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("FROM accounts").WithArgs("ACC1").WillReturnRows(accountRows("ACC1", 1, 1000))
	mock.ExpectExec("INSERT INTO idempotency_keys").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO bets").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO wallet_ledger").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO bets").WillReturnError(errors.New("insert failed"))
	mock.ExpectRollback()

	_, err := NewBetService().PlaceBets(context.Background(), PlaceBetsInput{
		AccountID: "ACC1",
		DrawLabel: "2026-01-01-kalyan",
		Wagers: []WagerInput{
			{GameKind: "jodi", Number: "44", Stake: "10"},
			{GameKind: "open", Number: "5", Stake: "20"},
		},
		IdempotencyKey: "idem-rollback-1",
		TraceID:        "t1",
	})
	if err == nil {
		t.Fatal("expect error on second insert")
	}
	// 余额更新与提交均不应发生
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// 单期累计限额在事务内按已有注金之和校验
func TestPlaceBetsDrawLimitExceeded(t *testing.T) {
	config.SetCurrent(nil)
	mock := newMockDB(t)

	limited := sqlmock.NewRows(accountColumns).
		AddRow("ACC1", "1234567897", "u_ACC1", int8(1), 1000.0, "", 0.0, 0.0, 0.0, 0.0, 100.0, int8(1), int64(0), int64(0))

	mock.ExpectBegin()
	mock.ExpectQuery("FROM draw_results").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("FROM accounts").WithArgs("ACC1").WillReturnRows(limited)
	mock.ExpectQuery("FROM bets").WithArgs("ACC1", "2026-01-01-kalyan").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(90.0))
	mock.ExpectRollback()

	_, err := NewBetService().PlaceBets(context.Background(), PlaceBetsInput{
		AccountID:      "ACC1",
		DrawLabel:      "2026-01-01-kalyan",
		Wagers:         []WagerInput{{GameKind: "jodi", Number: "44", Stake: "11"}},
		IdempotencyKey: "idem-limit-1",
		TraceID:        "t1",
	})
	if !errors.Is(err, ErrBetLimitExceeded) {
		t.Fatalf("expect ErrBetLimitExceeded, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
