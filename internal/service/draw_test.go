package service

import (
	"context"
	"errors"
	"testing"

	infmysql "nx-server/internal/infra/mysql"
	"nx-server/internal/model"
	"nx-server/internal/state"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestMergeOutcomeTwoDigitDerivesHalves(t *testing.T) {
	d := &model.DrawResult{DrawLabel: "2026-08-31-kalyan", DeclareState: state.StateNoResult}
	newly, err := mergeOutcome(d, DeclareInput{DrawLabel: d.DrawLabel, TwoDigit: "47"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.TwoDigit != "47" || d.OneDigitOpen != "4" || d.OneDigitClose != "7" {
		t.Fatalf("derive failed: two=%q open=%q close=%q", d.TwoDigit, d.OneDigitOpen, d.OneDigitClose)
	}
	if len(newly) != 3 {
		t.Fatalf("expect 3 newly resolved kinds, got %v", kindNames(newly))
	}
	if !containsKind(newly, model.GameKindJodi) || !containsKind(newly, model.GameKindOpen) || !containsKind(newly, model.GameKindClose) {
		t.Fatalf("missing kinds: %v", kindNames(newly))
	}
	if d.TwoDigitAt == 0 || d.OneDigitOpenAt == 0 || d.OneDigitCloseAt == 0 {
		t.Fatal("timestamps not set for resolved components")
	}
}

func TestMergeOutcomeHalvesDeriveTwoDigit(t *testing.T) {
	d := &model.DrawResult{DeclareState: state.StateNoResult}

	newly, err := mergeOutcome(d, DeclareInput{Open: "3"})
	if err != nil {
		t.Fatalf("open declare: %v", err)
	}
	if len(newly) != 1 || !containsKind(newly, model.GameKindOpen) {
		t.Fatalf("expect only open resolved, got %v", kindNames(newly))
	}
	if d.TwoDigit != "" {
		t.Fatalf("two_digit must stay unknown, got %q", d.TwoDigit)
	}

	newly, err = mergeOutcome(d, DeclareInput{Close: "9"})
	if err != nil {
		t.Fatalf("close declare: %v", err)
	}
	if d.TwoDigit != "39" {
		t.Fatalf("expect derived two_digit 39, got %q", d.TwoDigit)
	}
	if !containsKind(newly, model.GameKindClose) || !containsKind(newly, model.GameKindJodi) {
		t.Fatalf("expect close+jodi newly resolved, got %v", kindNames(newly))
	}
}

func TestMergeOutcomeIdempotentRedeclare(t *testing.T) {
	d := &model.DrawResult{TwoDigit: "47", OneDigitOpen: "4", OneDigitClose: "7", DeclareState: state.StateFull}

	for _, in := range []DeclareInput{
		{TwoDigit: "47"},
		{Open: "4"},
		{Close: "7"},
	} {
		newly, err := mergeOutcome(d, in)
		if err != nil {
			t.Fatalf("redeclare same value must be no-op: %v", err)
		}
		if len(newly) != 0 {
			t.Fatalf("redeclare same value must resolve nothing, got %v", kindNames(newly))
		}
	}
}

func TestMergeOutcomeConflict(t *testing.T) {
	cases := []struct {
		name string
		d    model.DrawResult
		in   DeclareInput
	}{
		{"two_digit differs", model.DrawResult{TwoDigit: "47"}, DeclareInput{TwoDigit: "48"}},
		{"open differs", model.DrawResult{OneDigitOpen: "4"}, DeclareInput{Open: "5"}},
		{"close differs", model.DrawResult{OneDigitClose: "7"}, DeclareInput{Close: "8"}},
		{"two_digit clashes with known open", model.DrawResult{OneDigitOpen: "5"}, DeclareInput{TwoDigit: "47"}},
		{"two_digit clashes with known close", model.DrawResult{OneDigitClose: "8"}, DeclareInput{TwoDigit: "47"}},
		{"derived two_digit clashes", model.DrawResult{TwoDigit: "47", OneDigitOpen: "4"}, DeclareInput{Close: "9"}},
	}
	for _, c := range cases {
		d := c.d
		if _, err := mergeOutcome(&d, c.in); !errors.Is(err, ErrOutcomeConflict) {
			t.Fatalf("%s: expect ErrOutcomeConflict, got %v", c.name, err)
		}
	}
}

func TestBetWins(t *testing.T) {
	d := &model.DrawResult{TwoDigit: "47", OneDigitOpen: "4", OneDigitClose: "7"}
	cases := []struct {
		kind   int8
		number string
		win    bool
	}{
		{model.GameKindJodi, "47", true},
		{model.GameKindJodi, "74", false},
		{model.GameKindOpen, "4", true},
		{model.GameKindOpen, "7", false},
		{model.GameKindClose, "7", true},
		{model.GameKindClose, "4", false},
	}
	for _, c := range cases {
		b := &model.Bet{GameKind: c.kind, Number: c.number}
		if got := betWins(b, d); got != c.win {
			t.Fatalf("kind=%d number=%s: got %v, want %v", c.kind, c.number, got, c.win)
		}
	}

	// 结果未知的玩法不判中奖
	partial := &model.DrawResult{OneDigitOpen: "4"}
	if betWins(&model.Bet{GameKind: model.GameKindJodi, Number: "47"}, partial) {
		t.Fatal("jodi must not win while two_digit unknown")
	}
	if betWins(&model.Bet{GameKind: model.GameKindClose, Number: "7"}, partial) {
		t.Fatal("close must not win while close digit unknown")
	}
}

func TestStateFromOutcome(t *testing.T) {
	cases := []struct {
		d    model.DrawResult
		want string
	}{
		{model.DrawResult{}, state.StateNoResult},
		{model.DrawResult{OneDigitOpen: "4"}, state.StatePartial},
		{model.DrawResult{OneDigitClose: "7"}, state.StatePartial},
		{model.DrawResult{TwoDigit: "47", OneDigitOpen: "4", OneDigitClose: "7"}, state.StateFull},
	}
	for i, c := range cases {
		if got := stateFromOutcome(&c.d); got != c.want {
			t.Fatalf("case %d: got %s, want %s", i, got, c.want)
		}
	}
}

func TestPayoutRate(t *testing.T) {
	// 账户个性化倍率优先
	acc := &model.Account{RateTwoDigit: 90, RateOneDigit: 9}
	if got := payoutRate(acc, model.GameKindJodi); got != 90 {
		t.Fatalf("jodi custom rate: got %v", got)
	}
	if got := payoutRate(acc, model.GameKindOpen); got != 9 {
		t.Fatalf("open custom rate: got %v", got)
	}

	// 未配置回落平台默认
	def := &model.Account{}
	if got := payoutRate(def, model.GameKindJodi); got != 85 {
		t.Fatalf("jodi default rate: got %v", got)
	}
	if got := payoutRate(def, model.GameKindClose); got != 9.5 {
		t.Fatalf("close default rate: got %v", got)
	}
}

func TestDeclaredComponent(t *testing.T) {
	if c := declaredComponent(DeclareInput{TwoDigit: "47"}); c != "two_digit" {
		t.Fatalf("got %s", c)
	}
	if c := declaredComponent(DeclareInput{Open: "4"}); c != "open" {
		t.Fatalf("got %s", c)
	}
	if c := declaredComponent(DeclareInput{Close: "7"}); c != "close" {
		t.Fatalf("got %s", c)
	}
	if c := declaredComponent(DeclareInput{}); c != "" {
		t.Fatalf("got %s", c)
	}
}

// 返水按用户聚合总注金一次计算一次舍入，入账加锁按账户ID字典序
func TestSettleCommissionsAggregatesRebateAndLocksInOrder(t *testing.T) {
	mock := newMockDB(t)
	ctx := context.Background()

	stakeColumns := []string{"account_id", "stake", "user_rate", "dealer_id", "dealer_rate"}
	stakes := sqlmock.NewRows(stakeColumns)
	// ACC_C：10 笔 0.49，1% —— 聚合后 4.90×1% = 0.049 → 0.05（逐笔舍入会得 0）
	for i := 0; i < 10; i++ {
		stakes.AddRow("ACC_C", 0.49, 1.0, "", 0.0)
	}
	stakes.AddRow("ACC_A", 100.0, 2.0, "", 0.0)
	stakes.AddRow("ACC_B", 50.0, 0.0, "", 0.0) // 比例为0，不返水

	mock.ExpectBegin()
	mock.ExpectQuery("FROM bets b").WithArgs("2026-01-01-kalyan").WillReturnRows(stakes)

	// 字典序：先 ACC_A 后 ACC_C（与转账加锁顺序一致）
	mock.ExpectQuery("FROM accounts").WithArgs("ACC_A").WillReturnRows(accountRows("ACC_A", 1, 10))
	mock.ExpectExec("UPDATE accounts").WithArgs(12.0, sqlmock.AnyArg(), "ACC_A").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO wallet_ledger").
		WithArgs("ACC_A", sqlmock.AnyArg(), sqlmock.AnyArg(), 2.0, 10.0, 12.0,
			"2026-01-01-kalyan", "2026-01-01-kalyan", "stake rebate", "t1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectQuery("FROM accounts").WithArgs("ACC_C").WillReturnRows(accountRows("ACC_C", 1, 5))
	mock.ExpectExec("UPDATE accounts").WithArgs(5.05, sqlmock.AnyArg(), "ACC_C").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO wallet_ledger").
		WithArgs("ACC_C", sqlmock.AnyArg(), sqlmock.AnyArg(), 0.05, 5.0, 5.05,
			"2026-01-01-kalyan", "2026-01-01-kalyan", "stake rebate", "t1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectRollback()

	tx, err := infmysql.SQLX().BeginTxx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	svc := &drawService{}
	commissions, rebates, err := svc.settleCommissions(ctx, tx, "2026-01-01-kalyan", "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if commissions != 0 || rebates != 2 {
		t.Fatalf("expect 0 commissions / 2 rebates, got %d / %d", commissions, rebates)
	}
	_ = tx.Rollback()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
