package helper

import (
	"strings"
	"testing"
)

func TestIsValidDrawLabel(t *testing.T) {
	valid := []string{
		"2026-08-31-kalyan",
		"2026-01-01-main_bazar",
		"2026-12-31-Game123",
	}
	for _, s := range valid {
		if !IsValidDrawLabel(s) {
			t.Fatalf("expect valid: %s", s)
		}
	}
	invalid := []string{
		"",
		"2026-08-31",
		"2026-8-31-kalyan",
		"kalyan-2026-08-31",
		"2026-08-31-",
		"2026-08-31-kal yan",
		"2026-08-31-kal-yan",
	}
	for _, s := range invalid {
		if IsValidDrawLabel(s) {
			t.Fatalf("expect invalid: %s", s)
		}
	}
}

func TestIsValidTwoDigitAndOneDigit(t *testing.T) {
	for _, s := range []string{"00", "07", "47", "99"} {
		if !IsValidTwoDigit(s) {
			t.Fatalf("expect valid two digit: %s", s)
		}
	}
	for _, s := range []string{"", "7", "100", "4a", "-1"} {
		if IsValidTwoDigit(s) {
			t.Fatalf("expect invalid two digit: %s", s)
		}
	}
	for _, s := range []string{"0", "9"} {
		if !IsValidOneDigit(s) {
			t.Fatalf("expect valid one digit: %s", s)
		}
	}
	for _, s := range []string{"", "10", "a"} {
		if IsValidOneDigit(s) {
			t.Fatalf("expect invalid one digit: %s", s)
		}
	}
}

func TestValidatePlaceBets(t *testing.T) {
	good := PlaceBetsParsed{
		DrawLabel:      "2026-08-31-kalyan",
		IdempotencyKey: "idem-1",
		Wagers: []WagerParsed{
			{GameKind: "jodi", Number: "47", Stake: "100"},
			{GameKind: "open", Number: "4", Stake: "50.50"},
			{GameKind: "close", Number: "7", Stake: "10"},
		},
	}
	if ok, msg := ValidatePlaceBets(&good); !ok {
		t.Fatalf("expect valid: %s", msg)
	}

	cases := []struct {
		name string
		mut  func(p *PlaceBetsParsed)
	}{
		{"missing idem key", func(p *PlaceBetsParsed) { p.IdempotencyKey = "" }},
		{"bad label", func(p *PlaceBetsParsed) { p.DrawLabel = "kalyan" }},
		{"empty wagers", func(p *PlaceBetsParsed) { p.Wagers = nil }},
		{"jodi single digit", func(p *PlaceBetsParsed) { p.Wagers[0].Number = "4" }},
		{"open two digits", func(p *PlaceBetsParsed) { p.Wagers[1].Number = "47" }},
		{"unknown kind", func(p *PlaceBetsParsed) { p.Wagers[0].GameKind = "middle" }},
		{"bad stake", func(p *PlaceBetsParsed) { p.Wagers[0].Stake = "1.234" }},
		{"empty stake", func(p *PlaceBetsParsed) { p.Wagers[0].Stake = "" }},
	}
	for _, c := range cases {
		p := good
		p.Wagers = append([]WagerParsed(nil), good.Wagers...)
		c.mut(&p)
		if ok, _ := ValidatePlaceBets(&p); ok {
			t.Fatalf("%s: expect invalid", c.name)
		}
	}

	// 批量上限
	big := good
	big.Wagers = nil
	for i := 0; i <= maxWagersPerBatch; i++ {
		big.Wagers = append(big.Wagers, WagerParsed{GameKind: "open", Number: "4", Stake: "1"})
	}
	if ok, msg := ValidatePlaceBets(&big); ok || !strings.Contains(msg, "too many") {
		t.Fatalf("expect batch limit rejection, got ok=%v msg=%s", ok, msg)
	}
}

func TestValidateDeclareDraw(t *testing.T) {
	if ok, msg := ValidateDeclareDraw(&DeclareDrawParsed{DrawLabel: "2026-08-31-kalyan", TwoDigit: "47"}); !ok {
		t.Fatalf("expect valid: %s", msg)
	}
	if ok, msg := ValidateDeclareDraw(&DeclareDrawParsed{DrawLabel: "2026-08-31-kalyan", Open: "4"}); !ok {
		t.Fatalf("expect valid: %s", msg)
	}

	bad := []DeclareDrawParsed{
		{DrawLabel: "", TwoDigit: "47"},
		{DrawLabel: "2026-08-31-kalyan"},                            // 无结果字段
		{DrawLabel: "2026-08-31-kalyan", TwoDigit: "47", Open: "4"}, // 多个结果字段
		{DrawLabel: "2026-08-31-kalyan", TwoDigit: "4"},
		{DrawLabel: "2026-08-31-kalyan", Open: "47"},
		{DrawLabel: "2026-08-31-kalyan", Close: "x"},
	}
	for i, in := range bad {
		b := in
		if ok, _ := ValidateDeclareDraw(&b); ok {
			t.Fatalf("case %d: expect invalid", i)
		}
	}
}

func TestValidateRegister(t *testing.T) {
	if ok, msg := ValidateRegister(&RegisterParsed{Username: "ramesh", Role: "user"}); !ok {
		t.Fatalf("expect valid: %s", msg)
	}
	if ok, msg := ValidateRegister(&RegisterParsed{Username: "d1", Role: "dealer", CommissionRate: "5"}); !ok {
		t.Fatalf("expect valid: %s", msg)
	}
	if ok, msg := ValidateRegister(&RegisterParsed{Username: "x", Role: "user", BetLimitSingle: "500", BetLimitDraw: "5000"}); !ok {
		t.Fatalf("expect valid: %s", msg)
	}

	bad := []RegisterParsed{
		{Username: "", Role: "user"},
		{Username: "x", Role: "admin"},
		{Username: "d1", Role: "dealer", DealerID: "ACC123"}, // 庄家不能再挂靠庄家
		{Username: "x", Role: "user", CommissionRate: "101"},
		{Username: "x", Role: "user", RateTwoDigit: "-1"},
		{Username: "x", Role: "user", RateOneDigit: "abc"},
		{Username: "x", Role: "user", BetLimitSingle: "-1"},
		{Username: "x", Role: "user", BetLimitDraw: "abc"},
	}
	for i, in := range bad {
		b := in
		if ok, _ := ValidateRegister(&b); ok {
			t.Fatalf("case %d: expect invalid", i)
		}
	}
}

func TestValidateTransfer(t *testing.T) {
	if ok, msg := ValidateTransfer(&TransferParsed{ToAccountID: "ACC1", Amount: "100.50"}); !ok {
		t.Fatalf("expect valid: %s", msg)
	}
	bad := []TransferParsed{
		{ToAccountID: "", Amount: "100"},
		{ToAccountID: "ACC1", Amount: ""},
		{ToAccountID: "ACC1", Amount: "1.234"},
		{ToAccountID: "ACC1", Amount: "abc"},
	}
	for i, in := range bad {
		b := in
		if ok, _ := ValidateTransfer(&b); ok {
			t.Fatalf("case %d: expect invalid", i)
		}
	}
}
