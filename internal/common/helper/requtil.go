package helper

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"nx-server/internal/config"

	beegocontext "github.com/beego/beego/v2/server/web/context"
)

// IsJSONContentType 判断是否为 JSON 请求
func IsJSONContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.Contains(ct, "json")
}

// 金额格式校验：非负，最多两位小数（预编译正则）
var moneyRe = regexp.MustCompile(`^(?:0|[1-9]\d*)(?:\.\d{1,2})?$`)

// IsMoneyFormat 判断金额格式
func IsMoneyFormat(s string) bool {
	return moneyRe.MatchString(strings.TrimSpace(s))
}

// 期号标签格式：{YYYY-MM-DD}-{gameName}（预编译正则）
var drawLabelRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}-[A-Za-z0-9_]+$`)

// IsValidDrawLabel 判断期号标签格式
func IsValidDrawLabel(s string) bool {
	return drawLabelRe.MatchString(strings.TrimSpace(s))
}

// IsValidTwoDigit 两位数结果："00".."99"（必须恰好两个数字字符，保留前导零）
func IsValidTwoDigit(s string) bool {
	if len(s) != 2 {
		return false
	}
	return s[0] >= '0' && s[0] <= '9' && s[1] >= '0' && s[1] <= '9'
}

// IsValidOneDigit 单数结果："0".."9"
func IsValidOneDigit(s string) bool {
	return len(s) == 1 && s[0] >= '0' && s[0] <= '9'
}

// 默认输入保护参数
const (
	defaultJSONMaxBytes int64         = 1 << 20 // 1MB
	defaultParseTimeout time.Duration = 1 * time.Second

	// 单次批量下注的注单数量上限（可由阈值配置覆盖）
	maxWagersPerBatch = 100
)

type deadlineReader struct {
	r        io.Reader
	deadline time.Time
}

func (dr *deadlineReader) Read(p []byte) (int, error) {
	if time.Now().After(dr.deadline) {
		return 0, fmt.Errorf("read timeout")
	}
	return dr.r.Read(p)
}

// jsonBodyReader 在 JSON 分支下为请求体增加大小限制与解析超时保护
func jsonBodyReader(ctx *beegocontext.Context) io.Reader {
	lr := io.LimitReader(ctx.Request.Body, defaultJSONMaxBytes)
	return &deadlineReader{r: lr, deadline: time.Now().Add(defaultParseTimeout)}
}

// GetTraceID 统一提取 trace_id：优先从中间件注入的数据取，其次从常见请求头降级
func GetTraceID(ctx *beegocontext.Context) string {
	if v := ctx.Input.GetData("trace_id"); v != nil {
		return fmt.Sprint(v)
	}
	if h := strings.TrimSpace(ctx.Input.Header("X-Trace-ID")); h != "" {
		return h
	}
	if h := strings.TrimSpace(ctx.Input.Header("Trace-Id")); h != "" {
		return h
	}
	return ""
}

// parseByContentType 按 Content-Type 选择解析函数，减少重复 if/else 分支
func parseByContentType[T any](ctx *beegocontext.Context,
	jsonParser func(io.Reader) (T, bool, string),
	formParser func(*beegocontext.Context) (T, bool, string),
) (T, bool, string) {
	ct := ctx.Input.Header("Content-Type")
	if IsJSONContentType(ct) {
		return jsonParser(jsonBodyReader(ctx))
	}
	return formParser(ctx)
}

// -------- PlaceBets helpers --------

// WagerParsed 单条注单入参
type WagerParsed struct {
	GameKind string `json:"game_kind"` // jodi | open | close
	Number   string `json:"number"`    // 两位数 "00".."99" 或单数 "0".."9"
	Stake    string `json:"stake"`     // 注金（字符串金额）
}

// PlaceBetsParsed 批量下注入参（与控制器/服务层解耦）
type PlaceBetsParsed struct {
	DrawLabel      string        `json:"draw_label"`
	Wagers         []WagerParsed `json:"wagers"`
	IdempotencyKey string        `json:"idempotency_key"`
}

// ParsePlaceBetsFromJSON 解析 JSON 到 PlaceBetsParsed。失败返回 false 与错误消息。
func ParsePlaceBetsFromJSON(r io.Reader) (PlaceBetsParsed, bool, string) {
	var out PlaceBetsParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return PlaceBetsParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

// ParsePlaceBetsFromForm 从表单读取字段（表单形式只支持单条注单）
func ParsePlaceBetsFromForm(ctx *beegocontext.Context) (PlaceBetsParsed, bool, string) {
	var out PlaceBetsParsed
	out.DrawLabel = strings.TrimSpace(ctx.Input.Query("draw_label"))
	out.IdempotencyKey = strings.TrimSpace(ctx.Input.Query("idempotency_key"))

	w := WagerParsed{
		GameKind: strings.TrimSpace(ctx.Input.Query("game_kind")),
		Number:   strings.TrimSpace(ctx.Input.Query("number")),
		Stake:    strings.TrimSpace(ctx.Input.Query("stake")),
	}
	if w.GameKind == "" && w.Number == "" && w.Stake == "" {
		return PlaceBetsParsed{}, false, "missing wager fields: game_kind/number/stake"
	}
	out.Wagers = []WagerParsed{w}

	return out, true, ""
}

// ValidatePlaceBets 对通用字段做二次校验（适用于 JSON 与 FORM）。失败返回 false 与错误消息。
func ValidatePlaceBets(in *PlaceBetsParsed) (bool, string) {
	in.DrawLabel = strings.TrimSpace(in.DrawLabel)
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)

	if in.DrawLabel == "" || in.IdempotencyKey == "" {
		return false, "missing required fields: draw_label/idempotency_key"
	}
	if !IsValidDrawLabel(in.DrawLabel) {
		return false, "draw_label must match {YYYY-MM-DD}-{gameName}"
	}
	if len(in.DrawLabel) > 64 || len(in.IdempotencyKey) > 64 {
		return false, "invalid request"
	}
	if len(in.Wagers) == 0 {
		return false, "wagers must not be empty"
	}
	if max := int(config.GetThreshold("max_wagers_per_batch", maxWagersPerBatch)); len(in.Wagers) > max {
		return false, fmt.Sprintf("too many wagers in one batch (max %d)", max)
	}

	for i := range in.Wagers {
		w := &in.Wagers[i]
		w.GameKind = strings.ToLower(strings.TrimSpace(w.GameKind))
		w.Number = strings.TrimSpace(w.Number)
		w.Stake = strings.TrimSpace(w.Stake)

		switch w.GameKind {
		case "jodi":
			if !IsValidTwoDigit(w.Number) {
				return false, fmt.Sprintf("wagers[%d]: jodi number must be 00..99", i)
			}
		case "open", "close":
			if !IsValidOneDigit(w.Number) {
				return false, fmt.Sprintf("wagers[%d]: %s number must be 0..9", i, w.GameKind)
			}
		default:
			return false, fmt.Sprintf("wagers[%d]: game_kind must be jodi|open|close", i)
		}

		if w.Stake == "" || !IsMoneyFormat(w.Stake) {
			return false, fmt.Sprintf("wagers[%d]: stake must be numeric with up to 2 decimals", i)
		}
	}

	return true, ""
}

// ParseAndValidatePlaceBets 按 Content-Type 自动解析并做统一校验
func ParseAndValidatePlaceBets(ctx *beegocontext.Context) (PlaceBetsParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParsePlaceBetsFromJSON, ParsePlaceBetsFromForm)
	if !ok {
		return PlaceBetsParsed{}, false, msg
	}
	if ok, msg := ValidatePlaceBets(&out); !ok {
		return PlaceBetsParsed{}, false, msg
	}
	return out, true, ""
}

// -------- Transfer helpers --------

type TransferParsed struct {
	ToAccountID string `json:"to_account_id"`
	Amount      string `json:"amount"`
	Remark      string `json:"remark"`
}

func ParseTransferFromJSON(r io.Reader) (TransferParsed, bool, string) {
	var out TransferParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return TransferParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

func ParseTransferFromForm(ctx *beegocontext.Context) (TransferParsed, bool, string) {
	var out TransferParsed
	out.ToAccountID = strings.TrimSpace(ctx.Input.Query("to_account_id"))
	out.Amount = strings.TrimSpace(ctx.Input.Query("amount"))
	out.Remark = strings.TrimSpace(ctx.Input.Query("remark"))
	return out, true, ""
}

func ValidateTransfer(in *TransferParsed) (bool, string) {
	in.ToAccountID = strings.TrimSpace(in.ToAccountID)
	in.Amount = strings.TrimSpace(in.Amount)

	if in.ToAccountID == "" {
		return false, "to_account_id required"
	}
	if len(in.ToAccountID) > 64 || len(in.Remark) > 256 {
		return false, "invalid request"
	}
	if in.Amount == "" || !IsMoneyFormat(in.Amount) {
		return false, "amount must be numeric with up to 2 decimals"
	}
	return true, ""
}

// ParseAndValidateTransfer 按 Content-Type 自动解析并校验
func ParseAndValidateTransfer(ctx *beegocontext.Context) (TransferParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseTransferFromJSON, ParseTransferFromForm)
	if !ok {
		return TransferParsed{}, false, msg
	}
	if ok, msg := ValidateTransfer(&out); !ok {
		return TransferParsed{}, false, msg
	}
	return out, true, ""
}

// -------- DeclareDraw helpers --------

// DeclareDrawParsed 开奖声明入参
// two_digit / open / close 三个结果字段必须恰好传一个
type DeclareDrawParsed struct {
	DrawLabel string `json:"draw_label"`
	TwoDigit  string `json:"two_digit"`
	Open      string `json:"open"`
	Close     string `json:"close"`
}

func ParseDeclareDrawFromJSON(r io.Reader) (DeclareDrawParsed, bool, string) {
	var out DeclareDrawParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return DeclareDrawParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

func ParseDeclareDrawFromForm(ctx *beegocontext.Context) (DeclareDrawParsed, bool, string) {
	var out DeclareDrawParsed
	out.DrawLabel = strings.TrimSpace(ctx.Input.Query("draw_label"))
	out.TwoDigit = strings.TrimSpace(ctx.Input.Query("two_digit"))
	out.Open = strings.TrimSpace(ctx.Input.Query("open"))
	out.Close = strings.TrimSpace(ctx.Input.Query("close"))
	return out, true, ""
}

func ValidateDeclareDraw(in *DeclareDrawParsed) (bool, string) {
	in.DrawLabel = strings.TrimSpace(in.DrawLabel)
	in.TwoDigit = strings.TrimSpace(in.TwoDigit)
	in.Open = strings.TrimSpace(in.Open)
	in.Close = strings.TrimSpace(in.Close)

	if in.DrawLabel == "" {
		return false, "draw_label required"
	}
	if !IsValidDrawLabel(in.DrawLabel) {
		return false, "draw_label must match {YYYY-MM-DD}-{gameName}"
	}
	if len(in.DrawLabel) > 64 {
		return false, "invalid request"
	}

	// 恰好一个结果字段
	set := 0
	if in.TwoDigit != "" {
		set++
	}
	if in.Open != "" {
		set++
	}
	if in.Close != "" {
		set++
	}
	if set != 1 {
		return false, "exactly one of two_digit/open/close must be set"
	}

	if in.TwoDigit != "" && !IsValidTwoDigit(in.TwoDigit) {
		return false, "two_digit must be 00..99"
	}
	if in.Open != "" && !IsValidOneDigit(in.Open) {
		return false, "open must be 0..9"
	}
	if in.Close != "" && !IsValidOneDigit(in.Close) {
		return false, "close must be 0..9"
	}

	return true, ""
}

// ParseAndValidateDeclareDraw 按 Content-Type 自动解析并校验
func ParseAndValidateDeclareDraw(ctx *beegocontext.Context) (DeclareDrawParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseDeclareDrawFromJSON, ParseDeclareDrawFromForm)
	if !ok {
		return DeclareDrawParsed{}, false, msg
	}
	if ok, msg := ValidateDeclareDraw(&out); !ok {
		return DeclareDrawParsed{}, false, msg
	}
	return out, true, ""
}

// -------- Approval helpers --------

type ApproveParsed struct {
	Kind string `json:"kind"` // prize | commission | topup
	ID   string `json:"id"`
	// 仅 topup 的拒绝操作使用
	Reason string `json:"reason"`
}

func ParseApproveFromJSON(r io.Reader) (ApproveParsed, bool, string) {
	var out ApproveParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return ApproveParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

func ParseApproveFromForm(ctx *beegocontext.Context) (ApproveParsed, bool, string) {
	var out ApproveParsed
	out.Kind = strings.TrimSpace(ctx.Input.Query("kind"))
	out.ID = strings.TrimSpace(ctx.Input.Query("id"))
	out.Reason = strings.TrimSpace(ctx.Input.Query("reason"))
	return out, true, ""
}

func ValidateApprove(in *ApproveParsed) (bool, string) {
	in.Kind = strings.ToLower(strings.TrimSpace(in.Kind))
	in.ID = strings.TrimSpace(in.ID)

	if in.Kind != "prize" && in.Kind != "commission" && in.Kind != "topup" {
		return false, "kind must be prize|commission|topup"
	}
	if in.ID == "" {
		return false, "id required"
	}
	if len(in.ID) > 64 || len(in.Reason) > 256 {
		return false, "invalid request"
	}
	return true, ""
}

// ParseAndValidateApprove 按 Content-Type 自动解析并校验
func ParseAndValidateApprove(ctx *beegocontext.Context) (ApproveParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseApproveFromJSON, ParseApproveFromForm)
	if !ok {
		return ApproveParsed{}, false, msg
	}
	if ok, msg := ValidateApprove(&out); !ok {
		return ApproveParsed{}, false, msg
	}
	return out, true, ""
}

// -------- Topup helpers --------

type TopupParsed struct {
	Amount  string `json:"amount"`
	Channel string `json:"channel"`
}

func ParseTopupFromJSON(r io.Reader) (TopupParsed, bool, string) {
	var out TopupParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return TopupParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

func ParseTopupFromForm(ctx *beegocontext.Context) (TopupParsed, bool, string) {
	var out TopupParsed
	out.Amount = strings.TrimSpace(ctx.Input.Query("amount"))
	out.Channel = strings.TrimSpace(ctx.Input.Query("channel"))
	return out, true, ""
}

func ValidateTopup(in *TopupParsed) (bool, string) {
	in.Amount = strings.TrimSpace(in.Amount)
	in.Channel = strings.TrimSpace(in.Channel)

	if in.Amount == "" || !IsMoneyFormat(in.Amount) {
		return false, "amount must be numeric with up to 2 decimals"
	}
	if len(in.Channel) > 64 {
		return false, "invalid request"
	}
	return true, ""
}

// ParseAndValidateTopup 按 Content-Type 自动解析并校验
func ParseAndValidateTopup(ctx *beegocontext.Context) (TopupParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseTopupFromJSON, ParseTopupFromForm)
	if !ok {
		return TopupParsed{}, false, msg
	}
	if ok, msg := ValidateTopup(&out); !ok {
		return TopupParsed{}, false, msg
	}
	return out, true, ""
}

// -------- Register helpers --------

type RegisterParsed struct {
	Username       string `json:"username"`
	Role           string `json:"role"` // user | dealer
	DealerID       string `json:"dealer_id"`
	CommissionRate string `json:"commission_rate"`
	RateTwoDigit   string `json:"rate_two_digit"`
	RateOneDigit   string `json:"rate_one_digit"`
	BetLimitSingle string `json:"bet_limit_single"`
	BetLimitDraw   string `json:"bet_limit_draw"`
}

func ParseRegisterFromJSON(r io.Reader) (RegisterParsed, bool, string) {
	var out RegisterParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return RegisterParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

func ParseRegisterFromForm(ctx *beegocontext.Context) (RegisterParsed, bool, string) {
	var out RegisterParsed
	out.Username = strings.TrimSpace(ctx.Input.Query("username"))
	out.Role = strings.TrimSpace(ctx.Input.Query("role"))
	out.DealerID = strings.TrimSpace(ctx.Input.Query("dealer_id"))
	out.CommissionRate = strings.TrimSpace(ctx.Input.Query("commission_rate"))
	out.RateTwoDigit = strings.TrimSpace(ctx.Input.Query("rate_two_digit"))
	out.RateOneDigit = strings.TrimSpace(ctx.Input.Query("rate_one_digit"))
	out.BetLimitSingle = strings.TrimSpace(ctx.Input.Query("bet_limit_single"))
	out.BetLimitDraw = strings.TrimSpace(ctx.Input.Query("bet_limit_draw"))
	return out, true, ""
}

// validateOptionalRate 可选费率字段：空串跳过，非空须为 0..100 的数字
func validateOptionalRate(name, s string) (bool, string) {
	if s == "" {
		return true, ""
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || v > 100 {
		return false, name + " must be a number in [0,100]"
	}
	return true, ""
}

func ValidateRegister(in *RegisterParsed) (bool, string) {
	in.Username = strings.TrimSpace(in.Username)
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))

	if in.Username == "" {
		return false, "username required"
	}
	if len(in.Username) > 64 || len(in.DealerID) > 64 {
		return false, "invalid request"
	}
	if in.Role != "user" && in.Role != "dealer" {
		return false, "role must be user|dealer"
	}
	if in.Role == "dealer" && in.DealerID != "" {
		return false, "dealer cannot belong to another dealer"
	}

	if ok, msg := validateOptionalRate("commission_rate", in.CommissionRate); !ok {
		return false, msg
	}
	// 派彩倍率上限放宽（两位数默认 85）
	for _, p := range []struct{ name, val string }{
		{"rate_two_digit", in.RateTwoDigit},
		{"rate_one_digit", in.RateOneDigit},
	} {
		if p.val == "" {
			continue
		}
		v, err := strconv.ParseFloat(p.val, 64)
		if err != nil || v < 0 || v > 1000 {
			return false, p.name + " must be a number in [0,1000]"
		}
	}

	// 限额字段：空串=不限，非空须为非负数字
	for _, p := range []struct{ name, val string }{
		{"bet_limit_single", in.BetLimitSingle},
		{"bet_limit_draw", in.BetLimitDraw},
	} {
		if p.val == "" {
			continue
		}
		v, err := strconv.ParseFloat(p.val, 64)
		if err != nil || v < 0 {
			return false, p.name + " must be a non-negative number"
		}
	}

	return true, ""
}

// ParseAndValidateRegister 按 Content-Type 自动解析并校验
func ParseAndValidateRegister(ctx *beegocontext.Context) (RegisterParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseRegisterFromJSON, ParseRegisterFromForm)
	if !ok {
		return RegisterParsed{}, false, msg
	}
	if ok, msg := ValidateRegister(&out); !ok {
		return RegisterParsed{}, false, msg
	}
	return out, true, ""
}
