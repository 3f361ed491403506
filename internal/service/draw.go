package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"nx-server/common"
	"nx-server/common/constant"
	chelper "nx-server/common/helper"
	"nx-server/internal/config"
	infmysql "nx-server/internal/infra/mysql"
	infrds "nx-server/internal/infra/redis"
	"nx-server/internal/metrics"
	"nx-server/internal/model"
	"nx-server/internal/state"

	"github.com/jmoiron/sqlx"
	decimal "github.com/shopspring/decimal"
)

// DeclareInput 开奖声明入参
// TwoDigit / Open / Close 恰好一个非空（API层已校验）
type DeclareInput struct {
	DrawLabel string
	TwoDigit  string
	Open      string
	Close     string
	Operator  string // 操作者（admin账户ID或feed标识）
	Source    string // api | mq
	TraceID   string
}

type DeclareOutput struct {
	DrawLabel         string `json:"draw_label"`
	State             string `json:"state"`
	TwoDigit          string `json:"two_digit,omitempty"`
	Open              string `json:"open,omitempty"`
	Close             string `json:"close,omitempty"`
	SettledBets       int    `json:"settled_bets"`
	WonBets           int    `json:"won_bets"`
	PrizesStaged      int    `json:"prizes_staged"`
	CommissionsStaged int    `json:"commissions_staged"`
	RebatesPaid       int    `json:"rebates_paid"`
}

type DrawService interface {
	DeclareDraw(ctx context.Context, in DeclareInput) (*DeclareOutput, error)
}

type drawService struct{}

func NewDrawService() DrawService { return &drawService{} }

var (
	ErrBadRequest      = errors.New("bad request")
	ErrOutcomeConflict = errors.New("declared outcome conflicts with existing value")
)

// DeclareDraw 处理开奖声明主流程：
// 合并结果组件（两位数与两个单数互相推导）、推进声明状态机、
// 结算新确定玩法的待结算注单（奖金单待审批）、两位数首次确定时
// 计算庄家佣金（待审批）与用户返水（即时入账），全程单事务
func (s *drawService) DeclareDraw(ctx context.Context, in DeclareInput) (*DeclareOutput, error) {
	component := declaredComponent(in)
	if in.DrawLabel == "" || component == "" {
		fmt.Printf("[Draw] 参数校验失败: draw_label=%s, trace_id=%s\n", in.DrawLabel, in.TraceID)
		return nil, ErrBadRequest
	}

	fmt.Printf("[Draw] 收到开奖声明: draw_label=%s, component=%s, two_digit=%s, open=%s, close=%s, source=%s, trace_id=%s\n",
		in.DrawLabel, component, in.TwoDigit, in.Open, in.Close, in.Source, in.TraceID)

	// 指标：在输入校验通过后开始计时
	start := time.Now()
	resultLabel := "fail"
	defer func() { metrics.RecordDraw(resultLabel, component, start) }()

	tx, err := infmysql.SQLX().BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// 首次声明建期（并发建期的唯一键冲突视为已建）
	if err := model.EnsureDraw(ctx, tx, in.DrawLabel, state.StateNoResult, in.TraceID); err != nil {
		if !isMySQLDuplicateKeyError(err) {
			return nil, err
		}
	}

	// 加锁：同一期的并发声明串行执行，结算期间持有行锁
	d, err := model.GetDrawForUpdate(ctx, tx, in.DrawLabel)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBadRequest
		}
		return nil, err
	}

	prevState := d.DeclareState
	fmt.Printf("[Draw] 当前状态: state=%s, two_digit=%q, open=%q, close=%q, draw_label=%s, trace_id=%s\n",
		prevState, d.TwoDigit, d.OneDigitOpen, d.OneDigitClose, in.DrawLabel, in.TraceID)

	// 合并声明值并推导缺失组件；返回本次新确定的玩法集合
	newly, err := mergeOutcome(d, in)
	if err != nil {
		fmt.Printf("[Draw] 结果冲突: draw_label=%s, component=%s, error=%v, trace_id=%s\n",
			in.DrawLabel, component, err, in.TraceID)
		return nil, err
	}

	// 状态机校验 + 按合并后字段计算实际状态
	evt := componentEvent(component)
	if _, err := state.NextState(prevState, evt); err != nil {
		return nil, err
	}
	d.DeclareState = stateFromOutcome(d)

	// 重复声明同一值：安全幂等空操作
	if len(newly) == 0 {
		fmt.Printf("[Draw] 重复声明相同结果，跳过: draw_label=%s, component=%s, trace_id=%s\n",
			in.DrawLabel, component, in.TraceID)
		resultLabel = "success_idempotent"
		return &DeclareOutput{
			DrawLabel: in.DrawLabel,
			State:     d.DeclareState,
			TwoDigit:  d.TwoDigit,
			Open:      d.OneDigitOpen,
			Close:     d.OneDigitClose,
		}, nil
	}

	if err := model.UpdateDrawOutcome(ctx, tx, d); err != nil {
		return nil, err
	}

	// 审计事件
	aud := &model.DrawDeclareAudit{
		DrawLabel: in.DrawLabel,
		EventType: componentEventCode(component),
		PrevState: prevState,
		NextState: d.DeclareState,
		Operator:  in.Operator,
		Source:    in.Source,
		Payload: toJSON(map[string]any{
			"two_digit": d.TwoDigit,
			"open":      d.OneDigitOpen,
			"close":     d.OneDigitClose,
			"newly":     kindNames(newly),
		}),
		TraceID: in.TraceID,
	}
	if err := aud.Insert(ctx, tx); err != nil {
		return nil, err
	}

	// 结算本次新确定玩法的待结算注单
	settled, won, prizes, err := s.settleKinds(ctx, tx, d, newly, in.TraceID)
	if err != nil {
		return nil, err
	}

	// 两位数结果在本次确定时计算佣金与返水
	// （佣金单存在性为重放兜底，正常路径由 newly 判定保证恰好执行一次）
	commissions, rebates := 0, 0
	if containsKind(newly, model.GameKindJodi) {
		exists, err := model.CommissionExistsByDraw(ctx, tx, in.DrawLabel)
		if err != nil {
			return nil, err
		}
		if !exists {
			commissions, rebates, err = s.settleCommissions(ctx, tx, in.DrawLabel, in.TraceID)
			if err != nil {
				return nil, err
			}
		} else {
			fmt.Printf("[Draw] 本期佣金单已存在，跳过佣金与返水计算: draw_label=%s, trace_id=%s\n",
				in.DrawLabel, in.TraceID)
		}
	}

	// Outbox 消息（事务内写入，确保与数据库状态一致）
	if err := model.CreateOutbox(ctx, tx, "draw_declared", in.DrawLabel+":"+component, map[string]any{
		"event":      "draw_declared",
		"draw_label": in.DrawLabel,
		"component":  component,
		"state":      d.DeclareState,
		"two_digit":  d.TwoDigit,
		"open":       d.OneDigitOpen,
		"close":      d.OneDigitClose,
		"trace_id":   in.TraceID,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		fmt.Printf("[Draw] 提交事务失败: draw_label=%s, error=%v, trace_id=%s\n",
			in.DrawLabel, err, in.TraceID)
		return nil, err
	}

	metrics.RecordSettledBets("won", won)
	metrics.RecordSettledBets("lost", settled-won)

	// 将最新结果写入 Redis，供查询接口快速返回
	if r := infrds.Client(); r != nil {
		val := map[string]any{
			"draw_label": in.DrawLabel,
			"state":      d.DeclareState,
			"two_digit":  d.TwoDigit,
			"open":       d.OneDigitOpen,
			"close":      d.OneDigitClose,
		}
		if b, e := json.Marshal(val); e == nil {
			_ = r.Set(ctx, infrds.DrawResultKey(in.DrawLabel), b, 10*time.Minute).Err()
		}
	}

	resultLabel = "success"
	fmt.Printf("[Draw] 开奖声明完成: draw_label=%s, state=%s, settled=%d, won=%d, prizes=%d, commissions=%d, rebates=%d, trace_id=%s\n",
		in.DrawLabel, d.DeclareState, settled, won, prizes, commissions, rebates, in.TraceID)

	return &DeclareOutput{
		DrawLabel:         in.DrawLabel,
		State:             d.DeclareState,
		TwoDigit:          d.TwoDigit,
		Open:              d.OneDigitOpen,
		Close:             d.OneDigitClose,
		SettledBets:       settled,
		WonBets:           won,
		PrizesStaged:      prizes,
		CommissionsStaged: commissions,
		RebatesPaid:       rebates,
	}, nil
}

// settleKinds 将新确定玩法的全部待结算注单置为 won/lost，并为中奖注单生成待审批奖金单。
// 奖金不入余额，审批通过后才记账。
func (s *drawService) settleKinds(ctx context.Context, tx *sqlx.Tx, d *model.DrawResult, newly []int8, traceID string) (settled, won, prizes int, err error) {
	bets, err := model.ListPendingByDrawForUpdate(ctx, tx, d.DrawLabel, newly)
	if err != nil {
		return 0, 0, 0, err
	}
	fmt.Printf("[Draw] 找到 %d 个待结算注单: draw_label=%s, kinds=%v, trace_id=%s\n",
		len(bets), d.DrawLabel, kindNames(newly), traceID)

	// 账户派彩倍率缓存（同一账户多注单只查一次）
	rateCache := map[string]*model.Account{}

	for i := range bets {
		b := bets[i]
		isWin := betWins(&b, d)

		status := int8(model.BetStatusLost)
		if isWin {
			status = model.BetStatusWon
		}
		if err := model.UpdateBetStatus(ctx, tx, b.BetID, status); err != nil {
			return 0, 0, 0, err
		}
		settled++
		if !isWin {
			continue
		}
		won++

		acc, ok := rateCache[b.AccountID]
		if !ok {
			acc, err = model.GetAccountByID(ctx, tx, b.AccountID)
			if err != nil {
				return 0, 0, 0, err
			}
			rateCache[b.AccountID] = acc
		}

		// 派彩 = 注金 × 倍率（账户个性化倍率优先，0=平台默认）
		rate := payoutRate(acc, b.GameKind)
		amountDec := decimal.NewFromFloat(b.Stake).Mul(decimal.NewFromFloat(rate)).Round(2)

		prize := &model.Prize{
			PrizeID:   newID(idPrefixPrize),
			BetID:     b.BetID,
			AccountID: b.AccountID,
			DrawLabel: d.DrawLabel,
			GameKind:  b.GameKind,
			Amount:    amountDec.InexactFloat64(),
			Status:    model.PrizeStatusPending,
			TraceID:   traceID,
		}
		if err := prize.Insert(ctx, tx); err != nil {
			return 0, 0, 0, err
		}
		prizes++

		if err := model.CreateOutbox(ctx, tx, "prize_staged", prize.PrizeID, map[string]any{
			"event":      "prize_staged",
			"prize_id":   prize.PrizeID,
			"bet_id":     b.BetID,
			"account_id": b.AccountID,
			"draw_label": d.DrawLabel,
			"amount":     chelper.TrimDecimal(amountDec),
			"trace_id":   traceID,
		}); err != nil {
			return 0, 0, 0, err
		}
	}
	return settled, won, prizes, nil
}

// settleCommissions 两位数结果确定时的一次性佣金与返水计算：
// 佣金：按庄家聚合名下用户本期总注金 × 庄家比例，生成待审批佣金单
// 返水：按用户本期总注金 × 用户比例，即时入余额并记账（每账户只锁一次）
func (s *drawService) settleCommissions(ctx context.Context, tx *sqlx.Tx, drawLabel, traceID string) (commissions, rebates int, err error) {
	rows, err := model.ListStakesByDraw(ctx, tx, drawLabel)
	if err != nil {
		return 0, 0, err
	}
	if len(rows) == 0 {
		return 0, 0, nil
	}

	// 按庄家聚合
	type dealerAgg struct {
		totalStake decimal.Decimal
		rate       float64
	}
	dealers := map[string]*dealerAgg{}
	// 按用户聚合返水（先聚合总注金，支付时一次计算一次舍入）
	type rebateAgg struct {
		totalStake decimal.Decimal
		rate       float64
	}
	users := map[string]*rebateAgg{}

	hundred := decimal.NewFromInt(100)
	for _, r := range rows {
		stakeDec := decimal.NewFromFloat(r.Stake)

		if r.DealerID != "" && r.DealerRate > 0 {
			agg, ok := dealers[r.DealerID]
			if !ok {
				agg = &dealerAgg{rate: r.DealerRate}
				dealers[r.DealerID] = agg
			}
			agg.totalStake = agg.totalStake.Add(stakeDec)
		}

		if r.UserRate > 0 {
			agg, ok := users[r.AccountID]
			if !ok {
				agg = &rebateAgg{rate: r.UserRate}
				users[r.AccountID] = agg
			}
			agg.totalStake = agg.totalStake.Add(stakeDec)
		}
	}

	// 庄家佣金单（待审批），按庄家ID字典序生成
	dealerIDs := make([]string, 0, len(dealers))
	for id := range dealers {
		dealerIDs = append(dealerIDs, id)
	}
	sort.Strings(dealerIDs)
	for _, dealerID := range dealerIDs {
		agg := dealers[dealerID]
		amountDec := agg.totalStake.Mul(decimal.NewFromFloat(agg.rate)).Div(hundred).Round(2)
		c := &model.Commission{
			CommissionID: newID(idPrefixCommission),
			DealerID:     dealerID,
			DrawLabel:    drawLabel,
			TotalStake:   agg.totalStake.Round(2).InexactFloat64(),
			Rate:         agg.rate,
			Amount:       amountDec.InexactFloat64(),
			Status:       model.CommissionStatusPending,
			TraceID:      traceID,
		}
		if err := c.Insert(ctx, tx); err != nil {
			return 0, 0, err
		}
		commissions++
		fmt.Printf("[Draw] 生成庄家佣金单: commission_id=%s, dealer_id=%s, total_stake=%s, amount=%s, trace_id=%s\n",
			c.CommissionID, dealerID, chelper.TrimDecimal(agg.totalStake), chelper.TrimDecimal(amountDec), traceID)
	}

	// 用户返水（即时入账，每账户锁一次）
	// 按账户ID字典序加锁，与转账的加锁顺序一致，避免交叉等待
	userIDs := make([]string, 0, len(users))
	for id := range users {
		userIDs = append(userIDs, id)
	}
	sort.Strings(userIDs)
	for _, accountID := range userIDs {
		agg := users[accountID]
		// 返水 = 该用户本期总注金 × 比例，聚合后一次舍入
		rebateDec := agg.totalStake.Mul(decimal.NewFromFloat(agg.rate)).Div(hundred).Round(2)
		if rebateDec.LessThanOrEqual(decimal.Zero) {
			continue
		}
		acc, err := model.GetAccountForUpdate(ctx, tx, accountID)
		if err != nil {
			return 0, 0, err
		}
		beforeDec := decimal.NewFromFloat(acc.Balance)
		afterDec := beforeDec.Add(rebateDec).Round(2)

		if err := model.UpdateAccountBalance(ctx, tx, accountID, afterDec.InexactFloat64()); err != nil {
			return 0, 0, err
		}
		ledger := &model.WalletLedger{
			AccountID:    accountID,
			BizType:      constant.LedgerRebate,
			Amount:       rebateDec.InexactFloat64(),
			BeforeAmount: beforeDec.Round(2).InexactFloat64(),
			AfterAmount:  afterDec.InexactFloat64(),
			RefID:        drawLabel,
			DrawLabel:    drawLabel,
			Remark:       "stake rebate",
			TraceID:      traceID,
		}
		if err := ledger.Insert(ctx, tx); err != nil {
			return 0, 0, err
		}
		rebates++
	}

	return commissions, rebates, nil
}

// mergeOutcome 将本次声明合并进期记录并互相推导：
// - 两位数确定时拆出两个单数（十位=开、个位=收）
// - 两个单数齐备时拼出两位数
// 返回本次新确定的玩法集合；与已有值冲突报 ErrOutcomeConflict。
func mergeOutcome(d *model.DrawResult, in DeclareInput) ([]int8, error) {
	now := time.Now().UnixMilli()
	var newly []int8

	setOpen := func(v string) error {
		if d.OneDigitOpen != "" {
			if d.OneDigitOpen != v {
				return ErrOutcomeConflict
			}
			return nil
		}
		d.OneDigitOpen = v
		d.OneDigitOpenAt = now
		newly = append(newly, model.GameKindOpen)
		return nil
	}
	setClose := func(v string) error {
		if d.OneDigitClose != "" {
			if d.OneDigitClose != v {
				return ErrOutcomeConflict
			}
			return nil
		}
		d.OneDigitClose = v
		d.OneDigitCloseAt = now
		newly = append(newly, model.GameKindClose)
		return nil
	}
	setTwoDigit := func(v string) error {
		if d.TwoDigit != "" {
			if d.TwoDigit != v {
				return ErrOutcomeConflict
			}
			return nil
		}
		d.TwoDigit = v
		d.TwoDigitAt = now
		newly = append(newly, model.GameKindJodi)
		return nil
	}

	switch {
	case in.TwoDigit != "":
		if err := setTwoDigit(in.TwoDigit); err != nil {
			return nil, err
		}
		// 两位数拆出两个单数
		if err := setOpen(in.TwoDigit[:1]); err != nil {
			return nil, err
		}
		if err := setClose(in.TwoDigit[1:]); err != nil {
			return nil, err
		}
	case in.Open != "":
		if err := setOpen(in.Open); err != nil {
			return nil, err
		}
	case in.Close != "":
		if err := setClose(in.Close); err != nil {
			return nil, err
		}
	}

	// 两个单数齐备 -> 推导两位数
	if d.OneDigitOpen != "" && d.OneDigitClose != "" {
		if err := setTwoDigit(d.OneDigitOpen + d.OneDigitClose); err != nil {
			return nil, err
		}
	}

	return newly, nil
}

// betWins 按玩法判断注单是否中奖
func betWins(b *model.Bet, d *model.DrawResult) bool {
	switch b.GameKind {
	case model.GameKindJodi:
		return d.TwoDigit != "" && b.Number == d.TwoDigit
	case model.GameKindOpen:
		return d.OneDigitOpen != "" && b.Number == d.OneDigitOpen
	case model.GameKindClose:
		return d.OneDigitClose != "" && b.Number == d.OneDigitClose
	}
	return false
}

// payoutRate 账户个性化倍率优先，0 回落到平台默认
func payoutRate(acc *model.Account, gameKind int8) float64 {
	cfg := config.Get()
	if gameKind == model.GameKindJodi {
		if acc.RateTwoDigit > 0 {
			return acc.RateTwoDigit
		}
		if cfg != nil {
			return cfg.RateTwoDigit()
		}
		return 85
	}
	if acc.RateOneDigit > 0 {
		return acc.RateOneDigit
	}
	if cfg != nil {
		return cfg.RateOneDigit()
	}
	return 9.5
}

// stateFromOutcome 按合并后的结果字段计算声明状态
func stateFromOutcome(d *model.DrawResult) string {
	if d.TwoDigit != "" {
		return state.StateFull
	}
	if d.OneDigitOpen != "" || d.OneDigitClose != "" {
		return state.StatePartial
	}
	return state.StateNoResult
}

// declaredComponent 本次声明的结果组件名
func declaredComponent(in DeclareInput) string {
	switch {
	case in.TwoDigit != "":
		return "two_digit"
	case in.Open != "":
		return "open"
	case in.Close != "":
		return "close"
	}
	return ""
}

func componentEvent(component string) string {
	switch component {
	case "two_digit":
		return state.EvtDeclareTwoDigit
	case "open":
		return state.EvtDeclareOpen
	case "close":
		return state.EvtDeclareClose
	}
	return ""
}

// componentEventCode 审计表事件枚举：1=declare_two_digit 2=declare_open 3=declare_close
func componentEventCode(component string) int8 {
	switch component {
	case "two_digit":
		return 1
	case "open":
		return 2
	case "close":
		return 3
	}
	return 0
}

func kindNames(kinds []int8) []string {
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, model.GameKindName(k))
	}
	return out
}

func containsKind(kinds []int8, k int8) bool {
	for _, x := range kinds {
		if x == k {
			return true
		}
	}
	return false
}

func toJSON(v any) string {
	s, _ := common.JsonMarshalToString(v)
	return s
}

// isMySQLDuplicateKeyError 判断是否为 MySQL 唯一键冲突错误
func isMySQLDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	// MySQL 错误码 1062: Duplicate entry
	return strings.Contains(errMsg, "Error 1062") ||
		strings.Contains(errMsg, "Duplicate entry") ||
		strings.Contains(errMsg, "duplicate key")
}
