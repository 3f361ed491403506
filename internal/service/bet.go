package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"nx-server/common/constant"
	chelper "nx-server/common/helper"
	"nx-server/internal/config"
	infmysql "nx-server/internal/infra/mysql"
	infrds "nx-server/internal/infra/redis"
	"nx-server/internal/metrics"
	"nx-server/internal/model"

	mysqlerr "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	decimal "github.com/shopspring/decimal"
)

// WagerInput 单条注单入参
type WagerInput struct {
	GameKind string // jodi | open | close
	Number   string // 两位数 "00".."99" 或单数 "0".."9"
	Stake    string // 注金
}

// PlaceBetsInput 批量下注入参
// 同一批注单共用一个幂等键，批内任意失败则整批回滚
type PlaceBetsInput struct {
	AccountID      string
	DrawLabel      string
	Wagers         []WagerInput
	IdempotencyKey string
	TraceID        string
}

// BetPlaced 单条注单出参
type BetPlaced struct {
	BetID    string `json:"bet_id"`
	GameKind string `json:"game_kind"`
	Number   string `json:"number"`
	Stake    string `json:"stake"`
}

type PlaceBetsOutput struct {
	DrawLabel string      `json:"draw_label"`
	Bets      []BetPlaced `json:"bets"`
	Balance   string      `json:"balance"` // 扣款后余额
}

type BetService interface {
	PlaceBets(ctx context.Context, in PlaceBetsInput) (*PlaceBetsOutput, error)
}

type betService struct{}

func NewBetService() BetService { return &betService{} }

const (
	// Redis 进行中锁 TTL：吸收瞬时重复请求
	idemLockTTL = 45 * time.Second
	// 结果缓存 TTL：覆盖大多数短时重试窗口
	idemResultTTL = 1 * time.Minute
)

// 默认事务超时时间，防止长事务占用资源影响并发（若上游已有 deadline，则沿用上游）
const defaultTxTimeout = 3 * time.Second

// Redis key 构造见 internal/infra/redis/keys.go
var (
	ErrDuplicateInFlight   = errors.New("duplicate request in flight")
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountDisabled     = errors.New("account disabled")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrKindAlreadyDeclared = errors.New("outcome for this game kind already declared")
	ErrBetLimitExceeded    = errors.New("account bet limit exceeded")
	ErrBettingPaused       = errors.New("betting is temporarily paused")
)

// PlaceBets 处理批量下注主流程：
// 幂等（Redis 锁 + idempotency_keys 唯一键 + 结果缓存）、
// 账户加锁、逐条入注单与账本、一次性扣总注金
func (s *betService) PlaceBets(ctx context.Context, in PlaceBetsInput) (*PlaceBetsOutput, error) {

	// 空批次为安全空操作
	if len(in.Wagers) == 0 {
		return &PlaceBetsOutput{DrawLabel: in.DrawLabel, Bets: []BetPlaced{}}, nil
	}

	start := time.Now()
	result := "fail"
	gkLabel := strings.ToLower(in.Wagers[0].GameKind)
	defer func() { metrics.RecordBet(result, gkLabel, start) }()

	fmt.Printf("[Bet] 收到下注请求: account_id=%s, draw_label=%s, wagers=%d, idem_key=%s, trace_id=%s\n",
		in.AccountID, in.DrawLabel, len(in.Wagers), in.IdempotencyKey, in.TraceID)

	// 维护开关：暂停新投注（配置热生效）
	if config.GetFeatureFlag("betting_paused") {
		return nil, ErrBettingPaused
	}

	// ========== 注金解析和验证 ==========
	// 1. 解析每条注金
	// 2. 验证为正数且满足最小/最大限制（阈值走配置，支持热更新）
	// 3. 汇总为批次总注金
	// ==================================
	minStake := decimal.NewFromInt(config.GetThreshold("stake_min_paise", 1)).Div(decimal.NewFromInt(100))
	maxStake := decimal.NewFromInt(config.GetThreshold("stake_max", 1000000))
	stakeDecs := make([]decimal.Decimal, 0, len(in.Wagers))
	totalDec := decimal.Zero
	for i, w := range in.Wagers {
		d, err := decimal.NewFromString(strings.TrimSpace(w.Stake))
		if err != nil {
			fmt.Printf("[Bet] 无效的注金格式: idx=%d, stake=%s, error=%v, trace_id=%s\n",
				i, w.Stake, err, in.TraceID)
			return nil, errors.New("invalid stake format")
		}
		if d.LessThanOrEqual(decimal.Zero) {
			return nil, errors.New("stake must be positive")
		}
		if d.LessThan(minStake) {
			return nil, fmt.Errorf("stake below minimum limit: %s", minStake.String())
		}
		if d.GreaterThan(maxStake) {
			return nil, fmt.Errorf("stake exceeds maximum limit: %s", maxStake.String())
		}
		stakeDecs = append(stakeDecs, d)
		totalDec = totalDec.Add(d)
	}

	// Redis 快路径：若已有结果缓存，直接返回
	var lockKey, lockValue string
	if r := infrds.Client(); r != nil {
		if bs, _ := r.Get(ctx, infrds.IdemResultKey(in.IdempotencyKey)).Bytes(); len(bs) > 0 {
			var out PlaceBetsOutput
			if json.Unmarshal(bs, &out) == nil {
				fmt.Printf("[Bet] Redis 缓存命中: idem_key=%s, trace_id=%s\n",
					in.IdempotencyKey, in.TraceID)
				return &out, nil
			}
		}

		// 进行中锁，吸收瞬时重复（唯一锁值防止误删其他请求的锁）
		lockValue = uuid.New().String()
		lockKey = infrds.IdemLockKey(in.IdempotencyKey)
		ok, _ := r.SetNX(ctx, lockKey, lockValue, idemLockTTL).Result()
		if !ok {
			if bs, _ := r.Get(ctx, infrds.IdemResultKey(in.IdempotencyKey)).Bytes(); len(bs) > 0 {
				var out PlaceBetsOutput
				if json.Unmarshal(bs, &out) == nil {
					fmt.Printf("[Bet] Redis 缓存命中（重复请求）: idem_key=%s, trace_id=%s\n",
						in.IdempotencyKey, in.TraceID)
					return &out, nil
				}
			}
			fmt.Printf("[Bet] 重复请求进行中: idem_key=%s, trace_id=%s\n",
				in.IdempotencyKey, in.TraceID)
			return nil, ErrDuplicateInFlight
		}

		// Lua 脚本原子释放锁（仅当锁值匹配时删除）
		defer func() {
			script := `
				if redis.call("get", KEYS[1]) == ARGV[1] then
					return redis.call("del", KEYS[1])
				else
					return 0
				end
			`
			res, err := r.Eval(ctx, script, []string{lockKey}, lockValue).Result()
			if err != nil {
				fmt.Printf("[Bet] 释放分布式锁失败: idem_key=%s, error=%v, trace_id=%s\n",
					in.IdempotencyKey, err, in.TraceID)
			} else if res == int64(0) {
				fmt.Printf("[Bet] 分布式锁已被其他请求释放或过期: idem_key=%s, trace_id=%s\n",
					in.IdempotencyKey, in.TraceID)
			}
		}()
	}

	// 开启 MySQL 事务（带默认超时，防止长事务影响并发）。
	// 若上游 ctx 已设置 deadline，则沿用；否则使用默认 defaultTxTimeout。
	txCtx := ctx
	if _, has := ctx.Deadline(); !has {
		c, cancel := context.WithTimeout(ctx, defaultTxTimeout)
		txCtx = c
		defer cancel()
	}
	tx, err := infmysql.SQLX().BeginTxx(txCtx, nil)
	if err != nil {
		fmt.Printf("[Bet] 开启事务失败: error=%v, draw_label=%s, trace_id=%s\n",
			err, in.DrawLabel, in.TraceID)
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// 已声明结果的玩法不再接受投注
	if err := s.checkKindsOpen(txCtx, tx, in); err != nil {
		return nil, err
	}

	// 锁定账户
	acc, err := model.GetAccountForUpdate(txCtx, tx, in.AccountID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if acc.Status != 1 {
		fmt.Printf("[Bet] 账户状态异常: account_id=%s, status=%d, trace_id=%s\n",
			acc.AccountID, acc.Status, in.TraceID)
		return nil, ErrAccountDisabled
	}

	// 校验余额（decimal 比较，整批总注金）
	beforeDec := decimal.NewFromFloat(acc.Balance)
	if beforeDec.Cmp(totalDec) < 0 {
		fmt.Printf("[Bet] 余额不足: account_id=%s, balance=%s, total_stake=%s, trace_id=%s\n",
			acc.AccountID, chelper.TrimDecimal(beforeDec), chelper.TrimDecimal(totalDec), in.TraceID)
		return nil, ErrInsufficientBalance
	}

	// 账户级限额：单注上限与单期累计上限（0=不限）
	priorDec := decimal.Zero
	if acc.BetLimitDraw > 0 {
		prior, err := model.SumStakeByAccountDraw(txCtx, tx, in.AccountID, in.DrawLabel)
		if err != nil {
			return nil, err
		}
		priorDec = decimal.NewFromFloat(prior)
	}
	if err := checkBetLimits(acc, stakeDecs, priorDec, totalDec); err != nil {
		fmt.Printf("[Bet] 超出账户限额: account_id=%s, draw_label=%s, total_stake=%s, trace_id=%s\n",
			acc.AccountID, in.DrawLabel, chelper.TrimDecimal(totalDec), in.TraceID)
		return nil, err
	}

	// 预生成每条注单号，幂等键 ref 记录首条
	betIDs := make([]string, len(in.Wagers))
	for i := range in.Wagers {
		betIDs[i] = newID(idPrefixBet)
	}

	// 幂等：先占幂等键
	if err := (&model.IdempotencyKey{IdempotencyKey: in.IdempotencyKey, Purpose: "place_bets", Ref: betIDs[0]}).Insert(txCtx, tx); err != nil {
		// 若幂等冲突：尝试返回上次结果
		if me, ok := err.(*mysqlerr.MySQLError); ok && me.Number == 1062 {
			fmt.Printf("[Bet] 幂等键冲突，尝试返回上次结果: idem_key=%s, trace_id=%s\n",
				in.IdempotencyKey, in.TraceID)
			_ = tx.Rollback()
			if out, ok := s.replayByIdemKey(ctx, in); ok {
				return out, nil
			}
		}
		fmt.Printf("[Bet] 插入幂等键失败: error=%v, idem_key=%s, trace_id=%s\n",
			err, in.IdempotencyKey, in.TraceID)
		return nil, fmt.Errorf("idempotency conflict or insert failed: %w", err)
	}

	// 逐条落注单并写账本（账本 before/after 按批内顺序累计）
	afterDec := beforeDec.Sub(totalDec).Round(2)
	currentDec := beforeDec
	placed := make([]BetPlaced, 0, len(in.Wagers))
	for i, w := range in.Wagers {
		kindCode := model.GameKindCode(strings.ToLower(w.GameKind))
		stakeDec := stakeDecs[i]

		b := &model.Bet{
			BetID:          betIDs[i],
			AccountID:      in.AccountID,
			DrawLabel:      in.DrawLabel,
			GameKind:       kindCode,
			GameKindStr:    model.GameKindName(kindCode),
			Number:         w.Number,
			Stake:          stakeDec.Round(2).InexactFloat64(),
			IdempotencyKey: in.IdempotencyKey,
			TraceID:        in.TraceID,
		}
		if err := b.Insert(txCtx, tx); err != nil {
			fmt.Printf("[Bet] 创建注单失败: error=%v, bet_id=%s, trace_id=%s\n",
				err, b.BetID, in.TraceID)
			return nil, err
		}

		next := currentDec.Sub(stakeDec).Round(2)
		ledger := &model.WalletLedger{
			AccountID:    in.AccountID,
			BizType:      constant.LedgerBetPlaced,
			Amount:       stakeDec.Round(2).Neg().InexactFloat64(),
			BeforeAmount: currentDec.Round(2).InexactFloat64(),
			AfterAmount:  next.InexactFloat64(),
			RefID:        b.BetID,
			DrawLabel:    in.DrawLabel,
			Remark:       "bet stake",
			TraceID:      in.TraceID,
		}
		if err := ledger.Insert(txCtx, tx); err != nil {
			fmt.Printf("[Bet] 写入账本失败: error=%v, bet_id=%s, trace_id=%s\n",
				err, b.BetID, in.TraceID)
			return nil, err
		}
		currentDec = next

		placed = append(placed, BetPlaced{
			BetID:    b.BetID,
			GameKind: b.GameKindStr,
			Number:   b.Number,
			Stake:    chelper.TrimDecimal(stakeDec),
		})
	}

	// 一次性扣减总注金
	if err := model.UpdateAccountBalance(txCtx, tx, in.AccountID, afterDec.InexactFloat64()); err != nil {
		return nil, err
	}

	// Outbox 消息（异步）
	payload := map[string]any{
		"event":      "bets_placed",
		"account_id": in.AccountID,
		"draw_label": in.DrawLabel,
		"bet_ids":    betIDs,
		"total":      chelper.TrimDecimal(totalDec),
		"trace_id":   in.TraceID,
	}
	if err := model.CreateOutbox(txCtx, tx, "bets_placed", betIDs[0], payload); err != nil {
		fmt.Printf("[Bet] 写入 Outbox 失败: error=%v, idem_key=%s, trace_id=%s\n",
			err, in.IdempotencyKey, in.TraceID)
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		fmt.Printf("[Bet] 提交事务失败: error=%v, idem_key=%s, trace_id=%s\n",
			err, in.IdempotencyKey, in.TraceID)
		return nil, err
	}

	result = "success"
	for i, w := range in.Wagers {
		metrics.RecordBetStake(strings.ToLower(w.GameKind), stakeDecs[i].InexactFloat64())
	}
	out := &PlaceBetsOutput{
		DrawLabel: in.DrawLabel,
		Bets:      placed,
		Balance:   chelper.TrimDecimal(afterDec),
	}

	// 写入 Redis 结果缓存（降级容错）
	if r := infrds.Client(); r != nil {
		if b, e := json.Marshal(out); e == nil {
			_ = r.Set(ctx, infrds.IdemResultKey(in.IdempotencyKey), b, idemResultTTL).Err()
		}
	}

	fmt.Printf("[Bet] 下注成功: account_id=%s, draw_label=%s, wagers=%d, total=%s, balance=%s, trace_id=%s\n",
		in.AccountID, in.DrawLabel, len(placed), chelper.TrimDecimal(totalDec), out.Balance, in.TraceID)
	return out, nil
}

// checkBetLimits 校验账户级限额：
// 单注不超过 BetLimitSingle，本批 + 本期已有注金不超过 BetLimitDraw（0=不限）
func checkBetLimits(acc *model.Account, stakeDecs []decimal.Decimal, priorStake, totalStake decimal.Decimal) error {
	if acc.BetLimitSingle > 0 {
		limit := decimal.NewFromFloat(acc.BetLimitSingle)
		for _, d := range stakeDecs {
			if d.GreaterThan(limit) {
				return ErrBetLimitExceeded
			}
		}
	}
	if acc.BetLimitDraw > 0 {
		if priorStake.Add(totalStake).GreaterThan(decimal.NewFromFloat(acc.BetLimitDraw)) {
			return ErrBetLimitExceeded
		}
	}
	return nil
}

// checkKindsOpen 校验批内各玩法在该期仍未声明结果
// 期记录不存在视为全部开放（首次声明时才建期）
func (s *betService) checkKindsOpen(ctx context.Context, tx sqlx.ExtContext, in PlaceBetsInput) error {
	d, err := model.GetDrawForUpdate(ctx, tx, in.DrawLabel)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return err
	}

	for _, w := range in.Wagers {
		switch strings.ToLower(w.GameKind) {
		case "jodi":
			if d.TwoDigit != "" {
				return ErrKindAlreadyDeclared
			}
		case "open":
			if d.OneDigitOpen != "" || d.TwoDigit != "" {
				return ErrKindAlreadyDeclared
			}
		case "close":
			if d.OneDigitClose != "" || d.TwoDigit != "" {
				return ErrKindAlreadyDeclared
			}
		}
	}
	return nil
}

// replayByIdemKey 幂等冲突时回放首次结果：优先 Redis，其次 DB 回源
func (s *betService) replayByIdemKey(ctx context.Context, in PlaceBetsInput) (*PlaceBetsOutput, bool) {
	if r := infrds.Client(); r != nil {
		if bs, _ := r.Get(ctx, infrds.IdemResultKey(in.IdempotencyKey)).Bytes(); len(bs) > 0 {
			var out PlaceBetsOutput
			if json.Unmarshal(bs, &out) == nil {
				fmt.Printf("[Bet] 从 Redis 返回上次结果: idem_key=%s, trace_id=%s\n",
					in.IdempotencyKey, in.TraceID)
				return &out, true
			}
		}
	}

	records, err := model.ListBetsByIdemKey(ctx, infmysql.SQLX(), in.IdempotencyKey)
	if err != nil || len(records) == 0 {
		return nil, false
	}
	balance, err := model.GetAccountBalance(ctx, infmysql.SQLX(), in.AccountID)
	if err != nil {
		return nil, false
	}

	bets := make([]BetPlaced, 0, len(records))
	for _, rec := range records {
		bets = append(bets, BetPlaced{
			BetID:    rec.BetID,
			GameKind: rec.GameKindStr,
			Number:   rec.Number,
			Stake:    chelper.TrimDecimal(decimal.NewFromFloat(rec.Stake)),
		})
	}
	fmt.Printf("[Bet] 从数据库返回上次结果: idem_key=%s, bets=%d, trace_id=%s\n",
		in.IdempotencyKey, len(bets), in.TraceID)
	return &PlaceBetsOutput{
		DrawLabel: records[0].DrawLabel,
		Bets:      bets,
		Balance:   chelper.TrimDecimal(decimal.NewFromFloat(balance)),
	}, true
}
