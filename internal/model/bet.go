package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// Bet 对应 bets 表
// 说明：金额为非负；状态采用数值枚举（从1开始）
// game_kind: 1=jodi(两位数) 2=open(单数开) 3=close(单数收)
// status: 1=pending 待结算 2=won 已中 3=lost 未中
// 状态只允许由结算引擎做一次 pending -> won/lost 的迁移
type Bet struct {
	BetID          string  `db:"bet_id"`          // 注单ID(主键，时间戳前缀)
	AccountID      string  `db:"account_id"`      // 下注账户ID
	DrawLabel      string  `db:"draw_label"`      // 期号标签 {date}-{gameName}
	GameKind       int8    `db:"game_kind"`       // 玩法（数值枚举）
	GameKindStr    string  `db:"game_kind_str"`   // 玩法（冗余字符串）
	Number         string  `db:"number"`          // 所选号码（两位数"00".."99"或单数"0".."9"）
	Stake          float64 `db:"stake"`           // 注金(非负)
	Status         int8    `db:"status"`          // 注单状态
	IdempotencyKey string  `db:"idempotency_key"` // 幂等键（同一批注单共用）
	TraceID        string  `db:"trace_id"`        // 链路追踪ID
	CreatedAt      int64   `db:"created_at"`      // 创建时间
	UpdatedAt      int64   `db:"updated_at"`      // 更新时间
}

// 注单状态
const (
	BetStatusPending = 1
	BetStatusWon     = 2
	BetStatusLost    = 3
)

// 玩法枚举
const (
	GameKindJodi  = 1 // 两位数
	GameKindOpen  = 2 // 单数开
	GameKindClose = 3 // 单数收
)

// GameKindCode 玩法字符串转数值（与仓储层保持一致）
func GameKindCode(s string) int8 {
	switch s {
	case "jodi":
		return GameKindJodi
	case "open":
		return GameKindOpen
	case "close":
		return GameKindClose
	default:
		return 0
	}
}

// GameKindName 玩法数值转字符串
func GameKindName(c int8) string {
	switch c {
	case GameKindJodi:
		return "jodi"
	case GameKindOpen:
		return "open"
	case GameKindClose:
		return "close"
	default:
		return ""
	}
}

// Insert 插入一条注单
func (b *Bet) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()

	sqlStr := `INSERT INTO bets (bet_id, account_id, draw_label, game_kind, game_kind_str, number,
		stake, status, idempotency_key, trace_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := exec.ExecContext(ctx, sqlStr, b.BetID, b.AccountID, b.DrawLabel, b.GameKind, b.GameKindStr,
		b.Number, b.Stake, BetStatusPending, b.IdempotencyKey, b.TraceID, now, now)
	return err
}

// ListPendingByDrawForUpdate 按期号查询待结算注单（FOR UPDATE），可按玩法集过滤。
// kinds 为空集合时返回空切片。需要在事务中调用。
func ListPendingByDrawForUpdate(ctx context.Context, exec sqlx.ExtContext, drawLabel string, kinds []int8) ([]Bet, error) {
	if len(kinds) == 0 {
		return nil, nil
	}

	sqlStr := `SELECT bet_id, account_id, draw_label, game_kind, game_kind_str, number, stake, status
		FROM bets WHERE draw_label = ? AND status = ? AND game_kind IN (?) FOR UPDATE`
	query, args, err := sqlx.In(sqlStr, drawLabel, BetStatusPending, kinds)
	if err != nil {
		return nil, err
	}

	var out []Bet
	if err := sqlx.SelectContext(ctx, exec, &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateBetStatus 结算时更新注单状态（pending -> won/lost）
func UpdateBetStatus(ctx context.Context, exec sqlx.ExtContext, betID string, status int8) error {
	now := time.Now().UnixMilli()

	sqlStr := "UPDATE bets SET status = ?, updated_at = ? WHERE bet_id = ? AND status = ?"
	args := []interface{}{status, now, betID, BetStatusPending}

	_, err := exec.ExecContext(ctx, sqlStr, args...)
	return err
}

// SumStakeByAccountDraw 某账户在某期已累计的注金（含已结算），供单期限额校验
func SumStakeByAccountDraw(ctx context.Context, exec sqlx.ExtContext, accountID, drawLabel string) (float64, error) {
	sqlStr := "SELECT COALESCE(SUM(stake), 0) FROM bets WHERE account_id = ? AND draw_label = ?"

	var sum float64
	if err := sqlx.GetContext(ctx, exec, &sum, sqlStr, accountID, drawLabel); err != nil {
		return 0, err
	}
	return sum, nil
}

// StakeRow 佣金/返水计算用的注单投影：注单与下注人、所属庄家的费率联查
type StakeRow struct {
	AccountID  string  `db:"account_id"`  // 下注账户
	Stake      float64 `db:"stake"`       // 注金
	UserRate   float64 `db:"user_rate"`   // 下注人返水比例（%）
	DealerID   string  `db:"dealer_id"`   // 所属庄家（可为空串）
	DealerRate float64 `db:"dealer_rate"` // 庄家佣金比例（%）
}

// ListStakesByDraw 查询某期全部注单（不论输赢）并联查费率，供佣金/返水聚合
func ListStakesByDraw(ctx context.Context, exec sqlx.ExtContext, drawLabel string) ([]StakeRow, error) {
	sqlStr := `SELECT b.account_id AS account_id, b.stake AS stake,
		a.commission_rate AS user_rate, a.dealer_id AS dealer_id,
		COALESCE(d.commission_rate, 0) AS dealer_rate
		FROM bets b
		JOIN accounts a ON a.account_id = b.account_id
		LEFT JOIN accounts d ON d.account_id = a.dealer_id
		WHERE b.draw_label = ?`

	var rows []StakeRow
	if err := sqlx.SelectContext(ctx, exec, &rows, sqlStr, drawLabel); err != nil {
		return nil, err
	}
	return rows, nil
}

// BetRecord 注单记录（查询接口用投影）
type BetRecord struct {
	BetID       string  `db:"bet_id" json:"bet_id"`           // 注单ID
	DrawLabel   string  `db:"draw_label" json:"draw_label"`   // 期号标签
	GameKindStr string  `db:"game_kind_str" json:"game_kind"` // 玩法
	Number      string  `db:"number" json:"number"`           // 所选号码
	Stake       float64 `db:"stake" json:"stake"`             // 注金
	Status      int8    `db:"status" json:"status"`           // 状态：1=pending 2=won 3=lost
	CreatedAt   int64   `db:"created_at" json:"created_at"`   // 创建时间（毫秒时间戳）
	UpdatedAt   int64   `db:"updated_at" json:"updated_at"`   // 更新时间（毫秒时间戳）
}

// ListBetsByIdemKey 按幂等键回查一批注单（幂等冲突时返回首次结果）
func ListBetsByIdemKey(ctx context.Context, db *sqlx.DB, idemKey string) ([]BetRecord, error) {
	sqlStr := `SELECT bet_id, draw_label, game_kind_str, number, stake, status, created_at, updated_at
		FROM bets WHERE idempotency_key = ? ORDER BY bet_id ASC`

	var records []BetRecord
	if err := db.SelectContext(ctx, &records, sqlStr, idemKey); err != nil {
		return nil, err
	}
	return records, nil
}
