package model

import (
	"context"
	"database/sql"
	"time"

	"nx-server/common/logger"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Prize 对应 prizes 表（中奖奖金单）
// 结算时按中奖注单生成，状态为待审批；管理员审批通过后才入账户余额
// 同一注单最多一条奖金单（bet_id 唯一约束兜底）
type Prize struct {
	PrizeID    string  `db:"prize_id"`
	BetID      string  `db:"bet_id"`
	AccountID  string  `db:"account_id"`
	DrawLabel  string  `db:"draw_label"`
	GameKind   int8    `db:"game_kind"`
	Amount     float64 `db:"amount"` // 派彩金额 = 注金 × 倍率
	Status     int8    `db:"status"` // 1=待审批 2=已入账
	ApprovedBy string  `db:"approved_by"`
	ApprovedAt int64   `db:"approved_at"`
	TraceID    string  `db:"trace_id"`
	CreatedAt  int64   `db:"created_at"`
	UpdatedAt  int64   `db:"updated_at"`
}

const (
	PrizeStatusPending  int8 = 1
	PrizeStatusApproved int8 = 2
)

const prizeFields = `prize_id, bet_id, account_id, draw_label, game_kind, amount,
	          status, approved_by, approved_at, trace_id, created_at, updated_at`

// Insert 插入奖金单
func (p *Prize) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	p.CreatedAt = now
	p.UpdatedAt = now

	query := `INSERT INTO prizes (prize_id, bet_id, account_id, draw_label, game_kind, amount,
	          status, approved_by, approved_at, trace_id, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := exec.ExecContext(ctx, query,
		p.PrizeID, p.BetID, p.AccountID, p.DrawLabel, p.GameKind, p.Amount,
		p.Status, p.ApprovedBy, p.ApprovedAt, p.TraceID, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		logger.Error("insert prize failed",
			zap.String("prize_id", p.PrizeID),
			zap.String("bet_id", p.BetID),
			zap.Error(err))
		return err
	}

	return nil
}

// GetPrizeForUpdate 按奖金单号加锁查询，审批事务内调用
func GetPrizeForUpdate(ctx context.Context, exec sqlx.ExtContext, prizeID string) (*Prize, error) {
	query := `SELECT ` + prizeFields + `
	          FROM prizes
	          WHERE prize_id = ?
	          FOR UPDATE`

	var p Prize
	if err := sqlx.GetContext(ctx, exec, &p, query, prizeID); err != nil {
		if err != sql.ErrNoRows {
			logger.Error("get prize for update failed",
				zap.String("prize_id", prizeID),
				zap.Error(err))
		}
		return nil, err
	}

	return &p, nil
}

// ClaimPendingPrize 条件更新：仅当状态仍为待审批时置为已入账
// 返回是否真正抢到该单（false=已被处理过）
func ClaimPendingPrize(ctx context.Context, exec sqlx.ExtContext, prizeID, approvedBy string) (bool, error) {
	now := time.Now().UnixMilli()
	query := `UPDATE prizes SET status = ?, approved_by = ?, approved_at = ?, updated_at = ?
	          WHERE prize_id = ? AND status = ?`

	res, err := exec.ExecContext(ctx, query,
		PrizeStatusApproved, approvedBy, now, now, prizeID, PrizeStatusPending)
	if err != nil {
		logger.Error("claim pending prize failed",
			zap.String("prize_id", prizeID),
			zap.Error(err))
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListPendingPrizes 待审批奖金单列表（审批后台用）
func ListPendingPrizes(ctx context.Context, db *sqlx.DB, limit int) ([]Prize, error) {
	query := `SELECT ` + prizeFields + `
	          FROM prizes
	          WHERE status = ?
	          ORDER BY created_at ASC
	          LIMIT ?`

	var list []Prize
	if err := db.SelectContext(ctx, &list, query, PrizeStatusPending, limit); err != nil {
		logger.Error("list pending prizes failed", zap.Error(err))
		return nil, err
	}

	return list, nil
}
