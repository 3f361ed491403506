package model

import (
	"context"
	"database/sql"
	"time"

	"nx-server/common/logger"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Commission 对应 commissions 表（庄家佣金单）
// 两位数结果已知时按庄家名下流水聚合生成，待审批；审批通过后入庄家余额
// 一期一个庄家最多一条佣金单；本表按期号是否已有记录作为结算去重依据
type Commission struct {
	CommissionID string  `db:"commission_id"`
	DealerID     string  `db:"dealer_id"`
	DrawLabel    string  `db:"draw_label"`
	TotalStake   float64 `db:"total_stake"` // 名下用户本期总投注额
	Rate         float64 `db:"rate"`        // 庄家佣金比例（百分比快照）
	Amount       float64 `db:"amount"`      // 佣金金额 = total_stake × rate / 100
	Status       int8    `db:"status"`      // 1=待审批 2=已入账
	ApprovedBy   string  `db:"approved_by"`
	ApprovedAt   int64   `db:"approved_at"`
	TraceID      string  `db:"trace_id"`
	CreatedAt    int64   `db:"created_at"`
	UpdatedAt    int64   `db:"updated_at"`
}

const (
	CommissionStatusPending  int8 = 1
	CommissionStatusApproved int8 = 2
)

const commissionFields = `commission_id, dealer_id, draw_label, total_stake, rate, amount,
	          status, approved_by, approved_at, trace_id, created_at, updated_at`

// Insert 插入佣金单
func (c *Commission) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	c.CreatedAt = now
	c.UpdatedAt = now

	query := `INSERT INTO commissions (commission_id, dealer_id, draw_label, total_stake, rate, amount,
	          status, approved_by, approved_at, trace_id, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := exec.ExecContext(ctx, query,
		c.CommissionID, c.DealerID, c.DrawLabel, c.TotalStake, c.Rate, c.Amount,
		c.Status, c.ApprovedBy, c.ApprovedAt, c.TraceID, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		logger.Error("insert commission failed",
			zap.String("commission_id", c.CommissionID),
			zap.String("dealer_id", c.DealerID),
			zap.Error(err))
		return err
	}

	return nil
}

// CommissionExistsByDraw 本期是否已生成过佣金单（佣金与返水计算的去重依据）
func CommissionExistsByDraw(ctx context.Context, exec sqlx.ExtContext, drawLabel string) (bool, error) {
	var cnt int
	query := `SELECT COUNT(1) FROM commissions WHERE draw_label = ?`
	if err := sqlx.GetContext(ctx, exec, &cnt, query, drawLabel); err != nil {
		logger.Error("check commission by draw failed",
			zap.String("draw_label", drawLabel),
			zap.Error(err))
		return false, err
	}
	return cnt > 0, nil
}

// GetCommissionForUpdate 按佣金单号加锁查询，审批事务内调用
func GetCommissionForUpdate(ctx context.Context, exec sqlx.ExtContext, commissionID string) (*Commission, error) {
	query := `SELECT ` + commissionFields + `
	          FROM commissions
	          WHERE commission_id = ?
	          FOR UPDATE`

	var c Commission
	if err := sqlx.GetContext(ctx, exec, &c, query, commissionID); err != nil {
		if err != sql.ErrNoRows {
			logger.Error("get commission for update failed",
				zap.String("commission_id", commissionID),
				zap.Error(err))
		}
		return nil, err
	}

	return &c, nil
}

// ClaimPendingCommission 条件更新：仅当状态仍为待审批时置为已入账
func ClaimPendingCommission(ctx context.Context, exec sqlx.ExtContext, commissionID, approvedBy string) (bool, error) {
	now := time.Now().UnixMilli()
	query := `UPDATE commissions SET status = ?, approved_by = ?, approved_at = ?, updated_at = ?
	          WHERE commission_id = ? AND status = ?`

	res, err := exec.ExecContext(ctx, query,
		CommissionStatusApproved, approvedBy, now, now, commissionID, CommissionStatusPending)
	if err != nil {
		logger.Error("claim pending commission failed",
			zap.String("commission_id", commissionID),
			zap.Error(err))
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListPendingCommissions 待审批佣金单列表（审批后台用）
func ListPendingCommissions(ctx context.Context, db *sqlx.DB, limit int) ([]Commission, error) {
	query := `SELECT ` + commissionFields + `
	          FROM commissions
	          WHERE status = ?
	          ORDER BY created_at ASC
	          LIMIT ?`

	var list []Commission
	if err := db.SelectContext(ctx, &list, query, CommissionStatusPending, limit); err != nil {
		logger.Error("list pending commissions failed", zap.Error(err))
		return nil, err
	}

	return list, nil
}
