package model

import (
	"context"
	"database/sql"
	"time"

	"nx-server/common/logger"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Topup 对应 topups 表（充值申请单）
// 用户发起申请，管理员审批；通过则入余额并记账，拒绝则仅改状态
type Topup struct {
	TopupID    string  `db:"topup_id"`
	AccountID  string  `db:"account_id"`
	Amount     float64 `db:"amount"`
	Channel    string  `db:"channel"` // 渠道备注：upi/bank/cash 等，自由文本
	Status     int8    `db:"status"`  // 1=待审批 2=已入账 3=已拒绝
	ApprovedBy string  `db:"approved_by"`
	ApprovedAt int64   `db:"approved_at"`
	Reason     string  `db:"reason"` // 拒绝原因
	TraceID    string  `db:"trace_id"`
	CreatedAt  int64   `db:"created_at"`
	UpdatedAt  int64   `db:"updated_at"`
}

const (
	TopupStatusPending  int8 = 1
	TopupStatusApproved int8 = 2
	TopupStatusRejected int8 = 3
)

const topupFields = `topup_id, account_id, amount, channel,
	          status, approved_by, approved_at, reason, trace_id, created_at, updated_at`

// Insert 插入充值申请
func (t *Topup) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	t.CreatedAt = now
	t.UpdatedAt = now

	query := `INSERT INTO topups (topup_id, account_id, amount, channel,
	          status, approved_by, approved_at, reason, trace_id, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := exec.ExecContext(ctx, query,
		t.TopupID, t.AccountID, t.Amount, t.Channel,
		t.Status, t.ApprovedBy, t.ApprovedAt, t.Reason, t.TraceID, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		logger.Error("insert topup failed",
			zap.String("topup_id", t.TopupID),
			zap.String("account_id", t.AccountID),
			zap.Error(err))
		return err
	}

	return nil
}

// GetTopupForUpdate 按充值单号加锁查询，审批事务内调用
func GetTopupForUpdate(ctx context.Context, exec sqlx.ExtContext, topupID string) (*Topup, error) {
	query := `SELECT ` + topupFields + `
	          FROM topups
	          WHERE topup_id = ?
	          FOR UPDATE`

	var t Topup
	if err := sqlx.GetContext(ctx, exec, &t, query, topupID); err != nil {
		if err != sql.ErrNoRows {
			logger.Error("get topup for update failed",
				zap.String("topup_id", topupID),
				zap.Error(err))
		}
		return nil, err
	}

	return &t, nil
}

// ClaimPendingTopup 条件更新：仅当状态仍为待审批时置为目标终态（已入账/已拒绝）
func ClaimPendingTopup(ctx context.Context, exec sqlx.ExtContext, topupID, approvedBy string, toStatus int8, reason string) (bool, error) {
	now := time.Now().UnixMilli()
	query := `UPDATE topups SET status = ?, approved_by = ?, approved_at = ?, reason = ?, updated_at = ?
	          WHERE topup_id = ? AND status = ?`

	res, err := exec.ExecContext(ctx, query,
		toStatus, approvedBy, now, reason, now, topupID, TopupStatusPending)
	if err != nil {
		logger.Error("claim pending topup failed",
			zap.String("topup_id", topupID),
			zap.Error(err))
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListPendingTopups 待审批充值单列表（审批后台用）
func ListPendingTopups(ctx context.Context, db *sqlx.DB, limit int) ([]Topup, error) {
	query := `SELECT ` + topupFields + `
	          FROM topups
	          WHERE status = ?
	          ORDER BY created_at ASC
	          LIMIT ?`

	var list []Topup
	if err := db.SelectContext(ctx, &list, query, TopupStatusPending, limit); err != nil {
		logger.Error("list pending topups failed", zap.Error(err))
		return nil, err
	}

	return list, nil
}
