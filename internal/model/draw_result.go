package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// DrawResult 对应 draw_results 表
// 一期的三种结果分别报入（两位数 / 单数开 / 单数收），记录按期号标签唯一，
// 首次报入时创建，之后原地更新；每个结果组件各自带声明时间戳
// declare_state: no_result | partially_declared | fully_declared（字符串快照，便于直观查询）
type DrawResult struct {
	DrawLabel       string `db:"draw_label"`         // 期号标签(主键) {date}-{gameName}
	TwoDigit        string `db:"two_digit"`          // 两位数结果 "00".."99"，空串=未知
	OneDigitOpen    string `db:"one_digit_open"`     // 单数开结果 "0".."9"，空串=未知
	OneDigitClose   string `db:"one_digit_close"`    // 单数收结果 "0".."9"，空串=未知
	DeclareState    string `db:"declare_state"`      // 声明状态
	TwoDigitAt      int64  `db:"two_digit_at"`       // 两位数结果声明时间（毫秒，0=未声明）
	OneDigitOpenAt  int64  `db:"one_digit_open_at"`  // 单数开声明时间
	OneDigitCloseAt int64  `db:"one_digit_close_at"` // 单数收声明时间
	TraceID         string `db:"trace_id"`           // 链路追踪ID
	CreatedAt       int64  `db:"created_at"`         // 创建时间
	UpdatedAt       int64  `db:"updated_at"`         // 更新时间
}

// EnsureDraw 首次声明时创建期记录（已存在则不动）
func EnsureDraw(ctx context.Context, exec sqlx.ExtContext, drawLabel, initState, traceID string) error {
	var cnt int
	sqlCheck := "SELECT COUNT(1) FROM draw_results WHERE draw_label = ?"
	if err := sqlx.GetContext(ctx, exec, &cnt, sqlCheck, drawLabel); err != nil {
		return err
	}
	if cnt > 0 {
		return nil
	}

	now := time.Now().UnixMilli()
	sqlIns := `INSERT INTO draw_results (draw_label, two_digit, one_digit_open, one_digit_close,
		declare_state, two_digit_at, one_digit_open_at, one_digit_close_at, trace_id, created_at, updated_at)
		VALUES (?, '', '', '', ?, 0, 0, 0, ?, ?, ?)`
	_, err := exec.ExecContext(ctx, sqlIns, drawLabel, initState, traceID, now, now)
	return err
}

// GetDrawForUpdate 按期号标签加锁查询（FOR UPDATE），需要在事务中调用。
// 结算期间持有该行锁，同一期的并发声明串行执行。
func GetDrawForUpdate(ctx context.Context, exec sqlx.ExtContext, drawLabel string) (*DrawResult, error) {
	sqlStr := `SELECT draw_label, two_digit, one_digit_open, one_digit_close, declare_state,
		two_digit_at, one_digit_open_at, one_digit_close_at, trace_id, created_at, updated_at
		FROM draw_results WHERE draw_label = ? FOR UPDATE`
	var d DrawResult
	if err := sqlx.GetContext(ctx, exec, &d, sqlStr, drawLabel); err != nil {
		return nil, err
	}
	return &d, nil
}

// UpdateDrawOutcome 将合并后的结果组件与状态写回（时间戳由调用方对变更过的组件维护）
func UpdateDrawOutcome(ctx context.Context, exec sqlx.ExtContext, d *DrawResult) error {
	now := time.Now().UnixMilli()

	sqlStr := `UPDATE draw_results SET two_digit = ?, one_digit_open = ?, one_digit_close = ?,
		declare_state = ?, two_digit_at = ?, one_digit_open_at = ?, one_digit_close_at = ?, updated_at = ?
		WHERE draw_label = ?`
	args := []interface{}{d.TwoDigit, d.OneDigitOpen, d.OneDigitClose,
		d.DeclareState, d.TwoDigitAt, d.OneDigitOpenAt, d.OneDigitCloseAt, now, d.DrawLabel}

	_, err := exec.ExecContext(ctx, sqlStr, args...)
	return err
}

// GetDraw 按期号标签查询（无锁读取，查询接口用）
func GetDraw(ctx context.Context, exec sqlx.ExtContext, drawLabel string) (*DrawResult, error) {
	sqlStr := `SELECT draw_label, two_digit, one_digit_open, one_digit_close, declare_state,
		two_digit_at, one_digit_open_at, one_digit_close_at, trace_id, created_at, updated_at
		FROM draw_results WHERE draw_label = ?`
	var d DrawResult
	if err := sqlx.GetContext(ctx, exec, &d, sqlStr, drawLabel); err != nil {
		return nil, err
	}
	return &d, nil
}
