package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// DrawDeclareAudit 对应 draw_declare_audit 表（声明状态机审计）
// event_type 采用数值枚举（1=declare_two_digit 2=declare_open 3=declare_close）
// prev_state/next_state 使用字符串快照，便于直观查询
type DrawDeclareAudit struct {
	ID int64 `db:"id"`
	// 期号标签
	DrawLabel string `db:"draw_label"`
	// 事件类型（数值：1=declare_two_digit 2=declare_open 3=declare_close）
	EventType int8   `db:"event_type"`
	PrevState string `db:"prev_state"`
	NextState string `db:"next_state"`
	Operator  string `db:"operator"`
	Source    string `db:"source"`
	Payload   string `db:"payload"`
	TraceID   string `db:"trace_id"`
	CreatedAt int64  `db:"created_at"`
}

// Insert
func (e *DrawDeclareAudit) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()

	sqlStr := "INSERT INTO draw_declare_audit (draw_label, event_type, prev_state, next_state, operator, source, payload, trace_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"
	args := []interface{}{e.DrawLabel, e.EventType, e.PrevState, e.NextState, e.Operator, e.Source, e.Payload, e.TraceID, now}

	_, err := exec.ExecContext(ctx, sqlStr, args...)
	return err
}
