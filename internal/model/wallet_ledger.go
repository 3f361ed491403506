package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"nx-server/common/constant"
)

// WalletLedger 对应 wallet_ledger 表（追加式账本）
// 说明：amount 带符号，入账为正、出账为负；before/after 为该账户变动前后余额快照
// biz_type 数值码见 constant 包，同时冗余 biz_type_str 便于直观查询
type WalletLedger struct {
	ID           int64   `db:"id"`
	AccountID    string  `db:"account_id"`
	BizType      int8    `db:"biz_type"`
	BizTypeStr   string  `db:"biz_type_str"`
	Amount       float64 `db:"amount"`
	BeforeAmount float64 `db:"before_amount"`
	AfterAmount  float64 `db:"after_amount"`
	RefID        string  `db:"ref_id"`     // 关联单号：注单/奖金单/佣金单/充值单/转账单
	DrawLabel    string  `db:"draw_label"` // 关联期号标签（无则空串）
	Remark       string  `db:"remark"`
	TraceID      string  `db:"trace_id"`
	CreatedAt    int64   `db:"created_at"`
}

// Insert 新增一条账本记录（biz_type 数值码与字符串双写）
func (l *WalletLedger) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	code := l.BizType
	str := l.BizTypeStr
	if code == 0 && str != "" {
		code = constant.LedgerKindCode(str)
	}
	if str == "" && code != 0 {
		str = constant.LedgerKindName(code)
	}
	// 使用原生 SQL 以避免 goqu 在某些 MySQL 版本上的兼容性问题
	sqlStr := "INSERT INTO wallet_ledger (account_id, biz_type, biz_type_str, amount, before_amount, after_amount, ref_id, draw_label, remark, trace_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	args := []interface{}{l.AccountID, code, str, l.Amount, l.BeforeAmount, l.AfterAmount, l.RefID, l.DrawLabel, l.Remark, l.TraceID, now}

	_, err := exec.ExecContext(ctx, sqlStr, args...)
	return err
}

// SumLedgerByAccount 汇总某账户全部账本条目的带符号金额（对账用）
func SumLedgerByAccount(ctx context.Context, exec sqlx.ExtContext, accountID string) (float64, error) {
	var sum float64
	sqlStr := "SELECT COALESCE(SUM(amount), 0) FROM wallet_ledger WHERE account_id = ?"
	if err := sqlx.GetContext(ctx, exec, &sum, sqlStr, accountID); err != nil {
		return 0, err
	}
	return sum, nil
}
