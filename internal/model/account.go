package model

import (
	"context"
	"database/sql"
	"time"

	"nx-server/common/logger"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Account 账户表
// 三级账户体系：user（下注用户）、dealer（庄家，管理名下用户）、admin（平台）
// 余额只允许通过账本记账的事务内修改，任何组件不得直接写 balance
type Account struct {
	AccountID      string  `db:"account_id"`       // 账户ID（时间戳前缀，全局有序）
	AccountNo      string  `db:"account_no"`       // 账号（10位带Luhn校验位，对外展示）
	Username       string  `db:"username"`         // 用户名
	Role           int8    `db:"role"`             // 角色: 1=user 2=dealer 3=admin
	Balance        float64 `db:"balance"`          // 余额（非负）
	DealerID       string  `db:"dealer_id"`        // 所属庄家账户ID（user 专用，可为空串）
	CommissionRate float64 `db:"commission_rate"`  // 佣金/返水比例（百分比，0=无）
	RateTwoDigit   float64 `db:"rate_two_digit"`   // 两位数玩法派彩倍率（0=用平台默认）
	RateOneDigit   float64 `db:"rate_one_digit"`   // 单数玩法派彩倍率（0=用平台默认）
	BetLimitSingle float64 `db:"bet_limit_single"` // 单注注金上限（0=不限）
	BetLimitDraw   float64 `db:"bet_limit_draw"`   // 单期累计注金上限（0=不限）
	Status         int8    `db:"status"`           // 状态: 1=正常 2=已删除
	CreatedAt      int64   `db:"created_at"`       // 创建时间（13位毫秒时间戳）
	UpdatedAt      int64   `db:"updated_at"`       // 更新时间（13位毫秒时间戳）
}

const accountFields = `account_id, account_no, username, role, balance, dealer_id,
	          commission_rate, rate_two_digit, rate_one_digit, bet_limit_single, bet_limit_draw,
	          status, created_at, updated_at`

// GetAccountByID 按账户ID查询（不加锁），exec 可传连接池或事务
func GetAccountByID(ctx context.Context, exec sqlx.ExtContext, accountID string) (*Account, error) {
	query := `SELECT ` + accountFields + `
	          FROM accounts
	          WHERE account_id = ?
	          LIMIT 1`

	var acc Account
	err := sqlx.GetContext(ctx, exec, &acc, query, accountID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		logger.Error("get account by id failed",
			zap.String("account_id", accountID),
			zap.Error(err))
		return nil, err
	}

	return &acc, nil
}

// GetAccountForUpdate 按账户ID加锁查询（FOR UPDATE）
// 必须在事务中调用；行锁持有至事务提交/回滚，保证同账户的并发请求串行化
func GetAccountForUpdate(ctx context.Context, exec sqlx.ExtContext, accountID string) (*Account, error) {
	query := `SELECT ` + accountFields + `
	          FROM accounts
	          WHERE account_id = ?
	          FOR UPDATE`

	var acc Account
	err := sqlx.GetContext(ctx, exec, &acc, query, accountID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		logger.Error("get account for update failed",
			zap.String("account_id", accountID),
			zap.Error(err))
		return nil, err
	}

	return &acc, nil
}

// Insert 插入账户
func (a *Account) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	a.CreatedAt = now
	a.UpdatedAt = now

	query := `INSERT INTO accounts (account_id, account_no, username, role, balance, dealer_id,
	          commission_rate, rate_two_digit, rate_one_digit, bet_limit_single, bet_limit_draw,
	          status, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := exec.ExecContext(ctx, query,
		a.AccountID, a.AccountNo, a.Username, a.Role, a.Balance, a.DealerID,
		a.CommissionRate, a.RateTwoDigit, a.RateOneDigit, a.BetLimitSingle, a.BetLimitDraw,
		a.Status, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		logger.Error("insert account failed",
			zap.String("account_id", a.AccountID),
			zap.String("username", a.Username),
			zap.Error(err))
		return err
	}

	logger.Info("account created",
		zap.String("account_id", a.AccountID),
		zap.Int8("role", a.Role),
		zap.String("username", a.Username))

	return nil
}

// UpdateAccountBalance 更新账户余额（只能在事务内、持有行锁后调用）
func UpdateAccountBalance(ctx context.Context, exec sqlx.ExtContext, accountID string, newBalance float64) error {
	now := time.Now().UnixMilli()
	query := `UPDATE accounts SET balance = ?, updated_at = ? WHERE account_id = ?`

	_, err := exec.ExecContext(ctx, query, newBalance, now, accountID)
	if err != nil {
		logger.Error("update account balance failed",
			zap.String("account_id", accountID),
			zap.Float64("new_balance", newBalance),
			zap.Error(err))
		return err
	}

	return nil
}

// AccountExists 账户存在性检查（注册时校验所属庄家等场景）
func AccountExists(ctx context.Context, exec sqlx.ExtContext, accountID string) (bool, error) {
	var cnt int
	query := `SELECT COUNT(1) FROM accounts WHERE account_id = ?`
	if err := sqlx.GetContext(ctx, exec, &cnt, query, accountID); err != nil {
		return false, err
	}
	return cnt > 0, nil
}

// GetAccountBalance 获取账户余额（非锁查询）
func GetAccountBalance(ctx context.Context, db *sqlx.DB, accountID string) (float64, error) {
	query := `SELECT balance FROM accounts WHERE account_id = ? LIMIT 1`

	var balance float64
	err := db.GetContext(ctx, &balance, query, accountID)
	if err != nil {
		if err != sql.ErrNoRows {
			logger.Error("get account balance failed",
				zap.String("account_id", accountID),
				zap.Error(err))
		}
		return 0, err
	}

	return balance, nil
}
