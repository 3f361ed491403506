package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"nx-server/common/constant"
	chelper "nx-server/common/helper"
	infmysql "nx-server/internal/infra/mysql"
	"nx-server/internal/metrics"
	"nx-server/internal/model"

	decimal "github.com/shopspring/decimal"
)

// TransferInput 转账入参
// FromAccountID 为发起方（认证上下文注入），方向与账变类型由双方角色推导
type TransferInput struct {
	FromAccountID string
	ToAccountID   string
	Amount        string
	Remark        string
	TraceID       string
}

type TransferOutput struct {
	TransferID  string `json:"transfer_id"`
	FromBalance string `json:"from_balance"`
	ToBalance   string `json:"to_balance"`
	Kind        string `json:"kind"`
}

type TransferService interface {
	Transfer(ctx context.Context, in TransferInput) (*TransferOutput, error)
}

type transferService struct{}

func NewTransferService() TransferService { return &transferService{} }

var (
	ErrSelfTransfer        = errors.New("cannot transfer to self")
	ErrTransferNotAllowed  = errors.New("transfer not allowed between these roles")
	ErrTransferZeroAmount  = errors.New("transfer amount must be positive")
	ErrTransferDestination = errors.New("destination account not found")
)

// Transfer 双账户转账：
// 1. 按账户ID字典序加锁，避免交叉转账死锁
// 2. 角色组合推导账变类型（庄家→用户=dealer_credit，平台→任意=admin_credit，用户→平台=user_debit）
// 3. 双方各写一条账本（转出为负、转入为正），同事务提交
func (s *transferService) Transfer(ctx context.Context, in TransferInput) (*TransferOutput, error) {

	start := time.Now()
	result := "fail"
	kind := "unknown"
	defer func() { metrics.RecordTransfer(result, kind, start) }()

	if in.FromAccountID == in.ToAccountID {
		return nil, ErrSelfTransfer
	}

	amtDec, err := decimal.NewFromString(strings.TrimSpace(in.Amount))
	if err != nil {
		return nil, errors.New("invalid amount format")
	}
	if amtDec.LessThanOrEqual(decimal.Zero) {
		return nil, ErrTransferZeroAmount
	}

	fmt.Printf("[Transfer] 收到转账请求: from=%s, to=%s, amount=%s, trace_id=%s\n",
		in.FromAccountID, in.ToAccountID, in.Amount, in.TraceID)

	txCtx := ctx
	if _, has := ctx.Deadline(); !has {
		c, cancel := context.WithTimeout(ctx, defaultTxTimeout)
		txCtx = c
		defer cancel()
	}
	tx, err := infmysql.SQLX().BeginTxx(txCtx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// 按字典序加锁，避免 A→B 与 B→A 并发时交叉等待
	first, second := in.FromAccountID, in.ToAccountID
	if first > second {
		first, second = second, first
	}
	locked := map[string]*model.Account{}
	for _, id := range []string{first, second} {
		acc, err := model.GetAccountForUpdate(txCtx, tx, id)
		if err != nil {
			if err == sql.ErrNoRows {
				if id == in.ToAccountID {
					return nil, ErrTransferDestination
				}
				return nil, ErrAccountNotFound
			}
			return nil, err
		}
		locked[id] = acc
	}
	from := locked[in.FromAccountID]
	to := locked[in.ToAccountID]

	if from.Status != 1 || to.Status != 1 {
		return nil, ErrAccountDisabled
	}

	// 角色组合 -> 账变类型
	bizType, err := transferKind(from.Role, to.Role)
	if err != nil {
		fmt.Printf("[Transfer] 角色组合不允许转账: from_role=%d, to_role=%d, trace_id=%s\n",
			from.Role, to.Role, in.TraceID)
		return nil, err
	}
	kind = constant.GetBalanceChangeTypeDesc(int(bizType))

	fromBefore := decimal.NewFromFloat(from.Balance)
	if fromBefore.Cmp(amtDec) < 0 {
		fmt.Printf("[Transfer] 余额不足: from=%s, balance=%s, amount=%s, trace_id=%s\n",
			from.AccountID, chelper.TrimDecimal(fromBefore), chelper.TrimDecimal(amtDec), in.TraceID)
		return nil, ErrInsufficientBalance
	}
	fromAfter := fromBefore.Sub(amtDec).Round(2)

	toBefore := decimal.NewFromFloat(to.Balance)
	toAfter := toBefore.Add(amtDec).Round(2)

	transferID := newID(idPrefixTransfer)

	if err := model.UpdateAccountBalance(txCtx, tx, from.AccountID, fromAfter.InexactFloat64()); err != nil {
		return nil, err
	}
	if err := model.UpdateAccountBalance(txCtx, tx, to.AccountID, toAfter.InexactFloat64()); err != nil {
		return nil, err
	}

	// 转出方账本（负数）
	outLedger := &model.WalletLedger{
		AccountID:    from.AccountID,
		BizType:      bizType,
		Amount:       amtDec.Round(2).Neg().InexactFloat64(),
		BeforeAmount: fromBefore.Round(2).InexactFloat64(),
		AfterAmount:  fromAfter.InexactFloat64(),
		RefID:        transferID,
		Remark:       in.Remark,
		TraceID:      in.TraceID,
	}
	if err := outLedger.Insert(txCtx, tx); err != nil {
		return nil, err
	}

	// 转入方账本（正数）
	inLedger := &model.WalletLedger{
		AccountID:    to.AccountID,
		BizType:      bizType,
		Amount:       amtDec.Round(2).InexactFloat64(),
		BeforeAmount: toBefore.Round(2).InexactFloat64(),
		AfterAmount:  toAfter.InexactFloat64(),
		RefID:        transferID,
		Remark:       in.Remark,
		TraceID:      in.TraceID,
	}
	if err := inLedger.Insert(txCtx, tx); err != nil {
		return nil, err
	}

	// Outbox 消息（异步）
	if err := model.CreateOutbox(txCtx, tx, "credit_transferred", transferID, map[string]any{
		"event":       "credit_transferred",
		"transfer_id": transferID,
		"from":        from.AccountID,
		"to":          to.AccountID,
		"amount":      chelper.TrimDecimal(amtDec),
		"kind":        kind,
		"trace_id":    in.TraceID,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		fmt.Printf("[Transfer] 提交事务失败: error=%v, transfer_id=%s, trace_id=%s\n",
			err, transferID, in.TraceID)
		return nil, err
	}

	result = "success"
	fmt.Printf("[Transfer] 转账成功: transfer_id=%s, kind=%s, from=%s(%s), to=%s(%s), trace_id=%s\n",
		transferID, kind, from.AccountID, chelper.TrimDecimal(fromAfter),
		to.AccountID, chelper.TrimDecimal(toAfter), in.TraceID)

	return &TransferOutput{
		TransferID:  transferID,
		FromBalance: chelper.TrimDecimal(fromAfter),
		ToBalance:   chelper.TrimDecimal(toAfter),
		Kind:        kind,
	}, nil
}

// transferKind 按双方角色推导账变类型
// 庄家→用户: dealer_credit；平台→用户/庄家: admin_credit；用户/庄家→平台: user_debit
func transferKind(fromRole, toRole int8) (int8, error) {
	switch {
	case fromRole == constant.RoleDealer && toRole == constant.RoleUser:
		return constant.LedgerDealerCredit, nil
	case fromRole == constant.RoleAdmin:
		return constant.LedgerAdminCredit, nil
	case toRole == constant.RoleAdmin:
		return constant.LedgerUserDebit, nil
	default:
		return 0, ErrTransferNotAllowed
	}
}
