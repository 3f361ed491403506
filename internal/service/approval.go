package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"nx-server/common/constant"
	chelper "nx-server/common/helper"
	infmysql "nx-server/internal/infra/mysql"
	"nx-server/internal/metrics"
	"nx-server/internal/model"

	"github.com/jmoiron/sqlx"
	decimal "github.com/shopspring/decimal"
)

// ApproveInput 审批入参：kind 为 prize / commission / topup
type ApproveInput struct {
	Kind       string
	ID         string
	ApprovedBy string
	Reason     string // 仅拒绝充值时使用
	TraceID    string
}

type ApproveOutput struct {
	Kind      string `json:"kind"`
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	Amount    string `json:"amount"`
	Balance   string `json:"balance,omitempty"`
}

// TopupInput 用户发起充值申请
type TopupInput struct {
	AccountID string
	Amount    string
	Channel   string
	TraceID   string
}

type TopupOutput struct {
	TopupID string `json:"topup_id"`
	Amount  string `json:"amount"`
	Status  int8   `json:"status"`
}

type ApprovalService interface {
	Approve(ctx context.Context, in ApproveInput) (*ApproveOutput, error)
	RejectTopup(ctx context.Context, in ApproveInput) (*ApproveOutput, error)
	CreateTopup(ctx context.Context, in TopupInput) (*TopupOutput, error)
	PendingPrizes(ctx context.Context, limit int) ([]model.Prize, error)
	PendingCommissions(ctx context.Context, limit int) ([]model.Commission, error)
	PendingTopups(ctx context.Context, limit int) ([]model.Topup, error)
}

type approvalService struct{}

func NewApprovalService() ApprovalService { return &approvalService{} }

var (
	ErrApprovalNotFound    = errors.New("approval item not found")
	ErrAlreadyProcessed    = errors.New("approval item already processed")
	ErrUnknownApprovalKind = errors.New("unknown approval kind")
)

// Approve 审批通过：奖金单 / 佣金单 / 充值单。
// 行锁 + 条件更新（status=pending）双保险，重复审批报已处理，不重复入账。
func (s *approvalService) Approve(ctx context.Context, in ApproveInput) (*ApproveOutput, error) {
	start := time.Now()
	resultLabel := "fail"
	defer func() { metrics.RecordApproval(resultLabel, in.Kind, start) }()

	fmt.Printf("[Approval] 收到审批请求: kind=%s, id=%s, approved_by=%s, trace_id=%s\n",
		in.Kind, in.ID, in.ApprovedBy, in.TraceID)

	tx, err := infmysql.SQLX().BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var out *ApproveOutput
	switch in.Kind {
	case "prize":
		out, err = s.approvePrize(ctx, tx, in)
	case "commission":
		out, err = s.approveCommission(ctx, tx, in)
	case "topup":
		out, err = s.approveTopup(ctx, tx, in)
	default:
		return nil, ErrUnknownApprovalKind
	}
	if err != nil {
		if err == ErrAlreadyProcessed {
			resultLabel = "already_processed"
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		fmt.Printf("[Approval] 提交事务失败: kind=%s, id=%s, error=%v, trace_id=%s\n",
			in.Kind, in.ID, err, in.TraceID)
		return nil, err
	}

	resultLabel = "success"
	fmt.Printf("[Approval] 审批通过: kind=%s, id=%s, account_id=%s, amount=%s, trace_id=%s\n",
		in.Kind, in.ID, out.AccountID, out.Amount, in.TraceID)
	return out, nil
}

func (s *approvalService) approvePrize(ctx context.Context, tx *sqlx.Tx, in ApproveInput) (*ApproveOutput, error) {
	p, err := model.GetPrizeForUpdate(ctx, tx, in.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrApprovalNotFound
		}
		return nil, err
	}
	claimed, err := model.ClaimPendingPrize(ctx, tx, in.ID, in.ApprovedBy)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrAlreadyProcessed
	}

	balance, err := s.creditAccount(ctx, tx, p.AccountID, p.Amount, creditEntry{
		bizType:   constant.LedgerPrizeWon,
		refID:     p.PrizeID,
		drawLabel: p.DrawLabel,
		remark:    "prize approved",
		traceID:   in.TraceID,
	})
	if err != nil {
		return nil, err
	}

	if err := model.CreateOutbox(ctx, tx, "prize_approved", p.PrizeID, map[string]any{
		"event":      "prize_approved",
		"prize_id":   p.PrizeID,
		"account_id": p.AccountID,
		"draw_label": p.DrawLabel,
		"amount":     chelper.TrimDecimal(decimal.NewFromFloat(p.Amount)),
		"trace_id":   in.TraceID,
	}); err != nil {
		return nil, err
	}

	return &ApproveOutput{
		Kind:      in.Kind,
		ID:        p.PrizeID,
		AccountID: p.AccountID,
		Amount:    chelper.TrimDecimal(decimal.NewFromFloat(p.Amount)),
		Balance:   balance,
	}, nil
}

func (s *approvalService) approveCommission(ctx context.Context, tx *sqlx.Tx, in ApproveInput) (*ApproveOutput, error) {
	c, err := model.GetCommissionForUpdate(ctx, tx, in.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrApprovalNotFound
		}
		return nil, err
	}
	claimed, err := model.ClaimPendingCommission(ctx, tx, in.ID, in.ApprovedBy)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrAlreadyProcessed
	}

	balance, err := s.creditAccount(ctx, tx, c.DealerID, c.Amount, creditEntry{
		bizType:   constant.LedgerCommission,
		refID:     c.CommissionID,
		drawLabel: c.DrawLabel,
		remark:    "commission approved",
		traceID:   in.TraceID,
	})
	if err != nil {
		return nil, err
	}

	if err := model.CreateOutbox(ctx, tx, "commission_approved", c.CommissionID, map[string]any{
		"event":         "commission_approved",
		"commission_id": c.CommissionID,
		"dealer_id":     c.DealerID,
		"draw_label":    c.DrawLabel,
		"amount":        chelper.TrimDecimal(decimal.NewFromFloat(c.Amount)),
		"trace_id":      in.TraceID,
	}); err != nil {
		return nil, err
	}

	return &ApproveOutput{
		Kind:      in.Kind,
		ID:        c.CommissionID,
		AccountID: c.DealerID,
		Amount:    chelper.TrimDecimal(decimal.NewFromFloat(c.Amount)),
		Balance:   balance,
	}, nil
}

func (s *approvalService) approveTopup(ctx context.Context, tx *sqlx.Tx, in ApproveInput) (*ApproveOutput, error) {
	t, err := model.GetTopupForUpdate(ctx, tx, in.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrApprovalNotFound
		}
		return nil, err
	}
	claimed, err := model.ClaimPendingTopup(ctx, tx, in.ID, in.ApprovedBy, model.TopupStatusApproved, "")
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrAlreadyProcessed
	}

	balance, err := s.creditAccount(ctx, tx, t.AccountID, t.Amount, creditEntry{
		bizType: constant.LedgerTopUp,
		refID:   t.TopupID,
		remark:  "topup approved",
		traceID: in.TraceID,
	})
	if err != nil {
		return nil, err
	}

	if err := model.CreateOutbox(ctx, tx, "topup_approved", t.TopupID, map[string]any{
		"event":      "topup_approved",
		"topup_id":   t.TopupID,
		"account_id": t.AccountID,
		"amount":     chelper.TrimDecimal(decimal.NewFromFloat(t.Amount)),
		"trace_id":   in.TraceID,
	}); err != nil {
		return nil, err
	}

	return &ApproveOutput{
		Kind:      in.Kind,
		ID:        t.TopupID,
		AccountID: t.AccountID,
		Amount:    chelper.TrimDecimal(decimal.NewFromFloat(t.Amount)),
		Balance:   balance,
	}, nil
}

// RejectTopup 拒绝充值：仅改状态记录原因，不动余额不记账
func (s *approvalService) RejectTopup(ctx context.Context, in ApproveInput) (*ApproveOutput, error) {
	start := time.Now()
	resultLabel := "fail"
	defer func() { metrics.RecordApproval(resultLabel, "topup_reject", start) }()

	tx, err := infmysql.SQLX().BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	t, err := model.GetTopupForUpdate(ctx, tx, in.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrApprovalNotFound
		}
		return nil, err
	}
	claimed, err := model.ClaimPendingTopup(ctx, tx, in.ID, in.ApprovedBy, model.TopupStatusRejected, in.Reason)
	if err != nil {
		return nil, err
	}
	if !claimed {
		resultLabel = "already_processed"
		return nil, ErrAlreadyProcessed
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	resultLabel = "success"
	fmt.Printf("[Approval] 充值已拒绝: topup_id=%s, account_id=%s, reason=%s, trace_id=%s\n",
		t.TopupID, t.AccountID, in.Reason, in.TraceID)
	return &ApproveOutput{
		Kind:      "topup",
		ID:        t.TopupID,
		AccountID: t.AccountID,
		Amount:    chelper.TrimDecimal(decimal.NewFromFloat(t.Amount)),
	}, nil
}

// CreateTopup 用户发起充值申请，落库待审批
func (s *approvalService) CreateTopup(ctx context.Context, in TopupInput) (*TopupOutput, error) {
	amountDec, err := decimal.NewFromString(in.Amount)
	if err != nil || amountDec.LessThanOrEqual(decimal.Zero) {
		return nil, ErrBadRequest
	}

	exists, err := model.AccountExists(ctx, infmysql.SQLX(), in.AccountID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrAccountNotFound
	}

	t := &model.Topup{
		TopupID:   newID(idPrefixTopup),
		AccountID: in.AccountID,
		Amount:    amountDec.Round(2).InexactFloat64(),
		Channel:   in.Channel,
		Status:    model.TopupStatusPending,
		TraceID:   in.TraceID,
	}
	if err := t.Insert(ctx, infmysql.SQLX()); err != nil {
		return nil, err
	}

	fmt.Printf("[Approval] 充值申请已创建: topup_id=%s, account_id=%s, amount=%s, channel=%s, trace_id=%s\n",
		t.TopupID, in.AccountID, chelper.TrimDecimal(amountDec), in.Channel, in.TraceID)
	return &TopupOutput{
		TopupID: t.TopupID,
		Amount:  chelper.TrimDecimal(amountDec),
		Status:  t.Status,
	}, nil
}

func (s *approvalService) PendingPrizes(ctx context.Context, limit int) ([]model.Prize, error) {
	return model.ListPendingPrizes(ctx, infmysql.SQLX(), limit)
}

func (s *approvalService) PendingCommissions(ctx context.Context, limit int) ([]model.Commission, error) {
	return model.ListPendingCommissions(ctx, infmysql.SQLX(), limit)
}

func (s *approvalService) PendingTopups(ctx context.Context, limit int) ([]model.Topup, error) {
	return model.ListPendingTopups(ctx, infmysql.SQLX(), limit)
}

type creditEntry struct {
	bizType   int8
	refID     string
	drawLabel string
	remark    string
	traceID   string
}

// creditAccount 锁账户入账并写流水，返回入账后余额字符串
func (s *approvalService) creditAccount(ctx context.Context, tx *sqlx.Tx, accountID string, amount float64, e creditEntry) (string, error) {
	acc, err := model.GetAccountForUpdate(ctx, tx, accountID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrAccountNotFound
		}
		return "", err
	}

	amountDec := decimal.NewFromFloat(amount).Round(2)
	beforeDec := decimal.NewFromFloat(acc.Balance)
	afterDec := beforeDec.Add(amountDec).Round(2)

	if err := model.UpdateAccountBalance(ctx, tx, accountID, afterDec.InexactFloat64()); err != nil {
		return "", err
	}
	ledger := &model.WalletLedger{
		AccountID:    accountID,
		BizType:      e.bizType,
		Amount:       amountDec.InexactFloat64(),
		BeforeAmount: beforeDec.Round(2).InexactFloat64(),
		AfterAmount:  afterDec.InexactFloat64(),
		RefID:        e.refID,
		DrawLabel:    e.drawLabel,
		Remark:       e.remark,
		TraceID:      e.traceID,
	}
	if err := ledger.Insert(ctx, tx); err != nil {
		return "", err
	}
	return chelper.TrimDecimal(afterDec), nil
}
