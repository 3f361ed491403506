package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"nx-server/common"
	chelper "nx-server/common/helper"
	infmysql "nx-server/internal/infra/mysql"
	infrds "nx-server/internal/infra/redis"
	"nx-server/internal/model"

	g "github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	decimal "github.com/shopspring/decimal"
)

// LedgerRecord 账本流水只读投影
type LedgerRecord struct {
	ID           int64   `db:"id" json:"id"`
	BizTypeStr   string  `db:"biz_type_str" json:"biz_type"`
	Amount       float64 `db:"amount" json:"amount"`
	BeforeAmount float64 `db:"before_amount" json:"before_amount"`
	AfterAmount  float64 `db:"after_amount" json:"after_amount"`
	RefID        string  `db:"ref_id" json:"ref_id"`
	DrawLabel    string  `db:"draw_label" json:"draw_label"`
	Remark       string  `db:"remark" json:"remark"`
	CreatedAt    int64   `db:"created_at" json:"created_at"`
}

// DrawView 期结果查询视图
type DrawView struct {
	DrawLabel string `json:"draw_label"`
	State     string `json:"state"`
	TwoDigit  string `json:"two_digit,omitempty"`
	Open      string `json:"open,omitempty"`
	Close     string `json:"close,omitempty"`
}

// BalanceView 余额与账本核对结果
type BalanceView struct {
	AccountID  string `json:"account_id"`
	Balance    string `json:"balance"`
	LedgerSum  string `json:"ledger_sum"`
	Consistent bool   `json:"consistent"`
}

type QueryService interface {
	BetHistory(ctx context.Context, accountID, drawLabel string, offset, limit uint) ([]model.BetRecord, error)
	LedgerHistory(ctx context.Context, accountID string, offset, limit uint) ([]LedgerRecord, error)
	DrawResult(ctx context.Context, drawLabel string) (*DrawView, error)
	Balance(ctx context.Context, accountID string) (*BalanceView, error)
}

type queryService struct{}

func NewQueryService() QueryService { return &queryService{} }

var ErrDrawNotFound = errors.New("draw not found")

const maxPageSize = 200

func (s *queryService) BetHistory(ctx context.Context, accountID, drawLabel string, offset, limit uint) ([]model.BetRecord, error) {
	if limit == 0 || limit > maxPageSize {
		limit = 20
	}
	ex := []g.Expression{g.Ex{"account_id": accountID}}
	if drawLabel != "" {
		ex = append(ex, g.Ex{"draw_label": drawLabel})
	}

	var records []model.BetRecord
	err := common.SelectAll(&records, common.QueryArg{
		Db:     infmysql.SQLX(),
		Table:  "bets",
		Fields: common.EnumFields(model.BetRecord{}),
		Ex:     ex,
		Order:  []exp.OrderedExpression{g.C("created_at").Desc()},
		Offset: offset,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *queryService) LedgerHistory(ctx context.Context, accountID string, offset, limit uint) ([]LedgerRecord, error) {
	if limit == 0 || limit > maxPageSize {
		limit = 20
	}

	var records []LedgerRecord
	err := common.SelectAll(&records, common.QueryArg{
		Db:     infmysql.SQLX(),
		Table:  "wallet_ledger",
		Fields: common.EnumFields(LedgerRecord{}),
		Ex:     []g.Expression{g.Ex{"account_id": accountID}},
		Order:  []exp.OrderedExpression{g.C("id").Desc()},
		Offset: offset,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// DrawResult 先查 Redis 缓存，未命中回源数据库
func (s *queryService) DrawResult(ctx context.Context, drawLabel string) (*DrawView, error) {
	if r := infrds.Client(); r != nil {
		if bs, _ := r.Get(ctx, infrds.DrawResultKey(drawLabel)).Bytes(); len(bs) > 0 {
			var v DrawView
			if err := json.Unmarshal(bs, &v); err == nil && v.DrawLabel != "" {
				return &v, nil
			}
		}
	}

	d, err := model.GetDraw(ctx, infmysql.SQLX(), drawLabel)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrDrawNotFound
		}
		return nil, err
	}
	return &DrawView{
		DrawLabel: d.DrawLabel,
		State:     d.DeclareState,
		TwoDigit:  d.TwoDigit,
		Open:      d.OneDigitOpen,
		Close:     d.OneDigitClose,
	}, nil
}

// Balance 返回当前余额，并与账本 SUM 核对
func (s *queryService) Balance(ctx context.Context, accountID string) (*BalanceView, error) {
	acc, err := model.GetAccountByID(ctx, infmysql.SQLX(), accountID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	sum, err := model.SumLedgerByAccount(ctx, infmysql.SQLX(), accountID)
	if err != nil {
		return nil, err
	}

	balanceDec := decimal.NewFromFloat(acc.Balance).Round(2)
	sumDec := decimal.NewFromFloat(sum).Round(2)
	consistent := balanceDec.Equal(sumDec)
	if !consistent {
		fmt.Printf("[Query] 余额与账本不一致: account_id=%s, balance=%s, ledger_sum=%s, at=%s\n",
			accountID, chelper.TrimDecimal(balanceDec), chelper.TrimDecimal(sumDec), time.Now().Format(time.RFC3339))
	}

	return &BalanceView{
		AccountID:  accountID,
		Balance:    chelper.TrimDecimal(balanceDec),
		LedgerSum:  chelper.TrimDecimal(sumDec),
		Consistent: consistent,
	}, nil
}
