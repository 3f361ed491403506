package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"nx-server/common/constant"
	chelper "nx-server/common/helper"
	"nx-server/internal/auth"
	infmysql "nx-server/internal/infra/mysql"
	"nx-server/internal/model"

	mysqlerr "github.com/go-sql-driver/mysql"
)

// RegisterInput 注册入参
type RegisterInput struct {
	Username       string
	Role           string // user | dealer
	DealerID       string // user 专用：所属庄家账户ID（可空）
	CommissionRate string // 佣金/返水比例（%，可空）
	RateTwoDigit   string // 两位数玩法派彩倍率（可空=用平台默认）
	RateOneDigit   string // 单数玩法派彩倍率（可空=用平台默认）
	BetLimitSingle string // 单注注金上限（可空=不限）
	BetLimitDraw   string // 单期累计注金上限（可空=不限）
	TraceID        string
}

type RegisterOutput struct {
	AccountID string `json:"account_id"`
	AccountNo string `json:"account_no"`
	Username  string `json:"username"`
	Role      string `json:"role"`
}

type TokenOutput struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type AccountService interface {
	Register(ctx context.Context, in RegisterInput) (*RegisterOutput, error)
	IssueTokens(ctx context.Context, accountID, traceID string) (*TokenOutput, error)
}

type accountService struct{}

func NewAccountService() AccountService { return &accountService{} }

var (
	ErrDealerNotFound    = errors.New("dealer not found")
	ErrDuplicateUsername = errors.New("username already taken")
)

// Register 创建账户：
// 1. 校验角色与所属庄家
// 2. 生成账户ID与10位带Luhn校验位的账号
// 3. 入库（余额从0开始，充值走审批流）
func (s *accountService) Register(ctx context.Context, in RegisterInput) (*RegisterOutput, error) {
	roleCode := int8(1)
	if in.Role == "dealer" {
		roleCode = 2
	}

	fmt.Printf("[Account] 收到注册请求: username=%s, role=%s, dealer_id=%s, trace_id=%s\n",
		in.Username, in.Role, in.DealerID, in.TraceID)

	// user 绑定庄家时校验庄家存在且角色正确
	if in.DealerID != "" {
		dealer, err := model.GetAccountByID(ctx, infmysql.SQLX(), in.DealerID)
		if err != nil {
			fmt.Printf("[Account] 所属庄家不存在: dealer_id=%s, trace_id=%s\n", in.DealerID, in.TraceID)
			return nil, ErrDealerNotFound
		}
		if dealer.Role != 2 {
			fmt.Printf("[Account] 指定账户不是庄家: dealer_id=%s, role=%d, trace_id=%s\n",
				in.DealerID, dealer.Role, in.TraceID)
			return nil, ErrDealerNotFound
		}
	}

	accountNo, err := chelper.Generate9PlusLuhn()
	if err != nil {
		return nil, fmt.Errorf("generate account no: %w", err)
	}

	acc := &model.Account{
		AccountID:      newID(idPrefixAccount),
		AccountNo:      accountNo,
		Username:       in.Username,
		Role:           roleCode,
		Balance:        0,
		DealerID:       in.DealerID,
		CommissionRate: parseRateOrZero(in.CommissionRate),
		RateTwoDigit:   parseRateOrZero(in.RateTwoDigit),
		RateOneDigit:   parseRateOrZero(in.RateOneDigit),
		BetLimitSingle: parseRateOrZero(in.BetLimitSingle),
		BetLimitDraw:   parseRateOrZero(in.BetLimitDraw),
		Status:         1,
	}

	if err := acc.Insert(ctx, infmysql.SQLX()); err != nil {
		if me, ok := err.(*mysqlerr.MySQLError); ok && me.Number == 1062 {
			return nil, ErrDuplicateUsername
		}
		return nil, err
	}

	fmt.Printf("[Account] 注册成功: account_id=%s, account_no=%s, username=%s, trace_id=%s\n",
		acc.AccountID, acc.AccountNo, acc.Username, in.TraceID)

	return &RegisterOutput{
		AccountID: acc.AccountID,
		AccountNo: acc.AccountNo,
		Username:  acc.Username,
		Role:      in.Role,
	}, nil
}

// IssueTokens 为账户签发访问令牌与刷新令牌（管理员操作）
func (s *accountService) IssueTokens(ctx context.Context, accountID, traceID string) (*TokenOutput, error) {
	acc, err := model.GetAccountByID(ctx, infmysql.SQLX(), accountID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	if acc.Status != constant.StatusNormal {
		return nil, ErrAccountDisabled
	}

	role := constant.RoleDesc[acc.Role]
	access, err := auth.GenerateAccessToken(acc.AccountID, acc.Username, role)
	if err != nil {
		return nil, err
	}
	refresh, err := auth.GenerateRefreshToken(acc.AccountID, acc.Username, role)
	if err != nil {
		return nil, err
	}

	fmt.Printf("[Account] 签发令牌: account_id=%s, role=%s, trace_id=%s\n", accountID, role, traceID)
	return &TokenOutput{AccessToken: access, RefreshToken: refresh}, nil
}

// parseRateOrZero 费率字符串解析（入参层已校验格式，解析失败按0处理）
func parseRateOrZero(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
