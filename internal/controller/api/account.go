package api

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"nx-server/internal/auth"
	helper "nx-server/internal/common/helper"
	"nx-server/internal/common/response"
	"nx-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"
	beegocontext "github.com/beego/beego/v2/server/web/context"
)

var newAccountService = service.NewAccountService

type AccountController struct{ beego.Controller }

// Register 开户接口：POST /api/admin/register（仅管理员）
// 角色为 user 时可挂靠庄家并设置返水比例；dealer 设置佣金比例
func (c *AccountController) Register() {
	rp, ok, msg := helper.ParseAndValidateRegister(c.Ctx)
	traceID := helper.GetTraceID(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}

	svc := newAccountService()
	out, err := svc.Register(c.Ctx.Request.Context(), service.RegisterInput{
		Username:       rp.Username,
		Role:           rp.Role,
		DealerID:       rp.DealerID,
		CommissionRate: rp.CommissionRate,
		RateTwoDigit:   rp.RateTwoDigit,
		RateOneDigit:   rp.RateOneDigit,
		BetLimitSingle: rp.BetLimitSingle,
		BetLimitDraw:   rp.BetLimitDraw,
		TraceID:        traceID,
	})
	if err != nil {
		if errors.Is(err, service.ErrDealerNotFound) {
			response.BadRequest(&c.Controller, "所属庄家不存在或非庄家角色", traceID)
			return
		}
		if errors.Is(err, service.ErrDuplicateUsername) {
			response.Conflict(&c.Controller, response.CodeDuplicateKey, traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, out, traceID)
}

type tokenRequest struct {
	AccountID string `json:"account_id"`
}

// Token 签发接口：POST /api/admin/token（仅管理员）
// 为指定账户签发访问令牌与刷新令牌
func (c *AccountController) Token() {
	traceID := helper.GetTraceID(c.Ctx)

	var req tokenRequest
	if err := json.NewDecoder(c.Ctx.Request.Body).Decode(&req); err != nil || req.AccountID == "" {
		response.BadRequest(&c.Controller, "无效的请求参数", traceID)
		return
	}

	out, err := newAccountService().IssueTokens(c.Ctx.Request.Context(), req.AccountID, traceID)
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			response.NotFound(&c.Controller, "账户不存在", traceID)
			return
		}
		if errors.Is(err, service.ErrAccountDisabled) {
			response.BadRequest(&c.Controller, "账户状态异常", traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, out, traceID)
}

// Refresh 刷新令牌：POST /api/account/refresh
// Authorization 头携带刷新令牌，签发新的访问令牌
func (c *AccountController) Refresh() {
	traceID := helper.GetTraceID(c.Ctx)

	claims, err := auth.VerifyJWTToken(c.Ctx)
	if err != nil {
		response.Error(&c.Controller, 401, response.CodeInvalidToken, traceID)
		return
	}
	if claims.TokenType != "refresh" {
		response.Error(&c.Controller, 401, response.CodeInvalidToken, traceID)
		return
	}

	access, err := auth.GenerateAccessToken(claims.AccountID, claims.Username, claims.Role)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"access_token": access,
	}, traceID)
}

// Logout 注销：POST /api/account/logout
// 当前令牌进入黑名单，有效期内不再可用
func (c *AccountController) Logout() {
	traceID := helper.GetTraceID(c.Ctx)

	claims, err := auth.VerifyJWTToken(c.Ctx)
	if err != nil {
		response.Error(&c.Controller, 401, response.CodeInvalidToken, traceID)
		return
	}

	expiresAt := time.Now().Add(time.Hour)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := auth.RevokeToken(c.Ctx.Request.Context(), bearerToken(c.Ctx), expiresAt); err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{"revoked": true}, traceID)
}

// bearerToken 从 Authorization 头提取裸 token（校验已在 VerifyJWTToken 完成）
func bearerToken(ctx *beegocontext.Context) string {
	parts := strings.Split(strings.TrimSpace(ctx.Input.Header("Authorization")), " ")
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}

// ctxAccountID 认证中间件注入的当前账户ID
func ctxAccountID(ctx *beegocontext.Context) string {
	if v := ctx.Input.GetData("account_id"); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
