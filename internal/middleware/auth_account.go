package middleware

import (
	"time"

	"nx-server/common/logger"
	"nx-server/internal/auth"
	"nx-server/internal/common/helper"
	"nx-server/internal/common/response"
	"nx-server/internal/config"

	beegocontext "github.com/beego/beego/v2/server/web/context"
	"go.uber.org/zap"
)

// AccountAuthFilter 账户认证过滤器（JWT Token）
// 验证账户的 JWT Token，提取账户信息注入请求上下文
func AccountAuthFilter(ctx *beegocontext.Context) {
	traceID := helper.GetTraceID(ctx)

	// 演示模式跳过认证（账户ID从 X-Account-Id 头读取）
	if cfg := config.Get(); cfg != nil && cfg.Auth.DemoMode {
		if id := ctx.Input.Header("X-Account-Id"); id != "" {
			ctx.Input.SetData("account_id", id)
		}
		return
	}

	// 辅助函数：返回错误
	returnError := func(httpCode int, bizCode int, message string) {
		ctx.Output.SetStatus(httpCode)
		ctx.Output.JSON(response.APIResponse{
			Code:      bizCode,
			Message:   message,
			Data:      nil,
			TraceID:   traceID,
			Timestamp: time.Now().UnixMilli(),
		}, false, false)
	}

	// 1. 验证 JWT Token
	claims, err := auth.VerifyJWTToken(ctx)
	if err != nil {
		logger.Warn("account authentication failed",
			zap.String("trace_id", traceID),
			zap.Error(err))

		// 根据错误类型返回不同的错误码
		switch err {
		case auth.ErrMissingToken:
			returnError(401, response.CodeUnauthorized, "缺少认证Token")
		case auth.ErrInvalidTokenFormat:
			returnError(401, response.CodeInvalidToken, "Token格式无效")
		case auth.ErrInvalidToken:
			returnError(401, response.CodeInvalidToken, "Token无效")
		case auth.ErrTokenExpired:
			returnError(401, response.CodeTokenExpired, "Token已过期")
		case auth.ErrTokenRevoked:
			returnError(401, response.CodeTokenRevoked, "Token已撤销")
		default:
			returnError(401, response.CodeUnauthorized, "认证失败")
		}
		return
	}

	// 2. 仅 access token 可访问业务接口
	if claims.TokenType != "access" {
		logger.Warn("wrong token type",
			zap.String("trace_id", traceID),
			zap.String("token_type", claims.TokenType))
		returnError(401, response.CodeInvalidToken, "Token类型错误")
		return
	}

	// 3. 将账户信息存入 context
	ctx.Input.SetData("account_id", claims.AccountID)
	ctx.Input.SetData("username", claims.Username)
	ctx.Input.SetData("role", claims.Role)
	ctx.Input.SetData("jwt_claims", claims)

	logger.Debug("account authentication successful",
		zap.String("trace_id", traceID),
		zap.String("account_id", claims.AccountID),
		zap.String("role", claims.Role))
}
