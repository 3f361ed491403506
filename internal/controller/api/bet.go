package api

import (
	"errors"
	"strings"

	helper "nx-server/internal/common/helper"
	"nx-server/internal/common/response"
	"nx-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"

	mysqlerr "github.com/go-sql-driver/mysql"
)

var newBetService = service.NewBetService

type BetController struct{ beego.Controller }

// PlaceBets 下注接口：POST /api/bets
// 一次请求可包含同一期的多条注单，整批原子生效。
// 幂等键约定：
//   - 同一次下注的所有重试传相同 idempotency_key；
//   - 并发重复（处理中）返回 202；历史重复返回首次结果，不算错误；
//   - 服务端三层防护：Redis 进行中锁（约45秒）、idempotency_keys 唯一键、结果短期缓存。
func (c *BetController) PlaceBets() {
	bp, ok, msg := helper.ParseAndValidatePlaceBets(c.Ctx)
	traceID := helper.GetTraceID(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}

	accountID := ctxAccountID(c.Ctx)
	if accountID == "" {
		response.Error(&c.Controller, 401, response.CodeUnauthorized, traceID)
		return
	}

	wagers := make([]service.WagerInput, 0, len(bp.Wagers))
	for _, w := range bp.Wagers {
		wagers = append(wagers, service.WagerInput{
			GameKind: w.GameKind,
			Number:   w.Number,
			Stake:    w.Stake,
		})
	}

	svc := newBetService()
	out, err := svc.PlaceBets(c.Ctx.Request.Context(), service.PlaceBetsInput{
		AccountID:      accountID,
		DrawLabel:      bp.DrawLabel,
		Wagers:         wagers,
		IdempotencyKey: bp.IdempotencyKey,
		TraceID:        traceID,
	})
	if err != nil {
		if me, ok := err.(*mysqlerr.MySQLError); ok && me.Number == 1062 {
			response.Conflict(&c.Controller, response.CodeDuplicateKey, traceID)
			return
		}
		if errors.Is(err, service.ErrDuplicateInFlight) {
			response.Accepted(&c.Controller, "重复请求进行中，请稍后重试", traceID)
			return
		}
		if errors.Is(err, service.ErrKindAlreadyDeclared) {
			response.Conflict(&c.Controller, response.CodeInvalidState, traceID)
			return
		}
		if errors.Is(err, service.ErrInsufficientBalance) {
			response.ErrorWithMessage(&c.Controller, 400, response.CodeInsufficientBalance, "余额不足", traceID)
			return
		}
		if errors.Is(err, service.ErrAccountNotFound) {
			response.NotFound(&c.Controller, "账户不存在", traceID)
			return
		}
		if errors.Is(err, service.ErrAccountDisabled) {
			response.BadRequest(&c.Controller, "账户状态异常", traceID)
			return
		}
		if errors.Is(err, service.ErrBetLimitExceeded) {
			response.ErrorWithMessage(&c.Controller, 400, response.CodeBusinessError, "超出账户投注限额", traceID)
			return
		}
		if errors.Is(err, service.ErrBettingPaused) {
			response.ErrorWithMessage(&c.Controller, 503, response.CodeInvalidState, "投注暂停中，请稍后再试", traceID)
			return
		}
		// 注金校验类错误
		errMsg := err.Error()
		if strings.Contains(errMsg, "invalid stake") ||
			strings.Contains(errMsg, "stake must be positive") ||
			strings.Contains(errMsg, "below minimum limit") ||
			strings.Contains(errMsg, "exceeds maximum limit") {
			response.BadRequest(&c.Controller, errMsg, traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, out, traceID)
}
