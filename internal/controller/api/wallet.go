package api

import (
	"errors"
	"strconv"

	helper "nx-server/internal/common/helper"
	"nx-server/internal/common/response"
	"nx-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"
)

var newQueryService = service.NewQueryService

type WalletController struct{ beego.Controller }

// Balance 余额查询：GET /api/wallet/balance
// 返回余额与账本流水合计的核对结果
func (c *WalletController) Balance() {
	traceID := helper.GetTraceID(c.Ctx)

	accountID := ctxAccountID(c.Ctx)
	if accountID == "" {
		response.Error(&c.Controller, 401, response.CodeUnauthorized, traceID)
		return
	}

	out, err := newQueryService().Balance(c.Ctx.Request.Context(), accountID)
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			response.NotFound(&c.Controller, "账户不存在", traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, out, traceID)
}

// Bets 注单历史：GET /api/wallet/bets?draw_label=&offset=&limit=
func (c *WalletController) Bets() {
	traceID := helper.GetTraceID(c.Ctx)

	accountID := ctxAccountID(c.Ctx)
	if accountID == "" {
		response.Error(&c.Controller, 401, response.CodeUnauthorized, traceID)
		return
	}

	drawLabel := c.GetString("draw_label")
	if drawLabel != "" && !helper.IsValidDrawLabel(drawLabel) {
		response.BadRequest(&c.Controller, "无效的期号标签", traceID)
		return
	}

	offset, limit := pageParams(c)
	out, err := newQueryService().BetHistory(c.Ctx.Request.Context(), accountID, drawLabel, offset, limit)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, out, traceID)
}

// Ledger 账本流水：GET /api/wallet/ledger?offset=&limit=
func (c *WalletController) Ledger() {
	traceID := helper.GetTraceID(c.Ctx)

	accountID := ctxAccountID(c.Ctx)
	if accountID == "" {
		response.Error(&c.Controller, 401, response.CodeUnauthorized, traceID)
		return
	}

	offset, limit := pageParams(c)
	out, err := newQueryService().LedgerHistory(c.Ctx.Request.Context(), accountID, offset, limit)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, out, traceID)
}

// Topup 充值申请：POST /api/wallet/topup
// 创建待审批充值单，审批通过后入账
func (c *WalletController) Topup() {
	tp, ok, msg := helper.ParseAndValidateTopup(c.Ctx)
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

	out, err := newApprovalService().CreateTopup(c.Ctx.Request.Context(), service.TopupInput{
		AccountID: accountID,
		Amount:    tp.Amount,
		Channel:   tp.Channel,
		TraceID:   traceID,
	})
	if err != nil {
		if errors.Is(err, service.ErrBadRequest) {
			response.BadRequest(&c.Controller, "无效的充值金额", traceID)
			return
		}
		if errors.Is(err, service.ErrAccountNotFound) {
			response.NotFound(&c.Controller, "账户不存在", traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, out, traceID)
}

func pageParams(c *WalletController) (offset, limit uint) {
	limit = 20
	if v, err := strconv.Atoi(c.GetString("limit")); err == nil && v > 0 && v <= 200 {
		limit = uint(v)
	}
	if v, err := strconv.Atoi(c.GetString("offset")); err == nil && v > 0 {
		offset = uint(v)
	}
	return offset, limit
}
