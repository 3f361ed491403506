package api

import (
	"errors"

	helper "nx-server/internal/common/helper"
	"nx-server/internal/common/response"
	"nx-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"
)

var newTransferService = service.NewTransferService

type TransferController struct{ beego.Controller }

// Transfer 转账接口：POST /api/transfer
// 转出方为当前登录账户，方向与账变类型由双方角色推导：
// 庄家→用户 dealer_credit；平台→任意 admin_credit；用户→平台 user_debit
func (c *TransferController) Transfer() {
	tp, ok, msg := helper.ParseAndValidateTransfer(c.Ctx)
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

	svc := newTransferService()
	out, err := svc.Transfer(c.Ctx.Request.Context(), service.TransferInput{
		FromAccountID: accountID,
		ToAccountID:   tp.ToAccountID,
		Amount:        tp.Amount,
		Remark:        tp.Remark,
		TraceID:       traceID,
	})
	if err != nil {
		if errors.Is(err, service.ErrSelfTransfer) || errors.Is(err, service.ErrTransferZeroAmount) {
			response.BadRequest(&c.Controller, err.Error(), traceID)
			return
		}
		if errors.Is(err, service.ErrTransferNotAllowed) {
			response.Error(&c.Controller, 403, response.CodeForbidden, traceID)
			return
		}
		if errors.Is(err, service.ErrTransferDestination) {
			response.NotFound(&c.Controller, "对方账户不存在", traceID)
			return
		}
		if errors.Is(err, service.ErrAccountNotFound) {
			response.NotFound(&c.Controller, "账户不存在", traceID)
			return
		}
		if errors.Is(err, service.ErrInsufficientBalance) {
			response.ErrorWithMessage(&c.Controller, 400, response.CodeInsufficientBalance, "余额不足", traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, out, traceID)
}
