package api

import (
	"errors"
	"strconv"

	helper "nx-server/internal/common/helper"
	"nx-server/internal/common/response"
	"nx-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"
)

var newApprovalService = service.NewApprovalService

type ApprovalController struct{ beego.Controller }

// Approve 审批通过接口：POST /api/admin/approve（仅管理员）
// kind 为 prize / commission / topup，审批通过后入账并写流水
func (c *ApprovalController) Approve() {
	ap, ok, msg := helper.ParseAndValidateApprove(c.Ctx)
	traceID := helper.GetTraceID(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}

	svc := newApprovalService()
	out, err := svc.Approve(c.Ctx.Request.Context(), service.ApproveInput{
		Kind:       ap.Kind,
		ID:         ap.ID,
		ApprovedBy: approvalOperator(c),
		TraceID:    traceID,
	})
	if err != nil {
		c.writeApprovalError(err, traceID)
		return
	}

	response.Success(&c.Controller, out, traceID)
}

// Reject 充值拒绝接口：POST /api/admin/reject（仅管理员）
// 仅支持 kind=topup，记录拒绝原因，不动余额
func (c *ApprovalController) Reject() {
	ap, ok, msg := helper.ParseAndValidateApprove(c.Ctx)
	traceID := helper.GetTraceID(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}
	if ap.Kind != "topup" {
		response.BadRequest(&c.Controller, "仅充值单支持拒绝操作", traceID)
		return
	}

	svc := newApprovalService()
	out, err := svc.RejectTopup(c.Ctx.Request.Context(), service.ApproveInput{
		Kind:       ap.Kind,
		ID:         ap.ID,
		ApprovedBy: approvalOperator(c),
		Reason:     ap.Reason,
		TraceID:    traceID,
	})
	if err != nil {
		c.writeApprovalError(err, traceID)
		return
	}

	response.Success(&c.Controller, out, traceID)
}

// Pending 待审批列表：GET /api/admin/pending?kind=prize|commission|topup
func (c *ApprovalController) Pending() {
	traceID := helper.GetTraceID(c.Ctx)
	kind := c.GetString("kind")

	limit := 50
	if v, err := strconv.Atoi(c.GetString("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}

	svc := newApprovalService()
	var (
		data interface{}
		err  error
	)
	switch kind {
	case "prize":
		data, err = svc.PendingPrizes(c.Ctx.Request.Context(), limit)
	case "commission":
		data, err = svc.PendingCommissions(c.Ctx.Request.Context(), limit)
	case "topup":
		data, err = svc.PendingTopups(c.Ctx.Request.Context(), limit)
	default:
		response.BadRequest(&c.Controller, "无效的审批类型", traceID)
		return
	}
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, data, traceID)
}

func (c *ApprovalController) writeApprovalError(err error, traceID string) {
	if errors.Is(err, service.ErrApprovalNotFound) {
		response.NotFound(&c.Controller, "审批单不存在", traceID)
		return
	}
	if errors.Is(err, service.ErrAlreadyProcessed) {
		response.Conflict(&c.Controller, response.CodeAlreadyProcessed, traceID)
		return
	}
	if errors.Is(err, service.ErrUnknownApprovalKind) {
		response.BadRequest(&c.Controller, "无效的审批类型", traceID)
		return
	}
	if errors.Is(err, service.ErrAccountNotFound) {
		response.NotFound(&c.Controller, "账户不存在", traceID)
		return
	}
	response.InternalError(&c.Controller, traceID)
}

// approvalOperator 操作者：认证中间件注入的账户ID，简单Token模式下为 admin
func approvalOperator(c *ApprovalController) string {
	if id := ctxAccountID(c.Ctx); id != "" {
		return id
	}
	return "admin"
}
