package api

import (
	"errors"

	helper "nx-server/internal/common/helper"
	"nx-server/internal/common/response"
	"nx-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"
)

var newDrawService = service.NewDrawService

type DrawController struct{ beego.Controller }

// Declare 开奖声明接口：POST /api/admin/draw/declare（仅管理员）
// 每次声明恰好一个结果组件（two_digit / open / close）。
// 同值重复声明为安全幂等空操作；异值返回冲突。
func (c *DrawController) Declare() {
	dp, ok, msg := helper.ParseAndValidateDeclareDraw(c.Ctx)
	traceID := helper.GetTraceID(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}

	operator := ctxAccountID(c.Ctx)
	if operator == "" {
		operator = "admin"
	}

	svc := newDrawService()
	out, err := svc.DeclareDraw(c.Ctx.Request.Context(), service.DeclareInput{
		DrawLabel: dp.DrawLabel,
		TwoDigit:  dp.TwoDigit,
		Open:      dp.Open,
		Close:     dp.Close,
		Operator:  operator,
		Source:    "api",
		TraceID:   traceID,
	})
	if err != nil {
		if errors.Is(err, service.ErrOutcomeConflict) {
			response.Conflict(&c.Controller, response.CodeOutcomeConflict, traceID)
			return
		}
		if errors.Is(err, service.ErrBadRequest) {
			response.BadRequest(&c.Controller, "无效的开奖声明参数", traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, out, traceID)
}

// Result 期结果查询：GET /api/draw/:draw_label
func (c *DrawController) Result() {
	traceID := helper.GetTraceID(c.Ctx)

	drawLabel := c.Ctx.Input.Param(":draw_label")
	if !helper.IsValidDrawLabel(drawLabel) {
		response.BadRequest(&c.Controller, "无效的期号标签", traceID)
		return
	}

	out, err := newQueryService().DrawResult(c.Ctx.Request.Context(), drawLabel)
	if err != nil {
		if errors.Is(err, service.ErrDrawNotFound) {
			response.NotFound(&c.Controller, "该期不存在", traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, out, traceID)
}
