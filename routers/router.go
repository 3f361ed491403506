package routers

import (
	"nx-server/internal/controller/api"
	"nx-server/internal/metrics"
	"nx-server/internal/middleware"

	beego "github.com/beego/beego/v2/server/web"
)

// init 注册HTTP路由与全局过滤器
// 过滤器一律注册，开关类过滤器在请求期自行读取配置决定是否生效
// （路由注册发生在配置加载之前，注册期不能依赖配置）
func init() {
	// 全局过滤器（按执行顺序）
	// 1. Panic Recovery（最先执行，捕获所有 panic）
	beego.InsertFilter("/*", beego.BeforeRouter, middleware.RecoveryFilter)

	// 2. 请求ID注入
	beego.InsertFilter("/*", beego.BeforeRouter, middleware.RequestIDFilter)

	// 3. CORS 处理（配置开关在过滤器内判定）
	beego.InsertFilter("/*", beego.BeforeExec, middleware.CORSFilter)

	// 4. HTTP 指标收集
	beego.InsertFilter("/*", beego.BeforeExec, metrics.HTTPMetricsFilter)
	beego.InsertFilter("/*", beego.FinishRouter, metrics.HTTPMetricsAfter)

	// 健康检查（无需认证）
	beego.Router("/healthz", &api.HealthController{}, "get:Healthz")
	beego.Router("/readyz", &api.HealthController{}, "get:Readyz")

	// ========== 账户令牌 ==========

	// 刷新与注销自带令牌校验，不走过滤器
	beego.Router("/api/account/refresh", &api.AccountController{}, "post:Refresh")
	beego.Router("/api/account/logout", &api.AccountController{}, "post:Logout")

	// ========== 业务 API（JWT 认证） ==========

	userPaths := []string{"/api/bets", "/api/transfer", "/api/wallet/*", "/api/draw/*"}
	for _, p := range userPaths {
		beego.InsertFilter(p, beego.BeforeExec, middleware.AccountAuthFilter)
	}

	// 下注限流：按账户维度
	beego.InsertFilter("/api/bets", beego.BeforeExec, middleware.RateLimitFilter)
	beego.Router("/api/bets", &api.BetController{}, "post:PlaceBets")

	// 转账：转出方为当前登录账户
	beego.Router("/api/transfer", &api.TransferController{}, "post:Transfer")

	// 钱包：余额核对 / 注单历史 / 账本流水 / 充值申请
	beego.Router("/api/wallet/balance", &api.WalletController{}, "get:Balance")
	beego.Router("/api/wallet/bets", &api.WalletController{}, "get:Bets")
	beego.Router("/api/wallet/ledger", &api.WalletController{}, "get:Ledger")
	beego.Router("/api/wallet/topup", &api.WalletController{}, "post:Topup")

	// 期结果查询
	beego.Router("/api/draw/:draw_label", &api.DrawController{}, "get:Result")

	// ========== 管理 API（管理员认证） ==========

	beego.InsertFilter("/api/admin/*", beego.BeforeExec, middleware.AdminAuthFilter)
	beego.Router("/api/admin/register", &api.AccountController{}, "post:Register")
	beego.Router("/api/admin/token", &api.AccountController{}, "post:Token")
	beego.Router("/api/admin/draw/declare", &api.DrawController{}, "post:Declare")
	beego.Router("/api/admin/approve", &api.ApprovalController{}, "post:Approve")
	beego.Router("/api/admin/reject", &api.ApprovalController{}, "post:Reject")
	beego.Router("/api/admin/pending", &api.ApprovalController{}, "get:Pending")
}
