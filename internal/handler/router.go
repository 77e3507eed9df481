package handler

import (
	"agrimatch/pkg/auth"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type RouterOptions struct {
	Mode        string
	ServiceName string
	CookieName  string
}

// SetupRouter 配置路由
func SetupRouter(h *Handler, tm *auth.TokenManager, opts RouterOptions) *gin.Engine {
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())
	if opts.ServiceName != "" {
		r.Use(otelgin.Middleware(opts.ServiceName))
	}

	points := r.Group("/api/points")
	{
		points.GET("/limits", OptionalAuthMiddleware(tm, opts.CookieName), h.GetLimits)

		authed := points.Group("", AuthMiddleware(tm, opts.CookieName))
		{
			authed.GET("/me", h.GetMe)
			authed.GET("/tx", h.ListTransactions)
			authed.GET("/reconcile", h.Reconcile)
			authed.POST("/recharge", h.Recharge)
			authed.POST("/redeem", h.Redeem)

			authed.POST("/recharge/create", h.CreateRechargeOrder)
			authed.GET("/recharge/:orderNo/status", h.RechargeOrderStatus)
			authed.POST("/recharge/:orderNo/confirm", h.ConfirmRechargeOrder)

			authed.POST("/redeem/card", h.RedeemCard)
			authed.GET("/redeem/card/records", h.ListCardRedemptions)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
