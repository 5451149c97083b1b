package handler

import (
	"paycore/internal/config"
	"paycore/internal/infrastructure/lock"
	"paycore/internal/provider"
	"paycore/internal/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, lockStore lock.Store, cfg *config.Config, registry *provider.Registry) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	h := NewHandler(db, lockStore, cfg)
	wh := NewWebhookHandler(service.NewWebhookService(db, lockStore, cfg), registry)

	api := r.Group("/api/v1")
	{
		balance := api.Group("/balance")
		{
			balance.GET("", h.GetBalance)
			balance.GET("/transactions", h.ListTransactions)
		}

		order := api.Group("/order")
		{
			order.POST("/create", h.CreateOrder)
			order.GET("/detail", h.GetOrder)
			order.GET("/list", h.ListOrders)
			order.POST("/cancel", h.CancelOrder)
		}

		pay := api.Group("/pay")
		{
			pay.POST("/execute", h.PayOrder)
		}

		refund := api.Group("/refund")
		{
			refund.POST("/execute", h.RefundOrder)
		}

		reconcile := api.Group("/reconcile")
		{
			reconcile.GET("/order", h.ReconcileOrder)
		}

		admin := api.Group("/admin")
		{
			admin.POST("/order/mark-paid", h.AdminMarkPaid)
			admin.POST("/order/cancel", h.AdminCancelOrder)
		}
	}

	// 渠道回调，放在 API 组外面：渠道按各自协议应答，不走统一响应体
	webhook := r.Group("/webhook")
	{
		webhook.POST("/alipay", wh.AlipayNotify)
		webhook.POST("/wechat", wh.WechatNotify)
		webhook.GET("/ikunpay", wh.IkunpayNotify)
		webhook.POST("/ikunpay", wh.IkunpayNotify)
		webhook.POST("/gateway", wh.GatewayNotify)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
