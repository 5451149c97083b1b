package handler

import (
	"io"
	"net/http"

	"paycore/internal/provider"
	"paycore/internal/service"

	"github.com/gin-gonic/gin"
)

// WebhookHandler 各渠道回调入口
//
// 每个渠道一个端点，handler 只做协议层的事：收参数、调验签器、
// 把统一的处理结论翻译回渠道要求的应答体。业务判断全在 service 层。
type WebhookHandler struct {
	webhookService *service.WebhookService
	registry       *provider.Registry
}

func NewWebhookHandler(webhookService *service.WebhookService, registry *provider.Registry) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
		registry:       registry,
	}
}

// AlipayNotify 支付宝异步通知
// POST /webhook/alipay（表单）
//
// 支付宝以应答体 "success" 为准，其余内容都会触发重发。
func (h *WebhookHandler) AlipayNotify(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.String(http.StatusOK, "fail")
		return
	}

	params := make(map[string]string, len(c.Request.PostForm))
	for key, values := range c.Request.PostForm {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	verifier := h.registry.Alipay()
	if verifier == nil {
		c.String(http.StatusServiceUnavailable, "fail")
		return
	}

	n := verifier.Verify(params)
	ack := h.webhookService.HandleNotification(c.Request.Context(), n, c.Request.PostForm.Encode())

	if ack == service.AckOK {
		c.String(http.StatusOK, "success")
		return
	}
	c.String(http.StatusOK, "fail")
}

// WechatNotify 微信支付 v3 回调
// POST /webhook/wechat（JSON + 验签头）
//
// 微信按 HTTP 状态码判定：2xx 停止重发，4xx 终态失败，5xx 重发。
func (h *WebhookHandler) WechatNotify(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "FAIL", "message": "读取报文失败"})
		return
	}

	verifier := h.registry.Wechat()
	if verifier == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": "FAIL", "message": "渠道未配置"})
		return
	}

	headers := provider.WechatHeaders{
		Serial:    c.GetHeader("Wechatpay-Serial"),
		Timestamp: c.GetHeader("Wechatpay-Timestamp"),
		Nonce:     c.GetHeader("Wechatpay-Nonce"),
		Signature: c.GetHeader("Wechatpay-Signature"),
	}

	n := verifier.Verify(headers, body)
	ack := h.webhookService.HandleNotification(c.Request.Context(), n, string(body))

	switch ack {
	case service.AckOK:
		c.JSON(http.StatusOK, gin.H{"code": "SUCCESS"})
	case service.AckRetry:
		c.JSON(http.StatusInternalServerError, gin.H{"code": "FAIL", "message": "处理失败，请重试"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"code": "FAIL", "message": "通知被拒绝"})
	}
}

// IkunpayNotify ikunpay 异步通知
// GET/POST /webhook/ikunpay（查询串或表单）
//
// 易支付协议族以应答体 "success" 为准。
func (h *WebhookHandler) IkunpayNotify(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.String(http.StatusOK, "fail")
		return
	}

	params := make(map[string]string, len(c.Request.Form))
	for key, values := range c.Request.Form {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	verifier := h.registry.Ikunpay()
	if verifier == nil {
		c.String(http.StatusServiceUnavailable, "fail")
		return
	}

	n := verifier.Verify(params)
	ack := h.webhookService.HandleNotification(c.Request.Context(), n, c.Request.Form.Encode())

	if ack == service.AckOK {
		c.String(http.StatusOK, "success")
		return
	}
	c.String(http.StatusOK, "fail")
}

// GatewayNotify 通用网关回调
// POST /webhook/gateway（JSON）
//
// 自有协议：code=0 停止重发，非 5xx 的其他应答为终态失败。
func (h *WebhookHandler) GatewayNotify(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 1, "message": "读取报文失败"})
		return
	}

	verifier := h.registry.Gateway()
	if verifier == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": 1, "message": "渠道未配置"})
		return
	}

	n := verifier.Verify(body)
	ack := h.webhookService.HandleNotification(c.Request.Context(), n, string(body))

	switch ack {
	case service.AckOK:
		c.JSON(http.StatusOK, gin.H{"code": 0, "message": "ok"})
	case service.AckRetry:
		c.JSON(http.StatusInternalServerError, gin.H{"code": 1, "message": "处理失败，请重试"})
	default:
		c.JSON(http.StatusOK, gin.H{"code": 1, "message": "通知被拒绝"})
	}
}
