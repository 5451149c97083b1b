package handler

import (
	"errors"
	"strconv"

	"paycore/internal/config"
	"paycore/internal/infrastructure/lock"
	"paycore/internal/repository"
	"paycore/internal/service"
	"paycore/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	balanceService   *service.BalanceService
	orderService     *service.OrderService
	payService       *service.PayService
	refundService    *service.RefundService
	reconcileService *service.ReconcileService
	adminService     *service.AdminService
}

func NewHandler(db *gorm.DB, lockStore lock.Store, cfg *config.Config) *Handler {
	return &Handler{
		balanceService:   service.NewBalanceService(db),
		orderService:     service.NewOrderService(db, cfg),
		payService:       service.NewPayService(db, lockStore, cfg),
		refundService:    service.NewRefundService(db, lockStore, cfg),
		reconcileService: service.NewReconcileService(db),
		adminService:     service.NewAdminService(db, lockStore, cfg),
	}
}

// ============================================================
// 余额相关接口
// ============================================================

// GetBalance 查询用户余额
// GET /api/v1/balance?user_id=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	account, err := h.balanceService.GetAccount(c.Request.Context(), userID)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"user_id":         account.UserID,
		"balance":         account.Balance,
		"frozen":          account.Frozen,
		"total_recharged": account.TotalRecharged,
		"total_consumed":  account.TotalConsumed,
	})
}

// ListTransactions 查询余额流水
// GET /api/v1/balance/transactions?user_id=xxx&page=1&page_size=10
func (h *Handler) ListTransactions(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	list, total, err := h.balanceService.ListTransactions(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"list":      list,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ============================================================
// 订单相关接口
// ============================================================

// CreateOrder 创建待支付订单
// POST /api/v1/order/create
func (h *Handler) CreateOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidOrderType) {
			response.ParamError(c, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"order_no":   order.OrderNo,
		"order_type": order.OrderType,
		"status":     order.Status,
		"amount":     order.Amount,
		"expires_at": order.ExpiresAt,
	})
}

// GetOrder 查询订单详情
// GET /api/v1/order/detail?order_no=xxx
func (h *Handler) GetOrder(c *gin.Context) {
	orderNo := c.Query("order_no")
	if orderNo == "" {
		response.ParamError(c, "order_no 参数不能为空")
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), orderNo)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			response.BusinessError(c, response.CodeOrderNotFound, "订单不存在")
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, order)
}

// ListOrders 查询用户订单列表
// GET /api/v1/order/list?user_id=xxx&page=1&page_size=10
func (h *Handler) ListOrders(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	orders, total, err := h.orderService.ListUserOrders(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"list":      orders,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// CancelOrder 取消待支付订单
// POST /api/v1/order/cancel
func (h *Handler) CancelOrder(c *gin.Context) {
	var req struct {
		OrderNo string `json:"order_no" binding:"required"`
		UserID  int64  `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	err := h.orderService.CancelOrder(c.Request.Context(), req.OrderNo, req.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			response.BusinessError(c, response.CodeOrderNotFound, "订单不存在")
			return
		}
		if errors.Is(err, repository.ErrOrderStateConflict) {
			response.BusinessError(c, response.CodeOrderStatusInvalid, "订单状态不允许取消")
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{"message": "订单已取消"})
}

// ============================================================
// 支付相关接口
// ============================================================

// PayOrder 对订单发起支付，按 method 分发
// POST /api/v1/pay/execute
func (h *Handler) PayOrder(c *gin.Context) {
	var req service.PayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.payService.PayOrder(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			response.BusinessError(c, response.CodeOrderNotFound, "订单不存在")
		case errors.Is(err, repository.ErrInsufficientBalance):
			response.BusinessError(c, response.CodeBalanceNotEnough, "余额不足")
		case errors.Is(err, service.ErrOrderNotPayable):
			response.BusinessError(c, response.CodeOrderStatusInvalid, err.Error())
		case errors.Is(err, service.ErrUnsupportedMethod), errors.Is(err, service.ErrBalanceRecharge):
			response.ParamError(c, err.Error())
		case errors.Is(err, lock.ErrLockFailed):
			response.BusinessError(c, response.CodeLockBusy, "系统繁忙，请稍后重试")
		default:
			response.ServerError(c, err.Error())
		}
		return
	}

	response.Success(c, result)
}

// ============================================================
// 退款相关接口
// ============================================================

// RefundOrder 退款到余额
// POST /api/v1/refund/execute
func (h *Handler) RefundOrder(c *gin.Context) {
	var req service.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.refundService.Refund(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			response.BusinessError(c, response.CodeOrderNotFound, "订单不存在")
		case errors.Is(err, service.ErrOrderNotRefundable):
			response.BusinessError(c, response.CodeRefundFailed, err.Error())
		case errors.Is(err, lock.ErrLockFailed):
			response.BusinessError(c, response.CodeLockBusy, "系统繁忙，请稍后重试")
		default:
			response.ServerError(c, err.Error())
		}
		return
	}

	response.Success(c, result)
}

// ============================================================
// 对账接口
// ============================================================

// ReconcileOrder 单笔订单对账诊断
// GET /api/v1/reconcile/order?order_no=xxx
func (h *Handler) ReconcileOrder(c *gin.Context) {
	orderNo := c.Query("order_no")
	if orderNo == "" {
		response.ParamError(c, "order_no 参数不能为空")
		return
	}

	result, err := h.reconcileService.Reconcile(c.Request.Context(), orderNo)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			response.BusinessError(c, response.CodeOrderNotFound, "订单不存在")
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, result)
}

// ============================================================
// 运营后台接口
// ============================================================

// AdminMarkPaid 人工补单
// POST /api/v1/admin/order/mark-paid
func (h *Handler) AdminMarkPaid(c *gin.Context) {
	var req struct {
		OrderNo  string `json:"order_no" binding:"required"`
		Operator string `json:"operator" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	order, err := h.adminService.MarkOrderPaid(c.Request.Context(), req.OrderNo, req.Operator)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			response.BusinessError(c, response.CodeOrderNotFound, "订单不存在")
		case errors.Is(err, service.ErrOrderNotPayable):
			response.BusinessError(c, response.CodeOrderStatusInvalid, err.Error())
		case errors.Is(err, lock.ErrLockFailed):
			response.BusinessError(c, response.CodeLockBusy, "系统繁忙，请稍后重试")
		default:
			response.ServerError(c, err.Error())
		}
		return
	}

	response.Success(c, gin.H{
		"order_no": order.OrderNo,
		"status":   order.Status,
		"trade_no": order.TradeNo,
	})
}

// AdminCancelOrder 人工关单
// POST /api/v1/admin/order/cancel
func (h *Handler) AdminCancelOrder(c *gin.Context) {
	var req struct {
		OrderNo  string `json:"order_no" binding:"required"`
		Operator string `json:"operator" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	err := h.adminService.CancelOrder(c.Request.Context(), req.OrderNo, req.Operator)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			response.BusinessError(c, response.CodeOrderNotFound, "订单不存在")
		case errors.Is(err, repository.ErrOrderStateConflict):
			response.BusinessError(c, response.CodeOrderStatusInvalid, "订单状态不允许取消")
		default:
			response.ServerError(c, err.Error())
		}
		return
	}

	response.Success(c, gin.H{"message": "订单已取消"})
}
