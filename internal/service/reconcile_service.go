package service

import (
	"context"
	"strings"

	"paycore/internal/model"
	"paycore/internal/repository"

	"gorm.io/gorm"
)

// 对账诊断结论
const (
	DiagnosisOK                  = "ok"
	DiagnosisNoCallback          = "no_callback"
	DiagnosisSignatureFailed     = "signature_failed"
	DiagnosisDecryptFailed       = "decrypt_failed"
	DiagnosisAmountMismatch      = "amount_mismatch"
	DiagnosisPaidWithoutCallback = "paid_without_success_callback"
	DiagnosisCallbackWithoutPaid = "success_callback_but_order_not_paid"
)

// ReconcileService 单笔订单对账
//
// 把订单状态和回调审计记录放在一起比对，定位"钱和单对不上"的
// 具体环节：是渠道没回调、验签挂了、金额不符，还是我们这边没记账。
type ReconcileService struct {
	orderRepo    *repository.OrderRepository
	callbackRepo *repository.CallbackRepository
}

func NewReconcileService(db *gorm.DB) *ReconcileService {
	return &ReconcileService{
		orderRepo:    repository.NewOrderRepository(db),
		callbackRepo: repository.NewCallbackRepository(db),
	}
}

type ReconcileResult struct {
	OrderNo   string                 `json:"order_no"`
	Status    string                 `json:"status"`
	Amount    int64                  `json:"amount"`
	Diagnosis string                 `json:"diagnosis"`
	Events    []*model.CallbackEvent `json:"events"`
}

// Reconcile 对一笔订单给出诊断
func (s *ReconcileService) Reconcile(ctx context.Context, orderNo string) (*ReconcileResult, error) {
	order, err := s.orderRepo.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}

	events, err := s.callbackRepo.ListByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}

	result := &ReconcileResult{
		OrderNo: order.OrderNo,
		Status:  order.Status,
		Amount:  order.Amount,
		Events:  events,
	}
	result.Diagnosis = diagnose(order, events)
	return result, nil
}

func diagnose(order *model.PaymentOrder, events []*model.CallbackEvent) string {
	hasSuccess := false
	for _, e := range events {
		if e.Verified && e.Success {
			hasSuccess = true
			break
		}
	}

	if order.Status == model.OrderStatusPaid || order.Status == model.OrderStatusRefunded {
		if hasSuccess || order.PaymentMethod == model.PayMethodBalance {
			return DiagnosisOK
		}
		// 人工标记支付或回调审计记录缺失
		return DiagnosisPaidWithoutCallback
	}

	if hasSuccess {
		return DiagnosisCallbackWithoutPaid
	}
	if len(events) == 0 {
		return DiagnosisNoCallback
	}

	// 没有成功记录时，用最近一条事件的失败原因定位环节
	last := events[len(events)-1]
	switch {
	case strings.HasPrefix(last.Reason, model.CallbackReasonAmountMismatch):
		return DiagnosisAmountMismatch
	case strings.HasPrefix(last.Reason, model.CallbackReasonDecryptFailed):
		return DiagnosisDecryptFailed
	case strings.HasPrefix(last.Reason, model.CallbackReasonSignatureFailed):
		return DiagnosisSignatureFailed
	default:
		return DiagnosisNoCallback
	}
}
