package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// 通用签名网关：简化的自有渠道协议
//
// 报文为 JSON，签名是对 "order_no|trade_no|method|amount"
// 做 HMAC-SHA256，密钥为双方约定的共享密钥。

// GatewayNotify 通用网关回调报文
type GatewayNotify struct {
	OrderNo string `json:"order_no"`
	TradeNo string `json:"trade_no"`
	Method  string `json:"method"`
	Amount  int64  `json:"amount"` // 单位：分
	Sign    string `json:"sign"`
}

type GatewayVerifier struct {
	secret string
}

func NewGatewayVerifier(secret string) *GatewayVerifier {
	return &GatewayVerifier{secret: secret}
}

func (v *GatewayVerifier) Provider() string {
	return ProviderGateway
}

// Sign 计算通用网关签名，测试与下游模拟器复用
func (v *GatewayVerifier) Sign(orderNo, tradeNo, method string, amount int64) string {
	payload := fmt.Sprintf("%s|%s|%s|%d", orderNo, tradeNo, method, amount)
	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify 验签并归一化通知
func (v *GatewayVerifier) Verify(body []byte) Notification {
	n := Notification{Provider: ProviderGateway}

	var notify GatewayNotify
	if err := json.Unmarshal(body, &notify); err != nil {
		n.Reason = "signature failed: 报文解析失败"
		return n
	}

	expected := v.Sign(notify.OrderNo, notify.TradeNo, notify.Method, notify.Amount)
	if !hmac.Equal([]byte(expected), []byte(notify.Sign)) {
		n.Reason = "signature failed: HMAC 不匹配"
		return n
	}

	n.OrderNo = notify.OrderNo
	n.TradeNo = notify.TradeNo
	n.Amount = notify.Amount
	n.Verified = true
	return n
}
