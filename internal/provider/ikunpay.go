package provider

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// ============================================================================
// ikunpay 式共享密钥签名（易支付协议族）
// ============================================================================
//
// 签名算法：除 sign 外全部参数按 key 字典序拼成 k=v&k=v，
// 末尾直接拼接共享密钥后取 MD5 十六进制小写。
// 比对必须用常量时间比较，防止时序侧信道。
// ============================================================================

type IkunpayVerifier struct {
	secret string
}

func NewIkunpayVerifier(secret string) *IkunpayVerifier {
	return &IkunpayVerifier{secret: secret}
}

func (v *IkunpayVerifier) Provider() string {
	return ProviderIkunpay
}

// Verify 验签并归一化通知参数
func (v *IkunpayVerifier) Verify(params map[string]string) Notification {
	n := Notification{Provider: ProviderIkunpay}

	sign := params["sign"]
	if sign == "" {
		n.Reason = "signature failed: 缺少签名"
		return n
	}

	content := CanonicalQuery(params, "sign", "sign_type") + v.secret
	sum := md5.Sum([]byte(content))
	expected := hex.EncodeToString(sum[:])

	if subtle.ConstantTimeCompare([]byte(expected), []byte(sign)) != 1 {
		n.Reason = "signature failed: 摘要不匹配"
		return n
	}

	n.OrderNo = params["out_trade_no"]
	n.TradeNo = params["trade_no"]

	amount, err := YuanToCents(params["money"])
	if err != nil {
		n.Reason = "signature failed: " + err.Error()
		return n
	}
	n.Amount = amount
	n.Verified = true

	if params["trade_status"] != "TRADE_SUCCESS" {
		n.Ignore = true
		n.Reason = fmt.Sprintf("非成功交易状态 %q，忽略", params["trade_status"])
	}
	return n
}
