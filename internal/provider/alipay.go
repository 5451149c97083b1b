package provider

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ============================================================================
// 支付宝式异步通知验签（RSA2）
// ============================================================================
//
// 验签流程：
//   1. 剔除 sign / sign_type 两个参数
//   2. 其余参数按 key 字典序排列，拼成 k=v&k=v 待签名串
//   3. 用支付宝公钥做 SHA256WithRSA 验签
//
// sign_type 只接受 RSA2，旧的 RSA(SHA1) 一律拒绝。
// ============================================================================

const alipaySignTypeRSA2 = "RSA2"

// 成功态交易状态，其余状态验签通过也只记录不处理
var alipaySuccessStates = map[string]bool{
	"TRADE_SUCCESS":  true,
	"TRADE_FINISHED": true,
}

type AlipayVerifier struct {
	publicKey *rsa.PublicKey
}

// NewAlipayVerifier 从 PEM 公钥构造验签器
func NewAlipayVerifier(publicKeyPEM string) (*AlipayVerifier, error) {
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return nil, errors.New("支付宝公钥 PEM 解析失败")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("支付宝公钥解析失败: %w", err)
	}

	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("支付宝公钥不是 RSA 公钥")
	}

	return &AlipayVerifier{publicKey: rsaPub}, nil
}

func (v *AlipayVerifier) Provider() string {
	return ProviderAlipay
}

// Verify 验签并归一化通知参数
func (v *AlipayVerifier) Verify(params map[string]string) Notification {
	n := Notification{Provider: ProviderAlipay}

	if params["sign_type"] != alipaySignTypeRSA2 {
		n.Reason = fmt.Sprintf("signature failed: 不支持的签名类型 %q", params["sign_type"])
		return n
	}

	sign := params["sign"]
	if sign == "" {
		n.Reason = "signature failed: 缺少签名"
		return n
	}

	if err := v.verifySign(params, sign); err != nil {
		n.Reason = "signature failed: " + err.Error()
		return n
	}

	n.OrderNo = params["out_trade_no"]
	n.TradeNo = params["trade_no"]

	amount, err := YuanToCents(params["total_amount"])
	if err != nil {
		n.Reason = "signature failed: " + err.Error()
		return n
	}
	n.Amount = amount
	n.Verified = true

	if !alipaySuccessStates[params["trade_status"]] {
		n.Ignore = true
		n.Reason = fmt.Sprintf("非成功交易状态 %q，忽略", params["trade_status"])
	}
	return n
}

func (v *AlipayVerifier) verifySign(params map[string]string, sign string) error {
	content := CanonicalQuery(params, "sign", "sign_type")

	sigBytes, err := base64.StdEncoding.DecodeString(sign)
	if err != nil {
		return fmt.Errorf("签名 base64 解码失败: %w", err)
	}

	sum := sha256.Sum256([]byte(content))
	if err := rsa.VerifyPKCS1v15(v.publicKey, crypto.SHA256, sum[:], sigBytes); err != nil {
		return errors.New("RSA 验签不通过")
	}
	return nil
}

// CanonicalQuery 参数按 key 字典序拼接为 k=v&k=v，空值与排除项跳过
func CanonicalQuery(params map[string]string, exclude ...string) string {
	excluded := make(map[string]bool, len(exclude))
	for _, k := range exclude {
		excluded[k] = true
	}

	keys := make([]string, 0, len(params))
	for k, v := range params {
		if excluded[k] || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	return strings.Join(pairs, "&")
}
