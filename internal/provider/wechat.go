package provider

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/wechatpay-apiv3/wechatpay-go/utils"
)

// ============================================================================
// 微信支付 v3 式回调：验签 + AEAD 解密
// ============================================================================
//
// 1. 按回调头里的证书序列号取当前缓存的平台证书，没有命中直接拒绝
// 2. 验签串为 "timestamp\nnonce\nbody\n"，SHA256WithRSA 验签
// 3. 验签通过后用商户 APIv3 密钥对 resource 做 AES-256-GCM 解密
// 4. 解析明文 JSON 取交易状态和金额
//
// 验签和解密都是纯计算，失败即终止本次通知。
// ============================================================================

// WechatHeaders 回调请求头里的验签要素
type WechatHeaders struct {
	Serial    string // Wechatpay-Serial
	Timestamp string // Wechatpay-Timestamp
	Nonce     string // Wechatpay-Nonce
	Signature string // Wechatpay-Signature
}

// wechatNotifyBody 回调外层报文
type wechatNotifyBody struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		Algorithm      string `json:"algorithm"`
		Nonce          string `json:"nonce"`
		AssociatedData string `json:"associated_data"`
		Ciphertext     string `json:"ciphertext"`
	} `json:"resource"`
}

// wechatTransaction 解密后的交易明文
type wechatTransaction struct {
	OutTradeNo    string `json:"out_trade_no"`
	TransactionID string `json:"transaction_id"`
	TradeState    string `json:"trade_state"`
	Amount        struct {
		Total int64 `json:"total"`
	} `json:"amount"`
}

type WechatVerifier struct {
	apiV3Key string
	certs    *CertificateCache
}

func NewWechatVerifier(apiV3Key string, certs *CertificateCache) *WechatVerifier {
	return &WechatVerifier{apiV3Key: apiV3Key, certs: certs}
}

func (v *WechatVerifier) Provider() string {
	return ProviderWechat
}

// Verify 验签并解密回调报文
func (v *WechatVerifier) Verify(headers WechatHeaders, body []byte) Notification {
	n := Notification{Provider: ProviderWechat}

	cert := v.certs.Get(headers.Serial)
	if cert == nil {
		n.Reason = fmt.Sprintf("signature failed: 没有序列号 %s 对应的平台证书", headers.Serial)
		return n
	}

	message := headers.Timestamp + "\n" + headers.Nonce + "\n" + string(body) + "\n"
	if err := v.verifySignature(cert.PublicKey, message, headers.Signature); err != nil {
		n.Reason = "signature failed: " + err.Error()
		return n
	}

	var notify wechatNotifyBody
	if err := json.Unmarshal(body, &notify); err != nil {
		n.Reason = "decrypt failed: 报文解析失败"
		return n
	}

	plaintext, err := utils.DecryptAES256GCM(
		v.apiV3Key,
		notify.Resource.AssociatedData,
		notify.Resource.Nonce,
		notify.Resource.Ciphertext,
	)
	if err != nil {
		n.Reason = "decrypt failed: AEAD 解密失败"
		return n
	}

	var txn wechatTransaction
	if err := json.Unmarshal([]byte(plaintext), &txn); err != nil {
		n.Reason = "decrypt failed: 交易明文解析失败"
		return n
	}

	n.OrderNo = txn.OutTradeNo
	n.TradeNo = txn.TransactionID
	n.Amount = txn.Amount.Total
	n.Verified = true

	if txn.TradeState != "SUCCESS" {
		n.Ignore = true
		n.Reason = fmt.Sprintf("非成功交易状态 %q，忽略", txn.TradeState)
	}
	return n
}

func (v *WechatVerifier) verifySignature(publicKey interface{}, message, signature string) error {
	rsaPub, ok := publicKey.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("平台证书公钥不是 RSA 公钥")
	}

	sigBytes, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("签名 base64 解码失败: %w", err)
	}

	sum := sha256.Sum256([]byte(message))
	if err := rsa.VerifyPKCS1v15(rsaPub, crypto.SHA256, sum[:], sigBytes); err != nil {
		return fmt.Errorf("RSA 验签不通过")
	}
	return nil
}
