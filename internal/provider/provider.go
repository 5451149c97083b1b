package provider

// 渠道标识
const (
	ProviderAlipay  = "alipay"
	ProviderWechat  = "wechat"
	ProviderIkunpay = "ikunpay"
	ProviderGateway = "gateway"
)

// Notification 各渠道回调统一归一化后的结果
//
// Verified=false 表示验签/解密失败，本次通知终止，绝不触碰订单状态。
// Ignore=true 表示验签通过但交易状态不是成功态（如等待付款），
// 记录后按渠道要求应答成功，避免无意义的重发。
type Notification struct {
	Provider string
	OrderNo  string
	TradeNo  string
	Amount   int64 // 单位：分
	Verified bool
	Ignore   bool
	Reason   string
}

// Verifier 渠道适配器：把原始报文转成归一化通知
//
// 适配器只做纯计算（验签、解密、解析），不访问存储。
type Verifier interface {
	// Provider 返回渠道标识
	Provider() string
}
