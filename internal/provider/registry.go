package provider

import "sync"

// Registry 各渠道验签器的可热替换集合
//
// 渠道凭据轮换时由配置回调整体重建对应的验签器，
// 处理中的请求继续用旧验签器跑完，互不影响。
type Registry struct {
	mu      sync.RWMutex
	alipay  *AlipayVerifier
	wechat  *WechatVerifier
	ikunpay *IkunpayVerifier
	gateway *GatewayVerifier
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) SetAlipay(v *AlipayVerifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alipay = v
}

func (r *Registry) SetWechat(v *WechatVerifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wechat = v
}

func (r *Registry) SetIkunpay(v *IkunpayVerifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ikunpay = v
}

func (r *Registry) SetGateway(v *GatewayVerifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateway = v
}

func (r *Registry) Alipay() *AlipayVerifier {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.alipay
}

func (r *Registry) Wechat() *WechatVerifier {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.wechat
}

func (r *Registry) Ikunpay() *IkunpayVerifier {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ikunpay
}

func (r *Registry) Gateway() *GatewayVerifier {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gateway
}
