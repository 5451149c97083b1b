package config

import (
	"sync"

	"paycore/pkg/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config 全局配置结构
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	MySQL     MySQLConfig     `mapstructure:"mysql"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Business  BusinessConfig  `mapstructure:"business"`
	Providers ProvidersConfig `mapstructure:"providers"`

	mu                sync.RWMutex
	onProvidersChange []func(ProvidersConfig)
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	OrderPaid     string `mapstructure:"order_paid"`
	OrderRefunded string `mapstructure:"order_refunded"`
}

type BusinessConfig struct {
	OrderExpireMinutes    int `mapstructure:"order_expire_minutes"`    // 订单有效期，默认 120 分钟
	MaxRetryCount         int `mapstructure:"max_retry_count"`         // 消息最大重试次数
	VipDurationDays       int `mapstructure:"vip_duration_days"`       // VIP 单次购买延长天数
	CreditPackQuantity    int `mapstructure:"credit_pack_quantity"`    // 加油包单次购买次数
	NotifyLockSeconds     int `mapstructure:"notify_lock_seconds"`     // 回调处理锁 TTL
	NotifyLockWaitRetries int `mapstructure:"notify_lock_wait_retries"` // 回调抢锁重试次数（100ms 一次）
}

// ProvidersConfig 支付渠道凭据，支持运行时热更新
type ProvidersConfig struct {
	Alipay  AlipayConfig  `mapstructure:"alipay"`
	Wechat  WechatConfig  `mapstructure:"wechat"`
	Ikunpay IkunpayConfig `mapstructure:"ikunpay"`
	Gateway GatewayConfig `mapstructure:"gateway"`
}

type AlipayConfig struct {
	AppID        string `mapstructure:"app_id"`
	PublicKeyPEM string `mapstructure:"public_key_pem"` // 支付宝公钥（验签用）
}

type WechatConfig struct {
	MchID              string `mapstructure:"mch_id"`
	APIv3Key           string `mapstructure:"apiv3_key"`            // 回调资源解密密钥
	CertURL            string `mapstructure:"cert_url"`             // 平台证书下载地址
	CertRefreshMinutes int    `mapstructure:"cert_refresh_minutes"` // 证书刷新周期
}

type IkunpayConfig struct {
	MerchantID string `mapstructure:"merchant_id"`
	Secret     string `mapstructure:"secret"` // 签名共享密钥
}

type GatewayConfig struct {
	Secret string `mapstructure:"secret"` // 通用网关 HMAC 密钥
}

// LoadConfig 加载配置文件并监听变更
//
// 渠道凭据轮换时只改配置文件，不需要重启服务：
// viper 监听到文件变化后重新解析 providers 段。
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		logger.L.Fatal("读取配置文件失败", zap.Error(err))
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		logger.L.Fatal("解析配置文件失败", zap.Error(err))
	}

	viper.OnConfigChange(func(e fsnotify.Event) {
		var providers ProvidersConfig
		if err := viper.UnmarshalKey("providers", &providers); err != nil {
			logger.L.Error("重新加载渠道凭据失败", zap.Error(err))
			return
		}
		config.mu.Lock()
		config.Providers = providers
		callbacks := config.onProvidersChange
		config.mu.Unlock()

		for _, fn := range callbacks {
			fn(providers)
		}
		logger.L.Info("渠道凭据已热更新", zap.String("file", e.Name))
	})
	viper.WatchConfig()

	return config
}

// GetProviders 读取当前渠道凭据快照
func (c *Config) GetProviders() ProvidersConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Providers
}

// OnProvidersChange 注册渠道凭据热更新回调
func (c *Config) OnProvidersChange(fn func(ProvidersConfig)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onProvidersChange = append(c.onProvidersChange, fn)
}
