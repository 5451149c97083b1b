package provider

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/wechatpay-apiv3/wechatpay-go/utils"
)

// CertificateCache 平台证书缓存
//
// 验签必须使用回调头里 serial 对应的那张证书；平台会轮换证书，
// 所以缓存按序列号索引、由后台任务定期整体替换。
type CertificateCache struct {
	mu    sync.RWMutex
	certs map[string]*x509.Certificate
}

func NewCertificateCache() *CertificateCache {
	return &CertificateCache{certs: make(map[string]*x509.Certificate)}
}

// Get 按序列号取证书，没有命中返回 nil
func (c *CertificateCache) Get(serial string) *x509.Certificate {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.certs[serial]
}

// Replace 整体替换缓存内容（轮换后旧证书随之失效）
func (c *CertificateCache) Replace(certs map[string]*x509.Certificate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.certs = certs
}

// Size 当前缓存的证书数
func (c *CertificateCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.certs)
}

// certListResponse 证书下载接口的响应体
type certListResponse struct {
	Data []struct {
		SerialNo           string `json:"serial_no"`
		EncryptCertificate struct {
			Algorithm      string `json:"algorithm"`
			Nonce          string `json:"nonce"`
			AssociatedData string `json:"associated_data"`
			Ciphertext     string `json:"ciphertext"`
		} `json:"encrypt_certificate"`
	} `json:"data"`
}

// CertificateDownloader 从平台下载并解密证书，刷新缓存
type CertificateDownloader struct {
	client   *http.Client
	certURL  string
	apiV3Key string
	cache    *CertificateCache
}

func NewCertificateDownloader(certURL, apiV3Key string, cache *CertificateCache) *CertificateDownloader {
	return &CertificateDownloader{
		client:   &http.Client{Timeout: 10 * time.Second},
		certURL:  certURL,
		apiV3Key: apiV3Key,
		cache:    cache,
	}
}

// Refresh 下载证书列表，逐张用 APIv3 密钥解密后替换缓存
func (d *CertificateDownloader) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.certURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("下载平台证书失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("下载平台证书失败: http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var list certListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return fmt.Errorf("证书列表解析失败: %w", err)
	}
	if len(list.Data) == 0 {
		return fmt.Errorf("证书列表为空")
	}

	certs := make(map[string]*x509.Certificate, len(list.Data))
	for _, item := range list.Data {
		enc := item.EncryptCertificate
		pemText, err := utils.DecryptAES256GCM(d.apiV3Key, enc.AssociatedData, enc.Nonce, enc.Ciphertext)
		if err != nil {
			return fmt.Errorf("证书 %s 解密失败: %w", item.SerialNo, err)
		}
		cert, err := utils.LoadCertificate(pemText)
		if err != nil {
			return fmt.Errorf("证书 %s 解析失败: %w", item.SerialNo, err)
		}
		certs[item.SerialNo] = cert
	}

	d.cache.Replace(certs)
	return nil
}
