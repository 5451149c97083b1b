package provider

import (
	"context"
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const (
	testAPIv3Key = "0123456789abcdef0123456789abcdef" // 32 字节
	testSerial   = "TESTSERIAL001"
)

func newWechatTestCert(t *testing.T) (*rsa.PrivateKey, *x509.Certificate) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key failed: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "wechatpay test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate failed: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate failed: %v", err)
	}
	return key, cert
}

func encryptAES256GCM(t *testing.T, key, associatedData, nonce, plaintext string) string {
	t.Helper()

	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		t.Fatalf("new cipher failed: %v", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		t.Fatalf("new gcm failed: %v", err)
	}
	sealed := gcm.Seal(nil, []byte(nonce), []byte(plaintext), []byte(associatedData))
	return base64.StdEncoding.EncodeToString(sealed)
}

func wechatSign(t *testing.T, key *rsa.PrivateKey, timestamp, nonce, body string) string {
	t.Helper()

	message := timestamp + "\n" + nonce + "\n" + body + "\n"
	sum := sha256.Sum256([]byte(message))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, sum[:])
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	return base64.StdEncoding.EncodeToString(sig)
}

func buildWechatNotify(t *testing.T, key *rsa.PrivateKey, tradeState string, amount int64) (WechatHeaders, []byte) {
	t.Helper()

	txn := map[string]interface{}{
		"out_trade_no":   "PAY20250101120000001",
		"transaction_id": "WX4200001234567890",
		"trade_state":    tradeState,
		"amount":         map[string]int64{"total": amount},
	}
	plaintext, _ := json.Marshal(txn)

	resourceNonce := "abcdef123456"
	body := map[string]interface{}{
		"id":         "evt-1",
		"event_type": "TRANSACTION.SUCCESS",
		"resource": map[string]string{
			"algorithm":       "AEAD_AES_256_GCM",
			"nonce":           resourceNonce,
			"associated_data": "transaction",
			"ciphertext":      encryptAES256GCM(t, testAPIv3Key, "transaction", resourceNonce, string(plaintext)),
		},
	}
	bodyBytes, _ := json.Marshal(body)

	headers := WechatHeaders{
		Serial:    testSerial,
		Timestamp: "1700000000",
		Nonce:     "headernonce",
		Signature: wechatSign(t, key, "1700000000", "headernonce", string(bodyBytes)),
	}
	return headers, bodyBytes
}

func TestWechatVerifySuccess(t *testing.T) {
	key, cert := newWechatTestCert(t)
	cache := NewCertificateCache()
	cache.Replace(map[string]*x509.Certificate{testSerial: cert})

	verifier := NewWechatVerifier(testAPIv3Key, cache)
	headers, body := buildWechatNotify(t, key, "SUCCESS", 1000)

	n := verifier.Verify(headers, body)
	if !n.Verified {
		t.Fatalf("expected verified, got %q", n.Reason)
	}
	if n.Ignore {
		t.Fatalf("unexpected ignore: %q", n.Reason)
	}
	if n.OrderNo != "PAY20250101120000001" || n.Amount != 1000 {
		t.Errorf("notification mismatch: %+v", n)
	}
}

func TestWechatVerifyUnknownSerial(t *testing.T) {
	key, _ := newWechatTestCert(t)
	cache := NewCertificateCache()

	verifier := NewWechatVerifier(testAPIv3Key, cache)
	headers, body := buildWechatNotify(t, key, "SUCCESS", 1000)

	if n := verifier.Verify(headers, body); n.Verified {
		t.Fatal("unknown certificate serial must not verify")
	}
}

func TestWechatVerifyTamperedBody(t *testing.T) {
	key, cert := newWechatTestCert(t)
	cache := NewCertificateCache()
	cache.Replace(map[string]*x509.Certificate{testSerial: cert})

	verifier := NewWechatVerifier(testAPIv3Key, cache)
	headers, body := buildWechatNotify(t, key, "SUCCESS", 1000)
	body[len(body)-2] ^= 0xff

	if n := verifier.Verify(headers, body); n.Verified {
		t.Fatal("tampered body must not verify")
	}
}

func TestWechatVerifyWrongAPIv3Key(t *testing.T) {
	key, cert := newWechatTestCert(t)
	cache := NewCertificateCache()
	cache.Replace(map[string]*x509.Certificate{testSerial: cert})

	verifier := NewWechatVerifier("ffffffffffffffffffffffffffffffff", cache)
	headers, body := buildWechatNotify(t, key, "SUCCESS", 1000)

	n := verifier.Verify(headers, body)
	if n.Verified {
		t.Fatal("wrong APIv3 key must fail decryption")
	}
}

func TestWechatVerifyNonSuccessState(t *testing.T) {
	key, cert := newWechatTestCert(t)
	cache := NewCertificateCache()
	cache.Replace(map[string]*x509.Certificate{testSerial: cert})

	verifier := NewWechatVerifier(testAPIv3Key, cache)
	headers, body := buildWechatNotify(t, key, "NOTPAY", 1000)

	n := verifier.Verify(headers, body)
	if !n.Verified || !n.Ignore {
		t.Fatalf("want verified ignore, got verified=%v ignore=%v", n.Verified, n.Ignore)
	}
}

func TestCertificateDownloaderRefresh(t *testing.T) {
	_, cert := newWechatTestCert(t)
	certPEM := "-----BEGIN CERTIFICATE-----\n" +
		base64.StdEncoding.EncodeToString(cert.Raw) +
		"\n-----END CERTIFICATE-----\n"

	nonce := "123456789012"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"data": []map[string]interface{}{
				{
					"serial_no": testSerial,
					"encrypt_certificate": map[string]string{
						"algorithm":       "AEAD_AES_256_GCM",
						"nonce":           nonce,
						"associated_data": "certificate",
						"ciphertext":      encryptAES256GCM(t, testAPIv3Key, "certificate", nonce, certPEM),
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	cache := NewCertificateCache()
	downloader := NewCertificateDownloader(server.URL, testAPIv3Key, cache)

	if err := downloader.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if cache.Size() != 1 {
		t.Fatalf("cache size = %d, want 1", cache.Size())
	}
	if cache.Get(testSerial) == nil {
		t.Fatal("certificate not cached by serial")
	}
}

func TestYuanToCents(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"10.00", 1000, false},
		{"0.01", 1, false},
		{"5", 500, false},
		{"10.005", 0, true},
		{"abc", 0, true},
	}
	for _, c := range cases {
		got, err := YuanToCents(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("YuanToCents(%q): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("YuanToCents(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("YuanToCents(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}
