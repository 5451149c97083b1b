package provider

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"testing"
)

func newAlipayTestKey(t *testing.T) (*rsa.PrivateKey, *AlipayVerifier) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key failed: %v", err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key failed: %v", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	verifier, err := NewAlipayVerifier(string(pubPEM))
	if err != nil {
		t.Fatalf("new verifier failed: %v", err)
	}
	return key, verifier
}

func alipaySign(t *testing.T, key *rsa.PrivateKey, params map[string]string) string {
	t.Helper()

	content := CanonicalQuery(params, "sign", "sign_type")
	sum := sha256.Sum256([]byte(content))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, sum[:])
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	return base64.StdEncoding.EncodeToString(sig)
}

func TestAlipayVerifySuccess(t *testing.T) {
	key, verifier := newAlipayTestKey(t)

	params := map[string]string{
		"out_trade_no": "PAY20250101120000001",
		"trade_no":     "2025010122001234567890",
		"total_amount": "10.00",
		"trade_status": "TRADE_SUCCESS",
		"sign_type":    "RSA2",
	}
	params["sign"] = alipaySign(t, key, params)

	n := verifier.Verify(params)
	if !n.Verified {
		t.Fatalf("expected verified, got reason %q", n.Reason)
	}
	if n.Ignore {
		t.Fatalf("unexpected ignore: %q", n.Reason)
	}
	if n.OrderNo != "PAY20250101120000001" {
		t.Errorf("order no = %q", n.OrderNo)
	}
	if n.Amount != 1000 {
		t.Errorf("amount = %d, want 1000", n.Amount)
	}
}

func TestAlipayVerifyTamperedAmount(t *testing.T) {
	key, verifier := newAlipayTestKey(t)

	params := map[string]string{
		"out_trade_no": "PAY20250101120000001",
		"trade_no":     "2025010122001234567890",
		"total_amount": "10.00",
		"trade_status": "TRADE_SUCCESS",
		"sign_type":    "RSA2",
	}
	params["sign"] = alipaySign(t, key, params)
	params["total_amount"] = "0.01"

	n := verifier.Verify(params)
	if n.Verified {
		t.Fatal("tampered params must not verify")
	}
}

func TestAlipayVerifyRejectsRSA1(t *testing.T) {
	key, verifier := newAlipayTestKey(t)

	params := map[string]string{
		"out_trade_no": "PAY1",
		"total_amount": "1.00",
		"trade_status": "TRADE_SUCCESS",
		"sign_type":    "RSA",
	}
	params["sign"] = alipaySign(t, key, params)

	n := verifier.Verify(params)
	if n.Verified {
		t.Fatal("RSA(SHA1) sign_type must be rejected")
	}
}

func TestAlipayVerifyNonSuccessState(t *testing.T) {
	key, verifier := newAlipayTestKey(t)

	params := map[string]string{
		"out_trade_no": "PAY1",
		"trade_no":     "T1",
		"total_amount": "1.00",
		"trade_status": "WAIT_BUYER_PAY",
		"sign_type":    "RSA2",
	}
	params["sign"] = alipaySign(t, key, params)

	n := verifier.Verify(params)
	if !n.Verified {
		t.Fatalf("expected verified, got %q", n.Reason)
	}
	if !n.Ignore {
		t.Fatal("non-success trade state must be ignored")
	}
}

func TestCanonicalQuerySkipsEmptyAndExcluded(t *testing.T) {
	params := map[string]string{
		"b":         "2",
		"a":         "1",
		"empty":     "",
		"sign":      "xxx",
		"sign_type": "RSA2",
	}
	got := CanonicalQuery(params, "sign", "sign_type")
	if got != "a=1&b=2" {
		t.Errorf("canonical query = %q", got)
	}
}
