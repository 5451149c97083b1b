package provider

import (
	"encoding/json"
	"testing"
)

func TestGatewayVerifySuccess(t *testing.T) {
	verifier := NewGatewayVerifier("shared-secret")

	notify := GatewayNotify{
		OrderNo: "PAY20250101120000001",
		TradeNo: "GW123",
		Method:  "card",
		Amount:  1000,
	}
	notify.Sign = verifier.Sign(notify.OrderNo, notify.TradeNo, notify.Method, notify.Amount)

	body, _ := json.Marshal(notify)
	n := verifier.Verify(body)
	if !n.Verified {
		t.Fatalf("expected verified, got %q", n.Reason)
	}
	if n.OrderNo != notify.OrderNo || n.TradeNo != notify.TradeNo || n.Amount != 1000 {
		t.Errorf("notification mismatch: %+v", n)
	}
}

func TestGatewayVerifyTamperedAmount(t *testing.T) {
	verifier := NewGatewayVerifier("shared-secret")

	notify := GatewayNotify{
		OrderNo: "PAY1",
		TradeNo: "GW1",
		Method:  "card",
		Amount:  1000,
	}
	notify.Sign = verifier.Sign(notify.OrderNo, notify.TradeNo, notify.Method, notify.Amount)
	notify.Amount = 1

	body, _ := json.Marshal(notify)
	if n := verifier.Verify(body); n.Verified {
		t.Fatal("tampered amount must not verify")
	}
}

func TestGatewayVerifyBadJSON(t *testing.T) {
	verifier := NewGatewayVerifier("s")
	if n := verifier.Verify([]byte("{not json")); n.Verified {
		t.Fatal("invalid body must not verify")
	}
}
