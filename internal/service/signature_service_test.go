package service

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHMACSignatureService_SignAndVerify(t *testing.T) {
	svc := NewHMACSignatureService()
	secretKey := "sk_test_123"
	payload := []byte(`{"event":"charge.success","data":{"reference":"RB-1"}}`)

	signature := svc.Sign(secretKey, payload)

	assert.Regexp(t, `^[0-9a-f]{128}$`, signature, "signature should be 128-char lowercase hex (SHA-512)")
	assert.True(t, svc.Verify(secretKey, payload, signature))
}

func TestHMACSignatureService_MatchesReferenceHMAC(t *testing.T) {
	svc := NewHMACSignatureService()
	payload := []byte("hello")

	mac := hmac.New(sha512.New, []byte("key"))
	mac.Write(payload)
	want := hex.EncodeToString(mac.Sum(nil))

	assert.Equal(t, want, svc.Sign("key", payload))
}

func TestHMACSignatureService_Verify(t *testing.T) {
	svc := NewHMACSignatureService()
	payload := []byte("original payload")
	good := svc.Sign("my-key", payload)

	tests := []struct {
		name      string
		secret    string
		payload   []byte
		signature string
		want      bool
	}{
		{"valid", "my-key", payload, good, true},
		{"uppercase hex accepted", "my-key", payload, strings.ToUpper(good), true},
		{"wrong key", "other-key", payload, good, false},
		{"tampered payload", "my-key", []byte("tampered payload"), good, false},
		{"garbage signature", "my-key", payload, "deadbeef", false},
		{"empty signature", "my-key", payload, "", false},
		{"unconfigured secret", "", payload, svc.Sign("", payload), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.Verify(tt.secret, tt.payload, tt.signature))
		})
	}
}
