package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAESKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestAESEncryptionService_RoundTrip(t *testing.T) {
	svc, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)

	payload := `{"event":"charge.success","data":{"reference":"RB-1","amount":25000}}`
	ciphertext, err := svc.Encrypt(payload)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ciphertext, "v1:"))
	assert.NotContains(t, ciphertext, "charge.success")

	plaintext, err := svc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, payload, plaintext)
}

func TestAESEncryptionService_NonceIsRandom(t *testing.T) {
	svc, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)

	a, err := svc.Encrypt("same")
	require.NoError(t, err)
	b, err := svc.Encrypt("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestAESEncryptionService_InvalidKey(t *testing.T) {
	_, err := NewAESEncryptionService("not-hex")
	assert.Error(t, err)

	_, err = NewAESEncryptionService("0123456789abcdef")
	assert.Error(t, err)
}

func TestAESEncryptionService_DecryptRejectsBadInput(t *testing.T) {
	svc, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)

	other, err := NewAESEncryptionService(strings.Repeat("ab", 32))
	require.NoError(t, err)
	foreign, err := other.Encrypt("secret")
	require.NoError(t, err)

	for _, in := range []string{"", "v2:abc", "v1:!!!", "v1:AAAA", foreign} {
		_, err := svc.Decrypt(in)
		assert.Error(t, err, in)
	}
}
