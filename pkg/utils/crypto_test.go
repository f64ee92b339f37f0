package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecrypt(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")

	ciphertext, err := Encrypt([]byte("platform-access-token"), key)
	require.NoError(t, err)
	assert.NotEqual(t, "platform-access-token", ciphertext)

	plaintext, err := Decrypt(ciphertext, key)
	require.NoError(t, err)
	assert.Equal(t, "platform-access-token", plaintext)
}

func TestEncryptUniqueNonce(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")

	first, err := Encrypt([]byte("same"), key)
	require.NoError(t, err)
	second, err := Encrypt([]byte("same"), key)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestDecryptWrongKey(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	otherKey := []byte("fedcba9876543210fedcba9876543210")

	ciphertext, err := Encrypt([]byte("secret"), key)
	require.NoError(t, err)

	_, err = Decrypt(ciphertext, otherKey)
	assert.Error(t, err)
}

func TestDecryptGarbage(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")

	_, err := Decrypt("not base64 at all!!!", key)
	assert.Error(t, err)
}
