package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptorPassThroughWithoutSecret(t *testing.T) {
	enc, err := newEncryptor("")
	require.NoError(t, err)

	out, err := enc.Encrypt("plain value")
	require.NoError(t, err)
	assert.Equal(t, "plain value", out)

	out, err = enc.Decrypt("plain value")
	require.NoError(t, err)
	assert.Equal(t, "plain value", out)
}

func TestEncryptorRejectsShortSecret(t *testing.T) {
	_, err := newEncryptor("too-short")
	assert.Error(t, err)
}

func TestEncryptorRoundTrip(t *testing.T) {
	enc, err := newEncryptor("a-long-enough-test-secret")
	require.NoError(t, err)

	encrypted, err := enc.Encrypt("123456:abcdef")
	require.NoError(t, err)
	assert.NotEqual(t, "123456:abcdef", encrypted)

	decrypted, err := enc.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "123456:abcdef", decrypted)
}

func TestEncryptorNonDeterministicCiphertext(t *testing.T) {
	enc, err := newEncryptor("a-long-enough-test-secret")
	require.NoError(t, err)

	first, err := enc.Encrypt("same input")
	require.NoError(t, err)
	second, err := enc.Encrypt("same input")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestEncryptorDecryptErrors(t *testing.T) {
	enc, err := newEncryptor("a-long-enough-test-secret")
	require.NoError(t, err)

	_, err = enc.Decrypt("not base64 at all!!!")
	assert.Error(t, err)

	_, err = enc.Decrypt("c2hvcnQ=")
	assert.Error(t, err)
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, isRetryableError(nil))
	assert.False(t, isRetryableError(assert.AnError))
	assert.True(t, isRetryableError(errors.New("database is locked")))
	assert.True(t, isRetryableError(errors.New("disk I/O error")))
	assert.False(t, isRetryableError(context.Canceled))
	assert.False(t, isRetryableError(sql.ErrNoRows))
}
