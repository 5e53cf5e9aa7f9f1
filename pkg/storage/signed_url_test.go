package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("photos", "employees/e-1.png")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	bucket, path, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "photos", bucket)
	require.Equal(t, "employees/e-1.png", path)
}

func TestSignedURLSignerRejectsTamperingAndExpiry(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("cards", "2024/card.pdf")
	require.NoError(t, err)

	_, _, err = signer.Parse("photos" + token[len("cards"):])
	require.Error(t, err)

	other := NewSignedURLSigner("other", time.Hour)
	_, _, err = other.Parse(token)
	require.Error(t, err)

	signer.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, _, err = signer.Parse(token)
	require.Error(t, err)
}
