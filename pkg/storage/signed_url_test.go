package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("test-secret", time.Hour)

	token, expiresAt, err := signer.Generate("job-42", "schedule_2026-01-19.csv")
	require.NoError(t, err)
	require.NotContains(t, token, "/")

	jobID, relPath, parsedExpiry, err := signer.Parse(token, false)
	require.NoError(t, err)
	require.Equal(t, "job-42", jobID)
	require.Equal(t, "schedule_2026-01-19.csv", relPath)
	require.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestSignedURLSignerRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("test-secret", time.Hour)
	token, _, err := signer.Generate("job-42", "schedule.csv")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 4)

	// Swap in a different job id; the signature no longer matches.
	parts[0] = "job-43"
	_, _, _, err = signer.Parse(strings.Join(parts, "."), false)
	require.Error(t, err)

	// Tokens signed with another secret are rejected too.
	other := NewSignedURLSigner("other-secret", time.Hour)
	_, _, _, err = other.Parse(token, false)
	require.Error(t, err)

	_, _, _, err = signer.Parse("not-a-token", false)
	require.Error(t, err)
}

func TestSignedURLSignerExpiry(t *testing.T) {
	signer := NewSignedURLSigner("test-secret", 10*time.Millisecond)
	token, _, err := signer.Generate("job-42", "schedule.csv")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	_, _, _, err = signer.Parse(token, false)
	require.Error(t, err)

	jobID, relPath, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	require.Equal(t, "job-42", jobID)
	require.Equal(t, "schedule.csv", relPath)
}
