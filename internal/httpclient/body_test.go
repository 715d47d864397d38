package httpclient

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadBodyWithinLimit(t *testing.T) {
	payload := []byte("hello")

	got, err := ReadBody(bytes.NewReader(payload), int64(len(payload)))

	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestReadBodyOverLimit(t *testing.T) {
	_, err := ReadBody(bytes.NewReader([]byte("hello")), 2)

	require.Error(t, err)
	assert.True(t, IsBodyTooLarge(err))
	assert.Contains(t, err.Error(), "2 byte limit")
}

func TestReadBodyUnlimited(t *testing.T) {
	payload := []byte("hello")

	got, err := ReadBody(bytes.NewReader(payload), 0)

	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestIsBodyTooLargeOnOtherErrors(t *testing.T) {
	assert.False(t, IsBodyTooLarge(assert.AnError))
	assert.False(t, IsBodyTooLarge(nil))
}
