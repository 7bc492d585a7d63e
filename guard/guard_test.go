package guard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nijaru/yt-transcribe/models"
)

func payloadOfSize(n int64) *models.AudioPayload {
	// SizeBytes is what the guard reads; the buffer is left empty so the
	// boundary cases stay cheap.
	return &models.AudioPayload{SizeBytes: n, MIMEType: "audio/mp4", Ext: "m4a"}
}

func TestMaxPayloadBytes(t *testing.T) {
	assert.Equal(t, int64(26_214_400), MaxPayloadBytes)
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		size    int64
		wantErr bool
	}{
		{"empty", 0, false},
		{"small", 10 * 1024 * 1024, false},
		{"exactly at limit", 26_214_400, false},
		{"one byte over", 26_214_401, true},
		{"forty megabytes", 40 * 1024 * 1024, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(payloadOfSize(tt.size))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrTooLarge))

			var sizeErr *SizeError
			require.True(t, errors.As(err, &sizeErr))
			assert.Equal(t, tt.size, sizeErr.ActualBytes)
			assert.Equal(t, int64(26_214_400), sizeErr.LimitBytes)
		})
	}
}

func TestCheckCustomLimit(t *testing.T) {
	p := models.NewAudioPayload(make([]byte, 2048), "audio/mp4", "m4a")
	assert.NoError(t, New(2048).Check(p))

	err := New(2047).Check(p)
	var sizeErr *SizeError
	require.True(t, errors.As(err, &sizeErr))
	assert.Equal(t, int64(2048), sizeErr.ActualBytes)
	assert.Equal(t, int64(2047), sizeErr.LimitBytes)
}

func TestNewClampsLimit(t *testing.T) {
	assert.Equal(t, MaxPayloadBytes, New(0).Limit())
	assert.Equal(t, MaxPayloadBytes, New(-1).Limit())
	assert.Equal(t, MaxPayloadBytes, New(MaxPayloadBytes+1).Limit())
	assert.Equal(t, int64(1024), New(1024).Limit())
}

func TestCheckNilPayload(t *testing.T) {
	err := Check(nil)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrTooLarge))
}

func TestSizeErrorMessage(t *testing.T) {
	err := &SizeError{ActualBytes: 41_943_040, LimitBytes: 26_214_400}
	assert.Contains(t, err.Error(), "41943040 bytes")
	assert.Contains(t, err.Error(), "limit 26214400 bytes")
}
