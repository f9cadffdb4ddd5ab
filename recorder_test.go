//go:build !ios && !android && (amd64 || arm64)

package recgo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRegion(t *testing.T) {
	cases := []struct {
		name                   string
		w, h, x, y             int
		wantW, wantH, wantX, wantY int
	}{
		{"full screen", 0, 0, 0, 0, 0, 0, 0, 0},
		{"valid region", 640, 480, 100, 50, 640, 480, 100, 50},
		{"width below threshold", 4, 480, 100, 50, 0, 0, 0, 0},
		{"height below threshold", 640, 9, 100, 50, 0, 0, 0, 0},
		{"negative offsets clamped", 640, 480, -3, -8, 640, 480, 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, h, x, y := normalizeRegion(tc.w, tc.h, tc.x, tc.y)
			assert.Equal(t, []int{tc.wantW, tc.wantH, tc.wantX, tc.wantY}, []int{w, h, x, y})
		})
	}
}

func TestNewRecorderDefaults(t *testing.T) {
	r, err := NewRecorder(Config{OutputPath: "out.mp4"})
	require.NoError(t, err)

	assert.Equal(t, 30, r.cfg.FrameRate)
	assert.Equal(t, "ultrafast", r.cfg.EncoderOptions["preset"])
}

func TestNewRecorderRequiresOutput(t *testing.T) {
	_, err := NewRecorder(Config{})
	assert.ErrorIs(t, err, ErrConfig)
}

func TestRecorderLifecycleGuards(t *testing.T) {
	r, err := NewRecorder(Config{OutputPath: "out.mp4"})
	require.NoError(t, err)

	// Not recording yet: pause, resume and stop all refuse.
	assert.ErrorIs(t, r.Pause(), ErrState)
	assert.ErrorIs(t, r.Resume(), ErrState)
	assert.ErrorIs(t, r.Stop(), ErrState)
}
