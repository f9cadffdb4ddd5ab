//go:build !ios && !android && (amd64 || arm64)

package recgo

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuessFormatFromPath(t *testing.T) {
	cases := map[string]string{
		"out.mp4":        "mp4",
		"out.m4v":        "mp4",
		"clip.MKV":       "matroska",
		"clip.webm":      "webm",
		"a/b/c.mov":      "mov",
		"cap.ts":         "mpegts",
		"noextension":    "",
		"weird.unknown":  "",
		"dir.mp4/noext":  "",
		"archive.tar.ts": "mpegts",
	}
	for path, want := range cases {
		assert.Equal(t, want, guessFormatFromPath(path), "path %q", path)
	}
}

func TestNewMuxerRejectsBadPaths(t *testing.T) {
	if !requireFFmpeg(t) {
		return
	}

	_, err := NewMuxer("")
	assert.ErrorIs(t, err, ErrConfig)

	_, err = NewMuxer("capture.unknownext")
	assert.ErrorIs(t, err, ErrConfig)
}

func TestMuxerLifecycleEnforced(t *testing.T) {
	if !requireFFmpeg(t) {
		return
	}

	m, err := NewMuxer(filepath.Join(t.TempDir(), "out.mp4"))
	require.NoError(t, err)
	defer m.Free()

	// No packet before the header.
	err = m.WritePacket(nil, KindNone)
	assert.ErrorIs(t, err, ErrState)

	// No trailer before the header either.
	err = m.CloseFile()
	assert.ErrorIs(t, err, ErrState)

	// No header without streams.
	err = m.OpenFile()
	assert.ErrorIs(t, err, ErrState)
}

func TestMuxerWritesHeaderAndTrailer(t *testing.T) {
	if !requireFFmpeg(t) {
		return
	}

	path := filepath.Join(t.TempDir(), "out.mp4")
	m, err := NewMuxer(path)
	require.NoError(t, err)
	defer m.Free()

	enc, err := NewVideoEncoder(VideoEncoderConfig{
		Width:     320,
		Height:    240,
		FrameRate: 30,
		Options:   map[string]string{"preset": "ultrafast"},
	}, m.GlobalHeader())
	require.NoError(t, err)
	defer enc.Close()

	require.NoError(t, m.AddVideoStream(enc.CodecContext()))

	// Streams can't be added twice.
	assert.ErrorIs(t, m.AddVideoStream(enc.CodecContext()), ErrState)

	require.NoError(t, m.OpenFile())

	// No further streams once the header is down.
	assert.ErrorIs(t, m.AddAudioStream(enc.CodecContext()), ErrState)

	tb := m.VideoTimeBase()
	assert.False(t, tb.IsZero(), "video stream time base should be set")

	require.NoError(t, m.WritePacket(nil, KindNone)) // interleaver flush
	require.NoError(t, m.CloseFile())

	// Exactly once.
	assert.ErrorIs(t, m.CloseFile(), ErrState)
}
