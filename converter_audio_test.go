//go:build !ios && !android && (amd64 || arm64)

package recgo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obinnaokechukwu/recgo/avutil"
)

// newTestAudioConverter builds a converter between two identical AAC codec
// parameter sets, so the resampler is a pass-through and the FIFO batching is
// what gets exercised.
func newTestAudioConverter(t *testing.T) (*AudioConverter, *Encoder) {
	t.Helper()

	enc, err := NewAudioEncoder(AudioEncoderConfig{
		SampleRate: 48000,
		Channels:   2,
	}, false)
	require.NoError(t, err)

	conv, err := NewAudioConverter(enc.CodecContext(), enc.CodecContext(), enc.FrameSize())
	require.NoError(t, err)

	t.Cleanup(func() {
		conv.Close()
		enc.Close()
	})
	return conv, enc
}

// newAudioFrame allocates a silent planar-float frame of n samples.
func newAudioFrame(t *testing.T, n int) avutil.Frame {
	t.Helper()

	frame := avutil.FrameAlloc()
	require.NotNil(t, frame)
	avutil.SetFrameFormat(frame, int32(SampleFormatFltP))
	avutil.SetFrameSampleRate(frame, 48000)
	avutil.SetFrameNbSamples(frame, int32(n))
	avutil.ChannelLayoutDefault(avutil.FrameChLayoutPtr(frame), 2)
	require.NoError(t, avutil.FrameGetBuffer(frame, 0))
	return frame
}

func TestAudioConverterEmitsFixedFrames(t *testing.T) {
	if !requireFFmpeg(t) {
		return
	}

	conv, enc := newTestAudioConverter(t)
	frameSize := enc.FrameSize()
	require.Greater(t, frameSize, 0)

	// Push awkwardly sized input; nothing but exact frameSize frames may
	// come out, with pts = frameSize * seq.
	var seq int64
	total := 0
	for _, n := range []int{519, 700, frameSize, 3, 2000, 1} {
		in := newAudioFrame(t, n)
		require.NoError(t, conv.SendFrame(in))
		avutil.FrameFree(&in)
		total += n

		for {
			out, ok, err := conv.ReceiveFrame(seq)
			require.NoError(t, err)
			if !ok {
				break
			}
			assert.Equal(t, int32(frameSize), avutil.FrameNbSamples(out))
			assert.Equal(t, int64(frameSize)*seq, avutil.FramePTS(out))
			seq++
			avutil.FrameFree(&out)
		}
	}

	assert.Equal(t, int64(total/frameSize), seq, "every full frame must be emitted")
	assert.Equal(t, total%frameSize, conv.BufferedSamples(), "remainder stays in the FIFO")

	// Flush drops the sub-frame remainder; the FIFO ends empty.
	require.NoError(t, conv.Flush())
	assert.Zero(t, conv.BufferedSamples())
	_, ok, err := conv.ReceiveFrame(seq)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAudioConverterOverflow(t *testing.T) {
	if !requireFFmpeg(t) {
		return
	}

	conv, _ := newTestAudioConverter(t)

	// Never draining the converter must eventually overflow the FIFO
	// (sized for two seconds of audio) rather than grow without bound.
	var overflowed bool
	for i := 0; i < 400; i++ {
		in := newAudioFrame(t, 1024)
		err := conv.SendFrame(in)
		avutil.FrameFree(&in)
		if err != nil {
			assert.ErrorIs(t, err, ErrOverflow)
			overflowed = true
			break
		}
	}
	assert.True(t, overflowed, "expected ErrOverflow before 400 frames")
}
