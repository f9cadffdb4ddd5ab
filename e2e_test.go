//go:build !ios && !android && (amd64 || arm64)

package recgo

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obinnaokechukwu/recgo/avcodec"
	"github.com/obinnaokechukwu/recgo/avutil"
)

// writeTestInput encodes `frames` synthetic video frames into an MP4 that the
// pipeline tests then use as their capture source.
func writeTestInput(t *testing.T, path string, frames int) {
	t.Helper()

	m, err := NewMuxer(path)
	require.NoError(t, err)
	defer m.Free()

	enc, err := NewVideoEncoder(VideoEncoderConfig{
		Width:     320,
		Height:    240,
		FrameRate: 30,
		GOPSize:   10,
		Options:   map[string]string{"preset": "ultrafast"},
	}, m.GlobalHeader())
	require.NoError(t, err)
	defer enc.Close()

	require.NoError(t, m.AddVideoStream(enc.CodecContext()))
	require.NoError(t, m.OpenFile())

	encode := func(frame avutil.Frame) {
		for {
			status, err := enc.SendFrame(frame)
			require.NoError(t, err)
			for {
				pkt, ok, err := enc.ReceivePacket()
				require.NoError(t, err)
				if !ok {
					break
				}
				require.NoError(t, m.WritePacket(pkt, KindVideo))
				avcodec.PacketFree(&pkt)
			}
			if status == StatusAccepted {
				return
			}
		}
	}

	for i := 0; i < frames; i++ {
		frame := avutil.FrameAlloc()
		require.NotNil(t, frame)
		avutil.SetFrameWidth(frame, 320)
		avutil.SetFrameHeight(frame, 240)
		avutil.SetFrameFormat(frame, int32(PixelFormatYUV420P))
		require.NoError(t, avutil.FrameGetBuffer(frame, 0))
		avutil.SetFramePTS(frame, int64(i))
		encode(frame)
		avutil.FrameFree(&frame)
	}
	encode(nil) // drain

	require.NoError(t, m.WritePacket(nil, KindNone))
	require.NoError(t, m.CloseFile())
}

// readVideoPTS opens a finished file and collects the video packet PTS
// sequence in stream time-base ticks.
func readVideoPTS(t *testing.T, path string) []int64 {
	t.Helper()

	d, err := NewDemuxer("", path, nil)
	require.NoError(t, err)
	defer d.Close()

	var pts []int64
	for {
		pkt, kind, err := d.ReadPacket()
		if err != nil {
			require.True(t, avutil.IsEOF(err), "unexpected read error: %v", err)
			break
		}
		if pkt == nil {
			continue
		}
		if kind == KindVideo {
			pts = append(pts, avcodec.PacketPTS(pkt))
		}
		avcodec.PacketFree(&pkt)
	}
	return pts
}

func runPipeline(t *testing.T, inPath, outPath string, useWorkers bool) *Pipeline {
	t.Helper()

	src, err := NewDemuxer("", inPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })

	m, err := NewMuxer(outPath)
	require.NoError(t, err)
	t.Cleanup(m.Free)

	p := NewPipeline(src, m, useWorkers)
	t.Cleanup(func() { p.Close() })

	require.NoError(t, p.InitVideo(CodecIDNone, VideoParameters{FrameRate: 30}, PixelFormatNone,
		map[string]string{"preset": "ultrafast"}))
	require.NoError(t, m.OpenFile())

	for {
		_, err := p.Step(false)
		if err != nil {
			require.ErrorIs(t, err, ErrIO)
			require.True(t, avutil.IsEOF(err), "expected end of input, got: %v", err)
			break
		}
	}

	require.NoError(t, p.Flush())
	require.NoError(t, m.CloseFile())
	return p
}

func TestPipelineTranscodesFile(t *testing.T) {
	if !requireFFmpeg(t) {
		return
	}

	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.mp4")
	outPath := filepath.Join(dir, "out.mp4")

	const frames = 90 // 3 s at 30 fps
	writeTestInput(t, inPath, frames)

	p := runPipeline(t, inPath, outPath, false)

	info, err := os.Stat(outPath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	assert.Equal(t, int64(frames), p.FrameCount(KindVideo))

	pts := readVideoPTS(t, outPath)
	require.NotEmpty(t, pts)
	for i := 1; i < len(pts); i++ {
		assert.GreaterOrEqual(t, pts[i], pts[i-1], "pts must be non-decreasing at %d", i)
	}

	// Frame-count -> PTS: the last frame of N at rate F lands on
	// (N-1)/F seconds in the stream time base.
	streamTb := readStreamTimeBase(t, outPath)
	wantLast := avutil.RescaleQ(int64(frames-1), avutil.NewRational(1, 30), streamTb)
	assert.Equal(t, wantLast, pts[len(pts)-1])
}

func TestPipelineWorkerMode(t *testing.T) {
	if !requireFFmpeg(t) {
		return
	}

	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.mp4")
	outPath := filepath.Join(dir, "out.mp4")

	const frames = 60
	writeTestInput(t, inPath, frames)

	p := runPipeline(t, inPath, outPath, true)
	assert.Equal(t, int64(frames), p.FrameCount(KindVideo))

	pts := readVideoPTS(t, outPath)
	require.NotEmpty(t, pts)
	for i := 1; i < len(pts); i++ {
		assert.GreaterOrEqual(t, pts[i], pts[i-1])
	}
}

func TestPipelineCropAndScale(t *testing.T) {
	if !requireFFmpeg(t) {
		return
	}

	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.mp4")
	outPath := filepath.Join(dir, "out.mp4")
	writeTestInput(t, inPath, 30)

	src, err := NewDemuxer("", inPath, nil)
	require.NoError(t, err)
	defer src.Close()

	m, err := NewMuxer(outPath)
	require.NoError(t, err)
	defer m.Free()

	p := NewPipeline(src, m, false)
	defer p.Close()

	// Crop a 160x120 window out of the 320x240 input at an offset.
	require.NoError(t, p.InitVideo(CodecIDNone,
		VideoParameters{Width: 160, Height: 120, OffsetX: 80, OffsetY: 60, FrameRate: 30},
		PixelFormatNone, map[string]string{"preset": "ultrafast"}))
	require.NoError(t, m.OpenFile())

	for {
		_, err := p.Step(false)
		if err != nil {
			require.True(t, avutil.IsEOF(err))
			break
		}
	}
	require.NoError(t, p.Flush())
	require.NoError(t, m.CloseFile())

	// The cropped stream decodes at the cropped geometry.
	check, err := NewDemuxer("", outPath, nil)
	require.NoError(t, err)
	defer check.Close()
	params, err := check.VideoParams()
	require.NoError(t, err)
	assert.Equal(t, 160, params.Width)
	assert.Equal(t, 120, params.Height)
}

func TestVideoConverterRejectsOversizedCrop(t *testing.T) {
	if !requireFFmpeg(t) {
		return
	}

	enc, err := NewVideoEncoder(VideoEncoderConfig{
		Width: 320, Height: 240, FrameRate: 30,
		Options: map[string]string{"preset": "ultrafast"},
	}, false)
	require.NoError(t, err)
	defer enc.Close()

	_, err = NewVideoConverter(enc.CodecContext(), enc.CodecContext(), 10, 10)
	assert.ErrorIs(t, err, ErrConfig)
}

func readStreamTimeBase(t *testing.T, path string) Rational {
	t.Helper()
	d, err := NewDemuxer("", path, nil)
	require.NoError(t, err)
	defer d.Close()
	params, err := d.VideoParams()
	require.NoError(t, err)
	return params.TimeBase
}

func TestDemuxerMissingStreamIsConfigError(t *testing.T) {
	if !requireFFmpeg(t) {
		return
	}

	inPath := filepath.Join(t.TempDir(), "in.mp4")
	writeTestInput(t, inPath, 5)

	d, err := NewDemuxer("", inPath, nil)
	require.NoError(t, err)
	defer d.Close()

	_, err = d.AudioParams()
	assert.ErrorIs(t, err, ErrConfig)

	params, err := d.VideoParams()
	require.NoError(t, err)
	assert.Equal(t, 320, params.Width)
	assert.Equal(t, KindVideo, params.Kind)
}

func TestFlushTwiceIsProtocolError(t *testing.T) {
	if !requireFFmpeg(t) {
		return
	}

	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.mp4")
	outPath := filepath.Join(dir, "out.mp4")
	writeTestInput(t, inPath, 10)

	p := runPipeline(t, inPath, outPath, false)

	err := p.Flush()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProtocol))
}
