//go:build !ios && !android && (amd64 || arm64)

package recgo

import (
	"fmt"

	"github.com/obinnaokechukwu/recgo/avcodec"
	"github.com/obinnaokechukwu/recgo/avutil"
	"github.com/obinnaokechukwu/recgo/swresample"
)

// fifoSeconds is how much audio the repackaging FIFO can hold. Capture
// devices deliver bursts; two seconds absorbs them without letting an
// unbounded backlog hide a stalled encoder.
const fifoSeconds = 2

// AudioConverter resamples raw audio frames into the encoder's sample format
// and rate and repackages them, through a sample FIFO, into frames of exactly
// the encoder's frame size.
type AudioConverter struct {
	swrCtx swresample.SwrContext
	fifo   avutil.AudioFifo

	outSampleRate int
	outChannels   int
	outSampleFmt  SampleFormat
	frameSize     int

	outChLayout avcodec.Context // encoder ctx; its ch_layout stamps output frames

	closed bool
}

// NewAudioConverter builds a converter between a decoder's output and an
// encoder's input. frameSize is the encoder's required samples per frame.
func NewAudioConverter(inCtx, outCtx avcodec.Context, frameSize int) (*AudioConverter, error) {
	if frameSize <= 0 {
		return nil, fmt.Errorf("%w: audio converter needs a positive frame size", ErrConfig)
	}

	c := &AudioConverter{
		outSampleRate: int(avcodec.CtxSampleRate(outCtx)),
		outChannels:   int(avcodec.CtxChannels(outCtx)),
		outSampleFmt:  avcodec.CtxSampleFmt(outCtx),
		frameSize:     frameSize,
		outChLayout:   outCtx,
	}
	if c.outSampleRate <= 0 || c.outChannels <= 0 {
		return nil, fmt.Errorf("%w: audio converter needs encoder sample rate and channels", ErrConfig)
	}

	inSampleRate := int(avcodec.CtxSampleRate(inCtx))
	inSampleFmt := avcodec.CtxSampleFmt(inCtx)

	if err := swresample.AllocSetOpts2(&c.swrCtx,
		avcodec.CtxChLayoutPtr(outCtx), c.outSampleFmt, c.outSampleRate,
		avcodec.CtxChLayoutPtr(inCtx), inSampleFmt, inSampleRate); err != nil {
		return nil, fmt.Errorf("%w: allocating resampler: %v", ErrConfig, err)
	}
	if err := swresample.InitContext(c.swrCtx); err != nil {
		swresample.Free(&c.swrCtx)
		return nil, fmt.Errorf("%w: initializing resampler: %v", ErrConfig, err)
	}

	c.fifo = avutil.AudioFifoAlloc(c.outSampleFmt, c.outChannels, c.outSampleRate*fifoSeconds)
	if c.fifo == nil {
		swresample.Free(&c.swrCtx)
		return nil, ErrOutOfMemory
	}

	return c, nil
}

// SendFrame resamples one decoded frame and appends it to the FIFO.
// Fails with ErrOverflow if the FIFO cannot take the resampled samples.
func (c *AudioConverter) SendFrame(frame avutil.Frame) error {
	if c.closed {
		return fmt.Errorf("%w: audio converter is closed", ErrState)
	}

	inSamples := int(avutil.FrameNbSamples(frame))

	scratch := avutil.FrameAlloc()
	if scratch == nil {
		return ErrOutOfMemory
	}
	defer avutil.FrameFree(&scratch)

	outSamples := swresample.GetOutSamples(c.swrCtx, inSamples)
	if outSamples <= 0 {
		outSamples = inSamples + 256
	}
	c.prepareOutFrame(scratch, outSamples)
	if err := avutil.FrameGetBuffer(scratch, 0); err != nil {
		return fmt.Errorf("audio converter: %w", err)
	}

	if err := swresample.ConvertFrame(c.swrCtx, scratch, frame); err != nil {
		return fmt.Errorf("audio converter: %w", err)
	}

	converted := int(avutil.FrameNbSamples(scratch))
	if converted == 0 {
		return nil
	}

	if avutil.AudioFifoSpace(c.fifo) < converted {
		return fmt.Errorf("%w: %d samples buffered, %d incoming",
			ErrOverflow, avutil.AudioFifoSize(c.fifo), converted)
	}

	if _, err := avutil.AudioFifoWrite(c.fifo, avutil.FrameDataPtr(scratch), converted); err != nil {
		return fmt.Errorf("audio converter: %w", err)
	}
	return nil
}

// ReceiveFrame emits one frame of exactly frameSize samples with
// pts = frameSize * seq, or ok=false while the FIFO holds less than a full
// frame.
func (c *AudioConverter) ReceiveFrame(seq int64) (avutil.Frame, bool, error) {
	if c.closed {
		return nil, false, fmt.Errorf("%w: audio converter is closed", ErrState)
	}

	if avutil.AudioFifoSize(c.fifo) < c.frameSize {
		return nil, false, nil
	}

	out := avutil.FrameAlloc()
	if out == nil {
		return nil, false, ErrOutOfMemory
	}
	c.prepareOutFrame(out, c.frameSize)
	if err := avutil.FrameGetBuffer(out, 0); err != nil {
		avutil.FrameFree(&out)
		return nil, false, fmt.Errorf("audio converter: %w", err)
	}

	if _, err := avutil.AudioFifoRead(c.fifo, avutil.FrameDataPtr(out), c.frameSize); err != nil {
		avutil.FrameFree(&out)
		return nil, false, fmt.Errorf("audio converter: %w", err)
	}

	avutil.SetFramePTS(out, int64(c.frameSize)*seq)
	return out, true, nil
}

// prepareOutFrame stamps the encoder-side audio parameters on a frame before
// its buffers are allocated.
func (c *AudioConverter) prepareOutFrame(frame avutil.Frame, nbSamples int) {
	avutil.SetFrameFormat(frame, int32(c.outSampleFmt))
	avutil.SetFrameSampleRate(frame, int32(c.outSampleRate))
	avutil.SetFrameNbSamples(frame, int32(nbSamples))
	avutil.ChannelLayoutCopy(avutil.FrameChLayoutPtr(frame), avcodec.CtxChLayoutPtr(c.outChLayout))
}

// BufferedSamples returns the number of samples currently held in the FIFO.
func (c *AudioConverter) BufferedSamples() int {
	return avutil.AudioFifoSize(c.fifo)
}

// Flush discards the sub-frame remainder; the encoder only ever sees frames
// of exactly frameSize samples.
func (c *AudioConverter) Flush() error {
	if c.closed {
		return fmt.Errorf("%w: audio converter is closed", ErrState)
	}
	if n := avutil.AudioFifoSize(c.fifo); n > 0 && n < c.frameSize {
		logger().Debug("dropping trailing audio samples", "samples", n)
	}
	avutil.AudioFifoReset(c.fifo)
	return nil
}

// Close releases the resampler and the FIFO.
func (c *AudioConverter) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	if c.swrCtx != nil {
		swresample.Free(&c.swrCtx)
	}
	if c.fifo != nil {
		avutil.AudioFifoFree(&c.fifo)
	}
	return nil
}
