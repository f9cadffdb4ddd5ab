//go:build !ios && !android && (amd64 || arm64)

package recgo

import (
	"fmt"

	"github.com/obinnaokechukwu/recgo/avcodec"
	"github.com/obinnaokechukwu/recgo/avutil"
)

// SendStatus reports the outcome of pushing input into a codec stage.
type SendStatus int

const (
	// StatusAccepted means the input was consumed.
	StatusAccepted SendStatus = iota

	// StatusSaturated means the stage's output queue is full; the caller must
	// drain it and retry the same input.
	StatusSaturated
)

// Decoder turns compressed packets of one stream into raw frames.
//
// SendPacket and ReceiveFrame form a producer/consumer pair with the codec:
// a send may report StatusSaturated, in which case the caller drains frames
// and retries. The decoder never drops packets.
type Decoder struct {
	codecCtx avcodec.Context
	kind     MediaKind
	draining bool
	closed   bool
}

// NewDecoder builds and opens a decoder for the given input stream.
func NewDecoder(params *StreamParams) (*Decoder, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: nil stream params", ErrConfig)
	}

	codec := avcodec.FindDecoder(params.CodecID)
	if codec == nil {
		return nil, fmt.Errorf("%w: no decoder for codec id %d", ErrConfig, params.CodecID)
	}

	ctx := avcodec.AllocContext3(codec)
	if ctx == nil {
		return nil, ErrOutOfMemory
	}

	if err := avcodec.ParametersToContext(ctx, params.CodecParameters()); err != nil {
		avcodec.FreeContext(&ctx)
		return nil, fmt.Errorf("%w: copying %s codec params: %v", ErrConfig, params.Kind, err)
	}

	if err := avcodec.Open2(ctx, codec, nil); err != nil {
		avcodec.FreeContext(&ctx)
		return nil, fmt.Errorf("%w: opening %s decoder: %v", ErrConfig, params.Kind, err)
	}

	return &Decoder{codecCtx: ctx, kind: params.Kind}, nil
}

// SendPacket pushes a compressed packet into the decoder. A nil packet starts
// the drain; a second drain is a protocol error.
func (d *Decoder) SendPacket(pkt avcodec.Packet) (SendStatus, error) {
	if d.closed {
		return StatusAccepted, fmt.Errorf("%w: decoder is closed", ErrState)
	}
	if pkt == nil {
		if d.draining {
			return StatusAccepted, fmt.Errorf("%w: %s decoder already drained", ErrProtocol, d.kind)
		}
		d.draining = true
	}

	err := avcodec.SendPacket(d.codecCtx, pkt)
	switch {
	case err == nil:
		return StatusAccepted, nil
	case avutil.IsAgain(err):
		return StatusSaturated, nil
	case avutil.IsEOF(err):
		return StatusAccepted, fmt.Errorf("%w: send after %s decoder EOF", ErrProtocol, d.kind)
	default:
		return StatusAccepted, fmt.Errorf("%s decoder: %w", d.kind, err)
	}
}

// ReceiveFrame returns the next decoded frame, or ok=false when the decoder
// has nothing available right now. The returned frame is owned by the caller
// and must be freed with avutil.FrameFree.
func (d *Decoder) ReceiveFrame() (frame avutil.Frame, ok bool, err error) {
	if d.closed {
		return nil, false, fmt.Errorf("%w: decoder is closed", ErrState)
	}

	frame = avutil.FrameAlloc()
	if frame == nil {
		return nil, false, ErrOutOfMemory
	}

	rerr := avcodec.ReceiveFrame(d.codecCtx, frame)
	if rerr != nil {
		avutil.FrameFree(&frame)
		if avutil.IsAgain(rerr) || avutil.IsEOF(rerr) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%s decoder: %w", d.kind, rerr)
	}

	return frame, true, nil
}

// CodecContext exposes the opened codec context; converters read the input
// geometry and formats from it.
func (d *Decoder) CodecContext() avcodec.Context {
	return d.codecCtx
}

// Close releases the codec context.
func (d *Decoder) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	avcodec.FreeContext(&d.codecCtx)
	return nil
}
