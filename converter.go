//go:build !ios && !android && (amd64 || arm64)

package recgo

import (
	"github.com/obinnaokechukwu/recgo/avutil"
)

// Converter reshapes raw frames to match encoder requirements. It is a
// send/receive stage like the codecs: push one input frame, then pull
// converted frames until none remain before pushing the next.
//
// ReceiveFrame takes the sequence number the pipeline assigns to the next
// output frame; converters stamp it (directly, or scaled by the audio frame
// size) as the frame PTS in the encoder's time base.
type Converter interface {
	// SendFrame pushes one raw frame into the converter. The frame remains
	// owned by the caller and must stay alive until the converter has been
	// fully drained for this input.
	SendFrame(frame avutil.Frame) error

	// ReceiveFrame returns the next converted frame, or ok=false when no
	// complete frame is available. Returned frames are owned by the caller.
	ReceiveFrame(seq int64) (frame avutil.Frame, ok bool, err error)

	// Flush signals end of input. The video converter pushes EOF into its
	// filter graph so buffered frames become receivable; the audio converter
	// discards the sub-frame remainder so only full encoder frames ever
	// leave it. Drain with ReceiveFrame afterwards.
	Flush() error

	Close() error
}
