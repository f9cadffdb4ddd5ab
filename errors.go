//go:build !ios && !android && (amd64 || arm64)

package recgo

import (
	"errors"

	"github.com/obinnaokechukwu/recgo/avutil"
)

// FFmpegError is an error from FFmpeg operations.
// It contains the raw FFmpeg error code and a human-readable message.
type FFmpegError = avutil.Error

// Error classes. Component errors wrap one of these sentinels; classify with
// errors.Is. Saturated/EAGAIN signals are recovered internally by draining
// and never reach callers.
var (
	// ErrConfig indicates invalid options, a missing required stream, or
	// mismatched parameters at construction.
	ErrConfig = errors.New("recgo: configuration error")

	// ErrIO indicates a device read failure or a file write failure.
	ErrIO = errors.New("recgo: i/o error")

	// ErrProtocol indicates the codec send/receive protocol was used out of
	// contract, e.g. draining twice after end of stream.
	ErrProtocol = errors.New("recgo: codec protocol error")

	// ErrOverflow indicates the audio FIFO has insufficient free space for
	// the next batch of samples.
	ErrOverflow = errors.New("recgo: audio fifo overflow")

	// ErrState indicates lifecycle misuse, e.g. writing a packet before the
	// muxer opened its file.
	ErrState = errors.New("recgo: invalid state")

	// ErrWorker carries an error captured from a background worker; it is
	// latched and re-raised by the next pipeline interaction.
	ErrWorker = errors.New("recgo: worker failed")

	// ErrOutOfMemory indicates a native allocation failed.
	ErrOutOfMemory = errors.New("recgo: out of memory")
)

// IsEOF returns true if the error indicates end of file.
func IsEOF(err error) bool {
	return avutil.IsEOF(err)
}

// IsAgain returns true if the error indicates to try again (EAGAIN).
func IsAgain(err error) bool {
	return avutil.IsAgain(err)
}
