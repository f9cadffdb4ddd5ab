//go:build !ios && !android && (amd64 || arm64)

// Package swresample provides the libswresample bindings recgo needs for the
// audio converter: sample format and rate conversion ahead of the FIFO.
package swresample

import (
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/obinnaokechukwu/recgo/avutil"
	"github.com/obinnaokechukwu/recgo/internal/bindings"
)

// SwrContext is an opaque FFmpeg SwrContext pointer.
type SwrContext = unsafe.Pointer

var (
	initOnce sync.Once
	initErr  error

	swr_alloc          func() uintptr
	swr_alloc_set_opts2 func(ps *SwrContext, outChLayout unsafe.Pointer, outSampleFmt, outSampleRate int32, inChLayout unsafe.Pointer, inSampleFmt, inSampleRate int32, logOffset int32, logCtx uintptr) int32
	swr_init           func(s uintptr) int32
	swr_free           func(s *SwrContext)
	swr_convert_frame  func(s, output, input uintptr) int32
	swr_get_out_samples func(s uintptr, inSamples int32) int32
)

// Init initializes the swresample bindings. Safe to call multiple times.
func Init() error {
	initOnce.Do(func() {
		if err := bindings.Load(); err != nil {
			initErr = err
			return
		}
		lib := bindings.LibSWResample()
		if lib == 0 {
			initErr = bindings.ErrNotLoaded
			return
		}
		purego.RegisterLibFunc(&swr_alloc, lib, "swr_alloc")
		purego.RegisterLibFunc(&swr_alloc_set_opts2, lib, "swr_alloc_set_opts2")
		purego.RegisterLibFunc(&swr_init, lib, "swr_init")
		purego.RegisterLibFunc(&swr_free, lib, "swr_free")
		purego.RegisterLibFunc(&swr_convert_frame, lib, "swr_convert_frame")
		purego.RegisterLibFunc(&swr_get_out_samples, lib, "swr_get_out_samples")
	})
	return initErr
}

// Alloc allocates an unconfigured resampler context.
func Alloc() SwrContext {
	if err := Init(); err != nil {
		return nil
	}
	return unsafe.Pointer(swr_alloc())
}

// AllocSetOpts2 configures a resampler via the AVChannelLayout API
// (FFmpeg 5.1+). The layout pointers reference AVChannelLayout structs, e.g.
// from avutil.FrameChLayoutPtr or avcodec.CtxChLayoutPtr.
func AllocSetOpts2(ps *SwrContext, outChLayout unsafe.Pointer, outSampleFmt avutil.SampleFormat, outSampleRate int,
	inChLayout unsafe.Pointer, inSampleFmt avutil.SampleFormat, inSampleRate int) error {
	if err := Init(); err != nil {
		return err
	}
	ret := swr_alloc_set_opts2(ps,
		outChLayout, int32(outSampleFmt), int32(outSampleRate),
		inChLayout, int32(inSampleFmt), int32(inSampleRate),
		0, 0)
	if ret < 0 {
		return avutil.NewError(ret, "swr_alloc_set_opts2")
	}
	return nil
}

// InitContext initializes a configured resampler context.
func InitContext(s SwrContext) error {
	if err := Init(); err != nil {
		return err
	}
	ret := swr_init(uintptr(s))
	if ret < 0 {
		return avutil.NewError(ret, "swr_init")
	}
	return nil
}

// Free frees a resampler context and sets the pointer to nil.
func Free(s *SwrContext) {
	if s == nil || *s == nil {
		return
	}
	if err := Init(); err != nil {
		return
	}
	swr_free(s)
}

// ConvertFrame resamples input into output. output must carry the target
// sample rate, format and channel layout; nil input drains the resampler.
func ConvertFrame(s SwrContext, output, input avutil.Frame) error {
	if err := Init(); err != nil {
		return err
	}
	ret := swr_convert_frame(uintptr(s), uintptr(output), uintptr(input))
	if ret < 0 {
		return avutil.NewError(ret, "swr_convert_frame")
	}
	return nil
}

// GetOutSamples returns an upper bound on the output sample count for the
// given input sample count.
func GetOutSamples(s SwrContext, inSamples int) int {
	if err := Init(); err != nil {
		return 0
	}
	return int(swr_get_out_samples(uintptr(s), int32(inSamples)))
}
