//go:build !ios && !android && (amd64 || arm64)

// Package swscale provides the libswscale bindings recgo needs for pixel
// format conversion and scaling in the video converter.
package swscale

import (
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/obinnaokechukwu/recgo/avutil"
	"github.com/obinnaokechukwu/recgo/internal/bindings"
)

// Context is an opaque FFmpeg SwsContext pointer.
type Context = unsafe.Pointer

// Scaling algorithm flags.
const (
	FlagFastBilinear int32 = 1
	FlagBilinear     int32 = 2
	FlagBicubic      int32 = 4
	FlagPoint        int32 = 0x10
	FlagLanczos      int32 = 0x200
)

var (
	initOnce sync.Once
	initErr  error

	sws_getContext  func(srcW, srcH, srcFormat, dstW, dstH, dstFormat, flags int32, srcFilter, dstFilter, param uintptr) uintptr
	sws_freeContext func(ctx uintptr)
	sws_scale_frame func(ctx, dst, src uintptr) int32
)

// Init initializes the swscale bindings. Safe to call multiple times.
func Init() error {
	initOnce.Do(func() {
		if err := bindings.Load(); err != nil {
			initErr = err
			return
		}
		lib := bindings.LibSWScale()
		if lib == 0 {
			initErr = bindings.ErrNotLoaded
			return
		}
		purego.RegisterLibFunc(&sws_getContext, lib, "sws_getContext")
		purego.RegisterLibFunc(&sws_freeContext, lib, "sws_freeContext")
		purego.RegisterLibFunc(&sws_scale_frame, lib, "sws_scale_frame")
	})
	return initErr
}

// GetContext allocates a scale context for the given conversion.
func GetContext(srcW, srcH int, srcFormat avutil.PixelFormat, dstW, dstH int, dstFormat avutil.PixelFormat, flags int32) Context {
	if err := Init(); err != nil {
		return nil
	}
	return unsafe.Pointer(sws_getContext(
		int32(srcW), int32(srcH), int32(srcFormat),
		int32(dstW), int32(dstH), int32(dstFormat),
		flags, 0, 0, 0,
	))
}

// FreeContext frees a scale context.
func FreeContext(ctx Context) {
	if ctx == nil {
		return
	}
	if err := Init(); err != nil {
		return
	}
	sws_freeContext(uintptr(ctx))
}

// ScaleFrame converts src into dst (sws_scale_frame, FFmpeg 5.0+).
// dst must have format, width and height set; buffers are allocated by
// swscale if missing.
func ScaleFrame(ctx Context, dst, src avutil.Frame) error {
	if err := Init(); err != nil {
		return err
	}
	ret := sws_scale_frame(uintptr(ctx), uintptr(dst), uintptr(src))
	if ret < 0 {
		return avutil.NewError(ret, "sws_scale_frame")
	}
	return nil
}
