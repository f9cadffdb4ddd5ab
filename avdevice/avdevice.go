//go:build !ios && !android && (amd64 || arm64)

// Package avdevice provides minimal bindings to FFmpeg's libavdevice.
//
// recgo captures through device demuxers (x11grab, avfoundation, gdigrab,
// alsa, pulse, dshow). This package only binds the registration entry point;
// registration makes those demuxers visible via avformat.FindInputFormat.
package avdevice

import (
	"sync"

	"github.com/ebitengine/purego"
	"github.com/obinnaokechukwu/recgo/internal/bindings"
)

var (
	registerOnce sync.Once
	registerErr  error

	avdeviceRegisterAll func()
)

// RegisterAll registers all device demuxers/muxers with FFmpeg.
// The native registration is process-wide; it runs exactly once no matter how
// many demuxers are constructed.
func RegisterAll() error {
	registerOnce.Do(func() {
		if err := bindings.Load(); err != nil {
			registerErr = err
			return
		}
		lib := bindings.LibAVDevice()
		if lib == 0 {
			registerErr = bindings.ErrNotLoaded
			return
		}
		purego.RegisterLibFunc(&avdeviceRegisterAll, lib, "avdevice_register_all")
		avdeviceRegisterAll()
	})
	return registerErr
}
