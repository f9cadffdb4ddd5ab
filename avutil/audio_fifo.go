//go:build !ios && !android && (amd64 || arm64)

package avutil

import (
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/obinnaokechukwu/recgo/internal/bindings"
)

// AudioFifo is an opaque FFmpeg AVAudioFifo pointer.
//
// The FIFO repackages arbitrarily sized resampled frames into the fixed-size
// frames an audio encoder requires. It is not thread-safe; recgo only ever
// touches a FIFO from the single goroutine that owns its converter.
type AudioFifo = unsafe.Pointer

var (
	avAudioFifoAlloc func(sampleFmt int32, channels, nbSamples int32) uintptr
	avAudioFifoFree  func(fifo uintptr)
	avAudioFifoWrite func(fifo uintptr, data unsafe.Pointer, nbSamples int32) int32
	avAudioFifoRead  func(fifo uintptr, data unsafe.Pointer, nbSamples int32) int32
	avAudioFifoSize  func(fifo uintptr) int32
	avAudioFifoSpace func(fifo uintptr) int32
	avAudioFifoReset func(fifo uintptr)
)

func registerFifoBindings(lib uintptr) {
	purego.RegisterLibFunc(&avAudioFifoAlloc, lib, "av_audio_fifo_alloc")
	purego.RegisterLibFunc(&avAudioFifoFree, lib, "av_audio_fifo_free")
	purego.RegisterLibFunc(&avAudioFifoWrite, lib, "av_audio_fifo_write")
	purego.RegisterLibFunc(&avAudioFifoRead, lib, "av_audio_fifo_read")
	purego.RegisterLibFunc(&avAudioFifoSize, lib, "av_audio_fifo_size")
	purego.RegisterLibFunc(&avAudioFifoSpace, lib, "av_audio_fifo_space")
	purego.RegisterLibFunc(&avAudioFifoReset, lib, "av_audio_fifo_reset")
}

// AudioFifoAlloc allocates a FIFO holding nbSamples samples of the given
// sample format and channel count.
func AudioFifoAlloc(sampleFmt SampleFormat, channels, nbSamples int) AudioFifo {
	if avAudioFifoAlloc == nil {
		return nil
	}
	return unsafe.Pointer(avAudioFifoAlloc(int32(sampleFmt), int32(channels), int32(nbSamples)))
}

// AudioFifoFree frees a FIFO and sets the pointer to nil.
func AudioFifoFree(fifo *AudioFifo) {
	if fifo == nil || *fifo == nil || avAudioFifoFree == nil {
		return
	}
	avAudioFifoFree(uintptr(*fifo))
	*fifo = nil
}

// AudioFifoWrite appends nbSamples samples from the plane array at data
// (a void** as produced by FrameDataPtr). Returns the number written.
func AudioFifoWrite(fifo AudioFifo, data unsafe.Pointer, nbSamples int) (int, error) {
	if avAudioFifoWrite == nil {
		return 0, bindings.ErrNotLoaded
	}
	ret := avAudioFifoWrite(uintptr(fifo), data, int32(nbSamples))
	if ret < 0 {
		return 0, NewError(ret, "av_audio_fifo_write")
	}
	return int(ret), nil
}

// AudioFifoRead removes nbSamples samples into the plane array at data.
// Returns the number actually read.
func AudioFifoRead(fifo AudioFifo, data unsafe.Pointer, nbSamples int) (int, error) {
	if avAudioFifoRead == nil {
		return 0, bindings.ErrNotLoaded
	}
	ret := avAudioFifoRead(uintptr(fifo), data, int32(nbSamples))
	if ret < 0 {
		return 0, NewError(ret, "av_audio_fifo_read")
	}
	return int(ret), nil
}

// AudioFifoSize returns the number of samples currently buffered.
func AudioFifoSize(fifo AudioFifo) int {
	if fifo == nil || avAudioFifoSize == nil {
		return 0
	}
	return int(avAudioFifoSize(uintptr(fifo)))
}

// AudioFifoSpace returns the number of samples the FIFO can still accept.
func AudioFifoSpace(fifo AudioFifo) int {
	if fifo == nil || avAudioFifoSpace == nil {
		return 0
	}
	return int(avAudioFifoSpace(uintptr(fifo)))
}

// AudioFifoReset discards all buffered samples.
func AudioFifoReset(fifo AudioFifo) {
	if fifo == nil || avAudioFifoReset == nil {
		return
	}
	avAudioFifoReset(uintptr(fifo))
}
