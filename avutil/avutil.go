//go:build !ios && !android && (amd64 || arm64)

// Package avutil provides the libavutil bindings recgo needs: frame
// management, dictionaries, AVOptions, error translation, wall-clock time and
// the audio FIFO used by the audio converter.
package avutil

import (
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/obinnaokechukwu/recgo/internal/bindings"
)

// Frame is an opaque FFmpeg AVFrame pointer.
type Frame = unsafe.Pointer

// Dictionary is an opaque FFmpeg AVDictionary pointer.
type Dictionary = unsafe.Pointer

// Function bindings - registered on first Load.
var (
	avFrameAlloc        func() uintptr
	avFrameFree         func(frame *unsafe.Pointer)
	avFrameRef          func(dst, src uintptr) int32
	avFrameUnref        func(frame uintptr)
	avFrameGetBuffer    func(frame uintptr, align int32) int32
	avFrameMakeWritable func(frame uintptr) int32

	avMalloc func(size uintptr) uintptr
	avFree   func(ptr uintptr)

	avDictSet  func(pm *unsafe.Pointer, key, value string, flags int32) int32
	avDictFree func(pm *unsafe.Pointer)

	avStrerror    func(errnum int32, errbuf *byte, errbufSize uintptr) int32
	avLogSetLevel func(level int32)
	avGettime     func() int64

	avChannelLayoutDefault func(chLayout uintptr, nbChannels int32)
	avChannelLayoutCopy    func(dst, src uintptr) int32

	avOptSet    func(obj uintptr, name, val string, searchFlags int32) int32
	avOptSetInt func(obj uintptr, name string, val int64, searchFlags int32) int32

	bindingsRegistered bool
)

func init() {
	registerBindings()
}

func registerBindings() {
	if bindingsRegistered {
		return
	}

	if err := bindings.Load(); err != nil {
		return // Will fail later when functions are called
	}

	lib := bindings.LibAVUtil()
	if lib == 0 {
		return
	}

	purego.RegisterLibFunc(&avFrameAlloc, lib, "av_frame_alloc")
	purego.RegisterLibFunc(&avFrameFree, lib, "av_frame_free")
	purego.RegisterLibFunc(&avFrameRef, lib, "av_frame_ref")
	purego.RegisterLibFunc(&avFrameUnref, lib, "av_frame_unref")
	purego.RegisterLibFunc(&avFrameGetBuffer, lib, "av_frame_get_buffer")
	purego.RegisterLibFunc(&avFrameMakeWritable, lib, "av_frame_make_writable")

	purego.RegisterLibFunc(&avMalloc, lib, "av_malloc")
	purego.RegisterLibFunc(&avFree, lib, "av_free")

	purego.RegisterLibFunc(&avDictSet, lib, "av_dict_set")
	purego.RegisterLibFunc(&avDictFree, lib, "av_dict_free")

	purego.RegisterLibFunc(&avStrerror, lib, "av_strerror")
	purego.RegisterLibFunc(&avLogSetLevel, lib, "av_log_set_level")
	purego.RegisterLibFunc(&avGettime, lib, "av_gettime")

	purego.RegisterLibFunc(&avChannelLayoutDefault, lib, "av_channel_layout_default")
	purego.RegisterLibFunc(&avChannelLayoutCopy, lib, "av_channel_layout_copy")

	purego.RegisterLibFunc(&avOptSet, lib, "av_opt_set")
	purego.RegisterLibFunc(&avOptSetInt, lib, "av_opt_set_int")

	registerFifoBindings(lib)

	bindingsRegistered = true
}

// FrameAlloc allocates an AVFrame.
// The returned frame must be freed with FrameFree when no longer needed.
func FrameAlloc() Frame {
	if avFrameAlloc == nil {
		return nil
	}
	return unsafe.Pointer(avFrameAlloc())
}

// FrameFree frees an AVFrame and sets the pointer to nil.
// Safe to call with nil pointer.
func FrameFree(frame *Frame) {
	if frame == nil || *frame == nil || avFrameFree == nil {
		return
	}
	avFrameFree(frame)
	*frame = nil
}

// FrameRef creates a reference to src and stores it in dst.
// dst must be an allocated frame (via FrameAlloc).
func FrameRef(dst, src Frame) error {
	if avFrameRef == nil {
		return bindings.ErrNotLoaded
	}
	ret := avFrameRef(uintptr(dst), uintptr(src))
	if ret < 0 {
		return NewError(ret, "av_frame_ref")
	}
	return nil
}

// FrameUnref unreferences all buffers referenced by frame.
func FrameUnref(frame Frame) {
	if frame == nil || avFrameUnref == nil {
		return
	}
	avFrameUnref(uintptr(frame))
}

// FrameGetBuffer allocates buffers for the frame based on its format and
// dimensions. The frame must have format, width, height set for video, or
// format, nb_samples, channel count set for audio.
func FrameGetBuffer(frame Frame, align int32) error {
	if avFrameGetBuffer == nil {
		return bindings.ErrNotLoaded
	}
	ret := avFrameGetBuffer(uintptr(frame), align)
	if ret < 0 {
		return NewError(ret, "av_frame_get_buffer")
	}
	return nil
}

// FrameMakeWritable ensures the frame data is writable, copying if needed.
func FrameMakeWritable(frame Frame) error {
	if avFrameMakeWritable == nil {
		return bindings.ErrNotLoaded
	}
	ret := avFrameMakeWritable(uintptr(frame))
	if ret < 0 {
		return NewError(ret, "av_frame_make_writable")
	}
	return nil
}

// NoPTSValue is the value used to indicate no PTS (AV_NOPTS_VALUE).
const NoPTSValue int64 = -9223372036854775808

// AVFrame struct field offsets (for FFmpeg 6.x / avutil 58.x).
// Verified with offsetof() on FFmpeg 58.29.100.
const (
	offsetData       = 0   // uint8_t *data[8]
	offsetLinesize   = 64  // int linesize[8]
	offsetWidth      = 104 // int width
	offsetHeight     = 108 // int height
	offsetNbSamples  = 112 // int nb_samples
	offsetFormat     = 116 // int format
	offsetPts        = 136 // int64_t pts
	offsetChannels   = 148 // ch_layout.nb_channels
	offsetSampleRate = 216 // int sample_rate
)

// FrameWidth returns the width of the frame.
func FrameWidth(frame Frame) int32 {
	if frame == nil {
		return 0
	}
	return *(*int32)(unsafe.Pointer(uintptr(frame) + offsetWidth))
}

// SetFrameWidth sets the width of the frame.
func SetFrameWidth(frame Frame, width int32) {
	if frame == nil {
		return
	}
	*(*int32)(unsafe.Pointer(uintptr(frame) + offsetWidth)) = width
}

// FrameHeight returns the height of the frame.
func FrameHeight(frame Frame) int32 {
	if frame == nil {
		return 0
	}
	return *(*int32)(unsafe.Pointer(uintptr(frame) + offsetHeight))
}

// SetFrameHeight sets the height of the frame.
func SetFrameHeight(frame Frame, height int32) {
	if frame == nil {
		return
	}
	*(*int32)(unsafe.Pointer(uintptr(frame) + offsetHeight)) = height
}

// FrameFormat returns the pixel format (video) or sample format (audio).
func FrameFormat(frame Frame) int32 {
	if frame == nil {
		return -1
	}
	return *(*int32)(unsafe.Pointer(uintptr(frame) + offsetFormat))
}

// SetFrameFormat sets the pixel format (video) or sample format (audio).
func SetFrameFormat(frame Frame, format int32) {
	if frame == nil {
		return
	}
	*(*int32)(unsafe.Pointer(uintptr(frame) + offsetFormat)) = format
}

// FramePTS returns the presentation timestamp.
func FramePTS(frame Frame) int64 {
	if frame == nil {
		return NoPTSValue
	}
	return *(*int64)(unsafe.Pointer(uintptr(frame) + offsetPts))
}

// SetFramePTS sets the presentation timestamp.
func SetFramePTS(frame Frame, pts int64) {
	if frame == nil {
		return
	}
	*(*int64)(unsafe.Pointer(uintptr(frame) + offsetPts)) = pts
}

// FrameNbSamples returns the number of audio samples in this frame.
func FrameNbSamples(frame Frame) int32 {
	if frame == nil {
		return 0
	}
	return *(*int32)(unsafe.Pointer(uintptr(frame) + offsetNbSamples))
}

// SetFrameNbSamples sets the number of audio samples.
func SetFrameNbSamples(frame Frame, nbSamples int32) {
	if frame == nil {
		return
	}
	*(*int32)(unsafe.Pointer(uintptr(frame) + offsetNbSamples)) = nbSamples
}

// FrameSampleRate returns the audio sample rate.
func FrameSampleRate(frame Frame) int32 {
	if frame == nil {
		return 0
	}
	return *(*int32)(unsafe.Pointer(uintptr(frame) + offsetSampleRate))
}

// SetFrameSampleRate sets the audio sample rate.
func SetFrameSampleRate(frame Frame, sampleRate int32) {
	if frame == nil {
		return
	}
	*(*int32)(unsafe.Pointer(uintptr(frame) + offsetSampleRate)) = sampleRate
}

// FrameChannels returns the number of audio channels (ch_layout.nb_channels).
func FrameChannels(frame Frame) int32 {
	if frame == nil {
		return 0
	}
	return *(*int32)(unsafe.Pointer(uintptr(frame) + offsetChannels))
}

// FrameChLayoutPtr returns a pointer to the frame's AVChannelLayout.
func FrameChLayoutPtr(frame Frame) unsafe.Pointer {
	if frame == nil {
		return nil
	}
	// ch_layout starts at nb_channels - 4 (order field precedes it).
	return unsafe.Pointer(uintptr(frame) + offsetChannels - 4)
}

// FrameDataPtr returns the base of the frame's data plane array, typed as the
// void** the FFmpeg sample APIs (audio FIFO, swr) expect.
func FrameDataPtr(frame Frame) unsafe.Pointer {
	if frame == nil {
		return nil
	}
	return unsafe.Pointer(uintptr(frame) + offsetData)
}

// FrameDataPlane returns the data pointer for a given plane.
func FrameDataPlane(frame Frame, plane int) unsafe.Pointer {
	if frame == nil || plane < 0 || plane >= 8 {
		return nil
	}
	dataArray := (*[8]unsafe.Pointer)(unsafe.Pointer(uintptr(frame) + offsetData))
	return dataArray[plane]
}

// FrameLinesizePlane returns the linesize for a given plane.
func FrameLinesizePlane(frame Frame, plane int) int32 {
	if frame == nil || plane < 0 || plane >= 8 {
		return 0
	}
	linesizeArray := (*[8]int32)(unsafe.Pointer(uintptr(frame) + offsetLinesize))
	return linesizeArray[plane]
}

// Malloc allocates memory using FFmpeg's allocator.
func Malloc(size uintptr) unsafe.Pointer {
	if avMalloc == nil {
		return nil
	}
	return unsafe.Pointer(avMalloc(size))
}

// Free frees memory allocated by Malloc.
func Free(ptr unsafe.Pointer) {
	if ptr == nil || avFree == nil {
		return
	}
	avFree(uintptr(ptr))
}

// DictSet sets a key-value pair in a dictionary.
func DictSet(dict *Dictionary, key, value string, flags int32) error {
	if avDictSet == nil {
		return bindings.ErrNotLoaded
	}
	ret := avDictSet(dict, key, value, flags)
	if ret < 0 {
		return NewError(ret, "av_dict_set")
	}
	return nil
}

// DictFromMap builds an AVDictionary from a Go options map.
// The returned dictionary must be released with DictFree.
func DictFromMap(options map[string]string) (Dictionary, error) {
	var dict Dictionary
	for key, value := range options {
		if err := DictSet(&dict, key, value, 0); err != nil {
			DictFree(&dict)
			return nil, err
		}
	}
	return dict, nil
}

// DictFree frees a dictionary.
func DictFree(dict *Dictionary) {
	if dict == nil || avDictFree == nil {
		return
	}
	avDictFree(dict)
}

// ErrorString returns a human-readable message for an FFmpeg error code.
func ErrorString(errnum int32) string {
	if avStrerror == nil {
		return "unknown error (FFmpeg not loaded)"
	}

	bufArr := new([256]byte)
	avStrerror(errnum, &bufArr[0], 256)
	buf := bufArr[:]

	for i, b := range buf {
		if b == 0 {
			return string(buf[:i])
		}
	}
	return string(buf)
}

// LogSetLevel sets FFmpeg's native log level (AV_LOG_* value).
func LogSetLevel(level int32) {
	if avLogSetLevel == nil {
		return
	}
	avLogSetLevel(level)
}

// Gettime returns the wall clock in microseconds (av_gettime).
func Gettime() int64 {
	if avGettime == nil {
		return 0
	}
	return avGettime()
}

// ChannelLayoutDefault writes the default channel layout for nbChannels into
// the AVChannelLayout at chLayout (e.g. embedded in a codec context or frame).
func ChannelLayoutDefault(chLayout unsafe.Pointer, nbChannels int32) {
	if avChannelLayoutDefault == nil || chLayout == nil {
		return
	}
	avChannelLayoutDefault(uintptr(chLayout), nbChannels)
}

// ChannelLayoutCopy copies a channel layout from src to dst.
func ChannelLayoutCopy(dst, src unsafe.Pointer) error {
	if avChannelLayoutCopy == nil {
		return nil
	}
	ret := avChannelLayoutCopy(uintptr(dst), uintptr(src))
	if ret < 0 {
		return NewError(ret, "av_channel_layout_copy")
	}
	return nil
}

// AVOptions search flags.
const (
	OptSearchChildren = 1 << 0 // AV_OPT_SEARCH_CHILDREN
)

// OptSet sets a string option on an AVOptions-enabled struct.
// Use OptSearchChildren to reach private codec options (preset, tune, ...).
func OptSet(obj unsafe.Pointer, name, val string, searchFlags int32) error {
	if avOptSet == nil {
		return bindings.ErrNotLoaded
	}
	if obj == nil {
		return NewError(AVERROR_EINVAL, "av_opt_set: nil object")
	}
	ret := avOptSet(uintptr(obj), name, val, searchFlags)
	if ret < 0 {
		return NewError(ret, "av_opt_set")
	}
	return nil
}

// OptSetInt sets an integer option on an AVOptions-enabled struct.
func OptSetInt(obj unsafe.Pointer, name string, val int64, searchFlags int32) error {
	if avOptSetInt == nil {
		return bindings.ErrNotLoaded
	}
	if obj == nil {
		return NewError(AVERROR_EINVAL, "av_opt_set_int: nil object")
	}
	ret := avOptSetInt(uintptr(obj), name, val, searchFlags)
	if ret < 0 {
		return NewError(ret, "av_opt_set_int")
	}
	return nil
}
