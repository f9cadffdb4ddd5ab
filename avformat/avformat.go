//go:build !ios && !android && (amd64 || arm64)

// Package avformat provides the libavformat bindings recgo needs: device and
// file input, stream inspection, output contexts and the interleaved writer.
package avformat

import (
	"runtime"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/obinnaokechukwu/recgo/avcodec"
	"github.com/obinnaokechukwu/recgo/avutil"
	"github.com/obinnaokechukwu/recgo/internal/bindings"
)

// FormatContext is an opaque FFmpeg AVFormatContext pointer.
type FormatContext = unsafe.Pointer

// InputFormat is an opaque FFmpeg AVInputFormat pointer.
type InputFormat = unsafe.Pointer

// OutputFormat is an opaque FFmpeg AVOutputFormat pointer.
type OutputFormat = unsafe.Pointer

// Stream is an opaque FFmpeg AVStream pointer.
type Stream = unsafe.Pointer

// IOContext is an opaque FFmpeg AVIOContext pointer.
type IOContext = unsafe.Pointer

var (
	avFindInputFormat      func(shortName string) uintptr
	avformatOpenInput      func(ctx *unsafe.Pointer, url string, fmt uintptr, options *unsafe.Pointer) int32
	avformatCloseInput     func(ctx *unsafe.Pointer)
	avformatFindStreamInfo func(ctx uintptr, options *unsafe.Pointer) int32
	avReadFrame            func(ctx, pkt uintptr) int32
	avFindBestStream       func(ctx uintptr, mediaType, wanted, related int32, decoder *unsafe.Pointer, flags int32) int32

	avformatAllocOutputCtx2 func(ctx *unsafe.Pointer, oformat uintptr, formatName, filename string) int32
	avformatFreeContext     func(ctx uintptr)
	avformatNewStream       func(ctx, codec uintptr) uintptr
	avformatWriteHeader     func(ctx uintptr, options *unsafe.Pointer) int32
	avWriteTrailer          func(ctx uintptr) int32
	avInterleavedWriteFrame func(ctx, pkt uintptr) int32

	avioOpen   func(ctx *unsafe.Pointer, url string, flags int32) int32
	avioClosep func(ctx *unsafe.Pointer) int32

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

	lib := bindings.LibAVFormat()
	if lib == 0 {
		return
	}

	purego.RegisterLibFunc(&avFindInputFormat, lib, "av_find_input_format")
	purego.RegisterLibFunc(&avformatOpenInput, lib, "avformat_open_input")
	purego.RegisterLibFunc(&avformatCloseInput, lib, "avformat_close_input")
	purego.RegisterLibFunc(&avformatFindStreamInfo, lib, "avformat_find_stream_info")
	purego.RegisterLibFunc(&avReadFrame, lib, "av_read_frame")
	purego.RegisterLibFunc(&avFindBestStream, lib, "av_find_best_stream")

	purego.RegisterLibFunc(&avformatAllocOutputCtx2, lib, "avformat_alloc_output_context2")
	purego.RegisterLibFunc(&avformatFreeContext, lib, "avformat_free_context")
	purego.RegisterLibFunc(&avformatNewStream, lib, "avformat_new_stream")
	purego.RegisterLibFunc(&avformatWriteHeader, lib, "avformat_write_header")
	purego.RegisterLibFunc(&avWriteTrailer, lib, "av_write_trailer")
	purego.RegisterLibFunc(&avInterleavedWriteFrame, lib, "av_interleaved_write_frame")

	purego.RegisterLibFunc(&avioOpen, lib, "avio_open")
	purego.RegisterLibFunc(&avioClosep, lib, "avio_closep")

	bindingsRegistered = true
}

// FindInputFormat looks up an input (demuxer) format by short name, e.g.
// "x11grab", "avfoundation", "alsa". Device formats require
// avdevice.RegisterAll to have run.
func FindInputFormat(shortName string) InputFormat {
	if avFindInputFormat == nil {
		return nil
	}
	return unsafe.Pointer(avFindInputFormat(shortName))
}

// OpenInput opens an input (device or file) and reads its header.
// On failure ctx is left nil and any partially opened input is closed.
func OpenInput(ctx *FormatContext, url string, fmt InputFormat, options *avutil.Dictionary) error {
	if avformatOpenInput == nil {
		return bindings.ErrNotLoaded
	}
	ret := avformatOpenInput(ctx, url, uintptr(fmt), options)
	runtime.KeepAlive(url)
	if ret < 0 {
		return avutil.NewError(ret, "avformat_open_input")
	}
	return nil
}

// CloseInput closes an input and frees its context.
func CloseInput(ctx *FormatContext) {
	if ctx == nil || *ctx == nil || avformatCloseInput == nil {
		return
	}
	avformatCloseInput(ctx)
	*ctx = nil
}

// FindStreamInfo probes the input for stream parameters.
func FindStreamInfo(ctx FormatContext, options *avutil.Dictionary) error {
	if avformatFindStreamInfo == nil {
		return bindings.ErrNotLoaded
	}
	ret := avformatFindStreamInfo(uintptr(ctx), options)
	if ret < 0 {
		return avutil.NewError(ret, "avformat_find_stream_info")
	}
	return nil
}

// ReadFrame reads the next packet from the input.
// Returns an avutil.Error with EAGAIN for non-blocking inputs with nothing to
// deliver, and with EOF at end of stream.
func ReadFrame(ctx FormatContext, pkt avcodec.Packet) error {
	if avReadFrame == nil {
		return bindings.ErrNotLoaded
	}
	ret := avReadFrame(uintptr(ctx), uintptr(pkt))
	if ret < 0 {
		return avutil.NewError(ret, "av_read_frame")
	}
	return nil
}

// FindBestStream returns the index of the best stream of the given media
// type, or a negative averror code if there is none.
func FindBestStream(ctx FormatContext, mediaType avutil.MediaType) int32 {
	if avFindBestStream == nil {
		return -1
	}
	return avFindBestStream(uintptr(ctx), int32(mediaType), -1, -1, nil, 0)
}

// AllocOutputContext2 allocates an output context for the given format name
// or filename extension.
func AllocOutputContext2(ctx *FormatContext, formatName, filename string) error {
	if avformatAllocOutputCtx2 == nil {
		return bindings.ErrNotLoaded
	}
	ret := avformatAllocOutputCtx2(ctx, 0, formatName, filename)
	runtime.KeepAlive(formatName)
	runtime.KeepAlive(filename)
	if ret < 0 {
		return avutil.NewError(ret, "avformat_alloc_output_context2")
	}
	return nil
}

// FreeContext frees an output format context.
func FreeContext(ctx FormatContext) {
	if ctx == nil || avformatFreeContext == nil {
		return
	}
	avformatFreeContext(uintptr(ctx))
}

// NewStream creates a new stream in the output context.
func NewStream(ctx FormatContext, codec avcodec.Codec) Stream {
	if avformatNewStream == nil {
		return nil
	}
	return unsafe.Pointer(avformatNewStream(uintptr(ctx), uintptr(codec)))
}

// WriteHeader writes the container header.
func WriteHeader(ctx FormatContext, options *avutil.Dictionary) error {
	if avformatWriteHeader == nil {
		return bindings.ErrNotLoaded
	}
	ret := avformatWriteHeader(uintptr(ctx), options)
	if ret < 0 {
		return avutil.NewError(ret, "avformat_write_header")
	}
	return nil
}

// WriteTrailer writes the container trailer and flushes muxer buffers.
func WriteTrailer(ctx FormatContext) error {
	if avWriteTrailer == nil {
		return bindings.ErrNotLoaded
	}
	ret := avWriteTrailer(uintptr(ctx))
	if ret < 0 {
		return avutil.NewError(ret, "av_write_trailer")
	}
	return nil
}

// InterleavedWriteFrame hands a packet to the interleaver. A nil packet
// flushes the interleaving queues. The interleaver is not reentrant; callers
// serialize access.
func InterleavedWriteFrame(ctx FormatContext, pkt avcodec.Packet) error {
	if avInterleavedWriteFrame == nil {
		return bindings.ErrNotLoaded
	}
	ret := avInterleavedWriteFrame(uintptr(ctx), uintptr(pkt))
	if ret < 0 {
		return avutil.NewError(ret, "av_interleaved_write_frame")
	}
	return nil
}

// IO open flags.
const (
	IOFlagRead  int32 = 1
	IOFlagWrite int32 = 2
)

// IOOpen opens an avio resource for the given url.
func IOOpen(ctx *IOContext, url string, flags int32) error {
	if avioOpen == nil {
		return bindings.ErrNotLoaded
	}
	ret := avioOpen(ctx, url, flags)
	runtime.KeepAlive(url)
	if ret < 0 {
		return avutil.NewError(ret, "avio_open")
	}
	return nil
}

// IOClose closes an avio resource and sets the pointer to nil.
func IOClose(ctx *IOContext) error {
	if ctx == nil || *ctx == nil {
		return nil
	}
	if avioClosep == nil {
		return bindings.ErrNotLoaded
	}
	ret := avioClosep(ctx)
	if ret < 0 {
		return avutil.NewError(ret, "avio_closep")
	}
	return nil
}

// AVFormatContext struct field offsets (for FFmpeg 6.x / avformat 60.x).
// Verified with offsetof() on FFmpeg 60.16.100.
const (
	offsetOformat    = 16 // const AVOutputFormat *oformat
	offsetIOContext  = 32 // AVIOContext *pb
	offsetNumStreams = 44 // unsigned int nb_streams
	offsetStreams    = 48 // AVStream **streams
)

// AVOutputFormat field offsets (for FFmpeg 6.x).
const (
	offsetOutputFormatFlags = 44 // int flags
)

// Output format flag constants.
const (
	FmtNoFile       int32 = 0x0001 // AVFMT_NOFILE
	FmtGlobalHeader int32 = 0x0040 // AVFMT_GLOBALHEADER
)

// NumStreams returns the number of streams in the context.
func NumStreams(ctx FormatContext) int {
	if ctx == nil {
		return 0
	}
	return int(*(*uint32)(unsafe.Pointer(uintptr(ctx) + offsetNumStreams)))
}

// GetStream returns the stream at the given index.
func GetStream(ctx FormatContext, index int) Stream {
	if ctx == nil || index < 0 || index >= NumStreams(ctx) {
		return nil
	}
	streamsPtr := *(*unsafe.Pointer)(unsafe.Pointer(uintptr(ctx) + offsetStreams))
	if streamsPtr == nil {
		return nil
	}
	return *(*unsafe.Pointer)(unsafe.Pointer(uintptr(streamsPtr) + uintptr(index)*unsafe.Sizeof(uintptr(0))))
}

// SetIOContext installs an opened avio context as the output sink.
func SetIOContext(ctx FormatContext, pb IOContext) {
	if ctx == nil {
		return
	}
	*(*unsafe.Pointer)(unsafe.Pointer(uintptr(ctx) + offsetIOContext)) = pb
}

func outputFormat(ctx FormatContext) OutputFormat {
	if ctx == nil {
		return nil
	}
	return *(*unsafe.Pointer)(unsafe.Pointer(uintptr(ctx) + offsetOformat))
}

func outputFormatFlags(ctx FormatContext) int32 {
	of := outputFormat(ctx)
	if of == nil {
		return 0
	}
	return *(*int32)(unsafe.Pointer(uintptr(of) + offsetOutputFormatFlags))
}

// NeedsGlobalHeader reports whether the output format wants codec extradata
// in the container header rather than inlined in packets.
func NeedsGlobalHeader(ctx FormatContext) bool {
	return outputFormatFlags(ctx)&FmtGlobalHeader != 0
}

// HasNoFile reports whether the output format manages its own I/O
// (AVFMT_NOFILE), in which case no avio sink must be opened.
func HasNoFile(ctx FormatContext) bool {
	return outputFormatFlags(ctx)&FmtNoFile != 0
}

// AVStream struct field offsets (for FFmpeg 6.x/7.x).
// Verified with offsetof() on FFmpeg 7.1.1.
const (
	offsetStreamIndex        = 8  // int index
	offsetStreamCodecPar     = 16 // AVCodecParameters *codecpar
	offsetStreamTimeBase     = 32 // AVRational time_base
	offsetStreamAvgFrameRate = 88 // AVRational avg_frame_rate
)

// StreamIndex returns the stream's index within its format context.
func StreamIndex(stream Stream) int32 {
	if stream == nil {
		return -1
	}
	return *(*int32)(unsafe.Pointer(uintptr(stream) + offsetStreamIndex))
}

// StreamCodecPar returns the stream's codec parameters.
func StreamCodecPar(stream Stream) avcodec.Parameters {
	if stream == nil {
		return nil
	}
	return *(*unsafe.Pointer)(unsafe.Pointer(uintptr(stream) + offsetStreamCodecPar))
}

// StreamTimeBase returns the stream's time base.
func StreamTimeBase(stream Stream) avutil.Rational {
	if stream == nil {
		return avutil.Rational{}
	}
	num := *(*int32)(unsafe.Pointer(uintptr(stream) + offsetStreamTimeBase))
	den := *(*int32)(unsafe.Pointer(uintptr(stream) + offsetStreamTimeBase + 4))
	return avutil.NewRational(num, den)
}

// SetStreamTimeBase sets the stream's time base. The muxer may adjust it when
// the header is written.
func SetStreamTimeBase(stream Stream, num, den int32) {
	if stream == nil {
		return
	}
	*(*int32)(unsafe.Pointer(uintptr(stream) + offsetStreamTimeBase)) = num
	*(*int32)(unsafe.Pointer(uintptr(stream) + offsetStreamTimeBase + 4)) = den
}

// StreamAvgFrameRate returns the stream's average frame rate.
func StreamAvgFrameRate(stream Stream) avutil.Rational {
	if stream == nil {
		return avutil.Rational{}
	}
	num := *(*int32)(unsafe.Pointer(uintptr(stream) + offsetStreamAvgFrameRate))
	den := *(*int32)(unsafe.Pointer(uintptr(stream) + offsetStreamAvgFrameRate + 4))
	return avutil.NewRational(num, den)
}

// AVCodecParameters struct field offsets (for FFmpeg 6.x/7.x).
// Verified with offsetof() on FFmpeg 7.1.1.
const (
	offsetCodecParType       = 0   // enum AVMediaType codec_type
	offsetCodecParCodecID    = 4   // enum AVCodecID codec_id
	offsetCodecParFormat     = 28  // int format
	offsetCodecParWidth      = 56  // int width
	offsetCodecParHeight     = 60  // int height
	offsetCodecParSampleRate = 116 // int sample_rate
	offsetCodecParChannels   = 148 // ch_layout.nb_channels
)

// CodecParType returns the media type of the codec parameters.
func CodecParType(par avcodec.Parameters) avutil.MediaType {
	if par == nil {
		return avutil.MediaTypeUnknown
	}
	return avutil.MediaType(*(*int32)(unsafe.Pointer(uintptr(par) + offsetCodecParType)))
}

// CodecParCodecID returns the codec ID of the codec parameters.
func CodecParCodecID(par avcodec.Parameters) avcodec.CodecID {
	if par == nil {
		return avcodec.CodecIDNone
	}
	return avcodec.CodecID(*(*int32)(unsafe.Pointer(uintptr(par) + offsetCodecParCodecID)))
}

// CodecParFormat returns the pixel format (video) or sample format (audio).
func CodecParFormat(par avcodec.Parameters) int32 {
	if par == nil {
		return -1
	}
	return *(*int32)(unsafe.Pointer(uintptr(par) + offsetCodecParFormat))
}

// CodecParWidth returns the video width.
func CodecParWidth(par avcodec.Parameters) int32 {
	if par == nil {
		return 0
	}
	return *(*int32)(unsafe.Pointer(uintptr(par) + offsetCodecParWidth))
}

// CodecParHeight returns the video height.
func CodecParHeight(par avcodec.Parameters) int32 {
	if par == nil {
		return 0
	}
	return *(*int32)(unsafe.Pointer(uintptr(par) + offsetCodecParHeight))
}

// CodecParSampleRate returns the audio sample rate.
func CodecParSampleRate(par avcodec.Parameters) int32 {
	if par == nil {
		return 0
	}
	return *(*int32)(unsafe.Pointer(uintptr(par) + offsetCodecParSampleRate))
}

// CodecParChannels returns the audio channel count.
func CodecParChannels(par avcodec.Parameters) int32 {
	if par == nil {
		return 0
	}
	return *(*int32)(unsafe.Pointer(uintptr(par) + offsetCodecParChannels))
}
