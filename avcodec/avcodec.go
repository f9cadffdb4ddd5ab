//go:build !ios && !android && (amd64 || arm64)

// Package avcodec provides the libavcodec bindings recgo needs: codec lookup,
// codec contexts, the send/receive protocol and packet management.
package avcodec

import (
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/obinnaokechukwu/recgo/avutil"
	"github.com/obinnaokechukwu/recgo/internal/bindings"
)

// Codec is an opaque FFmpeg AVCodec pointer.
type Codec = unsafe.Pointer

// Context is an opaque FFmpeg AVCodecContext pointer.
type Context = unsafe.Pointer

// Parameters is an opaque FFmpeg AVCodecParameters pointer.
type Parameters = unsafe.Pointer

// Packet is an opaque FFmpeg AVPacket pointer.
type Packet = unsafe.Pointer

// CodecID represents an FFmpeg codec identifier.
type CodecID int32

// Codec identifiers the recorder exercises.
const (
	CodecIDNone     CodecID = 0
	CodecIDMPEG4    CodecID = 12
	CodecIDRawVideo CodecID = 14
	CodecIDH264     CodecID = 27
	CodecIDHEVC     CodecID = 173
	CodecIDPCMS16LE CodecID = 65536
	CodecIDMP3      CodecID = 86017
	CodecIDAAC      CodecID = 86018
	CodecIDOpus     CodecID = 86076
)

// Codec flags.
const (
	FlagGlobalHeader int32 = 1 << 22 // AV_CODEC_FLAG_GLOBAL_HEADER
)

var (
	avcodecFindDecoder func(id int32) uintptr
	avcodecFindEncoder func(id int32) uintptr

	avcodecAllocContext3 func(codec uintptr) uintptr
	avcodecFreeContext   func(ctx *unsafe.Pointer)
	avcodecOpen2         func(ctx, codec uintptr, options *unsafe.Pointer) int32

	avcodecSendPacket    func(ctx, pkt uintptr) int32
	avcodecReceiveFrame  func(ctx, frame uintptr) int32
	avcodecSendFrame     func(ctx, frame uintptr) int32
	avcodecReceivePacket func(ctx, pkt uintptr) int32

	avcodecParametersToCtx   func(ctx, par uintptr) int32
	avcodecParametersFromCtx func(par, ctx uintptr) int32

	avPacketAlloc func() uintptr
	avPacketFree  func(pkt *unsafe.Pointer)
	avPacketUnref func(pkt uintptr)

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

	lib := bindings.LibAVCodec()
	if lib == 0 {
		return
	}

	purego.RegisterLibFunc(&avcodecFindDecoder, lib, "avcodec_find_decoder")
	purego.RegisterLibFunc(&avcodecFindEncoder, lib, "avcodec_find_encoder")
	purego.RegisterLibFunc(&avcodecAllocContext3, lib, "avcodec_alloc_context3")
	purego.RegisterLibFunc(&avcodecFreeContext, lib, "avcodec_free_context")
	purego.RegisterLibFunc(&avcodecOpen2, lib, "avcodec_open2")

	purego.RegisterLibFunc(&avcodecSendPacket, lib, "avcodec_send_packet")
	purego.RegisterLibFunc(&avcodecReceiveFrame, lib, "avcodec_receive_frame")
	purego.RegisterLibFunc(&avcodecSendFrame, lib, "avcodec_send_frame")
	purego.RegisterLibFunc(&avcodecReceivePacket, lib, "avcodec_receive_packet")

	purego.RegisterLibFunc(&avcodecParametersToCtx, lib, "avcodec_parameters_to_context")
	purego.RegisterLibFunc(&avcodecParametersFromCtx, lib, "avcodec_parameters_from_context")

	purego.RegisterLibFunc(&avPacketAlloc, lib, "av_packet_alloc")
	purego.RegisterLibFunc(&avPacketFree, lib, "av_packet_free")
	purego.RegisterLibFunc(&avPacketUnref, lib, "av_packet_unref")

	bindingsRegistered = true
}

// FindDecoder finds a decoder for the given codec ID.
func FindDecoder(id CodecID) Codec {
	if avcodecFindDecoder == nil {
		return nil
	}
	return unsafe.Pointer(avcodecFindDecoder(int32(id)))
}

// FindEncoder finds an encoder for the given codec ID.
func FindEncoder(id CodecID) Codec {
	if avcodecFindEncoder == nil {
		return nil
	}
	return unsafe.Pointer(avcodecFindEncoder(int32(id)))
}

// AllocContext3 allocates a codec context with default values for the codec.
func AllocContext3(codec Codec) Context {
	if avcodecAllocContext3 == nil {
		return nil
	}
	return unsafe.Pointer(avcodecAllocContext3(uintptr(codec)))
}

// FreeContext frees a codec context and sets the pointer to nil.
func FreeContext(ctx *Context) {
	if ctx == nil || *ctx == nil || avcodecFreeContext == nil {
		return
	}
	avcodecFreeContext(ctx)
	*ctx = nil
}

// Open2 initializes the codec context to use the given codec.
func Open2(ctx Context, codec Codec, options *avutil.Dictionary) error {
	if avcodecOpen2 == nil {
		return bindings.ErrNotLoaded
	}
	ret := avcodecOpen2(uintptr(ctx), uintptr(codec), options)
	if ret < 0 {
		return avutil.NewError(ret, "avcodec_open2")
	}
	return nil
}

// SendPacket supplies a packet to the decoder. A nil packet enters drain mode.
// Returns an avutil.Error for EAGAIN/EOF; use avutil.IsAgain / avutil.IsEOF.
func SendPacket(ctx Context, pkt Packet) error {
	if avcodecSendPacket == nil {
		return bindings.ErrNotLoaded
	}
	ret := avcodecSendPacket(uintptr(ctx), uintptr(pkt))
	if ret < 0 {
		return avutil.NewError(ret, "avcodec_send_packet")
	}
	return nil
}

// ReceiveFrame retrieves a decoded frame from the decoder.
func ReceiveFrame(ctx Context, frame avutil.Frame) error {
	if avcodecReceiveFrame == nil {
		return bindings.ErrNotLoaded
	}
	ret := avcodecReceiveFrame(uintptr(ctx), uintptr(frame))
	if ret < 0 {
		return avutil.NewError(ret, "avcodec_receive_frame")
	}
	return nil
}

// SendFrame supplies a frame to the encoder. A nil frame enters drain mode.
func SendFrame(ctx Context, frame avutil.Frame) error {
	if avcodecSendFrame == nil {
		return bindings.ErrNotLoaded
	}
	ret := avcodecSendFrame(uintptr(ctx), uintptr(frame))
	if ret < 0 {
		return avutil.NewError(ret, "avcodec_send_frame")
	}
	return nil
}

// ReceivePacket retrieves an encoded packet from the encoder.
func ReceivePacket(ctx Context, pkt Packet) error {
	if avcodecReceivePacket == nil {
		return bindings.ErrNotLoaded
	}
	ret := avcodecReceivePacket(uintptr(ctx), uintptr(pkt))
	if ret < 0 {
		return avutil.NewError(ret, "avcodec_receive_packet")
	}
	return nil
}

// ParametersToContext fills the codec context from stream parameters.
func ParametersToContext(ctx Context, par Parameters) error {
	if avcodecParametersToCtx == nil {
		return bindings.ErrNotLoaded
	}
	ret := avcodecParametersToCtx(uintptr(ctx), uintptr(par))
	if ret < 0 {
		return avutil.NewError(ret, "avcodec_parameters_to_context")
	}
	return nil
}

// ParametersFromContext fills stream parameters from an opened codec context.
func ParametersFromContext(par Parameters, ctx Context) error {
	if avcodecParametersFromCtx == nil {
		return bindings.ErrNotLoaded
	}
	ret := avcodecParametersFromCtx(uintptr(par), uintptr(ctx))
	if ret < 0 {
		return avutil.NewError(ret, "avcodec_parameters_from_context")
	}
	return nil
}

// PacketAlloc allocates a packet. Free it with PacketFree.
func PacketAlloc() Packet {
	if avPacketAlloc == nil {
		return nil
	}
	return unsafe.Pointer(avPacketAlloc())
}

// PacketFree frees a packet and sets the pointer to nil.
func PacketFree(pkt *Packet) {
	if pkt == nil || *pkt == nil || avPacketFree == nil {
		return
	}
	avPacketFree(pkt)
	*pkt = nil
}

// PacketUnref unreferences the packet's data.
func PacketUnref(pkt Packet) {
	if pkt == nil || avPacketUnref == nil {
		return
	}
	avPacketUnref(uintptr(pkt))
}

// AVPacket struct field offsets (for FFmpeg 6.x/7.x).
const (
	offsetPacketPts         = 8  // int64 pts
	offsetPacketDts         = 16 // int64 dts
	offsetPacketSize        = 32 // int size
	offsetPacketStreamIndex = 36 // int stream_index
	offsetPacketDuration    = 64 // int64 duration
)

// PacketPTS returns the presentation timestamp.
func PacketPTS(pkt Packet) int64 {
	if pkt == nil {
		return avutil.NoPTSValue
	}
	return *(*int64)(unsafe.Pointer(uintptr(pkt) + offsetPacketPts))
}

// SetPacketPTS sets the presentation timestamp.
func SetPacketPTS(pkt Packet, pts int64) {
	if pkt == nil {
		return
	}
	*(*int64)(unsafe.Pointer(uintptr(pkt) + offsetPacketPts)) = pts
}

// PacketDTS returns the decompression timestamp.
func PacketDTS(pkt Packet) int64 {
	if pkt == nil {
		return avutil.NoPTSValue
	}
	return *(*int64)(unsafe.Pointer(uintptr(pkt) + offsetPacketDts))
}

// SetPacketDTS sets the decompression timestamp.
func SetPacketDTS(pkt Packet, dts int64) {
	if pkt == nil {
		return
	}
	*(*int64)(unsafe.Pointer(uintptr(pkt) + offsetPacketDts)) = dts
}

// PacketSize returns the packet data size.
func PacketSize(pkt Packet) int32 {
	if pkt == nil {
		return 0
	}
	return *(*int32)(unsafe.Pointer(uintptr(pkt) + offsetPacketSize))
}

// PacketStreamIndex returns the stream index.
func PacketStreamIndex(pkt Packet) int32 {
	if pkt == nil {
		return -1
	}
	return *(*int32)(unsafe.Pointer(uintptr(pkt) + offsetPacketStreamIndex))
}

// SetPacketStreamIndex sets the stream index.
func SetPacketStreamIndex(pkt Packet, idx int32) {
	if pkt == nil {
		return
	}
	*(*int32)(unsafe.Pointer(uintptr(pkt) + offsetPacketStreamIndex)) = idx
}

// PacketDuration returns the packet duration in stream time_base units.
func PacketDuration(pkt Packet) int64 {
	if pkt == nil {
		return 0
	}
	return *(*int64)(unsafe.Pointer(uintptr(pkt) + offsetPacketDuration))
}

// SetPacketDuration sets the packet duration in stream time_base units.
func SetPacketDuration(pkt Packet, dur int64) {
	if pkt == nil {
		return
	}
	*(*int64)(unsafe.Pointer(uintptr(pkt) + offsetPacketDuration)) = dur
}

// RescalePacketTS rescales the packet's pts, dts and duration from one time
// base to another, skipping invalid values, like av_packet_rescale_ts.
func RescalePacketTS(pkt Packet, srcTb, dstTb avutil.Rational) {
	if pkt == nil {
		return
	}

	if pts := PacketPTS(pkt); pts != avutil.NoPTSValue {
		SetPacketPTS(pkt, avutil.RescaleQ(pts, srcTb, dstTb))
	}
	if dts := PacketDTS(pkt); dts != avutil.NoPTSValue {
		SetPacketDTS(pkt, avutil.RescaleQ(dts, srcTb, dstTb))
	}
	if dur := PacketDuration(pkt); dur > 0 {
		SetPacketDuration(pkt, avutil.RescaleQ(dur, srcTb, dstTb))
	}
}

// AVCodecContext struct field offsets (for FFmpeg 6.x / avcodec 60.x).
// Verified with offsetof() - these vary between FFmpeg major versions.
const (
	offsetCtxBitRate    = 56  // int64_t bit_rate
	offsetCtxFlags      = 76  // int flags
	offsetCtxTimeBase   = 100 // AVRational time_base
	offsetCtxWidth      = 116 // int width
	offsetCtxHeight     = 120 // int height
	offsetCtxGopSize    = 132 // int gop_size
	offsetCtxPixFmt     = 136 // enum AVPixelFormat pix_fmt
	offsetCtxSampleRate = 352 // int sample_rate
	offsetCtxSampleFmt  = 360 // enum AVSampleFormat sample_fmt
	offsetCtxFrameSize  = 364 // int frame_size
	offsetCtxFramerate  = 704 // AVRational framerate
	offsetCtxChLayout   = 912 // AVChannelLayout ch_layout (FFmpeg 5.1+)
)

// CtxWidth returns the width from the codec context.
func CtxWidth(ctx Context) int32 {
	if ctx == nil {
		return 0
	}
	return *(*int32)(unsafe.Pointer(uintptr(ctx) + offsetCtxWidth))
}

// SetCtxWidth sets the width in the codec context.
func SetCtxWidth(ctx Context, width int32) {
	if ctx == nil {
		return
	}
	*(*int32)(unsafe.Pointer(uintptr(ctx) + offsetCtxWidth)) = width
}

// CtxHeight returns the height from the codec context.
func CtxHeight(ctx Context) int32 {
	if ctx == nil {
		return 0
	}
	return *(*int32)(unsafe.Pointer(uintptr(ctx) + offsetCtxHeight))
}

// SetCtxHeight sets the height in the codec context.
func SetCtxHeight(ctx Context, height int32) {
	if ctx == nil {
		return
	}
	*(*int32)(unsafe.Pointer(uintptr(ctx) + offsetCtxHeight)) = height
}

// CtxPixFmt returns the pixel format from the codec context.
func CtxPixFmt(ctx Context) avutil.PixelFormat {
	if ctx == nil {
		return avutil.PixelFormatNone
	}
	return avutil.PixelFormat(*(*int32)(unsafe.Pointer(uintptr(ctx) + offsetCtxPixFmt)))
}

// SetCtxPixFmt sets the pixel format in the codec context.
func SetCtxPixFmt(ctx Context, fmt avutil.PixelFormat) {
	if ctx == nil {
		return
	}
	*(*int32)(unsafe.Pointer(uintptr(ctx) + offsetCtxPixFmt)) = int32(fmt)
}

// CtxTimeBase returns the time base from the codec context.
func CtxTimeBase(ctx Context) avutil.Rational {
	if ctx == nil {
		return avutil.Rational{}
	}
	num := *(*int32)(unsafe.Pointer(uintptr(ctx) + offsetCtxTimeBase))
	den := *(*int32)(unsafe.Pointer(uintptr(ctx) + offsetCtxTimeBase + 4))
	return avutil.NewRational(num, den)
}

// SetCtxTimeBase sets the time base in the codec context.
func SetCtxTimeBase(ctx Context, num, den int32) {
	if ctx == nil {
		return
	}
	*(*int32)(unsafe.Pointer(uintptr(ctx) + offsetCtxTimeBase)) = num
	*(*int32)(unsafe.Pointer(uintptr(ctx) + offsetCtxTimeBase + 4)) = den
}

// SetCtxFramerate sets the nominal frame rate in the codec context.
func SetCtxFramerate(ctx Context, num, den int32) {
	if ctx == nil {
		return
	}
	*(*int32)(unsafe.Pointer(uintptr(ctx) + offsetCtxFramerate)) = num
	*(*int32)(unsafe.Pointer(uintptr(ctx) + offsetCtxFramerate + 4)) = den
}

// SetCtxBitRate sets the target bit rate in the codec context.
func SetCtxBitRate(ctx Context, bitRate int64) {
	if ctx == nil {
		return
	}
	*(*int64)(unsafe.Pointer(uintptr(ctx) + offsetCtxBitRate)) = bitRate
}

// SetCtxGopSize sets the GOP size in the codec context.
func SetCtxGopSize(ctx Context, size int32) {
	if ctx == nil {
		return
	}
	*(*int32)(unsafe.Pointer(uintptr(ctx) + offsetCtxGopSize)) = size
}

// CtxFlags returns the codec context flags.
func CtxFlags(ctx Context) int32 {
	if ctx == nil {
		return 0
	}
	return *(*int32)(unsafe.Pointer(uintptr(ctx) + offsetCtxFlags))
}

// SetCtxFlags sets the codec context flags.
func SetCtxFlags(ctx Context, flags int32) {
	if ctx == nil {
		return
	}
	*(*int32)(unsafe.Pointer(uintptr(ctx) + offsetCtxFlags)) = flags
}

// CtxSampleRate returns the sample rate from the codec context.
func CtxSampleRate(ctx Context) int32 {
	if ctx == nil {
		return 0
	}
	return *(*int32)(unsafe.Pointer(uintptr(ctx) + offsetCtxSampleRate))
}

// SetCtxSampleRate sets the sample rate in the codec context.
func SetCtxSampleRate(ctx Context, sampleRate int32) {
	if ctx == nil {
		return
	}
	*(*int32)(unsafe.Pointer(uintptr(ctx) + offsetCtxSampleRate)) = sampleRate
}

// CtxSampleFmt returns the sample format from the codec context.
func CtxSampleFmt(ctx Context) avutil.SampleFormat {
	if ctx == nil {
		return avutil.SampleFormatNone
	}
	return avutil.SampleFormat(*(*int32)(unsafe.Pointer(uintptr(ctx) + offsetCtxSampleFmt)))
}

// SetCtxSampleFmt sets the sample format in the codec context.
func SetCtxSampleFmt(ctx Context, fmt avutil.SampleFormat) {
	if ctx == nil {
		return
	}
	*(*int32)(unsafe.Pointer(uintptr(ctx) + offsetCtxSampleFmt)) = int32(fmt)
}

// CtxFrameSize returns the encoder's required samples per frame
// (valid after avcodec_open2).
func CtxFrameSize(ctx Context) int {
	if ctx == nil {
		return 0
	}
	return int(*(*int32)(unsafe.Pointer(uintptr(ctx) + offsetCtxFrameSize)))
}

// CtxChLayoutPtr returns a pointer to the context's AVChannelLayout.
func CtxChLayoutPtr(ctx Context) unsafe.Pointer {
	if ctx == nil {
		return nil
	}
	return unsafe.Pointer(uintptr(ctx) + offsetCtxChLayout)
}

// CtxChannels returns the channel count (ch_layout.nb_channels).
func CtxChannels(ctx Context) int32 {
	if ctx == nil {
		return 0
	}
	return *(*int32)(unsafe.Pointer(uintptr(ctx) + offsetCtxChLayout + 4))
}

// SetCtxChannelLayout writes the default layout for nbChannels into the
// context's ch_layout (FFmpeg 5.1+ channel layout API).
func SetCtxChannelLayout(ctx Context, nbChannels int32) {
	if ctx == nil {
		return
	}
	avutil.ChannelLayoutDefault(CtxChLayoutPtr(ctx), nbChannels)
}
