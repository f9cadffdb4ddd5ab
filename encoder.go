//go:build !ios && !android && (amd64 || arm64)

package recgo

import (
	"fmt"
	"unsafe"

	"github.com/obinnaokechukwu/recgo/avcodec"
	"github.com/obinnaokechukwu/recgo/avutil"
)

// VideoEncoderConfig configures the output video codec.
type VideoEncoderConfig struct {
	// Codec specifies the video codec (default: CodecIDH264).
	Codec CodecID

	// Width and Height are the encoded frame size in pixels.
	Width  int
	Height int

	// PixelFormat is the encoded pixel format (default: PixelFormatYUV420P).
	PixelFormat PixelFormat

	// FrameRate is the nominal frame rate in fps (default: 30). It also
	// fixes the encoder time base to 1/FrameRate.
	FrameRate int

	// BitRate is the target bit rate in bits/second (default: 2000000).
	BitRate int64

	// GOPSize is the keyframe interval (default: 12).
	GOPSize int

	// Options are codec-private options applied before the codec opens,
	// e.g. {"preset": "ultrafast"} for real-time capture.
	Options map[string]string
}

// AudioEncoderConfig configures the output audio codec.
type AudioEncoderConfig struct {
	// Codec specifies the audio codec (default: CodecIDAAC).
	Codec CodecID

	// SampleRate in Hz (default: 48000).
	SampleRate int

	// Channels is the number of audio channels (default: 2).
	Channels int

	// BitRate is the target bit rate in bits/second (default: 96000).
	BitRate int64

	// Options are codec-private options applied before the codec opens.
	Options map[string]string
}

// Encoder compresses converted frames into packets. SendFrame and
// ReceivePacket mirror the decoder's producer/consumer protocol; packets
// carry PTS/DTS in the encoder's time base.
type Encoder struct {
	codecCtx  avcodec.Context
	kind      MediaKind
	timeBase  Rational
	frameSize int
	draining  bool
	closed    bool
}

// NewVideoEncoder builds and opens the output video codec. globalHeader must
// be true when the muxer's container wants codec extradata in its header.
func NewVideoEncoder(cfg VideoEncoderConfig, globalHeader bool) (*Encoder, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: video encoder needs positive dimensions", ErrConfig)
	}
	if cfg.Codec == CodecIDNone {
		cfg.Codec = CodecIDH264
	}
	if cfg.PixelFormat == PixelFormatNone {
		cfg.PixelFormat = PixelFormatYUV420P
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = 30
	}
	if cfg.BitRate <= 0 {
		cfg.BitRate = 2000000
	}
	if cfg.GOPSize <= 0 {
		cfg.GOPSize = 12
	}

	codec := avcodec.FindEncoder(cfg.Codec)
	if codec == nil {
		return nil, fmt.Errorf("%w: no encoder for codec id %d", ErrConfig, cfg.Codec)
	}

	ctx := avcodec.AllocContext3(codec)
	if ctx == nil {
		return nil, ErrOutOfMemory
	}

	avcodec.SetCtxWidth(ctx, int32(cfg.Width))
	avcodec.SetCtxHeight(ctx, int32(cfg.Height))
	avcodec.SetCtxPixFmt(ctx, cfg.PixelFormat)
	avcodec.SetCtxTimeBase(ctx, 1, int32(cfg.FrameRate))
	avcodec.SetCtxFramerate(ctx, int32(cfg.FrameRate), 1)
	avcodec.SetCtxBitRate(ctx, cfg.BitRate)
	avcodec.SetCtxGopSize(ctx, int32(cfg.GOPSize))

	e := &Encoder{
		codecCtx: ctx,
		kind:     KindVideo,
		timeBase: avutil.NewRational(1, int32(cfg.FrameRate)),
	}
	if err := e.open(codec, cfg.Options, globalHeader); err != nil {
		avcodec.FreeContext(&e.codecCtx)
		return nil, err
	}
	return e, nil
}

// NewAudioEncoder builds and opens the output audio codec.
func NewAudioEncoder(cfg AudioEncoderConfig, globalHeader bool) (*Encoder, error) {
	if cfg.Codec == CodecIDNone {
		cfg.Codec = CodecIDAAC
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 48000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 2
	}
	if cfg.BitRate <= 0 {
		cfg.BitRate = 96000
	}

	codec := avcodec.FindEncoder(cfg.Codec)
	if codec == nil {
		return nil, fmt.Errorf("%w: no encoder for codec id %d", ErrConfig, cfg.Codec)
	}

	ctx := avcodec.AllocContext3(codec)
	if ctx == nil {
		return nil, ErrOutOfMemory
	}

	avcodec.SetCtxSampleRate(ctx, int32(cfg.SampleRate))
	avcodec.SetCtxChannelLayout(ctx, int32(cfg.Channels))
	avcodec.SetCtxSampleFmt(ctx, avutil.SampleFormatFltP) // AAC wants planar float
	avcodec.SetCtxBitRate(ctx, cfg.BitRate)
	avcodec.SetCtxTimeBase(ctx, 1, int32(cfg.SampleRate))

	e := &Encoder{
		codecCtx: ctx,
		kind:     KindAudio,
		timeBase: avutil.NewRational(1, int32(cfg.SampleRate)),
	}
	if err := e.open(codec, cfg.Options, globalHeader); err != nil {
		avcodec.FreeContext(&e.codecCtx)
		return nil, err
	}

	e.frameSize = avcodec.CtxFrameSize(e.codecCtx)
	if e.frameSize <= 0 {
		avcodec.FreeContext(&e.codecCtx)
		return nil, fmt.Errorf("%w: audio encoder reports no frame size", ErrConfig)
	}
	return e, nil
}

// open applies caller options, the global-header flag, and opens the codec.
func (e *Encoder) open(codec avcodec.Codec, options map[string]string, globalHeader bool) error {
	for key, value := range options {
		if err := avutil.OptSet(unsafe.Pointer(e.codecCtx), key, value, avutil.OptSearchChildren); err != nil {
			return fmt.Errorf("%w: %s encoder option %q=%q: %v", ErrConfig, e.kind, key, value, err)
		}
	}

	if globalHeader {
		avcodec.SetCtxFlags(e.codecCtx, avcodec.CtxFlags(e.codecCtx)|avcodec.FlagGlobalHeader)
	}

	if err := avcodec.Open2(e.codecCtx, codec, nil); err != nil {
		return fmt.Errorf("%w: opening %s encoder: %v", ErrConfig, e.kind, err)
	}
	return nil
}

// SendFrame pushes a converted frame into the encoder. A nil frame starts the
// drain; a second drain is a protocol error.
func (e *Encoder) SendFrame(frame avutil.Frame) (SendStatus, error) {
	if e.closed {
		return StatusAccepted, fmt.Errorf("%w: encoder is closed", ErrState)
	}
	if frame == nil {
		if e.draining {
			return StatusAccepted, fmt.Errorf("%w: %s encoder already drained", ErrProtocol, e.kind)
		}
		e.draining = true
	}

	err := avcodec.SendFrame(e.codecCtx, frame)
	switch {
	case err == nil:
		return StatusAccepted, nil
	case avutil.IsAgain(err):
		return StatusSaturated, nil
	case avutil.IsEOF(err):
		return StatusAccepted, fmt.Errorf("%w: send after %s encoder EOF", ErrProtocol, e.kind)
	default:
		return StatusAccepted, fmt.Errorf("%s encoder: %w", e.kind, err)
	}
}

// ReceivePacket returns the next encoded packet, or ok=false when the encoder
// has nothing available right now. The returned packet is owned by the caller
// and must be freed with avcodec.PacketFree.
func (e *Encoder) ReceivePacket() (pkt avcodec.Packet, ok bool, err error) {
	if e.closed {
		return nil, false, fmt.Errorf("%w: encoder is closed", ErrState)
	}

	pkt = avcodec.PacketAlloc()
	if pkt == nil {
		return nil, false, ErrOutOfMemory
	}

	rerr := avcodec.ReceivePacket(e.codecCtx, pkt)
	if rerr != nil {
		avcodec.PacketFree(&pkt)
		if avutil.IsAgain(rerr) || avutil.IsEOF(rerr) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%s encoder: %w", e.kind, rerr)
	}

	return pkt, true, nil
}

// CodecContext exposes the opened codec context. The muxer copies its
// parameters onto the output stream; converters read the target formats.
func (e *Encoder) CodecContext() avcodec.Context {
	return e.codecCtx
}

// TimeBase returns the encoder's time base.
func (e *Encoder) TimeBase() Rational {
	return e.timeBase
}

// FrameSize returns the samples-per-frame an audio encoder requires.
// Zero for video encoders.
func (e *Encoder) FrameSize() int {
	return e.frameSize
}

// Close releases the codec context.
func (e *Encoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	avcodec.FreeContext(&e.codecCtx)
	return nil
}
