//go:build !ios && !android && (amd64 || arm64)

// Package recgo records the screen (and optionally system audio) to a single
// container file, transcoding in real time through FFmpeg reached via purego.
//
// The pipeline reads compressed packets from one or two capture demuxers,
// decodes them, reshapes the raw frames to the encoders' requirements,
// re-encodes and interleaves both elementary streams into one file. Pausing
// elides the gap: the output timeline stays continuous no matter how long
// capture was suspended.
//
// For most use cases, use the high-level Recorder. The pipeline stages
// (Demuxer, Decoder, VideoConverter, AudioConverter, Encoder, Muxer,
// Pipeline) are exported for callers that assemble their own chains, and the
// low-level packages (avutil, avcodec, avformat, avdevice, avfilter, swscale,
// swresample) are available for advanced use.
package recgo

import (
	"github.com/obinnaokechukwu/recgo/avcodec"
	"github.com/obinnaokechukwu/recgo/avutil"
	"github.com/obinnaokechukwu/recgo/internal/bindings"
)

// Init loads the FFmpeg libraries. It is called automatically when the first
// component is constructed, but can be called explicitly to check for errors.
// It is safe to call multiple times.
func Init() error {
	return bindings.Load()
}

// IsLoaded returns true if the FFmpeg libraries have been successfully loaded.
func IsLoaded() bool {
	return bindings.IsLoaded()
}

// Version returns FFmpeg library versions.
func Version() (avutilVer, avcodecVer, avformatVer uint32) {
	return bindings.AVUtilVersion(), bindings.AVCodecVersion(), bindings.AVFormatVersion()
}

// MediaKind classifies packets and pipeline chains.
type MediaKind int

// Media kinds. KindNone marks packets that belong to neither chain.
const (
	KindNone MediaKind = iota
	KindAudio
	KindVideo

	numMediaKinds
)

// String returns the kind's name.
func (k MediaKind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	case KindVideo:
		return "video"
	default:
		return "none"
	}
}

// Re-export common types for convenience.
type (
	// Rational represents a rational number (fraction).
	Rational = avutil.Rational

	// PixelFormat represents video pixel formats.
	PixelFormat = avutil.PixelFormat

	// SampleFormat represents audio sample formats.
	SampleFormat = avutil.SampleFormat

	// CodecID represents codec identifiers.
	CodecID = avcodec.CodecID
)

// Re-export common constants.
const (
	PixelFormatNone    = avutil.PixelFormatNone
	PixelFormatYUV420P = avutil.PixelFormatYUV420P
	PixelFormatRGB24   = avutil.PixelFormatRGB24
	PixelFormatBGR24   = avutil.PixelFormatBGR24
	PixelFormatBGRA    = avutil.PixelFormatBGRA
	PixelFormatBGR0    = avutil.PixelFormatBGR0
	PixelFormatNV12    = avutil.PixelFormatNV12

	SampleFormatNone = avutil.SampleFormatNone
	SampleFormatS16  = avutil.SampleFormatS16
	SampleFormatFltP = avutil.SampleFormatFltP

	CodecIDNone = avcodec.CodecIDNone
	CodecIDH264 = avcodec.CodecIDH264
	CodecIDHEVC = avcodec.CodecIDHEVC
	CodecIDAAC  = avcodec.CodecIDAAC
	CodecIDOpus = avcodec.CodecIDOpus
)

// NewRational creates a new rational number.
func NewRational(num, den int32) Rational {
	return avutil.NewRational(num, den)
}
