//go:build !ios && !android && (amd64 || arm64)

package recgo

import (
	"github.com/obinnaokechukwu/recgo/avcodec"
	"github.com/obinnaokechukwu/recgo/avformat"
	"github.com/obinnaokechukwu/recgo/avutil"
)

// StreamParams is the immutable descriptor of an input stream, built once per
// stream when a demuxer opens. Decoders are constructed from it.
type StreamParams struct {
	Kind     MediaKind
	CodecID  CodecID
	TimeBase Rational

	// Video only
	Width       int
	Height      int
	PixelFormat PixelFormat
	FrameRate   Rational

	// Audio only
	SampleRate   int
	Channels     int
	SampleFormat SampleFormat

	codecPar avcodec.Parameters
}

// CodecParameters returns the native codec parameters backing the descriptor.
// They remain owned by the demuxer's format context.
func (p *StreamParams) CodecParameters() avcodec.Parameters {
	return p.codecPar
}

// newStreamParams builds a descriptor from a demuxer stream.
func newStreamParams(stream avformat.Stream) *StreamParams {
	par := avformat.StreamCodecPar(stream)
	if par == nil {
		return nil
	}

	p := &StreamParams{
		CodecID:  avformat.CodecParCodecID(par),
		TimeBase: avformat.StreamTimeBase(stream),
		codecPar: par,
	}

	switch avformat.CodecParType(par) {
	case avutil.MediaTypeVideo:
		p.Kind = KindVideo
		p.Width = int(avformat.CodecParWidth(par))
		p.Height = int(avformat.CodecParHeight(par))
		p.PixelFormat = avutil.PixelFormat(avformat.CodecParFormat(par))
		p.FrameRate = avformat.StreamAvgFrameRate(stream)
	case avutil.MediaTypeAudio:
		p.Kind = KindAudio
		p.SampleRate = int(avformat.CodecParSampleRate(par))
		p.Channels = int(avformat.CodecParChannels(par))
		p.SampleFormat = avutil.SampleFormat(avformat.CodecParFormat(par))
	}

	return p
}

// VideoParameters describes the requested output video geometry: the encoded
// size and the crop offset relative to the captured frame.
type VideoParameters struct {
	Width     int
	Height    int
	OffsetX   int
	OffsetY   int
	FrameRate int
}
