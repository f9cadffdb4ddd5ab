//go:build !ios && !android && (amd64 || arm64)

package recgo

import (
	"fmt"
	"strings"
	"sync"

	"github.com/obinnaokechukwu/recgo/avcodec"
	"github.com/obinnaokechukwu/recgo/avformat"
	"github.com/obinnaokechukwu/recgo/internal/bindings"
)

// muxerState tracks the muxer's lifecycle.
type muxerState int

const (
	muxerBuilt muxerState = iota
	muxerStreamsAdded
	muxerHeaderWritten
	muxerClosed
)

func (s muxerState) String() string {
	switch s {
	case muxerBuilt:
		return "built"
	case muxerStreamsAdded:
		return "streams-added"
	case muxerHeaderWritten:
		return "header-written"
	default:
		return "closed"
	}
}

// Muxer owns the output format context and interleaves packets from both
// media kinds into one container file.
//
// Lifecycle: streams are added while Built, OpenFile writes the header,
// WritePacket is only valid afterwards, and CloseFile writes the trailer
// exactly once — after the pipeline's Flush, never before, or late packets
// would be rejected.
type Muxer struct {
	// mu serialises WritePacket: the underlying interleaver is not
	// reentrant. It also guards the state transitions.
	mu sync.Mutex

	formatCtx avformat.FormatContext
	ioCtx     avformat.IOContext
	path      string
	state     muxerState

	videoStream avformat.Stream
	audioStream avformat.Stream

	// Encoder time bases per kind; WritePacket rescales from these into the
	// output stream time bases.
	videoEncTimeBase Rational
	audioEncTimeBase Rational

	freed bool
}

// NewMuxer creates a muxer writing to path. The container format is derived
// from the path extension.
func NewMuxer(path string) (*Muxer, error) {
	if err := bindings.Load(); err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fmt.Errorf("%w: output path cannot be empty", ErrConfig)
	}

	format := guessFormatFromPath(path)
	if format == "" {
		return nil, fmt.Errorf("%w: cannot determine output format for %q", ErrConfig, path)
	}

	m := &Muxer{path: path}
	if err := avformat.AllocOutputContext2(&m.formatCtx, format, path); err != nil {
		return nil, fmt.Errorf("%w: allocating output context: %v", ErrConfig, err)
	}

	return m, nil
}

// GlobalHeader reports whether encoders feeding this muxer must advertise
// global headers (container formats like MP4 require it).
func (m *Muxer) GlobalHeader() bool {
	return avformat.NeedsGlobalHeader(m.formatCtx)
}

// AddVideoStream registers the video output stream, copying the opened
// encoder's parameters onto it. Only valid before OpenFile.
func (m *Muxer) AddVideoStream(encCtx avcodec.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireSetupLocked(); err != nil {
		return err
	}
	if m.videoStream != nil {
		return fmt.Errorf("%w: video stream already added", ErrState)
	}

	stream, err := m.addStreamLocked(encCtx)
	if err != nil {
		return err
	}
	m.videoStream = stream
	m.videoEncTimeBase = avcodec.CtxTimeBase(encCtx)
	return nil
}

// AddAudioStream registers the audio output stream, copying the opened
// encoder's parameters onto it. Only valid before OpenFile.
func (m *Muxer) AddAudioStream(encCtx avcodec.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireSetupLocked(); err != nil {
		return err
	}
	if m.audioStream != nil {
		return fmt.Errorf("%w: audio stream already added", ErrState)
	}

	stream, err := m.addStreamLocked(encCtx)
	if err != nil {
		return err
	}
	m.audioStream = stream
	m.audioEncTimeBase = avcodec.CtxTimeBase(encCtx)
	return nil
}

func (m *Muxer) requireSetupLocked() error {
	if m.state != muxerBuilt && m.state != muxerStreamsAdded {
		return fmt.Errorf("%w: cannot add streams in state %s", ErrState, m.state)
	}
	return nil
}

func (m *Muxer) addStreamLocked(encCtx avcodec.Context) (avformat.Stream, error) {
	stream := avformat.NewStream(m.formatCtx, nil)
	if stream == nil {
		return nil, ErrOutOfMemory
	}

	if err := avcodec.ParametersFromContext(avformat.StreamCodecPar(stream), encCtx); err != nil {
		return nil, fmt.Errorf("%w: copying encoder params to stream: %v", ErrConfig, err)
	}

	tb := avcodec.CtxTimeBase(encCtx)
	avformat.SetStreamTimeBase(stream, tb.Num, tb.Den)

	m.state = muxerStreamsAdded
	return stream, nil
}

// OpenFile creates the I/O sink if the container requires one and writes the
// container header.
func (m *Muxer) OpenFile() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != muxerStreamsAdded {
		return fmt.Errorf("%w: cannot open file in state %s", ErrState, m.state)
	}

	if !avformat.HasNoFile(m.formatCtx) {
		if err := avformat.IOOpen(&m.ioCtx, m.path, avformat.IOFlagWrite); err != nil {
			return fmt.Errorf("%w: creating %q: %v", ErrIO, m.path, err)
		}
		avformat.SetIOContext(m.formatCtx, m.ioCtx)
	}

	if err := avformat.WriteHeader(m.formatCtx, nil); err != nil {
		return fmt.Errorf("%w: writing header: %v", ErrIO, err)
	}

	m.state = muxerHeaderWritten
	logger().Debug("muxer opened", "path", m.path)
	return nil
}

// WritePacket rescales the packet's timestamps from the encoder's time base
// into the output stream's time base, assigns the stream index and hands the
// packet to the interleaved writer. A nil packet with KindNone flushes the
// interleaver. The packet remains owned by the caller.
func (m *Muxer) WritePacket(pkt avcodec.Packet, kind MediaKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != muxerHeaderWritten {
		return fmt.Errorf("%w: cannot write packet in state %s", ErrState, m.state)
	}

	if pkt == nil {
		if err := avformat.InterleavedWriteFrame(m.formatCtx, nil); err != nil {
			return fmt.Errorf("%w: flushing interleaver: %v", ErrIO, err)
		}
		return nil
	}

	var stream avformat.Stream
	var encTb Rational
	switch kind {
	case KindVideo:
		stream, encTb = m.videoStream, m.videoEncTimeBase
	case KindAudio:
		stream, encTb = m.audioStream, m.audioEncTimeBase
	default:
		return fmt.Errorf("%w: cannot write packet of kind %s", ErrState, kind)
	}
	if stream == nil {
		return fmt.Errorf("%w: no %s stream registered", ErrState, kind)
	}

	avcodec.RescalePacketTS(pkt, encTb, avformat.StreamTimeBase(stream))
	avcodec.SetPacketStreamIndex(pkt, avformat.StreamIndex(stream))

	if err := avformat.InterleavedWriteFrame(m.formatCtx, pkt); err != nil {
		return fmt.Errorf("%w: writing %s packet: %v", ErrIO, kind, err)
	}
	return nil
}

// CloseFile writes the trailer and closes the I/O sink. It must be called
// exactly once, after the pipeline's Flush.
func (m *Muxer) CloseFile() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != muxerHeaderWritten {
		return fmt.Errorf("%w: cannot close file in state %s", ErrState, m.state)
	}

	err := avformat.WriteTrailer(m.formatCtx)
	if cerr := avformat.IOClose(&m.ioCtx); err == nil && cerr != nil {
		err = cerr
	}
	m.state = muxerClosed

	if err != nil {
		return fmt.Errorf("%w: finalizing %q: %v", ErrIO, m.path, err)
	}
	logger().Debug("muxer closed", "path", m.path)
	return nil
}

// VideoTimeBase returns the video output stream's time base.
func (m *Muxer) VideoTimeBase() Rational {
	return avformat.StreamTimeBase(m.videoStream)
}

// AudioTimeBase returns the audio output stream's time base.
func (m *Muxer) AudioTimeBase() Rational {
	return avformat.StreamTimeBase(m.audioStream)
}

// Path returns the output file path.
func (m *Muxer) Path() string {
	return m.path
}

// Free releases the format context. Safe to call after CloseFile or on a
// muxer whose file never opened; idempotent.
func (m *Muxer) Free() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.freed {
		return
	}
	m.freed = true

	if m.ioCtx != nil {
		avformat.IOClose(&m.ioCtx)
	}
	if m.formatCtx != nil {
		avformat.FreeContext(m.formatCtx)
		m.formatCtx = nil
	}
	m.state = muxerClosed
}

// guessFormatFromPath maps a filename extension to an FFmpeg muxer name.
func guessFormatFromPath(path string) string {
	ext := ""
	if idx := strings.LastIndexByte(path, '.'); idx >= 0 {
		ext = strings.ToLower(path[idx+1:])
	}

	switch ext {
	case "mp4", "m4v":
		return "mp4"
	case "mkv":
		return "matroska"
	case "webm":
		return "webm"
	case "avi":
		return "avi"
	case "mov":
		return "mov"
	case "ts", "m2ts":
		return "mpegts"
	case "flv":
		return "flv"
	default:
		return ""
	}
}
