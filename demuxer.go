//go:build !ios && !android && (amd64 || arm64)

package recgo

import (
	"fmt"
	"sync"

	"github.com/obinnaokechukwu/recgo/avcodec"
	"github.com/obinnaokechukwu/recgo/avdevice"
	"github.com/obinnaokechukwu/recgo/avformat"
	"github.com/obinnaokechukwu/recgo/avutil"
	"github.com/obinnaokechukwu/recgo/internal/bindings"
)

// PacketSource is a source of classified compressed packets. A Demuxer is one;
// DualSource composes two so that platforms needing separate video and audio
// capture devices look the same to the pipeline.
type PacketSource interface {
	// ReadPacket returns the next packet and its kind. It returns
	// (nil, KindNone, nil) when no packet is available right now (EAGAIN) and
	// an ErrIO-classed error on any other read failure. Ownership of a
	// returned packet transfers to the caller, which must free it.
	ReadPacket() (avcodec.Packet, MediaKind, error)

	// VideoParams returns the descriptor of the source's video stream, or an
	// ErrConfig-classed error if there is none.
	VideoParams() (*StreamParams, error)

	// AudioParams returns the descriptor of the source's audio stream, or an
	// ErrConfig-classed error if there is none.
	AudioParams() (*StreamParams, error)

	Close() error
}

// Demuxer reads compressed packets from a capture device (or, with an empty
// format name, a regular media file) and classifies them by media kind.
type Demuxer struct {
	mu sync.Mutex

	formatCtx avformat.FormatContext
	url       string

	videoStreamIdx int
	audioStreamIdx int
	videoParams    *StreamParams
	audioParams    *StreamParams

	closed bool
}

// NewDemuxer opens the named device under the given input format, applying
// the options map (video_size, framerate, show_region, capture_cursor, ...).
// An empty formatName opens url as an ordinary input with format probing.
func NewDemuxer(formatName, url string, options map[string]string) (*Demuxer, error) {
	if err := bindings.Load(); err != nil {
		return nil, err
	}
	if err := avdevice.RegisterAll(); err != nil {
		return nil, fmt.Errorf("%w: registering device formats: %v", ErrConfig, err)
	}

	var inputFmt avformat.InputFormat
	if formatName != "" {
		inputFmt = avformat.FindInputFormat(formatName)
		if inputFmt == nil {
			return nil, fmt.Errorf("%w: input format %q not found", ErrConfig, formatName)
		}
	}

	dict, err := avutil.DictFromMap(options)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	d := &Demuxer{
		url:            url,
		videoStreamIdx: -1,
		audioStreamIdx: -1,
	}

	if err := avformat.OpenInput(&d.formatCtx, url, inputFmt, &dict); err != nil {
		avutil.DictFree(&dict)
		return nil, fmt.Errorf("%w: opening %q: %v", ErrConfig, url, err)
	}
	// FFmpeg consumes recognized options; drop whatever is left.
	avutil.DictFree(&dict)

	if err := avformat.FindStreamInfo(d.formatCtx, nil); err != nil {
		avformat.CloseInput(&d.formatCtx)
		return nil, fmt.Errorf("%w: probing %q: %v", ErrConfig, url, err)
	}

	if idx := avformat.FindBestStream(d.formatCtx, avutil.MediaTypeVideo); idx >= 0 {
		d.videoStreamIdx = int(idx)
		d.videoParams = newStreamParams(avformat.GetStream(d.formatCtx, d.videoStreamIdx))
	}
	if idx := avformat.FindBestStream(d.formatCtx, avutil.MediaTypeAudio); idx >= 0 {
		d.audioStreamIdx = int(idx)
		d.audioParams = newStreamParams(avformat.GetStream(d.formatCtx, d.audioStreamIdx))
	}

	logger().Debug("demuxer opened",
		"url", url, "format", formatName,
		"video_stream", d.videoStreamIdx, "audio_stream", d.audioStreamIdx)

	return d, nil
}

// ReadPacket reads the next packet from the device. See PacketSource.
func (d *Demuxer) ReadPacket() (avcodec.Packet, MediaKind, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, KindNone, fmt.Errorf("%w: demuxer is closed", ErrState)
	}

	pkt := avcodec.PacketAlloc()
	if pkt == nil {
		return nil, KindNone, ErrOutOfMemory
	}

	if err := avformat.ReadFrame(d.formatCtx, pkt); err != nil {
		avcodec.PacketFree(&pkt)
		if avutil.IsAgain(err) {
			return nil, KindNone, nil
		}
		return nil, KindNone, fmt.Errorf("%w: reading %q: %w", ErrIO, d.url, err)
	}

	switch int(avcodec.PacketStreamIndex(pkt)) {
	case d.videoStreamIdx:
		return pkt, KindVideo, nil
	case d.audioStreamIdx:
		return pkt, KindAudio, nil
	default:
		// A stream the pipeline has no chain for; drop it.
		avcodec.PacketFree(&pkt)
		return nil, KindNone, nil
	}
}

// VideoParams returns the descriptor of the video stream that
// av_find_best_stream selected when the demuxer opened. With several video
// streams this is libavformat's preferred one, which is not necessarily the
// first.
func (d *Demuxer) VideoParams() (*StreamParams, error) {
	if d.videoParams == nil {
		return nil, fmt.Errorf("%w: %q has no video stream", ErrConfig, d.url)
	}
	return d.videoParams, nil
}

// AudioParams returns the descriptor of the audio stream that
// av_find_best_stream selected when the demuxer opened. With several audio
// streams this is libavformat's preferred one, which is not necessarily the
// first.
func (d *Demuxer) AudioParams() (*StreamParams, error) {
	if d.audioParams == nil {
		return nil, fmt.Errorf("%w: %q has no audio stream", ErrConfig, d.url)
	}
	return d.audioParams, nil
}

// Close releases the input.
func (d *Demuxer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	if d.formatCtx != nil {
		avformat.CloseInput(&d.formatCtx)
	}
	return nil
}

// DualSource composes a video-only and an audio-only demuxer behind one
// PacketSource, for platforms whose capture devices deliver a single media
// kind each. Reads alternate between the two so neither chain starves; each
// demuxer advances its own clock.
type DualSource struct {
	video *Demuxer
	audio *Demuxer

	mu        sync.Mutex
	readAudio bool
}

// NewDualSource combines a video demuxer and an audio demuxer.
func NewDualSource(video, audio *Demuxer) *DualSource {
	return &DualSource{video: video, audio: audio}
}

// ReadPacket reads one packet from the demuxer whose turn it is.
// An empty read (EAGAIN) from one side falls through to the other so a silent
// audio device cannot stall video capture.
func (s *DualSource) ReadPacket() (avcodec.Packet, MediaKind, error) {
	s.mu.Lock()
	first := s.video
	second := s.audio
	if s.readAudio {
		first, second = second, first
	}
	s.readAudio = !s.readAudio
	s.mu.Unlock()

	pkt, kind, err := first.ReadPacket()
	if err != nil || pkt != nil {
		return pkt, kind, err
	}
	return second.ReadPacket()
}

// VideoParams returns the video demuxer's stream descriptor.
func (s *DualSource) VideoParams() (*StreamParams, error) {
	return s.video.VideoParams()
}

// AudioParams returns the audio demuxer's stream descriptor.
func (s *DualSource) AudioParams() (*StreamParams, error) {
	return s.audio.AudioParams()
}

// Close closes both demuxers.
func (s *DualSource) Close() error {
	err := s.video.Close()
	if aerr := s.audio.Close(); err == nil {
		err = aerr
	}
	return err
}
