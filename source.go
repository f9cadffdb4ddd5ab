//go:build !ios && !android && (amd64 || arm64)

package recgo

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
)

// captureSetup is what the platform-specific construction hands back to the
// Recorder: the packet source, whether the pipeline should run workers, and
// the crop the video converter still has to apply (non-zero only where the
// capture device cannot grab a sub-region itself).
type captureSetup struct {
	source     PacketSource
	useWorkers bool
	video      VideoParameters
}

// newCaptureSource opens the platform's capture devices for the given
// configuration. All platform branching lives here; the pipeline only ever
// sees a PacketSource.
func newCaptureSource(cfg Config) (*captureSetup, error) {
	switch runtime.GOOS {
	case "linux":
		return newX11Source(cfg)
	case "darwin":
		return newAVFoundationSource(cfg)
	case "windows":
		return newGDIGrabSource(cfg)
	default:
		return nil, fmt.Errorf("%w: screen capture not supported on %s", ErrConfig, runtime.GOOS)
	}
}

// newX11Source captures via x11grab, which grabs the requested region
// directly (device name ":display+x,y" plus video_size), so the converter
// applies no crop. Audio comes from a second demuxer (pulse), each advancing
// its own clock.
func newX11Source(cfg Config) (*captureSetup, error) {
	display := cfg.VideoDevice
	if display == "" {
		display = os.Getenv("DISPLAY")
	}
	if display == "" {
		display = ":0.0"
	}

	device := display
	options := map[string]string{
		"framerate":   strconv.Itoa(cfg.FrameRate),
		"show_region": "1",
	}
	if cfg.Width > 0 && cfg.Height > 0 {
		device = fmt.Sprintf("%s+%d,%d", display, cfg.OffsetX, cfg.OffsetY)
		options["video_size"] = fmt.Sprintf("%dx%d", cfg.Width, cfg.Height)
	}

	video, err := NewDemuxer("x11grab", device, options)
	if err != nil {
		return nil, err
	}

	setup := &captureSetup{
		source:     video,
		useWorkers: cfg.CaptureAudio,
		video: VideoParameters{
			Width:     cfg.Width,
			Height:    cfg.Height,
			FrameRate: cfg.FrameRate,
		},
	}

	if cfg.CaptureAudio {
		audioDevice := cfg.AudioDevice
		if audioDevice == "" {
			audioDevice = "default"
		}
		audio, err := NewDemuxer("pulse", audioDevice, nil)
		if err != nil {
			video.Close()
			return nil, err
		}
		setup.source = NewDualSource(video, audio)
	}

	return setup, nil
}

// newAVFoundationSource captures via avfoundation, which can deliver both
// media kinds from one demuxer ("video:audio" device indices). The device
// grabs the whole screen; region selection happens in the video converter's
// crop graph.
func newAVFoundationSource(cfg Config) (*captureSetup, error) {
	videoDevice := cfg.VideoDevice
	if videoDevice == "" {
		videoDevice = "1" // first capture screen on a default setup
	}
	device := videoDevice + ":"
	if cfg.CaptureAudio {
		audioDevice := cfg.AudioDevice
		if audioDevice == "" {
			audioDevice = "0"
		}
		device = videoDevice + ":" + audioDevice
	}

	options := map[string]string{
		"framerate":      strconv.Itoa(cfg.FrameRate),
		"capture_cursor": "1",
	}

	demux, err := NewDemuxer("avfoundation", device, options)
	if err != nil {
		return nil, err
	}

	return &captureSetup{
		source:     demux,
		useWorkers: cfg.CaptureAudio,
		video: VideoParameters{
			Width:     cfg.Width,
			Height:    cfg.Height,
			OffsetX:   cfg.OffsetX,
			OffsetY:   cfg.OffsetY,
			FrameRate: cfg.FrameRate,
		},
	}, nil
}

// newGDIGrabSource captures via gdigrab, which takes the region through
// offset_x/offset_y/video_size options. Audio comes from a dshow demuxer.
func newGDIGrabSource(cfg Config) (*captureSetup, error) {
	device := cfg.VideoDevice
	if device == "" {
		device = "desktop"
	}

	options := map[string]string{
		"framerate": strconv.Itoa(cfg.FrameRate),
	}
	if cfg.Width > 0 && cfg.Height > 0 {
		options["video_size"] = fmt.Sprintf("%dx%d", cfg.Width, cfg.Height)
		options["offset_x"] = strconv.Itoa(cfg.OffsetX)
		options["offset_y"] = strconv.Itoa(cfg.OffsetY)
	}

	video, err := NewDemuxer("gdigrab", device, options)
	if err != nil {
		return nil, err
	}

	setup := &captureSetup{
		source:     video,
		useWorkers: cfg.CaptureAudio,
		video: VideoParameters{
			Width:     cfg.Width,
			Height:    cfg.Height,
			FrameRate: cfg.FrameRate,
		},
	}

	if cfg.CaptureAudio {
		if cfg.AudioDevice == "" {
			video.Close()
			return nil, fmt.Errorf("%w: dshow capture needs an audio device name", ErrConfig)
		}
		audio, err := NewDemuxer("dshow", "audio="+cfg.AudioDevice, nil)
		if err != nil {
			video.Close()
			return nil, err
		}
		setup.source = NewDualSource(video, audio)
	}

	return setup, nil
}
