//go:build !ios && !android && (amd64 || arm64)

package recgo

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// regionThreshold is the smallest sensible capture dimension, in pixels.
// A selection below it (a stray click in the region picker) means the whole
// screen, with zero offsets.
const regionThreshold = 10

// Config configures a Recorder.
type Config struct {
	// OutputPath is the container file to write. The format follows the
	// extension (.mp4, .mkv, ...).
	OutputPath string

	// Width, Height, OffsetX, OffsetY describe the capture region in screen
	// pixels. Zero (or sub-threshold) dimensions capture the full screen.
	Width   int
	Height  int
	OffsetX int
	OffsetY int

	// FrameRate in fps (default: 30).
	FrameRate int

	// CaptureAudio enables the system-audio chain.
	CaptureAudio bool

	// VideoCodec (default: H.264) and AudioCodec (default: AAC).
	VideoCodec CodecID
	AudioCodec CodecID

	// PixelFormat of the encoded video (default: yuv420p).
	PixelFormat PixelFormat

	// VideoDevice and AudioDevice override the platform capture device
	// names (X display, avfoundation index, dshow device, ...).
	VideoDevice string
	AudioDevice string

	// EncoderOptions are applied to the video encoder before it opens
	// (default: {"preset": "ultrafast"} for real-time capture).
	EncoderOptions map[string]string
}

// recorderState tracks the Recorder's lifecycle.
type recorderState int

const (
	stateIdle recorderState = iota
	stateRecording
	statePaused
	stateStopped
)

// Recorder drives the capture pipeline: it owns the capture source, muxer
// and pipeline, runs the capture loop on its own goroutine, and exposes
// Pause/Resume with gap elision and an idempotent Stop.
type Recorder struct {
	cfg Config

	mu        sync.Mutex
	pauseCond *sync.Cond
	state     recorderState
	resumed   bool

	setup    *captureSetup
	muxer    *Muxer
	pipeline *Pipeline

	group   errgroup.Group
	stopErr error
}

// NewRecorder creates a recorder for the given configuration. Capture devices
// are not opened until Start.
func NewRecorder(cfg Config) (*Recorder, error) {
	if cfg.OutputPath == "" {
		return nil, fmt.Errorf("%w: output path is required", ErrConfig)
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = 30
	}
	if cfg.EncoderOptions == nil {
		cfg.EncoderOptions = map[string]string{"preset": "ultrafast"}
	}
	cfg.Width, cfg.Height, cfg.OffsetX, cfg.OffsetY =
		normalizeRegion(cfg.Width, cfg.Height, cfg.OffsetX, cfg.OffsetY)

	r := &Recorder{cfg: cfg}
	r.pauseCond = sync.NewCond(&r.mu)
	return r, nil
}

// normalizeRegion applies the region-selection policy: a dimension below the
// threshold means full screen, with zero offsets.
func normalizeRegion(w, h, x, y int) (int, int, int, int) {
	if w < regionThreshold || h < regionThreshold {
		return 0, 0, 0, 0
	}
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	return w, h, x, y
}

// Start opens the capture devices, builds the pipeline, writes the container
// header and launches the capture loop.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != stateIdle {
		return fmt.Errorf("%w: recorder already started", ErrState)
	}

	if err := Init(); err != nil {
		return err
	}
	// The device demuxers log every probe at info level; keep the native
	// layer quiet unless the package logger has debug (verbose) logging on.
	if !logger().Enabled(context.Background(), slog.LevelDebug) {
		SetNativeLogLevel(LogError)
	}

	setup, err := newCaptureSource(r.cfg)
	if err != nil {
		return err
	}

	muxer, err := NewMuxer(r.cfg.OutputPath)
	if err != nil {
		setup.source.Close()
		return err
	}

	pipeline := NewPipeline(setup.source, muxer, setup.useWorkers)

	if err := pipeline.InitVideo(r.cfg.VideoCodec, setup.video, r.cfg.PixelFormat, r.cfg.EncoderOptions); err != nil {
		r.teardown(pipeline, setup, muxer)
		return err
	}
	if r.cfg.CaptureAudio {
		if err := pipeline.InitAudio(r.cfg.AudioCodec, nil); err != nil {
			r.teardown(pipeline, setup, muxer)
			return err
		}
	}

	if err := muxer.OpenFile(); err != nil {
		r.teardown(pipeline, setup, muxer)
		return err
	}

	r.setup = setup
	r.muxer = muxer
	r.pipeline = pipeline
	r.state = stateRecording

	r.group.Go(r.captureLoop)

	logger().Info("recording started",
		"output", r.cfg.OutputPath,
		"region", fmt.Sprintf("%dx%d+%d,%d", r.cfg.Width, r.cfg.Height, r.cfg.OffsetX, r.cfg.OffsetY),
		"fps", r.cfg.FrameRate,
		"audio", r.cfg.CaptureAudio)
	return nil
}

// captureLoop is the single capture thread: it waits out pauses, reads one
// packet per iteration and hands it to the pipeline. After a resume the first
// readable packet only re-syncs the PTS offsets and is discarded.
func (r *Recorder) captureLoop() error {
	recovering := false

	for {
		r.mu.Lock()
		for r.state == statePaused {
			r.pauseCond.Wait()
		}
		if r.state == stateStopped {
			r.mu.Unlock()
			return nil
		}
		if r.resumed {
			recovering = true
			r.resumed = false
		}
		r.mu.Unlock()

		read, err := r.pipeline.Step(recovering)
		if err != nil {
			logger().Error("capture step failed", "err", err)
			return err
		}
		if read {
			recovering = false
		} else {
			// Transient emptiness (EAGAIN); don't spin against the device.
			time.Sleep(time.Millisecond)
		}
	}
}

// Pause suspends capture. Packets arriving while paused are never read; on
// resume the gap is elided from the output timeline.
func (r *Recorder) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != stateRecording {
		return fmt.Errorf("%w: cannot pause while not recording", ErrState)
	}
	r.state = statePaused
	logger().Info("recording paused")
	return nil
}

// Resume continues a paused recording.
func (r *Recorder) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != statePaused {
		return fmt.Errorf("%w: cannot resume while not paused", ErrState)
	}
	r.state = stateRecording
	r.resumed = true
	r.pauseCond.Broadcast()
	logger().Info("recording resumed")
	return nil
}

// Stop ends the recording: it stops the capture loop, flushes every pipeline
// stage and finalizes the container. Stop is idempotent; it must be called
// before the process exits or the file is left without a trailer.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if r.state == stateStopped {
		err := r.stopErr
		r.mu.Unlock()
		return err
	}
	if r.state == stateIdle {
		r.mu.Unlock()
		return fmt.Errorf("%w: recorder was never started", ErrState)
	}
	r.state = stateStopped
	r.pauseCond.Broadcast()
	r.mu.Unlock()

	// The capture loop exits at its next wait; collect its error.
	stepErr := r.group.Wait()

	// Finalize even after a failed step so partial output stays playable.
	flushErr := r.pipeline.Flush()
	closeErr := r.muxer.CloseFile()

	r.pipeline.Close()
	r.setup.source.Close()
	r.muxer.Free()

	err := stepErr
	if err == nil {
		err = flushErr
	}
	if err == nil {
		err = closeErr
	}

	r.mu.Lock()
	r.stopErr = err
	r.mu.Unlock()

	if err != nil {
		logger().Error("recording stopped with error", "err", err)
	} else {
		logger().Info("recording stopped", "output", r.cfg.OutputPath)
	}
	return err
}

// teardown releases partially constructed components after a failed Start.
func (r *Recorder) teardown(pipeline *Pipeline, setup *captureSetup, muxer *Muxer) {
	if pipeline != nil {
		pipeline.Close()
	}
	if setup != nil && setup.source != nil {
		setup.source.Close()
	}
	if muxer != nil {
		muxer.Free()
	}
}
