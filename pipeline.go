//go:build !ios && !android && (amd64 || arm64)

package recgo

import (
	"fmt"
	"sync"

	"github.com/obinnaokechukwu/recgo/avcodec"
	"github.com/obinnaokechukwu/recgo/avutil"
)

// streamClock holds the PTS rebasing state of one media kind, in the input
// stream's time base. offset grows by the length of every elided pause, so
// subtracting it maps capture timestamps onto a continuous output timeline.
type streamClock struct {
	offset   int64
	last     int64
	frameDur int64
	timeBase Rational
}

// rebase shifts a capture timestamp onto the output timeline and records it.
func (c *streamClock) rebase(pts int64) int64 {
	pts -= c.offset
	c.last = pts
	return pts
}

// resyncDelta computes the offset increment that makes the next processed
// packet land exactly one frame period after the last pre-pause packet.
func (c *streamClock) resyncDelta(pts int64) int64 {
	return pts - c.offset - c.last - c.frameDur
}

// Pipeline orchestrates one end-to-end step from a packet-source read to a
// muxer write. It owns the per-kind decoder, converter and encoder chains,
// the PTS rebasing clocks, and (in worker mode) one processing goroutine per
// media kind.
type Pipeline struct {
	source PacketSource
	muxer  *Muxer

	active     [numMediaKinds]bool
	decoders   [numMediaKinds]*Decoder
	converters [numMediaKinds]Converter
	encoders   [numMediaKinds]*Encoder
	frameCount [numMediaKinds]int64
	clocks     [numMediaKinds]streamClock

	useWorkers bool
	workers    sync.WaitGroup

	// mu guards the mailbox slots, the stop flag and the latched worker
	// errors. Each kind's cond shares it.
	mu         sync.Mutex
	stopped    bool
	slots      [numMediaKinds]avcodec.Packet
	slotConds  [numMediaKinds]*sync.Cond
	workerErrs [numMediaKinds]error
}

// NewPipeline creates a pipeline moving packets from source to muxer.
// With useWorkers the processing runs on one background goroutine per media
// kind, recommended when a single demuxer delivers both kinds: the capture
// loop then returns to the device read immediately after each handoff.
func NewPipeline(source PacketSource, muxer *Muxer, useWorkers bool) *Pipeline {
	p := &Pipeline{
		source:     source,
		muxer:      muxer,
		useWorkers: useWorkers,
	}
	for kind := range p.slotConds {
		p.slotConds[kind] = sync.NewCond(&p.mu)
	}
	return p
}

// InitVideo builds the video chain: decoder from the source's video stream,
// encoder for codecID with the requested geometry, the crop/scale converter
// between them, and the muxer's video stream.
func (p *Pipeline) InitVideo(codecID CodecID, params VideoParameters, pixFmt PixelFormat, encOptions map[string]string) error {
	in, err := p.source.VideoParams()
	if err != nil {
		return err
	}

	dec, err := NewDecoder(in)
	if err != nil {
		return err
	}

	width, height := params.Width, params.Height
	if width <= 0 || height <= 0 {
		width, height = in.Width, in.Height
	}
	frameRate := params.FrameRate
	if frameRate <= 0 {
		frameRate = 30
	}

	enc, err := NewVideoEncoder(VideoEncoderConfig{
		Codec:       codecID,
		Width:       width,
		Height:      height,
		PixelFormat: pixFmt,
		FrameRate:   frameRate,
		Options:     encOptions,
	}, p.muxer.GlobalHeader())
	if err != nil {
		dec.Close()
		return err
	}

	conv, err := NewVideoConverter(dec.CodecContext(), enc.CodecContext(), params.OffsetX, params.OffsetY)
	if err != nil {
		dec.Close()
		enc.Close()
		return err
	}

	if err := p.muxer.AddVideoStream(enc.CodecContext()); err != nil {
		dec.Close()
		enc.Close()
		conv.Close()
		return err
	}

	p.decoders[KindVideo] = dec
	p.encoders[KindVideo] = enc
	p.converters[KindVideo] = conv
	p.clocks[KindVideo] = streamClock{
		timeBase: in.TimeBase,
		frameDur: avutil.RescaleQ(1, avutil.NewRational(1, int32(frameRate)), in.TimeBase),
	}
	p.active[KindVideo] = true

	if p.useWorkers {
		p.startWorker(KindVideo)
	}
	return nil
}

// InitAudio builds the audio chain: decoder from the source's audio stream,
// encoder for codecID at the input sample rate, the resample/FIFO converter
// between them, and the muxer's audio stream.
func (p *Pipeline) InitAudio(codecID CodecID, encOptions map[string]string) error {
	in, err := p.source.AudioParams()
	if err != nil {
		return err
	}

	dec, err := NewDecoder(in)
	if err != nil {
		return err
	}

	enc, err := NewAudioEncoder(AudioEncoderConfig{
		Codec:      codecID,
		SampleRate: in.SampleRate,
		Channels:   in.Channels,
		Options:    encOptions,
	}, p.muxer.GlobalHeader())
	if err != nil {
		dec.Close()
		return err
	}

	conv, err := NewAudioConverter(dec.CodecContext(), enc.CodecContext(), enc.FrameSize())
	if err != nil {
		dec.Close()
		enc.Close()
		return err
	}

	if err := p.muxer.AddAudioStream(enc.CodecContext()); err != nil {
		dec.Close()
		enc.Close()
		conv.Close()
		return err
	}

	p.decoders[KindAudio] = dec
	p.encoders[KindAudio] = enc
	p.converters[KindAudio] = conv
	p.clocks[KindAudio] = streamClock{timeBase: in.TimeBase}
	p.active[KindAudio] = true

	if p.useWorkers {
		p.startWorker(KindAudio)
	}
	return nil
}

// Step reads one packet from the source and routes it into the processing
// chain (inline, or via the kind's worker). When recoveringFromPause is set
// and a packet was read, the packet is not processed: it only advances the
// PTS offsets so that the next processed packet resumes one frame period
// after the last pre-pause one, and is then discarded.
// Returns whether a packet was read.
func (p *Pipeline) Step(recoveringFromPause bool) (bool, error) {
	if err := p.latchedWorkerErr(); err != nil {
		return false, err
	}

	pkt, kind, err := p.source.ReadPacket()
	if err != nil {
		return false, err
	}
	if pkt == nil {
		return false, nil
	}

	if recoveringFromPause {
		p.resync(pkt, kind)
		avcodec.PacketFree(&pkt)
		return true, nil
	}

	if !p.active[kind] {
		avcodec.PacketFree(&pkt)
		return true, nil
	}

	if p.useWorkers {
		if err := p.handoff(pkt, kind); err != nil {
			return true, err
		}
		return true, nil
	}

	err = p.processPacket(pkt, kind)
	avcodec.PacketFree(&pkt)
	return true, err
}

// resync advances every active clock by the pause gap observed on the first
// post-pause packet. The gap is measured against the clock of the packet's
// own kind and rescaled into the other kinds' time bases, so both timelines
// shorten by the same amount regardless of which stream delivered first.
func (p *Pipeline) resync(pkt avcodec.Packet, kind MediaKind) {
	pts := avcodec.PacketPTS(pkt)
	if pts == avutil.NoPTSValue || !p.active[kind] {
		return
	}

	delta := p.clocks[kind].resyncDelta(pts)
	for k := range p.clocks {
		if !p.active[k] {
			continue
		}
		p.clocks[k].offset += avutil.RescaleQ(delta, p.clocks[kind].timeBase, p.clocks[k].timeBase)
	}

	logger().Debug("pts resync", "kind", kind.String(), "delta", delta)
}

// processPacket runs one packet through decode, convert, encode and mux.
func (p *Pipeline) processPacket(pkt avcodec.Packet, kind MediaKind) error {
	clock := &p.clocks[kind]

	if pkt != nil {
		if pts := avcodec.PacketPTS(pkt); pts != avutil.NoPTSValue {
			avcodec.SetPacketPTS(pkt, clock.rebase(pts))
		}
		if dts := avcodec.PacketDTS(pkt); dts != avutil.NoPTSValue {
			avcodec.SetPacketDTS(pkt, dts-clock.offset)
		}
		if kind == KindAudio {
			if dur := avcodec.PacketDuration(pkt); dur > 0 {
				// Audio gap arithmetic uses the device's real packet cadence.
				clock.frameDur = dur
			}
		}
	}

	dec := p.decoders[kind]
	for {
		status, err := dec.SendPacket(pkt)
		if err != nil {
			return err
		}
		if err := p.drainDecoder(kind); err != nil {
			return err
		}
		if status == StatusAccepted {
			return nil
		}
		// Saturated: the decoder queue was full; frames are drained, retry.
	}
}

// drainDecoder moves every available decoded frame into the converter chain.
func (p *Pipeline) drainDecoder(kind MediaKind) error {
	dec := p.decoders[kind]
	for {
		frame, ok, err := dec.ReceiveFrame()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		err = p.processFrame(frame, kind)
		avutil.FrameFree(&frame)
		if err != nil {
			return err
		}
	}
}

// processFrame feeds one raw frame through the converter and encodes every
// converted frame it yields.
func (p *Pipeline) processFrame(frame avutil.Frame, kind MediaKind) error {
	conv := p.converters[kind]
	if err := conv.SendFrame(frame); err != nil {
		return err
	}
	return p.drainConverter(kind)
}

// drainConverter encodes every complete frame the converter can emit.
func (p *Pipeline) drainConverter(kind MediaKind) error {
	conv := p.converters[kind]
	for {
		out, ok, err := conv.ReceiveFrame(p.frameCount[kind])
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		p.frameCount[kind]++
		err = p.encodeFrame(out, kind)
		avutil.FrameFree(&out)
		if err != nil {
			return err
		}
	}
}

// encodeFrame pushes one converted frame (or nil, to drain) into the encoder
// and writes every resulting packet to the muxer.
func (p *Pipeline) encodeFrame(frame avutil.Frame, kind MediaKind) error {
	enc := p.encoders[kind]
	for {
		status, err := enc.SendFrame(frame)
		if err != nil {
			return err
		}
		if err := p.drainEncoder(kind); err != nil {
			return err
		}
		if status == StatusAccepted {
			return nil
		}
	}
}

// drainEncoder writes every available encoded packet to the muxer.
func (p *Pipeline) drainEncoder(kind MediaKind) error {
	enc := p.encoders[kind]
	for {
		pkt, ok, err := enc.ReceivePacket()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		err = p.muxer.WritePacket(pkt, kind)
		avcodec.PacketFree(&pkt)
		if err != nil {
			return err
		}
	}
}

// Flush stops the workers, drains every stage of every active chain in
// order (decoder, converter, encoder), and finally flushes the muxer's
// interleaver. It must run before Muxer.CloseFile.
func (p *Pipeline) Flush() error {
	p.stopWorkers()
	if err := p.latchedWorkerErr(); err != nil {
		return err
	}

	for _, kind := range []MediaKind{KindVideo, KindAudio} {
		if !p.active[kind] {
			continue
		}
		if err := p.flushChain(kind); err != nil {
			return err
		}
	}

	return p.muxer.WritePacket(nil, KindNone)
}

func (p *Pipeline) flushChain(kind MediaKind) error {
	// Decoder drain: a nil packet, then everything it still holds.
	if err := p.processPacket(nil, kind); err != nil {
		return err
	}

	// Converter drain: signal EOF, encode what remains.
	if err := p.converters[kind].Flush(); err != nil {
		return err
	}
	if err := p.drainConverter(kind); err != nil {
		return err
	}

	// Encoder drain: nil frame, then write out the tail.
	return p.encodeFrame(nil, kind)
}

// startWorker launches the processing goroutine for one media kind.
func (p *Pipeline) startWorker(kind MediaKind) {
	p.workers.Add(1)
	go func() {
		defer p.workers.Done()

		for {
			p.mu.Lock()
			for p.slots[kind] == nil && !p.stopped {
				p.slotConds[kind].Wait()
			}
			pkt := p.slots[kind]
			if pkt == nil {
				// Stopped with an empty slot: nothing in flight.
				p.mu.Unlock()
				return
			}
			p.mu.Unlock()

			err := p.processPacket(pkt, kind)
			avcodec.PacketFree(&pkt)

			p.mu.Lock()
			p.slots[kind] = nil
			if err != nil {
				p.workerErrs[kind] = fmt.Errorf("%w: %s: %v", ErrWorker, kind, err)
				p.slotConds[kind].Broadcast()
				p.mu.Unlock()
				return
			}
			p.slotConds[kind].Broadcast()
			stop := p.stopped
			p.mu.Unlock()

			if stop {
				return
			}
		}
	}()
}

// handoff places a packet in the kind's single mailbox slot, blocking while
// the previous packet is still being processed. One in-flight packet per kind
// preserves ordering within the kind.
func (p *Pipeline) handoff(pkt avcodec.Packet, kind MediaKind) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.slots[kind] != nil && !p.stopped && p.workerErrs[kind] == nil {
		p.slotConds[kind].Wait()
	}
	if p.stopped || p.workerErrs[kind] != nil {
		err := p.workerErrs[kind]
		avcodec.PacketFree(&pkt)
		return err
	}

	p.slots[kind] = pkt
	p.slotConds[kind].Signal()
	return nil
}

// stopWorkers signals all workers and waits for them to drain in-flight
// packets and exit. Idempotent.
func (p *Pipeline) stopWorkers() {
	if !p.useWorkers {
		return
	}

	p.mu.Lock()
	p.stopped = true
	for kind := range p.slotConds {
		p.slotConds[kind].Broadcast()
	}
	p.mu.Unlock()

	p.workers.Wait()
}

// latchedWorkerErr returns the first error captured from a worker, if any.
func (p *Pipeline) latchedWorkerErr() error {
	if !p.useWorkers {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for kind := range p.workerErrs {
		if p.workerErrs[kind] != nil {
			return p.workerErrs[kind]
		}
	}
	return nil
}

// FrameCount returns how many converted frames of the kind have been handed
// to its encoder.
func (p *Pipeline) FrameCount(kind MediaKind) int64 {
	return p.frameCount[kind]
}

// Close releases every chain component. The source and muxer stay owned by
// the caller.
func (p *Pipeline) Close() error {
	p.stopWorkers()

	for kind := range p.active {
		if !p.active[kind] {
			continue
		}
		if p.converters[kind] != nil {
			p.converters[kind].Close()
		}
		if p.decoders[kind] != nil {
			p.decoders[kind].Close()
		}
		if p.encoders[kind] != nil {
			p.encoders[kind].Close()
		}
		p.active[kind] = false
	}
	return nil
}
