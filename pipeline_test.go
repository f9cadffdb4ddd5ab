//go:build !ios && !android && (amd64 || arm64)

package recgo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obinnaokechukwu/recgo/avcodec"
	"github.com/obinnaokechukwu/recgo/avutil"
)

func TestStreamClockRebase(t *testing.T) {
	c := streamClock{timeBase: avutil.NewRational(1, 1000000), frameDur: 33333}

	assert.Equal(t, int64(100), c.rebase(100))
	assert.Equal(t, int64(133), c.rebase(133))
	assert.Equal(t, int64(133), c.last)

	// A two-second pause: the first post-pause packet lands one frame period
	// after the last pre-pause one, however long the gap really was.
	resumePTS := int64(133 + 2000000)
	c.offset += c.resyncDelta(resumePTS)
	assert.Equal(t, int64(133+c.frameDur), c.rebase(resumePTS))
}

func TestStreamClockRepeatedPauses(t *testing.T) {
	c := streamClock{timeBase: avutil.NewRational(1, 1000000), frameDur: 40000}

	pts := int64(0)
	for i := 0; i < 5; i++ {
		pts += 40000
		c.rebase(pts)
	}

	// Two pauses back to back, each a different real-time length. After each
	// resync the rebased timeline advances by exactly one frame period.
	for _, gap := range []int64{500000, 7000000} {
		last := c.last
		pts += gap
		c.offset += c.resyncDelta(pts)
		got := c.rebase(pts)
		assert.Equal(t, last+40000, got, "gap %d should be elided", gap)
	}
}

// fakeSource drives Step without any capture device.
type fakeSource struct {
	reads []func() (avcodec.Packet, MediaKind, error)
	pos   int
}

func (s *fakeSource) ReadPacket() (avcodec.Packet, MediaKind, error) {
	if s.pos >= len(s.reads) {
		return nil, KindNone, nil
	}
	read := s.reads[s.pos]
	s.pos++
	return read()
}

func (s *fakeSource) VideoParams() (*StreamParams, error) {
	return nil, errors.New("fake source has no params")
}

func (s *fakeSource) AudioParams() (*StreamParams, error) {
	return nil, errors.New("fake source has no params")
}

func (s *fakeSource) Close() error { return nil }

func TestStepEmptyReadsLeaveStateUnchanged(t *testing.T) {
	empty := func() (avcodec.Packet, MediaKind, error) { return nil, KindNone, nil }
	src := &fakeSource{}
	for i := 0; i < 10; i++ {
		src.reads = append(src.reads, empty)
	}

	p := NewPipeline(src, nil, false)
	before := p.clocks

	for i := 0; i < 10; i++ {
		read, err := p.Step(false)
		require.NoError(t, err)
		assert.False(t, read)
	}
	assert.Equal(t, before, p.clocks)
	assert.Zero(t, p.frameCount[KindVideo])
}

func TestStepSurfacesSourceErrors(t *testing.T) {
	readErr := errors.New("device unplugged")
	src := &fakeSource{reads: []func() (avcodec.Packet, MediaKind, error){
		func() (avcodec.Packet, MediaKind, error) { return nil, KindNone, readErr },
	}}

	p := NewPipeline(src, nil, false)
	_, err := p.Step(false)
	assert.ErrorIs(t, err, readErr)
}

func TestStepDiscardsInactiveKinds(t *testing.T) {
	if !requireFFmpeg(t) {
		return
	}

	src := &fakeSource{reads: []func() (avcodec.Packet, MediaKind, error){
		func() (avcodec.Packet, MediaKind, error) {
			return avcodec.PacketAlloc(), KindAudio, nil
		},
	}}

	// No chains initialized: the packet is dropped, not processed.
	p := NewPipeline(src, nil, false)
	read, err := p.Step(false)
	require.NoError(t, err)
	assert.True(t, read)
}

func TestRecoveringStepAdjustsOffsetAndDiscards(t *testing.T) {
	if !requireFFmpeg(t) {
		return
	}

	mkPacket := func(pts int64) func() (avcodec.Packet, MediaKind, error) {
		return func() (avcodec.Packet, MediaKind, error) {
			pkt := avcodec.PacketAlloc()
			require.NotNil(t, pkt)
			avcodec.SetPacketPTS(pkt, pts)
			avcodec.SetPacketDTS(pkt, pts)
			return pkt, KindVideo, nil
		}
	}

	src := &fakeSource{reads: []func() (avcodec.Packet, MediaKind, error){
		mkPacket(5000000),
	}}

	p := NewPipeline(src, nil, false)
	p.active[KindVideo] = true
	p.clocks[KindVideo] = streamClock{
		timeBase: avutil.NewRational(1, 1000000),
		frameDur: 33333,
		last:     1000000,
	}

	read, err := p.Step(true)
	require.NoError(t, err)
	assert.True(t, read)

	// offset = pkt.pts - last - frameDur
	assert.Equal(t, int64(5000000-1000000-33333), p.clocks[KindVideo].offset)
	// The resync packet itself was discarded: last is untouched.
	assert.Equal(t, int64(1000000), p.clocks[KindVideo].last)
}

func TestResyncShiftsBothClocks(t *testing.T) {
	if !requireFFmpeg(t) {
		return
	}

	p := NewPipeline(&fakeSource{}, nil, false)
	p.active[KindVideo] = true
	p.active[KindAudio] = true
	p.clocks[KindVideo] = streamClock{timeBase: avutil.NewRational(1, 1000000), frameDur: 33333, last: 900000}
	p.clocks[KindAudio] = streamClock{timeBase: avutil.NewRational(1, 48000), frameDur: 1024, last: 43200}

	pkt := avcodec.PacketAlloc()
	require.NotNil(t, pkt)
	avcodec.SetPacketPTS(pkt, 3900000) // 3s gap on the video clock
	p.resync(pkt, KindVideo)
	avcodec.PacketFree(&pkt)

	videoDelta := int64(3900000 - 900000 - 33333)
	assert.Equal(t, videoDelta, p.clocks[KindVideo].offset)
	// The audio offset is the same wall-clock delta in audio ticks.
	assert.Equal(t, avutil.RescaleQ(videoDelta, avutil.NewRational(1, 1000000), avutil.NewRational(1, 48000)),
		p.clocks[KindAudio].offset)
}

func TestLatchedWorkerErrorSurfacesOnStep(t *testing.T) {
	p := NewPipeline(&fakeSource{}, nil, true)
	p.workerErrs[KindVideo] = errors.New("worker blew up")

	_, err := p.Step(false)
	assert.EqualError(t, err, "worker blew up")

	err = p.Flush()
	assert.EqualError(t, err, "worker blew up")
}

func TestStopWorkersIdempotent(t *testing.T) {
	p := NewPipeline(&fakeSource{}, nil, true)
	p.stopWorkers()
	p.stopWorkers()
	assert.True(t, p.stopped)
}
