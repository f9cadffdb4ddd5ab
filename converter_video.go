//go:build !ios && !android && (amd64 || arm64)

package recgo

import (
	"fmt"

	"github.com/obinnaokechukwu/recgo/avcodec"
	"github.com/obinnaokechukwu/recgo/avfilter"
	"github.com/obinnaokechukwu/recgo/avutil"
	"github.com/obinnaokechukwu/recgo/swscale"
)

// VideoConverter crops raw frames at a fixed offset and converts them to the
// encoder's pixel format and resolution.
//
// When a crop is requested, a filter graph (buffer -> crop -> buffersink)
// parameterised with the output geometry is built once at construction and
// its endpoints retained; each input frame is pushed into the source and
// cropped frames pulled from the sink before scaling. Without a crop the
// frame goes straight to the scaler.
type VideoConverter struct {
	inWidth   int
	inHeight  int
	inPixFmt  PixelFormat
	outWidth  int
	outHeight int
	outPixFmt PixelFormat

	scaleCtx swscale.Context

	graph      avfilter.Graph
	bufferSrc  avfilter.Context
	bufferSink avfilter.Context

	// pending holds the current input frame on the direct (no-crop) path
	// until ReceiveFrame consumes it. Borrowed from the caller.
	pending avutil.Frame

	closed bool
}

// NewVideoConverter builds a converter between a decoder's output and an
// encoder's input. offsetX/offsetY position the crop window inside the
// captured frame; both zero with matching sizes means no crop graph is built.
func NewVideoConverter(inCtx, outCtx avcodec.Context, offsetX, offsetY int) (*VideoConverter, error) {
	c := &VideoConverter{
		inWidth:   int(avcodec.CtxWidth(inCtx)),
		inHeight:  int(avcodec.CtxHeight(inCtx)),
		inPixFmt:  avcodec.CtxPixFmt(inCtx),
		outWidth:  int(avcodec.CtxWidth(outCtx)),
		outHeight: int(avcodec.CtxHeight(outCtx)),
		outPixFmt: avcodec.CtxPixFmt(outCtx),
	}

	if c.inWidth <= 0 || c.inHeight <= 0 || c.outWidth <= 0 || c.outHeight <= 0 {
		return nil, fmt.Errorf("%w: video converter needs positive dimensions", ErrConfig)
	}
	if offsetX < 0 || offsetY < 0 ||
		offsetX+c.outWidth > c.inWidth || offsetY+c.outHeight > c.inHeight {
		return nil, fmt.Errorf("%w: crop %dx%d+%d,%d exceeds input %dx%d",
			ErrConfig, c.outWidth, c.outHeight, offsetX, offsetY, c.inWidth, c.inHeight)
	}

	needCrop := offsetX != 0 || offsetY != 0 ||
		c.outWidth != c.inWidth || c.outHeight != c.inHeight

	scaleW, scaleH := c.inWidth, c.inHeight
	if needCrop {
		if err := c.buildCropGraph(inCtx, offsetX, offsetY); err != nil {
			return nil, err
		}
		scaleW, scaleH = c.outWidth, c.outHeight
	}

	c.scaleCtx = swscale.GetContext(scaleW, scaleH, c.inPixFmt,
		c.outWidth, c.outHeight, c.outPixFmt, swscale.FlagBicubic)
	if c.scaleCtx == nil {
		c.Close()
		return nil, fmt.Errorf("%w: cannot allocate scale context", ErrConfig)
	}

	return c, nil
}

// buildCropGraph constructs buffer -> crop -> buffersink once; the endpoints
// are retained for the per-frame push/pull.
func (c *VideoConverter) buildCropGraph(inCtx avcodec.Context, offsetX, offsetY int) error {
	if err := avfilter.Init(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}

	c.graph = avfilter.GraphAlloc()
	if c.graph == nil {
		return ErrOutOfMemory
	}

	tb := avcodec.CtxTimeBase(inCtx)
	if tb.Den == 0 {
		tb = avutil.NewRational(1, 1000000)
	}

	srcArgs := fmt.Sprintf("video_size=%dx%d:pix_fmt=%d:time_base=%d/%d:pixel_aspect=1/1",
		c.inWidth, c.inHeight, int(c.inPixFmt), tb.Num, tb.Den)

	var err error
	c.bufferSrc, err = avfilter.GraphCreateFilter(c.graph, avfilter.GetByName("buffer"), "in", srcArgs)
	if err != nil {
		return fmt.Errorf("%w: creating buffersrc: %v", ErrConfig, err)
	}

	cropArgs := fmt.Sprintf("%d:%d:%d:%d", c.outWidth, c.outHeight, offsetX, offsetY)
	cropCtx, err := avfilter.GraphCreateFilter(c.graph, avfilter.GetByName("crop"), "crop", cropArgs)
	if err != nil {
		return fmt.Errorf("%w: creating crop filter: %v", ErrConfig, err)
	}

	c.bufferSink, err = avfilter.GraphCreateFilter(c.graph, avfilter.GetByName("buffersink"), "out", "")
	if err != nil {
		return fmt.Errorf("%w: creating buffersink: %v", ErrConfig, err)
	}

	if err := avfilter.Link(c.bufferSrc, 0, cropCtx, 0); err != nil {
		return fmt.Errorf("%w: linking buffersrc to crop: %v", ErrConfig, err)
	}
	if err := avfilter.Link(cropCtx, 0, c.bufferSink, 0); err != nil {
		return fmt.Errorf("%w: linking crop to buffersink: %v", ErrConfig, err)
	}

	if err := avfilter.GraphConfig(c.graph); err != nil {
		return fmt.Errorf("%w: configuring crop graph: %v", ErrConfig, err)
	}

	return nil
}

// SendFrame pushes one decoded frame into the converter.
func (c *VideoConverter) SendFrame(frame avutil.Frame) error {
	if c.closed {
		return fmt.Errorf("%w: video converter is closed", ErrState)
	}

	if c.graph == nil {
		c.pending = frame
		return nil
	}

	if err := avfilter.BufferSrcAddFrame(c.bufferSrc, frame, avfilter.BufferSrcFlagKeepRef); err != nil {
		return fmt.Errorf("video converter: %w", err)
	}
	return nil
}

// ReceiveFrame returns the next converted frame with pts = seq, or ok=false
// when nothing is available.
func (c *VideoConverter) ReceiveFrame(seq int64) (avutil.Frame, bool, error) {
	if c.closed {
		return nil, false, fmt.Errorf("%w: video converter is closed", ErrState)
	}

	var src avutil.Frame
	var cropped avutil.Frame // owned temp from the graph, freed below

	if c.graph == nil {
		if c.pending == nil {
			return nil, false, nil
		}
		src = c.pending
		c.pending = nil
	} else {
		cropped = avutil.FrameAlloc()
		if cropped == nil {
			return nil, false, ErrOutOfMemory
		}
		ret := avfilter.BufferSinkGetFrame(c.bufferSink, cropped)
		if ret == avutil.AVERROR_EAGAIN || ret == avutil.AVERROR_EOF {
			avutil.FrameFree(&cropped)
			return nil, false, nil
		}
		if ret < 0 {
			avutil.FrameFree(&cropped)
			return nil, false, fmt.Errorf("video converter: %w", avutil.NewError(ret, "av_buffersink_get_frame"))
		}
		src = cropped
	}

	out := avutil.FrameAlloc()
	if out == nil {
		avutil.FrameFree(&cropped)
		return nil, false, ErrOutOfMemory
	}
	avutil.SetFrameWidth(out, int32(c.outWidth))
	avutil.SetFrameHeight(out, int32(c.outHeight))
	avutil.SetFrameFormat(out, int32(c.outPixFmt))
	if err := avutil.FrameGetBuffer(out, 0); err != nil {
		avutil.FrameFree(&out)
		avutil.FrameFree(&cropped)
		return nil, false, fmt.Errorf("video converter: %w", err)
	}

	if err := swscale.ScaleFrame(c.scaleCtx, out, src); err != nil {
		avutil.FrameFree(&out)
		avutil.FrameFree(&cropped)
		return nil, false, fmt.Errorf("video converter: %w", err)
	}
	avutil.FrameFree(&cropped)

	avutil.SetFramePTS(out, seq)
	return out, true, nil
}

// Flush pushes EOF into the crop graph so buffered frames become receivable.
func (c *VideoConverter) Flush() error {
	if c.closed {
		return fmt.Errorf("%w: video converter is closed", ErrState)
	}
	if c.graph == nil {
		return nil
	}
	if err := avfilter.BufferSrcAddFrame(c.bufferSrc, nil, 0); err != nil {
		return fmt.Errorf("video converter: %w", err)
	}
	return nil
}

// Close releases the scale context and the crop graph.
func (c *VideoConverter) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.pending = nil

	if c.scaleCtx != nil {
		swscale.FreeContext(c.scaleCtx)
		c.scaleCtx = nil
	}
	if c.graph != nil {
		avfilter.GraphFree(&c.graph)
	}
	return nil
}
