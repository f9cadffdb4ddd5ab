//go:build !ios && !android && (amd64 || arm64)

// Package avfilter provides the libavfilter bindings recgo needs to build the
// video crop graph (buffer -> crop -> buffersink) and push/pull frames
// through it.
package avfilter

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/obinnaokechukwu/recgo/avutil"
	"github.com/obinnaokechukwu/recgo/internal/bindings"
)

// Opaque types
type (
	// Graph represents an AVFilterGraph.
	Graph = unsafe.Pointer
	// Context represents an AVFilterContext.
	Context = unsafe.Pointer
	// Filter represents an AVFilter.
	Filter = unsafe.Pointer
)

var (
	initOnce sync.Once
	initErr  error

	avfilter_graph_alloc         func() uintptr
	avfilter_graph_free          func(graph *Graph)
	avfilter_graph_config        func(graphctx, logCtx uintptr) int32
	avfilter_graph_create_filter func(filtCtx *Context, filt, namePtr, argsPtr, opaque, graphCtx uintptr) int32
	avfilter_get_by_name         func(name *byte) uintptr
	avfilter_link                func(src uintptr, srcpad uint32, dst uintptr, dstpad uint32) int32

	av_buffersrc_add_frame_flags func(ctx, frame uintptr, flags int32) int32
	av_buffersink_get_frame      func(ctx, frame uintptr) int32
)

// Buffer source flags.
const (
	BufferSrcFlagKeepRef = 8 // AV_BUFFERSRC_FLAG_KEEP_REF
)

// Init initializes the avfilter bindings. Safe to call multiple times.
func Init() error {
	initOnce.Do(func() {
		initErr = initLibrary()
	})
	return initErr
}

func initLibrary() error {
	if err := bindings.Load(); err != nil {
		return err
	}
	lib := bindings.LibAVFilter()
	if lib == 0 {
		return bindings.ErrNotLoaded
	}

	purego.RegisterLibFunc(&avfilter_graph_alloc, lib, "avfilter_graph_alloc")
	purego.RegisterLibFunc(&avfilter_graph_free, lib, "avfilter_graph_free")
	purego.RegisterLibFunc(&avfilter_graph_config, lib, "avfilter_graph_config")
	purego.RegisterLibFunc(&avfilter_graph_create_filter, lib, "avfilter_graph_create_filter")
	purego.RegisterLibFunc(&avfilter_get_by_name, lib, "avfilter_get_by_name")
	purego.RegisterLibFunc(&avfilter_link, lib, "avfilter_link")
	purego.RegisterLibFunc(&av_buffersrc_add_frame_flags, lib, "av_buffersrc_add_frame_flags")
	purego.RegisterLibFunc(&av_buffersink_get_frame, lib, "av_buffersink_get_frame")

	return nil
}

// cString converts a Go string to a null-terminated C string (as *byte).
func cString(s string) *byte {
	if s == "" {
		return nil
	}
	b := append([]byte(s), 0)
	return &b[0]
}

// GraphAlloc allocates a new filter graph.
func GraphAlloc() Graph {
	if err := Init(); err != nil {
		return nil
	}
	return unsafe.Pointer(avfilter_graph_alloc())
}

// GraphFree frees a filter graph and all associated filters.
func GraphFree(graph *Graph) {
	if graph == nil || *graph == nil {
		return
	}
	if err := Init(); err != nil {
		return
	}
	avfilter_graph_free(graph)
}

// GraphConfig validates and configures a filter graph.
func GraphConfig(graph Graph) error {
	if graph == nil {
		return fmt.Errorf("avfilter: nil graph")
	}
	if err := Init(); err != nil {
		return err
	}
	ret := avfilter_graph_config(uintptr(graph), 0)
	if ret < 0 {
		return avutil.NewError(ret, "avfilter_graph_config")
	}
	return nil
}

// GraphCreateFilter creates and adds a named filter instance to a graph.
func GraphCreateFilter(graph Graph, filter Filter, name, args string) (Context, error) {
	if graph == nil {
		return nil, fmt.Errorf("avfilter: nil graph")
	}
	if filter == nil {
		return nil, fmt.Errorf("avfilter: nil filter")
	}
	if err := Init(); err != nil {
		return nil, err
	}

	var ctx Context
	ret := avfilter_graph_create_filter(
		&ctx,
		uintptr(filter),
		uintptr(unsafe.Pointer(cString(name))),
		uintptr(unsafe.Pointer(cString(args))),
		0,
		uintptr(graph),
	)
	if ret < 0 {
		return nil, avutil.NewError(ret, "avfilter_graph_create_filter")
	}
	return ctx, nil
}

// GetByName finds a filter by name (e.g. "buffer", "crop", "buffersink").
func GetByName(name string) Filter {
	if err := Init(); err != nil {
		return nil
	}
	return unsafe.Pointer(avfilter_get_by_name(cString(name)))
}

// Link links two filter contexts together.
func Link(src Context, srcPad uint32, dst Context, dstPad uint32) error {
	if src == nil || dst == nil {
		return fmt.Errorf("avfilter: nil context")
	}
	if err := Init(); err != nil {
		return err
	}
	ret := avfilter_link(uintptr(src), srcPad, uintptr(dst), dstPad)
	if ret < 0 {
		return avutil.NewError(ret, "avfilter_link")
	}
	return nil
}

// BufferSrcAddFrame pushes a frame into a buffersrc filter.
// A nil frame signals end of stream to the graph.
func BufferSrcAddFrame(ctx Context, frame avutil.Frame, flags int32) error {
	if ctx == nil {
		return fmt.Errorf("avfilter: nil context")
	}
	if err := Init(); err != nil {
		return err
	}
	ret := av_buffersrc_add_frame_flags(uintptr(ctx), uintptr(frame), flags)
	if ret < 0 {
		return avutil.NewError(ret, "av_buffersrc_add_frame_flags")
	}
	return nil
}

// BufferSinkGetFrame retrieves a frame from a buffersink filter.
// Returns the raw averror code: 0 on success, EAGAIN/EOF when nothing is
// available, negative on error.
func BufferSinkGetFrame(ctx Context, frame avutil.Frame) int32 {
	if ctx == nil {
		return avutil.AVERROR_EINVAL
	}
	if err := Init(); err != nil {
		return avutil.AVERROR_EINVAL
	}
	return av_buffersink_get_frame(uintptr(ctx), uintptr(frame))
}
