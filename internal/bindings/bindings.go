//go:build !ios && !android && (amd64 || arm64)

// Package bindings locates and loads the FFmpeg shared libraries the recorder
// depends on and hands their handles to the binding subpackages.
//
// Unlike a general-purpose transcoding toolkit, a screen recorder needs the
// whole set: libavdevice for the capture demuxers, libavfilter for the crop
// graph, libswscale and libswresample for the converters. All seven libraries
// are therefore required and loading any of them can fail the whole Load.
package bindings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/ebitengine/purego"
	"github.com/obinnaokechukwu/recgo/internal/platform"
)

// ErrNotLoaded is returned when FFmpeg functions are called before Load().
var ErrNotLoaded = errors.New("recgo: FFmpeg libraries not loaded; call recgo.Init() first")

// ErrLibraryNotFound is returned when a required FFmpeg library cannot be found.
var ErrLibraryNotFound = errors.New("recgo: FFmpeg library not found")

// Library handles
var (
	libAVUtil     uintptr
	libAVCodec    uintptr
	libAVFormat   uintptr
	libAVDevice   uintptr
	libAVFilter   uintptr
	libSWScale    uintptr
	libSWResample uintptr

	loaded   bool
	loadOnce sync.Once
	loadErr  error
)

// Version function bindings
var (
	avutilVersion   func() uint32
	avcodecVersion  func() uint32
	avformatVersion func() uint32
)

// IsLoaded returns true if FFmpeg libraries have been successfully loaded.
func IsLoaded() bool {
	return loaded
}

// Load loads the FFmpeg libraries. It is safe to call multiple times;
// subsequent calls are no-ops and return the first result.
func Load() error {
	loadOnce.Do(func() {
		loadErr = doLoad()
		if loadErr == nil {
			loaded = true
		}
	})
	return loadErr
}

func doLoad() error {
	var err error

	// Load in dependency order: avutil first, everything else links against it.
	libAVUtil, err = loadLibrary("avutil", []int{59, 58, 57, 56})
	if err != nil {
		return fmt.Errorf("loading libavutil: %w", err)
	}

	libAVCodec, err = loadLibrary("avcodec", []int{61, 60, 59, 58})
	if err != nil {
		return fmt.Errorf("loading libavcodec: %w", err)
	}

	libAVFormat, err = loadLibrary("avformat", []int{61, 60, 59, 58})
	if err != nil {
		return fmt.Errorf("loading libavformat: %w", err)
	}

	libAVDevice, err = loadLibrary("avdevice", []int{61, 60, 59, 58})
	if err != nil {
		return fmt.Errorf("loading libavdevice: %w", err)
	}

	libAVFilter, err = loadLibrary("avfilter", []int{10, 9, 8, 7})
	if err != nil {
		return fmt.Errorf("loading libavfilter: %w", err)
	}

	libSWScale, err = loadLibrary("swscale", []int{8, 7, 6, 5})
	if err != nil {
		return fmt.Errorf("loading libswscale: %w", err)
	}

	libSWResample, err = loadLibrary("swresample", []int{5, 4, 3, 2})
	if err != nil {
		return fmt.Errorf("loading libswresample: %w", err)
	}

	purego.RegisterLibFunc(&avutilVersion, libAVUtil, "avutil_version")
	purego.RegisterLibFunc(&avcodecVersion, libAVCodec, "avcodec_version")
	purego.RegisterLibFunc(&avformatVersion, libAVFormat, "avformat_version")

	return nil
}

// loadLibrary attempts to load a library by trying versioned names.
func loadLibrary(name string, versions []int) (uintptr, error) {
	for _, searchPath := range LibrarySearchPaths() {
		for _, ver := range versions {
			lib, err := tryOpen(filepath.Join(searchPath, platform.LibraryName(name, ver)))
			if err == nil {
				return lib, nil
			}
		}
		lib, err := tryOpen(filepath.Join(searchPath, platform.LibraryName(name, 0)))
		if err == nil {
			return lib, nil
		}
	}

	// Fall back to bare names and let the dynamic loader search.
	for _, ver := range versions {
		lib, err := tryOpen(platform.LibraryName(name, ver))
		if err == nil {
			return lib, nil
		}
	}
	lib, err := tryOpen(platform.LibraryName(name, 0))
	if err == nil {
		return lib, nil
	}

	return 0, fmt.Errorf("%w: %s", ErrLibraryNotFound, name)
}

// tryOpen opens a library with RTLD_NOW | RTLD_GLOBAL.
// RTLD_GLOBAL is required: the FFmpeg libraries cross-reference each other.
func tryOpen(path string) (uintptr, error) {
	return purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
}

// LibrarySearchPaths returns platform-specific library search paths.
func LibrarySearchPaths() []string {
	var paths []string

	switch runtime.GOOS {
	case "linux":
		if ldPath := os.Getenv("LD_LIBRARY_PATH"); ldPath != "" {
			paths = append(paths, filepath.SplitList(ldPath)...)
		}
		paths = append(paths,
			"/usr/lib/x86_64-linux-gnu",
			"/usr/lib/aarch64-linux-gnu",
			"/usr/local/lib",
			"/usr/lib",
			"/lib/x86_64-linux-gnu",
			"/lib",
		)

	case "darwin":
		if dyldPath := os.Getenv("DYLD_LIBRARY_PATH"); dyldPath != "" {
			paths = append(paths, filepath.SplitList(dyldPath)...)
		}
		paths = append(paths,
			"/opt/homebrew/lib",
			"/usr/local/lib",
			"/opt/homebrew/opt/ffmpeg/lib",
			"/usr/local/opt/ffmpeg/lib",
		)

	case "windows":
		if winPath := os.Getenv("PATH"); winPath != "" {
			paths = append(paths, filepath.SplitList(winPath)...)
		}
		if exe, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Dir(exe))
		}
		paths = append(paths,
			"C:\\ffmpeg\\bin",
			"C:\\Program Files\\ffmpeg\\bin",
		)

	case "freebsd":
		if ldPath := os.Getenv("LD_LIBRARY_PATH"); ldPath != "" {
			paths = append(paths, filepath.SplitList(ldPath)...)
		}
		paths = append(paths,
			"/usr/local/lib",
			"/usr/lib",
		)
	}

	return paths
}

// AVUtilVersion returns the avutil library version, or 0 if not loaded.
func AVUtilVersion() uint32 {
	if !loaded || avutilVersion == nil {
		return 0
	}
	return avutilVersion()
}

// AVCodecVersion returns the avcodec library version, or 0 if not loaded.
func AVCodecVersion() uint32 {
	if !loaded || avcodecVersion == nil {
		return 0
	}
	return avcodecVersion()
}

// AVFormatVersion returns the avformat library version, or 0 if not loaded.
func AVFormatVersion() uint32 {
	if !loaded || avformatVersion == nil {
		return 0
	}
	return avformatVersion()
}

// LibAVUtil returns the avutil library handle.
func LibAVUtil() uintptr { return libAVUtil }

// LibAVCodec returns the avcodec library handle.
func LibAVCodec() uintptr { return libAVCodec }

// LibAVFormat returns the avformat library handle.
func LibAVFormat() uintptr { return libAVFormat }

// LibAVDevice returns the avdevice library handle.
func LibAVDevice() uintptr { return libAVDevice }

// LibAVFilter returns the avfilter library handle.
func LibAVFilter() uintptr { return libAVFilter }

// LibSWScale returns the swscale library handle.
func LibSWScale() uintptr { return libSWScale }

// LibSWResample returns the swresample library handle.
func LibSWResample() uintptr { return libSWResample }
