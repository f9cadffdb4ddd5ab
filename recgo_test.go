//go:build !ios && !android && (amd64 || arm64)

package recgo

import (
	"testing"
)

// requireFFmpeg skips the test when the FFmpeg shared libraries are not
// installed on the machine running the tests.
func requireFFmpeg(t *testing.T) bool {
	t.Helper()
	if err := Init(); err != nil {
		t.Skipf("FFmpeg libraries not available: %v", err)
		return false
	}
	return true
}

func TestMediaKindString(t *testing.T) {
	cases := map[MediaKind]string{
		KindNone:  "none",
		KindAudio: "audio",
		KindVideo: "video",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("kind %d: got %q want %q", kind, got, want)
		}
	}
}

func TestVersion(t *testing.T) {
	if !requireFFmpeg(t) {
		return
	}
	u, c, f := Version()
	if u == 0 || c == 0 || f == 0 {
		t.Fatalf("expected non-zero library versions, got %d/%d/%d", u, c, f)
	}
}
