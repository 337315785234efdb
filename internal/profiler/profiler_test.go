package profiler

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kadvik/mrev/internal/logger"
)

func TestPprofIndex(t *testing.T) {
	s := New("localhost:0", logger.New(logger.LevelError, io.Discard))

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/debug/pprof/")
	if err != nil {
		t.Fatalf("GET /debug/pprof/: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if len(body) == 0 {
		t.Error("empty pprof index")
	}
}

func TestPprofProfiles(t *testing.T) {
	s := New("localhost:0", logger.New(logger.LevelError, io.Discard))

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	for _, path := range []string{
		"/debug/pprof/heap",
		"/debug/pprof/goroutine",
		"/debug/pprof/cmdline",
	} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: status = %d, want 200", path, resp.StatusCode)
		}
	}
}
