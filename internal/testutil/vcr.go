// Package testutil provides shared helpers for HTTP-client tests.
package testutil

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/dnaeon/go-vcr.v2/cassette"
	"gopkg.in/dnaeon/go-vcr.v2/recorder"
)

// recordEnv switches cassette refresh on. Run the tests with
// VCR_MODE=record against a live server to re-record.
const recordEnv = "VCR_MODE"

// NewVCRRecorder replays the named cassette from testdata/fixtures.
// Interactions match on method and URL; request bodies are ignored so
// cassettes survive field reordering.
func NewVCRRecorder(t *testing.T, name string) *recorder.Recorder {
	t.Helper()

	mode := recorder.ModeReplaying
	if os.Getenv(recordEnv) == "record" {
		mode = recorder.ModeRecording
	}

	r, err := recorder.NewAsMode(filepath.Join("testdata", "fixtures", name), mode, nil)
	if err != nil {
		t.Fatalf("create VCR recorder: %v", err)
	}
	r.SetMatcher(func(req *http.Request, i cassette.Request) bool {
		return req.Method == i.Method && req.URL.String() == i.URL
	})

	t.Cleanup(func() {
		if err := r.Stop(); err != nil {
			t.Errorf("stop VCR recorder: %v", err)
		}
	})
	return r
}

// VCRHTTPClient returns an HTTP client that routes requests through
// the recorder.
func VCRHTTPClient(r *recorder.Recorder) *http.Client {
	return &http.Client{Transport: r}
}
