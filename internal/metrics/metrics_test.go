package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeStats struct {
	temp, inFlight, waiting int
	loaded                  bool
}

func (f fakeStats) ActiveTempFiles() int { return f.temp }
func (f fakeStats) InFlight() int        { return f.inFlight }
func (f fakeStats) Waiting() int         { return f.waiting }
func (f fakeStats) ModelLoaded() bool    { return f.loaded }

func TestInstrumentHandler_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(InstrumentHandler)
	r.Post("/transcribe/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	})

	// chi reports the pattern without the trailing slash, so /transcribe/ and
	// /transcribe share one label.
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/transcribe", "418"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/transcribe/", nil))

	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/transcribe", "418"))
	if after-before != 1 {
		t.Errorf("http_requests_total delta = %v, want 1", after-before)
	}
}

func TestInstrumentHandler_NoRouteContext(t *testing.T) {
	h := InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "unknown", "200"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/x", nil))
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "unknown", "200"))

	if after-before != 1 {
		t.Errorf("unknown pattern delta = %v, want 1", after-before)
	}
}

func TestCollector(t *testing.T) {
	c := NewCollector(fakeStats{temp: 2, inFlight: 1, waiting: 3, loaded: true})

	if n := testutil.CollectAndCount(c); n != 4 {
		t.Fatalf("CollectAndCount = %d, want 4", n)
	}

	expected := `
# HELP audio_transcriber_model_loaded 1 if the speech-to-text model loaded at startup, 0 otherwise.
# TYPE audio_transcriber_model_loaded gauge
audio_transcriber_model_loaded 1
# HELP audio_transcriber_temp_files_active Uploaded audio files currently staged on disk.
# TYPE audio_transcriber_temp_files_active gauge
audio_transcriber_temp_files_active 2
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"audio_transcriber_model_loaded", "audio_transcriber_temp_files_active")
	if err != nil {
		t.Error(err)
	}
}

func TestCollector_NilStats(t *testing.T) {
	c := NewCollector(nil)
	if n := testutil.CollectAndCount(c); n != 4 {
		t.Errorf("CollectAndCount = %d, want 4", n)
	}
}
