package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeService simulates the analysis API: accepts uploads and submissions,
// then steps through a scripted sequence of poll responses.
type fakeService struct {
	t         *testing.T
	polls     []string // JSON bodies returned by successive GET /transcript/{id}
	pollIdx   atomic.Int32
	pollFails int32 // number of leading polls that return 500
	requests  atomic.Int32
}

func (fs *fakeService) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.requests.Add(1)
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/upload":
			json.NewEncoder(w).Encode(map[string]string{"upload_url": "https://cdn.example/up"})
		case r.Method == http.MethodPost && r.URL.Path == "/transcript":
			json.NewEncoder(w).Encode(map[string]string{"id": "job-1"})
		case r.Method == http.MethodGet && r.URL.Path == "/transcript/job-1":
			idx := fs.pollIdx.Add(1) - 1
			if idx < fs.pollFails {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			i := int(idx - fs.pollFails)
			if i >= len(fs.polls) {
				i = len(fs.polls) - 1
			}
			w.Write([]byte(fs.polls[i]))
		default:
			fs.t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func newTestAnalyzer(baseURL string, opts Options) *Analyzer {
	if opts.PollInterval == 0 {
		opts.PollInterval = 5 * time.Millisecond
	}
	return New(NewClient(baseURL, "key", zerolog.Nop()), opts, nil, nil, zerolog.Nop())
}

func TestAnalyze_MissingFile_NoNetworkCall(t *testing.T) {
	fs := &fakeService{t: t}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	a := newTestAnalyzer(srv.URL, Options{})
	_, err := a.Analyze(context.Background(), "/no/such/clip.mp3", false)

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if n := fs.requests.Load(); n != 0 {
		t.Errorf("expected no network calls, saw %d", n)
	}
}

func TestAnalyze_URLSource_SkipsUpload(t *testing.T) {
	fs := &fakeService{t: t, polls: []string{
		`{"id":"job-1","status":"completed","chapters":[]}`,
	}}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	a := newTestAnalyzer(srv.URL, Options{})
	segs, err := a.Analyze(context.Background(), "https://example.com/podcast.mp3", true)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(segs) != 0 {
		t.Errorf("expected empty segment list, got %d", len(segs))
	}
	// submit + poll only; no upload
	if n := fs.requests.Load(); n != 2 {
		t.Errorf("expected 2 requests (submit, poll), saw %d", n)
	}
}

func TestAnalyze_FullLifecycle(t *testing.T) {
	fs := &fakeService{t: t, polls: []string{
		`{"id":"job-1","status":"queued"}`,
		`{"id":"job-1","status":"processing"}`,
		`{"id":"job-1","status":"completed","chapters":[
			{"start":0,"end":42000,"summary":"intro","topics":["tech","ai"],"sentiment":"positive","confidence":0.92},
			{"start":42000,"end":90000,"summary":"outro","topics":["sports"],"sentiment":"negative","confidence":0.7}
		]}`,
	}}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	a := newTestAnalyzer(srv.URL, Options{})
	segs, err := a.Analyze(context.Background(), writeTempAudio(t, []byte("audio-bytes")), false)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	if segs[0].StartMS != 0 || segs[0].EndMS != 42000 {
		t.Errorf("segment 0 bounds wrong: %+v", segs[0])
	}
	if segs[0].Text != "intro" || segs[0].Sentiment != "positive" || segs[0].Confidence != 0.92 {
		t.Errorf("segment 0 fields wrong: %+v", segs[0])
	}
	if !reflect.DeepEqual(segs[0].Topics, []string{"tech", "ai"}) {
		t.Errorf("segment 0 topics wrong: %v", segs[0].Topics)
	}
}

func TestAnalyze_CompletedWithoutChapters(t *testing.T) {
	fs := &fakeService{t: t, polls: []string{
		`{"id":"job-1","status":"completed"}`,
	}}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	a := newTestAnalyzer(srv.URL, Options{})
	segs, err := a.Analyze(context.Background(), writeTempAudio(t, []byte("a")), false)
	if err != nil {
		t.Fatalf("chapterless completion must not be an error, got %v", err)
	}
	if segs == nil || len(segs) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", segs)
	}
}

func TestAnalyze_ChapterFieldDefaults(t *testing.T) {
	fs := &fakeService{t: t, polls: []string{
		`{"id":"job-1","status":"completed","chapters":[{"start":100,"end":200}]}`,
	}}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	a := newTestAnalyzer(srv.URL, Options{})
	segs, err := a.Analyze(context.Background(), writeTempAudio(t, []byte("a")), false)
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	s := segs[0]
	if s.Text != "" {
		t.Errorf("expected empty text default, got %q", s.Text)
	}
	if s.Sentiment != "neutral" {
		t.Errorf("expected neutral sentiment default, got %q", s.Sentiment)
	}
	if s.Confidence != 1.0 {
		t.Errorf("expected confidence default 1.0, got %v", s.Confidence)
	}
	if s.Topics == nil || len(s.Topics) != 0 {
		t.Errorf("expected empty topics default, got %#v", s.Topics)
	}
}

func TestAnalyze_ZeroConfidencePreserved(t *testing.T) {
	// confidence:0 is a value the service sent, not an absent field.
	fs := &fakeService{t: t, polls: []string{
		`{"id":"job-1","status":"completed","chapters":[{"start":0,"end":1,"confidence":0}]}`,
	}}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	a := newTestAnalyzer(srv.URL, Options{})
	segs, err := a.Analyze(context.Background(), writeTempAudio(t, []byte("a")), false)
	if err != nil {
		t.Fatal(err)
	}
	if segs[0].Confidence != 0 {
		t.Errorf("expected explicit 0 confidence kept, got %v", segs[0].Confidence)
	}
}

func TestAnalyze_JobError(t *testing.T) {
	fs := &fakeService{t: t, polls: []string{
		`{"id":"job-1","status":"processing"}`,
		`{"id":"job-1","status":"error","error":"audio too short"}`,
	}}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	a := newTestAnalyzer(srv.URL, Options{})
	_, err := a.Analyze(context.Background(), writeTempAudio(t, []byte("a")), false)

	var te *TranscriptionError
	if !errors.As(err, &te) {
		t.Fatalf("expected TranscriptionError, got %v", err)
	}
	if te.Message != "audio too short" {
		t.Errorf("expected service message verbatim, got %q", te.Message)
	}
}

func TestAnalyze_PollDeadline(t *testing.T) {
	fs := &fakeService{t: t, polls: []string{
		`{"id":"job-1","status":"processing"}`,
	}}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	a := newTestAnalyzer(srv.URL, Options{
		PollInterval: 5 * time.Millisecond,
		PollTimeout:  25 * time.Millisecond,
	})
	_, err := a.Analyze(context.Background(), writeTempAudio(t, []byte("a")), false)

	var to *TimeoutError
	if !errors.As(err, &to) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if to.JobID != "job-1" {
		t.Errorf("expected job id in timeout, got %q", to.JobID)
	}
}

func TestAnalyze_TransientPollFailuresRetried(t *testing.T) {
	fs := &fakeService{t: t, pollFails: 2, polls: []string{
		`{"id":"job-1","status":"completed","chapters":[{"start":0,"end":10}]}`,
	}}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	a := newTestAnalyzer(srv.URL, Options{MaxPollFailures: 5})
	segs, err := a.Analyze(context.Background(), writeTempAudio(t, []byte("a")), false)
	if err != nil {
		t.Fatalf("expected transient failures to be retried, got %v", err)
	}
	if len(segs) != 1 {
		t.Errorf("expected 1 segment after retries, got %d", len(segs))
	}
}

func TestAnalyze_PollFailureCapExceeded(t *testing.T) {
	fs := &fakeService{t: t, pollFails: 10, polls: []string{
		`{"id":"job-1","status":"completed"}`,
	}}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	a := newTestAnalyzer(srv.URL, Options{MaxPollFailures: 2})
	_, err := a.Analyze(context.Background(), writeTempAudio(t, []byte("a")), false)
	if err == nil {
		t.Fatal("expected error after exceeding poll failure cap")
	}
	var to *TimeoutError
	if errors.As(err, &to) {
		t.Errorf("poll failure cap is not a timeout: %v", err)
	}
}

func TestAnalyze_ContextCancel(t *testing.T) {
	fs := &fakeService{t: t, polls: []string{
		`{"id":"job-1","status":"processing"}`,
	}}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	a := newTestAnalyzer(srv.URL, Options{PollInterval: 50 * time.Millisecond})

	done := make(chan error, 1)
	go func() {
		_, err := a.Analyze(ctx, writeTempAudio(t, []byte("a")), false)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Analyze did not return after context cancel")
	}
}
