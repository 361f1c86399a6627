// Package analyzer owns the upload, submit, poll and parse lifecycle that
// turns an audio source into normalized segments. All semantic extraction
// (topics, sentiment, summaries) happens in the remote service; this
// package does orchestration and normalization only.
package analyzer

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/audiosift/internal/metrics"
	"github.com/snarg/audiosift/internal/segment"
)

// Archive persists the raw transcript JSON of completed jobs. Optional.
type Archive interface {
	Save(ctx context.Context, key string, data []byte, contentType string) error
}

// EventPublisher is notified when an analysis completes. Optional.
type EventPublisher interface {
	AnalysisCompleted(source, jobID string, segments []segment.Segment)
}

// Options tune the polling policy: a bounded overall deadline plus
// backoff-capped retries of transient poll failures.
type Options struct {
	PollInterval    time.Duration // wait between status checks
	PollTimeout     time.Duration // overall deadline; 0 disables the bound
	MaxPollFailures int           // consecutive network failures before giving up
}

// Analyzer converts an audio source into segments. It holds no per-call
// state; concurrent Analyze calls each own an independent job.
type Analyzer struct {
	client  *Client
	opts    Options
	archive Archive
	events  EventPublisher
	log     zerolog.Logger
}

// New creates an Analyzer. archive and events may be nil.
func New(client *Client, opts Options, archive Archive, events EventPublisher, log zerolog.Logger) *Analyzer {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	if opts.MaxPollFailures <= 0 {
		opts.MaxPollFailures = 5
	}
	return &Analyzer{
		client:  client,
		opts:    opts,
		archive: archive,
		events:  events,
		log:     log,
	}
}

// Analyze runs the full lifecycle for one audio source. When isURL is
// false, source must be an existing local file; the check happens before
// any network activity. A completed job with no chapters returns an empty
// slice, not an error.
func (a *Analyzer) Analyze(ctx context.Context, source string, isURL bool) ([]segment.Segment, error) {
	start := time.Now()

	if !isURL {
		if _, err := os.Stat(source); err != nil {
			return nil, &NotFoundError{Path: source}
		}
	}

	audioURL := source
	if !isURL {
		uploaded, err := a.client.Upload(ctx, source)
		if err != nil {
			metrics.UploadsTotal.WithLabelValues("failed").Inc()
			return nil, err
		}
		metrics.UploadsTotal.WithLabelValues("ok").Inc()
		audioURL = uploaded
	}

	jobID, err := a.client.Submit(ctx, audioURL)
	if err != nil {
		metrics.AnalysisJobsTotal.WithLabelValues("submit_failed").Inc()
		return nil, err
	}
	a.log.Info().Str("job_id", jobID).Str("source", source).Msg("analysis job submitted")

	tr, err := a.poll(ctx, jobID)
	if err != nil {
		outcome := "error"
		var te *TimeoutError
		if errors.As(err, &te) {
			outcome = "timeout"
		}
		metrics.AnalysisJobsTotal.WithLabelValues(outcome).Inc()
		return nil, err
	}
	metrics.AnalysisJobsTotal.WithLabelValues("completed").Inc()

	if a.archive != nil {
		if err := a.archive.Save(ctx, "transcripts/"+jobID+".json", tr.Raw, "application/json"); err != nil {
			a.log.Warn().Err(err).Str("job_id", jobID).Msg("transcript archive failed")
		}
	}

	segs := parseChapters(tr.Chapters)
	metrics.SegmentsParsedTotal.Add(float64(len(segs)))
	metrics.AnalyzeDuration.Observe(time.Since(start).Seconds())

	if a.events != nil {
		a.events.AnalysisCompleted(source, jobID, segs)
	}

	a.log.Info().
		Str("job_id", jobID).
		Int("segments", len(segs)).
		Dur("duration_ms", time.Since(start)).
		Msg("analysis complete")

	return segs, nil
}

// poll blocks until the job reaches a terminal status, the deadline
// expires, or too many consecutive poll requests fail.
func (a *Analyzer) poll(ctx context.Context, jobID string) (*Transcript, error) {
	start := time.Now()
	deadline := time.Time{}
	if a.opts.PollTimeout > 0 {
		deadline = start.Add(a.opts.PollTimeout)
	}

	failures := 0
	for {
		metrics.PollRequestsTotal.Inc()
		tr, err := a.client.GetTranscript(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failures++
			if failures > a.opts.MaxPollFailures {
				return nil, err
			}
			metrics.PollRetriesTotal.Inc()
			// Exponential backoff, capped at the poll interval.
			wait := time.Duration(1<<uint(failures-1)) * time.Second
			if wait > a.opts.PollInterval {
				wait = a.opts.PollInterval
			}
			a.log.Warn().Err(err).Int("failures", failures).Dur("backoff_ms", wait).Msg("poll failed, retrying")
			if err := a.sleep(ctx, jobID, wait, deadline, start); err != nil {
				return nil, err
			}
			continue
		}
		failures = 0

		switch strings.ToLower(tr.Status) {
		case "completed":
			return tr, nil
		case "error":
			msg := tr.Error
			if msg == "" {
				msg = "unknown error"
			}
			return nil, &TranscriptionError{JobID: jobID, Message: msg}
		default:
			// queued, processing, or anything else the service invents:
			// keep waiting.
			a.log.Debug().Str("job_id", jobID).Str("status", tr.Status).Msg("job not terminal yet")
			if err := a.sleep(ctx, jobID, a.opts.PollInterval, deadline, start); err != nil {
				return nil, err
			}
		}
	}
}

// sleep waits for d or until the deadline/context expires, whichever is
// first. Deadline expiry surfaces as TimeoutError.
func (a *Analyzer) sleep(ctx context.Context, jobID string, d time.Duration, deadline, start time.Time) error {
	if !deadline.IsZero() {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return &TimeoutError{JobID: jobID, Elapsed: time.Since(start)}
		}
		if d > remaining {
			d = remaining
		}
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
	}

	if !deadline.IsZero() && !time.Now().Before(deadline) {
		return &TimeoutError{JobID: jobID, Elapsed: time.Since(start)}
	}
	return nil
}

// parseChapters maps service chapters onto fully-populated segments.
// Defaults are applied here, once, so everything downstream works against
// a complete record: missing summary becomes "", missing topics an empty
// slice, missing sentiment "neutral", missing confidence 1.0.
func parseChapters(chapters []Chapter) []segment.Segment {
	segs := make([]segment.Segment, 0, len(chapters))
	for _, ch := range chapters {
		s := segment.Segment{
			StartMS:    ch.Start,
			EndMS:      ch.End,
			Topics:     []string{},
			Sentiment:  "neutral",
			Confidence: 1.0,
		}
		if ch.Summary != nil {
			s.Text = *ch.Summary
		}
		if len(ch.Topics) > 0 {
			s.Topics = append(s.Topics, ch.Topics...)
		}
		if ch.Sentiment != nil {
			s.Sentiment = *ch.Sentiment
		}
		if ch.Confidence != nil {
			s.Confidence = *ch.Confidence
		}
		segs = append(segs, s)
	}
	return segs
}
