package analyzer

import (
	"fmt"
	"time"
)

// NotFoundError reports a local audio path that does not exist. It is
// returned before any network activity happens.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("audio file not found: %s", e.Path)
}

// UploadError reports a non-success response during the chunked upload.
// Uploads are never retried.
type UploadError struct {
	Status int
	Body   string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed (status %d): %s", e.Status, e.Body)
}

// SubmissionError reports a failed or malformed response when creating the
// analysis job (non-200, or a 200 missing the job id).
type SubmissionError struct {
	Status int
	Reason string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("transcript submission failed (status %d): %s", e.Status, e.Reason)
}

// TranscriptionError reports a job that reached the terminal "error" status.
// Message carries the service-provided description verbatim.
type TranscriptionError struct {
	JobID   string
	Message string
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription %s failed: %s", e.JobID, e.Message)
}

// TimeoutError reports a job that did not reach a terminal status within
// the configured polling deadline.
type TimeoutError struct {
	JobID   string
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("transcription %s did not complete within %s", e.JobID, e.Elapsed)
}
