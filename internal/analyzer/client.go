package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/audiosift/internal/metrics"
)

// uploadChunkSize bounds how much of the audio file is held in memory at
// once during upload, independent of file size.
const uploadChunkSize = 5 << 20 // 5 MiB

// Client talks to the speech-analysis service. The service is treated as a
// black box: raw audio in, async job out, chaptered transcript back.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     zerolog.Logger
}

// submitRequest is the job-creation payload. Highlights, topic detection,
// and sentiment are always requested; chapters come back with the rest.
type submitRequest struct {
	AudioURL          string `json:"audio_url"`
	AutoHighlights    bool   `json:"auto_highlights"`
	IABCategories     bool   `json:"iab_categories"`
	SentimentAnalysis bool   `json:"sentiment_analysis"`
}

// Transcript is the job status response from the analysis service.
// Chapters is populated only on completed jobs and may be empty.
type Transcript struct {
	ID       string    `json:"id"`
	Status   string    `json:"status"`
	Error    string    `json:"error"`
	Chapters []Chapter `json:"chapters"`

	// Raw is the undecoded response body, kept for archiving.
	Raw json.RawMessage `json:"-"`
}

// Chapter is one coarse-grained topic/time unit in the service's response.
// Optional fields are pointers so absence is distinguishable from zero.
type Chapter struct {
	Start      int      `json:"start"`
	End        int      `json:"end"`
	Summary    *string  `json:"summary"`
	Topics     []string `json:"topics"`
	Sentiment  *string  `json:"sentiment"`
	Confidence *float64 `json:"confidence"`
}

// NewClient creates a client for the analysis service. The API key is
// attached to every request as the authorization header.
func NewClient(baseURL, apiKey string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{},
		log:     log,
	}
}

// chunkReader caps each Read at uploadChunkSize so the request body is
// streamed in bounded chunks regardless of how large a buffer the transport
// offers.
type chunkReader struct {
	r io.Reader
	n int64
}

func (cr *chunkReader) Read(p []byte) (int, error) {
	if len(p) > uploadChunkSize {
		p = p[:uploadChunkSize]
	}
	n, err := cr.r.Read(p)
	cr.n += int64(n)
	return n, err
}

// Upload streams a local audio file to the service and returns the opaque
// URL the service will dereference later. A single failed attempt is fatal;
// there is no retry.
func (c *Client) Upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &NotFoundError{Path: path}
		}
		return "", fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	body := &chunkReader{r: f}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", body)
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read upload response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &UploadError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var result struct {
		UploadURL string `json:"upload_url"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if result.UploadURL == "" {
		return "", &UploadError{Status: resp.StatusCode, Body: "response missing upload_url"}
	}

	metrics.UploadBytesTotal.Add(float64(body.n))
	c.log.Debug().
		Str("path", path).
		Int64("bytes", body.n).
		Dur("duration_ms", time.Since(start)).
		Msg("audio uploaded")

	return result.UploadURL, nil
}

// Submit creates an analysis job for the given audio URL and returns the
// opaque job ID.
func (c *Client) Submit(ctx context.Context, audioURL string) (string, error) {
	payload, err := json.Marshal(submitRequest{
		AudioURL:          audioURL,
		AutoHighlights:    true,
		IABCategories:     true,
		SentimentAnalysis: true,
	})
	if err != nil {
		return "", fmt.Errorf("marshal submit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcript", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create submit request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read submit response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &SubmissionError{Status: resp.StatusCode, Reason: string(respBody)}
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", &SubmissionError{Status: resp.StatusCode, Reason: "malformed response: " + err.Error()}
	}
	if result.ID == "" {
		return "", &SubmissionError{Status: resp.StatusCode, Reason: "response missing job id"}
	}

	return result.ID, nil
}

// GetTranscript fetches the current state of an analysis job.
func (c *Client) GetTranscript(ctx context.Context, jobID string) (*Transcript, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transcript/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("create poll request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read poll response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll transcript %s: status %d: %s", jobID, resp.StatusCode, string(respBody))
	}

	var tr Transcript
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	tr.Raw = respBody
	return &tr, nil
}
