package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"rtlmate/internal/monitor"
	"rtlmate/internal/upload"
)

const defaultHTTPTimeout = 30 * time.Second

// Client talks to the generation backend's REST surface. All paths are
// relative to the configured base URL. One-shot calls (SubmitPrompt,
// UploadFile) surface failures as *SubmissionError; polling calls return
// plain errors for the monitor to swallow.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the backend at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// SetHTTPClient replaces the underlying HTTP client. Intended for tests.
func (c *Client) SetHTTPClient(hc *http.Client) { c.httpClient = hc }

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	TaskID string `json:"task_id"`
}

// SubmitPrompt creates a generation task from the prompt and returns its
// handle. Never retries.
func (c *Client) SubmitPrompt(ctx context.Context, prompt string) (monitor.TaskHandle, error) {
	body, err := json.Marshal(generateRequest{Prompt: prompt})
	if err != nil {
		return monitor.TaskHandle{}, fmt.Errorf("marshal prompt: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return monitor.TaskHandle{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return monitor.TaskHandle{}, &SubmissionError{Op: "submit prompt", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return monitor.TaskHandle{}, &SubmissionError{Op: "submit prompt", StatusCode: resp.StatusCode}
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return monitor.TaskHandle{}, &SubmissionError{Op: "submit prompt", Err: fmt.Errorf("decode response: %w", err)}
	}
	handle := monitor.TaskHandle{ID: gr.TaskID, CreatedAt: time.Now()}
	log.Info().Str("task_id", handle.ID).Msg("generation task submitted")
	return handle, nil
}

type statusResponse struct {
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
}

// TaskStatus fetches status and progress for the task. Progress is passed
// through as received.
func (c *Client) TaskStatus(ctx context.Context, id string) (monitor.StatusReport, error) {
	var sr statusResponse
	if err := c.getJSON(ctx, "/status/"+id, &sr); err != nil {
		return monitor.StatusReport{}, err
	}
	return monitor.StatusReport{
		Status:   monitor.ParseStatus(sr.Status),
		Progress: int(sr.Progress),
	}, nil
}

type logsResponse struct {
	Logs string `json:"logs"`
}

// TaskLogs fetches the full accumulated log for the task.
func (c *Client) TaskLogs(ctx context.Context, id string) (string, error) {
	var lr logsResponse
	if err := c.getJSON(ctx, "/logs/"+id, &lr); err != nil {
		return "", err
	}
	return lr.Logs, nil
}

type resultResponse struct {
	Output string `json:"output"`
}

// FetchResult fetches the final generated content for a finished task.
func (c *Client) FetchResult(ctx context.Context, handle monitor.TaskHandle) (string, error) {
	var rr resultResponse
	if err := c.getJSON(ctx, "/result/"+handle.ID, &rr); err != nil {
		return "", err
	}
	return rr.Output, nil
}

// DownloadURL returns the locator a caller hands to the browser's native
// download mechanism. The bytes are not fetched here.
func (c *Client) DownloadURL(handle monitor.TaskHandle) string {
	return c.baseURL + "/download/" + handle.ID
}

type uploadResponse struct {
	Filename string `json:"filename"`
}

// UploadFile posts the file's bytes to the backend as multipart form data and
// returns the stored filename reported back.
func (c *Client) UploadFile(ctx context.Context, ref upload.FileRef) (string, error) {
	src, err := ref.Open()
	if err != nil {
		return "", &SubmissionError{Op: "upload file", Err: err}
	}
	defer func() { _ = src.Close() }()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", ref.Name)
	if err != nil {
		return "", &SubmissionError{Op: "upload file", Err: err}
	}
	if _, err := io.Copy(part, src); err != nil {
		return "", &SubmissionError{Op: "upload file", Err: err}
	}
	if err := mw.Close(); err != nil {
		return "", &SubmissionError{Op: "upload file", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", &buf)
	if err != nil {
		return "", &SubmissionError{Op: "upload file", Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &SubmissionError{Op: "upload file", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &SubmissionError{Op: "upload file", StatusCode: resp.StatusCode}
	}

	var ur uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
		return "", &SubmissionError{Op: "upload file", Err: fmt.Errorf("decode response: %w", err)}
	}
	log.Info().Str("filename", ur.Filename).Msg("file uploaded to backend")
	return ur.Filename, nil
}

// getJSON performs a GET and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("fetch %s: http %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
