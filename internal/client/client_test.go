package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"rtlmate/internal/monitor"
	"rtlmate/internal/upload"
)

// newTestBackend spins an httptest server mimicking the generation backend.
func newTestBackend(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL)
}

func TestSubmitPromptReturnsHandle(t *testing.T) {
	c := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/generate" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body["prompt"] != "32-bit ALU" {
			t.Errorf("unexpected prompt: %q", body["prompt"])
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"task_id": "t-1"})
	})

	handle, err := c.SubmitPrompt(context.Background(), "32-bit ALU")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if handle.ID != "t-1" {
		t.Fatalf("unexpected handle id: %q", handle.ID)
	}
	if handle.CreatedAt.IsZero() {
		t.Fatalf("expected CreatedAt to be set")
	}
}

func TestSubmitPromptRejectionIsSubmissionError(t *testing.T) {
	c := newTestBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.SubmitPrompt(context.Background(), "x")
	var serr *SubmissionError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SubmissionError, got %T: %v", err, err)
	}
	if serr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("unexpected status code: %d", serr.StatusCode)
	}
}

func TestSubmitPromptTransportFailureIsSubmissionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // dead endpoint
	c := New(srv.URL)

	_, err := c.SubmitPrompt(context.Background(), "x")
	var serr *SubmissionError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SubmissionError, got %T: %v", err, err)
	}
	if serr.StatusCode != 0 {
		t.Fatalf("transport failures carry no status code, got %d", serr.StatusCode)
	}
}

func TestTaskStatusParsesAndPassesProgressThrough(t *testing.T) {
	c := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status/t-1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "running", "progress": 150})
	})

	report, err := c.TaskStatus(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if report.Status != monitor.StatusRunning {
		t.Fatalf("unexpected status: %q", report.Status)
	}
	if report.Progress != 150 {
		t.Fatalf("progress must be passed through unclamped, got %d", report.Progress)
	}
}

func TestTaskStatusUnknownStringMapsToUnknown(t *testing.T) {
	c := newTestBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "warming-up", "progress": 1})
	})

	report, err := c.TaskStatus(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if report.Status != monitor.StatusUnknown {
		t.Fatalf("expected unknown, got %q", report.Status)
	}
}

func TestTaskLogsAndFetchResult(t *testing.T) {
	c := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/logs/t-1":
			_ = json.NewEncoder(w).Encode(map[string]string{"logs": "init\n"})
		case "/result/t-1":
			_ = json.NewEncoder(w).Encode(map[string]string{"output": "module alu; endmodule"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	logs, err := c.TaskLogs(context.Background(), "t-1")
	if err != nil || logs != "init\n" {
		t.Fatalf("logs: %q, %v", logs, err)
	}

	output, err := c.FetchResult(context.Background(), monitor.TaskHandle{ID: "t-1"})
	if err != nil || output != "module alu; endmodule" {
		t.Fatalf("result: %q, %v", output, err)
	}
}

func TestTaskStatusErrorOnNon2xx(t *testing.T) {
	c := newTestBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	if _, err := c.TaskStatus(context.Background(), "t-1"); err == nil {
		t.Fatalf("expected error on non-2xx status poll")
	}
}

func TestDownloadURLDoesNotFetch(t *testing.T) {
	fetched := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { fetched = true }))
	t.Cleanup(srv.Close)

	c := New(srv.URL + "/") // trailing slash is normalized away
	url := c.DownloadURL(monitor.TaskHandle{ID: "t-9"})
	if url != srv.URL+"/download/t-9" {
		t.Fatalf("unexpected download url: %q", url)
	}
	if fetched {
		t.Fatalf("DownloadURL must not perform a request")
	}
}

func TestUploadFileSendsMultipart(t *testing.T) {
	c := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/upload" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		f, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if string(data) != "spec body" || header.Filename != "alu_spec.md" {
			t.Errorf("unexpected upload: %q %q", header.Filename, data)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"filename": "alu_spec.md"})
	})

	ref := upload.NewFileRef("alu_spec.md", []byte("spec body"))
	filename, err := c.UploadFile(context.Background(), ref)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if filename != "alu_spec.md" {
		t.Fatalf("unexpected filename: %q", filename)
	}
}

func TestUploadFileRejectionIsSubmissionError(t *testing.T) {
	c := newTestBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	_, err := c.UploadFile(context.Background(), upload.NewFileRef("a", []byte("a")))
	var serr *SubmissionError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SubmissionError, got %T: %v", err, err)
	}
}
