package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "github.com/badapple-ai/badapple-studio/internal/errors"
	"github.com/badapple-ai/badapple-studio/internal/models"
)

func TestRequestCarriesAPIKeyHeader(t *testing.T) {
	var gotKey, gotRequestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		gotRequestID = r.Header.Get("X-Request-Id")
		w.Write([]byte(`{"id":"p1","mode":"music-video","status":"pending","scenes":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret-key", nil)
	if _, err := c.GetProject(context.Background(), "p1"); err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if gotKey != "secret-key" {
		t.Errorf("X-API-Key = %q, want %q", gotKey, "secret-key")
	}
	if gotRequestID == "" {
		t.Error("X-Request-Id header missing")
	}
}

func TestNoAPIKeyHeaderWhenUnconfigured(t *testing.T) {
	var sawHeader bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawHeader = r.Header["X-Api-Key"]
		w.Write([]byte(`{"id":"p1","mode":"music-video","status":"pending","scenes":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", nil)
	if _, err := c.GetProject(context.Background(), "p1"); err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if sawHeader {
		t.Error("X-API-Key header sent despite no key configured")
	}
}

func TestParseAPIError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantCode    string
	}{
		{
			"detail object",
			http.StatusBadRequest,
			`{"detail":{"message":"prompt too short","code":"PROMPT_TOO_SHORT"}}`,
			"prompt too short",
			"PROMPT_TOO_SHORT",
		},
		{
			"detail string",
			http.StatusNotFound,
			`{"detail":"project not found"}`,
			"project not found",
			"",
		},
		{
			"garbage body falls back to status text",
			http.StatusBadGateway,
			`<html>upstream error</html>`,
			"Bad Gateway",
			"",
		},
		{
			"empty body",
			http.StatusInternalServerError,
			``,
			"Internal Server Error",
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseAPIError(tt.status, []byte(tt.body))
			if got.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", got.Message, tt.wantMessage)
			}
			if got.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestAPIErrorRetryable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
		{http.StatusConflict, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
	}
	for _, tt := range tests {
		e := &APIError{StatusCode: tt.status}
		if got := e.IsRetryable(); got != tt.want {
			t.Errorf("IsRetryable(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestErrorTranslation(t *testing.T) {
	tests := []struct {
		status int
		check  func(error) bool
		label  string
	}{
		{http.StatusNotFound, apperrors.IsNotFoundError, "not-found"},
		{http.StatusUnauthorized, apperrors.IsUnauthorizedError, "unauthorized"},
		{http.StatusConflict, apperrors.IsConflictError, "conflict"},
		{http.StatusUnprocessableEntity, apperrors.IsValidationError, "validation"},
		{http.StatusServiceUnavailable, apperrors.IsUnavailableError, "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"detail":"nope"}`))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "", nil)
			_, err := c.GetProject(context.Background(), "p1")
			if err == nil {
				t.Fatal("expected error")
			}
			if !tt.check(err) {
				t.Errorf("error %v not classified as %s", err, tt.label)
			}
		})
	}
}

func TestCreateProjectMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/projects" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(16 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		if got := r.FormValue("mode"); got != "music-video" {
			t.Errorf("mode = %q", got)
		}
		if got := r.FormValue("reference_image_id"); got != "img-7" {
			t.Errorf("reference_image_id = %q", got)
		}
		file, header, err := r.FormFile("audio_file")
		if err != nil {
			t.Fatalf("audio_file missing: %v", err)
		}
		defer file.Close()
		if header.Filename != "track.mp3" {
			t.Errorf("audio filename = %q", header.Filename)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"project_id":"p42"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", nil)
	resp, err := c.CreateProject(context.Background(), CreateProjectRequest{
		Mode:             models.ModeMusicVideo,
		Prompt:           "a neon desert chase at dusk",
		Description:      "retro synthwave vibes",
		ReferenceImageID: "img-7",
		AudioFile:        []byte("ID3fakeaudio"),
		AudioFilename:    "track.mp3",
	})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if resp.ProjectID != "p42" {
		t.Errorf("ProjectID = %q, want p42", resp.ProjectID)
	}
}

func TestWaitForJobPollsUntilTerminal(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.Write([]byte(`{"job_id":"m1","status":"processing"}`))
			return
		}
		w.Write([]byte(`{"job_id":"m1","status":"completed","url":"https://cdn.example.com/m1.mp3"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", nil)
	js, err := c.WaitForJob(context.Background(), time.Millisecond, func(ctx context.Context) (*JobStatus, error) {
		return c.MusicStatus(ctx, "m1")
	})
	if err != nil {
		t.Fatalf("WaitForJob: %v", err)
	}
	if js.Status != "completed" || js.URL == "" {
		t.Errorf("terminal status = %+v", js)
	}
	if calls != 3 {
		t.Errorf("polled %d times, want 3", calls)
	}
}

func TestWaitForJobStopsOnContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"job_id":"m1","status":"processing"}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := NewClient(srv.URL, "", nil)
	_, err := c.WaitForJob(ctx, 5*time.Millisecond, func(ctx context.Context) (*JobStatus, error) {
		return c.MusicStatus(ctx, "m1")
	})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}
