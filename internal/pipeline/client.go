// internal/pipeline/client.go
package pipeline

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/badapple-ai/badapple-studio/internal/models"
	"github.com/badapple-ai/badapple-studio/internal/utils"
)

const maxErrorBodyBytes = 4096

// Client is the thin HTTP client for the external generation pipeline
// backend. It does no retrying and no caching; it translates HTTP failures
// into the studio error taxonomy and leaves policy to the services.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *utils.Logger
}

// NewClient creates a pipeline client. apiKey may be empty, in which case
// no auth header is sent.
func NewClient(baseURL, apiKey string, logger *utils.Logger) *Client {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger,
	}
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("X-Request-Id", generateRequestID())

	return req, nil
}

// doJSON performs the request and decodes a 2xx JSON body into out (out
// may be nil). Non-2xx replies come back as AppErrors carrying the parsed
// `detail` payload.
func (c *Client) doJSON(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("pipeline request %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		apiErr := parseAPIError(resp.StatusCode, body)
		c.logger.Warnf("pipeline %s %s failed: %v", req.Method, req.URL.Path, apiErr)
		return apiErr.toAppError()
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode pipeline response: %w", err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(data), "application/json")
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

// CreateProject 以 multipart 表单创建新项目
func (c *Client) CreateProject(ctx context.Context, r CreateProjectRequest) (*CreateProjectResponse, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := map[string]string{
		"mode":               string(r.Mode),
		"prompt":             r.Prompt,
		"description":        r.Description,
		"reference_image_id": r.ReferenceImageID,
	}
	if r.StylePreset != "" {
		fields["style_preset"] = r.StylePreset
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("write form field %s: %w", name, err)
		}
	}

	if len(r.AudioFile) > 0 {
		part, err := w.CreateFormFile("audio_file", r.AudioFilename)
		if err != nil {
			return nil, fmt.Errorf("create audio part: %w", err)
		}
		if _, err := part.Write(r.AudioFile); err != nil {
			return nil, fmt.Errorf("write audio part: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/projects", &buf, w.FormDataContentType())
	if err != nil {
		return nil, err
	}

	var out CreateProjectResponse
	if err := c.doJSON(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetProject 拉取项目的最新状态（轮询用）
func (c *Client) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	var out models.Project
	if err := c.getJSON(ctx, "/api/projects/"+projectID, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateReferenceImages 生成 N 张候选参考图
func (c *Client) GenerateReferenceImages(ctx context.Context, r ReferenceImageRequest) (*ReferenceImageResponse, error) {
	var out ReferenceImageResponse
	if err := c.postJSON(ctx, "/api/reference-images/generate", r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddScene 在项目末尾追加一个场景
func (c *Client) AddScene(ctx context.Context, projectID string, r AddSceneRequest) (*models.Scene, error) {
	var out models.Scene
	if err := c.postJSON(ctx, fmt.Sprintf("/api/projects/%s/scenes", projectID), r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateScene 更新场景的提示词字段
func (c *Client) UpdateScene(ctx context.Context, projectID string, sequence int, r UpdateSceneRequest) (*models.Scene, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	path := fmt.Sprintf("/api/projects/%s/scenes/%d", projectID, sequence)
	req, err := c.newRequest(ctx, http.MethodPatch, path, bytes.NewReader(data), "application/json")
	if err != nil {
		return nil, err
	}

	var out models.Scene
	if err := c.doJSON(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteScene 删除一个场景
func (c *Client) DeleteScene(ctx context.Context, projectID string, sequence int) error {
	path := fmt.Sprintf("/api/projects/%s/scenes/%d", projectID, sequence)
	req, err := c.newRequest(ctx, http.MethodDelete, path, nil, "")
	if err != nil {
		return err
	}
	return c.doJSON(req, nil)
}

// ReorderScenes 持久化新的场景顺序（display sequence 值）
func (c *Client) ReorderScenes(ctx context.Context, projectID string, order []int) error {
	return c.postJSON(ctx, fmt.Sprintf("/api/projects/%s/scenes/reorder", projectID), ReorderRequest{Order: order}, nil)
}

// RegenerateScene 重新生成一个场景的视频
func (c *Client) RegenerateScene(ctx context.Context, projectID string, sequence int) error {
	path := fmt.Sprintf("/api/projects/%s/scenes/%d/regenerate", projectID, sequence)
	return c.postJSON(ctx, path, struct{}{}, nil)
}

// TrimScene 把 [in, out] 裁剪区间应用为工作剪辑
func (c *Client) TrimScene(ctx context.Context, projectID string, sequence int, r TrimRequest) (*models.Scene, error) {
	path := fmt.Sprintf("/api/projects/%s/scenes/%d/trim", projectID, sequence)
	var out models.Scene
	if err := c.postJSON(ctx, path, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartLipSync 发起对口型任务
func (c *Client) StartLipSync(ctx context.Context, r LipSyncRequest) (*JobHandle, error) {
	var out JobHandle
	if err := c.postJSON(ctx, "/api/lipsync", r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LipSyncStatus 查询对口型任务状态
func (c *Client) LipSyncStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	var out JobStatus
	if err := c.getJSON(ctx, "/api/lipsync/"+jobID, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConvertYouTubeAudio 把 YouTube 链接转成音频资产
func (c *Client) ConvertYouTubeAudio(ctx context.Context, r YouTubeAudioRequest) (*YouTubeAudioResponse, error) {
	var out YouTubeAudioResponse
	if err := c.postJSON(ctx, "/api/audio/youtube", r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateMusic 发起 AI 音乐生成任务
func (c *Client) GenerateMusic(ctx context.Context, r MusicRequest) (*JobHandle, error) {
	var out JobHandle
	if err := c.postJSON(ctx, "/api/music/generate", r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MusicStatus 查询音乐生成任务状态
func (c *Client) MusicStatus(ctx context.Context, taskID string) (*JobStatus, error) {
	var out JobStatus
	if err := c.getJSON(ctx, "/api/music/"+taskID, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ComposeProject 发起最终合成
func (c *Client) ComposeProject(ctx context.Context, projectID string) (*JobHandle, error) {
	var out JobHandle
	if err := c.postJSON(ctx, fmt.Sprintf("/api/projects/%s/compose", projectID), struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ComposeStatus 查询合成任务状态
func (c *Client) ComposeStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	var out JobStatus
	if err := c.getJSON(ctx, "/api/compose/"+jobID, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WaitForJob polls status at a fixed interval until the job leaves the
// pending/processing states or ctx is cancelled. No backoff, no jitter.
func (c *Client) WaitForJob(ctx context.Context, interval time.Duration, status func(context.Context) (*JobStatus, error)) (*JobStatus, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		js, err := status(ctx)
		if err != nil {
			return nil, err
		}
		if js.Status != "pending" && js.Status != "processing" {
			return js, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func generateRequestID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:])
}
