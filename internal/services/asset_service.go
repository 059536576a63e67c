// internal/services/asset_service.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/badapple-ai/badapple-studio/internal/errors"
	"github.com/badapple-ai/badapple-studio/internal/models"
	"github.com/badapple-ai/badapple-studio/internal/pipeline"
	"github.com/badapple-ai/badapple-studio/internal/storage"
	"github.com/badapple-ai/badapple-studio/internal/utils"
	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

const (
	audioDir  = "audio"
	imagesDir = "images"

	thumbnailWidth    = 320
	maxUploadBytes    = 64 << 20
	maxImageFetchSize = 16 << 20
)

// AudioAsset 一段可用作项目配乐的音频，本地上传或远端生成
type AudioAsset struct {
	ID        string             `json:"id"`
	Filename  string             `json:"filename,omitempty"`
	URL       string             `json:"url,omitempty"` // 远端资产（YouTube/生成音乐）
	Source    models.AudioSource `json:"source"`
	Title     string             `json:"title,omitempty"`
	Duration  int                `json:"duration,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// ImageCandidate 一张参考图候选及其缩略图
type ImageCandidate struct {
	ID            string `json:"id"`
	URL           string `json:"url,omitempty"`
	ThumbnailPath string `json:"thumbnail_path,omitempty"`
}

// AssetService handles the binary side of the wizard: audio uploads,
// YouTube conversion, AI music generation, reference image candidates
// with locally rendered thumbnails, and share QR codes.
type AssetService struct {
	Client   *pipeline.Client
	Storage  *storage.FileStorage
	Progress *ProgressService
	Stats    *StatsService

	httpClient   *http.Client
	pollInterval time.Duration
	logger       *utils.Logger
}

// NewAssetService 创建资产服务
func NewAssetService(client *pipeline.Client, fs *storage.FileStorage, pollInterval time.Duration) *AssetService {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &AssetService{
		Client:       client,
		Storage:      fs,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		pollInterval: pollInterval,
		logger:       utils.GetLogger(),
	}
}

// UploadAudio 保存一段上传的音频并返回资产句柄
func (s *AssetService) UploadAudio(filename string, data []byte) (*AudioAsset, error) {
	if len(data) == 0 {
		return nil, apperrors.NewValidationError("audio upload is empty", nil)
	}
	if len(data) > maxUploadBytes {
		return nil, apperrors.NewValidationError("audio upload exceeds size limit", nil)
	}

	asset := &AudioAsset{
		ID:        uuid.NewString(),
		Filename:  filepath.Base(filename),
		Source:    models.AudioSourceUpload,
		CreatedAt: time.Now(),
	}

	ext := filepath.Ext(asset.Filename)
	if err := s.Storage.SaveFile(audioDir, asset.ID+ext, data); err != nil {
		return nil, err
	}
	if err := s.Storage.SaveJSON(audioDir, asset.ID+".meta.json", asset); err != nil {
		return nil, err
	}
	return asset, nil
}

// GetAudioAsset 读取音频资产元数据
func (s *AssetService) GetAudioAsset(id string) (*AudioAsset, error) {
	var asset AudioAsset
	if err := s.Storage.LoadJSON(audioDir, id+".meta.json", &asset); err != nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("audio asset %s not found", id), err)
	}
	return &asset, nil
}

// LoadAudio returns the raw bytes and original filename for an uploaded
// audio asset. Remote assets (YouTube, generated music) have no local
// bytes and return a conflict.
func (s *AssetService) LoadAudio(id string) ([]byte, string, error) {
	asset, err := s.GetAudioAsset(id)
	if err != nil {
		return nil, "", err
	}
	if asset.Source != models.AudioSourceUpload {
		return nil, "", apperrors.NewConflictError("audio asset is remote, no local file", nil)
	}

	data, err := s.Storage.LoadFile(audioDir, asset.ID+filepath.Ext(asset.Filename))
	if err != nil {
		return nil, "", err
	}
	return data, asset.Filename, nil
}

// ConvertYouTube 把 YouTube 链接转成音频资产
func (s *AssetService) ConvertYouTube(ctx context.Context, url string) (*AudioAsset, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, apperrors.NewValidationError("youtube url must be absolute", nil)
	}

	resp, err := s.Client.ConvertYouTubeAudio(ctx, pipeline.YouTubeAudioRequest{URL: url})
	if err != nil {
		return nil, err
	}

	asset := &AudioAsset{
		ID:        resp.AudioFileID,
		URL:       resp.AudioURL,
		Source:    models.AudioSourceYouTube,
		Title:     resp.Title,
		Duration:  resp.Duration,
		CreatedAt: time.Now(),
	}
	if asset.ID == "" {
		asset.ID = uuid.NewString()
	}
	if err := s.Storage.SaveJSON(audioDir, asset.ID+".meta.json", asset); err != nil {
		return nil, err
	}
	return asset, nil
}

// GenerateMusic 发起 AI 音乐生成，返回任务 ID；完成后结果
// 以音频资产形式落地（ID 即任务 ID）。
func (s *AssetService) GenerateMusic(ctx context.Context, req pipeline.MusicRequest) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", apperrors.NewValidationError("music prompt must not be empty", nil)
	}

	handle, err := s.Client.GenerateMusic(ctx, req)
	if err != nil {
		return "", err
	}

	taskID := handle.JobID
	if taskID == "" {
		taskID = uuid.NewString()
	}

	var tracker *ProgressTracker
	if s.Progress != nil {
		tracker = s.Progress.CreateTracker(taskID)
	}
	if s.Stats != nil {
		if err := s.Stats.RecordStart(taskID, "", "music"); err != nil {
			s.logger.Warnf("record music start %s: %v", taskID, err)
		}
	}

	go s.watchMusic(taskID, tracker)

	return taskID, nil
}

func (s *AssetService) watchMusic(taskID string, tracker *ProgressTracker) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	if tracker != nil {
		tracker.UpdateProgress(5, "music generation queued")
	}

	js, err := s.Client.WaitForJob(ctx, s.pollInterval, func(ctx context.Context) (*pipeline.JobStatus, error) {
		return s.Client.MusicStatus(ctx, taskID)
	})
	if err == nil && js.Status == "failed" {
		err = fmt.Errorf("music generation failed: %s", js.Error)
	}

	if err != nil {
		if tracker != nil {
			tracker.Fail(err.Error())
		}
		if s.Stats != nil {
			s.Stats.RecordFinish(taskID, err)
		}
		return
	}

	asset := &AudioAsset{
		ID:        taskID,
		URL:       js.URL,
		Source:    models.AudioSourceGenerated,
		CreatedAt: time.Now(),
	}
	if err := s.Storage.SaveJSON(audioDir, asset.ID+".meta.json", asset); err != nil {
		s.logger.Warnf("save generated music asset %s: %v", taskID, err)
	}

	if tracker != nil {
		tracker.Complete("music ready")
	}
	if s.Stats != nil {
		s.Stats.RecordFinish(taskID, nil)
	}
}

// GenerateReferenceCandidates asks the backend for count candidate
// images, then fetches them concurrently and renders local thumbnails.
// A candidate whose thumbnail fails is still returned, just without one.
func (s *AssetService) GenerateReferenceCandidates(ctx context.Context, mode models.ProjectMode, prompt string, count int) ([]ImageCandidate, error) {
	if count <= 0 {
		count = 4
	}

	resp, err := s.Client.GenerateReferenceImages(ctx, pipeline.ReferenceImageRequest{
		Mode:   mode,
		Prompt: prompt,
		Count:  count,
	})
	if err != nil {
		return nil, err
	}

	candidates := make([]ImageCandidate, len(resp.Images))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for i, img := range resp.Images {
		i, img := i, img
		candidates[i] = ImageCandidate{ID: img.ID, URL: img.URL}
		if img.URL == "" {
			continue
		}
		g.Go(func() error {
			thumbPath, err := s.fetchAndThumbnail(gctx, img.ID, img.URL)
			if err != nil {
				s.logger.Warnf("thumbnail for candidate %s: %v", img.ID, err)
				return nil
			}
			candidates[i].ThumbnailPath = thumbPath
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return candidates, nil
}

// UploadReferenceImage 保存上传的参考图并生成缩略图
func (s *AssetService) UploadReferenceImage(filename string, data []byte) (*ImageCandidate, error) {
	if len(data) == 0 {
		return nil, apperrors.NewValidationError("image upload is empty", nil)
	}
	if len(data) > maxUploadBytes {
		return nil, apperrors.NewValidationError("image upload exceeds size limit", nil)
	}

	id := uuid.NewString()
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".jpg"
	}
	if err := s.Storage.SaveFile(imagesDir, id+ext, data); err != nil {
		return nil, err
	}

	candidate := &ImageCandidate{ID: id}
	thumb, err := renderThumbnail(data)
	if err != nil {
		s.logger.Warnf("thumbnail for upload %s: %v", id, err)
		return candidate, nil
	}
	thumbName := id + ".thumb.jpg"
	if err := s.Storage.SaveFile(imagesDir, thumbName, thumb); err != nil {
		return nil, err
	}
	candidate.ThumbnailPath = filepath.Join(imagesDir, thumbName)
	return candidate, nil
}

func (s *AssetService) fetchAndThumbnail(ctx context.Context, id, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", apperrors.WrapError(err, "fetch reference image", apperrors.ErrorTypeMedia)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", apperrors.NewMediaError(fmt.Sprintf("fetch reference image: status %d", resp.StatusCode), nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageFetchSize))
	if err != nil {
		return "", apperrors.WrapError(err, "read reference image", apperrors.ErrorTypeMedia)
	}

	thumb, err := renderThumbnail(data)
	if err != nil {
		return "", err
	}
	thumbName := id + ".thumb.jpg"
	if err := s.Storage.SaveFile(imagesDir, thumbName, thumb); err != nil {
		return "", err
	}
	return filepath.Join(imagesDir, thumbName), nil
}

// renderThumbnail decodes an image and scales it to thumbnailWidth
// keeping aspect ratio, encoded as JPEG.
func renderThumbnail(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewMediaError("undecodable image", err)
	}

	bounds := src.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, apperrors.NewMediaError("empty image", nil)
	}

	width := thumbnailWidth
	if bounds.Dx() < width {
		width = bounds.Dx()
	}
	height := bounds.Dy() * width / bounds.Dx()
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 82}); err != nil {
		return nil, apperrors.NewMediaError("encode thumbnail failed", err)
	}
	return buf.Bytes(), nil
}

// ShareQR renders a QR code PNG pointing at a project's share URL.
func (s *AssetService) ShareQR(shareURL string) ([]byte, error) {
	if !strings.HasPrefix(shareURL, "http://") && !strings.HasPrefix(shareURL, "https://") {
		return nil, apperrors.NewValidationError("share url must be absolute", nil)
	}
	png, err := qrcode.Encode(shareURL, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
