package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "github.com/badapple-ai/badapple-studio/internal/errors"
	"github.com/badapple-ai/badapple-studio/internal/models"
	"github.com/badapple-ai/badapple-studio/internal/pipeline"
	"github.com/badapple-ai/badapple-studio/internal/storage"
)

// fakeBackend 模拟生成后端，记录每类端点的调用次数
type fakeBackend struct {
	mu          sync.Mutex
	project     *models.Project
	reorderHits int
	trimHits    int
	deleteHits  int
	lastOrder   []int
	failReorder bool
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/projects/"+b.project.ID:
		json.NewEncoder(w).Encode(b.project)

	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/scenes/reorder"):
		b.reorderHits++
		if b.failReorder {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"detail":"reorder rejected"}`))
			return
		}
		var req struct {
			Order []int `json:"order"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		b.lastOrder = req.Order
		for i, seq := range req.Order {
			for j := range b.project.Scenes {
				if b.project.Scenes[j].Sequence == seq {
					b.project.Scenes[j].DisplaySequence = i + 1
				}
			}
		}
		w.Write([]byte(`{}`))

	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/trim"):
		b.trimHits++
		var req struct {
			In  float64 `json:"in"`
			Out float64 `json:"out"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		scene := b.project.Scenes[0]
		scene.VideoClipURL = "https://cdn.example.com/clips/trimmed.mp4"
		json.NewEncoder(w).Encode(scene)

	case r.Method == http.MethodDelete:
		b.deleteHits++
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"not found"}`))
	}
}

func fourSceneProject() *models.Project {
	scenes := make([]models.Scene, 4)
	for i := range scenes {
		scenes[i] = models.Scene{
			Sequence:        i + 1,
			DisplaySequence: i + 1,
			Prompt:          "scene prompt",
			Status:          models.SceneStatusCompleted,
			VideoClipURL:    "https://cdn.example.com/clips/s.mp4",
			Duration:        4,
		}
	}
	return &models.Project{
		ID:     "p1",
		Mode:   models.ModeMusicVideo,
		Status: models.ProjectStatusCompleted,
		Scenes: scenes,
	}
}

func newSceneHarness(t *testing.T, backend *fakeBackend) (*SceneService, *ProjectService) {
	t.Helper()

	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	fs, err := storage.NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStorage: %v", err)
	}

	client := pipeline.NewClient(srv.URL, "", nil)
	projects := NewProjectService(client, fs, time.Second)
	scenes := NewSceneService(client, projects)

	if _, err := projects.Refresh(context.Background(), backend.project.ID); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	return scenes, projects
}

func TestValidateOrderRejectsLocally(t *testing.T) {
	scenes := fourSceneProject().Scenes

	tests := []struct {
		name  string
		order []int
	}{
		{"empty", nil},
		{"too short", []int{1, 2, 3}},
		{"duplicate", []int{1, 2, 2, 4}},
		{"zero entry", []int{0, 2, 3, 4}},
		{"negative entry", []int{-1, 2, 3, 4}},
		{"unknown sequence", []int{1, 2, 3, 9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOrder(tt.order, scenes)
			if !apperrors.IsValidationError(err) {
				t.Errorf("ValidateOrder(%v) = %v, want validation error", tt.order, err)
			}
		})
	}

	if err := ValidateOrder([]int{4, 3, 2, 1}, scenes); err != nil {
		t.Errorf("valid permutation rejected: %v", err)
	}
}

func TestReorderInvalidOrderSendsNothing(t *testing.T) {
	backend := &fakeBackend{project: fourSceneProject()}
	scenes, _ := newSceneHarness(t, backend)

	err := scenes.Reorder(context.Background(), "p1", []int{1, 1, 2, 3})
	if !apperrors.IsValidationError(err) {
		t.Fatalf("Reorder = %v, want validation error", err)
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if backend.reorderHits != 0 {
		t.Errorf("reorder endpoint hit %d times, want 0", backend.reorderHits)
	}
}

func TestMoveFirstSceneToThirdPosition(t *testing.T) {
	backend := &fakeBackend{project: fourSceneProject()}
	scenes, projects := newSceneHarness(t, backend)

	if err := scenes.Move(context.Background(), "p1", 0, 2); err != nil {
		t.Fatalf("Move: %v", err)
	}

	backend.mu.Lock()
	gotOrder := backend.lastOrder
	backend.mu.Unlock()

	want := []int{2, 3, 1, 4}
	if len(gotOrder) != len(want) {
		t.Fatalf("posted order = %v, want %v", gotOrder, want)
	}
	for i := range want {
		if gotOrder[i] != want[i] {
			t.Fatalf("posted order = %v, want %v", gotOrder, want)
		}
	}

	project, err := projects.Get(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}
	got := make([]int, 0, 4)
	for _, sc := range project.DisplayOrder() {
		got = append(got, sc.Sequence)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("cached display order = %v, want %v", got, want)
		}
	}
}

func TestReorderRollsBackOnBackendFailure(t *testing.T) {
	backend := &fakeBackend{project: fourSceneProject(), failReorder: true}
	scenes, projects := newSceneHarness(t, backend)

	err := scenes.Reorder(context.Background(), "p1", []int{4, 3, 2, 1})
	if err == nil {
		t.Fatal("expected reorder failure")
	}

	// 回滚后缓存应回到后端的原始顺序
	project, err := projects.Get(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}
	for i, sc := range project.DisplayOrder() {
		if sc.Sequence != i+1 {
			t.Fatalf("display order not rolled back: position %d has scene %d", i, sc.Sequence)
		}
	}
}

func TestApplyTrimSetsDurationToRange(t *testing.T) {
	backend := &fakeBackend{project: fourSceneProject()}
	scenes, projects := newSceneHarness(t, backend)

	scene, err := scenes.ApplyTrim(context.Background(), "p1", 1, 2.0, 5.5)
	if err != nil {
		t.Fatalf("ApplyTrim: %v", err)
	}
	if scene.Duration != 3.5 {
		t.Errorf("Duration = %v, want 3.5", scene.Duration)
	}
	if scene.TrimPoints == nil || scene.TrimPoints.In != 2.0 || scene.TrimPoints.Out != 5.5 {
		t.Errorf("TrimPoints = %+v, want {2 5.5}", scene.TrimPoints)
	}

	project, err := projects.Get(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}
	cached, ok := project.SceneBySequence(1)
	if !ok {
		t.Fatal("scene 1 missing from cache")
	}
	if cached.Duration != 3.5 {
		t.Errorf("cached Duration = %v, want 3.5", cached.Duration)
	}
}

func TestApplyTrimOnColdCacheWarmsFromBackend(t *testing.T) {
	// 重启后第一次编辑：缓存是空的，但后端调用已成功，
	// 不能因为缓存未命中而报错
	backend := &fakeBackend{project: fourSceneProject()}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	fs, err := storage.NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStorage: %v", err)
	}
	client := pipeline.NewClient(srv.URL, "", nil)
	projects := NewProjectService(client, fs, time.Second)
	scenes := NewSceneService(client, projects)

	scene, err := scenes.ApplyTrim(context.Background(), "p1", 1, 1.0, 4.0)
	if err != nil {
		t.Fatalf("ApplyTrim on cold cache: %v", err)
	}
	if scene.Duration != 3.0 {
		t.Errorf("Duration = %v, want 3", scene.Duration)
	}

	project, err := projects.Get(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}
	cached, ok := project.SceneBySequence(1)
	if !ok {
		t.Fatal("scene 1 missing from cache after warm-up")
	}
	if cached.TrimPoints == nil || cached.TrimPoints.In != 1.0 || cached.TrimPoints.Out != 4.0 {
		t.Errorf("cached TrimPoints = %+v, want {1 4}", cached.TrimPoints)
	}
}

func TestApplyTrimRejectsBadRanges(t *testing.T) {
	backend := &fakeBackend{project: fourSceneProject()}
	scenes, _ := newSceneHarness(t, backend)

	tests := []struct {
		name    string
		in, out float64
	}{
		{"negative in", -0.5, 3},
		{"out equals in", 2, 2},
		{"out before in", 3, 2},
		{"below minimum separation", 2, 2.05},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := scenes.ApplyTrim(context.Background(), "p1", 1, tt.in, tt.out)
			if !apperrors.IsValidationError(err) {
				t.Errorf("ApplyTrim(%v, %v) = %v, want validation error", tt.in, tt.out, err)
			}
		})
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if backend.trimHits != 0 {
		t.Errorf("trim endpoint hit %d times, want 0", backend.trimHits)
	}
}

func TestDeleteSceneRefusesLastScene(t *testing.T) {
	project := fourSceneProject()
	project.Scenes = project.Scenes[:1]
	backend := &fakeBackend{project: project}
	scenes, _ := newSceneHarness(t, backend)

	err := scenes.DeleteScene(context.Background(), "p1", 1)
	if !apperrors.IsConflictError(err) {
		t.Fatalf("DeleteScene = %v, want conflict error", err)
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if backend.deleteHits != 0 {
		t.Errorf("delete endpoint hit %d times, want 0", backend.deleteHits)
	}
}

func TestDeleteSceneRefusedWhileComposing(t *testing.T) {
	backend := &fakeBackend{project: fourSceneProject()}
	scenes, projects := newSceneHarness(t, backend)

	projects.mutex.Lock()
	projects.composing["p1"] = true
	projects.mutex.Unlock()

	err := scenes.DeleteScene(context.Background(), "p1", 2)
	if !apperrors.IsConflictError(err) {
		t.Fatalf("DeleteScene = %v, want conflict error", err)
	}
}

func TestDeleteSceneHappyPath(t *testing.T) {
	backend := &fakeBackend{project: fourSceneProject()}
	scenes, _ := newSceneHarness(t, backend)

	if err := scenes.DeleteScene(context.Background(), "p1", 2); err != nil {
		t.Fatalf("DeleteScene: %v", err)
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if backend.deleteHits != 1 {
		t.Errorf("delete endpoint hit %d times, want 1", backend.deleteHits)
	}
}
