package models

import "testing"

func TestEffectivePlayableURLPreference(t *testing.T) {
	tests := []struct {
		name  string
		scene Scene
		want  string
	}{
		{
			"lip-sync wins over everything",
			Scene{LipSyncVideoURL: "https://cdn/l.mp4", VideoClipURL: "https://cdn/w.mp4", OriginalVideoClipURL: "https://cdn/o.mp4"},
			"https://cdn/l.mp4",
		},
		{
			"working cut wins over original",
			Scene{VideoClipURL: "https://cdn/w.mp4", OriginalVideoClipURL: "https://cdn/o.mp4"},
			"https://cdn/w.mp4",
		},
		{
			"original as last resort",
			Scene{OriginalVideoClipURL: "https://cdn/o.mp4"},
			"https://cdn/o.mp4",
		},
		{
			"nothing playable",
			Scene{},
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.scene.EffectivePlayableURL(); got != tt.want {
				t.Errorf("EffectivePlayableURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHasVideoIgnoresStatus(t *testing.T) {
	// 状态说失败但 URL 在 —— 有视频
	withURL := Scene{Status: SceneStatusFailed, OriginalVideoClipURL: "https://cdn/o.mp4"}
	if !withURL.HasVideo() {
		t.Error("scene with URL and failed status should count as having video")
	}

	// 状态说完成但没有 URL —— 没有视频
	withoutURL := Scene{Status: SceneStatusCompleted}
	if withoutURL.HasVideo() {
		t.Error("scene without URL should not count as having video")
	}
}

func TestGenerationDone(t *testing.T) {
	done := func(scenes ...Scene) bool {
		p := Project{ID: "p", Scenes: scenes}
		return p.GenerationDone()
	}

	if done() {
		t.Error("empty project must not count as done")
	}
	if done(Scene{OriginalVideoClipURL: "https://cdn/a.mp4"}, Scene{}) {
		t.Error("one scene missing a render must block completion")
	}
	if !done(
		Scene{Status: SceneStatusProcessing, OriginalVideoClipURL: "https://cdn/a.mp4"},
		Scene{Status: SceneStatusPending, VideoClipURL: "https://cdn/b.mp4"},
	) {
		t.Error("all scenes with URLs is done regardless of status fields")
	}
}

func TestTrimPointsDuration(t *testing.T) {
	tp := TrimPoints{In: 1.5, Out: 6.25}
	if got := tp.Duration(); got != 4.75 {
		t.Errorf("Duration() = %v, want 4.75", got)
	}
}

func TestDisplayOrderSortsByDisplaySequence(t *testing.T) {
	p := Project{Scenes: []Scene{
		{Sequence: 1, DisplaySequence: 3},
		{Sequence: 2, DisplaySequence: 1},
		{Sequence: 3, DisplaySequence: 2},
	}}

	ordered := p.DisplayOrder()
	want := []int{2, 3, 1}
	for i, sc := range ordered {
		if sc.Sequence != want[i] {
			t.Fatalf("position %d has scene %d, want %d", i, sc.Sequence, want[i])
		}
	}

	// 原切片不被打乱
	if p.Scenes[0].Sequence != 1 {
		t.Error("DisplayOrder mutated the receiver")
	}
}
