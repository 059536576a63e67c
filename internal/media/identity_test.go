package media

import (
	"testing"
)

func TestStableID(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"empty", "", ""},
		{
			"plain url",
			"https://cdn.example.com/projects/p1/scene-1.mp4",
			"cdn.example.com/projects/p1/scene-1.mp4",
		},
		{
			"signed url drops query",
			"https://cdn.example.com/projects/p1/scene-1.mp4?X-Amz-Signature=abc&X-Amz-Expires=3600",
			"cdn.example.com/projects/p1/scene-1.mp4",
		},
		{
			"trailing slash normalized",
			"https://cdn.example.com/projects/p1/",
			"cdn.example.com/projects/p1",
		},
		{
			"bare path",
			"/uploads/audio/track.mp3?sig=x",
			"/uploads/audio/track.mp3",
		},
		{
			"fragment ignored",
			"https://cdn.example.com/a.mp4#t=5",
			"cdn.example.com/a.mp4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StableID(tt.url); got != tt.want {
				t.Errorf("StableID(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestSameObject(t *testing.T) {
	base := "https://cdn.example.com/projects/p1/scene-1.mp4"

	if !SameObject(base+"?sig=aaa&expires=1", base+"?sig=bbb&expires=2") {
		t.Error("rotated signature should compare as the same object")
	}
	if SameObject(base, "https://cdn.example.com/projects/p1/scene-2.mp4") {
		t.Error("different paths should compare as different objects")
	}
	if SameObject(base, "https://other.example.com/projects/p1/scene-1.mp4") {
		t.Error("different hosts should compare as different objects")
	}
}

func TestSourceCache_NeedsReload(t *testing.T) {
	cache := NewSourceCache()
	signed := "https://cdn.example.com/p1/scene-1.mp4?X-Amz-Signature=one"
	rotated := "https://cdn.example.com/p1/scene-1.mp4?X-Amz-Signature=two"
	other := "https://cdn.example.com/p1/scene-1-take2.mp4?X-Amz-Signature=three"

	if !cache.NeedsReload("scene-1/video", signed) {
		t.Fatal("first observation must load the source")
	}

	// Signed-URL rotation while the storage key is unchanged: no reload.
	if cache.NeedsReload("scene-1/video", rotated) {
		t.Error("query-only rotation must not trigger a reload")
	}

	// The path component changed: a real reload.
	if !cache.NeedsReload("scene-1/video", other) {
		t.Error("path change must trigger a reload")
	}

	// Slots are independent.
	if !cache.NeedsReload("scene-2/video", signed) {
		t.Error("a fresh slot must load regardless of other slots")
	}
}

func TestSourceCache_EmptyURLClears(t *testing.T) {
	cache := NewSourceCache()
	url := "https://cdn.example.com/p1/scene-1.mp4?sig=a"

	if !cache.NeedsReload("slot", url) {
		t.Fatal("first observation must load")
	}
	if cache.NeedsReload("slot", "") {
		t.Error("clearing a slot is not a reload")
	}
	if _, ok := cache.Current("slot"); ok {
		t.Error("slot should be empty after clearing")
	}
	if !cache.NeedsReload("slot", url) {
		t.Error("reobserving after clear must reload")
	}
}

func TestSourceCache_Forget(t *testing.T) {
	cache := NewSourceCache()
	url := "https://cdn.example.com/p1/scene-1.mp4"

	cache.NeedsReload("slot", url)
	cache.Forget("slot")

	if !cache.NeedsReload("slot", url) {
		t.Error("Forget must force the next observation to reload")
	}
}
