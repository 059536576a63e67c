package models

import "testing"

func completeDraft() *WizardDraft {
	return &WizardDraft{
		Mode:             ModeMusicVideo,
		ConceptPrompt:    "a neon desert chase at dusk",
		ImageSource:      ImageSourceGenerated,
		ReferenceImageID: "img-1",
		AudioSource:      AudioSourceYouTube,
		YouTubeURL:       "https://youtube.com/watch?v=abc",
	}
}

func TestStepCompletePerStep(t *testing.T) {
	d := completeDraft()
	for step := StepFormat; step <= StepReview; step++ {
		if !d.StepComplete(step) {
			t.Errorf("complete draft: step %d not complete", step)
		}
	}

	// 音频来源决定哪个字段算数
	d = completeDraft()
	d.AudioSource = AudioSourceUpload
	if d.StepComplete(StepAudio) {
		t.Error("upload source without file id should be incomplete")
	}
	d.AudioFileID = "a1"
	if !d.StepComplete(StepAudio) {
		t.Error("upload source with file id should be complete")
	}

	d = completeDraft()
	d.AudioSource = AudioSourceGenerated
	d.MusicPrompt = "   "
	if d.StepComplete(StepAudio) {
		t.Error("generated source with blank prompt should be incomplete")
	}

	// 风格步骤永远可过
	empty := &WizardDraft{}
	if !empty.StepComplete(StepStyle) {
		t.Error("style step is optional and always complete")
	}
}

func TestReadyToSubmitRequiresEveryGatingStep(t *testing.T) {
	d := completeDraft()
	if !d.ReadyToSubmit() {
		t.Fatal("complete draft should be submittable")
	}

	d.ReferenceImageID = ""
	if d.ReadyToSubmit() {
		t.Error("draft missing reference image should not be submittable")
	}
}
