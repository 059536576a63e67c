package trim

import (
	"math"
	"testing"
)

// recorder collects commands emitted by the synchronizer.
type recorder struct {
	commands []Command
}

func (r *recorder) sink(cmd Command) {
	r.commands = append(r.commands, cmd)
}

func (r *recorder) lastSeek() (Command, bool) {
	for i := len(r.commands) - 1; i >= 0; i-- {
		if r.commands[i].Type == CmdSeek {
			return r.commands[i], true
		}
	}
	return Command{}, false
}

func (r *recorder) count(t CommandType) int {
	n := 0
	for _, c := range r.commands {
		if c.Type == t {
			n++
		}
	}
	return n
}

func newReady(t *testing.T, duration float64) (*Synchronizer, *recorder) {
	t.Helper()
	rec := &recorder{}
	s := NewSynchronizer(nil, rec.sink)
	if err := s.LoadMetadata(duration); err != nil {
		t.Fatalf("LoadMetadata(%v) failed: %v", duration, err)
	}
	return s, rec
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRefusesTrimMathBeforeMetadata(t *testing.T) {
	s := NewSynchronizer(nil, nil)

	if _, err := s.DragIn(1); err != ErrNoMetadata {
		t.Errorf("DragIn before metadata: err = %v, want ErrNoMetadata", err)
	}
	if _, err := s.DragOut(5); err != ErrNoMetadata {
		t.Errorf("DragOut before metadata: err = %v, want ErrNoMetadata", err)
	}
	if _, err := s.SeekRequested(3); err != ErrNoMetadata {
		t.Errorf("SeekRequested before metadata: err = %v, want ErrNoMetadata", err)
	}
	if err := s.PositionChanged(3); err != ErrNoMetadata {
		t.Errorf("PositionChanged before metadata: err = %v, want ErrNoMetadata", err)
	}
	if err := s.Play(); err != ErrNoMetadata {
		t.Errorf("Play before metadata: err = %v, want ErrNoMetadata", err)
	}
	if s.Ready() {
		t.Error("Ready() = true before metadata")
	}
}

func TestLoadMetadata(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		wantErr  bool
	}{
		{"zero duration", 0, true},
		{"negative duration", -1, true},
		{"shorter than minimum range", MinSeparation / 2, true},
		{"exactly minimum range", MinSeparation, false},
		{"valid duration", 12.5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSynchronizer(nil, nil)
			err := s.LoadMetadata(tt.duration)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadMetadata(%v) error = %v, wantErr %v", tt.duration, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			in, out := s.Range()
			if in != 0 || out != tt.duration {
				t.Errorf("initial range = [%v, %v], want [0, %v]", in, out, tt.duration)
			}
		})
	}
}

func TestLoadMetadataClampsPresetRange(t *testing.T) {
	s := NewSynchronizer(nil, nil)

	// Range from the persisted scene arrives before the clip's metadata.
	if err := s.SetRange(2, 30); err != nil {
		t.Fatalf("SetRange: %v", err)
	}
	if err := s.LoadMetadata(10); err != nil {
		t.Fatalf("LoadMetadata: %v", err)
	}

	in, out := s.Range()
	if out != 10 {
		t.Errorf("out = %v, want clamped to duration 10", out)
	}
	if in != 2 {
		t.Errorf("in = %v, want 2", in)
	}
}

func TestDragInClampsAgainstOut(t *testing.T) {
	tests := []struct {
		name string
		v    float64
		want float64
	}{
		{"negative clamps to zero", -3, 0},
		{"in range", 2.5, 2.5},
		{"equal to out", 10, 10 - MinSeparation},
		{"beyond out", 25, 10 - MinSeparation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newReady(t, 10)
			got, err := s.DragIn(tt.v)
			if err != nil {
				t.Fatalf("DragIn(%v): %v", tt.v, err)
			}
			if !almostEqual(got, tt.want) {
				t.Errorf("DragIn(%v) = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}

func TestDragOutClampsAgainstIn(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		v    float64
		want float64
	}{
		{"beyond duration clamps", 0, 99, 10},
		{"in range", 0, 7.5, 7.5},
		{"equal to in", 4, 4, 4 + MinSeparation},
		{"below in", 4, 1, 4 + MinSeparation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newReady(t, 10)
			if _, err := s.DragIn(tt.in); err != nil {
				t.Fatalf("DragIn(%v): %v", tt.in, err)
			}
			got, err := s.DragOut(tt.v)
			if err != nil {
				t.Fatalf("DragOut(%v): %v", tt.v, err)
			}
			if !almostEqual(got, tt.want) {
				t.Errorf("DragOut(%v) = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}

func TestMinimumLengthClipKeepsHandlesInBounds(t *testing.T) {
	// The shortest loadable clip leaves zero slack between the clamps:
	// every drag must still end with 0 <= in < out <= duration.
	s, _ := newReady(t, MinSeparation)

	if got, err := s.DragIn(-2); err != nil || !almostEqual(got, 0) {
		t.Errorf("DragIn(-2) = %v, %v, want 0", got, err)
	}
	if got, err := s.DragIn(5); err != nil || !almostEqual(got, 0) {
		t.Errorf("DragIn(5) = %v, %v, want 0", got, err)
	}
	if got, err := s.DragOut(0); err != nil || !almostEqual(got, MinSeparation) {
		t.Errorf("DragOut(0) = %v, %v, want %v", got, err, MinSeparation)
	}
	if got, err := s.DragOut(99); err != nil || !almostEqual(got, MinSeparation) {
		t.Errorf("DragOut(99) = %v, %v, want %v", got, err, MinSeparation)
	}

	in, out := s.Range()
	if in < 0 || out > MinSeparation || out-in < MinSeparation-1e-9 {
		t.Errorf("range = [%v, %v], want [0, %v]", in, out, MinSeparation)
	}
}

func TestRangeCallbackFiresOnEveryDrag(t *testing.T) {
	var fired int
	var lastIn, lastOut float64
	s := NewSynchronizer(func(in, out float64) {
		fired++
		lastIn, lastOut = in, out
	}, nil)
	if err := s.LoadMetadata(20); err != nil {
		t.Fatal(err)
	}

	// Simulated continuous drag of the in handle.
	for _, v := range []float64{1, 2, 3, 4} {
		if _, err := s.DragIn(v); err != nil {
			t.Fatal(err)
		}
	}
	if fired != 4 {
		t.Errorf("range callback fired %d times, want 4 (continuous drag)", fired)
	}
	if lastIn != 4 || lastOut != 20 {
		t.Errorf("last range = [%v, %v], want [4, 20]", lastIn, lastOut)
	}
}

func TestLoopAtOutPointKeepsPlaying(t *testing.T) {
	s, rec := newReady(t, 30)
	if err := s.SetRange(5, 20); err != nil {
		t.Fatal(err)
	}
	// Position starts at 0: SetRange already repositioned to in.
	s.SeekCompleted()
	if err := s.Play(); err != nil {
		t.Fatal(err)
	}

	if err := s.PositionChanged(12); err != nil {
		t.Fatal(err)
	}
	if s.Position() != 12 {
		t.Fatalf("in-range position not tracked: got %v", s.Position())
	}

	// Crossing out - Tolerance triggers the loop.
	if err := s.PositionChanged(20 - Tolerance/2); err != nil {
		t.Fatal(err)
	}
	if s.State() != StateSeekingToIn {
		t.Fatalf("state = %v, want seeking-to-in", s.State())
	}
	seek, ok := rec.lastSeek()
	if !ok || seek.Target != 5 {
		t.Fatalf("loop seek target = %v, want 5", seek.Target)
	}

	s.SeekCompleted()
	if s.Position() != 5 {
		t.Errorf("position after loop = %v, want in point 5", s.Position())
	}
	if !s.Playing() {
		t.Error("playback must remain active across the loop")
	}
	if rec.count(CmdPlay) == 0 {
		t.Error("driver must be told to resume playback after the loop seek")
	}
	if s.State() != StateIdle {
		t.Errorf("state after seek completion = %v, want idle", s.State())
	}
}

func TestPositionBeforeInSnapsBack(t *testing.T) {
	s, rec := newReady(t, 30)
	if err := s.SetRange(5, 20); err != nil {
		t.Fatal(err)
	}
	s.SeekCompleted()

	if err := s.PositionChanged(2); err != nil {
		t.Fatal(err)
	}
	seek, ok := rec.lastSeek()
	if !ok || seek.Target != 5 {
		t.Fatalf("snap-back seek target = %v, want 5", seek.Target)
	}
	s.SeekCompleted()
	if s.Playing() {
		t.Error("paused player must stay paused after a snap-back")
	}
}

func TestJitterWithinToleranceIsAccepted(t *testing.T) {
	s, _ := newReady(t, 30)
	if err := s.SetRange(5, 20); err != nil {
		t.Fatal(err)
	}
	s.SeekCompleted()

	// Slightly before the in point, within tolerance: no snap-back.
	if err := s.PositionChanged(5 - Tolerance/2); err != nil {
		t.Fatal(err)
	}
	if s.State() != StateIdle {
		t.Errorf("jitter within tolerance must not trigger a seek, state = %v", s.State())
	}
}

func TestReentrancyGuardDropsEchoedPositions(t *testing.T) {
	s, rec := newReady(t, 30)
	if err := s.SetRange(5, 20); err != nil {
		t.Fatal(err)
	}
	// SetRange repositioned: a seek to 5 is now in flight.
	if s.State() != StateSeekingToIn {
		t.Fatalf("state = %v, want seeking-to-in", s.State())
	}
	issued := rec.count(CmdSeek)

	// Position updates caused by our own pending seek must be ignored,
	// even when they are outside the range and would otherwise re-seek.
	for _, echo := range []float64{0, 1.5, 25} {
		if err := s.PositionChanged(echo); err != nil {
			t.Fatal(err)
		}
	}
	if got := rec.count(CmdSeek); got != issued {
		t.Errorf("echoed positions issued %d extra seeks", got-issued)
	}

	s.SeekCompleted()
	if s.State() != StateIdle {
		t.Errorf("state after completion = %v, want idle", s.State())
	}
}

func TestManualSeekClamping(t *testing.T) {
	tests := []struct {
		name      string
		target    float64
		want      float64
		wantState State
	}{
		{"before in", 1, 5, StateSeekingToIn},
		{"inside range", 12, 12, StateIdle},
		{"after out", 28, 20, StateSeekingToOut},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newReady(t, 30)
			if err := s.SetRange(5, 20); err != nil {
				t.Fatal(err)
			}
			s.SeekCompleted()
			if err := s.PositionChanged(10); err != nil {
				t.Fatal(err)
			}

			got, err := s.SeekRequested(tt.target)
			if err != nil {
				t.Fatalf("SeekRequested(%v): %v", tt.target, err)
			}
			if got != tt.want {
				t.Errorf("SeekRequested(%v) = %v, want %v", tt.target, got, tt.want)
			}
			if s.State() != tt.wantState {
				t.Errorf("state = %v, want %v", s.State(), tt.wantState)
			}
		})
	}
}

func TestRangeChangeWhileOutsidePreservesPlayState(t *testing.T) {
	for _, playing := range []bool{true, false} {
		name := "paused"
		if playing {
			name = "playing"
		}
		t.Run(name, func(t *testing.T) {
			s, rec := newReady(t, 60)
			if err := s.PositionChanged(3); err != nil {
				t.Fatal(err)
			}
			if playing {
				if err := s.Play(); err != nil {
					t.Fatal(err)
				}
			}

			// Dragging the in handle past the playhead forces a
			// reposition to the new in point.
			if _, err := s.DragIn(10); err != nil {
				t.Fatal(err)
			}
			seek, ok := rec.lastSeek()
			if !ok || seek.Target != 10 {
				t.Fatalf("reposition target = %v, want 10", seek.Target)
			}

			s.SeekCompleted()
			if s.Playing() != playing {
				t.Errorf("play state = %v, want preserved %v", s.Playing(), playing)
			}
		})
	}
}

func TestDragCoalescingRetargetsInFlightSeek(t *testing.T) {
	s, rec := newReady(t, 60)
	if err := s.PositionChanged(1); err != nil {
		t.Fatal(err)
	}

	// First drag issues a seek; the rest land while it is in flight.
	for _, v := range []float64{10, 12, 15} {
		if _, err := s.DragIn(v); err != nil {
			t.Fatal(err)
		}
	}
	if got := rec.count(CmdSeek); got != 1 {
		t.Fatalf("drags while seeking issued %d seeks, want 1 (coalesced)", got)
	}

	// Completion of the stale seek re-issues one seek to the freshest target.
	s.SeekCompleted()
	if got := rec.count(CmdSeek); got != 2 {
		t.Fatalf("coalesced retarget issued %d total seeks, want 2", got)
	}
	seek, _ := rec.lastSeek()
	if seek.Target != 15 {
		t.Errorf("retargeted seek = %v, want 15", seek.Target)
	}

	s.SeekCompleted()
	if s.State() != StateIdle {
		t.Errorf("state = %v, want idle after final completion", s.State())
	}
	if s.Position() != 15 {
		t.Errorf("position = %v, want 15", s.Position())
	}
}

func TestPlayFromEndLoopsToIn(t *testing.T) {
	s, rec := newReady(t, 30)
	if err := s.SetRange(5, 20); err != nil {
		t.Fatal(err)
	}
	s.SeekCompleted()
	if err := s.PositionChanged(19.95); err != nil {
		t.Fatal(err)
	}
	// 19.95 is within tolerance of out=20, so it was treated as the loop
	// point already; drain that seek.
	s.SeekCompleted()

	if err := s.PositionChanged(12); err != nil {
		t.Fatal(err)
	}
	if err := s.Play(); err != nil {
		t.Fatal(err)
	}
	if s.State() != StateIdle {
		t.Fatalf("playing from mid-range must not seek, state = %v", s.State())
	}

	s.Pause()
	rec.commands = nil

	// Manually scrub to the very end, then hit play.
	if _, err := s.SeekRequested(20); err != nil {
		t.Fatal(err)
	}
	s.SeekCompleted()
	if err := s.Play(); err != nil {
		t.Fatal(err)
	}
	seek, ok := rec.lastSeek()
	if !ok || seek.Target != 5 {
		t.Fatalf("play from out point must loop to in, seek = %+v ok=%v", seek, ok)
	}
}

func TestSetRangeValidation(t *testing.T) {
	tests := []struct {
		name    string
		in, out float64
	}{
		{"negative in", -1, 5},
		{"equal endpoints", 5, 5},
		{"inverted", 8, 3},
		{"below min separation", 5, 5.05},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newReady(t, 30)
			if err := s.SetRange(tt.in, tt.out); err != ErrInvalidRange {
				t.Errorf("SetRange(%v, %v) = %v, want ErrInvalidRange", tt.in, tt.out, err)
			}
		})
	}

	t.Run("out beyond known duration", func(t *testing.T) {
		s, _ := newReady(t, 10)
		if err := s.SetRange(0, 15); err != ErrInvalidRange {
			t.Errorf("SetRange beyond duration = %v, want ErrInvalidRange", err)
		}
	})
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateSeekingToIn, "seeking-to-in"},
		{StateSeekingToOut, "seeking-to-out"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int(tt.state), got, tt.want)
		}
	}
}
