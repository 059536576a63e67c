// internal/trim/synchronizer.go
package trim

import (
	"errors"
	"fmt"
	"sync"
)

const (
	// Tolerance absorbs floating point jitter in reported playback
	// positions: anything within 0.1s of a boundary counts as "at" it.
	Tolerance = 0.1

	// MinSeparation is the smallest allowed distance between the in and
	// out points. in == out is unrepresentable.
	MinSeparation = 0.1
)

var (
	// ErrNoMetadata 在时长未知时拒绝一切裁剪运算
	ErrNoMetadata = errors.New("trim: media duration not loaded")

	// ErrInvalidDuration rejects clips too short to hold any legal
	// trim range.
	ErrInvalidDuration = errors.New("trim: duration too short to trim")
	ErrInvalidRange    = errors.New("trim: invalid trim range")
)

// State 表示同步器的显式状态。
// Position updates observed while a seek is in flight are caused by our own
// pending seek and must never be processed; the explicit states make that
// invariant checkable instead of hiding it behind an ad hoc flag.
type State int

const (
	StateIdle State = iota
	StateSeekingToIn
	StateSeekingToOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSeekingToIn:
		return "seeking-to-in"
	case StateSeekingToOut:
		return "seeking-to-out"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// CommandType 表示同步器下发给播放器驱动的指令类型
type CommandType int

const (
	CmdSeek CommandType = iota
	CmdPlay
	CmdPause
)

// Command is an instruction for the player driver: perform a seek, resume,
// or pause. The driver reports back with SeekCompleted once a seek lands.
type Command struct {
	Type   CommandType `json:"type"`
	Target float64     `json:"target,omitempty"`
}

// Synchronizer keeps a player's playback head constrained to a
// user-adjustable [in, out] sub-range of the original clip: free scrubbing
// inside the range, clamped scrubbing outside it, and loop-on-out-point
// while playing.
//
// 事件从驱动方流入（LoadMetadata / PositionChanged / SeekRequested /
// SeekCompleted / Play / Pause / DragIn / DragOut），指令经 sink 流出。
// All methods are safe for concurrent use.
type Synchronizer struct {
	mu sync.Mutex

	duration float64 // 0 until metadata arrives
	in, out  float64
	position float64
	playing  bool

	state           State
	pendingTarget   float64
	pendingDirty    bool // target moved while the seek was in flight
	resumeAfterSeek bool

	onRange func(in, out float64)
	sink    func(Command)
}

// NewSynchronizer creates a synchronizer. onRange fires on every trim-range
// change, including continuously during handle drags. sink receives player
// commands; either callback may be nil. Both are invoked with internal
// state held and must not call back into the synchronizer.
func NewSynchronizer(onRange func(in, out float64), sink func(Command)) *Synchronizer {
	return &Synchronizer{
		onRange: onRange,
		sink:    sink,
	}
}

// LoadMetadata 在播放器上报媒体时长后调用。
// Initializes the trim range to the full clip unless a range was already
// set, in which case the existing range is clamped to the new duration.
func (s *Synchronizer) LoadMetadata(duration float64) error {
	// A clip shorter than MinSeparation cannot hold a representable
	// range: every clamp below would have to violate 0 <= in < out.
	if duration < MinSeparation {
		return ErrInvalidDuration
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.duration = duration
	if s.out == 0 {
		s.in, s.out = 0, duration
	} else {
		if s.out > duration {
			s.out = duration
		}
		if s.in > s.out-MinSeparation {
			s.in = s.out - MinSeparation
		}
		if s.in < 0 {
			s.in = 0
		}
	}
	return nil
}

// SetRange assigns an explicit trim range, e.g. from a persisted scene.
// 可以在元数据到达之前调用；届时 LoadMetadata 会按实际时长收紧。
func (s *Synchronizer) SetRange(in, out float64) error {
	if in < 0 || out <= in || out-in < MinSeparation {
		return ErrInvalidRange
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.duration > 0 && out > s.duration {
		return ErrInvalidRange
	}

	s.in, s.out = in, out
	s.fireRangeLocked()
	s.repositionIfOutsideLocked()
	return nil
}

// Range returns the current trim range.
func (s *Synchronizer) Range() (in, out float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.in, s.out
}

// State returns the current machine state.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Position returns the last accepted playback position.
func (s *Synchronizer) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// Playing reports whether playback is currently considered active.
func (s *Synchronizer) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Ready reports whether metadata has arrived and trim math is allowed.
func (s *Synchronizer) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration > 0
}

// DragIn moves the in handle. The value is clamped to keep at least
// MinSeparation below the out point and returns the stored value.
// Fires the range callback on every call so drags report continuously.
func (s *Synchronizer) DragIn(v float64) (float64, error) {
	s.mu.Lock()
	if s.duration <= 0 {
		s.mu.Unlock()
		return 0, ErrNoMetadata
	}

	// Separation clamp first, zero floor last: the floor is the hard
	// invariant bound and must win.
	if v > s.out-MinSeparation {
		v = s.out - MinSeparation
	}
	if v < 0 {
		v = 0
	}
	s.in = v
	s.fireRangeLocked()
	s.repositionIfOutsideLocked()
	s.mu.Unlock()
	return v, nil
}

// DragOut moves the out handle, clamped to [in+MinSeparation, duration].
func (s *Synchronizer) DragOut(v float64) (float64, error) {
	s.mu.Lock()
	if s.duration <= 0 {
		s.mu.Unlock()
		return 0, ErrNoMetadata
	}

	// Separation clamp first, duration ceiling last: out may never
	// exceed the clip.
	if v < s.in+MinSeparation {
		v = s.in + MinSeparation
	}
	if v > s.duration {
		v = s.duration
	}
	s.out = v
	s.fireRangeLocked()
	s.repositionIfOutsideLocked()
	s.mu.Unlock()
	return v, nil
}

// PositionChanged 处理播放器上报的播放头位置。
//
// While a seek is in flight the update is our own echo and is dropped —
// processing it would have the handler recursively fighting itself.
func (s *Synchronizer) PositionChanged(t float64) error {
	s.mu.Lock()
	if s.duration <= 0 {
		s.mu.Unlock()
		return ErrNoMetadata
	}
	if s.state != StateIdle {
		s.mu.Unlock()
		return nil
	}

	switch {
	case t < s.in-Tolerance:
		// Materially before the in point: snap back.
		s.beginSeekLocked(StateSeekingToIn, s.in)
	case t >= s.out-Tolerance:
		// Reached the end of the trimmed range: loop to the in point,
		// keeping playback active if it was.
		s.beginSeekLocked(StateSeekingToIn, s.in)
	default:
		s.position = t
	}
	s.mu.Unlock()
	return nil
}

// SeekRequested 处理用户手动拖动进度条。
// The target is clamped into [in, out] immediately, independent of the
// looping logic, and the clamped value is returned.
func (s *Synchronizer) SeekRequested(t float64) (float64, error) {
	s.mu.Lock()
	if s.duration <= 0 {
		s.mu.Unlock()
		return 0, ErrNoMetadata
	}

	switch {
	case t < s.in:
		s.beginSeekLocked(StateSeekingToIn, s.in)
		t = s.in
	case t > s.out:
		s.beginSeekLocked(StateSeekingToOut, s.out)
		t = s.out
	default:
		// In-range scrub: the player moves on its own, we just track it.
		s.position = t
	}
	s.mu.Unlock()
	return t, nil
}

// SeekCompleted 由驱动方在一次寻址落位后调用。
// Coalesced handle drags re-issue a seek to the freshest target instead of
// returning to idle.
func (s *Synchronizer) SeekCompleted() {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return
	}

	s.position = s.pendingTarget

	if s.pendingDirty {
		s.pendingDirty = false
		s.emitLocked(Command{Type: CmdSeek, Target: s.pendingTarget})
		s.mu.Unlock()
		return
	}

	s.state = StateIdle
	if s.resumeAfterSeek {
		s.resumeAfterSeek = false
		s.playing = true
		s.emitLocked(Command{Type: CmdPlay})
	}
	s.mu.Unlock()
}

// Play marks playback active. Starting from at/after the out point loops
// to the in point first.
func (s *Synchronizer) Play() error {
	s.mu.Lock()
	if s.duration <= 0 {
		s.mu.Unlock()
		return ErrNoMetadata
	}

	s.playing = true
	if s.state == StateIdle && (s.position < s.in-Tolerance || s.position >= s.out-Tolerance) {
		s.beginSeekLocked(StateSeekingToIn, s.in)
	}
	s.mu.Unlock()
	return nil
}

// Pause marks playback inactive.
func (s *Synchronizer) Pause() {
	s.mu.Lock()
	s.playing = false
	s.resumeAfterSeek = false
	s.mu.Unlock()
}

// beginSeekLocked issues a seek command, or retargets the one in flight.
func (s *Synchronizer) beginSeekLocked(target State, pos float64) {
	if s.state == target {
		// Already seeking toward this bound: coalesce instead of piling
		// up a seek per event.
		if s.pendingTarget != pos {
			s.pendingTarget = pos
			s.pendingDirty = true
		}
		return
	}

	s.state = target
	s.pendingTarget = pos
	s.pendingDirty = false
	if s.playing {
		s.resumeAfterSeek = true
	}
	s.emitLocked(Command{Type: CmdSeek, Target: pos})
}

// repositionIfOutsideLocked snaps the playback head to the in point when a
// range change leaves it outside the new range, preserving play state. A
// seek already in flight toward the in point is retargeted rather than
// stacked.
func (s *Synchronizer) repositionIfOutsideLocked() {
	if s.duration <= 0 || s.state == StateSeekingToOut {
		return
	}
	if s.state == StateSeekingToIn {
		s.beginSeekLocked(StateSeekingToIn, s.in)
		return
	}
	if s.position < s.in-Tolerance || s.position >= s.out-Tolerance {
		s.beginSeekLocked(StateSeekingToIn, s.in)
	}
}

func (s *Synchronizer) fireRangeLocked() {
	if s.onRange != nil {
		s.onRange(s.in, s.out)
	}
}

func (s *Synchronizer) emitLocked(cmd Command) {
	if s.sink != nil {
		s.sink(cmd)
	}
}
