package playback

import (
	"github.com/google/uuid"
)

// CompletionThreshold is the playback fraction past which a lesson counts as
// watched.
const CompletionThreshold = 0.9

// coordinator turns the continuous position stream of one lesson visit into
// at most one mark-complete mutation. The committed/inFlight pair is the
// duplicate-trigger guard: inFlight is set synchronously, under the session
// lock, before any goroutine is spawned, so rapid successive position updates
// cannot double-fire. Each visit gets a fresh coordinator; its id is what
// late mutation results are matched against.
type coordinator struct {
	id           uuid.UUID
	lessonID     uint
	totalLessons int
	finalLesson  bool

	committed       bool
	inFlight        bool
	readyToComplete bool
}

func newCoordinator(lessonID uint, finalLesson bool, totalLessons int) *coordinator {
	return &coordinator{
		id:           uuid.New(),
		lessonID:     lessonID,
		totalLessons: totalLessons,
		finalLesson:  finalLesson,
	}
}

// onPosition reports whether this update should dispatch the completion
// mutation. For the final lesson of a course it never dispatches; it raises
// readyToComplete instead, because course completion is gated behind an
// explicit user confirmation rather than a silently crossed threshold.
func (c *coordinator) onPosition(position, duration float64) bool {
	if duration <= 0 {
		return false
	}
	played := position / duration
	if played < CompletionThreshold {
		return false
	}
	if c.committed || c.inFlight {
		return false
	}
	if c.finalLesson {
		c.readyToComplete = true
		return false
	}
	c.inFlight = true
	return true
}

// confirm reports whether an explicit user confirmation should dispatch the
// completion mutation. Only meaningful after readyToComplete was raised.
func (c *coordinator) confirm() bool {
	if !c.readyToComplete || c.committed || c.inFlight {
		return false
	}
	c.inFlight = true
	return true
}

// commit records a successful mutation; no further dispatch this visit.
func (c *coordinator) commit() {
	c.inFlight = false
	c.committed = true
}

// rollback rearms the coordinator after a failed mutation so the next
// qualifying signal (position update past the threshold, or another confirm)
// retries. Retry is signal-driven, never timed.
func (c *coordinator) rollback() {
	c.inFlight = false
}
