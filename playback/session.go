package playback

import (
	"context"
	"fmt"
	"lms/logger"
	courseModels "lms/models/course"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State of a playback session's media element.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
	StateErrored State = "errored"
)

// CredentialSource issues playback credentials. Satisfied by Issuer.
type CredentialSource interface {
	Issue(ctx context.Context, userID, courseID uint) (*Credential, error)
}

// CompletionSubmitter persists a watched lesson. Satisfied by
// progress.Store.
type CompletionSubmitter interface {
	MarkComplete(ctx context.Context, userID, courseID, lessonID uint, totalLessons int) (*courseModels.CourseProgress, error)
}

// ProgressInvalidator drops cached progress views after a completion write.
// Satisfied by progress.ViewCache.
type ProgressInvalidator interface {
	Invalidate(ctx context.Context, userID, courseID uint)
}

// LessonRef is what a session needs to know about the lesson it plays.
type LessonRef struct {
	ID           uint
	DurationSec  int
	FinalLesson  bool
	TotalLessons int
}

// Session tracks one student's playback of one lesson at a time. All state
// lives behind a single mutex; event handlers re-enter the machine one at a
// time, and every asynchronous completion (credential fetch, completion
// mutation) carries the identity it started under and is dropped when that
// identity is stale. Switching lessons resets everything before any new
// asynchronous work is dispatched.
type Session struct {
	ID       uuid.UUID
	UserID   uint
	CourseID uint

	issuer      CredentialSource
	submitter   CompletionSubmitter
	invalidator ProgressInvalidator
	log         *logger.Logger

	mu                   sync.Mutex
	state                State
	lesson               LessonRef
	visitID              uuid.UUID
	errKind              ErrorKind
	credential           *Credential
	wasPlayingWhenHidden bool
	coord                *coordinator
	lastProgress         *courseModels.CourseProgress
	lastEventAt          time.Time
}

// Snapshot is the session view returned to the client.
type Snapshot struct {
	ID              uuid.UUID                    `json:"id"`
	State           State                        `json:"state"`
	LessonID        uint                         `json:"lesson_id"`
	VisitID         uuid.UUID                    `json:"visit_id"`
	ErrorKind       ErrorKind                    `json:"error_kind,omitempty"`
	ErrorMessage    string                       `json:"error_message,omitempty"`
	ReadyToComplete bool                         `json:"ready_to_complete"`
	Completed       bool                         `json:"completed"`
	Credential      *Credential                  `json:"credential,omitempty"`
	Progress        *courseModels.CourseProgress `json:"progress,omitempty"`
}

func newSession(userID, courseID uint, issuer CredentialSource, submitter CompletionSubmitter, invalidator ProgressInvalidator, baseLog *logger.Logger) *Session {
	id := uuid.New()
	return &Session{
		ID:          id,
		UserID:      userID,
		CourseID:    courseID,
		issuer:      issuer,
		submitter:   submitter,
		invalidator: invalidator,
		log:         baseLog.With("session_id", id.String(), "user_id", userID, "course_id", courseID),
		state:       StateIdle,
		lastEventAt: time.Now(),
	}
}

// StartLesson switches the session to a lesson: full reset under a fresh
// visit, then the credential fetch. The reset happens before the fetch is
// dispatched, so a slow response from the previous lesson can never leak
// into this one.
func (s *Session) StartLesson(ctx context.Context, lesson LessonRef) {
	visit := s.beginVisit(lesson)
	s.fetchCredential(ctx, visit)
}

// Retry re-acquires a credential after an error. It is only valid as an
// explicit user action from the errored state; nothing retries silently.
func (s *Session) Retry(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateErrored {
		s.mu.Unlock()
		return fmt.Errorf("retry is only valid from the errored state")
	}
	s.visitID = uuid.New()
	s.state = StateLoading
	s.errKind = KindNone
	s.credential = nil
	s.lastEventAt = time.Now()
	visit := s.visitID
	s.mu.Unlock()

	s.fetchCredential(ctx, visit)
	return nil
}

func (s *Session) beginVisit(lesson LessonRef) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lesson = lesson
	s.visitID = uuid.New()
	s.state = StateLoading
	s.errKind = KindNone
	s.credential = nil
	s.wasPlayingWhenHidden = false
	s.coord = newCoordinator(lesson.ID, lesson.FinalLesson, lesson.TotalLessons)
	s.lastEventAt = time.Now()
	return s.visitID
}

func (s *Session) fetchCredential(ctx context.Context, visit uuid.UUID) {
	credential, err := s.issuer.Issue(ctx, s.UserID, s.CourseID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if visit != s.visitID {
		// The lesson changed while the fetch was in flight.
		return
	}
	if err != nil {
		s.state = StateErrored
		s.errKind = Classify(err)
		s.log.Warn("credential fetch failed", "kind", s.errKind, "error", err)
		return
	}
	s.credential = credential
}

// MediaReady reports that the media element decoded metadata under the
// issued credential.
func (s *Session) MediaReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastEventAt = time.Now()
	if s.state != StateLoading || s.credential == nil {
		return
	}
	s.state = StateReady
}

// MediaFailed reports that the media element could not initialize. The
// category comes pre-bucketed from the player; anything unrecognized lands
// in unknown.
func (s *Session) MediaFailed(category string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastEventAt = time.Now()
	switch ErrorKind(category) {
	case KindAuthorization, KindNotFound, KindConnectivity:
		s.errKind = ErrorKind(category)
	default:
		s.errKind = KindUnknown
	}
	s.state = StateErrored
	s.credential = nil
}

// Play starts or resumes playback.
func (s *Session) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastEventAt = time.Now()
	if s.state == StateReady || s.state == StatePaused {
		s.state = StatePlaying
	}
}

// Pause suspends playback.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastEventAt = time.Now()
	if s.state == StatePlaying {
		s.state = StatePaused
	}
}

// VisibilityHidden fires when the player leaves the viewport or the tab is
// hidden. Hidden playback must not keep consuming bandwidth or advancing
// progress, so an actively playing session is paused and remembered.
func (s *Session) VisibilityHidden() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastEventAt = time.Now()
	if s.state == StatePlaying {
		s.state = StatePaused
		s.wasPlayingWhenHidden = true
	} else {
		s.wasPlayingWhenHidden = false
	}
}

// VisibilityVisible resumes playback only if the hide interrupted active
// playback; a deliberately paused lesson stays paused.
func (s *Session) VisibilityVisible() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastEventAt = time.Now()
	if s.state == StatePaused && s.wasPlayingWhenHidden {
		s.state = StatePlaying
	}
	s.wasPlayingWhenHidden = false
}

// PositionUpdate feeds a playback position sample to the completion
// coordinator. Only positions observed while actually playing count toward
// the threshold. The stored lesson duration is authoritative when known; the
// client-reported duration only fills in for lessons ingested without one.
func (s *Session) PositionUpdate(position, duration float64) {
	s.mu.Lock()
	s.lastEventAt = time.Now()
	if s.state != StatePlaying || s.coord == nil {
		s.mu.Unlock()
		return
	}
	if s.lesson.DurationSec > 0 {
		duration = float64(s.lesson.DurationSec)
	}
	dispatch := s.coord.onPosition(position, duration)
	coordID := s.coord.id
	lessonID := s.coord.lessonID
	totalLessons := s.coord.totalLessons
	s.mu.Unlock()

	if dispatch {
		go s.submitCompletion(coordID, lessonID, totalLessons)
	}
}

// ConfirmCompletion is the explicit user confirmation required to complete
// the final lesson of a course.
func (s *Session) ConfirmCompletion() error {
	s.mu.Lock()
	s.lastEventAt = time.Now()
	if s.coord == nil || !s.coord.readyToComplete {
		s.mu.Unlock()
		return fmt.Errorf("lesson is not ready to complete")
	}
	dispatch := s.coord.confirm()
	coordID := s.coord.id
	lessonID := s.coord.lessonID
	totalLessons := s.coord.totalLessons
	s.mu.Unlock()

	if dispatch {
		go s.submitCompletion(coordID, lessonID, totalLessons)
	}
	return nil
}

// submitCompletion runs the mark-complete mutation off the event path and
// re-enters the machine with the result. The coordinator id pins the result
// to the visit that started it; a result for a stale visit is dropped.
func (s *Session) submitCompletion(coordID uuid.UUID, lessonID uint, totalLessons int) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	record, err := s.submitter.MarkComplete(ctx, s.UserID, s.CourseID, lessonID, totalLessons)

	s.mu.Lock()
	if s.coord == nil || s.coord.id != coordID {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.coord.rollback()
		s.mu.Unlock()
		s.log.Warn("lesson completion failed, will retry on next signal", "lesson_id", lessonID, "error", err)
		return
	}
	s.coord.commit()
	s.lastProgress = record
	s.mu.Unlock()

	// Revalidate-on-write: drop the cached view so lesson lists and headers
	// re-read the new state.
	s.invalidator.Invalidate(ctx, s.UserID, s.CourseID)
	s.log.Info("lesson completed", "lesson_id", lessonID, "percentage", record.Percentage)
}

// Close tears the session down. Whatever was playing stops: idle sessions
// hold no credential and accept no events.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
	s.credential = nil
	s.wasPlayingWhenHidden = false
}

// IdleSince reports whether the session has seen no events since the cutoff.
func (s *Session) IdleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastEventAt.Before(cutoff)
}

// State returns the current machine state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the client-facing view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:       s.ID,
		State:    s.state,
		LessonID: s.lesson.ID,
		VisitID:  s.visitID,
		Progress: s.lastProgress,
	}
	if s.errKind != KindNone {
		snap.ErrorKind = s.errKind
		snap.ErrorMessage = UserMessage(s.errKind)
	}
	if s.coord != nil {
		snap.ReadyToComplete = s.coord.readyToComplete && !s.coord.committed
		snap.Completed = s.coord.committed
	}
	if s.credential != nil {
		snap.Credential = s.credential
	}
	return snap
}

// Manager owns the live playback sessions of this process.
type Manager struct {
	issuer      CredentialSource
	submitter   CompletionSubmitter
	invalidator ProgressInvalidator
	log         *logger.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func NewManager(issuer CredentialSource, submitter CompletionSubmitter, invalidator ProgressInvalidator, baseLog *logger.Logger) *Manager {
	return &Manager{
		issuer:      issuer,
		submitter:   submitter,
		invalidator: invalidator,
		log:         baseLog.With("component", "PlaybackManager"),
		sessions:    make(map[uuid.UUID]*Session),
	}
}

// Start creates a session for a student on a course and begins the first
// lesson.
func (m *Manager) Start(ctx context.Context, userID, courseID uint, lesson LessonRef) *Session {
	session := newSession(userID, courseID, m.issuer, m.submitter, m.invalidator, m.log)

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()

	session.StartLesson(ctx, lesson)
	return session
}

// Get looks up a live session.
func (m *Manager) Get(id uuid.UUID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	return session, ok
}

// Close tears down and forgets a session.
func (m *Manager) Close(id uuid.UUID) {
	m.mu.Lock()
	session, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		session.Close()
	}
}

// SweepIdle closes sessions that have seen no events for maxIdle. Returns
// how many were closed.
func (m *Manager) SweepIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	m.mu.Lock()
	var stale []*Session
	for id, session := range m.sessions {
		if session.IdleSince(cutoff) {
			stale = append(stale, session)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, session := range stale {
		session.Close()
	}
	return len(stale)
}
