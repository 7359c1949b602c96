package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lms/logger"
	courseModels "lms/models/course"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeIssuer struct {
	mu   sync.Mutex
	err  error
	cred Credential
}

func (f *fakeIssuer) Issue(ctx context.Context, userID, courseID uint) (*Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	cred := f.cred
	return &cred, nil
}

func (f *fakeIssuer) setError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fakeSubmitter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeSubmitter) MarkComplete(ctx context.Context, userID, courseID, lessonID uint, totalLessons int) (*courseModels.CourseProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	record := &courseModels.CourseProgress{
		UserID:             userID,
		CourseID:           courseID,
		LastAccessedLesson: lessonID,
		TotalLessons:       totalLessons,
	}
	record.SetCompletedLessonIDs([]uint{lessonID})
	record.Percentage = 33
	return record, nil
}

func (f *fakeSubmitter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeSubmitter) setError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fakeInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeInvalidator) Invalidate(ctx context.Context, userID, courseID uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
}

func testManager(issuer CredentialSource, submitter CompletionSubmitter) *Manager {
	return NewManager(issuer, submitter, &fakeInvalidator{}, logger.NewNop())
}

func playingSession(t *testing.T, m *Manager, lesson LessonRef) *Session {
	t.Helper()
	session := m.Start(context.Background(), 1, 10, lesson)
	session.MediaReady()
	session.Play()
	require.Equal(t, StatePlaying, session.State())
	return session
}

func TestSessionHappyPath(t *testing.T) {
	m := testManager(&fakeIssuer{}, &fakeSubmitter{})
	session := m.Start(context.Background(), 1, 10, LessonRef{ID: 101, DurationSec: 300, TotalLessons: 3})

	// The credential fetch runs synchronously in Start; the session sits in
	// loading until the player reports media readiness.
	require.Equal(t, StateLoading, session.State())
	snap := session.Snapshot()
	require.NotNil(t, snap.Credential)

	session.MediaReady()
	require.Equal(t, StateReady, session.State())

	session.Play()
	require.Equal(t, StatePlaying, session.State())

	session.Pause()
	require.Equal(t, StatePaused, session.State())

	session.Play()
	require.Equal(t, StatePlaying, session.State())
}

func TestSessionMediaReadyRequiresCredential(t *testing.T) {
	issuer := &fakeIssuer{err: ErrConnectivity}
	m := testManager(issuer, &fakeSubmitter{})
	session := m.Start(context.Background(), 1, 10, LessonRef{ID: 101, TotalLessons: 3})

	require.Equal(t, StateErrored, session.State())
	snap := session.Snapshot()
	require.Equal(t, KindConnectivity, snap.ErrorKind)
	require.Nil(t, snap.Credential)

	// A stray media_ready from the player must not revive an errored visit.
	session.MediaReady()
	require.Equal(t, StateErrored, session.State())
}

func TestSessionRetryOnlyFromErrored(t *testing.T) {
	issuer := &fakeIssuer{err: ErrConnectivity}
	m := testManager(issuer, &fakeSubmitter{})
	session := m.Start(context.Background(), 1, 10, LessonRef{ID: 101, TotalLessons: 3})
	require.Equal(t, StateErrored, session.State())

	issuer.setError(nil)
	require.NoError(t, session.Retry(context.Background()))
	require.Equal(t, StateLoading, session.State())
	require.NotNil(t, session.Snapshot().Credential)

	session.MediaReady()
	require.Error(t, session.Retry(context.Background()))
}

func TestSessionMediaFailedClassifies(t *testing.T) {
	m := testManager(&fakeIssuer{}, &fakeSubmitter{})
	session := m.Start(context.Background(), 1, 10, LessonRef{ID: 101, TotalLessons: 3})

	session.MediaFailed("connectivity")
	snap := session.Snapshot()
	require.Equal(t, StateErrored, snap.State)
	require.Equal(t, KindConnectivity, snap.ErrorKind)
	require.Nil(t, snap.Credential)

	require.NoError(t, session.Retry(context.Background()))
	session.MediaFailed("something the player made up")
	require.Equal(t, KindUnknown, session.Snapshot().ErrorKind)
}

func TestSessionCompletesOncePastThreshold(t *testing.T) {
	submitter := &fakeSubmitter{}
	m := testManager(&fakeIssuer{}, submitter)
	session := playingSession(t, m, LessonRef{ID: 101, DurationSec: 300, TotalLessons: 3})

	session.PositionUpdate(100, 300)
	require.Zero(t, submitter.callCount())

	session.PositionUpdate(271, 300)
	require.Eventually(t, func() bool {
		return session.Snapshot().Completed
	}, 2*time.Second, 10*time.Millisecond)

	// Later samples past the threshold must not fire again.
	session.PositionUpdate(280, 300)
	session.PositionUpdate(300, 300)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, submitter.callCount())

	require.NotNil(t, session.Snapshot().Progress)
}

func TestSessionTrustsStoredLessonDuration(t *testing.T) {
	submitter := &fakeSubmitter{}
	m := testManager(&fakeIssuer{}, submitter)
	session := playingSession(t, m, LessonRef{ID: 101, DurationSec: 300, TotalLessons: 3})

	// A client reporting a short duration cannot complete early.
	session.PositionUpdate(50, 50)
	time.Sleep(20 * time.Millisecond)
	require.Zero(t, submitter.callCount())

	// And an inflated one cannot mask a genuine crossing.
	session.PositionUpdate(295, 10000)
	require.Eventually(t, func() bool {
		return session.Snapshot().Completed
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, 1, submitter.callCount())
}

func TestSessionIgnoresPositionsWhileNotPlaying(t *testing.T) {
	submitter := &fakeSubmitter{}
	m := testManager(&fakeIssuer{}, submitter)
	session := m.Start(context.Background(), 1, 10, LessonRef{ID: 101, TotalLessons: 3})
	session.MediaReady()

	// Ready but not playing: the sample does not count.
	session.PositionUpdate(290, 300)
	time.Sleep(20 * time.Millisecond)
	require.Zero(t, submitter.callCount())

	session.Play()
	session.Pause()
	session.PositionUpdate(290, 300)
	time.Sleep(20 * time.Millisecond)
	require.Zero(t, submitter.callCount())
}

func TestSessionRetriesCompletionOnNextSignalAfterFailure(t *testing.T) {
	submitter := &fakeSubmitter{err: errors.New("db down")}
	m := testManager(&fakeIssuer{}, submitter)
	session := playingSession(t, m, LessonRef{ID: 101, TotalLessons: 3})

	session.PositionUpdate(290, 300)
	require.Eventually(t, func() bool {
		return submitter.callCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.False(t, session.Snapshot().Completed)

	// No timer-driven retry: nothing happens until the next signal.
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, submitter.callCount())

	submitter.setError(nil)
	session.PositionUpdate(295, 300)
	require.Eventually(t, func() bool {
		return session.Snapshot().Completed
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, 2, submitter.callCount())
}

func TestSessionFinalLessonGatedBehindConfirmation(t *testing.T) {
	submitter := &fakeSubmitter{}
	m := testManager(&fakeIssuer{}, submitter)
	session := playingSession(t, m, LessonRef{ID: 103, FinalLesson: true, TotalLessons: 3})

	session.PositionUpdate(290, 300)
	time.Sleep(20 * time.Millisecond)
	require.Zero(t, submitter.callCount())

	snap := session.Snapshot()
	require.True(t, snap.ReadyToComplete)
	require.False(t, snap.Completed)

	require.NoError(t, session.ConfirmCompletion())
	require.Eventually(t, func() bool {
		return session.Snapshot().Completed
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, 1, submitter.callCount())
	require.False(t, session.Snapshot().ReadyToComplete)
}

func TestSessionConfirmBeforeReadyFails(t *testing.T) {
	m := testManager(&fakeIssuer{}, &fakeSubmitter{})
	session := playingSession(t, m, LessonRef{ID: 103, FinalLesson: true, TotalLessons: 3})

	require.Error(t, session.ConfirmCompletion())
}

func TestSessionVisibilityPausesAndResumes(t *testing.T) {
	m := testManager(&fakeIssuer{}, &fakeSubmitter{})
	session := playingSession(t, m, LessonRef{ID: 101, TotalLessons: 3})

	session.VisibilityHidden()
	require.Equal(t, StatePaused, session.State())

	session.VisibilityVisible()
	require.Equal(t, StatePlaying, session.State())

	// A deliberate pause survives a hide/show cycle.
	session.Pause()
	session.VisibilityHidden()
	session.VisibilityVisible()
	require.Equal(t, StatePaused, session.State())
}

func TestSessionSwitchLessonResetsVisit(t *testing.T) {
	submitter := &fakeSubmitter{}
	m := testManager(&fakeIssuer{}, submitter)
	session := playingSession(t, m, LessonRef{ID: 101, TotalLessons: 3})

	firstVisit := session.Snapshot().VisitID

	session.StartLesson(context.Background(), LessonRef{ID: 102, TotalLessons: 3})
	snap := session.Snapshot()
	require.Equal(t, StateLoading, snap.State)
	require.Equal(t, uint(102), snap.LessonID)
	require.NotEqual(t, firstVisit, snap.VisitID)
	require.False(t, snap.Completed)
	require.False(t, snap.ReadyToComplete)

	// Positions from the previous lesson no longer count: playing has to be
	// re-established first.
	session.PositionUpdate(290, 300)
	time.Sleep(20 * time.Millisecond)
	require.Zero(t, submitter.callCount())
}

func TestSessionDropsStaleCredentialResult(t *testing.T) {
	m := testManager(&fakeIssuer{}, &fakeSubmitter{})
	session := m.Start(context.Background(), 1, 10, LessonRef{ID: 101, TotalLessons: 3})

	staleVisit := uuid.New()

	// A fetch result carrying a visit id the session no longer owns must be
	// dropped, even when it is an error.
	session.issuer = &fakeIssuer{err: ErrConnectivity}
	session.fetchCredential(context.Background(), staleVisit)
	require.Equal(t, StateLoading, session.State())
	require.NotNil(t, session.Snapshot().Credential)
}

func TestSessionDropsStaleCompletionResult(t *testing.T) {
	submitter := &fakeSubmitter{}
	m := testManager(&fakeIssuer{}, submitter)
	session := playingSession(t, m, LessonRef{ID: 101, TotalLessons: 3})

	// A mutation result pinned to a coordinator from an earlier visit is
	// dropped on arrival.
	session.submitCompletion(uuid.New(), 101, 3)
	require.Equal(t, 1, submitter.callCount())
	require.False(t, session.Snapshot().Completed)
	require.Nil(t, session.Snapshot().Progress)
}

func TestSessionCloseStopsPlayback(t *testing.T) {
	m := testManager(&fakeIssuer{}, &fakeSubmitter{})
	session := playingSession(t, m, LessonRef{ID: 101, TotalLessons: 3})

	m.Close(session.ID)
	require.Equal(t, StateIdle, session.State())
	require.Nil(t, session.Snapshot().Credential)

	_, ok := m.Get(session.ID)
	require.False(t, ok)
}

func TestManagerSweepIdle(t *testing.T) {
	m := testManager(&fakeIssuer{}, &fakeSubmitter{})
	fresh := m.Start(context.Background(), 1, 10, LessonRef{ID: 101, TotalLessons: 3})
	stale := m.Start(context.Background(), 2, 10, LessonRef{ID: 101, TotalLessons: 3})

	stale.mu.Lock()
	stale.lastEventAt = time.Now().Add(-time.Hour)
	stale.mu.Unlock()

	require.Equal(t, 1, m.SweepIdle(30*time.Minute))

	_, ok := m.Get(fresh.ID)
	require.True(t, ok)
	_, ok = m.Get(stale.ID)
	require.False(t, ok)
	require.Equal(t, StateIdle, stale.State())
}
