package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evaldash/internal/evaluation"
	"evaldash/internal/notify"
	"evaldash/internal/professor"
)

// fakeSource is an in-memory Source with injectable failures.
type fakeSource struct {
	mu       sync.Mutex
	deadline *evaluation.Deadline
	results  []evaluation.Result
	students int

	deadlineErr error
	resultsErr  error

	listCalls int
}

func (f *fakeSource) GetDeadline(ctx context.Context) (*evaluation.Deadline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deadlineErr != nil {
		return nil, f.deadlineErr
	}
	return f.deadline, nil
}

func (f *fakeSource) ListResultsByEmail(ctx context.Context, email string) ([]evaluation.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.resultsErr != nil {
		return nil, f.resultsErr
	}
	return append([]evaluation.Result(nil), f.results...), nil
}

func (f *fakeSource) CountStudents(ctx context.Context, sections, subjects []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.students, nil
}

func (f *fakeSource) set(fn func(*fakeSource)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeSource) queries() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

// failBus refuses every subscription, simulating a broken transport.
type failBus struct{}

func (failBus) Publish(ctx context.Context, evt notify.Event) error { return nil }
func (failBus) Subscribe(ctx context.Context, topic string) (<-chan notify.Event, error) {
	return nil, errors.New("transport down")
}

func testProfessor() *professor.Professor {
	return &professor.Professor{
		ID:    "prof-1",
		Name:  "Ada",
		Email: "ada@u.edu",
		SubjectSections: []professor.SubjectSection{
			{Subject: "Algorithms", Sections: []string{"CS-3A"}},
		},
	}
}

func tagged(period string) evaluation.Result {
	return evaluation.Result{ProfessorEmail: "ada@u.edu", IsComplete: true, EvaluationPeriodID: period}
}

func deadlineDoc(t *testing.T, d evaluation.Deadline) []byte {
	t.Helper()
	b, err := json.Marshal(d)
	require.NoError(t, err)
	return b
}

func startSession(t *testing.T, src *fakeSource, bus notify.Bus, now func() time.Time) (*Session, chan Change) {
	t.Helper()
	changes := make(chan Change, 16)
	s := NewSession(testProfessor(), src, bus, 50*time.Millisecond, now)
	s.OnChange = func(ch Change) { changes <- ch }

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	s.Start(ctx)
	t.Cleanup(s.Stop)
	return s, changes
}

func waitChange(t *testing.T, changes chan Change) Change {
	t.Helper()
	select {
	case ch := <-changes:
		return ch
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a state change")
		return Change{}
	}
}

func TestSessionInitialLoad(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{
		deadline: &evaluation.Deadline{
			StartDate: now.Add(-96 * time.Hour),
			EndDate:   now.Add(-time.Hour),
			PeriodID:  "p1",
		},
		results:  []evaluation.Result{tagged("p1"), tagged("p1"), tagged("old")},
		students: 42,
	}

	s, changes := startSession(t, src, notify.NewInMemory(), func() time.Time { return now })

	ch := waitChange(t, changes)
	assert.Equal(t, ResultsVisible, ch.Visibility)
	assert.Equal(t, "p1", ch.PeriodID)

	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return !snap.Loading && !snap.StudentsLoading
	}, 2*time.Second, 10*time.Millisecond)

	snap := s.Snapshot()
	assert.Len(t, snap.Results, 2)
	assert.Equal(t, 42, snap.TotalStudents)
	assert.False(t, snap.DeadlineLoading)
}

func TestSessionHidesDuringOngoingWindow(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{
		deadline: &evaluation.Deadline{
			StartDate: now.Add(-time.Hour),
			EndDate:   now.Add(time.Hour),
			PeriodID:  "p1",
		},
		results: []evaluation.Result{tagged("p1")},
	}

	s, changes := startSession(t, src, notify.NewInMemory(), func() time.Time { return now })

	ch := waitChange(t, changes)
	assert.Equal(t, ResultsHidden, ch.Visibility)

	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return !snap.Loading && len(snap.Results) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSessionPeriodChangeClearsResultsFirst(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{
		deadline: &evaluation.Deadline{
			StartDate: now.Add(-96 * time.Hour),
			EndDate:   now.Add(-time.Hour),
			PeriodID:  "p1",
		},
		results: []evaluation.Result{tagged("p1"), tagged("p1")},
	}
	bus := notify.NewInMemory()

	s, changes := startSession(t, src, bus, func() time.Time { return now })
	waitChange(t, changes)
	require.Eventually(t, func() bool {
		return len(s.Snapshot().Results) == 2
	}, 2*time.Second, 10*time.Millisecond)

	// An administrator opens a new period. The backlog in the store is
	// still tagged with the old one.
	next := evaluation.Deadline{
		StartDate: now.Add(-time.Minute),
		EndDate:   now.Add(48 * time.Hour),
		PeriodID:  "p2",
	}
	require.NoError(t, bus.Publish(context.Background(), notify.Event{
		Topic: notify.TopicDeadline,
		Body:  deadlineDoc(t, next),
	}))

	ch := waitChange(t, changes)
	assert.True(t, ch.PeriodChanged)
	assert.Equal(t, "p2", ch.PeriodID)
	assert.Equal(t, ResultsHidden, ch.Visibility)

	// Nothing tagged p1 may survive into the new period.
	require.Eventually(t, func() bool {
		return len(s.Snapshot().Results) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSessionResultPushReload(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{
		deadline: &evaluation.Deadline{
			StartDate: now.Add(-96 * time.Hour),
			EndDate:   now.Add(-time.Hour),
			PeriodID:  "p1",
		},
		results: []evaluation.Result{tagged("p1")},
	}
	bus := notify.NewInMemory()

	s, changes := startSession(t, src, bus, func() time.Time { return now })
	waitChange(t, changes)
	require.Eventually(t, func() bool {
		return len(s.Snapshot().Results) == 1
	}, 2*time.Second, 10*time.Millisecond)

	src.set(func(f *fakeSource) {
		f.results = append(f.results, tagged("p1"))
	})
	require.NoError(t, bus.Publish(context.Background(), notify.Event{
		Topic: notify.ResultsTopic("ada@u.edu"),
		Body:  []byte("result-2"),
	}))

	require.Eventually(t, func() bool {
		return len(s.Snapshot().Results) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSessionTickWithoutChangeDoesNotRequery(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{
		deadline: &evaluation.Deadline{
			StartDate: now.Add(-96 * time.Hour),
			EndDate:   now.Add(-time.Hour),
			PeriodID:  "p1",
		},
		results: []evaluation.Result{tagged("p1")},
	}

	// 20ms tick against a long-passed deadline: visibility never moves.
	changes := make(chan Change, 16)
	s := NewSession(testProfessor(), src, notify.NewInMemory(), 20*time.Millisecond, func() time.Time { return now })
	s.OnChange = func(ch Change) { changes <- ch }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	waitChange(t, changes)
	require.Eventually(t, func() bool {
		return len(s.Snapshot().Results) == 1
	}, 2*time.Second, 10*time.Millisecond)
	base := src.queries()

	// Let a dozen ticks fire; none of them may hit the store again.
	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, base, src.queries())

	select {
	case ch := <-changes:
		t.Fatalf("unexpected state change during steady ticks: %+v", ch)
	default:
	}
}

func TestSessionFailsOpen(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{deadlineErr: errors.New("store down")}

	s, changes := startSession(t, src, failBus{}, func() time.Time { return now })

	ch := waitChange(t, changes)
	assert.Equal(t, ResultsVisible, ch.Visibility)

	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.Visibility == ResultsVisible && !snap.DeadlineLoading
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSessionRetainsResultsOnQueryFailure(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{
		deadline: &evaluation.Deadline{
			StartDate: now.Add(-96 * time.Hour),
			EndDate:   now.Add(-time.Hour),
			PeriodID:  "p1",
		},
		results: []evaluation.Result{tagged("p1")},
	}
	bus := notify.NewInMemory()

	s, changes := startSession(t, src, bus, func() time.Time { return now })
	waitChange(t, changes)
	require.Eventually(t, func() bool {
		return len(s.Snapshot().Results) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// The store starts failing; a push-triggered reload must keep the
	// last good set instead of blanking the dashboard.
	src.set(func(f *fakeSource) { f.resultsErr = errors.New("store down") })
	require.NoError(t, bus.Publish(context.Background(), notify.Event{
		Topic: notify.ResultsTopic("ada@u.edu"),
		Body:  []byte("result-2"),
	}))

	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return !snap.Loading && len(snap.Results) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHubReusesSessions(t *testing.T) {
	src := &fakeSource{}
	hub := NewHub(src, notify.NewInMemory(), 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := testProfessor()
	s1 := hub.Start(ctx, p)
	s2 := hub.Start(ctx, p)
	assert.Same(t, s1, s2)
	assert.Same(t, s1, hub.Get(p.Email))

	hub.Stop(p.Email)
	assert.Nil(t, hub.Get(p.Email))

	// Stopping an absent session is harmless.
	hub.Stop(p.Email)
}
