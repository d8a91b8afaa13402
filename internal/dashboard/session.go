package dashboard

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"evaldash/internal/evaluation"
	"evaldash/internal/notify"
	"evaldash/internal/professor"
)

// Source is the document-store read surface a dashboard session needs.
type Source interface {
	GetDeadline(ctx context.Context) (*evaluation.Deadline, error)
	ListResultsByEmail(ctx context.Context, email string) ([]evaluation.Result, error)
	CountStudents(ctx context.Context, sections, subjects []string) (int, error)
}

// Snapshot is the latest committed dashboard state, safe to read from
// any goroutine.
type Snapshot struct {
	Visibility      Visibility
	PeriodID        string
	DeadlineLoading bool
	Loading         bool
	Results         []evaluation.Result
	TotalStudents   int
	StudentsLoading bool
}

// Session owns one professor's dashboard state: the deadline watcher,
// the period-scoped result set, and the student count. All mutation
// happens on the Run goroutine; readers get snapshots.
type Session struct {
	email    string
	sections []string
	subjects []string

	source Source
	bus    notify.Bus
	tick   time.Duration

	watcher *Watcher

	// OnChange, when set before Run, is invoked on the run goroutine
	// for every visibility or period transition.
	OnChange func(Change)

	mu   sync.RWMutex
	snap Snapshot

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSession builds a session for a signed-in professor. now is
// injectable for tests and defaults to time.Now.
func NewSession(p *professor.Professor, source Source, bus notify.Bus, tick time.Duration, now func() time.Time) *Session {
	if tick <= 0 {
		tick = 5 * time.Second
	}
	return &Session{
		email:    p.Email,
		sections: p.HandledSections(),
		subjects: p.HandledSubjects(),
		source:   source,
		bus:      bus,
		tick:     tick,
		watcher:  NewWatcher(now),
		snap:     Snapshot{DeadlineLoading: true, Loading: true, StudentsLoading: true},
		done:     make(chan struct{}),
	}
}

// Snapshot returns the latest committed state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.snap
	snap.Results = append([]evaluation.Result(nil), s.snap.Results...)
	return snap
}

// Start launches the run loop. Stop (or the parent context) tears down
// every subscription and the tick.
func (s *Session) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
}

// Stop cancels the session and waits for the run loop to exit.
func (s *Session) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	metricActiveSessions.Inc()
	defer metricActiveSessions.Dec()

	s.countStudents(ctx)

	deadlineCh, err := s.bus.Subscribe(ctx, notify.TopicDeadline)
	if err != nil {
		// Fail open: a broken subscription must not hide results
		// indefinitely.
		log.Printf("deadline subscribe failed for %s: %v", s.email, err)
		s.commitChange(ctx, s.watcher.FailOpen())
	}

	d, err := s.source.GetDeadline(ctx)
	if err != nil {
		log.Printf("deadline fetch failed for %s: %v", s.email, err)
		s.commitChange(ctx, s.watcher.FailOpen())
	} else {
		s.commitChange(ctx, s.watcher.ApplyDeadline(d))
	}

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	var resultCh <-chan notify.Event
	var resultCancel context.CancelFunc
	defer func() {
		if resultCancel != nil {
			resultCancel()
		}
	}()
	resultCh, resultCancel = s.syncResultSub(ctx, resultCh, resultCancel)

	for {
		select {
		case <-ctx.Done():
			return

		case evt, ok := <-deadlineCh:
			if !ok {
				deadlineCh = nil
				s.commitChange(ctx, s.watcher.FailOpen())
				continue
			}
			s.commitChange(ctx, s.watcher.ApplyDeadline(decodeDeadline(evt.Body)))
			resultCh, resultCancel = s.syncResultSub(ctx, resultCh, resultCancel)

		case <-ticker.C:
			s.commitChange(ctx, s.watcher.ApplyTick())
			resultCh, resultCancel = s.syncResultSub(ctx, resultCh, resultCancel)

		case _, ok := <-resultCh:
			if !ok {
				// Transport error: stop the loading state but
				// keep the last-known result set.
				resultCh = nil
				s.setLoading(false)
				continue
			}
			s.reload(ctx)
		}
	}
}

// commitChange applies one watcher transition to the snapshot. A period
// change discards accumulated results before anything else happens, so
// no later batch can be filtered against a stale period.
func (s *Session) commitChange(ctx context.Context, ch Change) {
	if ch.PeriodChanged {
		s.setResults(nil, false)
	}

	s.mu.Lock()
	s.snap.Visibility = ch.Visibility
	s.snap.PeriodID = ch.PeriodID
	s.snap.DeadlineLoading = false
	s.mu.Unlock()

	// No transition, no downstream work: a tick that confirms the
	// current state must not re-query the store.
	if !ch.Changed {
		return
	}

	metricVisibilityFlips.Inc()
	log.Printf("deadline for %s: %s (period %q)", s.email, ch.Visibility, ch.PeriodID)
	if s.OnChange != nil {
		s.OnChange(ch)
	}

	if s.active() {
		s.reload(ctx)
	} else if ch.Visibility == ResultsHidden {
		// Evaluation ongoing: previous results are stale.
		s.setResults(nil, false)
	} else {
		s.setLoading(false)
	}
}

// active reports whether the aggregator should hold a subscription:
// results visible and a period to scope them to.
func (s *Session) active() bool {
	return s.watcher.Visibility() == ResultsVisible && s.watcher.PeriodID() != ""
}

// syncResultSub opens or closes the result subscription to match the
// active state.
func (s *Session) syncResultSub(ctx context.Context, ch <-chan notify.Event, cancel context.CancelFunc) (<-chan notify.Event, context.CancelFunc) {
	if s.active() {
		if ch != nil {
			return ch, cancel
		}
		subCtx, subCancel := context.WithCancel(ctx)
		sub, err := s.bus.Subscribe(subCtx, notify.ResultsTopic(s.email))
		if err != nil {
			log.Printf("result subscribe failed for %s: %v", s.email, err)
			subCancel()
			s.setLoading(false)
			return nil, nil
		}
		return sub, subCancel
	}
	if cancel != nil {
		cancel()
	}
	return nil, nil
}

// reload re-queries the professor's results and filters them to the
// active period. On failure the last-known set is retained.
func (s *Session) reload(ctx context.Context) {
	results, err := s.source.ListResultsByEmail(ctx, s.email)
	if err != nil {
		log.Printf("result query failed for %s: %v", s.email, err)
		s.setLoading(false)
		return
	}
	metricRecomputes.Inc()
	s.setResults(s.filter(results), false)
}

// filter keeps results belonging to the active period, counting records
// dropped for unrecognizable timestamps.
func (s *Session) filter(results []evaluation.Result) []evaluation.Result {
	period := s.watcher.PeriodID()
	start := s.watcher.PeriodStart()
	out := make([]evaluation.Result, 0, len(results))
	for _, res := range results {
		if res.BelongsToPeriod(period, start) {
			out = append(out, res)
			continue
		}
		if res.EvaluationPeriodID == "" && (res.CreatedAt != nil || res.SubmittedAt != nil) {
			if _, ok := res.Timestamp(); !ok {
				metricDroppedTimestamps.Inc()
			}
		}
	}
	return out
}

func (s *Session) countStudents(ctx context.Context) {
	count, err := s.source.CountStudents(ctx, s.sections, s.subjects)
	if err != nil {
		log.Printf("student count failed for %s: %v", s.email, err)
		count = 0
	}
	s.mu.Lock()
	s.snap.TotalStudents = count
	s.snap.StudentsLoading = false
	s.mu.Unlock()
}

func (s *Session) setResults(results []evaluation.Result, loading bool) {
	s.mu.Lock()
	s.snap.Results = results
	s.snap.Loading = loading
	s.mu.Unlock()
}

func (s *Session) setLoading(loading bool) {
	s.mu.Lock()
	s.snap.Loading = loading
	s.mu.Unlock()
}

// decodeDeadline parses a pushed deadline document. An empty or null
// body means the record was removed.
func decodeDeadline(body []byte) *evaluation.Deadline {
	if len(body) == 0 || string(body) == "null" {
		return nil
	}
	var d evaluation.Deadline
	if err := json.Unmarshal(body, &d); err != nil {
		log.Printf("bad deadline payload: %v", err)
		return nil
	}
	return &d
}

// Hub tracks one session per signed-in professor.
type Hub struct {
	source Source
	bus    notify.Bus
	tick   time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewHub creates the session registry.
func NewHub(source Source, bus notify.Bus, tick time.Duration) *Hub {
	return &Hub{source: source, bus: bus, tick: tick, sessions: make(map[string]*Session)}
}

// Start returns the professor's session, creating and launching one if
// needed.
func (h *Hub) Start(ctx context.Context, p *professor.Professor) *Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.sessions[p.Email]; ok {
		return s
	}
	s := NewSession(p, h.source, h.bus, h.tick, nil)
	h.sessions[p.Email] = s
	s.Start(ctx)
	return s
}

// Get returns the session for a professor email, or nil.
func (h *Hub) Get(email string) *Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions[email]
}

// Stop tears down one professor's session. No-op when absent.
func (h *Hub) Stop(email string) {
	h.mu.Lock()
	s := h.sessions[email]
	delete(h.sessions, email)
	h.mu.Unlock()
	if s != nil {
		s.Stop()
	}
}

// StopAll tears down every session, for shutdown.
func (h *Hub) StopAll() {
	h.mu.Lock()
	sessions := h.sessions
	h.sessions = make(map[string]*Session)
	h.mu.Unlock()
	for _, s := range sessions {
		s.Stop()
	}
}
