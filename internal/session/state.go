package session

import (
	"sync"
	"time"

	"github.com/abhisek/mentalmath/internal/problemgen"
	"github.com/abhisek/mentalmath/internal/timer"
)

// Attempt is one scored problem of a session.
type Attempt struct {
	ProblemText   string
	UserAnswer    *int // nil when the problem timed out
	CorrectAnswer int
	IsCorrect     bool
	TimeTaken     time.Duration
	AnsweredAt    time.Time
}

// TimedOut reports whether the attempt was recorded by the countdown.
func (a Attempt) TimedOut() bool {
	return a.UserAnswer == nil
}

// Session is the live state of one user's run. It is only touched with the
// user's lock held.
type Session struct {
	ID                string
	UserID            int64
	Level             int
	Target            int
	SecondsPerProblem int

	// Index is the 1-based number of the problem on screen. While a problem
	// is awaiting an answer, len(Attempts) == Index-1.
	Index    int
	Current  *problemgen.Problem
	IssuedAt time.Time

	Attempts  []Attempt
	Correct   int
	StartedAt time.Time

	Paused    bool
	PausedAt  time.Time
	Remaining time.Duration // countdown left when paused

	timer timer.Handle
	token uint64
}

func (s *Session) limit() time.Duration {
	return time.Duration(s.SecondsPerProblem) * time.Second
}

func (s *Session) ref() ProblemRef {
	return ProblemRef{Session: s.ID[:min(refSessionLen, len(s.ID))], Index: s.Index}
}

func (s *Session) cancelTimer() {
	if s.timer != nil {
		s.timer.Cancel()
		s.timer = nil
	}
}

// Snapshot is a read-only copy of a live session.
type Snapshot struct {
	ID        string
	Level     int
	Target    int
	Index     int
	Current   problemgen.Problem
	Attempts  []Attempt
	Correct   int
	Paused    bool
	StartedAt time.Time
}

func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		ID:        s.ID,
		Level:     s.Level,
		Target:    s.Target,
		Index:     s.Index,
		Attempts:  append([]Attempt(nil), s.Attempts...),
		Correct:   s.Correct,
		Paused:    s.Paused,
		StartedAt: s.StartedAt,
	}
	if s.Current != nil {
		snap.Current = *s.Current
	}
	return snap
}

// lastRun remembers the outcome of a user's most recent finished session for
// the repeat and next-level prompts.
type lastRun struct {
	Level      int
	CanAdvance bool

	seq uint64
}

// DefaultMaxLastRuns bounds how many users' last runs a Table remembers.
const DefaultMaxLastRuns = 10000

// userLock serializes one user's session changes. refs counts the holder
// and the waiters; the Table drops the entry when it reaches zero.
type userLock struct {
	mu   sync.Mutex
	refs int
}

type lastEntry struct {
	userID int64
	seq    uint64
}

// Table holds the live sessions of all users, a lock for every user with an
// operation in progress, and the most recent finished runs.
type Table struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	locks    map[int64]*userLock

	last    map[int64]lastRun
	order   []lastEntry // oldest first; may hold superseded entries
	seq     uint64
	maxLast int
}

// NewTable creates an empty session table.
func NewTable() *Table {
	return &Table{
		sessions: make(map[int64]*Session),
		locks:    make(map[int64]*userLock),
		last:     make(map[int64]lastRun),
		maxLast:  DefaultMaxLastRuns,
	}
}

// lockUser acquires the lock serializing all session changes for userID.
// Every call must be paired with unlockUser.
func (t *Table) lockUser(userID int64) *userLock {
	t.mu.Lock()
	l, ok := t.locks[userID]
	if !ok {
		l = &userLock{}
		t.locks[userID] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()
	return l
}

func (t *Table) unlockUser(userID int64, l *userLock) {
	l.mu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(t.locks, userID)
	}
}

func (t *Table) get(userID int64) (*Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[userID]
	return s, ok
}

func (t *Table) put(s *Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[s.UserID] = s
}

// remove detaches and returns the user's session, or nil.
func (t *Table) remove(userID int64) *Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.sessions[userID]
	delete(t.sessions, userID)
	return s
}

// setLast records r for userID, forgetting the oldest runs beyond maxLast.
func (t *Table) setLast(userID int64, r lastRun) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	r.seq = t.seq
	t.last[userID] = r
	t.order = append(t.order, lastEntry{userID: userID, seq: r.seq})

	for len(t.last) > t.maxLast && len(t.order) > 0 {
		oldest := t.order[0]
		t.order = t.order[1:]
		if cur, ok := t.last[oldest.userID]; ok && cur.seq == oldest.seq {
			delete(t.last, oldest.userID)
		}
	}
	if len(t.order) > 2*len(t.last)+16 {
		t.compactOrder()
	}
}

// compactOrder drops superseded entries from order. Caller holds t.mu.
func (t *Table) compactOrder() {
	live := make([]lastEntry, 0, len(t.last))
	for _, e := range t.order {
		if cur, ok := t.last[e.userID]; ok && cur.seq == e.seq {
			live = append(live, e)
		}
	}
	t.order = live
}

func (t *Table) lastRun(userID int64) (lastRun, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.last[userID]
	return r, ok
}

// Len returns the number of live sessions.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}
