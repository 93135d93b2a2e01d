package main

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testScheduler replaces Server.after with a queue the test drains by hand,
// so dramatic pauses resolve instantly and deterministically.
type testScheduler struct {
	mu    sync.Mutex
	queue []func()
}

func (ts *testScheduler) after(_ time.Duration, fn func()) {
	ts.mu.Lock()
	ts.queue = append(ts.queue, fn)
	ts.mu.Unlock()
}

func (ts *testScheduler) pending() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.queue)
}

func (ts *testScheduler) runNext() bool {
	ts.mu.Lock()
	if len(ts.queue) == 0 {
		ts.mu.Unlock()
		return false
	}
	fn := ts.queue[0]
	ts.queue = ts.queue[1:]
	ts.mu.Unlock()

	fn()
	return true
}

func (ts *testScheduler) runAll() int {
	ran := 0
	for ts.runNext() {
		ran++
	}
	return ran
}

func boolPtr(b bool) *bool { return &b }

func intPtr(i int) *int { return &i }

func testBank() *QuestionBank {
	simple := map[string][]ChoiceQuestion{
		"science": {
			{Text: "s1", Answers: []Answer{{Text: "a", Correct: true}, {Text: "b"}, {Text: "c"}, {Text: "d"}}},
			{Text: "s2", Answers: []Answer{{Text: "a"}, {Text: "b", Correct: true}, {Text: "c"}, {Text: "d"}}},
			{Text: "s3", Answers: []Answer{{Text: "a"}, {Text: "b"}, {Text: "c", Correct: true}, {Text: "d"}}},
		},
		"history": {
			{Text: "h1", Answers: []Answer{{Text: "a", Correct: true}, {Text: "b"}, {Text: "c"}, {Text: "d"}}},
			{Text: "h2", Answers: []Answer{{Text: "a", Correct: true}, {Text: "b"}, {Text: "c"}, {Text: "d"}}},
		},
	}

	intrus := []IntrusQuestion{
		{Theme: "capitals", Answers: []Answer{{Text: "paris"}, {Text: "rome"}, {Text: "lyon", Intruder: true}, {Text: "berlin"}}},
		{Theme: "fruits", Answers: []Answer{{Text: "apple"}, {Text: "carrot", Intruder: true}, {Text: "pear"}, {Text: "plum"}}},
	}

	estimation := []EstimationQuestion{
		{Text: "e1", Answer: 100, Tolerance: 20},
		{Text: "e2", Answer: 50, Tolerance: 10},
	}

	return &QuestionBank{Simple: simple, Intrus: intrus, Estimation: estimation}
}

func newTestServer(t *testing.T) (*Server, *testScheduler) {
	t.Helper()

	cfg := &Config{
		dataDir:       t.TempDir(),
		playerGrace:   300 * time.Second,
		sweepInterval: time.Minute,
	}

	sched := &testScheduler{}

	s := &Server{
		cfg:      cfg,
		settings: defaultSettings(),
		bank:     testBank(),
		stats:    make(map[string]*PlayerStats),
		history:  []HistoryEntry{},
		rooms:    make(map[string]*Session),
		conns:    make(map[string]*client),
		admins:   make(map[string]bool),
		after:    sched.after,
	}

	return s, sched
}

// addPlayers joins one player per name using a synthetic connection ID.
func addPlayers(t *testing.T, s *Server, sess *Session, names ...string) []*Player {
	t.Helper()

	players := make([]*Player, 0, len(names))
	for i, name := range names {
		p, err := s.join(sess, fmt.Sprintf("conn-%d", i), name, 1)
		require.NoError(t, err)
		players = append(players, p)
	}

	return players
}

func startGame(s *Server, sess *Session) {
	sess.mu.Lock()
	sess.gameStarted = true
	sess.modeKey = ""
	sess.turnIndex = -1
	s.startNextModeLocked(sess)
	sess.mu.Unlock()
}
