package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconnectViewPerMode(t *testing.T) {
	s, _ := newTestServer(t)
	sess := s.createRoom("host")
	players := addPlayers(t, s, sess, "a", "b")

	sess.mu.Lock()
	defer sess.mu.Unlock()

	view, _ := s.reconnectViewLocked(sess, players[0])
	assert.Equal(t, "wait", view, "pre-game reconnect waits in the lobby")

	sess.gameStarted = true
	sess.modeKey = "simple"
	sess.turnIndex = 0
	setChoiceQuestion(sess, 0)

	view, data := s.reconnectViewLocked(sess, players[0])
	assert.Equal(t, "question", view)
	assert.True(t, data.(questionViewData).IsMyTurn)

	view, data = s.reconnectViewLocked(sess, players[1])
	assert.Equal(t, "question", view)
	assert.False(t, data.(questionViewData).IsMyTurn)

	sess.modeKey = "buzzer"
	sess.buzzerWinner = ""
	view, _ = s.reconnectViewLocked(sess, players[0])
	assert.Equal(t, "buzzer", view)

	sess.buzzerWinner = players[1].conn
	view, _ = s.reconnectViewLocked(sess, players[0])
	assert.Equal(t, "wait", view)

	view, data = s.reconnectViewLocked(sess, players[1])
	assert.Equal(t, "question", view)
	assert.True(t, data.(questionViewData).IsMyTurn)

	sess.modeKey = "intrus"
	sess.soe = stopOrEncoreState{holder: players[0].conn, revealed: []int{2}}
	view, data = s.reconnectViewLocked(sess, players[0])
	assert.Equal(t, "question", view)
	assert.Equal(t, []int{2}, data.(questionViewData).Revealed)
}

func TestSnapshotNames(t *testing.T) {
	s, _ := newTestServer(t)
	sess := s.createRoom("host")
	players := addPlayers(t, s, sess, "a", "b")

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.turnIndex = 1
	sess.buzzerWinner = players[0].conn

	snap := sess.snapshotLocked()
	assert.Equal(t, "b", snap.TurnPlayer)
	assert.Equal(t, "a", snap.BuzzerWinner)
	require.Len(t, snap.Players, 2)
	assert.Equal(t, players[0].conn, snap.Players[0].ID)
}

func TestAdminLoginGate(t *testing.T) {
	s, _ := newTestServer(t)
	c := &client{id: "admin-conn", send: make(chan any, 8)}

	s.handleAdminLogin(c, clientMessage{Password: "wrong"})
	assert.False(t, s.isAdmin(c.id))

	s.handleAdminLogin(c, clientMessage{Password: "admin"})
	assert.True(t, s.isAdmin(c.id))
}

func TestAdminSaveSettingsMerges(t *testing.T) {
	s, _ := newTestServer(t)

	raw := json.RawMessage(`{"game_title": "Updated", "points": {"simple": 30}}`)
	require.NoError(t, s.adminSaveSettings(raw))

	s.dataMu.Lock()
	assert.Equal(t, "Updated", s.settings.GameTitle)
	assert.Equal(t, 30, s.settings.Points.Simple)
	assert.Equal(t, 10, s.settings.Points.Buzzer)
	s.dataMu.Unlock()

	_, err := os.Stat(filepath.Join(s.cfg.dataDir, settingsFile))
	assert.NoError(t, err)

	assert.Error(t, s.adminSaveSettings(json.RawMessage(`{nope`)))
}

func TestAdminDeleteHistory(t *testing.T) {
	s, _ := newTestServer(t)

	w := finishedPlayer("alice", 10)
	s.recordGame("AAAA", []*Player{w}, w)
	s.recordGame("BBBB", []*Player{w}, w)

	assert.Error(t, s.adminDeleteHistory(nil))
	assert.Error(t, s.adminDeleteHistory(intPtr(5)))

	require.NoError(t, s.adminDeleteHistory(intPtr(0)))

	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	require.Len(t, s.history, 1)
	assert.Equal(t, "AAAA", s.history[0].Room)
}

func TestAdminEditBankRefreshesUnstartedRooms(t *testing.T) {
	s, _ := newTestServer(t)
	idle := s.createRoom("host-a")
	running := s.createRoom("host-b")

	running.mu.Lock()
	running.gameStarted = true
	running.mu.Unlock()

	before := len(idle.bank.Estimation)

	msg := clientMessage{
		Type:     "admin_add_question",
		Kind:     "estimation",
		Question: json.RawMessage(`{"text": "new", "answer": 7, "tolerance": 2}`),
	}
	require.NoError(t, s.adminEditBank(msg))

	idle.mu.Lock()
	assert.Equal(t, before+1, len(idle.bank.Estimation), "idle rooms pick up the new bank")
	idle.mu.Unlock()

	running.mu.Lock()
	assert.Equal(t, before, len(running.bank.Estimation), "running games keep their copy")
	running.mu.Unlock()

	// The pool file is persisted.
	data, err := os.ReadFile(filepath.Join(s.cfg.dataDir, estimationQuestionsFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"new"`)
}

func TestAdminToggleQuestion(t *testing.T) {
	s, _ := newTestServer(t)

	msg := clientMessage{
		Type:  "admin_toggle_question",
		Kind:  "simple",
		Theme: "science",
		Index: intPtr(0),
	}
	require.NoError(t, s.adminEditBank(msg))

	s.dataMu.Lock()
	assert.False(t, questionActive(s.bank.Simple["science"][0].Active))
	s.dataMu.Unlock()

	require.NoError(t, s.adminEditBank(msg))

	s.dataMu.Lock()
	assert.True(t, questionActive(s.bank.Simple["science"][0].Active))
	s.dataMu.Unlock()
}

func TestAdminDeleteQuestionBounds(t *testing.T) {
	s, _ := newTestServer(t)

	msg := clientMessage{
		Type:  "admin_delete_question",
		Kind:  "simple",
		Theme: "science",
		Index: intPtr(99),
	}
	assert.Error(t, s.adminEditBank(msg))

	msg.Index = intPtr(0)
	require.NoError(t, s.adminEditBank(msg))

	s.dataMu.Lock()
	assert.Len(t, s.bank.Simple["science"], 2)
	s.dataMu.Unlock()

	assert.Error(t, s.adminEditBank(clientMessage{Type: "admin_delete_question", Kind: "bogus"}))
}

func TestHandleStartGameRequiresHost(t *testing.T) {
	s, sched := newTestServer(t)
	sess := s.createRoom("host-conn")
	players := addPlayers(t, s, sess, "a", "b")

	host := &client{id: "host-conn", room: sess.code}
	imposter := &client{id: players[0].conn, room: sess.code}

	s.handleStartGame(imposter)
	sess.mu.Lock()
	assert.False(t, sess.gameStarted)
	sess.mu.Unlock()

	s.handleStartGame(host)
	sess.mu.Lock()
	assert.True(t, sess.gameStarted)
	assert.Equal(t, "simple", sess.modeKey)
	sess.mu.Unlock()

	assert.Equal(t, 1, sched.pending())

	// Starting twice is a no-op.
	s.handleStartGame(host)
	assert.Equal(t, 1, sched.pending())
}

func TestAdminSnapshotContents(t *testing.T) {
	s, _ := newTestServer(t)
	sess := s.createRoom("host")
	addPlayers(t, s, sess, "a")

	w := finishedPlayer("alice", 10)
	s.recordGame("AAAA", []*Player{w}, w)

	snap := s.adminSnapshot()

	assert.Equal(t, "admin_state", snap.Type)
	require.Contains(t, snap.Rooms, sess.code)
	assert.Len(t, snap.History, 1)
	assert.Equal(t, 1, snap.Dashboard["total_games"])
	assert.Equal(t, 1, snap.Dashboard["total_players"])
}
