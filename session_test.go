package main

import (
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomCodeFormat(t *testing.T) {
	s, _ := newTestServer(t)

	pattern := regexp.MustCompile(`^[A-Z]{4}$`)
	codes := make(map[string]bool)

	for i := 0; i < 50; i++ {
		sess := s.createRoom("host")
		assert.Regexp(t, pattern, sess.code)
		assert.False(t, codes[sess.code], "duplicate room code %s", sess.code)
		codes[sess.code] = true
	}
}

func TestJoinAssignsColorsByJoinOrder(t *testing.T) {
	s, _ := newTestServer(t)
	sess := s.createRoom("host")

	players := addPlayers(t, s, sess, "alice", "bob", "carol")

	for i, p := range players {
		assert.Equal(t, playerColors[i], p.Color)
		assert.NotEmpty(t, p.token)
	}
	assert.NotEqual(t, players[0].token, players[1].token)
}

func TestJoinRoomFull(t *testing.T) {
	s, _ := newTestServer(t)
	sess := s.createRoom("host")

	for i := 0; i < maxPlayers; i++ {
		_, err := s.join(sess, fmt.Sprintf("conn-%d", i), fmt.Sprintf("p%d", i), 1)
		require.NoError(t, err)
	}

	_, err := s.join(sess, "conn-late", "late", 1)
	assert.ErrorIs(t, err, errRoomFull)
}

func TestJoinAfterStart(t *testing.T) {
	s, _ := newTestServer(t)
	sess := s.createRoom("host")
	addPlayers(t, s, sess, "alice")

	sess.mu.Lock()
	sess.gameStarted = true
	sess.mu.Unlock()

	_, err := s.join(sess, "conn-late", "late", 1)
	assert.ErrorIs(t, err, errAlreadyStarted)
}

func TestNextPlayerIndexRoundRobin(t *testing.T) {
	s, _ := newTestServer(t)
	sess := s.createRoom("host")
	addPlayers(t, s, sess, "a", "b", "c")

	sess.mu.Lock()
	defer sess.mu.Unlock()

	var order []string
	for i := 0; i < 6; i++ {
		idx := sess.nextPlayerIndexLocked()
		require.NotEqual(t, -1, idx)
		sess.turnIndex = idx
		order = append(order, sess.players[idx].Name)
	}

	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c"}, order)
}

func TestNextPlayerIndexSkipsDisconnected(t *testing.T) {
	s, _ := newTestServer(t)
	sess := s.createRoom("host")
	players := addPlayers(t, s, sess, "a", "b", "c")

	sess.mu.Lock()
	defer sess.mu.Unlock()

	players[1].disconnected = true

	var order []string
	for i := 0; i < 4; i++ {
		idx := sess.nextPlayerIndexLocked()
		require.NotEqual(t, -1, idx)
		sess.turnIndex = idx
		order = append(order, sess.players[idx].Name)
	}

	assert.Equal(t, []string{"a", "c", "a", "c"}, order)
}

func TestReconnectPreservesIdentity(t *testing.T) {
	s, _ := newTestServer(t)
	sess := s.createRoom("host")
	players := addPlayers(t, s, sess, "alice")
	alice := players[0]

	sess.mu.Lock()
	sess.gameStarted = true
	alice.Score = 42
	sess.mu.Unlock()

	require.True(t, s.markDisconnected(sess, alice.conn))

	returned, err := s.reconnect(sess, alice.token, "conn-new")
	require.NoError(t, err)

	assert.Same(t, alice, returned)
	assert.Equal(t, "conn-new", returned.conn)
	assert.Equal(t, 42, returned.Score)
	assert.False(t, returned.disconnected)

	sess.mu.Lock()
	assert.Len(t, sess.players, 1)
	sess.mu.Unlock()

	_, err = s.reconnect(sess, "bogus", "conn-other")
	assert.ErrorIs(t, err, errInvalidToken)
}

func TestDisconnectBeforeStartRemovesPlayer(t *testing.T) {
	s, _ := newTestServer(t)
	sess := s.createRoom("host")
	players := addPlayers(t, s, sess, "alice", "bob")

	require.True(t, s.markDisconnected(sess, players[0].conn))

	sess.mu.Lock()
	require.Len(t, sess.players, 1)
	assert.Equal(t, "bob", sess.players[0].Name)
	sess.mu.Unlock()

	// Last player leaving tears the room down.
	require.True(t, s.markDisconnected(sess, players[1].conn))
	assert.Nil(t, s.findRoom(sess.code))
}

func TestSweepExpiredPrunesOnlyStale(t *testing.T) {
	s, _ := newTestServer(t)
	sess := s.createRoom("host")
	players := addPlayers(t, s, sess, "stale", "fresh", "online")

	sess.mu.Lock()
	sess.gameStarted = true
	players[0].disconnected = true
	players[0].disconnectedAt = time.Now().Add(-10 * time.Minute)
	players[1].disconnected = true
	players[1].disconnectedAt = time.Now()
	sess.mu.Unlock()

	assert.True(t, s.sweepExpired(sess))

	sess.mu.Lock()
	names := make([]string, 0, len(sess.players))
	for _, p := range sess.players {
		names = append(names, p.Name)
	}
	sess.mu.Unlock()

	assert.Equal(t, []string{"fresh", "online"}, names)
	assert.False(t, s.sweepExpired(sess))
}

func TestLookupEasterEgg(t *testing.T) {
	enabled := defaultSettings().EasterEggs

	egg, ok := lookupEasterEgg("  Tyson ", enabled)
	require.True(t, ok)
	assert.Equal(t, 12, egg.avatar)
	assert.Contains(t, egg.traits, "champion")

	for _, variant := range []string{"jc", "Jean Claude", "jean-claude"} {
		egg, ok := lookupEasterEgg(variant, enabled)
		require.True(t, ok, variant)
		assert.Equal(t, "jc", egg.key)
	}

	_, ok = lookupEasterEgg("nobody", enabled)
	assert.False(t, ok)

	disabled := map[string]bool{"tyson": false}
	_, ok = lookupEasterEgg("tyson", disabled)
	assert.False(t, ok)
}

func TestJoinAppliesEasterEggAvatar(t *testing.T) {
	s, _ := newTestServer(t)
	sess := s.createRoom("host")

	p, err := s.join(sess, "conn-t", "Tyson", 3)
	require.NoError(t, err)

	assert.Equal(t, 12, p.Avatar)
	assert.Contains(t, p.Traits, "champion")
}

func TestRoomList(t *testing.T) {
	s, _ := newTestServer(t)
	a := s.createRoom("host-a")
	b := s.createRoom("host-b")
	addPlayers(t, s, a, "alice", "bob")

	b.mu.Lock()
	b.gameStarted = true
	b.mu.Unlock()

	list := s.roomList()
	require.Len(t, list, 2)
	assert.Equal(t, roomListEntry{PlayerCount: 2, IsStarted: false}, list[a.code])
	assert.Equal(t, roomListEntry{PlayerCount: 0, IsStarted: true}, list[b.code])
}
