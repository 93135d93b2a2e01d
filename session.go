package main

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

const maxPlayers = 8

var playerColors = []string{
	"#3b82f6", "#ef4444", "#22c55e", "#eab308",
	"#8b5cf6", "#ec4899", "#14b8a6", "#f97316",
}

// easterEgg describes the cosmetic traits granted to a player joining under a
// recognized name, keyed by the settings toggle that enables it.
type easterEgg struct {
	key    string
	avatar int    // avatar override, 0 keeps the chosen one
	sound  string // sound broadcast on join
	traits []string
}

var easterEggTable = map[string]easterEgg{
	"tyson":       {key: "tyson", avatar: 12, traits: []string{"champion"}},
	"lorie":       {key: "lorie", traits: []string{"fart_button"}},
	"corine":      {key: "corine", traits: []string{"sewing_border", "sewing_button"}},
	"oceane":      {key: "oceane", sound: "wrestling-bell", traits: []string{"belt_border", "chair_button"}},
	"dimitri":     {key: "dimitri", sound: "war-horn", traits: []string{"shield_border", "axe_button"}},
	"jc":          {key: "jc", sound: "rocky-theme", traits: []string{"ring_border", "punch_button"}},
	"jean claude": {key: "jc", sound: "rocky-theme", traits: []string{"ring_border", "punch_button"}},
	"jean-claude": {key: "jc", sound: "rocky-theme", traits: []string{"ring_border", "punch_button"}},
	"marie":       {key: "marie", sound: "i-am-groot", traits: []string{"bark_border", "branch_button"}},
}

// lookupEasterEgg resolves the trait set for a display name against the
// enable table in settings.
func lookupEasterEgg(name string, enabled map[string]bool) (easterEgg, bool) {
	egg, ok := easterEggTable[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return easterEgg{}, false
	}
	if on, found := enabled[egg.key]; found && !on {
		return easterEgg{}, false
	}
	return egg, true
}

// Player is one participant in a room. The connection ID is volatile and
// rebound on reconnect; the token never changes once assigned.
type Player struct {
	conn           string
	token          string
	disconnected   bool
	disconnectedAt time.Time
	guess          *int // pending estimation answer
	usedMultiplier bool

	Name            string
	Avatar          int
	Color           string
	Score           int
	RoundScore      int
	GameScoreSimple int
	GameScoreBuzzer int
	GameScoreIntrus int
	Multiplier      bool
	Traits          []string
}

// stopOrEncoreState tracks the press-your-luck streak of the current
// turn-holder on an intruder question.
type stopOrEncoreState struct {
	holder      string
	revealed    []int
	accumulated int
}

// Session is one isolated game room. All fields are guarded by mu; methods
// with a Locked suffix assume it is held.
type Session struct {
	mu sync.Mutex

	code        string
	hostConn    string
	players     []*Player
	gameStarted bool

	modeKey        string // "", simple, buzzer, intrus, estimation, sudden_death
	question       *Question
	turnIndex      int
	answeredInMode int
	modeTarget     int
	infoText       string

	buzzerActive bool
	buzzerWinner string
	buzzedOut    map[string]bool

	soe stopOrEncoreState

	estimationOpen bool

	bank      *QuestionBank
	createdAt time.Time
}

func (s *Server) newSession(code string) *Session {
	return &Session{
		code:      code,
		turnIndex: -1,
		infoText:  "Waiting for players...",
		buzzedOut: make(map[string]bool),
		bank:      s.bankCopy(),
		createdAt: time.Now(),
	}
}

func (sess *Session) playerByConnLocked(conn string) *Player {
	for _, p := range sess.players {
		if p.conn == conn {
			return p
		}
	}
	return nil
}

func (sess *Session) playerByTokenLocked(token string) *Player {
	for _, p := range sess.players {
		if p.token == token {
			return p
		}
	}
	return nil
}

func (sess *Session) activePlayersLocked() []*Player {
	active := make([]*Player, 0, len(sess.players))
	for _, p := range sess.players {
		if !p.disconnected {
			active = append(active, p)
		}
	}
	return active
}

// nextPlayerIndexLocked walks the active subsequence of the roster in stable
// join order, wrapping. With no current turn-holder it lands on the first
// active player; disconnected players are skipped without reordering.
func (sess *Session) nextPlayerIndexLocked() int {
	active := sess.activePlayersLocked()
	if len(active) == 0 {
		return -1
	}

	if sess.turnIndex < 0 || sess.turnIndex >= len(sess.players) {
		return sess.indexOfLocked(active[0])
	}

	currentConn := sess.players[sess.turnIndex].conn
	currentIdx := -1
	for i, p := range active {
		if p.conn == currentConn {
			currentIdx = i
			break
		}
	}

	next := active[(currentIdx+1)%len(active)]

	return sess.indexOfLocked(next)
}

func (sess *Session) indexOfLocked(player *Player) int {
	for i, p := range sess.players {
		if p == player {
			return i
		}
	}
	return -1
}

func (sess *Session) turnHolderLocked() *Player {
	if sess.turnIndex < 0 || sess.turnIndex >= len(sess.players) {
		return nil
	}
	return sess.players[sess.turnIndex]
}

const roomCodeLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// newRoomCode generates a crypto-random 4-letter room code, retrying until it
// does not collide with an existing room. Caller must hold roomMu.
func (s *Server) newRoomCodeLocked() string {
	for {
		buf := make([]byte, 4)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 4)
		for i := range out {
			out[i] = roomCodeLetters[int(buf[i])%len(roomCodeLetters)]
		}
		code := string(out)

		if _, exists := s.rooms[code]; !exists {
			return code
		}
	}
}

func newToken() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}
	return hex.EncodeToString(buf)
}

// createRoom registers a fresh session under a new unique code.
func (s *Server) createRoom(hostConn string) *Session {
	s.roomMu.Lock()
	defer s.roomMu.Unlock()

	code := s.newRoomCodeLocked()
	sess := s.newSession(code)
	sess.hostConn = hostConn
	s.rooms[code] = sess

	logf(s.cfg, "ROOMS: Created room %s", code)

	return sess
}

func (s *Server) findRoom(code string) *Session {
	s.roomMu.Lock()
	defer s.roomMu.Unlock()

	return s.rooms[code]
}

func (s *Server) removeRoom(code string) {
	s.roomMu.Lock()
	defer s.roomMu.Unlock()

	if _, ok := s.rooms[code]; ok {
		delete(s.rooms, code)
		logf(s.cfg, "ROOMS: Removed room %s", code)
	}
}

// roomList is the derived lobby view.
func (s *Server) roomList() map[string]roomListEntry {
	s.roomMu.Lock()
	sessions := make([]*Session, 0, len(s.rooms))
	for _, sess := range s.rooms {
		sessions = append(sessions, sess)
	}
	s.roomMu.Unlock()

	list := make(map[string]roomListEntry, len(sessions))
	for _, sess := range sessions {
		sess.mu.Lock()
		list[sess.code] = roomListEntry{
			PlayerCount: len(sess.activePlayersLocked()),
			IsStarted:   sess.gameStarted,
		}
		sess.mu.Unlock()
	}

	return list
}

// join adds a player to a session. The caller receives the created player or
// one of the roster sentinels.
func (s *Server) join(sess *Session, conn, name string, avatar int) (*Player, error) {
	s.dataMu.Lock()
	eggs := s.settings.EasterEggs
	s.dataMu.Unlock()

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.gameStarted {
		return nil, errAlreadyStarted
	}
	if len(sess.activePlayersLocked()) >= maxPlayers {
		return nil, errRoomFull
	}

	egg, special := lookupEasterEgg(name, eggs)
	if special && egg.avatar != 0 {
		avatar = egg.avatar
	}

	player := &Player{
		conn:   conn,
		token:  newToken(),
		Name:   name,
		Avatar: avatar,
		Color:  playerColors[len(sess.players)%len(playerColors)],
		Traits: egg.traits,
	}
	sess.players = append(sess.players, player)

	logf(s.cfg, "ROOMS: Player %q joined %s", name, sess.code)

	return player, nil
}

// reconnect rebinds a returning player's connection by token.
func (s *Server) reconnect(sess *Session, token, conn string) (*Player, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	player := sess.playerByTokenLocked(token)
	if player == nil {
		return nil, errInvalidToken
	}

	player.conn = conn
	player.disconnected = false
	player.disconnectedAt = time.Time{}

	logf(s.cfg, "ROOMS: Player %q reconnected to %s", player.Name, sess.code)

	return player, nil
}

// markDisconnected handles a dropped connection. Before the game starts the
// player is removed outright (and the room torn down if now empty); mid-game
// the seat is kept under a disconnect flag for the sweep to collect.
func (s *Server) markDisconnected(sess *Session, conn string) bool {
	sess.mu.Lock()

	player := sess.playerByConnLocked(conn)
	if player == nil {
		sess.mu.Unlock()
		return false
	}

	if sess.gameStarted {
		player.disconnected = true
		player.disconnectedAt = time.Now()
		logf(s.cfg, "ROOMS: Player %q marked disconnected in %s", player.Name, sess.code)

		// Losing a seat can leave the current estimation question fully
		// answered by everyone still present.
		s.maybeResolveEstimationLocked(sess)

		sess.mu.Unlock()
		return true
	}

	for i, p := range sess.players {
		if p == player {
			sess.players = append(sess.players[:i], sess.players[i+1:]...)
			break
		}
	}
	logf(s.cfg, "ROOMS: Player %q left %s", player.Name, sess.code)

	empty := len(sess.players) == 0
	code := sess.code
	sess.mu.Unlock()

	if empty {
		s.removeRoom(code)
	}

	return true
}

// sweepExpired prunes players disconnected longer than the grace period.
// Pruning never rewinds turn state; the engine tolerates a shrinking roster.
func (s *Server) sweepExpired(sess *Session) bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	cutoff := time.Now().Add(-s.cfg.playerGrace)

	kept := sess.players[:0]
	for _, p := range sess.players {
		if p.disconnected && p.disconnectedAt.Before(cutoff) {
			logf(s.cfg, "ROOMS: Swept player %q from %s", p.Name, sess.code)
			continue
		}
		kept = append(kept, p)
	}

	changed := len(kept) < len(sess.players)
	sess.players = kept

	return changed
}

// sweepLoop runs the periodic disconnect sweep across all rooms.
func (s *Server) sweepLoop(done <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.roomMu.Lock()
			sessions := make([]*Session, 0, len(s.rooms))
			for _, sess := range s.rooms {
				sessions = append(sessions, sess)
			}
			s.roomMu.Unlock()

			for _, sess := range sessions {
				if s.sweepExpired(sess) {
					sess.mu.Lock()
					s.broadcastStateLocked(sess)
					sess.mu.Unlock()
					s.broadcastAdmins()
					s.broadcastRoomList()
				}
			}
		}
	}
}
