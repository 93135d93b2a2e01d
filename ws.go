package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// Server owns all process state. Lock ordering is roomMu, then a session's mu,
// then dataMu; connMu is a leaf lock and never held across another.
type Server struct {
	cfg *Config

	dataMu   sync.Mutex
	settings *Settings
	bank     *QuestionBank
	stats    map[string]*PlayerStats
	history  []HistoryEntry

	roomMu sync.Mutex
	rooms  map[string]*Session

	connMu sync.Mutex
	conns  map[string]*client
	admins map[string]bool

	// after posts a delayed continuation. Tests swap in a recording
	// implementation; production uses time.AfterFunc.
	after func(time.Duration, func())
}

func newServer(cfg *Config) *Server {
	s := &Server{
		cfg:      cfg,
		settings: loadSettings(cfg),
		bank:     loadQuestionBank(cfg),
		rooms:    make(map[string]*Session),
		conns:    make(map[string]*client),
		admins:   make(map[string]bool),
		after: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
	}
	s.loadStats()

	return s
}

// bankCopy hands out a private deep copy of the canonical bank for a session.
func (s *Server) bankCopy() *QuestionBank {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()

	return s.bank.deepCopy()
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan any

	// room is the code this connection is bound to. Only the connection's
	// own read loop touches it.
	room string
}

// clientMessage is the single inbound envelope; which fields matter depends
// on Type.
type clientMessage struct {
	Type string `json:"type"`

	Room          string `json:"room,omitempty"`
	Name          string `json:"name,omitempty"`
	Avatar        int    `json:"avatar,omitempty"`
	Token         string `json:"token,omitempty"`
	AnswerIndex   *int   `json:"answer_index,omitempty"`
	UseMultiplier bool   `json:"use_multiplier,omitempty"`
	Choice        string `json:"choice,omitempty"` // "stop" or "encore"
	Value         *int   `json:"value,omitempty"`  // estimation guess
	Effect        string `json:"effect,omitempty"`
	Emoji         string `json:"emoji,omitempty"`
	Password      string `json:"password,omitempty"`

	// Admin payloads.
	Settings     json.RawMessage `json:"settings,omitempty"`
	Kind         string          `json:"kind,omitempty"` // "simple", "intrus" or "estimation"
	Theme        string          `json:"theme,omitempty"`
	Index        *int            `json:"index,omitempty"`
	Question     json.RawMessage `json:"question,omitempty"`
	Stats        json.RawMessage `json:"stats,omitempty"`
	HistoryIndex *int            `json:"history_index,omitempty"`
}

// Outbound message envelopes.

type errorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

type stateMessage struct {
	Type  string        `json:"type"` // "state"
	State *roomSnapshot `json:"state"`
}

type playerViewMessage struct {
	Type  string        `json:"type"` // "player_view"
	View  string        `json:"view"` // "wait", "question", "buzzer", "estimation", "stop_or_encore"
	Data  any           `json:"data"`
	State *roomSnapshot `json:"state"`
}

type modeTitleMessage struct {
	Type  string `json:"type"` // "mode_title"
	Title string `json:"title"`
}

type endGameMessage struct {
	Type   string          `json:"type"` // "end_game"
	Winner *playerSnapshot `json:"winner"`
}

type feedbackMessage struct {
	Type    string `json:"type"` // "answer_feedback"
	Correct bool   `json:"correct"`
}

type revealAnswerMessage struct {
	Type         string `json:"type"` // "reveal_answer"
	CorrectIndex int    `json:"correct_index"`
	ChosenIndex  int    `json:"chosen_index"`
	Correct      bool   `json:"correct"`
}

type revealIntruderMessage struct {
	Type          string `json:"type"` // "reveal_answer"
	IntruderFound bool   `json:"intruder_found"`
	ChosenIndex   int    `json:"chosen_index"`
}

type playerAnsweredMessage struct {
	Type   string `json:"type"` // "player_answered"
	Player string `json:"player"`
}

type revealEstimationMessage struct {
	Type     string    `json:"type"` // "reveal_estimation"
	Question *Question `json:"question"`
	Answers  any       `json:"answers"`
}

type roomCreatedMessage struct {
	Type  string        `json:"type"` // "room_created"
	Room  string        `json:"room"`
	State *roomSnapshot `json:"state"`
}

type joinedMessage struct {
	Type  string         `json:"type"` // "joined"
	Room  string         `json:"room"`
	Token string         `json:"token"`
	You   playerSnapshot `json:"you"`
	State *roomSnapshot  `json:"state"`
}

type reconnectedMessage struct {
	Type  string        `json:"type"` // "reconnected"
	Room  string        `json:"room"`
	View  string        `json:"view"`
	Data  any           `json:"data"`
	State *roomSnapshot `json:"state"`
}

type roomListMessage struct {
	Type  string                   `json:"type"` // "room_list"
	Rooms map[string]roomListEntry `json:"rooms"`
}

type playSoundMessage struct {
	Type  string `json:"type"` // "play_sound"
	Sound string `json:"sound"`
}

type championJoinedMessage struct {
	Type string `json:"type"` // "champion_joined"
	Name string `json:"name"`
}

type effectMessage struct {
	Type   string `json:"type"` // "effect"
	Effect string `json:"effect"`
	From   string `json:"from"`
}

type reactionMessage struct {
	Type  string `json:"type"` // "reaction"
	Emoji string `json:"emoji"`
	From  string `json:"from"`
}

type playerStatsMessage struct {
	Type     string       `json:"type"` // "player_stats"
	Stats    *PlayerStats `json:"stats"`
	Trophies []Trophy     `json:"trophies"`
}

type adminStateMessage struct {
	Type      string                   `json:"type"` // "admin_state"
	Rooms     map[string]*roomSnapshot `json:"rooms"`
	Settings  *Settings                `json:"settings"`
	History   []HistoryEntry           `json:"history"`
	Dashboard map[string]any           `json:"dashboard"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logf(s.cfg, "SERVE: Upgrade failed: %v", err)
		return
	}

	c := &client{
		id:   newToken(),
		conn: conn,
		send: make(chan any, 32),
	}

	s.connMu.Lock()
	s.conns[c.id] = c
	s.connMu.Unlock()

	s.sendTo(c.id, roomListMessage{Type: "room_list", Rooms: s.roomList()})

	go c.writePump()
	s.readPump(c)
}

func (c *client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (s *Server) readPump(c *client) {
	defer s.dropClient(c)

	for {
		var msg clientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		s.dispatch(c, msg)
	}
}

// sendTo queues a message for one connection. A full send buffer drops the
// message rather than blocking game progress on a slow client. The send
// happens under connMu so it cannot race the channel close in dropClient.
func (s *Server) sendTo(connID string, msg any) {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	c := s.conns[connID]
	if c == nil {
		return
	}

	select {
	case c.send <- msg:
	default:
		logf(s.cfg, "SERVE: Dropped message to slow client %s", connID)
	}
}

func (s *Server) sendError(connID, message string) {
	s.sendTo(connID, errorMessage{Type: "error", Message: message})
}

// broadcastRoomLocked sends msg to every player connection of the room plus
// the host screen. Caller holds the room lock.
func (s *Server) broadcastRoomLocked(sess *Session, msg any) {
	if sess.hostConn != "" {
		s.sendTo(sess.hostConn, msg)
	}
	for _, p := range sess.players {
		if !p.disconnected {
			s.sendTo(p.conn, msg)
		}
	}
}

func (s *Server) broadcastStateLocked(sess *Session) {
	s.broadcastRoomLocked(sess, stateMessage{Type: "state", State: sess.snapshotLocked()})
}

// broadcastRoomList pushes the lobby view to every connection. Never call
// while holding a room lock.
func (s *Server) broadcastRoomList() {
	msg := roomListMessage{Type: "room_list", Rooms: s.roomList()}

	s.connMu.Lock()
	ids := make([]string, 0, len(s.conns))
	for id := range s.conns {
		ids = append(ids, id)
	}
	s.connMu.Unlock()

	for _, id := range ids {
		s.sendTo(id, msg)
	}
}

// broadcastAdmins pushes a fresh admin snapshot to logged-in admin
// connections. Never call while holding a room lock.
func (s *Server) broadcastAdmins() {
	s.connMu.Lock()
	ids := make([]string, 0, len(s.admins))
	for id := range s.admins {
		ids = append(ids, id)
	}
	s.connMu.Unlock()

	if len(ids) == 0 {
		return
	}

	msg := s.adminSnapshot()
	for _, id := range ids {
		s.sendTo(id, msg)
	}
}

func (s *Server) adminSnapshot() adminStateMessage {
	s.roomMu.Lock()
	sessions := make([]*Session, 0, len(s.rooms))
	for _, sess := range s.rooms {
		sessions = append(sessions, sess)
	}
	s.roomMu.Unlock()

	rooms := make(map[string]*roomSnapshot, len(sessions))
	for _, sess := range sessions {
		sess.mu.Lock()
		rooms[sess.code] = sess.snapshotLocked()
		sess.mu.Unlock()
	}

	s.dataMu.Lock()
	settings := *s.settings
	history := append([]HistoryEntry(nil), s.history...)
	dashboard := map[string]any{
		"total_games":   len(s.history),
		"total_players": len(s.stats),
		"leaderboards":  s.leaderboardsLocked(),
	}
	s.dataMu.Unlock()

	return adminStateMessage{
		Type:      "admin_state",
		Rooms:     rooms,
		Settings:  &settings,
		History:   history,
		Dashboard: dashboard,
	}
}

func (s *Server) isAdmin(connID string) bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	return s.admins[connID]
}

// dropClient handles the end of a connection: the seat is surrendered or
// flagged depending on game state, and everyone watching is told.
func (s *Server) dropClient(c *client) {
	_ = c.conn.Close()

	s.connMu.Lock()
	delete(s.conns, c.id)
	delete(s.admins, c.id)
	close(c.send)
	s.connMu.Unlock()

	if c.room == "" {
		return
	}

	sess := s.findRoom(c.room)
	if sess == nil {
		return
	}

	changed := s.markDisconnected(sess, c.id)

	if s.findRoom(c.room) == sess {
		sess.mu.Lock()
		abandoned := false
		if sess.hostConn == c.id {
			sess.hostConn = ""
			changed = true
			abandoned = !sess.gameStarted && len(sess.players) == 0
		}
		s.broadcastStateLocked(sess)
		sess.mu.Unlock()

		// A host leaving an empty, unstarted room tears it down.
		if abandoned {
			s.removeRoom(sess.code)
		}
	}

	if changed {
		s.broadcastAdmins()
		s.broadcastRoomList()
	}
}

func (s *Server) dispatch(c *client, msg clientMessage) {
	switch msg.Type {
	case "create_room":
		s.handleCreateRoom(c)
	case "host_join":
		s.handleHostJoin(c, msg)
	case "join":
		s.handleJoin(c, msg)
	case "reconnect":
		s.handleReconnect(c, msg)
	case "start_game":
		s.handleStartGame(c)
	case "answer":
		if msg.AnswerIndex != nil {
			s.handleAnswer(c.id, c.room, *msg.AnswerIndex, msg.UseMultiplier)
		}
	case "buzz":
		s.handleBuzz(c.id, c.room)
	case "stop_or_encore":
		s.handleStopOrEncore(c.id, c.room, msg.Choice)
	case "estimation":
		s.handleEstimation(c.id, c.room, msg.Value)
	case "effect":
		s.handleEffect(c, msg)
	case "reaction":
		s.handleReaction(c, msg)
	case "get_stats":
		s.handleGetStats(c, msg)
	case "admin_login":
		s.handleAdminLogin(c, msg)
	case "admin_save_settings",
		"admin_save_stats",
		"admin_delete_history",
		"admin_add_question",
		"admin_delete_question",
		"admin_update_question",
		"admin_toggle_question":
		if !s.isAdmin(c.id) {
			s.sendError(c.id, "admin login required")
			return
		}
		s.handleAdminOp(c, msg)
	case "admin_get_stats":
		if !s.isAdmin(c.id) {
			s.sendError(c.id, "admin login required")
			return
		}
		s.handleAdminGetStats(c)
	default:
		// ignore unknown types
	}
}

func (s *Server) handleCreateRoom(c *client) {
	sess := s.createRoom(c.id)
	c.room = sess.code

	sess.mu.Lock()
	snap := sess.snapshotLocked()
	sess.mu.Unlock()

	s.sendTo(c.id, roomCreatedMessage{Type: "room_created", Room: sess.code, State: snap})

	go s.broadcastRoomList()
	go s.broadcastAdmins()
}

// handleHostJoin rebinds a host screen to an existing room, typically after
// the display reloaded.
func (s *Server) handleHostJoin(c *client, msg clientMessage) {
	sess := s.findRoom(normalizeRoomCode(msg.Room))
	if sess == nil {
		s.sendError(c.id, errRoomNotFound.Error())
		return
	}
	c.room = sess.code

	sess.mu.Lock()
	sess.hostConn = c.id
	snap := sess.snapshotLocked()
	sess.mu.Unlock()

	s.sendTo(c.id, roomCreatedMessage{Type: "room_created", Room: sess.code, State: snap})
}

func normalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *Server) handleJoin(c *client, msg clientMessage) {
	name := strings.TrimSpace(msg.Name)
	if name == "" {
		s.sendError(c.id, "a name is required")
		return
	}

	sess := s.findRoom(normalizeRoomCode(msg.Room))
	if sess == nil {
		s.sendError(c.id, errRoomNotFound.Error())
		return
	}

	player, err := s.join(sess, c.id, name, msg.Avatar)
	if err != nil {
		s.sendError(c.id, err.Error())
		return
	}
	c.room = sess.code

	s.dataMu.Lock()
	eggs := s.settings.EasterEggs
	s.dataMu.Unlock()
	egg, special := lookupEasterEgg(name, eggs)

	sess.mu.Lock()
	you := snapshotPlayer(player)
	token := player.token
	snap := sess.snapshotLocked()
	s.broadcastRoomLocked(sess, stateMessage{Type: "state", State: snap})
	if special {
		if egg.sound != "" {
			s.broadcastRoomLocked(sess, playSoundMessage{Type: "play_sound", Sound: egg.sound})
		}
		if egg.key == "tyson" {
			s.broadcastRoomLocked(sess, championJoinedMessage{Type: "champion_joined", Name: player.Name})
		}
	}
	sess.mu.Unlock()

	s.sendTo(c.id, joinedMessage{Type: "joined", Room: sess.code, Token: token, You: you, State: snap})

	go s.broadcastRoomList()
	go s.broadcastAdmins()
}

func (s *Server) handleReconnect(c *client, msg clientMessage) {
	sess := s.findRoom(normalizeRoomCode(msg.Room))
	if sess == nil {
		s.sendError(c.id, errRoomNotFound.Error())
		return
	}

	player, err := s.reconnect(sess, msg.Token, c.id)
	if err != nil {
		s.sendError(c.id, err.Error())
		return
	}
	c.room = sess.code

	sess.mu.Lock()
	view, data := s.reconnectViewLocked(sess, player)
	snap := sess.snapshotLocked()
	s.broadcastRoomLocked(sess, stateMessage{Type: "state", State: snap})
	sess.mu.Unlock()

	s.sendTo(c.id, reconnectedMessage{Type: "reconnected", Room: sess.code, View: view, Data: data, State: snap})

	go s.broadcastRoomList()
	go s.broadcastAdmins()
}

// handleStartGame launches the first mode. Only the host screen may start,
// and only once.
func (s *Server) handleStartGame(c *client) {
	sess := s.findRoom(c.room)
	if sess == nil {
		return
	}

	sess.mu.Lock()
	if sess.gameStarted || sess.hostConn != c.id || len(sess.players) == 0 {
		sess.mu.Unlock()
		return
	}
	sess.gameStarted = true
	sess.modeKey = ""
	sess.turnIndex = -1

	logf(s.cfg, "GAME: Room %s started with %d players", sess.code, len(sess.players))

	s.startNextModeLocked(sess)
	sess.mu.Unlock()

	go s.broadcastRoomList()
	go s.broadcastAdmins()
}

// handleEffect rebroadcasts a cosmetic trigger. Effects never mutate game
// state, so no snapshot follows.
func (s *Server) handleEffect(c *client, msg clientMessage) {
	sess := s.findRoom(c.room)
	if sess == nil || msg.Effect == "" {
		return
	}

	sess.mu.Lock()
	player := sess.playerByConnLocked(c.id)
	if player != nil {
		s.broadcastRoomLocked(sess, effectMessage{Type: "effect", Effect: msg.Effect, From: player.Name})
	}
	sess.mu.Unlock()
}

func (s *Server) handleReaction(c *client, msg clientMessage) {
	sess := s.findRoom(c.room)
	if sess == nil || msg.Emoji == "" {
		return
	}

	sess.mu.Lock()
	player := sess.playerByConnLocked(c.id)
	if player != nil {
		s.broadcastRoomLocked(sess, reactionMessage{Type: "reaction", Emoji: msg.Emoji, From: player.Name})
	}
	sess.mu.Unlock()
}

// handleGetStats answers a stats card lookup. Unknown names get an empty
// record rather than an error.
func (s *Server) handleGetStats(c *client, msg clientMessage) {
	name := strings.TrimSpace(msg.Name)
	if name == "" {
		return
	}

	s.dataMu.Lock()
	st, ok := s.stats[statsKey(name)]
	var out PlayerStats
	if ok {
		out = *st
	} else {
		out = PlayerStats{Name: name}
	}
	s.dataMu.Unlock()

	s.sendTo(c.id, playerStatsMessage{Type: "player_stats", Stats: &out, Trophies: trophies(&out)})
}

func (s *Server) handleAdminLogin(c *client, msg clientMessage) {
	s.dataMu.Lock()
	password := s.settings.AdminPassword
	s.dataMu.Unlock()

	if msg.Password != password {
		logf(s.cfg, "ADMIN: Failed login from %s", c.id)
		s.sendError(c.id, "wrong password")
		return
	}

	s.connMu.Lock()
	s.admins[c.id] = true
	s.connMu.Unlock()

	logf(s.cfg, "ADMIN: Login from %s", c.id)

	s.sendTo(c.id, s.adminSnapshot())
}

func (s *Server) handleAdminGetStats(c *client) {
	s.dataMu.Lock()
	stats := make(map[string]*PlayerStats, len(s.stats))
	for k, v := range s.stats {
		dup := *v
		stats[k] = &dup
	}
	history := append([]HistoryEntry(nil), s.history...)
	s.dataMu.Unlock()

	s.sendTo(c.id, map[string]any{
		"type":    "admin_stats",
		"stats":   stats,
		"history": history,
	})
}

func (s *Server) handleAdminOp(c *client, msg clientMessage) {
	var err error

	switch msg.Type {
	case "admin_save_settings":
		err = s.adminSaveSettings(msg.Settings)
	case "admin_save_stats":
		err = s.adminSaveStats(msg.Stats)
	case "admin_delete_history":
		err = s.adminDeleteHistory(msg.HistoryIndex)
	default:
		err = s.adminEditBank(msg)
	}

	if err != nil {
		logf(s.cfg, "ADMIN: %s failed: %v", msg.Type, err)
		s.sendError(c.id, err.Error())
		return
	}

	logf(s.cfg, "ADMIN: %s applied", msg.Type)

	s.sendTo(c.id, s.adminSnapshot())
	go s.broadcastAdmins()
}

func (s *Server) adminSaveSettings(raw json.RawMessage) error {
	if len(raw) == 0 {
		return errors.New("missing settings payload")
	}

	s.dataMu.Lock()
	defer s.dataMu.Unlock()

	// Deep-copy the current settings through JSON before applying the
	// payload over it, so keys absent from the payload keep their value and
	// the maps handed out earlier are never mutated.
	current, err := json.Marshal(s.settings)
	if err != nil {
		return err
	}
	updated := &Settings{}
	if err := json.Unmarshal(current, updated); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, updated); err != nil {
		return err
	}
	s.settings = updated
	saveSettings(s.cfg, s.settings)

	return nil
}

func (s *Server) adminSaveStats(raw json.RawMessage) error {
	if len(raw) == 0 {
		return errors.New("missing stats payload")
	}

	replacement := make(map[string]*PlayerStats)
	if err := json.Unmarshal(raw, &replacement); err != nil {
		return err
	}

	s.dataMu.Lock()
	defer s.dataMu.Unlock()

	s.stats = replacement
	s.saveStatsLocked()

	return nil
}

func (s *Server) adminDeleteHistory(index *int) error {
	if index == nil {
		return errors.New("missing history index")
	}

	s.dataMu.Lock()
	defer s.dataMu.Unlock()

	i := *index
	if i < 0 || i >= len(s.history) {
		return errors.New("history index out of range")
	}
	s.history = append(s.history[:i], s.history[i+1:]...)
	s.saveHistoryLocked()

	return nil
}

// adminEditBank applies a question CRUD operation to the canonical bank,
// persists the pool file, then refreshes the private copies of rooms that
// have not started yet. Running games keep playing against their old copy.
func (s *Server) adminEditBank(msg clientMessage) error {
	s.dataMu.Lock()
	err := s.mutateBankLocked(msg)
	s.dataMu.Unlock()

	if err != nil {
		return err
	}

	s.roomMu.Lock()
	sessions := make([]*Session, 0, len(s.rooms))
	for _, sess := range s.rooms {
		sessions = append(sessions, sess)
	}
	s.roomMu.Unlock()

	for _, sess := range sessions {
		sess.mu.Lock()
		if !sess.gameStarted {
			sess.bank = s.bankCopy()
		}
		sess.mu.Unlock()
	}

	return nil
}

func (s *Server) mutateBankLocked(msg clientMessage) error {
	switch msg.Kind {
	case "simple":
		return s.mutateSimpleLocked(msg)
	case "intrus":
		return s.mutateIntrusLocked(msg)
	case "estimation":
		return s.mutateEstimationLocked(msg)
	}
	return errors.New("unknown question kind")
}

func (s *Server) mutateSimpleLocked(msg clientMessage) error {
	theme := strings.TrimSpace(msg.Theme)
	if theme == "" {
		return errors.New("missing theme")
	}
	pool := s.bank.Simple[theme]

	switch msg.Type {
	case "admin_add_question":
		var q ChoiceQuestion
		if err := json.Unmarshal(msg.Question, &q); err != nil {
			return err
		}
		q.Theme = ""
		s.bank.Simple[theme] = append(pool, q)

	case "admin_delete_question":
		if msg.Index == nil || *msg.Index < 0 || *msg.Index >= len(pool) {
			return errors.New("question index out of range")
		}
		i := *msg.Index
		pool = append(pool[:i], pool[i+1:]...)
		if len(pool) == 0 {
			delete(s.bank.Simple, theme)
		} else {
			s.bank.Simple[theme] = pool
		}

	case "admin_update_question":
		if msg.Index == nil || *msg.Index < 0 || *msg.Index >= len(pool) {
			return errors.New("question index out of range")
		}
		var q ChoiceQuestion
		if err := json.Unmarshal(msg.Question, &q); err != nil {
			return err
		}
		q.Theme = ""
		pool[*msg.Index] = q

	case "admin_toggle_question":
		if msg.Index == nil || *msg.Index < 0 || *msg.Index >= len(pool) {
			return errors.New("question index out of range")
		}
		toggled := !questionActive(pool[*msg.Index].Active)
		pool[*msg.Index].Active = &toggled
	}

	saveJSONFile(s.cfg, simpleQuestionsFile, s.bank.Simple)

	return nil
}

func (s *Server) mutateIntrusLocked(msg clientMessage) error {
	pool := s.bank.Intrus

	switch msg.Type {
	case "admin_add_question":
		var q IntrusQuestion
		if err := json.Unmarshal(msg.Question, &q); err != nil {
			return err
		}
		s.bank.Intrus = append(pool, q)

	case "admin_delete_question":
		if msg.Index == nil || *msg.Index < 0 || *msg.Index >= len(pool) {
			return errors.New("question index out of range")
		}
		i := *msg.Index
		s.bank.Intrus = append(pool[:i], pool[i+1:]...)

	case "admin_update_question":
		if msg.Index == nil || *msg.Index < 0 || *msg.Index >= len(pool) {
			return errors.New("question index out of range")
		}
		var q IntrusQuestion
		if err := json.Unmarshal(msg.Question, &q); err != nil {
			return err
		}
		pool[*msg.Index] = q

	case "admin_toggle_question":
		if msg.Index == nil || *msg.Index < 0 || *msg.Index >= len(pool) {
			return errors.New("question index out of range")
		}
		toggled := !questionActive(pool[*msg.Index].Active)
		pool[*msg.Index].Active = &toggled
	}

	saveJSONFile(s.cfg, intrusQuestionsFile, s.bank.Intrus)

	return nil
}

func (s *Server) mutateEstimationLocked(msg clientMessage) error {
	pool := s.bank.Estimation

	switch msg.Type {
	case "admin_add_question":
		var q EstimationQuestion
		if err := json.Unmarshal(msg.Question, &q); err != nil {
			return err
		}
		s.bank.Estimation = append(pool, q)

	case "admin_delete_question":
		if msg.Index == nil || *msg.Index < 0 || *msg.Index >= len(pool) {
			return errors.New("question index out of range")
		}
		i := *msg.Index
		s.bank.Estimation = append(pool[:i], pool[i+1:]...)

	case "admin_update_question":
		if msg.Index == nil || *msg.Index < 0 || *msg.Index >= len(pool) {
			return errors.New("question index out of range")
		}
		var q EstimationQuestion
		if err := json.Unmarshal(msg.Question, &q); err != nil {
			return err
		}
		pool[*msg.Index] = q

	case "admin_toggle_question":
		if msg.Index == nil || *msg.Index < 0 || *msg.Index >= len(pool) {
			return errors.New("question index out of range")
		}
		toggled := !questionActive(pool[*msg.Index].Active)
		pool[*msg.Index].Active = &toggled
	}

	saveJSONFile(s.cfg, estimationQuestionsFile, s.bank.Estimation)

	return nil
}
