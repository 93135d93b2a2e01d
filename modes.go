package main

import (
	"fmt"
	"time"
)

// Narrative pacing. These pauses are scheduled continuations posted through
// Server.after, never blocking sleeps, so other rooms keep moving.
const (
	modeTitleDelay        = 3 * time.Second
	revealDelay           = 3 * time.Second
	intrusRevealDelay     = 2 * time.Second
	estimationRevealDelay = 8 * time.Second
)

var fullModeOrder = []string{"simple", "buzzer", "intrus", "estimation"}

// enabledModes is the fixed mode order filtered by configuration, falling
// back to simple mode alone when everything is disabled.
func (s *Server) enabledModes() []string {
	s.dataMu.Lock()
	enabled := s.settings.ModesEnabled
	s.dataMu.Unlock()

	order := make([]string, 0, len(fullModeOrder))
	for _, mode := range fullModeOrder {
		if enabled[mode] {
			order = append(order, mode)
		}
	}
	if len(order) == 0 {
		order = []string{"simple"}
	}

	return order
}

// schedule posts a continuation for a room. The callback re-checks that the
// room is still registered, then runs fn under the room lock.
func (s *Server) schedule(sess *Session, d time.Duration, fn func()) {
	s.after(d, func() {
		if s.findRoom(sess.code) != sess {
			return
		}
		sess.mu.Lock()
		defer sess.mu.Unlock()
		fn()
	})
}

// startNextModeLocked advances the session to the next enabled mode, or ends
// the game when the current mode was the last.
func (s *Server) startNextModeLocked(sess *Session) {
	order := s.enabledModes()

	current := -1
	for i, mode := range order {
		if mode == sess.modeKey {
			current = i
			break
		}
	}

	if current >= len(order)-1 {
		s.endGameLocked(sess)
		return
	}

	sess.modeKey = order[current+1]
	sess.answeredInMode = 0
	sess.question = nil
	sess.soe = stopOrEncoreState{}
	sess.estimationOpen = false

	s.dataMu.Lock()
	rules := s.settings.Rules
	name := s.settings.ModeNames[sess.modeKey]
	s.dataMu.Unlock()

	if name == "" {
		name = sess.modeKey
	}

	switch sess.modeKey {
	case "simple":
		sess.modeTarget = len(sess.players) * rules.QuestionsPerPlayerSimple
	case "buzzer":
		sess.modeTarget = rules.QuestionsTotalBuzzer
	case "intrus":
		sess.modeTarget = len(sess.players) * rules.QuestionsPerPlayerIntrus
	case "estimation":
		sess.modeTarget = rules.QuestionsTotalEstimation
	}

	sess.infoText = "Mode: " + name

	if sess.modeKey == "buzzer" {
		for _, p := range sess.players {
			p.RoundScore = 0
		}
	}

	logf(s.cfg, "GAME: Room %s entering mode %s (target %d)", sess.code, sess.modeKey, sess.modeTarget)

	s.broadcastRoomLocked(sess, modeTitleMessage{Type: "mode_title", Title: name})

	mode := sess.modeKey
	s.schedule(sess, modeTitleDelay, func() {
		if sess.modeKey != mode {
			return
		}
		s.startModeQuestionLocked(sess)
	})
}

func (s *Server) startModeQuestionLocked(sess *Session) {
	switch sess.modeKey {
	case "simple":
		s.startQuestionSimpleLocked(sess)
	case "buzzer":
		s.startQuestionBuzzerLocked(sess)
	case "intrus":
		s.startQuestionIntrusLocked(sess)
	case "estimation":
		s.startQuestionEstimationLocked(sess)
	}
}

// exhaustedLocked handles an empty draw: not an error, just a terminal
// condition for the current mode.
func (s *Server) exhaustedLocked(sess *Session) {
	sess.infoText = "No questions left!"
	sess.question = nil
	s.broadcastStateLocked(sess)
	s.schedule(sess, revealDelay, func() {
		s.startNextModeLocked(sess)
	})
}

func (s *Server) drawChoiceLocked(sess *Session) *ChoiceQuestion {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	return drawSimple(sess.bank, s.bank, s.settings.ActiveThemes.Simple)
}

func (s *Server) drawIntrusLocked(sess *Session) *IntrusQuestion {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	return drawIntrus(sess.bank, s.bank, s.settings.ActiveThemes.Intrus)
}

func (s *Server) drawEstimationLocked(sess *Session) *EstimationQuestion {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	return drawEstimation(sess.bank, s.bank)
}

func (s *Server) startQuestionSimpleLocked(sess *Session) {
	sess.answeredInMode++
	if sess.answeredInMode > sess.modeTarget {
		s.startNextModeLocked(sess)
		return
	}

	idx := sess.nextPlayerIndexLocked()
	if idx == -1 {
		s.startNextModeLocked(sess)
		return
	}
	sess.turnIndex = idx
	holder := sess.players[idx]
	sess.infoText = fmt.Sprintf("%s's turn", holder.Name)

	q := s.drawChoiceLocked(sess)
	if q == nil {
		s.exhaustedLocked(sess)
		return
	}
	shuffleAnswers(q.Answers)
	sess.question = &Question{Kind: "choice", Choice: q}

	snap := sess.snapshotLocked()
	s.broadcastRoomLocked(sess, stateMessage{Type: "state", State: snap})
	for _, p := range sess.players {
		s.sendTo(p.conn, playerViewMessage{
			Type:  "player_view",
			View:  "question",
			Data:  questionViewData{Question: sess.question, IsMyTurn: p == holder},
			State: snap,
		})
	}
}

func (s *Server) startQuestionBuzzerLocked(sess *Session) {
	sess.answeredInMode++
	if sess.answeredInMode > sess.modeTarget {
		var best *Player
		for _, p := range sess.players {
			if best == nil || p.RoundScore > best.RoundScore {
				best = p
			}
		}
		if best != nil && best.RoundScore > 0 {
			best.Multiplier = true
			sess.infoText = fmt.Sprintf("%s wins the Score x2 bonus!", best.Name)
		} else {
			sess.infoText = "No bonus this round."
		}
		s.broadcastStateLocked(sess)
		s.schedule(sess, revealDelay, func() {
			s.startNextModeLocked(sess)
		})
		return
	}

	sess.infoText = fmt.Sprintf("Bonus question %d/%d", sess.answeredInMode, sess.modeTarget)
	sess.buzzerActive = true
	sess.buzzerWinner = ""
	sess.buzzedOut = make(map[string]bool)

	q := s.drawChoiceLocked(sess)
	if q == nil {
		s.exhaustedLocked(sess)
		return
	}
	shuffleAnswers(q.Answers)
	sess.question = &Question{Kind: "choice", Choice: q}

	snap := sess.snapshotLocked()
	s.broadcastRoomLocked(sess, stateMessage{Type: "state", State: snap})
	for _, p := range sess.players {
		s.sendTo(p.conn, playerViewMessage{
			Type:  "player_view",
			View:  "buzzer",
			Data:  buzzerViewData{Question: sess.question},
			State: snap,
		})
	}
}

func (s *Server) startQuestionIntrusLocked(sess *Session) {
	sess.answeredInMode++
	if sess.answeredInMode > sess.modeTarget {
		s.startNextModeLocked(sess)
		return
	}

	idx := sess.nextPlayerIndexLocked()
	if idx == -1 {
		s.startNextModeLocked(sess)
		return
	}
	sess.turnIndex = idx
	holder := sess.players[idx]
	sess.infoText = fmt.Sprintf("Stop or encore: %s's turn", holder.Name)

	q := s.drawIntrusLocked(sess)
	if q == nil {
		s.exhaustedLocked(sess)
		return
	}
	shuffleAnswers(q.Answers)
	sess.question = &Question{Kind: "intruder", Intruder: q}
	sess.soe = stopOrEncoreState{holder: holder.conn, revealed: []int{}}

	snap := sess.snapshotLocked()
	s.broadcastRoomLocked(sess, stateMessage{Type: "state", State: snap})
	for _, p := range sess.players {
		s.sendTo(p.conn, playerViewMessage{
			Type:  "player_view",
			View:  "question",
			Data:  questionViewData{Question: sess.question, IsMyTurn: p == holder, Revealed: []int{}},
			State: snap,
		})
	}
}

func (s *Server) startQuestionEstimationLocked(sess *Session) {
	sess.answeredInMode++
	if sess.answeredInMode > sess.modeTarget {
		s.startNextModeLocked(sess)
		return
	}

	sess.infoText = fmt.Sprintf("Estimation %d/%d", sess.answeredInMode, sess.modeTarget)

	q := s.drawEstimationLocked(sess)
	if q == nil {
		s.exhaustedLocked(sess)
		return
	}
	sess.question = &Question{Kind: "estimation", Estimation: q}
	sess.estimationOpen = true

	for _, p := range sess.players {
		p.guess = nil
	}

	snap := sess.snapshotLocked()
	s.broadcastRoomLocked(sess, stateMessage{Type: "state", State: snap})
	for _, p := range sess.players {
		s.sendTo(p.conn, playerViewMessage{
			Type:  "player_view",
			View:  "estimation",
			Data:  estimationViewData{Question: sess.question},
			State: snap,
		})
	}
}

// startSuddenDeathLocked restricts the roster to the tied players and
// re-enters buzzer mechanics until the tie is broken.
func (s *Server) startSuddenDeathLocked(sess *Session, tied []*Player) {
	sess.modeKey = "sudden_death"
	sess.infoText = "Tie game! Sudden death!"
	sess.buzzerActive = true
	sess.buzzerWinner = ""
	sess.buzzedOut = make(map[string]bool)

	keep := make(map[string]bool, len(tied))
	for _, p := range tied {
		keep[p.conn] = true
	}
	contenders := sess.players[:0]
	for _, p := range sess.players {
		if keep[p.conn] {
			contenders = append(contenders, p)
		}
	}
	sess.players = contenders

	q := s.drawChoiceLocked(sess)
	if q == nil {
		sess.question = nil
	} else {
		sess.question = &Question{Kind: "choice", Choice: q}
	}

	logf(s.cfg, "GAME: Room %s sudden death between %d players", sess.code, len(sess.players))

	s.broadcastRoomLocked(sess, modeTitleMessage{Type: "mode_title", Title: "SUDDEN DEATH"})

	s.schedule(sess, modeTitleDelay, func() {
		snap := sess.snapshotLocked()
		s.broadcastRoomLocked(sess, stateMessage{Type: "state", State: snap})
		for _, p := range sess.players {
			s.sendTo(p.conn, playerViewMessage{
				Type:  "player_view",
				View:  "buzzer",
				Data:  buzzerViewData{Question: sess.question},
				State: snap,
			})
		}
	})
}

// endGameLocked resolves the winner, or hands a tie over to sudden death.
func (s *Server) endGameLocked(sess *Session) {
	if len(sess.players) == 0 {
		return
	}

	maxScore := sess.players[0].Score
	for _, p := range sess.players[1:] {
		if p.Score > maxScore {
			maxScore = p.Score
		}
	}

	var winners []*Player
	for _, p := range sess.players {
		if p.Score == maxScore {
			winners = append(winners, p)
		}
	}

	if len(winners) > 1 && sess.modeKey != "sudden_death" {
		s.startSuddenDeathLocked(sess, winners)
		return
	}

	s.finishGameLocked(sess, winners[0])
}

// finishGameLocked stops the game with a known winner, records stats and
// history, and announces the result.
func (s *Server) finishGameLocked(sess *Session, winner *Player) {
	sess.gameStarted = false
	sess.infoText = "Game over!"

	logf(s.cfg, "GAME: Room %s finished, %q wins with %d points", sess.code, winner.Name, winner.Score)

	s.recordGame(sess.code, sess.players, winner)

	winnerSnap := snapshotPlayer(winner)
	s.broadcastRoomLocked(sess, endGameMessage{Type: "end_game", Winner: &winnerSnap})
	s.broadcastStateLocked(sess)

	go s.broadcastAdmins()
	go s.broadcastRoomList()
}
