package main

import (
	"fmt"
)

// Answer resolution. Input from a player who is not authorized to act right
// now (wrong turn, lost the buzz, already answered) is dropped silently:
// it is expected under races between client and server state.

func (s *Server) handleAnswer(conn, room string, answerIndex int, useMultiplier bool) {
	sess := s.findRoom(room)
	if sess == nil {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.question == nil {
		return
	}
	player := sess.playerByConnLocked(conn)
	if player == nil {
		return
	}

	switch sess.modeKey {
	case "simple":
		s.answerSimpleLocked(sess, player, answerIndex, useMultiplier)
	case "buzzer", "sudden_death":
		s.answerBuzzerLocked(sess, player, answerIndex)
	case "intrus":
		s.answerIntrusLocked(sess, player, answerIndex, useMultiplier)
	}
}

func (s *Server) answerSimpleLocked(sess *Session, player *Player, idx int, useMultiplier bool) {
	holder := sess.turnHolderLocked()
	if holder == nil || holder != player {
		return
	}
	q := sess.question.Choice
	if q == nil || idx < 0 || idx >= len(q.Answers) {
		return
	}

	correct := q.Answers[idx].Correct

	s.dataMu.Lock()
	points := s.settings.Points.Simple
	s.dataMu.Unlock()

	// The multiplier is consumed as soon as its use is requested, win or lose.
	if player.Multiplier && useMultiplier {
		points *= 2
		player.Multiplier = false
		player.usedMultiplier = true
		sess.infoText = fmt.Sprintf("Score x2! %s answered!", player.Name)
	} else if correct {
		sess.infoText = fmt.Sprintf("Correct answer from %s!", player.Name)
	} else {
		sess.infoText = fmt.Sprintf("Wrong answer from %s...", player.Name)
	}

	if correct {
		player.Score += points
		player.GameScoreSimple += points
	}

	s.sendTo(player.conn, feedbackMessage{Type: "answer_feedback", Correct: correct})
	s.broadcastRoomLocked(sess, revealAnswerMessage{
		Type:         "reveal_answer",
		CorrectIndex: correctIndex(q.Answers),
		ChosenIndex:  idx,
		Correct:      correct,
	})
	s.broadcastStateLocked(sess)
	go s.broadcastAdmins()

	s.schedule(sess, revealDelay, func() {
		s.startQuestionSimpleLocked(sess)
	})
}

func (s *Server) answerBuzzerLocked(sess *Session, player *Player, idx int) {
	if sess.buzzerWinner == "" || sess.buzzerWinner != player.conn {
		return
	}
	q := sess.question.Choice
	if q == nil || idx < 0 || idx >= len(q.Answers) {
		return
	}

	correct := q.Answers[idx].Correct
	s.sendTo(player.conn, feedbackMessage{Type: "answer_feedback", Correct: correct})

	if sess.modeKey == "sudden_death" {
		if correct {
			// A correct answer ends the contest in the answerer's favor.
			s.finishGameLocked(sess, player)
			return
		}

		// Score doubles as the elimination sentinel; it is not restored.
		player.Score = -1
		sess.infoText = fmt.Sprintf("%s is eliminated!", player.Name)
		s.broadcastStateLocked(sess)

		s.schedule(sess, revealDelay, func() {
			var remaining []*Player
			for _, p := range sess.players {
				if p.Score >= 0 {
					remaining = append(remaining, p)
				}
			}
			if len(remaining) <= 1 {
				s.endGameLocked(sess)
			} else {
				s.startSuddenDeathLocked(sess, remaining)
			}
		})
		return
	}

	if correct {
		s.dataMu.Lock()
		points := s.settings.Points.Buzzer
		s.dataMu.Unlock()

		player.RoundScore += points
		player.GameScoreBuzzer += points
		sess.infoText = fmt.Sprintf("Correct answer from %s!", player.Name)

		s.broadcastRoomLocked(sess, revealAnswerMessage{
			Type:         "reveal_answer",
			CorrectIndex: correctIndex(q.Answers),
			ChosenIndex:  idx,
			Correct:      true,
		})
		s.broadcastStateLocked(sess)
		go s.broadcastAdmins()

		s.schedule(sess, revealDelay, func() {
			s.startQuestionBuzzerLocked(sess)
		})
		return
	}

	// Wrong answer: this player is out for this question, the rest may buzz
	// again.
	sess.buzzedOut[player.conn] = true
	sess.buzzerActive = true
	sess.buzzerWinner = ""
	sess.infoText = fmt.Sprintf("%s got it wrong! Buzzers reopen!", player.Name)

	if len(sess.buzzedOut) >= len(sess.activePlayersLocked()) {
		sess.infoText = "Nobody found it!"
		s.broadcastRoomLocked(sess, revealAnswerMessage{
			Type:         "reveal_answer",
			CorrectIndex: correctIndex(q.Answers),
			ChosenIndex:  -1,
			Correct:      false,
		})
		s.broadcastStateLocked(sess)
		go s.broadcastAdmins()

		s.schedule(sess, revealDelay, func() {
			s.startQuestionBuzzerLocked(sess)
		})
		return
	}

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

// handleBuzz resolves the race for the right to answer. The room lock
// serializes concurrent buzzes, so exactly one winner is recorded per
// question instance.
func (s *Server) handleBuzz(conn, room string) {
	sess := s.findRoom(room)
	if sess == nil {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if !sess.buzzerActive || sess.buzzedOut[conn] {
		return
	}
	winner := sess.playerByConnLocked(conn)
	if winner == nil {
		return
	}

	sess.buzzerActive = false
	sess.buzzerWinner = conn
	sess.infoText = fmt.Sprintf("%s buzzed!", winner.Name)

	snap := sess.snapshotLocked()
	s.broadcastRoomLocked(sess, stateMessage{Type: "state", State: snap})
	go s.broadcastAdmins()

	for _, p := range sess.players {
		if p == winner {
			s.sendTo(p.conn, playerViewMessage{
				Type:  "player_view",
				View:  "question",
				Data:  questionViewData{Question: sess.question, IsMyTurn: true},
				State: snap,
			})
		} else {
			s.sendTo(p.conn, playerViewMessage{
				Type:  "player_view",
				View:  "wait",
				Data:  waitViewData{Message: sess.infoText, Question: sess.question},
				State: snap,
			})
		}
	}
}

func (s *Server) answerIntrusLocked(sess *Session, player *Player, idx int, useMultiplier bool) {
	if sess.soe.holder == "" || sess.soe.holder != player.conn {
		return
	}
	q := sess.question.Intruder
	if q == nil || idx < 0 || idx >= len(q.Answers) {
		return
	}
	for _, revealed := range sess.soe.revealed {
		if revealed == idx {
			return
		}
	}

	sess.soe.revealed = append(sess.soe.revealed, idx)
	answer := q.Answers[idx]
	s.sendTo(player.conn, feedbackMessage{Type: "answer_feedback", Correct: !answer.Intruder})

	if answer.Intruder {
		sess.infoText = fmt.Sprintf("Oh no! %s found the intruder.", player.Name)
		s.broadcastRoomLocked(sess, revealIntruderMessage{
			Type:          "reveal_answer",
			IntruderFound: true,
			ChosenIndex:   idx,
		})
		s.broadcastStateLocked(sess)
		go s.broadcastAdmins()

		// The turn is over; a late "stop" must not bank forfeited points.
		sess.soe = stopOrEncoreState{}

		s.schedule(sess, revealDelay, func() {
			s.startQuestionIntrusLocked(sess)
		})
		return
	}

	s.dataMu.Lock()
	base := s.settings.Points.Intrus
	s.dataMu.Unlock()

	points := base * len(sess.soe.revealed)
	if player.Multiplier && useMultiplier {
		points *= 2
		player.Multiplier = false
		player.usedMultiplier = true
	}
	sess.soe.accumulated = points

	s.broadcastRoomLocked(sess, revealIntruderMessage{
		Type:          "reveal_answer",
		IntruderFound: false,
		ChosenIndex:   idx,
	})
	s.broadcastStateLocked(sess)
	go s.broadcastAdmins()

	s.schedule(sess, intrusRevealDelay, func() {
		// The turn may have ended in the meantime (banked or superseded).
		if sess.soe.holder != player.conn || sess.question == nil || sess.question.Intruder != q {
			return
		}

		normalAnswers := len(q.Answers) - 1
		if len(sess.soe.revealed) == normalAnswers {
			// Grand slam: every normal answer revealed, points bank
			// automatically.
			player.Score += sess.soe.accumulated
			player.GameScoreIntrus += sess.soe.accumulated
			s.recordGrandSlam(player.Name)

			sess.infoText = fmt.Sprintf("Grand slam! %s banks %d points!", player.Name, sess.soe.accumulated)
			s.broadcastStateLocked(sess)
			go s.broadcastAdmins()

			sess.soe = stopOrEncoreState{}

			s.schedule(sess, revealDelay, func() {
				s.startQuestionIntrusLocked(sess)
			})
			return
		}

		s.sendTo(player.conn, playerViewMessage{
			Type:  "player_view",
			View:  "stop_or_encore",
			Data:  stopOrEncoreViewData{Accumulated: sess.soe.accumulated, Revealed: sess.soe.revealed},
			State: sess.snapshotLocked(),
		})
	})
}

func (s *Server) handleStopOrEncore(conn, room, choice string) {
	sess := s.findRoom(room)
	if sess == nil {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	player := sess.playerByConnLocked(conn)
	if player == nil || sess.soe.holder != conn {
		return
	}
	if sess.modeKey != "intrus" || sess.question == nil || sess.question.Intruder == nil {
		return
	}

	if choice == "stop" {
		won := sess.soe.accumulated
		player.Score += won
		player.GameScoreIntrus += won
		sess.infoText = fmt.Sprintf("%s stops and banks %d points!", player.Name, won)
		sess.soe = stopOrEncoreState{}

		s.broadcastStateLocked(sess)
		go s.broadcastAdmins()

		s.schedule(sess, revealDelay, func() {
			s.startQuestionIntrusLocked(sess)
		})
		return
	}

	s.sendTo(conn, playerViewMessage{
		Type:  "player_view",
		View:  "question",
		Data:  questionViewData{Question: sess.question, IsMyTurn: true, Revealed: sess.soe.revealed},
		State: sess.snapshotLocked(),
	})
}

// handleEstimation records a player's single numeric guess and resolves the
// question once every active player has answered.
func (s *Server) handleEstimation(conn, room string, value *int) {
	sess := s.findRoom(room)
	if sess == nil || value == nil {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if !sess.estimationOpen {
		return
	}
	player := sess.playerByConnLocked(conn)
	if player == nil || player.guess != nil {
		return
	}

	v := *value
	player.guess = &v
	s.broadcastRoomLocked(sess, playerAnsweredMessage{Type: "player_answered", Player: conn})

	s.maybeResolveEstimationLocked(sess)
}

// maybeResolveEstimationLocked resolves the current estimation question once
// every active player has a guess in. Called after each guess and after a
// roster change, since a disconnect can leave the question fully answered.
func (s *Server) maybeResolveEstimationLocked(sess *Session) {
	if !sess.estimationOpen || sess.question == nil || sess.question.Estimation == nil {
		return
	}

	active := sess.activePlayersLocked()
	if len(active) == 0 {
		return
	}
	for _, p := range active {
		if p.guess == nil {
			return
		}
	}

	s.resolveEstimationLocked(sess)
}

// estimationScore returns the points for a guess at distance diff from the
// target. An exact hit earns the perfect bonus; anything inside the tolerance
// band earns the near bonus decaying linearly down to a floor of 10.
func estimationScore(diff, tolerance, perfect, near int) int {
	if diff == 0 {
		return perfect
	}
	if tolerance <= 0 || diff > tolerance {
		return 0
	}
	score := near - diff*(near-10)/tolerance
	if score < 10 {
		return 10
	}
	return score
}

func (s *Server) resolveEstimationLocked(sess *Session) {
	q := sess.question.Estimation
	if q == nil {
		return
	}
	sess.estimationOpen = false

	s.dataMu.Lock()
	perfect := s.settings.Points.EstimationPerfect
	near := s.settings.Points.EstimationClose
	s.dataMu.Unlock()

	type namedGuess struct {
		Name  string `json:"name"`
		Value int    `json:"value"`
	}
	var guesses []namedGuess

	for _, p := range sess.players {
		if p.guess == nil {
			continue
		}
		diff := *p.guess - q.Answer
		if diff < 0 {
			diff = -diff
		}
		p.Score += estimationScore(diff, q.Tolerance, perfect, near)
		guesses = append(guesses, namedGuess{Name: p.Name, Value: *p.guess})
	}

	sess.infoText = fmt.Sprintf("The answer was: %d", q.Answer)

	s.broadcastRoomLocked(sess, revealEstimationMessage{
		Type:     "reveal_estimation",
		Question: sess.question,
		Answers:  guesses,
	})
	s.broadcastStateLocked(sess)
	go s.broadcastAdmins()

	s.schedule(sess, estimationRevealDelay, func() {
		s.startQuestionEstimationLocked(sess)
	})
}
