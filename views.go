package main

// Outbound payload shapes. A full state snapshot goes to the whole room after
// every mutation; tailored views go to individual players so each controller
// shows the right screen for the current mode.

type roomListEntry struct {
	PlayerCount int  `json:"player_count"`
	IsStarted   bool `json:"is_started"`
}

type playerSnapshot struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Avatar      int      `json:"avatar"`
	Color       string   `json:"color"`
	Score       int      `json:"score"`
	RoundScore  int      `json:"round_score"`
	Connected   bool     `json:"connected"`
	Multiplier  bool     `json:"multiplier"`
	HasAnswered bool     `json:"has_answered"`
	Traits      []string `json:"traits,omitempty"`
}

type roomSnapshot struct {
	Code           string           `json:"code"`
	Started        bool             `json:"started"`
	Mode           string           `json:"mode,omitempty"`
	InfoText       string           `json:"info_text"`
	Players        []playerSnapshot `json:"players"`
	Question       *Question        `json:"question,omitempty"`
	TurnPlayer     string           `json:"turn_player,omitempty"`
	AnsweredInMode int              `json:"answered_in_mode"`
	ModeTarget     int              `json:"mode_target"`
	BuzzerActive   bool             `json:"buzzer_active"`
	BuzzerWinner   string           `json:"buzzer_winner,omitempty"`
	Revealed       []int            `json:"revealed,omitempty"`
	Accumulated    int              `json:"accumulated,omitempty"`
}

func snapshotPlayer(p *Player) playerSnapshot {
	return playerSnapshot{
		ID:          p.conn,
		Name:        p.Name,
		Avatar:      p.Avatar,
		Color:       p.Color,
		Score:       p.Score,
		RoundScore:  p.RoundScore,
		Connected:   !p.disconnected,
		Multiplier:  p.Multiplier,
		HasAnswered: p.guess != nil,
		Traits:      p.Traits,
	}
}

func (sess *Session) snapshotLocked() *roomSnapshot {
	snap := &roomSnapshot{
		Code:           sess.code,
		Started:        sess.gameStarted,
		Mode:           sess.modeKey,
		InfoText:       sess.infoText,
		Players:        make([]playerSnapshot, 0, len(sess.players)),
		Question:       sess.question,
		AnsweredInMode: sess.answeredInMode,
		ModeTarget:     sess.modeTarget,
		BuzzerActive:   sess.buzzerActive,
		Revealed:       sess.soe.revealed,
		Accumulated:    sess.soe.accumulated,
	}

	for _, p := range sess.players {
		snap.Players = append(snap.Players, snapshotPlayer(p))
	}

	if holder := sess.turnHolderLocked(); holder != nil {
		snap.TurnPlayer = holder.Name
	}

	if sess.buzzerWinner != "" {
		if winner := sess.playerByConnLocked(sess.buzzerWinner); winner != nil {
			snap.BuzzerWinner = winner.Name
		}
	}

	return snap
}

// View payloads carried inside a player_view message.

type questionViewData struct {
	Question *Question `json:"question"`
	IsMyTurn bool      `json:"is_my_turn"`
	Revealed []int     `json:"revealed,omitempty"`
}

type buzzerViewData struct {
	Question *Question `json:"question"`
}

type waitViewData struct {
	Message  string    `json:"message"`
	Question *Question `json:"question,omitempty"`
}

type estimationViewData struct {
	Question *Question `json:"question"`
}

type stopOrEncoreViewData struct {
	Accumulated int   `json:"accumulated"`
	Revealed    []int `json:"revealed"`
}

// reconnectViewLocked rebuilds the view a returning player should see for the
// current mode: whose turn it is, whether a buzz has already been won, or the
// partial stop-or-encore state.
func (s *Server) reconnectViewLocked(sess *Session, player *Player) (string, any) {
	if !sess.gameStarted {
		return "wait", waitViewData{Message: "Reconnected! Waiting for the game to start..."}
	}

	holder := sess.turnHolderLocked()

	switch sess.modeKey {
	case "simple":
		return "question", questionViewData{
			Question: sess.question,
			IsMyTurn: holder != nil && holder.conn == player.conn,
		}

	case "buzzer", "sudden_death":
		if sess.buzzerWinner == "" {
			return "buzzer", buzzerViewData{Question: sess.question}
		}
		winner := sess.playerByConnLocked(sess.buzzerWinner)
		if winner != nil && winner.conn == player.conn {
			return "question", questionViewData{Question: sess.question, IsMyTurn: true}
		}
		name := "Someone"
		if winner != nil {
			name = winner.Name
		}
		return "wait", waitViewData{Message: name + " buzzed!", Question: sess.question}

	case "intrus":
		return "question", questionViewData{
			Question: sess.question,
			IsMyTurn: holder != nil && holder.conn == player.conn,
			Revealed: sess.soe.revealed,
		}
	}

	return "wait", waitViewData{Message: "Reconnected! Waiting..."}
}
