package main

import (
	"sort"
	"strings"
	"time"
)

const (
	statsFile   = "stats.json"
	historyFile = "history.json"

	historyDateLayout = "02/01/2006 15:04"
)

// PlayerStats is the lifetime record of one player name. Records are keyed by
// the lowercased name, so "Tyson" and "tyson" share one entry; Name keeps the
// casing from the most recent game.
type PlayerStats struct {
	Name          string `json:"name"`
	GamesPlayed   int    `json:"games_played"`
	Wins          int    `json:"wins"`
	TotalScore    int    `json:"total_score"`
	BestScore     int    `json:"best_score"`
	ScoreSimple   int    `json:"score_simple"`
	ScoreBuzzer   int    `json:"score_buzzer"`
	ScoreIntrus   int    `json:"score_intrus"`
	GrandSlams    int    `json:"grand_slams"`
	TacticianWins int    `json:"tactician_wins"`
	WinStreak     int    `json:"win_streak"`
	MaxWinStreak  int    `json:"max_win_streak"`
}

type historyPlayer struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// HistoryEntry is one finished game, newest first in the history file.
type HistoryEntry struct {
	Date    string          `json:"date"`
	Room    string          `json:"room"`
	Winner  string          `json:"winner"`
	Players []historyPlayer `json:"players"`
}

func statsKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (s *Server) loadStats() {
	s.stats = make(map[string]*PlayerStats)
	s.history = []HistoryEntry{}

	loadJSONFile(s.cfg, statsFile, &s.stats)
	loadJSONFile(s.cfg, historyFile, &s.history)
}

// Callers hold dataMu.
func (s *Server) saveStatsLocked() {
	saveJSONFile(s.cfg, statsFile, s.stats)
}

func (s *Server) saveHistoryLocked() {
	saveJSONFile(s.cfg, historyFile, s.history)
}

func (s *Server) statsFor(name string) *PlayerStats {
	key := statsKey(name)
	if key == "" {
		return nil
	}
	st, ok := s.stats[key]
	if !ok {
		st = &PlayerStats{Name: strings.TrimSpace(name)}
		s.stats[key] = st
	}
	return st
}

// recordGrandSlam bumps the grand slam counter for a name mid-game, so the
// achievement survives even if the room dies before the game ends.
func (s *Server) recordGrandSlam(name string) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()

	st := s.statsFor(name)
	if st == nil {
		return
	}
	st.GrandSlams++
	s.saveStatsLocked()
}

// recordGame folds a finished game into the lifetime stats and prepends a
// history entry. A winner who spent their multiplier this game also earns a
// tactician win.
func (s *Server) recordGame(room string, players []*Player, winner *Player) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()

	for _, p := range players {
		st := s.statsFor(p.Name)
		if st == nil {
			continue
		}
		st.Name = strings.TrimSpace(p.Name)
		st.GamesPlayed++
		st.TotalScore += p.Score
		if p.Score > st.BestScore {
			st.BestScore = p.Score
		}
		st.ScoreSimple += p.GameScoreSimple
		st.ScoreBuzzer += p.GameScoreBuzzer
		st.ScoreIntrus += p.GameScoreIntrus

		if p == winner {
			st.Wins++
			st.WinStreak++
			if st.WinStreak > st.MaxWinStreak {
				st.MaxWinStreak = st.WinStreak
			}
			if p.usedMultiplier {
				st.TacticianWins++
			}
		} else {
			st.WinStreak = 0
		}
	}

	ranked := make([]historyPlayer, 0, len(players))
	for _, p := range players {
		ranked = append(ranked, historyPlayer{Name: p.Name, Score: p.Score})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	entry := HistoryEntry{
		Date:    time.Now().Format(historyDateLayout),
		Room:    room,
		Winner:  winner.Name,
		Players: ranked,
	}
	s.history = append([]HistoryEntry{entry}, s.history...)

	s.saveStatsLocked()
	s.saveHistoryLocked()
}

// Trophy is one earned achievement shown on a player's stats card.
type Trophy struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// trophies lists the achievements a record has earned, in display order.
func trophies(st *PlayerStats) []Trophy {
	defs := []struct {
		Trophy
		earned bool
	}{
		{Trophy{"first_win", "First Victory", "Win a game"}, st.Wins >= 1},
		{Trophy{"serial_champion", "Serial Champion", "Win 10 games"}, st.Wins >= 10},
		{Trophy{"veteran", "Quiz Veteran", "Play 20 games"}, st.GamesPlayed >= 20},
		{Trophy{"score_master", "Score Master", "Score 500 points in one game"}, st.BestScore >= 500},
		{Trophy{"buzzer_king", "Buzzer King", "Score 100 buzzer points"}, st.ScoreBuzzer >= 100},
		{Trophy{"sleuth", "The Sleuth", "Score 500 intruder points"}, st.ScoreIntrus >= 500},
		{Trophy{"brain", "The Brain", "Score 1000 quiz points"}, st.ScoreSimple >= 1000},
		{Trophy{"grand_slam", "Grand Slam", "Reveal every answer of an intruder question"}, st.GrandSlams >= 1},
		{Trophy{"tactician", "The Tactician", "Win a game after playing the x2 bonus"}, st.TacticianWins >= 1},
		{Trophy{"legend", "Quiz Legend", "Play 50 games"}, st.GamesPlayed >= 50},
		{Trophy{"collector", "The Collector", "Accumulate 10000 points"}, st.TotalScore >= 10000},
		{Trophy{"invincible", "Invincible", "Win 3 games in a row"}, st.MaxWinStreak >= 3},
	}

	var earned []Trophy
	for _, d := range defs {
		if d.earned {
			earned = append(earned, d.Trophy)
		}
	}

	return earned
}

type leaderboardEntry struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func topBy(stats map[string]*PlayerStats, n int, value func(*PlayerStats) int) []leaderboardEntry {
	entries := make([]leaderboardEntry, 0, len(stats))
	for _, st := range stats {
		if v := value(st); v > 0 {
			entries = append(entries, leaderboardEntry{Name: st.Name, Value: v})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Value > entries[j].Value
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// leaderboards builds the public rankings. Caller holds dataMu.
func (s *Server) leaderboardsLocked() map[string]any {
	return map[string]any{
		"most_wins":     topBy(s.stats, 5, func(st *PlayerStats) int { return st.Wins }),
		"highest_score": topBy(s.stats, 5, func(st *PlayerStats) int { return st.TotalScore }),
		"specialists": map[string]any{
			"simple": topBy(s.stats, 3, func(st *PlayerStats) int { return st.ScoreSimple }),
			"buzzer": topBy(s.stats, 3, func(st *PlayerStats) int { return st.ScoreBuzzer }),
			"intrus": topBy(s.stats, 3, func(st *PlayerStats) int { return st.ScoreIntrus }),
		},
	}
}
