package main

import (
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
)

const (
	simpleQuestionsFile     = "questions_simple.json"
	intrusQuestionsFile     = "questions_intruder.json"
	estimationQuestionsFile = "questions_estimation.json"
)

// Answer is one selectable option of a choice or intruder question.
type Answer struct {
	Text     string `json:"text"`
	Correct  bool   `json:"correct,omitempty"`
	Intruder bool   `json:"intruder,omitempty"`
}

// ChoiceQuestion is a multiple-choice question with exactly one correct
// answer, used by the simple, buzzer and sudden-death modes.
type ChoiceQuestion struct {
	Text    string   `json:"text"`
	Theme   string   `json:"theme,omitempty"` // tagged at draw time
	Answers []Answer `json:"answers"`
	Active  *bool    `json:"active,omitempty"`
}

// IntrusQuestion carries several answers of which exactly one is the
// odd-one-out, used by the stop-or-encore mode.
type IntrusQuestion struct {
	Theme   string   `json:"theme"`
	Answers []Answer `json:"answers"`
	Active  *bool    `json:"active,omitempty"`
}

// EstimationQuestion asks for a numeric guess against a target value, with an
// optional tolerance band for partial credit.
type EstimationQuestion struct {
	Text      string `json:"text"`
	Answer    int    `json:"answer"`
	Tolerance int    `json:"tolerance,omitempty"`
	Active    *bool  `json:"active,omitempty"`
}

// Question is the tagged variant held by a session while one question is
// live. Exactly one of the three pointers is set, matching Kind.
type Question struct {
	Kind       string              `json:"kind"` // "choice", "intruder" or "estimation"
	Choice     *ChoiceQuestion     `json:"choice,omitempty"`
	Intruder   *IntrusQuestion     `json:"intruder,omitempty"`
	Estimation *EstimationQuestion `json:"estimation,omitempty"`
}

// questionActive reports the active flag, which defaults to true when absent
// from the data file.
func questionActive(flag *bool) bool {
	return flag == nil || *flag
}

// QuestionBank holds all three question pools. The canonical bank is loaded
// from disk once; each session plays against its own deep copy.
type QuestionBank struct {
	Simple     map[string][]ChoiceQuestion
	Intrus     []IntrusQuestion
	Estimation []EstimationQuestion
}

func (b *QuestionBank) deepCopy() *QuestionBank {
	dup := &QuestionBank{
		Simple:     make(map[string][]ChoiceQuestion, len(b.Simple)),
		Intrus:     make([]IntrusQuestion, len(b.Intrus)),
		Estimation: make([]EstimationQuestion, len(b.Estimation)),
	}

	for theme, questions := range b.Simple {
		themed := make([]ChoiceQuestion, len(questions))
		for i, q := range questions {
			q.Answers = append([]Answer(nil), q.Answers...)
			themed[i] = q
		}
		dup.Simple[theme] = themed
	}

	for i, q := range b.Intrus {
		q.Answers = append([]Answer(nil), q.Answers...)
		dup.Intrus[i] = q
	}

	copy(dup.Estimation, b.Estimation)

	return dup
}

// loadJSONFile decodes path into out, falling back to the zero value and
// rewriting the file when it is missing or corrupt. Data files never crash
// the process.
func loadJSONFile(cfg *Config, name string, out any) {
	path := filepath.Join(cfg.dataDir, name)

	data, err := os.ReadFile(path)
	if err == nil {
		err = json.Unmarshal(data, out)
	}
	if err != nil {
		logf(cfg, "DATA: %s unreadable (%v), starting empty", path, err)
		saveJSONFile(cfg, name, out)
		return
	}

	logf(cfg, "DATA: Loaded %s (%s)", path, humanReadableSize(int64(len(data))))
}

func saveJSONFile(cfg *Config, name string, in any) {
	path := filepath.Join(cfg.dataDir, name)

	data, err := json.MarshalIndent(in, "", "    ")
	if err != nil {
		logf(cfg, "DATA: Failed to encode %s: %v", name, err)
		return
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		logf(cfg, "DATA: Failed to write %s: %v", path, err)
	}
}

func loadQuestionBank(cfg *Config) *QuestionBank {
	bank := &QuestionBank{
		Simple:     make(map[string][]ChoiceQuestion),
		Intrus:     []IntrusQuestion{},
		Estimation: []EstimationQuestion{},
	}

	loadJSONFile(cfg, simpleQuestionsFile, &bank.Simple)
	loadJSONFile(cfg, intrusQuestionsFile, &bank.Intrus)
	loadJSONFile(cfg, estimationQuestionsFile, &bank.Estimation)

	return bank
}

// drawEstimation pops a uniformly random estimation question from the session
// pool, restocking from the canonical pool when empty. Returns nil only when
// the canonical pool itself is empty.
func drawEstimation(session, canonical *QuestionBank) *EstimationQuestion {
	if len(session.Estimation) == 0 {
		session.Estimation = append([]EstimationQuestion(nil), canonical.Estimation...)
	}
	if len(session.Estimation) == 0 {
		return nil
	}

	i := rand.Intn(len(session.Estimation))
	q := session.Estimation[i]
	session.Estimation = append(session.Estimation[:i], session.Estimation[i+1:]...)

	return &q
}

// activeSimpleThemes filters the session pool down to themes that still hold
// active questions and survive the allow-list.
func activeSimpleThemes(pool map[string][]ChoiceQuestion, allowed []string) map[string][]ChoiceQuestion {
	themes := make(map[string][]ChoiceQuestion)

	for theme, questions := range pool {
		var active []ChoiceQuestion
		for _, q := range questions {
			if questionActive(q.Active) {
				active = append(active, q)
			}
		}
		if len(active) == 0 {
			continue
		}
		if len(allowed) > 0 && !contains(allowed, theme) {
			continue
		}
		themes[theme] = active
	}

	return themes
}

func contains(list []string, s string) bool {
	for _, entry := range list {
		if entry == s {
			return true
		}
	}
	return false
}

// drawSimple picks a uniformly random theme among the survivors, then a
// uniformly random question within it, removing the question from the session
// pool. The whole pool is restocked from the canonical bank when no theme
// survives; nil is returned only if that still leaves nothing to draw. The
// returned question carries its theme tag.
func drawSimple(session, canonical *QuestionBank, allowed []string) *ChoiceQuestion {
	themes := activeSimpleThemes(session.Simple, allowed)

	if len(themes) == 0 {
		restock := canonical.deepCopy()
		session.Simple = restock.Simple
		themes = activeSimpleThemes(session.Simple, allowed)
	}

	if len(themes) == 0 {
		return nil
	}

	names := make([]string, 0, len(themes))
	for theme := range themes {
		names = append(names, theme)
	}
	theme := names[rand.Intn(len(names))]

	candidates := themes[theme]
	picked := candidates[rand.Intn(len(candidates))]

	remaining := session.Simple[theme][:0]
	for _, q := range session.Simple[theme] {
		if q.Text != picked.Text {
			remaining = append(remaining, q)
		}
	}
	if len(remaining) == 0 {
		delete(session.Simple, theme)
	} else {
		session.Simple[theme] = remaining
	}

	picked.Theme = theme
	picked.Answers = append([]Answer(nil), picked.Answers...)

	return &picked
}

// drawIntrus follows the same restock-on-exhaustion policy, filtering by the
// active flag and the intruder theme allow-list.
func drawIntrus(session, canonical *QuestionBank, allowed []string) *IntrusQuestion {
	eligible := func(pool []IntrusQuestion) []IntrusQuestion {
		var out []IntrusQuestion
		for _, q := range pool {
			if !questionActive(q.Active) {
				continue
			}
			if len(allowed) > 0 && !contains(allowed, q.Theme) {
				continue
			}
			out = append(out, q)
		}
		return out
	}

	candidates := eligible(session.Intrus)
	if len(candidates) == 0 {
		restock := canonical.deepCopy()
		session.Intrus = restock.Intrus
		candidates = eligible(session.Intrus)
	}
	if len(candidates) == 0 {
		return nil
	}

	picked := candidates[rand.Intn(len(candidates))]

	remaining := session.Intrus[:0]
	for _, q := range session.Intrus {
		if q.Theme == picked.Theme && sameAnswers(q.Answers, picked.Answers) {
			continue
		}
		remaining = append(remaining, q)
	}
	session.Intrus = remaining

	picked.Answers = append([]Answer(nil), picked.Answers...)

	return &picked
}

func sameAnswers(a, b []Answer) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func shuffleAnswers(answers []Answer) {
	rand.Shuffle(len(answers), func(i, j int) {
		answers[i], answers[j] = answers[j], answers[i]
	})
}

func correctIndex(answers []Answer) int {
	for i, a := range answers {
		if a.Correct {
			return i
		}
	}
	return -1
}
