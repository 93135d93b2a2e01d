package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestionActiveDefaultsTrue(t *testing.T) {
	assert.True(t, questionActive(nil))
	assert.True(t, questionActive(boolPtr(true)))
	assert.False(t, questionActive(boolPtr(false)))
}

func TestDrawSimpleNoRepeatUntilRestock(t *testing.T) {
	canonical := testBank()
	session := canonical.deepCopy()

	seen := make(map[string]bool)
	total := 0
	for _, pool := range canonical.Simple {
		total += len(pool)
	}

	for i := 0; i < total; i++ {
		q := drawSimple(session, canonical, nil)
		require.NotNil(t, q)
		assert.False(t, seen[q.Text], "question %q drawn twice before restock", q.Text)
		seen[q.Text] = true
	}

	// Pool exhausted; the next draw restocks from the canonical bank.
	q := drawSimple(session, canonical, nil)
	require.NotNil(t, q)
	assert.True(t, seen[q.Text])
}

func TestDrawSimpleThemeAllowList(t *testing.T) {
	canonical := testBank()
	session := canonical.deepCopy()

	for i := 0; i < 10; i++ {
		q := drawSimple(session, canonical, []string{"history"})
		require.NotNil(t, q)
		assert.Equal(t, "history", q.Theme)
	}
}

func TestDrawSimpleSkipsInactive(t *testing.T) {
	canonical := &QuestionBank{
		Simple: map[string][]ChoiceQuestion{
			"misc": {
				{Text: "on", Answers: []Answer{{Text: "a", Correct: true}}},
				{Text: "off", Active: boolPtr(false), Answers: []Answer{{Text: "a", Correct: true}}},
			},
		},
	}
	session := canonical.deepCopy()

	for i := 0; i < 5; i++ {
		q := drawSimple(session, canonical, nil)
		require.NotNil(t, q)
		assert.Equal(t, "on", q.Text)
	}
}

func TestDrawSimpleEmptyCanonical(t *testing.T) {
	canonical := &QuestionBank{Simple: map[string][]ChoiceQuestion{}}
	session := canonical.deepCopy()

	assert.Nil(t, drawSimple(session, canonical, nil))
}

func TestDrawIntrusFiltersAndRestocks(t *testing.T) {
	canonical := testBank()
	session := canonical.deepCopy()

	q := drawIntrus(session, canonical, []string{"fruits"})
	require.NotNil(t, q)
	assert.Equal(t, "fruits", q.Theme)

	// Only one fruits question exists, so the next allow-listed draw must
	// restock and serve it again.
	q = drawIntrus(session, canonical, []string{"fruits"})
	require.NotNil(t, q)
	assert.Equal(t, "fruits", q.Theme)

	assert.Nil(t, drawIntrus(session, canonical, []string{"no-such-theme"}))
}

func TestDrawEstimationRestocks(t *testing.T) {
	canonical := testBank()
	session := canonical.deepCopy()

	texts := make(map[string]bool)
	for i := 0; i < len(canonical.Estimation); i++ {
		q := drawEstimation(session, canonical)
		require.NotNil(t, q)
		texts[q.Text] = true
	}
	assert.Len(t, texts, len(canonical.Estimation))

	require.NotNil(t, drawEstimation(session, canonical))
}

func TestDeepCopyIsolation(t *testing.T) {
	canonical := testBank()
	dup := canonical.deepCopy()

	dup.Simple["science"][0].Text = "mutated"
	dup.Intrus[0].Answers[0].Text = "mutated"

	assert.Equal(t, "s1", canonical.Simple["science"][0].Text)
	assert.Equal(t, "paris", canonical.Intrus[0].Answers[0].Text)
}

func TestCorrectIndex(t *testing.T) {
	answers := []Answer{{Text: "a"}, {Text: "b", Correct: true}, {Text: "c"}}
	assert.Equal(t, 1, correctIndex(answers))
	assert.Equal(t, -1, correctIndex([]Answer{{Text: "a"}}))
}
