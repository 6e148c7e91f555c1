/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"strings"
)

// Question is a single quiz question as loaded from the question file.
// Immutable once loaded.
type Question struct {
	Text    string
	Correct string
	Wrong   []string
}

// QuestionBank holds the ordered set of questions loaded at startup.
type QuestionBank struct {
	questions []Question
}

// loadQuestionBank reads a semicolon-delimited file with one question per
// row (text; correct; wrong1; wrong2; wrong3). The first row is treated as
// a header and skipped, as are rows with fewer than five fields. The result
// is truncated to max questions. A bank without at least one question is an
// error, and fatal to startup.
func loadQuestionBank(path string, max int) (*QuestionBank, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse question file %s: %w", path, err)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("question file %s is empty", path)
	}

	questions := make([]Question, 0, len(rows)-1)

	for _, row := range rows[1:] {
		if len(row) < 5 {
			continue
		}

		questions = append(questions, Question{
			Text:    strings.TrimSpace(row[0]),
			Correct: strings.TrimSpace(row[1]),
			Wrong: []string{
				strings.TrimSpace(row[2]),
				strings.TrimSpace(row[3]),
				strings.TrimSpace(row[4]),
			},
		})

		if len(questions) == max {
			break
		}
	}

	if len(questions) == 0 {
		return nil, fmt.Errorf("no questions loaded from %s", path)
	}

	return &QuestionBank{questions: questions}, nil
}

func (b *QuestionBank) Len() int {
	return len(b.questions)
}

// ShuffledOrder returns a random permutation of up to max question indices.
func (b *QuestionBank) ShuffledOrder(max int) []int {
	count := min(len(b.questions), max)

	order := rand.Perm(len(b.questions))[:count]

	return order
}

// RenderedQuestion is a question prepared for play: the correct answer
// shuffled in among the wrong ones, with its position recorded. The correct
// index is never sent to clients before the reveal.
type RenderedQuestion struct {
	Text         string
	Choices      []string
	CorrectIndex int
}

// Render shuffles the four choices of the question at the given index.
func (b *QuestionBank) Render(index int) *RenderedQuestion {
	q := b.questions[index]

	choices := make([]string, 0, len(q.Wrong)+1)
	choices = append(choices, q.Wrong...)
	choices = append(choices, q.Correct)

	rand.Shuffle(len(choices), func(i, j int) {
		choices[i], choices[j] = choices[j], choices[i]
	})

	correctIndex := 0
	for i, c := range choices {
		if c == q.Correct {
			correctIndex = i
			break
		}
	}

	return &RenderedQuestion{
		Text:         q.Text,
		Choices:      choices,
		CorrectIndex: correctIndex,
	}
}
