package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeQuestionFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "questions.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoadQuestionBank(t *testing.T) {
	tests := []struct {
		name          string
		content       string
		max           int
		expectedError bool
		validate      func(t *testing.T, bank *QuestionBank)
	}{
		{
			name: "valid file with header",
			content: "text;correct;wrong1;wrong2;wrong3\n" +
				"Capital of France?;Paris;London;Berlin;Madrid\n" +
				"Largest planet?;Jupiter;Mars;Venus;Saturn\n",
			max: 30,
			validate: func(t *testing.T, bank *QuestionBank) {
				require.Equal(t, 2, bank.Len())
				assert.Equal(t, "Capital of France?", bank.questions[0].Text)
				assert.Equal(t, "Paris", bank.questions[0].Correct)
				assert.Equal(t, []string{"London", "Berlin", "Madrid"}, bank.questions[0].Wrong)
			},
		},
		{
			name: "short rows skipped",
			content: "text;correct;wrong1;wrong2;wrong3\n" +
				"incomplete;row\n" +
				"Capital of France?;Paris;London;Berlin;Madrid\n",
			max: 30,
			validate: func(t *testing.T, bank *QuestionBank) {
				require.Equal(t, 1, bank.Len())
				assert.Equal(t, "Capital of France?", bank.questions[0].Text)
			},
		},
		{
			name: "fields trimmed",
			content: "text;correct;wrong1;wrong2;wrong3\n" +
				" Capital of France? ; Paris ; London ; Berlin ; Madrid \n",
			max: 30,
			validate: func(t *testing.T, bank *QuestionBank) {
				require.Equal(t, 1, bank.Len())
				assert.Equal(t, "Paris", bank.questions[0].Correct)
				assert.Equal(t, "Madrid", bank.questions[0].Wrong[2])
			},
		},
		{
			name: "truncated to max",
			content: "text;correct;wrong1;wrong2;wrong3\n" +
				"q1?;a;b;c;d\n" +
				"q2?;a;b;c;d\n" +
				"q3?;a;b;c;d\n",
			max: 2,
			validate: func(t *testing.T, bank *QuestionBank) {
				assert.Equal(t, 2, bank.Len())
			},
		},
		{
			name:          "empty file",
			content:       "",
			max:           30,
			expectedError: true,
		},
		{
			name:          "header only",
			content:       "text;correct;wrong1;wrong2;wrong3\n",
			max:           30,
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bank, err := loadQuestionBank(writeQuestionFile(t, tt.content), tt.max)

			if tt.expectedError {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			tt.validate(t, bank)
		})
	}
}

func TestLoadQuestionBankMissingFile(t *testing.T) {
	_, err := loadQuestionBank(filepath.Join(t.TempDir(), "nope.csv"), 30)
	require.Error(t, err)
}

func TestShuffledOrder(t *testing.T) {
	bank := testBank(10)

	order := bank.ShuffledOrder(30)
	require.Len(t, order, 10)

	order = bank.ShuffledOrder(4)
	require.Len(t, order, 4)

	seen := make(map[int]bool)
	for _, i := range order {
		assert.GreaterOrEqual(t, i, 0)
		assert.Less(t, i, 10)
		assert.False(t, seen[i], "duplicate index %d", i)
		seen[i] = true
	}
}

func TestRender(t *testing.T) {
	bank := testBank(3)

	for i := 0; i < 20; i++ {
		rendered := bank.Render(1)

		require.Len(t, rendered.Choices, 4)
		require.GreaterOrEqual(t, rendered.CorrectIndex, 0)
		require.Less(t, rendered.CorrectIndex, 4)

		assert.Equal(t, bank.questions[1].Correct, rendered.Choices[rendered.CorrectIndex])
		assert.ElementsMatch(t,
			append([]string{bank.questions[1].Correct}, bank.questions[1].Wrong...),
			rendered.Choices,
		)
	}
}
