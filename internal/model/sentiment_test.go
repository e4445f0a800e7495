package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSentiment(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		expectOK bool
	}{
		{
			name:     "positive with colon",
			input:    "Summary: great call.\nSentiment: positive\nAction items: none",
			expected: SentimentPositive,
			expectOK: true,
		},
		{
			name:     "negative mixed case",
			input:    "2. SENTIMENT: Negative",
			expected: SentimentNegative,
			expectOK: true,
		},
		{
			name:     "neutral with whitespace separator",
			input:    "sentiment  neutral overall",
			expected: SentimentNeutral,
			expectOK: true,
		},
		{
			name:     "embedded in sentence",
			input:    "The caller's sentiment: positive, they asked for pricing.",
			expected: SentimentPositive,
			expectOK: true,
		},
		{
			name:     "no sentiment marker",
			input:    "The customer asked about pricing and scheduled a demo.",
			expected: "",
			expectOK: false,
		},
		{
			name:     "unrecognized label",
			input:    "Sentiment: ambivalent",
			expected: "",
			expectOK: false,
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
			expectOK: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, ok := ParseSentiment(tc.input)
			assert.Equal(t, tc.expectOK, ok)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestSentimentOrNeutral(t *testing.T) {
	assert.Equal(t, SentimentPositive, SentimentOrNeutral("Sentiment: positive"))
	assert.Equal(t, SentimentNeutral, SentimentOrNeutral("no marker at all"))
	assert.Equal(t, SentimentNegative, SentimentOrNeutral("sentiment: NEGATIVE"))
}
