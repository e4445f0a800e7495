package model

import (
	"regexp"
	"strings"
)

// Sentiment values derived from summarization output.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

var sentimentPattern = regexp.MustCompile(`(?i)sentiment[:\s]+(positive|neutral|negative)`)

// ParseSentiment extracts a sentiment label from free-text summarization
// output. It returns the matched sentiment and true, or ("", false) when the
// text carries no recognizable sentiment marker. The match is case
// insensitive; callers decide the fallback.
func ParseSentiment(text string) (string, bool) {
	m := sentimentPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.ToLower(m[1]), true
}

// SentimentOrNeutral parses text and falls back to neutral when absent.
func SentimentOrNeutral(text string) string {
	if s, ok := ParseSentiment(text); ok {
		return s
	}
	return SentimentNeutral
}
