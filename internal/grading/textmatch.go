package grading

import "strings"

// normalize trims surrounding whitespace and case-folds the rest.
// Inner whitespace and punctuation are kept as-is.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsCorrect reports whether a selected answer matches the designated correct
// answer, ignoring case and surrounding whitespace.
func IsCorrect(selected, correct string) bool {
	return strings.EqualFold(strings.TrimSpace(selected), strings.TrimSpace(correct))
}

// Score is the percentage of correct answers. Zero when there are no questions.
func Score(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return 100 * float64(correct) / float64(total)
}
