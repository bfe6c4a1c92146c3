// Package budget provides token budget estimation and retrieved-context
// trimming for answer composition. Because the answer model is selectable
// across backends with different tokenizers, this package uses a
// conservative character-based heuristic: 1 token ≈ 4 characters (English
// prose and code). This deliberately under-estimates token counts to
// leave headroom for model-specific overhead.
package budget

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English and code; using 3
	// would be more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Conservative enough to fit within 8k-context models while leaving
	// room for the output. Override via answer.Config.MaxContextTokens.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// TrimSections returns the number of leading sections that fit within
// maxTokens alongside the fixed text. fixed is the part of the prompt that
// must not be trimmed (instructions and the question); sections are the
// rendered retrieved pages, ordered best-first, so trimming drops the
// weakest hits from the tail.
//
// At least one section is always kept when any exist, even if it exceeds
// the budget alone: answering from a truncated context beats refusing.
func TrimSections(fixed string, sections []string, maxTokens int) int {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxContextTokens
	}
	if len(sections) == 0 {
		return 0
	}

	remaining := maxTokens - Estimate(fixed)
	kept := 0
	for _, s := range sections {
		cost := Estimate(s)
		if kept > 0 && cost > remaining {
			break
		}
		remaining -= cost
		kept++
	}
	return kept
}
