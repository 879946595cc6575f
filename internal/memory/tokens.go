package memory

// EstimateStringTokens estimates the token count for a string.
// Uses a simple heuristic of 4 characters per token for speed; this is
// roughly accurate for English text with typical LLM tokenization and is
// designed to be fast rather than perfectly accurate. Non-empty strings
// always count as at least one token so budget math never divides to zero.
func EstimateStringTokens(s string) int {
	if len(s) == 0 {
		return 0
	}
	tokens := len(s) / 4
	if tokens == 0 {
		return 1
	}
	return tokens
}
