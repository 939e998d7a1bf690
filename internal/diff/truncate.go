package diff

// TruncationMarker separates the kept head and tail of a truncated diff.
const TruncationMarker = "\n...\n"

// TruncateForPrompt bounds text to roughly maxChars runes by keeping the first
// and last maxChars/2 runes around TruncationMarker. Text that already fits is
// returned unchanged, as is any text when maxChars <= 0.
func TruncateForPrompt(text string, maxChars int) string {
	if maxChars <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	half := maxChars / 2
	head := string(runes[:half])
	tail := string(runes[len(runes)-half:])
	return head + TruncationMarker + tail
}
