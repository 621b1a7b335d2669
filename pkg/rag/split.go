package rag

import "strings"

const chunkSeparator = "\n\n"

// splitText cuts text into chunks of at most chunkSize bytes with the given
// overlap, preferring to break at paragraph boundaries. A non-positive
// chunkSize returns the text as a single chunk; a negative overlap counts as
// zero.
func splitText(text string, chunkSize int, chunkOverlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if chunkSize <= 0 || len(text) <= chunkSize {
		return []string{text}
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + chunkSize
		if end >= len(text) {
			end = len(text)
		} else if sep := strings.LastIndex(text[start:end], chunkSeparator); sep > 0 {
			end = start + sep
		}

		chunk := strings.TrimSpace(text[start:end])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end == len(text) {
			break
		}

		next := end - chunkOverlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}
