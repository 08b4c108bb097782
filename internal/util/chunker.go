package util

import "strings"

// TextChunk is one fixed-size window of a larger text, with the window's rune
// offset into the original.
type TextChunk struct {
	Text        string
	StartOffset int
}

// ChunkText splits text into chunkSize-rune windows advancing by
// chunkSize-overlap. Text shorter than chunkSize yields a single chunk.
func ChunkText(text string, chunkSize, overlap int) []TextChunk {
	if chunkSize <= 0 {
		chunkSize = 300
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	runes := []rune(text)
	step := chunkSize - overlap
	if step <= 0 {
		step = chunkSize
	}
	out := make([]TextChunk, 0)
	for i := 0; i < len(runes); i += step {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		part := strings.TrimSpace(string(runes[i:end]))
		if part != "" {
			out = append(out, TextChunk{Text: part, StartOffset: i})
		}
		if end == len(runes) {
			break
		}
	}
	return out
}
