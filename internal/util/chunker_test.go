package util

import (
	"strings"
	"testing"
)

func TestChunkText(t *testing.T) {
	text := "abcdefghijklmnopqrstuvwxyz"
	chunks := ChunkText(text, 10, 2)
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}
	if chunks[0].Text != "abcdefghij" {
		t.Fatalf("unexpected first chunk: %s", chunks[0].Text)
	}
	if chunks[0].StartOffset != 0 || chunks[1].StartOffset != 8 {
		t.Fatalf("unexpected offsets: %d, %d", chunks[0].StartOffset, chunks[1].StartOffset)
	}
}

func TestChunkTextShortInput(t *testing.T) {
	chunks := ChunkText("short text", 300, 100)
	if len(chunks) != 1 {
		t.Fatalf("expected single chunk, got %d", len(chunks))
	}
	if chunks[0].Text != "short text" || chunks[0].StartOffset != 0 {
		t.Fatalf("unexpected chunk: %+v", chunks[0])
	}
}

func TestChunkTextEmpty(t *testing.T) {
	if chunks := ChunkText("", 300, 100); len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
}

func TestChunkTextOffsetsIndexOriginal(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog and keeps on running far away."
	runes := []rune(text)
	for _, c := range ChunkText(text, 20, 5) {
		end := c.StartOffset + 20
		if end > len(runes) {
			end = len(runes)
		}
		window := string(runes[c.StartOffset:end])
		if !strings.Contains(window, c.Text) {
			t.Fatalf("offset %d does not locate chunk %q", c.StartOffset, c.Text)
		}
	}
}
