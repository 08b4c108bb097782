// Package rerank reorders retrieved candidates with a listwise LLM pass and
// keeps only the strongest few.
package rerank

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"citegap/internal/models"
	"citegap/internal/providers"
)

// Reranker reorders candidates by relevance to the query sentence and keeps
// at most topN of them. The result is always a subset of the input; an empty
// result is a valid verdict.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []models.Candidate, topN int) ([]models.Candidate, error)
}

// LLMReranker shows the model the query sentence and the numbered candidate
// list in one prompt and parses the ranking it returns.
type LLMReranker struct {
	llm providers.LLMProvider
}

func NewLLMReranker(llm providers.LLMProvider) *LLMReranker {
	return &LLMReranker{llm: llm}
}

func (r *LLMReranker) Rerank(ctx context.Context, query string, candidates []models.Candidate, topN int) ([]models.Candidate, error) {
	if len(candidates) == 0 || topN <= 0 {
		return []models.Candidate{}, nil
	}
	docs := make([]string, 0, len(candidates))
	for i, c := range candidates {
		docs = append(docs, fmt.Sprintf("[%d] %s", i+1, truncate(c.Content, 800)))
	}
	resp, _, err := r.llm.Generate(ctx, providers.GenerateRequest{
		Operation: "rerank",
		Prompt:    buildRerankPrompt(query, len(candidates), topN),
		Context:   docs,
	})
	if err != nil {
		return nil, fmt.Errorf("rerank generate: %w", err)
	}
	ranking := ParseRanking(resp.Text, len(candidates))
	if len(ranking) > topN {
		ranking = ranking[:topN]
	}
	out := make([]models.Candidate, 0, len(ranking))
	for _, idx := range ranking {
		out = append(out, candidates[idx])
	}
	return out, nil
}

func buildRerankPrompt(query string, n, topN int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A sentence from a manuscript cites a paper. Rank the numbered candidate papers in the context by how likely each is to be the paper this sentence cites.\n\nSentence:\n%s\n\n", query)
	fmt.Fprintf(&b, "There are %d candidates. Reply with a JSON object {\"ranking\": [...]} listing the numbers of at most %d plausible candidates, most likely first. Reply with {\"ranking\": []} if none fit.", n, topN)
	return b.String()
}

// ParseRanking extracts 1-based candidate numbers from a model response and
// converts them to input indexes, dropping out-of-range and repeated entries.
// Unparseable output yields an empty ranking.
func ParseRanking(raw string, n int) []int {
	raw = stripCodeFence(strings.TrimSpace(raw))
	if raw == "" {
		return nil
	}
	var payload struct {
		Ranking []int `json:"ranking"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	seen := make(map[int]struct{}, len(payload.Ranking))
	out := make([]int, 0, len(payload.Ranking))
	for _, v := range payload.Ranking {
		if v < 1 || v > n {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v-1)
	}
	return out
}

func stripCodeFence(s string) string {
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
