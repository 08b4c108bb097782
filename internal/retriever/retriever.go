// Package retriever implements the per-sentence citation pipeline: classify
// manuscript sentences, retrieve candidate papers for the citing ones, and
// rerank the candidates into recommendations.
package retriever

import (
	"context"
	"fmt"

	"citegap/internal/extract"
	"citegap/internal/models"
	"citegap/internal/providers"
	"citegap/internal/rerank"
	"citegap/internal/util"
)

// taskInstruction conditions the query embedding toward abstract retrieval.
// It is applied to the query side only; chunk text is embedded as-is.
const taskInstruction = "Given a sentence where a paper is cited, find the abstract of the paper it cites."

func formatQueryInstruction(task, query string) string {
	return fmt.Sprintf("Instruct: %s\nQuery: %s", task, query)
}

// PaperStore is the document-store surface the pipeline needs.
type PaperStore interface {
	InsertPapers(ctx context.Context, papers []models.PaperInput) ([]models.PaperInsert, error)
	GetPapersByIDs(ctx context.Context, ids []string) ([]models.Paper, error)
	TitleExists(ctx context.Context, title string) (bool, error)
}

// ChunkStore persists chunks with their embeddings.
type ChunkStore interface {
	InsertChunks(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error
}

// ChunkSearcher runs similarity search over stored chunk embeddings.
type ChunkSearcher interface {
	SearchChunks(ctx context.Context, queryVec []float32, k, fetchK int) ([]models.ChunkHit, error)
}

type ExtractFunc func(path string, opts extract.Options) (string, error)

type SplitFunc func(text string) []string

type Options struct {
	EmbedDim     int
	ChunkSize    int
	ChunkOverlap int
	RetrieveK    int
	FetchK       int
	RerankTopN   int
}

type Deps struct {
	Embedder   providers.EmbeddingProvider
	Classifier providers.SentenceClassifier
	Papers     PaperStore
	Chunks     ChunkStore
	Searcher   ChunkSearcher
	Reranker   rerank.Reranker
	Extract    ExtractFunc
	Split      SplitFunc
}

type Retriever struct {
	deps Deps
	opts Options
}

// New validates the collaborators up front so a partially wired pipeline
// cannot start. Extract and Split default to the PDF extractor and the
// built-in sentence splitter.
func New(deps Deps, opts Options) (*Retriever, error) {
	switch {
	case deps.Embedder == nil:
		return nil, fmt.Errorf("retriever: embedder is required")
	case deps.Classifier == nil:
		return nil, fmt.Errorf("retriever: classifier is required")
	case deps.Papers == nil:
		return nil, fmt.Errorf("retriever: paper store is required")
	case deps.Chunks == nil:
		return nil, fmt.Errorf("retriever: chunk store is required")
	case deps.Searcher == nil:
		return nil, fmt.Errorf("retriever: searcher is required")
	case deps.Reranker == nil:
		return nil, fmt.Errorf("retriever: reranker is required")
	}
	if deps.Extract == nil {
		deps.Extract = extract.Text
	}
	if deps.Split == nil {
		deps.Split = util.SplitSentences
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 300
	}
	if opts.ChunkOverlap < 0 {
		opts.ChunkOverlap = 0
	}
	if opts.RetrieveK <= 0 {
		opts.RetrieveK = 50
	}
	if opts.FetchK <= 0 {
		opts.FetchK = 10000
	}
	if opts.RerankTopN <= 0 {
		opts.RerankTopN = 5
	}
	return &Retriever{deps: deps, opts: opts}, nil
}

// sentenceState carries one sentence through the pipeline. Steps run in
// order and each consumes its predecessor's output.
type sentenceState struct {
	Sentence  string
	Retrieved []models.Candidate
	Reordered []string
}

type step struct {
	name string
	run  func(ctx context.Context, st *sentenceState) error
}

func (r *Retriever) pipeline() []step {
	return []step{
		{name: "retrieve", run: func(ctx context.Context, st *sentenceState) error {
			cands, err := r.RetrieveCandidates(ctx, st.Sentence)
			if err != nil {
				return err
			}
			st.Retrieved = cands
			return nil
		}},
		{name: "reorder", run: func(ctx context.Context, st *sentenceState) error {
			titles, err := r.RerankCandidates(ctx, st.Sentence, st.Retrieved)
			if err != nil {
				return err
			}
			st.Reordered = titles
			return nil
		}},
	}
}

// CheckSentence runs one sentence through retrieve then reorder. A failed
// step aborts the sentence; no step is retried.
func (r *Retriever) CheckSentence(ctx context.Context, sentence string) (models.SentenceRecommendations, error) {
	st := &sentenceState{Sentence: sentence}
	for _, s := range r.pipeline() {
		if err := s.run(ctx, st); err != nil {
			return models.SentenceRecommendations{}, fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return models.SentenceRecommendations{Sentence: sentence, Titles: st.Reordered}, nil
}

// RetrieveCandidates embeds the instruction-prefixed sentence, searches the
// chunk index, and joins hits back to their parent papers. Hits whose paper
// no longer exists are dropped; papers hit through multiple chunks appear
// once, at their best hit's rank.
func (r *Retriever) RetrieveCandidates(ctx context.Context, sentence string) ([]models.Candidate, error) {
	query := formatQueryInstruction(taskInstruction, sentence)
	vecs, _, err := r.deps.Embedder.Embed(ctx, providers.EmbedRequest{
		Operation: "query",
		Inputs:    []string{query},
		Dimension: r.opts.EmbedDim,
	})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(vecs))
	}
	hits, err := r.deps.Searcher.SearchChunks(ctx, vecs[0], r.opts.RetrieveK, r.opts.FetchK)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	seen := make(map[string]struct{}, len(hits))
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		if _, ok := seen[h.PaperID]; ok {
			continue
		}
		seen[h.PaperID] = struct{}{}
		ids = append(ids, h.PaperID)
	}
	papers, err := r.deps.Papers.GetPapersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("join papers: %w", err)
	}
	out := make([]models.Candidate, 0, len(papers))
	for _, p := range papers {
		out = append(out, models.Candidate{
			PaperID: p.PaperID,
			Title:   p.Title,
			Content: p.Title + "\n\n" + p.Abstract,
		})
	}
	return out, nil
}

// RerankCandidates reduces retrieved candidates to recommended titles, best
// first. The reranker sees the same instruction-prefixed query string as the
// retrieval stage. No candidates in, no titles out.
func (r *Retriever) RerankCandidates(ctx context.Context, sentence string, candidates []models.Candidate) ([]string, error) {
	if len(candidates) == 0 {
		return []string{}, nil
	}
	query := formatQueryInstruction(taskInstruction, sentence)
	kept, err := r.deps.Reranker.Rerank(ctx, query, candidates, r.opts.RerankTopN)
	if err != nil {
		return nil, fmt.Errorf("rerank candidates: %w", err)
	}
	titles := make([]string, 0, len(kept))
	for _, c := range kept {
		titles = append(titles, c.Title)
	}
	return titles, nil
}

// ClassifySentences labels sentences, preserving length and order. An empty
// input is a valid call with an empty result.
func (r *Retriever) ClassifySentences(ctx context.Context, sentences []string) ([]providers.Prediction, error) {
	if len(sentences) == 0 {
		return []providers.Prediction{}, nil
	}
	preds, err := r.deps.Classifier.Classify(ctx, sentences)
	if err != nil {
		return nil, fmt.Errorf("classify sentences: %w", err)
	}
	if len(preds) != len(sentences) {
		return nil, fmt.Errorf("classifier returned %d predictions for %d sentences", len(preds), len(sentences))
	}
	return preds, nil
}

// PrepareSentences splits manuscript text and discards sentences that already
// carry a citation marker; those are cited and need nothing. The remaining
// sentences, hyphenation repaired, go to the classifier, which decides which
// of them should have cited something.
func (r *Retriever) PrepareSentences(text string) []models.Sentence {
	out := make([]models.Sentence, 0)
	for i, s := range r.deps.Split(text) {
		if util.ContainsCitationMarker(s) {
			continue
		}
		out = append(out, models.Sentence{Text: util.CleanHyphenation(s), Position: i})
	}
	return out
}

// ExtractSentences pulls body text out of the PDF (references and front
// matter removed) and prepares its not-yet-cited sentences.
func (r *Retriever) ExtractSentences(path string) ([]models.Sentence, error) {
	text, err := r.deps.Extract(path, extract.Options{RemoveReferences: true, RemoveAbstract: true})
	if err != nil {
		return nil, err
	}
	return r.PrepareSentences(text), nil
}

// CheckText classifies the prepared sentences of already-extracted text and
// runs the pipeline for each citing one, sequentially and independently. A
// manuscript with no citing sentences yields an empty result.
func (r *Retriever) CheckText(ctx context.Context, text string) ([]models.SentenceRecommendations, error) {
	sentences := r.PrepareSentences(text)
	texts := make([]string, 0, len(sentences))
	for _, s := range sentences {
		texts = append(texts, s.Text)
	}
	preds, err := r.ClassifySentences(ctx, texts)
	if err != nil {
		return nil, err
	}
	out := make([]models.SentenceRecommendations, 0, len(sentences))
	for i, s := range sentences {
		if !preds[i].Label {
			continue
		}
		rec, err := r.CheckSentence(ctx, s.Text)
		if err != nil {
			return nil, fmt.Errorf("sentence %d: %w", s.Position, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// CheckPaper runs the whole audit for one manuscript PDF.
func (r *Retriever) CheckPaper(ctx context.Context, path string) ([]models.SentenceRecommendations, error) {
	text, err := r.deps.Extract(path, extract.Options{RemoveReferences: true, RemoveAbstract: true})
	if err != nil {
		return nil, err
	}
	return r.CheckText(ctx, text)
}

// IsAlreadyIndexed reports whether a paper with this exact title is in the
// index. Callers may use it as an advisory pre-filter; it is not a lock.
func (r *Retriever) IsAlreadyIndexed(ctx context.Context, title string) (bool, error) {
	return r.deps.Papers.TitleExists(ctx, title)
}

// IndexResult summarizes one bulk indexing call.
type IndexResult struct {
	Inserted int      `json:"inserted"`
	Failed   int      `json:"failed"`
	Failures []string `json:"failures,omitempty"`
	PaperIDs []string `json:"paper_ids,omitempty"`
}

// IndexPapers bulk-inserts papers, then chunks and embeds the title+abstract
// text of every successfully inserted one. Items the store rejected are
// excluded from chunking and reported in the result; they never fail the
// call.
func (r *Retriever) IndexPapers(ctx context.Context, papers []models.PaperInput) (IndexResult, error) {
	if len(papers) == 0 {
		return IndexResult{}, nil
	}
	inserts, err := r.deps.Papers.InsertPapers(ctx, papers)
	if err != nil {
		return IndexResult{}, fmt.Errorf("insert papers: %w", err)
	}
	if len(inserts) != len(papers) {
		return IndexResult{}, fmt.Errorf("store returned %d results for %d papers", len(inserts), len(papers))
	}

	res := IndexResult{}
	chunks := make([]models.Chunk, 0, len(papers))
	texts := make([]string, 0, len(papers))
	for i, ins := range inserts {
		if ins.Err != "" || ins.PaperID == "" {
			res.Failed++
			res.Failures = append(res.Failures, fmt.Sprintf("%s: %s", papers[i].Title, ins.Err))
			continue
		}
		res.Inserted++
		res.PaperIDs = append(res.PaperIDs, ins.PaperID)
		doc := papers[i].Title + "\n\n" + papers[i].Abstract
		for idx, tc := range util.ChunkText(doc, r.opts.ChunkSize, r.opts.ChunkOverlap) {
			chunks = append(chunks, models.Chunk{
				ChunkID:     util.SHA256Hex([]byte(fmt.Sprintf("%s:%d:%s", ins.PaperID, idx, util.SHA256Hex([]byte(tc.Text))))),
				PaperID:     ins.PaperID,
				ChunkIndex:  idx,
				StartOffset: tc.StartOffset,
				Text:        tc.Text,
			})
			texts = append(texts, tc.Text)
		}
	}
	if len(chunks) == 0 {
		return res, nil
	}
	vecs, _, err := r.deps.Embedder.Embed(ctx, providers.EmbedRequest{
		Operation: "index",
		Inputs:    texts,
		Dimension: r.opts.EmbedDim,
	})
	if err != nil {
		return IndexResult{}, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vecs) != len(chunks) {
		return IndexResult{}, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), len(chunks))
	}
	if err := r.deps.Chunks.InsertChunks(ctx, chunks, vecs); err != nil {
		return IndexResult{}, fmt.Errorf("store chunks: %w", err)
	}
	return res, nil
}
