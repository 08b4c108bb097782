package retriever

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"

	"citegap/internal/extract"
	"citegap/internal/models"
	"citegap/internal/providers"
	"citegap/internal/util"

	"github.com/stretchr/testify/require"
)

// memIndex is an in-memory paper+chunk store with brute-force vector search,
// so indexing and retrieval can be exercised end to end.
type memIndex struct {
	nextID     int
	papers     map[string]models.Paper
	chunks     []models.Chunk
	vectors    [][]float32
	failTitles map[string]bool
}

func newMemIndex() *memIndex {
	return &memIndex{papers: map[string]models.Paper{}, failTitles: map[string]bool{}}
}

func (m *memIndex) InsertPapers(ctx context.Context, papers []models.PaperInput) ([]models.PaperInsert, error) {
	out := make([]models.PaperInsert, 0, len(papers))
	for _, p := range papers {
		if m.failTitles[p.Title] {
			out = append(out, models.PaperInsert{Err: "mapping conflict"})
			continue
		}
		m.nextID++
		id := fmt.Sprintf("paper-%04d", m.nextID)
		m.papers[id] = models.Paper{PaperID: id, Title: p.Title, Abstract: p.Abstract}
		out = append(out, models.PaperInsert{PaperID: id})
	}
	return out, nil
}

func (m *memIndex) GetPapersByIDs(ctx context.Context, ids []string) ([]models.Paper, error) {
	out := make([]models.Paper, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.papers[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memIndex) TitleExists(ctx context.Context, title string) (bool, error) {
	for _, p := range m.papers {
		if p.Title == title {
			return true, nil
		}
	}
	return false, nil
}

func (m *memIndex) InsertChunks(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("count mismatch")
	}
	m.chunks = append(m.chunks, chunks...)
	m.vectors = append(m.vectors, vectors...)
	return nil
}

func (m *memIndex) SearchChunks(ctx context.Context, queryVec []float32, k, fetchK int) ([]models.ChunkHit, error) {
	hits := make([]models.ChunkHit, 0, len(m.chunks))
	for i, c := range m.chunks {
		hits = append(hits, models.ChunkHit{
			ChunkID: c.ChunkID, PaperID: c.PaperID, ChunkIndex: c.ChunkIndex,
			StartOffset: c.StartOffset, Text: c.Text, Score: dot(queryVec, m.vectors[i]),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		if i >= len(b) {
			break
		}
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

// scriptedSearcher returns fixed hits regardless of the query.
type scriptedSearcher struct {
	hits []models.ChunkHit
}

func (s *scriptedSearcher) SearchChunks(ctx context.Context, queryVec []float32, k, fetchK int) ([]models.ChunkHit, error) {
	return s.hits, nil
}

// keywordClassifier labels a sentence positive when it contains the keyword,
// and records every input it sees.
type keywordClassifier struct {
	keyword string
	seen    []string
}

func (c *keywordClassifier) Classify(ctx context.Context, sentences []string) ([]providers.Prediction, error) {
	c.seen = append(c.seen, sentences...)
	out := make([]providers.Prediction, 0, len(sentences))
	for _, s := range sentences {
		out = append(out, providers.Prediction{Label: strings.Contains(s, c.keyword), Score: 0.9})
	}
	return out, nil
}

type brokenClassifier struct{}

func (brokenClassifier) Classify(ctx context.Context, sentences []string) ([]providers.Prediction, error) {
	return []providers.Prediction{}, nil
}

// passReranker keeps input order, capped at topN, and records the queries and
// candidate sets it was handed.
type passReranker struct {
	queries []string
	calls   [][]models.Candidate
}

func (r *passReranker) Rerank(ctx context.Context, query string, candidates []models.Candidate, topN int) ([]models.Candidate, error) {
	cp := make([]models.Candidate, len(candidates))
	copy(cp, candidates)
	r.queries = append(r.queries, query)
	r.calls = append(r.calls, cp)
	if len(candidates) > topN {
		candidates = candidates[:topN]
	}
	return candidates, nil
}

func newTestRetriever(t *testing.T, idx *memIndex, deps Deps, opts Options) *Retriever {
	t.Helper()
	if deps.Embedder == nil {
		deps.Embedder = providers.NewMockProvider(64)
	}
	if deps.Classifier == nil {
		deps.Classifier = &keywordClassifier{keyword: "shown"}
	}
	if deps.Papers == nil {
		deps.Papers = idx
	}
	if deps.Chunks == nil {
		deps.Chunks = idx
	}
	if deps.Searcher == nil {
		deps.Searcher = idx
	}
	if deps.Reranker == nil {
		deps.Reranker = &passReranker{}
	}
	if opts.EmbedDim == 0 {
		opts.EmbedDim = 64
	}
	r, err := New(deps, opts)
	require.NoError(t, err)
	return r
}

func TestNewValidatesDeps(t *testing.T) {
	_, err := New(Deps{}, Options{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "embedder")
}

func TestIndexPapersPairsChunksWithParents(t *testing.T) {
	idx := newMemIndex()
	r := newTestRetriever(t, idx, Deps{}, Options{ChunkSize: 40, ChunkOverlap: 10})

	res, err := r.IndexPapers(context.Background(), []models.PaperInput{
		{Title: "Paper A", Abstract: strings.Repeat("alpha beta gamma ", 10)},
		{Title: "Paper B", Abstract: "Short abstract."},
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.Inserted)
	require.Zero(t, res.Failed)
	require.Len(t, res.PaperIDs, 2)

	require.NotEmpty(t, idx.chunks)
	known := map[string]bool{}
	for _, id := range res.PaperIDs {
		known[id] = true
	}
	for _, c := range idx.chunks {
		require.True(t, known[c.PaperID], "chunk %s has unknown parent %s", c.ChunkID, c.PaperID)
		require.GreaterOrEqual(t, c.StartOffset, 0)
		require.NotEmpty(t, c.Text)
	}
}

func TestIndexPapersExcludesFailedItems(t *testing.T) {
	idx := newMemIndex()
	idx.failTitles["Paper B"] = true
	r := newTestRetriever(t, idx, Deps{}, Options{})

	res, err := r.IndexPapers(context.Background(), []models.PaperInput{
		{Title: "Paper A", Abstract: "First abstract."},
		{Title: "Paper B", Abstract: "Second abstract."},
		{Title: "Paper C", Abstract: "Third abstract."},
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.Inserted)
	require.Equal(t, 1, res.Failed)
	require.Len(t, res.Failures, 1)
	require.Contains(t, res.Failures[0], "Paper B")

	for _, c := range idx.chunks {
		require.NotEmpty(t, idx.papers[c.PaperID].Title)
		require.NotEqual(t, "Paper B", idx.papers[c.PaperID].Title)
	}
}

func TestIndexPapersEmpty(t *testing.T) {
	r := newTestRetriever(t, newMemIndex(), Deps{}, Options{})
	res, err := r.IndexPapers(context.Background(), nil)
	require.NoError(t, err)
	require.Zero(t, res.Inserted)
}

func TestRetrieveCandidatesJoinAndDedup(t *testing.T) {
	idx := newMemIndex()
	idx.papers["p1"] = models.Paper{PaperID: "p1", Title: "First", Abstract: "First abstract"}
	idx.papers["p2"] = models.Paper{PaperID: "p2", Title: "Second", Abstract: "Second abstract"}
	searcher := &scriptedSearcher{hits: []models.ChunkHit{
		{ChunkID: "c1", PaperID: "p2", Score: 0.9},
		{ChunkID: "c2", PaperID: "p1", Score: 0.8},
		{ChunkID: "c3", PaperID: "p2", Score: 0.7},
		{ChunkID: "c4", PaperID: "gone", Score: 0.6},
	}}
	r := newTestRetriever(t, idx, Deps{Searcher: searcher}, Options{})

	cands, err := r.RetrieveCandidates(context.Background(), "As shown in prior studies.")
	require.NoError(t, err)
	require.Len(t, cands, 2)
	require.Equal(t, "p2", cands[0].PaperID)
	require.Equal(t, "p1", cands[1].PaperID)
	require.Equal(t, "Second\n\nSecond abstract", cands[0].Content)
}

func TestCheckSentenceEmptyIndex(t *testing.T) {
	r := newTestRetriever(t, newMemIndex(), Deps{}, Options{})
	rec, err := r.CheckSentence(context.Background(), "As shown in prior work.")
	require.NoError(t, err)
	require.Empty(t, rec.Titles)
}

func TestCheckSentenceStageOrder(t *testing.T) {
	idx := newMemIndex()
	idx.papers["p1"] = models.Paper{PaperID: "p1", Title: "Only", Abstract: "Only abstract"}
	searcher := &scriptedSearcher{hits: []models.ChunkHit{{ChunkID: "c1", PaperID: "p1", Score: 0.5}}}
	rr := &passReranker{}
	r := newTestRetriever(t, idx, Deps{Searcher: searcher, Reranker: rr}, Options{})

	rec, err := r.CheckSentence(context.Background(), "As shown in earlier work.")
	require.NoError(t, err)
	require.Equal(t, []string{"Only"}, rec.Titles)
	// the reranker saw exactly the retrieved set
	require.Len(t, rr.calls, 1)
	require.Len(t, rr.calls[0], 1)
	require.Equal(t, "p1", rr.calls[0][0].PaperID)
}

func TestRerankUsesInstructionQuery(t *testing.T) {
	idx := newMemIndex()
	idx.papers["p1"] = models.Paper{PaperID: "p1", Title: "Only", Abstract: "Only abstract"}
	searcher := &scriptedSearcher{hits: []models.ChunkHit{{ChunkID: "c1", PaperID: "p1", Score: 0.5}}}
	rr := &passReranker{}
	r := newTestRetriever(t, idx, Deps{Searcher: searcher, Reranker: rr}, Options{})

	_, err := r.CheckSentence(context.Background(), "Transformers changed the field.")
	require.NoError(t, err)
	require.Len(t, rr.queries, 1)
	require.True(t, strings.HasPrefix(rr.queries[0], "Instruct: "))
	require.True(t, strings.HasSuffix(rr.queries[0], "\nQuery: Transformers changed the field."))
}

func TestClassifySentencesEmpty(t *testing.T) {
	clf := &keywordClassifier{keyword: "shown"}
	r := newTestRetriever(t, newMemIndex(), Deps{Classifier: clf}, Options{})
	preds, err := r.ClassifySentences(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, preds)
	require.Empty(t, clf.seen)
}

func TestClassifySentencesCountMismatch(t *testing.T) {
	r := newTestRetriever(t, newMemIndex(), Deps{Classifier: brokenClassifier{}}, Options{})
	_, err := r.ClassifySentences(context.Background(), []string{"A sentence."})
	require.Error(t, err)
}

func TestPrepareSentencesDropsAlreadyCited(t *testing.T) {
	r := newTestRetriever(t, newMemIndex(), Deps{}, Options{})
	text := "Deep learning models [1] achieve high accuracy. Neural networks are power-\nful tools. Tagged claim <GC:x.y> appears here."
	got := r.PrepareSentences(text)
	require.Len(t, got, 1)
	require.Equal(t, "Neural networks are powerful tools.", got[0].Text)
	for _, s := range got {
		require.False(t, util.ContainsCitationMarker(s.Text))
	}
}

func TestCheckTextOneEntryPerKeptSentence(t *testing.T) {
	idx := newMemIndex()
	clf := &keywordClassifier{keyword: "shown"}
	r := newTestRetriever(t, idx, Deps{Classifier: clf}, Options{})

	_, err := r.IndexPapers(context.Background(), []models.PaperInput{
		{Title: "Paper A", Abstract: "About alpha things."},
		{Title: "Paper B", Abstract: "About beta things."},
	})
	require.NoError(t, err)

	text := "Cited claim appears here [1]. It was shown earlier. Unmarked filler sentence here. More was shown recently."
	recs, err := r.CheckText(context.Background(), text)
	require.NoError(t, err)

	// the already-cited sentence never reaches the classifier; two of the
	// three remaining sentences are citing
	require.Len(t, clf.seen, 3)
	for _, s := range clf.seen {
		require.False(t, util.ContainsCitationMarker(s))
	}
	require.Len(t, recs, 2)
	for _, rec := range recs {
		require.Contains(t, rec.Sentence, "shown")
		require.LessOrEqual(t, len(rec.Titles), 5)
		for _, title := range rec.Titles {
			require.Contains(t, []string{"Paper A", "Paper B"}, title)
		}
	}
}

func TestCheckTextNoCitingSentences(t *testing.T) {
	r := newTestRetriever(t, newMemIndex(), Deps{}, Options{})
	recs, err := r.CheckText(context.Background(), "An already cited sentence [1]. Nothing the classifier keeps.")
	require.NoError(t, err)
	require.NotNil(t, recs)
	require.Empty(t, recs)
}

func TestCheckPaperUsesExtractor(t *testing.T) {
	idx := newMemIndex()
	extracted := "Results were shown before. Cited claim appears here [1]."
	r := newTestRetriever(t, idx, Deps{
		Extract: func(path string, _ extract.Options) (string, error) {
			require.Equal(t, "paper.pdf", path)
			return extracted, nil
		},
	}, Options{})
	recs, err := r.CheckPaper(context.Background(), "paper.pdf")
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func TestQueryInstructionFormat(t *testing.T) {
	got := formatQueryInstruction(taskInstruction, "A sentence [1].")
	require.True(t, strings.HasPrefix(got, "Instruct: "))
	require.Contains(t, got, "\nQuery: A sentence [1].")
}
