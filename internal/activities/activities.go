package activities

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"citegap/internal/config"
	"citegap/internal/providers"
	"citegap/internal/rerank"
	"citegap/internal/retriever"
	"citegap/internal/storage"
	"citegap/internal/util"
	"citegap/internal/vector"
)

type Activities struct {
	cfg   config.Config
	core  *retriever.Retriever
	paper *storage.PaperRepo
}

func New(cfg config.Config, db *storage.DB) (*Activities, error) {
	pm, err := providers.NewManager(cfg)
	if err != nil {
		return nil, err
	}
	clf, err := providers.NewClassifierFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	paperRepo := storage.NewPaperRepo(db)
	core, err := retriever.New(retriever.Deps{
		Embedder:   pm.FirstEmbedProvider(),
		Classifier: clf,
		Papers:     paperRepo,
		Chunks:     storage.NewChunkRepo(db),
		Searcher:   vector.NewSearcher(db.Pool),
		Reranker:   rerank.NewLLMReranker(pm.FirstLLMProvider()),
	}, retriever.Options{
		EmbedDim:     cfg.EmbedDim,
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		RetrieveK:    cfg.RetrieveK,
		FetchK:       cfg.FetchK,
		RerankTopN:   cfg.RerankTopN,
	})
	if err != nil {
		return nil, err
	}
	return &Activities{cfg: cfg, core: core, paper: paperRepo}, nil
}

func (a *Activities) ListPDFsActivity(ctx context.Context, in ListPDFsInput) (ListPDFsOutput, error) {
	_ = ctx
	entries, err := os.ReadDir(in.InputDir)
	if err != nil {
		return ListPDFsOutput{}, fmt.Errorf("read input dir: %w", err)
	}
	paths := make([]string, 0)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ".pdf") {
			paths = append(paths, filepath.Join(in.InputDir, e.Name()))
		}
	}
	sort.Strings(paths)
	return ListPDFsOutput{Paths: paths}, nil
}

func (a *Activities) ExtractSentencesActivity(ctx context.Context, in ExtractSentencesInput) (ExtractSentencesOutput, error) {
	_ = ctx
	sentences, err := a.core.ExtractSentences(in.PaperPath)
	if err != nil {
		return ExtractSentencesOutput{}, err
	}
	return ExtractSentencesOutput{Sentences: sentences}, nil
}

func (a *Activities) ClassifySentencesActivity(ctx context.Context, in ClassifySentencesInput) (ClassifySentencesOutput, error) {
	preds, err := a.core.ClassifySentences(ctx, in.Sentences)
	if err != nil {
		return ClassifySentencesOutput{}, err
	}
	return ClassifySentencesOutput{Predictions: preds}, nil
}

func (a *Activities) RetrieveCandidatesActivity(ctx context.Context, in RetrieveCandidatesInput) (RetrieveCandidatesOutput, error) {
	cands, err := a.core.RetrieveCandidates(ctx, in.Sentence)
	if err != nil {
		return RetrieveCandidatesOutput{}, err
	}
	return RetrieveCandidatesOutput{Candidates: cands}, nil
}

func (a *Activities) RerankCandidatesActivity(ctx context.Context, in RerankCandidatesInput) (RerankCandidatesOutput, error) {
	titles, err := a.core.RerankCandidates(ctx, in.Sentence, in.Candidates)
	if err != nil {
		return RerankCandidatesOutput{}, err
	}
	return RerankCandidatesOutput{Titles: titles}, nil
}

func (a *Activities) FilterIndexedActivity(ctx context.Context, in FilterIndexedInput) (FilterIndexedOutput, error) {
	keep := make([]bool, len(in.Titles))
	for i, title := range in.Titles {
		exists, err := a.core.IsAlreadyIndexed(ctx, title)
		if err != nil {
			return FilterIndexedOutput{}, err
		}
		keep[i] = !exists
	}
	return FilterIndexedOutput{Keep: keep}, nil
}

func (a *Activities) IndexPapersActivity(ctx context.Context, in IndexPapersInput) (IndexPapersOutput, error) {
	res, err := a.core.IndexPapers(ctx, in.Papers)
	if err != nil {
		return IndexPapersOutput{}, err
	}
	return IndexPapersOutput{Result: res}, nil
}

func (a *Activities) WriteAuditReportActivity(ctx context.Context, in WriteAuditReportInput) (WriteAuditReportOutput, error) {
	_ = ctx
	base := filepath.Join(a.cfg.DataOutRoot, "audits", in.RunID)
	reportPath := filepath.Join(base, "report.json")
	if err := util.WriteJSONAtomic(reportPath, in.Summary); err != nil {
		return WriteAuditReportOutput{}, err
	}
	rows := make([]any, 0, len(in.Recommendations))
	for _, rec := range in.Recommendations {
		rows = append(rows, rec)
	}
	recsPath := filepath.Join(base, "recommendations.jsonl")
	if err := util.WriteJSONLinesAtomic(recsPath, rows); err != nil {
		return WriteAuditReportOutput{}, err
	}
	return WriteAuditReportOutput{ReportPath: reportPath, RecommendationsPath: recsPath}, nil
}
