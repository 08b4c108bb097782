package activities

import (
	"citegap/internal/models"
	"citegap/internal/providers"
	"citegap/internal/retriever"
)

type ListPDFsInput struct {
	InputDir string `json:"input_dir"`
}

type ListPDFsOutput struct {
	Paths []string `json:"paths"`
}

type ExtractSentencesInput struct {
	PaperPath string `json:"paper_path"`
}

type ExtractSentencesOutput struct {
	Sentences []models.Sentence `json:"sentences"`
}

type ClassifySentencesInput struct {
	Sentences []string `json:"sentences"`
}

type ClassifySentencesOutput struct {
	Predictions []providers.Prediction `json:"predictions"`
}

type RetrieveCandidatesInput struct {
	Sentence string `json:"sentence"`
}

type RetrieveCandidatesOutput struct {
	Candidates []models.Candidate `json:"candidates"`
}

type RerankCandidatesInput struct {
	Sentence   string             `json:"sentence"`
	Candidates []models.Candidate `json:"candidates"`
}

type RerankCandidatesOutput struct {
	Titles []string `json:"titles"`
}

type FilterIndexedInput struct {
	Titles []string `json:"titles"`
}

// Keep[i] is false when Titles[i] is already indexed.
type FilterIndexedOutput struct {
	Keep []bool `json:"keep"`
}

type IndexPapersInput struct {
	Papers []models.PaperInput `json:"papers"`
}

type IndexPapersOutput struct {
	Result retriever.IndexResult `json:"result"`
}

type WriteAuditReportInput struct {
	RunID           string                           `json:"run_id"`
	Summary         map[string]any                   `json:"summary"`
	Recommendations []models.SentenceRecommendations `json:"recommendations"`
}

type WriteAuditReportOutput struct {
	ReportPath          string `json:"report_path"`
	RecommendationsPath string `json:"recommendations_path"`
}
