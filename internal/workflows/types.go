package workflows

import "citegap/internal/models"

type PaperAuditInput struct {
	PaperPath string `json:"paper_path"`
}

type PaperAuditResult struct {
	PaperPath       string                           `json:"paper_path"`
	Status          string                           `json:"status"`
	FailReason      string                           `json:"fail_reason,omitempty"`
	TotalSentences  int                              `json:"total_sentences"`
	CitingSentences int                              `json:"citing_sentences"`
	Results         []models.SentenceRecommendations `json:"results"`
}

type AuditProgress struct {
	PaperPath   string            `json:"paper_path"`
	Total       int               `json:"total"`
	Done        int               `json:"done"`
	PerSentence map[string]string `json:"per_sentence_status"`
}

type CorpusAuditInput struct {
	InputDir              string `json:"input_dir"`
	MaxConcurrentChildren int    `json:"max_concurrent_children"`
}

type CorpusAuditProgress struct {
	Total         int               `json:"total"`
	Done          int               `json:"done"`
	Failed        int               `json:"failed"`
	PerPaper      map[string]string `json:"per_paper_status"`
	ChildWorkflow map[string]string `json:"child_workflow_ids,omitempty"`
}

type IndexPapersInput struct {
	Papers       []models.PaperInput `json:"papers"`
	SkipExisting bool                `json:"skip_existing"`
}

type IndexPapersResult struct {
	Inserted        int      `json:"inserted"`
	SkippedExisting int      `json:"skipped_existing"`
	Failed          int      `json:"failed"`
	Failures        []string `json:"failures,omitempty"`
}
