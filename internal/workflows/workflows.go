package workflows

import (
	"fmt"
	"strings"
	"time"

	"citegap/internal/activities"
	"citegap/internal/models"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	QueryGetAuditProgress  = "GetAuditProgress"
	QueryGetCorpusProgress = "GetCorpusProgress"
)

// PaperAuditWorkflow audits one manuscript: extract the sentences that do not
// already cite anything, classify them, and run retrieve+rerank for each one
// the classifier flags as citing. Sentences are processed strictly in order;
// each one finishes both stages before the next starts.
func PaperAuditWorkflow(ctx workflow.Context, input PaperAuditInput) (PaperAuditResult, error) {
	progress := AuditProgress{PaperPath: input.PaperPath, PerSentence: map[string]string{}}
	if err := workflow.SetQueryHandler(ctx, QueryGetAuditProgress, func() (AuditProgress, error) {
		return progress, nil
	}); err != nil {
		return PaperAuditResult{}, err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    2,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	result := PaperAuditResult{PaperPath: input.PaperPath, Status: "processing"}

	var extracted activities.ExtractSentencesOutput
	if err := workflow.ExecuteActivity(ctx, "ExtractSentencesActivity", activities.ExtractSentencesInput{PaperPath: input.PaperPath}).Get(ctx, &extracted); err != nil {
		if isInputError(err) {
			result.Status = "failed"
			result.FailReason = inputErrorReason(err)
			return result, nil
		}
		return PaperAuditResult{}, err
	}
	result.TotalSentences = len(extracted.Sentences)

	texts := make([]string, 0, len(extracted.Sentences))
	for _, s := range extracted.Sentences {
		texts = append(texts, s.Text)
	}
	var classified activities.ClassifySentencesOutput
	if err := workflow.ExecuteActivity(ctx, "ClassifySentencesActivity", activities.ClassifySentencesInput{Sentences: texts}).Get(ctx, &classified); err != nil {
		return PaperAuditResult{}, err
	}

	citing := make([]string, 0, len(texts))
	for i, p := range classified.Predictions {
		if p.Label {
			citing = append(citing, texts[i])
		}
	}
	result.CitingSentences = len(citing)
	progress.Total = len(citing)

	for i, sentence := range citing {
		key := fmt.Sprintf("s%03d", i)
		progress.PerSentence[key] = "retrieving"
		var retrieved activities.RetrieveCandidatesOutput
		if err := workflow.ExecuteActivity(ctx, "RetrieveCandidatesActivity", activities.RetrieveCandidatesInput{Sentence: sentence}).Get(ctx, &retrieved); err != nil {
			progress.PerSentence[key] = "failed"
			return PaperAuditResult{}, err
		}
		progress.PerSentence[key] = "reranking"
		var reranked activities.RerankCandidatesOutput
		if err := workflow.ExecuteActivity(ctx, "RerankCandidatesActivity", activities.RerankCandidatesInput{Sentence: sentence, Candidates: retrieved.Candidates}).Get(ctx, &reranked); err != nil {
			progress.PerSentence[key] = "failed"
			return PaperAuditResult{}, err
		}
		result.Results = append(result.Results, models.SentenceRecommendations{Sentence: sentence, Titles: reranked.Titles})
		progress.PerSentence[key] = "done"
		progress.Done++
	}

	result.Status = "completed"
	return result, nil
}

// CorpusAuditWorkflow audits every PDF in a directory through bounded
// batches of child PaperAuditWorkflows and writes one combined report.
func CorpusAuditWorkflow(ctx workflow.Context, input CorpusAuditInput) (string, error) {
	progress := CorpusAuditProgress{PerPaper: map[string]string{}, ChildWorkflow: map[string]string{}}
	if err := workflow.SetQueryHandler(ctx, QueryGetCorpusProgress, func() (CorpusAuditProgress, error) {
		return progress, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var listOut activities.ListPDFsOutput
	if err := workflow.ExecuteActivity(ctx, "ListPDFsActivity", activities.ListPDFsInput{InputDir: input.InputDir}).Get(ctx, &listOut); err != nil {
		return "", err
	}
	paths := listOut.Paths
	progress.Total = len(paths)
	maxChildren := input.MaxConcurrentChildren
	if maxChildren <= 0 {
		maxChildren = 3
	}

	runID := workflow.GetInfo(ctx).WorkflowExecution.RunID
	summary := map[string]any{"input_dir": input.InputDir, "run_id": runID}
	perPaper := map[string]any{}
	recommendations := make([]models.SentenceRecommendations, 0)

	for i := 0; i < len(paths); i += maxChildren {
		end := i + maxChildren
		if end > len(paths) {
			end = len(paths)
		}
		futures := make([]workflow.ChildWorkflowFuture, 0, end-i)
		childPaths := make([]string, 0, end-i)
		for _, path := range paths[i:end] {
			progress.PerPaper[path] = "processing"
			workflowID := "audit-" + sanitizeID(filepathBase(path)) + "-" + sanitizeID(runID)
			childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{WorkflowID: workflowID})
			futures = append(futures, workflow.ExecuteChildWorkflow(childCtx, PaperAuditWorkflow, PaperAuditInput{PaperPath: path}))
			childPaths = append(childPaths, path)
			progress.ChildWorkflow[path] = workflowID
		}
		for idx, f := range futures {
			path := childPaths[idx]
			var child PaperAuditResult
			if err := f.Get(ctx, &child); err != nil {
				progress.Failed++
				progress.PerPaper[path] = "failed"
				perPaper[path] = map[string]any{"status": "failed", "error": err.Error()}
				continue
			}
			progress.Done++
			progress.PerPaper[path] = child.Status
			if child.Status == "failed" {
				progress.Failed++
			}
			perPaper[path] = map[string]any{
				"status":           child.Status,
				"fail_reason":      child.FailReason,
				"total_sentences":  child.TotalSentences,
				"citing_sentences": child.CitingSentences,
			}
			recommendations = append(recommendations, child.Results...)
		}
	}

	summary["total"] = progress.Total
	summary["done"] = progress.Done
	summary["failed"] = progress.Failed
	summary["per_paper"] = perPaper
	summary["generated_at"] = workflow.Now(ctx)

	var reportOut activities.WriteAuditReportOutput
	if err := workflow.ExecuteActivity(ctx, "WriteAuditReportActivity", activities.WriteAuditReportInput{
		RunID:           sanitizeID(runID),
		Summary:         summary,
		Recommendations: recommendations,
	}).Get(ctx, &reportOut); err != nil {
		return "", err
	}
	return reportOut.ReportPath, nil
}

// IndexPapersWorkflow inserts papers into the retrieval index, optionally
// skipping titles that are already indexed.
func IndexPapersWorkflow(ctx workflow.Context, input IndexPapersInput) (IndexPapersResult, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    2,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	papers := input.Papers
	result := IndexPapersResult{}
	if input.SkipExisting && len(papers) > 0 {
		titles := make([]string, 0, len(papers))
		for _, p := range papers {
			titles = append(titles, p.Title)
		}
		var filtered activities.FilterIndexedOutput
		if err := workflow.ExecuteActivity(ctx, "FilterIndexedActivity", activities.FilterIndexedInput{Titles: titles}).Get(ctx, &filtered); err != nil {
			return IndexPapersResult{}, err
		}
		kept := papers[:0:0]
		for i, keep := range filtered.Keep {
			if keep {
				kept = append(kept, papers[i])
			} else {
				result.SkippedExisting++
			}
		}
		papers = kept
	}
	if len(papers) == 0 {
		return result, nil
	}

	var out activities.IndexPapersOutput
	if err := workflow.ExecuteActivity(ctx, "IndexPapersActivity", activities.IndexPapersInput{Papers: papers}).Get(ctx, &out); err != nil {
		return IndexPapersResult{}, err
	}
	result.Inserted = out.Result.Inserted
	result.Failed = out.Result.Failed
	result.Failures = out.Result.Failures
	return result, nil
}

func isInputError(err error) bool {
	e := strings.ToLower(err.Error())
	return strings.Contains(e, "no extractable text") || strings.Contains(e, "no abstract section")
}

func inputErrorReason(err error) string {
	e := strings.ToLower(err.Error())
	if strings.Contains(e, "no abstract section") {
		return "no Abstract section found in extracted text"
	}
	return "no extractable text found (OCR not enabled)"
}

func filepathBase(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) == 0 {
		return path
	}
	return parts[len(parts)-1]
}

func sanitizeID(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, ".", "-")
	s = strings.ReplaceAll(s, "/", "-")
	return s
}
