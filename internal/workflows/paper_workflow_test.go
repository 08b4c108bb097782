package workflows

import (
	"context"
	"errors"
	"testing"

	"citegap/internal/activities"
	"citegap/internal/models"
	"citegap/internal/providers"
	"citegap/internal/retriever"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
)

func registerActivityName[T any](env *testsuite.TestWorkflowEnvironment, name string, fn T) {
	env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

func retrieverResult(inserted int) retriever.IndexResult {
	return retriever.IndexResult{Inserted: inserted}
}

func registerAuditActivities(env *testsuite.TestWorkflowEnvironment) {
	registerActivityName(env, "ExtractSentencesActivity", func(context.Context, activities.ExtractSentencesInput) (activities.ExtractSentencesOutput, error) {
		return activities.ExtractSentencesOutput{}, nil
	})
	registerActivityName(env, "ClassifySentencesActivity", func(context.Context, activities.ClassifySentencesInput) (activities.ClassifySentencesOutput, error) {
		return activities.ClassifySentencesOutput{}, nil
	})
	registerActivityName(env, "RetrieveCandidatesActivity", func(context.Context, activities.RetrieveCandidatesInput) (activities.RetrieveCandidatesOutput, error) {
		return activities.RetrieveCandidatesOutput{}, nil
	})
	registerActivityName(env, "RerankCandidatesActivity", func(context.Context, activities.RerankCandidatesInput) (activities.RerankCandidatesOutput, error) {
		return activities.RerankCandidatesOutput{}, nil
	})
}

func TestPaperAuditWorkflowSuccess(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PaperAuditWorkflow)
	registerAuditActivities(env)

	env.OnActivity("ExtractSentencesActivity", mock.Anything, activities.ExtractSentencesInput{PaperPath: "/tmp/p.pdf"}).Return(activities.ExtractSentencesOutput{Sentences: []models.Sentence{
		{Text: "Prior work established this.", Position: 0},
		{Text: "We propose a new method.", Position: 1},
	}}, nil)
	env.OnActivity("ClassifySentencesActivity", mock.Anything, mock.Anything).Return(activities.ClassifySentencesOutput{Predictions: []providers.Prediction{
		{Label: true, Score: 0.98},
		{Label: false, Score: 0.91},
	}}, nil)
	env.OnActivity("RetrieveCandidatesActivity", mock.Anything, activities.RetrieveCandidatesInput{Sentence: "Prior work established this."}).Return(activities.RetrieveCandidatesOutput{Candidates: []models.Candidate{
		{PaperID: "p1", Title: "First Paper", Content: "First Paper\nabstract one"},
		{PaperID: "p2", Title: "Second Paper", Content: "Second Paper\nabstract two"},
	}}, nil)
	env.OnActivity("RerankCandidatesActivity", mock.Anything, mock.Anything).Return(activities.RerankCandidatesOutput{Titles: []string{"Second Paper", "First Paper"}}, nil)

	env.ExecuteWorkflow(PaperAuditWorkflow, PaperAuditInput{PaperPath: "/tmp/p.pdf"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out PaperAuditResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "completed", out.Status)
	require.Equal(t, 2, out.TotalSentences)
	require.Equal(t, 1, out.CitingSentences)
	require.Len(t, out.Results, 1)
	require.Equal(t, "Prior work established this.", out.Results[0].Sentence)
	require.Equal(t, []string{"Second Paper", "First Paper"}, out.Results[0].Titles)
}

func TestPaperAuditWorkflowNoCitingSentences(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PaperAuditWorkflow)
	registerAuditActivities(env)

	env.OnActivity("ExtractSentencesActivity", mock.Anything, mock.Anything).Return(activities.ExtractSentencesOutput{Sentences: []models.Sentence{
		{Text: "We propose a new method.", Position: 0},
	}}, nil)
	env.OnActivity("ClassifySentencesActivity", mock.Anything, mock.Anything).Return(activities.ClassifySentencesOutput{Predictions: []providers.Prediction{
		{Label: false, Score: 0.88},
	}}, nil)

	env.ExecuteWorkflow(PaperAuditWorkflow, PaperAuditInput{PaperPath: "/tmp/p.pdf"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out PaperAuditResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "completed", out.Status)
	require.Equal(t, 0, out.CitingSentences)
	require.Empty(t, out.Results)
}

func TestPaperAuditWorkflowNoTextFailsGracefully(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PaperAuditWorkflow)
	registerAuditActivities(env)

	env.OnActivity("ExtractSentencesActivity", mock.Anything, mock.Anything).Return(activities.ExtractSentencesOutput{}, errors.New("no extractable text found in PDF"))

	env.ExecuteWorkflow(PaperAuditWorkflow, PaperAuditInput{PaperPath: "/tmp/p.pdf"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out PaperAuditResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "failed", out.Status)
	require.Contains(t, out.FailReason, "no extractable text")
}

func TestPaperAuditWorkflowNoAbstractFailsGracefully(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PaperAuditWorkflow)
	registerAuditActivities(env)

	env.OnActivity("ExtractSentencesActivity", mock.Anything, mock.Anything).Return(activities.ExtractSentencesOutput{}, errors.New("no Abstract section found in extracted text"))

	env.ExecuteWorkflow(PaperAuditWorkflow, PaperAuditInput{PaperPath: "/tmp/p.pdf"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out PaperAuditResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "failed", out.Status)
	require.Contains(t, out.FailReason, "Abstract")
}

func TestIndexPapersWorkflowSkipExisting(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(IndexPapersWorkflow)
	registerActivityName(env, "FilterIndexedActivity", func(context.Context, activities.FilterIndexedInput) (activities.FilterIndexedOutput, error) {
		return activities.FilterIndexedOutput{}, nil
	})
	registerActivityName(env, "IndexPapersActivity", func(context.Context, activities.IndexPapersInput) (activities.IndexPapersOutput, error) {
		return activities.IndexPapersOutput{}, nil
	})

	env.OnActivity("FilterIndexedActivity", mock.Anything, activities.FilterIndexedInput{Titles: []string{"Known Paper", "New Paper"}}).Return(activities.FilterIndexedOutput{Keep: []bool{false, true}}, nil)
	env.OnActivity("IndexPapersActivity", mock.Anything, activities.IndexPapersInput{Papers: []models.PaperInput{{Title: "New Paper", Abstract: "abs"}}}).Return(activities.IndexPapersOutput{Result: retrieverResult(1)}, nil)

	env.ExecuteWorkflow(IndexPapersWorkflow, IndexPapersInput{
		Papers: []models.PaperInput{
			{Title: "Known Paper", Abstract: "abs"},
			{Title: "New Paper", Abstract: "abs"},
		},
		SkipExisting: true,
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out IndexPapersResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, 1, out.Inserted)
	require.Equal(t, 1, out.SkippedExisting)
	require.Equal(t, 0, out.Failed)
}

func TestIndexPapersWorkflowAllExisting(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(IndexPapersWorkflow)
	registerActivityName(env, "FilterIndexedActivity", func(context.Context, activities.FilterIndexedInput) (activities.FilterIndexedOutput, error) {
		return activities.FilterIndexedOutput{}, nil
	})

	env.OnActivity("FilterIndexedActivity", mock.Anything, mock.Anything).Return(activities.FilterIndexedOutput{Keep: []bool{false}}, nil)

	env.ExecuteWorkflow(IndexPapersWorkflow, IndexPapersInput{
		Papers:       []models.PaperInput{{Title: "Known Paper", Abstract: "abs"}},
		SkipExisting: true,
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out IndexPapersResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, 0, out.Inserted)
	require.Equal(t, 1, out.SkippedExisting)
}
