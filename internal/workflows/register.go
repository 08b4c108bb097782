package workflows

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker) {
	w.RegisterWorkflow(PaperAuditWorkflow)
	w.RegisterWorkflow(CorpusAuditWorkflow)
	w.RegisterWorkflow(IndexPapersWorkflow)
}
