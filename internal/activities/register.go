package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.ListPDFsActivity)
	w.RegisterActivity(a.ExtractSentencesActivity)
	w.RegisterActivity(a.ClassifySentencesActivity)
	w.RegisterActivity(a.RetrieveCandidatesActivity)
	w.RegisterActivity(a.RerankCandidatesActivity)
	w.RegisterActivity(a.FilterIndexedActivity)
	w.RegisterActivity(a.IndexPapersActivity)
	w.RegisterActivity(a.WriteAuditReportActivity)
}
