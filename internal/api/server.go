package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"citegap/internal/config"
	"citegap/internal/models"
	"citegap/internal/providers"
	"citegap/internal/rerank"
	"citegap/internal/retriever"
	"citegap/internal/storage"
	"citegap/internal/util"
	"citegap/internal/vector"
	"citegap/internal/workflows"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"
)

type Server struct {
	cfg       config.Config
	db        *storage.DB
	paperRepo *storage.PaperRepo
	core      *retriever.Retriever
	temporal  tclient.Client
}

func NewServer(cfg config.Config) *Server {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		panic(err)
	}
	pm, err := providers.NewManager(cfg)
	if err != nil {
		panic(err)
	}
	clf, err := providers.NewClassifierFromConfig(cfg)
	if err != nil {
		panic(err)
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
		panic(err)
	}
	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		panic(err)
	}
	return &Server{
		cfg:       cfg,
		db:        db,
		paperRepo: paperRepo,
		core:      core,
		temporal:  tc,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/papers", s.handlePapers)
	mux.HandleFunc("/papers/exists", s.handlePaperExists)
	mux.HandleFunc("/papers/upload", s.handleUpload)
	mux.HandleFunc("/classify", s.handleClassify)
	mux.HandleFunc("/check", s.handleCheck)
	mux.HandleFunc("/audit", s.handleAudit)
	mux.HandleFunc("/audit/", s.handleAuditScoped)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handlePapers indexes abstracts synchronously. Large backfills should go
// through the IndexPapersWorkflow instead.
func (s *Server) handlePapers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		Papers       []models.PaperInput `json:"papers"`
		SkipExisting bool                `json:"skip_existing"`
		Async        bool                `json:"async"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	if len(req.Papers) == 0 {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("papers are required"))
		return
	}
	for _, p := range req.Papers {
		if strings.TrimSpace(p.Title) == "" || strings.TrimSpace(p.Abstract) == "" {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("every paper needs a title and an abstract"))
			return
		}
	}

	if req.Async {
		wfID := "index-" + uuid.NewString()
		we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
			ID:        wfID,
			TaskQueue: s.cfg.TemporalTaskQueue,
		}, workflows.IndexPapersWorkflow, workflows.IndexPapersInput{
			Papers:       req.Papers,
			SkipExisting: req.SkipExisting,
		})
		if err != nil {
			writeErr(w, http.StatusConflict, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"workflow_id": we.GetID(), "run_id": we.GetRunID()})
		return
	}

	papers := req.Papers
	skipped := 0
	if req.SkipExisting {
		kept := papers[:0:0]
		for _, p := range papers {
			exists, err := s.core.IsAlreadyIndexed(r.Context(), p.Title)
			if err != nil {
				writeErr(w, http.StatusInternalServerError, err)
				return
			}
			if exists {
				skipped++
				continue
			}
			kept = append(kept, p)
		}
		papers = kept
	}
	res := retriever.IndexResult{}
	if len(papers) > 0 {
		var err error
		res, err = s.core.IndexPapers(r.Context(), papers)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"inserted":         res.Inserted,
		"failed":           res.Failed,
		"failures":         res.Failures,
		"skipped_existing": skipped,
	})
}

func (s *Server) handlePaperExists(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	title := strings.TrimSpace(r.URL.Query().Get("title"))
	if title == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("title is required"))
		return
	}
	exists, err := s.core.IsAlreadyIndexed(r.Context(), title)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"title": title, "exists": exists})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	if err := r.ParseMultipartForm(128 << 20); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		if single, ok := firstSingleFile(r.MultipartForm.File); ok {
			files = append(files, single)
		}
	}
	if len(files) == 0 {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("no files provided"))
		return
	}

	if err := util.EnsureDir(s.cfg.DataInRoot); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	type uploadResult struct {
		Filename string `json:"filename"`
		Path     string `json:"path"`
		SHA256   string `json:"sha256"`
	}
	out := make([]uploadResult, 0, len(files))

	for _, fh := range files {
		if !strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") {
			continue
		}
		digest, savedPath, err := saveUploadedFile(s.cfg.DataInRoot, fh)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		out = append(out, uploadResult{Filename: filepath.Base(savedPath), Path: savedPath, SHA256: digest})
	}

	writeJSON(w, http.StatusOK, map[string]any{"uploaded": out})
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		Sentences []string `json:"sentences"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	if len(req.Sentences) == 0 {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("sentences are required"))
		return
	}
	preds, err := s.core.ClassifySentences(r.Context(), req.Sentences)
	if err != nil {
		writeErr(w, http.StatusBadGateway, fmt.Errorf("classification failed: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"predictions": preds})
}

// handleCheck runs the full pipeline synchronously over raw text or an
// already-uploaded PDF. Long manuscripts should use /audit.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		Text      string `json:"text"`
		PaperPath string `json:"paper_path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	req.PaperPath = strings.TrimSpace(req.PaperPath)
	if req.Text == "" && req.PaperPath == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("text or paper_path is required"))
		return
	}

	var (
		results []models.SentenceRecommendations
		err     error
	)
	if req.Text != "" {
		results, err = s.core.CheckText(r.Context(), req.Text)
	} else {
		path := filepath.Clean(req.PaperPath)
		if !strings.HasPrefix(path, filepath.Clean(s.cfg.DataInRoot)+string(os.PathSeparator)) {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("paper_path must be under the upload root"))
			return
		}
		results, err = s.core.CheckPaper(r.Context(), path)
	}
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results, "count": len(results)})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		PaperPath string `json:"paper_path"`
		InputDir  string `json:"input_dir"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	req.PaperPath = strings.TrimSpace(req.PaperPath)
	req.InputDir = strings.TrimSpace(req.InputDir)
	if (req.PaperPath == "") == (req.InputDir == "") {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("exactly one of paper_path or input_dir is required"))
		return
	}

	wfID := "audit-" + uuid.NewString()
	opts := tclient.StartWorkflowOptions{
		ID:                    wfID,
		TaskQueue:             s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}
	var (
		we  tclient.WorkflowRun
		err error
	)
	if req.PaperPath != "" {
		we, err = s.temporal.ExecuteWorkflow(r.Context(), opts, workflows.PaperAuditWorkflow, workflows.PaperAuditInput{PaperPath: req.PaperPath})
	} else {
		we, err = s.temporal.ExecuteWorkflow(r.Context(), opts, workflows.CorpusAuditWorkflow, workflows.CorpusAuditInput{
			InputDir:              req.InputDir,
			MaxConcurrentChildren: s.cfg.AuditMaxChildren,
		})
	}
	if err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"workflow_id": we.GetID(), "run_id": we.GetRunID()})
}

func (s *Server) handleAuditScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/audit/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	workflowID := parts[0]

	var paperProg workflows.AuditProgress
	resp, err := s.temporal.QueryWorkflow(r.Context(), workflowID, "", workflows.QueryGetAuditProgress)
	if err == nil {
		if err := resp.Get(&paperProg); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, paperProg)
		return
	}

	var corpusProg workflows.CorpusAuditProgress
	resp, err = s.temporal.QueryWorkflow(r.Context(), workflowID, "", workflows.QueryGetCorpusProgress)
	if err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	if err := resp.Get(&corpusProg); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, corpusProg)
}

func saveUploadedFile(dstDir string, fh *multipart.FileHeader) (digest, path string, err error) {
	src, err := fh.Open()
	if err != nil {
		return "", "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(dstDir, "upload-*.pdf")
	if err != nil {
		return "", "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
	}()

	digest, err = util.SHA256HexFromReader(io.TeeReader(src, tmp))
	if err != nil {
		return "", "", fmt.Errorf("write upload: %w", err)
	}

	safeName := util.SafeJoin(dstDir, filepath.Base(fh.Filename))
	if err := tmp.Close(); err != nil {
		return "", "", err
	}
	if err := os.Rename(tmp.Name(), safeName); err != nil {
		return "", "", fmt.Errorf("atomic move upload: %w", err)
	}

	return digest, safeName, nil
}

func firstSingleFile(m map[string][]*multipart.FileHeader) (*multipart.FileHeader, bool) {
	for _, v := range m {
		if len(v) > 0 {
			return v[0], true
		}
	}
	return nil, false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "CG-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status >= 500:
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "CG-DB-5001",
				Message: "Database schema is not initialized. Run migrations and retry.",
			}
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "CG-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		case strings.Contains(raw, "no extractable text"):
			return apiError{
				Code:    "CG-PDF-5003",
				Message: "No extractable text was found in the PDF. Scanned documents need OCR first.",
			}
		case strings.Contains(raw, "no abstract section"):
			return apiError{
				Code:    "CG-PDF-5004",
				Message: "No Abstract section was found in the extracted text.",
			}
		default:
			return apiError{
				Code:    "CG-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "CG-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "CG-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusConflict:
		code = "CG-API-4009"
		msg = "Operation conflicts with current state. Retry after checking status."
	case status == http.StatusMethodNotAllowed:
		code = "CG-API-4005"
		msg = "This endpoint does not support the requested method."
	case status == http.StatusBadGateway:
		code = "CG-API-5020"
		msg = "Upstream provider unavailable. Retry shortly."
	}

	// For 4xx, keep user-safe validation context only.
	if status >= 400 && status < 500 && err != nil {
		low := strings.ToLower(err.Error())
		switch {
		case strings.Contains(low, "papers are required"):
			msg = "At least one paper is required."
		case strings.Contains(low, "title and an abstract"):
			msg = "Every paper needs a title and an abstract."
		case strings.Contains(low, "title is required"):
			msg = "A title query parameter is required."
		case strings.Contains(low, "sentences are required"):
			msg = "At least one sentence is required."
		case strings.Contains(low, "text or paper_path"):
			msg = "Either text or paper_path must be provided."
		case strings.Contains(low, "paper_path or input_dir"):
			msg = "Provide exactly one of paper_path or input_dir."
		case strings.Contains(low, "upload root"):
			msg = "paper_path must point at an uploaded file."
		case strings.Contains(low, "no files provided"):
			msg = "No PDF files were provided."
		case strings.Contains(low, "invalid json"):
			msg = "Malformed JSON request body."
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
