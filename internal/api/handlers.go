package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/voxform/voxform/internal/core"
	"github.com/voxform/voxform/internal/extract"
	"github.com/voxform/voxform/internal/logger"
	"github.com/voxform/voxform/internal/script"
	"github.com/voxform/voxform/internal/store"
	"github.com/voxform/voxform/internal/table"
	"go.uber.org/zap"
)

// Transcriber turns an audio clip into text and reports whether it has the
// credentials to do so.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
	Configured() bool
}

type APIHandler struct {
	records     *core.RecordService
	transcriber Transcriber
	extractor   *extract.Extractor
	scripts     *script.Registry
	maxUpload   int64
	language    string

	originPatterns []string
}

type HandlerOptions struct {
	MaxUploadBytes int64
	Language       string
	OriginPatterns []string
}

func NewAPIHandler(records *core.RecordService, tr Transcriber, scripts *script.Registry, opts HandlerOptions) *APIHandler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 25 << 20
	}
	return &APIHandler{
		records:     records,
		transcriber: tr,
		extractor:   extract.New(),
		scripts:     scripts,
		maxUpload:   opts.MaxUploadBytes,
		language:    opts.Language,

		originPatterns: opts.OriginPatterns,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type HealthResponse struct {
	Status string `json:"status"`
	core.Capabilities
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	caps := core.DetectCapabilities(r.Context(), h.transcriber, h.records)
	status := "ok"
	if !caps.Store {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: status, Capabilities: caps})
}

func (h *APIHandler) CreateRecordHandler(w http.ResponseWriter, r *http.Request) {
	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	doc, err := core.ParseDocument(body)
	if err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Msg)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rec, err := h.records.Create(r.Context(), doc)
	if err != nil {
		logger.Error("create record failed", zap.String("document_type", string(doc.Type())), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, table.NewRow(*rec))
}

func (h *APIHandler) ListRecordsHandler(w http.ResponseWriter, r *http.Request) {
	records, err := h.records.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		logger.Error("list records failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, table.Rows(records))
}

func (h *APIHandler) DeleteRecordHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	if _, err := h.records.Delete(r.Context(), id); err != nil {
		logger.Error("delete record failed", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *APIHandler) ExportRecordsHandler(w http.ResponseWriter, r *http.Request) {
	records, err := h.records.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		logger.Error("export records failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="records.csv"`)
	if err := table.ExportCSV(w, records); err != nil {
		logger.Warn("failed to write csv export", zap.Error(err))
	}
}

type ExtractRequest struct {
	Text string `json:"text"`
}

func (h *APIHandler) ExtractHandler(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	writeJSON(w, http.StatusOK, h.extractor.Extract(req.Text))
}

type TranscribeResponse struct {
	Transcription string `json:"transcription"`
}

func (h *APIHandler) TranscribeHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	file, _, err := r.FormFile("audio")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "audio file is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read audio file")
		return
	}
	if len(audio) == 0 {
		writeError(w, http.StatusBadRequest, "audio file is empty")
		return
	}

	text, err := h.transcriber.Transcribe(r.Context(), audio)
	if err != nil {
		logger.Error("transcription failed", zap.Int("bytes", len(audio)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to transcribe audio")
		return
	}
	writeJSON(w, http.StatusOK, TranscribeResponse{Transcription: text})
}

func (h *APIHandler) ListScriptsHandler(w http.ResponseWriter, r *http.Request) {
	out := make([]script.Script, 0)
	for _, t := range h.scripts.Types() {
		s, err := h.scripts.Lookup(t)
		if err != nil {
			continue
		}
		out = append(out, s)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *APIHandler) GetScriptHandler(w http.ResponseWriter, r *http.Request) {
	docType := store.DocumentType(chi.URLParam(r, "documentType"))
	s, err := h.scripts.Lookup(docType)
	if err != nil {
		if errors.Is(err, script.ErrUnknownType) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s)
}
