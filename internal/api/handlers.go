package api

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/medspa-portal/internal/model"
	"github.com/sells-group/medspa-portal/internal/portal"
)

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.logins.allow(clientIP(r)) {
		w.Header().Set("Retry-After", "60")
		writeStatus(w, http.StatusTooManyRequests, "too many login attempts", "try again in a minute")
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, err := s.portal.Login(r.Context(), req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, sess)
}

func (s *server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (s *server) handleCreatePatient(w http.ResponseWriter, r *http.Request) {
	var in model.PatientInput
	if !decodeJSON(w, r, &in) {
		return
	}
	p, err := s.portal.CreatePatient(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *server) handleListPatients(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.PatientFilter{
		Status: model.PatientStatus(q.Get("status")),
		Query:  q.Get("q"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeStatus(w, http.StatusBadRequest, "invalid request", "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	patients, err := s.portal.ListPatients(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"patients": patients, "count": len(patients)})
}

func (s *server) handleGetPatient(w http.ResponseWriter, r *http.Request) {
	p, err := s.portal.GetPatient(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *server) handleUpdatePatient(w http.ResponseWriter, r *http.Request) {
	var u model.PatientUpdate
	if !decodeJSON(w, r, &u) {
		return
	}
	p, err := s.portal.UpdatePatient(r.Context(), chi.URLParam(r, "id"), u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *server) handleDeletePatient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.portal.DeletePatient(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

func (s *server) handlePatientFindings(w http.ResponseWriter, r *http.Request) {
	findings, err := s.portal.PatientFindings(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if findings == nil {
		findings = []model.Finding{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"findings": findings})
}

func (s *server) handleListInterests(w http.ResponseWriter, r *http.Request) {
	items, err := s.portal.ListInterests(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []model.InterestItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"interests": items})
}

func (s *server) handleCreateInterest(w http.ResponseWriter, r *http.Request) {
	var in model.InterestItem
	if !decodeJSON(w, r, &in) {
		return
	}
	it, err := s.portal.CreateInterest(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

func (s *server) handleDeleteInterest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.portal.DeleteInterest(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

func (s *server) handleSeverityMappings(w http.ResponseWriter, r *http.Request) {
	mappings, err := s.portal.SeverityMappings(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if mappings == nil {
		mappings = []model.SeverityMapping{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"mappings": mappings})
}

func (s *server) handleBestPhoto(w http.ResponseWriter, r *http.Request) {
	treatment := strings.TrimSpace(r.URL.Query().Get("treatment"))
	if treatment == "" {
		writeStatus(w, http.StatusBadRequest, "invalid request", "treatment is required")
		return
	}
	var serves []string
	for _, v := range strings.Split(r.URL.Query().Get("serves"), ",") {
		if v = strings.TrimSpace(v); v != "" {
			serves = append(serves, v)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"treatment": treatment,
		"photo":     s.portal.Catalog().Best(treatment, serves),
	})
}

func (s *server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req portal.AnalyzeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.portal.Analyze(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleUpload streams the multipart "file" part to storage without
// buffering it.
func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+1<<20)
	}
	mr, err := r.MultipartReader()
	if err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid request", "expected multipart/form-data")
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			writeStatus(w, http.StatusBadRequest, "invalid request", `missing "file" field`)
			return
		}
		if err != nil {
			writeStatus(w, http.StatusBadRequest, "invalid request", "malformed multipart body")
			return
		}
		if part.FormName() != "file" {
			_ = part.Close()
			continue
		}
		s.upload(w, r, part)
		return
	}
}

func (s *server) upload(w http.ResponseWriter, r *http.Request, part *multipart.Part) {
	defer part.Close() //nolint:errcheck

	obj, err := s.portal.Upload(r.Context(), portal.UploadRequest{
		Filename:    part.FileName(),
		ContentType: part.Header.Get("Content-Type"),
		Body:        part,
	})
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeStatus(w, http.StatusBadRequest, "invalid request", "file too large")
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, obj)
}

func (s *server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.AuditFilter{
		Provider: q.Get("provider"),
		Action:   model.AuditAction(q.Get("action")),
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeStatus(w, http.StatusBadRequest, "invalid request", "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeStatus(w, http.StatusBadRequest, "invalid request", "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	entries, err := s.portal.ListAudit(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
