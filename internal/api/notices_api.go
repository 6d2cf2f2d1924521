package api

import (
	"errors"
	"net/http"

	"aptdesk/internal/database"
	"aptdesk/internal/metrics"
	"aptdesk/internal/models"
)

// NoticeRequest is the request body for creating or updating a notice.
type NoticeRequest struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	NoticeType  string `json:"notice_type,omitempty"`
	IsPinned    bool   `json:"is_pinned,omitempty"`
	IsImportant bool   `json:"is_important,omitempty"`
}

// ListNoticesResponse is the response for GET /api/notices.
type ListNoticesResponse struct {
	Notices []models.Notice `json:"notices"`
	Total   int             `json:"total"`
}

// handleNotices dispatches GET (list) and POST (create, admin only).
func (s *HTTPServer) handleNotices(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listNotices(w, r)
	case http.MethodPost:
		s.createNotice(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// GET /api/notices?offset=&limit=
func (s *HTTPServer) listNotices(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_notices")

	q := r.URL.Query()
	offset := atoiDefault(q.Get("offset"), 0)
	limit := atoiDefault(q.Get("limit"), 20)

	notices, total, err := s.db.ListNotices(r.Context(), offset, limit)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "notice store unavailable")
		return
	}

	writeJSON(w, http.StatusOK, ListNoticesResponse{Notices: notices, Total: total})
}

// POST /api/notices
func (s *HTTPServer) createNotice(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_notice")

	claims := claimsFrom(r)
	if !claims.IsAdmin {
		writeError(w, http.StatusForbidden, "admin rights required")
		return
	}

	var req NoticeRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Title == "" || req.Content == "" {
		writeError(w, http.StatusBadRequest, "title and content are required")
		return
	}

	noticeType := models.NoticeType(req.NoticeType)
	if noticeType == "" {
		noticeType = models.NoticeGeneral
	}

	n := &models.Notice{
		Title:       req.Title,
		Content:     req.Content,
		NoticeType:  noticeType,
		IsPinned:    req.IsPinned,
		IsImportant: req.IsImportant,
		IsActive:    true,
		AuthorID:    claims.UserID(),
	}
	if err := s.db.CreateNotice(r.Context(), n); err != nil {
		s.log.Error().Err(err).Msg("failed to create notice")
		writeError(w, http.StatusServiceUnavailable, "notice store unavailable")
		return
	}

	writeJSON(w, http.StatusCreated, n)
}

// handleNoticeByID dispatches on the path tail:
// GET    /api/notices/{id}   (also bumps the view counter)
// PUT    /api/notices/{id}
// DELETE /api/notices/{id}
func (s *HTTPServer) handleNoticeByID(w http.ResponseWriter, r *http.Request) {
	id, action, err := pathID(r.URL.Path, "/api/notices/")
	if err != nil || action != "" {
		writeError(w, http.StatusBadRequest, "invalid notice id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getNotice(w, r, id)
	case http.MethodPut:
		s.updateNotice(w, r, id)
	case http.MethodDelete:
		s.deleteNotice(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) getNotice(w http.ResponseWriter, r *http.Request, id int64) {
	metrics.IncHTTP("get_notice")

	n, err := s.db.GetNotice(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "notice not found")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "notice store unavailable")
		return
	}

	if err := s.db.IncrementNoticeViews(r.Context(), id); err != nil {
		s.log.Warn().Err(err).Int64("notice_id", id).Msg("failed to bump view count")
	}

	writeJSON(w, http.StatusOK, n)
}

func (s *HTTPServer) updateNotice(w http.ResponseWriter, r *http.Request, id int64) {
	metrics.IncHTTP("update_notice")

	claims := claimsFrom(r)
	if !claims.IsAdmin {
		writeError(w, http.StatusForbidden, "admin rights required")
		return
	}

	current, err := s.db.GetNotice(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "notice not found")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "notice store unavailable")
		return
	}

	var req NoticeRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Title != "" {
		current.Title = req.Title
	}
	if req.Content != "" {
		current.Content = req.Content
	}
	if req.NoticeType != "" {
		current.NoticeType = models.NoticeType(req.NoticeType)
	}
	current.IsPinned = req.IsPinned
	current.IsImportant = req.IsImportant

	if err := s.db.UpdateNotice(r.Context(), current); err != nil {
		writeError(w, http.StatusServiceUnavailable, "notice store unavailable")
		return
	}

	writeJSON(w, http.StatusOK, current)
}

func (s *HTTPServer) deleteNotice(w http.ResponseWriter, r *http.Request, id int64) {
	metrics.IncHTTP("delete_notice")

	claims := claimsFrom(r)
	if !claims.IsAdmin {
		writeError(w, http.StatusForbidden, "admin rights required")
		return
	}

	if err := s.db.DeleteNotice(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "notice not found")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "notice store unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
