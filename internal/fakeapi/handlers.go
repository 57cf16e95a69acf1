package fakeapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const timeLayout = "2006-01-02 15:04:05"

// Envelope is the response object of every endpoint
type Envelope struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

// wireSegment is a segment as the remote API renders it: numbers as
// strings, timestamps without zone.
type wireSegment struct {
	ID            string  `json:"id"`
	ListID        string  `json:"list_id"`
	Name          string  `json:"name"`
	Query         string  `json:"query"`
	MailingsCount string  `json:"mailings_count"`
	LastUsed      *string `json:"last_used"`
	CreatedOn     string  `json:"created_on"`
	Engagement    *string `json:"engagement"`
	Count         string  `json:"count"`
}

// HealthResponse is the response for GET /health
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

type renderOptions struct {
	statistics bool
	engagement bool
	details    bool
}

func renderSegment(seg *Segment, opts renderOptions) wireSegment {
	w := wireSegment{
		ID:            strconv.FormatInt(seg.ID, 10),
		ListID:        strconv.FormatInt(seg.ListID, 10),
		Name:          seg.Name,
		MailingsCount: "0",
		CreatedOn:     seg.CreatedOn.UTC().Format(timeLayout),
		Count:         strconv.FormatInt(seg.Count, 10),
	}
	if opts.details {
		w.Query = seg.Query
	}
	if opts.statistics {
		w.MailingsCount = strconv.FormatInt(seg.MailingsCount, 10)
		if seg.LastUsed != nil {
			v := seg.LastUsed.UTC().Format(timeLayout)
			w.LastUsed = &v
		}
	}
	if opts.engagement && seg.Engagement != nil {
		v := strconv.FormatFloat(*seg.Engagement, 'f', 2, 64)
		w.Engagement = &v
	}
	return w
}

// handleCreateSublist handles POST /List/CreateSublist
func (s *Server) handleCreateSublist(w http.ResponseWriter, r *http.Request) {
	listID, ok := s.requireID(w, r, "list_id")
	if !ok {
		return
	}
	name := strings.TrimSpace(r.PostForm.Get("name"))
	if name == "" {
		s.fail(w, http.StatusOK, "name is required")
		return
	}

	seg := &Segment{
		ListID: listID,
		Name:   name,
		Query:  r.PostForm.Get("query"),
	}
	if err := s.store.CreateSegment(seg); err != nil {
		s.storeError(w, err, "list not found")
		return
	}

	s.logger.Debug("sublist created", "id", seg.ID, "list_id", listID)
	s.succeed(w, strconv.FormatInt(seg.ID, 10))
}

// handleSetInfo handles POST /List/SetInfo
func (s *Server) handleSetInfo(w http.ResponseWriter, r *http.Request) {
	segmentID, ok := s.requireID(w, r, "list_id")
	if !ok {
		return
	}
	parentID, ok := s.requireID(w, r, "parent_list_id")
	if !ok {
		return
	}

	err := s.store.UpdateSegment(segmentID, func(seg *Segment) error {
		if seg.ListID != parentID {
			return errWrongParent
		}
		if r.PostForm.Has("name") {
			name := strings.TrimSpace(r.PostForm.Get("name"))
			if name == "" {
				return errEmptyName
			}
			seg.Name = name
		}
		if r.PostForm.Has("query") {
			seg.Query = r.PostForm.Get("query")
		}
		return nil
	})
	switch {
	case errors.Is(err, errWrongParent):
		s.fail(w, http.StatusOK, "sublist does not belong to the given list")
		return
	case errors.Is(err, errEmptyName):
		s.fail(w, http.StatusOK, "name must not be empty")
		return
	case err != nil:
		s.storeError(w, err, "sublist not found")
		return
	}

	s.succeed(w, "true")
}

// handleDeleteSublist handles POST /List/DeleteSublist
func (s *Server) handleDeleteSublist(w http.ResponseWriter, r *http.Request) {
	segmentID, ok := s.requireID(w, r, "list_id")
	if !ok {
		return
	}

	if err := s.store.DeleteSegment(segmentID); err != nil {
		s.storeError(w, err, "sublist not found")
		return
	}

	s.logger.Debug("sublist deleted", "id", segmentID)
	s.succeed(w, "true")
}

// handleGetInfo handles POST /List/GetInfo
func (s *Server) handleGetInfo(w http.ResponseWriter, r *http.Request) {
	segmentID, ok := s.requireID(w, r, "list_id")
	if !ok {
		return
	}
	statistics, ok := s.optBool(w, r, "statistics")
	if !ok {
		return
	}
	engagement, ok := s.optBool(w, r, "engagement")
	if !ok {
		return
	}

	seg, err := s.store.GetSegment(segmentID)
	if err != nil {
		s.storeError(w, err, "sublist not found")
		return
	}

	s.succeed(w, renderSegment(seg, renderOptions{
		statistics: statistics,
		engagement: engagement,
		details:    true,
	}))
}

// handleGetSublists handles POST /List/GetSublists
func (s *Server) handleGetSublists(w http.ResponseWriter, r *http.Request) {
	listID, ok := s.requireID(w, r, "list_id")
	if !ok {
		return
	}
	details, ok := s.optBool(w, r, "details")
	if !ok {
		return
	}
	limit, ok := s.optInt(w, r, "limit")
	if !ok {
		return
	}
	offset, ok := s.optInt(w, r, "offset")
	if !ok {
		return
	}

	segs, err := s.store.ListSegments(listID)
	if err != nil {
		s.storeError(w, err, "list not found")
		return
	}

	if offset >= len(segs) {
		segs = nil
	} else {
		segs = segs[offset:]
	}
	if limit > 0 && limit < len(segs) {
		segs = segs[:limit]
	}

	out := make([]wireSegment, 0, len(segs))
	for _, seg := range segs {
		out = append(out, renderSegment(seg, renderOptions{details: details, statistics: details, engagement: details}))
	}

	s.succeed(w, map[string]any{"sublists": out})
}

// handleGetList handles POST /List/GetList
func (s *Server) handleGetList(w http.ResponseWriter, r *http.Request) {
	listID, ok := s.requireID(w, r, "list_id")
	if !ok {
		return
	}

	l, err := s.store.GetList(listID)
	if err != nil {
		s.storeError(w, err, "list not found")
		return
	}

	s.succeed(w, map[string]string{
		"id":    strconv.FormatInt(l.ID, 10),
		"name":  l.Name,
		"count": strconv.FormatInt(l.Count, 10),
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: time.Since(s.startTime).String(),
	})
}

var (
	errWrongParent = errors.New("wrong parent list")
	errEmptyName   = errors.New("empty name")
)

// requireID reads a positive integer parameter
func (s *Server) requireID(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	raw := r.PostForm.Get(key)
	if raw == "" {
		s.fail(w, http.StatusOK, key+" is required")
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		s.fail(w, http.StatusOK, fmt.Sprintf("invalid %s: %q", key, raw))
		return 0, false
	}
	return id, true
}

// optBool reads an optional boolean parameter. Absent means false.
func (s *Server) optBool(w http.ResponseWriter, r *http.Request, key string) (bool, bool) {
	if !r.PostForm.Has(key) {
		return false, true
	}
	raw := r.PostForm.Get(key)
	v, err := strconv.ParseBool(raw)
	if err != nil {
		s.fail(w, http.StatusOK, fmt.Sprintf("invalid %s: %q", key, raw))
		return false, false
	}
	return v, true
}

// optInt reads an optional non-negative integer parameter. Absent means 0.
func (s *Server) optInt(w http.ResponseWriter, r *http.Request, key string) (int, bool) {
	if !r.PostForm.Has(key) {
		return 0, true
	}
	raw := r.PostForm.Get(key)
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		s.fail(w, http.StatusOK, fmt.Sprintf("invalid %s: %q", key, raw))
		return 0, false
	}
	return v, true
}

// storeError maps a store error to a failure envelope
func (s *Server) storeError(w http.ResponseWriter, err error, notFound string) {
	if errors.Is(err, ErrNotFound) {
		s.fail(w, http.StatusOK, notFound)
		return
	}
	s.logger.Error("fake store error", "error", err)
	s.fail(w, http.StatusInternalServerError, "internal error")
}

// succeed sends a success envelope
func (s *Server) succeed(w http.ResponseWriter, data any) {
	s.sendJSON(w, http.StatusOK, Envelope{Status: "success", Data: data})
}

// fail sends a failure envelope. Failures sent with 200 are still counted.
func (s *Server) fail(w http.ResponseWriter, status int, message string) {
	if status < 400 {
		s.metrics.IncServerError("remote_failure")
	}
	s.sendJSON(w, status, Envelope{Status: "failed", Data: message})
}

// sendJSON sends a JSON response
func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
