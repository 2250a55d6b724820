package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/banshee-data/posture.report/internal/db"
	"github.com/banshee-data/posture.report/internal/httputil"
	"github.com/banshee-data/posture.report/internal/pose"
	"github.com/banshee-data/posture.report/internal/security"
)

// referenceResponse is a stored reference with its frames.
type referenceResponse struct {
	db.ReferenceSummary
	Frames []pose.Frame `json:"landmarks_sequence"`
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, db.ErrReferenceNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, db.ErrInvalidReference):
		httputil.BadRequest(w, err.Error())
	default:
		logf("reference library error: %v", err)
		httputil.InternalServerError(w, "reference library error")
	}
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "reference library not configured")
		return false
	}
	return true
}

func (s *Server) listReferences(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	refs, err := s.store.ListReferences(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{"references": refs})
}

func (s *Server) saveReference(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	var req referenceRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	seq, err := s.sequence(req)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	ref, err := s.store.SaveReference(r.Context(), req.Name, req.Condition, seq)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, ref.ReferenceSummary)
}

func (s *Server) getReference(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	ref, err := s.store.GetReference(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if r.URL.Query().Get("download") != "" {
		// The sequence wire format, loadable by the offline tools.
		filename := security.SanitizeFilename(ref.Name) + ".json"
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		httputil.WriteJSONOK(w, ref.Sequence)
		return
	}
	httputil.WriteJSONOK(w, referenceResponse{ReferenceSummary: ref.ReferenceSummary, Frames: ref.Sequence.Frames()})
}

func (s *Server) deleteReference(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	if err := s.store.DeleteReference(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{"success": true})
}

// activateReference loads a stored reference into the session.
func (s *Server) activateReference(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	ref, err := s.store.GetReference(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.sess.LoadReference(ref.Sequence, ref.ID, ref.Name)
	s.announceReference()
	info, _ := s.sess.Reference()
	httputil.WriteJSONOK(w, map[string]interface{}{"success": true, "reference": info})
}
