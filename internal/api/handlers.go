package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/banshee-data/posture.report/internal/calibrate"
	"github.com/banshee-data/posture.report/internal/feedback"
	"github.com/banshee-data/posture.report/internal/httputil"
	"github.com/banshee-data/posture.report/internal/pose"
	"github.com/banshee-data/posture.report/internal/session"
	"github.com/banshee-data/posture.report/internal/verdict"
	"github.com/banshee-data/posture.report/internal/version"
)

func (s *Server) ping(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]interface{}{
		"status":  "ok",
		"session": s.sess.ID(),
		"version": version.Current(),
	})
}

func (s *Server) showSession(w http.ResponseWriter, r *http.Request) {
	st := s.sess.State()
	resp := map[string]interface{}{"session": st}
	if s.hub != nil {
		resp["feedback"] = s.hub.Stats()
	}
	httputil.WriteJSONOK(w, resp)
}

type evaluateRequest struct {
	Landmarks pose.Frame `json:"landmarks"`
	Label     string     `json:"label"`
	Image     string     `json:"image"`
}

// evaluateFrame evaluates one frame through the single-shot buffer. The frame
// is given either as keypoints or as an encoded image for the detector.
func (s *Server) evaluateFrame(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	if req.Image != "" {
		img, err := feedback.DecodeImage(req.Image)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		fb, err := s.sess.EvaluateImage(r.Context(), img)
		if errors.Is(err, session.ErrNoDetector) {
			httputil.WriteJSONError(w, http.StatusNotImplemented, err.Error())
			return
		}
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, fb)
		return
	}

	httputil.WriteJSONOK(w, s.sess.EvaluateFrame(req.Landmarks, strings.TrimSpace(req.Label)))
}

type compareRequest struct {
	Live      []pose.Frame `json:"live"`
	Reference []pose.Frame `json:"reference"`
	Tolerance *float64     `json:"tolerance"`
}

// compare is stateless. Without a reference in the request it compares
// against the session reference around the playback index.
func (s *Server) compare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	if len(req.Reference) == 0 {
		if req.Tolerance != nil {
			httputil.BadRequest(w, "tolerance applies only with an explicit reference")
			return
		}
		httputil.WriteJSONOK(w, s.sess.Compare(req.Live))
		return
	}

	tol := s.sess.Tolerance()
	if req.Tolerance != nil {
		var ok bool
		if tol, ok = verdict.ClampTolerance(*req.Tolerance); !ok {
			httputil.BadRequest(w, "tolerance must be a positive number")
			return
		}
	}
	httputil.WriteJSONOK(w, session.Compare(req.Live, req.Reference, tol))
}

type referenceRequest struct {
	Frames    []pose.Frame `json:"landmarks_sequence"`
	Rate      int          `json:"ref_fps"`
	SourceFPS float64      `json:"source_fps"`
	TargetFPS float64      `json:"target_fps"`
	Name      string       `json:"name"`
	Condition string       `json:"condition"`
	Save      bool         `json:"save"`
}

// sequence builds the reference sequence. With source_fps the frames are a
// full-rate stream and are sampled down; otherwise they are used as given.
func (s *Server) sequence(req referenceRequest) (pose.Sequence, error) {
	if req.SourceFPS > 0 {
		target := req.TargetFPS
		if target <= 0 {
			target = s.cfg.GetReferenceTargetFPS()
		}
		return pose.Sample(req.Frames, req.SourceFPS, target, s.cfg.GetMaxReferenceSamples())
	}
	frames := req.Frames
	if limit := s.cfg.GetMaxReferenceSamples(); len(frames) > limit {
		frames = frames[:limit]
	}
	return pose.NewSequence(frames, req.Rate)
}

func (s *Server) setReferenceLandmarks(w http.ResponseWriter, r *http.Request) {
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

	var id string
	if req.Save {
		if !s.requireStore(w) {
			return
		}
		ref, err := s.store.SaveReference(r.Context(), req.Name, req.Condition, seq)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		id = ref.ID
	}

	s.sess.LoadReference(seq, id, req.Name)
	s.announceReference()
	httputil.WriteJSONOK(w, map[string]interface{}{
		"success": true,
		"id":      id,
		"frames":  seq.Len(),
		"ref_fps": seq.Rate(),
		"message": fmt.Sprintf("loaded %d reference frames (sampling %d fps)", seq.Len(), seq.Rate()),
	})
}

func (s *Server) clearReference(w http.ResponseWriter, r *http.Request) {
	s.sess.ClearReference()
	httputil.WriteJSONOK(w, map[string]interface{}{"success": true})
}

func (s *Server) announceReference() {
	if s.hub == nil {
		return
	}
	if info, ok := s.sess.Reference(); ok {
		s.hub.PublishReference(info)
	}
}

type syncRequest struct {
	CurrentTime *float64 `json:"current_time"`
}

func (s *Server) syncReferenceTime(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if req.CurrentTime == nil {
		httputil.BadRequest(w, "current_time is required")
		return
	}
	idx := s.sess.SyncIndex(*req.CurrentTime)
	httputil.WriteJSONOK(w, map[string]interface{}{"success": true, "index": idx})
}

func (s *Server) showTolerance(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]interface{}{"tolerance": s.sess.Tolerance()})
}

type toleranceRequest struct {
	Tolerance *float64 `json:"tolerance"`
}

func (s *Server) setTolerance(w http.ResponseWriter, r *http.Request) {
	var req toleranceRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if req.Tolerance == nil {
		httputil.BadRequest(w, "tolerance is required")
		return
	}
	v, ok := s.sess.SetTolerance(*req.Tolerance)
	if !ok {
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success":   false,
			"error":     "tolerance must be a positive number",
			"tolerance": v,
		})
		return
	}
	if s.hub != nil {
		s.hub.PublishTolerance(v)
	}
	httputil.WriteJSONOK(w, map[string]interface{}{"success": true, "tolerance": v})
}

type calibrateRequest struct {
	Frames []pose.Frame `json:"landmarks_sequence"`
}

// calibrate reports frame-to-frame variation of the posted sequence, or of
// the loaded reference when none is posted.
func (s *Server) calibrate(w http.ResponseWriter, r *http.Request) {
	var req calibrateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil && !errors.Is(err, httputil.ErrEmptyBody) {
		httputil.BadRequest(w, err.Error())
		return
	}
	frames := req.Frames
	if len(frames) == 0 {
		seq, ok := s.sess.ReferenceSequence()
		if !ok {
			httputil.BadRequest(w, "no sequence posted and no reference loaded")
			return
		}
		frames = seq.Frames()
	}
	rep, err := calibrate.Calibrate(frames)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, rep)
}
