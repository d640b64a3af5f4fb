package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/biblioteca/libaccess/internal/libaccess/types"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// readScan takes the scan from a JSON body, or from the member_id and
// qr_code query parameters when the body is empty.
func readScan(r *http.Request) (types.ScanRequest, error) {
	var req types.ScanRequest

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return req, err
	}
	if len(bytes.TrimSpace(body)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.DisallowUnknownFields()
		err := dec.Decode(&req)
		return req, err
	}

	q := r.URL.Query()
	if v := q.Get("member_id"); v != "" {
		id, err := parseID(v)
		if err != nil {
			return req, err
		}
		req.MemberID = id
	}
	req.QRCode = q.Get("qr_code")
	return req, nil
}

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	req, err := readScan(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, types.ScanResponse{
			Action: types.ActionCheckIn, Error: "bad_request", Message: "invalid scan request",
		})
		return
	}

	sess, err := s.tracker.CheckIn(r.Context(), req.MemberID, req.QRCode)
	if err != nil {
		s.writeScanError(w, r, types.ActionCheckIn, err)
		return
	}
	writeJSON(w, http.StatusOK, types.ScanResponse{
		OK: true, Action: types.ActionCheckIn, Message: "Check-in successful", Session: &sess,
	})
}

func (s *Server) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	req, err := readScan(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, types.ScanResponse{
			Action: types.ActionCheckOut, Error: "bad_request", Message: "invalid scan request",
		})
		return
	}

	sess, err := s.tracker.CheckOut(r.Context(), req.MemberID, req.QRCode)
	if err != nil {
		s.writeScanError(w, r, types.ActionCheckOut, err)
		return
	}
	writeJSON(w, http.StatusOK, types.ScanResponse{
		OK: true, Action: types.ActionCheckOut, Message: "Check-out successful", Session: &sess,
	})
}

func (s *Server) memberID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := parseID(mux.Vars(r)["memberID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_member_id", "member id must be an integer")
		return 0, false
	}
	return id, true
}

func (s *Server) handleIsInside(w http.ResponseWriter, r *http.Request) {
	id, ok := s.memberID(w, r)
	if !ok {
		return
	}
	inside, err := s.tracker.IsInside(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.InsideResponse{MemberID: id, Inside: inside})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := s.memberID(w, r)
	if !ok {
		return
	}
	sessions, err := s.reports.HistoryFor(r.Context(), id)
	s.writeSessions(w, r, sessions, err)
}

func (s *Server) handleCurrentlyInside(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.reports.CurrentlyInside(r.Context())
	s.writeSessions(w, r, sessions, err)
}

func (s *Server) handleOccupancy(w http.ResponseWriter, r *http.Request) {
	n, err := s.reports.OccupancyCount(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.OccupancyResponse{
		Count:      n,
		ServerTime: s.now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := parseTimestamp(q.Get("start"), false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_timestamp", "start: "+err.Error())
		return
	}
	end, err := parseTimestamp(q.Get("end"), true)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_timestamp", "end: "+err.Error())
		return
	}

	sessions, err := s.reports.ReportBetween(r.Context(), start, end)
	s.writeSessions(w, r, sessions, err)
}

func (s *Server) handleGenerateCode(w http.ResponseWriter, r *http.Request) {
	code, err := s.codes.Generate()
	if err != nil {
		s.logger.ErrorContext(r.Context(), "generate code failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	writeJSON(w, http.StatusOK, types.CodeResponse{Code: code})
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		limit = n
	}
	sessions, err := s.reports.Recent(r.Context(), limit)
	s.writeSessions(w, r, sessions, err)
}

func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_session_id", "session id must be an integer")
		return 0, false
	}
	return id, true
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	sess, err := s.reports.Session(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleByCode(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.reports.ByQRCode(r.Context(), mux.Vars(r)["code"])
	s.writeSessions(w, r, sessions, err)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	if err := s.admin.DeleteSession(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeSessions(w http.ResponseWriter, r *http.Request, sessions []types.AccessSession, err error) {
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []types.AccessSession{}
	}
	writeJSON(w, http.StatusOK, types.SessionListResponse{Count: len(sessions), Sessions: sessions})
}
