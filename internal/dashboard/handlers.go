package dashboard

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/BatmanBruc/club-membership-bot/types"
	"github.com/go-chi/chi/v5"
)

type pendingView struct {
	UserID       int64  `json:"user_id"`
	Username     string `json:"username,omitempty"`
	Status       string `json:"status"`
	Plan         string `json:"plan,omitempty"`
	Method       string `json:"method,omitempty"`
	RequestTime  string `json:"request_time,omitempty"`
	ReminderSent bool   `json:"reminder_sent"`
}

type oldMemberView struct {
	UserID      int64  `json:"user_id"`
	ConfirmedBy int64  `json:"confirmed_by"`
	ConfirmedAt string `json:"confirmed_at"`
}

func (s *Server) listMemberships(w http.ResponseWriter, r *http.Request) {
	all, err := s.src.Memberships.ListMemberships(r.Context())
	if err != nil {
		log.Printf("Dashboard: failed to list memberships: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list memberships")
		return
	}
	state := r.URL.Query().Get("state")
	out := make([]types.MembershipDocument, 0, len(all))
	for _, m := range all {
		if state != "" && string(m.State) != state {
			continue
		}
		out = append(out, m.Document())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getMembership(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	m, err := s.src.Memberships.GetMembership(r.Context(), userID)
	if errors.Is(err, types.ErrNotFound) {
		writeError(w, http.StatusNotFound, "membership not found")
		return
	}
	if err != nil {
		log.Printf("Dashboard: failed to load membership %d: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to load membership")
		return
	}
	writeJSON(w, http.StatusOK, m.Document())
}

func (s *Server) listPending(w http.ResponseWriter, r *http.Request) {
	all, err := s.src.Pending.ListPending(r.Context())
	if err != nil {
		log.Printf("Dashboard: failed to list pending requests: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list pending requests")
		return
	}
	out := make([]pendingView, 0, len(all))
	for _, p := range all {
		out = append(out, pendingView{
			UserID:       p.UserID,
			Username:     p.Username,
			Status:       string(p.Status),
			Plan:         string(p.Plan),
			Method:       p.Method,
			RequestTime:  types.FormatTimestampPtr(p.RequestTime),
			ReminderSent: p.ReminderSent,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listSettings(w http.ResponseWriter, r *http.Request) {
	all, err := s.src.Settings.AllSettings(r.Context())
	if err != nil {
		log.Printf("Dashboard: failed to list settings: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list settings")
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Server) listOldMembers(w http.ResponseWriter, r *http.Request) {
	all, err := s.src.OldMembers.ListConfirmedOldMembers(r.Context())
	if err != nil {
		log.Printf("Dashboard: failed to list old members: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list old members")
		return
	}
	out := make([]oldMemberView, 0, len(all))
	for _, m := range all {
		out = append(out, oldMemberView{
			UserID:      m.UserID,
			ConfirmedBy: m.ConfirmedBy,
			ConfirmedAt: types.FormatTimestamp(m.ConfirmedAt),
		})
	}
	writeJSON(w, http.StatusOK, out)
}
