package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/Guliveer/twitch-live-watcher/internal/model"
	"github.com/Guliveer/twitch-live-watcher/internal/utils"
)

func (s *StatusServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	entries := s.source.Snapshot()
	live := 0
	for _, e := range entries {
		if e.State.IsLive() {
			live++
		}
	}

	now := s.now()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"timestamp":     now.UTC().Format(time.RFC3339),
		"uptime":        utils.FormatUptime(now.Sub(s.started)),
		"tracked_users": len(entries),
		"live_users":    live,
	})
}

func (s *StatusServer) handleUsers(w http.ResponseWriter, _ *http.Request) {
	entries := s.source.Snapshot()
	result := make([]userSummary, 0, len(entries))
	for _, e := range entries {
		result = append(result, s.summarize(e))
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *StatusServer) handleUser(w http.ResponseWriter, r *http.Request) {
	login := strings.ToLower(r.PathValue("login"))
	if login == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing login"})
		return
	}

	e, ok := s.source.Entry(login)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "user not tracked"})
		return
	}

	detail := userDetail{userSummary: s.summarize(e)}
	if meta, live := e.State.Metadata(); live {
		detail.Stream = &meta
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *StatusServer) summarize(e model.TrackingEntry) userSummary {
	summary := userSummary{
		Login:       e.User.Login,
		ID:          e.User.ID,
		DisplayName: e.User.DisplayName,
		Live:        e.State.IsLive(),
		LastChecked: e.LastChecked.UTC().Format(time.RFC3339),
	}
	if s.streamURL != nil {
		summary.URL = s.streamURL(e.User)
	}
	if meta, live := e.State.Metadata(); live {
		summary.Title = meta.Title
		summary.Game = meta.GameName
		summary.Viewers = meta.ViewerCount
		summary.ViewersHuman = utils.Millify(meta.ViewerCount, 1)
	}
	if !e.LiveSince.IsZero() {
		summary.LiveSince = e.LiveSince.UTC().Format(time.RFC3339)
		summary.Uptime = utils.FormatUptime(s.now().Sub(e.LiveSince))
	}
	return summary
}

type userSummary struct {
	Login        string `json:"login"`
	ID           string `json:"id"`
	DisplayName  string `json:"display_name,omitempty"`
	Live         bool   `json:"live"`
	URL          string `json:"url,omitempty"`
	Title        string `json:"title,omitempty"`
	Game         string `json:"game,omitempty"`
	Viewers      int    `json:"viewers"`
	ViewersHuman string `json:"viewers_human,omitempty"`
	LiveSince    string `json:"live_since,omitempty"`
	Uptime       string `json:"uptime,omitempty"`
	LastChecked  string `json:"last_checked"`
}

type userDetail struct {
	userSummary
	Stream *model.LiveMetadata `json:"stream,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v) //nolint:errcheck
}
