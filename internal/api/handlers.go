package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/spennihana/xeus/internal/protocol"
)

// HealthResponse is the /healthz payload.
type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Busy          bool   `json:"busy"`
	OpenComms     int    `json:"open_comms"`
}

// KernelResponse is the /kernel payload.
type KernelResponse struct {
	KernelID        string `json:"kernel_id"`
	SessionID       string `json:"session_id"`
	UserName        string `json:"user_name"`
	ProtocolVersion string `json:"protocol_version"`
	ExecutionState  string `json:"execution_state"`
}

// CommEntry is one open comm in the /comms payload.
type CommEntry struct {
	CommID     string `json:"comm_id"`
	TargetName string `json:"target_name"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Busy:          s.kernel.Busy(),
		OpenComms:     len(s.comms.Comms()),
	})
}

func (s *Server) handleKernel(w http.ResponseWriter, r *http.Request) {
	state := "idle"
	if s.kernel.Busy() {
		state = "busy"
	}
	s.writeJSON(w, http.StatusOK, KernelResponse{
		KernelID:        s.kernel.KernelID(),
		SessionID:       s.kernel.SessionID(),
		UserName:        s.kernel.UserName(),
		ProtocolVersion: protocol.Version,
		ExecutionState:  state,
	})
}

func (s *Server) handleComms(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target_name")

	entries := []CommEntry{}
	for id, name := range s.comms.Comms() {
		if target == "" || name == target {
			entries = append(entries, CommEntry{CommID: id, TargetName: name})
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"comms": entries})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
