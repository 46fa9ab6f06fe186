package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"ghascaler/internal/fleet"
	"ghascaler/internal/scaler"
	"ghascaler/pkg/logging"
)

// statusResponse is the GET /api/v1/status payload.
type statusResponse struct {
	Scaler   scaler.Status   `json:"scaler"`
	Machines []machineStatus `json:"machines"`
}

type machineStatus struct {
	ID        string         `json:"id"`
	State     string         `json:"state"`
	Dynamic   bool           `json:"dynamic"`
	Min       int            `json:"min_runners"`
	Max       int            `json:"max_runners"`
	Active    int            `json:"active_runners"`
	LastError string         `json:"last_error,omitempty"`
	Runners   []runnerStatus `json:"runners"`
}

type runnerStatus struct {
	ID        string `json:"id"`
	State     string `json:"state"`
	Attempts  int    `json:"attempts,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	resp := statusResponse{
		Scaler:   s.scaler.Status(),
		Machines: make([]machineStatus, 0, len(snap.Machines)),
	}
	for _, m := range snap.Machines {
		ms := machineStatus{
			ID:        m.ID,
			State:     string(m.State),
			Dynamic:   m.Dynamic,
			Min:       m.MinRunners,
			Max:       m.MaxRunners,
			Active:    m.ActiveRunners(),
			LastError: m.LastError,
			Runners:   make([]runnerStatus, 0, len(m.Runners)),
		}
		for _, rn := range m.Runners {
			if rn.State == fleet.RunnerDestroyed {
				continue
			}
			ms.Runners = append(ms.Runners, runnerStatus{
				ID:        rn.ID,
				State:     string(rn.State),
				Attempts:  rn.Attempts,
				LastError: rn.LastError,
			})
		}
		resp.Machines = append(resp.Machines, ms)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	s.scaler.Trigger()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "reconciliation triggered"})
}

func (s *Server) handleRunnerReset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.tracker.ResetRunner(id); err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	logging.Info("Server", "Runner %s reset via API", id)
	s.scaler.Trigger()
	writeJSON(w, http.StatusOK, map[string]string{"status": "runner reset"})
}

func (s *Server) handleMachineDrain(w http.ResponseWriter, r *http.Request) {
	s.setDrain(w, r, true)
}

func (s *Server) handleMachineUndrain(w http.ResponseWriter, r *http.Request) {
	s.setDrain(w, r, false)
}

func (s *Server) setDrain(w http.ResponseWriter, r *http.Request, drain bool) {
	id := chi.URLParam(r, "id")
	if err := s.tracker.DrainMachine(id, drain); err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	verb := "draining"
	if !drain {
		verb = "ready"
	}
	logging.Info("Server", "Machine %s set to %s via API", id, verb)
	s.scaler.Trigger()
	writeJSON(w, http.StatusOK, map[string]string{"status": "machine " + verb})
}

// errStatus maps tracker errors onto HTTP codes: unknown entities are
// 404, invalid transitions are 409.
func errStatus(err error) int {
	msg := err.Error()
	if strings.Contains(msg, "unknown") || strings.Contains(msg, "malformed") {
		return http.StatusNotFound
	}
	return http.StatusConflict
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("Server", err, "Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
