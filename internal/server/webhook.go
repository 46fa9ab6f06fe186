package server

import (
	"io"
	"net/http"
	"strings"

	gogithub "github.com/google/go-github/v74/github"

	"ghascaler/pkg/logging"
)

// handleWebhook receives GitHub webhook deliveries. Only workflow_job
// events matter: queued and completed jobs change demand, so they
// trigger a cycle ahead of the interval timer, and job-to-runner
// assignments drive the Idle/Busy transitions in the tracker.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := s.webhookPayload(r)
	if err != nil {
		logging.Warn("Server", "Rejected webhook delivery: %v", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}

	event, err := gogithub.ParseWebHook(gogithub.WebHookType(r), payload)
	if err != nil {
		logging.Warn("Server", "Unparseable webhook payload: %v", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}

	switch e := event.(type) {
	case *gogithub.WorkflowJobEvent:
		s.handleWorkflowJob(e)
	case *gogithub.PingEvent:
		logging.Info("Server", "Webhook ping received")
	default:
		logging.Debug("Server", "Ignoring webhook event %s", gogithub.WebHookType(r))
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// webhookPayload reads and, when a secret is configured, verifies the
// delivery signature. Without a secret the payload is accepted as-is.
func (s *Server) webhookPayload(r *http.Request) ([]byte, error) {
	if s.cfg.WebhookSecret != "" {
		return gogithub.ValidatePayload(r, []byte(s.cfg.WebhookSecret))
	}
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}

func (s *Server) handleWorkflowJob(e *gogithub.WorkflowJobEvent) {
	action := e.GetAction()
	runnerName := e.GetWorkflowJob().GetRunnerName()
	logging.Debug("Server", "workflow_job %s (runner %q)", action, runnerName)

	switch action {
	case "queued":
		s.scaler.Trigger()
	case "in_progress":
		if id, ok := s.runnerID(runnerName); ok {
			s.tracker.SetRunnerBusy(id, true)
		}
	case "completed":
		if id, ok := s.runnerID(runnerName); ok {
			s.tracker.SetRunnerBusy(id, false)
		}
		s.scaler.Trigger()
	}
}

// runnerID strips the registration name prefix off a webhook runner
// name. Names without the prefix belong to runners outside this fleet.
func (s *Server) runnerID(runnerName string) (string, bool) {
	if runnerName == "" {
		return "", false
	}
	prefix := s.runnerNamePrefix + "-"
	if !strings.HasPrefix(runnerName, prefix) {
		return "", false
	}
	return strings.TrimPrefix(runnerName, prefix), true
}
