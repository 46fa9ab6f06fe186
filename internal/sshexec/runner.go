package sshexec

import (
	"context"
	"fmt"
	"strings"

	"ghascaler/internal/fleet"
	"ghascaler/pkg/logging"
)

const (
	// runnerImage is the container image every runner runs. See
	// https://github.com/myoung34/docker-github-actions-runner
	runnerImage = "ghcr.io/myoung34/docker-github-actions-runner:ubuntu-focal"

	// runnerLabel marks containers managed by this process; probe filters
	// on it so foreign containers on shared machines stay invisible.
	runnerLabel = "ghascaler-runner"
)

// CreateRunner starts a runner container named after the runner id. The
// deterministic name makes the operation idempotent: if a previous,
// ambiguously failed attempt already created the container, docker
// reports a name conflict and that is treated as success.
func (c *Client) CreateRunner(ctx context.Context, m fleet.MachineInfo, runnerID string) error {
	client, err := c.connect(ctx, m)
	if err != nil {
		return err
	}
	defer client.Close()

	logging.Debug("SSH", "[%s] Pulling runner image", m.ID)
	if _, err := c.run(ctx, client, m, "docker pull "+runnerImage); err != nil {
		return err
	}

	cmd := c.runCommand(runnerID)
	logging.Info("SSH", "[%s] Starting runner container %s", m.ID, runnerID)
	output, err := c.run(ctx, client, m, cmd)
	if err != nil {
		if isNameConflict(output) {
			logging.Info("SSH", "[%s] Container %s already exists, treating as success", m.ID, runnerID)
			return nil
		}
		return err
	}
	logging.Debug("SSH", "[%s] Started container %s (%s)", m.ID, runnerID, output)
	return nil
}

// runCommand assembles the docker run invocation. Registration
// parameters come from the GitHub configuration; the runner registers
// ephemerally so a destroyed container leaves no stale registration.
func (c *Client) runCommand(runnerID string) string {
	parts := []string{
		"docker run",
		"--detach",
		"--name " + shellQuote(runnerID),
		"--label " + runnerLabel,
		"--restart unless-stopped",
		"-e RUNNER_NAME=" + shellQuote(c.github.Runners.NamePrefix+"-"+runnerID),
		"-e REPO_URL=" + shellQuote(c.github.Runners.RepoURL),
		"-e RUNNER_SCOPE=" + shellQuote(c.github.Runners.Scope),
		"-e ACCESS_TOKEN=" + shellQuote(c.github.PersonalAccessToken),
		"-e EPHEMERAL=true",
		"-v /var/run/docker.sock:/var/run/docker.sock",
		runnerImage,
	}
	return strings.Join(parts, " ")
}

// DestroyRunner force-removes the runner container. A container that is
// already gone counts as success.
func (c *Client) DestroyRunner(ctx context.Context, m fleet.MachineInfo, runnerID string) error {
	client, err := c.connect(ctx, m)
	if err != nil {
		return err
	}
	defer client.Close()

	logging.Info("SSH", "[%s] Removing runner container %s", m.ID, runnerID)
	output, err := c.run(ctx, client, m, "docker rm --force "+shellQuote(runnerID))
	if err != nil {
		if isNoSuchContainer(output) {
			logging.Debug("SSH", "[%s] Container %s already gone", m.ID, runnerID)
			return nil
		}
		return err
	}
	return nil
}

// Probe checks reachability and lists the runner containers present on
// the machine. Probe failures are folded into the result rather than
// returned: the fleet tracker consumes them as state, not as errors.
func (c *Client) Probe(ctx context.Context, m fleet.MachineInfo) fleet.ProbeResult {
	client, err := c.connect(ctx, m)
	if err != nil {
		return fleet.ProbeResult{Reachable: false, Err: err}
	}
	defer client.Close()

	output, err := c.run(ctx, client, m,
		fmt.Sprintf("docker ps --filter label=%s --format '{{.Names}}'", runnerLabel))
	if err != nil {
		return fleet.ProbeResult{Reachable: false, Err: err}
	}

	var ids []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			ids = append(ids, line)
		}
	}
	return fleet.ProbeResult{Reachable: true, RunningRunnerIDs: ids}
}

func isNameConflict(output string) bool {
	return strings.Contains(output, "is already in use by container")
}

func isNoSuchContainer(output string) bool {
	return strings.Contains(output, "No such container")
}

// shellQuote single-quotes a value for the remote shell. Runner ids are
// machine-generated and safe, but registration values come from
// configuration and may carry spaces or shell metacharacters.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
