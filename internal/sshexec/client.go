package sshexec

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"ghascaler/internal/config"
	"ghascaler/internal/fleet"
	"ghascaler/pkg/logging"

	"golang.org/x/crypto/ssh"
)

// Client executes runner-management commands on fleet machines.
type Client struct {
	github config.GitHubConfig
}

// NewClient builds a Client. The GitHub configuration supplies the
// registration parameters baked into each runner container.
func NewClient(github config.GitHubConfig) *Client {
	return &Client{github: github}
}

// connect dials the machine and establishes an authenticated SSH session
// honoring the context deadline.
func (c *Client) connect(ctx context.Context, m fleet.MachineInfo) (*ssh.Client, error) {
	cfg := m.SSH
	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))

	auth, err := authMethods(cfg)
	if err != nil {
		return nil, &ConnectionError{Machine: m.ID, Cause: err}
	}

	clientConfig := &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback(m.ID, cfg),
	}
	if deadline, ok := ctx.Deadline(); ok {
		clientConfig.Timeout = time.Until(deadline)
	}

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectionError{Machine: m.ID, Cause: err}
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	if err != nil {
		conn.Close()
		return nil, &ConnectionError{Machine: m.ID, Cause: err}
	}
	return ssh.NewClient(sshConn, chans, reqs), nil
}

// authMethods prefers the private key when both it and a password are
// configured, matching the documented precedence.
func authMethods(cfg config.SSHConfig) ([]ssh.AuthMethod, error) {
	if cfg.PrivateKey != "" {
		var signer ssh.Signer
		var err error
		if cfg.PrivateKeyPassphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase([]byte(cfg.PrivateKey), []byte(cfg.PrivateKeyPassphrase))
		} else {
			signer, err = ssh.ParsePrivateKey([]byte(cfg.PrivateKey))
		}
		if err != nil {
			return nil, fmt.Errorf("parsing private key: %w", err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	if cfg.Password != "" {
		return []ssh.AuthMethod{ssh.Password(cfg.Password)}, nil
	}
	return nil, fmt.Errorf("no SSH credentials configured")
}

// hostKeyCallback pins the configured fingerprint when one is set. With
// no fingerprint the host key is accepted as-is; that choice is logged
// once per connection so operators know verification is off.
func hostKeyCallback(machineID string, cfg config.SSHConfig) ssh.HostKeyCallback {
	if cfg.Fingerprint == "" {
		return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
			logging.Debug("SSH", "Machine %s has no pinned fingerprint, accepting host key %s",
				machineID, ssh.FingerprintSHA256(key))
			return nil
		}
	}
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		actual := ssh.FingerprintSHA256(key)
		if actual != cfg.Fingerprint {
			return fmt.Errorf("host key mismatch for %s: expected %s, got %s", hostname, cfg.Fingerprint, actual)
		}
		return nil
	}
}

// run executes a command on an established client and returns its
// combined output. The session is torn down when the context fires so a
// hung remote command cannot outlive its action timeout.
func (c *Client) run(ctx context.Context, client *ssh.Client, m fleet.MachineInfo, command string) (string, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", &ConnectionError{Machine: m.ID, Cause: err}
	}
	defer session.Close()

	type result struct {
		output []byte
		err    error
	}
	done := make(chan result, 1)
	go func() {
		out, runErr := session.CombinedOutput(command)
		done <- result{output: out, err: runErr}
	}()

	select {
	case <-ctx.Done():
		session.Close()
		return "", &ConnectionError{Machine: m.ID, Cause: ctx.Err()}
	case res := <-done:
		output := strings.TrimSpace(string(res.output))
		if res.err != nil {
			return output, &CommandError{
				Machine: m.ID,
				Command: command,
				Output:  output,
				Cause:   res.err,
			}
		}
		return output, nil
	}
}
