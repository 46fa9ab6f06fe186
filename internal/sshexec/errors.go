package sshexec

import "fmt"

// ConnectionError indicates the machine could not be reached or the SSH
// session could not be established.
type ConnectionError struct {
	Machine string
	Cause   error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to machine %s failed: %v", e.Machine, e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// CommandError indicates a remote command ran but exited nonzero.
type CommandError struct {
	Machine string
	Command string
	Output  string
	Cause   error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command failed on machine %s: %s: %v", e.Machine, e.Command, e.Cause)
}

func (e *CommandError) Unwrap() error { return e.Cause }
