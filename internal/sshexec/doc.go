// Package sshexec manages runner containers on fleet machines over SSH.
//
// Each operation opens a fresh SSH session to the target machine and
// drives docker on the remote side: create runs a detached container for
// the GitHub Actions runner image, destroy force-removes it, and probe
// lists the containers carrying the runner label. Create and destroy are
// idempotent: a name collision on create and a missing container on
// destroy both count as success, which is what makes retrying ambiguous
// failures safe.
package sshexec
