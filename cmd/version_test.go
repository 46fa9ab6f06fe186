package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	SetVersion("1.2.3")
	cmd := newVersionCmd()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.Run(cmd, nil)

	if got := out.String(); !strings.Contains(got, "ghascaler version 1.2.3") {
		t.Errorf("unexpected version output %q", got)
	}
}
