package pyscript

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"
)

// waitDelay caps how long Run waits for orphaned children to release the output pipes after a kill.
const waitDelay = 2 * time.Second

// Output holds what an analysis script wrote before it exited.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Run executes `interpreter script args...` and waits for it. ctx bounds the whole run.
// A non-zero exit is reported through ExitCode together with a non-nil error.
func Run(ctx context.Context, interpreter, script string, args ...string) (Output, error) {
	cmdArgs := append([]string{script}, args...)
	cmd := exec.CommandContext(ctx, interpreter, cmdArgs...)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{
		Stdout:   strings.TrimSpace(stdout.String()),
		Stderr:   strings.TrimSpace(stderr.String()),
		ExitCode: cmd.ProcessState.ExitCode(),
	}
	if ctx.Err() != nil {
		return out, ctx.Err()
	}
	return out, err
}

// Tail returns at most n trailing bytes of s, for error messages.
func Tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
