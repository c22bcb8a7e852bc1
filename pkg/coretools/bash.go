package coretools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/harun/codelet/pkg/facade"
	"github.com/harun/codelet/pkg/output"
	"github.com/harun/codelet/pkg/pause"
	"github.com/harun/codelet/pkg/toolexecutor"
)

// CancelledByUser is the result of a dangerous command the operator declined
const CancelledByUser = "Command cancelled by user"

// waitDelay bounds how long a cancelled command may hold its pipes open
const waitDelay = 2 * time.Second

func (t *Tools) executeBash(ctx context.Context, params facade.Params) (facade.Result, error) {
	p, ok := params.(facade.BashExecute)
	if !ok {
		return facade.Result{}, unsupported(params)
	}
	command := strings.TrimSpace(p.Command)
	if command == "" {
		return facade.Result{}, fmt.Errorf("command is required")
	}

	if pattern := t.dangerousMatch(command); pattern != "" {
		logger := t.logger.With().Str("pattern", pattern).Logger()
		logger.Info().Msg("Dangerous command needs confirmation")

		resp, err := pause.Ask(ctx, pause.Request{
			Kind:     pause.Confirm,
			ToolName: "bash",
			Message:  "Potentially dangerous command",
			Details:  command,
		})
		if err != nil {
			return facade.Result{}, err
		}
		if resp != pause.Approved {
			logger.Info().Str("response", string(resp)).Msg("Dangerous command declined")
			return facade.Result{Output: CancelledByUser}, nil
		}
	}

	dir, err := t.workspaceRoot(ctx)
	if err != nil {
		return facade.Result{}, err
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	cmd.WaitDelay = waitDelay

	if s := output.FromContext(ctx); s != nil {
		cmd.Stdout = io.MultiWriter(s, &stdout)
		cmd.Stderr = io.MultiWriter(s.Stderr(), &stderr)
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	err = cmd.Run()
	if ctx.Err() != nil {
		return facade.Result{}, ctx.Err()
	}

	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		return facade.Result{}, &toolexecutor.ToolExecutionError{
			Tool:   "bash",
			Output: formatFailure(exitErr.ExitCode(), stdout.String(), stderr.String()),
			Err:    fmt.Errorf("exit code %d", exitErr.ExitCode()),
		}
	case err != nil:
		return facade.Result{}, fmt.Errorf("failed to run command: %w", err)
	}

	return facade.Result{
		Output:   combine(stdout.String(), stderr.String()),
		Metadata: map[string]interface{}{"exit_code": 0},
	}, nil
}

func (t *Tools) dangerousMatch(command string) string {
	for _, re := range t.dangerous {
		if re.MatchString(command) {
			return re.String()
		}
	}
	return ""
}

func formatFailure(code int, stdout, stderr string) string {
	return fmt.Sprintf("exit code %d\nStdout: %s\nStderr: %s",
		code, strings.TrimRight(stdout, "\n"), strings.TrimRight(stderr, "\n"))
}

func combine(stdout, stderr string) string {
	switch {
	case stderr == "":
		return stdout
	case stdout == "":
		return stderr
	default:
		return strings.TrimRight(stdout, "\n") + "\n" + stderr
	}
}
