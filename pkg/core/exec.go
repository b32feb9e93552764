package core

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// DefaultExecTimeout bounds a tool run when ExecConfig.Timeout is zero.
const DefaultExecTimeout = 30 * time.Minute

// waitDelay bounds how long output copying may outlive a killed process.
const waitDelay = 5 * time.Second

// versionTimeout bounds the `--version` probe in CheckBinaryInstalled.
const versionTimeout = 10 * time.Second

// ExecConfig describes one external tool invocation.
type ExecConfig struct {
	Binary  string
	Args    []string
	WorkDir string
	Env     map[string]string
	Timeout time.Duration

	// Stdout receives the tool's standard output when set; otherwise it is
	// captured into ExecResult.Stdout.
	Stdout io.Writer

	Verbose bool
	Logger  Logger
}

// ExecResult is the outcome of a tool run that started successfully.
type ExecResult struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// ExecuteScanner runs cfg.Binary and waits for it to exit.
//
// A non-zero exit status is not an error: callers inspect ExitCode, because
// several tools use it to report findings. An error is returned only when the
// process cannot be started, or is killed by the timeout or ctx.
func ExecuteScanner(ctx context.Context, cfg *ExecConfig) (*ExecResult, error) {
	if cfg == nil || cfg.Binary == "" {
		return nil, fmt.Errorf("exec: binary is required")
	}
	logger := OrNop(cfg.Logger)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, cfg.Binary, cfg.Args...)
	cmd.Dir = cfg.WorkDir
	cmd.WaitDelay = waitDelay
	if len(cfg.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range cfg.Env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}
	}

	var stdout, stderr bytes.Buffer
	if cfg.Stdout != nil {
		cmd.Stdout = cfg.Stdout
	} else {
		cmd.Stdout = &stdout
	}
	cmd.Stderr = &stderr

	if cfg.Verbose {
		logger.Debug("Running: %s %s", cfg.Binary, strings.Join(cfg.Args, " "))
	}

	start := time.Now()
	err := cmd.Run()
	result := &ExecResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	if err != nil {
		if ctxErr := execCtx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) && ctx.Err() == nil {
				return result, fmt.Errorf("%s timed out after %s", cfg.Binary, timeout)
			}
			return result, ctxErr
		}

		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("start %s: %w", cfg.Binary, err)
		}
		result.ExitCode = exitErr.ExitCode()
	}

	if cfg.Verbose {
		logger.Debug("%s completed in %s (exit code: %d)", cfg.Binary, result.Duration.Round(time.Millisecond), result.ExitCode)
	}

	return result, nil
}

// CheckBinaryInstalled reports whether binary is on PATH and answers the
// version command. The returned version is the first line of its output.
func CheckBinaryInstalled(ctx context.Context, binary string, versionArgs ...string) (bool, string, error) {
	if _, err := exec.LookPath(binary); err != nil {
		return false, "", nil
	}

	if len(versionArgs) == 0 {
		versionArgs = []string{"--version"}
	}

	result, err := ExecuteScanner(ctx, &ExecConfig{
		Binary:  binary,
		Args:    versionArgs,
		Timeout: versionTimeout,
	})
	if err != nil {
		return false, "", fmt.Errorf("%s %s: %w", binary, strings.Join(versionArgs, " "), err)
	}
	if result.ExitCode != 0 {
		return false, "", fmt.Errorf("%s %s exited with code %d: %s",
			binary, strings.Join(versionArgs, " "), result.ExitCode, strings.TrimSpace(string(result.Stderr)))
	}

	// Some tools print their version on stderr.
	out := result.Stdout
	if len(bytes.TrimSpace(out)) == 0 {
		out = result.Stderr
	}
	return true, firstLine(out), nil
}

func firstLine(b []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			return line
		}
	}
	return ""
}
