package core

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecuteScanner(t *testing.T) {
	requireShell(t)

	tests := []struct {
		name       string
		script     string
		wantExit   int
		wantStdout string
		wantStderr string
	}{
		{
			name:       "success",
			script:     "echo gadgets",
			wantExit:   0,
			wantStdout: "gadgets\n",
		},
		{
			name:       "non-zero exit is not an error",
			script:     "echo partial; echo boom >&2; exit 3",
			wantExit:   3,
			wantStdout: "partial\n",
			wantStderr: "boom\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ExecuteScanner(context.Background(), &ExecConfig{
				Binary: "sh",
				Args:   []string{"-c", tt.script},
			})
			if err != nil {
				t.Fatalf("ExecuteScanner() error = %v", err)
			}
			if result.ExitCode != tt.wantExit {
				t.Errorf("ExitCode = %d, want %d", result.ExitCode, tt.wantExit)
			}
			if string(result.Stdout) != tt.wantStdout {
				t.Errorf("Stdout = %q, want %q", result.Stdout, tt.wantStdout)
			}
			if string(result.Stderr) != tt.wantStderr {
				t.Errorf("Stderr = %q, want %q", result.Stderr, tt.wantStderr)
			}
		})
	}
}

func TestExecuteScanner_StreamsStdout(t *testing.T) {
	requireShell(t)

	var buf bytes.Buffer
	result, err := ExecuteScanner(context.Background(), &ExecConfig{
		Binary: "sh",
		Args:   []string{"-c", "printf 'a\\nb\\n'"},
		Stdout: &buf,
	})
	if err != nil {
		t.Fatalf("ExecuteScanner() error = %v", err)
	}
	if buf.String() != "a\nb\n" {
		t.Errorf("streamed stdout = %q", buf.String())
	}
	if len(result.Stdout) != 0 {
		t.Errorf("captured stdout = %q, want empty when streaming", result.Stdout)
	}
}

func TestExecuteScanner_Env(t *testing.T) {
	requireShell(t)

	result, err := ExecuteScanner(context.Background(), &ExecConfig{
		Binary: "sh",
		Args:   []string{"-c", "echo $ROPSTAT_TEST_VALUE"},
		Env:    map[string]string{"ROPSTAT_TEST_VALUE": "42"},
	})
	if err != nil {
		t.Fatalf("ExecuteScanner() error = %v", err)
	}
	if strings.TrimSpace(string(result.Stdout)) != "42" {
		t.Errorf("Stdout = %q, want 42", result.Stdout)
	}
}

func TestExecuteScanner_Timeout(t *testing.T) {
	requireShell(t)

	_, err := ExecuteScanner(context.Background(), &ExecConfig{
		Binary:  "sh",
		Args:    []string{"-c", "exec sleep 5"},
		Timeout: 50 * time.Millisecond,
	})
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Errorf("ExecuteScanner() error = %v, want timeout", err)
	}
}

func TestExecuteScanner_MissingBinary(t *testing.T) {
	_, err := ExecuteScanner(context.Background(), &ExecConfig{Binary: "ropstat-no-such-binary"})
	if err == nil {
		t.Fatal("ExecuteScanner() error = nil, want start failure")
	}

	if _, err := ExecuteScanner(context.Background(), &ExecConfig{}); err == nil {
		t.Error("ExecuteScanner() with empty binary error = nil")
	}
}

func TestCheckBinaryInstalled(t *testing.T) {
	installed, version, err := CheckBinaryInstalled(context.Background(), "ropstat-no-such-binary")
	if err != nil || installed || version != "" {
		t.Errorf("CheckBinaryInstalled(missing) = %v, %q, %v", installed, version, err)
	}

	requireShell(t)
	installed, version, err = CheckBinaryInstalled(context.Background(), "sh", "-c", "echo; echo 'Version: ROPgadget v7.4'; echo extra")
	if err != nil {
		t.Fatalf("CheckBinaryInstalled() error = %v", err)
	}
	if !installed || version != "Version: ROPgadget v7.4" {
		t.Errorf("CheckBinaryInstalled() = %v, %q", installed, version)
	}

	if installed, _, err := CheckBinaryInstalled(context.Background(), "sh", "-c", "exit 2"); err == nil || installed {
		t.Errorf("CheckBinaryInstalled(failing) = %v, %v, want error", installed, err)
	}
}

func TestLogrusLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogrusLogger(&buf, LogLevelInfo, "aggregate")
	l.Debug("hidden %d", 1)
	l.Info("Aggregating gadgets for file %s", "ls.gdt.cnt")
	l.Warn("slow")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug message logged at info level: %q", out)
	}
	for _, want := range []string{"Aggregating gadgets for file ls.gdt.cnt", "component=aggregate", "level=warning"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q does not contain %q", out, want)
		}
	}

	buf.Reset()
	silent := NewLogrusLogger(&buf, LogLevelSilent, "")
	silent.Error("nothing")
	if buf.Len() != 0 {
		t.Errorf("silent logger wrote %q", buf.String())
	}
}

func TestOrNop(t *testing.T) {
	if _, ok := OrNop(nil).(*NopLogger); !ok {
		t.Error("OrNop(nil) should return a NopLogger")
	}
	l := NewLogrusLogger(&bytes.Buffer{}, LogLevelInfo, "")
	if OrNop(l) != l {
		t.Error("OrNop should return a non-nil logger unchanged")
	}
}
