package worker

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeAgentScript writes an executable stand-in for the agent CLI.
func fakeAgentScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.sh")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSubprocess_ParsesResult(t *testing.T) {
	script := fakeAgentScript(t, `
echo '{"type":"assistant","message":"working"}'
echo '{"type":"result","subtype":"success","is_error":false,"result":"done","usage":{"input_tokens":1500,"output_tokens":900},"cost_usd":0.25}'
`)
	logDir := t.TempDir()
	w := NewSubprocess(script, "", logDir, zerolog.Nop())

	result, err := w.Build(context.Background(), Order{ItemID: "item-01", Prompt: "build it", ProjectRoot: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Errorf("Result = %+v, want success", result)
	}
	if result.TokensInput != 1500 || result.TokensOutput != 900 {
		t.Errorf("Tokens = %d/%d, want 1500/900", result.TokensInput, result.TokensOutput)
	}
	if result.CostUSD != 0.25 {
		t.Errorf("CostUSD = %v", result.CostUSD)
	}

	// Output is streamed to the per-item log.
	data, err := os.ReadFile(filepath.Join(logDir, "item-01.log"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"type":"result"`) {
		t.Error("Log file missing agent output")
	}
}

func TestSubprocess_AgentReportsError(t *testing.T) {
	script := fakeAgentScript(t, `
echo '{"type":"result","subtype":"error","is_error":true,"result":"could not apply patch"}'
`)
	w := NewSubprocess(script, "", t.TempDir(), zerolog.Nop())

	result, err := w.Build(context.Background(), Order{ItemID: "item-01", ProjectRoot: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if result.Success {
		t.Error("is_error result should map to a failed build")
	}
	if result.Detail != "could not apply patch" {
		t.Errorf("Detail = %q", result.Detail)
	}
}

func TestSubprocess_NonZeroExit(t *testing.T) {
	script := fakeAgentScript(t, `
echo 'fatal: model unavailable' >&2
exit 3
`)
	w := NewSubprocess(script, "", t.TempDir(), zerolog.Nop())

	result, err := w.Build(context.Background(), Order{ItemID: "item-01", ProjectRoot: t.TempDir()})
	if err != nil {
		t.Fatalf("A crashing agent is a failed result, not an error: %v", err)
	}
	if result.Success {
		t.Error("Expected failure")
	}
	if !strings.Contains(result.Detail, "model unavailable") {
		t.Errorf("Detail = %q, want the agent's last line", result.Detail)
	}
}

func TestSubprocess_Timeout(t *testing.T) {
	script := fakeAgentScript(t, `sleep 5`)
	w := NewSubprocess(script, "", t.TempDir(), zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if _, err := w.Build(ctx, Order{ItemID: "item-01", ProjectRoot: t.TempDir()}); err == nil {
		t.Fatal("Expected timeout error")
	}
}

func TestSubprocess_DefaultsCommand(t *testing.T) {
	w := NewSubprocess("", "", t.TempDir(), zerolog.Nop())
	if w.Command != "claude" {
		t.Errorf("Command = %q, want claude", w.Command)
	}
}

func TestSubprocess_PrepareWithoutModel(t *testing.T) {
	w := NewSubprocess("does-not-exist", "", t.TempDir(), zerolog.Nop())
	if err := w.Prepare(context.Background()); err != nil {
		t.Errorf("Prepare without a model should be a no-op: %v", err)
	}
}
