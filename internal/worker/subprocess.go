package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Subprocess drives a local coding agent CLI in non-interactive mode. Output
// is streamed line by line to a per-order log file so a run can be observed
// with tail -f while the agent works.
type Subprocess struct {
	// Command is the agent binary, "claude" by default.
	Command string
	// Model passed to the agent when set.
	Model string
	// LogDir receives one log file per order.
	LogDir string

	log zerolog.Logger
}

// NewSubprocess creates a subprocess worker writing logs under logDir.
func NewSubprocess(command, model, logDir string, log zerolog.Logger) *Subprocess {
	if command == "" {
		command = "claude"
	}
	return &Subprocess{
		Command: command,
		Model:   model,
		LogDir:  logDir,
		log:     log.With().Str("component", "worker").Logger(),
	}
}

// resultMessage is the final stream-json message emitted by the agent.
type resultMessage struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
	Result  string `json:"result,omitempty"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage,omitempty"`
	CostUSD float64 `json:"cost_usd,omitempty"`
}

// Build runs one agent invocation for the order. The context carries the
// per-attempt timeout; a context cancellation kills the subprocess.
func (w *Subprocess) Build(ctx context.Context, order Order) (*Result, error) {
	args := []string{
		"--print",
		"--verbose",
		"--dangerously-skip-permissions",
		"--output-format", "stream-json",
	}
	if w.Model != "" {
		args = append(args, "--model", w.Model)
	}
	args = append(args, "-p", order.Prompt)

	cmd := exec.CommandContext(ctx, w.Command, args...)
	cmd.Dir = order.ProjectRoot

	logFile, err := w.openLog(order)
	if err != nil {
		return nil, err
	}
	defer logFile.Close()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", w.Command, err)
	}
	w.log.Debug().Str("item", order.ItemID).Int("pid", cmd.Process.Pid).Msg("agent started")

	var mu sync.Mutex
	var final resultMessage
	var lastLine string

	readLines := func(r io.Reader, wg *sync.WaitGroup) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			mu.Lock()
			logFile.WriteString(line + "\n")
			lastLine = line
			var msg resultMessage
			if json.Unmarshal([]byte(line), &msg) == nil && msg.Type == "result" {
				final = msg
			}
			mu.Unlock()
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go readLines(stdout, &wg)
	go readLines(stderr, &wg)
	wg.Wait()

	waitErr := cmd.Wait()
	duration := time.Since(start)

	mu.Lock()
	defer mu.Unlock()

	if ctx.Err() != nil {
		return nil, fmt.Errorf("agent timed out after %s", duration.Round(time.Second))
	}
	if waitErr != nil {
		detail := strings.TrimSpace(lastLine)
		if detail == "" {
			detail = waitErr.Error()
		}
		return &Result{Success: false, Detail: detail}, nil
	}

	res := &Result{
		Success:      final.Type != "result" || !final.IsError,
		Detail:       final.Result,
		TokensInput:  final.Usage.InputTokens,
		TokensOutput: final.Usage.OutputTokens,
		CostUSD:      final.CostUSD,
	}
	w.log.Debug().Str("item", order.ItemID).Bool("success", res.Success).
		Dur("duration", duration).Msg("agent finished")
	return res, nil
}

// Prepare pulls the configured model ahead of the run. Model pulls are
// expected to be slow, not stuck; the caller supplies the long timeout.
func (w *Subprocess) Prepare(ctx context.Context) error {
	if w.Model == "" {
		return nil
	}
	cmd := exec.CommandContext(ctx, w.Command, "model", "pull", w.Model)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("pulling model %s: %s: %w", w.Model, strings.TrimSpace(string(out)), err)
	}
	return nil
}

func (w *Subprocess) openLog(order Order) (*os.File, error) {
	if err := os.MkdirAll(w.LogDir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(w.LogDir, order.ItemID+".log")
	return os.Create(path)
}
