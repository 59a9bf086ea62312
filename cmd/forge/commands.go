package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/agent"
	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/batch"
	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/config"
	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/domain"
	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/notify"
	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/observer"
	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/pipeline"
	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/runstore"
	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/statestore"
	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/worker"
	"github.com/yensi-aiorg/nc-dev-system-sub001/tui"
)

var (
	runRequirements string
	runOutput       string
	runPhases       string
	runName         string
	runConcurrency  int
	runUseTUI       bool

	statusOutput string

	watchRequirements string
	watchOutput       string
	watchName         string
	watchSchedules    bool

	agentListen string
	agentModel  string
)

func init() {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the build pipeline",
		RunE:  runRun,
	}
	runCmd.Flags().StringVarP(&runRequirements, "requirements", "r", "", "requirements markdown file")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "output directory (default from config)")
	runCmd.Flags().StringVar(&runPhases, "phases", "1,2,3,4,5,6", "comma-separated phase numbers")
	runCmd.Flags().StringVar(&runName, "name", "", "project name override")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "parallel builds (default from config)")
	runCmd.Flags().BoolVar(&runUseTUI, "tui", false, "show the progress dashboard")
	runCmd.MarkFlagRequired("requirements")
	rootCmd.AddCommand(runCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the checkpoint of the last run",
		RunE:  runStatus,
	}
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "", "output directory (default from config)")
	rootCmd.AddCommand(statusCmd)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run the pipeline whenever the requirements change",
		RunE:  runWatch,
	}
	watchCmd.Flags().StringVarP(&watchRequirements, "requirements", "r", "", "requirements markdown file")
	watchCmd.Flags().StringVarP(&watchOutput, "output", "o", "", "output directory (default from config)")
	watchCmd.Flags().StringVar(&watchName, "name", "", "project name override")
	watchCmd.Flags().BoolVar(&watchSchedules, "schedules", false, "also run the configured cron schedules")
	watchCmd.MarkFlagRequired("requirements")
	rootCmd.AddCommand(watchCmd)

	agentCmd := &cobra.Command{
		Use:   "agent",
		Short: "Serve builds to remote orchestrators over websocket",
		RunE:  runAgent,
	}
	agentCmd.Flags().StringVar(&agentListen, "listen", ":8377", "listen address")
	agentCmd.Flags().StringVar(&agentModel, "model", "", "model override for this agent")
	rootCmd.AddCommand(agentCmd)
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Load(path)
}

func buildWorker(cfg *config.Config, log zerolog.Logger) (worker.Worker, error) {
	logDir := filepath.Join(filepath.Dir(cfg.General.DatabasePath), "logs")
	switch cfg.Worker.Kind {
	case "", "subprocess":
		return worker.NewSubprocess("claude", cfg.Worker.Model, logDir, log), nil
	case "remote":
		if cfg.Worker.RemoteURL == "" {
			return nil, fmt.Errorf("worker kind %q requires remote_url", cfg.Worker.Kind)
		}
		return worker.NewRemote(cfg.Worker.RemoteURL, log), nil
	default:
		return nil, fmt.Errorf("unknown worker kind %q", cfg.Worker.Kind)
	}
}

func buildNotifier(cfg *config.Config) notify.Notifier {
	var notifiers []notify.Notifier
	if cfg.Notifications.Desktop {
		notifiers = append(notifiers, notify.NewDesktopNotifier(true))
	}
	if cfg.Notifications.SlackWebhook != "" {
		notifiers = append(notifiers, notify.NewSlackNotifier(cfg.Notifications.SlackWebhook))
	}
	if len(notifiers) == 0 {
		return notify.NoopNotifier{}
	}
	return notify.NewMultiNotifier(notifiers...)
}

func pipelineOptions(cfg *config.Config, requirements, output, name string, concurrency int, store *runstore.Store) pipeline.Options {
	if output == "" {
		output = cfg.General.OutputDir
	}
	if concurrency == 0 {
		concurrency = cfg.General.MaxParallelBuilds
	}
	opts := pipeline.Options{
		RequirementsPath: requirements,
		OutputDir:        config.ExpandPath(output),
		ProjectName:      name,
		MaxConcurrency:   concurrency,
		MaxAttempts:      cfg.Build.MaxAttempts,
		AttemptTimeout:   time.Duration(cfg.Build.AttemptTimeoutSecs) * time.Second,
		ModelPullTimeout: time.Duration(cfg.Build.ModelPullTimeoutSecs) * time.Second,
		MaxFixIterations: cfg.Verify.MaxIterations,
		TestCommand:      cfg.Verify.TestCommand,
		VisualCommand:    cfg.Verify.VisualCommand,
		FixCommand:       cfg.Verify.FixCommand,
	}
	if store != nil {
		opts.ItemStore = store
	}
	return opts
}

func openRunStore(cfg *config.Config, log zerolog.Logger) *runstore.Store {
	store, err := runstore.New(cfg.General.DatabasePath)
	if err != nil {
		log.Warn().Err(err).Msg("run history disabled, could not open database")
		return nil
	}
	return store
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger()

	phases, err := domain.ParsePhases(runPhases)
	if err != nil {
		return err
	}
	w, err := buildWorker(cfg, log)
	if err != nil {
		return err
	}
	store := openRunStore(cfg, log)
	if store != nil {
		defer store.Close()
	}

	opts := pipelineOptions(cfg, runRequirements, runOutput, runName, runConcurrency, store)
	collab := pipeline.Collaborators{Worker: w, Notifier: buildNotifier(cfg)}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var state *statestore.PhaseState
	if runUseTUI {
		state, err = runWithDashboard(ctx, opts, collab, phases, log)
	} else {
		orch := pipeline.New(opts, collab, nil, log)
		state, err = orch.Run(ctx, phases)
	}
	if err != nil {
		return err
	}
	if !state.Success {
		return fmt.Errorf("run failed: phases %v did not complete", state.PhasesFailed)
	}
	return nil
}

func runWithDashboard(ctx context.Context, opts pipeline.Options, collab pipeline.Collaborators, phases []int, log zerolog.Logger) (*statestore.PhaseState, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := tui.NewModel(tui.ModelConfig{Phases: phases})
	program := tea.NewProgram(model, tea.WithAltScreen())

	orch := pipeline.New(opts, collab, tui.NewReporter(program), log)

	var (
		state  *statestore.PhaseState
		runErr error
		done   = make(chan struct{})
	)
	go func() {
		defer close(done)
		state, runErr = orch.Run(ctx, phases)
	}()

	if _, err := program.Run(); err != nil {
		cancel()
		<-done
		return nil, err
	}
	// Quitting the dashboard aborts an in-flight run.
	cancel()
	<-done
	return state, runErr
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger()

	output := statusOutput
	if output == "" {
		output = cfg.General.OutputDir
	}
	workDir := filepath.Join(config.ExpandPath(output), ".forge")
	state, err := statestore.New(workDir, log).Load()
	if err != nil {
		return err
	}
	if state == nil {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	verdict := "in progress"
	if state.FinishedAt != nil {
		verdict = "failed"
		if state.Success {
			verdict = "succeeded"
		}
	}
	fmt.Printf("Last run: %s\n", verdict)
	if state.StartedAt != nil {
		fmt.Printf("Started:  %s\n", humanize.Time(*state.StartedAt))
	}
	if state.UpdatedAt != nil {
		fmt.Printf("Updated:  %s\n", humanize.Time(*state.UpdatedAt))
	}
	if state.ElapsedSeconds > 0 {
		fmt.Printf("Elapsed:  %s\n", (time.Duration(state.ElapsedSeconds * float64(time.Second))).Round(time.Second))
	}

	fmt.Println("\nPhases:")
	for _, p := range domain.AllPhases() {
		n := int(p)
		switch {
		case state.Completed(n):
			fmt.Printf("  ✓ %d %s\n", n, p)
		case state.Failed(n):
			fmt.Printf("  ✗ %d %s: %s\n", n, p, state.Errors[n])
		default:
			fmt.Printf("  · %d %s\n", n, p)
		}
	}

	store := openRunStore(cfg, log)
	if store == nil {
		return nil
	}
	defer store.Close()

	runs, err := store.ListRecentItemRuns(15)
	if err != nil || len(runs) == 0 {
		return nil
	}
	fmt.Println("\nRecent work items:")
	tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tFEATURE\tSTATUS\tATTEMPTS\tSTARTED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			r.ItemID, r.FeatureName, r.Status, r.Attempts, humanize.Time(r.StartedAt))
	}
	return tw.Flush()
}

// watchReporter feeds build outcomes into the session metrics collector in
// addition to the console.
type watchReporter struct {
	*pipeline.ConsoleReporter
	collector *observer.Collector
}

func (r watchReporter) ItemFinished(out domain.Outcome) {
	r.collector.Record(out)
	r.ConsoleReporter.ItemFinished(out)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger()

	w, err := buildWorker(cfg, log)
	if err != nil {
		return err
	}
	store := openRunStore(cfg, log)
	if store != nil {
		defer store.Close()
	}
	collector := observer.NewCollector()
	notifier := buildNotifier(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runMu sync.Mutex
	launch := func(phases []int) {
		runMu.Lock()
		defer runMu.Unlock()

		opts := pipelineOptions(cfg, watchRequirements, watchOutput, watchName, 0, store)
		reporter := watchReporter{
			ConsoleReporter: &pipeline.ConsoleReporter{Out: os.Stdout},
			collector:       collector,
		}
		orch := pipeline.New(opts, pipeline.Collaborators{Worker: w, Notifier: notifier}, reporter, log)
		if _, err := orch.Run(ctx, phases); err != nil {
			log.Error().Err(err).Msg("pipeline run failed")
		}
		m := collector.Metrics()
		log.Info().
			Int("completed", m.TotalCompleted).
			Int("failed", m.TotalFailed).
			Int("tokens_in", m.TotalTokensInput).
			Int("tokens_out", m.TotalTokensOutput).
			Msg("session totals")
	}

	watcher, err := observer.NewWatcher(func(files []string) {
		log.Info().Strs("files", files).Msg("requirements changed, rerunning pipeline")
		go launch(phasesAll())
	}, log)
	if err != nil {
		return err
	}
	defer watcher.Stop()
	if cfg.Watch.DebounceMs > 0 {
		watcher.SetDebounce(time.Duration(cfg.Watch.DebounceMs) * time.Millisecond)
	}
	if err := watcher.AddFile(watchRequirements); err != nil {
		return err
	}
	watcher.Start(ctx)
	log.Info().Str("file", watchRequirements).Msg("watching requirements")

	if watchSchedules && len(cfg.Schedules) > 0 {
		sched, err := batch.NewScheduler(cfg.Schedules)
		if err != nil {
			return err
		}
		sched.Prime(time.Now())
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case now := <-ticker.C:
					for _, sc := range sched.Due(now) {
						phases, err := domain.ParsePhases(sc.Phases)
						if err != nil {
							log.Error().Err(err).Str("schedule", sc.Name).Msg("bad schedule phases")
							continue
						}
						log.Info().Str("schedule", sc.Name).Msg("schedule due, running pipeline")
						sched.MarkStarted(sc.Name, now)
						go func(name string, phases []int) {
							launch(phases)
							sched.MarkFinished(name)
						}(sc.Name, phases)
					}
				}
			}
		}()
		log.Info().Strs("schedules", sched.Names()).Msg("cron schedules active")
	}

	<-ctx.Done()
	return nil
}

func phasesAll() []int {
	out := make([]int, 0, len(domain.AllPhases()))
	for _, p := range domain.AllPhases() {
		out = append(out, int(p))
	}
	return out
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger()

	if agentModel != "" {
		cfg.Worker.Model = agentModel
	}
	logDir := filepath.Join(filepath.Dir(cfg.General.DatabasePath), "logs")
	w := worker.NewSubprocess("claude", cfg.Worker.Model, logDir, log)

	log.Info().Str("addr", agentListen).Msg("agent listening")
	return agent.NewServer(w, agentListen, log).Start()
}
