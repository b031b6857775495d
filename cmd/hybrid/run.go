package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/viant/hybrid"
	"github.com/viant/hybrid/backend"
	"github.com/viant/hybrid/backend/claude"
	"github.com/viant/hybrid/backend/ollama"
	"github.com/viant/hybrid/backend/shell"
	"github.com/viant/hybrid/model"
	"github.com/viant/hybrid/service/metrics"
)

var (
	runType         string
	runSystemAccess bool
	runMultiStep    bool
	runPriority     int
	runCost         float64
	runCommands     []string
	runApprover     string
	runJSON         bool
	runVerbose      bool
)

var runCmd = &cobra.Command{
	Use:   "run <description>",
	Short: "Run a single task",
	Long: `Evaluate guardrails, route and run a single task.

Examples:
  hybrid run "Explain load average"
  hybrid run "uptime" --system-access
  hybrid run "check disk usage and clean tmp" --system-access --multi-step
  hybrid run "deploy api" --type deployment --system-access --approve-as alice`,
	Args: cobra.ExactArgs(1),
	RunE: runTask,
}

func init() {
	runCmd.Flags().StringVarP(&runType, "type", "t", string(model.TypeConversation), "task type")
	runCmd.Flags().BoolVar(&runSystemAccess, "system-access", false, "task requires system access")
	runCmd.Flags().BoolVar(&runMultiStep, "multi-step", false, "task requires multiple steps")
	runCmd.Flags().IntVarP(&runPriority, "priority", "p", model.DefaultPriority, "priority 1-5")
	runCmd.Flags().Float64Var(&runCost, "cost", 0, "estimated cost")
	runCmd.Flags().StringArrayVar(&runCommands, "command", nil, "explicit command for the operator (repeatable)")
	runCmd.Flags().StringVar(&runApprover, "approve-as", "", "grant pending approvals as this identity")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the result as JSON")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "log metrics changes")
}

func runTask(cmd *cobra.Command, args []string) error {
	cfg, err := readConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, closeService, err := newService(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeService()

	task := &model.Task{
		Description:          args[0],
		Type:                 model.Type(runType).Normalize(),
		RequiresSystemAccess: runSystemAccess,
		RequiresMultiStep:    runMultiStep,
		Priority:             runPriority,
		EstimatedCost:        runCost,
	}
	if len(runCommands) > 0 {
		task.Context = map[string]interface{}{model.ContextCommands: runCommands}
	}
	result, err := srv.Run(ctx, task)
	if err != nil {
		return err
	}
	if result.Status == model.ResultAwaitingApproval && runApprover != "" {
		if !runJSON {
			printResult(result)
			printStatus("…", fmt.Sprintf("approving as %s", runApprover), statusColor(model.ResultAwaitingApproval))
		}
		if result, err = srv.Approve(ctx, result.RunID, runApprover); err != nil {
			return err
		}
	}
	if runJSON {
		return printJSON(result)
	}
	printResult(result)
	if result.Status == model.ResultFailed || result.Status == model.ResultBlocked {
		return fmt.Errorf("task %s: %s", result.Status, result.Reason)
	}
	return nil
}

// newService creates the service with the configured backends.
func newService(ctx context.Context, cfg *Config) (*hybrid.Service, func(), error) {
	assistant, err := newAssistant(ctx, cfg.Assistant)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Operator.MaxSessions == 0 {
		cfg.Operator.MaxSessions = cfg.Run.MaxParallel
	}
	operator := shell.New(cfg.Operator)
	options := []hybrid.Option{
		hybrid.WithAssistant(assistant),
		hybrid.WithOperator(operator),
	}
	if runVerbose {
		tracker := metrics.NewTracker(metrics.WithWindow(cfg.Limits.Window), metrics.WithOnChange(metrics.LogChanges(nil)))
		options = append(options, hybrid.WithMetrics(tracker))
	}
	srv, err := hybrid.NewFromConfig(ctx, &cfg.Config, options...)
	if err != nil {
		_ = operator.Close()
		return nil, nil, err
	}
	return srv, func() {
		_ = srv.Close()
		_ = operator.Close()
	}, nil
}

func newAssistant(ctx context.Context, cfg AssistantConfig) (backend.Adapter, error) {
	switch cfg.Provider {
	case providerOllama:
		return ollama.New(cfg.Ollama)
	default:
		return claude.New(ctx, cfg.Claude)
	}
}
