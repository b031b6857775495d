package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/viant/hybrid"
	"github.com/viant/hybrid/service/audit"
	"github.com/viant/hybrid/service/dao"
)

var (
	historyState string
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List persisted runs",
	Long: `List runs persisted under store.runURL, oldest first.

Runs are only kept between invocations when store.runURL is configured.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var auditCmd = &cobra.Command{
	Use:   "audit <run-id>",
	Short: "Show the audit trail of a run",
	Long:  `Show guardrail, route, stage and approval events recorded in the audit.sqlite database.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runAudit,
}

func init() {
	historyCmd.Flags().StringVar(&historyState, "state", "", "filter by run state")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "print results as JSON")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := readConfig()
	if err != nil {
		return err
	}
	if cfg.Store.RunURL == "" {
		return fmt.Errorf("store.runURL is not configured")
	}
	ctx := context.Background()
	srv, err := hybrid.NewFromConfig(ctx, &cfg.Config)
	if err != nil {
		return err
	}
	defer srv.Close()
	var parameters []*dao.Parameter
	if historyState != "" {
		parameters = append(parameters, dao.NewParameter(dao.ParamState, historyState))
	}
	results, err := srv.History(ctx, parameters...)
	if err != nil {
		return err
	}
	if historyJSON {
		return printJSON(results)
	}
	if len(results) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}
	for _, result := range results {
		printSummary(result)
	}
	return nil
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, err := readConfig()
	if err != nil {
		return err
	}
	if cfg.Audit.SQLite == "" {
		return fmt.Errorf("audit.sqlite is not configured")
	}
	db, err := audit.OpenSQLite(cfg.Audit.SQLite)
	if err != nil {
		return err
	}
	defer db.Close()
	events, err := db.Events(context.Background(), args[0])
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Printf("No audit events for run %s.\n", args[0])
		return nil
	}
	for _, event := range events {
		printEvent(event)
	}
	return nil
}
