package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "hybrid",
	Short: "Route tasks across assistant, operator and hybrid workflows",
	Long: `hybrid evaluates guardrails for a task, routes it to the assistant
(reasoning), the operator (shell execution) or a hybrid plan, execute and
verify workflow, and prints the result with its stage history.

Configuration is read from --config (YAML) and HYBRID_* environment
variables, e.g. HYBRID_ASSISTANT_PROVIDER=ollama.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (YAML)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(auditCmd)
}

func readConfig() (*Config, error) {
	return loadConfig(viper.New(), configPath)
}

func main() {
	Execute()
}
