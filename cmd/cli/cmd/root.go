package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "shiftctl",
	Short: "shiftctl is a command line tool for the shiftplane scheduling backend",
	Long: `shiftctl is the command-line interface for shiftplane.

shiftplane stores scheduling scenarios, runs them through the external
solver and keeps the resulting assignments and KPIs:

  - Scenarios: content-addressed problem payloads per unit
  - Solver runs: one optimization attempt of a scenario under a policy set
  - Outputs: assignments and the KPI summary of a run

Common workflows:

  Submit a scenario:
    shiftctl scenario submit --unit 1 --source planner --file week-2.json

  Run it and wait for the result:
    shiftctl run start --scenario 10 --policy-set 2 --seed 42

  Inspect the outcome:
    shiftctl run status 7
    shiftctl kpi 7
    shiftctl assignments 7

  Report a result computed elsewhere:
    shiftctl run ingest 7 --file result.json

Configuration:
  Set the API endpoint and credentials via environment variables or a config file:
    SHIFTPLANE_URL      API endpoint (default: http://127.0.0.1:8080)
    SHIFTPLANE_TOKEN    Shared secret for the ingestion endpoint`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".shiftctl"
		viper.AddConfigPath(home)
		viper.SetConfigName(".shiftctl")
		viper.SetConfigType("yaml")
	}

	// Read environment variables that match "SHIFTPLANE_VARNAME"
	viper.SetEnvPrefix("SHIFTPLANE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func newClient() *Client {
	return NewClient(viper.GetString("url"), viper.GetString("token"))
}

func parseID(raw, what string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, raw)
	}
	return id, nil
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.shiftctl.yaml)")

	rootCmd.PersistentFlags().String("url", "http://127.0.0.1:8080", "shiftplane controller URL")
	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))

	rootCmd.PersistentFlags().StringP("token", "t", "", "shared secret sent as a bearer token")
	viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))

	rootCmd.PersistentFlags().StringP("output", "o", "text", "output format: text or yaml")
	viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
}
