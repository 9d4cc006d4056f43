package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"shiftplane/pkg/api"

	"github.com/spf13/cobra"
)

var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Submit and inspect scenarios",
}

var (
	submitUnit   int64
	submitSource string
	submitFile   string
	submitUser   int64
)

var scenarioSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Store a scenario payload for a unit",
	Long: `Store a scenario payload read from --file (use - for stdin).

The payload is canonicalized by the server; submitting the same content for
the same unit again returns the existing scenario with its status reset to ready.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := readInput(cmd, submitFile)
		if err != nil {
			return err
		}
		if !json.Valid(payload) {
			return fmt.Errorf("%s does not contain valid JSON", submitFile)
		}

		req := api.CreateScenarioRequest{
			UnitID:  submitUnit,
			Source:  submitSource,
			Payload: payload,
		}
		if submitUser > 0 {
			req.CreatedBy = &submitUser
		}

		sc, err := newClient().CreateScenario(cmd.Context(), req)
		if err != nil {
			return err
		}
		return render(cmd, sc, func(w io.Writer) {
			fmt.Fprintf(w, "%s Scenario %d stored\n", statusIcon(sc.Status), sc.ID)
			field(w, "Input hash", sc.InputHash)
		})
	},
}

var listUnit int64

var scenarioListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scenarios, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		scenarios, err := newClient().ListScenarios(cmd.Context(), listUnit)
		if err != nil {
			return err
		}
		return render(cmd, scenarios, func(w io.Writer) {
			if len(scenarios) == 0 {
				fmt.Fprintln(w, "No scenarios found")
				return
			}
			fmt.Fprintf(w, "%-8s %-6s %-14s %-12s %s\n", bold("ID"), bold("UNIT"), bold("SOURCE"), bold("HASH"), bold("STATUS"))
			for _, sc := range scenarios {
				fmt.Fprintf(w, "%-8d %-6d %-14s %-12s %s\n", sc.ID, sc.UnitID, sc.Source, shortHash(sc.InputHash), colorizeStatus(sc.Status))
			}
		})
	},
}

var scenarioGetCmd = &cobra.Command{
	Use:   "get [scenario_id]",
	Short: "Show a scenario",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "scenario")
		if err != nil {
			return err
		}
		sc, err := newClient().GetScenario(cmd.Context(), id)
		if err != nil {
			return err
		}
		return render(cmd, sc, func(w io.Writer) {
			fmt.Fprintf(w, "%s %s\n", statusIcon(sc.Status), bold("Scenario Details"))
			fmt.Fprintln(w, "──────────────────────────────")
			field(w, "ID", sc.ID)
			field(w, "Unit", sc.UnitID)
			field(w, "Source", sc.Source)
			field(w, "Status", colorizeStatus(sc.Status))
			field(w, "Input hash", sc.InputHash)
			field(w, "Created by", optional(sc.CreatedBy))
			field(w, "Created", formatTimeWithRelative(&sc.CreatedAt))
			field(w, "Payload", fmt.Sprintf("%d bytes", len(sc.Payload)))
		})
	},
}

var scenarioDeleteCmd = &cobra.Command{
	Use:   "delete [scenario_id]",
	Short: "Delete a scenario with its runs and outputs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "scenario")
		if err != nil {
			return err
		}
		deleted, err := newClient().DeleteScenario(cmd.Context(), id)
		if err != nil {
			return err
		}
		if deleted {
			fmt.Fprintf(cmd.OutOrStdout(), "Scenario %d deleted\n", id)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Scenario %d did not exist\n", id)
		}
		return nil
	},
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("--file is required")
	}
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func init() {
	scenarioSubmitCmd.Flags().Int64Var(&submitUnit, "unit", 0, "unit id (required)")
	scenarioSubmitCmd.Flags().StringVar(&submitSource, "source", "shiftctl", "free-form origin label")
	scenarioSubmitCmd.Flags().StringVarP(&submitFile, "file", "f", "", "payload JSON file, - for stdin (required)")
	scenarioSubmitCmd.Flags().Int64Var(&submitUser, "created-by", 0, "user id recorded as the author")
	scenarioSubmitCmd.MarkFlagRequired("unit")
	scenarioSubmitCmd.MarkFlagRequired("file")

	scenarioListCmd.Flags().Int64Var(&listUnit, "unit", 0, "only scenarios of this unit")

	scenarioCmd.AddCommand(scenarioSubmitCmd, scenarioListCmd, scenarioGetCmd, scenarioDeleteCmd)
	rootCmd.AddCommand(scenarioCmd)
}
