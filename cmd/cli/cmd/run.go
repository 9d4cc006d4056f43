package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"shiftplane/pkg/api"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start and inspect solver runs",
}

var (
	startScenario    int64
	startPolicySet   int64
	startSeed        int
	startWorkers     int
	startCodeVersion string
)

var runStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Run a scenario through the solver and wait for the result",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := api.CreateRunRequest{
			ScenarioID:  startScenario,
			PolicySetID: startPolicySet,
		}
		if cmd.Flags().Changed("seed") {
			req.Seed = &startSeed
		}
		if cmd.Flags().Changed("workers") {
			req.Workers = &startWorkers
		}
		if startCodeVersion != "" {
			req.CodeVersion = &startCodeVersion
		}

		run, err := newClient().StartRun(cmd.Context(), req)
		if err != nil {
			return err
		}
		return render(cmd, run, func(w io.Writer) { printRun(w, run) })
	},
}

var runStatusCmd = &cobra.Command{
	Use:   "status [run_id]",
	Short: "Show a solver run",
	Long:  `Show the status (queued, running, succeeded, failed), the orchestration phase, the attempt count and timings of a solver run.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "run")
		if err != nil {
			return err
		}
		run, err := newClient().GetRun(cmd.Context(), id)
		if err != nil {
			return err
		}
		return render(cmd, run, func(w io.Writer) { printRun(w, run) })
	},
}

var listScenario int64

var runListCmd = &cobra.Command{
	Use:   "list",
	Short: "List solver runs, most recent first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runs, err := newClient().ListRuns(cmd.Context(), listScenario)
		if err != nil {
			return err
		}
		return render(cmd, runs, func(w io.Writer) {
			if len(runs) == 0 {
				fmt.Fprintln(w, "No solver runs found")
				return
			}
			fmt.Fprintf(w, "%-8s %-10s %-8s %-10s %s\n", bold("ID"), bold("SCENARIO"), bold("ATTEMPT"), bold("PHASE"), bold("STATUS"))
			for _, r := range runs {
				fmt.Fprintf(w, "%-8d %-10d %-8d %-10s %s\n", r.ID, r.ScenarioID, r.Attempt, r.Phase, colorizeStatus(r.Status))
			}
		})
	},
}

var ingestFile string

var runIngestCmd = &cobra.Command{
	Use:   "ingest [run_id]",
	Short: "Report a run result computed outside the controller",
	Long: `Send a result document to the ingestion endpoint of a run.

The document has the shape {"status", "wall_time_sec", "logs_url", "assignments", "kpi"}.
The shared secret is taken from --token or SHIFTPLANE_TOKEN.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "run")
		if err != nil {
			return err
		}
		data, err := readInput(cmd, ingestFile)
		if err != nil {
			return err
		}
		var req api.IngestRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("failed to parse %s: %w", ingestFile, err)
		}

		res, err := newClient().IngestResult(cmd.Context(), id, req)
		if err != nil {
			return err
		}
		return render(cmd, res, func(w io.Writer) {
			fmt.Fprintf(w, "%s Result ingested for run %d\n", statusIcon(req.Status), res.SolverRunID)
			field(w, "Assignments", res.AssignmentsInserted)
			field(w, "KPI", res.KpiUpserted)
		})
	},
}

func printRun(w io.Writer, run *api.SolverRunResponse) {
	fmt.Fprintf(w, "%s %s\n", statusIcon(run.Status), bold("Solver Run Details"))
	fmt.Fprintln(w, "──────────────────────────────")
	field(w, "ID", run.ID)
	field(w, "Scenario", run.ScenarioID)
	field(w, "Policy set", run.PolicySetID)
	field(w, "Status", colorizeStatus(run.Status))
	field(w, "Phase", run.Phase)
	field(w, "Attempt", run.Attempt)
	field(w, "Seed", optional(run.Seed))
	field(w, "Workers", optional(run.Workers))
	field(w, "Code version", optional(run.CodeVersion))
	if run.WallTimeSec != nil {
		field(w, "Wall time", formatDuration(time.Duration(*run.WallTimeSec*float64(time.Second))))
	}
	if run.LogsURL != nil {
		field(w, "Logs", *run.LogsURL)
	}
	if run.Error != nil {
		field(w, "Error", *run.Error)
	}
	field(w, "Started", formatTimeWithRelative(run.StartedAt))
	if run.StartedAt != nil && run.FinishedAt != nil {
		field(w, "Finished", fmt.Sprintf("%s (%s)", formatTimeWithRelative(run.FinishedAt), formatDuration(run.FinishedAt.Sub(*run.StartedAt))))
	} else {
		field(w, "Finished", formatTimeWithRelative(run.FinishedAt))
	}
	if run.IngestURL != "" {
		field(w, "Ingest URL", run.IngestURL)
	}
}

func init() {
	runStartCmd.Flags().Int64Var(&startScenario, "scenario", 0, "scenario id (required)")
	runStartCmd.Flags().Int64Var(&startPolicySet, "policy-set", 0, "policy set id (required)")
	runStartCmd.Flags().IntVar(&startSeed, "seed", 0, "solver random seed")
	runStartCmd.Flags().IntVar(&startWorkers, "workers", 0, "solver worker threads")
	runStartCmd.Flags().StringVar(&startCodeVersion, "code-version", "", "solver code version to record")
	runStartCmd.MarkFlagRequired("scenario")
	runStartCmd.MarkFlagRequired("policy-set")

	runListCmd.Flags().Int64Var(&listScenario, "scenario", 0, "only runs of this scenario")

	runIngestCmd.Flags().StringVarP(&ingestFile, "file", "f", "", "result JSON file, - for stdin (required)")
	runIngestCmd.MarkFlagRequired("file")

	runCmd.AddCommand(runStartCmd, runStatusCmd, runListCmd, runIngestCmd)
	rootCmd.AddCommand(runCmd)
}
