package cmd

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var kpiCmd = &cobra.Command{
	Use:   "kpi [run_id]",
	Short: "Show the KPI summary of a solver run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "run")
		if err != nil {
			return err
		}
		k, err := newClient().GetKpi(cmd.Context(), id)
		if err != nil {
			return err
		}
		return render(cmd, k, func(w io.Writer) {
			fmt.Fprintf(w, "%s\n", bold(fmt.Sprintf("KPI of run %d", k.SolverRunID)))
			fmt.Fprintln(w, "──────────────────────────────")
			field(w, "Satisfaction", fmt.Sprintf("%d%%", k.AvgSatisfaction))
			field(w, "Understaffed", warnIfPositive(k.UnderstaffTotal))
			field(w, "Overtime", warnIfPositive(k.OvertimeTotal))
			field(w, "Night viol.", warnIfPositive(k.NightViolations))
			if k.SeniorCoverageOK {
				field(w, "Senior cover", color.GreenString("ok"))
			} else {
				field(w, "Senior cover", color.RedString("missing"))
			}
		})
	},
}

var assignmentsCmd = &cobra.Command{
	Use:   "assignments [run_id]",
	Short: "List the assignments of a solver run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "run")
		if err != nil {
			return err
		}
		assignments, err := newClient().ListAssignments(cmd.Context(), id)
		if err != nil {
			return err
		}
		return render(cmd, assignments, func(w io.Writer) {
			if len(assignments) == 0 {
				fmt.Fprintln(w, "No assignments")
				return
			}
			fmt.Fprintf(w, "%-12s %-7s %-7s %-9s %s\n", bold("DAY"), bold("SHIFT"), bold("STAFF"), bold("SOURCE"), bold("OVERTIME"))
			for _, a := range assignments {
				overtime := ""
				if a.IsOvertime {
					overtime = color.YellowString("yes")
				}
				fmt.Fprintf(w, "%-12s %-7d %-7d %-9s %s\n", a.Day, a.ShiftID, a.StaffID, a.Source, overtime)
			}
			fmt.Fprintf(w, "%s\n", dim(fmt.Sprintf("%d assignments", len(assignments))))
		})
	},
}

func warnIfPositive(n int) string {
	if n > 0 {
		return color.YellowString("%d", n)
	}
	return fmt.Sprintf("%d", n)
}

func init() {
	rootCmd.AddCommand(kpiCmd, assignmentsCmd)
}
