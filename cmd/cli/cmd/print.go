package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	dim  = color.New(color.Faint).SprintFunc()
	bold = color.New(color.Bold).SprintFunc()
)

// render writes v as YAML when --output yaml is set and calls text otherwise.
func render(cmd *cobra.Command, v any, text func(w io.Writer)) error {
	switch format := strings.ToLower(viper.GetString("output")); format {
	case "", "text":
		text(cmd.OutOrStdout())
		return nil
	case "yaml":
		return writeYAML(cmd.OutOrStdout(), v)
	default:
		return fmt.Errorf("unsupported output format %q (use text or yaml)", format)
	}
}

// writeYAML goes through JSON so the wire field names are kept.
func writeYAML(w io.Writer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

func statusIcon(status string) string {
	switch status {
	case "succeeded":
		return color.GreenString("✓")
	case "failed":
		return color.RedString("✗")
	case "running":
		return color.YellowString("⏳")
	case "queued", "ready":
		return color.CyanString("◯")
	default:
		return "•"
	}
}

func colorizeStatus(status string) string {
	icon := statusIcon(status)
	switch status {
	case "succeeded":
		return icon + " " + color.GreenString(status)
	case "failed":
		return icon + " " + color.RedString(status)
	case "running":
		return icon + " " + color.YellowString(status)
	case "queued", "ready":
		return icon + " " + color.CyanString(status)
	default:
		return status
	}
}

func field(w io.Writer, name string, value any) {
	fmt.Fprintf(w, "%s %v\n", dim(fmt.Sprintf("%-13s", name+":")), value)
}

func optional[T any](p *T) any {
	if p == nil {
		return "-"
	}
	return *p
}

func formatTimeWithRelative(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return fmt.Sprintf("%s %s", t.Format("Mon, 02 Jan 2006 15:04:05 MST"), dim("("+relativeTime(*t)+" ago)"))
}

func relativeTime(t time.Time) string {
	duration := time.Since(t)

	if duration < time.Minute {
		return fmt.Sprintf("%ds", int(duration.Seconds()))
	} else if duration < time.Hour {
		return fmt.Sprintf("%dm", int(duration.Minutes()))
	} else if duration < 24*time.Hour {
		return fmt.Sprintf("%dh", int(duration.Hours()))
	} else {
		days := int(duration.Hours() / 24)
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	} else if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
