package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/me/wolf/internal/tasks"
	"github.com/me/wolf/pkg/flow"
)

func newTasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List the task catalogue with input schemas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TASK\tVERSION\tSIGNATURE\tINPUTS\tOUTPUTS")
			for _, n := range tasks.All() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					n.Name, n.Version, n.Signature()[:12], paramList(n.Inputs), paramList(n.Outputs))
			}
			return tw.Flush()
		},
	}
}

func paramList(ps []flow.Param) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		if p.Kind == flow.KindCollection {
			parts[i] = fmt.Sprintf("%s:[%s]", p.Name, p.Elem)
		} else {
			parts[i] = fmt.Sprintf("%s:%s", p.Name, p.Kind)
		}
		if p.HasDefault {
			parts[i] += "?"
		}
	}
	return strings.Join(parts, ",")
}
