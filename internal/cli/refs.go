package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newRefsCmd() *cobra.Command {
	var (
		tablePath string
		overrides map[string]string
	)
	cmd := &cobra.Command{
		Use:   "refs [build sequencing-type]",
		Short: "List genome builds, or print the resolved reference files for one",
		Args:  refsArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if tablePath == "" {
				tablePath = cfg.RefsPath
			}
			table, err := referenceTable(tablePath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				for _, b := range table.Builds() {
					types, err := table.SequencingTypes(b)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%s\t%v\n", b, types)
				}
				return nil
			}

			layer := make(map[string]any, len(overrides))
			for k, v := range overrides {
				layer[k] = v
			}
			refs, err := table.Resolve(args[0], args[1], layer)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(map[string]any(refs)); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	cmd.Flags().StringVar(&tablePath, "refs", "", "Reference table YAML (default from config, embedded table)")
	cmd.Flags().StringToStringVar(&overrides, "ref", nil, "Reference override key=value (repeatable)")
	return cmd
}

func refsArgs(cmd *cobra.Command, args []string) error {
	if len(args) != 0 && len(args) != 2 {
		return fmt.Errorf("refs needs both a build and a sequencing type, or neither")
	}
	return nil
}
