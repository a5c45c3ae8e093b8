package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/me/wolf/internal/mutect2"
	"github.com/me/wolf/internal/plan"
	"github.com/me/wolf/internal/refconfig"
	"github.com/me/wolf/pkg/model"
)

type planFlags struct {
	params    mutect2.Params
	refs      map[string]string
	refFile   string
	refsTable string
	format    string
	out       string
	save      bool
	db        string
}

func newPlanCmd() *cobra.Command {
	var f planFlags

	cmd := &cobra.Command{
		Use:   "plan [job.yaml]",
		Short: "Build the MuTect2 tumor/normal task graph",
		Long: "Build the MuTect2 tumor/normal task graph from a job file and/or flags and print it.\n" +
			"Flags override fields of the job file. With --save the plan is written to the plan store;\n" +
			"with --server it is built and stored by the server.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := resolveParams(cmd, args, &f)
			if err != nil {
				return err
			}
			format, err := plan.ParseFormat(f.format)
			if err != nil {
				return err
			}

			var p *model.Plan
			if flagServer != "" {
				p, err = NewClient(flagServer, logger).SubmitPlan(cmd.Context(), params)
			} else {
				p, err = buildLocal(cmd.Context(), params, &f)
			}
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if f.out != "" {
				file, err := os.Create(f.out)
				if err != nil {
					return fmt.Errorf("create %s: %w", f.out, err)
				}
				defer file.Close()
				w = file
			}
			if err := plan.Write(w, p, format); err != nil {
				return fmt.Errorf("write plan: %w", err)
			}
			if f.out != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Plan %s written to %s (%d tasks)\n", p.ID, f.out, len(p.Nodes))
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.params.PairName, "pair", "", "Pair name")
	fl.StringVar(&f.params.TumorName, "tumor-name", "", "Tumor sample label")
	fl.StringVar(&f.params.NormalName, "normal-name", "", "Normal sample label")
	fl.StringVar(&f.params.TumorBAM, "tumor-bam", "", "Tumor BAM")
	fl.StringVar(&f.params.TumorBAI, "tumor-bai", "", "Tumor BAM index")
	fl.StringVar(&f.params.NormalBAM, "normal-bam", "", "Normal BAM")
	fl.StringVar(&f.params.NormalBAI, "normal-bai", "", "Normal BAM index")
	fl.StringVar(&f.params.RefBuild, "build", "", "Genome build (default from config, hg38)")
	fl.StringVar(&f.params.SequencingType, "seq-type", "", "Sequencing type: WGS or WES (default from config, WGS)")
	fl.IntVar(&f.params.ScatterCount, "scatter-count", 0, "Number of genome intervals to scatter over (default from config, 10)")
	fl.StringToStringVar(&f.refs, "ref", nil, "Reference override key=value (repeatable)")
	fl.StringVar(&f.refFile, "ref-file", "", "YAML file of reference overrides")
	fl.StringVar(&f.refsTable, "refs", "", "Reference table YAML (default from config, embedded table)")
	fl.StringVarP(&f.format, "format", "f", "json", "Output format (json, yaml, dot)")
	fl.StringVarP(&f.out, "out", "o", "", "Write the plan to a file instead of stdout")
	fl.BoolVar(&f.save, "save", false, "Store the plan in the local plan store")
	fl.StringVar(&f.db, "db", "", "Plan store path (default from config)")

	return cmd
}

// overrideString copies v into dst when the named flag was set explicitly.
func overrideString(fl *pflag.FlagSet, name string, dst *string, v string) {
	if fl.Changed(name) {
		*dst = v
	}
}

// resolveParams layers the job file, changed flags, reference overrides,
// and configured defaults.
func resolveParams(cmd *cobra.Command, args []string, f *planFlags) (mutect2.Params, error) {
	var p mutect2.Params
	if len(args) == 1 {
		job, err := loadJob(args[0])
		if err != nil {
			return p, err
		}
		p = job
	}

	fl := cmd.Flags()
	set := func(name string, dst *string, v string) { overrideString(fl, name, dst, v) }
	set("pair", &p.PairName, f.params.PairName)
	set("tumor-name", &p.TumorName, f.params.TumorName)
	set("normal-name", &p.NormalName, f.params.NormalName)
	set("tumor-bam", &p.TumorBAM, f.params.TumorBAM)
	set("tumor-bai", &p.TumorBAI, f.params.TumorBAI)
	set("normal-bam", &p.NormalBAM, f.params.NormalBAM)
	set("normal-bai", &p.NormalBAI, f.params.NormalBAI)
	set("build", &p.RefBuild, f.params.RefBuild)
	set("seq-type", &p.SequencingType, f.params.SequencingType)
	if fl.Changed("scatter-count") {
		if err := mutect2.ValidateScatterCount(f.params.ScatterCount); err != nil {
			return p, err
		}
		p.ScatterCount = f.params.ScatterCount
	}

	var layers []map[string]any
	if p.RefOverrides != nil {
		layers = append(layers, p.RefOverrides)
	}
	if f.refFile != "" {
		file, err := os.Open(f.refFile)
		if err != nil {
			return p, fmt.Errorf("open reference overrides: %w", err)
		}
		defer file.Close()
		fromFile, err := refconfig.LoadOverrides(file)
		if err != nil {
			return p, fmt.Errorf("%s: %w", f.refFile, err)
		}
		layers = append(layers, fromFile)
	}
	if len(f.refs) > 0 {
		flagRefs := make(map[string]any, len(f.refs))
		for k, v := range f.refs {
			flagRefs[k] = v
		}
		layers = append(layers, flagRefs)
	}
	if len(layers) > 0 {
		p.RefOverrides = refconfig.Merge(layers...)
	}

	d := cfg.Defaults
	if p.RefBuild == "" {
		p.RefBuild = d.RefBuild
	}
	if p.SequencingType == "" {
		p.SequencingType = d.SequencingType
	}
	if p.ScatterCount == 0 {
		p.ScatterCount = d.ScatterCount
	}
	return p, nil
}

func loadJob(path string) (mutect2.Params, error) {
	var p mutect2.Params
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("open job file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && err != io.EOF {
		return p, fmt.Errorf("parse job file %s: %w", path, err)
	}

	// A zero in Params means unset, so an explicit scatter_count is checked here.
	var explicit struct {
		ScatterCount *int `yaml:"scatter_count"`
	}
	if err := yaml.Unmarshal(data, &explicit); err != nil {
		return p, fmt.Errorf("parse job file %s: %w", path, err)
	}
	if explicit.ScatterCount != nil {
		if err := mutect2.ValidateScatterCount(*explicit.ScatterCount); err != nil {
			return p, fmt.Errorf("%s: %w", path, err)
		}
	}
	return p, nil
}

func buildLocal(ctx context.Context, params mutect2.Params, f *planFlags) (*model.Plan, error) {
	tablePath := f.refsTable
	if tablePath == "" {
		tablePath = cfg.RefsPath
	}
	table, err := referenceTable(tablePath)
	if err != nil {
		return nil, err
	}

	p, err := plan.Mutect2(logger, table, params)
	if err != nil {
		return nil, err
	}
	if !f.save {
		return p, nil
	}

	dbPath := f.db
	if dbPath == "" {
		dbPath = cfg.DBPath
	}
	st, err := openStore(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	if err := st.SavePlan(ctx, p); err != nil {
		return nil, fmt.Errorf("save plan: %w", err)
	}
	logger.Info("plan stored", "id", p.ID, "db", dbPath)
	return p, nil
}
