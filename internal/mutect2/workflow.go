// Package mutect2 builds the tumor/normal MuTect2 somatic calling graph:
// scatter/gather Mutect2 across genome intervals, estimate contamination,
// filter the calls, and annotate them with Funcotator.
package mutect2

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/me/wolf/internal/refconfig"
	"github.com/me/wolf/internal/tasks"
	"github.com/me/wolf/pkg/flow"
	"github.com/me/wolf/pkg/model"
)

// WorkflowName identifies the workflow in plans and error messages.
const WorkflowName = "mutect2_workflow"

// Defaults applied to zero-valued Params fields.
const (
	DefaultRefBuild       = "hg38"
	DefaultSequencingType = "WGS"
	DefaultScatterCount   = 10
)

// Params are the caller-supplied arguments of one tumor/normal run.
type Params struct {
	PairName   string `json:"pair_name" yaml:"pair_name"`
	TumorName  string `json:"tumor_name" yaml:"tumor_name"`
	NormalName string `json:"normal_name" yaml:"normal_name"`

	TumorBAM  string `json:"tumor_bam" yaml:"tumor_bam"`
	TumorBAI  string `json:"tumor_bai" yaml:"tumor_bai"`
	NormalBAM string `json:"normal_bam" yaml:"normal_bam"`
	NormalBAI string `json:"normal_bai" yaml:"normal_bai"`

	RefBuild       string         `json:"ref_build,omitempty" yaml:"ref_build,omitempty"`
	SequencingType string         `json:"sequencing_type,omitempty" yaml:"sequencing_type,omitempty"`
	ScatterCount   int            `json:"scatter_count,omitempty" yaml:"scatter_count,omitempty"`
	RefOverrides   map[string]any `json:"ref_files_override,omitempty" yaml:"ref_files_override,omitempty"`
}

// WithDefaults returns a copy of p with unset build, sequencing type, and
// scatter count filled in. A zero ScatterCount means unset; callers that
// can tell an explicit zero apart reject it with ValidateScatterCount.
func (p Params) WithDefaults() Params {
	if p.RefBuild == "" {
		p.RefBuild = DefaultRefBuild
	}
	if p.SequencingType == "" {
		p.SequencingType = DefaultSequencingType
	}
	if p.ScatterCount == 0 {
		p.ScatterCount = DefaultScatterCount
	}
	return p
}

// Validate checks that every alignment file is named and the scatter count is positive.
func (p Params) Validate() error {
	required := []struct{ name, value string }{
		{"pair_name", p.PairName},
		{"tumor_bam", p.TumorBAM},
		{"tumor_bai", p.TumorBAI},
		{"normal_bam", p.NormalBAM},
		{"normal_bai", p.NormalBAI},
	}
	for _, r := range required {
		if r.value == "" {
			return &model.MissingInputError{Node: WorkflowName, Input: r.name}
		}
	}
	return ValidateScatterCount(p.ScatterCount)
}

// ValidateScatterCount fails with a ConfigurationError when n is below one.
func ValidateScatterCount(n int) error {
	if n < 1 {
		return &model.ConfigurationError{Key: "scatter_count", Value: strconv.Itoa(n), Allowed: []string{">= 1"}}
	}
	return nil
}

// Results maps externally meaningful result names to their references.
type Results map[string]flow.Ref

// Result names, in pipeline order.
const (
	ResultMergedUnfilteredVCF = "merged_unfiltered_vcf"
	ResultMergedStats         = "merged_stats"
	ResultArtifactPriors      = "artifact_priors"
	ResultTumorPileup         = "tumor_pileup"
	ResultNormalPileup        = "normal_pileup"
	ResultContaminationTable  = "contamination_table"
	ResultTumorSegmentation   = "tumor_segmentation"
	ResultFilteredVCF         = "filtered_vcf"
	ResultArtifactFilteredVCF = "artifact_filtered_vcf"
	ResultFuncotatedMAF       = "funcotated_maf"
)

var resultOrder = []string{
	ResultMergedUnfilteredVCF,
	ResultMergedStats,
	ResultArtifactPriors,
	ResultTumorPileup,
	ResultNormalPileup,
	ResultContaminationTable,
	ResultTumorSegmentation,
	ResultFilteredVCF,
	ResultArtifactFilteredVCF,
	ResultFuncotatedMAF,
}

// Names returns the result names present in r, in pipeline order.
func (r Results) Names() []string {
	var names []string
	for _, n := range resultOrder {
		if _, ok := r[n]; ok {
			names = append(names, n)
		}
	}
	return names
}

// refReader pulls reference values and keeps the first lookup error, so a
// missing key is reported before any task is registered.
type refReader struct {
	refs refconfig.Refs
	err  error
}

func (r *refReader) path(key string) flow.Path {
	s := r.text(key)
	return flow.Path(s)
}

func (r *refReader) text(key string) string {
	if r.err != nil {
		return ""
	}
	s, err := r.refs.StringValue(key)
	if err != nil {
		r.err = err
	}
	return s
}

// Build resolves the reference configuration once and records the whole
// tumor/normal graph in b. It returns the final result references; nothing
// is executed.
func Build(b *flow.Builder, table refconfig.Table, p Params) (Results, error) {
	p = p.WithDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}

	refs, err := table.Resolve(p.RefBuild, p.SequencingType, p.RefOverrides)
	if err != nil {
		return nil, err
	}

	rr := &refReader{refs: refs}
	fasta := rr.path("fasta")
	fastaIdx := rr.path("fasta_idx")
	fastaDict := rr.path("fasta_dict")
	splitIntervals := rr.path("split_intervals")
	gnomad := rr.path("gnomad_vcf")
	gnomadIdx := rr.path("gnomad_vcf_idx")
	pon := rr.path("pon_vcf")
	ponIdx := rr.path("pon_vcf_idx")
	contamVCF := rr.path("contamination_vcf")
	contamIdx := rr.path("contamination_vcf_idx")
	bwaImage := rr.path("bwa_mem_index_image")
	dataSources := rr.path("funcotator_data_sources")
	refVersion := rr.text("funcotator_ref_version")
	if rr.err != nil {
		return nil, rr.err
	}

	tBAM, tBAI := flow.Path(p.TumorBAM), flow.Path(p.TumorBAI)
	nBAM, nBAI := flow.Path(p.NormalBAM), flow.Path(p.NormalBAI)
	ref := map[string]any{
		"ref_fasta":       fasta,
		"ref_fasta_index": fastaIdx,
		"ref_fasta_dict":  fastaDict,
	}
	with := func(extra map[string]any) map[string]any {
		return refconfig.Merge(ref, extra)
	}

	results := Results{}

	// Split intervals
	split, err := tasks.SplitIntervals.Invoke(b, with(map[string]any{
		"interval_list": splitIntervals,
		"scatter_count": p.ScatterCount,
	}))
	if err != nil {
		return nil, stepErr("split intervals", err)
	}
	intervals := split.Get("subintervals")

	// Sample names from the BAM headers
	names, err := tasks.GetSampleNames.Invoke(b, map[string]any{
		"tumor_bam":  tBAM,
		"normal_bam": nBAM,
	})
	if err != nil {
		return nil, stepErr("sample names", err)
	}

	// Mutect2 scatter
	m2, err := flow.Scatter(b, tasks.Mutect2, with(map[string]any{
		"case_name":      names.Get("tumor_name"),
		"ctrl_name":      names.Get("normal_name"),
		"t_bam":          tBAM,
		"t_bai":          tBAI,
		"n_bam":          nBAM,
		"n_bai":          nBAI,
		"gnomad_vcf":     gnomad,
		"gnomad_vcf_idx": gnomadIdx,
		"pon_vcf":        pon,
		"pon_vcf_idx":    ponIdx,
		"interval":       intervals,
	}), "interval")
	if err != nil {
		return nil, stepErr("mutect2 scatter", err)
	}

	// Mutect2 gathers: calls, callability stats, and orientation counts
	merged, err := flow.Gather(b, tasks.MergeVCFs, map[string]any{
		"all_vcf_input": m2.Get("scatter_vcf"),
	}, "all_vcf_input")
	if err != nil {
		return nil, stepErr("merge vcfs", err)
	}
	results[ResultMergedUnfilteredVCF] = merged.Get("merged_unfiltered_vcf")

	stats, err := flow.Gather(b, tasks.MergeMutectStats, map[string]any{
		"all_stats_input": m2.Get("scatter_stats"),
	}, "all_stats_input")
	if err != nil {
		return nil, stepErr("merge stats", err)
	}
	results[ResultMergedStats] = stats.Get("merged_stats")

	orientation, err := flow.Gather(b, tasks.LearnReadOrientationModel, map[string]any{
		"all_f1r2_input": m2.Get("f1r2"),
	}, "all_f1r2_input")
	if err != nil {
		return nil, stepErr("read orientation model", err)
	}
	results[ResultArtifactPriors] = orientation.Get("artifact_priors")

	// Pileup summaries, scattered per sample and gathered back
	pileup := func(bam, bai flow.Path) (flow.Ref, error) {
		scattered, err := flow.Scatter(b, tasks.GetPileupSummaries, with(map[string]any{
			"bam":                   bam,
			"bai":                   bai,
			"contamination_vcf":     contamVCF,
			"contamination_vcf_idx": contamIdx,
			"interval":              intervals,
			"command_mem":           "4",
		}), "interval")
		if err != nil {
			return nil, err
		}
		gathered, err := flow.Gather(b, tasks.GatherPileupSummaries, map[string]any{
			"all_pileups":    scattered.Get("pileups"),
			"ref_fasta_dict": fastaDict,
		}, "all_pileups")
		if err != nil {
			return nil, err
		}
		return gathered.Get("gathered_pileup"), nil
	}
	tumorPileup, err := pileup(tBAM, tBAI)
	if err != nil {
		return nil, stepErr("tumor pileups", err)
	}
	results[ResultTumorPileup] = tumorPileup
	normalPileup, err := pileup(nBAM, nBAI)
	if err != nil {
		return nil, stepErr("normal pileups", err)
	}
	results[ResultNormalPileup] = normalPileup

	// Contamination
	contam, err := tasks.CalculateContamination.Invoke(b, map[string]any{
		"tumor_pileup":  tumorPileup,
		"normal_pileup": normalPileup,
	})
	if err != nil {
		return nil, stepErr("contamination", err)
	}
	results[ResultContaminationTable] = contam.Get("contamination_table")
	results[ResultTumorSegmentation] = contam.Get("tumor_segmentation")

	// Filter variant calls
	filtered, err := tasks.FilterMutectCalls.Invoke(b, with(map[string]any{
		"unfiltered_vcf":      merged.Get("merged_unfiltered_vcf"),
		"unfiltered_vcf_idx":  merged.Get("merged_unfiltered_vcf_idx"),
		"mutect_stats":        stats.Get("merged_stats"),
		"contamination_table": contam.Get("contamination_table"),
		"tumor_segmentation":  contam.Get("tumor_segmentation"),
		"artifact_priors":     orientation.Get("artifact_priors"),
	}))
	if err != nil {
		return nil, stepErr("filter calls", err)
	}
	results[ResultFilteredVCF] = filtered.Get("filtered_vcf")

	// Filter alignment artifacts
	realigned, err := tasks.FilterAlignmentArtifacts.Invoke(b, with(map[string]any{
		"input_vcf":           filtered.Get("filtered_vcf"),
		"input_vcf_idx":       filtered.Get("filtered_vcf_idx"),
		"bam":                 tBAM,
		"bai":                 tBAI,
		"bwa_mem_index_image": bwaImage,
	}))
	if err != nil {
		return nil, stepErr("filter alignment artifacts", err)
	}
	results[ResultArtifactFilteredVCF] = realigned.Get("artifact_filtered_vcf")

	// Funcotator
	annotated, err := tasks.Funcotator.Invoke(b, with(map[string]any{
		"input_vcf":     realigned.Get("artifact_filtered_vcf"),
		"input_vcf_idx": realigned.Get("artifact_filtered_vcf_idx"),
		"data_sources":  dataSources,
		"ref_version":   refVersion,
		"case_name":     names.Get("tumor_name"),
		"ctrl_name":     names.Get("normal_name"),
	}))
	if err != nil {
		return nil, stepErr("funcotator", err)
	}
	results[ResultFuncotatedMAF] = annotated.Get("funcotated_output")

	return results, nil
}

// Plan builds the workflow in a fresh Builder and finalizes it.
func Plan(logger *slog.Logger, table refconfig.Table, p Params, opts ...flow.Option) (*flow.Graph, Results, error) {
	b := flow.NewBuilder(logger, opts...)
	results, err := Build(b, table, p)
	if err != nil {
		return nil, nil, err
	}
	g, err := b.Finalize()
	if err != nil {
		return nil, nil, err
	}
	p = p.WithDefaults()
	logger.Info("workflow built",
		"workflow", WorkflowName,
		"pair", p.PairName,
		"build", p.RefBuild,
		"sequencing_type", p.SequencingType,
		"scatter_count", p.ScatterCount,
		"instances", g.Len(),
	)
	return g, results, nil
}

func stepErr(step string, err error) error {
	return fmt.Errorf("%s: %s: %w", WorkflowName, step, err)
}
