// Package tasks declares the GATK task nodes used by the somatic workflows.
// Commands are templates for the execution engine; the graph only hashes them.
package tasks

import "github.com/me/wolf/pkg/flow"

// GATKImage is the container image shared by the GATK tasks.
const GATKImage = "broadinstitute/gatk:4.1.4.1"

func refInputs() []flow.Param {
	return []flow.Param{
		flow.File("ref_fasta"),
		flow.File("ref_fasta_index"),
		flow.File("ref_fasta_dict"),
	}
}

func params(groups ...[]flow.Param) []flow.Param {
	var out []flow.Param
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// SplitIntervals divides an interval list into scatter_count sub-interval files.
var SplitIntervals = &flow.Node{
	Name:    "SplitIntervals",
	Version: "1",
	Image:   GATKImage,
	Command: `gatk SplitIntervals -R {ref_fasta} -L {interval_list} --scatter-count {scatter_count} -O interval_files`,
	Inputs: params(refInputs(), []flow.Param{
		flow.File("interval_list"),
		flow.Scalar("scatter_count"),
	}),
	Outputs: []flow.Param{
		flow.CollectionOf("subintervals", flow.KindFile).SizedBy("scatter_count"),
	},
}

// GetSampleNames reads the SM tags of the tumor and normal BAM headers.
var GetSampleNames = &flow.Node{
	Name:    "GetSampleNames",
	Version: "1",
	Image:   GATKImage,
	Command: `gatk GetSampleName -I {tumor_bam} -O tumor_name.txt && gatk GetSampleName -I {normal_bam} -O normal_name.txt`,
	Inputs: []flow.Param{
		flow.File("tumor_bam"),
		flow.File("normal_bam"),
	},
	Outputs: []flow.Param{
		flow.Scalar("tumor_name"),
		flow.Scalar("normal_name"),
	},
}

// Mutect2 calls somatic variants on one interval. The interval input is
// declared as a collection so the workflow can scatter over it.
var Mutect2 = &flow.Node{
	Name:    "Mutect2",
	Version: "1",
	Image:   GATKImage,
	Command: `gatk Mutect2 -R {ref_fasta} -I {t_bam} -tumor {case_name} -I {n_bam} -normal {ctrl_name} ` +
		`--germline-resource {gnomad_vcf} -pon {pon_vcf} -L {interval} --f1r2-tar-gz f1r2.tar.gz -O output.vcf.gz`,
	Inputs: params(
		[]flow.Param{
			flow.Scalar("case_name"),
			flow.Scalar("ctrl_name"),
			flow.File("t_bam"),
			flow.File("t_bai"),
			flow.File("n_bam"),
			flow.File("n_bai"),
		},
		refInputs(),
		[]flow.Param{
			flow.File("gnomad_vcf"),
			flow.File("gnomad_vcf_idx"),
			flow.File("pon_vcf"),
			flow.File("pon_vcf_idx"),
			flow.CollectionOf("interval", flow.KindFile),
			flow.Scalar("command_mem").WithDefault("8"),
		},
	),
	Outputs: []flow.Param{
		flow.File("scatter_vcf"),
		flow.File("scatter_vcf_idx"),
		flow.File("scatter_stats"),
		flow.File("f1r2"),
	},
}

// MergeVCFs concatenates the per-interval Mutect2 calls.
var MergeVCFs = &flow.Node{
	Name:    "MergeVCFs",
	Version: "1",
	Image:   GATKImage,
	Command: `gatk MergeVcfs {all_vcf_input:-I} -O merged_unfiltered.vcf.gz`,
	Inputs: []flow.Param{
		flow.CollectionOf("all_vcf_input", flow.KindCollection),
	},
	Outputs: []flow.Param{
		flow.File("merged_unfiltered_vcf"),
		flow.File("merged_unfiltered_vcf_idx"),
	},
}

// MergeMutectStats sums the per-interval Mutect2 callability statistics.
var MergeMutectStats = &flow.Node{
	Name:    "MergeMutectStats",
	Version: "1",
	Image:   GATKImage,
	Command: `gatk MergeMutectStats {all_stats_input:-stats} -O merged.stats`,
	Inputs: []flow.Param{
		flow.CollectionOf("all_stats_input", flow.KindCollection),
	},
	Outputs: []flow.Param{
		flow.File("merged_stats"),
	},
}

// LearnReadOrientationModel fits the orientation-bias priors from F1R2 counts.
var LearnReadOrientationModel = &flow.Node{
	Name:    "LearnReadOrientationModel",
	Version: "1",
	Image:   GATKImage,
	Command: `gatk LearnReadOrientationModel {all_f1r2_input:-I} -O artifact-priors.tar.gz`,
	Inputs: []flow.Param{
		flow.CollectionOf("all_f1r2_input", flow.KindCollection),
	},
	Outputs: []flow.Param{
		flow.File("artifact_priors"),
	},
}

// GetPileupSummaries tabulates read support at common germline sites on one interval.
var GetPileupSummaries = &flow.Node{
	Name:    "GetPileupSummaries",
	Version: "1",
	Image:   GATKImage,
	Command: `gatk --java-options -Xmx{command_mem}g GetPileupSummaries -R {ref_fasta} -I {bam} ` +
		`-V {contamination_vcf} -L {interval} -O pileups.table`,
	Inputs: params(
		[]flow.Param{
			flow.File("bam"),
			flow.File("bai"),
		},
		refInputs(),
		[]flow.Param{
			flow.File("contamination_vcf"),
			flow.File("contamination_vcf_idx"),
			flow.CollectionOf("interval", flow.KindFile),
			flow.Scalar("command_mem").WithDefault("4"),
		},
	),
	Outputs: []flow.Param{
		flow.File("pileups"),
	},
}

// GatherPileupSummaries concatenates per-interval pileup tables in dictionary order.
var GatherPileupSummaries = &flow.Node{
	Name:    "GatherPileupSummaries",
	Version: "1",
	Image:   GATKImage,
	Command: `gatk GatherPileupSummaries --sequence-dictionary {ref_fasta_dict} {all_pileups:-I} -O gathered.pileups`,
	Inputs: []flow.Param{
		flow.CollectionOf("all_pileups", flow.KindCollection),
		flow.File("ref_fasta_dict"),
	},
	Outputs: []flow.Param{
		flow.File("gathered_pileup"),
	},
}

// CalculateContamination estimates cross-sample contamination from the
// gathered tumor and normal pileups.
var CalculateContamination = &flow.Node{
	Name:    "CalculateContamination",
	Version: "1",
	Image:   GATKImage,
	Command: `gatk CalculateContamination -I {tumor_pileup} -matched {normal_pileup} ` +
		`-O contamination.table --tumor-segmentation segments.table`,
	Inputs: []flow.Param{
		flow.File("tumor_pileup"),
		flow.File("normal_pileup"),
	},
	Outputs: []flow.Param{
		flow.File("contamination_table"),
		flow.File("tumor_segmentation"),
	},
}

// FilterMutectCalls applies the somatic filters to the merged calls.
var FilterMutectCalls = &flow.Node{
	Name:    "FilterMutectCalls",
	Version: "1",
	Image:   GATKImage,
	Command: `gatk FilterMutectCalls -R {ref_fasta} -V {unfiltered_vcf} --stats {mutect_stats} ` +
		`--contamination-table {contamination_table} --tumor-segmentation {tumor_segmentation} ` +
		`--ob-priors {artifact_priors} -O filtered.vcf.gz --filtering-stats filtering.stats`,
	Inputs: params(
		refInputs(),
		[]flow.Param{
			flow.File("unfiltered_vcf"),
			flow.File("unfiltered_vcf_idx"),
			flow.File("mutect_stats"),
			flow.File("contamination_table"),
			flow.File("tumor_segmentation"),
			flow.File("artifact_priors"),
		},
	),
	Outputs: []flow.Param{
		flow.File("filtered_vcf"),
		flow.File("filtered_vcf_idx"),
		flow.File("filtering_stats"),
	},
}

// FilterAlignmentArtifacts realigns supporting reads to flag mapping artifacts.
var FilterAlignmentArtifacts = &flow.Node{
	Name:    "FilterAlignmentArtifacts",
	Version: "1",
	Image:   GATKImage,
	Command: `gatk FilterAlignmentArtifacts -R {ref_fasta} -V {input_vcf} -I {bam} ` +
		`--bwa-mem-index-image {bwa_mem_index_image} -O artifact_filtered.vcf.gz`,
	Inputs: params(
		refInputs(),
		[]flow.Param{
			flow.File("input_vcf"),
			flow.File("input_vcf_idx"),
			flow.File("bam"),
			flow.File("bai"),
			flow.File("bwa_mem_index_image"),
			flow.Scalar("command_mem").WithDefault("8"),
		},
	),
	Outputs: []flow.Param{
		flow.File("artifact_filtered_vcf"),
		flow.File("artifact_filtered_vcf_idx"),
	},
}

// Funcotator annotates the final calls and writes a MAF.
var Funcotator = &flow.Node{
	Name:    "Funcotator",
	Version: "1",
	Image:   GATKImage,
	Command: `gatk Funcotator -R {ref_fasta} -V {input_vcf} --ref-version {ref_version} ` +
		`--data-sources-path {data_sources} --output-file-format {output_format} ` +
		`--annotation-default tumor_barcode:{case_name} --annotation-default normal_barcode:{ctrl_name} -O funcotated.maf`,
	Inputs: params(
		refInputs(),
		[]flow.Param{
			flow.File("input_vcf"),
			flow.File("input_vcf_idx"),
			flow.File("data_sources"),
			flow.Scalar("ref_version"),
			flow.Scalar("case_name"),
			flow.Scalar("ctrl_name"),
			flow.Scalar("output_format").WithDefault("MAF"),
		},
	),
	Outputs: []flow.Param{
		flow.File("funcotated_output"),
	},
}
