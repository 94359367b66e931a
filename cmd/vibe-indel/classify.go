package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-indel/internal/align"
	"github.com/inodb/vibe-indel/internal/assemble"
	"github.com/inodb/vibe-indel/internal/classify"
	"github.com/inodb/vibe-indel/internal/features"
	"github.com/inodb/vibe-indel/internal/pipeline"
	"github.com/inodb/vibe-indel/internal/refseq"
	"github.com/inodb/vibe-indel/internal/store"
	"github.com/inodb/vibe-indel/internal/vcf"
)

// candidatePad is the padding applied around candidate positions when
// regions are derived from the candidate VCF instead of --region flags.
const candidatePad = 200

type classifyOptions struct {
	readsPath      string
	refPath        string
	candidatesPath string
	source         string
	populationPath string
	modelPath      string
	onnxLibPath    string
	forestPath     string
	dbPath         string
	outputPath     string
	regionSpecs    []string
	verbose        bool
}

func newClassifyCmd() *cobra.Command {
	var opts classifyOptions
	defaults := pipeline.Default()

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify indels from alignment evidence",
		Long: `Scan aligned reads for indel evidence, consolidate it into composite
events, and classify each as somatic, germline, or artifact.

With --candidates, externally called indels are reconciled against the
alignment evidence (nearby equivalent alleles are rescued, unmatched
candidates are reported as NtF). Without it, events are called directly
from the alignments.`,
		Example: `  vibe-indel classify --reads sample.sam --ref genome.fa --forest model.json --region 12:25200000-25250000
  vibe-indel classify --reads sample.sam --ref genome.fa --model model.onnx --candidates calls.vcf
  vibe-indel classify --reads sample.sam --ref genome.fa --forest model.json --candidates calls.vcf --db results.duckdb`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(&opts)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&opts.readsPath, "reads", "", "Aligned reads in SAM format (.sam or .sam.gz)")
	fl.StringVar(&opts.refPath, "ref", "", "Reference genome FASTA (.fa or .fa.gz)")
	fl.StringVar(&opts.candidatesPath, "candidates", "", "Candidate indels in VCF format (optional)")
	fl.StringVar(&opts.source, "source", "external", "Label for the candidate caller")
	fl.StringVar(&opts.populationPath, "population", "", "Population VCF with AF INFO for cohort frequencies (optional)")
	fl.StringVar(&opts.modelPath, "model", "", "ONNX classification model")
	fl.StringVar(&opts.onnxLibPath, "onnx-lib", "", "Path to the ONNX Runtime shared library")
	fl.StringVar(&opts.forestPath, "forest", "", "JSON random-forest classification model")
	fl.StringVar(&opts.dbPath, "db", "", "DuckDB results database (optional)")
	fl.StringVarP(&opts.outputPath, "output", "o", "", "Output VCF file (default: stdout)")
	fl.StringArrayVar(&opts.regionSpecs, "region", nil, "Region to process, chrom:start-end (repeatable)")
	fl.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose logging")

	fl.Int("min-mapq", defaults.MinMapQ, "Minimum read mapping quality")
	fl.Float64("min-baseq", defaults.MinBaseQual, "Minimum mean base quality at the edit")
	fl.Int("merge-gap", defaults.MergeGap, "Maximum gap between merged edits")
	fl.Int64("rescue-window", defaults.RescueWindow, "Candidate rescue window in bases")
	fl.Int("min-support", defaults.MinSupport, "Minimum read support for direct calls")
	fl.Float64("margin", defaults.Margin, "Probability margin for the conservative tie-break")
	fl.Int64("flank", defaults.Flank, "Reference flank for context features")
	fl.Int("workers", defaults.Workers, "Region worker count (0 = all CPUs)")

	for _, key := range []string{
		"min-mapq", "min-baseq", "merge-gap", "rescue-window",
		"min-support", "margin", "flank", "workers",
	} {
		_ = viper.BindPFlag("classify."+key, fl.Lookup(key))
	}

	cmd.MarkFlagRequired("reads")
	cmd.MarkFlagRequired("ref")

	return cmd
}

func pipelineConfig() pipeline.Config {
	return pipeline.Config{
		MinMapQ:      viper.GetInt("classify.min-mapq"),
		MinBaseQual:  viper.GetFloat64("classify.min-baseq"),
		MergeGap:     viper.GetInt("classify.merge-gap"),
		RescueWindow: viper.GetInt64("classify.rescue-window"),
		MinSupport:   viper.GetInt("classify.min-support"),
		Margin:       viper.GetFloat64("classify.margin"),
		Flank:        viper.GetInt64("classify.flank"),
		Workers:      viper.GetInt("classify.workers"),
	}
}

func runClassify(opts *classifyOptions) error {
	logger, err := buildLogger(opts.verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	scorer, cleanup, err := buildScorer(opts)
	if err != nil {
		return err
	}
	defer cleanup()

	ref, err := refseq.LoadFASTA(opts.refPath)
	if err != nil {
		return fmt.Errorf("load reference: %w", err)
	}
	logger.Info("loaded reference", zap.Int("chromosomes", ref.ChromCount()))

	reads, err := align.LoadSAM(opts.readsPath)
	if err != nil {
		return fmt.Errorf("load reads: %w", err)
	}
	logger.Info("loaded reads", zap.Int("count", len(reads.Reads)))

	var candidates align.CandidateSource
	var candidateSet *vcf.CandidateSet
	if opts.candidatesPath != "" {
		candidateSet, err = vcf.LoadCandidates(opts.candidatesPath, opts.source)
		if err != nil {
			return fmt.Errorf("load candidates: %w", err)
		}
		candidates = candidateSet
		logger.Info("loaded candidates",
			zap.Int("indels", candidateSet.Len()),
			zap.Int("skipped", candidateSet.Skipped()))
	}

	regions, err := resolveRegions(opts.regionSpecs, candidateSet)
	if err != nil {
		return err
	}

	engine, err := pipeline.NewEngine(reads, candidates, ref, scorer, pipelineConfig())
	if err != nil {
		return err
	}
	engine.SetLogger(logger)

	if opts.populationPath != "" {
		pop, err := vcf.LoadPopulation(opts.populationPath)
		if err != nil {
			return fmt.Errorf("load population frequencies: %w", err)
		}
		engine.SetAnnotations(pop)
		logger.Info("loaded population frequencies",
			zap.Int("indels", pop.Len()),
			zap.Int("skipped", pop.Skipped()))
	}

	out := os.Stdout
	if opts.outputPath != "" {
		out, err = os.Create(opts.outputPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer out.Close()
	}

	writer := vcf.NewResultWriter(out, engine.RunID())
	if err := writer.WriteHeader(); err != nil {
		return fmt.Errorf("write output header: %w", err)
	}

	var db *store.Store
	if opts.dbPath != "" {
		db, err = store.Open(opts.dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
	}

	var all []*assemble.Record
	var failed int
	err = engine.Run(context.Background(), regions, func(r pipeline.WorkResult) error {
		if r.Err != nil {
			failed++
			logger.Error("region failed", zap.String("region", r.Region.String()), zap.Error(r.Err))
			return nil
		}
		for _, rec := range r.Records {
			if err := writer.Write(rec); err != nil {
				return err
			}
		}
		all = append(all, r.Records...)
		return nil
	})
	if err != nil {
		return err
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	if db != nil {
		if err := db.WriteRecords(all); err != nil {
			return fmt.Errorf("store results: %w", err)
		}
	}

	logger.Info("run complete",
		zap.String("run_id", engine.RunID()),
		zap.Int("regions", len(regions)),
		zap.Int("failed_regions", failed),
		zap.Int("records", len(all)))
	if failed > 0 {
		return fmt.Errorf("%d of %d regions failed", failed, len(regions))
	}
	return nil
}

func buildLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

// buildScorer selects the classification backend. Exactly one of
// --model and --forest must be given.
func buildScorer(opts *classifyOptions) (classify.Scorer, func(), error) {
	noop := func() {}
	switch {
	case opts.modelPath != "" && opts.forestPath != "":
		return nil, noop, fmt.Errorf("--model and --forest are mutually exclusive")
	case opts.modelPath != "":
		s, err := classify.NewONNXScorer(opts.modelPath, opts.onnxLibPath, features.SchemaVersion)
		if err != nil {
			return nil, noop, err
		}
		return s, func() { s.Close() }, nil
	case opts.forestPath != "":
		f, err := classify.LoadForest(opts.forestPath)
		if err != nil {
			return nil, noop, err
		}
		return f, noop, nil
	default:
		return nil, noop, fmt.Errorf("a classification model is required (--model or --forest)")
	}
}

// resolveRegions parses --region flags, falling back to regions derived
// from the candidate set.
func resolveRegions(specs []string, candidates *vcf.CandidateSet) ([]align.Region, error) {
	if len(specs) == 0 {
		if candidates == nil {
			return nil, fmt.Errorf("no regions: pass --region or --candidates")
		}
		return candidates.Regions(candidatePad), nil
	}

	regions := make([]align.Region, 0, len(specs))
	for _, spec := range specs {
		r, err := parseRegion(spec)
		if err != nil {
			return nil, err
		}
		regions = append(regions, r)
	}
	return regions, nil
}

// parseRegion parses "chrom:start-end" with a 1-based inclusive range.
func parseRegion(spec string) (align.Region, error) {
	colon := strings.LastIndexByte(spec, ':')
	if colon < 1 {
		return align.Region{}, fmt.Errorf("invalid region %q: want chrom:start-end", spec)
	}
	dash := strings.IndexByte(spec[colon:], '-')
	if dash < 0 {
		return align.Region{}, fmt.Errorf("invalid region %q: want chrom:start-end", spec)
	}
	dash += colon

	start, err := strconv.ParseInt(strings.ReplaceAll(spec[colon+1:dash], ",", ""), 10, 64)
	if err != nil {
		return align.Region{}, fmt.Errorf("invalid region start in %q", spec)
	}
	end, err := strconv.ParseInt(strings.ReplaceAll(spec[dash+1:], ",", ""), 10, 64)
	if err != nil {
		return align.Region{}, fmt.Errorf("invalid region end in %q", spec)
	}
	if start < 1 || end < start {
		return align.Region{}, fmt.Errorf("invalid region range in %q", spec)
	}

	return align.Region{
		Chrom: strings.TrimPrefix(spec[:colon], "chr"),
		Start: start,
		End:   end,
	}, nil
}
