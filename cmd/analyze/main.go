package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"eda-backend/cmd"
	"eda-backend/internal/dataset"
	"eda-backend/internal/narrative"
	"eda-backend/internal/profile"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
)

// One shot analysis without the server: load a file, profile it, and write
// report.json and report.html to the output directory. With -narrative the
// summary is printed to stdout, which needs the usual completion env vars.
type analyzeArgs struct {
	input     string
	outDir    string
	filter    string
	narrative bool
	envFile   string
}

func parseArgs() analyzeArgs {
	var args analyzeArgs

	flag.StringVar(&args.input, "input", "", "path to the dataset file (csv, json, or sqlite)")
	flag.StringVar(&args.outDir, "out", "./eda-report", "directory to write the report into")
	flag.StringVar(&args.filter, "filter", "", "optional row filter, e.g. 'spend > 100 AND geo = \"NY\"'")
	flag.BoolVar(&args.narrative, "narrative", false, "generate an LLM narrative for the report")
	flag.StringVar(&args.envFile, "env", "", "path to load env from")
	flag.Parse()

	if args.input == "" {
		flag.Usage()
		log.Fatalf("missing required flag -input")
	}

	return args
}

func writeReport(outDir string, report *profile.Report) error {
	if err := os.MkdirAll(outDir, os.ModePerm); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("error serializing report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "report.json"), data, 0644); err != nil {
		return fmt.Errorf("error writing report.json: %w", err)
	}

	htmlFile, err := os.Create(filepath.Join(outDir, "report.html"))
	if err != nil {
		return fmt.Errorf("error creating report.html: %w", err)
	}
	defer htmlFile.Close()

	if err := profile.RenderHTML(htmlFile, report); err != nil {
		return fmt.Errorf("error rendering report.html: %w", err)
	}

	return nil
}

func printSummary(summary *narrative.Summary) {
	fmt.Println()
	fmt.Println(summary.Text)

	if len(summary.Recommendations) > 0 {
		fmt.Println()
		fmt.Println("Recommendations:")
		for _, rec := range summary.Recommendations {
			fmt.Printf("  - %s\n", rec)
		}
	}
}

func main() {
	args := parseArgs()

	if args.envFile != "" {
		if err := godotenv.Load(args.envFile); err != nil {
			log.Fatalf("error loading .env file '%s': %v", args.envFile, err)
		}
	}

	steps := 3
	if args.narrative {
		steps = 4
	}
	bar := progressbar.NewOptions(steps,
		progressbar.OptionSetDescription("⏳ loading"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)

	table, err := dataset.Load(args.input)
	if err != nil {
		log.Fatalf("error loading dataset %s: %v", args.input, err)
	}
	_ = bar.Add(1)

	if args.filter != "" {
		filter, err := dataset.ParseFilter(args.filter)
		if err != nil {
			log.Fatalf("invalid filter %q: %v", args.filter, err)
		}
		table = dataset.Apply(table, filter)
	}

	bar.Describe("⏳ profiling")
	report, err := profile.NewEngine().Profile(context.Background(), table)
	if err != nil {
		log.Fatalf("error profiling dataset: %v", err)
	}
	_ = bar.Add(1)

	bar.Describe("⏳ writing report")
	if err := writeReport(args.outDir, report); err != nil {
		log.Fatalf("%v", err)
	}
	_ = bar.Add(1)

	var summary *narrative.Summary
	if args.narrative {
		var llmCfg cmd.LLMConfig
		if err := env.Parse(&llmCfg); err != nil {
			log.Fatalf("error parsing llm config: %v", err)
		}

		bar.Describe("⏳ generating narrative")
		composer := narrative.NewComposer(cmd.CreateLLM(llmCfg))
		summary, err = composer.SummarizeProfile(context.Background(), report)
		if err != nil {
			log.Fatalf("error generating narrative: %v", err)
		}
		_ = bar.Add(1)
	}

	fmt.Printf("profiled %d rows, %d columns\n", report.RowCount, report.ColumnCount)
	fmt.Printf("report written to %s\n", args.outDir)

	if summary != nil {
		printSummary(summary)
	}
}
