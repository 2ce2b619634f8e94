// signatureID: a tool for consolidating drug-response gene signatures
// across cell lines.
// Copyright (c) 2025 Omar Sherif.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License along with this program. If not, see
// <https://github.com/omaaarsh/signatureid-csv-exporter/blob/master/LICENSE.txt>.

package cmd

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/omaaarsh/signatureid-csv-exporter/analysis"
	"github.com/omaaarsh/signatureid-csv-exporter/expr"
	"github.com/omaaarsh/signatureid-csv-exporter/internal"
)

// AnalyzeHelp is the help string for this command.
const AnalyzeHelp = "\nanalyze parameters:\n" +
	"signatureid analyze /path/to/input /path/to/output\n" +
	"[--config file]\n" +
	"[--fold-change-threshold t]\n" +
	"[--consistency-threshold pct]\n" +
	"[--pvalue-threshold p]\n" +
	"[--enrichment-url url]\n" +
	"[--nr-of-threads n]\n" +
	"[--timed]\n" +
	"[--profile file]\n" +
	"[--log-path path]\n"

// Analyze implements the signatureid analyze command. The input
// directory holds one subdirectory per drug, each with one CSV table
// per cell line; the full signature pipeline runs per drug and the
// report, clustering and merged-matrix outputs are written to the
// output directory.
func Analyze() error {
	var (
		configFile, enrichmentURL string
		foldChange, pvalue        float64
		consistencyPct            int
		nrOfThreads               int
		timed                     bool
		profile, logPath          string
	)

	var flags flag.FlagSet

	flags.StringVar(&configFile, "config", "", "YAML analysis configuration file")
	flags.Float64Var(&foldChange, "fold-change-threshold", 0, "magnitude cutoff for up/down classification")
	flags.IntVar(&consistencyPct, "consistency-threshold", 0, "minimum % of cell lines required to agree")
	flags.Float64Var(&pvalue, "pvalue-threshold", -1, "significance pre-filter applied per cell-line table")
	flags.StringVar(&enrichmentURL, "enrichment-url", "", "endpoint of the enrichment source")
	flags.IntVar(&nrOfThreads, "nr-of-threads", 0, "number of worker threads")
	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	flags.StringVar(&profile, "profile", "", "write a runtime profile to the specified file(s)")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	parseFlags(flags, 4, AnalyzeHelp)

	input := getFilename(os.Args[2], AnalyzeHelp)
	output := getFilename(os.Args[3], AnalyzeHelp)

	setLogOutput(logPath)

	// sanity checks

	var sanityChecksFailed bool

	if !checkExist("", input) {
		sanityChecksFailed = true
	}
	if configFile != "" && !checkExist("--config", configFile) {
		sanityChecksFailed = true
	}
	if profile != "" && !checkCreate("--profile", profile) {
		sanityChecksFailed = true
	}
	if nrOfThreads < 0 {
		sanityChecksFailed = true
		log.Println("Error: Invalid nr-of-threads: ", nrOfThreads)
	}

	config := analysis.DefaultConfig()
	if configFile != "" {
		loaded, err := analysis.LoadConfig(configFile)
		if err != nil {
			return err
		}
		config = loaded
	}
	if foldChange != 0 {
		config.FoldChangeThreshold = foldChange
	}
	if consistencyPct != 0 {
		config.ConsistencyThresholdPct = consistencyPct
	}
	if pvalue >= 0 {
		config.PValueThreshold = pvalue
	}
	if enrichmentURL != "" {
		config.Enrichment.URL = enrichmentURL
	}
	if err := config.Verify(); err != nil {
		log.Println("Error: ", err)
		sanityChecksFailed = true
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, AnalyzeHelp)
		os.Exit(1)
	}

	// building output command line

	var command bytes.Buffer
	fmt.Fprint(&command, os.Args[0], " analyze ", input, " ", output)
	if configFile != "" {
		fmt.Fprint(&command, " --config ", configFile)
	}
	fmt.Fprint(&command, " --fold-change-threshold ", config.FoldChangeThreshold)
	fmt.Fprint(&command, " --consistency-threshold ", config.ConsistencyThresholdPct)
	fmt.Fprint(&command, " --pvalue-threshold ", config.PValueThreshold)
	if enrichmentURL != "" {
		fmt.Fprint(&command, " --enrichment-url ", enrichmentURL)
	}
	if nrOfThreads > 0 {
		runtime.GOMAXPROCS(nrOfThreads)
		fmt.Fprint(&command, " --nr-of-threads ", nrOfThreads)
	}
	if timed {
		fmt.Fprint(&command, " --timed ")
	}
	if logPath != "" {
		fmt.Fprint(&command, " --log-path ", logPath)
	}

	// executing command

	log.Println("Executing command:\n", command.String())

	fullInputPath, err := filepath.Abs(input)
	if err != nil {
		return err
	}
	fullOutputPath, err := filepath.Abs(output)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(fullOutputPath, 0700); err != nil {
		return err
	}

	drugs, err := internal.Directory(fullInputPath)
	if err != nil {
		return err
	}
	batch := make(map[string]map[string]*expr.Table)
	for _, drug := range drugs {
		drugPath := filepath.Join(fullInputPath, drug)
		info, err := os.Stat(drugPath)
		if err != nil || !info.IsDir() {
			continue
		}
		tables := loadDrugTables(drugPath, config.PValueThreshold)
		if len(tables) == 0 {
			log.Printf("Warning: no valid cell line data found for drug %v.\n", drug)
			continue
		}
		batch[drug] = tables
	}

	var results []*analysis.Result
	timedRun(timed, profile, "Running signature analysis.", 1, func() {
		results = analysis.RunBatch(context.Background(), batch, config, config.NewService())
	})

	for _, result := range results {
		if err := writeDrugOutputs(fullOutputPath, result); err != nil {
			return err
		}
	}
	return nil
}

func writeDrugOutputs(outputPath string, result *analysis.Result) error {
	report := strings.Join(result.Report, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(outputPath, result.Drug+"_report.txt"), []byte(report), 0666); err != nil {
		return err
	}
	if err := result.Matrix.ToCsvFile(filepath.Join(outputPath, result.Drug+"_expression_matrix.csv")); err != nil {
		return err
	}
	if result.RowTree == nil {
		return nil
	}
	var clustering bytes.Buffer
	symbols := result.Matrix.Symbols(result.HeatmapRows)
	for _, row := range result.RowOrder {
		fmt.Fprintln(&clustering, symbols[row])
	}
	fmt.Fprintln(&clustering)
	for _, col := range result.ColOrder {
		fmt.Fprintln(&clustering, result.Matrix.CellLines[col])
	}
	return os.WriteFile(filepath.Join(outputPath, result.Drug+"_clustering.txt"), clustering.Bytes(), 0666)
}
