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
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"

	"github.com/omaaarsh/signatureid-csv-exporter/expr"
)

// MergeTablesHelp is the help string for this command.
const MergeTablesHelp = "\nmerge-tables parameters:\n" +
	"signatureid merge-tables /path/to/drugdir output.csv\n" +
	"[--pvalue-threshold p]\n" +
	"[--nr-of-threads n]\n" +
	"[--timed]\n" +
	"[--log-path path]\n"

// MergeTables implements the signatureid merge-tables command: it
// merges the per-cell-line tables of one drug directory into a single
// expression matrix and exports it as CSV, sorted by gene identifier.
func MergeTables() error {
	var (
		pvalue      float64
		nrOfThreads int
		timed       bool
		logPath     string
	)

	var flags flag.FlagSet

	flags.Float64Var(&pvalue, "pvalue-threshold", 0.2, "significance pre-filter applied per cell-line table")
	flags.IntVar(&nrOfThreads, "nr-of-threads", 0, "number of worker threads")
	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	parseFlags(flags, 4, MergeTablesHelp)

	input := getFilename(os.Args[2], MergeTablesHelp)
	output := getFilename(os.Args[3], MergeTablesHelp)

	setLogOutput(logPath)

	// sanity checks

	var sanityChecksFailed bool

	if !checkExist("", input) {
		sanityChecksFailed = true
	}
	if !checkCreate("", output) {
		sanityChecksFailed = true
	}
	if pvalue < 0 || pvalue > 0.2 {
		sanityChecksFailed = true
		log.Println("Error: Invalid pvalue-threshold: ", pvalue)
	}
	if nrOfThreads < 0 {
		sanityChecksFailed = true
		log.Println("Error: Invalid nr-of-threads: ", nrOfThreads)
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, MergeTablesHelp)
		os.Exit(1)
	}

	// building output command line

	var command bytes.Buffer
	fmt.Fprint(&command, os.Args[0], " merge-tables ", input, " ", output)
	fmt.Fprint(&command, " --pvalue-threshold ", pvalue)
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

	tables := loadDrugTables(fullInputPath, pvalue)
	if len(tables) == 0 {
		return fmt.Errorf("no valid cell line data found in %v", input)
	}

	var merr error
	timedRun(timed, "", "Merging cell-line tables.", 1, func() {
		m, err := expr.Merge(tables)
		if err != nil {
			merr = err
			return
		}
		m.ParallelSortByGeneID()
		merr = m.ToCsvFile(fullOutputPath)
	})
	return merr
}
