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

// signatureID consolidates per-drug, per-cell-line differential gene
// expression tables into consistent gene signatures: it merges the
// tables into one expression matrix, selects the genes that respond
// consistently across cell lines, orders them by hierarchical
// clustering, and characterizes them by pathway enrichment.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/omaaarsh/signatureid-csv-exporter/cmd"
)

func printHelp() {
	fmt.Fprintln(os.Stderr, "Available commands: analyze, merge-tables")
	fmt.Fprint(os.Stderr, "\n", cmd.AnalyzeHelp)
	fmt.Fprint(os.Stderr, "\n", cmd.MergeTablesHelp)
}

func main() {
	fmt.Fprintln(os.Stderr, cmd.ProgramMessage)
	if len(os.Args) < 2 {
		log.Println("Incorrect number of parameters.")
		fmt.Fprint(os.Stderr, cmd.HelpMessage)
		printHelp()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "analyze":
		err = cmd.Analyze()
	case "merge-tables":
		err = cmd.MergeTables()
	case "help", "-help", "--help", "-h", "--h":
		printHelp()
	default:
		log.Println("Unknown command: ", os.Args[1])
		printHelp()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal(err)
	}
}
