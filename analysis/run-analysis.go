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

// Package analysis orchestrates the per-drug signature pipeline:
// merge, consistency filter, clustering, enrichment, report.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/omaaarsh/signatureid-csv-exporter/enrichr"
	"github.com/omaaarsh/signatureid-csv-exporter/expr"
	"github.com/omaaarsh/signatureid-csv-exporter/signature"
)

// ErrNoUsableTables is returned when a drug has no cell-line tables to
// analyze. The batch driver skips such a drug with a warning and
// proceeds with its siblings.
var ErrNoUsableTables = errors.New("no usable cell-line tables")

// TopTerms is the number of enrichment terms reported per direction.
const TopTerms = 10

// A Result holds everything the pipeline produces for one drug. The
// report lines are assembled once and not mutated afterwards; the
// export/rendering collaborators only read from here.
type Result struct {
	Drug   string
	Matrix *expr.Matrix

	Consistency *signature.ConsistencySet

	// the consistent-gene submatrix with missing values filled to 0,
	// plus its dendrogram orderings; nil/empty when there is nothing
	// to cluster
	HeatmapRows        []int
	Heatmap            [][]float64
	RowTree, ColTree   *signature.Dendrogram
	RowOrder, ColOrder []int

	UpTerms, DownTerms []enrichr.Term

	Report []string
}

func (r *Result) report(format string, args ...interface{}) {
	r.Report = append(r.Report, fmt.Sprintf(format, args...))
}

func (r *Result) enrich(ctx context.Context, service enrichr.Service, config *Config, symbols []string, label string) []enrichr.Term {
	r.report("Top enriched pathways in %v genes:", label)
	if len(symbols) == 0 {
		r.report("- No genes available for enrichment in %v set.", label)
		return nil
	}
	terms, err := service.Enrich(ctx, symbols, config.Enrichment.Databases, config.Enrichment.Cutoff)
	switch {
	case errors.Is(err, enrichr.ErrNoGenes):
		r.report("- No genes available for enrichment in %v set.", label)
		return nil
	case err != nil:
		r.report("- Error during enrichment for %v: %v", label, err)
		return nil
	case len(terms) == 0:
		r.report("- No significant enrichment found for %v.", label)
		return nil
	}
	for _, term := range enrichr.Top(terms, TopTerms) {
		r.report("- %v (adjusted p-value %.3g)", term.Term, term.AdjustedPValue)
	}
	return terms
}

// RunDrug runs the full signature pipeline for one drug. Enrichment
// failures never fail the run; they become report lines and the rest
// of the pipeline proceeds. The only fatal condition is structural: a
// drug without any cell-line tables.
func RunDrug(ctx context.Context, drug string, tables map[string]*expr.Table, config *Config, service enrichr.Service) (*Result, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("%w for drug %v", ErrNoUsableTables, drug)
	}
	result := &Result{Drug: drug}
	result.report("Summary for %v", drug)

	m, err := expr.Merge(tables)
	if err != nil {
		return nil, err
	}
	result.Matrix = m

	set := signature.Consistent(m, config.FoldChangeThreshold, config.ConsistencyThresholdPct)
	result.Consistency = set
	result.report("Total genes in matrix: %v", m.NumGenes())
	result.report("Genes upregulated in >=%v%% cell lines: %v", config.ConsistencyThresholdPct, len(set.Up))
	result.report("Genes downregulated in >=%v%% cell lines: %v", config.ConsistencyThresholdPct, len(set.Down))

	if rows := set.Union(); len(rows) == 0 {
		result.report("No consistent genes for heatmap.")
	} else {
		result.HeatmapRows = rows
		result.Heatmap = m.FilledRows(rows)
		rowTree, colTree, err := signature.ClusterMatrix(result.Heatmap)
		if err != nil {
			return nil, err
		}
		result.RowTree, result.ColTree = rowTree, colTree
		result.RowOrder, result.ColOrder = rowTree.Order(), colTree.Order()
	}

	result.UpTerms = result.enrich(ctx, service, config, m.Symbols(set.Up), "Upregulated")
	result.DownTerms = result.enrich(ctx, service, config, m.Symbols(set.Down), "Downregulated")

	return result, nil
}

// RunBatch runs the pipeline for every drug of a batch, in
// lexicographic drug order. A failing drug is logged and skipped;
// processing of its siblings is unaffected.
func RunBatch(ctx context.Context, batch map[string]map[string]*expr.Table, config *Config, service enrichr.Service) []*Result {
	drugs := make([]string, 0, len(batch))
	for drug := range batch {
		drugs = append(drugs, drug)
	}
	sort.Strings(drugs)
	results := make([]*Result, 0, len(drugs))
	for _, drug := range drugs {
		result, err := RunDrug(ctx, drug, batch[drug], config, service)
		if err != nil {
			log.Printf("Warning: skipping drug %v: %v.\n", drug, err)
			continue
		}
		results = append(results, result)
	}
	return results
}
