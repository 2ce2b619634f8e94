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

package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/omaaarsh/signatureid-csv-exporter/enrichr"
	"github.com/omaaarsh/signatureid-csv-exporter/expr"
	"github.com/omaaarsh/signatureid-csv-exporter/utils"
)

// stubService is a fixed-result, failure-injecting enrichment source
// so pipeline behavior is testable without network access.
type stubService struct {
	terms map[string][]enrichr.Term // keyed by first symbol of the query
	err   error
	calls int
}

func (s *stubService) Enrich(_ context.Context, symbols, _ []string, _ float64) ([]enrichr.Term, error) {
	s.calls++
	if len(symbols) == 0 {
		return nil, enrichr.ErrNoGenes
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.terms[symbols[0]], nil
}

func testTables(folds map[string][]float64, cellLines ...string) map[string]*expr.Table {
	tables := make(map[string]*expr.Table)
	for i, cellLine := range cellLines {
		table := &expr.Table{CellLine: cellLine}
		for id, values := range folds {
			table.Rows = append(table.Rows, expr.Row{
				Gene:          expr.Gene{ID: utils.Intern(id), Symbol: utils.Intern("SYM_" + id)},
				LogFoldChange: values[i],
				PValue:        0.01,
			})
		}
		tables[cellLine] = table
	}
	return tables
}

func containsLine(report []string, line string) bool {
	for _, l := range report {
		if l == line {
			return true
		}
	}
	return false
}

func TestRunDrugCounts(t *testing.T) {
	tables := testTables(map[string][]float64{
		"g1": {1.5, 1.2, -0.2},   // up in 2 of 3
		"g2": {-1.5, -1.2, -2.0}, // down in 3 of 3
		"g3": {0.1, 0.2, 0.3},
	}, "A", "B", "C")
	service := &stubService{}
	result, err := RunDrug(context.Background(), "drugA", tables, DefaultConfig(), service)
	if err != nil {
		t.Fatal(err)
	}
	if result.Report[0] != "Summary for drugA" {
		t.Error("RunDrug summary line failed")
	}
	if !containsLine(result.Report, "Total genes in matrix: 3") {
		t.Error("RunDrug matrix count failed")
	}
	if !containsLine(result.Report, "Genes upregulated in >=50% cell lines: 1") {
		t.Error("RunDrug up count failed")
	}
	if !containsLine(result.Report, "Genes downregulated in >=50% cell lines: 1") {
		t.Error("RunDrug down count failed")
	}
	if len(result.HeatmapRows) != 2 {
		t.Error("RunDrug heatmap rows failed")
	}
	if result.RowTree == nil || len(result.RowOrder) != 2 || len(result.ColOrder) != 3 {
		t.Error("RunDrug clustering failed")
	}
	// both directions queried
	if service.calls != 2 {
		t.Error("RunDrug enrichment calls failed")
	}
}

func TestRunDrugUnanimousThreshold(t *testing.T) {
	tables := testTables(map[string][]float64{
		"g1": {1.5, 1.2, -0.2},
	}, "A", "B", "C")
	config := DefaultConfig()
	config.ConsistencyThresholdPct = 100
	result, err := RunDrug(context.Background(), "drugA", tables, config, &stubService{})
	if err != nil {
		t.Fatal(err)
	}
	if !containsLine(result.Report, "Genes upregulated in >=100% cell lines: 0") {
		t.Error("RunDrug unanimous threshold failed")
	}
	if !containsLine(result.Report, "No consistent genes for heatmap.") {
		t.Error("RunDrug no-data notice failed")
	}
	if result.RowTree != nil || result.Heatmap != nil {
		t.Error("RunDrug clustering not skipped")
	}
}

func TestRunDrugNoTables(t *testing.T) {
	_, err := RunDrug(context.Background(), "drugA", nil, DefaultConfig(), &stubService{})
	if !errors.Is(err, ErrNoUsableTables) {
		t.Error("RunDrug without tables failed")
	}
}

func TestRunDrugEmptyGeneSets(t *testing.T) {
	tables := testTables(map[string][]float64{
		"g1": {0.1, 0.2},
	}, "A", "B")
	service := &stubService{}
	result, err := RunDrug(context.Background(), "drugA", tables, DefaultConfig(), service)
	if err != nil {
		t.Fatal(err)
	}
	if !containsLine(result.Report, "- No genes available for enrichment in Upregulated set.") {
		t.Error("RunDrug empty up set notice failed")
	}
	if !containsLine(result.Report, "- No genes available for enrichment in Downregulated set.") {
		t.Error("RunDrug empty down set notice failed")
	}
	// no external source contact for empty gene lists
	if service.calls != 0 {
		t.Error("RunDrug contacted the source for empty gene lists")
	}
}

func TestRunDrugEnrichmentFailure(t *testing.T) {
	tables := testTables(map[string][]float64{
		"g1": {2.0, 1.5},
		"g2": {-2.0, -1.5},
	}, "A", "B")
	service := &stubService{err: errors.New("connection refused")}
	result, err := RunDrug(context.Background(), "drugA", tables, DefaultConfig(), service)
	// an enrichment failure is contained, not fatal
	if err != nil {
		t.Fatal(err)
	}
	if !containsLine(result.Report, "- Error during enrichment for Upregulated: connection refused") {
		t.Error("RunDrug up enrichment error line failed")
	}
	if !containsLine(result.Report, "- Error during enrichment for Downregulated: connection refused") {
		t.Error("RunDrug down enrichment error line failed")
	}
	if result.UpTerms != nil || result.DownTerms != nil {
		t.Error("RunDrug enrichment failure terms failed")
	}
	// the rest of the pipeline still ran
	if result.RowTree == nil {
		t.Error("RunDrug clustering skipped after enrichment failure")
	}
}

func TestRunDrugEnrichmentResults(t *testing.T) {
	tables := testTables(map[string][]float64{
		"g1": {2.0, 1.5},
	}, "A", "B")
	service := &stubService{terms: map[string][]enrichr.Term{
		"SYM_g1": {{Term: "Apoptosis", Database: "KEGG_2021_Human", AdjustedPValue: 0.01}},
	}}
	result, err := RunDrug(context.Background(), "drugA", tables, DefaultConfig(), service)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.UpTerms) != 1 || result.UpTerms[0].Term != "Apoptosis" {
		t.Error("RunDrug up terms failed")
	}
	if !containsLine(result.Report, "Top enriched pathways in Upregulated genes:") {
		t.Error("RunDrug up heading failed")
	}
	if !containsLine(result.Report, "- Apoptosis (adjusted p-value 0.01)") {
		t.Error("RunDrug up term line failed")
	}
	if !containsLine(result.Report, "- No genes available for enrichment in Downregulated set.") {
		t.Error("RunDrug empty down notice failed")
	}
}

func TestRunBatchSiblingIsolation(t *testing.T) {
	batch := map[string]map[string]*expr.Table{
		"bad": {},
		"good": testTables(map[string][]float64{
			"g1": {2.0, 1.5},
		}, "A", "B"),
	}
	service := &stubService{err: errors.New("boom")}
	results := RunBatch(context.Background(), batch, DefaultConfig(), service)
	// the bad drug is skipped, its sibling still completes
	if len(results) != 1 || results[0].Drug != "good" {
		t.Fatal("RunBatch sibling isolation failed")
	}
	if !containsLine(results[0].Report, "- Error during enrichment for Upregulated: boom") {
		t.Error("RunBatch contained enrichment failure failed")
	}
}
