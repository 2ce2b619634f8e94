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

// Package expr implements per-cell-line gene expression tables and
// their consolidation into a single expression matrix.
package expr

import (
	"math"
	"sort"

	"github.com/omaaarsh/signatureid-csv-exporter/utils"
)

// A Gene identifies a measured gene. The identifier is the stable join
// key across tables; the symbol is carried for display.
type Gene struct {
	ID     utils.Symbol
	Symbol utils.Symbol
}

// A Row is one gene measurement in a per-cell-line table.
type Row struct {
	Gene          Gene
	LogFoldChange float64
	PValue        float64
}

// A Table holds the significant rows measured for one cell line
// treated with a drug.
type Table struct {
	CellLine string
	Rows     []Row
}

// A Matrix is the full outer join of the fold-change columns of a set
// of per-cell-line tables, one column per cell line. A gene absent
// from a cell line's table holds NaN in that column, see Missing.
type Matrix struct {
	Genes     []Gene
	CellLines []string
	Values    [][]float64
}

// Missing is the value stored in a matrix for a gene that was not
// measured in a given cell line. It is never counted by the
// consistency filter and is filled with 0 only for clustering.
func Missing() float64 {
	return math.NaN()
}

// IsMissing tells whether a matrix value represents an absent
// gene/cell-line combination.
func IsMissing(value float64) bool {
	return math.IsNaN(value)
}

// NumGenes returns the number of matrix rows.
func (m *Matrix) NumGenes() int {
	return len(m.Genes)
}

// NumCellLines returns the number of matrix columns.
func (m *Matrix) NumCellLines() int {
	return len(m.CellLines)
}

// Symbols returns the gene symbols for the given matrix rows, in row
// order.
func (m *Matrix) Symbols(rows []int) []string {
	symbols := make([]string, len(rows))
	for i, row := range rows {
		symbols[i] = *m.Genes[row].Symbol
	}
	return symbols
}

// FilledRows returns a copy of the given matrix rows with missing
// values filled with 0, for use in distance computations.
func (m *Matrix) FilledRows(rows []int) [][]float64 {
	filled := make([][]float64, len(rows))
	for i, row := range rows {
		values := make([]float64, len(m.CellLines))
		for j, value := range m.Values[row] {
			if !IsMissing(value) {
				values[j] = value
			}
		}
		filled[i] = values
	}
	return filled
}

type geneRows struct {
	genes  []Gene
	values [][]float64
}

func (g geneRows) Len() int {
	return len(g.genes)
}

func (g geneRows) Less(i, j int) bool {
	return *g.genes[i].ID < *g.genes[j].ID
}

func (g geneRows) Swap(i, j int) {
	g.genes[i], g.genes[j] = g.genes[j], g.genes[i]
	g.values[i], g.values[j] = g.values[j], g.values[i]
}

// SortByGeneID sorts the matrix rows by gene identifier.
func (m *Matrix) SortByGeneID() {
	sort.Stable(geneRows{m.Genes, m.Values})
}
