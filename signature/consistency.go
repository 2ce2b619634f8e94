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

// Package signature selects the genes that respond consistently to a
// drug across cell lines and orders them by hierarchical clustering.
package signature

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/omaaarsh/signatureid-csv-exporter/expr"
)

// A ConsistencySet holds the matrix rows of the genes that cross the
// fold-change threshold in the same direction in enough cell lines.
// The up and down sets are computed independently and may, in
// degenerate cases, share genes; Union deduplicates them.
type ConsistencySet struct {
	Up, Down []int
	up, down *bitset.BitSet
}

// MinConsistent returns the minimum number of agreeing cell lines for
// the given consistency percentage. The count is truncated, not
// rounded: 3 cell lines at 50% require 1 agreeing cell line, not 2.
func MinConsistent(numCellLines, consistencyPct int) int {
	return numCellLines * consistencyPct / 100
}

// Consistent classifies every gene of the matrix against the
// fold-change threshold. Per cell line, a gene counts as upregulated
// if its value is strictly greater than the threshold, and as
// downregulated if strictly smaller than its negation; a value equal
// to the threshold counts as neither, and missing values never count.
// A gene is consistently up (down) when it qualifies in at least
// MinConsistent(numCellLines, consistencyPct) cell lines.
func Consistent(m *expr.Matrix, foldChangeThreshold float64, consistencyPct int) *ConsistencySet {
	min := MinConsistent(m.NumCellLines(), consistencyPct)
	set := &ConsistencySet{
		up:   bitset.New(uint(m.NumGenes())),
		down: bitset.New(uint(m.NumGenes())),
	}
	for i, values := range m.Values {
		var up, down int
		for _, value := range values {
			// NaN comparisons are false, so missing values fall through
			if value > foldChangeThreshold {
				up++
			} else if value < -foldChangeThreshold {
				down++
			}
		}
		if up >= min {
			set.up.Set(uint(i))
			set.Up = append(set.Up, i)
		}
		if down >= min {
			set.down.Set(uint(i))
			set.Down = append(set.Down, i)
		}
	}
	return set
}

// Union returns the deduplicated union of the up and down sets, in
// matrix row order. A gene that qualifies for both directions appears
// exactly once.
func (set *ConsistencySet) Union() []int {
	union := set.up.Union(set.down)
	rows := make([]int, 0, union.Count())
	for i, ok := union.NextSet(0); ok; i, ok = union.NextSet(i + 1) {
		rows = append(rows, int(i))
	}
	return rows
}
