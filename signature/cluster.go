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

package signature

import (
	"errors"

	"github.com/bits-and-blooms/bitset"
	"github.com/exascience/pargo/parallel"
	"gonum.org/v1/gonum/stat"
)

// ErrNoData is returned when clustering is requested for an empty
// gene set. Callers are expected to report "no data" instead of
// rendering an empty result.
var ErrNoData = errors.New("no data to cluster")

// A Merge records one agglomeration step of a dendrogram. Left and
// Right are node indices: nodes below NumLeaves are leaves, node
// NumLeaves+k is the cluster created by Merges[k].
type Merge struct {
	Left, Right int
	Distance    float64
	Size        int
}

// A Dendrogram is the result of average-linkage clustering over
// NumLeaves profiles.
type Dendrogram struct {
	NumLeaves int
	Merges    []Merge
}

// Order returns the leaf ordering of the dendrogram, left to right.
func (d *Dendrogram) Order() []int {
	if d.NumLeaves == 0 {
		return nil
	}
	order := make([]int, 0, d.NumLeaves)
	var walk func(node int)
	walk = func(node int) {
		if node < d.NumLeaves {
			order = append(order, node)
			return
		}
		merge := d.Merges[node-d.NumLeaves]
		walk(merge.Left)
		walk(merge.Right)
	}
	walk(d.NumLeaves + len(d.Merges) - 1)
	return order
}

// CorrelationDistances returns the pairwise correlation distances
// (1 - Pearson correlation) between the given profiles. Correlation is
// undefined for a profile with zero variance; any pair involving such
// a profile gets distance 1, the distance of uncorrelated profiles,
// so degenerate input never produces NaN.
func CorrelationDistances(rows [][]float64) [][]float64 {
	n := len(rows)
	zeroVariance := make([]bool, n)
	for i, row := range rows {
		zeroVariance[i] = constant(row)
	}
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := 1.0
			if !zeroVariance[i] && !zeroVariance[j] {
				d = 1 - stat.Correlation(rows[i], rows[j], nil)
			}
			dist[i][j] = d
			dist[j][i] = d
		}
	}
	return dist
}

func constant(values []float64) bool {
	for _, value := range values {
		if value != values[0] {
			return false
		}
	}
	return true
}

// Cluster runs average-linkage (UPGMA) agglomerative clustering over
// the given distance matrix: the two closest clusters are merged
// repeatedly, and the distance of a merged cluster to any other is the
// size-weighted mean of its members' distances. Ties are broken by
// scan order, so the result is deterministic.
func Cluster(dist [][]float64) *Dendrogram {
	n := len(dist)
	d := &Dendrogram{NumLeaves: n}
	if n < 2 {
		return d
	}
	total := 2*n - 1
	distances := make([][]float64, total)
	for i := range distances {
		distances[i] = make([]float64, total)
	}
	for i := 0; i < n; i++ {
		copy(distances[i], dist[i])
	}
	size := make([]int, total)
	active := bitset.New(uint(total))
	for i := 0; i < n; i++ {
		size[i] = 1
		active.Set(uint(i))
	}
	for step := 0; step < n-1; step++ {
		var left, right int
		best := -1.0
		for i, iok := active.NextSet(0); iok; i, iok = active.NextSet(i + 1) {
			for j, jok := active.NextSet(i + 1); jok; j, jok = active.NextSet(j + 1) {
				if best < 0 || distances[i][j] < best {
					left, right, best = int(i), int(j), distances[i][j]
				}
			}
		}
		node := n + step
		size[node] = size[left] + size[right]
		d.Merges = append(d.Merges, Merge{Left: left, Right: right, Distance: best, Size: size[node]})
		for k, ok := active.NextSet(0); ok; k, ok = active.NextSet(k + 1) {
			if int(k) == left || int(k) == right {
				continue
			}
			avg := (float64(size[left])*distances[left][k] + float64(size[right])*distances[right][k]) /
				float64(size[node])
			distances[node][k] = avg
			distances[k][node] = avg
		}
		active.Clear(uint(left))
		active.Clear(uint(right))
		active.Set(uint(node))
	}
	return d
}

// ClusterMatrix computes the row and column dendrograms of a filled
// expression matrix (genes x cell lines, missing values already set
// to 0). The two are independent and run in parallel. An empty gene
// set returns ErrNoData without clustering anything.
func ClusterMatrix(filled [][]float64) (rowTree, colTree *Dendrogram, err error) {
	if len(filled) == 0 {
		return nil, nil, ErrNoData
	}
	columns := make([][]float64, len(filled[0]))
	for j := range columns {
		column := make([]float64, len(filled))
		for i, row := range filled {
			column[i] = row[j]
		}
		columns[j] = column
	}
	parallel.Do(
		func() { rowTree = Cluster(CorrelationDistances(filled)) },
		func() { colTree = Cluster(CorrelationDistances(columns)) },
	)
	return rowTree, colTree, nil
}
