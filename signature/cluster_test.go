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
	"math"
	"testing"
)

func near(value, expected float64) bool {
	return math.Abs(value-expected) < 1e-9
}

func TestCorrelationDistances(t *testing.T) {
	dist := CorrelationDistances([][]float64{
		{1, 2, 3},
		{2, 4, 6},
		{3, 2, 1},
	})
	if !near(dist[0][0], 0) {
		t.Error("CorrelationDistances diagonal failed")
	}
	// perfectly correlated profiles are at distance 0
	if !near(dist[0][1], 0) {
		t.Error("CorrelationDistances correlated failed")
	}
	// perfectly anti-correlated profiles are at distance 2
	if !near(dist[0][2], 2) {
		t.Error("CorrelationDistances anti-correlated failed")
	}
	if dist[1][2] != dist[2][1] {
		t.Error("CorrelationDistances symmetry failed")
	}
}

func TestCorrelationDistancesZeroVariance(t *testing.T) {
	dist := CorrelationDistances([][]float64{
		{1, 1, 1},
		{1, 2, 3},
		{0, 0, 0},
	})
	for i := range dist {
		for j := range dist[i] {
			if math.IsNaN(dist[i][j]) {
				t.Error("CorrelationDistances zero variance produced NaN")
			}
		}
	}
	// constant profiles carry no correlation information
	if !near(dist[0][1], 1) || !near(dist[0][2], 1) {
		t.Error("CorrelationDistances zero variance fallback failed")
	}
}

func TestCluster(t *testing.T) {
	d := Cluster(CorrelationDistances([][]float64{
		{1, 2, 3},
		{2, 4, 6},
		{3, 2, 1},
	}))
	if d.NumLeaves != 3 || len(d.Merges) != 2 {
		t.Error("Cluster shape failed")
	}
	// the two correlated profiles merge first, at distance 0
	if d.Merges[0].Left != 0 || d.Merges[0].Right != 1 || !near(d.Merges[0].Distance, 0) {
		t.Error("Cluster first merge failed")
	}
	if d.Merges[0].Size != 2 || d.Merges[1].Size != 3 {
		t.Error("Cluster sizes failed")
	}
	// the anti-correlated profile joins last, at the average distance 2
	if !near(d.Merges[1].Distance, 2) {
		t.Error("Cluster second merge failed")
	}
	order := d.Order()
	if len(order) != 3 {
		t.Error("Cluster order length failed")
	}
	if !rowsEqual(order, []int{2, 0, 1}) {
		t.Error("Cluster order failed")
	}
}

func TestClusterAverageLinkage(t *testing.T) {
	// distances chosen so average linkage differs from single linkage:
	// after merging 0 and 1 (distance 1), the distance of {0,1} to 2 is
	// the size-weighted mean (2+6)/2 = 4
	d := Cluster([][]float64{
		{0, 1, 2},
		{1, 0, 6},
		{2, 6, 0},
	})
	if d.Merges[0].Left != 0 || d.Merges[0].Right != 1 {
		t.Error("average linkage first merge failed")
	}
	if !near(d.Merges[1].Distance, 4) {
		t.Error("average linkage distance update failed")
	}
}

func TestClusterSingleLeaf(t *testing.T) {
	d := Cluster(CorrelationDistances([][]float64{{1, 2}}))
	if d.NumLeaves != 1 || len(d.Merges) != 0 {
		t.Error("single-leaf Cluster failed")
	}
	if !rowsEqual(d.Order(), []int{0}) {
		t.Error("single-leaf Order failed")
	}
}

func TestClusterMatrix(t *testing.T) {
	rowTree, colTree, err := ClusterMatrix([][]float64{
		{1, 2, 3},
		{2, 4, 6},
		{3, 2, 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(rowTree.Order()) != 3 {
		t.Error("ClusterMatrix row order failed")
	}
	if len(colTree.Order()) != 3 {
		t.Error("ClusterMatrix column order failed")
	}
}

func TestClusterMatrixEmpty(t *testing.T) {
	if _, _, err := ClusterMatrix(nil); !errors.Is(err, ErrNoData) {
		t.Error("empty ClusterMatrix failed")
	}
}
