package expr

import (
	"errors"
	"log"
	"math"
	"sort"

	psort "github.com/exascience/pargo/sort"

	"github.com/omaaarsh/signatureid-csv-exporter/utils"
)

// ErrNoTables is returned by Merge when it is called without any
// cell-line tables. Callers are expected to check for usable tables
// before merging.
var ErrNoTables = errors.New("no cell-line tables to merge")

//Merge aligns a set of per-cell-line tables into one expression matrix.
//Each table's fold-change column becomes the matrix column named after
//its cell line, and tables are combined with an iterative full outer
//join over the gene identifier: a gene present in any one table appears
//in the output, and absent gene/cell-line combinations hold the missing
//value, not zero.
//
//Cell lines are joined left to right in lexicographic name order, so
//the resulting column order and the symbol override below are
//deterministic. When a later table disagrees with an earlier one on the
//symbol of a gene, the later symbol wins and the collision is logged;
//there is no heuristic reconciliation.
func Merge(tables map[string]*Table) (*Matrix, error) {
	if len(tables) == 0 {
		return nil, ErrNoTables
	}
	cellLines := make([]string, 0, len(tables))
	for cellLine := range tables {
		cellLines = append(cellLines, cellLine)
	}
	sort.Strings(cellLines)
	m := &Matrix{CellLines: cellLines}
	index := make(map[utils.Symbol]int)
	for j, cellLine := range cellLines {
		for _, row := range tables[cellLine].Rows {
			i, ok := index[row.Gene.ID]
			if !ok {
				i = len(m.Genes)
				index[row.Gene.ID] = i
				m.Genes = append(m.Genes, row.Gene)
				values := make([]float64, len(cellLines))
				for k := range values {
					values[k] = math.NaN()
				}
				m.Values = append(m.Values, values)
			} else if m.Genes[i].Symbol != row.Gene.Symbol {
				log.Printf("Warning: conflicting symbols %v and %v for gene %v; keeping %v.\n",
					*m.Genes[i].Symbol, *row.Gene.Symbol, *row.Gene.ID, *row.Gene.Symbol)
				m.Genes[i].Symbol = row.Gene.Symbol
			}
			m.Values[i][j] = row.LogFoldChange
		}
	}
	return m, nil
}

type stableGeneSorter geneRows

func (s stableGeneSorter) SequentialSort(i, j int) {
	sort.Stable(geneRows{s.genes[i:j], s.values[i:j]})
}

func (s stableGeneSorter) NewTemp() psort.StableSorter {
	return stableGeneSorter{make([]Gene, len(s.genes)), make([][]float64, len(s.values))}
}

func (s stableGeneSorter) Len() int {
	return len(s.genes)
}

func (s stableGeneSorter) Less(i, j int) bool {
	return *s.genes[i].ID < *s.genes[j].ID
}

func (s stableGeneSorter) Assign(source psort.StableSorter) func(i, j, len int) {
	dst, src := s, source.(stableGeneSorter)
	return func(i, j, len int) {
		copy(dst.genes[i:i+len], src.genes[j:j+len])
		copy(dst.values[i:i+len], src.values[j:j+len])
	}
}

// ParallelSortByGeneID sorts the matrix rows by gene identifier using
// a parallel stable sort.
func (m *Matrix) ParallelSortByGeneID() {
	psort.StableSort(stableGeneSorter{m.Genes, m.Values})
}
