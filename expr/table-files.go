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

package expr

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/exascience/pargo/pipeline"

	"github.com/omaaarsh/signatureid-csv-exporter/utils"
)

// Column names of the upstream differential-expression export format.
const (
	GeneIDColumn     = "ID_geneid"
	GeneSymbolColumn = "Name_GeneSymbol"
	FoldChangeColumn = "Value_LogDiffExp"
	PValueColumn     = "Significance_pvalue"
)

// ErrMissingColumn is returned when a table file lacks one of the
// required columns.
var ErrMissingColumn = errors.New("missing required column")

type tableColumns struct {
	id, symbol, fold, pvalue int
	fields                   int
}

func parseTableHeader(header, filename string) (cols tableColumns, err error) {
	cols.id, cols.symbol, cols.fold, cols.pvalue = -1, -1, -1, -1
	names := strings.Split(strings.TrimRight(header, "\r\n"), ",")
	for i, name := range names {
		switch strings.TrimSpace(name) {
		case GeneIDColumn:
			cols.id = i
		case GeneSymbolColumn:
			cols.symbol = i
		case FoldChangeColumn:
			cols.fold = i
		case PValueColumn:
			cols.pvalue = i
		}
	}
	cols.fields = len(names)
	for _, required := range []struct {
		name  string
		index int
	}{
		{GeneIDColumn, cols.id},
		{GeneSymbolColumn, cols.symbol},
		{FoldChangeColumn, cols.fold},
		{PValueColumn, cols.pvalue},
	} {
		if required.index < 0 {
			return cols, fmt.Errorf("%w %v in %v", ErrMissingColumn, required.name, filename)
		}
	}
	return cols, nil
}

// ReadTableFile loads the per-cell-line table stored in a CSV file in
// the upstream export format. Rows whose significance p-value exceeds
// pvalueThreshold are dropped at load time; the downstream pipeline
// only ever sees rows deemed significant.
func ReadTableFile(filename, cellLine string, pvalueThreshold float64) (table *Table, err error) {
	pathname, err := filepath.Abs(filename)
	if err != nil {
		return nil, err
	}
	in, err := os.Open(pathname)
	if err != nil {
		return nil, err
	}
	defer func() {
		if nerr := in.Close(); nerr != nil {
			if err == nil {
				table = nil
				err = nerr
			}
		}
	}()
	input := bufio.NewReader(in)
	header, err := input.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("%v is not a valid table file - missing header", filename)
	}
	cols, err := parseTableHeader(header, filename)
	if err != nil {
		return nil, err
	}
	table = &Table{CellLine: cellLine}
	var p pipeline.Pipeline
	p.Source(pipeline.NewScanner(input))
	p.Add(pipeline.LimitedPar(0, pipeline.Receive(func(_ int, data interface{}) interface{} {
		strs := data.([]string)
		rows := make([]Row, 0, len(strs))
		for _, str := range strs {
			str = strings.TrimRight(str, "\r")
			if str == "" {
				continue
			}
			fields := strings.Split(str, ",")
			if len(fields) < cols.fields {
				p.SetErr(fmt.Errorf("invalid table line %v in %v", str, filename))
				return rows
			}
			pvalue, err := strconv.ParseFloat(strings.TrimSpace(fields[cols.pvalue]), 64)
			if err != nil {
				p.SetErr(fmt.Errorf("%v, while parsing table line %v in %v", err, str, filename))
				return rows
			}
			if pvalue > pvalueThreshold {
				continue
			}
			fold, err := strconv.ParseFloat(strings.TrimSpace(fields[cols.fold]), 64)
			if err != nil {
				p.SetErr(fmt.Errorf("%v, while parsing table line %v in %v", err, str, filename))
				return rows
			}
			gene := Gene{
				ID:     utils.Intern(strings.TrimSpace(fields[cols.id])),
				Symbol: utils.Intern(strings.TrimSpace(fields[cols.symbol])),
			}
			rows = append(rows, Row{Gene: gene, LogFoldChange: fold, PValue: pvalue})
		}
		return rows
	})))
	p.Add(pipeline.Ord(pipeline.Receive(func(_ int, data interface{}) interface{} {
		table.Rows = append(table.Rows, data.([]Row)...)
		return data
	})))
	p.Run()
	if err = p.Err(); err != nil {
		return nil, err
	}
	return table, nil
}

// ToCsvFile writes the merged matrix in the upstream column schema,
// one fold-change column per cell line. Missing values become empty
// fields.
func (m *Matrix) ToCsvFile(filename string) (err error) {
	pathname, err := filepath.Abs(filename)
	if err != nil {
		return err
	}
	output, err := os.Create(pathname)
	if err != nil {
		return err
	}
	defer func() {
		if nerr := output.Close(); nerr != nil {
			if err == nil {
				err = nerr
			}
		}
	}()
	header := GeneIDColumn + "," + GeneSymbolColumn
	if len(m.CellLines) > 0 {
		header += "," + strings.Join(m.CellLines, ",")
	}
	if _, err = output.WriteString(header + "\n"); err != nil {
		return err
	}
	var buf []byte
	for i, gene := range m.Genes {
		buf = buf[:0]
		buf = append(buf, *gene.ID...)
		buf = append(buf, ',')
		buf = append(buf, *gene.Symbol...)
		for _, value := range m.Values[i] {
			buf = append(buf, ',')
			if !IsMissing(value) {
				buf = strconv.AppendFloat(buf, value, 'g', -1, 64)
			}
		}
		buf = append(buf, '\n')
		if _, err = output.Write(buf); err != nil {
			return err
		}
	}
	return nil
}
