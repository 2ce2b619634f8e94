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

package enrichr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func enrichmentRow(rank int, term string, pvalue, adjusted float64, genes ...string) []interface{} {
	geneList := make([]interface{}, len(genes))
	for i, gene := range genes {
		geneList[i] = gene
	}
	return []interface{}{rank, term, pvalue, 1.5, 10.0, geneList, adjusted, 0.0, 0.0}
}

type testSource struct {
	rows     map[string][][]interface{}
	requests int
	lists    []string
}

func (source *testSource) serve(w http.ResponseWriter, r *http.Request) {
	source.requests++
	switch {
	case strings.HasSuffix(r.URL.Path, "/addList"):
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		source.lists = append(source.lists, r.FormValue("list"))
		json.NewEncoder(w).Encode(map[string]interface{}{"userListId": 42, "shortId": "abc"})
	case strings.HasSuffix(r.URL.Path, "/enrich"):
		database := r.URL.Query().Get("backgroundType")
		json.NewEncoder(w).Encode(map[string]interface{}{database: source.rows[database]})
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(source *testSource) (*Client, *httptest.Server) {
	server := httptest.NewServer(http.HandlerFunc(source.serve))
	return NewClient(server.URL, time.Second), server
}

func TestEnrichRanksAndFilters(t *testing.T) {
	source := &testSource{rows: map[string][][]interface{}{
		"KEGG_2021_Human": {
			enrichmentRow(1, "Apoptosis", 0.002, 0.03, "TP53"),
			enrichmentRow(2, "Cell cycle", 0.01, 0.2, "MYC"), // filtered by cutoff
		},
		"Reactome_2022": {
			enrichmentRow(1, "Signaling by TP53", 0.001, 0.01, "TP53"),
		},
	}}
	client, server := newTestClient(source)
	defer server.Close()
	terms, err := client.Enrich(context.Background(), []string{"TP53", "MYC"},
		[]string{"KEGG_2021_Human", "Reactome_2022"}, 0.05)
	if err != nil {
		t.Fatal(err)
	}
	if len(terms) != 2 {
		t.Fatal("Enrich cutoff filtering failed")
	}
	// ascending by adjusted p-value, regardless of database order
	if terms[0].Term != "Signaling by TP53" || terms[1].Term != "Apoptosis" {
		t.Error("Enrich ranking failed")
	}
	if terms[0].Database != "Reactome_2022" || terms[0].AdjustedPValue != 0.01 {
		t.Error("Enrich term fields failed")
	}
	if len(terms[0].Genes) != 1 || terms[0].Genes[0] != "TP53" {
		t.Error("Enrich overlap genes failed")
	}
	if len(source.lists) != 1 || source.lists[0] != "TP53\nMYC\n" {
		t.Error("Enrich gene list upload failed")
	}
}

func TestEnrichEmptyGeneList(t *testing.T) {
	source := &testSource{}
	client, server := newTestClient(source)
	defer server.Close()
	if _, err := client.Enrich(context.Background(), nil, DefaultDatabases, DefaultCutoff); !errors.Is(err, ErrNoGenes) {
		t.Error("empty gene list failed")
	}
	// the source must not be contacted at all
	if source.requests != 0 {
		t.Error("empty gene list still contacted the source")
	}
}

func TestEnrichEmptyResult(t *testing.T) {
	source := &testSource{rows: map[string][][]interface{}{"KEGG_2021_Human": {}}}
	client, server := newTestClient(source)
	defer server.Close()
	terms, err := client.Enrich(context.Background(), []string{"TP53"}, []string{"KEGG_2021_Human"}, 0.05)
	// reachable source with zero significant terms is a success, not a failure
	if err != nil {
		t.Fatal(err)
	}
	if len(terms) != 0 {
		t.Error("empty enrichment result failed")
	}
}

func TestEnrichSourceFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()
	client := NewClient(server.URL, time.Second)
	if _, err := client.Enrich(context.Background(), []string{"TP53"}, DefaultDatabases, DefaultCutoff); err == nil {
		t.Error("source failure not surfaced")
	}
}

func TestEnrichUnreachableSource(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", 100*time.Millisecond)
	if _, err := client.Enrich(context.Background(), []string{"TP53"}, DefaultDatabases, DefaultCutoff); err == nil {
		t.Error("unreachable source not surfaced")
	}
}

func TestTop(t *testing.T) {
	terms := []Term{{Term: "a"}, {Term: "b"}, {Term: "c"}}
	if len(Top(terms, 2)) != 2 {
		t.Error("Top truncation failed")
	}
	if len(Top(terms, 10)) != 3 {
		t.Error("Top short input failed")
	}
}
