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

// Package enrichr looks up functional enrichment for gene lists
// against the Enrichr annotation service.
package enrichr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// DefaultBaseURL is the public Enrichr API endpoint.
const DefaultBaseURL = "https://maayanlab.cloud/Enrichr"

// DefaultCutoff is the adjusted p-value cutoff for significant terms.
const DefaultCutoff = 0.05

// DefaultDatabases are the pathway/ontology libraries queried when
// none are configured.
var DefaultDatabases = []string{
	"KEGG_2021_Human",
	"Reactome_2022",
	"GO_Biological_Process_2023",
}

// ErrNoGenes is returned when enrichment is requested for an empty
// gene list; no request is sent to the annotation source in that case.
var ErrNoGenes = errors.New("no genes available for enrichment")

// A Term is one enriched pathway/ontology term for a gene list.
type Term struct {
	Database       string
	Term           string
	PValue         float64
	AdjustedPValue float64
	ZScore         float64
	CombinedScore  float64
	Genes          []string
}

// A Service answers enrichment queries for a gene-symbol list against
// a set of annotation databases. The returned terms are sorted
// ascending by adjusted p-value; a nil error with zero terms means the
// source found nothing significant, which is distinct from a failure.
type Service interface {
	Enrich(ctx context.Context, symbols, databases []string, cutoff float64) ([]Term, error)
}

// A Client implements Service against the Enrichr web API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient returns a Client for the given endpoint. All requests are
// bounded by the given timeout so a silent annotation source cannot
// hang the pipeline.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type geneList struct {
	UserListID int `json:"userListId"`
}

// addList uploads the gene list and returns the list identifier the
// enrichment endpoint expects. The list description carries a unique
// tag so individual runs can be told apart on the server side.
func (client *Client) addList(ctx context.Context, symbols []string) (int, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	list := bytes.Buffer{}
	for _, symbol := range symbols {
		list.WriteString(symbol)
		list.WriteByte('\n')
	}
	if err := form.WriteField("list", list.String()); err != nil {
		return 0, err
	}
	if err := form.WriteField("description", "signatureid "+uuid.NewString()); err != nil {
		return 0, err
	}
	if err := form.Close(); err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, client.BaseURL+"/addList", &body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	resp, err := client.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("enrichment source rejected gene list: %v", resp.Status)
	}
	var uploaded geneList
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return 0, fmt.Errorf("%v, while decoding gene list response", err)
	}
	return uploaded.UserListID, nil
}

// Enrichment responses are positional arrays:
// [rank, term, p-value, z-score, combined score, genes, adjusted p-value, ...]
func parseTerm(database string, row []interface{}) (term Term, err error) {
	if len(row) < 7 {
		return term, fmt.Errorf("malformed enrichment row for database %v", database)
	}
	term.Database = database
	var ok bool
	if term.Term, ok = row[1].(string); !ok {
		return term, fmt.Errorf("malformed enrichment term for database %v", database)
	}
	if term.PValue, ok = row[2].(float64); !ok {
		return term, fmt.Errorf("malformed p-value for term %v", term.Term)
	}
	term.ZScore, _ = row[3].(float64)
	term.CombinedScore, _ = row[4].(float64)
	if genes, ok := row[5].([]interface{}); ok {
		for _, gene := range genes {
			if symbol, ok := gene.(string); ok {
				term.Genes = append(term.Genes, symbol)
			}
		}
	}
	if term.AdjustedPValue, ok = row[6].(float64); !ok {
		return term, fmt.Errorf("malformed adjusted p-value for term %v", term.Term)
	}
	return term, nil
}

func (client *Client) enrichDatabase(ctx context.Context, listID int, database string, cutoff float64) ([]Term, error) {
	query := url.Values{}
	query.Set("userListId", strconv.Itoa(listID))
	query.Set("backgroundType", database)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, client.BaseURL+"/enrich?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("enrichment source rejected query for %v: %v", database, resp.Status)
	}
	var result map[string][][]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%v, while decoding enrichment response for %v", err, database)
	}
	rows, ok := result[database]
	if !ok {
		return nil, fmt.Errorf("malformed enrichment response for database %v", database)
	}
	var terms []Term
	for _, row := range rows {
		term, err := parseTerm(database, row)
		if err != nil {
			return nil, err
		}
		if term.AdjustedPValue <= cutoff {
			terms = append(terms, term)
		}
	}
	return terms, nil
}

// Enrich uploads the gene list once and queries every configured
// database against it, keeping the terms whose adjusted p-value is at
// most cutoff. The combined result is sorted ascending by adjusted
// p-value regardless of the source's own ordering.
func (client *Client) Enrich(ctx context.Context, symbols, databases []string, cutoff float64) ([]Term, error) {
	if len(symbols) == 0 {
		return nil, ErrNoGenes
	}
	listID, err := client.addList(ctx, symbols)
	if err != nil {
		return nil, err
	}
	var terms []Term
	for _, database := range databases {
		databaseTerms, err := client.enrichDatabase(ctx, listID, database, cutoff)
		if err != nil {
			return nil, err
		}
		terms = append(terms, databaseTerms...)
	}
	Sort(terms)
	return terms, nil
}

// Sort orders terms ascending by adjusted p-value, with the term name
// as tie breaker.
func Sort(terms []Term) {
	sort.SliceStable(terms, func(i, j int) bool {
		if terms[i].AdjustedPValue != terms[j].AdjustedPValue {
			return terms[i].AdjustedPValue < terms[j].AdjustedPValue
		}
		return terms[i].Term < terms[j].Term
	})
}

// Top returns the n best-ranked terms.
func Top(terms []Term, n int) []Term {
	if len(terms) <= n {
		return terms
	}
	return terms[:n]
}
