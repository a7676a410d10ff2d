// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pubmed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/evidencemed/evidence-gateway/pkg/types"
)

func testUpstreamConfig() types.UpstreamConfig {
	return types.UpstreamConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   5 * time.Second,
			UserAgent: "evidence-gateway-test/0",
		},
		Tool:              "evidence-gateway-test",
		Email:             "ops@example.org",
		QualityFilter:     "(humans[MeSH] OR clinical trial[pt] OR review[pt]) AND english[la]",
		RequestsPerSecond: 1000, // no throttling in tests
	}
}

const sampleESearchJSON = `{
  "esearchresult": {
    "count": "2417",
    "retmax": "2",
    "retstart": "0",
    "idlist": ["38111111", "38222222"]
  }
}`

func TestClientSearch(t *testing.T) {
	var gotQuery url.Values
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, sampleESearchJSON)
	}))
	defer ts.Close()

	old := esearchBase
	esearchBase = ts.URL
	defer func() { esearchBase = old }()

	c := NewClient(testUpstreamConfig(), ts.Client())
	ids, total, err := c.Search(context.Background(), "(psoriasis[MeSH]) AND (phytotherapy[MeSH])", 2, 4)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if total != 2417 {
		t.Errorf("total = %d, want 2417", total)
	}
	if len(ids) != 2 || ids[0] != "38111111" || ids[1] != "38222222" {
		t.Errorf("ids = %v", ids)
	}

	// The quality filter is appended to the composed expression.
	term := gotQuery.Get("term")
	want := "(psoriasis[MeSH]) AND (phytotherapy[MeSH]) AND (humans[MeSH] OR clinical trial[pt] OR review[pt]) AND english[la]"
	if term != want {
		t.Errorf("term = %q, want %q", term, want)
	}
	if gotQuery.Get("db") != "pubmed" || gotQuery.Get("retmode") != "json" || gotQuery.Get("sort") != "relevance" {
		t.Errorf("query params = %v", gotQuery)
	}
	if gotQuery.Get("retmax") != "2" || gotQuery.Get("retstart") != "4" {
		t.Errorf("pagination params: retmax=%q retstart=%q", gotQuery.Get("retmax"), gotQuery.Get("retstart"))
	}
	if gotQuery.Get("tool") != "evidence-gateway-test" || gotQuery.Get("email") != "ops@example.org" {
		t.Errorf("identification params: tool=%q email=%q", gotQuery.Get("tool"), gotQuery.Get("email"))
	}
}

func TestClientSearchHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend unavailable", http.StatusBadGateway)
	}))
	defer ts.Close()

	old := esearchBase
	esearchBase = ts.URL
	defer func() { esearchBase = old }()

	c := NewClient(testUpstreamConfig(), ts.Client())
	_, _, err := c.Search(context.Background(), "anything", 20, 0)
	if err == nil {
		t.Fatal("Search on HTTP 502: want error")
	}
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("error type = %T, want *UpstreamError", err)
	}
	if ue.Phase != PhaseSearch {
		t.Errorf("Phase = %q, want %q", ue.Phase, PhaseSearch)
	}
	if ue.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want 502", ue.StatusCode)
	}
}

func TestClientSearchNonNumericCount(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"esearchresult": {"count": "", "idlist": []}}`)
	}))
	defer ts.Close()

	old := esearchBase
	esearchBase = ts.URL
	defer func() { esearchBase = old }()

	c := NewClient(testUpstreamConfig(), ts.Client())
	ids, total, err := c.Search(context.Background(), "q", 20, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if total != 0 || len(ids) != 0 {
		t.Errorf("total = %d, ids = %v, want zero values", total, ids)
	}
}

func TestClientFetch(t *testing.T) {
	var gotQuery url.Values
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "text/xml")
		fmt.Fprint(w, sampleArticleXML)
	}))
	defer ts.Close()

	old := efetchBase
	efetchBase = ts.URL
	defer func() { efetchBase = old }()

	c := NewClient(testUpstreamConfig(), ts.Client())
	payload, err := c.Fetch(context.Background(), []string{"38111111", "38222222"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if payload != sampleArticleXML {
		t.Error("Fetch did not return the raw payload")
	}
	if gotQuery.Get("id") != "38111111,38222222" {
		t.Errorf("id = %q, want comma-joined PMIDs", gotQuery.Get("id"))
	}
	if gotQuery.Get("retmode") != "xml" || gotQuery.Get("rettype") != "abstract" {
		t.Errorf("fetch params = %v", gotQuery)
	}
}

func TestClientFetchEmptyIDs(t *testing.T) {
	c := NewClient(testUpstreamConfig(), nil)
	_, err := c.Fetch(context.Background(), nil)
	if err == nil {
		t.Fatal("Fetch with no ids: want error")
	}
	var ue *UpstreamError
	if !errors.As(err, &ue) || ue.Phase != PhaseFetch {
		t.Errorf("error = %v, want fetch-phase UpstreamError", err)
	}
}

func TestClientFetchHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer ts.Close()

	old := efetchBase
	efetchBase = ts.URL
	defer func() { efetchBase = old }()

	c := NewClient(testUpstreamConfig(), ts.Client())
	_, err := c.Fetch(context.Background(), []string{"1"})
	var ue *UpstreamError
	if !errors.As(err, &ue) || ue.Phase != PhaseFetch || ue.StatusCode != http.StatusTooManyRequests {
		t.Errorf("error = %v, want fetch-phase UpstreamError with status 429", err)
	}
}

func TestClientAPIKeyParams(t *testing.T) {
	var gotQuery url.Values
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		fmt.Fprint(w, `{"esearchresult": {"count": "0", "idlist": []}}`)
	}))
	defer ts.Close()

	old := esearchBase
	esearchBase = ts.URL
	defer func() { esearchBase = old }()

	cfg := testUpstreamConfig()
	cfg.APIKey = "abc123"
	c := NewClient(cfg, ts.Client())
	if _, _, err := c.Search(context.Background(), "q", 20, 0); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotQuery.Get("api_key") != "abc123" {
		t.Errorf("api_key = %q, want abc123", gotQuery.Get("api_key"))
	}
}
