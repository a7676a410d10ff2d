// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pubmed queries the NCBI E-utilities API and parses its record
// payloads. A search is two sequential phases: ESearch resolves a boolean
// expression to a page of PMIDs plus the total match count, EFetch returns
// the full records for those PMIDs in one batched call.
package pubmed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/evidencemed/evidence-gateway/pkg/types"
)

// E-utilities endpoints. Declared as vars so tests can substitute an
// httptest server.
var (
	esearchBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esearch.fcgi"
	efetchBase  = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/efetch.fcgi"
)

// Phases reported by UpstreamError.
const (
	PhaseSearch = "search"
	PhaseFetch  = "fetch"
)

// UpstreamError reports a failed E-utilities call, identifying which phase
// failed. Any non-2xx status is fatal for the request; no partial result
// is produced.
type UpstreamError struct {
	Phase      string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("pubmed %s failed: HTTP %d", e.Phase, e.StatusCode)
	}
	return fmt.Sprintf("pubmed %s failed: %v", e.Phase, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Client is a rate-limited E-utilities client. NCBI allows 3 requests per
// second, or 10 with an API key; the limiter gates both phases.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	cfg        types.UpstreamConfig
}

// NewClient builds a Client from config. A nil httpClient gets a default
// with the configured timeout.
func NewClient(cfg types.UpstreamConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 3
		if cfg.APIKey != "" {
			rps = 10
		}
	}
	return &Client{
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		cfg:        cfg,
	}
}

// esearchResponse mirrors the ESearch JSON envelope. Count arrives as a
// string in the real API.
type esearchResponse struct {
	Result esearchResult `json:"esearchresult"`
}

type esearchResult struct {
	Count  string   `json:"count"`
	IDList []string `json:"idlist"`
}

// Search runs the ESearch phase: the composed expression plus the fixed
// quality filter, relevance-ordered, paginated by retMax/retStart. It
// returns the PMIDs for the requested page and the total match count for
// the unpaginated query.
func (c *Client) Search(ctx context.Context, term string, retMax, retStart int) ([]string, int, error) {
	if c.cfg.QualityFilter != "" {
		term = term + " AND " + c.cfg.QualityFilter
	}

	params := url.Values{
		"db":      {"pubmed"},
		"term":    {term},
		"retmax":  {strconv.Itoa(retMax)},
		"retmode": {"json"},
		"sort":    {"relevance"},
	}
	if retStart > 0 {
		params.Set("retstart", strconv.Itoa(retStart))
	}

	body, err := c.doGet(ctx, esearchBase, params, PhaseSearch)
	if err != nil {
		return nil, 0, err
	}

	var sr esearchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, 0, &UpstreamError{Phase: PhaseSearch, Err: fmt.Errorf("parsing ESearch response: %w", err)}
	}

	total, err := strconv.Atoi(sr.Result.Count)
	if err != nil {
		total = 0
	}
	return sr.Result.IDList, total, nil
}

// Fetch runs the EFetch phase for the given PMIDs in one batched round
// trip and returns the raw XML payload. Callers short-circuit an empty id
// list; Fetch rejects it rather than hit upstream.
func (c *Client) Fetch(ctx context.Context, ids []string) (string, error) {
	if len(ids) == 0 {
		return "", &UpstreamError{Phase: PhaseFetch, Err: fmt.Errorf("no ids to fetch")}
	}

	params := url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(ids, ",")},
		"retmode": {"xml"},
		"rettype": {"abstract"},
	}

	body, err := c.doGet(ctx, efetchBase, params, PhaseFetch)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) doGet(ctx context.Context, base string, params url.Values, phase string) ([]byte, error) {
	if c.cfg.Tool != "" {
		params.Set("tool", c.cfg.Tool)
	}
	if c.cfg.Email != "" {
		params.Set("email", c.cfg.Email)
	}
	if c.cfg.APIKey != "" {
		params.Set("api_key", c.cfg.APIKey)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &UpstreamError{Phase: phase, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &UpstreamError{Phase: phase, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Phase: phase, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &UpstreamError{Phase: phase, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Phase: phase, Err: fmt.Errorf("reading response: %w", err)}
	}
	return body, nil
}
