// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the evidence gateway.
package types

import "time"

// Article is one normalized PubMed record. Articles are built once during
// parsing and never mutated afterwards; optional fields degrade to their
// zero value (or nil for DOI/PMCID) instead of failing the record.
type Article struct {
	// PMID is the PubMed identifier. Records without one are dropped.
	PMID string `json:"pmid"`

	// Title is the article title with embedded markup stripped.
	// Records without a title are dropped.
	Title string `json:"title"`

	// Authors lists up to five display names ("Surname F") in source order.
	Authors []string `json:"authors"`

	// Journal is the publication venue, empty when absent.
	Journal string `json:"journal"`

	// Year is the 4-digit publication year, empty when absent.
	Year string `json:"year"`

	// Abstract is the plain-text abstract, truncated to 500 characters
	// with a trailing ellipsis when cut.
	Abstract string `json:"abstract"`

	// DOI is the digital object identifier, nil when absent.
	DOI *string `json:"doi"`

	// PMCID is the PubMed Central identifier, nil when absent.
	PMCID *string `json:"pmcid"`

	// MeshTerms lists up to five MeSH descriptors in source order.
	MeshTerms []string `json:"meshTerms"`

	// PublicationType lists all publication types in source order.
	PublicationType []string `json:"publicationType"`
}

// SearchRequest is the JSON body accepted by the search endpoint. At least
// one of Query and Condition must be non-empty; Condition, when present,
// overrides Query via the condition mapper.
type SearchRequest struct {
	Query      string `json:"query"`
	Condition  string `json:"condition"`
	MaxResults int    `json:"maxResults"`
	Page       int    `json:"page"`
}

// SearchResponse is the uniform success envelope returned to callers.
type SearchResponse struct {
	Articles   []Article `json:"articles"`
	TotalCount int       `json:"totalCount"`

	// Query is the resolved search expression actually sent upstream,
	// not the caller's raw input.
	Query string `json:"query"`

	// Source is a fixed provenance label.
	Source string `json:"source"`

	// Cached reports whether the response was served from the cache.
	Cached bool `json:"cached"`

	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// CacheEntry is one cached result page. Entries are written whole after a
// successful upstream round trip and ignored once ExpiresAt has passed.
type CacheEntry struct {
	// Key is the deterministic cache key for the
	// (query, condition, pageSize, page) tuple.
	Key string `json:"key"`

	// Query is the resolved expression that produced the entry, kept for
	// diagnostics.
	Query string `json:"query"`

	// Condition is the original condition identifier, empty when the
	// caller searched by free text.
	Condition string `json:"condition"`

	Articles   []Article `json:"articles"`
	TotalCount int       `json:"total_count"`

	// ExpiresAt is the absolute staleness deadline, set at write time.
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the entry is stale at the given instant.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
