// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pubmed

import (
	"encoding/xml"
	"html"
	"io"
	"strings"

	"github.com/evidencemed/evidence-gateway/pkg/types"
)

const (
	// maxAuthors and maxMeshTerms cap the respective lists per record.
	maxAuthors   = 5
	maxMeshTerms = 5

	// maxAbstractLen is the hard abstract truncation length, in runes.
	maxAbstractLen   = 500
	truncationMarker = "..."
)

// EFetch XML structures. Title and abstract capture inner XML because
// PubMed embeds markup (<i>, <sub>, ...) inside them; the markup is
// stripped during normalization.
type pubmedArticleXML struct {
	MedlineCitation medlineCitationXML `xml:"MedlineCitation"`
	PubmedData      pubmedDataXML      `xml:"PubmedData"`
}

type medlineCitationXML struct {
	PMID      string     `xml:"PMID"`
	Article   articleXML `xml:"Article"`
	MeshTerms []string   `xml:"MeshHeadingList>MeshHeading>DescriptorName"`
}

type articleXML struct {
	Title     rawTextXML   `xml:"ArticleTitle"`
	Abstracts []rawTextXML `xml:"Abstract>AbstractText"`
	Authors   []authorXML  `xml:"AuthorList>Author"`
	Journal   journalXML   `xml:"Journal"`
	PubTypes  []string     `xml:"PublicationTypeList>PublicationType"`
}

type rawTextXML struct {
	Inner string `xml:",innerxml"`
}

type journalXML struct {
	Title   string     `xml:"Title"`
	PubDate pubDateXML `xml:"JournalIssue>PubDate"`
}

type pubDateXML struct {
	Year        string `xml:"Year"`
	MedlineDate string `xml:"MedlineDate"`
}

type authorXML struct {
	LastName string `xml:"LastName"`
	ForeName string `xml:"ForeName"`
}

type pubmedDataXML struct {
	ArticleIDs []articleIDXML `xml:"ArticleIdList>ArticleId"`
}

type articleIDXML struct {
	IDType string `xml:"IdType,attr"`
	Value  string `xml:",chardata"`
}

// ParseArticles extracts normalized records from an EFetch payload. Each
// <PubmedArticle> element is decoded independently: a record that fails to
// decode, or lacks a PMID or title, is dropped without affecting the rest
// of the batch. Missing fields within a surviving record degrade to their
// empty defaults.
func ParseArticles(payload string) []types.Article {
	dec := xml.NewDecoder(strings.NewReader(payload))
	dec.Strict = false

	var articles []types.Article
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Payload damaged beyond element recovery; keep what we have.
			break
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "PubmedArticle" {
			continue
		}

		var raw pubmedArticleXML
		if err := dec.DecodeElement(&raw, &se); err != nil {
			continue
		}
		if a, ok := normalizeArticle(raw); ok {
			articles = append(articles, a)
		}
	}
	return articles
}

// normalizeArticle converts a decoded record into an Article, reporting
// false when the record lacks the required PMID or title.
func normalizeArticle(raw pubmedArticleXML) (types.Article, bool) {
	pmid := strings.TrimSpace(raw.MedlineCitation.PMID)
	title := cleanMarkup(raw.MedlineCitation.Article.Title.Inner)
	if pmid == "" || title == "" {
		return types.Article{}, false
	}

	a := types.Article{
		PMID:      pmid,
		Title:     title,
		Authors:   []string{},
		Journal:   strings.TrimSpace(raw.MedlineCitation.Article.Journal.Title),
		Year:      extractYear(raw.MedlineCitation.Article.Journal.PubDate),
		MeshTerms: []string{},
	}

	for _, au := range raw.MedlineCitation.Article.Authors {
		if len(a.Authors) == maxAuthors {
			break
		}
		name := formatAuthor(au)
		if name == "" {
			continue
		}
		a.Authors = append(a.Authors, name)
	}

	if abs := raw.MedlineCitation.Article.Abstracts; len(abs) > 0 {
		a.Abstract = truncateAbstract(cleanMarkup(abs[0].Inner))
	}

	for _, id := range raw.PubmedData.ArticleIDs {
		v := strings.TrimSpace(id.Value)
		if v == "" {
			continue
		}
		switch id.IDType {
		case "doi":
			if a.DOI == nil {
				doi := v
				a.DOI = &doi
			}
		case "pmc":
			if a.PMCID == nil {
				pmcid := v
				a.PMCID = &pmcid
			}
		}
	}

	for _, term := range raw.MedlineCitation.MeshTerms {
		if len(a.MeshTerms) == maxMeshTerms {
			break
		}
		if t := strings.TrimSpace(term); t != "" {
			a.MeshTerms = append(a.MeshTerms, t)
		}
	}

	a.PublicationType = make([]string, 0, len(raw.MedlineCitation.Article.PubTypes))
	for _, pt := range raw.MedlineCitation.Article.PubTypes {
		if t := strings.TrimSpace(pt); t != "" {
			a.PublicationType = append(a.PublicationType, t)
		}
	}

	return a, true
}

// formatAuthor builds "Surname F" from surname plus first initial, or the
// surname alone. Authors without a surname are skipped.
func formatAuthor(au authorXML) string {
	last := strings.TrimSpace(au.LastName)
	if last == "" {
		return ""
	}
	fore := strings.TrimSpace(au.ForeName)
	if fore == "" {
		return last
	}
	r := []rune(fore)
	return last + " " + string(r[0])
}

// extractYear returns the first 4-digit year in the publication date
// block: the Year element when well-formed, else a scan of MedlineDate
// (e.g. "2019 Nov-Dec" or "Winter 2020").
func extractYear(pd pubDateXML) string {
	if y := firstYearToken(pd.Year); y != "" {
		return y
	}
	return firstYearToken(pd.MedlineDate)
}

func firstYearToken(s string) string {
	run := 0
	for i, r := range s {
		if r >= '0' && r <= '9' {
			run++
			if run == 4 {
				// i indexes the last byte of the run; digits are 1 byte.
				return s[i-3 : i+1]
			}
			continue
		}
		run = 0
	}
	return ""
}

// cleanMarkup strips embedded tags from captured inner XML, resolves
// entities, and trims the result.
func cleanMarkup(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(html.UnescapeString(b.String()))
}

// truncateAbstract hard-cuts the abstract at maxAbstractLen runes and
// appends the marker only when text was actually removed.
func truncateAbstract(s string) string {
	runes := []rune(s)
	if len(runes) <= maxAbstractLen {
		return s
	}
	return string(runes[:maxAbstractLen]) + truncationMarker
}
