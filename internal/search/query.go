package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// SearchParams configures a library search query.
type SearchParams struct {
	Query      string   // Free-text query against title/authors
	SourceIDs  []string // Filter by exact source id (empty = all)
	Statuses   []string // Filter by novel status (empty = all)
	Language   string   // Filter by exact language code

	Limit  int
	Offset int

	SortBy    string // "relevance", "title", "recent"
	SortOrder string // "asc", "desc"

	IncludeFacets bool     // Include facet counts in results
	FacetFields   []string // Which fields to facet on
	Highlight     bool     // Include match highlighting
}

// DefaultSearchParams returns sensible defaults.
func DefaultSearchParams() SearchParams {
	return SearchParams{
		Limit:         20,
		Offset:        0,
		SortBy:        "relevance",
		SortOrder:     "desc",
		IncludeFacets: true,
		FacetFields:   []string{"status", "source_id"},
		Highlight:     true,
	}
}

// SearchResult is the result of a library search.
type SearchResult struct {
	Query  string       `json:"query"`
	Total  uint64       `json:"total"`
	TookMs int64        `json:"took_ms"`
	Hits   []SearchHit  `json:"hits"`
	Facets SearchFacets `json:"facets,omitempty"`
}

// SearchHit is a single matched novel.
type SearchHit struct {
	NovelID      string            `json:"novel_id"`
	Score        float64           `json:"score"`
	Title        string            `json:"title"`
	SourceID     string            `json:"source_id,omitempty"`
	Status       string            `json:"status,omitempty"`
	ChapterCount int               `json:"chapter_count,omitempty"`
	Highlights   map[string]string `json:"highlights,omitempty"`
}

// SearchFacets contains facet counts.
type SearchFacets struct {
	Statuses []FacetCount `json:"statuses,omitempty"`
	Sources  []FacetCount `json:"sources,omitempty"`
}

// FacetCount represents a facet value and its count.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Search executes a library search.
func (s *SearchIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	searchQuery := buildSearchQuery(params)
	searchRequest := bleve.NewSearchRequestOptions(searchQuery, params.Limit, params.Offset, false)
	addSorting(searchRequest, params)

	if params.IncludeFacets {
		addFacets(searchRequest, params)
	}

	if params.Highlight {
		searchRequest.Highlight = bleve.NewHighlight()
		searchRequest.Highlight.AddField("title")
		searchRequest.Highlight.AddField("authors")
	}

	searchRequest.Fields = []string{"novel_id", "title", "source_id", "status", "chapter_count"}

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &SearchResult{
		Query:  params.Query,
		Total:  searchResult.Total,
		TookMs: searchResult.Took.Milliseconds(),
		Hits:   make([]SearchHit, 0, len(searchResult.Hits)),
	}

	for _, hit := range searchResult.Hits {
		searchHit := SearchHit{NovelID: hit.ID, Score: hit.Score}

		if t, ok := hit.Fields["title"].(string); ok {
			searchHit.Title = t
		}
		if sid, ok := hit.Fields["source_id"].(string); ok {
			searchHit.SourceID = sid
		}
		if st, ok := hit.Fields["status"].(string); ok {
			searchHit.Status = st
		}
		if cc, ok := hit.Fields["chapter_count"].(float64); ok {
			searchHit.ChapterCount = int(cc)
		}

		if len(hit.Fragments) > 0 {
			searchHit.Highlights = make(map[string]string)
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					searchHit.Highlights[field] = fragments[0]
				}
			}
		}

		result.Hits = append(result.Hits, searchHit)
	}

	if params.IncludeFacets {
		result.Facets = extractFacets(searchResult)
	}

	return result, nil
}

// buildSearchQuery constructs the Bleve query from params.
func buildSearchQuery(params SearchParams) query.Query {
	var queries []query.Query

	if params.Query != "" {
		var textQueries []query.Query

		titleMatch := bleve.NewMatchQuery(params.Query)
		titleMatch.SetField("title")
		titleMatch.SetBoost(3.0)
		textQueries = append(textQueries, titleMatch)

		authorMatch := bleve.NewMatchQuery(params.Query)
		authorMatch.SetField("authors")
		authorMatch.SetBoost(1.5)
		textQueries = append(textQueries, authorMatch)

		fuzzyQuery := bleve.NewFuzzyQuery(params.Query)
		fuzzyQuery.SetFuzziness(1)
		fuzzyQuery.SetField("title")
		fuzzyQuery.SetBoost(0.8)
		textQueries = append(textQueries, fuzzyQuery)

		if len(params.Query) >= 2 {
			prefixQuery := bleve.NewPrefixQuery(strings.ToLower(params.Query))
			prefixQuery.SetField("title")
			prefixQuery.SetBoost(0.5)
			textQueries = append(textQueries, prefixQuery)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	if len(params.SourceIDs) > 0 {
		sourceQueries := make([]query.Query, len(params.SourceIDs))
		for i, id := range params.SourceIDs {
			tq := bleve.NewTermQuery(id)
			tq.SetField("source_id")
			sourceQueries[i] = tq
		}
		queries = append(queries, bleve.NewDisjunctionQuery(sourceQueries...))
	}

	if len(params.Statuses) > 0 {
		statusQueries := make([]query.Query, len(params.Statuses))
		for i, st := range params.Statuses {
			tq := bleve.NewTermQuery(st)
			tq.SetField("status")
			statusQueries[i] = tq
		}
		queries = append(queries, bleve.NewDisjunctionQuery(statusQueries...))
	}

	if params.Language != "" {
		tq := bleve.NewTermQuery(params.Language)
		tq.SetField("languages")
		queries = append(queries, tq)
	}

	if len(queries) == 0 {
		return bleve.NewMatchAllQuery()
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewConjunctionQuery(queries...)
}

// addSorting configures sort order.
func addSorting(req *bleve.SearchRequest, params SearchParams) {
	switch params.SortBy {
	case "title":
		if params.SortOrder == "desc" {
			req.SortBy([]string{"-title"})
		} else {
			req.SortBy([]string{"title"})
		}
	case "recent":
		if params.SortOrder == "asc" {
			req.SortBy([]string{"stored_at"})
		} else {
			req.SortBy([]string{"-stored_at"})
		}
	default:
		req.SortBy([]string{"-_score"})
	}
}

// addFacets configures facet requests.
func addFacets(req *bleve.SearchRequest, params SearchParams) {
	for _, field := range params.FacetFields {
		req.AddFacet(field, bleve.NewFacetRequest(field, 20))
	}
}

// extractFacets converts Bleve facets to our format.
func extractFacets(result *bleve.SearchResult) SearchFacets {
	facets := SearchFacets{}

	if statusFacet, ok := result.Facets["status"]; ok {
		for _, term := range statusFacet.Terms.Terms() {
			facets.Statuses = append(facets.Statuses, FacetCount{Value: term.Term, Count: term.Count})
		}
	}

	if sourceFacet, ok := result.Facets["source_id"]; ok {
		for _, term := range sourceFacet.Terms.Terms() {
			facets.Sources = append(facets.Sources, FacetCount{Value: term.Term, Count: term.Count})
		}
	}

	return facets
}
