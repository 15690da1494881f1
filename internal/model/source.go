package model

// SearchCapabilities declares what search modes and options a source
// extension supports.
type SearchCapabilities struct {
	SupportsSimpleSearch  bool     `json:"supports_simple_search"`
	SupportsComplexSearch bool     `json:"supports_complex_search"`
	AvailableFilters      []string `json:"available_filters,omitempty"`
	AvailableSortOptions  []string `json:"available_sort_options,omitempty"`
}

// SourceCapabilities wraps the capability groups a source declares.
// Extra capability groups can be added here without touching SourceMeta.
type SourceCapabilities struct {
	Search SearchCapabilities `json:"search"`
}

// SourceMeta is an extension's self-description, returned by its meta()
// export.
type SourceMeta struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Languages    []string           `json:"languages"`
	Version      string             `json:"version"`
	BaseURLs     []string           `json:"base_urls"`
	Directions   []ReadingDirection `json:"directions"`
	Attributes   map[string]string  `json:"attributes,omitempty"`
	Capabilities SourceCapabilities `json:"capabilities"`
}

// SimpleSearchQuery is a free-text query against a source.
type SimpleSearchQuery struct {
	Query string `json:"query"`
	Page  int    `json:"page,omitempty"`
}

// ComplexSearchQuery is a structured query using a source's declared
// filter/sort options.
type ComplexSearchQuery struct {
	Filters map[string]string `json:"filters,omitempty"`
	Sort    string            `json:"sort,omitempty"`
	Page    int               `json:"page,omitempty"`
}

// SearchResultItem is a single hit returned by a source search.
type SearchResultItem struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	CoverURL string `json:"cover_url,omitempty"`
}

// SearchResult wraps the items a source search returned.
type SearchResult struct {
	Items []SearchResultItem `json:"items"`
}
