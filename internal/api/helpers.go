package api

import (
	"github.com/inkbound/novelhost/internal/catalog"
	"github.com/inkbound/novelhost/internal/model"
)

// catalogFilterFrom builds a catalog.NovelFilter from the query
// parameters of a ListNovelsInput.
func catalogFilterFrom(input *ListNovelsInput) catalog.NovelFilter {
	var filter catalog.NovelFilter

	if input.SourceID != "" {
		filter.SourceIDs = []string{input.SourceID}
	}
	if input.Status != "" {
		filter.Statuses = []model.NovelStatus{model.NovelStatus(input.Status)}
	}
	filter.TitleContains = input.TitleContains

	switch input.HasContent {
	case "true":
		v := true
		filter.HasContent = &v
	case "false":
		v := false
		filter.HasContent = &v
	}

	return filter
}

// MapSlice transforms a slice using the provided mapper function.
// Useful for converting domain objects to response types.
func MapSlice[T, R any](items []T, mapper func(T) R) []R {
	result := make([]R, len(items))
	for i, item := range items {
		result[i] = mapper(item)
	}
	return result
}

// DefaultLimit returns the provided limit or a default if <= 0.
func DefaultLimit(limit, defaultVal int) int {
	if limit <= 0 {
		return defaultVal
	}
	return limit
}
