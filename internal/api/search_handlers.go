package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	apierrors "github.com/inkbound/novelhost/internal/errors"
	"github.com/inkbound/novelhost/internal/search"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchLibrary",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Search the local library",
		Description: "Full-text search over the locally stored novel catalog",
		Tags:        []string{"Search"},
	}, s.handleSearch)
}

type SearchInput struct {
	Query     string `query:"q" required:"true" doc:"Free-text query against title/authors"`
	SourceID  string `query:"source_id" doc:"Filter by exact source id"`
	Status    string `query:"status" doc:"Filter by novel status"`
	Language  string `query:"language" doc:"Filter by exact language code"`
	Limit     int    `query:"limit" default:"20" minimum:"1" maximum:"100" doc:"Max results"`
	Offset    int    `query:"offset" default:"0" minimum:"0" doc:"Pagination offset"`
	SortBy    string `query:"sort" enum:"relevance,title,recent" default:"relevance" doc:"Sort field"`
	SortOrder string `query:"order" enum:"asc,desc" default:"desc" doc:"Sort order"`
}

type SearchOutput struct {
	Body search.SearchResult
}

func (s *Server) handleSearch(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	if s.search == nil {
		return nil, apierrors.NewError(apierrors.CodeStorageOperationFail, "search index not configured on this facade")
	}

	params := search.DefaultSearchParams()
	params.Query = strings.TrimSpace(input.Query)
	params.Limit = input.Limit
	params.Offset = input.Offset
	params.SortBy = input.SortBy
	params.SortOrder = input.SortOrder
	params.Language = input.Language
	if input.SourceID != "" {
		params.SourceIDs = []string{input.SourceID}
	}
	if input.Status != "" {
		params.Statuses = []string{input.Status}
	}

	searchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := s.search.Search(searchCtx, params)
	if err != nil {
		if searchCtx.Err() == context.DeadlineExceeded {
			return nil, apierrors.Wrap(err, apierrors.CodeTimeout, "search timed out")
		}
		return nil, apierrors.Wrap(err, apierrors.CodeStorageOperationFail, "execute search")
	}

	return &SearchOutput{Body: *result}, nil
}
