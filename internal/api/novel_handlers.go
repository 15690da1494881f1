package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	apierrors "github.com/inkbound/novelhost/internal/errors"
	"github.com/inkbound/novelhost/internal/model"
)

func (s *Server) registerNovelRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listNovels",
		Method:      http.MethodGet,
		Path:        "/api/v1/novels",
		Summary:     "List novels",
		Description: "Returns a filtered listing of novels held by the catalog",
		Tags:        []string{"Novels"},
	}, s.handleListNovels)

	huma.Register(s.api, huma.Operation{
		OperationID: "getNovel",
		Method:      http.MethodGet,
		Path:        "/api/v1/novels/{id}",
		Summary:     "Get novel",
		Description: "Returns a single novel's full stored manifest by novel id",
		Tags:        []string{"Novels"},
	}, s.handleGetNovel)

	huma.Register(s.api, huma.Operation{
		OperationID: "catalogStats",
		Method:      http.MethodGet,
		Path:        "/api/v1/stats",
		Summary:     "Catalog statistics",
		Description: "Returns aggregate counts across the catalog",
		Tags:        []string{"Novels"},
	}, s.handleStats)

	// Registered for OpenAPI documentation only; it redirects to the raw
	// chi route below, which actually streams the bytes. Huma's typed
	// output model doesn't fit an arbitrary-content-type binary body, the
	// same reason the teacher's own cover handlers stream through chi
	// directly rather than through huma.
	huma.Register(s.api, huma.Operation{
		OperationID: "getNovelCover",
		Method:      http.MethodGet,
		Path:        "/api/v1/novels/{id}/cover",
		Summary:     "Get novel cover image",
		Description: "Redirects to the raw cover image for a novel, if one has been fetched",
		Tags:        []string{"Novels"},
	}, s.handleGetNovelCover)

	s.router.Get("/covers/{id}", s.handleServeNovelCover)
}

// === DTOs ===

type ListNovelsInput struct {
	SourceID      string `query:"source_id" doc:"Filter by exact source id"`
	Status        string `query:"status" doc:"Filter by novel status"`
	TitleContains string `query:"q" doc:"Case-insensitive substring match against title"`
	HasContent    string `query:"has_content" enum:"true,false" doc:"Filter by whether any chapter content is stored"`
}

type NovelSummaryResponse struct {
	NovelID        string    `json:"novel_id" doc:"Composite novel id (source_id::url)"`
	SourceID       string    `json:"source_id" doc:"Extension id that sourced this novel"`
	Title          string    `json:"title" doc:"Novel title"`
	Authors        []string  `json:"authors,omitempty" doc:"Authors"`
	Status         string    `json:"status" doc:"Publication status"`
	TotalChapters  int       `json:"total_chapters" doc:"Chapters known from the manifest"`
	StoredChapters int       `json:"stored_chapters" doc:"Chapters with content actually stored on disk"`
	StoredAt       time.Time `json:"stored_at" doc:"When the novel was last written to the catalog"`
}

type ListNovelsResponse struct {
	Items []NovelSummaryResponse `json:"items" doc:"Novels matching the filter"`
	Total int                    `json:"total" doc:"Count of returned items"`
}

type ListNovelsOutput struct {
	Body ListNovelsResponse
}

type GetNovelInput struct {
	ID string `path:"id" doc:"Composite novel id (source_id::url)"`
}

type NovelOutput struct {
	Body model.Novel
}

type StatsResponse struct {
	TotalNovels    int            `json:"total_novels" doc:"Total novels in the catalog"`
	TotalChapters  int            `json:"total_chapters" doc:"Total chapters known across all novels"`
	NovelsBySource map[string]int `json:"novels_by_source" doc:"Novel count per source extension"`
}

type StatsOutput struct {
	Body StatsResponse
}

// === Handlers ===

func (s *Server) handleListNovels(ctx context.Context, input *ListNovelsInput) (*ListNovelsOutput, error) {
	if s.catalog == nil {
		return nil, apierrors.NewError(apierrors.CodeStorageOperationFail, "catalog not configured on this facade")
	}

	filter := catalogFilterFrom(input)
	summaries, err := s.catalog.ListNovels(ctx, filter)
	if err != nil {
		return nil, apierrors.Wrap(err, apierrors.CodeStorageOperationFail, "list novels")
	}

	items := make([]NovelSummaryResponse, len(summaries))
	for i, sum := range summaries {
		items[i] = NovelSummaryResponse{
			NovelID:        string(sum.NovelID),
			SourceID:       sum.SourceID,
			Title:          sum.Title,
			Authors:        sum.Authors,
			Status:         string(sum.Status),
			TotalChapters:  sum.TotalChapters,
			StoredChapters: sum.StoredChapters,
			StoredAt:       sum.StoredAt,
		}
	}

	return &ListNovelsOutput{Body: ListNovelsResponse{Items: items, Total: len(items)}}, nil
}

func (s *Server) handleGetNovel(ctx context.Context, input *GetNovelInput) (*NovelOutput, error) {
	if s.storage == nil {
		return nil, apierrors.NewError(apierrors.CodeStorageOperationFail, "storage not configured on this facade")
	}

	meta, err := s.storage.GetNovel(ctx, model.NovelID(input.ID))
	if err != nil {
		return nil, err
	}

	return &NovelOutput{Body: meta.Novel}, nil
}

// CoverRedirectOutput points the caller at the raw streaming route.
type CoverRedirectOutput struct {
	Status   int
	Location string `header:"Location"`
}

// StatusCode returns the HTTP status code for the redirect.
func (o *CoverRedirectOutput) StatusCode() int {
	return o.Status
}

func (s *Server) handleGetNovelCover(ctx context.Context, input *GetNovelInput) (*CoverRedirectOutput, error) {
	if s.storage == nil {
		return nil, apierrors.NewError(apierrors.CodeStorageOperationFail, "storage not configured on this facade")
	}

	if _, err := s.storage.GetCoverAsset(ctx, model.NovelID(input.ID)); err != nil {
		return nil, err
	}

	return &CoverRedirectOutput{
		Status:   http.StatusTemporaryRedirect,
		Location: "/covers/" + url.PathEscape(input.ID),
	}, nil
}

// handleServeNovelCover streams a stored cover's raw bytes. It bypasses
// huma since the response's content type varies per image and isn't
// known until the bytes are read.
func (s *Server) handleServeNovelCover(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		http.Error(w, "storage not configured on this facade", http.StatusNotFound)
		return
	}

	id := chi.URLParam(r, "id")

	data, err := s.storage.GetCoverAsset(r.Context(), model.NovelID(id))
	if err != nil {
		http.Error(w, "cover not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

func (s *Server) handleStats(ctx context.Context, _ *struct{}) (*StatsOutput, error) {
	if s.catalog == nil {
		return nil, apierrors.NewError(apierrors.CodeStorageOperationFail, "catalog not configured on this facade")
	}

	stats, err := s.catalog.Stats(ctx)
	if err != nil {
		return nil, apierrors.Wrap(err, apierrors.CodeStorageOperationFail, "compute catalog stats")
	}

	return &StatsOutput{Body: StatsResponse{
		TotalNovels:    stats.TotalNovels,
		TotalChapters:  stats.TotalChapters,
		NovelsBySource: stats.NovelsBySource,
	}}, nil
}
