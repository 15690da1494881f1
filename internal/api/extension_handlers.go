package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	apierrors "github.com/inkbound/novelhost/internal/errors"
)

func (s *Server) registerExtensionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listExtensions",
		Method:      http.MethodGet,
		Path:        "/api/v1/extensions",
		Summary:     "List installed extensions",
		Description: "Returns every extension currently installed in this host's registry",
		Tags:        []string{"Extensions"},
	}, s.handleListExtensions)
}

type URLPatternResponse struct {
	Pattern  string `json:"pattern" doc:"URL prefix this extension claims to handle"`
	Priority int    `json:"priority" doc:"Preference when another installed extension's pattern also matches"`
}

type ExtensionResponse struct {
	ID          string               `json:"id" doc:"Extension id"`
	Version     string               `json:"version" doc:"Installed version"`
	SourceStore string               `json:"source_store" doc:"Extension store the package was installed from"`
	URLPatterns []URLPatternResponse `json:"url_patterns" doc:"URL patterns this extension claims to handle"`
	InstalledAt string               `json:"installed_at" doc:"RFC3339 install timestamp"`
}

type ListExtensionsResponse struct {
	Items []ExtensionResponse `json:"items"`
}

type ListExtensionsOutput struct {
	Body ListExtensionsResponse
}

func (s *Server) handleListExtensions(ctx context.Context, _ *struct{}) (*ListExtensionsOutput, error) {
	if s.registry == nil {
		return nil, apierrors.NewError(apierrors.CodeStorageOperationFail, "registry not configured on this facade")
	}

	installed := s.registry.ListInstalled()
	items := make([]ExtensionResponse, len(installed))
	for i, ext := range installed {
		patterns := make([]URLPatternResponse, len(ext.URLPatterns))
		for j, up := range ext.URLPatterns {
			patterns[j] = URLPatternResponse{Pattern: up.Pattern, Priority: up.Priority}
		}
		items[i] = ExtensionResponse{
			ID:          ext.ID,
			Version:     ext.Version,
			SourceStore: ext.SourceStore,
			URLPatterns: patterns,
			InstalledAt: ext.InstalledAt.Format("2006-01-02T15:04:05Z07:00"),
		}
	}

	return &ListExtensionsOutput{Body: ListExtensionsResponse{Items: items}}, nil
}
