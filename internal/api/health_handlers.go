package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns facade health status with component checks",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy, degraded, or unhealthy"`
	Components map[string]componentHealth `json:"components" doc:"Individual component statuses"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	components := make(map[string]componentHealth)
	overall := "healthy"

	components["catalog"] = s.checkCatalog(ctx)
	components["search"] = s.checkSearch(ctx)
	components["registry"] = s.checkRegistry()

	for _, c := range components {
		if c.Status == "unhealthy" {
			overall = "unhealthy"
		} else if c.Status == "degraded" && overall == "healthy" {
			overall = "degraded"
		}
	}

	return &HealthOutput{Body: HealthResponse{Status: overall, Components: components}}, nil
}

func (s *Server) checkCatalog(ctx context.Context) componentHealth {
	if s.catalog == nil {
		return componentHealth{Status: "degraded", Message: "catalog not configured"}
	}
	return timedHealth(func() error {
		_, err := s.catalog.Stats(ctx)
		return err
	})
}

func (s *Server) checkSearch(ctx context.Context) componentHealth {
	if s.search == nil {
		return componentHealth{Status: "degraded", Message: "search index not configured"}
	}
	return timedHealth(func() error {
		_, err := s.search.DocumentCount()
		return err
	})
}

func (s *Server) checkRegistry() componentHealth {
	if s.registry == nil {
		return componentHealth{Status: "degraded", Message: "registry not configured"}
	}
	return componentHealth{Status: "healthy"}
}
