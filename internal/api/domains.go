package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/holus/internal/api/models"
	"github.com/smazurov/holus/internal/supervisor"
)

func (s *Server) registerDomainRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-domains",
		Method:      http.MethodGet,
		Path:        "/api/domains",
		Summary:     "List Domains",
		Description: "Status of every registered domain",
		Tags:        []string{"domains"},
		Errors:      []int{401, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.DomainListResponse, error) {
		if s.status == nil {
			return nil, huma.Error503ServiceUnavailable("supervisor not attached")
		}

		statuses := s.status.Domains()
		out := make([]models.DomainInfo, len(statuses))
		for i, st := range statuses {
			out[i] = ToDomainInfo(st)
		}
		return &models.DomainListResponse{
			Body: models.DomainListData{Domains: out, Count: len(out)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-domain",
		Method:      http.MethodGet,
		Path:        "/api/domains/{name}",
		Summary:     "Get Domain",
		Description: "Status of one domain",
		Tags:        []string{"domains"},
		Errors:      []int{401, 404, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.DomainRequest) (*models.DomainResponse, error) {
		if s.status == nil {
			return nil, huma.Error503ServiceUnavailable("supervisor not attached")
		}

		st, ok := s.status.Domain(input.Name)
		if !ok {
			return nil, huma.Error404NotFound("domain not found: " + input.Name)
		}
		return &models.DomainResponse{Body: ToDomainInfo(st)}, nil
	})
}

// ToDomainInfo converts a supervisor status into its API form.
func ToDomainInfo(st supervisor.DomainStatus) models.DomainInfo {
	info := models.DomainInfo{
		Name:          st.Name,
		Command:       st.Command,
		State:         string(st.State),
		PID:           st.PID,
		RestartCount:  st.RestartCount,
		LastRestartAt: formatTime(st.LastRestartAt),
		StartedAt:     formatTime(st.StartedAt),
		LastExitCode:  st.LastExitCode,
	}
	if st.LastFailure != nil {
		info.LastFailure = &models.FailureInfo{
			Kind:    string(st.LastFailure.Kind),
			Message: st.LastFailure.Message,
			At:      formatTime(st.LastFailure.At),
		}
	}
	if st.HeartbeatAge != nil {
		secs := st.HeartbeatAge.Seconds()
		info.HeartbeatAgeSeconds = &secs
	}
	return info
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
