package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/marvin/internal/api/models"
)

// registerLEDRoutes exposes the host status LED when it is managed.
func (s *Server) registerLEDRoutes() {
	if s.options.StatusLED == nil {
		s.logger.Debug("Status LED not managed, skipping LED routes")
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "get-status-led",
		Method:      http.MethodGet,
		Path:        "/api/leds",
		Summary:     "Status LED",
		Description: "LED types and patterns for this board and the pattern currently shown",
		Tags:        []string{"leds"},
	}, func(_ context.Context, _ *struct{}) (*models.LEDResponse, error) {
		ctrl := s.options.StatusLED.GetController()
		return &models.LEDResponse{
			Body: models.LEDData{
				AvailableTypes:    ctrl.Available(),
				AvailablePatterns: ctrl.Patterns(),
				Pattern:           s.options.StatusLED.Pattern(),
			},
		}, nil
	})
}
