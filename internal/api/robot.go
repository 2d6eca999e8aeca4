package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/marvin/internal/api/models"
)

func (s *Server) registerRobotRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-robot",
		Method:      http.MethodGet,
		Path:        "/api/robot",
		Summary:     "Robot status",
		Description: "Configured devices, the capabilities they provide and the EPO latch as last read",
		Tags:        []string{"robot"},
	}, func(_ context.Context, _ *struct{}) (*models.RobotResponse, error) {
		info := s.options.Robot

		devices := info.Devices()
		data := models.RobotData{
			Devices:      make([]models.DeviceData, 0, len(devices)),
			Capabilities: info.Capabilities(),
			Degraded:     info.Degraded(),
			EPOTripped:   s.epo.Load(),
		}
		if data.Capabilities == nil {
			data.Capabilities = []string{}
		}
		for _, d := range devices {
			data.Devices = append(data.Devices, models.DeviceData{
				Name:       d.Name,
				Configured: d.Configured,
				Available:  d.Available,
				Error:      d.Error,
			})
		}
		return &models.RobotResponse{Body: data}, nil
	})
}
