package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/marvin/internal/api/models"
	"github.com/smazurov/marvin/internal/events"
)

// registerSSERoutes registers the event stream.
func (s *Server) registerSSERoutes() {
	if s.options.EventBus == nil {
		return
	}

	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Device availability, EPO latch changes and every handled command",
		Tags:        []string{"events"},
	}, map[string]any{
		"connected":     models.StreamOpened{},
		"device-status": events.DeviceStatusEvent{},
		"epo":           events.EPOEvent{},
		"command":       events.CommandEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 10)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.DeviceStatusEvent](s.options.EventBus, eventCh),
			events.SubscribeToChannel[events.EPOEvent](s.options.EventBus, eventCh),
			events.SubscribeToChannel[events.CommandEvent](s.options.EventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		if err := s.sendSnapshot(send); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}

// sendSnapshot opens a stream with a connected event followed by the current
// device and EPO state, so clients see headers and state before the first
// change on the bus.
func (s *Server) sendSnapshot(send sse.Sender) error {
	now := time.Now().Format(time.RFC3339)
	if err := send.Data(models.StreamOpened{Message: "SSE connection established", Timestamp: now}); err != nil {
		return err
	}

	if s.options.Robot != nil {
		for _, d := range s.options.Robot.Devices() {
			if !d.Configured {
				continue
			}
			if err := send.Data(events.DeviceStatusEvent{
				Device:    d.Name,
				Available: d.Available,
				Error:     d.Error,
				Timestamp: now,
			}); err != nil {
				return err
			}
		}
	}

	if tripped := s.epo.Load(); tripped != nil {
		return send.Data(events.EPOEvent{Tripped: *tripped, Timestamp: now})
	}
	return nil
}
