// Package api serves the robot's HTTP surface: the command routes, status
// and health endpoints, an event stream and prometheus metrics.
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/smazurov/marvin/internal/api/models"
	"github.com/smazurov/marvin/internal/dispatch"
	"github.com/smazurov/marvin/internal/events"
	"github.com/smazurov/marvin/internal/led"
	"github.com/smazurov/marvin/internal/logging"
	"github.com/smazurov/marvin/internal/robot"
	"github.com/smazurov/marvin/internal/version"
)

// Commander runs a command and returns its response text.
type Commander interface {
	Do(ctx context.Context, cmd dispatch.Command) (dispatch.Response, error)
}

// RobotInfo reports what the assembly produced.
type RobotInfo interface {
	Devices() []robot.DeviceStatus
	Degraded() bool
	Capabilities() []string
}

// StatusLED is the host board LED manager.
type StatusLED interface {
	GetController() led.Controller
	Pattern() string
}

// Options are the collaborators the server needs. StatusLED and
// PrometheusHandler are optional; EventBus may be nil, which disables the
// event stream and EPO reporting.
type Options struct {
	Commands          Commander
	Robot             RobotInfo
	EventBus          *events.Bus
	StatusLED         StatusLED
	PrometheusHandler http.Handler
}

// Server is the HTTP listener.
type Server struct {
	api     huma.API
	mux     *http.ServeMux
	options *Options
	cors    CORSConfig
	logger  *slog.Logger

	epo         atomic.Pointer[bool]
	unsubscribe func()

	mu         sync.Mutex
	httpServer *http.Server
}

// NewServer creates the API server and registers every route.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("Marvin API", version.Version)
	config.Info.Description = "Command and status API for the Marvin robot"
	config.Servers = []*huma.Server{}

	server := &Server{
		api:     humago.New(mux, config),
		mux:     mux,
		options: opts,
		cors:    corsConfig,
		logger:  logging.GetLogger("api"),
	}

	server.api.UseMiddleware(NewCORSMiddleware(corsConfig))
	server.api.UseMiddleware(HTTPLoggingMiddleware)

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	if opts.EventBus != nil {
		server.unsubscribe = opts.EventBus.Subscribe(func(e events.EPOEvent) {
			tripped := e.Tripped
			server.epo.Store(&tripped)
		})
	}

	server.registerRoutes()
	return server
}

// GetMux returns the underlying HTTP ServeMux.
func (s *Server) GetMux() *http.ServeMux {
	return s.mux
}

// GetAPI returns the Huma API instance.
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Start binds addr, calls onReady once the socket is listening, then serves
// until Stop. It returns http.ErrServerClosed after a clean Stop.
func (s *Server) Start(addr string, onReady func()) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.Info("Starting API server", "addr", ln.Addr().String())
	s.logger.Info("OpenAPI documentation available", "url", "http://"+ln.Addr().String()+"/docs")
	if onReady != nil {
		onReady()
	}
	return srv.Serve(ln)
}

// Stop closes the listener and every open connection without waiting.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")

	if s.unsubscribe != nil {
		s.unsubscribe()
	}

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv != nil {
		return srv.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "API is healthy",
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		info := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				GoVersion: info.GoVersion,
				Platform:  info.Platform,
			},
		}, nil
	})

	s.registerRobotRoutes()
	s.registerLEDRoutes()
	s.registerSSERoutes()
	s.registerCommandRoutes()
}

// registerCommandRoutes wires the command surface. Every group gets a
// documented /<group>/{verb} operation; any other path falls through to the
// dispatcher so it can answer "Request not recognised".
func (s *Server) registerCommandRoutes() {
	for _, group := range dispatch.Groups() {
		huma.Register(s.api, huma.Operation{
			OperationID: "run-" + group + "-command",
			Method:      http.MethodGet,
			Path:        "/" + group + "/{verb}",
			Summary:     "Run " + group + " command",
			Description: "Verbs: " + strings.Join(dispatch.Verbs(group), ", ") + ". " +
				"The response is a single line of text; failures and unavailable " +
				"capabilities are reported in the text.",
			Tags:   []string{"commands"},
			Errors: []int{503},
		}, func(ctx context.Context, input *models.CommandInput) (*models.CommandOutput, error) {
			query := url.Values{}
			if input.Speed != "" {
				query.Set("speed", input.Speed)
			}
			if input.Duration != "" {
				query.Set("duration", input.Duration)
			}

			resp, err := s.options.Commands.Do(ctx, dispatch.Command{
				Path:  "/" + group + "/" + input.Verb,
				Query: query,
			})
			if err != nil {
				return nil, commandError(err)
			}
			return &models.CommandOutput{
				ContentType: "text/plain; charset=utf-8",
				Body:        []byte(resp.Text),
			}, nil
		})
	}

	s.mux.HandleFunc("GET /", s.handleUnmatched)
}

func (s *Server) handleUnmatched(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", s.cors.AllowOrigin)

	resp, err := s.options.Commands.Do(r.Context(), dispatch.Command{Path: r.URL.Path, Query: r.URL.Query()})
	if err != nil {
		s.logger.Debug("Command not handled", "path", r.URL.Path, "error", err)
		http.Error(w, "robot is not accepting commands", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := io.WriteString(w, resp.Text); err != nil {
		s.logger.Debug("Failed to write response", "path", r.URL.Path, "error", err)
	}
}

func commandError(err error) error {
	if errors.Is(err, dispatch.ErrStopped) {
		return huma.Error503ServiceUnavailable("Robot is shutting down")
	}
	return huma.Error503ServiceUnavailable("Command not handled", err)
}
