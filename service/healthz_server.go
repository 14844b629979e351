package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"

	"github.com/rs/cors"
)

// HealthzServer answers liveness checks. The response always reports the
// process as up; when a test run has completed, its outcome is included so
// the endpoint doubles as a cheap "what happened last" probe.
type HealthzServer struct {
	state  *RunState
	server *http.Server
}

type healthzResponse struct {
	Status  string       `json:"status"`
	LastRun *RunSnapshot `json:"last_run,omitempty"`
}

// NewHealthzServer creates a healthz server reading run outcomes from state.
// A nil state is allowed; the endpoint then only reports liveness.
func NewHealthzServer(state *RunState) *HealthzServer {
	return &HealthzServer{state: state}
}

func (h *HealthzServer) Start(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.Handle)
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
	})
	h.server = &http.Server{
		Handler: c.Handler(mux),
		Addr:    addr,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	return h.server.ListenAndServe()
}

func (h *HealthzServer) Shutdown() error {
	return h.server.Shutdown(context.Background())
}

func (h *HealthzServer) Handle(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Received health check request", "path", r.URL.Path)

	resp := healthzResponse{Status: "ok"}
	if h.state != nil {
		if snap, ok := h.state.Last(); ok {
			resp.LastRun = &snap
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to write health check response", "error", err)
	}
}
