package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/speedrun-hq/speedrun-executor/pkg/chainclient"
	"github.com/speedrun-hq/speedrun-executor/pkg/chains"
	"github.com/speedrun-hq/speedrun-executor/pkg/circuitbreaker"
	"github.com/speedrun-hq/speedrun-executor/pkg/logger"
)

// ChainStatus reads the state reported for one chain
type ChainStatus interface {
	Fees(ctx context.Context) (*chainclient.Fees, error)
}

// Execution is the last transaction the runner finished
type Execution struct {
	Mode     string    `json:"mode"`
	Status   string    `json:"status"`
	ID       string    `json:"id,omitempty"`
	Error    string    `json:"error,omitempty"`
	Finished time.Time `json:"finished"`
}

// Server represents a health check HTTP server
type Server struct {
	port          string
	chains        map[uint64]ChainStatus
	bundlers      map[uint64]bool
	breaker       *circuitbreaker.CircuitBreaker
	metricsAPIKey string
	logger        logger.Logger

	mu   sync.Mutex
	last *Execution
	srv  *http.Server
}

// NewServer creates a new health check server. bundlers lists the chains that can send user operations.
func NewServer(port, metricsAPIKey string, chainStatus map[uint64]ChainStatus, bundlers map[uint64]bool, breaker *circuitbreaker.CircuitBreaker, log logger.Logger) *Server {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Server{
		port:          port,
		chains:        chainStatus,
		bundlers:      bundlers,
		breaker:       breaker,
		metricsAPIKey: metricsAPIKey,
		logger:        log,
	}
}

// SetLastExecution records the outcome reported on /status
func (s *Server) SetLastExecution(e Execution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &e
}

// metricsAuthMiddleware is a middleware that checks for a valid API key
func (s *Server) metricsAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip auth if no API key is configured
		if s.metricsAPIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		// Get API key from Authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}

		// Check if the header has the correct format
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
			return
		}

		// Validate API key
		if parts[1] != s.metricsAPIKey {
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Handler returns the routes of the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Readiness: at least one chain and a closed backend breaker
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if len(s.chains) == 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("No chain configured"))
			return
		}
		if s.breaker != nil && s.breaker.IsOpen() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("Backend circuit breaker open"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Ready"))
	})

	mux.HandleFunc("/status", s.handleStatus)

	// Circuit breaker admin control endpoint
	mux.HandleFunc("/circuit/reset", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if s.breaker == nil {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("No circuit breaker configured"))
			return
		}

		s.breaker.Reset()
		s.logger.Notice("Backend circuit breaker reset through admin endpoint")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Circuit breaker reset"))
	})

	// Expose Prometheus metrics with API key authentication
	mux.Handle("/metrics", s.metricsAuthMiddleware(promhttp.Handler()))
	return mux
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := make(map[string]interface{})

	chainStatus := make(map[string]interface{})
	for chainID, c := range s.chains {
		entry := map[string]interface{}{
			"name":    chains.GetChainName(chainID),
			"bundler": s.bundlers[chainID],
		}
		if fees, err := c.Fees(r.Context()); err == nil {
			entry["max_fee_per_gas"] = fees.MaxFeePerGas.String()
			entry["max_priority_fee_per_gas"] = fees.MaxPriorityFeePerGas.String()
		} else {
			entry["error"] = err.Error()
		}
		chainStatus[fmt.Sprintf("chain_%d", chainID)] = entry
	}
	status["chains"] = chainStatus

	if s.breaker != nil {
		state := s.breaker.State()
		circuit := map[string]interface{}{
			"enabled":   state.Enabled,
			"state":     "closed",
			"failures":  state.Failures,
			"threshold": state.Threshold,
			"window":    state.Window.String(),
		}
		if !state.LastFailure.IsZero() {
			circuit["last_failure"] = state.LastFailure
		}
		if state.Open {
			circuit["state"] = "open"
			circuit["tripped_at"] = state.TrippedAt
		}
		status["circuit"] = circuit
	}

	s.mu.Lock()
	if s.last != nil {
		status["last_execution"] = *s.last
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Error("Error encoding status JSON: %v", err)
	}
}

// Start serves until Shutdown is called
func (s *Server) Start() {
	s.mu.Lock()
	s.srv = &http.Server{Addr: ":" + s.port, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	srv := s.srv
	s.mu.Unlock()

	s.logger.Info("Starting health and metrics server on port %s", s.port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("Health server error: %v", err)
	}
}

// Shutdown stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
