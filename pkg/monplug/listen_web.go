package monplug

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WebServer exposes the registered checks over a small http api:
//
//	GET /api/v1/checks            list of registered checks
//	GET /api/v1/check/{name}      run a check, args as query parameters
//	GET /metrics                  prometheus metrics
type WebServer struct {
	snc        *Agent
	server     *http.Server
	registry   *prometheus.Registry
	checkCount *prometheus.CounterVec
}

func NewWebServer(snc *Agent) *WebServer {
	registry := prometheus.NewRegistry()
	checkCount := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monplug_check_total",
			Help: "Number of check executions by check name and result state.",
		},
		[]string{"check", "state"},
	)
	registry.MustRegister(checkCount)

	listener := &WebServer{
		snc:        snc,
		registry:   registry,
		checkCount: checkCount,
	}

	router := chi.NewRouter()
	router.Get("/api/v1/checks", listener.serveCheckList)
	router.Get("/api/v1/check/{name}", listener.serveCheck)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	listener.server = &http.Server{
		Addr:         snc.Config().Listener.Bind,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	return listener
}

// Serve blocks until the server fails or Shutdown is called.
func (l *WebServer) Serve() error {
	log.Infof("listening on http://%s", l.server.Addr)
	if err := l.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listener: %s", err.Error())
	}

	return nil
}

func (l *WebServer) Shutdown(ctx context.Context) error {
	return l.server.Shutdown(ctx)
}

type checkInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (l *WebServer) serveCheckList(res http.ResponseWriter, _ *http.Request) {
	checks := make([]checkInfo, 0, len(AvailableChecks))
	for _, name := range CheckNames() {
		check := AvailableChecks[name].Handler().Build()
		checks = append(checks, checkInfo{Name: check.Name(), Description: check.Description()})
	}

	writeJSON(res, http.StatusOK, checks)
}

type checkResponse struct {
	Check     string   `json:"check"`
	State     int64    `json:"state"`
	StateText string   `json:"state_text"`
	Output    string   `json:"output"`
	Details   []string `json:"details,omitempty"`
	Perfdata  []string `json:"perfdata,omitempty"`
}

func (l *WebServer) serveCheck(res http.ResponseWriter, req *http.Request) {
	name := chi.URLParam(req, "name")
	if _, ok := AvailableChecks[name]; !ok {
		writeJSON(res, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("unknown check: %s", name)})

		return
	}

	// each query parameter becomes one key=value check argument, bare
	// parameters stay bare so passthrough checks see them unchanged
	args := make([]string, 0)
	for key, values := range req.URL.Query() {
		for _, value := range values {
			if value == "" {
				args = append(args, key)
			} else {
				args = append(args, fmt.Sprintf("%s=%s", key, value))
			}
		}
	}

	result := l.snc.RunCheck(req.Context(), name, args)
	l.checkCount.WithLabelValues(name, StateString(result.State)).Inc()

	perfdata := make([]string, 0, len(result.Metrics))
	for _, metric := range result.Metrics {
		perfdata = append(perfdata, metric.String())
	}

	writeJSON(res, http.StatusOK, checkResponse{
		Check:     name,
		State:     result.State,
		StateText: StateString(result.State),
		Output:    result.Output,
		Details:   result.Details,
		Perfdata:  perfdata,
	})
}

func writeJSON(res http.ResponseWriter, code int, payload interface{}) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(code)
	if err := json.NewEncoder(res).Encode(payload); err != nil {
		log.Errorf("json encode: %s", err.Error())
	}
}
