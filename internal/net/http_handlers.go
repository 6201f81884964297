package net

import (
	"encoding/json"
	nethttp "net/http"
	"net/http/pprof"
	"strconv"
	"time"

	"snake-arena/server/internal/hub"
	"snake-arena/server/internal/journal"
	"snake-arena/server/internal/observability"
	"snake-arena/server/internal/telemetry"
)

// DiagnosticsSource exposes hub state for the diagnostics endpoint.
type DiagnosticsSource interface {
	Diagnostics() hub.Diagnostics
}

// FrameSource exposes the window of recently broadcast frames.
type FrameSource interface {
	Window() (size int, oldest, newest uint64)
	FrameAt(tick uint64) (journal.Frame, bool)
}

// MetricsSource exposes the named counters of the metrics registry.
type MetricsSource interface {
	Snapshot() map[string]uint64
}

// HTTPHandlerConfig configures the HTTP surface.
type HTTPHandlerConfig struct {
	Logger telemetry.Logger
	// WebSocket, when set, is mounted at /ws.
	WebSocket nethttp.Handler
	// Frames, when set, is summarised in /diagnostics and served at
	// /frames/{tick}.
	Frames        FrameSource
	Metrics       MetricsSource
	Observability observability.Config
}

type frameWindow struct {
	Size       int    `json:"size"`
	OldestTick uint64 `json:"oldestTick"`
	NewestTick uint64 `json:"newestTick"`
}

// NewHTTPHandler serves /health, /diagnostics and optionally /ws, /frames
// and the profiling endpoints.
func NewHTTPHandler(source DiagnosticsSource, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		payload := struct {
			Status       string            `json:"status"`
			ServerTime   int64             `json:"serverTime"`
			Hub          hub.Diagnostics   `json:"hub"`
			RecentFrames *frameWindow      `json:"recentFrames,omitempty"`
			Metrics      map[string]uint64 `json:"metrics,omitempty"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			Hub:        source.Diagnostics(),
		}
		if cfg.Frames != nil {
			size, oldest, newest := cfg.Frames.Window()
			payload.RecentFrames = &frameWindow{Size: size, OldestTick: oldest, NewestTick: newest}
		}
		if cfg.Metrics != nil {
			payload.Metrics = cfg.Metrics.Snapshot()
		}
		writeJSON(w, logger, "diagnostics", payload)
	})

	if cfg.Frames != nil {
		mux.HandleFunc("GET /frames/{tick}", func(w nethttp.ResponseWriter, r *nethttp.Request) {
			tick, err := strconv.ParseUint(r.PathValue("tick"), 10, 64)
			if err != nil {
				httpError(w, "invalid tick", nethttp.StatusBadRequest)
				return
			}
			frame, ok := cfg.Frames.FrameAt(tick)
			if !ok {
				httpError(w, "frame not retained", nethttp.StatusNotFound)
				return
			}
			writeJSON(w, logger, "frame", frame)
		})
	}

	if cfg.WebSocket != nil {
		mux.Handle("/ws", cfg.WebSocket)
	}

	if cfg.Observability.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
		logger.Printf("[http] profiling endpoints enabled")
	}

	return mux
}

func writeJSON(w nethttp.ResponseWriter, logger telemetry.Logger, what string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Printf("[http] encode %s: %v", what, err)
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
