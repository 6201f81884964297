package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"snake-arena/server/internal/hub"
	"snake-arena/server/internal/journal"
	servernet "snake-arena/server/internal/net"
	"snake-arena/server/internal/net/ws"
	"snake-arena/server/internal/observability"
	"snake-arena/server/internal/settings"
	"snake-arena/server/internal/sim"
	"snake-arena/server/internal/telemetry"
	"snake-arena/server/logging"
	loggingSinks "snake-arena/server/logging/sinks"
)

const (
	shutdownTimeout = 5 * time.Second
	journalWindow   = 300
)

type Config struct {
	Logger telemetry.Logger
	Env    settings.Env
	// Console receives the console log sink; os.Stdout when nil.
	Console io.Writer
}

// Server owns every long-lived component of a running session.
type Server struct {
	logger   telemetry.Logger
	router   *logging.Router
	hub      *hub.Hub
	loop     *sim.Loop
	recorder *journal.Recorder
	tcp      *servernet.TCPServer
	ws       *ws.Handler
	http     *http.Server
	httpLn   net.Listener
	metrics  *logging.Metrics
	counters *telemetry.Counters
}

// Run starts the server and blocks until ctx is cancelled or a listener
// fails.
func Run(ctx context.Context, cfg Config) error {
	srv, err := New(cfg)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

// New loads the settings file and binds the listeners. Nothing ticks until
// Run is called.
func New(cfg Config) (*Server, error) {
	telemetryLogger := cfg.Logger
	if telemetryLogger == nil {
		telemetryLogger = telemetry.WrapLogger(log.Default())
	}

	fallbackLogger := log.Default()
	if provider, ok := telemetryLogger.(interface{ StandardLogger() *log.Logger }); ok {
		if candidate := provider.StandardLogger(); candidate != nil {
			fallbackLogger = candidate
		}
	}

	env := cfg.Env
	gameSettings, err := settings.Load(env.SettingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	seed := env.Seed
	if seed == "" {
		seed = strconv.FormatInt(time.Now().UnixNano(), 10)
	}

	router, err := newRouter(cfg, fallbackLogger)
	if err != nil {
		return nil, err
	}

	s := &Server{logger: telemetryLogger, router: router, counters: telemetry.NewCounters()}
	if err := s.build(env, gameSettings, seed); err != nil {
		s.closeAll(context.Background())
		return nil, err
	}
	return s, nil
}

func newRouter(cfg Config, fallback *log.Logger) (*logging.Router, error) {
	env := cfg.Env
	logConfig := logging.DefaultConfig()
	if len(env.LogSinks) > 0 {
		logConfig.EnabledSinks = env.LogSinks
	}
	logConfig.MinimumSeverity = env.LogLevel
	logConfig.Fields = map[string]any{"service": "snake-arena"}
	logConfig.JSON.FilePath = env.LogJSONPath

	console := cfg.Console
	if console == nil {
		console = os.Stdout
	}
	sinks := map[string]logging.Sink{
		"console": loggingSinks.NewConsoleSink(console, logConfig.Console),
	}
	if logConfig.HasSink("json") {
		jsonSink, err := loggingSinks.OpenJSON(logConfig.JSON.FilePath, logConfig.JSON.FlushInterval)
		if err != nil {
			return nil, fmt.Errorf("failed to open json log sink: %w", err)
		}
		sinks["json"] = jsonSink
	}

	router, err := logging.NewRouter(logConfig, logging.SystemClock{}, fallback, sinks)
	if err != nil {
		return nil, fmt.Errorf("failed to construct logging router: %w", err)
	}
	return router, nil
}

func (s *Server) build(env settings.Env, gameSettings settings.Settings, seed string) error {
	s.metrics = logging.NewMetrics()
	metrics := telemetry.WrapMetrics(s.metrics)
	worldCfg := gameSettings.WorldConfig(seed)

	header := journal.HeaderFor(worldCfg, gameSettings.FramePeriod(), time.Now())
	recorderCfg := journal.RecorderConfig{Window: journal.New(journalWindow, 0)}
	var err error
	if env.JournalPath != "" {
		s.recorder, err = journal.Create(env.JournalPath, header, recorderCfg, s.counters, s.logger, nil)
	} else {
		s.recorder, err = journal.NewRecorder(nil, header, recorderCfg, s.counters, s.logger, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}

	s.hub, err = hub.New(hub.Config{
		World:       worldCfg,
		RespawnRate: gameSettings.RespawnRate,
		FramePeriod: gameSettings.FramePeriod(),
	}, hub.Deps{
		Publisher: s.router,
		Logger:    s.logger,
		Metrics:   metrics,
		Counters:  s.counters,
		Recorder:  s.recorder,
	})
	if err != nil {
		return fmt.Errorf("failed to construct hub: %w", err)
	}

	s.loop = sim.NewLoop(s.hub, sim.LoopConfig{FramePeriod: gameSettings.FramePeriod()}, sim.Deps{
		Logger:    s.logger,
		Metrics:   metrics,
		Publisher: s.router,
	}, sim.LoopHooks{
		AfterStep: func(result sim.LoopResult) {
			s.counters.RecordTick(result.Duration, result.Budget)
		},
	})

	s.tcp, err = servernet.ListenTCP(s.hub, servernet.TCPConfig{
		Address:   env.Addr,
		Publisher: s.router,
		Logger:    s.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", env.Addr, err)
	}

	if env.HTTPAddr != "" {
		s.ws = ws.NewHandler(s.hub, ws.HandlerConfig{Logger: s.logger, Publisher: s.router})
		handler := servernet.NewHTTPHandler(s.hub, servernet.HTTPHandlerConfig{
			Logger:        s.logger,
			WebSocket:     s.ws,
			Frames:        s.recorder.Window(),
			Metrics:       s.metrics,
			Observability: observability.Config{EnablePprof: env.EnablePprof},
		})
		s.httpLn, err = net.Listen("tcp", env.HTTPAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", env.HTTPAddr, err)
		}
		s.http = &http.Server{Addr: env.HTTPAddr, Handler: handler}
	}

	s.logger.Printf("session ready: size=%d walls=%d frame=%s respawn=%d seed=%s",
		worldCfg.Size, len(worldCfg.Walls), gameSettings.FramePeriod(), gameSettings.RespawnRate, seed)
	return nil
}

// TCPAddr returns the bound game listener address.
func (s *Server) TCPAddr() string {
	if s == nil || s.tcp == nil {
		return ""
	}
	return s.tcp.Addr().String()
}

// HTTPAddr returns the bound HTTP listener address, or "" when HTTP is off.
func (s *Server) HTTPAddr() string {
	if s == nil || s.httpLn == nil {
		return ""
	}
	return s.httpLn.Addr().String()
}

// Hub exposes the running hub.
func (s *Server) Hub() *hub.Hub {
	return s.hub
}

// Run ticks the simulation and serves clients until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	loopCtx, stopLoop := context.WithCancel(context.Background())
	var loopWG sync.WaitGroup
	loopWG.Add(1)
	go func() {
		defer loopWG.Done()
		s.loop.Run(loopCtx)
	}()

	errs := make(chan error, 2)
	go func() {
		s.logger.Printf("game server listening on %s", s.tcp.Addr())
		if err := s.tcp.Serve(); err != nil {
			errs <- fmt.Errorf("tcp server failed: %w", err)
		}
	}()
	if s.http != nil {
		go func() {
			s.logger.Printf("http server listening on %s", s.httpLn.Addr())
			if err := s.http.Serve(s.httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- fmt.Errorf("http server failed: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errs:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Printf("shutting down")
	stopLoop()
	loopWG.Wait()
	if err := s.closeAll(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// closeAll releases whatever build managed to construct.
func (s *Server) closeAll(ctx context.Context) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if s.tcp != nil {
		keep(s.tcp.Close())
	}
	if s.http != nil {
		keep(s.http.Shutdown(ctx))
	}
	if s.httpLn != nil {
		// Already closed when Serve ran.
		_ = s.httpLn.Close()
	}
	if s.hub != nil {
		s.hub.Close()
	}
	if s.ws != nil {
		// Upgraded connections are hijacked, so Shutdown leaves them open.
		s.ws.Close()
		s.ws.Wait()
	}
	if s.recorder != nil {
		if err := s.recorder.Close(ctx); err != nil && !errors.Is(err, journal.ErrClosed) {
			keep(fmt.Errorf("failed to close journal: %w", err))
		}
	}
	if s.router != nil {
		if err := s.router.Close(ctx); err != nil {
			s.logger.Printf("failed to close logging router: %v", err)
		}
	}
	return firstErr
}
