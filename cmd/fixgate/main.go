package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rsouth/fixgate/internal/config"
	"github.com/rsouth/fixgate/internal/engine"
	"github.com/rsouth/fixgate/internal/fix"
	"github.com/rsouth/fixgate/internal/session"
	"github.com/rsouth/fixgate/internal/store"
	"github.com/rsouth/fixgate/pkg/logger"
)

func main() {
	configPath := flag.String("config", "fixgate.yaml", "path to configuration file")
	flag.Parse()

	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	st, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	eng := engine.New(log, st, loggingApplication{log: log.Named("app")})

	var hasAcceptor bool
	for _, sc := range cfg.Sessions {
		settings, err := sc.Settings()
		if err != nil {
			return err
		}
		sid, err := eng.CreateSession(settings)
		if err != nil {
			return err
		}
		if settings.Role == session.Acceptor {
			hasAcceptor = true
			continue
		}
		if err := eng.Logon(sid); err != nil {
			return err
		}
	}

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(cfg.MetricsAddress, nil); err != nil {
			log.Warn("metrics endpoint failed", zap.Error(err))
		}
	}()

	errCh := make(chan error, 1)
	if hasAcceptor {
		go func() { errCh <- eng.ListenAndServe(cfg.ListenAddress) }()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			log.Error("accept loop failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return eng.Shutdown(shutdownCtx)
}

func openStore(sc config.StoreConfig) (store.MessageStore, error) {
	switch sc.Backend {
	case "memory":
		return store.NewMemoryStore(), nil
	case "file":
		return store.NewFileStore(sc.Path)
	case "badger":
		return store.NewBadgerStore(sc.Path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", sc.Backend)
	}
}

// loggingApplication is the default sink when fixgate runs standalone: it
// logs lifecycle events and inbound application traffic.
type loggingApplication struct {
	log *zap.Logger
}

func (a loggingApplication) OnLogon(sid fix.SessionID) {
	a.log.Info("logged on", zap.String("session_id", sid.String()))
}

func (a loggingApplication) OnLogout(sid fix.SessionID) {
	a.log.Info("logged out", zap.String("session_id", sid.String()))
}

func (a loggingApplication) OnMessage(sid fix.SessionID, msg *fix.Message) {
	a.log.Info("application message",
		zap.String("session_id", sid.String()),
		zap.String("msg_type", msg.MsgType()),
		zap.String("body", msg.String()))
}
