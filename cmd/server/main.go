// cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"uno-server/internal/auth"
	"uno-server/internal/cache"
	"uno-server/internal/config"
	"uno-server/internal/database"
	"uno-server/internal/game"
	"uno-server/internal/handlers"
	"uno-server/internal/middleware"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if os.Getenv("LOG_LEVEL") == "debug" {
		log.SetLevel(logrus.DebugLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load configuration")
	}

	if err := auth.Init(); err != nil {
		log.WithError(err).Fatal("initialize session keys")
	}

	replica, err := cache.Connect(cfg.RedisAddr, cfg.RedisDB, cfg.ReplicaTTL)
	if err != nil {
		log.WithError(err).Fatal("connect to redis")
	}
	defer replica.Close()
	log.WithField("addr", cfg.RedisAddr).Info("connected to redis")

	// The history sink is optional: without DATABASE_URL finished matches
	// simply are not recorded.
	var hist *database.Historian
	if cfg.DatabaseURL != "" {
		hist, err = database.Connect(context.Background(), cfg.DatabaseURL, log)
		if err != nil {
			log.WithError(err).Warn("history database unavailable, continuing without it")
		} else {
			defer hist.Close()
			log.Info("match history sink enabled")
		}
	}

	store := game.NewStore(replica, cfg.IdleTimeout, log)
	timers := game.NewTurnTimers(store, cfg.TurnTimeout, log)
	bots := game.NewBotRunner(store, timers, cfg.BotDelay, log)
	srv := handlers.NewServer(store, timers, bots, hist, cfg.PostGameGrace, log)

	store.Bind = srv.BindMatch
	store.OnEvict = srv.NotifyRoomClosing
	timers.OnBotTurn = bots.Schedule
	bots.OnMatchEnd = srv.FinishMatch

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.HandleWS)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: middleware.LogMiddleware(log)(mux),
	}

	go func() {
		log.WithField("port", cfg.Port).Info("server listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	timers.StopAll()
	store.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
}
