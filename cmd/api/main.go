package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"chainlogistics.org/internal/httpapi"
	"chainlogistics.org/internal/identity"
	"chainlogistics.org/internal/kv"
	"chainlogistics.org/internal/obs"
	"chainlogistics.org/internal/store/pg"
	"chainlogistics.org/internal/stream"
	"chainlogistics.org/internal/tracking"
)

var version = "0.3.1"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("CHAINLOG_COMMIT"))

	// Storage: Postgres when a DSN is configured, in-memory otherwise.
	var (
		store kv.Store
		probe httpapi.ReadyProbe
	)
	if dsn := os.Getenv("CHAINLOG_PG_DSN"); dsn != "" {
		pgStore, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		store = pgStore
		probe = httpapi.ReadyProbe{DB: pgStore.DB()}
	} else {
		store = kv.NewMemory()
	}

	notices := stream.New()
	svc := tracking.New(store,
		tracking.WithVerifier(identity.Verifier{}),
		tracking.WithNotifier(notices),
	)

	api := httpapi.New(svc, notices, probe, version)
	if burst := envInt("CHAINLOG_RATE_BURST"); burst > 0 {
		api.RateBurst = burst
	}
	if perSec := envInt("CHAINLOG_RATE_PER_SEC"); perSec > 0 {
		api.RatePerSec = perSec
	}

	// Feed domain metrics from the notice stream.
	metricsCtx, stopMetrics := context.WithCancel(context.Background())
	go func() {
		for n := range notices.Subscribe(metricsCtx) {
			obs.Observe(n)
		}
	}()

	addr := os.Getenv("CHAINLOG_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting chainlog-api %s on %s", version, srv.Addr)
	obs.SetReady(true)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	stopMetrics()
	_ = store.Close()
	log.Println("Stopped")
}

func envInt(name string) int {
	raw := os.Getenv(name)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Fatalf("%s must be an integer: %v", name, err)
	}
	return v
}
