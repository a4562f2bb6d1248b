package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vigilia/guard-backend/internal/auth"
	"github.com/vigilia/guard-backend/internal/db"
	"github.com/vigilia/guard-backend/internal/guards"
	"github.com/vigilia/guard-backend/internal/middleware"
	"github.com/vigilia/guard-backend/internal/tracker"
	"github.com/vigilia/guard-backend/internal/zones"
)

func RootHandler(w http.ResponseWriter, r *http.Request) {
	response := "Server is up!"
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, response)
}

func corsOrigins() []string {
	v := os.Getenv("CORS_ORIGINS")
	if v == "" {
		return []string{"http://localhost:5173"}
	}
	return strings.Split(v, ",")
}

func main() {
	_ = godotenv.Load(".env.local")
	db.Connect()

	port := os.Getenv("PORT")
	if port == "" {
		port = "5050"
	}

	auth.Init()
	zoneCfg := zones.Init()
	guards.Init()
	svc := tracker.Init(zoneCfg.Location, prometheus.DefaultRegisterer)
	defer svc.Dispatcher.Close()

	guardCfg := guards.LoadFromEnv()
	limiter := middleware.NewSubjectLimiter(guardCfg.RatePerMinute, guardCfg.RateBurst)

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORSMiddleware(corsOrigins()))
	r.Get("/", RootHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Mount("/zonas", zones.SetupRoutes())
	r.Mount("/ubicacion", guards.SetupRoutes(guards.NewHandler(svc), limiter))

	srv := &http.Server{
		Addr:              "0.0.0.0:" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		fmt.Printf("Server listening on port :%s...\n", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed: ", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Shutdown: %v", err)
	}
	log.Println("Server stopped")
}
