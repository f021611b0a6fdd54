package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"mangashelf/internal/auth"
	"mangashelf/internal/catalog"
	"mangashelf/internal/collection"
	"mangashelf/internal/feed"
	"mangashelf/pkg/database"
	"mangashelf/pkg/utils"
)

func main() {
	cfg := utils.Load()
	dbCfg := database.DefaultConfig()

	db := database.MustOpen(dbCfg)
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	router := gin.Default()
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	// event feed first, so binding errors show up early
	hub := feed.NewHub()
	router.GET("/ws", feed.WSHandler(hub))
	feedSrv := feed.NewServer(cfg.FeedAddr, hub)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": dbCfg.Path})
	})

	router.GET("/ready", func(c *gin.Context) {
		stats := hub.Stats()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":      "not_ready",
				"db_error":    err.Error(),
				"tcp_clients": stats.TCPClients,
				"ws_clients":  stats.WSClients,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":      "ready",
			"db":          "ok",
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
		})
	})

	// catalog sources: Rakuten first when configured (better manga data),
	// Google always, MADB opt-in
	google := catalog.NewGoogleBooks()
	var sources []catalog.Source
	var fetchers []collection.DateFetcher

	if cfg.RakutenAppID != "" {
		rakuten := catalog.NewRakutenBooks(cfg.RakutenAppID)
		sources = append(sources, rakuten)
		fetchers = append(fetchers, rakuten)
	}
	sources = append(sources, google)
	fetchers = append(fetchers, google)
	if cfg.UseMADB {
		sources = append(sources, catalog.NewMADB())
	}
	searcher := catalog.NewSearcher(sources...)

	// auth
	tokenSvc := auth.TokenService{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Duration: cfg.JWTDuration,
	}
	authRepo := auth.NewRepo(db)
	auth.NewHandler(authRepo, tokenSvc).RegisterRoutes(router.Group("/auth"))

	// collection: reads are public on the LAN, mutations need a token
	repo := collection.NewRepo(db)
	handler := collection.NewHandler(repo, searcher, hub, fetchers...)

	handler.RegisterCatalogRoutes(router.Group("/catalog"))

	protected := router.Group("/")
	protected.Use(auth.Middleware(tokenSvc, authRepo))
	handler.RegisterRecordRoutes(protected.Group("/records"))
	handler.RegisterSeriesRoutes(protected.Group("/series"))

	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	errCh := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := feedSrv.Run(); err != nil {
			errCh <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("HTTP API server listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("shutdown signal received: %s", sig)
	case err := <-errCh:
		log.Printf("server error: %v", err)
	}

	log.Println("shutting down servers")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
	if err := feedSrv.Close(); err != nil {
		log.Printf("feed shutdown error: %v", err)
	}

	wg.Wait()
	log.Println("servers stopped")
}
