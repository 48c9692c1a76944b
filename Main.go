package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"electrotech/cache"
	"electrotech/config"
	"electrotech/jwt"
	"electrotech/routers"
	"electrotech/services"
	"electrotech/telemetry"
)

func main() {
	configPath := flag.String("config", os.Getenv("APP_CONFIG"), "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatal(err)
	}
}

// run owns every resource it opens, so an error from any stage still closes what came before.
func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gin.SetMode(cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: "1.0.0",
		Exporter:       cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("set up tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	db, err := config.SetupDatabaseConnection(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if dbInstance, err := db.DB(); err == nil {
			_ = dbInstance.Close()
		}
	}()

	rdb, err := config.SetupRedisConnection(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	var productCache services.ProductCache = cache.Noop{}
	if rdb != nil {
		defer rdb.Close()
		productCache = cache.NewProductCache(rdb, cfg.Redis.ProductTTL)
	} else {
		log.Println("redis disabled, product cache off")
	}

	signer, err := newSigner(cfg.JWT)
	if err != nil {
		return fmt.Errorf("set up token signer: %w", err)
	}
	hasher, err := services.NewBcryptHasher(cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("set up password hasher: %w", err)
	}

	router, err := routers.SetupRouters(routers.Dependencies{
		DB:         db,
		Redis:      rdb,
		Auth:       services.NewAuthService(db, hasher, signer, cfg.JWT.TTL),
		Catalog:    services.NewCatalogService(db, productCache),
		Carts:      services.NewCartService(db),
		Checkout:   services.NewCheckoutService(db, productCache),
		Orders:     services.NewOrderService(db),
		Messaging:  services.NewMessagingService(db),
		UploadsDir: cfg.Server.UploadsDir,
	})
	if err != nil {
		return fmt.Errorf("set up router: %w", err)
	}

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: otelhttp.NewHandler(router, "electrotech"),
	}
	return serve(ctx, srv, cfg.Server.ShutdownTimeout)
}

// serve runs srv until ctx is cancelled or the listener fails. A listener failure is returned
// to the caller instead of exiting the process.
func serve(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	serveErr := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err, ok := <-serveErr:
		if !ok {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func newSigner(cfg config.JWTConfig) (*jwt.Signer, error) {
	if cfg.UseRSA() {
		return jwt.NewRSASignerFromFiles(cfg.PrivateKeyPath, cfg.PublicKeyPath, cfg.Issuer)
	}
	return jwt.NewHMACSigner([]byte(cfg.Secret), cfg.Issuer)
}
