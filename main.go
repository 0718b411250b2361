package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"storefront-api/auth"
	"storefront-api/cache"
	"storefront-api/cart"
	"storefront-api/config"
	"storefront-api/handlers"
	"storefront-api/jobs"
	"storefront-api/middleware"
	"storefront-api/models"
	"storefront-api/routes"
	"storefront-api/services"
	"storefront-api/storage"
	"storefront-api/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}
	flush, err := config.InitLogger(cfg.Logger)
	if err != nil {
		log.Fatal("Failed to initialize logger: ", err)
	}
	defer flush()
	for _, w := range cfg.Warnings {
		zap.L().Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		zap.L().Fatal("server stopped", zap.Error(err))
	}
}

// backend is everything that depends on the selected store.
type backend struct {
	stores    *store.Stores
	tokens    middleware.TokenVerifier
	jwt       *middleware.JWT
	firebase  *firebase.App
	firestore *firestore.Client
}

func openBackend(ctx context.Context, cfg *config.AppConfig) (*backend, func(), error) {
	var app *firebase.App
	if cfg.StoreBackend == config.StoreFirestore || cfg.Upload.Backend == config.UploadBucket || cfg.Auth.RoleStrategy == config.RoleClaims {
		var err error
		if app, err = config.NewFirebaseApp(ctx, cfg.Firebase); err != nil {
			return nil, nil, err
		}
	}

	if cfg.StoreBackend == config.StoreFirestore {
		client, err := app.Firestore(ctx)
		if err != nil {
			return nil, nil, errors.Wrap(err, "initialize firestore")
		}
		verifier, err := middleware.NewFirebaseVerifier(ctx, app)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		b := &backend{
			stores:    store.NewFirestoreStores(client),
			tokens:    verifier,
			firebase:  app,
			firestore: client,
		}
		return b, func() { _ = client.Close() }, nil
	}

	db, err := config.OpenDB(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	jwt := middleware.NewJWT(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	b := &backend{
		stores:   store.NewSQLStores(db),
		tokens:   jwt,
		jwt:      jwt,
		firebase: app,
	}
	return b, func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}, nil
}

func roleResolver(ctx context.Context, cfg *config.AppConfig, b *backend) (auth.RoleResolver, error) {
	switch cfg.Auth.RoleStrategy {
	case config.RoleAllowList:
		return auth.NewAllowList(cfg.Auth.AdminIDs), nil
	case config.RoleClaims:
		client, err := b.firebase.Auth(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "initialize firebase auth")
		}
		return auth.NewCustomClaims(client, cfg.Auth.PollInterval), nil
	}
	switch {
	case b.firestore != nil:
		return auth.NewFirestoreProfiles(b.firestore), nil
	case b.stores.Users != nil:
		return auth.NewSQLProfiles(b.stores.Users, cfg.Auth.PollInterval), nil
	}
	return nil, errors.New("no profile source for ROLE_STRATEGY=profile")
}

func run(ctx context.Context, cfg *config.AppConfig) error {
	gin.SetMode(cfg.Server.Mode)

	b, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBackend()

	var (
		uploader storage.Uploader
		images   *storage.Local
	)
	if cfg.Upload.Backend == config.UploadBucket {
		if uploader, err = storage.NewBucket(ctx, b.firebase, cfg.Firebase.StorageBucket, cfg.Upload.SignedURLTTL); err != nil {
			return err
		}
	} else {
		if images, err = storage.NewLocal(cfg.Upload.Root, "/api/images"); err != nil {
			return err
		}
		uploader = images
	}

	roles, err := roleResolver(ctx, cfg, b)
	if err != nil {
		return err
	}

	pages, err := cache.New(cfg.Server.CacheSize)
	if err != nil {
		return err
	}

	settings := services.NewSettingsService(b.stores, models.DefaultSettings(cfg.DefaultAllowSignups), pages)
	h := handlers.New(handlers.Deps{
		Stores:         b.stores,
		Categories:     services.NewCategoryService(b.stores, pages),
		Products:       services.NewProductService(b.stores, uploader, pages),
		Banners:        services.NewBannerService(b.stores, uploader, pages),
		Settings:       settings,
		Accounts:       services.NewAccountService(b.stores, settings),
		Uploader:       uploader,
		Images:         images,
		Tokens:         b.tokens,
		JWT:            b.jwt,
		Roles:          roles,
		Carts:          cart.NewSessions(cfg.Auth.SessionSecret, cfg.Server.Mode == gin.ReleaseMode),
		MaxUploadBytes: cfg.Upload.MaxBytes,
		AllowedOrigins: cfg.Server.CORSOrigins,
	})

	if cfg.Backup.Enabled && images != nil {
		sched, err := jobs.Scheduler(&jobs.UploadBackup{
			Root:      images.Root(),
			Dir:       cfg.Backup.Dir,
			Retention: cfg.Backup.Retention,
		}, cfg.Backup.Schedule)
		if err != nil {
			return err
		}
		defer sched.Stop()
	}

	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())
	r.Use(cors.New(corsConfig(cfg.Server.CORSOrigins)))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "Storefront API",
			"backend": b.stores.Backend,
			"version": "1.0.0",
		})
	})

	// Welcome
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Welcome to the Storefront API",
			"docs":    "/api/auth/state-machine",
			"health":  "/health",
		})
	})

	routes.SetupRoutes(r, h, pages)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("server running", zap.String("addr", "http://localhost:"+cfg.Server.Port), zap.String("backend", b.stores.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	zap.L().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pages.Wait()
	return srv.Shutdown(shutdownCtx)
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", "X-Cache"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	// Credentialed requests carry the cart cookie.
	cfg.AllowCredentials = true
	return cfg
}
