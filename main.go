package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spicery/admin"
	"spicery/cart"
	"spicery/checkout"
	"spicery/config"
	"spicery/db"
	"spicery/invoice"
	"spicery/logger"
	"spicery/memstore"
	"spicery/middleware"
	"spicery/models"
	"spicery/mq"
	"spicery/ordernum"
	"spicery/orders"
	"spicery/pay"
	"spicery/products"
	"spicery/ratelim"
	"spicery/rdx"
	"spicery/routes"
	"spicery/stock"
	"spicery/wishlist"

	"github.com/joho/godotenv"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

type couponStore interface {
	cart.CouponBook
	admin.CouponWriter
}

// repositories is one storage backend's implementation of every repository.
type repositories struct {
	carts       cart.Repository
	coupons     couponStore
	stock       stock.Repository
	products    products.Repository
	orders      orders.Repository
	wishlists   wishlist.Repository
	idempotency pay.IdempotencyStore
	close       func(context.Context) error
}

func mongoRepositories(ctx context.Context, cfg *config.Config, log *zap.Logger) (*repositories, error) {
	store, err := db.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database, log)
	if err != nil {
		return nil, err
	}
	carts := cart.NewMongoRepository(store)
	return &repositories{
		carts:       carts,
		coupons:     carts,
		stock:       stock.NewMongoRepository(store),
		products:    products.NewMongoRepository(store),
		orders:      orders.NewMongoRepository(store),
		wishlists:   wishlist.NewMongoRepository(store),
		idempotency: pay.NewMongoIdempotencyStore(store),
		close:       store.Close,
	}, nil
}

func memoryRepositories() *repositories {
	mem := memstore.New()
	mem.Seed(
		models.Product{ProductID: "saffron-1g", Name: "Saffron", Category: "premium", Unit: "1g", Price: 9.5, StockQuantity: 40},
		models.Product{ProductID: "cumin-100g", Name: "Cumin Seeds", Category: "seeds", Unit: "100g", Price: 3.25, StockQuantity: 120},
		models.Product{ProductID: "cardamom-50g", Name: "Green Cardamom", Category: "pods", Unit: "50g", Price: 6.75, StockQuantity: 60},
	)
	carts := mem.Carts()
	return &repositories{
		carts:       carts,
		coupons:     carts,
		stock:       mem.Stock(),
		products:    mem.Products(),
		orders:      mem.Orders(),
		wishlists:   mem.Wishlists(),
		idempotency: mem.Idempotency(),
		close:       func(context.Context) error { return nil },
	}
}

func eventEmitter(ctx context.Context, cfg *config.Config, log *zap.Logger) (mq.Emitter, func()) {
	if !cfg.Redis.Enabled() {
		return mq.NewLogEmitter(log), func() {}
	}
	conn, err := rdx.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password)
	if err != nil {
		log.Warn("redis unavailable, order events go to the log only", zap.Error(err))
		return mq.NewLogEmitter(log), func() {}
	}
	log.Info("publishing order events to redis", zap.String("channel", cfg.Redis.Channel))
	return mq.NewRedisEmitter(conn, cfg.Redis.Channel, log), func() { _ = conn.Close() }
}

// Index is a simple health check handler.
func Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	fmt.Fprint(w, "200")
}

func setupRouter(cfg *config.Config, repos *repositories, events mq.Emitter, rl *ratelim.RateLimiter, log *zap.Logger) *httprouter.Router {
	ledger := stock.NewLedger(repos.stock, log)
	catalog := products.NewService(repos.products, log)
	carts := cart.NewStore(repos.carts, catalog, repos.coupons, log)
	orderSvc := orders.NewService(repos.orders, ledger, events, log)
	wishlists := wishlist.NewService(repos.wishlists, catalog, carts, log)
	coord := checkout.NewCoordinator(carts, ledger, orderSvc, ordernum.NewGenerator(), cfg.Pricing, cfg.OrderNumberRetries, log)

	router := httprouter.New()
	router.GET("/health", Index)

	routes.Register(router, routes.Deps{
		Auth:        middleware.NewAuth(cfg.JWTSecret),
		RateLimiter: rl,
		Idempotency: pay.NewIdempotency(repos.idempotency, log),
		Cart:        cart.NewHandler(carts, log),
		Checkout:    checkout.NewHandler(coord, log),
		Orders:      orders.NewHandler(orderSvc, pay.NewSandboxGateway(log), invoice.NewRenderer(cfg.InvoiceSecret), log),
		Products:    products.NewHandler(catalog, ledger, log),
		Wishlist:    wishlist.NewHandler(wishlists, log),
		Admin:       admin.NewHandler(repos.coupons, log),
	})
	return router
}

func run() error {
	// load .env if present
	envErr := godotenv.Load()

	isDev := os.Getenv("ENV") == "development"
	if err := logger.Init(isDev); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	log := logger.L()
	if envErr != nil {
		log.Info("no .env file found, using system environment")
	}

	cfg, err := config.Load(log)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var repos *repositories
	switch cfg.Store {
	case "memory":
		log.Warn("using in-memory store, data is lost on restart")
		repos = memoryRepositories()
	case "mongo":
		if repos, err = mongoRepositories(ctx, cfg, log); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown STORE %q", cfg.Store)
	}

	events, closeEvents := eventEmitter(ctx, cfg, log)
	defer closeEvents()

	rateLimiter := ratelim.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go rateLimiter.Run(ctx)

	router := setupRouter(cfg, repos, events, rateLimiter, log)

	// CORS → security headers → logging → router
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Deprecation", "Link"},
		AllowCredentials: true,
	}).Handler(router)

	handler := middleware.Logging(log)(middleware.SecurityHeaders(corsHandler))

	server := &http.Server{
		Addr:              cfg.Port,
		Handler:           handler,
		ReadTimeout:       7 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", cfg.Port), zap.String("store", cfg.Store))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutdown signal received, shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	if err := repos.close(shutdownCtx); err != nil {
		log.Warn("close store", zap.Error(err))
	}
	log.Info("server stopped cleanly")
	return nil
}

func main() {
	if err := run(); err != nil {
		logger.L().Error("fatal", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}
