package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shop-service/config"
	"shop-service/internal/api"
	"shop-service/internal/auth"
	"shop-service/internal/broker"
	"shop-service/internal/crud"
	"shop-service/internal/mail"
	"shop-service/internal/models"
	"shop-service/internal/payment"
	"shop-service/internal/realtime"
	"shop-service/internal/redisclient"
	"shop-service/internal/service"
	"shop-service/internal/store"
	"shop-service/internal/util"
	"shop-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting shop service")

	tp, err := util.InitTracer("shop-service", cfg.Server.Env, cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	ctx := context.Background()

	mongoStore, err := store.NewMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer mongoStore.Close(context.Background())
	if err := mongoStore.EnsureIndexes(ctx); err != nil {
		logger.Fatal("Failed to create indexes", zap.Error(err))
	}
	logger.Info("MongoDB connected")

	ledger, err := store.NewLedger(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to ledger database", zap.Error(err))
	}
	defer ledger.Close()
	if err := ledger.Migrate(ctx); err != nil {
		logger.Fatal("Failed to migrate ledger", zap.Error(err))
	}
	logger.Info("Ledger database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	logger.Info("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)
	mailer := mail.New(cfg.Mail.SendGridAPIKey, cfg.Mail.From, cfg.Mail.FromName)
	gateway := payment.NewRazorpay(cfg.Payment.RazorpayKeyID, cfg.Payment.RazorpayKeySecret, cfg.Payment.Currency)
	hub := realtime.NewHub(cfg.Server.CORSOrigins)
	defer hub.Close()

	cols := store.NewCollections(mongoStore.DB(), cfg.Server.BaseURL)
	products := &store.ProductRepo{Products: cols.Products}
	carts := &store.CartRepo{Carts: cols.Carts}
	coupons := &store.CouponRepo{Coupons: cols.Coupons}
	users := &store.UserRepo{Users: cols.Users}
	reviews := &store.ReviewRepo{Reviews: cols.Reviews}
	chats := &store.ChatRepo{Conversations: cols.Conversations, Messages: cols.Messages}
	pages := &store.CmsRepo{CmsPages: cols.CmsPages}

	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiresIn)
	authService := service.NewAuthService(users, tokens, mailer, cfg.Auth.AdminEmails, cfg.Auth.ResetCodeTTL)

	services := api.Services{
		Auth:      authService,
		Users:     service.NewUserService(users, tokens),
		Wishlist:  service.NewWishlistService(users, products),
		Addresses: service.NewAddressService(users),
		Cart:      service.NewCartService(carts, products, coupons, redisClient, cfg.Business.CartLockTTL),
		Orders: service.NewOrderService(mongoStore, carts, cols.Orders, products, users, redisClient,
			eventPublisher, gateway, service.OrderPricing{
				TaxPrice:       cfg.Business.TaxPrice,
				ShippingPrice:  cfg.Business.ShippingPrice,
				IdempotencyTTL: cfg.Business.IdempotencyTTL,
			}),
		Reviews:   service.NewReviewService(reviews, products, products),
		Inventory: service.NewInventoryService(products, ledger),
		Chat:      service.NewChatService(chats, users, hub),
		Cms:       service.NewCmsService(pages),
	}

	limit := cfg.Business.DefaultPageLimit
	resources := api.Resources{
		Products: crud.New[models.Product](cols.Products, crud.Options[models.Product]{
			SearchFields: []string{"title", "description"},
			DefaultLimit: limit,
			Expand: func(ctx context.Context, p *models.Product) error {
				list, err := reviews.ForProduct(ctx, p.ID)
				if err != nil {
					return err
				}
				p.Reviews = list
				return nil
			},
		}),
		Categories:    crud.New[models.Category](cols.Categories, crud.Options[models.Category]{DefaultLimit: limit}),
		SubCategories: crud.New[models.SubCategory](cols.SubCategories, crud.Options[models.SubCategory]{DefaultLimit: limit}),
		Brands:        crud.New[models.Brand](cols.Brands, crud.Options[models.Brand]{DefaultLimit: limit}),
		Coupons:       crud.New[models.Coupon](cols.Coupons, crud.Options[models.Coupon]{DefaultLimit: limit}),
		Users: crud.New[models.User](cols.Users, crud.Options[models.User]{
			SearchFields: []string{"name", "email"},
			DefaultLimit: limit,
		}),
		Orders:  crud.New[models.Order](cols.Orders, crud.Options[models.Order]{DefaultLimit: limit}),
		Reviews: crud.New[models.Review](cols.Reviews, crud.Options[models.Review]{SearchFields: []string{"title"}, DefaultLimit: limit}),
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	inventoryConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup+"-inventory")
	inventoryWorker := worker.NewInventoryWorker(inventoryConsumer, worker.NewSaleRecorder(ledger))
	go func() {
		if err := inventoryWorker.Start(workerCtx); err != nil {
			logger.Error("Inventory worker error", zap.Error(err))
		}
	}()

	notificationConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup+"-notification")
	notificationWorker := worker.NewNotificationWorker(notificationConsumer, worker.NewOrderMailer(mailer, ledger))
	go func() {
		if err := notificationWorker.Start(workerCtx); err != nil {
			logger.Error("Notification worker error", zap.Error(err))
		}
	}()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(cfg, services, resources, redisClient, hub, map[string]api.Pinger{
		"mongo":  mongoStore,
		"ledger": ledger,
		"redis":  redisClient,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := inventoryWorker.Stop(); err != nil {
		logger.Error("Failed to stop inventory worker", zap.Error(err))
	}
	if err := notificationWorker.Stop(); err != nil {
		logger.Error("Failed to stop notification worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
