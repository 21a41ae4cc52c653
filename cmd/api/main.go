package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/warehousekit/stock-ledger/internal/application"
	infra "github.com/warehousekit/stock-ledger/internal/infrastructure/mongodb"
	"github.com/warehousekit/stock-ledger/pkg/api"
	"github.com/warehousekit/stock-ledger/pkg/cloudevents"
	"github.com/warehousekit/stock-ledger/pkg/kafka"
	"github.com/warehousekit/stock-ledger/pkg/logging"
	"github.com/warehousekit/stock-ledger/pkg/metrics"
	"github.com/warehousekit/stock-ledger/pkg/middleware"
	"github.com/warehousekit/stock-ledger/pkg/mongodb"
	"github.com/warehousekit/stock-ledger/pkg/outbox"
	outboxMongo "github.com/warehousekit/stock-ledger/pkg/outbox/mongodb"
	"github.com/warehousekit/stock-ledger/pkg/tracing"
)

const serviceName = "stock-ledger-api"

func main() {
	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.LogLevel(getEnv("LOG_LEVEL", "info"))
	logger := logging.New(logConfig)
	slog.SetDefault(logger.Logger)

	config := loadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracingConfig := tracing.DefaultConfig(serviceName)
	tracingConfig.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", tracingConfig.OTLPEndpoint)
	tracingConfig.Enabled = getEnv("TRACING_ENABLED", "true") == "true"
	tracerProvider, err := tracing.Initialize(ctx, tracingConfig)
	if err != nil {
		logger.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shut down tracer provider", "error", err)
		}
	}()

	m := metrics.New(metrics.DefaultConfig(serviceName))

	mongoClient, err := mongodb.NewClient(ctx, config.MongoDB)
	if err != nil {
		logger.Error("Failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	client := mongodb.NewInstrumentedClient(mongoClient, m, logger)
	defer func() {
		if err := client.Close(context.Background()); err != nil {
			logger.Error("Failed to close MongoDB client", "error", err)
		}
	}()

	producer := kafka.NewProductionProducer(config.Kafka, m, logger)
	defer func() {
		if err := producer.Close(); err != nil {
			logger.Error("Failed to close Kafka producer", "error", err)
		}
	}()

	eventFactory := cloudevents.NewEventFactory(cloudevents.SourceStockLedger)

	balanceRepo := infra.NewBalanceRepository(client)
	movementRepo := infra.NewMovementRepository(client)
	sequenceRepo := infra.NewSequenceRepository(client)
	productRepo := infra.NewProductRepository(client)
	locationRepo := infra.NewLocationRepository(client)
	txManager := infra.NewTransactionManager(client)
	outboxRepo := outboxMongo.NewOutboxRepository(client.Database())

	outboxPublisher := outbox.NewPublisher(outboxRepo, producer, outbox.DefaultPublisherConfig(), m, logger)
	go outboxPublisher.Start(ctx)
	defer outboxPublisher.Stop()

	stockService := application.NewStockApplicationService(
		balanceRepo, movementRepo, sequenceRepo, productRepo, locationRepo,
		outboxRepo, txManager, eventFactory, m, logger,
	)
	queryService := application.NewStockQueryService(balanceRepo, movementRepo, logger)
	catalogService := application.NewCatalogService(productRepo, locationRepo, logger)

	gin.SetMode(getEnv("GIN_MODE", gin.ReleaseMode))
	router := gin.New()
	middleware.Setup(router, middleware.DefaultConfig(serviceName, logger.Logger))
	router.Use(middleware.MetricsMiddleware(m))
	router.Use(middleware.TracingMiddleware(middleware.DefaultTracingConfig(serviceName)))
	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, func() error {
		checkCtx, checkCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer checkCancel()
		return client.HealthCheck(checkCtx)
	}))
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	v1 := router.Group("/api/v1")
	v1.Use(middleware.TenantAuth(nil))
	{
		stock := v1.Group("/stock")
		{
			stock.POST("/receive", receiveHandler(stockService))
			stock.POST("/issue", issueHandler(stockService))
			stock.POST("/transfer", transferHandler(stockService))
			stock.POST("/adjust", adjustHandler(stockService))
			stock.POST("/reserve", reserveHandler(stockService))
			stock.POST("/release", releaseHandler(stockService))
			stock.GET("/availability", availabilityHandler(queryService))
			stock.GET("/balances", listBalancesHandler(queryService))
			stock.GET("/movements", movementHistoryHandler(queryService))
			stock.GET("/replay", replayHandler(queryService))
		}

		products := v1.Group("/products")
		{
			products.POST("", createProductHandler(catalogService))
			products.GET("", listProductsHandler(catalogService))
			products.GET("/:id", getProductHandler(catalogService))
		}

		locations := v1.Group("/locations")
		{
			locations.POST("", createLocationHandler(catalogService))
			locations.GET("", listLocationsHandler(catalogService))
			locations.GET("/:id", getLocationHandler(catalogService))
		}
	}

	server := &http.Server{
		Addr:         config.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", "addr", config.ServerAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server stopped")
}

// Config holds application configuration
type Config struct {
	ServerAddr string
	MongoDB    *mongodb.Config
	Kafka      *kafka.Config
}

func loadConfig() *Config {
	mongoConfig := mongodb.DefaultConfig()
	mongoConfig.URI = getEnv("MONGODB_URI", mongoConfig.URI)
	mongoConfig.Database = getEnv("MONGODB_DATABASE", mongoConfig.Database)

	kafkaConfig := kafka.DefaultConfig()
	kafkaConfig.Brokers = []string{getEnv("KAFKA_BROKERS", "localhost:9092")}
	kafkaConfig.ClientID = serviceName

	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		MongoDB:    mongoConfig,
		Kafka:      kafkaConfig,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

type stockLineRequest struct {
	ProductID       string          `json:"productId" binding:"required"`
	LocationID      string          `json:"locationId" binding:"required,location_id"`
	Quantity        decimal.Decimal `json:"quantity" binding:"required"`
	BatchNumber     string          `json:"batchNumber" binding:"omitempty,batch_number"`
	SerialNumber    string          `json:"serialNumber"`
	ReferenceType   string          `json:"referenceType"`
	ReferenceID     string          `json:"referenceId"`
	ReferenceNumber string          `json:"referenceNumber"`
	Notes           string          `json:"notes"`
}

func receiveHandler(service *application.StockApplicationService) gin.HandlerFunc {
	return middleware.WrapHandler(func(c *gin.Context) error {
		var req struct {
			stockLineRequest
			ExpiryDate *time.Time `json:"expiryDate"`
		}
		if appErr := api.BindAndValidate(c, &req); appErr != nil {
			return appErr
		}

		balance, err := service.Receive(c.Request.Context(), application.ReceiveCommand{
			TenantID:        middleware.GetTenantID(c),
			ProductID:       req.ProductID,
			LocationID:      req.LocationID,
			Quantity:        req.Quantity,
			BatchNumber:     req.BatchNumber,
			SerialNumber:    req.SerialNumber,
			ExpiryDate:      req.ExpiryDate,
			ReferenceType:   req.ReferenceType,
			ReferenceID:     req.ReferenceID,
			ReferenceNumber: req.ReferenceNumber,
			Notes:           req.Notes,
		})
		if err != nil {
			return err
		}

		c.JSON(http.StatusOK, balance)
		return nil
	})
}

func issueHandler(service *application.StockApplicationService) gin.HandlerFunc {
	return middleware.WrapHandler(func(c *gin.Context) error {
		var req stockLineRequest
		if appErr := api.BindAndValidate(c, &req); appErr != nil {
			return appErr
		}

		balance, err := service.Issue(c.Request.Context(), application.IssueCommand{
			TenantID:        middleware.GetTenantID(c),
			ProductID:       req.ProductID,
			LocationID:      req.LocationID,
			Quantity:        req.Quantity,
			BatchNumber:     req.BatchNumber,
			SerialNumber:    req.SerialNumber,
			ReferenceType:   req.ReferenceType,
			ReferenceID:     req.ReferenceID,
			ReferenceNumber: req.ReferenceNumber,
			Notes:           req.Notes,
		})
		if err != nil {
			return err
		}

		c.JSON(http.StatusOK, balance)
		return nil
	})
}

func transferHandler(service *application.StockApplicationService) gin.HandlerFunc {
	return middleware.WrapHandler(func(c *gin.Context) error {
		var req struct {
			ProductID      string          `json:"productId" binding:"required"`
			FromLocationID string          `json:"fromLocationId" binding:"required,location_id"`
			ToLocationID   string          `json:"toLocationId" binding:"required,location_id"`
			Quantity       decimal.Decimal `json:"quantity" binding:"required"`
			BatchNumber    string          `json:"batchNumber" binding:"omitempty,batch_number"`
			ReferenceType  string          `json:"referenceType"`
			ReferenceID    string          `json:"referenceId"`
			Notes          string          `json:"notes"`
		}
		if appErr := api.BindAndValidate(c, &req); appErr != nil {
			return appErr
		}

		result, err := service.Transfer(c.Request.Context(), application.TransferCommand{
			TenantID:       middleware.GetTenantID(c),
			ProductID:      req.ProductID,
			FromLocationID: req.FromLocationID,
			ToLocationID:   req.ToLocationID,
			Quantity:       req.Quantity,
			BatchNumber:    req.BatchNumber,
			ReferenceType:  req.ReferenceType,
			ReferenceID:    req.ReferenceID,
			Notes:          req.Notes,
		})
		if err != nil {
			return err
		}

		c.JSON(http.StatusOK, result)
		return nil
	})
}

func adjustHandler(service *application.StockApplicationService) gin.HandlerFunc {
	return middleware.WrapHandler(func(c *gin.Context) error {
		var req struct {
			ProductID    string          `json:"productId" binding:"required"`
			LocationID   string          `json:"locationId" binding:"required,location_id"`
			NewQuantity  decimal.Decimal `json:"newQuantity"`
			BatchNumber  string          `json:"batchNumber" binding:"omitempty,batch_number"`
			SerialNumber string          `json:"serialNumber"`
			ReasonCode   string          `json:"reasonCode" binding:"required"`
			Notes        string          `json:"notes"`
		}
		if appErr := api.BindAndValidate(c, &req); appErr != nil {
			return appErr
		}

		balance, err := service.Adjust(c.Request.Context(), application.AdjustCommand{
			TenantID:     middleware.GetTenantID(c),
			ProductID:    req.ProductID,
			LocationID:   req.LocationID,
			NewQuantity:  req.NewQuantity,
			BatchNumber:  req.BatchNumber,
			SerialNumber: req.SerialNumber,
			ReasonCode:   req.ReasonCode,
			Notes:        req.Notes,
		})
		if err != nil {
			return err
		}

		c.JSON(http.StatusOK, balance)
		return nil
	})
}

type reservationRequest struct {
	ProductID   string          `json:"productId" binding:"required"`
	LocationID  string          `json:"locationId" binding:"required,location_id"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required"`
	BatchNumber string          `json:"batchNumber" binding:"omitempty,batch_number"`
}

func reserveHandler(service *application.StockApplicationService) gin.HandlerFunc {
	return middleware.WrapHandler(func(c *gin.Context) error {
		var req reservationRequest
		if appErr := api.BindAndValidate(c, &req); appErr != nil {
			return appErr
		}

		balance, err := service.Reserve(c.Request.Context(), application.ReserveCommand{
			TenantID:    middleware.GetTenantID(c),
			ProductID:   req.ProductID,
			LocationID:  req.LocationID,
			Quantity:    req.Quantity,
			BatchNumber: req.BatchNumber,
		})
		if err != nil {
			return err
		}

		c.JSON(http.StatusOK, balance)
		return nil
	})
}

func releaseHandler(service *application.StockApplicationService) gin.HandlerFunc {
	return middleware.WrapHandler(func(c *gin.Context) error {
		var req reservationRequest
		if appErr := api.BindAndValidate(c, &req); appErr != nil {
			return appErr
		}

		balance, err := service.Release(c.Request.Context(), application.ReleaseCommand{
			TenantID:    middleware.GetTenantID(c),
			ProductID:   req.ProductID,
			LocationID:  req.LocationID,
			Quantity:    req.Quantity,
			BatchNumber: req.BatchNumber,
		})
		if err != nil {
			return err
		}

		c.JSON(http.StatusOK, balance)
		return nil
	})
}

func availabilityHandler(service *application.StockQueryService) gin.HandlerFunc {
	return middleware.WrapHandler(func(c *gin.Context) error {
		availability, err := service.AvailableQuantity(c.Request.Context(), application.AvailabilityQuery{
			TenantID:    middleware.GetTenantID(c),
			ProductID:   c.Query("productId"),
			LocationID:  c.Query("locationId"),
			BatchNumber: c.Query("batchNumber"),
		})
		if err != nil {
			return err
		}

		c.JSON(http.StatusOK, availability)
		return nil
	})
}

func listBalancesHandler(service *application.StockQueryService) gin.HandlerFunc {
	return middleware.WrapHandler(func(c *gin.Context) error {
		page := api.ParsePagination(c)

		balances, total, err := service.ListBalances(c.Request.Context(), application.ListBalancesQuery{
			TenantID:    middleware.GetTenantID(c),
			ProductID:   c.Query("productId"),
			LocationID:  c.Query("locationId"),
			BatchNumber: c.Query("batchNumber"),
			Limit:       page.GetLimit(),
			Offset:      page.GetOffset(),
		})
		if err != nil {
			return err
		}

		c.JSON(http.StatusOK, api.NewPageResponse(balances, page.Page, page.PageSize, total))
		return nil
	})
}

func movementHistoryHandler(service *application.StockQueryService) gin.HandlerFunc {
	return middleware.WrapHandler(func(c *gin.Context) error {
		page := api.ParsePagination(c)

		movements, total, err := service.MovementHistory(c.Request.Context(), application.MovementHistoryQuery{
			TenantID:  middleware.GetTenantID(c),
			ProductID: c.Query("productId"),
			Limit:     page.GetLimit(),
			Offset:    page.GetOffset(),
		})
		if err != nil {
			return err
		}

		c.JSON(http.StatusOK, api.NewPageResponse(movements, page.Page, page.PageSize, total))
		return nil
	})
}

func replayHandler(service *application.StockQueryService) gin.HandlerFunc {
	return middleware.WrapHandler(func(c *gin.Context) error {
		report, err := service.Replay(c.Request.Context(), application.ReplayQuery{
			TenantID:     middleware.GetTenantID(c),
			ProductID:    c.Query("productId"),
			LocationID:   c.Query("locationId"),
			BatchNumber:  c.Query("batchNumber"),
			SerialNumber: c.Query("serialNumber"),
		})
		if err != nil {
			return err
		}

		c.JSON(http.StatusOK, report)
		return nil
	})
}

func createProductHandler(service *application.CatalogService) gin.HandlerFunc {
	return middleware.WrapHandler(func(c *gin.Context) error {
		var req struct {
			SKU           string          `json:"sku" binding:"required,sku"`
			Name          string          `json:"name" binding:"required"`
			MinStockLevel decimal.Decimal `json:"minStockLevel"`
		}
		if appErr := api.BindAndValidate(c, &req); appErr != nil {
			return appErr
		}

		product, err := service.CreateProduct(c.Request.Context(), application.CreateProductCommand{
			TenantID:      middleware.GetTenantID(c),
			SKU:           req.SKU,
			Name:          req.Name,
			MinStockLevel: req.MinStockLevel,
		})
		if err != nil {
			return err
		}

		c.JSON(http.StatusCreated, product)
		return nil
	})
}

func getProductHandler(service *application.CatalogService) gin.HandlerFunc {
	return middleware.WrapHandler(func(c *gin.Context) error {
		product, err := service.GetProduct(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"))
		if err != nil {
			return err
		}

		c.JSON(http.StatusOK, product)
		return nil
	})
}

func listProductsHandler(service *application.CatalogService) gin.HandlerFunc {
	return middleware.WrapHandler(func(c *gin.Context) error {
		page := api.ParsePagination(c)

		products, total, err := service.ListProducts(c.Request.Context(), middleware.GetTenantID(c), page.GetLimit(), page.GetOffset())
		if err != nil {
			return err
		}

		c.JSON(http.StatusOK, api.NewPageResponse(products, page.Page, page.PageSize, total))
		return nil
	})
}

func createLocationHandler(service *application.CatalogService) gin.HandlerFunc {
	return middleware.WrapHandler(func(c *gin.Context) error {
		var req struct {
			Code        string `json:"code" binding:"required,location_id"`
			WarehouseID string `json:"warehouseId"`
			Name        string `json:"name"`
		}
		if appErr := api.BindAndValidate(c, &req); appErr != nil {
			return appErr
		}

		location, err := service.CreateLocation(c.Request.Context(), application.CreateLocationCommand{
			TenantID:    middleware.GetTenantID(c),
			Code:        req.Code,
			WarehouseID: req.WarehouseID,
			Name:        req.Name,
		})
		if err != nil {
			return err
		}

		c.JSON(http.StatusCreated, location)
		return nil
	})
}

func getLocationHandler(service *application.CatalogService) gin.HandlerFunc {
	return middleware.WrapHandler(func(c *gin.Context) error {
		location, err := service.GetLocation(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"))
		if err != nil {
			return err
		}

		c.JSON(http.StatusOK, location)
		return nil
	})
}

func listLocationsHandler(service *application.CatalogService) gin.HandlerFunc {
	return middleware.WrapHandler(func(c *gin.Context) error {
		page := api.ParsePagination(c)

		locations, total, err := service.ListLocations(c.Request.Context(), middleware.GetTenantID(c), page.GetLimit(), page.GetOffset())
		if err != nil {
			return err
		}

		c.JSON(http.StatusOK, api.NewPageResponse(locations, page.Page, page.PageSize, total))
		return nil
	})
}
