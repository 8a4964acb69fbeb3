package main

import (
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marketplace/cache"
	"marketplace/config"
	"marketplace/consumers"
	"marketplace/controllers"
	"marketplace/database"
	"marketplace/middlewares"
	"marketplace/models"
	"marketplace/rabbitmq"
	"marketplace/repository"
)

func main() {
	cfg := config.LoadConfig()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Database initialization failed: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Database migration failed: %v", err)
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Fatalf("Failed to create upload dir: %v", err)
	}

	users := repository.NewUserRepository(db)
	orders := repository.NewOrderRepository(db)
	reviews := repository.NewReviewRepository(db)

	productStore := repository.NewProductRepository(db)
	var products repository.ProductRepository = productStore
	var invalidator controllers.ProductInvalidator
	if cfg.RedisAddr != "" {
		rdb, err := cache.ConnectRedis(cfg)
		if err != nil {
			log.Printf("Redis unavailable, running without product cache: %v", err)
		} else {
			cached := cache.NewCachedProductRepository(products, rdb)
			products = cached
			invalidator = cached
		}
	}

	var rmq *rabbitmq.RabbitMQ
	if cfg.RabbitMQURL != "" {
		rmq, err = rabbitmq.NewRabbitMQ(cfg)
		if err != nil {
			log.Fatalf("RabbitMQ initialization failed: %v", err)
		}
		defer rmq.Close()

		if err := rmq.SetupQueues(); err != nil {
			log.Fatalf("Failed to setup RabbitMQ queues: %v", err)
		}

		consumers.NewOrderConsumer(orders, cfg).Start(rmq.Channel)
	}

	authController := controllers.NewAuthController(users, cfg)
	productController := controllers.NewProductController(products, productStore, cfg.UploadDir)
	orderController := controllers.NewOrderController(orders, rmq, invalidator)
	reviewController := controllers.NewReviewController(reviews, products)
	adminController := controllers.NewAdminController(users)

	r := gin.Default()
	r.Use(middlewares.PrometheusMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.Static("/uploads", cfg.UploadDir)

	api := r.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/register", authController.Register)
		auth.POST("/login", authController.Login)
	}

	authed := middlewares.AuthMiddleware(cfg.JWTSecret)

	productsGroup := api.Group("/products")
	{
		productsGroup.GET("", productController.GetAll)
		productsGroup.GET("/:id", productController.GetByID)
		productsGroup.POST("", authed, middlewares.RequireRoles(models.RoleVendor), productController.Create)
		productsGroup.PUT("/:id", authed, middlewares.RequireRoles(models.RoleVendor), productController.Update)
		productsGroup.DELETE("/:id", authed, middlewares.RequireRoles(models.RoleVendor), productController.Delete)
	}

	ordersGroup := api.Group("/orders", authed)
	{
		ordersGroup.POST("", middlewares.RequireRoles(models.RoleCustomer), orderController.Create)
		ordersGroup.GET("/mine", middlewares.RequireRoles(models.RoleCustomer), orderController.GetMine)
		ordersGroup.GET("", middlewares.RequireRoles(models.RoleAdmin), orderController.GetAll)
		ordersGroup.GET("/vendor", middlewares.RequireRoles(models.RoleVendor), orderController.GetVendorOrders)
		ordersGroup.GET("/:id", orderController.GetByID)
		ordersGroup.PUT("/:id/status", middlewares.RequireRoles(models.RoleAdmin), orderController.UpdateStatus)
	}

	reviewsGroup := api.Group("/reviews")
	{
		reviewsGroup.GET("/product/:productId", reviewController.GetByProduct)
		reviewsGroup.POST("/product/:productId", authed, middlewares.RequireRoles(models.RoleCustomer), reviewController.Add)
		reviewsGroup.PUT("/:id", authed, middlewares.RequireRoles(models.RoleCustomer, models.RoleAdmin), reviewController.Update)
		reviewsGroup.DELETE("/:id", authed, middlewares.RequireRoles(models.RoleCustomer, models.RoleAdmin), reviewController.Delete)
	}

	admin := api.Group("/admin", authed, middlewares.RequireRoles(models.RoleAdmin))
	{
		admin.GET("/vendors", adminController.GetVendors)
		admin.PUT("/vendors/:id/approve", adminController.ApproveVendor)
		admin.DELETE("/vendors/:id", adminController.DeleteVendor)
	}

	log.Printf("Marketplace API starting on %s", cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
