package handlers

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"storefront/internal/middleware"
)

// NewRouter mounts every route on a fresh engine.
func NewRouter(d Dependencies) *gin.Engine {
	if d.Hub == nil {
		d.Hub = nopBroadcaster{}
	}
	if d.Events == nil {
		d.Events = nopEmitter{}
	}

	issuer := tokenIssuer{
		secret:     d.Config.JWTSecret,
		accessTTL:  d.Config.AccessTokenTTL,
		refreshTTL: d.Config.RefreshTokenTTL,
		store:      d.RefreshTokens,
	}
	userAuth := middleware.UserAuth(d.Config.JWTSecret)
	adminAuth := middleware.AdminAuth(d.Config.JWTSecret)
	shipping := d.shippingPolicy()

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors.New(corsConfig(d.Config.CORSOrigins)))

	r.GET("/healthz", Health(d.HealthChecks))

	api := r.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/register", Register(d.Users, issuer))
		auth.POST("/login", Login(d.Users, issuer))
		auth.POST("/admin/login", AdminLogin(d.Users, issuer))
		auth.POST("/refresh", Refresh(d.Users, d.RefreshTokens, issuer))
		auth.POST("/logout", Logout(d.RefreshTokens))
		auth.GET("/me", userAuth, GetMe(d.Users))
	}

	addresses := api.Group("/addresses", userAuth)
	{
		addresses.GET("", GetAddresses(d.Addresses))
		addresses.POST("", CreateAddress(d.Addresses))
		addresses.GET("/:id", GetAddress(d.Addresses))
		addresses.PUT("/:id", UpdateAddress(d.Addresses))
		addresses.PATCH("/:id/default", SetDefaultAddress(d.Addresses))
		addresses.DELETE("/:id", DeleteAddress(d.Addresses))
	}

	api.GET("/products", GetProducts(d.Products))
	api.GET("/products/:id", GetProduct(d.Products))
	api.GET("/categories", GetCategories(d.Categories))

	cart := api.Group("/cart", userAuth)
	{
		cart.GET("", GetCart(d.Cart, d.Products, shipping, d.Config.Currency))
		cart.DELETE("", ClearCart(d.Cart))
		cart.POST("/items", AddCartItem(d.Cart, d.Products))
		cart.PUT("/items/:productId", UpdateCartItem(d.Cart, d.Products))
		cart.DELETE("/items/:productId", RemoveCartItem(d.Cart))
	}

	orders := api.Group("/orders", userAuth)
	{
		orders.POST("", CreateOrder(d))
		orders.GET("", GetMyOrders(d.Orders))
		orders.GET("/:id", GetOrder(d.Orders))
		orders.POST("/:id/cancel", CancelOrder(d))
		orders.PATCH("/:id/status", adminAuth, UpdateOrderStatus(d))
	}

	pay := api.Group("/payment")
	{
		pay.POST("/orders", userAuth, CreatePaymentOrder(d))
		pay.POST("/verify", userAuth, VerifyPayment(d))
		pay.POST("/webhook", PaymentWebhook(d))
	}

	api.GET("/admin/orders/live", middleware.TokenFromQuery(), adminAuth, LiveOrders(d.Hub))

	admin := api.Group("/admin", adminAuth)
	{
		admin.GET("/products", AdminGetProducts(d.Products))
		admin.GET("/products/export", ExportProducts(d.Products))
		admin.POST("/products", CreateProduct(d.Products, d.Categories))
		admin.PUT("/products/:id", UpdateProduct(d.Products, d.Categories))
		admin.DELETE("/products/:id", DeleteProduct(d.Products))

		admin.GET("/categories", AdminGetCategories(d.Categories))
		admin.POST("/categories", CreateCategory(d.Categories))
		admin.PUT("/categories/:id", UpdateCategory(d.Categories))
		admin.DELETE("/categories/:id", DeleteCategory(d.Categories))

		admin.GET("/orders", AdminGetOrders(d.Orders))
		admin.DELETE("/orders/:id", DeleteOrder(d.Orders))
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key"},
		ExposeHeaders: []string{"Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowOrigins = nil
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowCredentials = true
	return cfg
}
