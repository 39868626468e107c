package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"race-photos-backend/internal/middleware"
)

// Handlers groups every route handler the router mounts.
type Handlers struct {
	Health  *HealthHandler
	Photos  *PhotosHandler
	Survey  *SurveyHandler
	Orders  *OrdersHandler
	Webhook *WebhookHandler
	Files   *FilesHandler
	Email   *EmailHandler
	// Admin routes are only mounted when set.
	Admin *AdminHandler
}

func NewRouter(h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logger(), middleware.Recovery())

	router.GET("/health", h.Health.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")

	// Photos and selections
	api.GET("/photos/:bib", h.Photos.GetPhotos)
	api.POST("/photos/:bib/selections", h.Photos.SetSelection)
	api.POST("/photos/:bib/selections/toggle", h.Photos.ToggleSelection)
	api.PUT("/photos/:bib/selections", h.Photos.ReplaceSelection)
	api.DELETE("/photos/:bib/selections", h.Photos.ClearSelection)
	api.POST("/photos/refresh-url", h.Photos.RefreshURL)

	api.GET("/pricing", GetPricing)
	api.POST("/survey", h.Survey.Submit)

	// Checkout and payments
	api.POST("/checkout", h.Orders.CreateCheckout)
	api.GET("/payments/session/:session_id", h.Orders.GetPaymentBySession)

	// Webhook (no auth, Stripe signature)
	api.POST("/webhooks/stripe", h.Webhook.HandleStripe)
	api.GET("/webhooks/stripe", h.Webhook.Status)

	// Delivery
	api.GET("/download/:bib", h.Files.Download)
	api.GET("/download/:bib/zip", h.Files.DownloadZip)
	api.POST("/email/photos", h.Email.SendPhotos)

	if h.Admin != nil {
		admin := api.Group("/admin")
		admin.POST("/photos/upload", h.Admin.Upload)
		admin.DELETE("/photos/:photo_id", h.Admin.DeletePhoto)
		admin.GET("/bibs", h.Admin.ListBibs)
		admin.DELETE("/bibs/:bib", h.Admin.DeleteBib)
	}

	return router
}
