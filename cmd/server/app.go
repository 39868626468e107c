package main

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"race-photos-backend/internal/config"
	"race-photos-backend/internal/email"
	"race-photos-backend/internal/handlers"
	"race-photos-backend/internal/payments"
	"race-photos-backend/internal/services"
	"race-photos-backend/internal/supabase"
)

const fetchTimeout = 30 * time.Second

var (
	_ services.Store           = (*supabase.DatabaseClient)(nil)
	_ services.ObjectStorage   = (*supabase.StorageClient)(nil)
	_ services.PaymentProvider = (*payments.StripeProvider)(nil)
	_ services.Mailer          = (*email.ResendClient)(nil)
)

// app holds the wired services shared by the server and the CLI commands.
type app struct {
	cfg *config.Config
	db  *supabase.DatabaseClient

	access     *services.AccessLedger
	freshness  *services.URLFreshness
	gallery    *services.GalleryService
	selections *services.SelectionService
	surveys    *services.SurveyService
	checkout   *services.CheckoutService
	reconciler *services.Reconciler
	downloads  *services.DownloadService
	delivery   *services.DeliveryService
	admin      *services.AdminService
}

func newApp(cfg *config.Config) (*app, error) {
	db, err := supabase.NewDatabaseClient(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database client: %w", err)
	}

	supabaseClient, err := supabase.NewClient(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	storage := supabaseClient.Storage()

	provider := payments.NewStripeProvider(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	mailer := email.NewResendClient(cfg.ResendAPIBaseURL, cfg.ResendAPIKey, cfg.FromEmail, cfg.ReplyToEmail)
	fetcher := services.NewHTTPImageFetcher(fetchTimeout)

	a := &app{cfg: cfg, db: db}
	a.access = services.NewAccessLedger(db)
	a.freshness = services.NewURLFreshness(db, storage, cfg.URLRefreshThreshold, cfg.SignedURLTTL)
	a.gallery = services.NewGalleryService(db, a.access, a.freshness)
	a.selections = services.NewSelectionService(db, db)
	a.surveys = services.NewSurveyService(db, db, a.access)
	a.checkout = services.NewCheckoutService(db, provider, cfg.Currency, cfg.BaseURL)
	a.reconciler = services.NewReconciler(db, provider, cfg.WebhookLookupAttempts, cfg.WebhookLookupBackoff)
	a.downloads = services.NewDownloadService(a.access, a.freshness, fetcher, cfg.DownloadConcurrency)
	a.delivery = services.NewDeliveryService(db, a.downloads, mailer, cfg.BaseURL, cfg.EmailMaxAttempts, cfg.EmailRetryDelay)
	a.admin = services.NewAdminService(db, storage, cfg.UploadSignedURLTTL)

	if cfg.AutoSendDeliveryEmail {
		a.reconciler.OnCompleted(a.delivery.AutoSend)
	}
	return a, nil
}

func (a *app) router() *gin.Engine {
	h := handlers.Handlers{
		Health:  handlers.NewHealthHandler(a.db),
		Photos:  handlers.NewPhotosHandler(a.gallery, a.selections, a.freshness),
		Survey:  handlers.NewSurveyHandler(a.surveys),
		Orders:  handlers.NewOrdersHandler(a.checkout),
		Webhook: handlers.NewWebhookHandler(a.reconciler),
		Files:   handlers.NewFilesHandler(a.downloads),
		Email:   handlers.NewEmailHandler(a.delivery),
	}
	if a.cfg.EnableAdminRoutes {
		h.Admin = handlers.NewAdminHandler(a.admin)
	}
	return handlers.NewRouter(h)
}

func (a *app) Close() {
	a.db.Close()
}
