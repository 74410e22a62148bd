package router

import (
	"errors"
	"time"

	browsesvc "cropmarket-backend/internal/application/browse"
	catalogsvc "cropmarket-backend/internal/application/catalog"
	emailsvc "cropmarket-backend/internal/application/emails"
	listsvc "cropmarket-backend/internal/application/listings"
	"cropmarket-backend/internal/application/media"
	reportsvc "cropmarket-backend/internal/application/reports"
	"cropmarket-backend/internal/config"
	"cropmarket-backend/internal/infrastructure/cache"
	"cropmarket-backend/internal/infrastructure/database"
	"cropmarket-backend/internal/infrastructure/events"
	"cropmarket-backend/internal/infrastructure/metrics"
	cataloghandler "cropmarket-backend/internal/interfaces/handlers/catalog"
	healthhandler "cropmarket-backend/internal/interfaces/handlers/health"
	listhandler "cropmarket-backend/internal/interfaces/handlers/listings"
	reporthandler "cropmarket-backend/internal/interfaces/handlers/reports"
	"cropmarket-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// bodyLimit fits a full batch of photos plus the text fields.
const bodyLimit = media.MaxFiles*media.MaxFileBytes + 2<<20

const rateLimiterIdle = 10 * time.Minute

// CreateApp wires configuration, storage and handlers into a Fiber app. The
// returned DB and Redis client (nil when REDIS_URL is unset) are owned by the
// caller.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil, nil, errors.New("DATABASE_URL is required")
	}
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, nil, nil, err
	}
	rdb, err := cache.Open(cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := openStore(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	deps := Deps{DB: db, Redis: rdb, Events: openPublisher(cfg.NATSURL), Store: store}
	if cfg.MetricsEnabled {
		deps.Metrics = metrics.New("cropmarket")
	}
	return New(cfg, deps), db, rdb, nil
}

// Deps are the external resources the routes depend on. Store defaults to the
// configured upload directory; the others are optional.
type Deps struct {
	DB      *gorm.DB
	Redis   *redis.Client
	Events  events.Publisher
	Store   media.Store
	Metrics *metrics.Metrics
}

// New registers middleware and routes on a fresh app.
func New(cfg *config.Config, deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
		BodyLimit:               bodyLimit,
	})

	if deps.Metrics != nil {
		app.Use(deps.Metrics.Middleware())
	}
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())
	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))
	if deps.Redis != nil {
		app.Use(middleware.HealthMarker(deps.Redis))
	}

	pub := deps.Events
	if pub == nil {
		pub = events.Nop{}
	}
	if deps.Metrics != nil {
		pub = deps.Metrics.Publisher(pub)
		app.Get("/metrics", deps.Metrics.Handler())
	}
	store := deps.Store
	if store == nil {
		store = &media.DirStore{Dir: cfg.UploadDir}
	}

	hh := &healthhandler.Handlers{
		Rdb:            deps.Redis,
		DB:             &database.Pinger{DB: deps.DB},
		Uploads:        store,
		HealthAdminKey: cfg.HealthAdminKey,
	}
	app.Get("/reset", hh.Reset)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)

	// Listings
	ls := &listsvc.Service{
		DB:               deps.DB,
		Media:            &media.Intake{Store: store, PublicPrefix: cfg.UploadPublicPrefix},
		Events:           pub,
		PlaceholderImage: cfg.PlaceholderImage,
		DiscardOnFailure: cfg.UploadsDiscardOnFailure,
	}
	if deps.Redis != nil {
		ls.Cache = &cache.ListingCache{Client: deps.Redis, TTL: cfg.ListingCacheTTL}
	}
	lh := &listhandler.Handlers{
		Service: ls,
		Browse:  &browsesvc.Service{Listings: ls, PageSize: cfg.PageSize},
	}
	api := app.Group("/api/v1")
	api.Post("/listings", lh.CreateListing)
	api.Get("/listings", lh.GetAllListings)
	api.Get("/listings/search", lh.Search)
	api.Get("/listings/:id", lh.GetListing)
	api.Get("/listing", lh.GetListingByQuery)
	api.Get("/status", lh.Status)

	// Reports
	rs := &reportsvc.Service{
		DB:          deps.DB,
		NotifyEmail: cfg.ReportsNotifyEmail,
		SiteURL:     cfg.SiteURL,
		Events:      pub,
		Notifier:    notifier(cfg),
	}
	limiter := middleware.NewRateLimiter(cfg.ReportRatePerMinute)
	stopSweep := make(chan struct{})
	go sweep(limiter, rateLimiterIdle, stopSweep)
	app.Hooks().OnShutdown(func() error {
		close(stopSweep)
		return nil
	})
	rh := &reporthandler.Handlers{Service: rs}
	api.Post("/reports", limiter.Handler(), rh.CreateReport)

	// Reference data
	ch := &cataloghandler.Handlers{Service: &catalogsvc.Service{DataDir: cfg.DataDir}}
	api.Get("/crops", ch.GetCrops)
	api.Get("/regions", ch.GetRegions)

	if dir, ok := store.(*media.DirStore); ok {
		app.Static("/"+cfg.UploadPublicPrefix, dir.Dir)
	}

	return app
}

func openStore(cfg *config.Config) (media.Store, error) {
	if !cfg.UsesObjectStore() {
		return &media.DirStore{Dir: cfg.UploadDir}, nil
	}
	return media.NewObjectStore(media.ObjectStoreConfig{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		UseSSL:    cfg.S3UseSSL,
	})
}

// notifier prefers the Brevo API and falls back to SMTP. Nil when no channel or
// moderator inbox is configured.
func notifier(cfg *config.Config) emailsvc.Notifier {
	if cfg.ReportsNotifyEmail == "" {
		return nil
	}
	if cfg.SendinblueAPIKey != "" {
		return &emailsvc.BrevoClient{APIKey: cfg.SendinblueAPIKey, MailFrom: cfg.MailFrom}
	}
	if cfg.SMTPHost != "" {
		return &emailsvc.SMTPClient{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			SSL:      cfg.SMTPSSL,
			MailFrom: cfg.MailFrom,
		}
	}
	return nil
}

func openPublisher(url string) events.Publisher {
	if url == "" {
		return events.Nop{}
	}
	p, err := events.NewNATSPublisher(url)
	if err != nil {
		log.Warn().Err(err).Msg("router: NATS unavailable, events disabled")
		return events.Nop{}
	}
	return p
}

// sweep drops idle rate limiter clients every interval until stop closes.
func sweep(rl *middleware.RateLimiter, every time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if n := rl.Sweep(every); n > 0 {
				log.Debug().Int("clients", n).Msg("router: rate limiter swept")
			}
		}
	}
}
