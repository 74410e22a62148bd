package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env         string
	Port        string
	LogLevel    string
	DatabaseURL string // postgres://… for production, sqlite:<path> for local runs
	RedisURL    string // optional; enables the health marker and the listing cache
	NATSURL     string // optional; enables domain event publication

	MediaStore              string // "dir" (default) or "s3"
	UploadDir               string // filesystem directory for listing photos; must already exist
	UploadPublicPrefix      string // prefix stored in listing_images.path (site-relative, or the bucket URL for s3)
	S3Endpoint              string
	S3AccessKey             string
	S3SecretKey             string
	S3Bucket                string
	S3Region                string
	S3UseSSL                bool
	UploadsDiscardOnFailure bool   // delete staged photos when the listing transaction fails
	DataDir                 string // crops.json and regions.json
	PlaceholderImage        string
	PageSize                int
	ListingCacheTTL         time.Duration

	ReportRatePerMinute int
	ReportsNotifyEmail  string
	SendinblueAPIKey    string // SENDINBLUE_API_KEY for moderator notifications (Brevo)
	MailFrom            string
	SMTPHost            string // used when SENDINBLUE_API_KEY is unset
	SMTPPort            int
	SMTPUsername        string
	SMTPPassword        string
	SMTPSSL             bool
	SiteURL             string // public site base used for links in notification emails

	MetricsEnabled      bool
	FrontendURLEndsWith string
	DevPassword         string
	HealthAdminKey      string
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MEDIA_STORE", "dir")
	viper.SetDefault("UPLOAD_DIR", "public/uploads/listings")
	viper.SetDefault("UPLOAD_PUBLIC_PREFIX", "uploads/listings")
	viper.SetDefault("DATA_DIR", "data")
	viper.SetDefault("PLACEHOLDER_IMAGE", "images/listings/placeholder.jpg")
	viper.SetDefault("PAGE_SIZE", 9)
	viper.SetDefault("LISTING_CACHE_TTL", "1h")
	viper.SetDefault("REPORT_RATE_PER_MINUTE", 6)
	viper.SetDefault("MAIL_FROM", "noreply@cropmarket.gr")
	viper.SetDefault("S3_REGION", "us-east-1")
	viper.SetDefault("S3_USE_SSL", true)
	viper.SetDefault("SMTP_PORT", 587)
	viper.SetDefault("METRICS_ENABLED", true)

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	dbURL := viper.GetString("DATABASE_URL")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL_DEV")
	}

	pageSize := viper.GetInt("PAGE_SIZE")
	if pageSize <= 0 {
		pageSize = 9
	}

	return &Config{
		Env:                     env,
		Port:                    viper.GetString("PORT"),
		LogLevel:                viper.GetString("LOG_LEVEL"),
		DatabaseURL:             dbURL,
		RedisURL:                viper.GetString("REDIS_URL"),
		NATSURL:                 viper.GetString("NATS_URL"),
		MediaStore:              strings.ToLower(viper.GetString("MEDIA_STORE")),
		UploadDir:               viper.GetString("UPLOAD_DIR"),
		UploadPublicPrefix:      strings.Trim(viper.GetString("UPLOAD_PUBLIC_PREFIX"), "/"),
		S3Endpoint:              viper.GetString("S3_ENDPOINT"),
		S3AccessKey:             viper.GetString("S3_ACCESS_KEY"),
		S3SecretKey:             viper.GetString("S3_SECRET_KEY"),
		S3Bucket:                viper.GetString("S3_BUCKET"),
		S3Region:                viper.GetString("S3_REGION"),
		S3UseSSL:                viper.GetBool("S3_USE_SSL"),
		UploadsDiscardOnFailure: viper.GetBool("UPLOADS_DISCARD_ON_FAILURE"),
		DataDir:                 viper.GetString("DATA_DIR"),
		PlaceholderImage:        viper.GetString("PLACEHOLDER_IMAGE"),
		PageSize:                pageSize,
		ListingCacheTTL:         viper.GetDuration("LISTING_CACHE_TTL"),
		ReportRatePerMinute:     viper.GetInt("REPORT_RATE_PER_MINUTE"),
		ReportsNotifyEmail:      viper.GetString("REPORTS_NOTIFY_EMAIL"),
		SendinblueAPIKey:        viper.GetString("SENDINBLUE_API_KEY"),
		MailFrom:                viper.GetString("MAIL_FROM"),
		SMTPHost:                viper.GetString("SMTP_HOST"),
		SMTPPort:                viper.GetInt("SMTP_PORT"),
		SMTPUsername:            viper.GetString("SMTP_USERNAME"),
		SMTPPassword:            viper.GetString("SMTP_PASSWORD"),
		SMTPSSL:                 viper.GetBool("SMTP_SSL"),
		MetricsEnabled:          viper.GetBool("METRICS_ENABLED"),
		SiteURL:                 strings.TrimRight(viper.GetString("SITE_URL"), "/"),
		FrontendURLEndsWith:     viper.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:             viper.GetString("DEV_PASSWORD"),
		HealthAdminKey:          viper.GetString("HEALTH_ADMIN_KEY"),
	}, nil
}

// UsesObjectStore reports whether listing photos go to an S3-compatible bucket.
func (c *Config) UsesObjectStore() bool {
	return c.MediaStore == "s3"
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
