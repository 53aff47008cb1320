package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the attendance service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	CORSAllowOrigins       string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	NotificationChannel    string
	JWTSecret              string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	LateCutoff             string
	Timezone               string
	CheckoutMinGap         time.Duration
	MaxDocumentMB          int
	ScanRateLimit          int
	StatsCacheTTL          time.Duration
	SSEKeepAlive           time.Duration
	SMTPHost               string
	SMTPPort               int
	SMTPUsername           string
	SMTPPassword           string
	SMTPFrom               string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Location resolves the configured attendance time zone.
func (c Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid attendance timezone %q: %w", name, err)
	}
	return loc, nil
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("PRESENCE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Presence API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("notifications.channel", "presence")
	v.SetDefault("cloudinary.folder", "presence/justifications")
	v.SetDefault("attendance.late_cutoff", "08:15")
	v.SetDefault("attendance.timezone", "UTC")
	v.SetDefault("attendance.checkout_min_gap", "60s")
	v.SetDefault("attendance.max_document_mb", 10)
	v.SetDefault("scan.rate_limit", 120)
	v.SetDefault("stats.cache_ttl", "5m")
	v.SetDefault("sse.keepalive", "30s")
	v.SetDefault("smtp.port", 587)

	durations := map[string]time.Duration{}
	for _, key := range []string{"attendance.checkout_min_gap", "stats.cache_ttl", "sse.keepalive"} {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		durations[key] = parsed
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		CORSAllowOrigins:       v.GetString("cors.allow_origins"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		NotificationChannel:    v.GetString("notifications.channel"),
		JWTSecret:              v.GetString("jwt.secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		LateCutoff:             v.GetString("attendance.late_cutoff"),
		Timezone:               v.GetString("attendance.timezone"),
		CheckoutMinGap:         durations["attendance.checkout_min_gap"],
		MaxDocumentMB:          v.GetInt("attendance.max_document_mb"),
		ScanRateLimit:          v.GetInt("scan.rate_limit"),
		StatsCacheTTL:          durations["stats.cache_ttl"],
		SSEKeepAlive:           durations["sse.keepalive"],
		SMTPHost:               v.GetString("smtp.host"),
		SMTPPort:               v.GetInt("smtp.port"),
		SMTPUsername:           v.GetString("smtp.username"),
		SMTPPassword:           v.GetString("smtp.password"),
		SMTPFrom:               v.GetString("smtp.from"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if _, err := cfg.Location(); err != nil {
		return Config{}, err
	}

	if cfg.MaxDocumentMB <= 0 {
		cfg.MaxDocumentMB = 10
	}

	return cfg, nil
}
