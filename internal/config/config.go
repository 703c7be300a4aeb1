package config

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/i474232898/crop-advisory/internal/crops"
	"github.com/i474232898/crop-advisory/internal/weather"
)

type AppConfig struct {
	Port        string        `envconfig:"PORT" default:"8080"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s" validate:"gt=0"`

	// Upstream weather source; one of openweather, weatherapi, openmeteo.
	WeatherProvider string `envconfig:"WEATHER_PROVIDER" default:"openweather" validate:"oneof=openweather weatherapi openmeteo"`
	// Missing credentials surface per request, not at startup.
	WeatherAPIKey     string `envconfig:"WEATHER_API_KEY"`
	WeatherBaseURL    string `envconfig:"WEATHER_BASE_URL" validate:"omitempty,url"`
	WeatherMaxRetries int    `envconfig:"WEATHER_MAX_RETRIES" default:"0" validate:"gte=0"`

	// Weather cache retention.
	WeatherCacheMinutes    int `envconfig:"OPENWEATHER_CACHE_MINUTES" default:"15" validate:"gt=0"`
	WeatherCacheMaxEntries int `envconfig:"WEATHER_CACHE_MAX_ENTRIES" default:"1024" validate:"gte=0"` // 0 = unlimited

	CropRulesPath string `envconfig:"CROP_RULES_PATH" default:"data/crop_rules.csv" validate:"required"`
	TopN          int    `envconfig:"RECOMMEND_TOP_N" default:"2" validate:"gt=0"`

	MandiPricesPath   string `envconfig:"MANDI_PRICES_PATH" default:"data/mandi_prices.csv" validate:"required"`
	MandiCacheSeconds int    `envconfig:"MANDI_CACHE_SECONDS" default:"3600" validate:"gt=0"`
	// Zero disables the periodic price reload.
	MandiReloadInterval time.Duration `envconfig:"MANDI_RELOAD_INTERVAL" default:"0s" validate:"gte=0"`

	// WarmLocations is a ';'-separated list of "lat,lon" pairs refreshed in the
	// background every WarmInterval. Empty disables the warmer.
	WarmLocationsRaw string        `envconfig:"WARM_LOCATIONS"`
	WarmInterval     time.Duration `envconfig:"WARM_INTERVAL" default:"15m" validate:"gt=0"`
	WarmLocations    []weather.Coordinates `ignored:"true"`

	GeocoderAPIKey string `envconfig:"GEOCODER_API_KEY"`

	FAQPath string `envconfig:"FAQ_PATH" default:"data/faq.json"`

	// Browser origins allowed by CORS; entries may use a subdomain wildcard.
	CORSAllowOrigins []string `envconfig:"CORS_ALLOW_ORIGINS" default:"https://kisanmitraai.vercel.app,https://*.vercel.app" validate:"min=1,dive,required,ne=*"`

	// Older names, used only when the WEATHER_* variables are unset.
	OpenWeatherKey     string `envconfig:"OPENWEATHER_KEY"`
	OpenWeatherBaseURL string `envconfig:"OPENWEATHER_BASE_URL" validate:"omitempty,url"`

	Scoring ScoringConfig
}

// ScoringConfig carries the scoring constants.
type ScoringConfig struct {
	TempFit         float64 `envconfig:"SCORE_TEMP_FIT" default:"30"`
	TempNear        float64 `envconfig:"SCORE_TEMP_NEAR" default:"20" validate:"gte=0"`
	TempDecay       float64 `envconfig:"SCORE_TEMP_DECAY" default:"1" validate:"gt=0"`
	RainFit         float64 `envconfig:"SCORE_RAIN_FIT" default:"30"`
	RainNear        float64 `envconfig:"SCORE_RAIN_NEAR" default:"15" validate:"gte=0"`
	RainDecay       float64 `envconfig:"SCORE_RAIN_DECAY" default:"50" validate:"gt=0"`
	SoilMatch       float64 `envconfig:"SCORE_SOIL_MATCH" default:"30"`
	SoilMiss        float64 `envconfig:"SCORE_SOIL_MISS" default:"5"`
	RotationPenalty float64 `envconfig:"SCORE_ROTATION_PENALTY" default:"20"`
}

// Weights converts the scoring configuration for the scorer.
func (s ScoringConfig) Weights() crops.Weights {
	return crops.Weights{
		TempFit:         s.TempFit,
		TempNear:        s.TempNear,
		TempDecay:       s.TempDecay,
		RainFit:         s.RainFit,
		RainNear:        s.RainNear,
		RainDecay:       s.RainDecay,
		SoilMatch:       s.SoilMatch,
		SoilMiss:        s.SoilMiss,
		RotationPenalty: s.RotationPenalty,
	}
}

// WeatherCacheTTL is the lifetime of a cached weather snapshot.
func (c *AppConfig) WeatherCacheTTL() time.Duration {
	return time.Duration(c.WeatherCacheMinutes) * time.Minute
}

// MandiCacheTTL is the lifetime of the cached price list.
func (c *AppConfig) MandiCacheTTL() time.Duration {
	return time.Duration(c.MandiCacheSeconds) * time.Second
}

var validate = validator.New()

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if cfg.WeatherAPIKey == "" {
		cfg.WeatherAPIKey = cfg.OpenWeatherKey
	}
	if cfg.WeatherBaseURL == "" {
		cfg.WeatherBaseURL = cfg.OpenWeatherBaseURL
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	locs, err := parseLocations(cfg.WarmLocationsRaw)
	if err != nil {
		return nil, fmt.Errorf("invalid WARM_LOCATIONS: %w", err)
	}
	cfg.WarmLocations = locs

	return cfg, nil
}

// parseLocations parses "lat,lon;lat,lon".
func parseLocations(raw string) ([]weather.Coordinates, error) {
	var locs []weather.Coordinates
	for _, pair := range strings.Split(raw, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.Split(pair, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("%q is not a lat,lon pair", pair)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil || lat < -90 || lat > 90 {
			return nil, fmt.Errorf("invalid latitude in %q", pair)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil || lon < -180 || lon > 180 {
			return nil, fmt.Errorf("invalid longitude in %q", pair)
		}
		locs = append(locs, weather.Coordinates{Lat: lat, Lon: lon})
	}
	return locs, nil
}
