package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	Port        string

	// BOE source
	BOEBaseURL        string // {date} is replaced by YYYYMMDD
	BOEAccept         string
	BOEUserAgent      string
	BOEConnectTimeout time.Duration
	BOEReadTimeout    time.Duration
	BOETotalRetries   int
	BOEBackoffFactor  float64

	// PDF download / extraction
	PDFConnectTimeout time.Duration
	PDFReadTimeout    time.Duration
	PDFTotalBudget    time.Duration
	PDFRetries        int
	PDFBackoffFactor  float64
	PDFMinBytes       int64
	PDFMaxBytes       int64
	PDFMinTextChars   int
	PDFHostFallback   bool

	// Alternate-source enrichment
	EnrichConnectTimeout time.Duration
	EnrichReadTimeout    time.Duration
	EnrichRetries        int
	EnrichBackoffFactor  float64
	EnrichUserAgent      string
	EnrichMinGainChars   int
	EnrichMinAbsChars    int
	EnrichMinBaseEmpty   int
	EnrichMinSleep       time.Duration
	EnrichMaxSleep       time.Duration

	// AI
	AIAPIKey        string
	ModelTitle      string
	ModelSummary    string
	ModelImpact     string
	ModelDaily      string
	EmbedModel      string
	AITimeout       time.Duration
	AIMaxRetries    int
	AIBackoffBase   float64
	AIBudget        time.Duration
	AIDisabled      bool

	// Daily digest
	PromptVersion      int
	ForceDigestRebuild bool
	DigestSleep        time.Duration
	SampleMax          int
	SampleHead         int
	SampleTail         int
	SampleTopDepts     int
	MaxDepts           int

	// Raw artifact archive (optional; disabled when bucket is empty)
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string
}

// LoadConfig loads the environment variables and returns the config.
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		Port:        getEnv("PORT", "8080"),

		BOEBaseURL:        getEnv("BOE_BASE_URL", "https://boe.es/datosabiertos/api/boe/sumario/{date}"),
		BOEAccept:         getEnv("BOE_ACCEPT", "application/xml"),
		BOEUserAgent:      getEnv("BOE_USER_AGENT", "boediario/1.0"),
		BOEConnectTimeout: getEnvSeconds("BOE_CONNECT_TIMEOUT", 10),
		BOEReadTimeout:    getEnvSeconds("BOE_READ_TIMEOUT", 30),
		BOETotalRetries:   getEnvInt("BOE_TOTAL_RETRIES", 3),
		BOEBackoffFactor:  getEnvFloat("BOE_BACKOFF_FACTOR", 0.5),

		PDFConnectTimeout: getEnvSeconds("BOE_PDF_CONNECT_TIMEOUT", 10),
		PDFReadTimeout:    getEnvSeconds("BOE_PDF_READ_TIMEOUT", 120),
		PDFTotalBudget:    getEnvSeconds("BOE_PDF_TOTAL_BUDGET_SECS", 60),
		PDFRetries:        getEnvInt("BOE_PDF_RETRIES_TOTAL", 3),
		PDFBackoffFactor:  getEnvFloat("BOE_PDF_BACKOFF_FACTOR", 0.6),
		PDFMinBytes:       int64(getEnvInt("BOE_PDF_MIN_BYTES", 5000)),
		PDFMaxBytes:       int64(getEnvInt("BOE_PDF_MAX_BYTES", 25*1024*1024)),
		PDFMinTextChars:   getEnvInt("BOE_PDF_MIN_TEXT_CHARS", 200),
		PDFHostFallback:   getEnvBool("BOE_PDF_ENABLE_HOST_FALLBACK", true),

		EnrichConnectTimeout: getEnvSeconds("ENRICH_CONNECT_TIMEOUT", 12),
		EnrichReadTimeout:    getEnvSeconds("ENRICH_READ_TIMEOUT", 35),
		EnrichRetries:        getEnvInt("ENRICH_TOTAL_RETRIES", 4),
		EnrichBackoffFactor:  getEnvFloat("ENRICH_BACKOFF_FACTOR", 0.8),
		EnrichUserAgent:      getEnv("ENRICH_USER_AGENT", "boediario-enricher/1.0"),
		EnrichMinGainChars:   getEnvInt("ENRICH_MIN_GAIN_CHARS", 200),
		EnrichMinAbsChars:    getEnvInt("ENRICH_MIN_ABS_CHARS", 600),
		EnrichMinBaseEmpty:   getEnvInt("ENRICH_MIN_BASE_EMPTY_CHARS", 200),
		EnrichMinSleep:       getEnvMillis("ENRICH_MIN_SLEEP_MS", 100),
		EnrichMaxSleep:       getEnvMillis("ENRICH_MAX_SLEEP_MS", 300),

		AIAPIKey:      getEnv("GEMINI_API_KEY", ""),
		ModelTitle:    getEnv("AI_MODEL_TITLE", getEnv("AI_MODEL", "gemini-1.5-flash")),
		ModelSummary:  getEnv("AI_MODEL_SUMMARY", getEnv("AI_MODEL", "gemini-1.5-flash")),
		ModelImpact:   getEnv("AI_MODEL_IMPACT", getEnv("AI_MODEL", "gemini-1.5-flash")),
		ModelDaily:    getEnv("AI_MODEL_DAILY_SUMMARY", getEnv("AI_MODEL", "gemini-1.5-flash")),
		EmbedModel:    getEnv("EMBED_MODEL", "text-embedding-004"),
		AITimeout:     getEnvSeconds("AI_TIMEOUT", 45),
		AIMaxRetries:  getEnvInt("AI_MAX_RETRIES", 3),
		AIBackoffBase: getEnvFloat("AI_BACKOFF_BASE", 1.5),
		AIBudget:      getEnvSeconds("AI_BUDGET_SECS", 120),
		AIDisabled:    getEnvBool("AI_DISABLE", false),

		PromptVersion:      getEnvInt("DAILY_SUMMARY_PROMPT_VERSION", 2),
		ForceDigestRebuild: getEnvBool("FORCE_DAILY_SUMMARY_REBUILD", false),
		DigestSleep:        getEnvMillis("DAILY_SUMMARY_SLEEP_MS", 200),
		SampleMax:          getEnvInt("DAILY_SUMMARY_SAMPLE_MAX", 28),
		SampleHead:         getEnvInt("DAILY_SUMMARY_SAMPLE_HEAD", 14),
		SampleTail:         getEnvInt("DAILY_SUMMARY_SAMPLE_TAIL", 6),
		SampleTopDepts:     getEnvInt("DAILY_SUMMARY_SAMPLE_TOP_DEPTS", 4),
		MaxDepts:           getEnvInt("DAILY_SUMMARY_MAX_DEPTS", 12),

		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "eu-west-1"),
		BucketName:   getEnv("BUCKET_NAME", ""),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("WARN: %s=%q not a float, using default %g", key, v, def)
		return def
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	return v == "1" || v == "true"
}

func getEnvSeconds(key string, def int) time.Duration {
	return time.Duration(getEnvInt(key, def)) * time.Second
}

func getEnvMillis(key string, def int) time.Duration {
	return time.Duration(getEnvInt(key, def)) * time.Millisecond
}
