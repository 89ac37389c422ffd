package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type EnvConfig struct {
	ConfigPath string
	Username   string
	Password   string
	NewsBlur   NewsBlurEnvConfig
	Detector   DetectorEnvConfig
	OpenAI     OpenAIEnvConfig
	OTel       OTelEnvConfig
	SMTP       SMTPEnvConfig
}

type NewsBlurEnvConfig struct {
	BaseURL     string
	HTTPTimeout time.Duration
	UserAgent   string
	// RequestInterval paces outbound API calls; sequential pacing, not a scheduler.
	RequestInterval time.Duration
}

type DetectorEnvConfig struct {
	// Backend selects the language detector: "lingua" (offline, default),
	// "llm" (for runtimes without the offline models), or "none".
	Backend string
}

type OpenAIEnvConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type OTelEnvConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
	Protocol    string // "grpc" or "http/protobuf"
	Headers     map[string]string
	Insecure    bool
	SampleRatio float64
}

type SMTPEnvConfig struct {
	Host               string
	Port               int
	User               string
	Password           string
	TLSMode            string
	InsecureSkipVerify bool
}

func LoadEnv() EnvConfig {
	otlpEndpoint := strings.TrimSpace(envString("OTEL_EXPORTER_OTLP_ENDPOINT", ""))

	openAIModel := strings.TrimSpace(envString("OPENAI_MODEL", ""))
	if openAIModel == "" {
		openAIModel = "gpt-4o-mini"
	}

	return EnvConfig{
		ConfigPath: envString("NEWSBLUR_CLEANER_CONFIG", ""),
		Username:   strings.TrimSpace(envString("NEWSBLUR_USERNAME", "")),
		Password:   os.Getenv("NEWSBLUR_PASSWORD"),
		NewsBlur: NewsBlurEnvConfig{
			BaseURL:         strings.TrimSpace(envString("NEWSBLUR_BASE_URL", "https://www.newsblur.com")),
			HTTPTimeout:     envDuration("NEWSBLUR_HTTP_TIMEOUT", 30*time.Second),
			UserAgent:       envString("NEWSBLUR_USER_AGENT", "newsblur-cleaner/1.0.0"),
			RequestInterval: envDuration("NEWSBLUR_REQUEST_INTERVAL", 250*time.Millisecond),
		},
		Detector: DetectorEnvConfig{
			Backend: strings.ToLower(strings.TrimSpace(envString("LANGUAGE_DETECTOR", "lingua"))),
		},
		OpenAI: OpenAIEnvConfig{
			APIKey:  strings.TrimSpace(envString("OPENAI_API_KEY", "")),
			BaseURL: strings.TrimSpace(envString("OPENAI_BASE_URL", "")),
			Model:   openAIModel,
		},
		OTel: OTelEnvConfig{
			Enabled:     envBool("OTEL_ENABLED", false),
			ServiceName: strings.TrimSpace(envString("OTEL_SERVICE_NAME", "newsblur-cleaner")),
			Endpoint:    otlpEndpoint,
			Protocol:    strings.ToLower(strings.TrimSpace(envString("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))),
			Headers:     parseHeaders(envString("OTEL_EXPORTER_OTLP_HEADERS", "")),
			Insecure:    envBool("OTEL_EXPORTER_OTLP_INSECURE", defaultInsecure(otlpEndpoint)),
			SampleRatio: clamp01(envFloat("OTEL_TRACES_SAMPLE_RATIO", 1.0)),
		},
		SMTP: SMTPEnvConfig{
			Host:               envString("SMTP_HOST", ""),
			Port:               envInt("SMTP_PORT", 587),
			User:               envString("SMTP_USER", ""),
			Password:           envString("SMTP_PASSWORD", ""),
			TLSMode:            envString("SMTP_TLS_MODE", ""),
			InsecureSkipVerify: envBool("SMTP_INSECURE_SKIP_VERIFY", false),
		},
	}
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func parseHeaders(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	out := map[string]string{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

func defaultInsecure(endpoint string) bool {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return true
	}
	if strings.Contains(endpoint, "://") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return false
		}
		return u.Scheme == "http"
	}
	return strings.HasPrefix(endpoint, "localhost:") ||
		strings.HasPrefix(endpoint, "127.0.0.1:")
}
