package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultEnvFile        = ".env"
	defaultPort           = "8080"
	defaultReadTimeout    = 15 * time.Second
	defaultWriteTimeout   = 30 * time.Second
	defaultIdleTimeout    = 120 * time.Second
	defaultSiteName       = "Dido Commerce"
	defaultWebEndpoint    = "https://api.whatsapp.com/"
	defaultMobileEndpoint = "whatsapp://"
	defaultGatewayTitle   = "Order via WhatsApp"
	defaultGatewayDesc    = "Send your order via WhatsApp"
	defaultOrderTopic     = "order-events"
)

// Redirect and thank-you behaviour values accepted by the gateway configuration.
const (
	RedirectModeNone     = "no"
	RedirectModeLink     = "whatsapp_link"
	RedirectModeAuto     = "auto_redirect_to_whatsapp"
	CheckoutRedirectSame = "same_tab"
	CheckoutRedirectNew  = "new_tab"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server    ServerConfig
	Firestore FirestoreConfig
	PubSub    PubSubConfig
	Gateway   GatewayConfig
	SiteName  string
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// PubSubConfig stores messaging parameters.
type PubSubConfig struct {
	ProjectID        string
	OrderEventsTopic string
	EmulatorHost     string
}

// GatewayConfig controls the WhatsApp ordering gateway behaviour.
type GatewayConfig struct {
	Enabled           bool
	Title             string
	Description       string
	Instructions      string
	WhatsAppNumber    string
	CheckoutRedirect  string
	ThankYouMode      string
	EnableForVirtual  bool
	EnableForMethods  []string
	ExclusiveCheckout bool
	SendPaymentLink   bool
	SendViewOrderLink bool
	SendOrderMetaData bool
	IgnoredMetaFields []string
	WebEndpoint       string
	MobileEndpoint    string
	ShipToBillingOnly bool
}

// Ready reports whether the gateway has a usable destination number.
// A gateway without a number still loads, it just cannot offer the option.
func (g GatewayConfig) Ready() bool {
	return g.Enabled && validWhatsAppNumber(g.WhatsAppNumber)
}

// Warnings lists configuration problems that degrade the gateway without failing startup.
func (g GatewayConfig) Warnings() []string {
	if !g.Enabled {
		return nil
	}
	var warnings []string
	number := strings.TrimSpace(g.WhatsAppNumber)
	switch {
	case number == "":
		warnings = append(warnings, "gateway number is empty")
	case !digitsOnly(number):
		warnings = append(warnings, "gateway number must contain digits only, without + or dashes")
	case strings.HasPrefix(number, "0"):
		warnings = append(warnings, "gateway number must include the country code and cannot start with 0")
	}
	return warnings
}

func validWhatsAppNumber(number string) bool {
	number = strings.TrimSpace(number)
	if number == "" {
		return false
	}
	if !digitsOnly(number) {
		return false
	}
	return !strings.HasPrefix(number, "0")
}

func digitsOnly(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return value != ""
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the application configuration by combining defaults, .env overrides,
// and environment variables.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	if err := ctx.Err(); err != nil {
		return Config{}, err
	}

	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}

	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "API_FIRESTORE_EMULATOR_HOST", ""),
		},
		PubSub: PubSubConfig{
			ProjectID:        stringWithDefault(lookup, "API_PUBSUB_PROJECT_ID", ""),
			OrderEventsTopic: stringWithDefault(lookup, "API_PUBSUB_ORDER_EVENTS_TOPIC", defaultOrderTopic),
			EmulatorHost:     stringWithDefault(lookup, "API_PUBSUB_EMULATOR_HOST", ""),
		},
		Gateway: GatewayConfig{
			Enabled:           boolWithDefault(lookup, "API_GATEWAY_ENABLED", true),
			Title:             stringWithDefault(lookup, "API_GATEWAY_TITLE", defaultGatewayTitle),
			Description:       stringWithDefault(lookup, "API_GATEWAY_DESCRIPTION", defaultGatewayDesc),
			Instructions:      stringWithDefault(lookup, "API_GATEWAY_INSTRUCTIONS", ""),
			WhatsAppNumber:    stringWithDefault(lookup, "API_GATEWAY_WHATSAPP_NUMBER", ""),
			CheckoutRedirect:  stringWithDefault(lookup, "API_GATEWAY_REDIRECT_MODE", CheckoutRedirectSame),
			ThankYouMode:      stringWithDefault(lookup, "API_GATEWAY_THANK_YOU_MODE", RedirectModeLink),
			EnableForVirtual:  boolWithDefault(lookup, "API_GATEWAY_ENABLE_FOR_VIRTUAL", true),
			EnableForMethods:  csvWithDefault(lookup, "API_GATEWAY_ENABLE_FOR_METHODS"),
			ExclusiveCheckout: boolWithDefault(lookup, "API_GATEWAY_EXCLUSIVE_CHECKOUT", false),
			SendPaymentLink:   boolWithDefault(lookup, "API_GATEWAY_SEND_PAYMENT_LINK", false),
			SendViewOrderLink: boolWithDefault(lookup, "API_GATEWAY_SEND_VIEW_ORDER_LINK", false),
			SendOrderMetaData: boolWithDefault(lookup, "API_GATEWAY_SEND_ORDER_META", false),
			IgnoredMetaFields: csvWithDefault(lookup, "API_GATEWAY_IGNORED_META_FIELDS"),
			WebEndpoint:       stringWithDefault(lookup, "API_GATEWAY_WEB_ENDPOINT", defaultWebEndpoint),
			MobileEndpoint:    stringWithDefault(lookup, "API_GATEWAY_MOBILE_ENDPOINT", defaultMobileEndpoint),
			ShipToBillingOnly: boolWithDefault(lookup, "API_GATEWAY_SHIP_TO_BILLING_ONLY", false),
		},
		SiteName: stringWithDefault(lookup, "API_SITE_NAME", defaultSiteName),
	}

	// PubSub project defaults to the Firestore project when unspecified.
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firestore.ProjectID
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Firestore.ProjectID == "" {
		missing = append(missing, "Firestore.ProjectID")
	}
	if strings.TrimSpace(cfg.PubSub.OrderEventsTopic) == "" {
		missing = append(missing, "PubSub.OrderEventsTopic")
	}
	if strings.TrimSpace(cfg.Gateway.WebEndpoint) == "" {
		missing = append(missing, "Gateway.WebEndpoint")
	}

	switch cfg.Gateway.ThankYouMode {
	case RedirectModeNone, RedirectModeLink, RedirectModeAuto:
	default:
		missing = append(missing, "Gateway.ThankYouMode")
	}
	switch cfg.Gateway.CheckoutRedirect {
	case CheckoutRedirectSame, CheckoutRedirectNew:
	default:
		missing = append(missing, "Gateway.CheckoutRedirect")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}

func csvWithDefault(lookup func(string) (string, bool), key string) []string {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
