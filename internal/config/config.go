package config

import "github.com/kelseyhightower/envconfig"

const (
	BotName    = "SoClose Community Bot"
	BotVersion = "2.0.0"
)

// ProviderSettings selects and credentials the outbound WhatsApp backend.
// Shared by every binary that sends messages.
type ProviderSettings struct {
	Provider string `envconfig:"WA_PROVIDER" default:"twilio"`

	// Twilio
	TwilioAccountSID   string `envconfig:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken    string `envconfig:"TWILIO_AUTH_TOKEN"`
	TwilioWhatsAppFrom string `envconfig:"TWILIO_WHATSAPP_FROM"`
	TwilioBaseURL      string `envconfig:"TWILIO_BASE_URL" default:"https://api.twilio.com"`

	// Meta Cloud API
	MetaPhoneNumberID string `envconfig:"WA_PHONE_NUMBER_ID"`
	MetaAccessToken   string `envconfig:"WA_ACCESS_TOKEN"`
	MetaAPIVersion    string `envconfig:"WA_API_VERSION" default:"v21.0"`
	MetaBaseURL       string `envconfig:"META_BASE_URL" default:"https://graph.facebook.com"`
}

// Validate returns human-readable configuration warnings. Only the active
// provider's credentials are checked; an unknown provider is reported and
// later degrades to per-message rejections rather than a crash.
func (p ProviderSettings) Validate() []string {
	var warnings []string
	switch p.Provider {
	case "twilio":
		if p.TwilioAccountSID == "" {
			warnings = append(warnings, "TWILIO_ACCOUNT_SID not set")
		}
		if p.TwilioAuthToken == "" {
			warnings = append(warnings, "TWILIO_AUTH_TOKEN not set")
		}
		if p.TwilioWhatsAppFrom == "" {
			warnings = append(warnings, "TWILIO_WHATSAPP_FROM not set")
		}
	case "meta":
		if p.MetaPhoneNumberID == "" {
			warnings = append(warnings, "WA_PHONE_NUMBER_ID not set")
		}
		if p.MetaAccessToken == "" {
			warnings = append(warnings, "WA_ACCESS_TOKEN not set")
		}
	default:
		warnings = append(warnings, "unknown WA_PROVIDER: "+p.Provider+" (use 'twilio' or 'meta')")
	}
	return warnings
}

type APIConfig struct {
	DBDSN     string `envconfig:"DB_DSN" required:"true"`
	Port      string `envconfig:"PORT" default:"8080"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// Global outbound throughput ceiling shared by all dispatch calls.
	MessagesPerSecond float64 `envconfig:"WA_MESSAGES_PER_SECOND" default:"50"`

	DBMaxConns int32 `envconfig:"DB_POOL_MAX_CONNS" default:"0"`
	DBMinConns int32 `envconfig:"DB_POOL_MIN_CONNS" default:"0"`

	ProviderSettings
}

type WebhookConfig struct {
	DBDSN     string `envconfig:"DB_DSN" required:"true"`
	Port      string `envconfig:"PORT" default:"8000"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// Meta webhook verification handshake token.
	VerifyToken string `envconfig:"WA_VERIFY_TOKEN"`

	// Inbound per-sender rate limiting.
	RedisAddr        string `envconfig:"REDIS_ADDR"`
	InboundPerMinute int    `envconfig:"INBOUND_PER_MINUTE" default:"10"`

	// Replies sent by the auto-responder share this ceiling.
	MessagesPerSecond float64 `envconfig:"WA_MESSAGES_PER_SECOND" default:"50"`

	ProviderSettings
}

func LoadAPI() APIConfig {
	var cfg APIConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func LoadWebhook() WebhookConfig {
	var cfg WebhookConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}
