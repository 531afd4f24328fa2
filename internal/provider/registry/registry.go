// Package registry resolves the configured backend selector to a concrete
// sender. This is the only place the selector string is interpreted.
package registry

import (
	"net/http"
	"time"

	"github.com/SoCloseSociety/WhatsappSender/internal/config"
	"github.com/SoCloseSociety/WhatsappSender/internal/provider"
	"github.com/SoCloseSociety/WhatsappSender/internal/provider/meta"
	"github.com/SoCloseSociety/WhatsappSender/internal/provider/twilio"
)

const clientTimeout = 15 * time.Second

// New returns the sender for the configured backend. An unknown selector
// yields provider.Unconfigured, whose sends resolve to rejections.
func New(cfg config.ProviderSettings) provider.Sender {
	switch cfg.Provider {
	case provider.NameTwilio:
		return &twilio.Client{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			From:       cfg.TwilioWhatsAppFrom,
			BaseURL:    cfg.TwilioBaseURL,
			HTTP:       &http.Client{Timeout: clientTimeout},
		}
	case provider.NameMeta:
		return &meta.Client{
			PhoneNumberID: cfg.MetaPhoneNumberID,
			AccessToken:   cfg.MetaAccessToken,
			APIVersion:    cfg.MetaAPIVersion,
			BaseURL:       cfg.MetaBaseURL,
			HTTP:          &http.Client{Timeout: clientTimeout},
		}
	default:
		return provider.Unconfigured(cfg.Provider)
	}
}
