// Package twilio sends WhatsApp messages through the Twilio Messages API.
package twilio

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/SoCloseSociety/WhatsappSender/internal/provider"
)

type Client struct {
	AccountSID string
	AuthToken  string
	From       string // whatsapp:+14155238886
	BaseURL    string
	HTTP       *http.Client
}

type sendResponse struct {
	Sid     string `json:"sid"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (c *Client) Name() string { return provider.NameTwilio }

// Send posts a form-encoded message create request with basic auth. A 2xx
// response with a sid is a submission; any other provider response is a
// rejection carrying Twilio's human-readable error message.
func (c *Client) Send(ctx context.Context, to, body string) provider.Outcome {
	if !strings.HasPrefix(to, "whatsapp:") {
		to = "whatsapp:" + to
	}

	form := url.Values{}
	form.Set("From", c.From)
	form.Set("To", to)
	form.Set("Body", body)

	baseURL := strings.TrimRight(c.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.twilio.com"
	}
	endpoint := baseURL + "/2010-04-01/Accounts/" + c.AccountSID + "/Messages.json"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return provider.TransportFailure(err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.SetBasicAuth(c.AccountSID, c.AuthToken)

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return provider.TransportFailure(err.Error())
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	var out sendResponse
	_ = json.Unmarshal(raw, &out)

	// Twilio returns 201 for created; treat 2xx as success
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return provider.Submitted(out.Sid)
	}
	reason := out.Message
	if reason == "" {
		reason = "twilio send failed (HTTP " + strconv.Itoa(resp.StatusCode) + "): " + trim(raw, 200)
	}
	return provider.Rejected(reason)
}

func trim(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
