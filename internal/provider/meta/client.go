// Package meta sends WhatsApp messages through the Meta Cloud API.
package meta

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/SoCloseSociety/WhatsappSender/internal/provider"
)

type Client struct {
	PhoneNumberID string
	AccessToken   string
	APIVersion    string // e.g. v21.0
	BaseURL       string
	HTTP          *http.Client
}

type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type textBody struct {
	Body string `json:"body"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) Name() string { return provider.NameMeta }

// Send posts a JSON message with bearer auth. The destination is reduced to
// digits only (Meta rejects the + prefix). On 2xx the provider id is the
// first element of the messages array; errors carry error.message.
func (c *Client) Send(ctx context.Context, to, body string) provider.Outcome {
	payload := sendRequest{
		MessagingProduct: "whatsapp",
		To:               digitsOnly(to),
		Type:             "text",
		Text:             textBody{Body: body},
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return provider.TransportFailure(err.Error())
	}

	baseURL := strings.TrimRight(c.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://graph.facebook.com"
	}
	endpoint := baseURL + "/" + c.APIVersion + "/" + c.PhoneNumberID + "/messages"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		return provider.TransportFailure(err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.AccessToken)

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return provider.TransportFailure(err.Error())
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	var out sendResponse
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		id := ""
		if len(out.Messages) > 0 {
			id = out.Messages[0].ID
		}
		return provider.Submitted(id)
	}
	reason := out.Error.Message
	if reason == "" {
		reason = "meta send failed (HTTP " + strconv.Itoa(resp.StatusCode) + "): " + trim(raw, 200)
	}
	return provider.Rejected(reason)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func trim(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
