package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"zapdesk/internal/interfaces"
)

// ErrMediaNotFound means every known media route answered 404: the gateway
// version in front of us simply does not have the message anymore.
var ErrMediaNotFound = errors.New("media not found on any gateway route")

// mediaRoutes are the known retrieval paths for the same capability across
// gateway versions, probed in order. Add new versions here, call sites stay
// untouched.
var mediaRoutes = []string{
	"/chat/getBase64FromMediaMessage/%s",
	"/message/getBase64FromMediaMessage/%s",
	"/chat/getBase64/%s",
}

// mediaFetchDelay tolerates gateway-side asynchronous media persistence:
// the webhook often arrives before the blob is queryable.
const mediaFetchDelay = 1500 * time.Millisecond

// GatewayClient talks to an Evolution-style messaging gateway over HTTP.
// Every request carries the shared apikey header.
type GatewayClient struct {
	BaseURL string
	APIKey  string
	client  *http.Client
}

func NewGatewayClient(baseURL, apiKey string) *GatewayClient {
	return &GatewayClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

var _ interfaces.Gateway = (*GatewayClient)(nil)

func (g *GatewayClient) post(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", g.APIKey)
	return g.client.Do(req)
}

// SendText delivers a plain text message to a conversation.
func (g *GatewayClient) SendText(ctx context.Context, instance, number, text string) error {
	resp, err := g.post(ctx, "/message/sendText/"+instance, map[string]string{
		"number": number,
		"text":   text,
	})
	if err != nil {
		return fmt.Errorf("sendText: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendText: gateway returned %d", resp.StatusCode)
	}
	return nil
}

// SendMedia delivers a base64 attachment with caption.
func (g *GatewayClient) SendMedia(ctx context.Context, instance, number string, media interfaces.MediaPayload) error {
	resp, err := g.post(ctx, "/message/sendMedia/"+instance, map[string]string{
		"number":    number,
		"media":     media.Base64,
		"mediatype": media.Kind,
		"mimetype":  media.MimeType,
		"caption":   media.Caption,
		"fileName":  media.FileName,
	})
	if err != nil {
		return fmt.Errorf("sendMedia: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendMedia: gateway returned %d", resp.StatusCode)
	}
	return nil
}

// FetchMediaBase64 probes the known media routes until one answers. 404
// means "try the next version's path"; any other failure status is treated
// as a real error and stops the probe.
func (g *GatewayClient) FetchMediaBase64(ctx context.Context, instance string, ref interfaces.MediaRef) (string, error) {
	select {
	case <-time.After(mediaFetchDelay):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	body := map[string]interface{}{
		"message":      map[string]interface{}{"key": map[string]string{"id": ref.MessageID}},
		"convertToMp4": false,
	}

	for _, route := range mediaRoutes {
		path := fmt.Sprintf(route, instance)
		resp, err := g.post(ctx, path, body)
		if err != nil {
			return "", fmt.Errorf("media fetch %s: %w", path, err)
		}

		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			logrus.WithFields(logrus.Fields{
				"instance": instance,
				"route":    path,
			}).Debug("media route not available, trying next")
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return "", fmt.Errorf("media fetch %s: gateway returned %d", path, resp.StatusCode)
		}

		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return "", fmt.Errorf("media fetch %s: %w", path, err)
		}

		var out struct {
			Base64 string `json:"base64"`
		}
		if err := json.Unmarshal(raw, &out); err != nil || out.Base64 == "" {
			// Empty 200 counts as a miss on this route.
			continue
		}
		return out.Base64, nil
	}

	return "", ErrMediaNotFound
}

// CreateInstance provisions a new account on the gateway.
func (g *GatewayClient) CreateInstance(ctx context.Context, instance, token string) error {
	resp, err := g.post(ctx, "/instance/create", map[string]interface{}{
		"instanceName": instance,
		"token":        token,
		"qrcode":       true,
	})
	if err != nil {
		return fmt.Errorf("createInstance: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("createInstance: gateway returned %d", resp.StatusCode)
	}
	return nil
}

// ConfigureWebhook points the gateway's event stream at our webhook and
// restarts the instance so the setting takes effect.
func (g *GatewayClient) ConfigureWebhook(ctx context.Context, instance, webhookURL string) error {
	webhook := map[string]interface{}{
		"enabled":        true,
		"url":            webhookURL,
		"download_media": true,
		"base64":         true,
		"events":         []string{"MESSAGES_UPSERT", "CONNECTION_UPDATE"},
	}

	resp, err := g.post(ctx, "/webhook/set/"+instance, map[string]interface{}{"webhook": webhook})
	if err != nil {
		return fmt.Errorf("configureWebhook: %w", err)
	}
	resp.Body.Close()

	resp, err = g.post(ctx, "/instance/restart/"+instance, struct{}{})
	if err != nil {
		return fmt.Errorf("restart instance: %w", err)
	}
	resp.Body.Close()
	return nil
}

// PairingCode returns the gateway's current connection code for an
// instance, used to render the pairing QR.
func (g *GatewayClient) PairingCode(ctx context.Context, instance string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+"/instance/connect/"+instance, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("apikey", g.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("pairingCode: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("pairingCode: gateway returned %d", resp.StatusCode)
	}

	var out struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Code, nil
}
