package blob

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// RestyGateway is the real Gateway implementation, talking to an
// IPFS-style blob gateway over HTTP.
type RestyGateway struct {
	client    *resty.Client
	baseURL   string
	authToken string
}

// NewRestyGateway builds a Gateway against baseURL, authenticating
// with authToken when set (empty for an anonymous/public gateway).
func NewRestyGateway(baseURL, authToken string, timeout time.Duration) *RestyGateway {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond)

	if authToken != "" {
		client.SetAuthToken(authToken)
	}

	return &RestyGateway{client: client, baseURL: baseURL, authToken: authToken}
}

// Get downloads the raw bytes stored under cidStr.
func (g *RestyGateway) Get(ctx context.Context, cidStr string) ([]byte, error) {
	resp, err := g.client.R().
		SetContext(ctx).
		SetPathParam("cid", cidStr).
		Get("/ipfs/{cid}")
	if err != nil {
		return nil, fmt.Errorf("resty gateway: get %s: %w", cidStr, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("resty gateway: get %s: status %d", cidStr, resp.StatusCode())
	}
	return resp.Body(), nil
}

// Put uploads data and returns the CID the gateway assigned it.
func (g *RestyGateway) Put(ctx context.Context, data []byte) (string, error) {
	var result struct {
		CID string `json:"cid"`
	}

	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(data).
		SetResult(&result).
		Post("/ipfs")
	if err != nil {
		return "", fmt.Errorf("resty gateway: put: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("resty gateway: put: status %d", resp.StatusCode())
	}
	return result.CID, nil
}
