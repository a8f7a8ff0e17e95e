package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/totegamma/backline"
)

const defaultTimeout = 3 * time.Second

// Client talks to the identity resolver service. Resolved accounts are
// cached in-process for a short TTL.
type Client struct {
	client    *http.Client
	cache     *cache.Cache
	userAgent string
	baseURL   string
}

func New(baseURL string) *Client {
	httpClient := http.Client{
		Timeout: defaultTimeout,
	}

	c := &Client{
		client:    &httpClient,
		cache:     cache.New(10*time.Minute, 15*time.Minute),
		userAgent: "backline-core",
		baseURL:   baseURL,
	}
	httpClient.Transport = c
	return c
}

func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)
	return http.DefaultTransport.RoundTrip(req)
}

// ResolveAccount maps one persona reference to its canonical account.
func (c *Client) ResolveAccount(ctx context.Context, ref backline.PersonaRef) (backline.Account, error) {
	cacheKey := "account:" + ref.String()
	if x, found := c.cache.Get(cacheKey); found {
		return x.(backline.Account), nil
	}

	var account backline.Account
	path := fmt.Sprintf("/accounts/resolve/%s/%s", ref.Kind, ref.ID)
	if err := c.httpRequest(ctx, http.MethodGet, path, &account); err != nil {
		return backline.Account{}, err
	}

	c.cache.Set(cacheKey, account, cache.DefaultExpiration)
	return account, nil
}

func (c *Client) httpRequest(ctx context.Context, method, path string, response any) error {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	err = json.NewDecoder(resp.Body).Decode(&response)
	if err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}

	return nil
}
