package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DefaultGammaBaseURL is the public Polymarket gamma API.
const DefaultGammaBaseURL = "https://gamma-api.polymarket.com"

// DefaultOracleTimeout bounds a single market-status request.
const DefaultOracleTimeout = 10 * time.Second

// GammaClient queries Polymarket market resolutions over HTTP. It implements
// Oracle. The base URL is injectable so tests can point it at a local server.
type GammaClient struct {
	baseURL string
	client  *http.Client
}

// NewGammaClient returns a client against baseURL (empty means the public
// API) with a per-request timeout (zero means DefaultOracleTimeout).
func NewGammaClient(baseURL string, timeout time.Duration) *GammaClient {
	if baseURL == "" {
		baseURL = DefaultGammaBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultOracleTimeout
	}
	return &GammaClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// MarketStatus fetches GET {base}/markets/{conditionID}. Any transport,
// status or decode failure comes back as an *OracleError.
func (c *GammaClient) MarketStatus(ctx context.Context, conditionID string) (MarketStatus, error) {
	url := fmt.Sprintf("%s/markets/%s", c.baseURL, conditionID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return MarketStatus{}, &OracleError{ConditionID: conditionID, Err: err}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return MarketStatus{}, &OracleError{ConditionID: conditionID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return MarketStatus{}, &OracleError{
			ConditionID: conditionID,
			Err:         fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var status MarketStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return MarketStatus{}, &OracleError{ConditionID: conditionID, Err: err}
	}
	return status, nil
}
