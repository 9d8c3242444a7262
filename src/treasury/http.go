package treasury

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/onemorebsmith/kaspa-governance/src/model"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultRequestsPerSecond = 5

// apiClient is the shared plumbing of both history apis: a rate limited GET
// decoding json. Transport errors and non-2xx responses are transient.
type apiClient struct {
	name    string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

func newAPIClient(name, baseURL string, client *http.Client, rps float64) apiClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}
	return apiClient{
		name:    name,
		baseURL: baseURL,
		http:    client,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (c apiClient) getJSON(ctx context.Context, url string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrapf(err, "failed building %s request", c.name)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		prometheusAPIErrors.WithLabelValues(c.name).Inc()
		return errors.Wrapf(model.ErrTransientAPI, "%s request failed: %s", c.name, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		prometheusAPIErrors.WithLabelValues(c.name).Inc()
		return errors.Wrapf(model.ErrTransientAPI, "failed reading %s response: %s", c.name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		prometheusAPIErrors.WithLabelValues(c.name).Inc()
		return errors.Wrapf(model.ErrTransientAPI, "%s returned %d: %s", c.name, resp.StatusCode, truncate(body, 200))
	}
	if err := json.Unmarshal(body, out); err != nil {
		prometheusAPIErrors.WithLabelValues(c.name).Inc()
		return errors.Wrapf(model.ErrTransientAPI, "failed decoding %s response: %s", c.name, err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return fmt.Sprintf("%s...", b[:n])
}
