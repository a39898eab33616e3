package httpstages

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/dcshock/stageflow/pipeline"
)

// Get returns an async stage handler that performs an HTTP GET to the fixed url on its
// own goroutine. The future resolves to the response body as []byte. The run context is
// used for the request. If client is nil, http.DefaultClient is used.
func Get(client *http.Client, url string) pipeline.AsyncHandler {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context, _ any) pipeline.Awaitable {
		return pipeline.Go(ctx, func(ctx context.Context) (any, error) {
			body, err := get(ctx, client, url)
			if err != nil {
				return nil, fmt.Errorf("http get %w", err)
			}
			return body, nil
		})
	}
}

// Fetch returns an async stage handler that performs an HTTP GET to the URL given as the
// stage input, which must be a string. The future resolves to the response body as
// []byte. If client is nil, http.DefaultClient is used.
func Fetch(client *http.Client) pipeline.AsyncHandler {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context, input any) pipeline.Awaitable {
		url, ok := input.(string)
		if !ok {
			return pipeline.Rejected(fmt.Errorf("http fetch: input must be URL string, got %T", input))
		}
		return pipeline.Go(ctx, func(ctx context.Context) (any, error) {
			body, err := get(ctx, client, url)
			if err != nil {
				return nil, fmt.Errorf("http fetch %w", err)
			}
			return body, nil
		})
	}
}

func get(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%q: new request: %w", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%q: status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%q: read body: %w", url, err)
	}
	return body, nil
}
