package bgsync

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/redis/go-redis/v9"
)

// HTTPProbe issues a HEAD request to url. Any response below 500 counts as
// online. A nil client uses http.DefaultClient.
func HTTPProbe(client *http.Client, url string) Probe {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("bgsync: probe %s: status %d", url, resp.StatusCode)
		}
		return nil
	}
}

// RedisProbe treats a successful PING as online.
func RedisProbe(rdb redis.UniversalClient) Probe {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}
