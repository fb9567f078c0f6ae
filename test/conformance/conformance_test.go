//go:build conformance

// Package conformance runs black-box checks against a running photo API.
//
//	PP_TARGET      base URL of the server (default http://localhost:8080)
//	PP_AUTH_TOKEN  bearer token the server was started with (default test-token)
//	PP_WAIT        how long to wait for /health before giving up (default 10s)
package conformance

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

var (
	baseURL   string
	authToken string
)

func TestMain(m *testing.M) {
	baseURL = envOr("PP_TARGET", "http://localhost:8080")
	authToken = envOr("PP_AUTH_TOKEN", "test-token")

	wait, err := time.ParseDuration(envOr("PP_WAIT", "10s"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "conformance: bad PP_WAIT: %v\n", err)
		os.Exit(2)
	}
	if err := waitHealthy(wait); err != nil {
		fmt.Fprintf(os.Stderr, "conformance: %s is not serving: %v\n", baseURL, err)
		os.Exit(2)
	}
	os.Exit(m.Run())
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// waitHealthy polls GET /health until it answers 200 or the deadline passes.
func waitHealthy(wait time.Duration) error {
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(wait)
	for {
		resp, err := client.Get(strings.TrimRight(baseURL, "/") + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
			err = fmt.Errorf("health returned %d", resp.StatusCode)
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(250 * time.Millisecond)
	}
}
