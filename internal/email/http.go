package email

import (
	"fmt"
	"io"
	"net/http"
)

const maxResponseBytes = 64 << 10

// do sends req and returns the response body, failing on any non-200 status.
// describe turns an error body into a provider-specific message when possible.
func do(client *http.Client, req *http.Request, service string, describe func(body []byte) string) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", service, err)
	}
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	closeErr := resp.Body.Close()
	if readErr != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", service, readErr)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("failed to close %s response body: %w", service, closeErr)
	}

	if resp.StatusCode != http.StatusOK {
		if describe != nil {
			if msg := describe(body); msg != "" {
				return nil, fmt.Errorf("%s error: %s", service, msg)
			}
		}
		return nil, fmt.Errorf("%s API returned status %d: %s", service, resp.StatusCode, string(body))
	}
	return body, nil
}
