package compare

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/roach88/provcheck/internal/fault"
)

// DefaultHTTPTimeout bounds a content check request end to end.
const DefaultHTTPTimeout = 5 * time.Second

// maxBodySize bounds how much of a response body is inspected.
const maxBodySize = 1 << 20

// HTTPExpect describes the expected response to a GET.
type HTTPExpect struct {
	URL string

	// Status is the expected status code. Zero means 200.
	Status int

	// Contains, if set, must appear in the body.
	Contains string

	// Body, if set, must equal the body after trimming surrounding whitespace.
	Body string
}

// NewHTTPClient returns a client with a bounded timeout.
// A non-positive timeout uses DefaultHTTPTimeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}

// HTTP issues a GET and checks status and content. Network and timeout
// errors become TRANSPORT failures.
func HTTP(ctx context.Context, client *http.Client, want HTTPExpect) Outcome {
	if client == nil {
		client = NewHTTPClient(0)
	}
	status := want.Status
	if status == 0 {
		status = http.StatusOK
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, want.URL, nil)
	if err != nil {
		return Fail("Invalid URL %s: %v", want.URL, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Outcome{
			Message: fmt.Sprintf("Failed to access %s: %v", want.URL, err),
			Code:    fault.CodeTransport,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return Outcome{
			Message: fmt.Sprintf("Failed to read response from %s: %v", want.URL, err),
			Code:    fault.CodeTransport,
		}
	}

	if resp.StatusCode != status {
		return Fail("HTTP status code %d received from %s, expected %d.", resp.StatusCode, want.URL, status)
	}
	if want.Body != "" && strings.TrimSpace(string(body)) != strings.TrimSpace(want.Body) {
		return Fail("Response body from %s does not match expected content.", want.URL)
	}
	if want.Contains != "" && !strings.Contains(string(body), want.Contains) {
		return Fail("Response from %s does not contain %q.", want.URL, want.Contains)
	}

	return Pass("%s returned %d with expected content.", want.URL, resp.StatusCode)
}
