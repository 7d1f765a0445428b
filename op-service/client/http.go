package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

const defaultHTTPTimeout = 30 * time.Second

// HTTP is a GET-only client bound to a base URL.
type HTTP interface {
	Get(ctx context.Context, path string, query url.Values, headers http.Header) (*http.Response, error)
}

type BasicHTTPClient struct {
	endpoint string
	log      log.Logger
	client   *http.Client
}

var _ HTTP = (*BasicHTTPClient)(nil)

func NewBasicHTTPClient(endpoint string, log log.Logger) *BasicHTTPClient {
	return &BasicHTTPClient{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		log:      log,
		client:   &http.Client{Timeout: defaultHTTPTimeout},
	}
}

func (cl *BasicHTTPClient) Get(ctx context.Context, p string, query url.Values, headers http.Header) (*http.Response, error) {
	target, err := url.Parse(cl.endpoint + "/" + strings.TrimPrefix(p, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse url: %w", err)
	}
	target.RawQuery = query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to construct request: %w", err)
	}
	for k, values := range headers {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	cl.log.Trace("Sending HTTP request", "url", target)
	return cl.client.Do(req)
}
