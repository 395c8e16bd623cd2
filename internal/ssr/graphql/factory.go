package graphql

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/ssr-gateway/internal/common/configtypes"
)

// Factory builds request-scoped clients that share one connection pool
type Factory struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewFactory(cfg configtypes.GraphQLConfig, logger *zap.Logger) *Factory {
	return NewFactoryForEndpoint(Endpoint(cfg.Host, cfg.Namespace, cfg.ProjectID), cfg.Timeout.ToDuration(), logger)
}

// NewFactoryForEndpoint skips endpoint construction, used against local stubs
func NewFactoryForEndpoint(endpoint string, timeout time.Duration, logger *zap.Logger) *Factory {
	return &Factory{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger,
	}
}

func (f *Factory) Endpoint() string {
	return f.endpoint
}

// NewClient returns a client that forwards cookie on every request
func (f *Factory) NewClient(cookie string) *Client {
	return &Client{
		endpoint:   f.endpoint,
		cookie:     cookie,
		httpClient: f.httpClient,
		logger:     f.logger,
		results:    make(map[string]json.RawMessage),
		data:       make(map[string]json.RawMessage),
	}
}
