package escrowprovider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
	"github.com/valyala/bytebufferpool"

	"github.com/tradeyard/dealops/internal/domain/escrow"
	"github.com/tradeyard/dealops/internal/platform/logging"
	"github.com/tradeyard/dealops/internal/platform/resilience"
	"github.com/tradeyard/dealops/internal/usecase"
)

const defaultBaseURL = "https://escrow.tradeyard.internal/api"

var errProviderTransient = errors.New("escrow provider transient failure")

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	Token          string
	Timeout        time.Duration
	MaxRetries     int
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client talks to the escrow provider's statement API. It satisfies
// usecase.StatementProvider.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	token          string
	maxRetries     int
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 15 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		token:          strings.TrimSpace(cfg.Token),
		maxRetries:     maxRetries,
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
	}
}

type statementRequest struct {
	ProviderReference string `json:"provider_reference"`
}

type statementEnvelope struct {
	Data struct {
		StatementID string  `json:"statement_id"`
		Balance     float64 `json:"balance"`
		GeneratedAt string  `json:"generated_at"`
	} `json:"data"`
}

// GetStatement asks the provider to generate a fresh balance statement for
// one escrow reference.
func (c *Client) GetStatement(ctx context.Context, providerReference string) (escrow.Statement, error) {
	providerReference = strings.TrimSpace(providerReference)
	if providerReference == "" {
		return escrow.Statement{}, fmt.Errorf("provider reference is required")
	}

	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "escrow provider circuit breaker rejected request", "state", c.breaker.State())
			return escrow.Statement{}, fmt.Errorf("%w: escrow provider is temporarily unavailable", usecase.ErrDependencyUnavailable)
		}
	}

	raw, err := c.executeRequest(ctx, providerReference)
	if c.circuitEnabled {
		if err != nil && errors.Is(err, errProviderTransient) {
			c.breaker.RecordFailure()
		} else {
			c.breaker.RecordSuccess()
		}
	}
	if err != nil {
		return escrow.Statement{}, err
	}

	var envelope statementEnvelope
	if err := sonic.Unmarshal(raw, &envelope); err != nil {
		return escrow.Statement{}, fmt.Errorf("decode statement payload: %w", err)
	}
	if envelope.Data.StatementID == "" {
		return escrow.Statement{}, fmt.Errorf("provider returned statement without id for reference %q", providerReference)
	}

	generatedAt, err := time.Parse(time.RFC3339, envelope.Data.GeneratedAt)
	if err != nil {
		generatedAt = time.Now().UTC()
	}

	return escrow.Statement{
		StatementID: envelope.Data.StatementID,
		Balance:     envelope.Data.Balance,
		GeneratedAt: generatedAt,
	}, nil
}

func (c *Client) executeRequest(ctx context.Context, providerReference string) ([]byte, error) {
	body := bytebufferpool.Get()
	defer bytebufferpool.Put(body)

	payload, err := sonic.Marshal(statementRequest{ProviderReference: providerReference})
	if err != nil {
		return nil, fmt.Errorf("encode statement request: %w", err)
	}
	if _, err := body.Write(payload); err != nil {
		return nil, fmt.Errorf("buffer statement request: %w", err)
	}

	fullURL := c.baseURL + "/v1/statements/generate"

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(body.B))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("content-type", "application/json")
		req.Header.Set("accept", "application/json")
		if c.token != "" {
			req.Header.Set("authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = errors.Wrapf(errProviderTransient, "send request: %v", err)
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			_ = resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = errors.Wrapf(errProviderTransient, "read response body: %v", readErr)
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return raw, nil
			case isRetryableStatus(resp.StatusCode):
				lastErr = errors.Wrapf(errProviderTransient, "provider status=%d body=%s", resp.StatusCode, abbreviateBody(raw))
			default:
				return nil, fmt.Errorf("provider status=%d body=%s", resp.StatusCode, abbreviateBody(raw))
			}
		}

		if attempt == c.maxRetries {
			break
		}
		backoff := time.Duration(attempt+1) * time.Second
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("provider request failed")
	}
	c.logger.WarnContext(ctx, "escrow provider request failed", "reference", providerReference, "error", lastErr)
	return nil, lastErr
}

func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func abbreviateBody(raw []byte) string {
	const limit = 256
	body := strings.TrimSpace(string(raw))
	if len(body) > limit {
		return body[:limit] + "..."
	}
	return body
}
