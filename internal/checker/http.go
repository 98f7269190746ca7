package checker

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/y0f/graphql-check/internal/graphql"
	"github.com/y0f/graphql-check/internal/safenet"
)

// HTTPExecutor posts GraphQL queries to a single endpoint. It makes exactly
// one attempt per call.
type HTTPExecutor struct {
	endpoint  string
	client    *http.Client
	limiter   *rate.Limiter
	timeout   time.Duration
	maxBody   int64
	userAgent string
}

func NewHTTPExecutor(endpoint string, opts Options) (*HTTPExecutor, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = defaultMaxBodySize
	}
	opts.MaxBodySize = min(opts.MaxBodySize, MaxBodySizeLimit)
	if opts.UserAgent == "" {
		opts.UserAgent = "graphql-check"
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout: opts.Timeout,
			Control: safenet.Control(opts.BlockPrivate),
		}).DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: opts.SkipTLSVerify,
		},
		TLSHandshakeTimeout: opts.Timeout,
		DisableKeepAlives:   true,
	}
	if err := configureProxy(transport, opts.ProxyURL); err != nil {
		return nil, err
	}

	e := &HTTPExecutor{
		endpoint: endpoint,
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		timeout:   opts.Timeout,
		maxBody:   opts.MaxBodySize,
		userAgent: opts.UserAgent,
	}
	if opts.RateLimit > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return e, nil
}

// Execute sends query and returns the parsed response. A nil header sends the
// request without credentials. Non-2xx responses with a GraphQL JSON body are
// results, not errors.
func (e *HTTPExecutor) Execute(ctx context.Context, query string, header *graphql.Header) (*graphql.QueryResult, error) {
	if err := graphql.ValidateQuery(query); err != nil {
		return nil, err
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Op: "wait for rate limiter", Err: err}
		}
	}

	payload, err := json.Marshal(graphql.Request{Query: query})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Op: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", e.userAgent)
	if header != nil {
		header.Apply(req.Header)
	}

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "send request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBody+1))
	elapsed := time.Since(start)
	if err != nil {
		return nil, &TransportError{Op: "read response", StatusCode: resp.StatusCode, Err: err}
	}
	if int64(len(body)) > e.maxBody {
		return nil, &TransportError{
			Op:         "read response",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("body exceeds %d bytes", e.maxBody),
		}
	}

	decoded, err := graphql.DecodeResponse(body)
	if err != nil {
		return nil, &TransportError{Op: "not GraphQL", StatusCode: resp.StatusCode, Err: err}
	}

	return &graphql.QueryResult{
		StatusCode: resp.StatusCode,
		Errors:     decoded.Errors,
		Data:       decoded.Data,
		Duration:   elapsed,
	}, nil
}
