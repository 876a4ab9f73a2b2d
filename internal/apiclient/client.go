// Package apiclient submits attendance data to the clinical backend: it
// builds JSON and multipart bodies, forwards the bearer token and classifies
// outcomes into results or typed failures. It never retries.
package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/atendimento/internal/attachment"
	"github.com/example/atendimento/internal/logging"
)

type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Normalizer *attachment.Normalizer
	Logger     *zap.Logger
}

// Client is safe for concurrent use; calls share no mutable state.
type Client struct {
	baseURL    string
	httpClient *http.Client
	normalizer *attachment.Normalizer
	logger     *zap.Logger
}

func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("base url is empty")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, err
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	normalizer := opts.Normalizer
	if normalizer == nil {
		normalizer = &attachment.Normalizer{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		normalizer: normalizer,
		logger:     logger.Named("apiclient"),
	}, nil
}

// Do sends req and classifies the response. Failures are wrapped in a
// logging.OperationError around one of HTTPError, MalformedResponseError,
// TransportError or ErrMissingToken.
func (c *Client) Do(ctx context.Context, req Request) (Result, error) {
	requestID := uuid.NewString()
	route := req.Method + " " + req.Endpoint
	opLogger := logging.WithOperation(c.logger, req.Operation, requestID)
	fail := func(err error) *logging.OperationError {
		return &logging.OperationError{Operation: req.Operation, Route: route, RequestID: requestID, Err: err}
	}

	if strings.TrimSpace(req.AuthToken) == "" {
		return Result{}, fail(ErrMissingToken)
	}

	httpReq, err := req.build(ctx, c.baseURL, requestID)
	if err != nil {
		wrapped := fail(err)
		opLogger.Error("failed to build request", zap.Object("failure", wrapped))
		return Result{}, wrapped
	}

	opLogger.Debug("sending request", zap.String("route", route))
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		wrapped := fail(&TransportError{Err: err})
		opLogger.Error("request failed", zap.Object("failure", wrapped))
		return Result{}, wrapped
	}
	defer resp.Body.Close()

	result, err := classify(resp, req.Fallback)
	if err != nil {
		opLogger.Warn("request rejected", zap.Int("status", resp.StatusCode), zap.String("route", route), zap.Error(err))
		return Result{}, fail(err)
	}

	opLogger.Debug("request succeeded", zap.Int("status", resp.StatusCode))
	return result, nil
}
