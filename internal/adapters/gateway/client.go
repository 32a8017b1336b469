// Package gateway proxies compute and export requests to the upstream
// backend over HTTP and relays its responses for the cache-aside service.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/emberline/flue/internal/domain/model"
	"github.com/emberline/flue/internal/domain/types"
	"github.com/emberline/flue/pkg/metrics"
)

const (
	defaultTimeout = 10 * time.Second
	computePath    = "/api/compute"
	exportPath     = "/api/compute/export"
	versionHeader  = "X-Dataset-Version"

	// maxRelayBody caps relayed upstream bodies so a misbehaving backend
	// cannot exhaust memory.
	maxRelayBody = 8 << 20
)

// ComputeReply is a successful upstream compute response plus the dataset
// version the upstream reported for it.
type ComputeReply struct {
	Body           []byte
	ContentType    string
	DatasetVersion string
}

// Client forwards validated requests to the upstream backend.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a gateway client for the given backend base URL with
// configuration options.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
	}

	// Apply all options
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Compute forwards a compute request and returns the upstream body together
// with the dataset version the upstream considers current. Non-2xx responses
// come back as *UpstreamError so the caller can relay them verbatim.
func (c *Client) Compute(ctx context.Context, req model.ComputeRequest) (ComputeReply, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return ComputeReply{}, fmt.Errorf("%w: %w", ErrEncodeRequest, err)
	}

	resp, err := c.post(ctx, c.baseURL+computePath, body, "application/json")
	if err != nil {
		return ComputeReply{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxRelayBody))
	if err != nil {
		metrics.RecordUpstreamFailure()
		return ComputeReply{}, fmt.Errorf("%w: %w", ErrUpstreamUnreachable, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		metrics.RecordUpstreamFailure()
		return ComputeReply{}, &UpstreamError{
			Status:      resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        payload,
		}
	}

	return ComputeReply{
		Body:           payload,
		ContentType:    resp.Header.Get("Content-Type"),
		DatasetVersion: datasetVersion(resp.Header, payload),
	}, nil
}

// Export forwards an export request and relays the upstream status,
// content type, and body verbatim for any status code.
func (c *Client) Export(ctx context.Context, req model.ComputeRequest, format Format, callerAccept string) (types.ExportReply, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return types.ExportReply{}, fmt.Errorf("%w: %w", ErrEncodeRequest, err)
	}

	target := c.baseURL + exportPath
	if q := format.query(); q != "" {
		target += "?format=" + q
	}
	accept, ok := format.Accept()
	if !ok {
		accept = callerAccept
	}

	resp, err := c.post(ctx, target, body, accept)
	if err != nil {
		return types.ExportReply{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxRelayBody))
	if err != nil {
		metrics.RecordUpstreamFailure()
		return types.ExportReply{}, fmt.Errorf("%w: %w", ErrUpstreamUnreachable, err)
	}

	return types.ExportReply{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        payload,
	}, nil
}

// post sends a JSON POST and records upstream metrics around it.
func (c *Client) post(ctx context.Context, url string, body []byte, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodeRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	metrics.RecordUpstreamRequest()
	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.RecordUpstreamLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordUpstreamFailure()
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnreachable, err)
	}
	return resp, nil
}

// datasetVersion prefers the response header and falls back to the manifest
// field in the body. An empty result means the upstream reported nothing.
func datasetVersion(header http.Header, body []byte) string {
	if v := header.Get(versionHeader); v != "" {
		return v
	}

	var probe struct {
		Manifest struct {
			DatasetVersion string `json:"dataset_version"`
		} `json:"manifest"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return ""
	}
	return probe.Manifest.DatasetVersion
}
