package datastore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client is a JSON over HTTP Service implementation.
type Client struct {
	endpoint string
	client   *http.Client
}

// NewClient creates a client for the data store server at endpoint. A nil
// httpClient gets a default with a timeout.
func NewClient(endpoint string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid data store url %q", endpoint)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{endpoint: strings.TrimRight(endpoint, "/"), client: httpClient}, nil
}

// HTTPFactory creates Clients sharing one http.Client.
func HTTPFactory(httpClient *http.Client) Factory {
	return FactoryFunc(func(remoteURL string) (Service, error) {
		return NewClient(remoteURL, httpClient)
	})
}

type locationsRequest struct {
	SessionToken string   `json:"session_token"`
	Locations    []string `json:"locations"`
}

type locationsResponse struct {
	Locations []string `json:"locations"`
}

type uploadRequest struct {
	SessionToken string        `json:"session_token"`
	DataSets     []DataSet     `json:"data_sets"`
	Context      UploadContext `json:"context"`
}

// KnownDataSets implements Service.
func (c *Client) KnownDataSets(ctx context.Context, sessionToken string, locations []string) ([]string, error) {
	var resp locationsResponse
	if err := c.post(ctx, "/datasets/known", locationsRequest{SessionToken: sessionToken, Locations: locations}, &resp); err != nil {
		return nil, err
	}
	return resp.Locations, nil
}

// DeleteDataSets implements Service.
func (c *Client) DeleteDataSets(ctx context.Context, sessionToken string, locations []string) error {
	return c.post(ctx, "/datasets/delete", locationsRequest{SessionToken: sessionToken, Locations: locations}, nil)
}

// UploadDataSets implements Service.
func (c *Client) UploadDataSets(ctx context.Context, sessionToken string, dataSets []DataSet, uc UploadContext) error {
	return c.post(ctx, "/datasets/upload", uploadRequest{SessionToken: sessionToken, DataSets: dataSets, Context: uc}, nil)
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("data store request %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("data store %s returned status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
