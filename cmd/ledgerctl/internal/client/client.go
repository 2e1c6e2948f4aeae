package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"ledgerly.dev/ledger/api"
)

const (
	LedgerPath       = "/ledger"
	MerchantsPath    = LedgerPath + "/merchants"
	TransactionsPath = LedgerPath + "/transactions"
	ExpirePath       = TransactionsPath + "/expire"
	HealthPath       = "/healthz"
)

var ErrUnexpectedStatus = errors.New("unexpected status")

// StatusError is returned for every non 2xx response
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %d", ErrUnexpectedStatus, e.Status)
	}
	return fmt.Sprintf("%s: %d: %s", ErrUnexpectedStatus, e.Status, e.Message)
}

func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

type Client struct {
	url     string
	headers map[string]string
	client  *http.Client
}

func New(config Config) (c *Client) {
	c = &Client{
		url:     strings.TrimSuffix(config.Url, "/"),
		headers: config.CustomHeaders,
		client:  config.Client,
	}
	if c.client == nil {
		c.client = http.DefaultClient
	}
	return c
}

// do sends body as JSON and decodes the response into dst. Error bodies are
// decoded into dst as well when they carry more than a message.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, dst any) (err error) {
	var reader io.Reader
	if body != nil {
		contents, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(contents)
	}

	target := c.url + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to prepare request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer res.Body.Close()

	contents, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var apiErr api.Error
		json.Unmarshal(contents, &apiErr)
		if dst != nil {
			json.Unmarshal(contents, dst)
		}
		return &StatusError{Status: res.StatusCode, Message: apiErr.Error}
	}

	if dst == nil {
		return nil
	}
	err = json.Unmarshal(contents, dst)
	if err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) Health(ctx context.Context) (err error) {
	return c.do(ctx, http.MethodGet, HealthPath, nil, nil, nil)
}

func (c *Client) CreateMerchant(ctx context.Context, req *api.CreateMerchant) (merchant api.Merchant, err error) {
	err = c.do(ctx, http.MethodPost, MerchantsPath, nil, req, &merchant)
	return merchant, err
}

func (c *Client) Merchant(ctx context.Context, id string) (merchant api.Merchant, err error) {
	err = c.do(ctx, http.MethodGet, MerchantsPath+"/"+url.PathEscape(id), nil, nil, &merchant)
	return merchant, err
}

func (c *Client) UpdateMerchant(ctx context.Context, id string, req *api.UpdateMerchant) (merchant api.Merchant, err error) {
	err = c.do(ctx, http.MethodPatch, MerchantsPath+"/"+url.PathEscape(id), nil, req, &merchant)
	return merchant, err
}

func (c *Client) CreateTransaction(ctx context.Context, req *api.CreateTransaction) (tx api.Transaction, err error) {
	err = c.do(ctx, http.MethodPost, TransactionsPath, nil, req, &tx)
	return tx, err
}

func (c *Client) Transaction(ctx context.Context, id string) (tx api.Transaction, err error) {
	err = c.do(ctx, http.MethodGet, TransactionsPath+"/"+url.PathEscape(id), nil, nil, &tx)
	return tx, err
}

// Transactions lists transactions, optionally filtered. Empty filters match everything.
func (c *Client) Transactions(ctx context.Context, merchantID, state string) (txs []api.Transaction, err error) {
	query := url.Values{}
	if merchantID != "" {
		query.Set("merchant_id", merchantID)
	}
	if state != "" {
		query.Set("state", state)
	}
	err = c.do(ctx, http.MethodGet, TransactionsPath, query, nil, &txs)
	return txs, err
}

func (c *Client) AssertOutcome(ctx context.Context, id string, req *api.AssertOutcome) (tx api.Transaction, err error) {
	err = c.do(ctx, http.MethodPost, TransactionsPath+"/"+url.PathEscape(id)+"/outcome", nil, req, &tx)
	return tx, err
}

// Expire runs a sweep. On partial failure the error is returned along with the expired count.
func (c *Client) Expire(ctx context.Context) (expired api.Expired, err error) {
	err = c.do(ctx, http.MethodPost, ExpirePath, nil, nil, &expired)
	return expired, err
}
