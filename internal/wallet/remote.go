package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Remote talks to the signer service over HTTP JSON.
type Remote struct {
	base       string
	token      string
	httpClient *http.Client
}

func NewRemote(endpoint, token string, timeout time.Duration) (*Remote, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("empty wallet endpoint")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse wallet endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid wallet endpoint: %s", endpoint)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Remote{
		base:       strings.TrimRight(u.String(), "/"),
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type sendResponse struct {
	Success bool     `json:"success"`
	TxID    string   `json:"txid"`
	Errors  []string `json:"errors,omitempty"`
}

func (r *Remote) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	var resp sendResponse
	if err := r.do(ctx, http.MethodPost, "/send", req, &resp); err != nil {
		return SendResult{}, fmt.Errorf("%w: %v", ErrBroadcast, err)
	}
	if !resp.Success || resp.TxID == "" {
		return SendResult{}, &BroadcastError{Errors: resp.Errors}
	}
	return SendResult{TxID: resp.TxID}, nil
}

func (r *Remote) Derive(ctx context.Context, index uint32) (Account, error) {
	var acct Account
	if err := r.do(ctx, http.MethodGet, "/accounts/"+strconv.FormatUint(uint64(index), 10), nil, &acct); err != nil {
		return Account{}, err
	}
	if acct.Address == "" || acct.Script == "" {
		return Account{}, fmt.Errorf("derive %d: empty account", index)
	}
	acct.Index = index
	return acct, nil
}

func (r *Remote) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
