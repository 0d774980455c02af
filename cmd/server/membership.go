package main

import (
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

// httpMembership asks the chat adapter whether a user is in the monitored
// chat: GET <base>/chats/<chat>/members/<user> -> {"member": bool}.
type httpMembership struct {
	base       string
	token      string
	chatID     int64
	httpClient *http.Client
}

func newHTTPMembership(endpoint, token string, chatID int64, timeout time.Duration) (*httpMembership, error) {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return nil, fmt.Errorf("parse members endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid members endpoint: %s", endpoint)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &httpMembership{
		base:       strings.TrimRight(u.String(), "/"),
		token:      strings.TrimSpace(token),
		chatID:     chatID,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (m *httpMembership) IsMember(ctx context.Context, userID int64) (bool, error) {
	path := m.base + "/chats/" + strconv.FormatInt(m.chatID, 10) + "/members/" + strconv.FormatInt(userID, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return false, err
	}
	if m.token != "" {
		req.Header.Set("Authorization", "Bearer "+m.token)
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("members: status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var out struct {
		Member bool `json:"member"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("members: decode: %w", err)
	}
	return out.Member, nil
}
