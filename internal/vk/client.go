package vk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ivolkov/matchbot/internal/observability/metrics"
)

const (
	defaultAPIBase     = "https://api.vk.com"
	defaultHTTPTimeout = 10 * time.Second

	// photos.getAll page fetched before ranking by like count.
	photoFetchCount = 30
)

// Client calls the VK API over HTTP.
type Client struct {
	token      string
	version    string
	apiBase    string
	httpClient *http.Client
	metrics    *metrics.BotMetrics
}

// NewClient creates a VK API client for the given community token.
func NewClient(token, version string) *Client {
	return &Client{
		token:      token,
		version:    version,
		apiBase:    defaultAPIBase,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// SetAPIBase overrides the API base URL (useful for testing).
func (c *Client) SetAPIBase(base string) {
	c.apiBase = strings.TrimSuffix(base, "/")
}

// SetMetrics attaches request counters. A nil receiver on the metrics side
// makes this safe to skip.
func (c *Client) SetMetrics(m *metrics.BotMetrics) {
	c.metrics = m
}

type envelope struct {
	Response json.RawMessage `json:"response"`
	Error    *APIError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params url.Values, out any) (err error) {
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		c.metrics.ObserveDirectoryRequest(method, status)
	}()

	params.Set("access_token", c.token)
	params.Set("v", c.version)

	endpoint := c.apiBase + "/method/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("vk: create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vk: call %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("vk: read %s response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vk: %s unexpected status %d: %s", method, resp.StatusCode, string(body))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("vk: unmarshal %s response: %w", method, err)
	}
	if env.Error != nil {
		return fmt.Errorf("vk: %s failed: %w", method, env.Error)
	}
	if out != nil {
		if err := json.Unmarshal(env.Response, out); err != nil {
			return fmt.Errorf("vk: decode %s payload: %w", method, err)
		}
	}
	return nil
}

// SearchCandidate returns the single candidate at the given offset for the
// stated criteria, or nil when the directory has no more results.
func (c *Client) SearchCandidate(ctx context.Context, age int, sex Sex, cityID, offset int) (*Candidate, error) {
	params := url.Values{}
	params.Set("age_from", strconv.Itoa(age))
	params.Set("age_to", strconv.Itoa(age))
	params.Set("sex", strconv.Itoa(int(sex)))
	params.Set("city", strconv.Itoa(cityID))
	params.Set("has_photo", "1")
	params.Set("count", "1")
	params.Set("offset", strconv.Itoa(offset))
	params.Set("fields", "photo_id")

	var result struct {
		Count int         `json:"count"`
		Items []Candidate `json:"items"`
	}
	if err := c.call(ctx, "users.search", params, &result); err != nil {
		return nil, err
	}
	if len(result.Items) == 0 {
		return nil, nil
	}
	candidate := result.Items[0]
	return &candidate, nil
}

// TopPhotos returns up to limit attachment references for the owner's most
// liked photos, descending by like count. Ties keep the API's return order.
func (c *Client) TopPhotos(ctx context.Context, ownerID int64, limit int) ([]string, error) {
	params := url.Values{}
	params.Set("owner_id", strconv.FormatInt(ownerID, 10))
	params.Set("count", strconv.Itoa(photoFetchCount))
	params.Set("extended", "1")

	var result struct {
		Count int     `json:"count"`
		Items []photo `json:"items"`
	}
	if err := c.call(ctx, "photos.getAll", params, &result); err != nil {
		return nil, err
	}

	sort.SliceStable(result.Items, func(i, j int) bool {
		return result.Items[i].Likes.Count > result.Items[j].Likes.Count
	})
	if limit > len(result.Items) {
		limit = len(result.Items)
	}
	refs := make([]string, 0, limit)
	for _, p := range result.Items[:limit] {
		refs = append(refs, fmt.Sprintf("photo%d_%d", p.OwnerID, p.ID))
	}
	return refs, nil
}

// GetUser fetches one profile by id.
func (c *Client) GetUser(ctx context.Context, userID int64) (*User, error) {
	params := url.Values{}
	params.Set("user_ids", strconv.FormatInt(userID, 10))

	var users []User
	if err := c.call(ctx, "users.get", params, &users); err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("vk: users.get returned no profile for id %d", userID)
	}
	user := users[0]
	return &user, nil
}

// SendMessage delivers one outbound message. random_id dedupes redelivery
// on the VK side, matching the official SDKs.
func (c *Client) SendMessage(ctx context.Context, msg OutboundMessage) error {
	params := url.Values{}
	params.Set("user_id", strconv.FormatInt(msg.PeerID, 10))
	params.Set("message", msg.Text)
	params.Set("random_id", strconv.FormatInt(int64(rand.Int31()), 10))
	if msg.Attachment != "" {
		params.Set("attachment", msg.Attachment)
	}
	if msg.Keyboard != "" {
		params.Set("keyboard", msg.Keyboard)
	}
	return c.call(ctx, "messages.send", params, nil)
}
