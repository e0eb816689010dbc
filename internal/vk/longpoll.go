package vk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/ivolkov/matchbot/pkg/logging"
)

const (
	defaultLongPollWait = 25
	longPollRetryDelay  = 3 * time.Second
)

// LongPoller streams message events from the VK group Long Poll server.
type LongPoller struct {
	client  *Client
	groupID int
	wait    int
	logger  *logging.Logger

	httpClient *http.Client

	events chan Event

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewLongPoller creates a Long Poll event source for the given group.
func NewLongPoller(client *Client, groupID int, logger *logging.Logger) *LongPoller {
	if logger == nil {
		logger = logging.Default()
	}
	return &LongPoller{
		client:  client,
		groupID: groupID,
		wait:    defaultLongPollWait,
		logger:  logger,
		// The poll request itself blocks up to wait seconds; give the
		// transport headroom beyond that.
		httpClient: &http.Client{Timeout: time.Duration(defaultLongPollWait+10) * time.Second},
		events:     make(chan Event),
		done:       make(chan struct{}),
	}
}

// Events starts polling and returns the event stream. The channel closes
// when ctx is canceled or Close is called.
func (p *LongPoller) Events(ctx context.Context) <-chan Event {
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	go p.run(ctx)
	return p.events
}

// Close stops polling and waits for the poll loop to exit.
func (p *LongPoller) Close() error {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-p.done
	return nil
}

type longPollServer struct {
	Key    string `json:"key"`
	Server string `json:"server"`
	TS     string `json:"ts"`
}

type longPollResult struct {
	TS      string            `json:"ts"`
	Failed  int               `json:"failed"`
	Updates []json.RawMessage `json:"updates"`
}

func (p *LongPoller) run(ctx context.Context) {
	defer close(p.events)
	defer close(p.done)

	var (
		server *longPollServer
		err    error
	)

	for {
		if ctx.Err() != nil {
			return
		}

		if server == nil {
			server, err = p.getServer(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				p.logger.Error("long poll server fetch failed", "error", err)
				p.sleep(ctx, longPollRetryDelay)
				continue
			}
		}

		result, err := p.poll(ctx, server)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("long poll request failed", "error", err)
			p.sleep(ctx, longPollRetryDelay)
			continue
		}

		switch result.Failed {
		case 0:
			server.TS = result.TS
		case 1:
			// History is outdated; resume from the returned cursor.
			server.TS = result.TS
			continue
		default:
			// Key expired or information lost; re-handshake.
			server = nil
			continue
		}

		for _, raw := range result.Updates {
			event, ok := decodeMessageNew(raw)
			if !ok {
				continue
			}
			select {
			case p.events <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (p *LongPoller) getServer(ctx context.Context) (*longPollServer, error) {
	params := url.Values{}
	params.Set("group_id", strconv.Itoa(p.groupID))

	var server longPollServer
	if err := p.client.call(ctx, "groups.getLongPollServer", params, &server); err != nil {
		return nil, err
	}
	return &server, nil
}

func (p *LongPoller) poll(ctx context.Context, server *longPollServer) (*longPollResult, error) {
	endpoint := fmt.Sprintf("%s?act=a_check&key=%s&ts=%s&wait=%d",
		server.Server, url.QueryEscape(server.Key), url.QueryEscape(server.TS), p.wait)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("vk: create long poll request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vk: long poll: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("vk: read long poll response: %w", err)
	}

	var result longPollResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("vk: unmarshal long poll response: %w", err)
	}
	return &result, nil
}

func (p *LongPoller) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

type messageNewUpdate struct {
	Type   string `json:"type"`
	Object struct {
		Message struct {
			FromID int64  `json:"from_id"`
			PeerID int64  `json:"peer_id"`
			Text   string `json:"text"`
		} `json:"message"`
	} `json:"object"`
}

// decodeMessageNew converts a raw long-poll or callback update into an
// Event. Non-message updates and group chats are skipped.
func decodeMessageNew(raw json.RawMessage) (Event, bool) {
	var update messageNewUpdate
	if err := json.Unmarshal(raw, &update); err != nil {
		return Event{}, false
	}
	if update.Type != "message_new" {
		return Event{}, false
	}
	msg := update.Object.Message
	if msg.FromID == 0 {
		return Event{}, false
	}
	return Event{
		UserID:        msg.FromID,
		Text:          msg.Text,
		DirectedAtBot: msg.PeerID == msg.FromID,
	}, true
}
