// Package notifyclient is the reactive consumer of the notification stream:
// it keeps a local unread counter, fans new events out to UI listeners, and
// degrades to polling when the stream drops.
package notifyclient

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	toastLifetime       = 5 * time.Second
	defaultPollInterval = 15 * time.Second
)

// Event mirrors the event half of a stream frame.
type Event struct {
	ID              string    `json:"id"`
	RecipientID     uint      `json:"recipient_id"`
	ActorID         uint      `json:"actor_id"`
	Type            string    `json:"type"`
	TargetPostID    string    `json:"target_post_id,omitempty"`
	TargetCommentID string    `json:"target_comment_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Actor mirrors the resolved actor identity attached to a frame.
type Actor struct {
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

type frame struct {
	Kind  string `json:"kind"`
	Event Event  `json:"event"`
	Actor Actor  `json:"actor"`
}

// Toast is the transient banner for the most recent event. Only one is live
// at a time; a newer event replaces it instead of stacking.
type Toast struct {
	Event Event
	Actor Actor
}

// Options configures a Listener.
type Options struct {
	StreamURL    string // ws:// or wss:// notification stream endpoint
	CountURL     string // unread-count endpoint used by the polling fallback
	Token        string // bearer token for both
	Logger       *zap.Logger
	HTTPClient   *http.Client
	PollInterval time.Duration // defaults to 15s
}

// Listener holds one live subscription to the notification stream plus an
// always-running polling fallback. Tear it down with Close; no timer or
// subscription survives that.
type Listener struct {
	opts   Options
	conn   *websocket.Conn
	httpc  *http.Client
	logger *zap.Logger

	mu         sync.Mutex
	unread     int64
	handlers   []func(Event, Actor)
	toast      *Toast
	toastTimer *time.Timer

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Listen dials the stream and starts the read and polling loops.
func Listen(opts Options) (*Listener, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}

	header := http.Header{}
	if opts.Token != "" {
		header.Set("Authorization", "Bearer "+opts.Token)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(opts.StreamURL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}

	l := &Listener{
		opts:   opts,
		conn:   conn,
		httpc:  opts.HTTPClient,
		logger: opts.Logger,
		done:   make(chan struct{}),
	}
	l.wg.Add(2)
	go l.readPump()
	go l.pollLoop()
	return l, nil
}

// OnEvent registers a handler invoked for every incoming event.
func (l *Listener) OnEvent(fn func(Event, Actor)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers = append(l.handlers, fn)
}

// UnreadCount returns the locally tracked unread total.
func (l *Listener) UnreadCount() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.unread
}

// Toast returns the currently displayed toast, or nil after it expired.
func (l *Listener) Toast() *Toast {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.toast
}

// Close synchronously tears the listener down: the stream is unsubscribed,
// the poller stopped, and any pending toast timer cancelled.
func (l *Listener) Close() {
	l.closeOnce.Do(func() {
		close(l.done)
		_ = l.conn.Close()

		l.mu.Lock()
		if l.toastTimer != nil {
			l.toastTimer.Stop()
			l.toastTimer = nil
		}
		l.toast = nil
		l.mu.Unlock()

		l.wg.Wait()
	})
}

func (l *Listener) readPump() {
	defer l.wg.Done()
	for {
		_, data, err := l.conn.ReadMessage()
		if err != nil {
			select {
			case <-l.done:
			default:
				// stream is gone; the polling fallback keeps the count fresh
				l.logger.Warn("notification stream dropped", zap.Error(err))
			}
			return
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			l.logger.Warn("unreadable stream frame", zap.Error(err))
			continue
		}
		if f.Kind != "notification" {
			continue
		}
		l.handle(f)
	}
}

func (l *Listener) handle(f frame) {
	l.mu.Lock()
	l.unread++
	if l.toastTimer != nil {
		l.toastTimer.Stop()
	}
	l.toast = &Toast{Event: f.Event, Actor: f.Actor}
	l.toastTimer = time.AfterFunc(toastLifetime, l.expireToast)
	handlers := make([]func(Event, Actor), len(l.handlers))
	copy(handlers, l.handlers)
	l.mu.Unlock()

	for _, h := range handlers {
		h(f.Event, f.Actor)
	}
}

func (l *Listener) expireToast() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.toast = nil
	l.toastTimer = nil
}

// pollLoop refreshes the unread count from the server on a fixed interval.
// It runs regardless of stream health so a dead websocket degrades to
// polling instead of a stale counter.
func (l *Listener) pollLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(l.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.refreshUnread()
		}
	}
}

func (l *Listener) refreshUnread() {
	req, err := http.NewRequest(http.MethodGet, l.opts.CountURL, nil)
	if err != nil {
		l.logger.Warn("bad count URL", zap.Error(err))
		return
	}
	if l.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+l.opts.Token)
	}
	resp, err := l.httpc.Do(req)
	if err != nil {
		l.logger.Warn("unread count poll failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		l.logger.Warn("unread count poll rejected", zap.Int("status", resp.StatusCode))
		return
	}

	var body struct {
		Data struct {
			Count int64 `json:"count"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		l.logger.Warn("unreadable count response", zap.Error(err))
		return
	}

	l.mu.Lock()
	l.unread = body.Data.Count
	l.mu.Unlock()
}
