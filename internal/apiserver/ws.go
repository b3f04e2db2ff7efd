package apiserver

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AymanF10/ecosystem/backend/internal/deployer"
)

type websocketSubscribeRequest struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}

type websocketEnvelope struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
	Event   string `json:"event,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	TS      int64  `json:"ts"`
}

var websocketUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

type hubMessage struct {
	name     string
	mint     string
	event    deployer.Event
	emitted  int64
	channels []string
}

// eventHub fans committed engine events out to websocket subscribers. A slow
// client drops messages rather than blocking the sink.
type eventHub struct {
	mu      sync.Mutex
	clients map[chan hubMessage]struct{}
}

func newEventHub() *eventHub {
	return &eventHub{clients: make(map[chan hubMessage]struct{})}
}

func (h *eventHub) Publish(ev deployer.Event) {
	msg := hubMessage{
		name:    ev.Name(),
		mint:    eventChannelMint(ev),
		event:   ev,
		emitted: time.Now().Unix(),
	}
	msg.channels = []string{"events"}
	if msg.mint != "" {
		msg.channels = append(msg.channels, "events."+msg.mint)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *eventHub) subscribe() chan hubMessage {
	ch := make(chan hubMessage, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *eventHub) unsubscribe(ch chan hubMessage) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

func eventChannelMint(ev deployer.Event) string {
	switch e := ev.(type) {
	case deployer.EcosystemCreated:
		return e.Mint.String()
	case deployer.EcosystemDeposited:
		return e.EcosystemMint.String()
	case deployer.FeesCollected:
		return e.EcosystemMint.String()
	case deployer.EcosystemFreezeToggled:
		return e.EcosystemMint.String()
	case deployer.MaxCapUpdated:
		return e.EcosystemMint.String()
	case deployer.WithdrawalRequestCreated:
		return e.EcosystemMint.String()
	case deployer.WithdrawalRequestApproved:
		return e.EcosystemMint.String()
	case deployer.PurchaseProcessed:
		return e.EcosystemMint.String()
	default:
		return ""
	}
}

func (s *Service) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	upgrader := websocketUpgrader
	upgrader.CheckOrigin = func(req *http.Request) bool {
		origin := strings.TrimSpace(req.Header.Get("Origin"))
		return s.isOriginAllowed(origin)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	subs := newSubscriptionSet()
	subs.Add("events")

	feed := s.hub.subscribe()
	defer s.hub.unsubscribe(feed)

	readErrCh := make(chan error, 1)
	go s.websocketReadLoop(ctx, conn, subs, readErrCh)

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-readErrCh:
			if err != nil {
				s.logger.Debug("websocket read loop ended", "err", err)
			}
			return
		case <-pingTicker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case msg := <-feed:
			channel, ok := subs.Match(msg.channels)
			if !ok {
				continue
			}
			envelope := websocketEnvelope{
				Type:    "event",
				Channel: channel,
				Event:   msg.name,
				Data:    msg.event,
				TS:      msg.emitted,
			}
			if err := writeWebsocketJSON(conn, envelope); err != nil {
				return
			}
		}
	}
}

func (s *Service) websocketReadLoop(ctx context.Context, conn *websocket.Conn, subs *subscriptionSet, readErrCh chan<- error) {
	conn.SetReadLimit(1024 * 1024)
	if err := conn.SetReadDeadline(time.Now().Add(90 * time.Second)); err == nil {
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		})
	}
	for {
		select {
		case <-ctx.Done():
			readErrCh <- nil
			return
		default:
		}
		var message websocketSubscribeRequest
		if err := conn.ReadJSON(&message); err != nil {
			readErrCh <- err
			return
		}
		message.Type = strings.ToLower(strings.TrimSpace(message.Type))
		message.Channel = strings.TrimSpace(message.Channel)
		if message.Channel == "" {
			continue
		}
		switch message.Type {
		case "subscribe":
			subs.Add(message.Channel)
		case "unsubscribe":
			subs.Remove(message.Channel)
		}
	}
}

func writeWebsocketJSON(conn *websocket.Conn, payload websocketEnvelope) error {
	if err := conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	return conn.WriteJSON(payload)
}

type subscriptionSet struct {
	mu       sync.Mutex
	channels map[string]struct{}
}

func newSubscriptionSet() *subscriptionSet {
	return &subscriptionSet{channels: make(map[string]struct{})}
}

func (s *subscriptionSet) Add(channel string) {
	s.mu.Lock()
	s.channels[channel] = struct{}{}
	s.mu.Unlock()
}

func (s *subscriptionSet) Remove(channel string) {
	s.mu.Lock()
	delete(s.channels, channel)
	s.mu.Unlock()
}

// Match returns the first of the candidate channels the client is subscribed
// to.
func (s *subscriptionSet) Match(candidates []string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, candidate := range candidates {
		if _, ok := s.channels[candidate]; ok {
			return candidate, true
		}
	}
	return "", false
}
