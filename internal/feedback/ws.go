package feedback

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/banshee-data/posture.report/internal/config"
	"github.com/banshee-data/posture.report/internal/pose"
	"github.com/banshee-data/posture.report/internal/session"
)

// Client message types.
const (
	MessageFrame     = "frame"
	MessageImage     = "image"
	MessageTolerance = "set_tolerance"
	MessageSyncTime  = "sync_reference_time"
)

const (
	maxMessageBytes   = 4 << 20
	directQueueLength = 4
)

// ClientMessage is one message read from a websocket client.
type ClientMessage struct {
	Type        string     `json:"type"`
	Landmarks   pose.Frame `json:"landmarks"`
	Label       string     `json:"label,omitempty"`
	Image       string     `json:"image,omitempty"`
	Tolerance   *float64   `json:"tolerance,omitempty"`
	CurrentTime *float64   `json:"current_time,omitempty"`
}

// SocketHandler serves the live feedback websocket for one session.
type SocketHandler struct {
	sess         *session.Session
	hub          *Hub
	writeTimeout time.Duration
	upgrader     websocket.Upgrader
}

// NewSocketHandler returns a handler streaming hub events and feeding client
// frames into sess. writeTimeout <= 0 selects the default.
func NewSocketHandler(sess *session.Session, hub *Hub, writeTimeout time.Duration) *SocketHandler {
	if writeTimeout <= 0 {
		writeTimeout = config.DefaultWSWriteTimeout
	}
	return &SocketHandler{
		sess:         sess,
		hub:          hub,
		writeTimeout: writeTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *SocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sub, err := h.hub.Subscribe("ws-" + uuid.NewString())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer h.hub.Unsubscribe(sub)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logf("upgrade error: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageBytes)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// gorilla connections allow one concurrent writer; replies to this client
	// go through direct so the writer goroutine owns the socket.
	direct := make(chan Event, directQueueLength)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(ctx, conn, sub, direct)
		// Unblocks ReadMessage when the writer gives up first.
		cancel()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logf("read error on %s: %v", sub.ID, err)
			}
			break
		}
		if ev, ok := h.handleMessage(ctx, data); ok {
			select {
			case direct <- ev:
			case <-ctx.Done():
			}
		}
		if ctx.Err() != nil {
			break
		}
	}
	cancel()
	<-writerDone
}

func (h *SocketHandler) writeLoop(ctx context.Context, conn *websocket.Conn, sub *Subscription, direct <-chan Event) {
	for {
		var ev Event
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case ev = <-sub.C:
		case ev = <-direct:
		}
		conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := conn.WriteJSON(ev); err != nil {
			logf("write error on %s: %v", sub.ID, err)
			return
		}
	}
}

// handleMessage applies one client message. The returned event, if any, is
// sent to that client only; broadcast effects go through the hub.
func (h *SocketHandler) handleMessage(ctx context.Context, data []byte) (Event, bool) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return errorEvent("invalid message: " + err.Error()), true
	}

	switch msg.Type {
	case MessageFrame:
		h.sess.ProcessStreamFrame(msg.Landmarks, strings.TrimSpace(msg.Label))
		return Event{}, false

	case MessageImage:
		img, err := DecodeImage(msg.Image)
		if err != nil {
			return errorEvent(err.Error()), true
		}
		if _, err := h.sess.ProcessImage(ctx, img); err != nil {
			return errorEvent(err.Error()), true
		}
		return Event{}, false

	case MessageTolerance:
		if msg.Tolerance == nil {
			return errorEvent("tolerance is required"), true
		}
		if v, ok := h.sess.SetTolerance(*msg.Tolerance); ok {
			h.hub.PublishTolerance(v)
		}
		return Event{}, false

	case MessageSyncTime:
		t := 0.0
		if msg.CurrentTime != nil {
			t = *msg.CurrentTime
		}
		h.sess.SyncIndex(t)
		return Event{}, false

	default:
		return errorEvent("unknown message type: " + msg.Type), true
	}
}

func errorEvent(msg string) Event {
	return Event{Type: EventError, Message: msg}
}

// ErrEmptyImage is returned by DecodeImage for an empty payload.
var ErrEmptyImage = errors.New("image payload is empty")

// DecodeImage decodes a base64 image, with or without a data URL prefix.
func DecodeImage(s string) ([]byte, error) {
	if i := strings.Index(s, ","); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+1:]
	}
	if s == "" {
		return nil, ErrEmptyImage
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.New("image is not valid base64")
	}
	return b, nil
}
