// Package notifydelivery streams balance changes to HTTP clients over WebSocket.
package notifydelivery

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/middleware"
	"github.com/go-petr/pet-ledger/pkg/tokenpkg"
)

// Subscriber registers balance listeners.
type Subscriber interface {
	Subscribe(username string, l domain.BalanceListener)
	Unsubscribe(username string, l domain.BalanceListener)
}

// ErrSlowConsumer is reported for an event dropped because the client lags behind.
var ErrSlowConsumer = errors.New("event buffer full")

// Event is one balance change as sent to the client.
type Event struct {
	Username string    `json:"username"`
	Balance  int64     `json:"balance"`
	Message  string    `json:"message"`
	Time     time.Time `json:"time"`
}

// Handler facilitates notification delivery layer logic.
type Handler struct {
	subscriber   Subscriber
	bufferSize   int
	writeTimeout time.Duration
}

// NewHandler returns notification handler.
func NewHandler(s Subscriber) *Handler {
	return &Handler{
		subscriber:   s,
		bufferSize:   32,
		writeTimeout: 5 * time.Second,
	}
}

// relay buffers events between the notifier and one WebSocket connection.
type relay struct {
	events chan Event
}

// OnBalanceChanged never blocks the caller; events beyond the buffer are dropped.
func (r *relay) OnBalanceChanged(username string, balance int64, message string) error {
	select {
	case r.events <- Event{Username: username, Balance: balance, Message: message, Time: time.Now().UTC()}:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// Stream upgrades the request and pushes the token user's balance events until
// the client goes away.
func (h *Handler) Stream(gctx *gin.Context) {
	authPayload := gctx.MustGet(middleware.AuthPayloadKey).(*tokenpkg.Payload)
	username := authPayload.Username

	l := zerolog.Ctx(gctx.Request.Context()).With().Str("username", username).Logger()

	conn, err := websocket.Accept(gctx.Writer, gctx.Request, nil)
	if err != nil {
		l.Info().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	r := &relay{events: make(chan Event, h.bufferSize)}

	h.subscriber.Subscribe(username, r)
	defer h.subscriber.Unsubscribe(username, r)

	l.Info().Msg("notification stream opened")

	// Clients only listen; CloseRead handles control frames and cancels ctx on close.
	ctx := conn.CloseRead(gctx.Request.Context())

	for {
		select {
		case <-ctx.Done():
			l.Info().Msg("notification stream closed")
			conn.Close(websocket.StatusNormalClosure, "")

			return
		case ev := <-r.events:
			if err := h.write(ctx, conn, ev); err != nil {
				if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
					l.Info().Err(err).Msg("writing event")
				}

				return
			}
		}
	}
}

func (h *Handler) write(ctx context.Context, conn *websocket.Conn, ev Event) error {
	ctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()

	return wsjson.Write(ctx, conn, ev)
}
