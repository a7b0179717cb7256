package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"goodies-platform/internal/domain/campaign"
	"goodies-platform/internal/middleware"
	"goodies-platform/internal/redis"
	"goodies-platform/internal/services"
	"goodies-platform/internal/transport/httpdto"
	"goodies-platform/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// Clients only send control frames.
	maxMessageSize = 512
	sendBuffer     = 16
)

type TotalsReader interface {
	GetCampaignTotals(ctx context.Context, campaignID string) (campaign.Totals, error)
}

type ChannelSubscriber interface {
	Subscribe(ctx context.Context, channels []string, handler func(channel string, payload []byte)) error
}

// LiveMessage is one frame on the live totals socket.
type LiveMessage struct {
	Type string              `json:"type"`
	Data httpdto.CampaignDTO `json:"data"`
}

const (
	LiveSnapshot = "snapshot"
	LiveUpdate   = "totals"
)

// LiveHandler streams campaign totals over a websocket. The first frame is
// the stored snapshot; later frames come from the campaign's redis channel.
type LiveHandler struct {
	totals     TotalsReader
	subscriber ChannelSubscriber
	upgrader   websocket.Upgrader
	log        *logger.Logger
}

func NewLiveHandler(totals TotalsReader, subscriber ChannelSubscriber, log *logger.Logger) *LiveHandler {
	return &LiveHandler{
		totals:     totals,
		subscriber: subscriber,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Totals are public.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

func (h *LiveHandler) Handle(c *gin.Context) {
	if h.subscriber == nil {
		c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse("live updates are disabled", middleware.ErrorCode(http.StatusServiceUnavailable)))
		return
	}
	campaignID := c.Param("id")
	snapshot, err := h.totals.GetCampaignTotals(c.Request.Context(), campaignID)
	if err != nil {
		status := services.HTTPStatus(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), middleware.ErrorCode(status)))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.log.Warn(c.Request.Context(), "websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	defer cancel()

	send := make(chan []byte, sendBuffer)
	send <- encodeLive(LiveSnapshot, snapshot)

	go func() {
		defer cancel()
		err := h.subscriber.Subscribe(ctx, []string{redis.CampaignChannel(campaignID)}, func(_ string, payload []byte) {
			var t campaign.Totals
			if err := json.Unmarshal(payload, &t); err != nil {
				h.log.Warn(ctx, "dropping undecodable totals", zap.Error(err))
				return
			}
			select {
			case send <- encodeLive(LiveUpdate, t):
			default:
				// Slow reader; the next update supersedes this one.
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			h.log.Warn(ctx, "live totals subscription ended", zap.String("campaign_id", campaignID), zap.Error(err))
		}
	}()
	go readPump(conn, cancel)

	writePump(ctx, conn, send)
}

func encodeLive(kind string, t campaign.Totals) []byte {
	b, _ := json.Marshal(LiveMessage{Type: kind, Data: httpdto.CampaignFromTotals(t)})
	return b
}

// readPump discards client frames and cancels the stream once the peer
// goes away or stops answering pings.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(ctx context.Context, conn *websocket.Conn, send <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case message := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
