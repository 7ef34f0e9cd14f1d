package ws

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"matchroom-service/internal/models"
	"matchroom-service/internal/observability"
)

// TokenResolver maps a bearer token to a user id.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (int, error)
}

// RoomService authorizes room access and persists messages.
type RoomService interface {
	JoinRoom(ctx context.Context, roomID, userID int, subscribe func(room models.ChatRoom, history []models.MessageView) error) error
	PostMessage(ctx context.Context, roomID, userID int, content string) (models.MessageView, error)
}

// Gateway serves the match room websocket endpoint.
type Gateway struct {
	hub      *Hub
	rooms    RoomService
	tokens   TokenResolver
	upgrader websocket.Upgrader
}

// NewGateway constructs a Gateway. An empty origin list or "*" accepts any origin.
func NewGateway(hub *Hub, rooms RoomService, tokens TokenResolver, allowedOrigins []string) *Gateway {
	return &Gateway{
		hub:    hub,
		rooms:  rooms,
		tokens: tokens,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[origin] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return len(set) == 0 || origin == "" || set[origin]
	}
}

// Handle upgrades the connection and serves events until the client goes away.
func (g *Gateway) Handle(c *gin.Context) {
	ctx, span := observability.Tracer().Start(c.Request.Context(), "ws.connection")
	defer span.End()

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		observability.IncWSEvent("ws_connect", "upgrade_failed")
		return
	}

	info := newConnInfo(observability.MetaFromRequest(c.Request), span.SpanContext().TraceID().String())
	client := NewClient(conn, info)
	headers := observability.BuildHeaders(info.RequestID, info.TraceID)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect", "ok")
	_ = observability.PublishEvent(ctx, observability.WSRoutingKey, info.eventPayload("ws_connect", 0, 0, ""), headers)

	if err := client.Send(models.ConnectionSuccess{Message: "Connected successfully"}); err != nil {
		log.Printf("websocket write error conn_id=%s: %v", info.ConnID, err)
	}

	var closeReason string
	defer func() {
		g.hub.RemoveClient(client)
		client.Close()
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect", "ok")
		_ = observability.PublishEvent(ctx, observability.WSRoutingKey, info.eventPayload("ws_disconnect", 0, 0, closeReason), headers)
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error", "read_failed")
				_ = observability.PublishEvent(ctx, observability.WSRoutingKey, info.eventPayload("ws_error", 0, 0, closeReason), headers)
			}
			return
		}
		g.Dispatch(ctx, client, raw)
	}
}

// Dispatch handles one client frame. Failures are reported to this client only.
func (g *Gateway) Dispatch(ctx context.Context, client *Client, raw []byte) {
	ev, err := models.DecodeInbound(raw)
	if err != nil {
		g.reply(client, "invalid_event", models.ErrorEventFrom(err))
		return
	}

	ctx, span := observability.Tracer().Start(ctx, "ws."+ev.EventName())
	defer span.End()

	switch e := ev.(type) {
	case models.JoinRoom:
		err = g.join(ctx, client, e)
	case models.SendMessage:
		err = g.send(ctx, e)
	case models.LeaveRoom:
		g.hub.Leave(e.RoomID, client)
		err = client.Send(models.RoomLeft{RoomID: e.RoomID, Message: fmt.Sprintf("Successfully left room %d", e.RoomID)})
	}

	if err != nil {
		span.RecordError(err)
		g.reply(client, ev.EventName(), models.ErrorEventFrom(err))
		return
	}
	observability.IncWSEvent(ev.EventName(), "ok")
}

func (g *Gateway) join(ctx context.Context, client *Client, e models.JoinRoom) error {
	userID, err := g.tokens.Resolve(ctx, e.Token)
	if err != nil {
		return err
	}
	return g.rooms.JoinRoom(ctx, e.RoomID, userID, func(room models.ChatRoom, history []models.MessageView) error {
		g.hub.Join(room.ID, client)
		if err := client.Send(models.RoomJoined{RoomID: room.ID, Message: fmt.Sprintf("Successfully joined room %d", room.ID)}); err != nil {
			return err
		}
		return client.Send(models.ChatHistory{RoomID: room.ID, Messages: history})
	})
}

func (g *Gateway) send(ctx context.Context, e models.SendMessage) error {
	userID, err := g.tokens.Resolve(ctx, e.Token)
	if err != nil {
		return err
	}
	_, err = g.rooms.PostMessage(ctx, e.RoomID, userID, e.Content)
	return err
}

func (g *Gateway) reply(client *Client, event string, ev models.ErrorEvent) {
	observability.IncWSEvent(event, ev.Code)
	if err := client.Send(ev); err != nil {
		log.Printf("websocket write error conn_id=%s: %v", client.Info().ConnID, err)
	}
}
