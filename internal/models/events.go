package models

import (
	"encoding/json"
	"strings"

	"matchroom-service/internal/apperr"
)

// Inbound event names.
const (
	EventJoinRoom    = "join_room"
	EventLeaveRoom   = "leave_room"
	EventSendMessage = "send_message"
)

// Outbound event names.
const (
	EventConnectionSuccess = "connection_success"
	EventRoomJoined        = "room_joined"
	EventChatHistory       = "chat_history"
	EventNewMessage        = "new_message"
	EventRoomLeft          = "room_left"
	EventError             = "error"
)

// Envelope is the frame exchanged over a websocket connection.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// InboundEvent is one of JoinRoom, LeaveRoom or SendMessage.
type InboundEvent interface {
	EventName() string
	Validate() error
}

type JoinRoom struct {
	RoomID int    `json:"room_id"`
	Token  string `json:"token"`
}

func (JoinRoom) EventName() string { return EventJoinRoom }

func (e JoinRoom) Validate() error {
	if e.RoomID <= 0 || strings.TrimSpace(e.Token) == "" {
		return apperr.BadRequest("missing room_id or token")
	}
	return nil
}

type LeaveRoom struct {
	RoomID int `json:"room_id"`
}

func (LeaveRoom) EventName() string { return EventLeaveRoom }

func (e LeaveRoom) Validate() error {
	if e.RoomID <= 0 {
		return apperr.BadRequest("missing room_id")
	}
	return nil
}

type SendMessage struct {
	RoomID  int    `json:"room_id"`
	Content string `json:"content"`
	Token   string `json:"token"`
}

func (SendMessage) EventName() string { return EventSendMessage }

func (e SendMessage) Validate() error {
	if e.RoomID <= 0 || strings.TrimSpace(e.Content) == "" || strings.TrimSpace(e.Token) == "" {
		return apperr.BadRequest("missing room_id, content, or token")
	}
	return nil
}

// DecodeInbound parses and validates a client frame.
func DecodeInbound(raw []byte) (InboundEvent, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, apperr.BadRequest("malformed event")
	}

	var ev InboundEvent
	switch env.Event {
	case EventJoinRoom:
		var e JoinRoom
		if err := decodeData(env.Data, &e); err != nil {
			return nil, err
		}
		ev = e
	case EventLeaveRoom:
		var e LeaveRoom
		if err := decodeData(env.Data, &e); err != nil {
			return nil, err
		}
		ev = e
	case EventSendMessage:
		var e SendMessage
		if err := decodeData(env.Data, &e); err != nil {
			return nil, err
		}
		ev = e
	default:
		return nil, apperr.BadRequest("unknown event %q", env.Event)
	}

	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev, nil
}

func decodeData(data json.RawMessage, dst any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return apperr.BadRequest("malformed event payload")
	}
	return nil
}

// OutboundEvent is a server-to-client event.
type OutboundEvent interface {
	EventName() string
}

type ConnectionSuccess struct {
	Message string `json:"message"`
}

func (ConnectionSuccess) EventName() string { return EventConnectionSuccess }

type RoomJoined struct {
	RoomID  int    `json:"room_id"`
	Message string `json:"message"`
}

func (RoomJoined) EventName() string { return EventRoomJoined }

type ChatHistory struct {
	RoomID   int           `json:"room_id"`
	Messages []MessageView `json:"messages"`
}

func (ChatHistory) EventName() string { return EventChatHistory }

type NewMessage struct {
	MessageView
}

func (NewMessage) EventName() string { return EventNewMessage }

type RoomLeft struct {
	RoomID  int    `json:"room_id"`
	Message string `json:"message"`
}

func (RoomLeft) EventName() string { return EventRoomLeft }

type ErrorEvent struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (ErrorEvent) EventName() string { return EventError }

// ErrorEventFrom converts err into a client-facing error event.
func ErrorEventFrom(err error) ErrorEvent {
	return ErrorEvent{Message: apperr.MessageOf(err), Code: string(apperr.KindOf(err))}
}

// EncodeOutbound renders an outbound event as an Envelope frame.
func EncodeOutbound(ev OutboundEvent) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: ev.EventName(), Data: data})
}
