package events

import (
	"encoding/json"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var jsonc = jsoniter.ConfigCompatibleWithStandardLibrary

// Message is the envelope for every frame exchanged with a connection.
type Message[D AnyPayload] struct {
	Op        Opcode `json:"op"`
	Timestamp int64  `json:"t"`
	Data      D      `json:"d"`
	Sequence  uint64 `json:"s,omitempty"`
}

func NewMessage[D AnyPayload](op Opcode, data D) Message[D] {
	msg := Message[D]{
		Op:        op,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}

	return msg
}

func (e Message[D]) ToRaw() Message[json.RawMessage] {
	switch x := any(e.Data).(type) {
	case json.RawMessage:
		return Message[json.RawMessage]{
			Op:        e.Op,
			Timestamp: e.Timestamp,
			Data:      x,
			Sequence:  e.Sequence,
		}
	}

	raw, _ := jsonc.Marshal(e.Data)

	return Message[json.RawMessage]{
		Op:        e.Op,
		Timestamp: e.Timestamp,
		Data:      raw,
		Sequence:  e.Sequence,
	}
}

func ConvertMessage[D AnyPayload](c Message[json.RawMessage]) (Message[D], error) {
	var d D
	err := jsonc.Unmarshal(c.Data, &d)
	c2 := Message[D]{
		Op:        c.Op,
		Timestamp: c.Timestamp,
		Data:      d,
		Sequence:  c.Sequence,
	}

	return c2, err
}

// NewDispatch wraps a typed event body into a raw dispatch envelope, ready
// for room broadcast.
func NewDispatch(t EventType, body any) Message[json.RawMessage] {
	raw, _ := jsonc.Marshal(body)

	return NewMessage(OpcodeDispatch, DispatchPayload{
		Type: t,
		Body: raw,
	}).ToRaw()
}

type Opcode uint8

const (
	// Server ops (0-32)
	OpcodeDispatch    Opcode = 0 // R - Server dispatches an event to the client
	OpcodeHello       Opcode = 1 // R - Server greets the client
	OpcodeHeartbeat   Opcode = 2 // R - Keep the connection alive
	OpcodeAck         Opcode = 5 // R - Acknowledgement of a command
	OpcodeError       Opcode = 6 // R - Extra error context where the closing frame is not enough
	OpcodeEndOfStream Opcode = 7 // R - The connection's data stream is ending

	// Commands (33-64)
	OpcodeJoinConversation  Opcode = 33 // S - Join a conversation room
	OpcodeLeaveConversation Opcode = 34 // S - Leave a conversation room
	OpcodeSendMessage       Opcode = 35 // S - Publish a message to a conversation
	OpcodeTypingStart       Opcode = 36 // S - Signal that the user started typing
	OpcodeTypingStop        Opcode = 37 // S - Signal that the user stopped typing
	OpcodeMarkRead          Opcode = 38 // S - Mark conversation messages as read
	OpcodeUpdatePresence    Opcode = 39 // S - Change the user's presence status
	OpcodeNotificationsSync Opcode = 40 // S - Request a snapshot of the notification queue
)

func (op Opcode) String() string {
	switch op {
	case OpcodeDispatch:
		return "DISPATCH"
	case OpcodeHello:
		return "HELLO"
	case OpcodeHeartbeat:
		return "HEARTBEAT"
	case OpcodeAck:
		return "ACK"
	case OpcodeError:
		return "ERROR"
	case OpcodeEndOfStream:
		return "END_OF_STREAM"

	case OpcodeJoinConversation:
		return "JOIN_CONVERSATION"
	case OpcodeLeaveConversation:
		return "LEAVE_CONVERSATION"
	case OpcodeSendMessage:
		return "SEND_MESSAGE"
	case OpcodeTypingStart:
		return "TYPING_START"
	case OpcodeTypingStop:
		return "TYPING_STOP"
	case OpcodeMarkRead:
		return "MARK_READ"
	case OpcodeUpdatePresence:
		return "UPDATE_PRESENCE"
	case OpcodeNotificationsSync:
		return "NOTIFICATIONS_SYNC"
	default:
		return "UNDOCUMENTED_OPERATION"
	}
}

// IsCommand reports whether the opcode is client-sendable.
func (op Opcode) IsCommand() bool {
	return op >= OpcodeJoinConversation && op <= OpcodeNotificationsSync
}

type CloseCode uint16

const (
	CloseCodeServerError      CloseCode = 4000 // an error occured on the server's end
	CloseCodeUnknownOperation CloseCode = 4001 // the client sent an unexpected opcode
	CloseCodeInvalidPayload   CloseCode = 4002 // the client sent a payload that couldn't be decoded
	CloseCodeAuthFailure      CloseCode = 4003 // the client could not be authenticated
	CloseCodeRateLimit        CloseCode = 4005 // the client is being rate-limited
	CloseCodeRestart          CloseCode = 4006 // the server is restarting and the client should reconnect
	CloseCodeTimeout          CloseCode = 4008 // the client missed too many heartbeats
)

func (c CloseCode) String() string {
	switch c {
	case CloseCodeServerError:
		return "Internal Server Error"
	case CloseCodeUnknownOperation:
		return "Unknown Operation"
	case CloseCodeInvalidPayload:
		return "Invalid Payload"
	case CloseCodeAuthFailure:
		return "Authentication Failed"
	case CloseCodeRateLimit:
		return "Rate limit reached"
	case CloseCodeRestart:
		return "Server is restarting"
	case CloseCodeTimeout:
		return "Timed out"
	default:
		return "Undocumented Closure"
	}
}
