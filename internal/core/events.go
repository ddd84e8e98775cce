package core

import (
	"encoding/json"
	"fmt"
)

// Kind is the "type" tag of a signaling envelope.
type Kind string

const (
	KindJoinRoom         Kind = "join-room"
	KindLeaveRoom        Kind = "leave-room"
	KindJoinChat         Kind = "join-chat"
	KindLeaveChat        Kind = "leave-chat"
	KindMessage          Kind = "message"
	KindMessageDeleted   Kind = "message-deleted"
	KindParticipantLeft  Kind = "participant-left"
	KindChatUpdated      Kind = "chat-updated"
	KindVideoChatMessage Kind = "video-chat-message"
	KindWebRTCOffer      Kind = "webrtc-offer"
	KindWebRTCAnswer     Kind = "webrtc-answer"
	KindICECandidate     Kind = "ice-candidate"
	KindAuthenticate     Kind = "authenticate"
	KindPing             Kind = "ping"

	// server to client only
	KindJoined        Kind = "joined"
	KindLeft          Kind = "left"
	KindAuthenticated Kind = "authenticated"
	KindPong          Kind = "pong"
	KindError         Kind = "error"
)

// Envelope is the wire form of every event in both directions.
type Envelope struct {
	Type    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ErrorPayload is sent to the issuing connection only.
type ErrorPayload struct {
	Code  string `json:"code"`
	Event Kind   `json:"event,omitempty"`
	Error string `json:"error"`
}

func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidEventShape, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrInvalidEventShape)
	}
	return env, nil
}

// Encode builds an outbound frame. payload may be nil.
func Encode(kind Kind, payload any) (Frame, error) {
	env := struct {
		Type    Kind `json:"type"`
		Payload any  `json:"payload,omitempty"`
	}{kind, payload}
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}
	return b, nil
}
