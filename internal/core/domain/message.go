package domain

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v3"
)

// MessageType discriminates the wire envelope. The set is closed: anything
// else is rejected as malformed rather than silently ignored.
type MessageType string

const (
	MsgRegister       MessageType = "register"
	MsgRegisterAdmin  MessageType = "register_admin"
	MsgChatMessage    MessageType = "chat_message"
	MsgChatHistory    MessageType = "chat_history"
	MsgToggleLike     MessageType = "toggle_like"
	MsgStreamUpdate   MessageType = "stream_update"
	MsgStreamStarted  MessageType = "stream_started"
	MsgStreamStopped  MessageType = "stream_stopped"
	MsgWebRTCRegister MessageType = "webrtc_register"
	MsgWebRTCOffer    MessageType = "webrtc_offer"
	MsgWebRTCAnswer   MessageType = "webrtc_answer"
	MsgWebRTCICE      MessageType = "webrtc_ice_candidate"
	MsgBroadcastStart MessageType = "webrtc_broadcast_start"
	MsgBroadcastStop  MessageType = "webrtc_broadcast_stop"
	// Server-originated: asks the broadcaster to originate an offer
	// toward a freshly registered viewer peer.
	MsgViewerJoined MessageType = "webrtc_viewer_joined"
	MsgError        MessageType = "error"
)

// Inbound message variants. Fields sit flat next to "type" on the wire.

type RegisterMessage struct {
	SessionID SessionID `json:"sessionId"`
	Token     string    `json:"token,omitempty"`
}

type RegisterAdminMessage struct {
	UserID UserID `json:"userId"`
	Token  string `json:"token"`
}

type ToggleLikeMessage struct {
	UserID    UserID    `json:"userId,omitempty"`
	SessionID SessionID `json:"sessionId,omitempty"`
}

type WebRTCRegisterMessage struct {
	PeerID   PeerID `json:"peerId"`
	UserType string `json:"userType"`
}

// OfferMessage and AnswerMessage carry a session description between two
// peers. The relay decodes the payload only to re-encode it; contents are
// never interpreted.
type OfferMessage struct {
	Type    MessageType               `json:"type"`
	From    PeerID                    `json:"from"`
	To      PeerID                    `json:"to"`
	Payload webrtc.SessionDescription `json:"payload"`
}

type AnswerMessage struct {
	Type    MessageType               `json:"type"`
	From    PeerID                    `json:"from"`
	To      PeerID                    `json:"to"`
	Payload webrtc.SessionDescription `json:"payload"`
}

type ICECandidateMessage struct {
	Type    MessageType             `json:"type"`
	From    PeerID                  `json:"from"`
	To      PeerID                  `json:"to"`
	Payload webrtc.ICECandidateInit `json:"payload"`
}

type BroadcastStartMessage struct {
	PeerID      PeerID   `json:"peerId"`
	StreamID    StreamID `json:"streamId,omitempty"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Quality     string   `json:"quality,omitempty"`
}

type BroadcastStopMessage struct {
	PeerID PeerID `json:"peerId"`
}

// Outbound message variants.

type ChatHistoryMessage struct {
	Type     MessageType   `json:"type"`
	Messages []ChatMessage `json:"messages"`
}

type ChatBroadcastMessage struct {
	Type MessageType `json:"type"`
	ChatMessage
}

type StreamUpdateMessage struct {
	Type        MessageType `json:"type"`
	ViewerCount *int        `json:"viewerCount,omitempty"`
	Likes       *int        `json:"likes,omitempty"`
	LikedBy     []Identity  `json:"likedBy,omitempty"`
}

type StreamStartedMessage struct {
	Type            MessageType `json:"type"`
	StreamID        StreamID    `json:"streamId"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	MediaDescriptor string      `json:"mediaDescriptor"`
	Quality         string      `json:"quality"`
	StartTime       int64       `json:"startTime"`
	ViewerCount     int         `json:"viewerCount"`
	Likes           int         `json:"likes"`
	LikedBy         []Identity  `json:"likedBy"`
}

type StreamStoppedMessage struct {
	Type     MessageType `json:"type"`
	StreamID StreamID    `json:"streamId,omitempty"`
}

type ViewerJoinedMessage struct {
	Type   MessageType `json:"type"`
	PeerID PeerID      `json:"peerId"`
}

type BroadcasterNoticeMessage struct {
	Type   MessageType `json:"type"`
	PeerID PeerID      `json:"peerId"`
}

type ErrorMessage struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

func NewErrorMessage(message string) ErrorMessage {
	return ErrorMessage{Type: MsgError, Message: message}
}

func NewChatHistoryMessage(messages []ChatMessage) ChatHistoryMessage {
	if messages == nil {
		messages = []ChatMessage{}
	}
	return ChatHistoryMessage{Type: MsgChatHistory, Messages: messages}
}

func NewChatBroadcastMessage(msg ChatMessage) ChatBroadcastMessage {
	return ChatBroadcastMessage{Type: MsgChatMessage, ChatMessage: msg}
}

func NewViewerCountUpdate(count int) StreamUpdateMessage {
	return StreamUpdateMessage{Type: MsgStreamUpdate, ViewerCount: &count}
}

func NewLikeUpdate(likes int, likedBy []Identity) StreamUpdateMessage {
	if likedBy == nil {
		likedBy = []Identity{}
	}
	return StreamUpdateMessage{Type: MsgStreamUpdate, Likes: &likes, LikedBy: likedBy}
}

// NewStreamStartedMessage renders the snapshot sent to every connection when
// a broadcast begins and to late joiners during bootstrap.
func NewStreamStartedMessage(s StreamState) StreamStartedMessage {
	likedBy := s.LikedBy
	if likedBy == nil {
		likedBy = []Identity{}
	}
	return StreamStartedMessage{
		Type:            MsgStreamStarted,
		StreamID:        s.StreamID,
		Title:           s.Title,
		Description:     s.Description,
		MediaDescriptor: s.MediaDescriptor,
		Quality:         s.Quality,
		StartTime:       s.StartTime.UnixMilli(),
		ViewerCount:     s.ViewerCount,
		Likes:           s.LikeCount,
		LikedBy:         likedBy,
	}
}

func NewStreamStoppedMessage(streamID StreamID) StreamStoppedMessage {
	return StreamStoppedMessage{Type: MsgStreamStopped, StreamID: streamID}
}

// DecodeType extracts the discriminator without committing to a variant.
func DecodeType(data []byte) (MessageType, error) {
	var envelope struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if envelope.Type == "" {
		return "", fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}
	return envelope.Type, nil
}

// DecodeInto unmarshals the full message into the variant struct for its type.
func DecodeInto(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return nil
}
