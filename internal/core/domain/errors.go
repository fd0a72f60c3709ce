package domain

import "errors"

var (
	ErrAuthFailed       = errors.New("authentication failed")
	ErrMalformedMessage = errors.New("malformed message")
	ErrUnknownPeer      = errors.New("unknown peer")
	ErrStreamNotLive    = errors.New("stream is not live")
	ErrBroadcastActive  = errors.New("broadcast already active")
	ErrConnectionClosed = errors.New("connection closed")
)
