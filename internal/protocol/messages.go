// Package protocol defines the events exchanged between the match server and
// players.
package protocol

import (
	"encoding/json"
	"errors"
	"time"
)

// MessageType identifies an event on the wire.
type MessageType string

const (
	// Server -> Client
	TypePlayerConnected MessageType = "player_connected"
	TypeGameStart       MessageType = "game_start"
	TypeGameOver        MessageType = "game_over"
	TypeGameCompleted   MessageType = "game_completed"
	TypeConnectionError MessageType = "connection_error"

	// Client -> Server
	TypePlayerFinished MessageType = "player_finished"
)

// String returns the wire name of the message type.
func (mt MessageType) String() string {
	return string(mt)
}

// Known reports whether mt is part of the protocol.
func (mt MessageType) Known() bool {
	switch mt {
	case TypePlayerConnected, TypeGameStart, TypeGameOver, TypeGameCompleted,
		TypeConnectionError, TypePlayerFinished:
		return true
	}
	return false
}

var (
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrPayloadMismatch    = errors.New("payload does not match message type")
)

// Message is the envelope for every event.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage wraps a payload in an envelope stamped with the current time.
func NewMessage(messageType MessageType, data any) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// PlayerConnected is sent to a connection when it is admitted to the session.
type PlayerConnected struct {
	PlayerID     string `json:"player_id"`
	BoardSeed    int64  `json:"board_seed"`
	TotalPlayers int    `json:"total_players"`
}

// GameStart is broadcast when the second player joins.
type GameStart struct {
	BoardSeed int64 `json:"board_seed"`
}

// PlayerFinished is reported by a client once its board is cleared. GameTime
// is formatted HH:MM:SS.
type PlayerFinished struct {
	PlayerID string `json:"player_id"`
	GameTime string `json:"game_time"`
}

// GameOver announces the outcome. Winner is nil and Times is empty when the
// match was abandoned.
type GameOver struct {
	Winner *string           `json:"winner"`
	Times  map[string]string `json:"times"`
}

// Abandoned reports whether the match ended without a winner.
func (g GameOver) Abandoned() bool {
	return g.Winner == nil
}

// ConnectionError tells a connection why it was rejected.
type ConnectionError struct {
	Message string `json:"message"`
}
