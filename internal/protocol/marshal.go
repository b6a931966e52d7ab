package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
)

// Pool of buffers to avoid allocation on the hot send path
var bufferPool = sync.Pool{
	New: func() any {
		return &bytes.Buffer{}
	},
}

// Marshal serializes an envelope to JSON.
func Marshal(msg *Message) ([]byte, error) {
	if !msg.Type.Known() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, msg.Type)
	}

	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	if err := json.NewEncoder(buf).Encode(msg); err != nil {
		return nil, err
	}

	// Copy out so the pooled buffer is never aliased; drop the encoder's newline.
	out := make([]byte, len(bytes.TrimRight(buf.Bytes(), "\n")))
	copy(out, buf.Bytes())
	return out, nil
}

// Unmarshal parses an envelope and rejects unknown event types.
func Unmarshal(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Type.Known() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, msg.Type)
	}
	return &msg, nil
}

// Decode unmarshals the envelope payload into v, which must be the payload type
// belonging to the message type.
func (m *Message) Decode(v any) error {
	var ok bool
	switch v.(type) {
	case *PlayerConnected:
		ok = m.Type == TypePlayerConnected
	case *GameStart:
		ok = m.Type == TypeGameStart
	case *PlayerFinished:
		ok = m.Type == TypePlayerFinished
	case *GameOver:
		ok = m.Type == TypeGameOver || m.Type == TypeGameCompleted
	case *ConnectionError:
		ok = m.Type == TypeConnectionError
	default:
		return fmt.Errorf("%w: %T", ErrUnknownMessageType, v)
	}
	if !ok {
		return fmt.Errorf("%w: %s into %T", ErrPayloadMismatch, m.Type, v)
	}
	return json.Unmarshal(m.Data, v)
}
