package peer

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"
)

const jsonRPCVersion = "2.0"

// Envelope is the routed frame every authenticated message travels in.
// Message holds the JSON-RPC payload encoded as a string.
type Envelope struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Message  string `json:"message"`
	ID       string `json:"id"`
}

// Request is an outbound JSON-RPC call.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      string `json:"id"`
}

// Response answers a Request.
type Response struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error object. It is returned as-is from Call.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// message is any inner payload: a request from a peer or a response to us.
type message struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// callID normalises the id so numeric and string ids share a key space.
func (m *message) callID() string {
	id := bytes.TrimSpace(m.ID)
	if len(id) == 0 || bytes.Equal(id, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(id, &s); err == nil {
		return s
	}
	return string(id)
}

func decodeEnvelope(frame []byte) (*Envelope, *message, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Message == "" {
		return nil, nil, fmt.Errorf("envelope %q has no message", env.ID)
	}
	var msg message
	if err := json.Unmarshal([]byte(env.Message), &msg); err != nil {
		return nil, nil, fmt.Errorf("decode message: %w", err)
	}
	return &env, &msg, nil
}

func encodeEnvelope(sender, receiver, id string, payload any) (*Envelope, error) {
	inner, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return &Envelope{
		Sender:   sender,
		Receiver: receiver,
		Message:  string(inner),
		ID:       id,
	}, nil
}
