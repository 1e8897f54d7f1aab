package protocol

import (
	"encoding/json"
	"fmt"
)

// MalformedMessageError reports a frame that could not be decoded.
// The connection layer logs it and drops the frame; a single bad message
// never tears down the socket.
type MalformedMessageError struct {
	Reason string
	Err    error
}

// Error returns the error message.
func (e *MalformedMessageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol: malformed message: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("protocol: malformed message: %s", e.Reason)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *MalformedMessageError) Unwrap() error {
	return e.Err
}

// Encode serializes a client message to its JSON wire form.
func Encode(m ClientMessage) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %T: %w", m, err)
	}
	return data, nil
}

// EncodeServer serializes a server message to its JSON wire form. Like
// DecodeClient it exists for servers and test harnesses.
func EncodeServer(m ServerMessage) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %T: %w", m, err)
	}
	return data, nil
}

// typeProbe extracts just the discriminator so Decode can dispatch.
type typeProbe struct {
	Type string `json:"type"`
}

// Decode parses a server message from its JSON wire form.
// Unknown or unparsable frames yield *MalformedMessageError.
func Decode(data []byte) (ServerMessage, error) {
	var probe typeProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, &MalformedMessageError{Reason: "invalid JSON", Err: err}
	}

	switch probe.Type {
	case TypeTransition:
		var m Transition
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, &MalformedMessageError{Reason: "invalid Transition", Err: err}
		}
		return &m, nil

	case TypeMutationResponse:
		var m MutationResponse
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, &MalformedMessageError{Reason: "invalid MutationResponse", Err: err}
		}
		return &m, nil

	case TypeActionResponse:
		var m ActionResponse
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, &MalformedMessageError{Reason: "invalid ActionResponse", Err: err}
		}
		return &m, nil

	case TypePing:
		var m Ping
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, &MalformedMessageError{Reason: "invalid Ping", Err: err}
		}
		return &m, nil

	case TypeFatalError:
		var m FatalError
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, &MalformedMessageError{Reason: "invalid FatalError", Err: err}
		}
		return &m, nil

	case TypeAuthError:
		var m AuthError
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, &MalformedMessageError{Reason: "invalid AuthError", Err: err}
		}
		return &m, nil

	case "":
		return nil, &MalformedMessageError{Reason: "missing type discriminator"}

	default:
		return nil, &MalformedMessageError{Reason: fmt.Sprintf("unknown message type %q", probe.Type)}
	}
}

// DecodeClient parses a client message from its JSON wire form.
// Servers and test harnesses use it; the client itself only encodes.
func DecodeClient(data []byte) (ClientMessage, error) {
	var probe typeProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, &MalformedMessageError{Reason: "invalid JSON", Err: err}
	}

	switch probe.Type {
	case TypeConnect:
		var m Connect
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, &MalformedMessageError{Reason: "invalid Connect", Err: err}
		}
		return &m, nil

	case TypeModifyQuerySet:
		var m ModifyQuerySet
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, &MalformedMessageError{Reason: "invalid ModifyQuerySet", Err: err}
		}
		return &m, nil

	case TypeMutation:
		var m MutationRequest
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, &MalformedMessageError{Reason: "invalid Mutation", Err: err}
		}
		return &m, nil

	case TypeAction:
		var m ActionRequest
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, &MalformedMessageError{Reason: "invalid Action", Err: err}
		}
		return &m, nil

	case TypeAuthenticate:
		var m Authenticate
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, &MalformedMessageError{Reason: "invalid Authenticate", Err: err}
		}
		return &m, nil

	case TypeEvent:
		var m ClientEvent
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, &MalformedMessageError{Reason: "invalid Event", Err: err}
		}
		return &m, nil

	case "":
		return nil, &MalformedMessageError{Reason: "missing type discriminator"}

	default:
		return nil, &MalformedMessageError{Reason: fmt.Sprintf("unknown message type %q", probe.Type)}
	}
}
