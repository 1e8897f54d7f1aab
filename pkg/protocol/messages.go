package protocol

// Message type discriminators.
const (
	TypeConnect          = "Connect"
	TypeModifyQuerySet   = "ModifyQuerySet"
	TypeMutation         = "Mutation"
	TypeAction           = "Action"
	TypeAuthenticate     = "Authenticate"
	TypeEvent            = "Event"
	TypeTransition       = "Transition"
	TypeMutationResponse = "MutationResponse"
	TypeActionResponse   = "ActionResponse"
	TypePing             = "Ping"
	TypeFatalError       = "FatalError"
	TypeAuthError        = "AuthError"
)

// Modification type discriminators within a ModifyQuerySet message.
const (
	ModificationAdd    = "Add"
	ModificationRemove = "Remove"
)

// EventTypePong is the only client event the protocol currently defines:
// the reply to a server Ping.
const EventTypePong = "Pong"

// ClientMessage is a message sent from the client to the server.
type ClientMessage interface {
	clientMessage()
}

// ServerMessage is a message sent from the server to the client.
type ServerMessage interface {
	serverMessage()
}

// Connect is the session handshake, sent first on every fresh socket.
// SessionID is stable for the client's lifetime; ConnectionCount increments
// on every connection attempt so the server can see reconnect churn.
type Connect struct {
	Type            string  `json:"type"`
	SessionID       string  `json:"sessionId"`
	ConnectionCount int     `json:"connectionCount"`
	LastCloseReason *string `json:"lastCloseReason"`
	ClientTs        int64   `json:"clientTs"`
	// MaxObservedTimestamp is the largest mutation timestamp this client has
	// seen, echoed back so a resumed session reads its own writes.
	MaxObservedTimestamp int64 `json:"maxObservedTimestamp"`
}

func (Connect) clientMessage() {}

// NewConnect builds a Connect handshake message.
func NewConnect(sessionID string, connectionCount int, lastCloseReason *string, clientTs, maxObservedTs int64) *Connect {
	return &Connect{
		Type:                 TypeConnect,
		SessionID:            sessionID,
		ConnectionCount:      connectionCount,
		LastCloseReason:      lastCloseReason,
		ClientTs:             clientTs,
		MaxObservedTimestamp: maxObservedTs,
	}
}

// QuerySetModification is one entry in a ModifyQuerySet message.
// Add carries the UDF path and its argument object; Remove carries only the
// query id.
type QuerySetModification struct {
	Type    string  `json:"type"`
	QueryID uint32  `json:"queryId"`
	UDFPath string  `json:"udfPath,omitempty"`
	Args    []Value `json:"args,omitempty"`
}

// AddModification builds an Add modification. The argument object is wrapped
// in a single-element array; the server requires the wrapping.
func AddModification(queryID uint32, udfPath string, args Value) QuerySetModification {
	return QuerySetModification{
		Type:    ModificationAdd,
		QueryID: queryID,
		UDFPath: udfPath,
		Args:    []Value{args},
	}
}

// RemoveModification builds a Remove modification.
func RemoveModification(queryID uint32) QuerySetModification {
	return QuerySetModification{
		Type:    ModificationRemove,
		QueryID: queryID,
	}
}

// ModifyQuerySet advances the query set from BaseVersion to NewVersion by
// applying the listed modifications in order.
type ModifyQuerySet struct {
	Type          string                 `json:"type"`
	BaseVersion   uint32                 `json:"baseVersion"`
	NewVersion    uint32                 `json:"newVersion"`
	Modifications []QuerySetModification `json:"modifications"`
}

func (ModifyQuerySet) clientMessage() {}

// NewModifyQuerySet builds a ModifyQuerySet message.
func NewModifyQuerySet(baseVersion, newVersion uint32, mods []QuerySetModification) *ModifyQuerySet {
	return &ModifyQuerySet{
		Type:          TypeModifyQuerySet,
		BaseVersion:   baseVersion,
		NewVersion:    newVersion,
		Modifications: mods,
	}
}

// MutationRequest is a one-shot mutation call.
type MutationRequest struct {
	Type      string  `json:"type"`
	RequestID int64   `json:"requestId"`
	UDFPath   string  `json:"udfPath"`
	Args      []Value `json:"args"`
}

func (MutationRequest) clientMessage() {}

// NewMutationRequest builds a Mutation message, wrapping args per protocol.
func NewMutationRequest(requestID int64, udfPath string, args Value) *MutationRequest {
	return &MutationRequest{
		Type:      TypeMutation,
		RequestID: requestID,
		UDFPath:   udfPath,
		Args:      []Value{args},
	}
}

// ActionRequest is a one-shot action call.
type ActionRequest struct {
	Type      string  `json:"type"`
	RequestID int64   `json:"requestId"`
	UDFPath   string  `json:"udfPath"`
	Args      []Value `json:"args"`
}

func (ActionRequest) clientMessage() {}

// NewActionRequest builds an Action message, wrapping args per protocol.
func NewActionRequest(requestID int64, udfPath string, args Value) *ActionRequest {
	return &ActionRequest{
		Type:      TypeAction,
		RequestID: requestID,
		UDFPath:   udfPath,
		Args:      []Value{args},
	}
}

// Authenticate attaches or replaces the session's auth token.
type Authenticate struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

func (Authenticate) clientMessage() {}

// NewAuthenticate builds an Authenticate message.
func NewAuthenticate(token string) *Authenticate {
	return &Authenticate{Type: TypeAuthenticate, Token: token}
}

// ClientEvent is the client event envelope. The only defined event is the
// Pong keepalive reply, which carries a null event body.
type ClientEvent struct {
	Type      string `json:"type"`
	EventType string `json:"eventType"`
	Event     *Value `json:"event"`
}

func (ClientEvent) clientMessage() {}

// NewPong builds the Pong reply to a server Ping.
func NewPong() *ClientEvent {
	return &ClientEvent{Type: TypeEvent, EventType: EventTypePong, Event: nil}
}

// TransitionModification is one updated query within a Transition.
// ErrorMessage is set when the UDF itself failed; ErrorData optionally
// carries an application error payload.
type TransitionModification struct {
	QueryID      uint32   `json:"queryId"`
	Value        Value    `json:"value"`
	LogLines     []string `json:"logLines,omitempty"`
	ErrorMessage string   `json:"errorMessage,omitempty"`
	ErrorData    *Value   `json:"errorData,omitempty"`
}

// Transition advances the client's view of the query set from StartVersion
// to EndVersion, delivering new values for the affected queries.
type Transition struct {
	Type          string                   `json:"type"`
	StartVersion  uint32                   `json:"startVersion"`
	EndVersion    uint32                   `json:"endVersion"`
	Modifications []TransitionModification `json:"modifications"`
}

func (Transition) serverMessage() {}

// MutationResponse is the server's reply to a Mutation.
// Success defaults to true when the field is absent; on failure Result holds
// the error message and ErrorData an optional application error payload.
type MutationResponse struct {
	Type      string   `json:"type"`
	RequestID int64    `json:"requestId"`
	Success   *bool    `json:"success,omitempty"`
	Result    Value    `json:"result"`
	Ts        int64    `json:"ts"`
	LogLines  []string `json:"logLines,omitempty"`
	ErrorData *Value   `json:"errorData,omitempty"`
}

func (MutationResponse) serverMessage() {}

// ActionResponse is the server's reply to an Action.
type ActionResponse struct {
	Type      string   `json:"type"`
	RequestID int64    `json:"requestId"`
	Success   *bool    `json:"success,omitempty"`
	Result    Value    `json:"result"`
	LogLines  []string `json:"logLines,omitempty"`
	ErrorData *Value   `json:"errorData,omitempty"`
}

func (ActionResponse) serverMessage() {}

// Ping is the server keepalive probe.
type Ping struct {
	Type string `json:"type"`
}

func (Ping) serverMessage() {}

// FatalError reports a non-recoverable protocol error for this socket.
type FatalError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func (FatalError) serverMessage() {}

// AuthError reports that the auth token was rejected.
type AuthError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func (AuthError) serverMessage() {}

// Succeeded reports whether a response's optional success flag allows the
// result to be treated as a value rather than an error.
func Succeeded(success *bool) bool {
	return success == nil || *success
}
