// Package protocol implements the wire codec for the Fluxbase sync protocol.
//
// The sync protocol multiplexes one-shot function calls (mutations, actions)
// and a versioned set of reactive query subscriptions over a single WebSocket
// connection. Every frame is a JSON text message with a "type" discriminator.
//
// Client → server messages:
//
//	Connect          session handshake, sent first on every fresh socket
//	ModifyQuerySet   versioned Add/Remove delta against the query set
//	Mutation         one-shot mutation call, correlated by requestId
//	Action           one-shot action call, correlated by requestId
//	Authenticate     attach or replace the auth token
//	Event            client events; currently only the Pong keepalive reply
//
// Server → client messages:
//
//	Transition       query-set version advance with new subscription values
//	MutationResponse result for a Mutation, correlated by requestId
//	ActionResponse   result for an Action, correlated by requestId
//	Ping             keepalive probe, must be answered with an Event/Pong
//	FatalError       non-recoverable protocol error for this socket
//	AuthError        auth token was rejected
//
// Two details of the wire format are load-bearing and easy to get wrong:
// function arguments are always wrapped in a single-element JSON array
// ("args": [{...}]), and function names travel in a field called "udfPath".
//
// The codec is stateless. Encode and Decode are pure functions; a decode
// failure yields *MalformedMessageError so the connection layer can log and
// drop the frame without tearing down the socket.
package protocol
