// Package relay fans out line-oriented text between WebSocket connections
// that share a session.
//
// Invariants:
// - Every session owns one pipe topic and one chat topic; the Registry owns the session.
// - Publishing never blocks: a subscriber that falls behind loses its oldest unread values.
// - Inbound frames that parse as a chat message go to the chat topic; all others go to pipe verbatim.
// - Outbound pipe frames are prefixed with "pipe:"; chat frames are bare JSON.
//
// Usage:
//
//	srv, _ := relay.NewServer(relay.Config{Port: 8080, Logger: logger})
//	_ = srv.Start()
//	defer srv.Stop(context.Background())
package relay
