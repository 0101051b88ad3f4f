package server

import "github.com/google/uuid"

// Session is the lifetime of one accepted peer connection, from accept to
// close. At most one session exists at any time.
type Session struct {
	ID   uuid.UUID
	Peer string
	conn Conn
}

func newSession(conn Conn) *Session {
	return &Session{
		ID:   uuid.New(),
		Peer: conn.RemoteAddr(),
		conn: conn,
	}
}
