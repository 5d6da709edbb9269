package session

import "io"

// Transport is a framed byte-stream endpoint. The session never touches a
// socket directly; anything satisfying this interface works, including
// net.Conn and the in-memory pipe used by the tests.
type Transport interface {
	io.Reader
	io.Writer
	Close() error
}
