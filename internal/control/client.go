package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrUnreachable reports that no daemon is serving the control socket; the
// caller falls back to opening the state database directly.
var ErrUnreachable = errors.New("daemon not reachable on control socket")

const (
	dialTimeout = time.Second
	callTimeout = 15 * time.Second
)

// Call performs one request against a running daemon.
func Call(path string, req Request) (Response, error) {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(callTimeout))

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return Response{}, fmt.Errorf("send control request: %w", err)
	}
	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("read control response: %w", err)
	}
	if resp.Err != "" {
		return Response{}, errors.New(resp.Err)
	}
	return resp, nil
}

// Ping reports whether a daemon is serving the control socket.
func Ping(path string) bool {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
