package net

import (
	"fmt"
	"time"

	"github.com/mosaicnetworks/murmur/src/wire"
)

// SendCustom dials target, sends req and waits for the custom message sent
// back. The remote side closes the connection after answering, so nothing
// else is expected on it.
func SendCustom(dialer Dialer, target string, timeout time.Duration, req *wire.Custom) (*wire.Custom, error) {
	conn, err := dialer.Dial(target, timeout)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	// Set a deadline
	if timeout > 0 {
		conn.SetDeadline(time.Now().Add(timeout))
	}

	// Send the request
	if err := wire.WriteMessage(conn, req); err != nil {
		return nil, err
	}

	// Decode the response
	reader := wire.NewReader()
	buf := make([]byte, SmallBuffer)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			if uerr := reader.Update(buf[:n]); uerr != nil {
				return nil, uerr
			}
			for _, m := range reader.Messages() {
				resp, ok := m.(*wire.Custom)
				if !ok {
					return nil, fmt.Errorf("unexpected %s response", m.Command())
				}
				return resp, nil
			}
		}
		if err != nil {
			return nil, fmt.Errorf("waiting for response: %w", err)
		}
	}
}
