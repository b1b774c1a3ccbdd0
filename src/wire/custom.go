package wire

import "bytes"

// CustomError is the name of a Custom response reporting a failure.
const CustomError = "ERROR"

// Custom carries an application defined request or response outside the
// gossip protocol.
type Custom struct {
	Name string
	Data []byte
}

// NewCustomError returns a Custom response describing a failure.
func NewCustomError(msg string) *Custom {
	return &Custom{Name: CustomError, Data: []byte(msg)}
}

// IsError reports whether c is an error response.
func (c *Custom) IsError() bool {
	return c.Name == CustomError
}

// Command implements MessagePayload.
func (*Custom) Command() string { return CmdCustom }

// Encode implements MessagePayload.
func (c *Custom) Encode(w *bytes.Buffer) {
	WriteVarString(w, c.Name)
	w.Write(c.Data)
}

func decodeCustom(data []byte) (*Custom, error) {
	d := NewDecoder(data)
	c := &Custom{
		Name: d.VarString(),
		Data: d.Rest(),
	}
	if err := d.Err(); err != nil {
		return nil, err
	}
	return c, nil
}
