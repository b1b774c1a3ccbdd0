package store

import (
	"encoding/hex"

	"github.com/mosaicnetworks/murmur/src/wire"
)

// MessageStatus tracks an outgoing message.
type MessageStatus int

const (
	// Draft messages have not been queued yet.
	Draft MessageStatus = iota
	// DoingProofOfWork messages wait for their nonce or their ack's.
	DoingProofOfWork
	// Sent messages have been offered to the network.
	Sent
)

var messageStatuses = []string{"Draft", "DoingProofOfWork", "Sent"}

// String ...
func (s MessageStatus) String() string {
	if int(s) < len(messageStatuses) {
		return messageStatuses[s]
	}
	return "Unknown"
}

// Message is an outgoing direct message. Content is the encoded plaintext
// without the acknowledgement and the signature, which are appended when the
// carrying object is built.
type Message struct {
	InitialHash     []byte
	InventoryVector []byte
	Status          MessageStatus
	Stream          uint64
	Content         []byte
	// SigningKey is the sender's private signing key.
	SigningKey []byte
	// RecipientKey is the recipient's public encryption key. Messages
	// without one are sent in clear.
	RecipientKey []byte
	// NonceTrialsPerByte and ExtraBytes are the difficulty the recipient
	// demands. Values below the network minimum are raised to it.
	NonceTrialsPerByte uint64
	ExtraBytes         uint64
	SentTime           int64
}

// WorkItem is a pending proof of work. ExpirationTime and Message are only
// set for acknowledgement objects: once the ack nonce is found, Message is
// sent in a new object expiring at ExpirationTime.
type WorkItem struct {
	Object             *wire.Object
	NonceTrialsPerByte uint64
	ExtraBytes         uint64
	ExpirationTime     int64
	Message            *Message
}

func hashKey(h []byte) string {
	return hex.EncodeToString(h)
}
