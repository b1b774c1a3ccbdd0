// Package node implements the networking engine of a murmur node.
//
// Connections
//
// Every peer connection goes through a handshake before it gossips. The side
// that dialed sends a version message carrying a random per process nonce,
// the streams it serves and its user agent. The accepting side checks it,
// answers with a verack and its own version, and the dialing side answers
// that with a verack. A connection is active once each side has sent and
// received a verack. A peer presenting our own nonce, an older protocol, no
// common stream or a clock more than an hour off is disconnected.
//
// Gossip
//
// On activation both sides send the addresses they know and the inventory
// vectors of every object they hold. A peer receiving an inv requests the
// objects it lacks with getdata, unless another connection has already
// requested them: a Ledger shared by all connections records what is in
// flight. Received objects are checked for proof of work, stored, and
// offered to a few random peers that do not know them yet.
//
// Reactor
//
// A single goroutine owns every Connection. Socket goroutines only move raw
// bytes in and encoded frames out, and report to the reactor through an
// event channel. A maintenance loop running about every 30 seconds reaps idle
// connections, dials new peers when there are too few, retries requests
// that went unanswered and cleans the inventory up.
package node
