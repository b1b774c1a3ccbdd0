// Package crypto provides the Cryptography service consumed by the node and
// the proof of work pipeline.
//
// Signatures and asymmetric encryption use the secp256k1 curve through
// btcsuite's btcec package, the same curve and ECIES construction used by the
// reference network client. Objects are identified with SHA-512 based hashes.
package crypto
