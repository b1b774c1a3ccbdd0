// Package keys implements the secp256k1 key handling used by murmur.
//
// Private keys are stored and exchanged as their raw 32 byte scalar. Public
// keys travel on the wire as the 64 byte uncompressed point without the 0x04
// prefix, which is how pubkey objects carry them.
package keys
