// Package pow implements the proof of work that gates object publication.
//
// Every object carries an 8 byte nonce. The nonce is valid when the first 8
// bytes of SHA-512(SHA-512(nonce || SHA-512(object without nonce))), read as
// a big-endian integer, are below a target derived from the object's length,
// its time to live and the difficulty demanded by its recipient.
//
// Engines search for such nonces. The Service drives them: it persists
// pending work in a ProofOfWorkQueue, stores and offers finished objects, and
// runs the second search needed by messages carrying an acknowledgement.
package pow
