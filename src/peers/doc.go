// Package peers manages the list of bootstrap nodes a murmur node falls back
// on when its address registry knows no fresh address for a stream.
//
// Upon starting up, murmur looks for a peers.json file in its data directory.
// The file lists stable nodes by network address together with the streams
// they serve, and is meant to be edited by hand.
package peers
