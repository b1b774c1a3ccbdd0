// Package net provides the low level networking used by murmur nodes.
//
// A StreamLayer abstracts how connections are accepted and dialed. There are
// two implementations:
//
// - TCP: plain TCP sockets, used by real nodes
//
// - Inmem: pairs of in-memory pipes registered on a shared InmemNetwork, used
// to wire nodes together in tests without touching the network
//
// The package also holds the BufferPool that bounds the memory used by
// connection reads, and SendCustom, a one-shot request/response exchange of
// custom messages that bypasses the gossip protocol.
package net
