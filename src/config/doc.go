// Package config defines the configuration for a Murmur node.
//
// Regardless of how Murmur is started, directly from Go code or as a
// standalone process from the command line, it uses the Config object defined
// in this package to store and forward configuration options. On top of these
// options, Murmur relies on a data directory, defined by Config.DataDir, where
// it expects to find a few additional files:
//
//  priv_key // a plain text file containing the raw private key (cf. murmur keygen).
//  peers.json // (optional) a JSON file listing stable bootstrap nodes.
//  badger_db // the database directory, when Store is set.
package config
