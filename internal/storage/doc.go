// Package storage persists small pieces of player state, such as the master
// volume, as string key/value pairs.
package storage
