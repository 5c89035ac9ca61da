// Package presence keeps the registry of donors who are currently available
// to answer an emergency.
//
// RedisStore is the production implementation shared by all processes. Each
// donor has a hash with a TTL and a member in two GEO sets:
//
//	donor:presence:<donorID>      hash, expires after the TTL
//	donors:geo:<cc>               all donors of a country
//	donors:geo:<cc>:<bloodGroup>  donors of a country and blood group
//
// GEO members do not expire with the hash, so queries load every hash and
// prune members whose hash has gone. Disconnect handling goes through
// Release, which deletes the entry only when the caller's connection still
// owns it.
//
// MemoryStore implements the same contract in process memory.
package presence
