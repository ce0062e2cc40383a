// Package canonical provides deterministic serialization and hashing.
//
// Marshal emits RFC 8785 canonical JSON; it backs golden trace snapshots and
// the run records written to the store. Hash and its helpers compute
// domain-separated BLAKE2b-256 digests; they back program hashes, proof
// commitments and Fiat-Shamir challenges.
//
// Domain strings carry a version suffix so that a change of encoding never
// collides with digests produced by an older one.
package canonical
