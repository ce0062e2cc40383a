// Package prover produces and checks hash-committed execution proofs.
//
// A proof commits to the visible stack after every clock cycle with a
// BLAKE2b Merkle tree. A Fiat-Shamir seed binds the program hash, public
// inputs, claimed outputs, trace root and trace length; after a
// proof-of-work grinding step the seed selects rows to open. The first and
// last rows are always opened so the verifier can check them against the
// public inputs and the claimed outputs.
//
// Proofs are integrity checks for tests, not succinct zero-knowledge
// arguments: openings reveal stack rows.
package prover
