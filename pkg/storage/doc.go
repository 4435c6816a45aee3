// Package storage defines the persistence contracts for conversations,
// messages, and task items, plus the sentinel errors implementations map
// their backend failures to.
//
// Every read and write is parameterized by the owning principal. This makes
// the isolation invariant mechanically enforceable at the storage boundary:
// a store can only ever return or mutate rows whose owner matches the
// caller-supplied principal, regardless of what the layers above do.
//
// Implementations live in the memory and postgres subpackages.
package storage
