// Package engine orchestrates one conversation turn: it reconstructs
// context from the persisted transcript, runs a bounded reasoning loop that
// may dispatch capability calls, and commits the completed turn atomically.
//
// The engine holds no per-conversation state between turns. Everything a
// turn needs is reloaded from storage, which is what makes any replica able
// to serve any turn.
package engine
