// Package ledger contains the event-sourced aggregates of the game economy:
// player wallets, banks, the federal reserve and the government treasury.
// Every aggregate derives its state purely by folding its own event stream;
// command methods validate against that state and raise events, never mutate
// fields directly.
package ledger
