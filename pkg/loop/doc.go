/*
Package loop implements the node's Work Loop: the single cooperative
state machine that checks health, claims a run, drives its Flow to
completion, and settles the outcome on chain.

# States

The loop moves between named states once per tick, never running two
cycles concurrently:

	┌──────────────────┐
	│  CheckingHealth   │◄───────────────────────────────────┐
	└─────────┬─────────┘                                    │
	          │ unhealthy                                     │ healthInterval elapsed
	          ▼                                               │
	┌──────────────────┐                              ┌─────────────────┐
	│    Unhealthy      │                              │      Idle        │
	└──────────────────┘                              └────────┬─────────┘
	                                                            │ no run assigned
	                                                            ▼
	                                                   ┌─────────────────┐
	                                      ┌───────────►│     Queued       │
	                                      │            └────────┬─────────┘
	                               still queued                 │ run assigned
	                                      │                      ▼
	                                      │            ┌─────────────────┐
	                                      │            │    Claimed       │
	                                      │            └────────┬─────────┘
	                                      │                     │ flow finished or expired
	                                      │                     ▼
	                                      │            ┌─────────────────┐
	                                      └────────────│    Settling      │
	                                      confirmed tx  └────────┬─────────┘
	                                      clears flow            │
	                                                              ▼
	                                                   back to Idle, re-checks
	                                                   for the next assigned run

Idle and Queued never rest on a local "have I entered" flag: every
tick with no assigned run re-derives queue membership from
GetMarket(...).Queue, so a node that falls out of the on-chain queue
after a settlement (or was never in it) submits enter_market again
rather than running exactly one job per process lifetime. A Settling
outcome of Retry (tx submitted but not yet confirmed) holds the loop in
Settling rather than clearing the active flow early.

A health check only runs when healthInterval has elapsed; between
checks the loop trusts its last verdict, so an Unhealthy tick doesn't
re-probe collaborators every cycle.

# Resumption

loadOrBuildFlow checks the Flow Store for a binding from the claimed
job's address before building anything, so a node restarted mid-flow
picks the same Flow back up rather than starting over.
*/
package loop
