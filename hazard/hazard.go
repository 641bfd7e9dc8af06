// Package hazard implements hazard-pointer based safe memory reclamation
// for lock-free data structures.
//
// A goroutine that wants to dereference a node reachable from shared memory
// publishes the node's address into a slot of a Registry before the
// dereference and clears it afterwards. A goroutine that unlinked a node
// hands it to its Handle's retire list instead of freeing it directly; the
// reclamation pass frees exactly those retired nodes whose address appears
// in no slot.
//
// The protocol gives every node a strict lifecycle:
//
//	live -> retired -> reclaimable -> freed
//
// A node is freed at most once, and never while any slot holds its address.
// Nodes that stay protected simply remain on the retire list for a later
// pass, which bounds memory growth by the number of concurrently held
// guards rather than leaking.
//
// Registries are plain values constructed with NewRegistry; there is no
// package-global instance, so independent structures (and tests) can use
// isolated registries.
package hazard
