// Package events is the booking allocation engine for the shared house
// calendar. It guarantees that no two reservations ever claim an
// overlapping night without holding any in-process or storage-level lock.
//
// # Night slots
//
// Exclusivity is enforced per calendar night. Alongside each reservation
// row the engine writes one slot item per occupied night, keyed by date,
// with a condition that the slot does not already exist. Reservation row
// and slots are written in a single TransactWriteItems call, so either the
// whole reservation commits or nothing does. Two concurrent creates for
// overlapping ranges contend on at least one slot item and exactly one of
// them wins; the loser observes [CodeOverlaps].
//
// Updates diff the old and new night sets and put only the added nights
// (conditionally) while deleting the removed ones, alongside a
// version-guarded update of the reservation row. A stale version observes
// [CodeUpdated].
//
// # Table layout
//
// One table, two logical record kinds:
//
//	PK="EVENT"  SK=<id>    startDate endDate title version
//	PK="SLOT"   SK=<date>  eventId
//
// plus the startDateIndex GSI (PK hash, startDate range) backing List.
//
// # Errors
//
// Domain failures are *[Error] values carrying a [Code] from a closed set;
// use [HasCode] to classify them. The engine never retries a conflict:
// after [CodeOverlaps] or [CodeUpdated] the caller re-fetches and decides.
package events
