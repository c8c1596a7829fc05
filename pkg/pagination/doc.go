// Package pagination owns the accumulated character list and the next-page
// cursor of the Rick and Morty character API.
//
// A Controller exposes two operations:
//
//	ctrl := pagination.NewController(gateway)
//	err := ctrl.LoadFirstPage(ctx) // replaces the list, stores info.next
//	err = ctrl.LoadNextPage(ctx)   // appends the next page, no-op without a cursor
//
// State is published to registered listeners after every successful mutation
// and can be polled with Snapshot. A failed load leaves the list and cursor
// untouched, so calling the same operation again retries it.
//
// Overlapping loads are coordinated:
//   - identical concurrent loads share one gateway call; each caller stops
//     waiting when its own context ends, and the shared call is cancelled
//     only when no caller is left
//   - a next-page result issued before a LoadFirstPage reset, or for a cursor
//     that has since advanced, is discarded
//
// Listeners may call back into the controller, including with the load that
// notified them. Updates produced during a callback are delivered after it
// returns, one round at a time.
package pagination
