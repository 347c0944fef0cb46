// Package poller schedules snapshot requests so that at most one is
// outstanding. Extra triggers while a request is in flight are coalesced,
// and each request carries a generation number so a reply that arrives
// after a newer request was issued can be recognised and dropped.
package poller
