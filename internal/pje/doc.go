// Package pje implements the client side of the PJe comunicações portal:
// the rate-limited fetch client, the result parser, the page aggregator,
// the search façade, and the identity/priority rules applied to scraped
// publications. Adapter subpackages (fetcher, storage, notify, scheduler)
// implement the ports declared here.
package pje
