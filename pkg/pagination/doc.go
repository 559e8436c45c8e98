// Package pagination walks the brewery listing page by page until the API
// returns an empty page.
//
// The API publishes no total page count, so pages are fetched strictly in
// order: 1, 2, 3, ... and the first empty page ends the walk. Any failed
// page aborts the whole walk and no partial result is returned.
//
// Example usage:
//
//	config := pagination.DefaultConfig()
//	fetcher := pagination.NewFetcher(breweryClient, config)
//	result, err := fetcher.FetchAll(ctx)
package pagination
