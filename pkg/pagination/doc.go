// Package pagination drives cursor-paginated Helix list endpoints.
//
// Helix list responses carry their items under "data" and an opaque
// continuation token under "pagination.cursor". A Paginator repeatedly calls a
// FetchFunc, following cursors until one of three conditions holds:
//   - the server returns an empty page
//   - the configured maximum item count has been yielded
//   - the response carries no cursor
//
// Example usage:
//
//	p := pagination.New(func(ctx context.Context, cursor string) pagination.Page {
//		q := url.Values{"query": {"warframe"}, "first": {"100"}}
//		if cursor != "" {
//			q.Set("after", cursor)
//		}
//		return pagination.PageFromPayload(helix.Get(ctx, "/search/channels", q))
//	}, 150)
//	for batch := range p.Pages(ctx) {
//		...
//	}
//
// A Paginator is single-use. Once it has stopped, Next reports false without
// calling the fetch function again and Reason explains why it stopped.
package pagination
