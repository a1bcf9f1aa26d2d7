// Package pagination walks offset/limit paginated list endpoints.
//
// The upstream API pages lists with n (page size) and offset query
// parameters and gives no total count, so the walker keeps requesting
// pages until one comes back short or empty. Pages are fetched one after
// another: every request already passes through the client's rate limiter,
// and parallel workers would only queue behind it.
//
// Example usage:
//
//	members, err := pagination.Collect(ctx, func(ctx context.Context, limit, offset int) ([]cache.Record, error) {
//		return accessor.FetchList(ctx, c, "/groups/grp_1/members", url.Values{
//			"n":      {strconv.Itoa(limit)},
//			"offset": {strconv.Itoa(offset)},
//		})
//	}, pagination.DefaultConfig())
//
// The walker:
//   - Advances offset by the page size after every full page
//   - Stops on a short or empty page, at MaxItems, or when ctx ends
//   - Reports the running total through OnProgress
//   - Returns the items collected so far alongside any error
package pagination
