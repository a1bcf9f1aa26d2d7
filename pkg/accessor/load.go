// Package accessor puts the entity caches in front of the request pipeline.
//
// Every read follows the same pattern: serve the cached value unless a
// refresh is forced, otherwise fetch through the Dispatcher and store the
// result. Writes go straight to the pipeline and invalidate the caches
// they make stale.
package accessor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Sternrassler/vrc-api-client/pkg/cache"
	"github.com/Sternrassler/vrc-api-client/pkg/client"
	"github.com/Sternrassler/vrc-api-client/pkg/pagination"
)

// Dispatcher sends one logical request. *client.Client implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, method, endpoint string, opts *client.Options) (*client.Response, error)
}

// FetchFunc produces a fresh value. ok=false means there is nothing to cache.
type FetchFunc[T any] func(ctx context.Context) (value T, ok bool, err error)

// Load returns the live cached value for key, or fetches and stores it.
// force skips the cache read but still stores the fetched value. The
// returned value is the one stored, after any merge the cache applies.
func Load[T any](ctx context.Context, c *cache.EntityCache[T], key string, force bool, fetch FetchFunc[T]) (T, error) {
	if !force {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
	}

	v, ok, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if !ok {
		return v, nil
	}
	return c.Set(key, v), nil
}

// FetchRecord GETs endpoint and decodes a JSON object. A 403, a 404 or a
// suppressed repeat of either reports ok=false without an error.
func FetchRecord(ctx context.Context, d Dispatcher, endpoint string, query url.Values) (cache.Record, bool, error) {
	var rec cache.Record
	ok, err := fetchJSON(ctx, d, endpoint, query, &rec)
	if err != nil || !ok {
		return nil, false, err
	}
	if rec == nil {
		rec = cache.Record{}
	}
	return rec, true, nil
}

// FetchList GETs endpoint and decodes a JSON array. Missing endpoints are
// reported the same way as in FetchRecord.
func FetchList(ctx context.Context, d Dispatcher, endpoint string, query url.Values) ([]cache.Record, bool, error) {
	var list []cache.Record
	ok, err := fetchJSON(ctx, d, endpoint, query, &list)
	if err != nil || !ok {
		return nil, false, err
	}
	if list == nil {
		list = []cache.Record{}
	}
	return list, true, nil
}

// FetchAll walks an n/offset paginated list endpoint. query is copied and
// extended with the paging parameters. Items collected before a failure are
// returned with the error.
func FetchAll(ctx context.Context, d Dispatcher, endpoint string, query url.Values, cfg pagination.Config) ([]cache.Record, error) {
	return pagination.Collect(ctx, func(ctx context.Context, limit, offset int) ([]cache.Record, error) {
		list, _, err := FetchList(ctx, d, endpoint, pageQuery(query, limit, offset))
		return list, err
	}, cfg)
}

func fetchJSON(ctx context.Context, d Dispatcher, endpoint string, query url.Values, v any) (bool, error) {
	resp, err := d.Dispatch(ctx, http.MethodGet, endpoint, &client.Options{Query: query})
	if err != nil {
		if errors.Is(err, client.ErrCircuitBreakerSuppressed) {
			return false, nil
		}
		return false, err
	}
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden {
		return false, nil
	}
	if err := client.CheckStatus(resp); err != nil {
		return false, err
	}
	if len(resp.Body) == 0 {
		return true, nil
	}
	if err := resp.JSON(v); err != nil {
		return false, fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	return true, nil
}

func pageQuery(query url.Values, limit, offset int) url.Values {
	q := make(url.Values, len(query)+2)
	for k, v := range query {
		q[k] = append([]string(nil), v...)
	}
	q.Set("n", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	return q
}
