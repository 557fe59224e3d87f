// Package cache provides a small generic cache with in-memory and Redis
// backends plus a stampede-safe GetOrSet helper.
//
// The in-memory backend keeps compiled templates; values are held by
// reference and never serialized. The Redis backend stores JSON (or a custom
// Marshaler) and is used for rendered previews shared between replicas.
//
//	c := cache.NewMemory[*raymond.Template](cache.WithMaxEntries(1024))
//	defer c.Close()
//
//	tpl, err := cache.GetOrSet(ctx, c, cache.Key("tpl", hash), func(ctx context.Context) (*raymond.Template, time.Duration, error) {
//		t, err := raymond.Parse(src)
//		return t, 0, err
//	})
//
// TTL semantics for Set: positive expires after the duration, zero uses the
// backend default, negative never expires.
package cache
