// Package redis opens go-redis clients for the preview cache.
//
// Redis is optional in notemail: when REDIS_URL is empty the service keeps
// previews in process memory. When set, Open pings with retries so a
// container starting before Redis does not crash-loop:
//
//	client, err := redis.Open(ctx, cfg.URL, append(cfg.Options(), redis.WithLogger(log))...)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
// Healthcheck returns a readiness check for pkg/health.
package redis
