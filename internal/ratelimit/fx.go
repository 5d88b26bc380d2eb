package ratelimit

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("rate.limit",
	fx.Provide(NewWriteLimiter),
	fx.Invoke(func(lc fx.Lifecycle, limiter *WriteLimiter) {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return limiter.Close()
			},
		})
	}),
)
