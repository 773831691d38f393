package ratelimiter

import "time"

type Limiter interface {
	Allow(source string) (bool, time.Duration)
	Close()
}
