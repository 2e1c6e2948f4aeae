package utils

import (
	"context"
	"time"
)

const DefaultTimeout = 30 * time.Second

// NewContext returns a context bounded by DefaultTimeout
func NewContext() (ctx context.Context, cancel func()) {
	return NewContextWithTimeout(DefaultTimeout)
}

func NewContextWithTimeout(timeout time.Duration) (ctx context.Context, cancel func()) {
	return context.WithTimeout(context.Background(), timeout)
}
