// Package cache provides the key-value backends used for upstream documents
// and the daily summary guard.
package cache

import (
	"github.com/i474232898/weather-monitoring/internal/weather"
)

// DefaultTTL is the standard expiry for cached upstream documents.
const DefaultTTL = weather.DefaultCacheTTL

var (
	_ weather.Cache = (*Memory)(nil)
	_ weather.Cache = (*Redis)(nil)
	_ weather.Cache = (*Badger)(nil)
	_ weather.Cache = (*Compressed)(nil)
)
