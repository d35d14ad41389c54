package interfaces

import "errors"

// ErrCacheMiss is returned by CacheStorage.Get when no entry exists for a key.
var ErrCacheMiss = errors.New("cache miss")
