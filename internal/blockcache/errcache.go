package blockcache

import "errors"

// ErrCacheMiss is returned by TryRead when the requested blocks are not
// fully resident (spec.md §4.4: "partial hit still counts as miss for this
// job"). It is not a failure; the caller posts a real storage read.
var ErrCacheMiss = errors.New("blockcache: cache miss")
