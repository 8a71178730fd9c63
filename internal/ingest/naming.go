package ingest

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// UniqueName returns a storage key of the form <unix-nanos>-<random><ext>.
// The timestamp and random part only avoid collisions between concurrent
// uploads; they are not a security control.
func UniqueName(ext string) string {
	return fmt.Sprintf("%d-%d%s", time.Now().UnixNano(), rand.Int64N(1_000_000_000), ext)
}
