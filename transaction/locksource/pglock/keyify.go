package pglock

import (
	"hash/fnv"
)

// keyify turns an arbitrary lock key (a prefix path or cache entry name)
// into the int64 argument pg_advisory_lock expects.
func keyify(key string) []byte {
	h := fnv.New64a()
	h.Write([]byte(key))
	b := make([]byte, 0, 8)
	return h.Sum(b)
}
