package completion

import (
	"fmt"
	"hash/crc32"
	"time"
)

// CacheOptions configure the advisory cache annotation for one request.
type CacheOptions struct {
	Stage         string
	PromptVersion string
	Retention     time.Duration
	Shards        int
	// Model is the backend model id; the client fills it from the request.
	Model string
}

// Enabled reports whether an annotation should be attached.
func (o CacheOptions) Enabled() bool {
	return o.Retention > 0
}

// CacheKey is the deterministic annotation derived from a request.
type CacheKey struct {
	Stage         string
	PromptVersion string
	Model         string
	Fingerprint   uint32
	Shard         int
	Shards        int
}

// DeriveCacheKey computes the cache key for userContent. The fingerprint is a
// CRC32 over stage, prompt version and content, NUL separated so that distinct
// triples never collide by concatenation.
func DeriveCacheKey(opts CacheOptions, userContent string) CacheKey {
	h := crc32.NewIEEE()
	h.Write([]byte(opts.Stage))
	h.Write([]byte{0})
	h.Write([]byte(opts.PromptVersion))
	h.Write([]byte{0})
	h.Write([]byte(userContent))
	sum := h.Sum32()

	shards := opts.Shards
	if shards < 1 {
		shards = 1
	}
	return CacheKey{
		Stage:         opts.Stage,
		PromptVersion: opts.PromptVersion,
		Model:         opts.Model,
		Fingerprint:   sum,
		Shard:         int(sum % uint32(shards)),
		Shards:        shards,
	}
}

// String renders the key as <version>:<model>:<stage>:<fingerprint>:shard-<n>-of-<shards>.
// The model segment is omitted when unset.
func (k CacheKey) String() string {
	prefix := k.PromptVersion
	if k.Model != "" {
		prefix += ":" + k.Model
	}
	return fmt.Sprintf("%s:%s:%08x:shard-%d-of-%d", prefix, k.Stage, k.Fingerprint, k.Shard, k.Shards)
}

// Annotation is the cache hint handed to a backend.
type Annotation struct {
	Key       string
	Retention time.Duration
	Version   string
}

func annotationFor(opts CacheOptions, userContent string) *Annotation {
	if !opts.Enabled() {
		return nil
	}
	return &Annotation{
		Key:       DeriveCacheKey(opts, userContent).String(),
		Retention: opts.Retention,
		Version:   opts.PromptVersion,
	}
}
