package transcoder

import "sync"

// Mode is the hardware class an encoder cache entry belongs to.
type Mode string

const (
	ModeGPU Mode = "gpu"
	ModeCPU Mode = "cpu"
)

func modeFor(useGPU bool) Mode {
	if useGPU {
		return ModeGPU
	}
	return ModeCPU
}

// EncoderCache remembers the last encoder that succeeded per mode. It is
// filled on the first success and cleared when the cached encoder fails.
type EncoderCache struct {
	mu      sync.Mutex
	entries map[Mode]EncoderSpec
}

// NewEncoderCache creates an empty cache.
func NewEncoderCache() *EncoderCache {
	return &EncoderCache{entries: make(map[Mode]EncoderSpec)}
}

// Get returns the cached encoder for mode.
func (c *EncoderCache) Get(mode Mode) (EncoderSpec, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	spec, ok := c.entries[mode]
	return spec, ok
}

// Set records spec as the working encoder for mode.
func (c *EncoderCache) Set(mode Mode, spec EncoderSpec) {
	c.mu.Lock()
	c.entries[mode] = spec
	c.mu.Unlock()
}

// Clear drops the entry for mode.
func (c *EncoderCache) Clear(mode Mode) {
	c.mu.Lock()
	delete(c.entries, mode)
	c.mu.Unlock()
}

// Reset drops every entry.
func (c *EncoderCache) Reset() {
	c.mu.Lock()
	c.entries = make(map[Mode]EncoderSpec)
	c.mu.Unlock()
}
