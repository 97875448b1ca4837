package regalloc

import env "github.com/xyproto/env/v2"

// Config carries the allocator's one enumerated configuration knob: a
// trace toggle. When set, the allocator writes a trace line for every gap
// move it inserts and every spill it makes; it has no effect on
// allocation decisions themselves.
type Config struct {
	TraceRegalloc bool
}

// LoadConfig resolves Config from the environment using a single typed
// read of REGALLOC_TRACE, rather than scattering os.Getenv calls through
// the allocator. No default is passed; env.Bool reports false when the
// variable is unset.
func LoadConfig() Config {
	return Config{
		TraceRegalloc: env.Bool("REGALLOC_TRACE"),
	}
}
