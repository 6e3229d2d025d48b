package humanize

// Config tunes the simulator. The zero value is not usable; start from
// DefaultConfig and override fields per call site.
type Config struct {
	// TypingSpeedMin/Max bound the per-character delay in milliseconds.
	TypingSpeedMin int
	TypingSpeedMax int

	// TypoChance is the per-character probability of a typed-and-corrected
	// typo. At most one typo is injected per Type call, and only for
	// texts of 5+ characters.
	TypoChance float64

	// MoveSpeed scales pointer travel time. 1.0 is normal; larger is
	// faster.
	MoveSpeed float64

	// ThinkTimeMin/Max bound the pause before deliberate actions
	// (clicking, selecting), in milliseconds.
	ThinkTimeMin int
	ThinkTimeMax int
}

// DefaultConfig returns the simulator defaults: a moderately quick typist
// with occasional slips.
func DefaultConfig() Config {
	return Config{
		TypingSpeedMin: 50,
		TypingSpeedMax: 150,
		TypoChance:     0.07,
		MoveSpeed:      1.0,
		ThinkTimeMin:   300,
		ThinkTimeMax:   900,
	}
}

// normalized fills unset fields from the defaults so partial overrides
// behave sensibly.
func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.TypingSpeedMin <= 0 {
		c.TypingSpeedMin = def.TypingSpeedMin
	}
	if c.TypingSpeedMax <= c.TypingSpeedMin {
		c.TypingSpeedMax = c.TypingSpeedMin + (def.TypingSpeedMax - def.TypingSpeedMin)
	}
	if c.TypoChance <= 0 {
		c.TypoChance = def.TypoChance
	}
	if c.MoveSpeed <= 0 {
		c.MoveSpeed = def.MoveSpeed
	}
	if c.ThinkTimeMin <= 0 {
		c.ThinkTimeMin = def.ThinkTimeMin
	}
	if c.ThinkTimeMax <= c.ThinkTimeMin {
		c.ThinkTimeMax = c.ThinkTimeMin + (def.ThinkTimeMax - def.ThinkTimeMin)
	}
	return c
}
