package app

// Config is the engine's environment-driven configuration.
type Config struct {
	// System selects the active game system adapter.
	System string `env:"IMPROV_ENGINE_SYSTEM" envDefault:"pf2e"`
	// DBPath points at the sqlite database; empty keeps everything in memory.
	DBPath string `env:"IMPROV_ENGINE_DB_PATH"`

	// PoolEnabled and PoolSize configure the shared cinematic pool.
	PoolEnabled bool `env:"IMPROV_ENGINE_POOL_ENABLED" envDefault:"true"`
	PoolSize    int  `env:"IMPROV_ENGINE_POOL_SIZE" envDefault:"3"`

	// SuccessRiders and FailureSetbacks are the configurable effect menus,
	// entries shaped "slug", "slug:value" or "drop-item". Unset keeps each
	// system's own menu.
	SuccessRiders   []string `env:"IMPROV_ENGINE_SUCCESS_RIDERS" envSeparator:","`
	FailureSetbacks []string `env:"IMPROV_ENGINE_FAILURE_SETBACKS" envSeparator:","`

	// SuccessCondition and FailureCondition are the fallback condition
	// slugs; configurable because the upstream terminology drifts. Unset
	// keeps each system's own slug.
	SuccessCondition string `env:"IMPROV_ENGINE_SUCCESS_CONDITION"`
	FailureCondition string `env:"IMPROV_ENGINE_FAILURE_CONDITION"`

	// CritPrompt asks how to resolve critical degrees instead of always
	// deferring to the native deck.
	CritPrompt bool `env:"IMPROV_ENGINE_CRIT_PROMPT" envDefault:"false"`

	// GMView shows difficulty numbers in presented results.
	GMView bool `env:"IMPROV_ENGINE_GM_VIEW" envDefault:"true"`

	// DiceSeed seeds the local dice engine; 0 picks a time-based seed.
	DiceSeed int64 `env:"IMPROV_ENGINE_DICE_SEED"`
}
