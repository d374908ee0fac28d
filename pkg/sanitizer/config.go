package sanitizer

// Config is the environment-driven sanitizer configuration.
type Config struct {
	Strict          bool     `env:"FEATURE_SANITIZER_STRICT" envDefault:"false"`
	AllowedKeys     []string `env:"FEATURE_SANITIZER_ALLOWED_KEYS" envSeparator:","`
	MaxURLSize      int      `env:"FEATURE_SANITIZER_MAX_URL_SIZE" envDefault:"2048"`
	MaxBodySize     int      `env:"FEATURE_SANITIZER_MAX_BODY_SIZE" envDefault:"10240"`
	MaxStringLength int      `env:"FEATURE_SANITIZER_MAX_STRING_LENGTH" envDefault:"200"`
	MaxArrayLength  int      `env:"FEATURE_SANITIZER_MAX_ARRAY_LENGTH" envDefault:"10"`
	Warnings        bool     `env:"FEATURE_SANITIZER_WARNINGS" envDefault:"true"`
}

// FromConfig converts cfg into options.
func FromConfig(cfg Config) []Option {
	opts := []Option{
		WithWarnings(cfg.Warnings),
		WithMaxURLSize(cfg.MaxURLSize),
		WithMaxBodySize(cfg.MaxBodySize),
		WithMaxStringLength(cfg.MaxStringLength),
		WithMaxArrayLength(cfg.MaxArrayLength),
	}
	if cfg.Strict {
		opts = append(opts, WithStrict(cfg.AllowedKeys...))
	}
	return opts
}
