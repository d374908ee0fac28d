package sanitizer

import "log/slog"

const (
	DefaultMaxURLSize      = 2048
	DefaultMaxBodySize     = 10240
	DefaultMaxStringLength = 200
	DefaultMaxArrayLength  = 10
	maxDepth               = 16
	ellipsis               = "..."
)

// Option configures a Sanitizer.
type Option func(*Sanitizer)

// WithStrict drops every top-level key outside the allow-list.
// Without keys a default list of common targeting fields is used.
func WithStrict(allowed ...string) Option {
	return func(s *Sanitizer) {
		s.strict = true
		if len(allowed) == 0 {
			allowed = defaultAllowedKeys
		}
		s.allowed = make(map[string]struct{}, len(allowed))
		for _, k := range allowed {
			s.allowed[k] = struct{}{}
		}
	}
}

// WithMaxURLSize sets the budget for the query-escaped JSON encoding.
func WithMaxURLSize(n int) Option {
	return func(s *Sanitizer) {
		if n > 0 {
			s.maxURL = n
		}
	}
}

// WithMaxBodySize sets the budget for the JSON encoding in a request body.
func WithMaxBodySize(n int) Option {
	return func(s *Sanitizer) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// WithMaxStringLength sets the rune count after which strings are truncated.
func WithMaxStringLength(n int) Option {
	return func(s *Sanitizer) {
		if n > 0 {
			s.maxString = n
		}
	}
}

// WithMaxArrayLength caps arrays to n elements.
func WithMaxArrayLength(n int) Option {
	return func(s *Sanitizer) {
		if n > 0 {
			s.maxArray = n
		}
	}
}

// WithWarnings toggles warning logs for dropped or rejected contexts.
func WithWarnings(enabled bool) Option {
	return func(s *Sanitizer) {
		s.warnings = enabled
	}
}

// WithLogger sets the logger used for warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sanitizer) {
		if l != nil {
			s.logger = l
		}
	}
}
