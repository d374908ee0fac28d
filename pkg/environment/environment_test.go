package environment_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/featurekit/pkg/environment"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want environment.Environment
	}{
		{"production", environment.Production},
		{"PROD", environment.Production},
		{" stage ", environment.Staging},
		{"dev", environment.Development},
		{"testing", environment.Test},
		{"Custom", environment.Environment("custom")},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, environment.Parse(tt.in))
		})
	}
}

func TestContext(t *testing.T) {
	t.Parallel()

	ctx := environment.WithContext(context.Background(), environment.Staging)
	assert.Equal(t, environment.Staging, environment.FromContext(ctx))
	assert.Equal(t, environment.Environment(""), environment.FromContext(context.Background()))
}

func TestDetector(t *testing.T) {
	t.Parallel()

	noEnv := func(string) (string, bool) { return "", false }

	t.Run("explicit wins", func(t *testing.T) {
		t.Parallel()
		d := environment.Detector{
			Explicit:  "dev",
			LookupEnv: func(string) (string, bool) { return "production", true },
			Hostname:  func() (string, error) { return "api.example.com", nil },
		}
		assert.Equal(t, environment.Development, d.Detect())
	})

	t.Run("process env before hostname", func(t *testing.T) {
		t.Parallel()
		d := environment.Detector{
			LookupEnv: func(name string) (string, bool) {
				if name == "APP_ENV" {
					return "staging", true
				}
				return "", false
			},
			Hostname: func() (string, error) { return "api.example.com", nil },
		}
		assert.Equal(t, environment.Staging, d.Detect())
	})

	t.Run("hostname heuristic", func(t *testing.T) {
		t.Parallel()
		d := environment.Detector{
			LookupEnv: noEnv,
			Hostname:  func() (string, error) { return "localhost", nil },
		}
		assert.Equal(t, environment.Development, d.Detect())
	})

	t.Run("hostname error fails to production", func(t *testing.T) {
		t.Parallel()
		d := environment.Detector{
			LookupEnv: noEnv,
			Hostname:  func() (string, error) { return "", errors.New("boom") },
		}
		assert.Equal(t, environment.Production, d.Detect())
	})
}

func TestFromHostname(t *testing.T) {
	t.Parallel()

	tests := []struct {
		host string
		want environment.Environment
	}{
		{"localhost", environment.Development},
		{"app.localhost", environment.Development},
		{"my-mac.local", environment.Development},
		{"127.0.0.1", environment.Development},
		{"192.168.1.10", environment.Development},
		{"10.0.0.5", environment.Development},
		{"::1", environment.Development},
		{"staging.example.com", environment.Staging},
		{"api-preview.example.com", environment.Staging},
		{"app.example.com", environment.Production},
		{"8.8.8.8", environment.Production},
		{"", environment.Production},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, environment.FromHostname(tt.host))
		})
	}
}
