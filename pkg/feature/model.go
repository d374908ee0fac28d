package feature

import (
	"time"
)

// FlagType is the declared type of a flag value.
type FlagType string

const (
	TypeBoolean FlagType = "boolean"
	TypeString  FlagType = "string"
	TypeNumber  FlagType = "number"
	TypeJSON    FlagType = "json"
)

// Flag is a feature flag definition. Flags are treated as immutable during
// evaluation.
type Flag struct {
	ID                string    `json:"id" yaml:"id"`
	Key               string    `json:"key" yaml:"key"`
	Type              FlagType  `json:"type" yaml:"type"`
	Enabled           bool      `json:"enabled" yaml:"enabled"`
	DefaultValue      any       `json:"defaultValue" yaml:"defaultValue"`
	Value             any       `json:"value,omitempty" yaml:"value,omitempty"`
	RolloutPercentage int       `json:"rolloutPercentage" yaml:"rolloutPercentage"`
	Rules             []Rule    `json:"rules,omitempty" yaml:"rules,omitempty"`
	Variants          []Variant `json:"variants,omitempty" yaml:"variants,omitempty"`
	OrganizationID    string    `json:"organizationId,omitempty" yaml:"organizationId,omitempty"`
	Description       string    `json:"description,omitempty" yaml:"description,omitempty"`
	Tags              []string  `json:"tags,omitempty" yaml:"tags,omitempty"`
	CreatedAt         time.Time `json:"createdAt,omitzero" yaml:"createdAt,omitempty"`
	UpdatedAt         time.Time `json:"updatedAt,omitzero" yaml:"updatedAt,omitempty"`
}

// ServedValue is the value delivered to users included by the rollout.
// Without an explicit Value, boolean flags serve true and other types
// serve their default.
func (f *Flag) ServedValue() any {
	if f.Value != nil {
		return f.Value
	}
	if f.Type == TypeBoolean || f.Type == "" {
		return true
	}
	return f.DefaultValue
}

// Variant returns the variant with the given key.
func (f *Flag) Variant(key string) (Variant, bool) {
	for _, v := range f.Variants {
		if v.Key == key {
			return v, true
		}
	}
	return Variant{}, false
}

// Validate checks the structural invariants of a flag definition.
func (f *Flag) Validate() error {
	switch {
	case f.Key == "":
		return ErrEmptyFlagKey
	case f.RolloutPercentage < 0 || f.RolloutPercentage > 100:
		return ErrInvalidRollout
	}
	switch f.Type {
	case "", TypeBoolean, TypeString, TypeNumber, TypeJSON:
	default:
		return ErrInvalidFlagType
	}
	return nil
}

func (f *Flag) clone() *Flag {
	c := *f
	c.Rules = cloneSlice(f.Rules)
	c.Variants = cloneSlice(f.Variants)
	c.Tags = cloneSlice(f.Tags)
	return &c
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}

// Variant is a weighted alternative value for A/B tests. Weight is a share
// of the [0, 100) bucket space.
type Variant struct {
	Key    string `json:"key" yaml:"key"`
	Value  any    `json:"value" yaml:"value"`
	Weight int    `json:"weight" yaml:"weight"`
}

// Rule is a targeting rule. Lower Priority values are evaluated first.
type Rule struct {
	ID        string    `json:"id" yaml:"id"`
	FlagID    string    `json:"flagId,omitempty" yaml:"flagId,omitempty"`
	Priority  int       `json:"priority" yaml:"priority"`
	Condition Condition `json:"condition" yaml:"condition"`
	Value     any       `json:"value,omitempty" yaml:"value,omitempty"`
	Variant   string    `json:"variant,omitempty" yaml:"variant,omitempty"`
	Enabled   bool      `json:"enabled" yaml:"enabled"`
}

// Override is an admin-defined value for one user of one flag.
type Override struct {
	FlagID    string    `json:"flagId" yaml:"flagId"`
	UserID    string    `json:"userId" yaml:"userId"`
	Value     any       `json:"value" yaml:"value"`
	ExpiresAt time.Time `json:"expiresAt,omitzero" yaml:"expiresAt,omitempty"`
	Enabled   bool      `json:"enabled" yaml:"enabled"`
}

// Active reports whether the override applies at now.
func (o *Override) Active(now time.Time) bool {
	return o.Enabled && (o.ExpiresAt.IsZero() || now.Before(o.ExpiresAt))
}

// Reason explains how an evaluation result was reached.
type Reason string

const (
	ReasonNotFound          Reason = "not_found"
	ReasonDisabled          Reason = "disabled"
	ReasonOverride          Reason = "override"
	ReasonRuleMatch         Reason = "rule_match"
	ReasonPercentageRollout Reason = "percentage_rollout"
	ReasonDefault           Reason = "default"
	ReasonError             Reason = "error"
)

// ErrorCode classifies evaluation failures.
type ErrorCode string

const (
	ErrorCodeStorage    ErrorCode = "storage_error"
	ErrorCodeEvaluation ErrorCode = "evaluation_error"
)

// Source tells where a result was produced.
type Source string

const (
	SourceStorage Source = "storage"
	SourceLocal   Source = "local"
)

// EvaluationResult is the outcome of evaluating one flag.
type EvaluationResult struct {
	FlagKey   string    `json:"flagKey"`
	Value     any       `json:"value"`
	Variant   string    `json:"variant,omitempty"`
	Reason    Reason    `json:"reason"`
	Metadata  Metadata  `json:"metadata,omitzero"`
	ErrorCode ErrorCode `json:"errorCode,omitempty"`
	Err       error     `json:"-"`
}

// Metadata carries details of an evaluation.
type Metadata struct {
	RuleID   string     `json:"ruleId,omitempty"`
	Bucket   *int       `json:"bucket,omitempty"`
	Included *bool      `json:"included,omitempty"`
	Source   Source     `json:"source,omitempty"`
	Debug    *DebugInfo `json:"debug,omitempty"`
}

// DebugInfo is the evaluation trace produced in debug mode.
type DebugInfo struct {
	Steps    []DebugStep   `json:"steps"`
	Duration time.Duration `json:"durationNs"`
}

// DebugStep is one traced evaluation step.
type DebugStep struct {
	Step   string `json:"step"`
	Detail string `json:"detail"`
}

// EvaluationRecord is the analytics payload sent for every evaluation.
type EvaluationRecord struct {
	EventID        string    `json:"eventId"`
	FlagKey        string    `json:"flagKey"`
	UserID         string    `json:"userId"`
	OrganizationID string    `json:"organizationId,omitempty"`
	Value          any       `json:"value"`
	Variant        string    `json:"variant,omitempty"`
	Reason         Reason    `json:"reason"`
	Timestamp      time.Time `json:"timestamp"`
}

// ListFilter narrows ListFlags results. Empty fields match everything.
type ListFilter struct {
	Tags        []string `json:"tags,omitempty"`
	EnabledOnly bool     `json:"enabledOnly,omitempty"`
	Keys        []string `json:"keys,omitempty"`
}

func ptr[T any](v T) *T {
	return &v
}
