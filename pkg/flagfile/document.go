package flagfile

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/featurekit/pkg/feature"
)

// Document is the on-disk flag definition format.
//
//	flags:
//	  - key: new-checkout
//	    enabled: true
//	    rolloutPercentage: 25
//	    rules:
//	      - id: staff
//	        enabled: true
//	        condition: {attribute: attributes.staff, operator: equals, value: true}
//	        value: true
//	overrides:
//	  - flagId: new-checkout
//	    userId: qa-user
//	    value: true
//	    enabled: true
//
// A flag without an id gets its key as id, so overrides may reference
// flags by key.
type Document struct {
	Flags     []*feature.Flag    `yaml:"flags"`
	Overrides []feature.Override `yaml:"overrides,omitempty"`
}

// Parse decodes and validates a YAML document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Join(ErrParseFile, err)
	}
	for i, f := range doc.Flags {
		if f == nil {
			return nil, errors.Join(ErrInvalidFlag, fmt.Errorf("flag #%d is empty", i))
		}
		if f.ID == "" {
			f.ID = f.Key
		}
		if err := f.Validate(); err != nil {
			return nil, errors.Join(ErrInvalidFlag, fmt.Errorf("flag #%d %q: %w", i, f.Key, err))
		}
	}
	return &doc, nil
}

// Marshal encodes doc as YAML.
func Marshal(doc *Document) ([]byte, error) {
	return yaml.Marshal(doc)
}

// storage builds an in-memory snapshot of the document.
func (d *Document) storage() (*feature.MemoryStorage, error) {
	mem, err := feature.NewMemoryStorage(d.Flags...)
	if err != nil {
		return nil, errors.Join(ErrInvalidFlag, err)
	}
	for _, o := range d.Overrides {
		if err := mem.SetOverride(context.Background(), o); err != nil {
			return nil, errors.Join(ErrInvalidFlag, err)
		}
	}
	return mem, nil
}
