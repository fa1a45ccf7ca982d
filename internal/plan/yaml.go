package plan

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type yamlDoc struct {
	Plans []Plan `yaml:"plans"`
}

// YAMLSource reads plans from a YAML file of the form {plans: [...]}.
type YAMLSource struct {
	Path string
}

func (s YAMLSource) Plans(context.Context) ([]Plan, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open plan file: %w", err)
	}
	defer f.Close()
	return ParseYAML(f)
}

// ParseYAML decodes a plan document, rejecting unknown keys.
// Missing intervals default to none and missing currencies to USD.
func ParseYAML(r io.Reader) ([]Plan, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc yamlDoc
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode plans: %w", err)
	}
	for i := range doc.Plans {
		if doc.Plans[i].Interval == "" {
			doc.Plans[i].Interval = IntervalNone
		}
		if doc.Plans[i].Price.Currency == "" {
			doc.Plans[i].Price.Currency = "USD"
		}
	}
	return doc.Plans, nil
}
