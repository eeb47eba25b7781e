// Package settings reads the delivery settings document used to seed the
// stored delivery tiers on first start.
package settings

import (
	"context"
	"fmt"
	"io"

	"online-shop/internal/model"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Loader reads a delivery settings document.
type Loader interface {
	// Load reads the document at path. Fields the document omits keep the
	// value from base.
	Load(ctx context.Context, path string, base model.DeliverySettings) (model.DeliverySettings, error)
}

// amount is a non-negative money value that accepts both YAML numbers and
// quoted strings.
type amount struct {
	set   bool
	value decimal.Decimal
}

func (a *amount) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number", node.Line)
	}
	d, err := decimal.NewFromString(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid amount %q", node.Line, node.Value)
	}
	if d.IsNegative() {
		return fmt.Errorf("line %d: amount must not be negative", node.Line)
	}
	a.set = true
	a.value = d
	return nil
}

type document struct {
	ExpressCost amount `yaml:"express_cost"`
	RegularCost amount `yaml:"regular_cost"`
	FreeFrom    amount `yaml:"free_from"`
}

// Parse decodes a YAML settings document on top of base.
//
//	express_cost: 500
//	regular_cost: 200
//	free_from: "2000.00"
func Parse(r io.Reader, base model.DeliverySettings) (model.DeliverySettings, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return model.DeliverySettings{}, fmt.Errorf("failed to decode delivery settings: %w", err)
	}

	out := base
	if doc.ExpressCost.set {
		out.ExpressCost = doc.ExpressCost.value
	}
	if doc.RegularCost.set {
		out.RegularCost = doc.RegularCost.value
	}
	if doc.FreeFrom.set {
		out.FreeFrom = doc.FreeFrom.value
	}
	return out, nil
}
