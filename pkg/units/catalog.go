// Package units converts values between units of the same group, keeps
// currency exchange rates fresh and ranks units for the unit picker.
package units

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/apd/v3"
	"gopkg.in/yaml.v3"

	"github.com/lemonberrylabs/numberhub/pkg/stdlib"
	"github.com/lemonberrylabs/numberhub/pkg/types"
)

//go:embed units.yaml
var defaultCatalogYAML []byte

// Group identifies a family of mutually convertible units.
type Group string

// Unit groups.
const (
	GroupLength      Group = "length"
	GroupMass        Group = "mass"
	GroupTime        Group = "time"
	GroupTemperature Group = "temperature"
	GroupData        Group = "data"
	GroupTorque      Group = "torque"
	GroupFuel        Group = "fuel"
	GroupCurrency    Group = "currency"
	GroupNumberBase  Group = "number_base"
)

// Unit is one entry of the catalog.
type Unit struct {
	ID       string
	Group    Group
	Name     string
	Short    string
	Factor   *apd.Decimal
	Shift    *apd.Decimal
	Backward bool
	Pair     string
}

// MarshalJSON renders decimals as plain strings.
func (u Unit) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"id":     u.ID,
		"group":  u.Group,
		"name":   u.Name,
		"short":  u.Short,
		"factor": types.PlainString(u.Factor),
	}
	if u.Shift != nil && !u.Shift.IsZero() {
		out["shift"] = types.PlainString(u.Shift)
	}
	if u.Backward {
		out["backward"] = true
	}
	if u.Pair != "" {
		out["pair"] = u.Pair
	}
	return json.Marshal(out)
}

type catalogFile struct {
	Groups []struct {
		ID    Group `yaml:"id"`
		Units []struct {
			ID       string `yaml:"id"`
			Name     string `yaml:"name"`
			Short    string `yaml:"short"`
			Factor   string `yaml:"factor"`
			Shift    string `yaml:"shift"`
			Backward bool   `yaml:"backward"`
			Pair     string `yaml:"pair"`
		} `yaml:"units"`
	} `yaml:"groups"`
}

// Catalog is an immutable, ordered set of units.
type Catalog struct {
	units  []Unit
	byID   map[string]int
	groups []Group
}

// DefaultCatalog parses the embedded unit tables.
func DefaultCatalog() (*Catalog, error) {
	return LoadCatalog(defaultCatalogYAML)
}

// LoadCatalog parses a YAML catalog.
func LoadCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse unit catalog: %w", err)
	}

	c := &Catalog{byID: make(map[string]int)}
	for _, g := range f.Groups {
		if g.ID == "" {
			return nil, fmt.Errorf("unit group without id")
		}
		c.groups = append(c.groups, g.ID)
		for _, u := range g.Units {
			if _, dup := c.byID[u.ID]; dup {
				return nil, fmt.Errorf("duplicate unit id '%s'", u.ID)
			}
			factor, err := parseFactor(u.Factor)
			if err != nil {
				return nil, fmt.Errorf("unit %s: %w", u.ID, err)
			}
			var shift *apd.Decimal
			if u.Shift != "" {
				if shift, err = types.ParseDecimal(u.Shift); err != nil {
					return nil, fmt.Errorf("unit %s shift: %w", u.ID, err)
				}
			}
			c.byID[u.ID] = len(c.units)
			c.units = append(c.units, Unit{
				ID:       u.ID,
				Group:    g.ID,
				Name:     u.Name,
				Short:    u.Short,
				Factor:   factor,
				Shift:    shift,
				Backward: u.Backward,
				Pair:     u.Pair,
			})
		}
	}

	for _, u := range c.units {
		if u.Group == GroupNumberBase {
			if _, err := radix(u); err != nil {
				return nil, err
			}
		}
		if u.Pair == "" {
			continue
		}
		p, ok := c.byID[u.Pair]
		if !ok || c.units[p].Group != u.Group {
			return nil, fmt.Errorf("unit %s: pair '%s' is not in group %s", u.ID, u.Pair, u.Group)
		}
	}
	return c, nil
}

// parseFactor accepts a decimal or a fraction "n/d".
func parseFactor(s string) (*apd.Decimal, error) {
	s = strings.TrimSpace(s)
	num, den, isFraction := strings.Cut(s, "/")
	if !isFraction {
		d, err := types.ParseDecimal(s)
		if err != nil {
			return nil, err
		}
		if d.Sign() <= 0 {
			return nil, fmt.Errorf("factor must be positive: %s", s)
		}
		return d, nil
	}
	n, err := types.ParseDecimal(strings.TrimSpace(num))
	if err != nil {
		return nil, err
	}
	d, err := types.ParseDecimal(strings.TrimSpace(den))
	if err != nil {
		return nil, err
	}
	q, err := stdlib.NewEnv(stdlib.Radians).Quo(n, d)
	if err != nil {
		return nil, err
	}
	if q.Sign() <= 0 {
		return nil, fmt.Errorf("factor must be positive: %s", s)
	}
	return q, nil
}

// Unit returns the unit with the given id.
func (c *Catalog) Unit(id string) (Unit, error) {
	i, ok := c.byID[id]
	if !ok {
		return Unit{}, types.NewUnknownUnitError(id)
	}
	return c.units[i], nil
}

// Units returns every unit in catalog order.
func (c *Catalog) Units() []Unit {
	out := make([]Unit, len(c.units))
	copy(out, c.units)
	return out
}

// Group returns the units of g in catalog order.
func (c *Catalog) Group(g Group) []Unit {
	var out []Unit
	for _, u := range c.units {
		if u.Group == g {
			out = append(out, u)
		}
	}
	return out
}

// Groups returns the group ids in catalog order.
func (c *Catalog) Groups() []Group {
	out := make([]Group, len(c.groups))
	copy(out, c.groups)
	return out
}
