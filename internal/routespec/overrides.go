package routespec

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Param is one filter a route accepts: query parameter Name is compared to
// Column with Operator. Values are always bound, never interpolated.
type Param struct {
	Name     string `yaml:"name" json:"name"`
	Column   string `yaml:"column" json:"column"`
	Operator string `yaml:"operator" json:"operator"`
	Type     string `yaml:"type" json:"type"`
}

// Override replaces derived fields of one model's route. Any field that is
// set wins outright; there is no per-field merging.
type Override struct {
	Model      string   `yaml:"model" json:"model"`
	Path       string   `yaml:"path,omitempty" json:"path,omitempty"`
	Summary    string   `yaml:"summary,omitempty" json:"summary,omitempty"`
	Tags       []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	Tier       string   `yaml:"tier,omitempty" json:"tier,omitempty"`
	Parameters []Param  `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	OrderBy    string   `yaml:"order_by,omitempty" json:"order_by,omitempty"`
}

// Overrides is the manual endpoint document.
type Overrides struct {
	Endpoints []Override `yaml:"endpoints" json:"endpoints"`
}

// Lookup returns the override for model, if any.
func (o Overrides) Lookup(model string) (Override, bool) {
	for _, ep := range o.Endpoints {
		if ep.Model == model {
			return ep, true
		}
	}
	return Override{}, false
}

// ParseOverrides decodes a YAML (or JSON) override document.
func ParseOverrides(b []byte) (Overrides, error) {
	var o Overrides
	if err := yaml.Unmarshal(b, &o); err != nil {
		return Overrides{}, err
	}
	for i, ep := range o.Endpoints {
		if strings.TrimSpace(ep.Model) == "" {
			return Overrides{}, fmt.Errorf("endpoint %d: model is required", i)
		}
		for j, p := range ep.Parameters {
			if p.Name == "" || p.Column == "" {
				return Overrides{}, fmt.Errorf("endpoint %s: parameter %d needs name and column", ep.Model, j)
			}
			if p.Operator == "" {
				o.Endpoints[i].Parameters[j].Operator = "="
			}
		}
	}
	return o, nil
}

// LoadOverrides reads the override document at path. A missing file yields
// an empty document.
func LoadOverrides(fs afero.Fs, path string) (Overrides, error) {
	if path == "" {
		return Overrides{}, nil
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Overrides{}, nil
		}
		return Overrides{}, err
	}
	o, err := ParseOverrides(b)
	if err != nil {
		return Overrides{}, fmt.Errorf("%s: %w", path, err)
	}
	return o, nil
}
