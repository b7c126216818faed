// Package registry holds the reference selector sets the classifiers score
// against. The registry is built once from the embedded ABI fixtures and is
// read-only afterwards; classifiers receive it by injection so tests can
// score against synthetic standards.
package registry

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"

	fixtureabi "github.com/tokenscope/tokenscope/fixtures/abi"
	"github.com/tokenscope/tokenscope/internal/sig"
)

// Standard is an upper-cased token standard label.
type Standard string

const (
	ERC20   Standard = "ERC20"
	ERC721  Standard = "ERC721"
	ERC1155 Standard = "ERC1155"
)

// Spec carries the three selector tiers of one standard: Min is the
// mandatory core, Full the canonical surface, Max adds common optional
// extensions. Min ⊆ Full ⊆ Max holds for every registered spec.
type Spec struct {
	Standard Standard
	Min      mapset.Set[string]
	Full     mapset.Set[string]
	Max      mapset.Set[string]
}

// Registry is the immutable collection of standard specs, in registration
// order. Order matters only as the documented tie-break for equal scores.
type Registry struct {
	specs []Spec
}

// New builds the registry from the embedded reference ABIs.
func New() (*Registry, error) {
	specs := make([]Spec, 0, 3)
	for _, src := range []struct {
		std            Standard
		min, full, max []byte
	}{
		{ERC20, fixtureabi.ERC20Min, fixtureabi.ERC20, fixtureabi.ERC20Max},
		{ERC721, fixtureabi.ERC721Min, fixtureabi.ERC721, fixtureabi.ERC721Max},
		{ERC1155, fixtureabi.ERC1155Min, fixtureabi.ERC1155, fixtureabi.ERC1155Max},
	} {
		spec, err := specFromABIs(src.std, src.min, src.full, src.max)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return FromSpecs(specs)
}

// FromSpecs builds a registry from explicit specs, enforcing the tier
// relationship for each.
func FromSpecs(specs []Spec) (*Registry, error) {
	for _, s := range specs {
		if s.Standard == "" {
			return nil, fmt.Errorf("registry: spec without standard label")
		}
		if s.Min == nil || s.Full == nil || s.Max == nil {
			return nil, fmt.Errorf("registry: %s: nil tier", s.Standard)
		}
		if !s.Min.IsSubset(s.Full) {
			return nil, fmt.Errorf("registry: %s: min tier not a subset of full", s.Standard)
		}
		if !s.Full.IsSubset(s.Max) {
			return nil, fmt.Errorf("registry: %s: full tier not a subset of max", s.Standard)
		}
	}
	return &Registry{specs: specs}, nil
}

// Specs returns the registered specs in registration order. Callers must not
// mutate the returned sets.
func (r *Registry) Specs() []Spec {
	return r.specs
}

func specFromABIs(std Standard, min, full, max []byte) (Spec, error) {
	minSet, err := sig.FromABI(min)
	if err != nil {
		return Spec{}, fmt.Errorf("registry: %s min: %w", std, err)
	}
	fullSet, err := sig.FromABI(full)
	if err != nil {
		return Spec{}, fmt.Errorf("registry: %s full: %w", std, err)
	}
	maxSet, err := sig.FromABI(max)
	if err != nil {
		return Spec{}, fmt.Errorf("registry: %s max: %w", std, err)
	}
	return Spec{Standard: std, Min: minSet, Full: fullSet, Max: maxSet}, nil
}
