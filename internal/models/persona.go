// internal/models/persona.go
package models

import (
	"errors"
	"fmt"
)

type Experience string

const (
	ExperienceReturning Experience = "returning-user"
	ExperienceNew       Experience = "new-user"
)

type Purpose string

const (
	PurposeBulkUp        Purpose = "bulk-up"
	PurposeDiet          Purpose = "diet"
	PurposeGeneralHealth Purpose = "general-health"
)

type Priority string

const (
	PriorityPrice             Priority = "price"
	PriorityTaste             Priority = "taste"
	PriorityIngredientQuality Priority = "ingredient-quality"
	PriorityBrandReputation   Priority = "brand-reputation"
)

// AllPriorities is the display order of the priority toggles.
var AllPriorities = []Priority{PriorityPrice, PriorityTaste, PriorityIngredientQuality, PriorityBrandReputation}

var ErrInvalidPersona = errors.New("invalid persona")

// Persona is the diagnosis-phase user profile.
type Persona struct {
	Experience        Experience        `json:"experience"`
	CurrentBrand      string            `json:"currentBrand,omitempty"`
	BaselineProductID string            `json:"baselineProductId,omitempty"`
	Purpose           Purpose           `json:"purpose"`
	Priorities        map[Priority]bool `json:"priorities"`
}

// DefaultPersona mirrors the diagnosis form's initial selections.
func DefaultPersona() Persona {
	return Persona{
		Experience: ExperienceReturning,
		Purpose:    PurposeBulkUp,
		Priorities: map[Priority]bool{
			PriorityPrice:             true,
			PriorityTaste:             false,
			PriorityIngredientQuality: false,
			PriorityBrandReputation:   false,
		},
	}
}

// Clone returns a deep copy.
func (p Persona) Clone() Persona {
	out := p
	out.Priorities = make(map[Priority]bool, len(p.Priorities))
	for k, v := range p.Priorities {
		out.Priorities[k] = v
	}
	return out
}

// EnabledPriorities returns the toggled-on priorities in display order.
func (p Persona) EnabledPriorities() []Priority {
	var out []Priority
	for _, pr := range AllPriorities {
		if p.Priorities[pr] {
			out = append(out, pr)
		}
	}
	return out
}

// Validate checks enum membership and, when a catalog is given, that brand and
// product references exist and agree with each other.
func (p Persona) Validate(catalog *Catalog) error {
	switch p.Experience {
	case ExperienceReturning, ExperienceNew:
	default:
		return fmt.Errorf("%w: unknown experience %q", ErrInvalidPersona, p.Experience)
	}
	switch p.Purpose {
	case PurposeBulkUp, PurposeDiet, PurposeGeneralHealth:
	default:
		return fmt.Errorf("%w: unknown purpose %q", ErrInvalidPersona, p.Purpose)
	}
	for k := range p.Priorities {
		switch k {
		case PriorityPrice, PriorityTaste, PriorityIngredientQuality, PriorityBrandReputation:
		default:
			return fmt.Errorf("%w: unknown priority %q", ErrInvalidPersona, k)
		}
	}
	if p.BaselineProductID != "" && p.CurrentBrand == "" {
		return fmt.Errorf("%w: baseline product requires a current brand", ErrInvalidPersona)
	}

	if catalog == nil {
		return nil
	}
	if p.CurrentBrand != "" && !catalog.HasBrand(p.CurrentBrand) {
		return fmt.Errorf("%w: brand %q not in catalog", ErrInvalidPersona, p.CurrentBrand)
	}
	if p.BaselineProductID != "" {
		product, ok := catalog.ByID(p.BaselineProductID)
		if !ok {
			return fmt.Errorf("%w: product %q not in catalog", ErrInvalidPersona, p.BaselineProductID)
		}
		if product.Brand != p.CurrentBrand {
			return fmt.Errorf("%w: product %q belongs to brand %q, not %q",
				ErrInvalidPersona, p.BaselineProductID, product.Brand, p.CurrentBrand)
		}
	}
	return nil
}
