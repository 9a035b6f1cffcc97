package models

import "fmt"

type Section string

const (
	SectionPrimary Section = "primary"
	SectionMiddle  Section = "middle"
)

var Sections = []Section{SectionPrimary, SectionMiddle}

func ParseSection(s string) (Section, error) {
	switch Section(s) {
	case SectionPrimary, SectionMiddle:
		return Section(s), nil
	}
	return "", fmt.Errorf("unknown section %q", s)
}

// ResourceKind is both the ledger kind and the report kind.
type ResourceKind string

const (
	ResourceRice   ResourceKind = "rice"
	ResourceAmount ResourceKind = "amount"
)

var ResourceKinds = []ResourceKind{ResourceRice, ResourceAmount}

func ParseResourceKind(s string) (ResourceKind, error) {
	switch ResourceKind(s) {
	case ResourceRice, ResourceAmount:
		return ResourceKind(s), nil
	}
	return "", fmt.Errorf("unknown resource kind %q", s)
}

type LedgerStatus string

const (
	LedgerStatusDraft     LedgerStatus = "DRAFT"
	LedgerStatusCompleted LedgerStatus = "COMPLETED"
	LedgerStatusLocked    LedgerStatus = "LOCKED"
)

type LedgerLockAction string

const (
	LedgerLockActionLock   LedgerLockAction = "LOCK"
	LedgerLockActionUnlock LedgerLockAction = "UNLOCK"
)

type IngredientCategory string

const (
	IngredientPulses     IngredientCategory = "pulses"
	IngredientVegetables IngredientCategory = "vegetables"
	IngredientOil        IngredientCategory = "oil"
	IngredientSalt       IngredientCategory = "salt"
	IngredientFuel       IngredientCategory = "fuel"
)
