package models

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Unlimited is the sentinel for caps that do not apply
const Unlimited = -1

// PlanTier is one of the six ordered service levels. The zero value is the
// most restrictive tier.
type PlanTier uint8

const (
	PlanFree PlanTier = iota
	PlanBasic
	PlanProfessional
	PlanBusiness
	PlanEnterprise
	PlanUnlimited

	planTierCount
)

var planTierNames = [planTierCount]string{
	PlanFree:         "free",
	PlanBasic:        "basic",
	PlanProfessional: "professional",
	PlanBusiness:     "business",
	PlanEnterprise:   "enterprise",
	PlanUnlimited:    "unlimited",
}

// CapKind says how a document cap is counted
type CapKind string

const (
	CapLifetime  CapKind = "lifetime"
	CapMonthly   CapKind = "monthly"
	CapUnlimited CapKind = "unlimited"
)

// DocumentCap is a plan's document allowance
type DocumentCap struct {
	Kind  CapKind `json:"kind"`
	Limit int     `json:"limit"`
}

// IsUnlimited reports whether the cap never blocks
func (c DocumentCap) IsUnlimited() bool {
	return c.Kind == CapUnlimited || c.Limit == Unlimited
}

// Plan fixes the price and limits of a tier
type Plan struct {
	Tier        PlanTier        `json:"tier"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Documents   DocumentCap     `json:"documents"`
	SeatLimit   int             `json:"seat_limit"`
	Description string          `json:"description"`
}

// HasUnlimitedSeats reports whether the plan caps member count
func (p Plan) HasUnlimitedSeats() bool {
	return p.SeatLimit == Unlimited
}

var plans = [planTierCount]Plan{
	PlanFree: {
		Tier:        PlanFree,
		Name:        "Free",
		Price:       decimal.Zero,
		Documents:   DocumentCap{Kind: CapLifetime, Limit: 5},
		SeatLimit:   1,
		Description: "Five documents to try the platform",
	},
	PlanBasic: {
		Tier:        PlanBasic,
		Name:        "Basic",
		Price:       decimal.RequireFromString("49.90"),
		Documents:   DocumentCap{Kind: CapMonthly, Limit: 20},
		SeatLimit:   2,
		Description: "Twenty documents per month",
	},
	PlanProfessional: {
		Tier:      PlanProfessional,
		Name:      "Professional",
		Price:     decimal.RequireFromString("99.90"),
		Documents: DocumentCap{Kind: CapUnlimited, Limit: Unlimited},
		SeatLimit: 5,
	},
	PlanBusiness: {
		Tier:      PlanBusiness,
		Name:      "Business",
		Price:     decimal.RequireFromString("199.90"),
		Documents: DocumentCap{Kind: CapUnlimited, Limit: Unlimited},
		SeatLimit: 15,
	},
	PlanEnterprise: {
		Tier:      PlanEnterprise,
		Name:      "Enterprise",
		Price:     decimal.RequireFromString("499.90"),
		Documents: DocumentCap{Kind: CapUnlimited, Limit: Unlimited},
		SeatLimit: 50,
	},
	PlanUnlimited: {
		Tier:      PlanUnlimited,
		Name:      "Unlimited",
		Price:     decimal.RequireFromString("999.90"),
		Documents: DocumentCap{Kind: CapUnlimited, Limit: Unlimited},
		SeatLimit: Unlimited,
	},
}

// AllPlans returns the plan table ordered from lowest to highest tier
func AllPlans() []Plan {
	out := make([]Plan, 0, len(plans))
	out = append(out, plans[:]...)
	return out
}

// PlanFor returns the plan of a tier. Out-of-range values resolve to the
// free plan.
func PlanFor(tier PlanTier) Plan {
	if tier >= planTierCount {
		return plans[PlanFree]
	}
	return plans[tier]
}

// ParsePlanTier maps a stored plan identifier to its tier. Unknown
// identifiers return PlanFree and ok=false.
func ParsePlanTier(s string) (PlanTier, bool) {
	for i, name := range planTierNames {
		if name == s {
			return PlanTier(i), true
		}
	}
	return PlanFree, false
}

// String returns the stored identifier of the tier
func (t PlanTier) String() string {
	if t >= planTierCount {
		return planTierNames[PlanFree]
	}
	return planTierNames[t]
}

// Valid reports whether t is one of the six tiers
func (t PlanTier) Valid() bool {
	return t < planTierCount
}

// MarshalText implements encoding.TextMarshaler
func (t PlanTier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown identifiers are
// rejected so API callers cannot set an arbitrary plan.
func (t *PlanTier) UnmarshalText(text []byte) error {
	tier, ok := ParsePlanTier(string(text))
	if !ok {
		return fmt.Errorf("unknown plan tier %q", string(text))
	}
	*t = tier
	return nil
}

// Value implements driver.Valuer interface for GORM
func (t PlanTier) Value() (driver.Value, error) {
	return t.String(), nil
}

// Scan implements sql.Scanner interface for GORM. Unknown stored values fail
// closed to the free tier.
func (t *PlanTier) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*t = PlanFree
	case string:
		*t, _ = ParsePlanTier(v)
	case []byte:
		*t, _ = ParsePlanTier(string(v))
	default:
		return fmt.Errorf("cannot scan %T into PlanTier", value)
	}
	return nil
}
