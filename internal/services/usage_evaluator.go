package services

import (
	"time"

	"github.com/betanery/easy-doc-signer-sub000/internal/models"
)

// BlockReason identifies which cap stopped a document creation. The values
// are the error codes returned to clients.
type BlockReason string

const (
	BlockReasonNone          BlockReason = ""
	BlockReasonLifetimeLimit BlockReason = "lifetime_limit_reached"
	BlockReasonMonthlyLimit  BlockReason = "monthly_limit_reached"
)

// NearLimitRatio is the share of a cap at which a warning is shown
const NearLimitRatio = 0.8

// DocumentUsage is the evaluator's view of a tenant's document allowance
type DocumentUsage struct {
	Plan        models.PlanTier `json:"plan"`
	CapKind     models.CapKind  `json:"cap_kind"`
	Used        int             `json:"used"`
	Limit       int             `json:"limit"`
	Remaining   int             `json:"remaining"`
	PercentUsed float64         `json:"percent_used"`
	NearLimit   bool            `json:"near_limit"`
	Unlimited   bool            `json:"unlimited"`
	Allowed     bool            `json:"allowed"`
	BlockReason BlockReason     `json:"block_reason,omitempty"`
}

// Blocked reports whether document creation is refused
func (u DocumentUsage) Blocked() bool {
	return !u.Allowed
}

// SeatUsage is the evaluator's view of a tenant's member seats
type SeatUsage struct {
	Used      int  `json:"used"`
	Limit     int  `json:"limit"`
	Remaining int  `json:"remaining"`
	Unlimited bool `json:"unlimited"`
	CanAdd    bool `json:"can_add"`
}

// EvaluateDocumentUsage decides whether one more document fits the plan.
// Unlimited caps always allow and never report a percentage.
func EvaluateDocumentUsage(plan models.Plan, used int) DocumentUsage {
	if used < 0 {
		used = 0
	}

	usage := DocumentUsage{
		Plan:    plan.Tier,
		CapKind: plan.Documents.Kind,
		Used:    used,
	}

	if plan.Documents.IsUnlimited() {
		usage.CapKind = models.CapUnlimited
		usage.Limit = models.Unlimited
		usage.Remaining = models.Unlimited
		usage.Unlimited = true
		usage.Allowed = true
		return usage
	}

	limit := plan.Documents.Limit
	usage.Limit = limit
	usage.Remaining = limit - used
	if usage.Remaining < 0 {
		usage.Remaining = 0
	}

	if limit > 0 {
		usage.PercentUsed = float64(used) / float64(limit) * 100
		usage.NearLimit = float64(used) >= float64(limit)*NearLimitRatio
	} else {
		usage.PercentUsed = 100
		usage.NearLimit = true
	}

	usage.Allowed = used < limit
	if !usage.Allowed {
		usage.BlockReason = blockReasonFor(plan.Documents.Kind)
	}

	return usage
}

func blockReasonFor(kind models.CapKind) BlockReason {
	if kind == models.CapMonthly {
		return BlockReasonMonthlyLimit
	}
	return BlockReasonLifetimeLimit
}

// EvaluateSeatUsage decides whether one more member fits the plan
func EvaluateSeatUsage(plan models.Plan, members int) SeatUsage {
	if members < 0 {
		members = 0
	}

	if plan.HasUnlimitedSeats() {
		return SeatUsage{
			Used:      members,
			Limit:     models.Unlimited,
			Remaining: models.Unlimited,
			Unlimited: true,
			CanAdd:    true,
		}
	}

	remaining := plan.SeatLimit - members
	if remaining < 0 {
		remaining = 0
	}

	return SeatUsage{
		Used:      members,
		Limit:     plan.SeatLimit,
		Remaining: remaining,
		CanAdd:    members+1 <= plan.SeatLimit,
	}
}

// UsageWindow returns the half-open interval [since, until) whose documents
// count against the plan. Lifetime caps count everything and return zero
// times. Monthly caps count the calendar month of now in loc.
func UsageWindow(plan models.Plan, now time.Time, loc *time.Location) (since, until time.Time) {
	if plan.Documents.Kind != models.CapMonthly {
		return time.Time{}, time.Time{}
	}
	if loc == nil {
		loc = time.UTC
	}

	local := now.In(loc)
	since = time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	until = since.AddDate(0, 1, 0)
	return since, until
}
