package services

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betanery/easy-doc-signer-sub000/internal/models"
)

func TestEvaluateDocumentUsage_FreePlanBlocksAtFive(t *testing.T) {
	plan := models.PlanFor(models.PlanFree)

	for used := 0; used < 5; used++ {
		usage := EvaluateDocumentUsage(plan, used)
		assert.True(t, usage.Allowed, "used=%d", used)
		assert.Equal(t, BlockReasonNone, usage.BlockReason)
		assert.Equal(t, 5-used, usage.Remaining)
	}

	usage := EvaluateDocumentUsage(plan, 5)
	assert.False(t, usage.Allowed)
	assert.True(t, usage.Blocked())
	assert.Equal(t, BlockReasonLifetimeLimit, usage.BlockReason)
	assert.Equal(t, 0, usage.Remaining)
	assert.Equal(t, float64(100), usage.PercentUsed)
}

func TestEvaluateDocumentUsage_BasicPlanUsesMonthlyReason(t *testing.T) {
	usage := EvaluateDocumentUsage(models.PlanFor(models.PlanBasic), 20)

	assert.True(t, usage.Blocked())
	assert.Equal(t, BlockReasonMonthlyLimit, usage.BlockReason)
	assert.Equal(t, models.CapMonthly, usage.CapKind)
}

func TestEvaluateDocumentUsage_NearLimit(t *testing.T) {
	plan := models.PlanFor(models.PlanBasic)

	assert.False(t, EvaluateDocumentUsage(plan, 15).NearLimit)
	assert.True(t, EvaluateDocumentUsage(plan, 16).NearLimit)
	assert.True(t, EvaluateDocumentUsage(plan, 19).NearLimit)
}

func TestEvaluateDocumentUsage_Unlimited(t *testing.T) {
	usage := EvaluateDocumentUsage(models.PlanFor(models.PlanUnlimited), 1_000_000)

	assert.True(t, usage.Allowed)
	assert.True(t, usage.Unlimited)
	assert.Equal(t, models.Unlimited, usage.Limit)
	assert.Equal(t, models.Unlimited, usage.Remaining)
	assert.Zero(t, usage.PercentUsed)
	assert.False(t, usage.NearLimit)
}

func TestEvaluateSeatUsage(t *testing.T) {
	tests := []struct {
		name    string
		tier    models.PlanTier
		members int
		canAdd  bool
	}{
		{"free with no members", models.PlanFree, 0, true},
		{"free with one member", models.PlanFree, 1, false},
		{"basic with one member", models.PlanBasic, 1, true},
		{"basic full", models.PlanBasic, 2, false},
		{"enterprise below cap", models.PlanEnterprise, 49, true},
		{"enterprise full", models.PlanEnterprise, 50, false},
		{"unlimited", models.PlanUnlimited, 10_000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usage := EvaluateSeatUsage(models.PlanFor(tt.tier), tt.members)
			assert.Equal(t, tt.canAdd, usage.CanAdd)
		})
	}
}

func TestUsageWindow_MonthBoundaries(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	plan := models.PlanFor(models.PlanBasic)

	// 02:30 UTC on March 1st is still February 29th in São Paulo
	now := time.Date(2024, 3, 1, 2, 30, 0, 0, time.UTC)
	since, until := UsageWindow(plan, now, loc)

	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, loc), since)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, loc), until)
}

func TestUsageWindow_LifetimeIsUnbounded(t *testing.T) {
	since, until := UsageWindow(models.PlanFor(models.PlanFree), time.Now(), time.UTC)

	assert.True(t, since.IsZero())
	assert.True(t, until.IsZero())
}

func TestDocumentUsageProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("capped plans allow exactly while usage is below the cap", prop.ForAll(
		func(tier uint8, used int) bool {
			plan := models.PlanFor(models.PlanTier(tier))
			if plan.Documents.IsUnlimited() {
				return true
			}
			usage := EvaluateDocumentUsage(plan, used)
			return usage.Allowed == (used < plan.Documents.Limit) &&
				usage.Blocked() == (usage.BlockReason != BlockReasonNone)
		},
		gen.UInt8Range(uint8(models.PlanFree), uint8(models.PlanBasic)),
		gen.IntRange(0, 200),
	))

	properties.Property("unlimited plans always allow and never divide", prop.ForAll(
		func(tier uint8, used int) bool {
			usage := EvaluateDocumentUsage(models.PlanFor(models.PlanTier(tier)), used)
			return usage.Allowed && usage.Unlimited && usage.PercentUsed == 0 && !usage.NearLimit
		},
		gen.UInt8Range(uint8(models.PlanProfessional), uint8(models.PlanUnlimited)),
		gen.IntRange(0, 1_000_000),
	))

	properties.Property("remaining never goes negative", prop.ForAll(
		func(tier uint8, used int) bool {
			usage := EvaluateDocumentUsage(models.PlanFor(models.PlanTier(tier)), used)
			return usage.Unlimited || usage.Remaining >= 0
		},
		gen.UInt8Range(uint8(models.PlanFree), uint8(models.PlanUnlimited)),
		gen.IntRange(-10, 500),
	))

	properties.Property("unlimited seats always admit another member", prop.ForAll(
		func(members int) bool {
			return EvaluateSeatUsage(models.PlanFor(models.PlanUnlimited), members).CanAdd
		},
		gen.IntRange(0, 1_000_000),
	))

	properties.Property("a seat add never exceeds a finite cap", prop.ForAll(
		func(tier uint8, members int) bool {
			plan := models.PlanFor(models.PlanTier(tier))
			usage := EvaluateSeatUsage(plan, members)
			return !usage.CanAdd || members+1 <= plan.SeatLimit
		},
		gen.UInt8Range(uint8(models.PlanFree), uint8(models.PlanEnterprise)),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestUsageWindowProperties(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	plan := models.PlanFor(models.PlanBasic)

	properties := gopter.NewProperties(nil)

	properties.Property("now falls inside its own monthly window", prop.ForAll(
		func(seconds int64) bool {
			now := time.Unix(seconds, 0)
			since, until := UsageWindow(plan, now, loc)
			return !now.Before(since) && now.Before(until) && since.In(loc).Day() == 1
		},
		gen.Int64Range(946684800, 4102444800),
	))

	properties.Property("the first instant of a month starts a fresh window", prop.ForAll(
		func(year int, month int) bool {
			start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
			lastOfPrevious := start.Add(-time.Nanosecond)

			since, _ := UsageWindow(plan, start, loc)
			previousSince, previousUntil := UsageWindow(plan, lastOfPrevious, loc)

			return since.Equal(start) && previousUntil.Equal(start) && previousSince.Before(since)
		},
		gen.IntRange(2000, 2100),
		gen.IntRange(1, 12),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
