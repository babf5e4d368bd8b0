// Package scoring computes lapse-risk and prioritization scores from a
// constituent's giving and contact history. Everything here is pure: no
// clocks, no I/O, no store access. The reference time travels in the input,
// which is what makes the on-demand path and the batch refresh worker agree
// on identical data.
package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/givemetry/advancement/internal/domain/donor"
)

// Signal weights. These are tuning constants, not contracts: the contract is
// that the score stays in [0,1] and each factor's contribution is reported.
const (
	weightGiftRecency    = 0.35
	weightGiftFrequency  = 0.20
	weightAmountTrend    = 0.15
	weightContactRecency = 0.15
	weightEngagement     = 0.15
)

const (
	// A donor with no gift in two years is fully at risk on the recency axis.
	giftRecencyHorizonDays    = 730
	contactRecencyHorizonDays = 365
)

type Input struct {
	Gifts    []donor.GiftHistory
	Contacts []donor.ContactHistory
	AsOf     time.Time
}

// CalculateLapseRisk returns a [0,1] score where higher means more likely to
// lapse, with the ordered factor list explaining how each signal moved the
// score. Degenerate inputs produce neutral signals tagged as missing data
// rather than fabricated confidence.
func CalculateLapseRisk(in Input) donor.Prediction {
	factors := make([]donor.Factor, 0, 5)

	recency, recencyRaw, hasGifts := giftRecencySignal(in)
	if hasGifts {
		factors = append(factors, factor("gift_recency", weightGiftRecency, recency, recencyRaw))
	} else {
		factors = append(factors, factor("no_giving_history", weightGiftRecency, recency, 0))
	}

	frequency, frequencyRaw, hasCadence := giftFrequencySignal(in)
	name := "gift_frequency"
	if !hasCadence {
		name = "insufficient_gift_history"
	}
	factors = append(factors, factor(name, weightGiftFrequency, frequency, frequencyRaw))

	trend, trendRaw, hasTrend := amountTrendSignal(in)
	name = "amount_trend"
	if !hasTrend {
		name = "insufficient_amount_history"
	}
	factors = append(factors, factor(name, weightAmountTrend, trend, trendRaw))

	contactRecency, contactRaw, hasContacts := contactRecencySignal(in)
	if hasContacts {
		factors = append(factors, factor("contact_recency", weightContactRecency, contactRecency, contactRaw))
	} else {
		factors = append(factors, factor("no_contact_history", weightContactRecency, contactRecency, 0))
	}

	engagement, engagementRaw := engagementSignal(in)
	name = "engagement_quality"
	if !hasContacts {
		name = "no_engagement_data"
	}
	factors = append(factors, factor(name, weightEngagement, engagement, engagementRaw))

	score := 0.0
	for _, f := range factors {
		score += f.Contribution
	}

	return donor.Prediction{Score: round4(clamp01(score)), Factors: factors}
}

// giftRecencySignal: risk rises linearly with days since the last gift,
// saturating at the two-year horizon. No gifts at all is a neutral 0.5.
func giftRecencySignal(in Input) (signal, raw float64, ok bool) {
	last, found := lastGiftDate(in.Gifts)
	if !found {
		return 0.5, 0, false
	}
	days := daysBetween(last, in.AsOf)
	return clamp01(days / giftRecencyHorizonDays), days, true
}

// giftFrequencySignal compares the gap since the last gift against the
// donor's own historical cadence. Giving on schedule scores low risk; being
// overdue by a full cadence interval or more saturates.
func giftFrequencySignal(in Input) (signal, raw float64, ok bool) {
	if len(in.Gifts) < 2 {
		return 0.5, 0, false
	}

	dates := sortedGiftDates(in.Gifts)
	totalGap := 0.0
	for i := 1; i < len(dates); i++ {
		totalGap += daysBetween(dates[i-1], dates[i])
	}
	avgGap := totalGap / float64(len(dates)-1)
	if avgGap <= 0 {
		avgGap = 1
	}

	sinceLast := daysBetween(dates[len(dates)-1], in.AsOf)
	overdue := (sinceLast - avgGap) / avgGap
	return clamp01(0.5 + 0.5*overdue), overdue, true
}

// amountTrendSignal compares the trailing twelve months of giving against
// the twelve months before that. A shrinking total reads as rising risk.
func amountTrendSignal(in Input) (signal, raw float64, ok bool) {
	if len(in.Gifts) == 0 {
		return 0.5, 0, false
	}

	recentCutoff := in.AsOf.AddDate(-1, 0, 0)
	priorCutoff := in.AsOf.AddDate(-2, 0, 0)

	recent, prior := 0.0, 0.0
	for _, gift := range in.Gifts {
		switch {
		case gift.GiftDate.After(recentCutoff):
			recent += gift.Amount
		case gift.GiftDate.After(priorCutoff):
			prior += gift.Amount
		}
	}

	if prior <= 0 {
		return 0.5, 0, false
	}
	ratio := recent / prior
	return clamp01(1 - ratio), ratio, true
}

func contactRecencySignal(in Input) (signal, raw float64, ok bool) {
	last, found := lastContactDate(in.Contacts)
	if !found {
		return 0.5, 0, false
	}
	days := daysBetween(last, in.AsOf)
	return clamp01(days / contactRecencyHorizonDays), days, true
}

// engagementSignal blends outcome quality with contact volume over the past
// year. Mostly-positive, frequent touches score low risk.
func engagementSignal(in Input) (signal, raw float64) {
	if len(in.Contacts) == 0 {
		return 0.5, 0
	}

	positive := 0
	recentCount := 0
	yearAgo := in.AsOf.AddDate(-1, 0, 0)
	for _, contact := range in.Contacts {
		if contact.Outcome == donor.OutcomePositive {
			positive++
		}
		if contact.ContactDate.After(yearAgo) {
			recentCount++
		}
	}

	positiveRatio := float64(positive) / float64(len(in.Contacts))
	// Four or more touches in the past year counts as fully engaged.
	volume := clamp01(float64(recentCount) / 4)
	engagement := 0.7*positiveRatio + 0.3*volume
	return clamp01(1 - engagement), positiveRatio
}

// CalculatePriority combines lapse risk with estimated capacity: the point
// of the number is "who should an officer call first", so a high-capacity
// donor drifting away outranks a low-capacity one in the same shape.
func CalculatePriority(riskScore, estimatedCapacity float64) float64 {
	if estimatedCapacity < 0 {
		estimatedCapacity = 0
	}
	// Log scale keeps the eight-figure foundations from flattening everyone
	// else to zero. 10^7 capacity normalizes to 1.
	capacityNorm := clamp01(math.Log10(estimatedCapacity+1) / 7)
	return round4(capacityNorm * (0.5 + 0.5*clamp01(riskScore)))
}

func factor(name string, weight, signal, raw float64) donor.Factor {
	return donor.Factor{
		Name:         name,
		Contribution: round4(weight * signal),
		RawValue:     round4(raw),
	}
}

func lastGiftDate(gifts []donor.GiftHistory) (time.Time, bool) {
	var last time.Time
	for _, gift := range gifts {
		if gift.GiftDate.After(last) {
			last = gift.GiftDate
		}
	}
	return last, !last.IsZero()
}

func lastContactDate(contacts []donor.ContactHistory) (time.Time, bool) {
	var last time.Time
	for _, contact := range contacts {
		if contact.ContactDate.After(last) {
			last = contact.ContactDate
		}
	}
	return last, !last.IsZero()
}

func sortedGiftDates(gifts []donor.GiftHistory) []time.Time {
	dates := make([]time.Time, 0, len(gifts))
	for _, gift := range gifts {
		dates = append(dates, gift.GiftDate)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

func daysBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
