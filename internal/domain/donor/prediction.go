package donor

import "time"

// Factor is one explainable contribution to a prediction score.
type Factor struct {
	Name         string  `json:"name"`
	Contribution float64 `json:"contribution"`
	RawValue     float64 `json:"raw_value"`
}

type Prediction struct {
	Score   float64
	Factors []Factor
}

type ConstituentPrediction struct {
	ConstituentID string
	LapseRisk     Prediction
	PriorityScore float64
}

// GiftHistory and ContactHistory are the score-relevant projections of a
// constituent's records, loaded in bulk by the analysis repository.
type GiftHistory struct {
	Amount   float64
	GiftDate time.Time
}

type ContactHistory struct {
	ContactDate time.Time
	ContactType string
	Outcome     ContactOutcome
}
