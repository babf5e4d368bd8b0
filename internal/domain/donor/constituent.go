package donor

import (
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Constituent struct {
	ID                string
	OrganizationID    string
	ExternalID        string
	Prefix            string
	FirstName         string
	MiddleName        string
	LastName          string
	Suffix            string
	Email             string
	Phone             string
	AddressLine1      string
	AddressLine2      string
	City              string
	State             string
	PostalCode        string
	Country           string
	ConstituentType   string
	ClassYear         *int
	SchoolCollege     string
	EstimatedCapacity decimal.Decimal
	CapacitySource    string
	AssignedOfficerID string
	PortfolioTier     string
	IsActive          bool
	LapseRiskScore    *float64
	LapseRiskFactors  []Factor
	PriorityScore     *float64
	ScoredAt          *time.Time
	UpdatedAt         time.Time
}

func (c Constituent) Validate() error {
	if strings.TrimSpace(c.ExternalID) == "" {
		return ErrMissingExternalID
	}
	if strings.TrimSpace(c.LastName) == "" {
		return ErrMissingLastName
	}
	if c.Email != "" {
		if _, err := mail.ParseAddress(c.Email); err != nil {
			return ErrInvalidEmail
		}
	}
	return nil
}

type Gift struct {
	ID                string
	OrganizationID    string
	ExternalID        string
	ConstituentID     string
	Amount            decimal.Decimal
	GiftDate          time.Time
	GiftType          string
	FundName          string
	FundCode          string
	Campaign          string
	Appeal            string
	RecognitionAmount decimal.Decimal
	IsAnonymous       bool
	IsMatching        bool
	MatchingCompany   string
	TributeType       string
	TributeName       string
}

func (g Gift) Validate() error {
	if strings.TrimSpace(g.ConstituentID) == "" {
		return ErrMissingConstituentLink
	}
	if g.Amount.IsZero() || g.Amount.IsNegative() {
		return ErrInvalidGiftAmount
	}
	if g.GiftDate.IsZero() {
		return ErrMissingGiftDate
	}
	return nil
}

type ContactOutcome string

const (
	OutcomePositive   ContactOutcome = "positive"
	OutcomeNeutral    ContactOutcome = "neutral"
	OutcomeNegative   ContactOutcome = "negative"
	OutcomeNoResponse ContactOutcome = "no_response"
)

type Contact struct {
	ID             string
	OrganizationID string
	ExternalID     string
	ConstituentID  string
	ContactDate    time.Time
	ContactType    string
	Subject        string
	Notes          string
	Outcome        ContactOutcome
	NextAction     string
	NextActionDate *time.Time
}

func (c Contact) Validate() error {
	if strings.TrimSpace(c.ConstituentID) == "" {
		return ErrMissingConstituentLink
	}
	if c.ContactDate.IsZero() {
		return ErrMissingContactDate
	}
	if strings.TrimSpace(c.ContactType) == "" {
		return ErrMissingContactType
	}
	return nil
}
