package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Constituent struct {
	ID                string          `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	OrganizationID    string          `gorm:"type:uuid;not null;uniqueIndex:idx_constituents_org_external,priority:1"`
	ExternalID        string          `gorm:"type:text;not null;uniqueIndex:idx_constituents_org_external,priority:2"`
	Prefix            string          `gorm:"size:20"`
	FirstName         string          `gorm:"size:120"`
	MiddleName        string          `gorm:"size:120"`
	LastName          string          `gorm:"size:255;not null"`
	Suffix            string          `gorm:"size:20"`
	Email             string          `gorm:"size:320"`
	Phone             string          `gorm:"size:32"`
	AddressLine1      string          `gorm:"size:255"`
	AddressLine2      string          `gorm:"size:255"`
	City              string          `gorm:"size:120"`
	State             string          `gorm:"size:120"`
	PostalCode        string          `gorm:"size:20"`
	Country           string          `gorm:"size:120"`
	ConstituentType   string          `gorm:"size:40"`
	ClassYear         *int
	SchoolCollege     string          `gorm:"size:255"`
	EstimatedCapacity decimal.Decimal `gorm:"type:numeric(14,2)"`
	CapacitySource    string          `gorm:"size:120"`
	AssignedOfficerID string          `gorm:"size:64"`
	PortfolioTier     string          `gorm:"size:40"`
	IsActive          bool            `gorm:"not null;default:true;index"`
	LapseRiskScore    *float64
	LapseRiskFactors  *string `gorm:"type:jsonb"`
	PriorityScore     *float64
	ScoredAt          *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (Constituent) TableName() string {
	return "constituents"
}

type Gift struct {
	ID                string          `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	OrganizationID    string          `gorm:"type:uuid;not null;uniqueIndex:idx_gifts_org_external,priority:1"`
	ExternalID        string          `gorm:"type:text;not null;uniqueIndex:idx_gifts_org_external,priority:2"`
	ConstituentID     string          `gorm:"type:uuid;not null;index"`
	Amount            decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	GiftDate          time.Time       `gorm:"not null;index"`
	GiftType          string          `gorm:"size:40"`
	FundName          string          `gorm:"size:255"`
	FundCode          string          `gorm:"size:40"`
	Campaign          string          `gorm:"size:255"`
	Appeal            string          `gorm:"size:255"`
	RecognitionAmount decimal.Decimal `gorm:"type:numeric(14,2)"`
	IsAnonymous       bool            `gorm:"not null;default:false"`
	IsMatching        bool            `gorm:"not null;default:false"`
	MatchingCompany   string          `gorm:"size:255"`
	TributeType       string          `gorm:"size:40"`
	TributeName       string          `gorm:"size:255"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (Gift) TableName() string {
	return "gifts"
}

type Contact struct {
	ID             string    `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	OrganizationID string    `gorm:"type:uuid;not null;uniqueIndex:idx_contacts_org_external,priority:1"`
	ExternalID     string    `gorm:"type:text;not null;uniqueIndex:idx_contacts_org_external,priority:2"`
	ConstituentID  string    `gorm:"type:uuid;not null;index"`
	ContactDate    time.Time `gorm:"not null;index"`
	ContactType    string    `gorm:"size:40;not null"`
	Subject        string    `gorm:"size:255"`
	Notes          string    `gorm:"type:text"`
	Outcome        string    `gorm:"size:20"`
	NextAction     string    `gorm:"size:255"`
	NextActionDate *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (Contact) TableName() string {
	return "contacts"
}
