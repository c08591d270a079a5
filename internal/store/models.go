package store

import "time"

// Proposal lifecycle statuses.
const (
	StatusDraft    = "draft"
	StatusSent     = "sent"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Section identifiers for diffing, history and comments. SectionGeneral is
// the ambiguous-owner bucket for top-level fields and multi-section edits.
const (
	SectionGeneral    = "general"
	SectionOverview   = "overview"
	SectionAboutUs    = "aboutUs"
	SectionPricing    = "pricing"
	SectionTimeline   = "timeline"
	SectionTerms      = "terms"
	SectionSignatures = "signatures"
)

// SectionLabel maps a section id to its display label.
func SectionLabel(sectionID string) string {
	switch sectionID {
	case SectionGeneral:
		return "General"
	case SectionOverview:
		return "Overview"
	case SectionAboutUs:
		return "About Us"
	case SectionPricing:
		return "Pricing"
	case SectionTimeline:
		return "Timeline"
	case SectionTerms:
		return "Terms"
	case SectionSignatures:
		return "Signatures"
	default:
		return sectionID
	}
}

// Edit record change types.
const (
	ChangeTypeCreate       = "create"
	ChangeTypeUpdate       = "update"
	ChangeTypeStatusChange = "status_change"
	ChangeTypeSigned       = "signed"
)

// Comment author types.
const (
	AuthorAgency = "agency"
	AuthorClient = "client"
)

type User struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	Role                  string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type Proposal struct {
	ID           string
	Title        string
	ClientName   string
	AgencyName   string
	Status       string
	IsLocked     bool
	LockedReason string
	LockedAt     *time.Time
	Data         ProposalData
	CreatedBy    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ProposalData is the nested content of a proposal. It is persisted as one
// JSONB column; the JSON tags are the section ids the rest of the system
// keys on.
type ProposalData struct {
	Overview   string     `json:"overview"`
	AboutUs    string     `json:"aboutUs"`
	Pricing    Pricing    `json:"pricing"`
	Timeline   Timeline   `json:"timeline"`
	Terms      string     `json:"terms"`
	Signatures Signatures `json:"signatures"`
}

type Pricing struct {
	Items []PricingItem `json:"items"`
	Total string        `json:"total"`
}

type PricingItem struct {
	Name        string `json:"name"`
	Price       string `json:"price"`
	Description string `json:"description"`
}

type Timeline struct {
	Phases []TimelinePhase `json:"phases"`
}

type TimelinePhase struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Duration    string `json:"duration"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
}

type Signatures struct {
	Agency SignatureBlock `json:"agency"`
	Client SignatureBlock `json:"client"`
}

type SignatureBlock struct {
	Name     string     `json:"name"`
	SignedAt *time.Time `json:"signedAt,omitempty"`
}

// FieldChange is one before/after pair emitted by the diff engine. A nil
// value means the field did not exist on that side, which is distinct from
// an empty string. Values are normalized for display (tags stripped,
// trimmed, truncated); detection always compares the raw values.
type FieldChange struct {
	Field    string  `json:"field"`
	OldValue *string `json:"oldValue,omitempty"`
	NewValue *string `json:"newValue,omitempty"`
}

// EditRecord is one immutable entry in the audit history log. Records are
// only ever inserted and listed; there is no update or delete path.
type EditRecord struct {
	ID             string
	ProposalID     string
	Timestamp      time.Time
	EditorName     string
	EditorEmail    string
	SectionChanged string
	ChangeType     string
	Summary        string
	Changes        []FieldChange
}

// Comment is a single annotation on a proposal section. ParentID references
// a root comment; content is never edited after creation.
type Comment struct {
	ID          string
	ProposalID  string
	SectionID   string
	AuthorName  string
	AuthorEmail string
	AuthorType  string
	Content     string
	CreatedAt   time.Time
	ParentID    *string
	Resolved    bool
	ResolvedAt  *time.Time
	ResolvedBy  string
}

type ShareLink struct {
	ID         string
	ProposalID string
	Token      string
	CreatedBy  string
	CreatedAt  time.Time
	RevokedAt  *time.Time
}
