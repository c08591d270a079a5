package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultProposal ResultType = "proposal"
	ResultComment  ResultType = "comment"
	ResultEdit     ResultType = "edit"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type       ResultType `json:"type"`
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Snippet    string     `json:"snippet"`
	ProposalID string     `json:"proposalId"`
	SectionID  string     `json:"sectionId,omitempty"`
	AuthorType string     `json:"authorType,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text             string
	FilterType       ResultType // empty = all types
	FilterProposalID string
	Limit            int
	Offset           int
	IsClient         bool
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexProposal(p ProposalRecord) error
	IndexComment(c CommentRecord) error
	IndexEdit(e EditRecordDoc) error
	DeleteProposal(id string) error
	DeleteComment(id string) error
}

// ProposalRecord is the data we index for a proposal.
type ProposalRecord struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	ClientName string `json:"clientName"`
	AgencyName string `json:"agencyName"`
	Status     string `json:"status"`
}

// CommentRecord is the data we index for a comment.
type CommentRecord struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	AuthorName string `json:"authorName"`
	AuthorType string `json:"authorType"`
	ProposalID string `json:"proposalId"`
	SectionID  string `json:"sectionId"`
	Resolved   bool   `json:"resolved"`
}

// EditRecordDoc is the data we index for a history entry.
type EditRecordDoc struct {
	ID             string `json:"id"`
	Summary        string `json:"summary"`
	ChangeType     string `json:"changeType"`
	ProposalID     string `json:"proposalId"`
	SectionChanged string `json:"sectionChanged"`
}
