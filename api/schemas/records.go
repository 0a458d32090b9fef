package schemas

import "time"

// -- Store Keys --

const (
	SessionKeyPrefix    = "sess_"
	SubmissionKeyPrefix = "submission:"
	SummaryKeyPrefix    = "summary:"
	DownloadKeyPrefix   = "download:"
	DownloadedKeyPrefix = "downloaded:"
)

// QuestionBankKey is the store key of a product's question bank.
func QuestionBankKey(product string) string {
	return product + "-question-bank"
}

// -- Report Records --

// ReportRequest is the body of POST /api/send-report.
type ReportRequest struct {
	FirstName       string         `json:"firstName"`
	Email           string         `json:"email"`
	Archetype       string         `json:"archetype"`
	SessionID       string         `json:"sessionId,omitempty"`
	PrimaryDomain   string         `json:"primaryDomain,omitempty"`
	SecondaryDomain string         `json:"secondaryDomain,omitempty"`
	Scores          map[string]int `json:"scores,omitempty"`
	ArchetypeScores map[string]int `json:"archetypeScores,omitempty"`
}

// ReportResponse is returned after the report email has been sent.
type ReportResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	SubmissionID string `json:"submissionId"`
	EmailID      string `json:"emailId,omitempty"`
}

// Submission is the audit record written for each delivered report.
type Submission struct {
	ID              string         `json:"id"`
	SessionID       string         `json:"sessionId,omitempty"`
	FirstName       string         `json:"firstName"`
	Email           string         `json:"email"`
	Archetype       string         `json:"archetype"`
	ArchetypeName   string         `json:"archetypeName"`
	PrimaryDomain   string         `json:"primaryDomain,omitempty"`
	SecondaryDomain string         `json:"secondaryDomain,omitempty"`
	Scores          map[string]int `json:"scores,omitempty"`
	ArchetypeScores map[string]int `json:"archetypeScores,omitempty"`
	EmailID         string         `json:"emailId,omitempty"`
	CompletedAt     time.Time      `json:"completedAt"`
}

// Summary is the contact-free record kept for statistics.
type Summary struct {
	ID              string    `json:"id"`
	Archetype       string    `json:"archetype"`
	PrimaryDomain   string    `json:"primaryDomain,omitempty"`
	SecondaryDomain string    `json:"secondaryDomain,omitempty"`
	CompletedAt     time.Time `json:"completedAt"`
}

// -- Download Records --

// DownloadGrant is stored under "download:<token id>" when a link is minted.
type DownloadGrant struct {
	TokenID   string    `json:"tokenId"`
	FirstName string    `json:"firstName"`
	Email     string    `json:"email"`
	Archetype string    `json:"archetype"`
	CreatedAt time.Time `json:"createdAt"`
}

// DownloadEvent is stored under "downloaded:<token id>" after a PDF is served.
type DownloadEvent struct {
	TokenID      string    `json:"tokenId"`
	Archetype    string    `json:"archetype"`
	Email        string    `json:"email"`
	UserAgent    string    `json:"userAgent,omitempty"`
	DownloadedAt time.Time `json:"downloadedAt"`
}
