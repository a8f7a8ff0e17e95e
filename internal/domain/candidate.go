package domain

import "time"

// CandidateType discriminates backline candidates.
type CandidateType string

const (
	CandidateSolo CandidateType = "solo"
	CandidateBand CandidateType = "band"
)

// Candidate is one act competing for a show's backline slot. Ranking is by
// plurality vote; a band candidate's status still gates on its application
// entity's own consensus, independent of its vote standing.
type Candidate struct {
	ID        string        `json:"id"`
	ShowID    string        `json:"showID"`
	Type      CandidateType `json:"type"`
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	EntityID  *string       `json:"entityID,omitempty"`
	VoteCount int64         `json:"voteCount"`
	CreatedAt time.Time     `json:"createdAt"`
}
