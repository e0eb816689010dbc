package vk

import "fmt"

// Sex uses VK's wire encoding: 1 for female, 2 for male.
type Sex int

const (
	SexFemale Sex = 1
	SexMale   Sex = 2
)

// Candidate is a profile returned by users.search.
type Candidate struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Name returns the candidate's display name.
func (c Candidate) Name() string {
	return c.FirstName + " " + c.LastName
}

// ProfileLink returns the canonical profile URL.
func (c Candidate) ProfileLink() string {
	return fmt.Sprintf("https://vk.com/id%d", c.ID)
}

// User is a profile returned by users.get. Shape matches Candidate; kept as
// an alias so call sites read naturally.
type User = Candidate

type photo struct {
	ID      int64 `json:"id"`
	OwnerID int64 `json:"owner_id"`
	Likes   struct {
		Count int `json:"count"`
	} `json:"likes"`
}

// OutboundMessage is one messages.send call.
type OutboundMessage struct {
	PeerID     int64
	Text       string
	Attachment string
	Keyboard   string
}

// Event is an inbound message event, produced by the long-poll and webhook
// sources alike.
type Event struct {
	UserID        int64
	Text          string
	DirectedAtBot bool
}

// APIError is the error envelope VK returns in place of a response.
type APIError struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vk: API error %d: %s", e.Code, e.Message)
}
