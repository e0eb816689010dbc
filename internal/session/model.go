// Package session persists per-user dialog state and favorites in Postgres.
package session

// Stage is the current step of the intake dialog for one user. Values are
// the storage strings.
type Stage string

const (
	StageStart     Stage = "start"
	StageAge       Stage = "age"
	StageSex       Stage = "sex"
	StageCity      Stage = "city"
	StageSearching Stage = "searching"
)

// Sex uses the directory's wire encoding.
const (
	SexFemale = 1
	SexMale   = 2
)

// Session is one user's durable dialog state. Pointer fields are unset
// until the corresponding intake step completes.
type Session struct {
	UserID       int64
	Stage        Stage
	Age          *int
	Sex          *int
	CityID       *int
	CityName     string
	SearchOffset int
	LastShownID  *int64
}

// Update is a partial session update: nil fields are left unchanged. One
// Update is applied as a single statement so an event's state change
// commits atomically.
type Update struct {
	Stage        *Stage
	Age          *int
	Sex          *int
	CityID       *int
	CityName     *string
	SearchOffset *int
	LastShownID  *int64
}

// IsZero reports whether the update would change nothing.
func (u Update) IsZero() bool {
	return u.Stage == nil && u.Age == nil && u.Sex == nil &&
		u.CityID == nil && u.CityName == nil && u.SearchOffset == nil &&
		u.LastShownID == nil
}

// Favorite is one bookmarked candidate.
type Favorite struct {
	UserID int64
	ID     int64
	Name   string
	Link   string
}

// Ptr returns a pointer to v; callers use it to build Updates.
func Ptr[T any](v T) *T {
	return &v
}
