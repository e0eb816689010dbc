package dialog

import (
	"context"
	"strings"

	"github.com/ivolkov/matchbot/internal/session"
	"github.com/ivolkov/matchbot/internal/vk"
	"github.com/ivolkov/matchbot/pkg/logging"
)

// maxProfilePhotos caps attachments per shown profile.
const maxProfilePhotos = 3

// Searcher composes directory calls into one profile presentation and
// decides the pagination mutation.
type Searcher struct {
	directory Directory
	photos    PhotoSource
	logger    *logging.Logger
}

// NewSearcher creates a profile search orchestrator.
func NewSearcher(directory Directory, photos PhotoSource, logger *logging.Logger) *Searcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Searcher{directory: directory, photos: photos, logger: logger}
}

// SearchOutcome is the result of one NextProfile call. ShownID is non-nil
// only on a hit; the caller must then record it together with the offset
// advance. On a miss the offset stays put so a later retry sees fresh
// directory data.
type SearchOutcome struct {
	ShownID *int64
	Intents []Intent
}

// NextProfile fetches the candidate at the session's current offset.
// Directory failures degrade: a failed search reads as "no candidate", a
// failed photo lookup shows the profile without attachments.
func (s *Searcher) NextProfile(ctx context.Context, sess *session.Session) SearchOutcome {
	if sess.Age == nil || sess.Sex == nil || sess.CityID == nil {
		// Searching stage without completed intake; only reachable if the
		// stored stage was corrupted by hand.
		s.logger.Error("search requested with incomplete criteria", "user_id", sess.UserID)
		return SearchOutcome{Intents: []Intent{{Text: textUnknown, Keyboard: vk.StartKeyboard()}}}
	}

	candidate, err := s.directory.SearchCandidate(ctx, *sess.Age, vk.Sex(*sess.Sex), *sess.CityID, sess.SearchOffset)
	if err != nil {
		s.logger.Warn("candidate search failed", "user_id", sess.UserID, "offset", sess.SearchOffset, "error", err)
		candidate = nil
	}
	if candidate == nil {
		return SearchOutcome{Intents: []Intent{{Text: textNoMoreMatches}}}
	}

	intent := Intent{
		Text:     candidate.Name() + "\n" + candidate.ProfileLink(),
		Keyboard: vk.SearchKeyboard(),
	}
	if photos, err := s.photos.TopPhotos(ctx, candidate.ID, maxProfilePhotos); err == nil {
		intent.Attachment = strings.Join(photos, ",")
	} else {
		s.logger.Warn("photo ranking failed", "candidate_id", candidate.ID, "error", err)
	}

	return SearchOutcome{
		ShownID: session.Ptr(candidate.ID),
		Intents: []Intent{intent},
	}
}
