package dialog

import (
	"context"
	"fmt"
	"strings"

	"github.com/ivolkov/matchbot/internal/cities"
	"github.com/ivolkov/matchbot/internal/session"
	"github.com/ivolkov/matchbot/internal/vk"
	"github.com/ivolkov/matchbot/pkg/logging"
)

// Directory is the remote people directory consumed during searching.
type Directory interface {
	SearchCandidate(ctx context.Context, age int, sex vk.Sex, cityID, offset int) (*vk.Candidate, error)
	GetUser(ctx context.Context, userID int64) (*vk.User, error)
}

// PhotoSource ranks a profile's photos by like count.
type PhotoSource interface {
	TopPhotos(ctx context.Context, ownerID int64, limit int) ([]string, error)
}

// FavoritesReader lists a user's bookmarks.
type FavoritesReader interface {
	ListFavorites(ctx context.Context, userID int64) ([]session.Favorite, error)
}

// Engine interprets one inbound text against the user's current stage.
// Store writes are returned as mutations on the Result, never performed
// here; directory reads degrade per the searcher's policy.
type Engine struct {
	cities    *cities.Resolver
	directory Directory
	favorites FavoritesReader
	searcher  *Searcher
	logger    *logging.Logger
}

// NewEngine wires the dialog engine.
func NewEngine(resolver *cities.Resolver, directory Directory, photos PhotoSource, favorites FavoritesReader, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		cities:    resolver,
		directory: directory,
		favorites: favorites,
		searcher:  NewSearcher(directory, photos, logger),
		logger:    logger,
	}
}

// Handle processes one inbound event. sess is nil for a first contact.
// The returned error is reserved for failures that must abort the event
// (favorites listing store reads); everything else degrades to intents.
func (e *Engine) Handle(ctx context.Context, userID int64, text string, sess *session.Session) (*Result, error) {
	msg := strings.ToLower(strings.TrimSpace(text))

	if sess == nil {
		return &Result{
			Updates: []session.Update{{Stage: session.Ptr(session.StageStart)}},
			Intents: []Intent{{Text: textGreeting, Keyboard: vk.StartKeyboard()}},
		}, nil
	}

	// The restart command works from every stage.
	if msg == cmdStartSearch {
		return &Result{
			Updates: []session.Update{{Stage: session.Ptr(session.StageAge)}},
			Intents: []Intent{{Text: textAgePrompt}},
		}, nil
	}

	switch sess.Stage {
	case session.StageAge:
		return e.handleAge(msg), nil
	case session.StageSex:
		return e.handleSex(msg), nil
	case session.StageCity:
		return e.handleCity(ctx, msg, sess), nil
	case session.StageSearching:
		if result, handled := e.handleSearching(ctx, msg, sess); handled {
			return result, nil
		}
	}

	if msg == cmdShowFavorites {
		return e.listFavorites(ctx, userID)
	}

	return &Result{
		Intents: []Intent{{Text: textUnknown, Keyboard: vk.StartKeyboard()}},
	}, nil
}

func (e *Engine) handleAge(msg string) *Result {
	age, ok := parseAge(msg)
	if !ok {
		return &Result{Intents: []Intent{{Text: textAgeInvalid}}}
	}
	return &Result{
		Updates: []session.Update{{
			Age:   session.Ptr(age),
			Stage: session.Ptr(session.StageSex),
		}},
		Intents: []Intent{{Text: textSexPrompt}},
	}
}

func (e *Engine) handleSex(msg string) *Result {
	sex, ok := sexSynonyms[msg]
	if !ok {
		return &Result{Intents: []Intent{{Text: textSexInvalid}}}
	}
	return &Result{
		Updates: []session.Update{{
			Sex:   session.Ptr(sex),
			Stage: session.Ptr(session.StageCity),
		}},
		Intents: []Intent{{Text: textCityPrompt}},
	}
}

func (e *Engine) handleCity(ctx context.Context, msg string, sess *session.Session) *Result {
	city := e.cities.Resolve(msg)
	if city == nil {
		return &Result{Intents: []Intent{{Text: textCityNotFound}}}
	}

	result := &Result{
		Updates: []session.Update{{
			CityID:       session.Ptr(city.ID),
			CityName:     session.Ptr(city.Name),
			SearchOffset: session.Ptr(0),
			Stage:        session.Ptr(session.StageSearching),
		}},
		Intents: []Intent{{Text: fmt.Sprintf(textCityFound, city.Name)}},
	}

	// Search immediately against the state the update will produce.
	next := *sess
	next.CityID = session.Ptr(city.ID)
	next.CityName = city.Name
	next.SearchOffset = 0
	next.Stage = session.StageSearching

	outcome := e.searcher.NextProfile(ctx, &next)
	result.ShownID = outcome.ShownID
	result.Intents = append(result.Intents, outcome.Intents...)
	return result
}

// handleSearching covers the search-stage commands. The second return is
// false when the text is not a search command, letting the caller fall
// through to the shared branches.
func (e *Engine) handleSearching(ctx context.Context, msg string, sess *session.Session) (*Result, bool) {
	switch {
	case nextCommands[msg]:
		outcome := e.searcher.NextProfile(ctx, sess)
		return &Result{ShownID: outcome.ShownID, Intents: outcome.Intents}, true
	case favoriteCommands[msg]:
		return e.addFavorite(ctx, sess), true
	default:
		return nil, false
	}
}

func (e *Engine) addFavorite(ctx context.Context, sess *session.Session) *Result {
	if sess.LastShownID == nil {
		return &Result{Intents: []Intent{{Text: textViewFirst}}}
	}

	user, err := e.directory.GetUser(ctx, *sess.LastShownID)
	if err != nil {
		e.logger.Warn("favorite lookup failed", "user_id", sess.UserID, "shown_id", *sess.LastShownID, "error", err)
		return &Result{Intents: []Intent{{Text: textFavoriteError}}}
	}

	return &Result{
		Favorite: &session.Favorite{
			UserID: sess.UserID,
			ID:     user.ID,
			Name:   user.Name(),
			Link:   user.ProfileLink(),
		},
		Intents: []Intent{{Text: fmt.Sprintf(textFavoriteAdded, user.Name())}},
	}
}

func (e *Engine) listFavorites(ctx context.Context, userID int64) (*Result, error) {
	favorites, err := e.favorites.ListFavorites(ctx, userID)
	if err != nil {
		// Store failures are fatal for the event: the dispatcher retries.
		return nil, fmt.Errorf("dialog: list favorites: %w", err)
	}

	result := &Result{}
	if len(favorites) == 0 {
		result.Intents = append(result.Intents, Intent{Text: textNoFavorites})
	}
	for _, fav := range favorites {
		intent := Intent{Text: fav.Name + "\n" + fav.Link}
		if photos, err := e.searcher.photos.TopPhotos(ctx, fav.ID, maxProfilePhotos); err == nil {
			intent.Attachment = strings.Join(photos, ",")
		} else {
			e.logger.Warn("favorite photos unavailable", "favorite_id", fav.ID, "error", err)
		}
		result.Intents = append(result.Intents, intent)
	}
	result.Intents = append(result.Intents, Intent{Text: textFavoritesDone, Keyboard: vk.StartKeyboard()})
	return result, nil
}

// parseAge accepts only a bare digit token within the accepted bounds.
func parseAge(msg string) (int, bool) {
	if msg == "" {
		return 0, false
	}
	age := 0
	for _, r := range msg {
		if r < '0' || r > '9' {
			return 0, false
		}
		age = age*10 + int(r-'0')
		if age > maxAge {
			return 0, false
		}
	}
	if age < minAge {
		return 0, false
	}
	return age, true
}
