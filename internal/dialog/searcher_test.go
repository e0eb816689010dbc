package dialog

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivolkov/matchbot/internal/session"
	"github.com/ivolkov/matchbot/internal/vk"
	"github.com/ivolkov/matchbot/pkg/logging"
)

func newTestSearcher(directory *fakeDirectory, photos *fakePhotos) *Searcher {
	if photos == nil {
		photos = &fakePhotos{}
	}
	return NewSearcher(directory, photos, logging.NewWithWriter(io.Discard, "error"))
}

func TestNextProfileHit(t *testing.T) {
	directory := &fakeDirectory{candidate: &vk.Candidate{ID: 42, FirstName: "Анна", LastName: "Иванова"}}
	photos := &fakePhotos{photos: []string{"photo42_1", "photo42_2", "photo42_3"}}
	searcher := newTestSearcher(directory, photos)

	outcome := searcher.NextProfile(context.Background(), searchingSession())

	require.NotNil(t, outcome.ShownID)
	assert.Equal(t, int64(42), *outcome.ShownID)
	require.Len(t, outcome.Intents, 1)
	assert.Equal(t, "Анна Иванова\nhttps://vk.com/id42", outcome.Intents[0].Text)
	assert.Equal(t, "photo42_1,photo42_2,photo42_3", outcome.Intents[0].Attachment)
	assert.Equal(t, vk.SearchKeyboard(), outcome.Intents[0].Keyboard)
	assert.Equal(t, 1, photos.calls)
}

func TestNextProfileNoCandidate(t *testing.T) {
	searcher := newTestSearcher(&fakeDirectory{}, nil)

	outcome := searcher.NextProfile(context.Background(), searchingSession())

	assert.Nil(t, outcome.ShownID)
	require.Len(t, outcome.Intents, 1)
	assert.Equal(t, textNoMoreMatches, outcome.Intents[0].Text)
}

func TestNextProfileDirectoryErrorReadsAsMiss(t *testing.T) {
	directory := &fakeDirectory{searchErr: errors.New("rate limited")}
	searcher := newTestSearcher(directory, nil)

	outcome := searcher.NextProfile(context.Background(), searchingSession())

	assert.Nil(t, outcome.ShownID)
	require.Len(t, outcome.Intents, 1)
	assert.Equal(t, textNoMoreMatches, outcome.Intents[0].Text)
}

func TestNextProfilePhotoErrorShowsWithoutAttachments(t *testing.T) {
	directory := &fakeDirectory{candidate: &vk.Candidate{ID: 42, FirstName: "Анна", LastName: "Иванова"}}
	photos := &fakePhotos{err: errors.New("photos closed")}
	searcher := newTestSearcher(directory, photos)

	outcome := searcher.NextProfile(context.Background(), searchingSession())

	require.NotNil(t, outcome.ShownID)
	require.Len(t, outcome.Intents, 1)
	assert.Empty(t, outcome.Intents[0].Attachment)
	assert.Equal(t, "Анна Иванова\nhttps://vk.com/id42", outcome.Intents[0].Text)
}

func TestNextProfileIncompleteCriteria(t *testing.T) {
	directory := &fakeDirectory{}
	searcher := newTestSearcher(directory, nil)

	sess := &session.Session{UserID: 777, Stage: session.StageSearching}
	outcome := searcher.NextProfile(context.Background(), sess)

	assert.Zero(t, directory.searchCalls)
	assert.Nil(t, outcome.ShownID)
	require.Len(t, outcome.Intents, 1)
	assert.Equal(t, textUnknown, outcome.Intents[0].Text)
}
