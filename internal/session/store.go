package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the store uses; pgxmock satisfies
// it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists sessions and favorites in Postgres.
type Store struct {
	pool PgxPool
}

func NewStore(pool PgxPool) *Store {
	if pool == nil {
		return nil
	}
	return &Store{pool: pool}
}

// Get loads a session, or returns (nil, nil) for an unknown user.
func (s *Store) Get(ctx context.Context, userID int64) (*Session, error) {
	query := `
		SELECT vk_id, stage, age, sex, city_id, COALESCE(city_name, ''), search_offset, last_shown_id
		FROM bot_users
		WHERE vk_id = $1
	`
	var (
		sess  Session
		stage string
	)
	err := s.pool.QueryRow(ctx, query, userID).Scan(
		&sess.UserID, &stage, &sess.Age, &sess.Sex,
		&sess.CityID, &sess.CityName, &sess.SearchOffset, &sess.LastShownID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: get %d: %w", userID, err)
	}
	sess.Stage = Stage(stage)
	return &sess, nil
}

// Upsert inserts the user row if absent and applies the set fields of u,
// all in one statement.
func (s *Store) Upsert(ctx context.Context, userID int64, u Update) error {
	cols := []string{"vk_id"}
	args := []any{userID}

	add := func(col string, v any) {
		cols = append(cols, col)
		args = append(args, v)
	}
	if u.Stage != nil {
		add("stage", string(*u.Stage))
	}
	if u.Age != nil {
		add("age", *u.Age)
	}
	if u.Sex != nil {
		add("sex", *u.Sex)
	}
	if u.CityID != nil {
		add("city_id", *u.CityID)
	}
	if u.CityName != nil {
		add("city_name", *u.CityName)
	}
	if u.SearchOffset != nil {
		add("search_offset", *u.SearchOffset)
	}
	if u.LastShownID != nil {
		add("last_shown_id", *u.LastShownID)
	}

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	var query string
	if len(cols) == 1 {
		query = `INSERT INTO bot_users (vk_id) VALUES ($1) ON CONFLICT (vk_id) DO NOTHING`
	} else {
		sets := make([]string, 0, len(cols)-1)
		for _, col := range cols[1:] {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
		sets = append(sets, "updated_at = now()")
		query = fmt.Sprintf(
			`INSERT INTO bot_users (%s) VALUES (%s) ON CONFLICT (vk_id) DO UPDATE SET %s`,
			strings.Join(cols, ", "), strings.Join(placeholders, ", "), strings.Join(sets, ", "),
		)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("session: upsert %d: %w", userID, err)
	}
	return nil
}

// RecordShown stores the shown candidate and advances the offset in a
// single statement, so a crash cannot advance the cursor without the shown
// id being recorded.
func (s *Store) RecordShown(ctx context.Context, userID, shownID int64) error {
	query := `
		UPDATE bot_users
		SET last_shown_id = $2, search_offset = search_offset + 1, updated_at = now()
		WHERE vk_id = $1
	`
	if _, err := s.pool.Exec(ctx, query, userID, shownID); err != nil {
		return fmt.Errorf("session: record shown %d: %w", userID, err)
	}
	return nil
}

// AddFavorite bookmarks a candidate; duplicates are a no-op.
func (s *Store) AddFavorite(ctx context.Context, userID, favoriteID int64, name, link string) error {
	query := `
		INSERT INTO favorites (vk_id, favorite_id, name, link)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (vk_id, favorite_id) DO NOTHING
	`
	if _, err := s.pool.Exec(ctx, query, userID, favoriteID, name, link); err != nil {
		return fmt.Errorf("session: add favorite %d/%d: %w", userID, favoriteID, err)
	}
	return nil
}

// ListFavorites returns the user's bookmarks in the order they were added.
func (s *Store) ListFavorites(ctx context.Context, userID int64) ([]Favorite, error) {
	query := `
		SELECT favorite_id, name, link
		FROM favorites
		WHERE vk_id = $1
		ORDER BY added_at, favorite_id
	`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("session: list favorites %d: %w", userID, err)
	}
	defer rows.Close()

	var favorites []Favorite
	for rows.Next() {
		fav := Favorite{UserID: userID}
		if err := rows.Scan(&fav.ID, &fav.Name, &fav.Link); err != nil {
			return nil, fmt.Errorf("session: scan favorite: %w", err)
		}
		favorites = append(favorites, fav)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session: list favorites %d: %w", userID, err)
	}
	return favorites, nil
}
