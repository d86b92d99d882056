// entity_store.go implements the SQL shared by the plugin and overlay repositories. Both entry
// kinds live in a table with the same envelope columns plus kind-specific payload columns, and
// keep their votes in a companion table keyed by (entry id, user id).
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/plugin-registry/plugin-registry/internal/db/models"
)

// envelopeColumns are the columns every entry table carries, in Listing field order.
var envelopeColumns = []string{
	"id", "name", "description", "publisherId", "publishedAt", "version", "importedCount", "compatibleWith",
}

// entityTable describes one entry table and its vote table.
type entityTable struct {
	table     string
	voteTable string
	voteFK    string
	payload   []string
}

func quoteIdent(col string) string {
	return `"` + col + `"`
}

// columns returns the quoted select list, prefixed with alias.
func (t entityTable) columns(alias string, withPayload bool) string {
	cols := envelopeColumns
	if withPayload {
		cols = append(append([]string{}, envelopeColumns...), t.payload...)
	}
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = alias + "." + quoteIdent(c)
	}
	return strings.Join(parts, ", ")
}

// votesExpr aggregates the vote rows of alias.id into a JSON array, oldest first.
func (t entityTable) votesExpr(alias string) string {
	return fmt.Sprintf(
		`COALESCE((SELECT json_agg(json_build_object('userId', v."userId", 'vote', v."vote") ORDER BY v."createdAt", v."id") FROM %s v WHERE v.%s = %s."id"), '[]'::json) AS votes`,
		t.voteTable, quoteIdent(t.voteFK), alias,
	)
}

// entityStore runs the entry queries for a single table. T is models.Plugin or models.Overlay.
type entityStore[T any] struct {
	db *sqlx.DB
	t  entityTable
}

func (s *entityStore[T]) list(ctx context.Context) ([]*models.Listing, error) {
	query := fmt.Sprintf(`SELECT %s, %s FROM %s e ORDER BY e."publishedAt" DESC, e."id"`,
		s.t.columns("e", false), s.t.votesExpr("e"), s.t.table)

	items := make([]*models.Listing, 0)
	if err := s.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("failed to list %s entries: %w", s.t.table, err)
	}
	return items, nil
}

func (s *entityStore[T]) get(ctx context.Context, q sqlx.QueryerContext, id string) (*T, error) {
	query := fmt.Sprintf(`SELECT %s, %s FROM %s e WHERE e."id" = $1`,
		s.t.columns("e", true), s.t.votesExpr("e"), s.t.table)

	var entity T
	err := sqlx.GetContext(ctx, q, &entity, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", s.t.table, err)
	}
	return &entity, nil
}

// incrementImported bumps importedCount in a single statement and returns the updated row.
func (s *entityStore[T]) incrementImported(ctx context.Context, id string) (*T, error) {
	query := fmt.Sprintf(`WITH e AS (
			UPDATE %s SET "importedCount" = "importedCount" + 1 WHERE "id" = $1 RETURNING *
		)
		SELECT %s, %s FROM e`,
		s.t.table, s.t.columns("e", true), s.t.votesExpr("e"))

	var entity T
	err := s.db.GetContext(ctx, &entity, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to increment %s import count: %w", s.t.table, err)
	}
	return &entity, nil
}

func (s *entityStore[T]) create(ctx context.Context, entity *T) error {
	cols := append(append([]string{}, envelopeColumns...), s.t.payload...)
	names := make([]string, len(cols))
	params := make([]string, len(cols))
	for i, c := range cols {
		names[i] = quoteIdent(c)
		params[i] = ":" + c
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		s.t.table, strings.Join(names, ", "), strings.Join(params, ", "))

	if _, err := s.db.NamedExecContext(ctx, query, entity); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.t.table, err)
	}
	return nil
}

// update locks the row, lets mutate change it, writes it back with version+1 and returns the
// stored result. A missing row yields (nil, nil). Any error from mutate aborts the transaction
// and is returned unchanged.
func (s *entityStore[T]) update(ctx context.Context, id string, mutate func(*T) error) (*T, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	lockQuery := fmt.Sprintf(`SELECT %s FROM %s e WHERE e."id" = $1 FOR UPDATE`, s.t.columns("e", true), s.t.table)
	var current T
	err = tx.GetContext(ctx, &current, lockQuery, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", s.t.table, err)
	}

	if err := mutate(&current); err != nil {
		return nil, err
	}

	sets := []string{
		`"name" = :name`,
		`"description" = :description`,
		`"publishedAt" = :publishedAt`,
		`"compatibleWith" = :compatibleWith`,
		`"version" = "version" + 1`,
	}
	for _, c := range s.t.payload {
		sets = append(sets, quoteIdent(c)+" = :"+c)
	}
	updateQuery := fmt.Sprintf(`UPDATE %s SET %s WHERE "id" = :id`, s.t.table, strings.Join(sets, ", "))
	if _, err := tx.NamedExecContext(ctx, updateQuery, &current); err != nil {
		return nil, fmt.Errorf("failed to update %s: %w", s.t.table, err)
	}

	updated, err := s.get(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit %s update: %w", s.t.table, err)
	}
	return updated, nil
}

func (s *entityStore[T]) delete(ctx context.Context, id string) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE "id" = $1`, s.t.table)
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s: %w", s.t.table, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected, nil
}

// castVote inserts or replaces userID's vote in a single statement.
func (s *entityStore[T]) castVote(ctx context.Context, entityID, userID string, vote int) error {
	query := fmt.Sprintf(`INSERT INTO %s ("id", "userId", "vote", %s) VALUES ($1, $2, $3, $4)
		ON CONFLICT (%s, "userId") DO UPDATE SET "vote" = EXCLUDED."vote"`,
		s.t.voteTable, quoteIdent(s.t.voteFK), quoteIdent(s.t.voteFK))

	if _, err := s.db.ExecContext(ctx, query, uuid.New().String(), userID, vote, entityID); err != nil {
		return fmt.Errorf("failed to cast %s vote: %w", s.t.table, err)
	}
	return nil
}

func (s *entityStore[T]) retractVote(ctx context.Context, entityID, userID string) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND "userId" = $2`, s.t.voteTable, quoteIdent(s.t.voteFK))
	result, err := s.db.ExecContext(ctx, query, entityID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to retract %s vote: %w", s.t.table, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected, nil
}

// listVotes returns the entry's votes, or nil when the entry does not exist.
func (s *entityStore[T]) listVotes(ctx context.Context, entityID string) (models.Votes, error) {
	query := fmt.Sprintf(`SELECT COALESCE(
			json_agg(json_build_object('userId', v."userId", 'vote', v."vote") ORDER BY v."createdAt", v."id")
			FILTER (WHERE v."userId" IS NOT NULL), '[]'::json) AS votes
		FROM %s e LEFT JOIN %s v ON v.%s = e."id"
		WHERE e."id" = $1
		GROUP BY e."id"`,
		s.t.table, s.t.voteTable, quoteIdent(s.t.voteFK))

	var votes models.Votes
	err := s.db.QueryRowxContext(ctx, query, entityID).Scan(&votes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s votes: %w", s.t.table, err)
	}
	return votes, nil
}
