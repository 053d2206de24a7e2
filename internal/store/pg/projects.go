package pg

import (
	"context"

	"github.com/dropDatabas3/bricks/internal/store/core"
)

// InsertProject checks the owner's quota and inserts inside one transaction.
// The advisory xact lock serializes creates per owner, so concurrent inserts
// cannot jointly exceed maxPerOwner. maxPerOwner <= 0 means unbounded.
func (s *Store) InsertProject(ctx context.Context, p *core.Project, maxPerOwner int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return mapErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if maxPerOwner > 0 {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('project:' || $1::text))`, p.Owner); err != nil {
			return mapErr(err)
		}
		var n int
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM project WHERE owner_id = $1`, p.Owner).Scan(&n); err != nil {
			return mapErr(err)
		}
		if n >= maxPerOwner {
			return core.ErrQuotaExceeded
		}
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO project (id, owner_id, name, notes)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, p.ID, p.Owner, p.Name, p.Notes).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	return mapErr(tx.Commit(ctx))
}

func (s *Store) GetProject(ctx context.Context, id string) (*core.Project, error) {
	var p core.Project
	err := s.pool.QueryRow(ctx, `
		SELECT id, owner_id, name, notes, created_at, updated_at
		FROM project WHERE id = $1
	`, id).Scan(&p.ID, &p.Owner, &p.Name, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

// UpdateProject writes the mutable fields. owner_id is never in the SET list.
func (s *Store) UpdateProject(ctx context.Context, p *core.Project) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE project SET name = $2, notes = $3, updated_at = now()
		WHERE id = $1
	`, p.ID, p.Name, p.Notes)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM project WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) ListProjectsByOwner(ctx context.Context, ownerID string) ([]core.Project, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, name, notes, created_at, updated_at
		FROM project WHERE owner_id = $1
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []core.Project
	for rows.Next() {
		var p core.Project
		if err := rows.Scan(&p.ID, &p.Owner, &p.Name, &p.Notes, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, p)
	}
	return out, mapErr(rows.Err())
}

func (s *Store) CountProjectsByOwner(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM project WHERE owner_id = $1`, ownerID).Scan(&n)
	if err != nil {
		return 0, mapErr(err)
	}
	return n, nil
}
