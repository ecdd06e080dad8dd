package catalog

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"refboard/internal/database"
)

// NormalizeTags trims each name, drops empties and removes duplicates while
// keeping first-seen order. Comparison is case-sensitive: "a" and "A" are
// different tags.
func NormalizeTags(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// resolveOrCreateTags returns ids for already-normalized names, creating any
// that are missing. INSERT OR IGNORE followed by SELECT keeps concurrent
// resolvers of the same new name from failing.
func resolveOrCreateTags(ctx context.Context, q database.Querier, names []string) ([]int64, error) {
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		if _, err := q.ExecContext(ctx, "INSERT OR IGNORE INTO tags (name) VALUES (?)", name); err != nil {
			return nil, err
		}
		var id int64
		if err := q.QueryRowContext(ctx, "SELECT id FROM tags WHERE name = ?", name).Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// gcOrphanTags deletes tags no image references.
func gcOrphanTags(ctx context.Context, q database.Querier) error {
	_, err := q.ExecContext(ctx, `
		DELETE FROM tags
		WHERE NOT EXISTS (SELECT 1 FROM image_tags WHERE image_tags.tag_id = tags.id)
	`)
	return err
}

func imageExists(ctx context.Context, q database.Querier, id string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM images WHERE id = ?)", id).Scan(&exists)
	return exists, err
}

// SetImageTags replaces the full tag set of an image. Passing the same set
// twice leaves the catalog unchanged.
func (c *Catalog) SetImageTags(ctx context.Context, imageID string, names []string) error {
	const op = "set_image_tags"
	normalized := NormalizeTags(names)

	err := c.db.WithTx(ctx, op, func(tx *sql.Tx) error {
		exists, err := imageExists(ctx, tx, imageID)
		if err != nil {
			return err
		}
		if !exists {
			return notFound(op, imageID)
		}
		return setImageTagsTx(ctx, tx, imageID, normalized)
	})
	return wrapErr(op, imageID, err)
}

func setImageTagsTx(ctx context.Context, tx *sql.Tx, imageID string, normalized []string) error {
	ids, err := resolveOrCreateTags(ctx, tx, normalized)
	if err != nil {
		return err
	}

	// Pairs that survive keep their created_at.
	query := "DELETE FROM image_tags WHERE image_id = ?"
	args := []any{imageID}
	if len(ids) > 0 {
		query += " AND tag_id NOT IN (" + placeholders(len(ids)) + ")"
		for _, id := range ids {
			args = append(args, id)
		}
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return err
	}

	if len(ids) > 0 {
		stmt, err := tx.PrepareContext(ctx, "INSERT OR IGNORE INTO image_tags (image_id, tag_id) VALUES (?, ?)")
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, id := range ids {
			if _, err := stmt.ExecContext(ctx, imageID, id); err != nil {
				return err
			}
		}
	}

	return gcOrphanTags(ctx, tx)
}

// RenameTag renames oldName to newName. When newName already exists the two
// tags merge: every image tagged oldName gains newName and oldName is
// removed. Empty or identical names are a no-op.
func (c *Catalog) RenameTag(ctx context.Context, oldName, newName string) error {
	const op = "rename_tag"
	oldName = strings.TrimSpace(oldName)
	newName = strings.TrimSpace(newName)
	if oldName == "" || newName == "" || oldName == newName {
		return nil
	}

	err := c.db.WithTx(ctx, op, func(tx *sql.Tx) error {
		var oldID int64
		err := tx.QueryRowContext(ctx, "SELECT id FROM tags WHERE name = ?", oldName).Scan(&oldID)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(op, oldName)
		}
		if err != nil {
			return err
		}

		var newID int64
		err = tx.QueryRowContext(ctx, "SELECT id FROM tags WHERE name = ?", newName).Scan(&newID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err := tx.ExecContext(ctx, "UPDATE tags SET name = ? WHERE id = ?", newName, oldID); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if _, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO image_tags (image_id, tag_id, created_at)
				SELECT image_id, ?, created_at FROM image_tags WHERE tag_id = ?
			`, newID, oldID); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, "DELETE FROM image_tags WHERE tag_id = ?", oldID); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, "DELETE FROM tags WHERE id = ?", oldID); err != nil {
				return err
			}
		}
		return gcOrphanTags(ctx, tx)
	})
	return wrapErr(op, oldName, err)
}

// DeleteTag removes a tag from every image.
func (c *Catalog) DeleteTag(ctx context.Context, name string) error {
	const op = "delete_tag"
	name = strings.TrimSpace(name)
	if name == "" {
		return invalid(op, name, "tag name is empty")
	}

	err := c.db.WithTx(ctx, op, func(tx *sql.Tx) error {
		n, err := database.ExecAffected(ctx, tx, op, "DELETE FROM tags WHERE name = ?", name)
		if err != nil {
			return err
		}
		if n == 0 {
			return notFound(op, name)
		}
		return gcOrphanTags(ctx, tx)
	})
	return wrapErr(op, name, err)
}

// TagIDsByNames looks up ids for names, silently dropping unknown names.
func (c *Catalog) TagIDsByNames(ctx context.Context, names []string) ([]int64, error) {
	ids, err := tagIDsByNames(ctx, c.db.DB(), NormalizeTags(names))
	return ids, wrapErr("tag_ids", "", err)
}

func tagIDsByNames(ctx context.Context, q database.Querier, normalized []string) ([]int64, error) {
	if len(normalized) == 0 {
		return nil, nil
	}
	args := make([]any, len(normalized))
	for i, n := range normalized {
		args[i] = n
	}
	rows, err := q.QueryContext(ctx,
		"SELECT id FROM tags WHERE name IN ("+placeholders(len(normalized))+") ORDER BY id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetImageTags returns the tag names of one image, sorted. A missing image
// has no tags.
func (c *Catalog) GetImageTags(ctx context.Context, imageID string) ([]string, error) {
	tags, err := loadTags(ctx, c.db.DB(), []string{imageID})
	if err != nil {
		return nil, wrapErr("get_image_tags", imageID, err)
	}
	if t := tags[imageID]; t != nil {
		return t, nil
	}
	return []string{}, nil
}

// ListTags returns every tag with its usage count, sorted by name.
func (c *Catalog) ListTags(ctx context.Context) ([]TagCount, error) {
	rows, err := c.db.DB().QueryContext(ctx, `
		SELECT t.id, t.name, COUNT(it.image_id)
		FROM tags t
		LEFT JOIN image_tags it ON it.tag_id = t.id
		GROUP BY t.id
		ORDER BY t.name
	`)
	if err != nil {
		return nil, wrapErr("list_tags", "", err)
	}
	defer rows.Close()

	tags := []TagCount{}
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.ID, &tc.Name, &tc.Count); err != nil {
			return nil, wrapErr("list_tags", "", err)
		}
		tags = append(tags, tc)
	}
	return tags, wrapErr("list_tags", "", rows.Err())
}

// loadTags maps image id to its sorted tag names.
func loadTags(ctx context.Context, q database.Querier, imageIDs []string) (map[string][]string, error) {
	result := make(map[string][]string, len(imageIDs))
	for start := 0; start < len(imageIDs); start += maxBatchParams {
		end := min(start+maxBatchParams, len(imageIDs))
		chunk := imageIDs[start:end]

		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		rows, err := q.QueryContext(ctx, `
			SELECT it.image_id, t.name
			FROM image_tags it
			JOIN tags t ON t.id = it.tag_id
			WHERE it.image_id IN (`+placeholders(len(chunk))+`)
			ORDER BY t.name
		`, args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var id, name string
			if err := rows.Scan(&id, &name); err != nil {
				rows.Close()
				return nil, err
			}
			result[id] = append(result[id], name)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}
