package catalog

import (
	"context"
	"database/sql"
	"errors"

	"refboard/internal/database"
	"refboard/internal/logging"
)

// SetGalleryOrder makes ids the complete manual order: every other image
// becomes unordered and ids get positions 0..k-1 in the given sequence.
// Unknown and repeated ids are skipped without leaving a gap.
func (c *Catalog) SetGalleryOrder(ctx context.Context, ids []string) error {
	const op = "set_gallery_order"

	err := c.db.WithTx(ctx, op, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"UPDATE images SET gallery_order = NULL WHERE gallery_order IS NOT NULL"); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, "UPDATE images SET gallery_order = ? WHERE id = ?")
		if err != nil {
			return err
		}
		defer stmt.Close()

		seen := make(map[string]struct{}, len(ids))
		var pos int64
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}

			res, err := stmt.ExecContext(ctx, pos, id)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n > 0 {
				pos++
			}
		}
		logging.Debug("Gallery order set for %d of %d requested images", pos, len(ids))
		return nil
	})
	return wrapErr(op, "", err)
}

// MoveGalleryOrder moves activeID to the position currently held by overID,
// shifting the images in between by one. Only the shifted range is
// rewritten.
//
// If any image is unordered, every image is first given a position in the
// current display order, so the first move on a fresh gallery fixes the
// order of the whole catalog. Calling it twice with the same arguments is
// not idempotent: the second call moves relative to the new state.
func (c *Catalog) MoveGalleryOrder(ctx context.Context, activeID, overID string) error {
	const op = "move_gallery_order"

	err := c.db.WithTx(ctx, op, func(tx *sql.Tx) error {
		if err := densifyGalleryOrder(ctx, tx); err != nil {
			return err
		}

		src, err := galleryPosition(ctx, tx, activeID)
		if err != nil {
			return err
		}
		if src == nil {
			return notFound(op, activeID)
		}
		dst, err := galleryPosition(ctx, tx, overID)
		if err != nil {
			return err
		}
		if dst == nil {
			return notFound(op, overID)
		}

		switch {
		case *src == *dst:
			return nil
		case *src < *dst:
			if _, err := database.ExecAffected(ctx, tx, op, `
				UPDATE images SET gallery_order = gallery_order - 1
				WHERE gallery_order > ? AND gallery_order <= ?
			`, *src, *dst); err != nil {
				return err
			}
		default:
			if _, err := database.ExecAffected(ctx, tx, op, `
				UPDATE images SET gallery_order = gallery_order + 1
				WHERE gallery_order >= ? AND gallery_order < ?
			`, *dst, *src); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx, "UPDATE images SET gallery_order = ? WHERE id = ?", *dst, activeID)
		return err
	})
	return wrapErr(op, activeID, err)
}

// densifyGalleryOrder assigns 0..n-1 to every image in display order when
// at least one image is unordered. Ordered images keep their relative order.
func densifyGalleryOrder(ctx context.Context, tx *sql.Tx) error {
	var hasNull bool
	if err := tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM images WHERE gallery_order IS NULL)").Scan(&hasNull); err != nil {
		return err
	}
	if !hasNull {
		return nil
	}

	n, err := database.ExecAffected(ctx, tx, "densify_gallery_order", `
		UPDATE images SET gallery_order = r.pos
		FROM (
			SELECT seq, ROW_NUMBER() OVER (
				ORDER BY COALESCE(gallery_order, -1) ASC, created_at DESC, seq DESC
			) - 1 AS pos
			FROM images
		) AS r
		WHERE images.seq = r.seq
	`)
	if err != nil {
		return err
	}
	logging.Debug("Densified gallery order across %d images", n)
	return nil
}

func galleryPosition(ctx context.Context, q database.Querier, id string) (*int64, error) {
	var pos sql.NullInt64
	err := q.QueryRowContext(ctx, "SELECT gallery_order FROM images WHERE id = ?", id).Scan(&pos)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !pos.Valid {
		return nil, nil
	}
	return &pos.Int64, nil
}
