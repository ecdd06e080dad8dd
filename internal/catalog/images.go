package catalog

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"refboard/internal/color"
	"refboard/internal/database"
	"refboard/internal/logging"
	"refboard/internal/vectorindex"
)

// storedColor is the hex plus OKLCH triple written together so the two never
// disagree. A nil hex clears all four columns.
type storedColor struct {
	hex     any
	l, c, h any
}

func resolveColor(hex *string) (storedColor, error) {
	if hex == nil {
		return storedColor{}, nil
	}
	rgb, err := color.ParseHex(*hex)
	if err != nil {
		return storedColor{}, err
	}
	lch := rgb.LCH()
	return storedColor{hex: rgb.Hex(), l: lch.L, c: lch.C, h: lch.H}, nil
}

// InsertImage adds an image and, optionally, its tags in one transaction.
func (c *Catalog) InsertImage(ctx context.Context, in NewImage) (*Image, error) {
	const op = "insert_image"

	in.Filename = strings.TrimSpace(in.Filename)
	in.RelativePath = strings.TrimSpace(in.RelativePath)
	if in.Filename == "" || in.RelativePath == "" {
		return nil, invalid(op, in.ID, "filename and relative path are required")
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.CreatedAt == 0 {
		in.CreatedAt = time.Now().Unix()
	}
	col, err := resolveColor(in.DominantColor)
	if err != nil {
		return nil, &OpError{Op: op, Key: in.ID, Kind: ErrInvalidInput, Err: err}
	}
	tags := NormalizeTags(in.Tags)

	err = c.db.WithTx(ctx, op, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO images (id, filename, relative_path, created_at, page_url,
				dominant_color, color_l, color_c, color_h, tone)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, in.ID, in.Filename, in.RelativePath, in.CreatedAt, in.PageURL,
			col.hex, col.l, col.c, col.h, in.Tone)
		if err != nil {
			return err
		}
		if len(tags) > 0 {
			return setImageTagsTx(ctx, tx, in.ID, tags)
		}
		return nil
	})
	if err != nil {
		return nil, wrapErr(op, in.ID, err)
	}

	logging.Debug("Inserted image %s (%s)", in.ID, in.RelativePath)
	return c.GetImage(ctx, in.ID)
}

// GetImage returns the image with id, or nil if there is none.
func (c *Catalog) GetImage(ctx context.Context, id string) (*Image, error) {
	rows, err := c.queryRows(ctx, c.db.DB(),
		"SELECT "+imageColumns+" FROM images i WHERE i.id = ?", id)
	if err != nil {
		return nil, wrapErr("get_image", id, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0].Image, nil
}

// UpdateImage applies patch to the image. Fields left unset are unchanged.
func (c *Catalog) UpdateImage(ctx context.Context, id string, patch ImagePatch) error {
	const op = "update_image"

	var sets []string
	var args []any
	if patch.PageURL.Set {
		sets = append(sets, "page_url = ?")
		args = append(args, patch.PageURL.Value)
	}
	if patch.Tone.Set {
		sets = append(sets, "tone = ?")
		args = append(args, patch.Tone.Value)
	}
	if patch.DominantColor.Set {
		col, err := resolveColor(patch.DominantColor.Value)
		if err != nil {
			return &OpError{Op: op, Key: id, Kind: ErrInvalidInput, Err: err}
		}
		sets = append(sets, "dominant_color = ?", "color_l = ?", "color_c = ?", "color_h = ?")
		args = append(args, col.hex, col.l, col.c, col.h)
	}

	err := c.db.WithTx(ctx, op, func(tx *sql.Tx) error {
		if len(sets) == 0 {
			exists, err := imageExists(ctx, tx, id)
			if err != nil {
				return err
			}
			if !exists {
				return notFound(op, id)
			}
			return nil
		}
		n, err := database.ExecAffected(ctx, tx, op,
			"UPDATE images SET "+strings.Join(sets, ", ")+" WHERE id = ?", append(args, id)...)
		if err != nil {
			return err
		}
		if n == 0 {
			return notFound(op, id)
		}
		return nil
	})
	return wrapErr(op, id, err)
}

// RenameImage changes filename and relative path together.
func (c *Catalog) RenameImage(ctx context.Context, id, filename, relativePath string) error {
	const op = "rename_image"
	filename = strings.TrimSpace(filename)
	relativePath = strings.TrimSpace(relativePath)
	if filename == "" || relativePath == "" {
		return invalid(op, id, "filename and relative path are required")
	}

	err := c.db.WithTx(ctx, op, func(tx *sql.Tx) error {
		n, err := database.ExecAffected(ctx, tx, op,
			"UPDATE images SET filename = ?, relative_path = ? WHERE id = ?", filename, relativePath, id)
		if err != nil {
			return err
		}
		if n == 0 {
			return notFound(op, id)
		}
		return nil
	})
	return wrapErr(op, id, err)
}

// DeleteImage removes an image with its tags and vector, closes the gap it
// leaves in the gallery order and collects orphaned tags.
func (c *Catalog) DeleteImage(ctx context.Context, id string) error {
	const op = "delete_image"

	err := c.db.WithTx(ctx, op, func(tx *sql.Tx) error {
		var rowid int64
		var order sql.NullInt64
		err := tx.QueryRowContext(ctx, "SELECT seq, gallery_order FROM images WHERE id = ?", id).Scan(&rowid, &order)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(op, id)
		}
		if err != nil {
			return err
		}

		if err := c.index.Delete(ctx, tx, rowid); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM image_tags WHERE image_id = ?", id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM images WHERE seq = ?", rowid); err != nil {
			return err
		}
		if order.Valid {
			if _, err := database.ExecAffected(ctx, tx, op,
				"UPDATE images SET gallery_order = gallery_order - 1 WHERE gallery_order > ?", order.Int64); err != nil {
				return err
			}
		}
		return gcOrphanTags(ctx, tx)
	})
	return wrapErr(op, id, err)
}

// SetImageVector stores or replaces the embedding of the image at rowid. The
// vector must have the configured dimension. With no vector index the call
// is accepted and dropped.
func (c *Catalog) SetImageVector(ctx context.Context, rowid int64, vec []float32) error {
	const op = "set_image_vector"
	key := rowKey(rowid)
	if err := vectorindex.CheckDimension(vec, c.cfg.EmbeddingDim); err != nil {
		return &OpError{Op: op, Key: key, Kind: ErrInvalidInput, Err: err}
	}
	if !c.index.Available() {
		logging.Debug("Vector index unavailable, dropping vector for rowid %d", rowid)
		return nil
	}

	err := c.db.WithTx(ctx, op, func(tx *sql.Tx) error {
		if err := requireRowID(ctx, tx, op, rowid); err != nil {
			return err
		}
		return c.index.Upsert(ctx, tx, rowid, vec)
	})
	return wrapErr(op, key, err)
}

// DeleteImageVector removes the embedding of the image at rowid.
func (c *Catalog) DeleteImageVector(ctx context.Context, rowid int64) error {
	const op = "delete_image_vector"
	key := rowKey(rowid)

	err := c.db.WithTx(ctx, op, func(tx *sql.Tx) error {
		if err := requireRowID(ctx, tx, op, rowid); err != nil {
			return err
		}
		return c.index.Delete(ctx, tx, rowid)
	})
	return wrapErr(op, key, err)
}

// HasImageVector reports whether the image at rowid has an embedding.
func (c *Catalog) HasImageVector(ctx context.Context, rowid int64) (bool, error) {
	ok, err := c.index.Has(ctx, c.db.DB(), rowid)
	return ok, wrapErr("has_image_vector", rowKey(rowid), err)
}

// ImagesMissingVectors returns every image that has no embedding, oldest
// first. With no vector index it returns nothing.
func (c *Catalog) ImagesMissingVectors(ctx context.Context) ([]Image, error) {
	if !c.index.Available() {
		return nil, nil
	}
	rows, err := c.queryRows(ctx, c.db.DB(), "SELECT "+imageColumns+" FROM images i ORDER BY i.seq")
	if err != nil {
		return nil, wrapErr("images_missing_vectors", "", err)
	}
	var missing []Image
	for _, r := range rows {
		ok, err := c.index.Has(ctx, c.db.DB(), r.RowID)
		if err != nil {
			return nil, wrapErr("images_missing_vectors", r.ID, err)
		}
		if !ok {
			missing = append(missing, r.Image)
		}
	}
	return missing, nil
}

func requireRowID(ctx context.Context, q database.Querier, op string, rowid int64) error {
	var exists bool
	if err := q.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM images WHERE seq = ?)", rowid).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return notFound(op, rowKey(rowid))
	}
	return nil
}

func rowKey(rowid int64) string {
	return "rowid=" + strconv.FormatInt(rowid, 10)
}
