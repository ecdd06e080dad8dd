package catalog

import (
	"context"
	"database/sql"
	"strings"

	"refboard/internal/color"
	"refboard/internal/database"
	"refboard/internal/metrics"
)

// maxBatchParams bounds the number of bound parameters in IN (...) lists.
const maxBatchParams = 500

const imageColumns = `i.seq, i.id, i.filename, i.relative_path, i.created_at, i.page_url,
	i.dominant_color, i.color_l, i.color_c, i.color_h, i.tone, i.gallery_order`

const listOrderKey = "COALESCE(i.gallery_order, -1)"

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// conditions accumulates WHERE clauses and their arguments.
type conditions struct {
	clauses []string
	args    []any
}

func (c *conditions) add(clause string, args ...any) {
	c.clauses = append(c.clauses, clause)
	c.args = append(c.args, args...)
}

func (c *conditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImage(s rowScanner, extra ...any) (Image, error) {
	var (
		img                  Image
		pageURL, hex, tone   sql.NullString
		colorL, colorC, colH sql.NullFloat64
		order                sql.NullInt64
	)
	dest := []any{&img.RowID, &img.ID, &img.Filename, &img.RelativePath, &img.CreatedAt,
		&pageURL, &hex, &colorL, &colorC, &colH, &tone, &order}
	dest = append(dest, extra...)
	if err := s.Scan(dest...); err != nil {
		return Image{}, err
	}
	if pageURL.Valid {
		img.PageURL = &pageURL.String
	}
	if hex.Valid && colorL.Valid && colorC.Valid && colH.Valid {
		img.DominantColor = &hex.String
		img.Color = &color.LCH{L: colorL.Float64, C: colorC.Float64, H: colH.Float64}
	}
	if tone.Valid {
		img.Tone = &tone.String
	}
	if order.Valid {
		img.GalleryOrder = &order.Int64
	}
	return img, nil
}

// hydrateTags fills Tags on every row.
func hydrateTags(ctx context.Context, q database.Querier, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	ids := make([]string, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	tags, err := loadTags(ctx, q, ids)
	if err != nil {
		return err
	}
	for i := range rows {
		rows[i].Tags = tags[rows[i].ID]
		if rows[i].Tags == nil {
			rows[i].Tags = []string{}
		}
	}
	return nil
}

// resolveLimit applies the configured default and maximum page size.
func (c *Catalog) resolveLimit(op string, limit int) (int, error) {
	switch {
	case limit < 0:
		return 0, invalid(op, "", "limit must not be negative, got %d", limit)
	case limit == 0:
		return c.cfg.DefaultPageSize, nil
	case limit > c.cfg.MaxPageSize:
		return c.cfg.MaxPageSize, nil
	default:
		return limit, nil
	}
}

// parseColor validates the color filter before any storage access.
func (c *Catalog) parseColor(op string, f Filter) (*color.Predicate, error) {
	if f.Color == nil {
		return nil, nil
	}
	target, err := color.FromHex(*f.Color)
	if err != nil {
		return nil, &OpError{Op: op, Key: *f.Color, Kind: ErrInvalidInput, Err: err}
	}
	p := color.NewPredicate(target, c.colorCfg)
	return &p, nil
}

// applyFilter adds the tag, tone and color predicates of f to conds.
//
// Tags use AND semantics: a row must carry every requested tag. The
// required count is the number of requested names, not of resolved ids, so
// an unknown name leaves the result empty instead of being ignored.
func applyFilter(ctx context.Context, q database.Querier, conds *conditions, f Filter, pred *color.Predicate) error {
	if names := NormalizeTags(f.Tags); len(names) > 0 {
		ids, err := tagIDsByNames(ctx, q, names)
		if err != nil {
			return err
		}
		if len(ids) < len(names) {
			conds.add("1 = 0")
		} else {
			args := make([]any, 0, len(ids)+1)
			for _, id := range ids {
				args = append(args, id)
			}
			args = append(args, len(names))
			conds.add(`i.id IN (
				SELECT image_id FROM image_tags
				WHERE tag_id IN (`+placeholders(len(ids))+`)
				GROUP BY image_id
				HAVING COUNT(DISTINCT tag_id) = ?
			)`, args...)
		}
	}

	if f.Tone != nil {
		conds.add("i.tone = ?", *f.Tone)
	}

	if pred != nil {
		conds.add("color_match(i.color_l, i.color_c, i.color_h, ?, ?, ?, ?, ?, ?) = 1",
			pred.Target.L, pred.Target.C, pred.Target.H,
			pred.Config.SimilarityThreshold, pred.Config.MaxHueDiff, pred.Config.NeutralChroma)
	}
	return nil
}

// ListImages returns a page of the gallery in display order: unordered images
// first (newest first), then ordered images by position.
func (c *Catalog) ListImages(ctx context.Context, opts ListOptions) (page Page[ListCursor], err error) {
	const op = "list_images"
	metrics.SearchRequestsTotal.WithLabelValues("list").Inc()

	limit, err := c.resolveLimit(op, opts.Limit)
	if err != nil {
		return page, err
	}
	pred, err := c.parseColor(op, opts.Filter)
	if err != nil {
		return page, err
	}

	done := database.ObserveQuery(op)
	defer func() { done(err) }()

	q := c.db.DB()
	var conds conditions
	if err := applyFilter(ctx, q, &conds, opts.Filter, pred); err != nil {
		return page, wrapErr(op, "", err)
	}
	if a := opts.After; a != nil {
		conds.add(`(`+listOrderKey+` > ?
			OR (`+listOrderKey+` = ? AND (i.created_at < ? OR (i.created_at = ? AND i.seq < ?))))`,
			a.OrderKey, a.OrderKey, a.CreatedAt, a.CreatedAt, a.RowID)
	}

	query := "SELECT " + imageColumns + " FROM images i" + conds.where() +
		" ORDER BY " + listOrderKey + " ASC, i.created_at DESC, i.seq DESC LIMIT ?"
	rows, err := c.queryRows(ctx, q, query, append(conds.args, limit+1)...)
	if err != nil {
		return page, wrapErr(op, "", err)
	}

	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[limit-1]
		page.Next = &ListCursor{OrderKey: last.orderKey(), CreatedAt: last.CreatedAt, RowID: last.RowID}
	}
	page.Items = rows
	metrics.SearchResultsReturned.WithLabelValues("list").Observe(float64(len(rows)))
	return page, nil
}

// tokenize lowercases and splits a text query on whitespace.
func tokenize(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// SearchText returns images whose filename or path contains every token of
// the query, newest first. An empty query returns an empty page.
func (c *Catalog) SearchText(ctx context.Context, opts TextSearchOptions) (page Page[TextCursor], err error) {
	const op = "search_text"
	metrics.SearchRequestsTotal.WithLabelValues("text").Inc()
	page.Items = []Row{}

	limit, err := c.resolveLimit(op, opts.Limit)
	if err != nil {
		return page, err
	}
	pred, err := c.parseColor(op, opts.Filter)
	if err != nil {
		return page, err
	}
	tokens := tokenize(opts.Query)
	if len(tokens) == 0 {
		return page, nil
	}

	done := database.ObserveQuery(op)
	defer func() { done(err) }()

	q := c.db.DB()
	var conds conditions
	for _, tok := range tokens {
		conds.add("(instr(unicode_lower(i.filename), ?) > 0 OR instr(unicode_lower(i.relative_path), ?) > 0)", tok, tok)
	}
	if err := applyFilter(ctx, q, &conds, opts.Filter, pred); err != nil {
		return page, wrapErr(op, opts.Query, err)
	}
	if a := opts.After; a != nil {
		conds.add("(i.created_at < ? OR (i.created_at = ? AND i.seq < ?))", a.CreatedAt, a.CreatedAt, a.RowID)
	}

	query := "SELECT " + imageColumns + " FROM images i" + conds.where() +
		" ORDER BY i.created_at DESC, i.seq DESC LIMIT ?"
	rows, err := c.queryRows(ctx, q, query, append(conds.args, limit+1)...)
	if err != nil {
		return page, wrapErr(op, opts.Query, err)
	}

	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[limit-1]
		page.Next = &TextCursor{CreatedAt: last.CreatedAt, RowID: last.RowID}
	}
	page.Items = rows
	metrics.SearchResultsReturned.WithLabelValues("text").Observe(float64(len(rows)))
	return page, nil
}

// GetImagesByIDs returns the images for ids in the caller's order. Unknown
// ids are dropped.
func (c *Catalog) GetImagesByIDs(ctx context.Context, ids []string) (result []Row, err error) {
	const op = "images_by_ids"
	metrics.SearchRequestsTotal.WithLabelValues("ids").Inc()
	result = []Row{}
	if len(ids) == 0 {
		return result, nil
	}

	done := database.ObserveQuery(op)
	defer func() { done(err) }()

	q := c.db.DB()
	byID := make(map[string]Row, len(ids))
	for start := 0; start < len(ids); start += maxBatchParams {
		chunk := ids[start:min(start+maxBatchParams, len(ids))]
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		rows, err := c.queryRows(ctx, q,
			"SELECT "+imageColumns+" FROM images i WHERE i.id IN ("+placeholders(len(chunk))+")", args...)
		if err != nil {
			return nil, wrapErr(op, "", err)
		}
		for _, r := range rows {
			byID[r.ID] = r
		}
	}

	for _, id := range ids {
		if r, ok := byID[id]; ok {
			result = append(result, r)
		}
	}
	metrics.SearchResultsReturned.WithLabelValues("ids").Observe(float64(len(result)))
	return result, nil
}

// queryRows runs a SELECT of imageColumns and hydrates tags.
func (c *Catalog) queryRows(ctx context.Context, q database.Querier, query string, args ...any) ([]Row, error) {
	rs, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	rows := []Row{}
	for rs.Next() {
		img, err := scanImage(rs)
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row{Image: img})
	}
	if err := rs.Err(); err != nil {
		return nil, err
	}
	if err := hydrateTags(ctx, q, rows); err != nil {
		return nil, err
	}
	return rows, nil
}
