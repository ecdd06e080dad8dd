package catalog

import (
	"context"
	"fmt"
	"strings"

	"refboard/internal/database"
	"refboard/internal/logging"
	"refboard/internal/metrics"
	"refboard/internal/vectorindex"
)

// candidateCount is the first ANN fetch size for a page of limit rows.
func (c *Catalog) candidateCount(limit int) int {
	k := max(limit*c.cfg.VectorOverfetch, limit+1)
	return min(k, c.cfg.VectorMaxCandidates)
}

// SearchVector returns the images nearest to opts.Vector, most similar first,
// with Score = 1 - Distance.
//
// The ANN index is asked for more candidates than the page needs so that
// tag, tone and color filters and the cursor can discard some. If a page
// still comes back short while the index returned every candidate asked
// for, the fetch size doubles up to VectorMaxCandidates and the query runs
// again. Results beyond VectorMaxCandidates are never returned.
func (c *Catalog) SearchVector(ctx context.Context, opts VectorSearchOptions) (page Page[VectorCursor], err error) {
	const op = "search_vector"
	metrics.SearchRequestsTotal.WithLabelValues("vector").Inc()
	page.Items = []Row{}

	limit, err := c.resolveLimit(op, opts.Limit)
	if err != nil {
		return page, err
	}
	pred, err := c.parseColor(op, opts.Filter)
	if err != nil {
		return page, err
	}
	if len(opts.Vector) == 0 {
		return page, nil
	}
	if err := vectorindex.CheckDimension(opts.Vector, c.cfg.EmbeddingDim); err != nil {
		return page, &OpError{Op: op, Kind: ErrInvalidInput, Err: err}
	}
	if !c.index.Available() {
		logging.Warn("Vector search requested but the vector index is unavailable; returning no results")
		return page, nil
	}

	done := database.ObserveQuery(op)
	defer func() { done(err) }()

	q := c.db.DB()
	var filter conditions
	if err := applyFilter(ctx, q, &filter, opts.Filter, pred); err != nil {
		return page, wrapErr(op, "", err)
	}

	k := c.candidateCount(limit)
	var rows []Row
	for {
		hits, err := c.index.SearchTopK(ctx, q, opts.Vector, k)
		if err != nil {
			return page, wrapErr(op, "", err)
		}
		metrics.VectorSearchCandidates.Observe(float64(len(hits)))
		if len(hits) == 0 {
			break
		}

		rows, err = c.joinHits(ctx, q, hits, filter, opts.After, limit+1)
		if err != nil {
			return page, wrapErr(op, "", err)
		}
		if len(rows) > limit || len(hits) < k || k >= c.cfg.VectorMaxCandidates {
			break
		}
		k = min(k*2, c.cfg.VectorMaxCandidates)
		metrics.VectorSearchRefetches.Inc()
		logging.Debug("Vector search page short (%d/%d), refetching with k=%d", len(rows), limit, k)
	}

	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[limit-1]
		page.Next = &VectorCursor{Distance: *last.Distance, RowID: last.RowID}
	}
	if rows != nil {
		page.Items = rows
	}
	metrics.SearchResultsReturned.WithLabelValues("vector").Observe(float64(len(page.Items)))
	return page, nil
}

// joinHits joins ANN hits back to images through a VALUES table, applies
// the relational filters and the cursor, and orders by (distance, rowid).
func (c *Catalog) joinHits(ctx context.Context, q database.Querier, hits []vectorindex.Hit,
	filter conditions, after *VectorCursor, limit int) ([]Row, error) {

	values := make([]string, len(hits))
	args := make([]any, 0, 2*len(hits)+len(filter.args)+4)
	for i, h := range hits {
		values[i] = "(?, ?)"
		args = append(args, h.RowID, h.Distance)
	}

	conds := conditions{
		clauses: append([]string{}, filter.clauses...),
		args:    append([]any{}, filter.args...),
	}
	if after != nil {
		conds.add("(h.distance > ? OR (h.distance = ? AND i.seq > ?))", after.Distance, after.Distance, after.RowID)
	}
	args = append(args, conds.args...)
	args = append(args, limit)

	query := fmt.Sprintf(`
		WITH hits(seq, distance) AS (VALUES %s)
		SELECT %s, h.distance
		FROM hits h
		JOIN images i ON i.seq = h.seq%s
		ORDER BY h.distance ASC, i.seq ASC
		LIMIT ?
	`, strings.Join(values, ", "), imageColumns, conds.where())

	rs, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	rows := []Row{}
	for rs.Next() {
		var distance float64
		img, err := scanImage(rs, &distance)
		if err != nil {
			return nil, err
		}
		score := 1 - distance
		rows = append(rows, Row{Image: img, Distance: &distance, Score: &score})
	}
	if err := rs.Err(); err != nil {
		return nil, err
	}
	if err := hydrateTags(ctx, q, rows); err != nil {
		return nil, err
	}
	return rows, nil
}
