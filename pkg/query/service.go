package query

import (
	"context"
	"fmt"
	"slices"

	"github.com/goran-ethernal/ChainProcessor/internal/common"
	"github.com/goran-ethernal/ChainProcessor/internal/logger"
	"github.com/jmoiron/sqlx"
	"github.com/russross/meddler"
)

// DefaultLimit applies when a request does not set a page size.
const DefaultLimit = 50

// FindOptions select a page by limit and offset.
type FindOptions struct {
	Where   Where
	OrderBy []string
	Limit   int
	Offset  int
	// Fields restricts the selected attributes; id is always selected.
	Fields []string
}

// ConnectionOptions select a page by cursor. Last/Before page backwards, First/After forwards.
type ConnectionOptions struct {
	Where      Where
	OrderBy    []string
	First      *int
	After      string
	Last       *int
	Before     string
	Fields     []string
	TotalCount bool
}

// PageInfo describes the position of a connection page.
type PageInfo struct {
	HasNextPage     bool   `json:"hasNextPage"`
	HasPreviousPage bool   `json:"hasPreviousPage"`
	StartCursor     string `json:"startCursor"`
	EndCursor       string `json:"endCursor"`
}

// Edge is a row with its cursor.
type Edge[T any] struct {
	Node   *T     `json:"node"`
	Cursor string `json:"cursor"`
}

// Connection is a cursor paginated page.
type Connection[T any] struct {
	Edges      []Edge[T] `json:"edges"`
	PageInfo   PageInfo  `json:"pageInfo"`
	TotalCount *int      `json:"totalCount,omitempty"`
}

// Querier is the untyped view of a Service used by the read API.
type Querier interface {
	Entity() *Entity
	Count(ctx context.Context, where Where) (int, error)
	FindAny(ctx context.Context, opts FindOptions) (any, error)
	ConnectionAny(ctx context.Context, opts ConnectionOptions) (any, error)
}

var _ Querier = (*Service[struct{ ID string }])(nil)

// Service reads rows of T, a meddler tagged struct, from its entity table.
type Service[T any] struct {
	entity *Entity
	db     *sqlx.DB
	log    *logger.Logger
}

// NewService creates a service over entity.
func NewService[T any](db *sqlx.DB, entity *Entity, log *logger.Logger) *Service[T] {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if log.GetComponent() == "" {
		log = log.WithComponent(common.ComponentQuery)
	}
	return &Service[T]{entity: entity, db: db, log: log}
}

// Entity returns the entity served.
func (s *Service[T]) Entity() *Entity {
	return s.entity
}

// Find returns a page of rows by limit and offset. Soft deleted rows are excluded unless
// the filter mentions deletedAt.
func (s *Service[T]) Find(ctx context.Context, opts FindOptions) ([]*T, error) {
	if opts.Limit < 0 || opts.Offset < 0 {
		return nil, invalidf("limit and offset must not be negative")
	}
	limit := opts.Limit
	if limit == 0 {
		limit = DefaultLimit
	}

	sorts, err := ParseOrderBy(opts.OrderBy)
	if err != nil {
		return nil, err
	}

	expr, err := s.filter(opts.Where)
	if err != nil {
		return nil, err
	}

	return s.query(ctx, expr, sorts, opts.Fields, limit, opts.Offset)
}

// Count returns the number of rows matching where, ignoring any paging.
func (s *Service[T]) Count(ctx context.Context, where Where) (int, error) {
	expr, err := s.filter(where)
	if err != nil {
		return 0, err
	}

	c := newCompiler(s.entity)
	cond, err := c.compile(expr)
	if err != nil {
		return 0, err
	}

	//nolint:gosec // table comes from registered entities, conditions use bound parameters
	query := "SELECT COUNT(*) FROM " + s.entity.Table
	if cond != "" {
		query += " WHERE " + cond
	}

	query, args, err := bind(s.db, query, c.params)
	if err != nil {
		return 0, err
	}

	var total int
	if err := s.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", s.entity.Name, err)
	}
	return total, nil
}

// Connection returns a cursor paginated page. One row more than requested is fetched to
// learn whether another page exists. Backward pages are read in reverse order and
// flipped back before returning.
func (s *Service[T]) Connection(ctx context.Context, opts ConnectionOptions) (*Connection[T], error) {
	if opts.First != nil && opts.Last != nil {
		return nil, invalidf("first and last cannot be combined")
	}
	switch {
	case opts.After != "" && opts.Before != "":
		return nil, invalidf("after and before cannot be combined")
	case opts.First != nil && opts.Before != "":
		return nil, invalidf("before cannot be combined with first")
	case opts.Last != nil && opts.After != "":
		return nil, invalidf("after cannot be combined with last")
	}
	backward := opts.Last != nil || (opts.Before != "" && opts.First == nil)

	limit, cursor := DefaultLimit, opts.After
	requested := opts.First
	if backward {
		cursor, requested = opts.Before, opts.Last
	}
	if requested != nil {
		if *requested < 0 {
			return nil, invalidf("page size must not be negative")
		}
		if *requested > 0 {
			limit = *requested
		}
	}

	sorts, err := ParseOrderBy(opts.OrderBy)
	if err != nil {
		return nil, err
	}
	sorts = uniqueSort(sorts)

	expr, err := s.filter(opts.Where)
	if err != nil {
		return nil, err
	}

	if cursor != "" {
		values, err := DecodeCursor(cursor)
		if err != nil {
			return nil, err
		}
		after, err := cursorFilter(sorts, values, backward)
		if err != nil {
			return nil, err
		}
		if expr == nil {
			expr = after
		} else {
			expr = And{expr, after}
		}
	}

	effective := sorts
	if backward {
		effective = reverseSort(sorts)
	}

	fields := opts.Fields
	if len(fields) > 0 {
		fields = slices.Clone(fields)
		for _, sort := range sorts {
			if !slices.Contains(fields, sort.Field) {
				fields = append(fields, sort.Field)
			}
		}
	}

	rows, err := s.query(ctx, expr, effective, fields, limit+1, 0)
	if err != nil {
		return nil, err
	}

	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}
	if backward {
		slices.Reverse(rows)
	}

	conn := &Connection[T]{Edges: make([]Edge[T], 0, len(rows))}
	for _, row := range rows {
		values, err := s.entity.sortValues(row, sorts)
		if err != nil {
			return nil, err
		}
		c, err := EncodeCursor(values)
		if err != nil {
			return nil, err
		}
		conn.Edges = append(conn.Edges, Edge[T]{Node: row, Cursor: c})
	}

	if len(conn.Edges) > 0 {
		conn.PageInfo.StartCursor = conn.Edges[0].Cursor
		conn.PageInfo.EndCursor = conn.Edges[len(conn.Edges)-1].Cursor
		if backward {
			conn.PageInfo.HasPreviousPage = hasMore
		} else {
			conn.PageInfo.HasNextPage = hasMore
		}
	}

	if opts.TotalCount {
		total, err := s.Count(ctx, opts.Where)
		if err != nil {
			return nil, err
		}
		conn.TotalCount = &total
	}

	return conn, nil
}

// FindAny is Find for callers that do not know T.
func (s *Service[T]) FindAny(ctx context.Context, opts FindOptions) (any, error) {
	return s.Find(ctx, opts)
}

// ConnectionAny is Connection for callers that do not know T.
func (s *Service[T]) ConnectionAny(ctx context.Context, opts ConnectionOptions) (any, error) {
	return s.Connection(ctx, opts)
}

func (s *Service[T]) filter(where Where) (Expr, error) {
	if s.entity.SoftDelete() {
		where = withSoftDelete(where)
	}
	return ParseWhere(where)
}

func (s *Service[T]) query(ctx context.Context, expr Expr, sorts []Sort, fields []string,
	limit, offset int) ([]*T, error) {
	c := newCompiler(s.entity)
	cond, err := c.compile(expr)
	if err != nil {
		return nil, err
	}

	order, err := orderClause(s.entity, sorts)
	if err != nil {
		return nil, err
	}

	columns, err := s.columns(fields)
	if err != nil {
		return nil, err
	}

	query, args, err := bind(s.db, selectQuery{
		columns: columns,
		where:   cond,
		order:   order,
		limit:   limit,
		offset:  offset,
	}.sql(s.entity.Table), c.params)
	if err != nil {
		return nil, err
	}

	s.log.Debugw("querying entity", "entity", s.entity.Name, "query", query)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", s.entity.Name, err)
	}
	defer rows.Close()

	out := make([]*T, 0)
	if err := meddler.ScanAll(rows, &out); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", s.entity.Name, err)
	}
	return out, nil
}

// columns maps selected attributes to columns. Attributes that are not columns are ignored.
func (s *Service[T]) columns(fields []string) ([]string, error) {
	if len(fields) == 0 {
		return nil, nil
	}

	idCol, err := s.entity.Column(IDField)
	if err != nil {
		return nil, err
	}

	columns := []string{idCol}
	for _, field := range fields {
		col, err := s.entity.Column(field)
		if err != nil || slices.Contains(columns, col) {
			continue
		}
		columns = append(columns, col)
	}
	return columns, nil
}
