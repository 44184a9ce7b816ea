package query

import (
	"database/sql"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/goran-ethernal/ChainProcessor/internal/common"
	"github.com/goran-ethernal/ChainProcessor/internal/logger"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
)

// mapper resolves struct fields by their meddler column names.
var mapper = reflectx.NewMapper("meddler")

// Entity describes a queryable table backed by a meddler tagged struct.
// Attributes are the camelCase names of the snake_case columns.
type Entity struct {
	Name  string
	Table string
	Type  reflect.Type

	columns    map[string]string
	attributes []string
	// decimals are attributes stored as zero padded decimals (meddler bigint).
	decimals map[string]bool
}

// NewEntity describes table with the row type typ. typ must have an id column.
func NewEntity(name, table string, typ reflect.Type) (*Entity, error) {
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("entity %s: %s is not a struct", name, typ)
	}

	e := &Entity{
		Name:    name,
		Table:   table,
		Type:    typ,
		columns:  make(map[string]string),
		decimals: make(map[string]bool),
	}

	for _, fi := range mapper.TypeMap(typ).Index {
		if fi.Name == "" || len(fi.Index) != 1 {
			continue
		}
		attr := camelCase(fi.Name)
		e.columns[attr] = fi.Name
		e.attributes = append(e.attributes, attr)
		if _, ok := fi.Options["bigint"]; ok {
			e.decimals[attr] = true
		}
	}

	if _, ok := e.columns[IDField]; !ok {
		return nil, fmt.Errorf("entity %s: %s has no id column", name, typ)
	}

	return e, nil
}

// Column returns the column of an attribute.
func (e *Entity) Column(attr string) (string, error) {
	col, ok := e.columns[attr]
	if !ok {
		return "", invalidf("unknown field %q on %s", attr, e.Name)
	}
	return col, nil
}

// Attributes lists the attributes in struct order.
func (e *Entity) Attributes() []string {
	return slices.Clone(e.attributes)
}

// SoftDelete reports whether rows carry a deletedAt marker.
func (e *Entity) SoftDelete() bool {
	_, ok := e.columns[DeletedAtField]
	return ok
}

// sortValues reads the sort key values of row, a pointer to the entity struct.
func (e *Entity) sortValues(row any, sorts []Sort) ([]any, error) {
	v := reflect.ValueOf(row)
	values := make([]any, len(sorts))
	for i, s := range sorts {
		col, err := e.Column(s.Field)
		if err != nil {
			return nil, err
		}
		values[i] = mapper.FieldByName(v, col).Interface()
	}
	return values, nil
}

func camelCase(column string) string {
	parts := strings.Split(column, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

type serviceFactory func(db *sqlx.DB, log *logger.Logger) Querier

var (
	entityMu sync.RWMutex
	entities = make(map[string]serviceFactory)
)

// RegisterEntity exposes the table of T under name to the read API.
// This is typically called in init() functions of mapping packages.
// It panics when T cannot describe an entity.
func RegisterEntity[T any](name, table string) {
	entity, err := NewEntity(name, table, reflect.TypeFor[T]())
	if err != nil {
		panic(err)
	}

	entityMu.Lock()
	defer entityMu.Unlock()

	if _, exists := entities[name]; exists {
		logger.GetDefaultLogger().Infof("entity %s already registered. It will be overwritten.", name)
	}
	entities[name] = func(db *sqlx.DB, log *logger.Logger) Querier {
		return NewService[T](db, entity, log)
	}
}

// RegisteredEntities returns the names of all registered entities, sorted.
func RegisteredEntities() []string {
	entityMu.RLock()
	defer entityMu.RUnlock()

	names := make([]string, 0, len(entities))
	for name := range entities {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Open wraps a database for querying with the placeholder style of driver.
func Open(database *sql.DB, driver string) *sqlx.DB {
	db := sqlx.NewDb(database, driver)
	db.Mapper = mapper
	return db
}

// Catalog holds one query service per entity.
type Catalog struct {
	services map[string]Querier
	names    []string
}

// NewCatalog creates services for every registered entity.
func NewCatalog(db *sqlx.DB, log *logger.Logger) *Catalog {
	if log == nil {
		log = logger.NewNopLogger()
	}
	log = log.WithComponent(common.ComponentQuery)

	entityMu.RLock()
	defer entityMu.RUnlock()

	c := &Catalog{services: make(map[string]Querier, len(entities))}
	for _, factory := range entities {
		c.Add(factory(db, log))
	}
	return c
}

// Add registers a service. Names are matched case-insensitively.
func (c *Catalog) Add(q Querier) {
	if c.services == nil {
		c.services = make(map[string]Querier)
	}
	key := strings.ToLower(q.Entity().Name)
	if _, exists := c.services[key]; !exists {
		c.names = append(c.names, q.Entity().Name)
		slices.Sort(c.names)
	}
	c.services[key] = q
}

// Get returns the service of an entity.
func (c *Catalog) Get(name string) (Querier, bool) {
	q, ok := c.services[strings.ToLower(name)]
	return q, ok
}

// Names returns the entity names, sorted.
func (c *Catalog) Names() []string {
	return slices.Clone(c.names)
}
