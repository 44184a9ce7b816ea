package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/goran-ethernal/ChainProcessor/internal/logger"
	"github.com/goran-ethernal/ChainProcessor/internal/processor"
	"github.com/goran-ethernal/ChainProcessor/pkg/query"
)

const maxLimit = 1000

// StatusProvider reports the progress of every chain.
type StatusProvider interface {
	Statuses() []processor.ChainStatus
}

// EntityCatalog gives access to the query services of registered entities.
type EntityCatalog interface {
	Get(name string) (query.Querier, bool)
	Names() []string
}

// Handler handles HTTP requests for the API.
type Handler struct {
	chains   StatusProvider
	entities EntityCatalog
	log      *logger.Logger
}

// NewHandler creates a new API handler.
func NewHandler(chains StatusProvider, entities EntityCatalog, log *logger.Logger) *Handler {
	return &Handler{
		chains:   chains,
		entities: entities,
		log:      log,
	}
}

// Health returns the health status of the API and all chains.
// @Summary Health check
// @Description Check the health of the API and every processed chain. A faulted chain makes the service unavailable.
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse "All chains healthy"
// @Failure 503 {object} HealthResponse "At least one chain faulted"
// @Router /health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	statuses := h.chains.Statuses()

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Chains:    statuses,
	}

	code := http.StatusOK
	for _, s := range statuses {
		if s.Status == processor.Faulted.String() {
			response.Status = "degraded"
			code = http.StatusServiceUnavailable
			break
		}
	}

	respondJSON(w, code, response)
}

// GetStatus returns the processing state of every chain.
// @Summary Processing status
// @Description Per chain lifecycle, configured range, processor state and last known indexer status
// @Tags Status
// @Produce json
// @Success 200 {array} processor.ChainStatus "Chain statuses"
// @Router /api/v1/status [get]
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.chains.Statuses())
}

// ListEntities returns the queryable entities.
// @Summary List entities
// @Description Get the registered entities with their filterable attributes
// @Tags Entities
// @Produce json
// @Success 200 {array} EntityInfo "List of entities"
// @Router /api/v1/entities [get]
func (h *Handler) ListEntities(w http.ResponseWriter, r *http.Request) {
	infos := make([]EntityInfo, 0)
	for _, name := range h.entities.Names() {
		q, ok := h.entities.Get(name)
		if !ok {
			continue
		}
		e := q.Entity()
		infos = append(infos, EntityInfo{
			Name:       e.Name,
			Table:      e.Table,
			Attributes: e.Attributes(),
			SoftDelete: e.SoftDelete(),
			Endpoints: []string{
				fmt.Sprintf("/api/v1/entities/%s", e.Name),
				fmt.Sprintf("/api/v1/entities/%s/connection", e.Name),
			},
		})
	}

	respondJSON(w, http.StatusOK, infos)
}

// FindEntities retrieves a limit/offset page of an entity.
// @Summary Find entity rows
// @Description Filter, order and page the rows of an entity. Soft deleted rows are hidden unless where filters on deletedAt.
// @Tags Entities
// @Produce json
// @Param name path string true "Entity name"
// @Param where query string false "JSON filter, e.g. {\"amount_gt\":100,\"OR\":[{\"from_eq\":\"a\"},{\"to_eq\":\"a\"}]}"
// @Param orderBy query string false "Comma separated <attribute>_ASC|DESC list"
// @Param limit query int false "Maximum number of rows to return" default(50)
// @Param offset query int false "Number of rows to skip" default(0)
// @Param fields query string false "Comma separated attributes to select"
// @Success 200 {object} FindResponse "Rows with pagination info"
// @Failure 400 {object} ErrorResponse "Invalid parameters"
// @Failure 404 {object} ErrorResponse "Entity not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /api/v1/entities/{name} [get]
func (h *Handler) FindEntities(w http.ResponseWriter, r *http.Request) {
	q, ok := h.entity(w, r)
	if !ok {
		return
	}

	opts, err := parseFindOptions(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid query parameters: %v", err))
		return
	}

	rows, err := q.FindAny(r.Context(), opts)
	if err != nil {
		h.queryError(w, q, err)
		return
	}

	total, err := q.Count(r.Context(), opts.Where)
	if err != nil {
		h.queryError(w, q, err)
		return
	}

	rowsVal := reflect.ValueOf(rows)
	if rowsVal.Kind() != reflect.Slice {
		h.log.Errorf("Invalid rows type returned for entity '%s': expected slice, got %T", q.Entity().Name, rows)
		respondError(w, http.StatusInternalServerError, "invalid rows type returned")
		return
	}

	respondJSON(w, http.StatusOK, FindResponse{
		Items: rows,
		Pagination: PaginationResult{
			Total:   total,
			Limit:   opts.Limit,
			Offset:  opts.Offset,
			HasMore: opts.Offset+rowsVal.Len() < total,
		},
	})
}

// GetConnection retrieves a cursor page of an entity.
// @Summary Entity connection
// @Description Relay style pagination. first/after page forwards, last/before page backwards.
// @Tags Entities
// @Produce json
// @Param name path string true "Entity name"
// @Param where query string false "JSON filter"
// @Param orderBy query string false "Comma separated <attribute>_ASC|DESC list"
// @Param first query int false "Page size when paging forwards" default(50)
// @Param after query string false "Cursor to page forwards from"
// @Param last query int false "Page size when paging backwards"
// @Param before query string false "Cursor to page backwards from"
// @Param fields query string false "Comma separated attributes to select"
// @Param totalCount query bool false "Include the number of rows matching where"
// @Success 200 {object} ConnectionResponse "Edges with page info"
// @Failure 400 {object} ErrorResponse "Invalid parameters"
// @Failure 404 {object} ErrorResponse "Entity not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /api/v1/entities/{name}/connection [get]
func (h *Handler) GetConnection(w http.ResponseWriter, r *http.Request) {
	q, ok := h.entity(w, r)
	if !ok {
		return
	}

	opts, err := parseConnectionOptions(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid query parameters: %v", err))
		return
	}

	conn, err := q.ConnectionAny(r.Context(), opts)
	if err != nil {
		h.queryError(w, q, err)
		return
	}

	respondJSON(w, http.StatusOK, conn)
}

func (h *Handler) entity(w http.ResponseWriter, r *http.Request) (query.Querier, bool) {
	name := r.PathValue("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "entity name is required")
		return nil, false
	}

	q, ok := h.entities.Get(name)
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Sprintf("entity '%s' not found", name))
		return nil, false
	}
	return q, true
}

func (h *Handler) queryError(w http.ResponseWriter, q query.Querier, err error) {
	if errors.Is(err, query.ErrInvalidInput) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.log.Errorf("Failed to query %s: %v", q.Entity().Name, err)
	respondError(w, http.StatusInternalServerError, "failed to query entity")
}

// parseFindOptions parses HTTP query parameters into query.FindOptions.
func parseFindOptions(r *http.Request) (query.FindOptions, error) {
	values := r.URL.Query()
	opts := query.FindOptions{Limit: query.DefaultLimit}

	where, err := parseWhere(values.Get("where"))
	if err != nil {
		return opts, err
	}
	opts.Where = where
	opts.OrderBy = splitList(values.Get("orderBy"))
	opts.Fields = splitList(values.Get("fields"))

	if limitStr := values.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > maxLimit {
			return opts, fmt.Errorf("invalid limit: must be between 1 and %d", maxLimit)
		}
		opts.Limit = limit
	}

	if offsetStr := values.Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return opts, fmt.Errorf("invalid offset: must be non-negative")
		}
		opts.Offset = offset
	}

	return opts, nil
}

// parseConnectionOptions parses HTTP query parameters into query.ConnectionOptions.
func parseConnectionOptions(r *http.Request) (query.ConnectionOptions, error) {
	values := r.URL.Query()
	var opts query.ConnectionOptions

	where, err := parseWhere(values.Get("where"))
	if err != nil {
		return opts, err
	}
	opts.Where = where
	opts.OrderBy = splitList(values.Get("orderBy"))
	opts.Fields = splitList(values.Get("fields"))
	opts.After = values.Get("after")
	opts.Before = values.Get("before")

	if opts.First, err = parsePageSize(values.Get("first"), "first"); err != nil {
		return opts, err
	}
	if opts.Last, err = parsePageSize(values.Get("last"), "last"); err != nil {
		return opts, err
	}

	if totalStr := values.Get("totalCount"); totalStr != "" {
		total, err := strconv.ParseBool(totalStr)
		if err != nil {
			return opts, fmt.Errorf("invalid totalCount: must be a boolean")
		}
		opts.TotalCount = total
	}

	return opts, nil
}

func parsePageSize(raw, name string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxLimit {
		return nil, fmt.Errorf("invalid %s: must be between 1 and %d", name, maxLimit)
	}
	return &n, nil
}

// parseWhere decodes the JSON filter, keeping numbers exact.
func parseWhere(raw string) (query.Where, error) {
	if raw == "" {
		return nil, nil
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var where query.Where
	if err := dec.Decode(&where); err != nil {
		return nil, fmt.Errorf("invalid where: %w", err)
	}
	return where, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")

	// Encode first so a failure can still change the status
	encoded, err := json.Marshal(data)
	if err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)

	if _, err := w.Write(encoded); err != nil {
		return
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	response := ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	}
	respondJSON(w, status, response)
}
