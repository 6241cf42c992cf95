package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smartattend/auditlog/internal/core/domain"
	"github.com/smartattend/auditlog/internal/core/usecase"
)

type ctxKey string

const (
	timeFormat             = "2006-01-02T15:04:05.999999999Z07:00"
	apiKeyCtxKey    ctxKey = "api_key"
	maxJSONBodySize        = 1 << 20
)

type Handler struct {
	recorderService     *usecase.RecorderService
	queryService        *usecase.QueryService
	summaryService      *usecase.SummaryService
	integrityService    *usecase.IntegrityService
	immutabilityService *usecase.ImmutabilityService
	schemaService       *usecase.SnapshotSchemaService
	authService         *usecase.AuthService
}

func NewHandler(
	recorderService *usecase.RecorderService,
	queryService *usecase.QueryService,
	summaryService *usecase.SummaryService,
	integrityService *usecase.IntegrityService,
	immutabilityService *usecase.ImmutabilityService,
	schemaService *usecase.SnapshotSchemaService,
	authService *usecase.AuthService,
) *Handler {
	return &Handler{
		recorderService:     recorderService,
		queryService:        queryService,
		summaryService:      summaryService,
		integrityService:    integrityService,
		immutabilityService: immutabilityService,
		schemaService:       schemaService,
		authService:         authService,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", h.healthz)
	r.Get("/openapi.json", h.openapi)

	r.Group(func(pr chi.Router) {
		pr.Use(h.requireAPIKey)

		pr.Post("/v1/audit/entries", h.appendEntry)
		pr.Get("/v1/audit/entries", h.queryEntries)
		pr.Get("/v1/audit/entries/{id}", h.getEntry)
		pr.Get("/v1/audit/entries/{id}/integrity", h.verifyEntry)
		pr.Get("/v1/audit/resources/{resourceType}/{resourceID}/trail", h.resourceTrail)
		pr.Get("/v1/audit/summary", h.summary)
		pr.Get("/v1/audit/search", h.search)
		pr.Get("/v1/audit/chains/{chainScope}/integrity", h.verifyChain)
		pr.Post("/v1/audit/immutability-check", h.immutabilityCheck)

		pr.Put("/v1/audit/snapshot-schemas/{resourceType}", h.upsertSchema)
		pr.Get("/v1/audit/snapshot-schemas/{resourceType}", h.getSchema)
		pr.Delete("/v1/audit/snapshot-schemas/{resourceType}", h.deleteSchema)
	})

	return r
}

type appendRequest struct {
	ActorID       string          `json:"actor_id"`
	ActionType    string          `json:"action_type"`
	ActionScope   string          `json:"action_scope"`
	ResourceType  string          `json:"resource_type"`
	ResourceID    string          `json:"resource_id"`
	BeforeState   json.RawMessage `json:"before_state,omitempty"`
	AfterState    json.RawMessage `json:"after_state,omitempty"`
	Justification string          `json:"justification"`
}

type entryResponse struct {
	ID            string          `json:"id"`
	ChainScope    string          `json:"chain_scope"`
	Sequence      int64           `json:"sequence"`
	Timestamp     string          `json:"timestamp"`
	TenantID      string          `json:"tenant_id"`
	ActorID       string          `json:"actor_id"`
	ActionType    string          `json:"action_type"`
	ActionScope   string          `json:"action_scope"`
	ResourceType  string          `json:"resource_type"`
	ResourceID    string          `json:"resource_id"`
	BeforeState   json.RawMessage `json:"before_state,omitempty"`
	AfterState    json.RawMessage `json:"after_state,omitempty"`
	Justification string          `json:"justification"`
	PrevChecksum  string          `json:"prev_checksum,omitempty"`
	Checksum      string          `json:"checksum"`
}

type schemaRequest struct {
	Schema json.RawMessage `json:"schema"`
}

type schemaResponse struct {
	ResourceType string          `json:"resource_type"`
	Schema       json.RawMessage `json:"schema"`
	CreatedAt    string          `json:"created_at"`
	UpdatedAt    string          `json:"updated_at"`
}

func (h *Handler) appendEntry(w http.ResponseWriter, r *http.Request) {
	key := keyFromContext(r.Context())
	if key.Role != domain.RoleService {
		writeError(w, http.StatusForbidden, "appending requires a service key")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	var req appendRequest
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := ensureEOF(decoder); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	entry, err := h.recorderService.Append(r.Context(), domain.EntryCandidate{
		TenantID:      key.TenantID,
		ActorID:       req.ActorID,
		ActionType:    req.ActionType,
		ActionScope:   domain.ActionScope(req.ActionScope),
		ResourceType:  req.ResourceType,
		ResourceID:    req.ResourceID,
		BeforeState:   req.BeforeState,
		AfterState:    req.AfterState,
		Justification: req.Justification,
	})
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (h *Handler) queryEntries(w http.ResponseWriter, r *http.Request) {
	key := keyFromContext(r.Context())

	filter, ok := parseQueryFilter(w, r)
	if !ok {
		return
	}
	// Tenant confinement happens regardless of role; only a platform key
	// (empty tenant) may look across tenants.
	if key.TenantID != "" {
		filter.TenantID = key.TenantID
	}

	entries, err := h.queryService.Query(r.Context(), filter, key.ReadScope())
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": toEntryResponses(entries)})
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	key := keyFromContext(r.Context())
	id := chi.URLParam(r, "id")

	entry, err := h.queryService.GetByID(r.Context(), id, key.ReadScope())
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) resourceTrail(w http.ResponseWriter, r *http.Request) {
	key := keyFromContext(r.Context())
	resourceType := chi.URLParam(r, "resourceType")
	resourceID := chi.URLParam(r, "resourceID")

	entries, err := h.queryService.TrailFor(r.Context(), resourceType, resourceID, key.ReadScope())
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": toEntryResponses(entries)})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	key := keyFromContext(r.Context())

	start, ok := parseTimeParam(w, r, "start_time")
	if !ok {
		return
	}
	end, ok := parseTimeParam(w, r, "end_time")
	if !ok {
		return
	}

	window := domain.SummaryWindow{TenantID: key.TenantID, Start: start, End: end}
	summary, err := h.summaryService.Summarize(r.Context(), window, key.ReadScope())
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	key := keyFromContext(r.Context())

	limit, ok := parseIntParam(w, r, "limit", 0)
	if !ok {
		return
	}

	entries, err := h.queryService.SearchJustification(
		r.Context(),
		key.TenantID,
		r.URL.Query().Get("q"),
		limit,
		key.ReadScope(),
	)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": toEntryResponses(entries)})
}

func (h *Handler) verifyEntry(w http.ResponseWriter, r *http.Request) {
	key := keyFromContext(r.Context())
	if !key.ReadScope().Privileged() {
		writeError(w, http.StatusForbidden, "integrity verification requires an auditor key")
		return
	}

	report, err := h.integrityService.VerifyEntry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) verifyChain(w http.ResponseWriter, r *http.Request) {
	key := keyFromContext(r.Context())
	if !key.ReadScope().Privileged() {
		writeError(w, http.StatusForbidden, "integrity verification requires an auditor key")
		return
	}

	report, err := h.integrityService.VerifyChain(r.Context(), chi.URLParam(r, "chainScope"))
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) immutabilityCheck(w http.ResponseWriter, r *http.Request) {
	key := keyFromContext(r.Context())
	if !key.ReadScope().Privileged() {
		writeError(w, http.StatusForbidden, "immutability check requires an auditor key")
		return
	}

	report, err := h.immutabilityService.SelfTest(r.Context())
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) upsertSchema(w http.ResponseWriter, r *http.Request) {
	key := keyFromContext(r.Context())
	if !key.ReadScope().Privileged() {
		writeError(w, http.StatusForbidden, "schema management requires an auditor key")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	var req schemaRequest
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := ensureEOF(decoder); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	schema, err := h.schemaService.Upsert(r.Context(), key.TenantID, chi.URLParam(r, "resourceType"), req.Schema)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSchemaResponse(schema))
}

func (h *Handler) getSchema(w http.ResponseWriter, r *http.Request) {
	key := keyFromContext(r.Context())
	if !key.ReadScope().Privileged() {
		writeError(w, http.StatusForbidden, "schema management requires an auditor key")
		return
	}

	schema, err := h.schemaService.Get(r.Context(), key.TenantID, chi.URLParam(r, "resourceType"))
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSchemaResponse(schema))
}

func (h *Handler) deleteSchema(w http.ResponseWriter, r *http.Request) {
	key := keyFromContext(r.Context())
	if !key.ReadScope().Privileged() {
		writeError(w, http.StatusForbidden, "schema management requires an auditor key")
		return
	}

	deleted, err := h.schemaService.Delete(r.Context(), key.TenantID, chi.URLParam(r, "resourceType"))
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) openapi(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, openapiSpec())
}

func (h *Handler) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get("X-API-Key"))
		if token == "" {
			auth := strings.TrimSpace(r.Header.Get("Authorization"))
			if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				token = strings.TrimSpace(auth[7:])
			}
		}

		apiKey, err := h.authService.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, usecase.ErrUnauthorized) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		ctx := context.WithValue(r.Context(), apiKeyCtxKey, apiKey)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func keyFromContext(ctx context.Context) domain.APIKey {
	key, _ := ctx.Value(apiKeyCtxKey).(domain.APIKey)
	return key
}

func parseQueryFilter(w http.ResponseWriter, r *http.Request) (domain.QueryFilter, bool) {
	limit, ok := parseIntParam(w, r, "limit", 0)
	if !ok {
		return domain.QueryFilter{}, false
	}
	offset, ok := parseIntParam(w, r, "offset", 0)
	if !ok {
		return domain.QueryFilter{}, false
	}
	start, ok := parseTimeParam(w, r, "start_time")
	if !ok {
		return domain.QueryFilter{}, false
	}
	end, ok := parseTimeParam(w, r, "end_time")
	if !ok {
		return domain.QueryFilter{}, false
	}

	q := r.URL.Query()
	return domain.QueryFilter{
		ActorID:      q.Get("actor_id"),
		ActionType:   q.Get("action_type"),
		ActionScope:  domain.ActionScope(q.Get("action_scope")),
		ResourceType: q.Get("resource_type"),
		ResourceID:   q.Get("resource_id"),
		Start:        start,
		End:          end,
		Limit:        limit,
		Offset:       offset,
	}, true
}

func parseIntParam(w http.ResponseWriter, r *http.Request, name string, fallback int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, name+" must be an integer")
		return 0, false
	}
	return parsed, true
}

func parseTimeParam(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, true
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, name+" must be RFC3339")
		return time.Time{}, false
	}
	return parsed, true
}

func toEntryResponse(e domain.AuditLogEntry) entryResponse {
	return entryResponse{
		ID:            e.ID,
		ChainScope:    e.ChainScope,
		Sequence:      e.Sequence,
		Timestamp:     e.Timestamp.UTC().Format(timeFormat),
		TenantID:      e.TenantID,
		ActorID:       e.ActorID,
		ActionType:    e.ActionType,
		ActionScope:   string(e.ActionScope),
		ResourceType:  e.ResourceType,
		ResourceID:    e.ResourceID,
		BeforeState:   e.BeforeState,
		AfterState:    e.AfterState,
		Justification: e.Justification,
		PrevChecksum:  e.PrevChecksum,
		Checksum:      e.Checksum,
	}
}

func toEntryResponses(entries []domain.AuditLogEntry) []entryResponse {
	result := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		result = append(result, toEntryResponse(e))
	}
	return result
}

func toSchemaResponse(s domain.SnapshotSchema) schemaResponse {
	return schemaResponse{
		ResourceType: s.ResourceType,
		Schema:       s.Schema,
		CreatedAt:    s.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt:    s.UpdatedAt.UTC().Format(timeFormat),
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		log.Printf("encode json response: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func handleDomainError(w http.ResponseWriter, err error) {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		writeError(w, http.StatusBadRequest, err.Error())
	case domain.KindForbidden:
		writeError(w, http.StatusForbidden, err.Error())
	case domain.KindNotFound:
		writeError(w, http.StatusNotFound, err.Error())
	case domain.KindStorageUnavailable:
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func ensureEOF(decoder *json.Decoder) error {
	var extra json.RawMessage
	if err := decoder.Decode(&extra); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return errors.New("extra json tokens")
}

func openapiSpec() map[string]any {
	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "auditlog",
			"version": "1.0.0",
		},
		"paths": map[string]any{
			"/v1/audit/entries": map[string]any{
				"post": map[string]any{"summary": "Append an audit entry"},
				"get":  map[string]any{"summary": "Query audit entries"},
			},
			"/v1/audit/entries/{id}": map[string]any{
				"get": map[string]any{"summary": "Get an audit entry"},
			},
			"/v1/audit/entries/{id}/integrity": map[string]any{
				"get": map[string]any{"summary": "Verify an entry's checksum and chain linkage"},
			},
			"/v1/audit/resources/{resourceType}/{resourceID}/trail": map[string]any{
				"get": map[string]any{"summary": "Chronological trail for one resource"},
			},
			"/v1/audit/summary": map[string]any{
				"get": map[string]any{"summary": "Counts by action type, scope, actor and day"},
			},
			"/v1/audit/search": map[string]any{
				"get": map[string]any{"summary": "Search justifications"},
			},
			"/v1/audit/chains/{chainScope}/integrity": map[string]any{
				"get": map[string]any{"summary": "Verify a whole chain"},
			},
			"/v1/audit/immutability-check": map[string]any{
				"post": map[string]any{"summary": "Run the storage immutability self-test"},
			},
			"/v1/audit/snapshot-schemas/{resourceType}": map[string]any{
				"put":    map[string]any{"summary": "Upsert a snapshot schema"},
				"get":    map[string]any{"summary": "Get a snapshot schema"},
				"delete": map[string]any{"summary": "Delete a snapshot schema"},
			},
		},
	}
}
