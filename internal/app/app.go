package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/smartattend/auditlog/internal/adapters/events"
	"github.com/smartattend/auditlog/internal/adapters/httpapi"
	sqliteadapter "github.com/smartattend/auditlog/internal/adapters/sqlite"
	"github.com/smartattend/auditlog/internal/adapters/sqlite/gormsqlite"
	"github.com/smartattend/auditlog/internal/core/domain"
	"github.com/smartattend/auditlog/internal/core/ports"
	"github.com/smartattend/auditlog/internal/core/usecase"
	"github.com/smartattend/auditlog/migrations"
)

type Config struct {
	Addr   string
	DBPath string

	// ChainScopeMode is "global" or "per-tenant". It must not change for
	// the lifetime of a store.
	ChainScopeMode string

	BootstrapAPIKey  string
	BootstrapTenant  string
	BootstrapKeyName string
	BootstrapKeyRole string

	AlertWebhookURL    string
	AlertWebhookSecret string
}

type resourceCloser struct {
	closers []io.Closer
}

func (r resourceCloser) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func NewServer(ctx context.Context, cfg Config) (*http.Server, io.Closer, error) {
	scoping, err := parseChainScopeMode(cfg.ChainScopeMode)
	if err != nil {
		return nil, nil, err
	}

	db, err := gormsqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit sqlite: %w", err)
	}

	writeSQLDB, err := db.WriteSQLDB()
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("resolve writer sql db: %w", err)
	}

	migrateCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := migrations.Up(migrateCtx, writeSQLDB); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	auditRepo := sqliteadapter.NewAuditLogRepository(db, scoping)
	apiKeyRepo := sqliteadapter.NewAPIKeyRepository(db)
	schemaRepo := sqliteadapter.NewSnapshotSchemaRepository(db)
	alertRepo := sqliteadapter.NewAlertOutboxRepository(db)

	schemaService := usecase.NewSnapshotSchemaService(schemaRepo)
	recorderService := usecase.NewRecorderService(auditRepo, schemaService)
	queryService := usecase.NewQueryService(auditRepo, usecase.NewRuleOwnershipResolver())
	summaryService := usecase.NewSummaryService(auditRepo)
	integrityService := usecase.NewIntegrityService(auditRepo, alertRepo)
	immutabilityService := usecase.NewImmutabilityService(auditRepo, alertRepo)
	authService := usecase.NewAuthService(apiKeyRepo)

	var publisher ports.AlertPublisher = events.NewLogPublisher()
	if cfg.AlertWebhookURL != "" {
		publisher = events.NewWebhookPublisher(cfg.AlertWebhookURL, cfg.AlertWebhookSecret, 0)
	}
	dispatcher := usecase.NewAlertDispatcher(alertRepo, publisher, 2*time.Second, 100)
	dispatcher.Start(context.Background())

	if cfg.BootstrapAPIKey != "" {
		if err := bootstrapKey(cfg, apiKeyRepo); err != nil {
			_ = dispatcher.Close()
			_ = db.Close()
			return nil, nil, err
		}
	}

	handler := httpapi.NewHandler(
		recorderService,
		queryService,
		summaryService,
		integrityService,
		immutabilityService,
		schemaService,
		authService,
	)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return server, resourceCloser{closers: []io.Closer{dispatcher, db}}, nil
}

func parseChainScopeMode(mode string) (domain.ChainScoping, error) {
	switch mode {
	case "", "global":
		return domain.ChainGlobal, nil
	case "per-tenant":
		return domain.ChainPerTenant, nil
	default:
		return 0, fmt.Errorf("unknown chain scope mode %q (want global or per-tenant)", mode)
	}
}

func bootstrapKey(cfg Config, apiKeyRepo *sqliteadapter.APIKeyRepository) error {
	tenant := cfg.BootstrapTenant
	if tenant == "" {
		tenant = "default"
	}
	name := cfg.BootstrapKeyName
	if name == "" {
		name = "bootstrap"
	}
	role := domain.Role(cfg.BootstrapKeyRole)
	if role == "" {
		role = domain.RoleAuditor
	}
	if !role.Valid() {
		return fmt.Errorf("invalid bootstrap key role %q", cfg.BootstrapKeyRole)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := apiKeyRepo.Upsert(ctx, domain.APIKey{
		TokenHash: usecase.HashToken(cfg.BootstrapAPIKey),
		TenantID:  tenant,
		Name:      name,
		Role:      role,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("bootstrap api key: %w", err)
	}
	return nil
}
