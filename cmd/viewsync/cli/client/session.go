package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	config "github.com/mwantia/viewsync/internal/config/server"
	"github.com/mwantia/viewsync/internal/permissions"
	"github.com/mwantia/viewsync/internal/views"
	"github.com/mwantia/viewsync/pkg/db/store"
	"github.com/mwantia/viewsync/pkg/log"
)

// session bundles what a one-shot client command needs: configuration,
// an opened storage backend and the caller's permissions.
type session struct {
	cfg     *config.BaseServerConfig
	logger  *log.LoggerServiceImpl
	log     log.LoggerService
	storage store.Storage
	checker permissions.Checker
}

func openSession(ctx context.Context, role string) (*session, error) {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if role == "" {
		role = cfg.Permissions.Role
	}
	parsed, err := permissions.ParseRole(role)
	if err != nil {
		return nil, err
	}

	storage, err := store.Open(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	service := store.NewService(storage)
	if err := service.Init(ctx); err != nil {
		return nil, err
	}

	logger := log.NewLoggerService("client", cfg.Log)
	return &session{
		cfg:     cfg,
		logger:  logger,
		log:     logger,
		storage: service,
		checker: permissions.Checker{Role: parsed},
	}, nil
}

func (s *session) Close() error {
	return errors.Join(s.storage.Close(), s.logger.Close())
}

func (s *session) schema(table string) (views.Schema, error) {
	schema, err := views.ParseSchema(s.cfg.Views.Schema[table])
	if err != nil {
		return nil, fmt.Errorf("invalid schema for table '%s': %w", table, err)
	}
	return schema, nil
}

// mount returns a mounted synchronizer whose address bar starts at query.
func (s *session) mount(ctx context.Context, table, query string) (*views.Synchronizer, *views.History, error) {
	schema, err := s.schema(table)
	if err != nil {
		return nil, nil, err
	}

	history := views.NewHistory(query)
	synchronizer := views.New(table, s.storage, history,
		views.WithLogger(s.log.Named(table)),
		views.WithMaxViews(s.cfg.Views.MaxViews),
		views.WithKeyPrefix(s.cfg.Views.KeyPrefix),
		views.WithSchema(schema),
	)
	if err := synchronizer.Mount(ctx); err != nil {
		return nil, nil, err
	}
	return synchronizer, history, nil
}

// parseAssignments turns "key=value" arguments into a filter patch. An empty
// value clears the key.
func parseAssignments(schema views.Schema, args []string) (views.FilterState, error) {
	patch := views.FilterState{}
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter '%s', expected key=value", arg)
		}
		if key == views.ViewParam {
			return nil, fmt.Errorf("'%s' is reserved for the active view", views.ViewParam)
		}
		if raw == "" {
			patch[key] = views.Null()
			continue
		}
		patch[key] = schema.DecodeValue(key, raw)
	}
	return patch, nil
}
