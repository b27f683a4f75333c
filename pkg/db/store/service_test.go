package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type lifecycleStorage struct {
	*MemoryStore
	connectErr error
	migrateErr error
	closed     int
}

func (s *lifecycleStorage) Connect(context.Context) error { return s.connectErr }

func (s *lifecycleStorage) Migrate(context.Context) error { return s.migrateErr }

func (s *lifecycleStorage) Close() error {
	s.closed++
	return nil
}

func TestService_Init(t *testing.T) {
	errConnect := errors.New("database is locked")
	errMigrate := errors.New("no such table")

	tests := []struct {
		name       string
		connectErr error
		migrateErr error
		wantErr    error
		wantClosed int
	}{
		{name: "ok"},
		{name: "connect fails", connectErr: errConnect, wantErr: errConnect, wantClosed: 1},
		{name: "migrate fails", migrateErr: errMigrate, wantErr: errMigrate, wantClosed: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &lifecycleStorage{
				MemoryStore: NewMemoryStore(),
				connectErr:  tt.connectErr,
				migrateErr:  tt.migrateErr,
			}

			err := NewService(backend).Init(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantClosed, backend.closed)
		})
	}
}

func TestService_CleanupCloses(t *testing.T) {
	backend := &lifecycleStorage{MemoryStore: NewMemoryStore()}
	service := NewService(backend)

	assert.NoError(t, service.Init(context.Background()))
	assert.NoError(t, service.Cleanup(context.Background()))
	assert.Equal(t, 1, backend.closed)
}
