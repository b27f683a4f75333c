package store

import (
	"context"
	"errors"
	"fmt"
)

// Service ties a Storage backend to a service lifecycle. Init connects and
// migrates the backend, Cleanup closes it.
type Service struct {
	Storage
}

func NewService(storage Storage) *Service {
	return &Service{Storage: storage}
}

// Init connects and migrates the backend. The backend is closed again if
// either step fails.
func (s *Service) Init(ctx context.Context) error {
	if err := s.Connect(ctx); err != nil {
		return errors.Join(fmt.Errorf("failed to connect storage: %w", err), s.Close())
	}
	if err := s.Migrate(ctx); err != nil {
		return errors.Join(fmt.Errorf("failed to migrate storage: %w", err), s.Close())
	}
	return nil
}

func (s *Service) Cleanup(ctx context.Context) error {
	return s.Close()
}
