package storage

import (
	"context"

	"github.com/Comcast/surface/control"
)

type NoopStorage struct {
}

func (s *NoopStorage) MakeSurface(ctx context.Context, sid string) error {
	return nil
}

func (s *NoopStorage) RemSurface(ctx context.Context, sid string) error {
	return nil
}

func (s *NoopStorage) GetSurface(ctx context.Context, sid string) ([]*control.Data, error) {
	return nil, nil
}

func (s *NoopStorage) WriteState(ctx context.Context, sid string, cs []*ControlState) error {
	return nil
}

func (s *NoopStorage) Open(ctx context.Context) error {
	return nil
}

func (s *NoopStorage) Close(ctx context.Context) error {
	return nil
}
