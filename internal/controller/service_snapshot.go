package controller

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/dgnsrekt/tv_annotator/internal/errcode"
	"github.com/dgnsrekt/tv_annotator/internal/snapshot"
)

// SnapshotStore persists rendered pane images.
type SnapshotStore interface {
	Save(meta snapshot.Meta, image []byte) (snapshot.Meta, error)
	Get(id string) (snapshot.Meta, error)
	List() ([]snapshot.Meta, error)
	ReadImage(id string) ([]byte, string, error)
	Delete(id string) error
}

func (s *Service) requireSnapshots() error {
	if s.snaps == nil {
		return &errcode.CodedError{Code: errcode.Unsupported, Message: "snapshot storage is not configured"}
	}
	return nil
}

// TakeSnapshot renders a surface and stores the image together with the
// session it belongs to.
func (s *Service) TakeSnapshot(ctx context.Context, surfaceID, notes string) (snapshot.Meta, error) {
	if err := s.requireSnapshots(); err != nil {
		return snapshot.Meta{}, err
	}
	img, err := s.RenderSurface(ctx, surfaceID)
	if err != nil {
		return snapshot.Meta{}, err
	}
	st, err := s.sess.Snapshot(ctx)
	if err != nil {
		return snapshot.Meta{}, err
	}
	return s.snaps.Save(snapshot.Meta{
		ID:          uuid.NewString(),
		SurfaceID:   strings.TrimSpace(surfaceID),
		SessionID:   st.SessionID,
		Symbol:      st.Symbol,
		Mode:        string(st.Mode),
		Annotations: len(st.Annotations),
		Notes:       strings.TrimSpace(notes),
	}, img)
}

func (s *Service) ListSnapshots(ctx context.Context) ([]snapshot.Meta, error) {
	if err := s.requireSnapshots(); err != nil {
		return nil, err
	}
	return s.snaps.List()
}

func (s *Service) GetSnapshot(ctx context.Context, id string) (snapshot.Meta, error) {
	if err := s.requireSnapshots(); err != nil {
		return snapshot.Meta{}, err
	}
	return s.snaps.Get(strings.TrimSpace(id))
}

// SnapshotImage returns the stored image bytes and their format.
func (s *Service) SnapshotImage(ctx context.Context, id string) ([]byte, string, error) {
	if err := s.requireSnapshots(); err != nil {
		return nil, "", err
	}
	return s.snaps.ReadImage(strings.TrimSpace(id))
}

func (s *Service) DeleteSnapshot(ctx context.Context, id string) error {
	if err := s.requireSnapshots(); err != nil {
		return err
	}
	return s.snaps.Delete(strings.TrimSpace(id))
}
