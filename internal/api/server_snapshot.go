package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/tv_annotator/internal/snapshot"
)

func registerSnapshotHandlers(api huma.API, svc Service) {
	type takeInput struct {
		SurfaceID string `path:"surface_id"`
		Body      struct {
			Notes string `json:"notes,omitempty" doc:"Free-form note stored with the snapshot"`
		}
	}
	type metaOutput struct {
		Body snapshot.Meta
	}
	huma.Register(api, huma.Operation{OperationID: "take-snapshot", Method: http.MethodPost, Path: "/api/v1/surfaces/{surface_id}/snapshots", Summary: "Render a surface and store the image", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *takeInput) (*metaOutput, error) {
			meta, err := svc.TakeSnapshot(ctx, input.SurfaceID, input.Body.Notes)
			if err != nil {
				return nil, mapErr(err)
			}
			return &metaOutput{Body: meta}, nil
		})

	type listOutput struct {
		Body struct {
			Snapshots []snapshot.Meta `json:"snapshots"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-snapshots", Method: http.MethodGet, Path: "/api/v1/snapshots", Summary: "List stored snapshots, newest first", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *struct{}) (*listOutput, error) {
			list, err := svc.ListSnapshots(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listOutput{}
			out.Body.Snapshots = list
			if out.Body.Snapshots == nil {
				out.Body.Snapshots = []snapshot.Meta{}
			}
			return out, nil
		})

	type idInput struct {
		ID string `path:"snapshot_id"`
	}
	huma.Register(api, huma.Operation{OperationID: "get-snapshot", Method: http.MethodGet, Path: "/api/v1/snapshots/{snapshot_id}", Summary: "Get snapshot metadata", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *idInput) (*metaOutput, error) {
			meta, err := svc.GetSnapshot(ctx, input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &metaOutput{Body: meta}, nil
		})

	type imageOutput struct {
		ContentType string `header:"Content-Type"`
		Body        []byte
	}
	huma.Register(api, huma.Operation{OperationID: "get-snapshot-image", Method: http.MethodGet, Path: "/api/v1/snapshots/{snapshot_id}/image", Summary: "Download the snapshot image", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *idInput) (*imageOutput, error) {
			data, format, err := svc.SnapshotImage(ctx, input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &imageOutput{ContentType: "image/" + format, Body: data}, nil
		})

	type deleteOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "delete-snapshot", Method: http.MethodDelete, Path: "/api/v1/snapshots/{snapshot_id}", Summary: "Delete a stored snapshot", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *idInput) (*deleteOutput, error) {
			if err := svc.DeleteSnapshot(ctx, input.ID); err != nil {
				return nil, mapErr(err)
			}
			out := &deleteOutput{}
			out.Body.Status = "deleted"
			return out, nil
		})
}
