package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/tv_annotator/internal/controller"
	"github.com/dgnsrekt/tv_annotator/internal/geometry"
	"github.com/dgnsrekt/tv_annotator/internal/session"
)

func registerSurfaceHandlers(api huma.API, svc Service) {
	type surfacesOutput struct {
		Body struct {
			Surfaces []controller.SurfaceInfo `json:"surfaces"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-surfaces", Method: http.MethodGet, Path: "/api/v1/surfaces", Summary: "List chart surfaces (panes)", Tags: []string{"Surfaces"}},
		func(ctx context.Context, input *struct{}) (*surfacesOutput, error) {
			list, err := svc.ListSurfaces(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &surfacesOutput{}
			out.Body.Surfaces = list
			return out, nil
		})

	type eventInput struct {
		SurfaceID string `path:"surface_id"`
		Body      controller.SurfaceEvent
	}
	type snapshotOutput struct {
		Body session.Snapshot
	}
	huma.Register(api, huma.Operation{OperationID: "inject-surface-event", Method: http.MethodPost, Path: "/api/v1/surfaces/{surface_id}/events", Summary: "Inject pointer, crosshair or range input into a headless surface", Tags: []string{"Surfaces"}},
		func(ctx context.Context, input *eventInput) (*snapshotOutput, error) {
			snap, err := svc.InjectEvent(ctx, input.SurfaceID, input.Body)
			if err != nil {
				return nil, mapErr(err)
			}
			return &snapshotOutput{Body: snap}, nil
		})

	type dataInput struct {
		SurfaceID string `path:"surface_id"`
		Body      struct {
			Points []geometry.Point `json:"points" required:"true"`
		}
	}
	type dataOutput struct {
		Body struct {
			SurfaceID string `json:"surface_id"`
			Count     int    `json:"count"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "set-surface-data", Method: http.MethodPut, Path: "/api/v1/surfaces/{surface_id}/data", Summary: "Load the primary series of a headless surface", Tags: []string{"Surfaces"}},
		func(ctx context.Context, input *dataInput) (*dataOutput, error) {
			n, err := svc.SetSurfaceData(ctx, input.SurfaceID, input.Body.Points)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &dataOutput{}
			out.Body.SurfaceID = input.SurfaceID
			out.Body.Count = n
			return out, nil
		})

	type pngOutput struct {
		ContentType string `header:"Content-Type"`
		Body        []byte
	}
	huma.Register(api, huma.Operation{OperationID: "render-surface", Method: http.MethodGet, Path: "/api/v1/surfaces/{surface_id}/render.png", Summary: "Render a headless surface as PNG", Tags: []string{"Surfaces"}},
		func(ctx context.Context, input *surfaceIDInput) (*pngOutput, error) {
			data, err := svc.RenderSurface(ctx, input.SurfaceID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &pngOutput{ContentType: "image/png", Body: data}, nil
		})
}
