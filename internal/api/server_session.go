package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/tv_annotator/internal/annotation"
	"github.com/dgnsrekt/tv_annotator/internal/session"
)

func registerSessionHandlers(api huma.API, svc Service) {
	type stateOutput struct {
		Body session.Snapshot
	}
	huma.Register(api, huma.Operation{OperationID: "get-state", Method: http.MethodGet, Path: "/api/v1/state", Summary: "Get mode, selection, buffer, preview and annotations", Tags: []string{"Session"}},
		func(ctx context.Context, input *struct{}) (*stateOutput, error) {
			snap, err := svc.State(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &stateOutput{Body: snap}, nil
		})

	type annotationsOutput struct {
		Body struct {
			Annotations []annotation.Annotation `json:"annotations"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-annotations", Method: http.MethodGet, Path: "/api/v1/annotations", Summary: "List committed annotations in store order", Tags: []string{"Annotations"}},
		func(ctx context.Context, input *struct{}) (*annotationsOutput, error) {
			anns, err := svc.Annotations(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &annotationsOutput{}
			out.Body.Annotations = anns
			return out, nil
		})

	type modeInput struct {
		Body struct {
			Mode string `json:"mode" required:"true" doc:"trendline, horizontal or sixpoint; the active mode toggles back to none"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "toggle-mode", Method: http.MethodPost, Path: "/api/v1/mode", Summary: "Toggle an authoring mode", Tags: []string{"Session"}},
		func(ctx context.Context, input *modeInput) (*resultOutput, error) {
			res, err := svc.ToggleMode(ctx, input.Body.Mode)
			if err != nil {
				return nil, mapErr(err)
			}
			return &resultOutput{Body: res}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "reset", Method: http.MethodPost, Path: "/api/v1/reset", Summary: "Remove every annotation and preview", Tags: []string{"Session"}},
		func(ctx context.Context, input *struct{}) (*resultOutput, error) {
			res, err := svc.Reset(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &resultOutput{Body: res}, nil
		})

	type indexInput struct {
		Index int `path:"index" minimum:"0" doc:"Annotation index in store order"`
	}
	huma.Register(api, huma.Operation{OperationID: "select-annotation", Method: http.MethodPut, Path: "/api/v1/annotations/{index}/selected", Summary: "Select an annotation of any kind by index", Tags: []string{"Annotations"}},
		func(ctx context.Context, input *indexInput) (*resultOutput, error) {
			res, err := svc.SelectAnnotation(ctx, input.Index)
			if err != nil {
				return nil, mapErr(err)
			}
			return &resultOutput{Body: res}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "delete-selected", Method: http.MethodDelete, Path: "/api/v1/annotations/selected", Summary: "Delete the selected annotation", Tags: []string{"Annotations"}},
		func(ctx context.Context, input *struct{}) (*resultOutput, error) {
			res, err := svc.DeleteSelected(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &resultOutput{Body: res}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "copy-selected", Method: http.MethodPost, Path: "/api/v1/annotations/selected/copy", Summary: "Start placing a copy of the selected line", Tags: []string{"Annotations"}},
		func(ctx context.Context, input *struct{}) (*resultOutput, error) {
			res, err := svc.CopySelected(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &resultOutput{Body: res}, nil
		})

	type symbolInput struct {
		Body struct {
			Symbol string `json:"symbol" required:"true"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "switch-symbol", Method: http.MethodPut, Path: "/api/v1/symbol", Summary: "Switch instrument and start a fresh session", Tags: []string{"Session"}},
		func(ctx context.Context, input *symbolInput) (*resultOutput, error) {
			res, err := svc.SwitchSymbol(ctx, input.Body.Symbol)
			if err != nil {
				return nil, mapErr(err)
			}
			return &resultOutput{Body: res}, nil
		})
}
