package httpapi

import (
	"github.com/google/uuid"

	"github.com/dmitrymomot/nutrilabel/handler"
	"github.com/dmitrymomot/nutrilabel/internal/plan"
	"github.com/dmitrymomot/nutrilabel/internal/resource"
)

type resourceID struct {
	ID string `path:"id"`
}

func (r resourceID) parse() (uuid.UUID, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return uuid.Nil, resource.ErrNotFound
	}
	return id, nil
}

type qrImageRequest struct {
	ID   string `path:"id"`
	Size int    `query:"size"`
}

func (a *api) listResources(kind plan.Resource) handler.HandlerFunc[struct{}] {
	return func(ctx handler.Context, _ struct{}) handler.Response {
		items, err := a.Resources.List(ctx, accountOf(ctx).ID, kind)
		if err != nil {
			return handler.Error(err)
		}
		return handler.JSON(items)
	}
}

func (a *api) createResource(kind plan.Resource) handler.HandlerFunc[resource.CreateInput] {
	return func(ctx handler.Context, req resource.CreateInput) handler.Response {
		item, err := a.Resources.Create(ctx, accountOf(ctx).ID, kind, req)
		if err != nil {
			return handler.Error(err)
		}
		return handler.Created(item)
	}
}

func (a *api) getResource(kind plan.Resource) handler.HandlerFunc[resourceID] {
	return func(ctx handler.Context, req resourceID) handler.Response {
		id, err := req.parse()
		if err != nil {
			return handler.Error(err)
		}
		item, err := a.Resources.Get(ctx, accountOf(ctx).ID, kind, id)
		if err != nil {
			return handler.Error(err)
		}
		return handler.JSON(item)
	}
}

func (a *api) deleteResource(kind plan.Resource) handler.HandlerFunc[resourceID] {
	return func(ctx handler.Context, req resourceID) handler.Response {
		id, err := req.parse()
		if err != nil {
			return handler.Error(err)
		}
		if err := a.Resources.Delete(ctx, accountOf(ctx).ID, kind, id); err != nil {
			return handler.Error(err)
		}
		return handler.Empty()
	}
}

func (a *api) qrImage(ctx handler.Context, req qrImageRequest) handler.Response {
	id, err := resourceID{ID: req.ID}.parse()
	if err != nil {
		return handler.Error(err)
	}
	png, err := a.Resources.QRImage(ctx, accountOf(ctx).ID, id, req.Size)
	if err != nil {
		return handler.Error(err)
	}
	return handler.Blob("image/png", png)
}
