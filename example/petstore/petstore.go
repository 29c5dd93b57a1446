// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package petstore declares a small pet registry API with tapestry.
package petstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/z5labs/tapestry"
	"github.com/z5labs/tapestry/auth"
	"github.com/z5labs/tapestry/example/petstore/pet"
	"github.com/z5labs/tapestry/httperr"
	"github.com/z5labs/tapestry/metadata"
	"github.com/z5labs/tapestry/openapi"
	"github.com/z5labs/tapestry/pipeline"

	"github.com/swaggest/openapi-go/openapi3"
)

// Target identifies the pets controller.
const Target metadata.Target = "pets"

// Security scheme names.
const (
	JWTScheme    = "jwt"
	APIKeyScheme = "adminKey"
)

// WriteScope is required to modify pets with a token.
const WriteScope = "pets:write"

// Info describes the petstore document.
var Info = openapi.Info{
	Title:       "Petstore",
	Version:     "1.0.0",
	Description: "A registry of pets.",
}

// Admin is the principal of requests authenticated with an admin key.
type Admin struct {
	Name string
}

// Authenticators returns the registry of the petstore security schemes.
// Tokens are HS256 signed with key and admin keys map to their owner.
func Authenticators(key []byte, adminKeys map[string]string) (*auth.Registry, error) {
	admins := make(map[string]any, len(adminKeys))
	for k, name := range adminKeys {
		admins[k] = Admin{Name: name}
	}

	return auth.NewRegistry(
		auth.JWT(JWTScheme, key),
		auth.APIKey(APIKeyScheme, "X-Admin-Key", "header", admins),
	)
}

// Declare registers the metadata of every pets operation in store.
func Declare(store *metadata.Store) error {
	petSchema := openapi.MustSchemaOf[pet.Pet]()
	idSchema := openapi.Integer()

	return errors.Join(
		store.MergeController(Target,
			metadata.Path("/pets"),
			metadata.Tags("pets"),
			metadata.Use(pipeline.RequestID),
			metadata.UseFactory(pipeline.Instrument),
		),
		store.MergeHandler(Target, "list",
			metadata.Route(http.MethodGet, "/"),
			metadata.Summary("List pets"),
			metadata.BindQuery(0, "tag", openapi.String(), false),
			metadata.BindQuery(1, "limit", openapi.Integer(), false),
			metadata.JSONResponse("200", "The registered pets.", openapi.MustSchemaOf[[]pet.Pet]()),
		),
		store.MergeHandler(Target, "get",
			metadata.Route(http.MethodGet, "/{id}"),
			metadata.Summary("Get a pet"),
			metadata.BindPath(0, "id", idSchema),
			metadata.JSONResponse("200", "The pet.", petSchema),
			metadata.Response("404", openapi3.Response{Description: "No pet has the id."}),
		),
		store.MergeHandler(Target, "create",
			metadata.Route(http.MethodPost, "/"),
			metadata.Summary("Register a pet"),
			metadata.RequireAuthentication(JWTScheme, WriteScope),
			metadata.BindBody(0, "application/json", petSchema, true),
			metadata.JSONResponse("201", "The registered pet.", petSchema),
		),
		store.MergeHandler(Target, "delete",
			metadata.Route(http.MethodDelete, "/{id}"),
			metadata.Summary("Remove a pet"),
			metadata.RequireAuthentication(JWTScheme, WriteScope),
			metadata.RequireAuthentication(APIKeyScheme),
			metadata.BindPath(0, "id", idSchema),
			metadata.Response("204", openapi3.Response{Description: "The pet was removed."}),
			metadata.Response("404", openapi3.Response{Description: "No pet has the id."}),
		),
	)
}

type controller struct {
	log  *slog.Logger
	pets *pet.Store
}

// Controller returns the pets controller backed by pets.
func Controller(pets *pet.Store) openapi.Controller {
	c := &controller{
		log:  tapestry.Logger("github.com/z5labs/tapestry/example/petstore"),
		pets: pets,
	}

	return openapi.Handlers(Target, map[string]pipeline.Handler{
		"list":   pipeline.Func2(c.list),
		"get":    pipeline.Func1(c.get),
		"create": pipeline.Func1(c.create),
		"delete": pipeline.Func1(c.delete),
	})
}

func (c *controller) list(ctx context.Context, tag string, limit int) ([]pet.Pet, error) {
	return c.pets.List(ctx, tag, limit)
}

func (c *controller) get(ctx context.Context, id int64) (pet.Pet, error) {
	p, err := c.pets.Get(ctx, id)
	if errors.Is(err, pet.ErrNotFound) {
		return pet.Pet{}, httperr.Wrap(http.StatusNotFound, err)
	}
	return p, err
}

func (c *controller) create(ctx context.Context, p pet.Pet) (*pipeline.Result, error) {
	p, err := c.pets.Add(ctx, p)
	if err != nil {
		return nil, err
	}

	attrs := []any{slog.Int64("pet_id", p.ID)}
	if claims, ok := principal[*auth.Claims](ctx); ok {
		attrs = append(attrs, slog.String("subject", claims.Subject))
	}
	c.log.InfoContext(ctx, "registered pet", attrs...)

	return pipeline.NewResult(http.StatusCreated, p).
		WithHeader("Location", fmt.Sprintf("/pets/%d", p.ID)), nil
}

func (c *controller) delete(ctx context.Context, id int64) (*pipeline.Result, error) {
	err := c.pets.Delete(ctx, id)
	if errors.Is(err, pet.ErrNotFound) {
		return nil, httperr.Wrap(http.StatusNotFound, err)
	}
	if err != nil {
		return nil, err
	}

	if admin, ok := principal[Admin](ctx); ok {
		c.log.InfoContext(ctx, "admin removed pet", slog.String("admin", admin.Name), slog.Int64("pet_id", id))
	}
	return pipeline.NewResult(http.StatusNoContent, nil), nil
}

func principal[T any](ctx context.Context) (T, bool) {
	p, ok := auth.PrincipalFrom(ctx)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := p.(T)
	return t, ok
}
