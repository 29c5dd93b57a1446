// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package rest serves the operations of an assembled [openapi.Build].
//
// # Overview
//
// Every operation is compiled into a pipeline once, when it is registered:
//
//	bind arguments -> authenticate -> middleware -> handler -> dispatch
//
// A request which fails to bind or authenticate never reaches any
// middleware or the handler. Every failure is reported to the configured
// [ErrorHandler], which defaults to RFC 7807 problem details.
//
// # Quick Start
//
//	store := metadata.NewStore()
//	store.MustMergeHandler("books", "get",
//	    metadata.Route(http.MethodGet, "/books/:id"),
//	    metadata.BindPath(0, "id", openapi.Integer()),
//	    metadata.JSONResponse("200", "a book", openapi.MustSchemaOf[Book]()),
//	)
//
//	b, err := openapi.Assemble(store, openapi.Info{Title: "Bookstore", Version: "v1"}, nil,
//	    openapi.Handlers("books", map[string]pipeline.Handler{
//	        "get": pipeline.Func1(getBook),
//	    }),
//	)
//	if err != nil {
//	    return err
//	}
//
//	api, err := rest.NewApi(b)
//	if err != nil {
//	    return err
//	}
//	http.ListenAndServe(":8080", api)
//
// The API also serves the published document at GET /openapi.json and
// health probes at GET /health/liveness and GET /health/readiness.
package rest
