// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package petstore

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/z5labs/tapestry/auth"
	"github.com/z5labs/tapestry/example/petstore/pet"
	"github.com/z5labs/tapestry/metadata"
	"github.com/z5labs/tapestry/openapi"
	"github.com/z5labs/tapestry/pipeline"
	"github.com/z5labs/tapestry/rest"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var signingKey = []byte("petstore-test-key")

func token(t *testing.T, subject string, scopes ...string) string {
	t.Helper()

	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Scope: strings.Join(scopes, " "),
	}

	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	require.NoError(t, err)
	return s
}

func build(t *testing.T) (*openapi.Build, *auth.Registry) {
	t.Helper()

	store := metadata.NewStore()
	require.NoError(t, Declare(store))

	reg, err := Authenticators(signingKey, map[string]string{"s3cret": "root"})
	require.NoError(t, err)

	b, err := openapi.Assemble(store, Info, reg, Controller(pet.NewStore()))
	require.NoError(t, err)
	return b, reg
}

func serve(t *testing.T) *httptest.Server {
	t.Helper()

	b, reg := build(t)
	api, err := rest.NewApi(b, rest.Authenticators(reg), rest.ValidateResponses(true))
	require.NoError(t, err)

	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, method, url, body string, header map[string]string) (*http.Response, []byte) {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func bearer(tok string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + tok}
}

func TestDeclare(t *testing.T) {
	t.Run("will publish every operation", func(t *testing.T) {
		b, _ := build(t)

		for _, route := range [][2]string{
			{http.MethodGet, "/pets"},
			{http.MethodPost, "/pets"},
			{http.MethodGet, "/pets/{id}"},
			{http.MethodDelete, "/pets/:id"},
		} {
			_, ok := b.Lookup(route[0], route[1])
			require.True(t, ok, "%s %s", route[0], route[1])
		}
	})

	t.Run("will publish the security schemes", func(t *testing.T) {
		b, _ := build(t)

		doc, err := b.Public()
		require.NoError(t, err)

		schemes := doc["components"].(map[string]any)["securitySchemes"].(map[string]any)
		require.Contains(t, schemes, JWTScheme)
		require.Contains(t, schemes, APIKeyScheme)

		op, ok := b.Lookup(http.MethodDelete, "/pets/{id}")
		require.True(t, ok)
		require.Equal(t, []map[string][]string{
			{JWTScheme: {WriteScope}},
			{APIKeyScheme: {}},
		}, op.Security)
	})
}

func TestPetstore(t *testing.T) {
	t.Run("will reject writes", func(t *testing.T) {
		srv := serve(t)

		t.Run("if no token is sent", func(t *testing.T) {
			resp, _ := call(t, http.MethodPost, srv.URL+"/pets", `{"name":"rex"}`, nil)
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})

		t.Run("if the token lacks the write scope", func(t *testing.T) {
			resp, _ := call(t, http.MethodPost, srv.URL+"/pets", `{"name":"rex"}`, bearer(token(t, "bob")))
			require.Equal(t, http.StatusForbidden, resp.StatusCode)
		})

		t.Run("if the body is invalid", func(t *testing.T) {
			resp, _ := call(t, http.MethodPost, srv.URL+"/pets", `{"tag":"dog"}`, bearer(token(t, "alice", WriteScope)))
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	})

	t.Run("will manage pets", func(t *testing.T) {
		srv := serve(t)
		writer := bearer(token(t, "alice", WriteScope))

		resp, b := call(t, http.MethodPost, srv.URL+"/pets", `{"name":"rex","tag":"dog"}`, writer)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		require.Equal(t, "/pets/1", resp.Header.Get("Location"))
		require.NotEmpty(t, resp.Header.Get(pipeline.RequestIDHeader))
		require.JSONEq(t, `{"id":1,"name":"rex","tag":"dog"}`, string(b))

		resp, _ = call(t, http.MethodPost, srv.URL+"/pets", `{"name":"tom","tag":"cat"}`, writer)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		resp, b = call(t, http.MethodGet, srv.URL+"/pets/1", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.JSONEq(t, `{"id":1,"name":"rex","tag":"dog"}`, string(b))

		resp, b = call(t, http.MethodGet, srv.URL+"/pets?tag=cat", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var pets []pet.Pet
		require.NoError(t, json.Unmarshal(b, &pets))
		require.Equal(t, []pet.Pet{{ID: 2, Name: "tom", Tag: "cat"}}, pets)

		resp, b = call(t, http.MethodGet, srv.URL+"/pets?limit=1", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, json.Unmarshal(b, &pets))
		require.Len(t, pets, 1)

		resp, _ = call(t, http.MethodDelete, srv.URL+"/pets/1", "", map[string]string{"X-Admin-Key": "s3cret"})
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, b = call(t, http.MethodGet, srv.URL+"/pets/1", "", nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)

		var pd rest.ProblemDetail
		require.NoError(t, json.Unmarshal(b, &pd))
		require.Equal(t, pet.ErrNotFound.Error(), pd.Detail)
	})

	t.Run("will reject an unknown admin key", func(t *testing.T) {
		srv := serve(t)

		resp, _ := call(t, http.MethodDelete, srv.URL+"/pets/1", "", map[string]string{"X-Admin-Key": "guess"})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}
