// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/z5labs/tapestry/httperr"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func staticAuth(name string, principal any, err error) Authenticator {
	return New(name, BearerScheme(""), func(ctx context.Context, credential string, scopes []string, r *http.Request) (any, error) {
		return principal, err
	})
}

func bearerRequest(token string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func TestRegistry_Register(t *testing.T) {
	t.Run("will return an EmptyNameError", func(t *testing.T) {
		t.Run("if the authenticator has no name", func(t *testing.T) {
			_, err := NewRegistry(staticAuth("", "p", nil))

			var eerr EmptyNameError
			require.ErrorAs(t, err, &eerr)
		})
	})

	t.Run("will return a ConflictingSchemeError", func(t *testing.T) {
		t.Run("if two authenticators share a name with different schemes", func(t *testing.T) {
			_, err := NewRegistry(
				APIKey("key", "X-API-Key", "header", nil),
				APIKey("key", "api_key", "query", nil),
			)

			var cerr ConflictingSchemeError
			require.ErrorAs(t, err, &cerr)
			require.Equal(t, "key", cerr.Name)
		})
	})

	t.Run("will accept the same scheme registered twice", func(t *testing.T) {
		reg, err := NewRegistry(
			APIKey("key", "X-API-Key", "header", nil),
			APIKey("key", "X-API-Key", "header", nil),
		)
		require.NoError(t, err)
		require.Equal(t, []string{"key"}, reg.Names())
	})
}

func TestRegistry_Authenticate(t *testing.T) {
	t.Run("will not authenticate a route without security requirements", func(t *testing.T) {
		reg, err := NewRegistry()
		require.NoError(t, err)

		p, err := reg.Authenticate(context.Background(), nil, bearerRequest(""))
		require.NoError(t, err)
		require.Nil(t, p)
	})

	t.Run("will return the principal", func(t *testing.T) {
		reg, err := NewRegistry(staticAuth("bearer", "alice", nil))
		require.NoError(t, err)

		p, err := reg.Authenticate(context.Background(), []map[string][]string{{"bearer": {}}}, bearerRequest("abc"))
		require.NoError(t, err)
		require.Equal(t, "alice", p)
	})

	t.Run("will return 401", func(t *testing.T) {
		t.Run("if the authenticator returns nil", func(t *testing.T) {
			reg, err := NewRegistry(staticAuth("bearer", nil, nil))
			require.NoError(t, err)

			_, err = reg.Authenticate(context.Background(), []map[string][]string{{"bearer": {}}}, bearerRequest("abc"))
			require.Equal(t, http.StatusUnauthorized, httperr.StatusOf(err))

			var rerr RejectedError
			require.ErrorAs(t, err, &rerr)
		})

		t.Run("if the authenticator returns false", func(t *testing.T) {
			reg, err := NewRegistry(staticAuth("bearer", false, nil))
			require.NoError(t, err)

			_, err = reg.Authenticate(context.Background(), []map[string][]string{{"bearer": {}}}, bearerRequest("abc"))
			require.Equal(t, http.StatusUnauthorized, httperr.StatusOf(err))
		})

		t.Run("before invoking the authenticator if the credential is missing", func(t *testing.T) {
			called := false
			a := New("bearer", BearerScheme(""), func(ctx context.Context, credential string, scopes []string, r *http.Request) (any, error) {
				called = true
				return "p", nil
			})
			reg, err := NewRegistry(a)
			require.NoError(t, err)

			_, err = reg.Authenticate(context.Background(), []map[string][]string{{"bearer": {}}}, bearerRequest(""))
			require.Equal(t, http.StatusUnauthorized, httperr.StatusOf(err))
			require.False(t, called)

			var merr MissingCredentialError
			require.ErrorAs(t, err, &merr)
		})

		t.Run("if the bearer prefix has the wrong case", func(t *testing.T) {
			reg, err := NewRegistry(staticAuth("bearer", "p", nil))
			require.NoError(t, err)

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set("Authorization", "bearer abc")

			_, err = reg.Authenticate(context.Background(), []map[string][]string{{"bearer": {}}}, r)
			require.Equal(t, http.StatusUnauthorized, httperr.StatusOf(err))

			var merr MalformedCredentialError
			require.ErrorAs(t, err, &merr)
		})
	})

	t.Run("will use the status chosen by the authenticator", func(t *testing.T) {
		reg, err := NewRegistry(staticAuth("bearer", nil, httperr.New(http.StatusForbidden, "nope")))
		require.NoError(t, err)

		_, err = reg.Authenticate(context.Background(), []map[string][]string{{"bearer": {}}}, bearerRequest("abc"))
		require.Equal(t, http.StatusForbidden, httperr.StatusOf(err))
	})

	t.Run("will propagate an unrecognized error", func(t *testing.T) {
		authErr := errors.New("database down")
		reg, err := NewRegistry(
			staticAuth("a", nil, authErr),
			staticAuth("b", "p", nil),
		)
		require.NoError(t, err)

		_, err = reg.Authenticate(context.Background(), []map[string][]string{{"a": {}}, {"b": {}}}, bearerRequest("abc"))
		require.ErrorIs(t, err, authErr)
	})

	t.Run("will accept any successful alternative", func(t *testing.T) {
		reg, err := NewRegistry(
			staticAuth("a", nil, nil),
			staticAuth("b", "bob", nil),
		)
		require.NoError(t, err)

		p, err := reg.Authenticate(context.Background(), []map[string][]string{{"a": {}}, {"b": {}}}, bearerRequest("abc"))
		require.NoError(t, err)
		require.Equal(t, "bob", p)
	})

	t.Run("will require every scheme within an alternative", func(t *testing.T) {
		reg, err := NewRegistry(
			staticAuth("a", "alice", nil),
			staticAuth("b", nil, nil),
		)
		require.NoError(t, err)

		_, err = reg.Authenticate(context.Background(), []map[string][]string{{"a": {}, "b": {}}}, bearerRequest("abc"))
		require.Equal(t, http.StatusUnauthorized, httperr.StatusOf(err))
	})

	t.Run("will collect principals of a multi scheme alternative", func(t *testing.T) {
		reg, err := NewRegistry(
			staticAuth("a", "alice", nil),
			staticAuth("b", "bob", nil),
		)
		require.NoError(t, err)

		p, err := reg.Authenticate(context.Background(), []map[string][]string{{"a": {}, "b": {}}}, bearerRequest("abc"))
		require.NoError(t, err)
		require.Equal(t, Principals{"a": "alice", "b": "bob"}, p)
	})
}

func TestExtract(t *testing.T) {
	t.Run("will read an api key from a cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: "session", Value: "s3cr3t"})

		cred, err := Extract(APIKeyScheme("session", "cookie"), r)
		require.NoError(t, err)
		require.Equal(t, "s3cr3t", cred)
	})

	t.Run("will read an api key from the query", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/?api_key=k", nil)

		cred, err := Extract(APIKeyScheme("api_key", "query"), r)
		require.NoError(t, err)
		require.Equal(t, "k", cred)
	})

	t.Run("will decode basic credentials", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("user:pass")))

		cred, err := Extract(BasicScheme(), r)
		require.NoError(t, err)

		user, pass, ok := BasicCredentials(cred)
		require.True(t, ok)
		require.Equal(t, "user", user)
		require.Equal(t, "pass", pass)
	})

	t.Run("will return a MalformedCredentialError", func(t *testing.T) {
		t.Run("if the bearer token is empty", func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set("Authorization", "Bearer ")

			_, err := Extract(BearerScheme("JWT"), r)

			var merr MalformedCredentialError
			require.ErrorAs(t, err, &merr)
		})
	})
}

func TestJWT(t *testing.T) {
	key := []byte("test-secret")

	sign := func(t *testing.T, method jwt.SigningMethod, claims Claims) string {
		t.Helper()

		s, err := jwt.NewWithClaims(method, &claims).SignedString(key)
		require.NoError(t, err)
		return s
	}

	valid := func() Claims {
		return Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "tapestry",
				Subject:   "42",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			Scope: "pets:read pets:write",
		}
	}

	a := JWT("jwt", key, Issuer("tapestry"))

	t.Run("will return the claims of a valid token", func(t *testing.T) {
		token := sign(t, jwt.SigningMethodHS256, valid())

		p, err := a.Authenticate(context.Background(), token, []string{"pets:read"}, bearerRequest(token))
		require.NoError(t, err)

		claims, ok := p.(*Claims)
		require.True(t, ok)
		require.Equal(t, "42", claims.Subject)
	})

	t.Run("will return 401", func(t *testing.T) {
		t.Run("if the issuer does not match", func(t *testing.T) {
			c := valid()
			c.Issuer = "someone-else"
			token := sign(t, jwt.SigningMethodHS256, c)

			_, err := a.Authenticate(context.Background(), token, nil, bearerRequest(token))
			require.Equal(t, http.StatusUnauthorized, httperr.StatusOf(err))
		})

		t.Run("if the token is expired", func(t *testing.T) {
			c := valid()
			c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
			token := sign(t, jwt.SigningMethodHS256, c)

			_, err := a.Authenticate(context.Background(), token, nil, bearerRequest(token))
			require.Equal(t, http.StatusUnauthorized, httperr.StatusOf(err))
		})

		t.Run("if the token uses another algorithm", func(t *testing.T) {
			token := sign(t, jwt.SigningMethodHS512, valid())

			_, err := a.Authenticate(context.Background(), token, nil, bearerRequest(token))
			require.Equal(t, http.StatusUnauthorized, httperr.StatusOf(err))
		})
	})

	t.Run("will return 403", func(t *testing.T) {
		t.Run("if a required scope is missing", func(t *testing.T) {
			token := sign(t, jwt.SigningMethodHS256, valid())

			_, err := a.Authenticate(context.Background(), token, []string{"pets:admin"}, bearerRequest(token))
			require.Equal(t, http.StatusForbidden, httperr.StatusOf(err))

			var serr InsufficientScopeError
			require.ErrorAs(t, err, &serr)
			require.Equal(t, []string{"pets:admin"}, serr.Missing)
		})
	})
}

func TestAPIKey(t *testing.T) {
	a := APIKey("key", "X-API-Key", "header", map[string]any{"k1": "service-a"})

	t.Run("will map the key to its principal", func(t *testing.T) {
		p, err := a.Authenticate(context.Background(), "k1", nil, bearerRequest(""))
		require.NoError(t, err)
		require.Equal(t, "service-a", p)
	})

	t.Run("will reject an unknown key", func(t *testing.T) {
		p, err := a.Authenticate(context.Background(), "k2", nil, bearerRequest(""))
		require.NoError(t, err)
		require.Nil(t, p)
	})
}
