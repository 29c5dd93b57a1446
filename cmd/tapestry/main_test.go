// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/z5labs/tapestry/config"
	"github.com/z5labs/tapestry/openapi"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

func TestSpecCmd(t *testing.T) {
	t.Run("will print the published document as yaml", func(t *testing.T) {
		out, err := execute(t, "spec")
		require.NoError(t, err)

		var doc map[string]any
		require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
		require.Equal(t, "3.0.3", doc["openapi"])
		require.Contains(t, doc["paths"], "/pets/{id}")
		require.NotContains(t, out, openapi.ExtController)
	})

	t.Run("will print json", func(t *testing.T) {
		out, err := execute(t, "spec", "--format", "json", "--internal")
		require.NoError(t, err)

		var doc map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &doc))

		get := doc["paths"].(map[string]any)["/pets/{id}"].(map[string]any)["get"].(map[string]any)
		require.Equal(t, "pets", get[openapi.ExtController])
		require.Equal(t, "get", get[openapi.ExtHandler])
	})

	t.Run("will return an UnknownFormatError", func(t *testing.T) {
		t.Run("if the format is not supported", func(t *testing.T) {
			_, err := execute(t, "spec", "-f", "toml")

			var ferr UnknownFormatError
			require.ErrorAs(t, err, &ferr)
			require.Equal(t, "toml", ferr.Format)
		})
	})
}

func TestConfig(t *testing.T) {
	t.Run("will render the environment into the config file", func(t *testing.T) {
		t.Setenv("TAPESTRY_TEST_SIGNING_KEY", "k3y")

		path := filepath.Join(t.TempDir(), "config.yaml")
		src := strings.Join([]string{
			"http:",
			`  addr: "127.0.0.1:0"`,
			"  read_timeout: 3s",
			"auth:",
			`  signing_key: "{{env "TAPESTRY_TEST_SIGNING_KEY"}}"`,
			"  admin_keys:",
			"    s3cret: root",
			"validate_responses: true",
			"otel:",
			"  service_name: petstore",
			"  log:",
			"    levels:",
			"      github.com/z5labs/tapestry: warn",
		}, "\n")
		require.NoError(t, os.WriteFile(path, []byte(src), 0o600))

		r := config.UnmarshalYAML[Config](config.Template(config.File(config.ReaderOf(path))))
		cfg, err := config.Read(context.Background(), r)
		require.NoError(t, err)

		require.Equal(t, "127.0.0.1:0", cfg.HTTP.Addr)
		require.Equal(t, 3*time.Second, cfg.HTTP.ReadTimeout)
		require.Equal(t, "k3y", cfg.Auth.SigningKey)
		require.Equal(t, map[string]string{"s3cret": "root"}, cfg.Auth.AdminKeys)
		require.True(t, cfg.ValidateResponses)
		require.Equal(t, "petstore", cfg.OTel.ServiceName)
		require.Equal(t, "warn", cfg.OTel.Log.Levels["github.com/z5labs/tapestry"])
	})
}

func TestBuild(t *testing.T) {
	t.Run("will return a MissingSigningKeyError", func(t *testing.T) {
		t.Run("if no signing key is configured", func(t *testing.T) {
			_, err := build(config.ReaderOf(Config{})).Build(context.Background())
			require.ErrorIs(t, err, MissingSigningKeyError{})
		})
	})

	t.Run("will stop cleanly", func(t *testing.T) {
		t.Run("if the context is cancelled", func(t *testing.T) {
			var cfg Config
			cfg.HTTP.Addr = "127.0.0.1:0"
			cfg.Auth.SigningKey = "k3y"

			rt, err := build(config.ReaderOf(cfg)).Build(context.Background())
			require.NoError(t, err)

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			require.NoError(t, rt.Run(ctx))
		})
	})
}
