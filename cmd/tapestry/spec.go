// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/z5labs/tapestry/example/petstore"
	"github.com/z5labs/tapestry/metadata"
	"github.com/z5labs/tapestry/openapi"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// UnknownFormatError is returned for an unsupported --format value.
type UnknownFormatError struct {
	Format string
}

func (e UnknownFormatError) Error() string {
	return fmt.Sprintf("unknown output format %q, expected yaml or json", e.Format)
}

func newSpecCmd() *cobra.Command {
	var (
		format   string
		internal bool
	)

	cmd := &cobra.Command{
		Use:   "spec",
		Short: "Print the OpenAPI document",
		Long: `Print the OpenAPI document assembled from the petstore metadata.

The published document omits the x-tapestry-* extensions which record how
operations are bound to handlers. Pass --internal to keep them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeSpec(cmd.OutOrStdout(), format, internal)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "output format, yaml or json")
	cmd.Flags().BoolVar(&internal, "internal", false, "keep internal extension fields")
	return cmd
}

func writeSpec(w io.Writer, format string, internal bool) error {
	if format != "yaml" && format != "json" {
		return UnknownFormatError{Format: format}
	}

	store := metadata.NewStore()
	err := petstore.Declare(store)
	if err != nil {
		return err
	}

	reg, err := petstore.Authenticators(nil, nil)
	if err != nil {
		return err
	}

	b, err := openapi.Assemble(store, petstore.Info, reg, openapi.SpecOnly(petstore.Target))
	if err != nil {
		return err
	}

	document := b.Public
	if internal {
		document = b.Document
	}
	doc, err := document()
	if err != nil {
		return err
	}

	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	err = enc.Encode(doc)
	if err != nil {
		return err
	}
	return enc.Close()
}
