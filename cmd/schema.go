package cmd

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"github.com/kamusis/sentari/internal/diary"
	"github.com/kamusis/sentari/internal/pipeline"
)

// schemaTargets are the records whose JSON Schema can be printed.
var schemaTargets = map[string]any{
	"entry":   diary.HistoryEntry{},
	"profile": diary.Profile{},
	"result":  pipeline.Result{},
}

var schemaCmd = &cobra.Command{
	Use:       "schema [entry|profile|result]",
	Short:     "Print the JSON Schema of stored entries, profiles or add --json results",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"entry", "profile", "result"},
	RunE:      runSchema,
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}

func runSchema(_ *cobra.Command, args []string) error {
	name := "entry"
	if len(args) == 1 {
		name = args[0]
	}
	v, ok := schemaTargets[name]
	if !ok {
		names := make([]string, 0, len(schemaTargets))
		for k := range schemaTargets {
			names = append(names, k)
		}
		sort.Strings(names)
		return fmt.Errorf("unknown schema %q (want %s)", name, strings.Join(names, ", "))
	}
	return printJSON(reflectSchema(v))
}

var counterType = reflect.TypeOf(diary.Counter{})

// reflectSchema builds an inline schema for v. Counters serialize as
// ordered label→count objects, which reflection cannot see.
func reflectSchema(v any) *jsonschema.Schema {
	r := jsonschema.Reflector{
		DoNotReference: true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == counterType {
				return &jsonschema.Schema{
					Type:                 "object",
					AdditionalProperties: &jsonschema.Schema{Type: "integer", Minimum: "1"},
				}
			}
			return nil
		},
	}
	return r.Reflect(v)
}
