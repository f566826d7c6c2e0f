package main

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"

	"github.com/invopop/jsonschema"

	"github.com/marmos91/fotoprobe/pkg/config"
)

func main() {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		FieldNameTag:              "mapstructure",
		// Sizes are written as "64KiB" as often as plain integers.
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == reflect.TypeOf(config.ByteSize(0)) {
				return &jsonschema.Schema{
					OneOf: []*jsonschema.Schema{
						{Type: "integer", Minimum: json.Number("0")},
						{Type: "string", Pattern: `^\s*[0-9.]+\s*[A-Za-z]*\s*$`},
					},
				}
			}
			return nil
		},
	}

	schema := reflector.Reflect(&config.Config{})
	schema.Title = "fotoprobe Configuration"
	schema.Description = "Configuration schema for fotoprobe"
	schema.Version = "1.0.0"

	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling schema: %v\n", err)
		os.Exit(1)
	}

	outputFile := "config.schema.json"
	if len(os.Args) > 1 {
		outputFile = os.Args[1]
	}

	if err := os.WriteFile(outputFile, schemaJSON, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing schema file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("JSON schema written to %s\n", outputFile)
}
