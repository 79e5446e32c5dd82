// generate-schema writes a JSON schema for the tcpfs config file, keyed by
// the same names the YAML loader accepts.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/marmos91/tcpfs/pkg/config"
	"github.com/spf13/pflag"
)

func main() {
	output := pflag.StringP("output", "o", "config.schema.json", "Schema file to write (- for stdout)")
	pflag.Parse()

	reflector := jsonschema.Reflector{
		FieldNameTag:   "mapstructure",
		DoNotReference: true,
	}

	schema := reflector.Reflect(&config.Config{})
	schema.Title = "tcpfs configuration"
	schema.Description = "Configuration file for the tcpfs object store server"

	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode schema: %v\n", err)
		os.Exit(1)
	}
	out = append(out, '\n')

	if *output == "-" {
		_, _ = os.Stdout.Write(out)
		return
	}
	if err := os.WriteFile(*output, out, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write %s: %v\n", *output, err)
		os.Exit(1)
	}
	fmt.Printf("JSON schema written to %s\n", *output)
}
