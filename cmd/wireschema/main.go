// Command wireschema emits JSON Schema documents for the records exchanged
// between clients and the arena server, for use by non-Go client authors.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"skirmish/server/internal/game"
	"skirmish/server/internal/wire"
)

func main() {
	outDir := flag.String("out", "", "directory to write schema files into (default: stdout)")
	flag.Parse()

	reflector := &jsonschema.Reflector{
		ExpandedStruct: true,
	}

	schemas := map[string]any{
		"message":  reflector.Reflect(&wire.Message{}),
		"snapshot": reflector.Reflect(&game.Snapshot{}),
	}

	for name, schema := range schemas {
		payload, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "wireschema: marshal %s: %v\n", name, err)
			os.Exit(1)
		}
		if *outDir == "" {
			fmt.Printf("// %s\n%s\n", name, payload)
			continue
		}
		path := filepath.Join(*outDir, name+".schema.json")
		if err := os.WriteFile(path, append(payload, '\n'), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "wireschema: write %s: %v\n", path, err)
			os.Exit(1)
		}
	}
}
