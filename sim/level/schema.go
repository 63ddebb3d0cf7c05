package level

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
)

//go:embed catalog.cue
var catalogSchema string

// ValidateSchema checks catalog YAML against the embedded CUE schema.
// Unknown keys, missing required fields and out-of-range values are rejected.
func ValidateSchema(filename string, data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(catalogSchema)
	if schema.Err() != nil {
		return fmt.Errorf("compiling catalog schema: %w", schema.Err())
	}
	def := schema.LookupPath(cue.ParsePath("#Catalog"))

	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return fmt.Errorf("cannot read YAML catalog: %w", err)
	}
	value := ctx.BuildFile(file)
	if value.Err() != nil {
		return fmt.Errorf("cannot build YAML catalog: %w", value.Err())
	}

	final := def.Unify(value)
	if err := final.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
