package api

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"path"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const schemaBase = "https://hexwatt.local/schemas/"

// Schemas holds the compiled request body schemas.
type Schemas struct {
	BuyTile         *jsonschema.Schema
	BuyBuilding     *jsonschema.Schema
	UpgradeBuilding *jsonschema.Schema
	Speed           *jsonschema.Schema
}

// LoadSchemas compiles the embedded request schemas.
func LoadSchemas() (*Schemas, error) {
	c := jsonschema.NewCompiler()
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		b, err := schemaFS.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			return nil, err
		}
		if err := c.AddResource(schemaBase+e.Name(), bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("schema %s: %w", e.Name(), err)
		}
	}

	compile := func(name string) (*jsonschema.Schema, error) {
		s, err := c.Compile(schemaBase + name)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", name, err)
		}
		return s, nil
	}

	var s Schemas
	if s.BuyTile, err = compile("buy_tile.schema.json"); err != nil {
		return nil, err
	}
	if s.BuyBuilding, err = compile("buy_building.schema.json"); err != nil {
		return nil, err
	}
	if s.UpgradeBuilding, err = compile("upgrade_building.schema.json"); err != nil {
		return nil, err
	}
	if s.Speed, err = compile("speed.schema.json"); err != nil {
		return nil, err
	}
	return &s, nil
}

// decodeValidated checks body against schema, then decodes it into out.
func decodeValidated(schema *jsonschema.Schema, body []byte, out any) error {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("malformed json: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}
