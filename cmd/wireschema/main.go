package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"outlandersync/client"
)

// wireCatalog 按 msg_type 列出每种信封的 data 结构
type wireCatalog struct {
	Envelope       client.Envelope                         `json:"envelope"`
	RenderMap      client.RenderMap                        `json:"render_map"`
	RegisterUser   client.EntityFields                     `json:"register_user"`
	UnregisterUser client.UnregisterUser                   `json:"unregister_user"`
	PlayerUpdate   client.EntityFields                     `json:"player_update"`
	UsersMap       map[client.EntityID]client.EntityFields `json:"users_map"`
	PlayerMove     client.PlayerMove                       `json:"player_move"`
	PlayerShoot    client.PlayerShoot                      `json:"player_shoot"`
	PlayerEquip    client.PlayerEquip                      `json:"player_equip"`
}

func main() {
	var outPath string
	flag.StringVar(&outPath, "out", "", "path to write the JSON schema")
	flag.Parse()

	if outPath == "" {
		fmt.Fprintln(os.Stderr, "--out is required")
		os.Exit(1)
	}

	if err := writeSchema(outPath, buildSchema()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write schema: %v\n", err)
		os.Exit(1)
	}
}

func buildSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(new(wireCatalog))
	schema.Title = "Outlander wire protocol"
	schema.Description = "Payloads carried in the data field of {msg_type, data} envelopes"
	return schema
}

func writeSchema(outPath string, schema *jsonschema.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}
	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}
	return nil
}
