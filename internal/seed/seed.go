// Package seed holds the data set a fresh store starts from.
package seed

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/HerbHall/newslens/internal/auth"
	"github.com/HerbHall/newslens/internal/store"
)

//go:embed seed.yaml
var seedRawData []byte

// seedFile is the top-level structure of the embedded YAML: table name
// to records. Records keep the JSON field names used by the store.
type seedFile map[string][]map[string]any

// secretField is the plain-text credential key in seeded user records.
const secretField = "secret"

// Load parses the embedded seed and returns it as a store snapshot.
// Seeded credentials are hashed with the given bcrypt cost.
func Load(cost int) (store.Snapshot, error) {
	return Parse(seedRawData, cost)
}

// Parse converts a YAML seed document into a store snapshot.
func Parse(data []byte, cost int) (store.Snapshot, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("seed: parse yaml: %w", err)
	}

	snap := make(store.Snapshot, len(f))
	for table, records := range f {
		rows := make([]json.RawMessage, 0, len(records))
		for i, rec := range records {
			if table == auth.Table {
				if err := hashSecret(rec, cost); err != nil {
					return nil, fmt.Errorf("seed: %s record %d: %w", table, i, err)
				}
			}
			raw, err := json.Marshal(rec)
			if err != nil {
				return nil, fmt.Errorf("seed: encode %s record %d: %w", table, i, err)
			}
			rows = append(rows, raw)
		}
		snap[table] = rows
	}
	return snap, nil
}

func hashSecret(rec map[string]any, cost int) error {
	plain, ok := rec[secretField].(string)
	if !ok {
		return fmt.Errorf("missing %q", secretField)
	}
	hash, err := auth.HashSecret(plain, cost)
	if err != nil {
		return err
	}
	delete(rec, secretField)
	rec["credentialSecret"] = hash
	return nil
}
