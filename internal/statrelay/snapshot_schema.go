package statrelay

import (
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// snapshotSchemaJSON is the structural contract for persisted snapshot
// text: the four top-level fields must be present with the right shapes
// before the in-memory Aggregate is replaced by stored data.
const snapshotSchemaJSON = `{
  "type": "object",
  "required": ["rawMessages", "users", "actions", "dailyUsage"],
  "properties": {
    "rawMessages": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "user": {"type": "string"},
          "text": {"type": "string"},
          "timestamp": {"type": "string"}
        }
      }
    },
    "users": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["id"],
        "properties": {
          "id": {"type": "string"},
          "name": {"type": "string"},
          "lastLogin": {"type": "string"}
        }
      }
    },
    "actions": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "value": {"type": "integer", "minimum": 0},
          "timestamp": {"type": "string"}
        }
      }
    },
    "dailyUsage": {
      "type": "object",
      "propertyNames": {"pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"},
      "additionalProperties": {"type": "integer", "minimum": 0}
    }
  }
}`

var (
	snapshotSchemaOnce sync.Once
	snapshotSchema     *jsonschema.Schema
	snapshotSchemaErr  error
)

func compiledSnapshotSchema() (*jsonschema.Schema, error) {
	snapshotSchemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(snapshotSchemaJSON))
		if err != nil {
			snapshotSchemaErr = err
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("snapshot.json", doc); err != nil {
			snapshotSchemaErr = err
			return
		}
		snapshotSchema, snapshotSchemaErr = compiler.Compile("snapshot.json")
	})
	return snapshotSchema, snapshotSchemaErr
}

func validateSnapshotText(text string) error {
	schema, err := compiledSnapshotSchema()
	if err != nil {
		return err
	}
	instance, err := jsonschema.UnmarshalJSON(strings.NewReader(text))
	if err != nil {
		return errMalformed(err)
	}
	if err := schema.Validate(instance); err != nil {
		return errMalformed(err)
	}
	return nil
}
