package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	surrealdb_models "github.com/surrealdb/surrealdb.go/pkg/models"
)

// recordIDTag is the CBOR tag number SurrealDB uses for RecordIDs.
const recordIDTag = 8

// ListID is a typed ID for lists.
type ListID struct {
	uuid uuid.UUID
}

func NewListID() ListID {
	return ListID{uuid: uuid.New()}
}

func ParseListID(s string) (ListID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return ListID{}, fmt.Errorf("invalid list ID: %w", err)
	}
	return ListID{uuid: id}, nil
}

func (l ListID) UUID() uuid.UUID { return l.uuid }
func (l ListID) String() string  { return l.uuid.String() }
func (l ListID) IsZero() bool    { return l.uuid == uuid.Nil }

func (l ListID) RecordID() surrealdb_models.RecordID {
	return surrealdb_models.RecordID{
		Table: "lists",
		ID:    l.uuid.String(),
	}
}

func (l ListID) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.uuid.String())
}

func (l *ListID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	l.uuid = id
	return nil
}

func (l ListID) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(cbor.Tag{
		Number:  recordIDTag,
		Content: []any{"lists", l.uuid.String()},
	})
}

func (l *ListID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, "lists", &l.uuid)
}

func (l ListID) Value() (driver.Value, error) {
	if l.IsZero() {
		return nil, nil
	}
	return l.uuid.String(), nil
}

func (l *ListID) Scan(value any) error {
	return scanUUID(value, &l.uuid)
}

func (ListID) GormDataType() string { return "uuid" }

// ItemID is a typed ID for items.
type ItemID struct {
	uuid uuid.UUID
}

func NewItemID() ItemID {
	return ItemID{uuid: uuid.New()}
}

func ParseItemID(s string) (ItemID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return ItemID{}, fmt.Errorf("invalid item ID: %w", err)
	}
	return ItemID{uuid: id}, nil
}

func (i ItemID) UUID() uuid.UUID { return i.uuid }
func (i ItemID) String() string  { return i.uuid.String() }
func (i ItemID) IsZero() bool    { return i.uuid == uuid.Nil }

func (i ItemID) RecordID() surrealdb_models.RecordID {
	return surrealdb_models.RecordID{
		Table: "items",
		ID:    i.uuid.String(),
	}
}

func (i ItemID) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.uuid.String())
}

func (i *ItemID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	i.uuid = id
	return nil
}

func (i ItemID) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(cbor.Tag{
		Number:  recordIDTag,
		Content: []any{"items", i.uuid.String()},
	})
}

func (i *ItemID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, "items", &i.uuid)
}

func (i ItemID) Value() (driver.Value, error) {
	if i.IsZero() {
		return nil, nil
	}
	return i.uuid.String(), nil
}

func (i *ItemID) Scan(value any) error {
	return scanUUID(value, &i.uuid)
}

func (ItemID) GormDataType() string { return "uuid" }

// scanUUID converts a database value (string or []byte) into a UUID.
func scanUUID(value any, target *uuid.UUID) error {
	if value == nil {
		*target = uuid.Nil
		return nil
	}

	switch v := value.(type) {
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return err
		}
		*target = id
	case []byte:
		id, err := uuid.ParseBytes(v)
		if err != nil {
			return err
		}
		*target = id
	default:
		return fmt.Errorf("cannot scan type %T into UUID", value)
	}
	return nil
}

// unmarshalCBORID decodes a SurrealDB RecordID tag ([table, id]) into a UUID,
// verifying the table matches the typed ID it is being decoded into.
func unmarshalCBORID(data []byte, expectedTable string, target *uuid.UUID) error {
	if len(data) == 0 {
		return fmt.Errorf("empty CBOR data")
	}

	var tag cbor.Tag
	if err := cbor.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("failed to unmarshal CBOR tag: %w", err)
	}

	if tag.Number != recordIDTag {
		return fmt.Errorf("expected RecordID tag (%d), got %d", recordIDTag, tag.Number)
	}

	arr, ok := tag.Content.([]any)
	if !ok || len(arr) != 2 {
		return fmt.Errorf("invalid RecordID format: expected [table, id] array")
	}

	table, ok := arr[0].(string)
	if !ok {
		return fmt.Errorf("invalid RecordID format: table name must be string")
	}
	if table != expectedTable {
		return fmt.Errorf("expected table %s, got %s", expectedTable, table)
	}

	idStr, ok := arr[1].(string)
	if !ok {
		return fmt.Errorf("invalid RecordID format: ID must be string")
	}

	parsed, err := uuid.Parse(idStr)
	if err != nil {
		return fmt.Errorf("invalid RecordID UUID: %w", err)
	}
	*target = parsed
	return nil
}
