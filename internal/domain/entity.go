package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// EntityKind identifies one level of the warehouse hierarchy.
type EntityKind string

const (
	KindWarehouse EntityKind = "warehouse"
	KindShelf     EntityKind = "shelf"
	KindSlot      EntityKind = "slot"
	KindShipment  EntityKind = "shipment"
	KindPallet    EntityKind = "pallet"
	KindBox       EntityKind = "box"
	KindFolder    EntityKind = "folder"
)

// FieldType constrains the values a field accepts.
type FieldType int

const (
	FieldString FieldType = iota
	FieldInt
	FieldRef    // UUID reference to another entity, nullable
	FieldStatus // pallet lifecycle status
)

// FieldSpec describes one field of an entity kind.
type FieldSpec struct {
	Type     FieldType
	Required bool
	Unique   bool
}

// KindSpec describes the schema of one entity kind: its table name and
// the whitelist of fields the ledger accepts for it.
type KindSpec struct {
	Table  string
	Fields map[string]FieldSpec
}

var kindSpecs = map[EntityKind]KindSpec{
	KindWarehouse: {
		Table: "warehouses",
		Fields: map[string]FieldSpec{
			"name": {Type: FieldString, Required: true},
		},
	},
	KindShelf: {
		Table: "shelves",
		Fields: map[string]FieldSpec{
			"code":         {Type: FieldString, Required: true, Unique: true},
			"warehouse_id": {Type: FieldRef, Required: true},
		},
	},
	KindSlot: {
		Table: "slots",
		Fields: map[string]FieldSpec{
			"code":     {Type: FieldString, Required: true, Unique: true},
			"shelf_id": {Type: FieldRef, Required: true},
		},
	},
	KindShipment: {
		Table: "shipments",
		Fields: map[string]FieldSpec{
			"code":             {Type: FieldString, Required: true, Unique: true},
			"supplier":         {Type: FieldString},
			"expected_pallets": {Type: FieldInt},
			"expected_boxes":   {Type: FieldInt},
		},
	},
	KindPallet: {
		Table: "pallets",
		Fields: map[string]FieldSpec{
			"code":        {Type: FieldString, Required: true, Unique: true},
			"status":      {Type: FieldStatus},
			"shipment_id": {Type: FieldRef},
			"slot_id":     {Type: FieldRef},
		},
	},
	KindBox: {
		Table: "boxes",
		Fields: map[string]FieldSpec{
			"code":        {Type: FieldString, Required: true, Unique: true},
			"contents":    {Type: FieldString},
			"pallet_id":   {Type: FieldRef},
			"shipment_id": {Type: FieldRef},
		},
	},
	KindFolder: {
		Table: "folders",
		Fields: map[string]FieldSpec{
			"code":   {Type: FieldString, Required: true, Unique: true},
			"title":  {Type: FieldString},
			"box_id": {Type: FieldRef},
		},
	},
}

// Fields is a field-name to value mapping for one entity.
type Fields map[string]interface{}

// TrackedEntity is any warehouse hierarchy object whose changes are audited.
type TrackedEntity struct {
	ID        string     `json:"id"`
	Kind      EntityKind `json:"kind"`
	Fields    Fields     `json:"fields"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IsValidKind reports whether k is a recognized entity kind.
func IsValidKind(k EntityKind) bool {
	_, ok := kindSpecs[k]
	return ok
}

// SpecFor returns the schema for an entity kind.
func SpecFor(k EntityKind) (KindSpec, bool) {
	spec, ok := kindSpecs[k]
	return spec, ok
}

// FieldNames returns the sorted whitelist of field names for a kind.
func FieldNames(k EntityKind) []string {
	spec := kindSpecs[k]
	names := make([]string, 0, len(spec.Fields))
	for name := range spec.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateCreate checks an initial field mapping against the kind's schema:
// every field must be recognized, required fields must be present, and all
// values must satisfy their field type. Returns the normalized mapping.
func ValidateCreate(kind EntityKind, fields Fields) (Fields, error) {
	spec, ok := kindSpecs[kind]
	if !ok {
		return nil, NewValidationError("unknown entity kind %q", kind)
	}

	normalized, err := validateValues(kind, spec, fields)
	if err != nil {
		return nil, err
	}

	for name, fs := range spec.Fields {
		if !fs.Required {
			continue
		}
		if _, present := normalized[name]; !present {
			return nil, NewValidationError("%s requires field %q", kind, name)
		}
	}

	// Pallets default to arriving so the status chain always has a start.
	if kind == KindPallet {
		if _, present := normalized["status"]; !present {
			normalized["status"] = string(PalletStatusArriving)
		}
	}

	return normalized, nil
}

// ValidateMutation checks a proposed change set against the kind's schema.
// Required fields may be changed but never cleared.
func ValidateMutation(kind EntityKind, changes Fields) (Fields, error) {
	spec, ok := kindSpecs[kind]
	if !ok {
		return nil, NewValidationError("unknown entity kind %q", kind)
	}
	if len(changes) == 0 {
		return nil, NewValidationError("mutation must change at least one field")
	}

	normalized, err := validateValues(kind, spec, changes)
	if err != nil {
		return nil, err
	}

	for name, value := range normalized {
		if spec.Fields[name].Required && value == nil {
			return nil, NewValidationError("field %q cannot be cleared", name)
		}
	}

	return normalized, nil
}

func validateValues(kind EntityKind, spec KindSpec, fields Fields) (Fields, error) {
	normalized := make(Fields, len(fields))

	for name, value := range fields {
		fs, known := spec.Fields[name]
		if !known {
			return nil, NewValidationError("unknown field %q for kind %s", name, kind)
		}

		if value == nil {
			normalized[name] = nil
			continue
		}

		switch fs.Type {
		case FieldString:
			s, ok := value.(string)
			if !ok || s == "" {
				return nil, NewValidationError("field %q must be a non-empty string", name)
			}
			normalized[name] = s
		case FieldInt:
			n, ok := toInt(value)
			if !ok {
				return nil, NewValidationError("field %q must be an integer", name)
			}
			normalized[name] = n
		case FieldRef:
			s, ok := value.(string)
			if !ok {
				return nil, NewValidationError("field %q must be an entity id", name)
			}
			if _, err := uuid.Parse(s); err != nil {
				return nil, NewValidationError("field %q is not a valid entity id", name)
			}
			normalized[name] = s
		case FieldStatus:
			s, ok := value.(string)
			if !ok || !IsValidStatus(s) {
				return nil, NewValidationError("field %q has unrecognized status %v", name, value)
			}
			normalized[name] = s
		}
	}

	return normalized, nil
}

// toInt accepts the numeric shapes JSON decoding and SQL scanning produce.
func toInt(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v != float64(int64(v)) {
			return 0, false
		}
		return int64(v), true
	default:
		return 0, false
	}
}
