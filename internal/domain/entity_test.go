package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCreate(t *testing.T) {
	shelfID := uuid.NewString()

	tests := []struct {
		name      string
		kind      EntityKind
		fields    Fields
		wantError string
	}{
		{
			name:   "valid pallet",
			kind:   KindPallet,
			fields: Fields{"code": "PL-001", "status": "arriving"},
		},
		{
			name:   "valid slot",
			kind:   KindSlot,
			fields: Fields{"code": "SL-01", "shelf_id": shelfID},
		},
		{
			name:      "unknown kind",
			kind:      EntityKind("drone"),
			fields:    Fields{"code": "X"},
			wantError: "unknown entity kind",
		},
		{
			name:      "missing required field",
			kind:      KindPallet,
			fields:    Fields{"status": "arriving"},
			wantError: `requires field "code"`,
		},
		{
			name:      "unrecognized field",
			kind:      KindPallet,
			fields:    Fields{"code": "PL-001", "color": "blue"},
			wantError: `unknown field "color"`,
		},
		{
			name:      "bad status value",
			kind:      KindPallet,
			fields:    Fields{"code": "PL-001", "status": "lost"},
			wantError: "unrecognized status",
		},
		{
			name:      "reference must be a uuid",
			kind:      KindSlot,
			fields:    Fields{"code": "SL-01", "shelf_id": "not-a-uuid"},
			wantError: "not a valid entity id",
		},
		{
			name:      "integer field rejects fraction",
			kind:      KindShipment,
			fields:    Fields{"code": "SHP-1", "expected_pallets": 1.5},
			wantError: "must be an integer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, err := ValidateCreate(tt.kind, tt.fields)
			if tt.wantError != "" {
				require.Error(t, err)
				assert.True(t, IsKind(err, ErrorKindValidation))
				assert.Contains(t, err.Error(), tt.wantError)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, fields)
		})
	}
}

func TestValidateCreateDefaultsPalletStatus(t *testing.T) {
	fields, err := ValidateCreate(KindPallet, Fields{"code": "PL-002"})
	require.NoError(t, err)
	assert.Equal(t, string(PalletStatusArriving), fields["status"])
}

func TestValidateCreateNormalizesJSONNumbers(t *testing.T) {
	// JSON decoding hands integers to us as float64.
	fields, err := ValidateCreate(KindShipment, Fields{"code": "SHP-1", "expected_pallets": float64(2)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), fields["expected_pallets"])
}

func TestValidateMutation(t *testing.T) {
	slotID := uuid.NewString()

	tests := []struct {
		name      string
		kind      EntityKind
		changes   Fields
		wantError string
	}{
		{
			name:    "valid move",
			kind:    KindPallet,
			changes: Fields{"slot_id": slotID, "status": "warehoused"},
		},
		{
			name:      "empty change set",
			kind:      KindPallet,
			changes:   Fields{},
			wantError: "at least one field",
		},
		{
			name:      "unknown field",
			kind:      KindBox,
			changes:   Fields{"weight": 12},
			wantError: `unknown field "weight"`,
		},
		{
			name:      "required field cannot be cleared",
			kind:      KindPallet,
			changes:   Fields{"code": nil},
			wantError: "cannot be cleared",
		},
		{
			name:    "optional reference can be cleared",
			kind:    KindPallet,
			changes: Fields{"slot_id": nil},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateMutation(tt.kind, tt.changes)
			if tt.wantError != "" {
				require.Error(t, err)
				assert.True(t, IsKind(err, ErrorKindValidation))
				assert.Contains(t, err.Error(), tt.wantError)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestFieldNamesSortedAndComplete(t *testing.T) {
	names := FieldNames(KindPallet)
	assert.Equal(t, []string{"code", "shipment_id", "slot_id", "status"}, names)
}
