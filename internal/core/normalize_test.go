package core_test

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"growbook/internal/core"
	"growbook/internal/docstore"
	"growbook/pkg/domain"
)

func TestNormalizeTimestamp(t *testing.T) {
	ts := time.Date(2024, 6, 1, 12, 30, 45, 123456789, time.FixedZone("CEST", 2*60*60))
	cases := []struct {
		name string
		in   any
		want string
	}{
		{"native", ts, "2024-06-01T10:30:45.123Z"},
		{"pointer", &ts, "2024-06-01T10:30:45.123Z"},
		{"nil pointer", (*time.Time)(nil), ""},
		{"string passthrough", "2024-01-01T00:00:00Z", "2024-01-01T00:00:00Z"},
		{"pending", nil, ""},
		{"zero", time.Time{}, ""},
		{"unexpected", 42, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := core.NormalizeTimestamp(tc.in); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestNormalizationIsIdempotent(t *testing.T) {
	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	envShapes := []docstore.Fields{
		{},
		{"ownerId": "U1", "name": "Tent", "createdAt": ts},
		{"ownerId": "U1", "name": "Tent", "createdAt": &ts, "capacity": int64(4), "equipment": []any{"LED", 3, "Fan"}},
		{"name": "Tent", "createdAt": "2024-06-01T12:00:00.000Z", "capacity": 2.0, "equipment": []string{"LED"}},
		{"name": "Tent", "createdAt": nil, "capacity": json.Number("7"), "equipment": nil},
		{"name": "Tent", "capacity": 2.5, "extra": "dropped"},
		{"name": 12, "capacity": "4"},
	}
	for i, shape := range envShapes {
		once := core.NormalizeEnvironmentFields(shape)
		twice := core.NormalizeEnvironmentFields(once)
		if !reflect.DeepEqual(once, twice) {
			t.Fatalf("environment shape %d not idempotent:\n once=%#v\ntwice=%#v", i, once, twice)
		}
	}
	plantShapes := []docstore.Fields{
		{},
		{"qrCode": "QR", "strain": "Haze", "birthDate": "2024-01-01", "growRoomId": "r", "status": "seedling", "ownerId": "U1", "createdAt": ts},
		{"qrCode": "QR", "birthDate": ts, "createdAt": "2024-06-01T12:00:00.000Z"},
	}
	for i, shape := range plantShapes {
		once := core.NormalizePlantFields(shape)
		twice := core.NormalizePlantFields(once)
		if !reflect.DeepEqual(once, twice) {
			t.Fatalf("plant shape %d not idempotent:\n once=%#v\ntwice=%#v", i, once, twice)
		}
	}
}

func TestEnvironmentFromDocumentDefaults(t *testing.T) {
	env := core.EnvironmentFromDocument(docstore.Document{ID: "e1", Fields: docstore.Fields{"ownerId": "U1", "name": "Tent"}})
	if env.Capacity != nil {
		t.Fatalf("expected nil capacity, got %v", *env.Capacity)
	}
	if env.Equipment == nil || len(env.Equipment) != 0 {
		t.Fatalf("expected empty equipment, got %#v", env.Equipment)
	}
	if env.CreatedAt != "" {
		t.Fatalf("expected pending createdAt to read as empty, got %q", env.CreatedAt)
	}

	env = core.EnvironmentFromDocument(docstore.Document{ID: "e2", Fields: docstore.Fields{"capacity": float64(3), "equipment": []any{"LED"}}})
	if env.Capacity == nil || *env.Capacity != 3 || len(env.Equipment) != 1 {
		t.Fatalf("unexpected conversion %#v", env)
	}
}

func TestPlantFromDocumentReducesNativeBirthDate(t *testing.T) {
	birth := time.Date(2024, 2, 29, 23, 0, 0, 0, time.UTC)
	plant := core.PlantFromDocument(docstore.Document{ID: "p1", Fields: docstore.Fields{"birthDate": birth, "status": "curing"}})
	if plant.BirthDate != "2024-02-29" || plant.Status != domain.PlantStatusCuring || plant.ID != "p1" {
		t.Fatalf("unexpected plant %#v", plant)
	}
}

func TestOutboundDocuments(t *testing.T) {
	create := core.EnvironmentDocument("U1", domain.EnvironmentInput{Name: " Tent "})
	if !docstore.IsServerTimestamp(create[domain.FieldCreatedAt]) {
		t.Fatalf("expected ServerTimestamp createdAt, got %#v", create[domain.FieldCreatedAt])
	}
	if create[domain.FieldCapacity] != nil {
		t.Fatalf("expected nil capacity, got %#v", create[domain.FieldCapacity])
	}
	if eq, ok := create[domain.FieldEquipment].([]string); !ok || len(eq) != 0 {
		t.Fatalf("expected empty equipment, got %#v", create[domain.FieldEquipment])
	}
	if create[domain.FieldOwnerID] != "U1" || create[domain.FieldName] != "Tent" {
		t.Fatalf("unexpected create document %#v", create)
	}

	if patch := core.EnvironmentPatchDocument(domain.EnvironmentPatch{}); len(patch) != 0 {
		t.Fatalf("expected empty patch document, got %#v", patch)
	}
	patch := core.EnvironmentPatchDocument(domain.EnvironmentPatch{
		Capacity:  domain.Set[*int](nil),
		Equipment: domain.Set[[]string](nil),
	})
	if v, ok := patch[domain.FieldCapacity]; !ok || v != nil {
		t.Fatalf("expected explicit nil capacity, got %#v (present=%v)", v, ok)
	}
	if eq, ok := patch[domain.FieldEquipment].([]string); !ok || len(eq) != 0 {
		t.Fatalf("expected explicit empty equipment, got %#v", patch[domain.FieldEquipment])
	}
	for _, forbidden := range []string{domain.FieldName, domain.FieldCreatedAt, domain.FieldOwnerID} {
		if _, ok := patch[forbidden]; ok {
			t.Fatalf("patch document must not carry %s", forbidden)
		}
	}

	plant := core.PlantDocument("U1", plantInput("QR-1", "room"))
	if plant[domain.FieldStatus] != string(domain.PlantStatusSeedling) || !docstore.IsServerTimestamp(plant[domain.FieldCreatedAt]) {
		t.Fatalf("unexpected plant document %#v", plant)
	}
	plantPatch := core.PlantPatchDocument(domain.PlantPatch{Strain: domain.Set("Haze")})
	if len(plantPatch) != 1 || plantPatch[domain.FieldStrain] != "Haze" {
		t.Fatalf("unexpected plant patch %#v", plantPatch)
	}
}
