package core

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"growbook/internal/docstore"
	"growbook/pkg/domain"
)

// NormalizeTimestamp converts a stored creation time to its canonical string.
// Native timestamps become UTC ISO-8601 with millisecond precision, strings
// pass through unchanged, and anything else (including a pending server
// timestamp read back as nil) becomes "".
func NormalizeTimestamp(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return domain.FormatTimestamp(t)
	case *time.Time:
		if t == nil || t.IsZero() {
			return ""
		}
		return domain.FormatTimestamp(*t)
	}
	return ""
}

// NormalizeEnvironmentFields returns the canonical field set of a stored
// environment: string ownerId, name and createdAt, capacity as *int or nil,
// and equipment as a non-nil []string. Unknown fields are dropped.
// The function is pure and idempotent.
func NormalizeEnvironmentFields(in docstore.Fields) docstore.Fields {
	return docstore.Fields{
		domain.FieldOwnerID:   asString(in[domain.FieldOwnerID]),
		domain.FieldName:      asString(in[domain.FieldName]),
		domain.FieldCapacity:  normalizeCapacity(in[domain.FieldCapacity]),
		domain.FieldEquipment: normalizeStrings(in[domain.FieldEquipment]),
		domain.FieldCreatedAt: NormalizeTimestamp(in[domain.FieldCreatedAt]),
	}
}

// NormalizePlantFields is the plant counterpart of NormalizeEnvironmentFields.
// A birth date stored as a native timestamp is reduced to YYYY-MM-DD.
func NormalizePlantFields(in docstore.Fields) docstore.Fields {
	birth := asString(in[domain.FieldBirthDate])
	if t, ok := in[domain.FieldBirthDate].(time.Time); ok {
		birth = t.UTC().Format(domain.DateLayout)
	}
	return docstore.Fields{
		domain.FieldQRCode:     asString(in[domain.FieldQRCode]),
		domain.FieldStrain:     asString(in[domain.FieldStrain]),
		domain.FieldBirthDate:  birth,
		domain.FieldGrowRoomID: asString(in[domain.FieldGrowRoomID]),
		domain.FieldStatus:     asString(in[domain.FieldStatus]),
		domain.FieldOwnerID:    asString(in[domain.FieldOwnerID]),
		domain.FieldCreatedAt:  NormalizeTimestamp(in[domain.FieldCreatedAt]),
	}
}

// EnvironmentFromDocument materialises a stored document as an Environment.
func EnvironmentFromDocument(doc docstore.Document) domain.Environment {
	f := NormalizeEnvironmentFields(doc.Fields)
	capacity, _ := f[domain.FieldCapacity].(*int)
	equipment, _ := f[domain.FieldEquipment].([]string)
	return domain.Environment{
		ID:        doc.ID,
		OwnerID:   f[domain.FieldOwnerID].(string),
		Name:      f[domain.FieldName].(string),
		Capacity:  capacity,
		Equipment: equipment,
		CreatedAt: f[domain.FieldCreatedAt].(string),
	}
}

// PlantFromDocument materialises a stored document as a Plant.
func PlantFromDocument(doc docstore.Document) domain.Plant {
	f := NormalizePlantFields(doc.Fields)
	return domain.Plant{
		ID:         doc.ID,
		QRCode:     f[domain.FieldQRCode].(string),
		Strain:     f[domain.FieldStrain].(string),
		BirthDate:  f[domain.FieldBirthDate].(string),
		GrowRoomID: f[domain.FieldGrowRoomID].(string),
		Status:     domain.PlantStatus(f[domain.FieldStatus].(string)),
		OwnerID:    f[domain.FieldOwnerID].(string),
		CreatedAt:  f[domain.FieldCreatedAt].(string),
	}
}

// EnvironmentDocument builds the fields written when creating an environment.
// createdAt is always the ServerTimestamp sentinel.
func EnvironmentDocument(ownerID string, in domain.EnvironmentInput) docstore.Fields {
	return docstore.Fields{
		domain.FieldOwnerID:   ownerID,
		domain.FieldName:      strings.TrimSpace(in.Name),
		domain.FieldCapacity:  capacityValue(in.Capacity),
		domain.FieldEquipment: domain.CleanEquipment(in.Equipment),
		domain.FieldCreatedAt: docstore.ServerTimestamp,
	}
}

// EnvironmentPatchDocument builds the merge fields for a patch. Only supplied
// fields are emitted; ownerId and createdAt never are.
func EnvironmentPatchDocument(p domain.EnvironmentPatch) docstore.Fields {
	out := docstore.Fields{}
	if name, ok := p.Name.Get(); ok {
		out[domain.FieldName] = strings.TrimSpace(name)
	}
	if capacity, ok := p.Capacity.Get(); ok {
		out[domain.FieldCapacity] = capacityValue(capacity)
	}
	if equipment, ok := p.Equipment.Get(); ok {
		out[domain.FieldEquipment] = domain.CleanEquipment(equipment)
	}
	return out
}

// PlantDocument builds the fields written when creating a plant.
func PlantDocument(ownerID string, in domain.PlantInput) docstore.Fields {
	status := in.Status
	if status == "" {
		status = domain.PlantStatusSeedling
	}
	return docstore.Fields{
		domain.FieldQRCode:     strings.TrimSpace(in.QRCode),
		domain.FieldStrain:     strings.TrimSpace(in.Strain),
		domain.FieldBirthDate:  in.BirthDate,
		domain.FieldGrowRoomID: strings.TrimSpace(in.GrowRoomID),
		domain.FieldStatus:     string(status),
		domain.FieldOwnerID:    ownerID,
		domain.FieldCreatedAt:  docstore.ServerTimestamp,
	}
}

// PlantPatchDocument builds the merge fields for a plant patch. qrCode,
// ownerId and createdAt are never emitted.
func PlantPatchDocument(p domain.PlantPatch) docstore.Fields {
	out := docstore.Fields{}
	if strain, ok := p.Strain.Get(); ok {
		out[domain.FieldStrain] = strings.TrimSpace(strain)
	}
	if birth, ok := p.BirthDate.Get(); ok {
		out[domain.FieldBirthDate] = birth
	}
	if room, ok := p.GrowRoomID.Get(); ok {
		out[domain.FieldGrowRoomID] = strings.TrimSpace(room)
	}
	if status, ok := p.Status.Get(); ok {
		out[domain.FieldStatus] = string(status)
	}
	return out
}

func capacityValue(c *int) any {
	if c == nil {
		return nil
	}
	return *c
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func normalizeCapacity(v any) *int {
	var n int
	switch t := v.(type) {
	case *int:
		if t == nil {
			return nil
		}
		n = *t
	case int:
		n = t
	case int32:
		n = int(t)
	case int64:
		n = int(t)
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) {
			return nil
		}
		n = int(t)
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			return nil
		}
		n = int(i)
	default:
		return nil
	}
	return &n
}

func normalizeStrings(v any) []string {
	switch t := v.(type) {
	case []string:
		return append(make([]string, 0, len(t)), t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}
