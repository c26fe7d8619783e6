// Package domain defines the cultivation records persisted by growbook, the
// patch types used to mutate them, and the failure kinds shared by every
// storage backend.
package domain

import (
	"strings"
	"time"
)

// EntityType identifies the kind of record stored in a collection.
type EntityType string

// Supported record kinds.
const (
	// EntityEnvironment identifies a grow environment (room, tent, greenhouse).
	EntityEnvironment EntityType = "environment"
	// EntityPlant identifies an individual plant tagged with a QR code.
	EntityPlant EntityType = "plant"
)

// Collection names in the document store.
const (
	CollectionEnvironments = "environments"
	CollectionPlants       = "plants"
)

// Document field names shared by the normalizer and the queries.
const (
	FieldOwnerID    = "ownerId"
	FieldCreatedAt  = "createdAt"
	FieldName       = "name"
	FieldCapacity   = "capacity"
	FieldEquipment  = "equipment"
	FieldQRCode     = "qrCode"
	FieldStrain     = "strain"
	FieldBirthDate  = "birthDate"
	FieldGrowRoomID = "growRoomId"
	FieldStatus     = "status"
)

// DateLayout is the wire format of calendar dates such as a plant's birth date.
const DateLayout = "2006-01-02"

// TimestampLayout is the canonical ISO-8601 form of store-assigned timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders t in the canonical UTC ISO-8601 form.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Environment is a grow space owned by exactly one principal.
type Environment struct {
	ID        string   `json:"id" yaml:"id"`
	OwnerID   string   `json:"ownerId" yaml:"ownerId"`
	Name      string   `json:"name" yaml:"name"`
	Capacity  *int     `json:"capacity" yaml:"capacity"`
	Equipment []string `json:"equipment" yaml:"equipment"`
	CreatedAt string   `json:"createdAt" yaml:"createdAt"`
}

// EnvironmentInput carries the caller-supplied fields of a new environment.
// Identity, ownership and creation time are always assigned by the repository.
type EnvironmentInput struct {
	Name      string   `json:"name"`
	Capacity  *int     `json:"capacity,omitempty"`
	Equipment []string `json:"equipment,omitempty"`
}

// Validate checks the input and returns a ValidationError on failure.
func (in EnvironmentInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return ValidationError{Entity: EntityEnvironment, Field: FieldName, Message: "required"}
	}
	if in.Capacity != nil && *in.Capacity < 0 {
		return ValidationError{Entity: EntityEnvironment, Field: FieldCapacity, Message: "must not be negative"}
	}
	return nil
}

// EnvironmentPatch is a partial update. Omitted fields keep their stored
// value; Capacity set to nil or Equipment set to an empty list clears them.
type EnvironmentPatch struct {
	Name      Field[string]   `json:"name"`
	Capacity  Field[*int]     `json:"capacity"`
	Equipment Field[[]string] `json:"equipment"`
}

// IsEmpty reports whether the patch changes nothing.
func (p EnvironmentPatch) IsEmpty() bool {
	return !p.Name.IsSet() && !p.Capacity.IsSet() && !p.Equipment.IsSet()
}

// Validate checks the supplied fields.
func (p EnvironmentPatch) Validate() error {
	if name, ok := p.Name.Get(); ok && strings.TrimSpace(name) == "" {
		return ValidationError{Entity: EntityEnvironment, Field: FieldName, Message: "must not be blank"}
	}
	if capacity, ok := p.Capacity.Get(); ok && capacity != nil && *capacity < 0 {
		return ValidationError{Entity: EntityEnvironment, Field: FieldCapacity, Message: "must not be negative"}
	}
	return nil
}

// CleanEquipment trims entries, drops blanks and duplicates, and never returns nil.
func CleanEquipment(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, item := range in {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

// PlantStatus is the cultivation stage of a plant.
type PlantStatus string

// Known plant stages.
const (
	PlantStatusSeedling   PlantStatus = "seedling"
	PlantStatusVegetative PlantStatus = "vegetative"
	PlantStatusFlowering  PlantStatus = "flowering"
	PlantStatusDrying     PlantStatus = "drying"
	PlantStatusCuring     PlantStatus = "curing"
	PlantStatusHarvested  PlantStatus = "harvested"
	PlantStatusDiscarded  PlantStatus = "discarded"
)

// PlantStatuses lists every known stage in lifecycle order.
var PlantStatuses = []PlantStatus{
	PlantStatusSeedling,
	PlantStatusVegetative,
	PlantStatusFlowering,
	PlantStatusDrying,
	PlantStatusCuring,
	PlantStatusHarvested,
	PlantStatusDiscarded,
}

// Valid reports whether s is a known stage.
func (s PlantStatus) Valid() bool {
	for _, known := range PlantStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Plant is a single plant. Its QR code is unique across all plants and acts
// as an alternate key; OwnerID records the principal that registered it.
type Plant struct {
	ID         string      `json:"id" yaml:"id"`
	QRCode     string      `json:"qrCode" yaml:"qrCode"`
	Strain     string      `json:"strain" yaml:"strain"`
	BirthDate  string      `json:"birthDate" yaml:"birthDate"`
	GrowRoomID string      `json:"growRoomId" yaml:"growRoomId"`
	Status     PlantStatus `json:"status" yaml:"status"`
	OwnerID    string      `json:"ownerId" yaml:"ownerId"`
	CreatedAt  string      `json:"createdAt" yaml:"createdAt"`
}

// PlantInput carries the caller-supplied fields of a new plant.
type PlantInput struct {
	QRCode     string      `json:"qrCode"`
	Strain     string      `json:"strain"`
	BirthDate  string      `json:"birthDate"`
	GrowRoomID string      `json:"growRoomId"`
	Status     PlantStatus `json:"status,omitempty"`
}

// Validate checks the input and returns a ValidationError on failure.
func (in PlantInput) Validate() error {
	if strings.TrimSpace(in.QRCode) == "" {
		return ValidationError{Entity: EntityPlant, Field: FieldQRCode, Message: "required"}
	}
	if strings.TrimSpace(in.Strain) == "" {
		return ValidationError{Entity: EntityPlant, Field: FieldStrain, Message: "required"}
	}
	if strings.TrimSpace(in.GrowRoomID) == "" {
		return ValidationError{Entity: EntityPlant, Field: FieldGrowRoomID, Message: "required"}
	}
	if err := validateBirthDate(in.BirthDate); err != nil {
		return err
	}
	if in.Status != "" && !in.Status.Valid() {
		return ValidationError{Entity: EntityPlant, Field: FieldStatus, Message: "unknown status " + string(in.Status)}
	}
	return nil
}

// PlantPatch is a partial update of a plant. The QR code is immutable.
type PlantPatch struct {
	Strain     Field[string]      `json:"strain"`
	BirthDate  Field[string]      `json:"birthDate"`
	GrowRoomID Field[string]      `json:"growRoomId"`
	Status     Field[PlantStatus] `json:"status"`
}

// IsEmpty reports whether the patch changes nothing.
func (p PlantPatch) IsEmpty() bool {
	return !p.Strain.IsSet() && !p.BirthDate.IsSet() && !p.GrowRoomID.IsSet() && !p.Status.IsSet()
}

// Validate checks the supplied fields.
func (p PlantPatch) Validate() error {
	if strain, ok := p.Strain.Get(); ok && strings.TrimSpace(strain) == "" {
		return ValidationError{Entity: EntityPlant, Field: FieldStrain, Message: "must not be blank"}
	}
	if date, ok := p.BirthDate.Get(); ok {
		if err := validateBirthDate(date); err != nil {
			return err
		}
	}
	if room, ok := p.GrowRoomID.Get(); ok && strings.TrimSpace(room) == "" {
		return ValidationError{Entity: EntityPlant, Field: FieldGrowRoomID, Message: "must not be blank"}
	}
	if status, ok := p.Status.Get(); ok && !status.Valid() {
		return ValidationError{Entity: EntityPlant, Field: FieldStatus, Message: "unknown status " + string(status)}
	}
	return nil
}

func validateBirthDate(value string) error {
	if _, err := time.Parse(DateLayout, value); err != nil {
		return ValidationError{Entity: EntityPlant, Field: FieldBirthDate, Message: "expected YYYY-MM-DD"}
	}
	return nil
}
