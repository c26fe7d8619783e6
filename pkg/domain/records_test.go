package domain_test

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"growbook/pkg/domain"
)

func intPtr(v int) *int { return &v }

func TestEnvironmentInputValidate(t *testing.T) {
	cases := []struct {
		name  string
		in    domain.EnvironmentInput
		field string
	}{
		{"ok", domain.EnvironmentInput{Name: "Tent", Capacity: intPtr(0)}, ""},
		{"blank name", domain.EnvironmentInput{Name: "  "}, domain.FieldName},
		{"negative capacity", domain.EnvironmentInput{Name: "Tent", Capacity: intPtr(-1)}, domain.FieldCapacity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.in.Validate()
			assertValidation(t, err, tc.field)
		})
	}
}

func TestEnvironmentPatchValidate(t *testing.T) {
	if err := (domain.EnvironmentPatch{Capacity: domain.Set[*int](nil)}).Validate(); err != nil {
		t.Fatalf("clearing capacity must be valid: %v", err)
	}
	assertValidation(t, domain.EnvironmentPatch{Name: domain.Set("")}.Validate(), domain.FieldName)
	assertValidation(t, domain.EnvironmentPatch{Capacity: domain.Set(intPtr(-2))}.Validate(), domain.FieldCapacity)
	if !(domain.EnvironmentPatch{}).IsEmpty() {
		t.Fatalf("zero patch must be empty")
	}
}

func TestPlantInputValidate(t *testing.T) {
	base := domain.PlantInput{QRCode: "QR", Strain: "Haze", BirthDate: "2024-03-01", GrowRoomID: "room"}
	cases := []struct {
		name   string
		mutate func(*domain.PlantInput)
		field  string
	}{
		{"ok", func(*domain.PlantInput) {}, ""},
		{"known status", func(in *domain.PlantInput) { in.Status = domain.PlantStatusDrying }, ""},
		{"missing qr", func(in *domain.PlantInput) { in.QRCode = " " }, domain.FieldQRCode},
		{"missing strain", func(in *domain.PlantInput) { in.Strain = "" }, domain.FieldStrain},
		{"missing room", func(in *domain.PlantInput) { in.GrowRoomID = "" }, domain.FieldGrowRoomID},
		{"bad date", func(in *domain.PlantInput) { in.BirthDate = "01/03/2024" }, domain.FieldBirthDate},
		{"impossible date", func(in *domain.PlantInput) { in.BirthDate = "2023-02-29" }, domain.FieldBirthDate},
		{"unknown status", func(in *domain.PlantInput) { in.Status = "blooming" }, domain.FieldStatus},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := base
			tc.mutate(&in)
			assertValidation(t, in.Validate(), tc.field)
		})
	}
}

func TestPlantPatchValidate(t *testing.T) {
	if err := (domain.PlantPatch{}).Validate(); err != nil {
		t.Fatalf("empty patch must be valid: %v", err)
	}
	assertValidation(t, domain.PlantPatch{Strain: domain.Set(" ")}.Validate(), domain.FieldStrain)
	assertValidation(t, domain.PlantPatch{BirthDate: domain.Set("")}.Validate(), domain.FieldBirthDate)
	assertValidation(t, domain.PlantPatch{GrowRoomID: domain.Set("")}.Validate(), domain.FieldGrowRoomID)
	assertValidation(t, domain.PlantPatch{Status: domain.Set[domain.PlantStatus]("")}.Validate(), domain.FieldStatus)
}

func TestCleanEquipment(t *testing.T) {
	got := domain.CleanEquipment([]string{" LED ", "", "Fan", "LED", "  "})
	if !reflect.DeepEqual(got, []string{"LED", "Fan"}) {
		t.Fatalf("unexpected equipment %#v", got)
	}
	if got := domain.CleanEquipment(nil); got == nil || len(got) != 0 {
		t.Fatalf("expected non-nil empty slice, got %#v", got)
	}
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 678900000, time.FixedZone("X", -5*60*60))
	if got := domain.FormatTimestamp(ts); got != "2024-01-02T08:04:05.678Z" {
		t.Fatalf("unexpected timestamp %q", got)
	}
}

func assertValidation(t *testing.T, err error, field string) {
	t.Helper()
	if field == "" {
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		return
	}
	var ve domain.ValidationError
	if !errors.As(err, &ve) || ve.Field != field {
		t.Fatalf("expected validation error on %s, got %v", field, err)
	}
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("validation error must match ErrInvalidInput")
	}
}
