package docstore_test

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"growbook/internal/docstore"
)

func TestCodecPreservesTimestampsAndNumbers(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 123456789, time.UTC)
	in := docstore.Fields{
		"createdAt": ts,
		"capacity":  4,
		"ratio":     0.5,
		"name":      "Tent",
		"equipment": []string{"LED", "Fan"},
		"empty":     []string{},
		"cleared":   nil,
		"flag":      true,
	}
	raw, err := docstore.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := docstore.Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got, ok := out["createdAt"].(time.Time); !ok || !got.Equal(ts) {
		t.Fatalf("expected native time back, got %#v", out["createdAt"])
	}
	if out["capacity"] != int64(4) || out["ratio"] != 0.5 {
		t.Fatalf("unexpected numbers %#v %#v", out["capacity"], out["ratio"])
	}
	if !reflect.DeepEqual(out["equipment"], []string{"LED", "Fan"}) {
		t.Fatalf("unexpected equipment %#v", out["equipment"])
	}
	if eq, ok := out["empty"].([]string); !ok || len(eq) != 0 {
		t.Fatalf("expected empty string slice, got %#v", out["empty"])
	}
	if v, ok := out["cleared"]; !ok || v != nil {
		t.Fatalf("expected explicit null kept, got %#v (present=%v)", v, ok)
	}
	if out["name"] != "Tent" || out["flag"] != true {
		t.Fatalf("unexpected scalars %#v", out)
	}
}

func TestCodecTimeLookalikeStaysString(t *testing.T) {
	out, err := docstore.Decode([]byte(`{"createdAt":"2024-05-06T07:08:09.000Z"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, ok := out["createdAt"].(string); !ok {
		t.Fatalf("plain strings must not be promoted to time, got %#v", out["createdAt"])
	}
}

func TestEncodeRejectsUnresolvedServerTimestamp(t *testing.T) {
	if _, err := docstore.Encode(docstore.Fields{"createdAt": docstore.ServerTimestamp}); err == nil {
		t.Fatalf("expected error for unresolved sentinel")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := docstore.Decode([]byte("not json")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestResolveServerTimestampsCopies(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	in := docstore.Fields{"createdAt": docstore.ServerTimestamp, "tags": []string{"a"}}
	out := docstore.ResolveServerTimestamps(in, now)
	if out["createdAt"] != now {
		t.Fatalf("expected resolved timestamp, got %#v", out["createdAt"])
	}
	if !docstore.IsServerTimestamp(in["createdAt"]) {
		t.Fatalf("input must not be modified")
	}
	out["tags"].([]string)[0] = "b"
	if in["tags"].([]string)[0] != "a" {
		t.Fatalf("slices must not be shared")
	}
}

func TestClassify(t *testing.T) {
	if docstore.Classify(nil) != nil {
		t.Fatalf("nil stays nil")
	}
	logical := errors.New("syntax error")
	if docstore.Classify(logical) != logical {
		t.Fatalf("logical errors pass through")
	}
	if !errors.Is(docstore.Classify(timeoutErr{}), docstore.ErrUnavailable) {
		t.Fatalf("network errors must be marked unavailable")
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }
