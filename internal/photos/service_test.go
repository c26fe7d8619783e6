package photos_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"growbook/internal/core"
	"growbook/internal/docstore"
	memstore "growbook/internal/infra/docstore/memory"
	"growbook/internal/infra/photostore/memory"
	"growbook/internal/photos"
	"growbook/internal/principal"
	"growbook/pkg/domain"
)

func seedPlant(t *testing.T) (*core.PlantRepository, domain.Plant) {
	t.Helper()
	store, plant := seedPlantStore(t)
	return core.NewPlantRepository(store, principal.Static("U1")), plant
}

// seedPlantStore creates a plant owned by U1 and returns the store holding it.
func seedPlantStore(t *testing.T) (docstore.Store, domain.Plant) {
	t.Helper()
	ctx := context.Background()
	store := memstore.NewStore()
	t.Cleanup(func() { _ = store.Close() })
	envs := core.NewEnvironmentRepository(store, principal.Static("U1"))
	env, err := envs.Create(ctx, domain.EnvironmentInput{Name: "Tent"})
	if err != nil {
		t.Fatalf("create environment: %v", err)
	}
	plants := core.NewPlantRepository(store, principal.Static("U1"))
	plant, err := plants.Create(ctx, domain.PlantInput{QRCode: "QR-7", Strain: "Haze", BirthDate: "2024-04-01", GrowRoomID: env.ID})
	if err != nil {
		t.Fatalf("create plant: %v", err)
	}
	return store, plant
}

func pngURI(payload string) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte(payload))
}

func TestArchiveAndList(t *testing.T) {
	ctx := context.Background()
	plants, plant := seedPlant(t)
	store := memory.New()
	ids := []string{"first", "second"}
	svc := photos.NewService(store, plants, photos.WithIDGenerator(func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}))

	photo, err := svc.Archive(ctx, plant.ID, pngURI("leaf"))
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	want := "plants/" + plant.ID + "/first.png"
	if photo.Key != want || photo.Size != 4 || photo.ContentType != "image/png" || photo.PlantID != plant.ID {
		t.Fatalf("unexpected photo %#v", photo)
	}
	head, err := store.Head(ctx, want)
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if head.Metadata[photos.MetaPlantID] != plant.ID || head.Metadata[photos.MetaQRCode] != "QR-7" {
		t.Fatalf("unexpected metadata %#v", head.Metadata)
	}

	if _, err := svc.Archive(ctx, plant.ID, pngURI("bud")); err != nil {
		t.Fatalf("Archive second: %v", err)
	}
	list, err := svc.List(ctx, plant.ID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].Key != want || !strings.HasSuffix(list[1].Key, "/second.png") {
		t.Fatalf("unexpected list %#v", list)
	}
}

func TestArchiveRejects(t *testing.T) {
	ctx := context.Background()
	plants, plant := seedPlant(t)
	svc := photos.NewService(memory.New(), plants, photos.WithMaxBytes(3))

	if _, err := svc.Archive(ctx, "missing", pngURI("x")); !errors.Is(err, domain.ErrNotFoundOrForbidden) {
		t.Fatalf("expected not found for unknown plant, got %v", err)
	}
	if _, err := svc.Archive(ctx, " ", pngURI("x")); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for blank plant id, got %v", err)
	}
	if _, err := svc.Archive(ctx, plant.ID, "not a uri"); !errors.Is(err, photos.ErrInvalidDataURI) {
		t.Fatalf("expected ErrInvalidDataURI, got %v", err)
	}
	if _, err := svc.Archive(ctx, plant.ID, pngURI("toolarge")); !errors.Is(err, photos.ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if _, err := svc.List(ctx, "missing"); !errors.Is(err, domain.ErrNotFoundOrForbidden) {
		t.Fatalf("expected not found listing unknown plant, got %v", err)
	}
}

func TestArchiveRequiresPlantOwner(t *testing.T) {
	ctx := context.Background()
	store, plant := seedPlantStore(t)
	arch := memory.New()

	anonymous := photos.NewService(arch, core.NewPlantRepository(store, principal.Anonymous))
	if _, err := anonymous.Archive(ctx, plant.ID, pngURI("leaf")); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for anonymous archive, got %v", err)
	}
	if _, err := anonymous.List(ctx, plant.ID); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for anonymous list, got %v", err)
	}

	intruder := photos.NewService(arch, core.NewPlantRepository(store, principal.Static("U2")))
	_, foreignErr := intruder.Archive(ctx, plant.ID, pngURI("leaf"))
	_, missingErr := intruder.Archive(ctx, "missing", pngURI("leaf"))
	if !errors.Is(foreignErr, domain.ErrNotFoundOrForbidden) || foreignErr.Error() != strings.Replace(missingErr.Error(), "missing", plant.ID, 1) {
		t.Fatalf("a foreign plant must look missing: foreign=%v missing=%v", foreignErr, missingErr)
	}
	if _, err := intruder.List(ctx, plant.ID); !errors.Is(err, domain.ErrNotFoundOrForbidden) {
		t.Fatalf("expected not found listing a foreign plant, got %v", err)
	}

	infos, err := arch.List(ctx, photos.KeyPrefix(plant.ID))
	if err != nil {
		t.Fatalf("List archive: %v", err)
	}
	if len(infos) != 0 {
		t.Fatalf("rejected callers must not write photos, found %d", len(infos))
	}
}

func TestAnalyze(t *testing.T) {
	ctx := context.Background()
	plants, _ := seedPlant(t)

	if _, err := photos.NewService(memory.New(), plants).Analyze(ctx, pngURI("x")); !errors.Is(err, photos.ErrNoAnalyzer) {
		t.Fatalf("expected ErrNoAnalyzer, got %v", err)
	}

	var seen string
	analyzer := photos.AnalyzerFunc(func(_ context.Context, req photos.AnalysisRequest) (photos.AnalysisResult, error) {
		seen = req.PhotoDataURI
		return photos.AnalysisResult{AnalysisResult: "healthy"}, nil
	})
	svc := photos.NewService(memory.New(), plants, photos.WithAnalyzer(analyzer))
	res, err := svc.Analyze(ctx, pngURI("leaf"))
	if err != nil || res.AnalysisResult != "healthy" || seen != pngURI("leaf") {
		t.Fatalf("unexpected analysis %#v (%v), seen %q", res, err, seen)
	}
	if _, err := svc.Analyze(ctx, "garbage"); !errors.Is(err, photos.ErrInvalidDataURI) {
		t.Fatalf("invalid uris must not reach the analyzer, got %v", err)
	}

	failing := photos.NewService(memory.New(), plants, photos.WithAnalyzer(photos.AnalyzerFunc(
		func(context.Context, photos.AnalysisRequest) (photos.AnalysisResult, error) {
			return photos.AnalysisResult{}, errors.New("model offline")
		})))
	if _, err := failing.Analyze(ctx, pngURI("leaf")); err == nil || !strings.Contains(err.Error(), "model offline") {
		t.Fatalf("expected analyzer failure surfaced, got %v", err)
	}
}

func TestHTTPAnalyzer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req photos.AnalysisRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || r.Method != http.MethodPost {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if !strings.HasPrefix(req.PhotoDataURI, "data:image/png;base64,") {
			http.Error(w, "unexpected uri", http.StatusUnprocessableEntity)
			return
		}
		_ = json.NewEncoder(w).Encode(photos.AnalysisResult{AnalysisResult: "early flowering"})
	}))
	defer srv.Close()

	a := photos.NewHTTPAnalyzer(srv.URL)
	res, err := a.Analyze(context.Background(), photos.AnalysisRequest{PhotoDataURI: pngURI("x")})
	if err != nil || res.AnalysisResult != "early flowering" {
		t.Fatalf("unexpected result %#v (%v)", res, err)
	}
	_, err = a.Analyze(context.Background(), photos.AnalysisRequest{PhotoDataURI: "data:text/plain;base64,eA=="})
	if err == nil || !strings.Contains(err.Error(), "422") {
		t.Fatalf("expected status error, got %v", err)
	}
}
