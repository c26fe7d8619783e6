// Package photos archives plant photos supplied as data URIs and forwards
// them to an external analyzer.
package photos

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"growbook/internal/photos/archive"
	"growbook/pkg/domain"
)

// DefaultMaxBytes caps a decoded photo.
const DefaultMaxBytes = 10 << 20

// Metadata keys written alongside each archived photo.
const (
	MetaPlantID = "plantid"
	MetaQRCode  = "qrcode"
)

// ErrTooLarge is returned when a decoded photo exceeds the size limit.
var ErrTooLarge = errors.New("photos: photo too large")

// PlantLookup resolves the plant a photo belongs to on behalf of the calling
// principal. It fails with ErrUnauthenticated without a principal and with a
// NotFoundError for missing and foreign plants alike.
// *core.PlantRepository satisfies it.
type PlantLookup interface {
	GetOwned(ctx context.Context, id string) (domain.Plant, error)
}

// Photo is an archived plant photo.
type Photo struct {
	Key         string    `json:"key" yaml:"key"`
	PlantID     string    `json:"plantId" yaml:"plantId"`
	ContentType string    `json:"contentType" yaml:"contentType"`
	Size        int64     `json:"sizeBytes" yaml:"sizeBytes"`
	ArchivedAt  time.Time `json:"archivedAt" yaml:"archivedAt"`
	URL         string    `json:"url,omitempty" yaml:"url,omitempty"`
}

// Option configures a Service.
type Option func(*Service)

// WithAnalyzer sets the analyzer used by Analyze.
func WithAnalyzer(a Analyzer) Option {
	return func(s *Service) { s.analyzer = a }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxBytes overrides DefaultMaxBytes.
func WithMaxBytes(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithIDGenerator overrides the uuid generator used in photo keys.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// Service stores photos under plants/<plantID>/<uuid>.<ext>.
type Service struct {
	archive  archive.Store
	plants   PlantLookup
	analyzer Analyzer
	logger   *slog.Logger
	maxBytes int
	newID    func() string
}

// NewService binds an archive and a plant lookup.
func NewService(store archive.Store, plants PlantLookup, opts ...Option) *Service {
	s := &Service{
		archive:  store,
		plants:   plants,
		logger:   slog.New(slog.DiscardHandler),
		maxBytes: DefaultMaxBytes,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// KeyPrefix returns the archive prefix holding a plant's photos.
func KeyPrefix(plantID string) string {
	return "plants/" + plantID + "/"
}

// Archive decodes dataURI and stores it for the plant. The plant must belong
// to the caller.
func (s *Service) Archive(ctx context.Context, plantID, dataURI string) (Photo, error) {
	plantID = strings.TrimSpace(plantID)
	plant, err := s.lookup(ctx, plantID)
	if err != nil {
		return Photo{}, err
	}
	uri, err := ParseDataURIMax(dataURI, s.maxBytes)
	if err != nil {
		return Photo{}, err
	}
	key := KeyPrefix(plant.ID) + s.newID() + "." + uri.Extension()
	info, err := s.archive.Put(ctx, key, bytes.NewReader(uri.Data), archive.PutOptions{
		ContentType: uri.MIMEType,
		Metadata:    map[string]string{MetaPlantID: plant.ID, MetaQRCode: plant.QRCode},
	})
	if err != nil {
		s.logger.Error("archive photo failed", "plant_id", plant.ID, "key", key, "error", err)
		return Photo{}, fmt.Errorf("archive photo: %w", err)
	}
	s.logger.Info("photo archived", "plant_id", plant.ID, "key", key, "bytes", info.Size)
	return s.photoFrom(ctx, plant.ID, info), nil
}

// List returns the archived photos of one of the caller's plants, ordered by
// key.
func (s *Service) List(ctx context.Context, plantID string) ([]Photo, error) {
	plant, err := s.lookup(ctx, strings.TrimSpace(plantID))
	if err != nil {
		return nil, err
	}
	infos, err := s.archive.List(ctx, KeyPrefix(plant.ID))
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	out := make([]Photo, 0, len(infos))
	for _, info := range infos {
		out = append(out, s.photoFrom(ctx, plant.ID, info))
	}
	return out, nil
}

// Analyze validates dataURI and passes it to the configured analyzer.
func (s *Service) Analyze(ctx context.Context, dataURI string) (AnalysisResult, error) {
	if s.analyzer == nil {
		return AnalysisResult{}, ErrNoAnalyzer
	}
	if _, err := ParseDataURI(dataURI); err != nil {
		return AnalysisResult{}, err
	}
	start := time.Now()
	res, err := s.analyzer.Analyze(ctx, AnalysisRequest{PhotoDataURI: dataURI})
	if err != nil {
		s.logger.Warn("photo analysis failed", "duration", time.Since(start), "error", err)
		return AnalysisResult{}, fmt.Errorf("analyze photo: %w", err)
	}
	s.logger.Debug("photo analysed", "duration", time.Since(start))
	return res, nil
}

func (s *Service) lookup(ctx context.Context, plantID string) (domain.Plant, error) {
	if plantID == "" {
		return domain.Plant{}, domain.ValidationError{Entity: domain.EntityPlant, Field: "id", Message: "required"}
	}
	return s.plants.GetOwned(ctx, plantID)
}

func (s *Service) photoFrom(ctx context.Context, plantID string, info archive.Info) Photo {
	p := Photo{
		Key:         info.Key,
		PlantID:     plantID,
		ContentType: info.ContentType,
		Size:        info.Size,
		ArchivedAt:  info.LastModified,
	}
	if u, err := s.archive.PresignURL(ctx, info.Key, archive.URLOptions{}); err == nil {
		p.URL = u
	} else if !errors.Is(err, archive.ErrUnsupported) {
		s.logger.Debug("presign photo url failed", "key", info.Key, "error", err)
	}
	return p
}
