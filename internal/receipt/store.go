package receipt

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/zombor/eco-receipts/internal/scanning"
)

// amountTolerance is how far amount may drift from the item total before it is reported
const amountTolerance = 0.005

// IDGenerator generates unique IDs for receipts
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// Store owns the receipt collection. Mutations are serialized and each one
// recomputes the eco stats before the lock is released.
type Store struct {
	source  Source
	scanner scanning.Scanner
	storage Storage
	ids     IDGenerator
	clock   TimeSource

	loads   singleflight.Group
	pending atomic.Int32

	mu       sync.RWMutex
	loaded   bool
	receipts []Receipt // most recent first
	stats    EcoStats
}

// NewStore creates a Store with UUID ids and the system clock
func NewStore(source Source, scanner scanning.Scanner, storage Storage) *Store {
	return NewStoreWithDeps(source, scanner, storage, uuidGenerator{}, systemClock{})
}

// NewStoreWithDeps creates a Store with custom dependencies for testing
func NewStoreWithDeps(source Source, scanner scanning.Scanner, storage Storage, ids IDGenerator, clock TimeSource) *Store {
	return &Store{
		source:   source,
		scanner:  scanner,
		storage:  storage,
		ids:      ids,
		clock:    clock,
		receipts: make([]Receipt, 0),
		stats:    Aggregate(nil),
	}
}

// Load fills the collection from the source. Concurrent callers share one
// load that outlives any single caller; each caller still returns as soon as
// its own ctx is done. After a successful load further calls do nothing.
func (s *Store) Load(ctx context.Context) error {
	if s.isLoaded() {
		return nil
	}

	shared := context.WithoutCancel(ctx)
	ch := s.loads.DoChan("load", func() (interface{}, error) {
		s.pending.Add(1)
		defer s.pending.Add(-1)

		if s.isLoaded() {
			return nil, nil
		}
		seed, err := s.source.Receipts(shared)
		if err != nil {
			slog.Error("Failed to load receipts", "error", err)
			return nil, fmt.Errorf("loading receipts: %w", err)
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		// uploads that finished while loading stay in front of the seed
		for _, r := range seed {
			s.receipts = append(s.receipts, r.clone())
		}
		s.loaded = true
		s.recompute()
		slog.Info("Receipts loaded", "count", len(seed))
		return nil, nil
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) isLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Upload validates, stores and scans a file, then prepends the new receipt.
// On any failure the collection is unchanged and the error is an *UploadError.
func (s *Store) Upload(ctx context.Context, up Upload) (Receipt, error) {
	s.pending.Add(1)
	defer s.pending.Add(-1)

	contentType, err := up.validate()
	if err != nil {
		return Receipt{}, &UploadError{Filename: up.Filename, Err: err}
	}

	id := s.ids.Generate()
	savedName, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(up.Filename)), up.Data)
	if err != nil {
		return Receipt{}, &UploadError{Filename: up.Filename, Err: fmt.Errorf("%w: saving file: %w", ErrProcessing, err)}
	}

	data, err := s.scanner.ScanReceipt(ctx, up.Data, contentType)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		slog.Error("Failed to scan receipt",
			"filename", up.Filename,
			"content_type", contentType,
			"file_size", len(up.Data),
			"error", err,
		)
		s.removeFile(savedName)
		return Receipt{}, &UploadError{Filename: up.Filename, Err: fmt.Errorf("%w: %w", ErrProcessing, err)}
	}

	now := s.clock.Now().UTC()
	r := fromScan(data)
	r.ID = id
	r.UserID = up.UserID
	r.Filename = savedName
	r.OriginalName = up.Filename
	r.UploadDate = now
	if data.Warranty != nil {
		r.Warranty = Covered(Coverage{
			Period: data.Warranty.Period,
			Expiry: now.AddDate(0, data.Warranty.Months, 0),
		})
	}

	if len(r.Items) > 0 && math.Abs(r.Amount-r.ItemTotal()) > amountTolerance {
		slog.Warn("Receipt amount does not match its items",
			"id", r.ID,
			"amount", r.Amount,
			"item_total", r.ItemTotal(),
		)
	}

	s.mu.Lock()
	s.receipts = append([]Receipt{r}, s.receipts...)
	s.recompute()
	s.mu.Unlock()

	slog.Info("Receipt uploaded", "id", r.ID, "vendor", r.Vendor, "eco_score", r.EcoScore)
	return s.view(r, now), nil
}

func fromScan(data *scanning.ReceiptData) Receipt {
	items := make([]Item, 0, len(data.Items))
	for _, it := range data.Items {
		items = append(items, Item{
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     it.Price,
			Category:  it.Category,
			EcoImpact: it.EcoImpact,
		})
	}
	return Receipt{
		ParsedText: data.ParsedText,
		Amount:     data.Amount,
		Currency:   data.Currency,
		Vendor:     data.Vendor,
		Category:   data.Category,
		Items:      items,
		Warranty:   NoWarranty(),
		EcoScore:   data.EcoScore,
	}
}

// Delete removes a receipt and its file. It reports whether anything was
// removed; an unknown id is not an error.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	removed := s.receipts[idx]
	s.receipts = append(s.receipts[:idx:idx], s.receipts[idx+1:]...)
	s.recompute()
	s.mu.Unlock()

	s.removeFile(removed.Filename)
	slog.Info("Receipt deleted", "id", id)
	return true
}

func (s *Store) removeFile(name string) {
	if err := s.storage.Delete(name); err != nil {
		slog.Warn("Failed to delete file", "filename", name, "error", err)
	}
}

// indexOf must be called with s.mu held
func (s *Store) indexOf(id string) int {
	for i, r := range s.receipts {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// Receipts returns a snapshot of the collection, most recent first
func (s *Store) Receipts() []Receipt {
	now := s.clock.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Receipt, len(s.receipts))
	for i, r := range s.receipts {
		out[i] = s.view(r, now)
	}
	return out
}

// Get returns a single receipt
func (s *Store) Get(id string) (Receipt, error) {
	now := s.clock.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return Receipt{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.view(s.receipts[idx], now), nil
}

// File returns the stored upload of a receipt and its content type
func (s *Store) File(id string) ([]byte, string, error) {
	r, err := s.Get(id)
	if err != nil {
		return nil, "", err
	}
	data, err := s.storage.Get(r.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}
	contentType, ok := allowedTypes[strings.ToLower(filepath.Ext(r.Filename))]
	if !ok {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}

// Stats returns the eco stats of the current collection
func (s *Store) Stats() EcoStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.stats
	out.MonthlyTrend = make([]MonthlyScore, len(s.stats.MonthlyTrend))
	copy(out.MonthlyTrend, s.stats.MonthlyTrend)
	return out
}

// Loading reports whether a load or an upload is in progress
func (s *Store) Loading() bool {
	return s.pending.Load() > 0
}

// view is the copy handed out to callers
func (s *Store) view(r Receipt, now time.Time) Receipt {
	r = r.clone()
	r.Warranty = r.Warranty.withExpiring(now)
	return r
}

// recompute must be called with s.mu held for writing
func (s *Store) recompute() {
	s.stats = Aggregate(s.receipts)
}
