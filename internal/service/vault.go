package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/atinyakov/linkvault/internal/access"
	"github.com/atinyakov/linkvault/internal/blob"
	"github.com/atinyakov/linkvault/internal/idgen"
	"github.com/atinyakov/linkvault/internal/metrics"
	"github.com/atinyakov/linkvault/internal/models"
	"github.com/atinyakov/linkvault/internal/repository"
	"go.uber.org/zap"
)

// DefaultTTL is the lifetime of items deposited without an expiry.
const DefaultTTL = 10 * time.Minute

const maxIDAttempts = 3

// Layouts accepted for caller supplied expiry times besides RFC 3339. They
// carry no zone and are read in server local time.
var localExpiryLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// VaultRepository defines the persistence operations required by VaultService.
type VaultRepository interface {
	Create(ctx context.Context, item *models.VaultItem) error
	Fetch(ctx context.Context, id string) (*models.VaultItem, error)
	IncrementViewCount(ctx context.Context, id string) (int, error)
	Delete(ctx context.Context, id string) error
	ListByOwner(ctx context.Context, ownerID string) ([]models.Summary, error)
}

// Upload is a file payload that already passed ingress checks.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// DepositRequest is the raw deposit input. ExpiresAt and MaxViews are kept
// as received and interpreted by Deposit.
type DepositRequest struct {
	Kind      models.ItemKind
	Text      string
	File      *Upload
	ExpiresAt string
	MaxViews  string
	OneTime   bool
	Password  string
	OwnerID   string
}

// ItemView is what a granted content request returns. It never carries the
// password hash, and for files never the storage key.
type ItemView struct {
	ID                string          `json:"id"`
	Kind              models.ItemKind `json:"type"`
	Content           *string         `json:"content,omitempty"`
	FileName          *string         `json:"file_name,omitempty"`
	ExpiresAt         time.Time       `json:"expiry_at"`
	MaxViews          int             `json:"max_views"`
	ViewCount         int             `json:"current_views"`
	CreatedAt         time.Time       `json:"created_at"`
	PasswordProtected bool            `json:"password_protected"`
}

// Download is an admitted file. The caller must close Body.
type Download struct {
	Body     io.ReadCloser
	FileName string
}

// VaultService implements the vault item lifecycle on top of a
// VaultRepository and a blob store.
type VaultService struct {
	repo    VaultRepository
	blobs   blob.Store
	now     func() time.Time
	newID   func() (string, error)
	metrics *metrics.Metrics
	log     *zap.Logger
}

// Option configures a VaultService.
type Option func(*VaultService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *VaultService) { s.now = now }
}

// WithIDGenerator replaces idgen.ItemID.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(s *VaultService) { s.newID = gen }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *VaultService) { s.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *VaultService) { s.log = l }
}

// NewVaultService constructs a VaultService.
func NewVaultService(repo VaultRepository, blobs blob.Store, opts ...Option) *VaultService {
	s := &VaultService{
		repo:  repo,
		blobs: blobs,
		now:   time.Now,
		newID: idgen.ItemID,
		log:   zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Deposit validates req, stores the blob for file items and creates the
// item row. Nothing is written unless every field is valid. If the row
// cannot be created the stored blob is removed again.
func (s *VaultService) Deposit(ctx context.Context, req DepositRequest) (*models.VaultItem, error) {
	now := s.now()

	switch req.Kind {
	case models.KindText:
		if req.Text == "" {
			return nil, invalid("Text content is required.")
		}
	case models.KindFile:
		if req.File == nil || req.File.Body == nil {
			return nil, invalid("File is required.")
		}
	default:
		return nil, invalid("Type must be text or file.")
	}

	expiresAt, err := parseExpiry(req.ExpiresAt, now)
	if err != nil {
		return nil, err
	}
	maxViews, err := parseMaxViews(req.MaxViews, req.OneTime)
	if err != nil {
		return nil, err
	}

	item := &models.VaultItem{
		Kind:      req.Kind,
		ExpiresAt: expiresAt,
		MaxViews:  maxViews,
		CreatedAt: now,
	}
	if req.OwnerID != "" {
		owner := req.OwnerID
		item.OwnerID = &owner
	}

	if pw := strings.TrimSpace(req.Password); pw != "" {
		if utf8.RuneCountInString(pw) < access.MinPasswordLength {
			return nil, invalid(fmt.Sprintf("Password must be at least %d characters.", access.MinPasswordLength))
		}
		hash, err := access.HashPassword(pw)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		item.PasswordHash = &hash
	}

	var storageKey string
	if req.Kind == models.KindText {
		text := req.Text
		item.Content = &text
	} else {
		storageKey, err = idgen.StorageKey(now, req.File.Name)
		if err != nil {
			return nil, fmt.Errorf("storage key: %w", err)
		}
		if err := s.blobs.Put(ctx, storageKey, req.File.Body, req.File.Size, req.File.ContentType); err != nil {
			return nil, fmt.Errorf("store blob: %w", err)
		}
		name := req.File.Name
		item.Content = &storageKey
		item.FileName = &name
	}

	if err := s.create(ctx, item); err != nil {
		if storageKey != "" {
			if derr := s.blobs.Delete(context.WithoutCancel(ctx), storageKey); derr != nil {
				s.log.Error("remove orphaned blob", zap.String("key", storageKey), zap.Error(derr))
			}
		}
		return nil, err
	}

	s.metrics.Deposited(string(item.Kind))
	s.log.Info("item deposited",
		zap.String("id", item.ID),
		zap.String("kind", string(item.Kind)),
		zap.Time("expires_at", item.ExpiresAt),
		zap.Int("max_views", item.MaxViews),
		zap.Bool("password", item.HasPassword()),
	)
	return item, nil
}

func (s *VaultService) create(ctx context.Context, item *models.VaultItem) error {
	for attempt := 1; ; attempt++ {
		id, err := s.newID()
		if err != nil {
			return fmt.Errorf("generate id: %w", err)
		}
		item.ID = id
		err = s.repo.Create(ctx, item)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicateID) || attempt == maxIDAttempts {
			return fmt.Errorf("create item: %w", err)
		}
		s.log.Warn("item id collision, retrying", zap.Int("attempt", attempt))
	}
}

// View returns the item behind id if access is granted. Text items are
// admitted and counted here; for file items this is the free landing page
// and counting happens on Download.
func (s *VaultService) View(ctx context.Context, id, password string) (*ItemView, error) {
	item, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.evaluate(item, password, false); err != nil {
		return nil, err
	}

	if item.Kind == models.KindText {
		count, err := s.admit(ctx, item)
		if err != nil {
			return nil, err
		}
		item.ViewCount = count
	}
	return viewOf(item), nil
}

// Download opens the blob of a file item and counts one admission. The
// blob is opened first so that a reclaimed or missing blob never consumes
// a view.
func (s *VaultService) Download(ctx context.Context, id, password string) (*Download, error) {
	item, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.evaluate(item, password, true); err != nil {
		return nil, err
	}

	body, err := s.blobs.Open(ctx, *item.Content)
	if errors.Is(err, blob.ErrNotFound) {
		s.metrics.Denied(access.NotFound.Code())
		return nil, denied(access.NotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open blob: %w", err)
	}

	if _, err := s.admit(ctx, item); err != nil {
		body.Close()
		return nil, err
	}

	var name string
	if item.FileName != nil {
		name = *item.FileName
	}
	return &Download{Body: body, FileName: name}, nil
}

// Destroy removes the item row and then its blob. Only the password gate
// applies; expired and exhausted items can still be destroyed. A blob that
// cannot be removed after the row is gone is logged and left behind.
func (s *VaultService) Destroy(ctx context.Context, id, password string) error {
	item, err := s.fetch(ctx, id)
	if err != nil {
		return err
	}
	if item == nil {
		return denied(access.NotFound)
	}
	if d := access.CheckPassword(item, password); d != access.Granted {
		s.metrics.Denied(d.Code())
		return denied(d)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return denied(access.NotFound)
		}
		return fmt.Errorf("delete item: %w", err)
	}

	// The row is gone, so a blob left behind is only an orphan.
	if item.Kind == models.KindFile && item.Content != nil {
		if err := s.blobs.Delete(context.WithoutCancel(ctx), *item.Content); err != nil {
			s.log.Error("remove orphaned blob", zap.String("key", *item.Content), zap.Error(err))
		}
	}
	s.log.Info("item destroyed", zap.String("id", id))
	return nil
}

// ListByOwner returns the owner's items newest first with their status at
// the current time.
func (s *VaultService) ListByOwner(ctx context.Context, ownerID string) ([]models.Summary, error) {
	if ownerID == "" {
		return nil, ErrUnauthorized
	}
	list, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	now := s.now()
	for i := range list {
		list[i].Status = access.StatusOf(list[i].ExpiresAt, list[i].MaxViews, list[i].ViewCount, now)
	}
	return list, nil
}

// Admit counts one view of id against its ceiling and returns the new
// count. It fails with repository.ErrLimitReached once the ceiling is
// consumed and never lets concurrent callers exceed it.
func (s *VaultService) Admit(ctx context.Context, id string) (int, error) {
	return s.repo.IncrementViewCount(ctx, id)
}

func (s *VaultService) admit(ctx context.Context, item *models.VaultItem) (int, error) {
	count, err := s.Admit(ctx, item.ID)
	switch {
	case err == nil:
		s.metrics.Admitted(string(item.Kind))
		return count, nil
	case errors.Is(err, repository.ErrLimitReached):
		s.metrics.Denied(access.LimitReached.Code())
		return 0, denied(access.LimitReached)
	case errors.Is(err, repository.ErrNotFound):
		s.metrics.Denied(access.NotFound.Code())
		return 0, denied(access.NotFound)
	default:
		return 0, fmt.Errorf("admit: %w", err)
	}
}

func (s *VaultService) fetch(ctx context.Context, id string) (*models.VaultItem, error) {
	item, err := s.repo.Fetch(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch item: %w", err)
	}
	return item, nil
}

func (s *VaultService) evaluate(item *models.VaultItem, password string, download bool) error {
	d := access.Evaluate(item, s.now(), password, download)
	if d == access.Granted {
		return nil
	}
	s.metrics.Denied(d.Code())
	return denied(d)
}

func viewOf(item *models.VaultItem) *ItemView {
	v := &ItemView{
		ID:                item.ID,
		Kind:              item.Kind,
		FileName:          item.FileName,
		ExpiresAt:         item.ExpiresAt,
		MaxViews:          item.MaxViews,
		ViewCount:         item.ViewCount,
		CreatedAt:         item.CreatedAt,
		PasswordProtected: item.HasPassword(),
	}
	if item.Kind == models.KindText {
		v.Content = item.Content
	}
	return v
}

func parseExpiry(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now.Add(DefaultTTL), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	for _, layout := range localExpiryLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, invalid("Invalid expiry date.")
}

// parseMaxViews reads the view ceiling. Negative or non-numeric input means
// unlimited; values beyond the stored INTEGER range are rejected.
func parseMaxViews(raw string, oneTime bool) (int, error) {
	if oneTime {
		return 1, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 32)
	switch {
	case errors.Is(err, strconv.ErrRange) && n > 0:
		return 0, invalid(fmt.Sprintf("Max views must be at most %d.", math.MaxInt32))
	case err != nil || n < 0:
		return 0, nil
	}
	return int(n), nil
}
