package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"chainnotes/internal/domain"

	"github.com/ipfs/go-cid"
)

const sourceContentStore = "contentstore"

// MaxLabelLength bounds labels in characters, matching the label column width.
const MaxLabelLength = 255

// ContentStore holds immutable blocks addressed by their CID.
type ContentStore interface {
	Add(ctx context.Context, data []byte) (cid.Cid, error)
	Get(ctx context.Context, id cid.Cid) ([]byte, error)
}

type LabelRepository interface {
	FindLabel(ctx context.Context, userID, label string) (domain.LabeledText, bool, error)
	SaveLabel(ctx context.Context, entry domain.LabeledText) error
}

type StoreTextRequest struct {
	UserID string
	Text   string
	Label  string
}

type TextService struct {
	content  ContentStore
	labels   LabelRepository
	events   EventPublisher
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

type TextOption func(*TextService)

func WithTextEvents(events EventPublisher) TextOption {
	return func(s *TextService) { s.events = events }
}

func WithTextObserver(observer Observer) TextOption {
	return func(s *TextService) {
		if observer != nil {
			s.observer = observer
		}
	}
}

func WithTextLogger(logger *slog.Logger) TextOption {
	return func(s *TextService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewTextService(content ContentStore, labels LabelRepository, opts ...TextOption) (*TextService, error) {
	if content == nil || labels == nil {
		return nil, errors.New("text service dependencies must not be nil")
	}
	s := &TextService{
		content:  content,
		labels:   labels,
		observer: nopObserver{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Store adds the text to the content store and records label -> CID for the user.
//
// The label mapping is written after the content. If that write fails the
// content is orphaned: it stays in the store but no label reaches it. The
// caller still receives the CID, and the orphan is logged and counted.
func (s *TextService) Store(ctx context.Context, req StoreTextRequest) (string, error) {
	if err := ValidateUserID(req.UserID); err != nil {
		return "", err
	}
	if req.Text == "" {
		return "", domain.ErrTextRequired
	}
	if req.Label == "" {
		return "", domain.ErrLabelRequired
	}
	if utf8.RuneCountInString(req.Label) > MaxLabelLength {
		return "", domain.ErrLabelTooLong
	}

	_, found, err := s.labels.FindLabel(ctx, req.UserID, req.Label)
	if err != nil {
		return "", fmt.Errorf("find label: %w", err)
	}
	if found {
		return "", domain.ErrLabelExists
	}

	id, err := s.content.Add(ctx, []byte(req.Text))
	if err != nil {
		s.logger.Error("error storing text", "label", req.Label, "error", err)
		s.observer.OnUpstreamFailure(sourceContentStore)
		return "", fmt.Errorf("%w: %v", domain.ErrStoreFailed, err)
	}

	entry := domain.LabeledText{
		UserID:    req.UserID,
		Label:     req.Label,
		CID:       id.String(),
		CreatedAt: s.now().UTC(),
	}
	if err := s.labels.SaveLabel(ctx, entry); err != nil {
		if errors.Is(err, domain.ErrLabelExists) {
			// A concurrent store won the label between the lookup and the save.
			return "", domain.ErrLabelExists
		}
		s.logger.Error("error saving text metadata, content orphaned", "label", req.Label, "cid", entry.CID, "error", err)
		s.observer.OnOrphanedContent()
		return entry.CID, nil
	}
	s.observer.OnTextStored()
	if s.events != nil {
		if err := s.events.PublishTextStored(ctx, entry); err != nil {
			s.logger.Warn("text event publish failed", "label", req.Label, "error", err)
		}
	}
	return entry.CID, nil
}

// Retrieve resolves the user's label and returns the stored text.
func (s *TextService) Retrieve(ctx context.Context, userID, label string) (string, error) {
	if err := ValidateUserID(userID); err != nil {
		return "", err
	}
	if label == "" {
		return "", domain.ErrLabelRequired
	}

	entry, found, err := s.labels.FindLabel(ctx, userID, label)
	if err != nil {
		return "", fmt.Errorf("find label: %w", err)
	}
	if !found {
		return "", domain.ErrLabelNotFound
	}

	id, err := cid.Decode(entry.CID)
	if err != nil {
		return "", fmt.Errorf("parse content identifier %q: %w", entry.CID, err)
	}

	data, err := s.content.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrContentNotFound) {
			return "", domain.ErrContentNotFound
		}
		s.logger.Error("error retrieving text", "label", label, "cid", entry.CID, "error", err)
		s.observer.OnUpstreamFailure(sourceContentStore)
		return "", fmt.Errorf("%w: %v", domain.ErrStoreFailed, err)
	}
	return string(data), nil
}
