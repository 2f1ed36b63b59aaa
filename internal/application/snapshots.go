package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chainnotes/internal/domain"
)

// SnapshotSize is the number of most recent transactions kept per (user, address).
const SnapshotSize = 5

const sourceEtherscan = "etherscan"

type TransactionSource interface {
	RecentTransactions(ctx context.Context, address string, limit int) (domain.TransactionPage, error)
}

type SnapshotRepository interface {
	ReplaceSnapshot(ctx context.Context, snapshot domain.TransactionSnapshot) error
	QuerySnapshotTransactions(ctx context.Context, filter SnapshotQueryFilter) ([]domain.Transaction, error)
}

type RefreshRequest struct {
	UserID    string
	Address   string
	StartDate string
	EndDate   string
}

// SnapshotView is the body returned to the caller: the explorer envelope with
// result replaced by either the fresh batch or the date-filtered stored view.
// Unfiltered views also carry the explorer body verbatim in Raw.
type SnapshotView struct {
	Status   string               `json:"status"`
	Message  string               `json:"message"`
	Result   []domain.Transaction `json:"result"`
	Filtered bool                 `json:"-"`
	Raw      []byte               `json:"-"`
}

type SnapshotService struct {
	source   TransactionSource
	repo     SnapshotRepository
	events   EventPublisher
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

type SnapshotOption func(*SnapshotService)

func WithSnapshotEvents(events EventPublisher) SnapshotOption {
	return func(s *SnapshotService) { s.events = events }
}

func WithSnapshotObserver(observer Observer) SnapshotOption {
	return func(s *SnapshotService) {
		if observer != nil {
			s.observer = observer
		}
	}
}

func WithSnapshotLogger(logger *slog.Logger) SnapshotOption {
	return func(s *SnapshotService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewSnapshotService(source TransactionSource, repo SnapshotRepository, opts ...SnapshotOption) (*SnapshotService, error) {
	if source == nil || repo == nil {
		return nil, errors.New("snapshot service dependencies must not be nil")
	}
	s := &SnapshotService{
		source:   source,
		repo:     repo,
		observer: nopObserver{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Refresh fetches the latest transactions for the address, replaces the caller's
// snapshot and returns either the fresh batch or, when both dates parse, the
// stored transactions inside the inclusive date range.
//
// A failed snapshot write is logged and does not fail the request, so a filtered
// view can disagree with the fresh batch.
func (s *SnapshotService) Refresh(ctx context.Context, req RefreshRequest) (SnapshotView, error) {
	if err := ValidateUserID(req.UserID); err != nil {
		return SnapshotView{}, err
	}
	address := strings.ToLower(strings.TrimSpace(req.Address))
	if address == "" {
		return SnapshotView{}, domain.ErrAddressRequired
	}

	s.logger.Info("fetching transactions", "address", address)
	page, err := s.source.RecentTransactions(ctx, address, SnapshotSize)
	if err != nil {
		s.logger.Error("transaction fetch failed", "address", address, "error", err)
		s.observer.OnUpstreamFailure(sourceEtherscan)
		return SnapshotView{}, fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}
	transactions := page.Transactions
	if transactions == nil {
		transactions = []domain.Transaction{}
	}

	now := s.now().UTC()
	snapshot := domain.TransactionSnapshot{
		UserID:       req.UserID,
		Address:      address,
		Transactions: transactions,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.persist(ctx, snapshot)

	view := SnapshotView{Status: page.Status, Message: page.Message, Result: transactions}
	start, end, ok := parseRange(req.StartDate, req.EndDate)
	if !ok {
		view.Raw = page.Raw
		return view, nil
	}

	filtered, err := s.repo.QuerySnapshotTransactions(ctx, SnapshotQueryFilter{
		UserID:  req.UserID,
		Address: address,
		From:    start,
		To:      end,
	})
	if err != nil {
		s.logger.Error("snapshot query failed", "address", address, "error", err)
		return SnapshotView{}, fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}
	if filtered == nil {
		filtered = []domain.Transaction{}
	}
	view.Result = filtered
	view.Filtered = true
	return view, nil
}

func (s *SnapshotService) persist(ctx context.Context, snapshot domain.TransactionSnapshot) {
	if err := s.repo.ReplaceSnapshot(ctx, snapshot); err != nil {
		s.logger.Error("error saving transactions", "address", snapshot.Address, "error", err)
		s.observer.OnSnapshotPersistFailed()
		return
	}
	s.logger.Debug("transactions saved", "address", snapshot.Address, "count", len(snapshot.Transactions))
	s.observer.OnSnapshotRefreshed(len(snapshot.Transactions))
	if s.events == nil {
		return
	}
	if err := s.events.PublishSnapshotRefreshed(ctx, snapshot); err != nil {
		s.logger.Warn("snapshot event publish failed", "address", snapshot.Address, "error", err)
	}
}
