package application

import (
	"context"
	"testing"
	"time"

	"chainnotes/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tx(hash string, ts time.Time) domain.Transaction {
	return domain.Transaction{Hash: hash, TimeStamp: ts, BlockNumber: "1", From: testAddress}
}

func page(txs ...domain.Transaction) domain.TransactionPage {
	return domain.TransactionPage{Status: "1", Message: "OK", Transactions: txs}
}

func TestRefresh_SecondFetchReplacesSnapshot(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	source := &fakeSource{pages: []domain.TransactionPage{
		page(tx("0xa", t1), tx("0xb", t1)),
		page(tx("0xc", t1)),
	}}
	repo := newMemSnapshots()
	events := &recordingEvents{}
	svc, err := NewSnapshotService(source, repo, WithSnapshotEvents(events))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = svc.Refresh(ctx, RefreshRequest{UserID: testUser, Address: testAddress})
	require.NoError(t, err)
	view, err := svc.Refresh(ctx, RefreshRequest{UserID: testUser, Address: testAddress})
	require.NoError(t, err)

	require.Len(t, repo.snapshots, 1)
	stored := repo.snapshots[testUser+"|"+testAddress]
	require.Len(t, stored.Transactions, 1)
	assert.Equal(t, "0xc", stored.Transactions[0].Hash)
	assert.Equal(t, stored.Transactions, view.Result)
	assert.False(t, view.Filtered)
	assert.Equal(t, SnapshotSize, source.limit)
	assert.Len(t, events.snapshots, 2)
}

func TestRefresh_FiltersStoredSnapshotByDate(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	t3 := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	source := &fakeSource{pages: []domain.TransactionPage{page(tx("0x3", t3), tx("0x2", t2), tx("0x1", t1))}}
	repo := newMemSnapshots()
	svc, err := NewSnapshotService(source, repo)
	require.NoError(t, err)

	view, err := svc.Refresh(context.Background(), RefreshRequest{
		UserID:    testUser,
		Address:   testAddress,
		StartDate: "2024-01-01",
		EndDate:   "2024-01-02",
	})
	require.NoError(t, err)

	require.True(t, view.Filtered)
	hashes := make([]string, 0, len(view.Result))
	for _, entry := range view.Result {
		hashes = append(hashes, entry.Hash)
	}
	assert.Equal(t, []string{"0x2", "0x1"}, hashes)
	assert.Equal(t, testUser, repo.lastFilter.UserID)
	assert.Equal(t, testAddress, repo.lastFilter.Address)
}

func TestRefresh_UnparseableDatesReturnFreshBatch(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	source := &fakeSource{pages: []domain.TransactionPage{page(tx("0x1", t1), tx("0x2", t1))}}
	svc, err := NewSnapshotService(source, newMemSnapshots())
	require.NoError(t, err)

	for _, dates := range [][2]string{{"not-a-date", "2024-01-02"}, {"2024-01-01", "not-a-date"}, {"2024-01-01", ""}} {
		source.pages = []domain.TransactionPage{page(tx("0x1", t1), tx("0x2", t1))}
		view, err := svc.Refresh(context.Background(), RefreshRequest{
			UserID:    testUser,
			Address:   testAddress,
			StartDate: dates[0],
			EndDate:   dates[1],
		})
		require.NoError(t, err)
		assert.False(t, view.Filtered)
		assert.Len(t, view.Result, 2)
		assert.Equal(t, "OK", view.Message)
	}
}

func TestRefresh_RawBodyOnlyOnUnfilteredViews(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	body := []byte(`{"status":"1","message":"OK","result":[{"hash":"0x1"}]}`)
	fresh := page(tx("0x1", t1))
	fresh.Raw = body
	source := &fakeSource{pages: []domain.TransactionPage{fresh}}
	svc, err := NewSnapshotService(source, newMemSnapshots())
	require.NoError(t, err)
	ctx := context.Background()

	view, err := svc.Refresh(ctx, RefreshRequest{UserID: testUser, Address: testAddress})
	require.NoError(t, err)
	assert.Equal(t, body, view.Raw)

	view, err = svc.Refresh(ctx, RefreshRequest{UserID: testUser, Address: testAddress, StartDate: "2024-01-01", EndDate: "2024-01-02"})
	require.NoError(t, err)
	assert.True(t, view.Filtered)
	assert.Nil(t, view.Raw)
}

func TestRefresh_Validation(t *testing.T) {
	source := &fakeSource{pages: []domain.TransactionPage{page()}}
	svc, err := NewSnapshotService(source, newMemSnapshots())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Refresh(ctx, RefreshRequest{Address: testAddress})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.Refresh(ctx, RefreshRequest{UserID: "someone", Address: testAddress})
	assert.ErrorIs(t, err, domain.ErrUnknownUser)

	_, err = svc.Refresh(ctx, RefreshRequest{UserID: testUser, Address: "  "})
	assert.ErrorIs(t, err, domain.ErrAddressRequired)

	assert.Zero(t, source.calls)
}

func TestRefresh_UpstreamFailure(t *testing.T) {
	source := &fakeSource{err: errBoom}
	repo := newMemSnapshots()
	observer := &recordingObserver{}
	svc, err := NewSnapshotService(source, repo, WithSnapshotObserver(observer))
	require.NoError(t, err)

	view, err := svc.Refresh(context.Background(), RefreshRequest{UserID: testUser, Address: testAddress})
	require.ErrorIs(t, err, domain.ErrFetchFailed)
	assert.Nil(t, view.Result)
	assert.Empty(t, repo.snapshots)
	assert.Equal(t, 1, observer.upstream[sourceEtherscan])
}

func TestRefresh_PersistFailureIsNotSurfaced(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	older := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	repo := newMemSnapshots()
	repo.snapshots[testUser+"|"+testAddress] = domain.TransactionSnapshot{
		UserID:       testUser,
		Address:      testAddress,
		Transactions: []domain.Transaction{tx("0xold", older)},
	}
	repo.replaceErr = errBoom
	observer := &recordingObserver{}
	source := &fakeSource{pages: []domain.TransactionPage{page(tx("0xnew", t1))}}
	svc, err := NewSnapshotService(source, repo, WithSnapshotObserver(observer))
	require.NoError(t, err)

	view, err := svc.Refresh(context.Background(), RefreshRequest{UserID: testUser, Address: testAddress})
	require.NoError(t, err)
	require.Len(t, view.Result, 1)
	assert.Equal(t, "0xnew", view.Result[0].Hash)
	assert.Equal(t, 1, observer.persistFailed)

	// The filtered view reads the stored copy, which still holds the older batch.
	source.pages = []domain.TransactionPage{page(tx("0xnew", t1))}
	view, err = svc.Refresh(context.Background(), RefreshRequest{
		UserID:    testUser,
		Address:   testAddress,
		StartDate: "2023-01-01",
		EndDate:   "2024-12-31",
	})
	require.NoError(t, err)
	require.Len(t, view.Result, 1)
	assert.Equal(t, "0xold", view.Result[0].Hash)
}

func TestRefresh_QueryFailure(t *testing.T) {
	repo := newMemSnapshots()
	repo.queryErr = errBoom
	source := &fakeSource{pages: []domain.TransactionPage{page()}}
	svc, err := NewSnapshotService(source, repo)
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), RefreshRequest{
		UserID:    testUser,
		Address:   testAddress,
		StartDate: "2024-01-01",
		EndDate:   "2024-01-02",
	})
	require.ErrorIs(t, err, domain.ErrFetchFailed)
}

func TestRefresh_EmptyResultIsNotNull(t *testing.T) {
	source := &fakeSource{pages: []domain.TransactionPage{{Status: "0", Message: "No transactions found"}}}
	svc, err := NewSnapshotService(source, newMemSnapshots())
	require.NoError(t, err)

	view, err := svc.Refresh(context.Background(), RefreshRequest{UserID: testUser, Address: testAddress})
	require.NoError(t, err)
	assert.NotNil(t, view.Result)
	assert.Empty(t, view.Result)
}

func TestSnapshotQueryFilter_SecondBounds(t *testing.T) {
	filter := SnapshotQueryFilter{
		From: time.Date(2024, 1, 1, 0, 0, 0, 500, time.UTC),
		To:   time.Date(2024, 1, 2, 0, 0, 0, 999, time.UTC),
	}
	assert.False(t, filter.Contains(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, filter.Contains(time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC)))
	assert.True(t, filter.Contains(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))
	assert.False(t, filter.Contains(time.Date(2024, 1, 2, 0, 0, 1, 0, time.UTC)))
}
