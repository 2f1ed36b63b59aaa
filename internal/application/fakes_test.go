package application

import (
	"context"
	"errors"
	"sync"

	"chainnotes/internal/domain"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

const (
	testUser    = "7f1c2d7e-8d6b-4c59-9a57-2b0c4b7e5a11"
	testAddress = "0xde0b295669a9fd93d5f28d9ec85e40f4cb697bae"
)

type fakeSource struct {
	pages   []domain.TransactionPage
	err     error
	calls   int
	address string
	limit   int
}

func (f *fakeSource) RecentTransactions(ctx context.Context, address string, limit int) (domain.TransactionPage, error) {
	f.calls++
	f.address = address
	f.limit = limit
	if f.err != nil {
		return domain.TransactionPage{}, f.err
	}
	page := f.pages[0]
	if len(f.pages) > 1 {
		f.pages = f.pages[1:]
	}
	return page, nil
}

type memSnapshots struct {
	mu         sync.Mutex
	snapshots  map[string]domain.TransactionSnapshot
	replaceErr error
	queryErr   error
	lastFilter SnapshotQueryFilter
}

func newMemSnapshots() *memSnapshots {
	return &memSnapshots{snapshots: make(map[string]domain.TransactionSnapshot)}
}

func (m *memSnapshots) ReplaceSnapshot(ctx context.Context, snapshot domain.TransactionSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.snapshots[snapshot.UserID+"|"+snapshot.Address] = snapshot
	return nil
}

func (m *memSnapshots) QuerySnapshotTransactions(ctx context.Context, filter SnapshotQueryFilter) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = filter
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	snapshot, ok := m.snapshots[filter.UserID+"|"+filter.Address]
	if !ok {
		return nil, nil
	}
	var out []domain.Transaction
	for _, tx := range snapshot.Transactions {
		if filter.Contains(tx.TimeStamp) {
			out = append(out, tx)
		}
	}
	return out, nil
}

type memLabels struct {
	entries map[string]domain.LabeledText
	findErr error
	saveErr error
}

func newMemLabels() *memLabels {
	return &memLabels{entries: make(map[string]domain.LabeledText)}
}

func (m *memLabels) FindLabel(ctx context.Context, userID, label string) (domain.LabeledText, bool, error) {
	if m.findErr != nil {
		return domain.LabeledText{}, false, m.findErr
	}
	entry, ok := m.entries[userID+"|"+label]
	return entry, ok, nil
}

func (m *memLabels) SaveLabel(ctx context.Context, entry domain.LabeledText) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	key := entry.UserID + "|" + entry.Label
	if _, ok := m.entries[key]; ok {
		return domain.ErrLabelExists
	}
	m.entries[key] = entry
	return nil
}

type memContent struct {
	blocks map[string][]byte
	adds   int
	addErr error
}

func newMemContent() *memContent {
	return &memContent{blocks: make(map[string][]byte)}
}

func (m *memContent) Add(ctx context.Context, data []byte) (cid.Cid, error) {
	if m.addErr != nil {
		return cid.Undef, m.addErr
	}
	m.adds++
	hash, err := mh.Sum(data, mh.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	id := cid.NewCidV1(cid.Raw, hash)
	m.blocks[id.KeyString()] = append([]byte(nil), data...)
	return id, nil
}

func (m *memContent) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	data, ok := m.blocks[id.KeyString()]
	if !ok {
		return nil, domain.ErrContentNotFound
	}
	return data, nil
}

type recordingObserver struct {
	refreshed     int
	persistFailed int
	stored        int
	orphaned      int
	upstream      map[string]int
}

func (o *recordingObserver) OnSnapshotRefreshed(int)  { o.refreshed++ }
func (o *recordingObserver) OnSnapshotPersistFailed() { o.persistFailed++ }
func (o *recordingObserver) OnTextStored()            { o.stored++ }
func (o *recordingObserver) OnOrphanedContent()       { o.orphaned++ }
func (o *recordingObserver) OnUpstreamFailure(source string) {
	if o.upstream == nil {
		o.upstream = make(map[string]int)
	}
	o.upstream[source]++
}

type recordingEvents struct {
	snapshots []domain.TransactionSnapshot
	texts     []domain.LabeledText
	err       error
}

func (e *recordingEvents) PublishSnapshotRefreshed(ctx context.Context, snapshot domain.TransactionSnapshot) error {
	e.snapshots = append(e.snapshots, snapshot)
	return e.err
}

func (e *recordingEvents) PublishTextStored(ctx context.Context, entry domain.LabeledText) error {
	e.texts = append(e.texts, entry)
	return e.err
}

var errBoom = errors.New("boom")
