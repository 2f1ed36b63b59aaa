package contentstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"chainnotes/internal/domain"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Blocks are keyed by the multihash so CIDs differing only in base or version share storage.
const blockKeyPrefix = "blocks/"

type Config struct {
	// Dir is the badger directory. Empty keeps every block in memory for the process lifetime.
	Dir    string
	Logger *slog.Logger
}

// Store is a content-addressed block store. Text is stored as a single raw block
// and identified by a CIDv1 over its sha2-256 digest.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

func Open(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var opts badger.Options
	if strings.TrimSpace(cfg.Dir) == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create content store dir: %w", err)
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithLogger(newBadgerLogger(logger)).WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open content store: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Sum computes the identifier data would be stored under.
func Sum(data []byte) (cid.Cid, error) {
	return cid.V1Builder{Codec: cid.Raw, MhType: mh.SHA2_256}.Sum(data)
}

func (s *Store) Add(ctx context.Context, data []byte) (cid.Cid, error) {
	_, span := startSpan(ctx, "contentstore.Add", attribute.Int("content.bytes", len(data)))
	defer span.End()

	id, err := Sum(data)
	if err != nil {
		recordSpanError(span, err)
		return cid.Undef, err
	}
	span.SetAttributes(attribute.String("content.cid", id.String()))

	key := blockKey(id)
	err = s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		recordSpanError(span, err)
		return cid.Undef, fmt.Errorf("put block %s: %w", id, err)
	}
	return id, nil
}

// Get returns the block for id. A missing block yields domain.ErrContentNotFound.
func (s *Store) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	_, span := startSpan(ctx, "contentstore.Get", attribute.String("content.cid", id.String()))
	defer span.End()

	if !id.Defined() {
		return nil, domain.ErrContentNotFound
	}
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blockKey(id))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, domain.ErrContentNotFound
		}
		recordSpanError(span, err)
		return nil, fmt.Errorf("get block %s: %w", id, err)
	}

	prefix := id.Prefix()
	sum, err := mh.Sum(data, prefix.MhType, prefix.MhLength)
	if err != nil {
		recordSpanError(span, err)
		return nil, fmt.Errorf("verify block %s: %w", id, err)
	}
	if !bytes.Equal(sum, id.Hash()) {
		err := fmt.Errorf("block %s failed hash verification", id)
		recordSpanError(span, err)
		return nil, err
	}
	return data, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func blockKey(id cid.Cid) []byte {
	return append([]byte(blockKeyPrefix), id.Hash()...)
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := otel.Tracer("chainnotes/contentstore").Start(ctx, name)
	span.SetAttributes(attrs...)
	return ctx, span
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

var errProviderClosed = errors.New("content store provider is closed")
