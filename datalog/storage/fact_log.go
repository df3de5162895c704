package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/dgraph-io/badger/v4"

	"github.com/wbrown/janus-provenance/datalog"
	"github.com/wbrown/janus-provenance/datalog/provenance"
)

// InputFact is a fact as supplied by a loader: an optional input tag and
// the tuple
type InputFact struct {
	Tag   *provenance.InputTag
	Tuple datalog.Tuple
}

// Fact log key layout: prefix byte, then the big-endian sequence number so
// that a forward scan replays facts in the order they were appended.
const factPrefix byte = 'f'

// FactLog is a durable, append-only journal of asserted facts backed by
// BadgerDB. It stores facts only; programs are rebuilt by the caller.
type FactLog struct {
	db  *badger.DB
	seq uint64
}

// OpenFactLog opens (or creates) a journal at path. An empty path opens an
// in-memory journal.
func OpenFactLog(path string) (*FactLog, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Disable BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	log := &FactLog{db: db}
	if err := log.loadSequence(); err != nil {
		db.Close()
		return nil, err
	}
	return log, nil
}

// loadSequence positions the sequence after the last stored fact
func (l *FactLog) loadSequence() error {
	return l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		// Seek to the largest possible key under the prefix
		seek := []byte{factPrefix, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
		it.Seek(seek)
		if !it.ValidForPrefix([]byte{factPrefix}) {
			return nil
		}
		key := it.Item().Key()
		if len(key) != 9 {
			return fmt.Errorf("corrupt fact log key: %x", key)
		}
		l.seq = binary.BigEndian.Uint64(key[1:]) + 1
		return nil
	})
}

// Append writes a batch of facts for one relation in a single transaction
func (l *FactLog) Append(relation string, facts []InputFact) error {
	if len(facts) == 0 {
		return nil
	}
	seq := l.seq
	err := l.db.Update(func(txn *badger.Txn) error {
		for i, f := range facts {
			value, err := encodeLogged(relation, f)
			if err != nil {
				return fmt.Errorf("fact %d of %s: %w", i, relation, err)
			}
			if err := txn.Set(factKey(seq), value); err != nil {
				return fmt.Errorf("failed to write fact %d of %s: %w", i, relation, err)
			}
			seq++
		}
		return nil
	})
	if err != nil {
		return err
	}
	l.seq = seq
	return nil
}

// Replay calls fn for every stored fact in append order. Consecutive facts
// of the same relation are delivered as one batch.
func (l *FactLog) Replay(fn func(relation string, facts []InputFact) error) error {
	return l.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		var current string
		var batch []InputFact
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			err := fn(current, batch)
			batch = nil
			return err
		}

		prefix := []byte{factPrefix}
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var relation string
			var fact InputFact
			err := it.Item().Value(func(val []byte) error {
				var err error
				relation, fact, err = decodeLogged(val)
				return err
			})
			if err != nil {
				return fmt.Errorf("failed to decode fact %x: %w", it.Item().Key(), err)
			}
			if relation != current {
				if err := flush(); err != nil {
					return err
				}
				current = relation
			}
			batch = append(batch, fact)
		}
		return flush()
	})
}

// Len returns the number of facts appended so far
func (l *FactLog) Len() uint64 {
	return l.seq
}

// Close closes the underlying database
func (l *FactLog) Close() error {
	return l.db.Close()
}

func factKey(seq uint64) []byte {
	key := make([]byte, 9)
	key[0] = factPrefix
	binary.BigEndian.PutUint64(key[1:], seq)
	return key
}

// encodeLogged lays out a fact as: relation name, input tag, tuple
func encodeLogged(relation string, f InputFact) ([]byte, error) {
	buf := binary.AppendUvarint(nil, uint64(len(relation)))
	buf = append(buf, relation...)
	buf = encodeInputTag(buf, f.Tag)
	return datalog.EncodeTuple(buf, f.Tuple)
}

func decodeLogged(data []byte) (string, InputFact, error) {
	n, read := binary.Uvarint(data)
	if read <= 0 || uint64(len(data)-read) < n {
		return "", InputFact{}, errors.New("truncated relation name")
	}
	data = data[read:]
	relation := string(data[:n])
	data = data[n:]

	tag, data, err := decodeInputTag(data)
	if err != nil {
		return "", InputFact{}, err
	}
	tuple, rest, err := datalog.DecodeTuple(data)
	if err != nil {
		return "", InputFact{}, err
	}
	if len(rest) != 0 {
		return "", InputFact{}, fmt.Errorf("%d trailing bytes", len(rest))
	}
	return relation, InputFact{Tag: tag, Tuple: tuple}, nil
}

// Input tag layout: kind byte; bool byte for InputBool; float64 bits for
// probabilities; zig-zag varint exclusion id for exclusive probabilities.
// A nil tag is stored as kind 0xff.
const nilTag byte = 0xff

func encodeInputTag(buf []byte, tag *provenance.InputTag) []byte {
	if tag == nil {
		return append(buf, nilTag)
	}
	buf = append(buf, byte(tag.Kind))
	switch tag.Kind {
	case provenance.InputBool:
		if tag.Bool {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case provenance.InputProb:
		buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(tag.Prob))
	case provenance.InputExclusiveProb:
		buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(tag.Prob))
		buf = binary.AppendVarint(buf, int64(tag.Exclusion))
	}
	return buf
}

func decodeInputTag(data []byte) (*provenance.InputTag, []byte, error) {
	if len(data) == 0 {
		return nil, nil, errors.New("missing input tag")
	}
	kind := data[0]
	data = data[1:]
	if kind == nilTag {
		return nil, data, nil
	}

	tag := &provenance.InputTag{Kind: provenance.InputKind(kind)}
	switch tag.Kind {
	case provenance.InputNone:
	case provenance.InputBool:
		if len(data) < 1 {
			return nil, nil, errors.New("truncated bool tag")
		}
		tag.Bool = data[0] != 0
		data = data[1:]
	case provenance.InputProb, provenance.InputExclusiveProb:
		if len(data) < 8 {
			return nil, nil, errors.New("truncated probability tag")
		}
		tag.Prob = math.Float64frombits(binary.BigEndian.Uint64(data))
		data = data[8:]
		if tag.Kind == provenance.InputExclusiveProb {
			ex, read := binary.Varint(data)
			if read <= 0 {
				return nil, nil, errors.New("truncated exclusion id")
			}
			tag.Exclusion = int(ex)
			data = data[read:]
		}
	default:
		return nil, nil, fmt.Errorf("unknown input tag kind %d", kind)
	}
	return tag, data, nil
}
