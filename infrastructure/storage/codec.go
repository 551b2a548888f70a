package storage

import (
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
)

const (
	examPrefix            = "exam:"
	examActiveKey         = "exam-active"
	examSequenceKey       = "seq:exam"
	participantPrefix     = "participant:"
	violationPrefix       = "violation:"
	permissionPrefix      = "permission:"
	permissionIndexPrefix = "permission-id:"
	operatorPrefix        = "operator:"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	// Records carry sub-second timestamps (heartbeats, expiry), so times are
	// written as RFC 3339 with nanoseconds rather than integer seconds.
	encMode, err = cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("storage: cbor enc mode: %v", err))
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("storage: cbor dec mode: %v", err))
	}
}

func marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func unmarshal(b []byte, v any) error {
	return decMode.Unmarshal(b, v)
}

// getRecord reads and decodes key inside txn. It returns badger.ErrKeyNotFound
// untouched so callers can map it to their own not-found error.
func getRecord(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return unmarshal(val, v)
	})
}

func setRecord(txn *badger.Txn, key []byte, v any) error {
	data, err := marshal(v)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return txn.Set(key, data)
}

// scanPrefix decodes every value under prefix, in key order.
func scanPrefix[T any](txn *badger.Txn, prefix []byte, fn func(key []byte, rec T) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		var rec T
		if err := item.Value(func(val []byte) error {
			return unmarshal(val, &rec)
		}); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", item.Key(), err)
		}
		if err := fn(item.KeyCopy(nil), rec); err != nil {
			return err
		}
	}
	return nil
}

func examKey(id int64) []byte {
	return []byte(fmt.Sprintf("%s%019d", examPrefix, id))
}

func participantKey(id string) []byte {
	return []byte(participantPrefix + id)
}

func violationKey(participantID string, at time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%s:%019d:%s", violationPrefix, participantID, at.UnixNano(), id))
}

func permissionKey(participantID string, at time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%s:%019d:%s", permissionPrefix, participantID, at.UnixNano(), id))
}

func permissionIndexKey(id string) []byte {
	return []byte(permissionIndexPrefix + id)
}

func operatorKey(username string) []byte {
	return []byte(operatorPrefix + username)
}
