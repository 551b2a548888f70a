package internal

import (
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/samber/lo"
)

//go:embed inspect.html
var templatesFS embed.FS

const (
	DefaultPrefix = "participant:"
	maxRows       = 500
)

// Prefixes offered as shortcuts on the inspector page.
var Prefixes = []string{"exam:", "participant:", "violation:", "permission:", "operator:"}

// hidden fields never leave the process, even in debug mode.
var hidden = map[string]bool{"password_hash": true}

// timeFields are tried in order to fill the Time column.
var timeFields = []string{"timestamp", "last_heartbeat", "requested_at", "start_time", "created_at", "joined_at"}

type InspectRow struct {
	Key      string
	Kind     string
	EntityID string
	Time     string
	Detail   string
}

type RowMapper func(key string, val []byte) InspectRow
type StatsProvider func() map[string]any

type PageData struct {
	Prefix    string
	Prefixes  []string
	Items     []InspectRow
	Truncated bool
	Stats     map[string]any
}

// NewDebugHandler serves a read-only view of every key under ?prefix=.
func NewDebugHandler(db *badger.DB, endpoint string, mapper RowMapper, statsProvider StatsProvider) http.Handler {
	mux := http.NewServeMux()
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))

	if mapper == nil {
		mapper = DefaultMapper
	}

	mux.HandleFunc(endpoint, func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = DefaultPrefix
		}

		data := PageData{
			Prefix:   prefix,
			Prefixes: Prefixes,
			Stats:    make(map[string]any),
		}
		if statsProvider != nil {
			data.Stats = statsProvider()
		}

		err := db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				if len(data.Items) == maxRows {
					data.Truncated = true
					return nil
				}
				item := it.Item()
				if err := item.Value(func(val []byte) error {
					data.Items = append(data.Items, mapper(string(item.KeyCopy(nil)), val))
					return nil
				}); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	})
	return mux
}

// StartDebugServer listens on every interface so the inspector is reachable
// from another machine in the exam room. The caller shuts it down.
func StartDebugServer(log *slog.Logger, db *badger.DB, port int, endpoint string, mapper RowMapper, statsProvider StatsProvider) *http.Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", port),
		Handler:           NewDebugHandler(db, endpoint, mapper, statsProvider),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Debug inspector stopped", "error", err)
		}
	}()
	return srv
}

// DefaultMapper decodes a CBOR record into a flat key=value line.
func DefaultMapper(key string, val []byte) InspectRow {
	kind, id, _ := strings.Cut(key, ":")
	row := InspectRow{
		Key:      key,
		Kind:     kind,
		EntityID: id,
		Time:     "-",
		Detail:   "Size: " + strconv.Itoa(len(val)) + " bytes",
	}

	var record map[string]any
	if err := cbor.Unmarshal(val, &record); err != nil {
		return row
	}

	// untagged RFC 3339 strings come back as plain strings
	for _, field := range timeFields {
		var t time.Time
		switch v := record[field].(type) {
		case time.Time:
			t = v
		case string:
			t, _ = time.Parse(time.RFC3339Nano, v)
		}
		if !t.IsZero() {
			row.Time = t.Local().Format("15:04:05")
			break
		}
	}

	keys := lo.Keys(record)
	slices.Sort(keys)
	parts := lo.FilterMap(keys, func(k string, _ int) (string, bool) {
		if hidden[k] {
			return k + "=***", true
		}
		if record[k] == nil {
			return "", false
		}
		return fmt.Sprintf("%s=%v", k, record[k]), true
	})
	row.Detail = strings.Join(parts, " ")
	return row
}
