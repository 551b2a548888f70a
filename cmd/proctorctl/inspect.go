package main

import (
	"fmt"
	"io"
	"proctor/internal"

	"github.com/dgraph-io/badger/v4"
	"github.com/spf13/pflag"
)

// runInspect prints every record under a prefix. The database is opened
// read-only and without the lock guard so a running server is not disturbed.
func runInspect(args []string, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", "", "path to the BadgerDB directory")
	prefix := fs.String("prefix", internal.DefaultPrefix, "key prefix to scan")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dbPath == "" {
		fmt.Fprintln(stderr, "usage: proctorctl inspect --db PATH [--prefix P]")
		return errUsage
	}

	opts := badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("open badger: %w", err)
	}
	defer db.Close()

	return inspect(db, *prefix, stdout)
}

func inspect(db *badger.DB, prefix string, w io.Writer) error {
	table := newTable(w, "Key", "Kind", "Time", "Detail")
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				row := internal.DefaultMapper(string(item.KeyCopy(nil)), val)
				table.Append([]string{row.Key, row.Kind, row.Time, row.Detail})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	table.Render()
	return nil
}
