package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	// Default to top-level documents so credential and recovery keys
	// never show up by accident.
	prefix := flag.String("prefix", "doc:", "Prefix to scan (doc:, sub:)")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Collection", "ID", "Fields"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			rawKey := string(item.Key())

			// Credentials are hashed but there is no reason to print them.
			if strings.HasPrefix(rawKey, "cred:") || strings.HasPrefix(rawKey, "local:") {
				continue
			}

			err := item.Value(func(v []byte) error {
				var fields map[string]any
				if err := json.Unmarshal(v, &fields); err != nil {
					fmt.Printf("Error unmarshaling key %s: %v\n", rawKey, err)
					return nil
				}

				collection, id := splitKey(rawKey)
				table.Append([]string{rawKey, collection, id, flatten(fields)})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

// splitKey extracts the collection and document id from the two key
// layouts:
//
//	doc:{collection}:{id}
//	sub:{collection}:{parent}:{sub}:{nanos19}:{id}
func splitKey(key string) (collection, id string) {
	parts := strings.Split(key, ":")
	switch {
	case parts[0] == "doc" && len(parts) >= 3:
		return parts[1], strings.Join(parts[2:], ":")
	case parts[0] == "sub" && len(parts) >= 6:
		return parts[1] + "/" + parts[3], parts[len(parts)-1]
	default:
		return "?", "?"
	}
}

// flatten renders the fields in a stable order so diffs between runs
// stay readable.
func flatten(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		v := fmt.Sprintf("%v", fields[k])
		if len(v) > 40 {
			v = v[:40] + "…"
		}
		sb.WriteString(fmt.Sprintf("%s=%s ", k, v))
	}
	return sb.String()
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)

	db, err := badger.Open(opts)
	if err != nil {
		if strings.Contains(err.Error(), "Log truncate required") {
			repairOpts := badger.DefaultOptions(path).
				WithLogger(nil).WithBypassLockGuard(true)

			db, err = badger.Open(repairOpts)
			if err != nil {
				return nil, fmt.Errorf("repair failed: %w", err)
			}

			db.Close()
			return badger.Open(opts)
		}
		return nil, err
	}
	return db, nil
}
