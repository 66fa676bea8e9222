// Command inspect dumps the Badger store as a table, one row per key.
package main

import (
	"courier/codec"
	"encoding/binary"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

const (
	maxDetail     = 96
	defaultDBPath = "./data/badger"
)

var namespaceColors = map[string]color.Color{
	"user":    color.FgCyan,
	"chat":    color.FgGreen,
	"member":  color.FgGreen,
	"msg":     color.FgYellow,
	"dlv":     color.FgMagenta,
	"read":    color.FgMagenta,
	"notif":   color.FgBlue,
	"push":    color.FgBlue,
	"seq":     color.FgGray,
	"msgidx":  color.FgGray,
	"uchat":   color.FgGray,
	"private": color.FgGray,
}

func main() {
	dbPath := flag.String("db", defaultDBPath, "Path to badger DB")
	prefix := flag.String("prefix", "", "Only keys starting with this prefix, e.g. msg:{chatID}:")
	limit := flag.Int("limit", 500, "Maximum number of rows")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Namespace", "Key", "Detail"})
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

	rows := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes) && rows < *limit; it.Next() {
			item := it.Item()
			key := string(item.Key())
			namespace, _, _ := strings.Cut(key, ":")

			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			table.Append([]string{paint(namespace), key, describe(namespace, val)})
			rows++
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
	fmt.Println(color.FgGray.Sprintf("%d rows", rows))
}

func paint(namespace string) string {
	if c, ok := namespaceColors[namespace]; ok {
		return c.Render(namespace)
	}
	return namespace
}

// describe renders a stored value: CBOR rows as sorted key=value pairs,
// counters as numbers and pointers as text.
func describe(namespace string, val []byte) string {
	if namespace == "seq" && len(val) == 8 {
		return fmt.Sprintf("%d", binary.BigEndian.Uint64(val))
	}
	var row map[string]any
	if err := codec.Unmarshal(val, &row); err != nil {
		var text string
		if err := codec.Unmarshal(val, &text); err == nil {
			return text
		}
		if isPrintable(val) {
			return string(val)
		}
		return hex.EncodeToString(val)
	}
	fields := make([]string, 0, len(row))
	for k, v := range row {
		fields = append(fields, fmt.Sprintf("%s=%v", k, v))
	}
	sort.Strings(fields)
	return truncate(strings.Join(fields, " "))
}

func isPrintable(val []byte) bool {
	for _, b := range val {
		if b < 0x20 || b > 0x7e {
			return false
		}
	}
	return true
}

func truncate(s string) string {
	if len(s) <= maxDetail {
		return s
	}
	return s[:maxDetail-3] + "..."
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}
