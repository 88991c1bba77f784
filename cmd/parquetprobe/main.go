// Command parquetprobe inspects parquet trip files without loading them.
//
// It reads only the file footer, so probing is fast even for multi-gigabyte
// files. For each file it prints size, row count, row-group count and the
// column names as they appear in the footer — useful for checking which
// schema generation a downloaded file belongs to (column casing drifts
// across years) before pointing an upload run at it.
//
// Usage:
//
//	parquetprobe file.parquet
//	parquetprobe 'data/yellow_tripdata_2024-*.parquet'
//
// Arguments are paths or globs; matches are probed in sorted order. A file
// that fails to probe is reported on stderr and the remaining files are
// still processed; the exit code is non-zero if any file failed.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"taxiload/internal/parquetio"
)

func main() {
	columns := flag.Bool("columns", true, "print column names")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: parquetprobe [-columns=false] <file-or-glob> ...")
		os.Exit(2)
	}

	var files []string
	for _, arg := range flag.Args() {
		matches, err := filepath.Glob(arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bad pattern %q: %v\n", arg, err)
			os.Exit(2)
		}
		if len(matches) == 0 {
			// A non-glob argument that matched nothing is a missing file;
			// report it instead of silently probing an empty set.
			matches = []string{arg}
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	p := message.NewPrinter(language.English)
	failed := false

	for _, f := range files {
		meta, err := parquetio.Open(f)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", f, err)
			failed = true
			continue
		}

		p.Printf("%s: %d bytes, %d rows, %d row groups\n",
			meta.Path, meta.SizeBytes, meta.TotalRows, meta.RowGroups)
		if *columns {
			p.Printf("  columns (%d): %s\n", len(meta.Columns), strings.Join(meta.Columns, ", "))
		}
	}

	if failed {
		os.Exit(1)
	}
}
