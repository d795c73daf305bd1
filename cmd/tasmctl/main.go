// Command tasmctl is a thin, read-only introspection tool for an on-disk
// catalog entry: it lists committed versions and dumps a version's tile
// layout. It is not the query/benchmark harness (that stays external);
// it exists only to make a catalog directory inspectable by hand.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/faromero/tasm/internal/catalog"
	"github.com/faromero/tasm/internal/layout"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "catalog-info":
		runCatalogInfo(os.Args[2:])
	case "layout-dump":
		runLayoutDump(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: tasmctl <catalog-info|layout-dump> [flags]\n")
}

func runCatalogInfo(args []string) {
	fs := flag.NewFlagSet("catalog-info", flag.ExitOnError)
	path := fs.String("path", "", "catalog entry root directory")
	name := fs.String("name", "", "catalog entry name")
	metadata := fs.String("metadata", "", "external metadata identifier")
	fs.Parse(args)

	if *path == "" || *name == "" {
		fmt.Fprintf(os.Stderr, "catalog-info: -path and -name are required\n")
		os.Exit(1)
	}

	entry := &catalog.Entry{Name: *name, MetadataIdentifier: *metadata, Path: *path}
	current, err := entry.CurrentVersion()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Entry: %s\n", *name)
	fmt.Printf("Path: %s\n", *path)
	fmt.Printf("Current version: %d\n", current)

	locations, err := catalog.NewLocationProvider(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	versions := locations.Versions()
	fmt.Printf("Committed versions: %d\n", len(versions))
	for _, v := range versions {
		l := v.Layout
		fmt.Printf("\n  Version %d: frames [%d, %d]\n", v.Version, v.Frames.First, v.Frames.Last)
		fmt.Printf("    Layout: %dx%d tiles, %dx%d pixels\n", l.Columns(), l.Rows(), l.TotalWidth(), l.TotalHeight())
	}
}

func runLayoutDump(args []string) {
	fs := flag.NewFlagSet("layout-dump", flag.ExitOnError)
	path := fs.String("path", "", "catalog entry root directory")
	name := fs.String("name", "", "catalog entry name")
	version := fs.Uint64("version", 0, "version to dump (default: all committed versions)")
	wantVersion := false
	fs.Parse(args)
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "version" {
			wantVersion = true
		}
	})

	if *path == "" || *name == "" {
		fmt.Fprintf(os.Stderr, "layout-dump: -path and -name are required\n")
		os.Exit(1)
	}

	entry := &catalog.Entry{Name: *name, Path: *path}
	locations, err := catalog.NewLocationProvider(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for _, v := range locations.Versions() {
		if wantVersion && v.Version != catalog.Version(*version) {
			continue
		}
		dumpLayout(v)
	}
}

func dumpLayout(v catalog.VersionInfo) {
	l := v.Layout
	fmt.Printf("Version %d: frames [%d, %d]\n", v.Version, v.Frames.First, v.Frames.Last)
	fmt.Printf("  %d columns x %d rows, %d tiles\n", l.Columns(), l.Rows(), l.NumberOfTiles())
	fmt.Printf("  Widths:  %v\n", l.Widths())
	fmt.Printf("  Heights: %v\n", l.Heights())
	for t := 0; t < l.NumberOfTiles(); t++ {
		r := l.RectangleForTile(layout.TileIndex(t))
		fmt.Printf("  Tile %d: (%d,%d) %dx%d\n", t, r.X, r.Y, r.Width, r.Height)
	}
}
