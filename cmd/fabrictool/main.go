// fabrictool inspects fabric catalog exports.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/Faultbox/decalforge/internal/catalog"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "list", "ls":
		cmdList(args)
	case "show":
		cmdShow(args)
	case "filter", "match":
		cmdFilter(args)
	case "distance":
		cmdDistance(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`fabrictool - fabric catalog utility

Usage:
  fabrictool <command> [options]

Commands:
  list <catalog.json> [type]          List fabrics (optional type filter)
  show <catalog.json> <id>            Show one fabric as JSON
  filter <catalog.json> <colour>      Fabrics matching a colour, nearest first
  distance <colour> <colour>          CIELAB distance between two colours

Examples:
  fabrictool list materials.json cotton
  fabrictool filter -n 8 materials.json "#b22222"
  fabrictool distance "#f00" "rgb(200,0,0)"`)
}

func load(path string) *catalog.Catalog {
	c, err := catalog.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return c
}

func printFabric(f catalog.Fabric) {
	fmt.Printf("  %-8s %-8s %-16s %-32s scale=%-4g normal=%g\n",
		f.ID, f.Hex, f.Type, f.Name, f.LockedScale, f.LockedNormalScale)
}

func cmdList(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: fabrictool list <catalog.json> [type]")
		os.Exit(1)
	}
	c := load(args[0])
	filter := ""
	if len(args) > 1 {
		filter = strings.ToLower(args[1])
	}

	shown := 0
	for _, f := range c.All() {
		if filter != "" && !strings.Contains(strings.ToLower(f.Type), filter) {
			continue
		}
		printFabric(f)
		shown++
	}
	fmt.Printf("\n%d of %d fabrics\n", shown, c.Len())
}

func cmdShow(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: fabrictool show <catalog.json> <id>")
		os.Exit(1)
	}
	f, err := load(args[0]).Find(args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func cmdFilter(args []string) {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	limit := fs.Int("n", catalog.DefaultMaxResults, "Maximum nearest matches")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: fabrictool filter [-n N] <catalog.json> <colour>")
		os.Exit(1)
	}
	target := catalog.NormalizeHex(fs.Arg(1))
	for _, f := range load(fs.Arg(0)).FilterByColor(target, *limit) {
		fmt.Printf("  ΔE %6.2f", catalog.Distance(f.Hex, target))
		printFabric(f)
	}
}

func cmdDistance(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: fabrictool distance <colour> <colour>")
		os.Exit(1)
	}
	a, b := catalog.NormalizeHex(args[0]), catalog.NormalizeHex(args[1])
	fmt.Printf("%s -> %s: ΔE %.2f\n", a, b, catalog.Distance(a, b))
}
