// schemtool is a CLI utility for schematic files and the map store.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Faultbox/mapeditor/internal/config"
	"github.com/Faultbox/mapeditor/internal/storage"
	"github.com/Faultbox/mapeditor/pkg/formats"
)

const defaultAppName = "mapeditor"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "validate", "check":
		cmdValidate(args)
	case "inspect", "info":
		cmdInspect(args)
	case "maps", "ls":
		cmdMaps(args)
	case "import":
		cmdImport(args)
	case "export":
		cmdExport(args)
	case "delete", "rm":
		cmdDelete(args)
	case "init-config":
		cmdInitConfig(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`schemtool - schematic and map store utility

Usage:
  schemtool <command> [options]

Commands:
  validate <file.json>...            Parse and validate schematic files
  inspect <file.json>                Show schematic contents
  maps [-app name]                   List stored maps
  import [-app name] <map.yaml>      Store a map file
  export [-app name] <name> [file]   Write a stored map as YAML (stdout by default)
  delete [-app name] <name>          Remove a stored map
  init-config [-f] [path]            Write the default server config

Examples:
  schemtool validate schematics/Door/Door.json
  schemtool inspect schematics/Door.json
  schemtool import maps/lobby.yaml
  schemtool export lobby lobby.yaml`)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func cmdValidate(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: schemtool validate <file.json>...")
		os.Exit(1)
	}

	failed := 0
	for _, path := range args {
		s, err := formats.LoadSchematic(path)
		if err == nil {
			err = s.Validate()
		}
		if err != nil {
			fmt.Printf("FAIL %s: %v\n", path, err)
			failed++
			continue
		}
		for _, skipped := range s.Skipped {
			fmt.Printf("WARN %s: %v\n", path, skipped)
		}
		fmt.Printf("OK   %s (%d blocks)\n", path, s.BlockCount())
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d files failed\n", failed, len(args))
		os.Exit(1)
	}
}

func cmdInspect(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: schemtool inspect <file.json>")
		os.Exit(1)
	}

	s, err := formats.LoadSchematic(args[0])
	if err != nil {
		fail(err)
	}

	fmt.Printf("Schematic:     %s\n", s.Name)
	fmt.Printf("Blocks:        %d\n", s.BlockCount())
	fmt.Printf("  Primitives:    %d\n", len(s.Primitives))
	fmt.Printf("  Light sources: %d\n", len(s.LightSources))
	fmt.Printf("  Items:         %d\n", len(s.Items))
	fmt.Printf("  Workstations:  %d\n", len(s.WorkStations))
	fmt.Printf("Parent frames: %d\n", len(s.ParentAnimationFrames))
	fmt.Printf("End action:    %s\n", s.AnimationEndAction)

	animated := 0
	for _, p := range s.Primitives {
		if len(p.AnimationFrames) > 0 {
			animated++
		}
	}
	if animated > 0 {
		fmt.Printf("Animated primitives: %d\n", animated)
	}

	var unknown []string
	for _, it := range s.Items {
		if _, err := formats.ParseItemType(it.Item); err != nil {
			unknown = append(unknown, it.Item)
		}
	}
	if len(unknown) > 0 {
		fmt.Printf("Unknown items (skipped when built): %s\n", strings.Join(unknown, ", "))
	}

	if len(s.Skipped) > 0 {
		fmt.Println()
		fmt.Println("Skipped records:")
		for _, err := range s.Skipped {
			fmt.Printf("  %v\n", err)
		}
	}

	if err := s.Validate(); err != nil {
		fmt.Println()
		fmt.Printf("Invalid: %v\n", err)
		os.Exit(1)
	}
}

// openStore parses the -app flag and opens the map store.
func openStore(name string, args []string) (*storage.MapStore, *flag.FlagSet) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	app := fs.String("app", defaultAppName, "Storage application name")
	fs.Parse(args)

	store, err := storage.Open(*app, nil)
	if err != nil {
		fail(err)
	}
	return store, fs
}

func cmdMaps(args []string) {
	store, _ := openStore("maps", args)

	names, err := store.List()
	if err != nil {
		fail(err)
	}
	for _, name := range names {
		fmt.Println(name)
	}
	if len(names) == 0 {
		fmt.Println("(no maps)")
	}
}

func cmdImport(args []string) {
	store, fs := openStore("import", args)
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: schemtool import [-app name] <map.yaml>")
		os.Exit(1)
	}

	path := fs.Arg(0)
	m, err := formats.LoadMap(path)
	if err != nil {
		fail(err)
	}
	if m.Name == "" {
		m.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := store.Save(m); err != nil {
		fail(err)
	}
	fmt.Printf("Imported %s (%d objects)\n", m.Name, m.ObjectCount())
}

func cmdExport(args []string) {
	store, fs := openStore("export", args)
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: schemtool export [-app name] <name> [file]")
		os.Exit(1)
	}

	m, err := store.Load(fs.Arg(0))
	if err != nil {
		fail(err)
	}
	data, err := m.Marshal()
	if err != nil {
		fail(err)
	}

	if fs.NArg() < 2 {
		os.Stdout.Write(data)
		return
	}
	if err := os.WriteFile(fs.Arg(1), data, 0644); err != nil {
		fail(err)
	}
	fmt.Printf("Exported %s to %s\n", m.Name, fs.Arg(1))
}

func cmdDelete(args []string) {
	store, fs := openStore("delete", args)
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: schemtool delete [-app name] <name>")
		os.Exit(1)
	}
	if err := store.Delete(fs.Arg(0)); err != nil {
		fail(err)
	}
	fmt.Printf("Deleted %s\n", fs.Arg(0))
}

func cmdInitConfig(args []string) {
	fs := flag.NewFlagSet("init-config", flag.ExitOnError)
	force := fs.Bool("f", false, "Overwrite an existing file")
	fs.Parse(args)

	path := config.DefaultPath()
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}
	if _, err := os.Stat(path); err == nil && !*force {
		fail(fmt.Errorf("%s already exists (use -f to overwrite)", path))
	}

	cfg := config.Default()
	save := func() error { return cfg.SaveTo(path) }
	if fs.NArg() == 0 {
		save = cfg.Save
	}
	if err := save(); err != nil {
		fail(err)
	}
	fmt.Printf("Wrote %s\n", path)
}
