// Command hackscan drives the abstract interpreter over a YAML-described
// codedb, printing the call graph and any taint findings. It mirrors the
// run/deps subcommand split of the teacher's cmd/able CLI: "analyze" plays
// the role of "run", "fetch" plays the role of "deps".
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/corewall/hackscan/pkg/ast"
	"github.com/corewall/hackscan/pkg/codedb"
	"github.com/corewall/hackscan/pkg/config"
	"github.com/corewall/hackscan/pkg/corpus"
	"github.com/corewall/hackscan/pkg/env"
	"github.com/corewall/hackscan/pkg/interp"
	"github.com/corewall/hackscan/pkg/taint"
	"github.com/corewall/hackscan/pkg/value"
)

const cliToolVersion = "hackscan 0.0.0-dev"

// decodedModule pairs a decoded fixture module with the path it came from,
// for error reporting in the per-module analysis loop.
type decodedModule struct {
	path string
	mod  *ast.Module
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 1
	}
	switch args[0] {
	case "--help", "-h":
		printUsage()
		return 0
	case "--version", "-V", "version":
		fmt.Fprintln(os.Stdout, cliToolVersion)
		return 0
	case "analyze":
		return runAnalyze(args[1:])
	case "fetch":
		return runFetch(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: hackscan analyze <config.yml>")
	fmt.Fprintln(os.Stderr, "       hackscan fetch <config.yml>")
	fmt.Fprintln(os.Stderr, "       hackscan version")
}

func runAnalyze(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "analyze requires exactly one config path")
		return 1
	}
	cfg, err := config.Load(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	entryPaths := cfg.EntryPaths
	if cfg.CorpusRepo != "" {
		dir := cfg.CorpusDir
		if dir == "" {
			dir = filepath.Join(filepath.Dir(cfg.Path), "corpus")
		}
		if err := corpus.Fetch(cfg.CorpusRepo, cfg.CorpusRef, dir); err != nil {
			fmt.Fprintf(os.Stderr, "failed to fetch corpus: %v\n", err)
			return 1
		}
		files, err := corpus.EntryFiles(dir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to list corpus entries: %v\n", err)
			return 1
		}
		entryPaths = append(append([]string{}, entryPaths...), files...)
	}
	if len(entryPaths) == 0 {
		fmt.Fprintln(os.Stderr, "no entry_paths resolved; nothing to analyze")
		return 1
	}

	db := codedb.NewMemDB()
	var decoded []*decodedModule
	for _, p := range entryPaths {
		data, err := os.ReadFile(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read %s: %v\n", p, err)
			return 1
		}
		mod, err := codedb.LoadModule(p, data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to decode %s: %v\n", p, err)
			return 1
		}
		db.Add(mod)
		decoded = append(decoded, &decodedModule{path: p, mod: mod})
	}

	collector := &taint.SliceCollector{}
	var taintModule taint.Module
	if cfg.TaintMode {
		taintModule = taint.New(true, collector)
	} else {
		taintModule = taint.New(false, collector)
	}

	ip := interp.New(cfg.Options(), taintModule)
	heap := value.NewHeap()
	en := env.New(db, entryPaths[0])

	for _, d := range decoded {
		var runErr error
		heap, runErr = ip.RunModule(en, heap, d.mod)
		if runErr != nil {
			fmt.Fprintf(os.Stderr, "error analyzing %s: %v\n", d.path, runErr)
			if cfg.Strict {
				return 1
			}
		}
	}

	fmt.Fprintln(os.Stdout, "call graph:")
	for _, line := range ip.Graph.Lines() {
		fmt.Fprintf(os.Stdout, "  %s\n", line)
	}

	if cfg.TaintMode {
		fmt.Fprintln(os.Stdout, "taint findings:")
		for _, f := range collector.Findings {
			fmt.Fprintf(os.Stdout, "  sink=%s source=%s label=%s\n", f.SinkLabel, f.SourceInfo, f.Label)
		}
	}
	return 0
}

func runFetch(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "fetch requires exactly one config path")
		return 1
	}
	cfg, err := config.Load(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}
	if cfg.CorpusRepo == "" {
		fmt.Fprintln(os.Stderr, "config has no corpus.repo to fetch")
		return 1
	}
	dir := cfg.CorpusDir
	if dir == "" {
		dir = filepath.Join(filepath.Dir(cfg.Path), "corpus")
	}
	if err := corpus.Fetch(cfg.CorpusRepo, cfg.CorpusRef, dir); err != nil {
		fmt.Fprintf(os.Stderr, "failed to fetch corpus: %v\n", err)
		return 1
	}
	fmt.Fprintf(os.Stdout, "fetched %s@%s into %s\n", cfg.CorpusRepo, cfg.CorpusRef, dir)
	return 0
}
