package project

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ledgerRecord is one build unit's input set and resulting output list,
// persisted so GetLastResult can answer across runs.
type ledgerRecord struct {
	Inputs  []string `json:"inputs"`
	Outputs []string `json:"outputs"`
}

func inputsKey(inputs []string) string {
	sorted := append([]string(nil), inputs...)
	sort.Strings(sorted)
	return strings.Join(sorted, "\x00")
}

// Ledger is the per-(project, toolchain, arch, target) artifact ledger:
// newline-delimited absolute paths of files produced by the previous run
// (read once, then a fresh file is opened for this run), plus a sidecar
// index recording each build unit's input set -> output list so
// GetLastResult can answer without re-deriving a naming convention.
type Ledger struct {
	mu sync.Mutex

	path      string
	indexPath string
	file      *os.File
	indexFile *os.File

	previous  map[string]bool
	results   map[string][]string
	artifacts []string
}

// OpenLedger reads the previous ledger (if any) for name under csbuildDir,
// then truncates and opens fresh files for this run. csbuildDir is created
// if missing.
func OpenLedger(csbuildDir, name string) (*Ledger, error) {
	if err := os.MkdirAll(csbuildDir, 0755); err != nil {
		return nil, fmt.Errorf("project: create ledger dir: %w", err)
	}

	path := filepath.Join(csbuildDir, name+".artifacts")
	indexPath := path + ".index"

	previous, err := readLedgerFile(path)
	if err != nil {
		return nil, err
	}
	results, err := readIndexFile(indexPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("project: open ledger %s: %w", path, err)
	}
	idx, err := os.Create(indexPath)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("project: open ledger index %s: %w", indexPath, err)
	}

	return &Ledger{
		path:      path,
		indexPath: indexPath,
		file:      f,
		indexFile: idx,
		previous:  previous,
		results:   results,
	}, nil
}

func readLedgerFile(path string) (map[string]bool, error) {
	out := make(map[string]bool)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("project: read ledger %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			out[line] = true
		}
	}
	return out, nil
}

func readIndexFile(path string) (map[string][]string, error) {
	out := make(map[string][]string)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("project: read ledger index %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec ledgerRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		out[inputsKey(rec.Inputs)] = rec.Outputs
	}
	return out, nil
}

// PreviousArtifacts returns the set of file paths the previous run produced.
func (l *Ledger) PreviousArtifacts() map[string]bool {
	return l.previous
}

// AddArtifact records path as produced this run: written to the ledger,
// flushed and fsynced immediately, and tracked for cleaning.
func (l *Ledger) AddArtifact(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.artifacts = append(l.artifacts, path)
	if _, err := fmt.Fprintln(l.file, path); err != nil {
		return fmt.Errorf("project: write artifact %s: %w", path, err)
	}
	return l.file.Sync()
}

// RecordResult persists inputs' resulting output list so a later run's
// GetLastResult(inputs) can answer it.
func (l *Ledger) RecordResult(inputs, outputs []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	line, err := json.Marshal(ledgerRecord{Inputs: inputs, Outputs: outputs})
	if err != nil {
		return fmt.Errorf("project: marshal ledger record: %w", err)
	}
	if _, err := fmt.Fprintln(l.indexFile, string(line)); err != nil {
		return fmt.Errorf("project: write ledger index: %w", err)
	}
	return l.indexFile.Sync()
}

// GetLastResult returns the prior output list recorded for inputs, if the
// previous run's index has one.
func (l *Ledger) GetLastResult(inputs []string) ([]string, bool) {
	outs, ok := l.results[inputsKey(inputs)]
	return outs, ok
}

// DiscardPreviousResults wipes the prior run's input->output index so every
// GetLastResult lookup this run misses and every build unit reruns,
// regardless of freshness. Used by --rebuild.
func (l *Ledger) DiscardPreviousResults() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.results = make(map[string][]string)
}

// Artifacts returns every path recorded this run, in recording order.
func (l *Ledger) Artifacts() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.artifacts...)
}

// Close flushes and closes both ledger files.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	err1 := l.file.Close()
	err2 := l.indexFile.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
