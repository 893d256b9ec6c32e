package main

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"
)

// Extractor runs a single extraction: collect candidate files, assemble the
// report in memory, and write it to the output path exactly once. Callers
// resolve git and web sources before handing over a local directory (or
// pre-loaded documents via Files).
type Extractor struct {
	Source     string
	OutputPath string
	Profile    Profile
	Scan       ScanOptions
	Now        func() time.Time // injected clock; nil means time.Now

	// Token counting supplement. A nil Tokenizer disables it.
	Tokenizer Tokenizer
	Workers   int

	// Files, when non-nil, bypasses the directory scan. Used for web
	// documents that exist only in memory.
	Files []FileInfo
}

// Result holds the outcome of one run.
type Result struct {
	Report  string
	Files   []FileInfo
	Summary Summary
}

// Collect gathers the candidate files in their final report order, running
// the token-counting pool when a tokenizer is configured.
func (e *Extractor) Collect() ([]FileInfo, error) {
	files := e.Files
	if files == nil {
		var err error
		files, err = scanSourceRoot(e.Source, e.Scan)
		if err != nil {
			return nil, err
		}
	}
	if e.Tokenizer != nil {
		files = e.countTokens(files)
	}
	return files, nil
}

// Run performs the whole extraction. The report is accumulated in memory and
// written in a single WriteFile call; an aborted run leaves no output file.
func (e *Extractor) Run() (*Result, error) {
	files, err := e.Collect()
	if err != nil {
		return nil, err
	}

	report, summary := buildReport(files, ReportConfig{
		Title:      e.Profile.Title(),
		SourceDir:  e.Source,
		OutputPath: e.OutputPath,
		Tokens:     e.Tokenizer != nil,
		Now:        e.Now,
	})

	if err := os.WriteFile(e.OutputPath, []byte(report), 0644); err != nil {
		return nil, fmt.Errorf("error writing report to %s: %w", e.OutputPath, err)
	}
	fmt.Printf("Report saved to %s\n", e.OutputPath)

	return &Result{Report: report, Files: files, Summary: summary}, nil
}

// countTokens fans the files out over a worker pool, loading content and
// counting tokens, then restores the sorted order. Report assembly itself
// stays sequential.
func (e *Extractor) countTokens(files []FileInfo) []FileInfo {
	numWorkers := e.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	fmt.Printf("Using %d worker(s) for token counting.\n", numWorkers)

	jobs := make(chan FileInfo, len(files))
	results := make(chan FileInfo, len(files))
	var wg sync.WaitGroup

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go tokenWorker(e.Tokenizer, jobs, results, &wg)
	}
	for _, file := range files {
		jobs <- file
	}
	close(jobs)
	wg.Wait()
	close(results)

	counted := make([]FileInfo, 0, len(files))
	for res := range results {
		counted = append(counted, res)
	}
	sort.Slice(counted, func(i, j int) bool {
		return counted[i].Path < counted[j].Path
	})
	return counted
}

func tokenWorker(tk Tokenizer, jobs <-chan FileInfo, results chan<- FileInfo, wg *sync.WaitGroup) {
	defer wg.Done()
	for file := range jobs {
		content := file.Content
		if content == nil {
			var readErr error
			content, readErr = os.ReadFile(file.Path)
			if readErr != nil {
				fmt.Fprintf(os.Stderr, "Warning: worker could not read file %s: %v\n", file.Path, readErr)
				file.Err = readErr
				results <- file
				continue
			}
			// Keep the content so report assembly doesn't re-read the file.
			file.Content = content
		}
		if len(content) > 0 {
			file.TokenCount = tk.CountTokens(string(content))
		}
		results <- file
	}
}
