// Package inspect scans a dataset directory and reports its layout: the directory tree,
// file extension counts per directory, and example files with their sizes.
package inspect

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultExamplesPerExt is the number of example files listed per extension.
const DefaultExamplesPerExt = 3

var rule = strings.Repeat("=", 100)

// Example is one listed file.
type Example struct {
	Name string
	Size int64
	// SizeErr is set when the file could not be stat'ed.
	SizeErr bool
}

// ExtCount is the number of files with one extension in a directory.
type ExtCount struct {
	Ext      string
	Count    int
	Examples []Example
}

// Dir is one scanned directory.
type Dir struct {
	Rel   string
	Depth int
	Exts  []ExtCount
}

// Report is the result of Scan.
type Report struct {
	Root       string
	Dirs       []Dir
	TotalFiles int
}

// Options configures Scan.
type Options struct {
	// ExamplesPerExt defaults to DefaultExamplesPerExt.
	ExamplesPerExt int
}

// Scan walks root without a depth limit. Directories and files are visited in lexical order.
func Scan(root string, opts Options) (*Report, error) {
	if opts.ExamplesPerExt <= 0 {
		opts.ExamplesPerExt = DefaultExamplesPerExt
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("path not found: %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	r := &Report{Root: root}
	byPath := make(map[string]int)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			depth := 0
			if rel == "." {
				rel = filepath.Base(filepath.Clean(root))
			} else {
				depth = strings.Count(rel, string(filepath.Separator)) + 1
			}
			byPath[path] = len(r.Dirs)
			r.Dirs = append(r.Dirs, Dir{Rel: rel, Depth: depth})
			return nil
		}

		dir := &r.Dirs[byPath[filepath.Dir(path)]]
		r.TotalFiles++
		ext := strings.ToLower(filepath.Ext(d.Name()))
		ec := findExt(dir, ext)
		ec.Count++
		if len(ec.Examples) < opts.ExamplesPerExt {
			ex := Example{Name: d.Name()}
			if fi, err := d.Info(); err == nil {
				ex.Size = fi.Size()
			} else {
				ex.SizeErr = true
			}
			ec.Examples = append(ec.Examples, ex)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	return r, nil
}

func findExt(d *Dir, ext string) *ExtCount {
	for i := range d.Exts {
		if d.Exts[i].Ext == ext {
			return &d.Exts[i]
		}
	}
	d.Exts = append(d.Exts, ExtCount{Ext: ext})
	return &d.Exts[len(d.Exts)-1]
}

// Write renders the report as indented text. Sizes are shown in MB unless omitSize is set.
func (r *Report) Write(w io.Writer, omitSize bool) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Dataset Structure Report for: %s\n", r.Root)
	fmt.Fprintf(&b, "%s\n\n", rule)
	for _, d := range r.Dirs {
		indent := strings.Repeat("  ", d.Depth)
		fmt.Fprintf(&b, "%s[DIR] %s\n", indent, d.Rel)
		for _, ec := range d.Exts {
			ext := ec.Ext
			if ext == "" {
				ext = "(no extension)"
			}
			fmt.Fprintf(&b, "%s  ├── %s: %d files\n", indent, ext, ec.Count)
			for _, ex := range ec.Examples {
				switch {
				case omitSize:
					fmt.Fprintf(&b, "%s      • %s\n", indent, ex.Name)
				case ex.SizeErr:
					fmt.Fprintf(&b, "%s      • %s  (size unavailable)\n", indent, ex.Name)
				default:
					fmt.Fprintf(&b, "%s      • %s  (%.2f MB)\n", indent, ex.Name, float64(ex.Size)/(1024*1024))
				}
			}
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "%s\n\nTotal files scanned: %d\n", rule, r.TotalFiles)
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteFile scans root and writes the report to path.
func WriteFile(root, path string, opts Options, omitSize bool) (*Report, error) {
	r, err := Scan(root, opts)
	if err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if err := r.Write(f, omitSize); err != nil {
		f.Close()
		return nil, err
	}
	return r, f.Close()
}
