package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"coretax/internal"
	"coretax/internal/pipeline"
	"coretax/internal/util"
)

// collectInputs reads one PDF or every PDF directly inside a folder, sorted by name.
func collectInputs(path string) ([]pipeline.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	var paths []string
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".pdf") {
				paths = append(paths, filepath.Join(path, e.Name()))
			}
		}
		sort.Strings(paths)
		if len(paths) == 0 {
			return nil, fmt.Errorf("no PDF files in %s", path)
		}
	} else {
		if !strings.HasSuffix(strings.ToLower(path), ".pdf") {
			return nil, fmt.Errorf("%w: %s", pipeline.ErrNotPDF, path)
		}
		paths = []string{path}
	}

	files := make([]pipeline.File, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		files = append(files, pipeline.File{Name: filepath.Base(p), Data: data})
	}
	return files, nil
}

func printSummary(w io.Writer, batch internal.BatchResult) {
	for _, res := range batch.Results {
		fmt.Fprintf(w, "\n== %s\n", res.Filename)
		if res.Status != internal.StatusSuccess {
			fmt.Fprintf(w, "ERROR: %s\n", res.Error)
			continue
		}

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NO\tNAMA BARANG\tQTY\tUNIT\tTOTAL (Rp)")
		for i, item := range res.Items {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, item.Name, util.FormatIDR(item.Quantity), item.Unit, item.TotalFormatted)
		}
		_ = tw.Flush()

		v := res.Validation
		fmt.Fprintf(w, "TOTAL KALKULASI  %s\n", v.CalculatedTotalFormatted)
		fmt.Fprintf(w, "TOTAL PDF        %s\n", v.PDFTotalFormatted)
		if v.IsValid {
			fmt.Fprintln(w, "STATUS: VALID")
		} else {
			fmt.Fprintf(w, "STATUS: MISMATCH (difference %s)\n", v.DifferenceFormatted)
		}
	}
	fmt.Fprintf(w, "\nfiles=%d success=%d failed=%d\n", batch.TotalFiles, batch.TotalSuccess, batch.TotalFailed)
}
