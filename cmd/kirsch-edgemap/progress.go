package main

import (
	"fmt"
	"io"
	"sync"

	"kirsch-edgemap/internal/batch"
)

// progressPrinter rewrites one status line per file and ends it once the
// file's last row is done.
type progressPrinter struct {
	mu sync.Mutex
	w  io.Writer
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w}
}

func (p *progressPrinter) Update(pr batch.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "\r[%03d/%03d] Processing File: %s (Row %05d of %05d)",
		pr.Index, pr.Total, pr.File, pr.Row, pr.Rows)
	if pr.Row == pr.Rows {
		fmt.Fprintln(p.w)
	}
}
