// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"
)

/* ------------ tiny UI helpers for single-line progress ------------ */

type globalProgress struct {
	out        io.Writer
	verb       string
	totalKnown bool
	totalBytes int64
	doneBytes  int64
	spinIdx    int
	lastTick   time.Time
}

var spinner = []rune{'|', '/', '-', '\\'}

// progressOnTTY is swapped in tests.
var progressOnTTY = func() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// newGlobalProgress returns nil when stderr is not a terminal; all methods
// are nil-safe so callers never branch on it.
func newGlobalProgress(verb string, totalBytes int64) *globalProgress {
	if !progressOnTTY() {
		return nil
	}
	return &globalProgress{
		out:        os.Stderr,
		verb:       verb,
		totalKnown: totalBytes > 0,
		totalBytes: totalBytes,
	}
}

func (gp *globalProgress) add(delta int64) {
	if gp == nil {
		return
	}
	gp.doneBytes += delta
}

func HumanBytes(n int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)
	switch {
	case n >= GB:
		return fmt.Sprintf("%.2f GB", float64(n)/float64(GB))
	case n >= MB:
		return fmt.Sprintf("%.2f MB", float64(n)/float64(MB))
	case n >= KB:
		return fmt.Sprintf("%.2f KB", float64(n)/float64(KB))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func (gp *globalProgress) render(force bool) {
	if gp == nil {
		return
	}
	// throttling: ~10 updates per second
	if !force && time.Since(gp.lastTick) < 100*time.Millisecond {
		return
	}
	gp.lastTick = time.Now()

	if gp.totalKnown && gp.totalBytes > 0 {
		pct := float64(gp.doneBytes) / float64(gp.totalBytes) * 100
		if gp.doneBytes > gp.totalBytes {
			gp.doneBytes = gp.totalBytes
			pct = 100
		}
		fmt.Fprintf(gp.out, "\rProgress: %6.2f%% (%s / %s)   ",
			pct, HumanBytes(gp.doneBytes), HumanBytes(gp.totalBytes))
	} else {
		ch := spinner[gp.spinIdx%len(spinner)]
		gp.spinIdx++
		fmt.Fprintf(gp.out, "\rProgress: [%c] %s %s   ", ch, HumanBytes(gp.doneBytes), gp.verb)
	}
}

func (gp *globalProgress) done() {
	if gp == nil {
		return
	}
	gp.render(true)
	fmt.Fprintln(gp.out)
}

// fileHook feeds one file's byte counts into the global progress line.
func (gp *globalProgress) fileHook() func(written int64, final bool) {
	var prev int64
	return func(written int64, final bool) {
		if delta := written - prev; delta > 0 {
			gp.add(delta)
			gp.render(final)
		}
		prev = written
	}
}
