// Package keys issues translation keys of the form unique_key_<N>.
package keys

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
)

// Prefix is the literal part of every issued key.
const Prefix = "unique_key_"

var tokenPattern = regexp.MustCompile(Prefix + `(\d+)`)

// Allocator is the batch-wide key counter. It is safe for concurrent use;
// the counter only moves forward except through Reset.
type Allocator struct {
	n atomic.Int64
}

// NewAllocator returns an allocator whose counter starts at start.
func NewAllocator(start int64) *Allocator {
	a := &Allocator{}
	a.n.Store(start)
	return a
}

// Issue increments the counter and returns the new key.
func (a *Allocator) Issue() string {
	return Format(a.n.Add(1))
}

// Seed raises the counter to maxObserved if it is currently lower.
func (a *Allocator) Seed(maxObserved int64) {
	for {
		cur := a.n.Load()
		if maxObserved <= cur {
			return
		}
		if a.n.CompareAndSwap(cur, maxObserved) {
			return
		}
	}
}

// Current returns the highest number issued or observed so far.
func (a *Allocator) Current() int64 {
	return a.n.Load()
}

// Reset sets the counter to v. Only the manifest replayer calls this.
func (a *Allocator) Reset(v int64) {
	a.n.Store(v)
}

// Format renders key number n.
func Format(n int64) string {
	return fmt.Sprintf("%s%d", Prefix, n)
}

// Number parses the numeric suffix of an issued key.
func Number(key string) (int64, bool) {
	rest, ok := strings.CutPrefix(key, Prefix)
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ScanMax returns the largest N of any unique_key_<N> token in text, or 0.
func ScanMax(text string) int64 {
	var highest int64
	for _, m := range tokenPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest
}
