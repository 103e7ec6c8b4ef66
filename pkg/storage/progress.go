package storage

import "io"

// ProgressFunc receives the number of bytes consumed so far and the expected total (0 if unknown).
type ProgressFunc func(read, total int64)

// progressStep is the minimum number of bytes between two callbacks (1 MiB).
const progressStep = 1 << 20

// ProgressReader wraps a reader and reports consumption through a ProgressFunc.
// Callbacks are throttled to one per progressStep bytes, plus a final call at EOF.
type ProgressReader struct {
	r        io.Reader
	total    int64
	read     int64
	reported int64
	fn       ProgressFunc
	done     bool
}

// NewProgressReader creates a ProgressReader.
func NewProgressReader(r io.Reader, total int64, fn ProgressFunc) *ProgressReader {
	return &ProgressReader{r: r, total: total, fn: fn}
}

func (p *ProgressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	switch {
	case err == io.EOF && !p.done:
		p.done = true
		p.reported = p.read
		p.fn(p.read, p.total)
	case p.read-p.reported >= progressStep:
		p.reported = p.read
		p.fn(p.read, p.total)
	}
	return n, err
}

// Percent converts a byte count into a 0-100 integer percentage.
func Percent(read, total int64) int {
	if total <= 0 {
		return 0
	}
	pct := int(read * 100 / total)
	if pct > 100 {
		pct = 100
	}
	return pct
}
