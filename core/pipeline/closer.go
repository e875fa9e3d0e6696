package pipeline

import "io"

// listCloser owns a set of handles and closes each of them exactly once.
type listCloser []io.Closer

func (lc *listCloser) Add(c io.Closer) {
	*lc = append(*lc, c)
}

// Close closes every handle and forgets them, so later calls are no-ops.
func (lc *listCloser) Close() error {
	var lastErr error
	for _, v := range *lc {
		if err := v.Close(); err != nil {
			lastErr = err
		}
	}
	*lc = nil

	return lastErr
}
