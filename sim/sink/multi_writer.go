package sink

import "errors"

// MultiWriter fans rows out to several writers.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a MultiWriter. Nil writers are skipped.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	mw := &MultiWriter{}
	for _, w := range writers {
		if w != nil {
			mw.writers = append(mw.writers, w)
		}
	}
	return mw
}

// Len returns the number of writers.
func (mw *MultiWriter) Len() int {
	return len(mw.writers)
}

// WriteOutcomes sends rows to every writer, stopping at the first failure.
func (mw *MultiWriter) WriteOutcomes(rows []OutcomeRow) error {
	for _, w := range mw.writers {
		if err := w.WriteOutcomes(rows); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every writer and joins their errors.
func (mw *MultiWriter) Close() error {
	var errs []error
	for _, w := range mw.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
