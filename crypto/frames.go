package crypto

import (
	"fmt"
	"io"
)

type streamReader struct {
	f      io.ReaderAt
	aead   aead
	prefix [headerLen]byte

	pos       int64
	curFrame  int64
	haveFrame bool
	buf       []byte
}

func (r *streamReader) loadFrame(idx int64) error {
	// Re-read the prefix: a writer on the same file may have written it
	// after this reader was created over an empty file.
	if _, err := r.f.ReadAt(r.prefix[:], 0); err != nil && err != io.EOF {
		return err
	}
	ctBuf := make([]byte, frameSize+overhead)
	n, err := r.f.ReadAt(ctBuf, frameCiphertextOffset(uint64(idx)))
	if err != nil && err != io.EOF {
		return err
	}
	if n == 0 {
		r.haveFrame = false
		return io.EOF
	}
	plain, err := r.aead.Open(nil, frameNonce(r.prefix, uint64(idx)), ctBuf[:n], nil)
	if err != nil {
		return fmt.Errorf("crypto: frame %d authentication failed: %w", idx, err)
	}
	r.curFrame = idx
	r.haveFrame = true
	r.buf = plain
	return nil
}

func (r *streamReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	total := 0
	for total < len(p) {
		frameIdx := r.pos / frameSize
		offInFrame := int(r.pos % frameSize)

		if !r.haveFrame || r.curFrame != frameIdx {
			if err := r.loadFrame(frameIdx); err != nil {
				if total > 0 {
					return total, nil
				}
				return 0, err
			}
		}

		if offInFrame >= len(r.buf) {
			if total > 0 {
				return total, nil
			}
			return 0, io.EOF
		}

		n := copy(p[total:], r.buf[offInFrame:])
		total += n
		r.pos += int64(n)
	}
	return total, nil
}

func (r *streamReader) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		r.pos = offset
	case io.SeekCurrent:
		r.pos += offset
	default:
		return 0, fmt.Errorf("crypto: unsupported seek whence %d", whence)
	}
	if r.pos < 0 {
		return 0, fmt.Errorf("crypto: negative seek position")
	}
	r.haveFrame = false
	return r.pos, nil
}

func (r *streamReader) Close() error { return nil }

type streamWriter struct {
	f      io.ReaderAt
	w      io.WriterAt
	aead   aead
	prefix [headerLen]byte
	meta   FileCryptoWriterMetadataProvider
	cb     FileCryptoWriterCallback

	pos int64
}

func (w *streamWriter) readFrame(idx int64) ([]byte, error) {
	ctBuf := make([]byte, frameSize+overhead)
	n, err := w.f.ReadAt(ctBuf, frameCiphertextOffset(uint64(idx)))
	if err != nil && err != io.EOF {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return w.aead.Open(nil, frameNonce(w.prefix, uint64(idx)), ctBuf[:n], nil)
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func (w *streamWriter) writeAt(p []byte, offset int64) error {
	if len(p) == 0 {
		return nil
	}
	endOffset := offset + int64(len(p))
	currentSize := int64(w.meta.Size())
	newSize := max64(currentSize, endOffset)

	lastFrameIdx := (newSize - 1) / frameSize
	startFrame := offset / frameSize
	endFrame := (endOffset - 1) / frameSize

	firstTouched := startFrame
	if currentSize > 0 {
		oldLastFrame := (currentSize - 1) / frameSize
		if oldLastFrame < firstTouched {
			firstTouched = oldLastFrame
		}
	}

	for idx := firstTouched; idx <= endFrame; idx++ {
		frameStart := idx * frameSize
		var frameLen int64
		if idx < lastFrameIdx {
			frameLen = frameSize
		} else {
			frameLen = newSize - frameStart
		}
		if frameLen <= 0 {
			continue
		}
		buf := make([]byte, frameLen)

		if frameStart < currentSize {
			plain, err := w.readFrame(idx)
			if err != nil {
				return fmt.Errorf("crypto: read frame %d for merge: %w", idx, err)
			}
			copy(buf, plain)
		}

		lo := max64(frameStart, offset)
		hi := min64(frameStart+frameLen, endOffset)
		if hi > lo {
			copy(buf[lo-frameStart:], p[lo-offset:hi-offset])
		}

		ct := w.aead.Seal(nil, frameNonce(w.prefix, uint64(idx)), buf, nil)
		if _, err := w.w.WriteAt(ct, frameCiphertextOffset(uint64(idx))); err != nil {
			return fmt.Errorf("crypto: write frame %d: %w", idx, err)
		}
	}
	return nil
}

func (w *streamWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	offset := w.pos
	if err := w.writeAt(p, offset); err != nil {
		return 0, err
	}
	w.pos += int64(len(p))
	if w.cb != nil {
		w.cb(uint64(offset), uint64(w.pos))
	}
	return len(p), nil
}

func (w *streamWriter) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		w.pos = offset
	case io.SeekCurrent:
		w.pos += offset
	default:
		return 0, fmt.Errorf("crypto: unsupported seek whence %d", whence)
	}
	if w.pos < 0 {
		return 0, fmt.Errorf("crypto: negative seek position")
	}
	return w.pos, nil
}

// Flush is a no-op: the writer keeps no buffer, and every Write has already
// handed its sealed frames to WriteAt (no fsync is issued). It exists to satisfy callers that unconditionally flush before
// release.
func (w *streamWriter) Flush() error { return nil }

func (w *streamWriter) Close() error { return nil }
