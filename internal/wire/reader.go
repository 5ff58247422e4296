package wire

import "io"

// FrameReader reads FPDUs one at a time off an io.Reader, using a
// Decoder internally to hold bytes left over from a previous read
// that ended mid-frame and to drain multiple FPDUs concatenated in a
// single read before issuing another Read.
type FrameReader struct {
	r       io.Reader
	dec     *Decoder
	scratch []byte
}

// NewFrameReader wraps r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r, dec: NewDecoder(), scratch: make([]byte, 4096)}
}

// Prime seeds the reader with bytes already consumed from the
// transport, e.g. a peek that turned out to be the start of an
// ordinary FPDU rather than a pre-connect handshake.
func (fr *FrameReader) Prime(b []byte) {
	fr.dec.Feed(b)
}

// ReadFpdu blocks until one full FPDU is available, reading from the
// underlying transport only when the internal buffer has no complete
// frame left to yield.
func (fr *FrameReader) ReadFpdu() (*Fpdu, error) {
	for {
		f, ok, err := fr.dec.Next()
		if err != nil {
			return nil, err
		}
		if ok {
			return f, nil
		}
		n, readErr := fr.r.Read(fr.scratch)
		if n > 0 {
			fr.dec.Feed(fr.scratch[:n])
			if f, ok, err := fr.dec.Next(); err != nil {
				return nil, err
			} else if ok {
				return f, nil
			}
		}
		if readErr != nil {
			return nil, readErr
		}
	}
}
