// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package l76

import "bytes"

// maxSentenceLen is the NMEA0183 line length ceiling. A buffer growing past
// it without framing a sentence means framing was lost, so the whole
// accumulation is garbage.
const maxSentenceLen = 82

// defaultChunkSize is how many bytes one transport poll requests. The L76
// answers I2C reads with up to 255 bytes; 128 matches what the receiver
// reliably delivers per poll.
const defaultChunkSize = 128

// assembler turns raw transport chunks into framed $...*CC sentences. One
// next() call performs exactly one transport read, so callers control the
// poll cadence and the timeout.
type assembler struct {
	tr        Transport
	chunkSize int
	buf       []byte
}

func newAssembler(tr Transport) *assembler {
	return &assembler{tr: tr, chunkSize: defaultChunkSize}
}

// next reads one chunk and reports a complete sentence when one has framed.
// Transport read errors are swallowed and treated as an empty poll, so
// assembly simply continues on the next call. At most one sentence is held
// ready at a time: anything after the framed sentence is dropped with the
// buffer.
func (a *assembler) next() (string, bool) {
	chunk, err := a.tr.Read(a.chunkSize)
	if err == nil && len(chunk) > 0 {
		a.buf = append(a.buf, chunk...)
	}

	start := bytes.IndexByte(a.buf, '$')
	if start < 0 {
		// pure noise, nothing to frame
		a.buf = a.buf[:0]
		return "", false
	}
	if start > 0 {
		// discard leading noise
		a.buf = append(a.buf[:0], a.buf[start:]...)
	}

	if star := bytes.IndexByte(a.buf, '*'); star > 0 && len(a.buf) >= star+3 {
		if star+3 > maxSentenceLen {
			a.buf = a.buf[:0]
			return "", false
		}
		sentence := string(a.buf[:star+3])
		a.buf = a.buf[:0]
		return sentence, true
	}

	if len(a.buf) > maxSentenceLen {
		a.buf = a.buf[:0]
	}
	return "", false
}
