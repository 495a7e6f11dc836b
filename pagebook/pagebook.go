// Package pagebook implements a low-overhead byte arena that stores
// variable-length key/value records without per-record length prefixes,
// using sentinel bytes to delimit records: key · 0x01 · value · 0x02,
// with 0x00 marking unused space.
//
// PageBook never reports recoverable errors. Out-of-bounds access or an
// empty page list is a programmer error and panics; a missing key is
// reported through the normal (value, ok) idiom, never an error.
package pagebook

const (
	keyValueSep byte = 0x01
	recordEnd   byte = 0x02
	freeByte    byte = 0x00
)

// PageBook is an ordered sequence of fixed-size pages holding sentinel-
// framed records. It is not internally synchronized; callers must
// serialize access (pagestore.Store, its user in this module, adds no
// lock of its own).
//
// PageBook does not support compression. Spec.md §4.1/§9 require every
// key and value byte placed in a page to be free of 0x00/0x01/0x02, and
// §9 explicitly sanctions disabling compression in the paged backend as
// the simpler of its two listed resolutions for a compressor whose
// output cannot make that guarantee: a general-purpose compressor like
// snappy produces arbitrary binary, which would collide with both the
// free-space scanner (findFreeWindow, which looks for runs of 0x00) and
// the sentinel-delimited key/value scan (FindPage), corrupting
// live records rather than just misreading them. See DESIGN.md.
type PageBook struct {
	pages     [][]byte
	pageSize  int
	liveCount int
	skip      int
}

// New creates a PageBook with the given initial page count and page
// size. The book grows (by prepending pages) when no existing page has
// room for a new record.
func New(pageCount, pageSize int) *PageBook {
	if pageCount <= 0 {
		pageCount = 1
	}
	if pageSize <= 0 {
		panic("pagebook: pageSize must be positive")
	}
	b := &PageBook{
		pages:    make([][]byte, pageCount),
		pageSize: pageSize,
	}
	for i := range b.pages {
		b.pages[i] = make([]byte, pageSize)
	}
	return b
}

// PageCount returns the number of pages currently in the book.
func (b *PageBook) PageCount() int { return len(b.pages) }

// PageSize returns the declared size of every page in the book.
func (b *PageBook) PageSize() int { return b.pageSize }

// Len returns the number of live records across all pages.
func (b *PageBook) Len() int { return b.liveCount }

// payloadSpan returns how many value bytes follow the key separator at
// off, found by scanning for the next record-terminator byte.
func payloadSpan(page []byte, off int) (payloadLen int, ok bool) {
	for i := off; i < len(page); i++ {
		if page[i] == recordEnd {
			return i - off, true
		}
	}
	return 0, false
}

// FindPage scans pages in index order for the first page containing
// key, sliding a window of len(key) bytes one byte at a time. Returns
// the page index and the byte offset the match starts at.
//
// Note on the original algorithm's sentinel-stripping step (spec.md
// §4.1): since the window advances one byte per step regardless, a
// window that starts mid-sentinel is never a valid match and the very
// next window position is the real key start. A window is accepted only
// where a record can start (offset 0, or right after a 0x00 or 0x02
// byte), so a key never matches the tail of a longer stored key.
func (b *PageBook) FindPage(key []byte) (pageIdx, offset int, ok bool) {
	recordStart := func(page []byte, i int) bool {
		return i == 0 || page[i-1] == freeByte || page[i-1] == recordEnd
	}
	n := len(key)
	if n == 0 {
		// An empty key's record starts right at its 0x01 separator —
		// values never legally contain a stray 0x01 (spec.md §3), so
		// the first separator byte at a record start is the match.
		for pi, page := range b.pages {
			for i := 0; i < len(page); i++ {
				if page[i] == keyValueSep && recordStart(page, i) {
					return pi, i, true
				}
			}
		}
		return 0, 0, false
	}
	for pi, page := range b.pages {
		for start := 0; start+n <= len(page); start++ {
			if recordStart(page, start) && equalBytes(page[start:start+n], key) && start+n < len(page) && page[start+n] == keyValueSep {
				return pi, start, true
			}
		}
	}
	return 0, 0, false
}

func equalBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Get returns the value stored for key.
func (b *PageBook) Get(key []byte) ([]byte, bool) {
	_, v, ok := b.GetFull(key)
	return v, ok
}

// GetFull is Get, additionally returning the index of the page the
// record was found in.
func (b *PageBook) GetFull(key []byte) (pageIdx int, value []byte, ok bool) {
	pi, off, found := b.FindPage(key)
	if !found {
		return 0, nil, false
	}
	page := b.pages[pi]
	payloadStart := off + len(key) + 1
	payloadLen, found := payloadSpan(page, payloadStart)
	if !found {
		return 0, nil, false
	}
	val := make([]byte, payloadLen)
	copy(val, page[payloadStart:payloadStart+payloadLen])
	return pi, val, true
}

// Insert writes key·0x01·value·0x02 into the first page with enough
// free space, starting the search at the book's skip cursor. If no
// existing page has room, a new empty page is prepended and used, per
// spec.md §4.1's front-insertion growth policy: the freshly grown page
// is searched first on the next insert, minimizing re-scan cost.
func (b *PageBook) Insert(key, value []byte) {
	need := len(key) + 1 + len(value) + 1

	for pi := b.skip; pi < len(b.pages); pi++ {
		if off, ok := findFreeWindow(b.pages[pi], need); ok {
			writeRecord(b.pages[pi], off, key, value)
			b.skip = pi
			b.liveCount++
			return
		}
	}

	newPage := make([]byte, b.pageSize)
	b.pages = append([][]byte{newPage}, b.pages...)
	b.skip = 0
	writeRecord(b.pages[0], 0, key, value)
	b.liveCount++
}

func writeRecord(page []byte, off int, key, value []byte) {
	copy(page[off:], key)
	off += len(key)
	page[off] = keyValueSep
	off++
	copy(page[off:], value)
	off += len(value)
	page[off] = recordEnd
}

// findFreeWindow returns the start of the first run of need consecutive
// 0x00 bytes in page. It samples the first, middle, and last byte of a
// candidate window before doing the full check, per spec.md §4.1's
// suggested fast-rejection heuristic. This scan is only sound because
// every byte PageBook ever writes for a live record is guaranteed to be
// non-zero-free of meaning (keys/values never legally contain 0x00) —
// an invariant that a general-purpose compressor's output cannot
// promise, which is why PageBook has no compression mode.
func findFreeWindow(page []byte, need int) (start int, ok bool) {
	if need <= 0 || need > len(page) {
		return 0, false
	}
	for start = 0; start+need <= len(page); start++ {
		if page[start] != freeByte || page[start+need-1] != freeByte || page[start+need/2] != freeByte {
			continue
		}
		if isZero(page[start : start+need]) {
			return start, true
		}
	}
	return 0, false
}

func isZero(b []byte) bool {
	for _, c := range b {
		if c != freeByte {
			return false
		}
	}
	return true
}

// Remove deletes the record for key, zeroing its bytes. The skip cursor
// is reset to 0 on every removal (per spec.md §9's mandated fix for the
// original design's cursor leak), since the freed space may now be on
// an earlier page than the cursor points to.
func (b *PageBook) Remove(key []byte) bool {
	pi, off, found := b.FindPage(key)
	if !found {
		return false
	}
	page := b.pages[pi]
	payloadStart := off + len(key) + 1
	payloadLen, found := payloadSpan(page, payloadStart)
	if !found {
		return false
	}
	end := payloadStart + payloadLen + 1 // +1 for the trailing 0x02
	for i := off; i < end; i++ {
		page[i] = freeByte
	}
	b.liveCount--
	b.skip = 0
	return true
}

// ForEach walks every page left to right, decoding each live record and
// calling fn with its (key, value) bytes. This is a sequential
// reconstruction pass rather than a find_page lookup, the same idea as
// the teacher's page-scan readers: it's how a caller (pagestore, in
// particular) lists every record without PageBook maintaining its own
// key index.
func (b *PageBook) ForEach(fn func(key, value []byte)) {
	for _, page := range b.pages {
		i := 0
		for i < len(page) {
			if page[i] == freeByte {
				i++
				continue
			}
			j := i
			for j < len(page) && page[j] != keyValueSep {
				j++
			}
			if j >= len(page) {
				break
			}
			key := page[i:j]
			payloadStart := j + 1
			payloadLen, ok := payloadSpan(page, payloadStart)
			if !ok {
				break
			}
			value := page[payloadStart : payloadStart+payloadLen]
			fn(key, value)
			i = payloadStart + payloadLen + 1
		}
	}
}

// CountSentinels returns the number of 0x01 and 0x02 bytes across every
// page, used by tests to check spec.md §8 invariant 4 against the live
// record count.
func (b *PageBook) CountSentinels() (seps, ends int) {
	for _, page := range b.pages {
		for _, c := range page {
			switch c {
			case keyValueSep:
				seps++
			case recordEnd:
				ends++
			}
		}
	}
	return
}
