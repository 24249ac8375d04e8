package dedup

import "github.com/roach88/tplscope/internal/record"

const (
	// FilterBits is the size of a filter's bit array (m).
	FilterBits = 1 << 16

	// HashCount is the number of hash functions applied per record (k).
	HashCount = 8

	// DesignCapacity is the number of distinct records a filter can hold
	// before the false-positive rate may exceed 0.01%.
	DesignCapacity = 2000

	chunkBits = 64
	chunks    = FilterBits / chunkBits
)

// primes holds five multipliers per hash function, one for each record
// field. Drawn from the primes below 10,000,000.
var primes = [HashCount * 5]uint32{
	9753463, 123979, 8701949, 1069219, 3704537,
	6366473, 272693, 1829587, 3188723, 8039501,
	6032921, 3638497, 4263253, 1788601, 9295687,
	4069397, 9887611, 3195623, 2066137, 2131799,
	7250263, 6188641, 1283903, 3376049, 2818817,
	8308891, 2677093, 6490409, 4825627, 6902711,
	3640543, 3535769, 8084729, 2022263, 1332329,
	2434013, 1608259, 3452689, 302143, 1366019,
}

// BloomFilter is a fixed-size approximate set of log records.
// The zero value is an empty filter ready for use.
type BloomFilter struct {
	bits  [chunks]uint64
	items int
}

// hashes applies all k hash functions to r. Each is a prime-weighted sum of
// the record fields in wrapping 32-bit arithmetic, reduced modulo FilterBits.
func hashes(r record.LogRecord) [HashCount]uint32 {
	var out [HashCount]uint32
	for i := 0; i < HashCount; i++ {
		p := primes[i*5 : i*5+5]
		h := p[0]*r.TemplateHash +
			p[1]*uint32(r.EvaluationID) +
			p[2]*uint32(r.Namespace) +
			p[3]*uint32(r.LookupCount) +
			p[4]*r.Flags
		out[i] = h % FilterBits
	}
	return out
}

// Contains reports whether all of r's bits are set.
func (f *BloomFilter) Contains(r record.LogRecord) bool {
	for _, h := range hashes(r) {
		if f.bits[h/chunkBits]&(1<<(h%chunkBits)) == 0 {
			return false
		}
	}
	return true
}

// ContainsAndInsert sets r's bits and reports whether they were all set
// beforehand. The hashes are computed once for both operations.
func (f *BloomFilter) ContainsAndInsert(r record.LogRecord) bool {
	present := true
	for _, h := range hashes(r) {
		word, mask := h/chunkBits, uint64(1)<<(h%chunkBits)
		if f.bits[word]&mask == 0 {
			present = false
			f.bits[word] |= mask
		}
	}
	if !present {
		f.items++
	}
	return present
}

// ApproxCount is the number of insertions that set at least one new bit,
// an approximation of the number of distinct records held.
func (f *BloomFilter) ApproxCount() int {
	return f.items
}

// Saturated reports whether the filter holds more than DesignCapacity items.
func (f *BloomFilter) Saturated() bool {
	return f.items > DesignCapacity
}

// Reset empties the filter.
func (f *BloomFilter) Reset() {
	f.bits = [chunks]uint64{}
	f.items = 0
}
