package search

import (
	"encoding/binary"
	"sync"

	"go.uber.org/atomic"

	"github.com/kbd-chess/cerberus/pkg/board"
)

// Bound classifies the kind of score stored in a transposition entry.
type Bound uint8

const (
	NotValid Bound = iota
	Exact
	LowerBound
	UpperBound
)

func (b Bound) String() string {
	switch b {
	case Exact:
		return "exact"
	case LowerBound:
		return "lowerbound"
	case UpperBound:
		return "upperbound"
	default:
		return "notvalid"
	}
}

const bucketSlots = 8

// payload bit layout, packed into the low 64 bits of word1:
//
//	bits  0-15  score      (int16, fail-soft centipawns)
//	bits 16-17  flags      (Bound)
//	bits 18-23  age        (6 bits, wraps)
//	bits 24-30  depth      (7 bits, plies)
//	bit  31     is_remote
//	bits 32-63  move       (From:6 To:6 Promotion:3 Type:4, zero if null)
const (
	shiftScore    = 0
	shiftFlags    = 16
	shiftAge      = 18
	shiftDepth    = 24
	shiftRemote   = 31
	shiftMove     = 32
	maskScore     = 0xFFFF
	maskFlags     = 0x3
	maskAge       = 0x3F
	maskDepth     = 0x7F
	ageModulus    = maskAge + 1
	shiftMoveFrom = 0
	shiftMoveTo   = 6
	shiftMovePromo = 12
	shiftMoveType = 15
)

func packMove(m board.Move) uint64 {
	if m.IsNull() {
		return 0
	}
	return uint64(m.From)<<shiftMoveFrom | uint64(m.To)<<shiftMoveTo |
		uint64(m.Promotion)<<shiftMovePromo | uint64(m.Type)<<shiftMoveType
}

func unpackMove(v uint64) board.Move {
	if v == 0 {
		return board.Move{}
	}
	return board.Move{
		From:      board.Square(v >> shiftMoveFrom & 0x3F),
		To:        board.Square(v >> shiftMoveTo & 0x3F),
		Promotion: board.Piece(v >> shiftMovePromo & 0x7),
		Type:      board.MoveType(v >> shiftMoveType & 0xF),
	}
}

func packPayload(score int16, flags Bound, age uint8, depth uint8, remote bool, m board.Move) uint64 {
	var v uint64
	v |= uint64(uint16(score)) << shiftScore & (maskScore << shiftScore)
	v |= uint64(flags) << shiftFlags & (maskFlags << shiftFlags)
	v |= uint64(age&maskAge) << shiftAge
	v |= uint64(depth&maskDepth) << shiftDepth
	if remote {
		v |= 1 << shiftRemote
	}
	v |= packMove(m) << shiftMove
	return v
}

// Entry is the decoded, verified content of a transposition slot.
type Entry struct {
	Score    int16
	Flags    Bound
	Age      uint8
	Depth    uint8
	IsRemote bool
	Move     board.Move
}

func decodePayload(v uint64) Entry {
	return Entry{
		Score:    int16(v >> shiftScore & maskScore),
		Flags:    Bound(v >> shiftFlags & maskFlags),
		Age:      uint8(v >> shiftAge & maskAge),
		Depth:    uint8(v >> shiftDepth & maskDepth),
		IsRemote: v>>shiftRemote&1 != 0,
		Move:     unpackMove(v >> shiftMove),
	}
}

// MarshalEntry packs an entry into the 16-byte wire form used by cluster TT replication. The
// age field is not carried: a remote entry adopts the local table's current age on arrival.
func MarshalEntry(e Entry) []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[0:8], packPayload(e.Score, e.Flags, 0, e.Depth, true, e.Move))
	binary.BigEndian.PutUint64(buf[8:16], 0)
	return buf
}

// UnmarshalEntry is the inverse of MarshalEntry.
func UnmarshalEntry(buf []byte) Entry {
	e := decodePayload(binary.BigEndian.Uint64(buf[0:8]))
	e.IsRemote = true
	return e
}

// slot is one packed 16-byte transposition entry: two lock-free words, verified by XOR. word0
// holds hash XOR payload; word1 holds the raw payload. A torn read between the two words fails
// the XOR check rather than decoding garbage.
type slot struct {
	word0 atomic.Uint64
	word1 atomic.Uint64
}

func (s *slot) load() (payload uint64, hash board.ZobristHash, ok bool) {
	w0 := s.word0.Load()
	w1 := s.word1.Load()
	return w1, board.ZobristHash(w0 ^ w1), true
}

func (s *slot) store(hash board.ZobristHash, payload uint64) {
	s.word1.Store(payload)
	s.word0.Store(uint64(hash) ^ payload)
}

// Stats is a snapshot of table activity, partitioned by flag and provenance.
type Stats struct {
	Lookups      map[Bound]uint64
	LookupMisses uint64
	Stores       map[Bound]uint64
	RemoteStores uint64
	QueueDrops   uint64
}

// ReplicatorQueue receives EXACT entries emitted for network replication. Emit must not block;
// a full queue drops the oldest pending entry and increments a counter.
type ReplicatorQueue interface {
	Emit(hash board.ZobristHash, e Entry)
}

// Table is the packed, bucketed, lock-free transposition table shared by every search worker.
type Table struct {
	mu      sync.RWMutex // guards buckets slice swap on Resize only; hot path takes RLock
	buckets []bucket
	age     atomic.Uint32

	replicator ReplicatorQueue

	lookups      [4]atomic.Uint64
	lookupMisses atomic.Uint64
	stores       [4]atomic.Uint64
	remoteStores atomic.Uint64
	queueDrops   atomic.Uint64
}

type bucket [bucketSlots]slot

// NewTable allocates a table sized to approximately the given byte budget.
func NewTable(bytes int) *Table {
	t := &Table{}
	t.Resize(bytes)
	return t
}

// SetReplicator installs the queue that EXACT local stores with emit=true are forwarded to.
func (t *Table) SetReplicator(q ReplicatorQueue) {
	t.replicator = q
}

// Resize drops all entries and reallocates to approximately the given byte budget. Callers must
// hold no outstanding lookups when calling this.
func (t *Table) Resize(bytes int) {
	const bucketSize = bucketSlots * 16
	n := bytes / bucketSize
	if n < 1 {
		n = 1
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buckets = make([]bucket, n)
}

// BumpAge advances the generation counter, called once per `go` (search start).
func (t *Table) BumpAge() {
	t.age.Inc()
}

func (t *Table) currentAge() uint8 {
	return uint8(t.age.Load() & maskAge)
}

func (t *Table) bucketFor(hash board.ZobristHash) *bucket {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := uint64(len(t.buckets))
	return &t.buckets[uint64(hash)%n]
}

// Lookup scans the 8-slot bucket and returns the first XOR-verified match. As a side effect of
// a hit, the slot's age is bumped to current. Never blocks.
func (t *Table) Lookup(hash board.ZobristHash) (Entry, bool) {
	b := t.bucketFor(hash)
	for i := range b {
		payload, key, _ := b[i].load()
		if key != hash {
			continue
		}
		e := decodePayload(payload)
		t.lookups[e.Flags].Inc()

		cur := t.currentAge()
		if e.Age != cur {
			e.Age = cur
			b[i].store(hash, packPayload(e.Score, e.Flags, cur, e.Depth, e.IsRemote, e.Move))
		}
		return e, true
	}
	t.lookupMisses.Inc()
	return Entry{}, false
}

// Store applies the 5-step replacement policy described for the bucket containing hash.
func (t *Table) Store(hash board.ZobristHash, flags Bound, depth uint8, score int16, move board.Move, emit bool, isRemote bool) {
	b := t.bucketFor(hash)
	cur := t.currentAge()

	if isRemote {
		t.remoteStores.Inc()
	}
	t.stores[flags].Inc()

	newPayload := packPayload(score, flags, cur, depth, isRemote, move)

	// Step 1-3: a same-hash slot exists.
	for i := range b {
		payload, key, _ := b[i].load()
		if key != hash {
			continue
		}
		existing := decodePayload(payload)
		switch {
		case existing.Depth > depth:
			// 1: keep score, bump age only.
			b[i].store(hash, packPayload(existing.Score, existing.Flags, cur, existing.Depth, existing.IsRemote, existing.Move))
		case existing.Depth == depth && flags != Exact:
			// 2: bump age only.
			b[i].store(hash, packPayload(existing.Score, existing.Flags, cur, existing.Depth, existing.IsRemote, existing.Move))
		default:
			// 3: overwrite.
			b[i].store(hash, newPayload)
		}
		t.maybeReplicate(hash, flags, emit, decodePayload(newPayload))
		return
	}

	// 4: first slot with stale age.
	for i := range b {
		e := decodePayload(b[i].word1.Load())
		if e.Age != cur {
			b[i].store(hash, newPayload)
			t.maybeReplicate(hash, flags, emit, decodePayload(newPayload))
			return
		}
	}

	// 5: minimum-depth slot among same-age slots.
	min := 0
	minDepth := decodePayload(b[0].word1.Load()).Depth
	for i := 1; i < len(b); i++ {
		d := decodePayload(b[i].word1.Load()).Depth
		if d < minDepth {
			minDepth = d
			min = i
		}
	}
	b[min].store(hash, newPayload)
	t.maybeReplicate(hash, flags, emit, decodePayload(newPayload))
}

func (t *Table) maybeReplicate(hash board.ZobristHash, flags Bound, emit bool, e Entry) {
	if !emit || flags != Exact || e.IsRemote || t.replicator == nil {
		return
	}
	t.replicator.Emit(hash, e)
}

// Stats returns a snapshot of lookup/store counts partitioned by flag and local/remote.
func (t *Table) Stats() Stats {
	s := Stats{Lookups: map[Bound]uint64{}, Stores: map[Bound]uint64{}}
	for b := NotValid; b <= UpperBound; b++ {
		s.Lookups[b] = t.lookups[b].Load()
		s.Stores[b] = t.stores[b].Load()
	}
	s.LookupMisses = t.lookupMisses.Load()
	s.RemoteStores = t.remoteStores.Load()
	s.QueueDrops = t.queueDrops.Load()
	return s
}
