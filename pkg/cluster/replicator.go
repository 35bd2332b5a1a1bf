// Package cluster implements peer-to-peer transposition table replication (raw packed entries
// over UDP broadcast) and the search dispatcher that fans a `go` out to peer nodes and merges
// their replies, per the cluster wire format.
package cluster

import (
	"context"
	"encoding/binary"
	"net"
	"sync"
	"time"

	"github.com/seekerror/logw"

	"github.com/kbd-chess/cerberus/pkg/board"
	"github.com/kbd-chess/cerberus/pkg/search"
)

// ReplicatorTXPort is the default destination port for TT-entry broadcast datagrams.
const ReplicatorTXPort = 2318

// entryWireSize is the datagram payload size: 8-byte hash plus the 16-byte packed entry
// (score, flags, age, depth, remote bit and move, per search.MarshalEntry).
const entryWireSize = 24

func encodeEntry(hash board.ZobristHash, e search.Entry) []byte {
	buf := make([]byte, entryWireSize)
	binary.BigEndian.PutUint64(buf[0:8], uint64(hash))
	copy(buf[8:24], search.MarshalEntry(e))
	return buf
}

// Replicator broadcasts locally-completed EXACT transposition entries to peer nodes over UDP,
// and applies entries received from peers into the local table. The send side is a bounded FIFO
// guarded by a mutex and condition variable; overflow drops the oldest pending entry.
type Replicator struct {
	ctx  context.Context
	tt   *search.Table
	conn *net.UDPConn

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []queued
	maxSize int
	drops   uint64

	quit chan struct{}
}

type queued struct {
	hash board.ZobristHash
	e    search.Entry
}

// NewReplicator binds a broadcast UDP socket on port and starts the TX and RX background
// goroutines. tt is both the source of local EXACT stores (via SetReplicator) and the
// destination for entries received from peers.
func NewReplicator(ctx context.Context, tt *search.Table, port int, maxQueue int) (*Replicator, error) {
	addr := &net.UDPAddr{Port: port}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, err
	}

	r := &Replicator{ctx: ctx, tt: tt, conn: conn, maxSize: maxQueue, quit: make(chan struct{})}
	r.cond = sync.NewCond(&r.mu)
	tt.SetReplicator(r)

	go r.txLoop()
	go r.rxLoop()
	return r, nil
}

// Emit enqueues an entry for broadcast. Never blocks: a full queue drops the oldest entry.
func (r *Replicator) Emit(hash board.ZobristHash, e search.Entry) {
	r.mu.Lock()
	if len(r.queue) >= r.maxSize {
		r.queue = r.queue[1:]
		r.drops++
	}
	r.queue = append(r.queue, queued{hash, e})
	r.mu.Unlock()
	r.cond.Signal()
}

// Drops returns the number of entries dropped from the send queue due to overflow.
func (r *Replicator) Drops() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drops
}

func (r *Replicator) Close() {
	close(r.quit)
	r.cond.Broadcast()
	_ = r.conn.Close()
}

func (r *Replicator) txLoop() {
	broadcast := &net.UDPAddr{IP: net.IPv4bcast, Port: ReplicatorTXPort}

	for {
		r.mu.Lock()
		for len(r.queue) == 0 {
			select {
			case <-r.quit:
				r.mu.Unlock()
				return
			default:
			}
			r.cond.Wait()
		}
		next := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()

		buf := encodeEntry(next.hash, next.e)
		if _, err := r.conn.WriteToUDP(buf, broadcast); err != nil {
			logw.Errorf(r.ctx, "replicator broadcast failed: %v", err)
		}
	}
}

func (r *Replicator) rxLoop() {
	buf := make([]byte, 1500)
	for {
		select {
		case <-r.quit:
			return
		default:
		}

		_ = r.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, _, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			continue // timeout or transient socket error: best-effort transport
		}
		if n < entryWireSize {
			continue
		}

		hash := board.ZobristHash(binary.BigEndian.Uint64(buf[0:8]))
		e := search.UnmarshalEntry(buf[8:24])
		r.tt.Store(hash, e.Flags, e.Depth, e.Score, e.Move, false, true)
	}
}
