package cluster

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/seekerror/logw"

	"github.com/kbd-chess/cerberus/pkg/board"
	"github.com/kbd-chess/cerberus/pkg/board/fen"
)

// DispatchPort is the default port peers listen on for search requests.
const DispatchPort = 5823

// budgetScale shaves the dispatcher's own think-time budget so a reply has time to travel back
// before the local deadline expires.
const budgetScale = 0.9

// Request is one `go` fanned out to a peer node.
type Request struct {
	Position  string `json:"position"`
	ThinkTime int    `json:"think_time"` // milliseconds
	Depth     int    `json:"depth"`      // -1 for unbounded
	Idx       int    `json:"idx"`
}

// Reply is a peer's answer to a Request.
type Reply struct {
	Position string `json:"position"`
	Move     string `json:"move"`
	Depth    int    `json:"depth"`
	Score    int    `json:"score"`
}

// Peer is one dispatch target, host[:port] with DispatchPort implied when no port is given.
type Peer struct {
	Addr *net.UDPAddr
}

// ParsePeers parses a comma-separated host[:port] list as supplied to the -n flag.
func ParsePeers(list string) ([]Peer, error) {
	var peers []Peer
	for _, tok := range strings.Split(list, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		host, port := tok, DispatchPort
		if idx := strings.LastIndex(tok, ":"); idx >= 0 {
			host = tok[:idx]
			p, err := strconv.Atoi(tok[idx+1:])
			if err != nil {
				return nil, err
			}
			port = p
		}
		addr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(host, strconv.Itoa(port)))
		if err != nil {
			return nil, err
		}
		peers = append(peers, Peer{Addr: addr})
	}
	return peers, nil
}

// Dispatcher fans a root search out to peer nodes and merges their replies with a local result.
// Peers that never reply are not fatal: the merge proceeds with whatever arrived before the
// local deadline.
type Dispatcher struct {
	peers      []Peer
	conn       *net.UDPConn
	listenPort int

	local bool // also search locally in addition to dispatching, per -L
}

// NewDispatcher binds a UDP socket on listenPort (0 picks a free port) for request/reply
// traffic. It does not serve incoming requests from other peers; Serve does that.
func NewDispatcher(peers []Peer, listenPort int, also bool) (*Dispatcher, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: listenPort})
	if err != nil {
		return nil, err
	}
	return &Dispatcher{peers: peers, conn: conn, listenPort: listenPort, local: also}, nil
}

func (d *Dispatcher) Close() {
	_ = d.conn.Close()
}

// LocalAlso reports whether the dispatcher should additionally search the position itself,
// per the -L flag.
func (d *Dispatcher) LocalAlso() bool {
	return d.local
}

// Dispatch sends a Request to every peer and collects replies until thinkTime elapses. Replies
// whose Position does not match position (a stale reply from a prior `go`) are discarded.
func (d *Dispatcher) Dispatch(ctx context.Context, position string, thinkTime time.Duration, depth int) []Reply {
	if len(d.peers) == 0 {
		return nil
	}

	req := Request{Position: position, ThinkTime: int(time.Duration(float64(thinkTime) * budgetScale).Milliseconds()), Depth: depth}

	for i, p := range d.peers {
		req.Idx = i
		m, err := json.Marshal(req)
		if err != nil {
			logw.Errorf(ctx, "cluster: failed to marshal request: %v", err)
			continue
		}
		if _, err := d.conn.WriteToUDP(m, p.Addr); err != nil {
			logw.Warningf(ctx, "cluster: dispatch to %v failed: %v", p.Addr, err)
		}
	}

	deadline := time.Now().Add(thinkTime)
	_ = d.conn.SetReadDeadline(deadline)

	var replies []Reply
	recv := make([]byte, 1500)
	for len(replies) < len(d.peers) {
		n, _, err := d.conn.ReadFromUDP(recv)
		if err != nil {
			break // deadline exceeded or socket closed: remaining peers simply didn't answer in time
		}
		var r Reply
		if err := json.Unmarshal(recv[:n], &r); err != nil {
			continue
		}
		if r.Position != position {
			continue // stale reply from a previous position
		}
		replies = append(replies, r)
	}
	return replies
}

// Serve answers incoming Requests from peers by running fn (the local search, fixed to the
// requested think-time and depth) and replying with its result. Runs until ctx is cancelled.
func (d *Dispatcher) Serve(ctx context.Context, fn func(ctx context.Context, pos string, thinkTime time.Duration, depth int) (board.Move, int, int)) {
	if d.listenPort == 0 {
		return
	}
	buf := make([]byte, 1500)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_ = d.conn.SetReadDeadline(time.Now().Add(time.Second))
		n, addr, err := d.conn.ReadFromUDP(buf)
		if err != nil {
			continue
		}
		var req Request
		if err := json.Unmarshal(buf[:n], &req); err != nil {
			logw.Warningf(ctx, "cluster: dropping malformed request from %v: %v", addr, err)
			continue
		}
		go d.answer(ctx, addr, req, fn)
	}
}

func (d *Dispatcher) answer(ctx context.Context, addr *net.UDPAddr, req Request, fn func(context.Context, string, time.Duration, int) (board.Move, int, int)) {
	if _, _, _, _, err := fen.Decode(req.Position); err != nil {
		logw.Warningf(ctx, "cluster: rejecting request for invalid position %q: %v", req.Position, err)
		return
	}
	depth := req.Depth
	if depth <= 0 {
		depth = 255
	}
	m, score, d2 := fn(ctx, req.Position, time.Duration(req.ThinkTime)*time.Millisecond, depth)
	reply := Reply{Position: req.Position, Move: m.String(), Depth: d2, Score: score}
	buf, err := json.Marshal(reply)
	if err != nil {
		return
	}
	if _, err := d.conn.WriteToUDP(buf, addr); err != nil {
		logw.Warningf(ctx, "cluster: reply to %v failed: %v", addr, err)
	}
}

// Merge picks the reply representing the deepest completed search, tiebreaking on score, among
// the local result and every peer Reply that matches position. A nil local move is possible only
// when the local engine itself found nothing (e.g. cancelled before depth 1); peer replies still
// participate in that case.
func Merge(position string, localMove board.Move, localScore, localDepth int, replies []Reply) (board.Move, int, int) {
	bestMove, bestScore, bestDepth := localMove, localScore, localDepth
	have := !localMove.IsNull()

	for _, r := range replies {
		if r.Position != position {
			continue
		}
		m, err := board.ParseMove(r.Move)
		if err != nil {
			continue
		}
		if !have || r.Depth > bestDepth || (r.Depth == bestDepth && r.Score > bestScore) {
			bestMove, bestScore, bestDepth = m, r.Score, r.Depth
			have = true
		}
	}
	return bestMove, bestScore, bestDepth
}
