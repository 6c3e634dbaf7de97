package p2p

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"

	"github.com/nodeforge/bitledger/internal/chain"
	"github.com/nodeforge/bitledger/internal/codec"
	"github.com/nodeforge/bitledger/internal/config"
	"github.com/nodeforge/bitledger/internal/store"
)

// nowFunc supplies the timestamp of a mined block's header. It is a
// variable so the wall-clock source can be replaced.
var nowFunc = func() int64 { return unixNow() }

// Server is a single node's network endpoint: a listener plus the chain
// store, UTXO index, and gossip state (mempool, in-flight set, peer
// registry) that its handlers mutate.
type Server struct {
	cfg      *config.Config
	store    *store.Store
	utxo     *store.UTXOIndex
	mempool  *Mempool
	inFlight *InFlight
	peers    *Peers

	listener net.Listener
}

// NewServer builds a server over an already-opened chain store.
func NewServer(cfg *config.Config, st *store.Store, utxo *store.UTXOIndex) *Server {
	return &Server{
		cfg:      cfg,
		store:    st,
		utxo:     utxo,
		mempool:  NewMempool(),
		inFlight: NewInFlight(),
		peers:    NewPeers(),
	}
}

// ListenAndServe binds the configured address and accepts connections until
// the listener is closed. If this node is not the center node, it announces
// its presence with a Version message first.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.NodeAddress)
	if err != nil {
		return fmt.Errorf("p2p: listen on %s: %w", s.cfg.NodeAddress, err)
	}
	s.listener = ln

	if s.cfg.NodeAddress != CenterNode {
		height, err := s.store.BestHeight()
		if err != nil {
			return fmt.Errorf("p2p: read best height: %w", err)
		}
		go s.sendVersion(CenterNode, height)
	}

	log.Printf("p2p: listening on %s", s.cfg.NodeAddress)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("p2p: accept: %w", err)
		}
		go s.handleConn(conn)
	}
}

// BroadcastTx submits a locally built transaction to the network by sending
// it straight to the center node, which relays it on to its peers.
func (s *Server) BroadcastTx(tx *chain.Transaction) {
	s.sendTx(CenterNode, tx)
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// handleConn decodes a stream of back-to-back JSON Package values off conn
// and dispatches each to its handler, stopping cleanly at EOF.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	peerAddr := conn.RemoteAddr().String()

	dec := json.NewDecoder(conn)
	for {
		var pkg Package
		if err := dec.Decode(&pkg); err != nil {
			if !errors.Is(err, io.EOF) {
				log.Printf("p2p: decode from %s: %v", peerAddr, err)
			}
			return
		}

		if err := s.dispatch(peerAddr, pkg); err != nil {
			log.Printf("p2p: handling %s from %s: %v", pkg.Kind, peerAddr, err)
		}
	}
}

func (s *Server) dispatch(peerAddr string, pkg Package) error {
	switch pkg.Kind {
	case KindVersion:
		return s.handleVersion(peerAddr, pkg)
	case KindGetBlocks:
		return s.handleGetBlocks(pkg)
	case KindInv:
		return s.handleInv(pkg)
	case KindGetData:
		return s.handleGetData(pkg)
	case KindBlock:
		return s.handleBlock(pkg)
	case KindTx:
		return s.handleTx(pkg)
	default:
		return fmt.Errorf("p2p: unknown package kind %q", pkg.Kind)
	}
}

// handleVersion implements the height-comparison handshake: the behind side
// requests blocks, the ahead (or equal) side replies with its own version.
func (s *Server) handleVersion(peerAddr string, pkg Package) error {
	localHeight, err := s.store.BestHeight()
	if err != nil {
		return err
	}

	if localHeight < pkg.BestHeight {
		s.sendGetBlocks(pkg.AddrFrom)
	} else {
		s.sendVersion(pkg.AddrFrom, localHeight)
	}

	if !s.peers.Contains(peerAddr) {
		s.peers.Add(pkg.AddrFrom)
	}
	return nil
}

func (s *Server) handleGetBlocks(pkg Package) error {
	hashes, err := s.store.GetBlockHashes()
	if err != nil {
		return err
	}
	items := make([][]byte, len(hashes))
	for i, h := range hashes {
		items[i] = []byte(h)
	}
	s.sendInv(pkg.AddrFrom, OpBlock, items)
	return nil
}

// handleInv implements both branches of §4.7: block inventory starts (or
// continues) an initial block download, tx inventory triggers a fetch of an
// unseen transaction.
func (s *Server) handleInv(pkg Package) error {
	if len(pkg.Items) == 0 {
		return fmt.Errorf("empty inventory")
	}

	switch pkg.OpType {
	case OpBlock:
		s.inFlight.AddMany(pkg.Items)
		first := pkg.Items[0]
		s.sendGetData(pkg.AddrFrom, OpBlock, first)
		s.inFlight.Remove(first)
	case OpTx:
		txID := pkg.Items[0]
		if !s.mempool.Contains(codec.HexLower(txID)) {
			s.sendGetData(pkg.AddrFrom, OpTx, txID)
		}
	default:
		return fmt.Errorf("inv: unknown op type %q", pkg.OpType)
	}
	return nil
}

func (s *Server) handleGetData(pkg Package) error {
	switch pkg.OpType {
	case OpBlock:
		block, err := s.store.GetBlock(string(pkg.ID))
		if err != nil {
			return nil // unknown block: silently ignore, matching the reference
		}
		s.sendBlock(pkg.AddrFrom, block)
	case OpTx:
		tx, ok := s.mempool.Get(codec.HexLower(pkg.ID))
		if !ok {
			return nil
		}
		s.sendTx(pkg.AddrFrom, tx)
	default:
		return fmt.Errorf("get_data: unknown op type %q", pkg.OpType)
	}
	return nil
}

// handleBlock stores a received block and either continues the in-flight
// download or, once it drains, rebuilds the UTXO index.
func (s *Server) handleBlock(pkg Package) error {
	block, err := chain.DeserializeBlock(pkg.BlockData)
	if err != nil {
		return fmt.Errorf("decode block: %w", err)
	}
	if err := s.store.AddBlock(block); err != nil {
		return fmt.Errorf("add block: %w", err)
	}
	log.Printf("p2p: added block %s (%s)", block.Hash, block.ShortID())

	if first, ok := s.inFlight.First(); ok {
		s.sendGetData(pkg.AddrFrom, OpBlock, first)
		s.inFlight.Remove(first)
		return nil
	}
	return s.utxo.Reindex()
}

// handleTx inserts a transaction into the mempool, relays it if this node is
// the center, and mines a block if this node is a miner at threshold.
func (s *Server) handleTx(pkg Package) error {
	tx, err := chain.DeserializeTransaction(pkg.Transaction)
	if err != nil {
		return fmt.Errorf("decode transaction: %w", err)
	}
	s.mempool.Add(tx)

	if s.cfg.NodeAddress == CenterNode {
		for _, peer := range s.peers.List() {
			if peer == s.cfg.NodeAddress || peer == pkg.AddrFrom {
				continue
			}
			s.sendInv(peer, OpTx, [][]byte{tx.ID})
		}
	}

	if s.cfg.IsMiner() && s.mempool.Len() >= MempoolThreshold {
		return s.mine()
	}
	return nil
}

// mine drains the mempool into a new block, paying the configured mining
// address the coinbase subsidy, and broadcasts the result. An invalid
// transaction found at this point is a fatal condition: mining aborts
// without producing a block, per spec.
func (s *Server) mine() error {
	coinbase, err := chain.NewCoinbaseTx(s.cfg.MiningAddress)
	if err != nil {
		return fmt.Errorf("mine: coinbase: %w", err)
	}

	txs := append(s.mempool.GetAll(), coinbase)

	block, err := s.store.MineBlock(txs, nowFunc())
	if err != nil {
		return fmt.Errorf("mine: %w", err)
	}
	if err := s.utxo.Reindex(); err != nil {
		return fmt.Errorf("mine: reindex: %w", err)
	}
	log.Printf("p2p: mined block %s (%s) at height %d", block.Hash, block.ShortID(), block.Height)

	for _, tx := range txs {
		s.mempool.Remove(codec.HexLower(tx.ID))
	}

	for _, peer := range s.peers.List() {
		if peer == s.cfg.NodeAddress {
			continue
		}
		s.sendInv(peer, OpBlock, [][]byte{[]byte(block.Hash)})
	}
	return nil
}
