package p2p

import (
	"encoding/json"
	"log"
	"net"
	"time"

	"github.com/nodeforge/bitledger/internal/chain"
)

// writeTimeout bounds how long an outbound send may block, matching the
// reference implementation's TCP_WRITE_TIMEOUT.
const writeTimeout = 1000 * time.Millisecond

// send opens a short-lived connection to addr and writes pkg as a single
// JSON object. A failed dial evicts addr from the peer registry.
func (s *Server) send(addr string, pkg Package) {
	conn, err := net.DialTimeout("tcp", addr, writeTimeout)
	if err != nil {
		log.Printf("p2p: %s unreachable, evicting: %v", addr, err)
		s.peers.Evict(addr)
		return
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		log.Printf("p2p: set write deadline to %s: %v", addr, err)
		return
	}
	if err := json.NewEncoder(conn).Encode(pkg); err != nil {
		log.Printf("p2p: send to %s: %v", addr, err)
	}
}

func (s *Server) sendVersion(addr string, bestHeight int) {
	s.send(addr, versionPackage(s.cfg.NodeAddress, bestHeight))
}

func (s *Server) sendGetBlocks(addr string) {
	s.send(addr, getBlocksPackage(s.cfg.NodeAddress))
}

func (s *Server) sendInv(addr string, opType OpType, items [][]byte) {
	s.send(addr, invPackage(s.cfg.NodeAddress, opType, items))
}

func (s *Server) sendGetData(addr string, opType OpType, id []byte) {
	s.send(addr, getDataPackage(s.cfg.NodeAddress, opType, id))
}

func (s *Server) sendBlock(addr string, block *chain.Block) {
	s.send(addr, blockPackage(s.cfg.NodeAddress, block.Serialize()))
}

func (s *Server) sendTx(addr string, tx *chain.Transaction) {
	s.send(addr, txPackage(s.cfg.NodeAddress, tx.Serialize()))
}
