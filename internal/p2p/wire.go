// Package p2p implements the gossip protocol: the mempool, in-flight block
// set, and peer registry that back it, and the JSON-framed TCP server that
// speaks it.
package p2p

// ProtocolVersion is the hard-coded version carried in every Version
// message. There is no negotiation; a mismatch is not rejected.
const ProtocolVersion = 1

// CenterNode is the hard-coded bootstrap peer every non-center node
// announces itself to on startup.
const CenterNode = "127.0.0.1:2001"

// MempoolThreshold is the number of pending transactions that triggers a
// miner-enabled node to mine a new block.
const MempoolThreshold = 2

// OpType distinguishes the two kinds of inventory item carried by Inv and
// GetData messages.
type OpType string

const (
	OpBlock OpType = "Block"
	OpTx    OpType = "Tx"
)

// Kind tags which variant of Package a message is.
type Kind string

const (
	KindVersion   Kind = "Version"
	KindGetBlocks Kind = "GetBlocks"
	KindInv       Kind = "Inv"
	KindGetData   Kind = "GetData"
	KindBlock     Kind = "Block"
	KindTx        Kind = "Tx"
)

// Package is the single wire message type gossiped between nodes: a stream
// of these is JSON-encoded back to back on a connection and decoded with
// encoding/json.Decoder, which tolerates exactly that framing. Only the
// fields relevant to Kind are populated; the rest are left zero.
type Package struct {
	Kind Kind `json:"kind"`

	AddrFrom string `json:"addr_from"`

	// Version
	Version    int `json:"version,omitempty"`
	BestHeight int `json:"best_height,omitempty"`

	// Inv / GetData
	OpType OpType   `json:"op_type,omitempty"`
	Items  [][]byte `json:"items,omitempty"`
	ID     []byte   `json:"id,omitempty"`

	// Block
	BlockData []byte `json:"block,omitempty"`

	// Tx
	Transaction []byte `json:"transaction,omitempty"`
}

func versionPackage(from string, bestHeight int) Package {
	return Package{Kind: KindVersion, AddrFrom: from, Version: ProtocolVersion, BestHeight: bestHeight}
}

func getBlocksPackage(from string) Package {
	return Package{Kind: KindGetBlocks, AddrFrom: from}
}

func invPackage(from string, opType OpType, items [][]byte) Package {
	return Package{Kind: KindInv, AddrFrom: from, OpType: opType, Items: items}
}

func getDataPackage(from string, opType OpType, id []byte) Package {
	return Package{Kind: KindGetData, AddrFrom: from, OpType: opType, ID: id}
}

func blockPackage(from string, blockData []byte) Package {
	return Package{Kind: KindBlock, AddrFrom: from, BlockData: blockData}
}

func txPackage(from string, txData []byte) Package {
	return Package{Kind: KindTx, AddrFrom: from, Transaction: txData}
}
