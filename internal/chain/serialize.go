package chain

import (
	"fmt"

	"github.com/nodeforge/bitledger/internal/codec"
)

// Serialize encodes tx in the canonical wire format: id, then a count and
// each input (prev tx id, vout, signature, pub key), then a count and each
// output (value, pub key hash), in field order. Byte fields are
// length-prefixed; integers are fixed-width.
func (tx *Transaction) Serialize() []byte {
	w := codec.NewWriter(256)
	w.PutBytes(tx.ID)
	w.PutInt32(int32(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		w.PutBytes(in.PrevTxID)
		w.PutInt64(int64(in.Vout))
		w.PutBytes(in.Signature)
		w.PutBytes(in.PubKey)
	}
	w.PutInt32(int32(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		w.PutInt32(out.Value)
		w.PutBytes(out.PubKeyHash)
	}
	return w.Bytes()
}

// DeserializeTransaction decodes a transaction produced by Serialize.
func DeserializeTransaction(data []byte) (*Transaction, error) {
	r := codec.NewReader(data)
	tx := &Transaction{}

	id, err := r.GetBytes()
	if err != nil {
		return nil, fmt.Errorf("chain: decode tx id: %w", err)
	}
	tx.ID = id

	numInputs, err := r.GetInt32()
	if err != nil {
		return nil, fmt.Errorf("chain: decode tx input count: %w", err)
	}
	tx.Inputs = make([]TxInput, numInputs)
	for i := range tx.Inputs {
		prevTxID, err := r.GetBytes()
		if err != nil {
			return nil, fmt.Errorf("chain: decode input %d prev tx id: %w", i, err)
		}
		vout, err := r.GetInt64()
		if err != nil {
			return nil, fmt.Errorf("chain: decode input %d vout: %w", i, err)
		}
		sig, err := r.GetBytes()
		if err != nil {
			return nil, fmt.Errorf("chain: decode input %d signature: %w", i, err)
		}
		pubKey, err := r.GetBytes()
		if err != nil {
			return nil, fmt.Errorf("chain: decode input %d pub key: %w", i, err)
		}
		tx.Inputs[i] = TxInput{PrevTxID: prevTxID, Vout: int(vout), Signature: sig, PubKey: pubKey}
	}

	numOutputs, err := r.GetInt32()
	if err != nil {
		return nil, fmt.Errorf("chain: decode tx output count: %w", err)
	}
	tx.Outputs = make([]TxOutput, numOutputs)
	for i := range tx.Outputs {
		value, err := r.GetInt32()
		if err != nil {
			return nil, fmt.Errorf("chain: decode output %d value: %w", i, err)
		}
		pubKeyHash, err := r.GetBytes()
		if err != nil {
			return nil, fmt.Errorf("chain: decode output %d pub key hash: %w", i, err)
		}
		tx.Outputs[i] = TxOutput{Value: value, PubKeyHash: pubKeyHash}
	}
	return tx, nil
}

// SerializeOutputs encodes a list of outputs, the shape the UTXO index
// persists per transaction id.
func SerializeOutputs(outs []TxOutput) []byte {
	w := codec.NewWriter(64 * len(outs))
	w.PutInt32(int32(len(outs)))
	for _, out := range outs {
		w.PutInt32(out.Value)
		w.PutBytes(out.PubKeyHash)
	}
	return w.Bytes()
}

// DeserializeOutputs decodes a list of outputs produced by SerializeOutputs.
func DeserializeOutputs(data []byte) ([]TxOutput, error) {
	r := codec.NewReader(data)
	n, err := r.GetInt32()
	if err != nil {
		return nil, fmt.Errorf("chain: decode output list count: %w", err)
	}
	outs := make([]TxOutput, n)
	for i := range outs {
		value, err := r.GetInt32()
		if err != nil {
			return nil, fmt.Errorf("chain: decode output %d value: %w", i, err)
		}
		pubKeyHash, err := r.GetBytes()
		if err != nil {
			return nil, fmt.Errorf("chain: decode output %d pub key hash: %w", i, err)
		}
		outs[i] = TxOutput{Value: value, PubKeyHash: pubKeyHash}
	}
	return outs, nil
}

// serializeTransactions canonically encodes a list of transactions, used to
// compute the block header's tx-set hash (invariant B1).
func serializeTransactions(txs []*Transaction) []byte {
	w := codec.NewWriter(256 * len(txs))
	w.PutInt32(int32(len(txs)))
	for _, tx := range txs {
		w.PutBytes(tx.Serialize())
	}
	return w.Bytes()
}

// Serialize encodes b in the canonical wire format: header, hash, the tx
// list, nonce, and height.
func (b *Block) Serialize() []byte {
	w := codec.NewWriter(1024)
	w.PutInt64(b.Header.Timestamp)
	w.PutString(b.Header.TxSetHash)
	w.PutString(b.Header.PrevBlockHash)
	w.PutString(b.Hash)
	w.PutInt32(int32(len(b.Transactions)))
	for _, tx := range b.Transactions {
		w.PutBytes(tx.Serialize())
	}
	w.PutInt64(b.Nonce)
	w.PutInt64(int64(b.Height))
	return w.Bytes()
}

// DeserializeBlock decodes a block produced by Block.Serialize.
func DeserializeBlock(data []byte) (*Block, error) {
	r := codec.NewReader(data)
	b := &Block{}

	ts, err := r.GetInt64()
	if err != nil {
		return nil, fmt.Errorf("chain: decode block timestamp: %w", err)
	}
	b.Header.Timestamp = ts

	txSetHash, err := r.GetString()
	if err != nil {
		return nil, fmt.Errorf("chain: decode block tx set hash: %w", err)
	}
	b.Header.TxSetHash = txSetHash

	prevHash, err := r.GetString()
	if err != nil {
		return nil, fmt.Errorf("chain: decode block prev hash: %w", err)
	}
	b.Header.PrevBlockHash = prevHash

	hash, err := r.GetString()
	if err != nil {
		return nil, fmt.Errorf("chain: decode block hash: %w", err)
	}
	b.Hash = hash

	numTxs, err := r.GetInt32()
	if err != nil {
		return nil, fmt.Errorf("chain: decode block tx count: %w", err)
	}
	b.Transactions = make([]*Transaction, numTxs)
	for i := range b.Transactions {
		txBytes, err := r.GetBytes()
		if err != nil {
			return nil, fmt.Errorf("chain: decode block tx %d: %w", i, err)
		}
		tx, err := DeserializeTransaction(txBytes)
		if err != nil {
			return nil, fmt.Errorf("chain: decode block tx %d: %w", i, err)
		}
		b.Transactions[i] = tx
	}

	nonce, err := r.GetInt64()
	if err != nil {
		return nil, fmt.Errorf("chain: decode block nonce: %w", err)
	}
	b.Nonce = nonce

	height, err := r.GetInt64()
	if err != nil {
		return nil, fmt.Errorf("chain: decode block height: %w", err)
	}
	b.Height = int(height)

	return b, nil
}
