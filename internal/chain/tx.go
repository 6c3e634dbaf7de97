package chain

import (
	"errors"
	"fmt"

	"github.com/nodeforge/bitledger/internal/codec"
	"github.com/nodeforge/bitledger/internal/wallet"
)

// Subsidy is the fixed block reward paid to a coinbase output.
const Subsidy = 10

// ErrInsufficientFunds is returned by NewTransaction when the sender's
// spendable outputs fall short of the requested amount.
var ErrInsufficientFunds = errors.New("chain: insufficient funds")

// TransactionFinder looks up a previously committed transaction by id. The
// chain store implements it; signing and verification need it to recover
// the locking hash of a spent output.
type TransactionFinder interface {
	FindTransaction(id []byte) (*Transaction, error)
}

// SpendableOutputsFinder finds enough of an address's unspent outputs to
// cover amount. The UTXO index implements it.
type SpendableOutputsFinder interface {
	FindSpendableOutputs(pubKeyHash []byte, amount int) (int, map[string][]int, error)
}

// Hash computes tx's id: SHA-256 of the canonical serialization of tx with
// ID cleared.
func (tx *Transaction) Hash() []byte {
	txCopy := *tx
	txCopy.ID = []byte{}
	return codec.SHA256(txCopy.Serialize())
}

// SetID assigns tx.ID = tx.Hash().
func (tx *Transaction) SetID() {
	tx.ID = tx.Hash()
}

// NewCoinbaseTx builds the coinbase transaction paying the fixed subsidy to
// address: one input with an empty public key, one output of value Subsidy.
func NewCoinbaseTx(address string) (*Transaction, error) {
	out, err := NewOutput(Subsidy, address)
	if err != nil {
		return nil, fmt.Errorf("chain: coinbase output: %w", err)
	}
	tx := &Transaction{
		Inputs:  []TxInput{{PrevTxID: []byte{}, Vout: -1}},
		Outputs: []TxOutput{out},
	}
	tx.SetID()
	return tx, nil
}

// TrimmedCopy returns a copy of tx with every input's signature and public
// key cleared, the starting point for the signing/verification digest.
func (tx *Transaction) TrimmedCopy() *Transaction {
	inputs := make([]TxInput, len(tx.Inputs))
	for i, in := range tx.Inputs {
		inputs[i] = TxInput{PrevTxID: in.PrevTxID, Vout: in.Vout}
	}
	outputs := make([]TxOutput, len(tx.Outputs))
	copy(outputs, tx.Outputs)
	return &Transaction{ID: tx.ID, Inputs: inputs, Outputs: outputs}
}

// Sign signs every non-coinbase input of tx with privateKey (a PKCS#8
// blob), consulting finder to recover each referenced output's locking
// hash. See spec §4.2 for the exact trimmed-copy digest construction.
func (tx *Transaction) Sign(privateKey []byte, finder TransactionFinder) error {
	if tx.IsCoinbase() {
		return nil
	}

	trimmed := tx.TrimmedCopy()
	for i, in := range tx.Inputs {
		prevTx, err := finder.FindTransaction(in.PrevTxID)
		if err != nil {
			return fmt.Errorf("chain: sign: referenced transaction missing: %w", err)
		}
		if in.Vout < 0 || in.Vout >= len(prevTx.Outputs) {
			return fmt.Errorf("chain: sign: input %d references out-of-range output %d", i, in.Vout)
		}

		trimmed.Inputs[i].PubKey = prevTx.Outputs[in.Vout].PubKeyHash
		trimmed.Inputs[i].Signature = nil
		trimmed.ID = trimmed.Hash()
		trimmed.Inputs[i].PubKey = nil

		sig, err := codec.Sign(privateKey, trimmed.ID)
		if err != nil {
			return fmt.Errorf("chain: sign input %d: %w", i, err)
		}
		tx.Inputs[i].Signature = sig
	}
	return nil
}

// Verify checks every non-coinbase input's signature against the locking
// hash of the output it spends, reconstructed via finder. A coinbase
// transaction always verifies.
func (tx *Transaction) Verify(finder TransactionFinder) bool {
	if tx.IsCoinbase() {
		return true
	}

	trimmed := tx.TrimmedCopy()
	for i, in := range tx.Inputs {
		prevTx, err := finder.FindTransaction(in.PrevTxID)
		if err != nil {
			return false
		}
		if in.Vout < 0 || in.Vout >= len(prevTx.Outputs) {
			return false
		}

		trimmed.Inputs[i].PubKey = prevTx.Outputs[in.Vout].PubKeyHash
		trimmed.Inputs[i].Signature = nil
		trimmed.ID = trimmed.Hash()
		trimmed.Inputs[i].PubKey = nil

		if !codec.Verify(in.PubKey, in.Signature, trimmed.ID) {
			return false
		}
	}
	return true
}

// NewTransaction builds and signs a transaction spending amount from the
// wallet w (sender) to the recipient address, using utxo to select
// spendable outputs and finder to recover their locking hashes for signing.
func NewTransaction(w *wallet.Wallet, to string, amount int, utxo SpendableOutputsFinder, finder TransactionFinder) (*Transaction, error) {
	pubKeyHash := w.PublicKeyHash()

	accumulated, validOutputs, err := utxo.FindSpendableOutputs(pubKeyHash, amount)
	if err != nil {
		return nil, fmt.Errorf("chain: find spendable outputs: %w", err)
	}
	if accumulated < amount {
		return nil, ErrInsufficientFunds
	}

	var inputs []TxInput
	for txIDHex, outs := range validOutputs {
		txID, err := codec.HexDecode(txIDHex)
		if err != nil {
			return nil, fmt.Errorf("chain: decode utxo tx id: %w", err)
		}
		for _, vout := range outs {
			inputs = append(inputs, TxInput{PrevTxID: txID, Vout: vout, PubKey: w.PublicKey})
		}
	}

	payTo, err := NewOutput(int32(amount), to)
	if err != nil {
		return nil, fmt.Errorf("chain: payment output: %w", err)
	}
	outputs := []TxOutput{payTo}
	if accumulated > amount {
		change, err := NewOutput(int32(accumulated-amount), w.Address())
		if err != nil {
			return nil, fmt.Errorf("chain: change output: %w", err)
		}
		outputs = append(outputs, change)
	}

	tx := &Transaction{Inputs: inputs, Outputs: outputs}
	tx.SetID()

	if err := tx.Sign(w.PrivateKey, finder); err != nil {
		return nil, err
	}
	return tx, nil
}
