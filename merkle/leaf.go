package merkle

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"golang.org/x/crypto/sha3"
)

var separator = []byte("|")

// Withdrawal is the subset of an L2 withdrawal committed to by the tree.
type Withdrawal struct {
	BridgeID uint64
	Sequence uint64
	Sender   string
	Receiver string
	L1Denom  string
	Amount   uint64
}

// LeafHash returns
// sha3_256(bridgeId || sequence || sender || '|' || receiver || '|' || l1Denom || '|' || amount)
// with integers encoded as 8 byte big endian.
func LeafHash(w Withdrawal) ([]byte, error) {
	sender, err := AddressBytes(w.Sender)
	if err != nil {
		return nil, fmt.Errorf("invalid sender: %w", err)
	}
	receiver, err := AddressBytes(w.Receiver)
	if err != nil {
		return nil, fmt.Errorf("invalid receiver: %w", err)
	}

	buf := make([]byte, 0, 16+len(sender)+len(receiver)+len(w.L1Denom)+11)
	buf = binary.BigEndian.AppendUint64(buf, w.BridgeID)
	buf = binary.BigEndian.AppendUint64(buf, w.Sequence)
	buf = append(buf, sender...)
	buf = append(buf, separator...)
	buf = append(buf, receiver...)
	buf = append(buf, separator...)
	buf = append(buf, w.L1Denom...)
	buf = append(buf, separator...)
	buf = binary.BigEndian.AppendUint64(buf, w.Amount)

	h := sha3.Sum256(buf)
	return h[:], nil
}

// AddressBytes decodes an address into its raw bytes. Hex strings (with or
// without 0x) are decoded directly, anything else is treated as bech32.
func AddressBytes(addr string) ([]byte, error) {
	if b, err := hex.DecodeString(strings.TrimPrefix(addr, "0x")); err == nil && len(b) > 0 {
		return b, nil
	}

	_, data, err := bech32.DecodeNoLimit(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode address %q: %w", addr, err)
	}
	b, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("failed to convert address %q: %w", addr, err)
	}
	return b, nil
}
