// Package merkle builds the withdrawal tree committed to by each output.
//
// Leaves are sorted before the tree is built and every node hashes its two
// children smallest first, so proofs carry no direction bits. A node left
// without a sibling at the end of a level moves up unchanged.
package merkle

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"

	"golang.org/x/crypto/sha3"
)

var ErrUnknownWithdrawal = errors.New("withdrawal is not part of the tree")

// WithdrawStorage is an immutable tree over one output's withdrawals.
type WithdrawStorage struct {
	layers [][][]byte
	index  map[string]int
}

func NewWithdrawStorage(withdrawals []Withdrawal) (*WithdrawStorage, error) {
	leaves := make([][]byte, 0, len(withdrawals))
	for _, w := range withdrawals {
		leaf, err := LeafHash(w)
		if err != nil {
			return nil, fmt.Errorf("failed to hash withdrawal %d: %w", w.Sequence, err)
		}
		leaves = append(leaves, leaf)
	}
	slices.SortFunc(leaves, bytes.Compare)

	s := &WithdrawStorage{
		layers: [][][]byte{leaves},
		index:  make(map[string]int, len(leaves)),
	}
	for i, leaf := range leaves {
		key := hex.EncodeToString(leaf)
		if _, ok := s.index[key]; !ok {
			s.index[key] = i
		}
	}

	for layer := leaves; len(layer) > 1; {
		next := make([][]byte, 0, (len(layer)+1)/2)
		for i := 0; i < len(layer); i += 2 {
			if i+1 == len(layer) {
				next = append(next, layer[i])
				continue
			}
			next = append(next, hashPair(layer[i], layer[i+1]))
		}
		s.layers = append(s.layers, next)
		layer = next
	}

	return s, nil
}

// Root returns the tree root. The root of an empty tree is sha3_256 of no input.
func (s *WithdrawStorage) Root() []byte {
	top := s.layers[len(s.layers)-1]
	if len(top) == 0 {
		h := sha3.Sum256(nil)
		return h[:]
	}
	return slices.Clone(top[0])
}

func (s *WithdrawStorage) Len() int {
	return len(s.layers[0])
}

// Proof returns the sibling hashes from the withdrawal's leaf up to the root.
func (s *WithdrawStorage) Proof(w Withdrawal) ([][]byte, error) {
	leaf, err := LeafHash(w)
	if err != nil {
		return nil, err
	}
	idx, ok := s.index[hex.EncodeToString(leaf)]
	if !ok {
		return nil, ErrUnknownWithdrawal
	}

	proof := make([][]byte, 0, len(s.layers)-1)
	for _, layer := range s.layers[:len(s.layers)-1] {
		if sibling := idx ^ 1; sibling < len(layer) {
			proof = append(proof, slices.Clone(layer[sibling]))
		}
		idx /= 2
	}
	return proof, nil
}

// Verify checks proof for w against this tree's root.
func (s *WithdrawStorage) Verify(proof [][]byte, w Withdrawal) bool {
	leaf, err := LeafHash(w)
	if err != nil {
		return false
	}
	return VerifyProof(s.Root(), leaf, proof)
}

// VerifyProof folds proof into leaf and compares the result with root.
func VerifyProof(root, leaf []byte, proof [][]byte) bool {
	h := leaf
	for _, sibling := range proof {
		h = hashPair(h, sibling)
	}
	return bytes.Equal(h, root)
}

func hashPair(a, b []byte) []byte {
	if bytes.Compare(a, b) > 0 {
		a, b = b, a
	}
	buf := make([]byte, 0, len(a)+len(b))
	buf = append(buf, a...)
	buf = append(buf, b...)
	h := sha3.Sum256(buf)
	return h[:]
}
