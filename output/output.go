// Package output computes output commitments the way the L1 bridge verifies them.
package output

import (
	"encoding/base64"
	"encoding/binary"
	"time"

	"github.com/lightlink-network/ll-opinit-bots/database/models"
	"golang.org/x/crypto/sha3"
)

// Version is sha3_256 of the output index in unsigned varint form.
func Version(index uint64) []byte {
	h := sha3.Sum256(binary.AppendUvarint(nil, index))
	return h[:]
}

// ComputeOutputRoot returns sha3_256(version || stateRoot || merkleRoot || blockHash).
func ComputeOutputRoot(index uint64, stateRoot, merkleRoot, blockHash []byte) []byte {
	buf := make([]byte, 0, 32+len(stateRoot)+len(merkleRoot)+len(blockHash))
	buf = append(buf, Version(index)...)
	buf = append(buf, stateRoot...)
	buf = append(buf, merkleRoot...)
	buf = append(buf, blockHash...)
	h := sha3.Sum256(buf)
	return h[:]
}

// Build assembles the output record for blocks [start, end].
func Build(index uint64, start, end int64, stateRoot, blockHash, merkleRoot []byte) models.Output {
	return models.Output{
		OutputIndex:      index,
		OutputRoot:       encode(ComputeOutputRoot(index, stateRoot, merkleRoot, blockHash)),
		StateRoot:        encode(stateRoot),
		MerkleRoot:       encode(merkleRoot),
		LastBlockHash:    encode(blockHash),
		StartBlockNumber: start,
		EndBlockNumber:   end,
	}
}

func encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

const DefaultSubmissionThreshold = 0.66

// Submitted is the last output accepted on L1.
type Submitted struct {
	OutputIndex uint64
	L1BlockTime time.Time
}

// Gate decides when the L2 side may cut a new output.
type Gate struct {
	Threshold float64
	Now       func() time.Time
}

func NewGate(threshold float64) Gate {
	if threshold <= 0 {
		threshold = DefaultSubmissionThreshold
	}
	return Gate{Threshold: threshold, Now: time.Now}
}

// Ready reports whether a new output can be cut. The first output is always
// allowed. After that the previous output must have landed on L1 and a
// threshold fraction of the submission interval must have passed since.
func (g Gate) Ready(last *models.Output, submitted *Submitted, interval time.Duration) bool {
	if last == nil || submitted == nil {
		return true
	}
	if submitted.OutputIndex != last.OutputIndex {
		return false
	}

	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	wait := time.Duration(float64(interval) * g.Threshold)
	return !now().Before(submitted.L1BlockTime.Add(wait.Truncate(time.Second)))
}
