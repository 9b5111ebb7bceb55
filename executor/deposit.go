package executor

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/lightlink-network/ll-opinit-bots/database/models"
	"github.com/lightlink-network/ll-opinit-bots/monitor"
	"github.com/lightlink-network/ll-opinit-bots/types"
)

// awaitingBroadcast is the error of an unconfirmed row written before its
// first broadcast.
const awaitingBroadcast = "awaiting broadcast"

// parseDeposit reads an initiate_token_deposit event. ok is false when the
// event belongs to another bridge.
func parseDeposit(bridgeID uint64, ev types.Event, height int64) (d models.Deposit, ok bool, err error) {
	attrs := monitor.AttrMap(ev)

	id, err := strconv.ParseUint(attrs["bridge_id"], 10, 64)
	if err != nil {
		return d, false, fmt.Errorf("invalid bridge_id %q: %w", attrs["bridge_id"], err)
	}
	if id != bridgeID {
		return d, false, nil
	}

	sequence, err := strconv.ParseUint(attrs["l1_sequence"], 10, 64)
	if err != nil {
		return d, false, fmt.Errorf("invalid l1_sequence %q: %w", attrs["l1_sequence"], err)
	}

	data := ""
	if raw := strings.TrimPrefix(attrs["data"], "0x"); raw != "" {
		b, err := hex.DecodeString(raw)
		if err != nil {
			return d, false, fmt.Errorf("invalid deposit data: %w", err)
		}
		data = base64.StdEncoding.EncodeToString(b)
	}

	return models.Deposit{
		BridgeID: id,
		Sequence: sequence,
		Sender:   attrs["from"],
		Receiver: attrs["to"],
		L1Denom:  attrs["l1_denom"],
		L2Denom:  attrs["l2_denom"],
		Amount:   attrs["amount"],
		Data:     data,
		L1Height: height,
	}, true, nil
}

func unconfirmed(d models.Deposit, reason string) models.UnconfirmedDeposit {
	return models.UnconfirmedDeposit{
		BridgeID: d.BridgeID,
		Sequence: d.Sequence,
		Sender:   d.Sender,
		Receiver: d.Receiver,
		L1Denom:  d.L1Denom,
		L2Denom:  d.L2Denom,
		Amount:   d.Amount,
		Data:     d.Data,
		L1Height: d.L1Height,
		Error:    reason,
	}
}

func finalizeMsg(sender string, d models.UnconfirmedDeposit) (types.MsgFinalizeTokenDeposit, error) {
	var data []byte
	if d.Data != "" {
		b, err := base64.StdEncoding.DecodeString(d.Data)
		if err != nil {
			return types.MsgFinalizeTokenDeposit{}, fmt.Errorf("invalid data for deposit %d: %w", d.Sequence, err)
		}
		data = b
	}

	return types.MsgFinalizeTokenDeposit{
		Sender:    sender,
		From:      d.Sender,
		To:        d.Receiver,
		Amount:    types.Coin{Denom: d.L2Denom, Amount: d.Amount},
		Sequence:  d.Sequence,
		Height:    uint64(d.L1Height),
		BaseDenom: d.L1Denom,
		Data:      data,
	}, nil
}

func depositKey(bridgeID, sequence uint64) string {
	return fmt.Sprintf("deposit-%d-%d", bridgeID, sequence)
}
