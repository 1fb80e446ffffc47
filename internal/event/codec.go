package event

import (
	"encoding/json"
	"fmt"
)

// UnmarshalPayload decodes a stored envelope payload back into its typed
// event. Payloads are written with json.Marshal on the typed struct, so this
// is the symmetric inverse used during replay.
func UnmarshalPayload(eventType string, data []byte) (Event, error) {
	var evt Event
	switch eventType {
	case "PositionMinted":
		evt = &PositionMinted{}
	case "PositionBurned":
		evt = &PositionBurned{}
	case "Staked":
		evt = &Staked{}
	case "Withdrawn":
		evt = &Withdrawn{}
	case "RewardClaimed":
		evt = &RewardClaimed{}
	case "Exited":
		evt = &Exited{}
	case "LendBatch":
		evt = &LendBatch{}
	case "WithdrawBatch":
		evt = &WithdrawBatch{}
	case "DebtIssued":
		evt = &DebtIssued{}
	case "DebtRepaid":
		evt = &DebtRepaid{}
	case "RewardRateUpdate":
		evt = &RewardRateUpdate{}
	case "IncentiveCreated":
		evt = &IncentiveCreated{}
	case "IncentiveEntered":
		evt = &IncentiveEntered{}
	case "IncentiveExited":
		evt = &IncentiveExited{}
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	if err := json.Unmarshal(data, evt); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", eventType, err)
	}
	return evt, nil
}
