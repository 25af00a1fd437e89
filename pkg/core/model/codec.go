package model

import (
	"encoding/json"
	"fmt"
)

// wireEvent is the JSON envelope exchanged between devices:
// {eventId, origin, ts, kind, payload}.
type wireEvent struct {
	EventID string          `json:"eventId"`
	Origin  string          `json:"origin"`
	TS      uint64          `json:"ts"`
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeEvent serializes an event into the wire envelope.
func EncodeEvent(ev Event) ([]byte, error) {
	if ev.Payload == nil {
		return nil, fmt.Errorf("event %s has no payload", ev.ID)
	}
	if ev.Kind != ev.Payload.EventKind() {
		return nil, fmt.Errorf("event %s kind %q does not match payload kind %q", ev.ID, ev.Kind, ev.Payload.EventKind())
	}
	raw, err := json.Marshal(ev.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", ev.Kind, err)
	}
	data, err := json.Marshal(wireEvent{
		EventID: ev.ID,
		Origin:  ev.Origin,
		TS:      ev.TS,
		Kind:    ev.Kind,
		Payload: raw,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event envelope: %w", err)
	}
	return data, nil
}

// DecodeEvent parses a wire envelope back into an event. Unknown kinds and
// malformed payloads are errors so that callers can skip the event with a
// warning rather than fold garbage.
func DecodeEvent(data []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return Event{}, fmt.Errorf("failed to parse event envelope: %w", err)
	}
	if w.EventID == "" {
		return Event{}, fmt.Errorf("event envelope missing eventId")
	}
	if w.Origin == "" {
		return Event{}, fmt.Errorf("event %s missing origin", w.EventID)
	}

	payload, err := decodePayload(w.Kind, w.Payload)
	if err != nil {
		return Event{}, fmt.Errorf("event %s: %w", w.EventID, err)
	}

	return Event{
		ID:      w.EventID,
		Origin:  w.Origin,
		TS:      w.TS,
		Kind:    w.Kind,
		Payload: payload,
	}, nil
}

func decodePayload(kind Kind, raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("missing %s payload", kind)
	}

	unmarshal := func(dst Payload) (Payload, error) {
		if err := json.Unmarshal(raw, dst); err != nil {
			return nil, fmt.Errorf("failed to parse %s payload: %w", kind, err)
		}
		return dst, nil
	}

	switch kind {
	case KindClaim:
		p := &ClaimPayload{}
		if _, err := unmarshal(p); err != nil {
			return nil, err
		}
		if p.ClaimID == "" || p.ShiftID == "" {
			return nil, fmt.Errorf("claim payload missing claimId or shiftId")
		}
		return *p, nil
	case KindCheckIn:
		p := &CheckInPayload{}
		if _, err := unmarshal(p); err != nil {
			return nil, err
		}
		if p.ClaimID == "" {
			return nil, fmt.Errorf("check_in payload missing claimId")
		}
		return *p, nil
	case KindComplete:
		p := &CompletePayload{}
		if _, err := unmarshal(p); err != nil {
			return nil, err
		}
		if p.ClaimID == "" {
			return nil, fmt.Errorf("complete payload missing claimId")
		}
		return *p, nil
	case KindNoShow:
		p := &NoShowPayload{}
		if _, err := unmarshal(p); err != nil {
			return nil, err
		}
		if p.ClaimID == "" {
			return nil, fmt.Errorf("no_show payload missing claimId")
		}
		return *p, nil
	case KindCancelClaim:
		p := &CancelClaimPayload{}
		if _, err := unmarshal(p); err != nil {
			return nil, err
		}
		if p.ClaimID == "" {
			return nil, fmt.Errorf("cancel_claim payload missing claimId")
		}
		return *p, nil
	case KindProposeTrade:
		p := &ProposeTradePayload{}
		if _, err := unmarshal(p); err != nil {
			return nil, err
		}
		if p.TradeID == "" || p.SourceClaimID == "" || p.ReceiverID == "" {
			return nil, fmt.Errorf("propose_trade payload missing tradeId, sourceClaimId or receiverId")
		}
		return *p, nil
	case KindApproveTrade:
		p := &ApproveTradePayload{}
		if _, err := unmarshal(p); err != nil {
			return nil, err
		}
		if p.TradeID == "" || !p.Role.IsValid() {
			return nil, fmt.Errorf("approve_trade payload missing tradeId or has invalid role %q", p.Role)
		}
		return *p, nil
	case KindRejectTrade:
		p := &RejectTradePayload{}
		if _, err := unmarshal(p); err != nil {
			return nil, err
		}
		if p.TradeID == "" || !p.Role.IsValid() {
			return nil, fmt.Errorf("reject_trade payload missing tradeId or has invalid role %q", p.Role)
		}
		return *p, nil
	case KindCancelTrade:
		p := &CancelTradePayload{}
		if _, err := unmarshal(p); err != nil {
			return nil, err
		}
		if p.TradeID == "" {
			return nil, fmt.Errorf("cancel_trade payload missing tradeId")
		}
		return *p, nil
	case KindTradeFinalized:
		p := &TradeFinalizedPayload{}
		if _, err := unmarshal(p); err != nil {
			return nil, err
		}
		if p.TradeID == "" || p.SourceClaimID == "" || p.NewClaimID == "" {
			return nil, fmt.Errorf("trade_finalized payload missing tradeId, sourceClaimId or newClaimId")
		}
		return *p, nil
	default:
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}
}
