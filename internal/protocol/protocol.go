// Package protocol defines the JSON message schema exchanged between a
// client and its session. Every frame is a JSON object carrying a
// "type" discriminator; the remaining fields depend on the type.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/africauniverse/gameserver/internal/game/registry"
)

// ErrUnknownType reports an inbound frame whose type discriminator is
// missing or not part of the protocol.
var ErrUnknownType = errors.New("unknown message type")

// Inbound is a decoded client-to-server message.
type Inbound interface {
	inbound()
}

// GetProfile requests the caller's own profile.
type GetProfile struct{}

// ListPlayers requests the list of other connected players.
type ListPlayers struct{}

// Purchase simulates buying a marketplace item.
type Purchase struct {
	ItemID   string `json:"item_id"`
	Category string `json:"category"`
}

// Challenge asks the server to relay a PvP challenge to another player.
type Challenge struct {
	Target uuid.UUID `json:"target"`
	Stake  bool      `json:"stake"`
}

func (GetProfile) inbound()  {}
func (ListPlayers) inbound() {}
func (Purchase) inbound()    {}
func (Challenge) inbound()   {}

type envelope struct {
	Type string `json:"type"`
}

// Decode parses one inbound frame.
//
// Postcondition: Returns a typed Inbound message, or an error when the
// frame is not valid JSON, has no recognised type, or its fields do not
// match the schema for that type.
func Decode(frame []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("decoding frame envelope: %w", err)
	}

	switch env.Type {
	case "getProfile":
		return GetProfile{}, nil
	case "listPlayers":
		return ListPlayers{}, nil
	case "purchase":
		var msg Purchase
		if err := json.Unmarshal(frame, &msg); err != nil {
			return nil, fmt.Errorf("decoding purchase: %w", err)
		}
		return msg, nil
	case "challenge":
		var msg Challenge
		if err := json.Unmarshal(frame, &msg); err != nil {
			return nil, fmt.Errorf("decoding challenge: %w", err)
		}
		return msg, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

// Outbound is a server-to-client message. Encode injects the type
// discriminator so payload structs only declare their own fields.
type Outbound interface {
	outboundType() string
}

// Profile is the response to a getProfile request.
type Profile struct {
	Username    string              `json:"username"`
	PvPLevel    int                 `json:"pvp_level"`
	Properties  []registry.Property `json:"properties"`
	DailyReward int                 `json:"daily_reward"`
}

// PlayerInfo is one row in a PlayerList.
type PlayerInfo struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	PvPLevel int       `json:"pvp_level"`
}

// PlayerList is the response to a listPlayers request.
type PlayerList struct {
	Players []PlayerInfo `json:"players"`
}

// PurchaseAck acknowledges a purchase, echoing the submitted item id.
type PurchaseAck struct {
	ItemID string `json:"item_id"`
}

// ChallengeRequest is relayed to the challenged player.
type ChallengeRequest struct {
	Challenger     uuid.UUID `json:"challenger"`
	ChallengerName string    `json:"challenger_name"`
	Stake          bool      `json:"stake"`
}

// ChallengeResponse confirms to the challenger that the request was
// delivered.
type ChallengeResponse struct {
	Message string `json:"message"`
}

func (Profile) outboundType() string           { return "profile" }
func (PlayerList) outboundType() string        { return "playerList" }
func (PurchaseAck) outboundType() string       { return "purchaseAck" }
func (ChallengeRequest) outboundType() string  { return "challengeRequest" }
func (ChallengeResponse) outboundType() string { return "challengeResponse" }

// Encode serialises an outbound message with its type discriminator.
//
// Postcondition: Returns a JSON object containing "type" plus the
// message's own fields, or a non-nil error.
func Encode(msg Outbound) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", msg.outboundType(), err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("reshaping %s payload: %w", msg.outboundType(), err)
	}

	tag, err := json.Marshal(msg.outboundType())
	if err != nil {
		return nil, fmt.Errorf("encoding %s tag: %w", msg.outboundType(), err)
	}
	fields["type"] = tag

	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", msg.outboundType(), err)
	}
	return out, nil
}
