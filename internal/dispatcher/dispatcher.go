// Package dispatcher maps inbound protocol messages to registry reads
// and writes and to the outbound messages they produce.
package dispatcher

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/africauniverse/gameserver/internal/game/registry"
	"github.com/africauniverse/gameserver/internal/game/shop"
	"github.com/africauniverse/gameserver/internal/observability"
	"github.com/africauniverse/gameserver/internal/protocol"
)

// Dispatcher handles one inbound message at a time on behalf of a
// session. All delivery, to the caller and to relay targets alike, goes
// through the registry's outbound channels, so a Dispatcher is safe to
// share across sessions.
type Dispatcher struct {
	registry *registry.Registry
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// New creates a Dispatcher.
//
// Precondition: reg, logger, and metrics must be non-nil.
func New(reg *registry.Registry, logger *zap.Logger, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		registry: reg,
		logger:   logger,
		metrics:  metrics,
	}
}

// Dispatch processes one decoded inbound message for the given session.
// Failures are scoped to the message: a missing record is a silent
// no-op, and an undeliverable response is logged and dropped.
func (d *Dispatcher) Dispatch(sessionID uuid.UUID, in protocol.Inbound) {
	d.metrics.InboundMessages.WithLabelValues(messageType(in)).Inc()

	switch msg := in.(type) {
	case protocol.GetProfile:
		d.handleGetProfile(sessionID)
	case protocol.ListPlayers:
		d.handleListPlayers(sessionID)
	case protocol.Purchase:
		d.handlePurchase(sessionID, msg)
	case protocol.Challenge:
		d.handleChallenge(sessionID, msg)
	default:
		d.logger.Warn("unhandled inbound message",
			zap.String("session", sessionID.String()),
			zap.String("type", messageType(in)),
		)
	}
}

// handleGetProfile sends the caller their own profile. A caller with no
// registry record gets nothing back.
func (d *Dispatcher) handleGetProfile(sessionID uuid.UUID) {
	rec, ok := d.registry.Get(sessionID)
	if !ok {
		return
	}

	d.push(sessionID, protocol.Profile{
		Username:    rec.Username,
		PvPLevel:    rec.PvPLevel,
		Properties:  rec.Properties,
		DailyReward: shop.DailyReward(rec.Properties),
	})
}

// handleListPlayers sends the caller every other connected player.
func (d *Dispatcher) handleListPlayers(sessionID uuid.UUID) {
	others := d.registry.ListOthers(sessionID)

	players := make([]protocol.PlayerInfo, 0, len(others))
	for _, s := range others {
		players = append(players, protocol.PlayerInfo{
			ID:       s.ID,
			Username: s.Username,
			PvPLevel: s.PvPLevel,
		})
	}

	d.push(sessionID, protocol.PlayerList{Players: players})
}

// handlePurchase appends the purchased property to the caller's record
// and acknowledges with the submitted item id. Purchases are simulated:
// there is no balance or inventory validation.
func (d *Dispatcher) handlePurchase(sessionID uuid.UUID, msg protocol.Purchase) {
	prop := shop.MintProperty(msg.Category)

	d.registry.Mutate(sessionID, func(s *registry.State) {
		s.Properties = append(s.Properties, prop)
	})

	// The ack echoes the item id verbatim, whether or not a record
	// existed to receive the property.
	d.push(sessionID, protocol.PurchaseAck{ItemID: msg.ItemID})
}

// handleChallenge relays a challenge to the target player's session and
// confirms delivery to the caller. A missing target, or a target with
// no live outbound channel, drops the challenge with no response to
// either party.
func (d *Dispatcher) handleChallenge(sessionID uuid.UUID, msg protocol.Challenge) {
	target, ok := d.registry.Get(msg.Target)
	if !ok {
		return
	}
	out, ok := d.registry.Outbound(msg.Target)
	if !ok {
		return
	}

	challengerName := "Anonymous"
	if rec, ok := d.registry.Get(sessionID); ok {
		challengerName = rec.Username
	}

	d.deliver(out, protocol.ChallengeRequest{
		Challenger:     sessionID,
		ChallengerName: challengerName,
		Stake:          msg.Stake,
	})

	d.push(sessionID, protocol.ChallengeResponse{
		Message: fmt.Sprintf("Challenge sent to %s", target.Username),
	})
}

// push encodes msg and delivers it to the session's own outbound
// channel. A session that has not attached a channel, or has already
// torn down, loses the message.
func (d *Dispatcher) push(sessionID uuid.UUID, msg protocol.Outbound) {
	out, ok := d.registry.Outbound(sessionID)
	if !ok {
		d.metrics.DroppedOutbound.Inc()
		return
	}
	d.deliver(out, msg)
}

// deliver encodes msg onto a specific outbound channel. Encode and push
// failures are logged and the message dropped; the session lives on.
func (d *Dispatcher) deliver(out *registry.Outbound, msg protocol.Outbound) {
	frame, err := protocol.Encode(msg)
	if err != nil {
		d.metrics.DroppedOutbound.Inc()
		d.logger.Error("encoding outbound message",
			zap.String("target", out.ID()),
			zap.Error(err),
		)
		return
	}

	if err := out.Push(frame); err != nil {
		d.metrics.DroppedOutbound.Inc()
		d.logger.Warn("dropping outbound message",
			zap.String("target", out.ID()),
			zap.Error(err),
		)
	}
}

func messageType(in protocol.Inbound) string {
	switch in.(type) {
	case protocol.GetProfile:
		return "getProfile"
	case protocol.ListPlayers:
		return "listPlayers"
	case protocol.Purchase:
		return "purchase"
	case protocol.Challenge:
		return "challenge"
	default:
		return "unknown"
	}
}
