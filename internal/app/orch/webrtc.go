package orch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dkeye/Parley/internal/app"
	"github.com/dkeye/Parley/internal/core"
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) handleOffer(_ context.Context, from app.Connection, raw json.RawMessage) error {
	var p descriptionPayload
	if err := o.decode(raw, &p); err != nil {
		return err
	}
	if err := checkDescription(p.Offer, webrtc.SDPTypeOffer); err != nil {
		return err
	}
	return o.relaySignal(from, core.KindWebRTCOffer, p.RemoteUserID, relayedSignal{Offer: p.Offer, RoomID: p.RoomID})
}

func (o *Orchestrator) handleAnswer(_ context.Context, from app.Connection, raw json.RawMessage) error {
	var p descriptionPayload
	if err := o.decode(raw, &p); err != nil {
		return err
	}
	if err := checkDescription(p.Answer, webrtc.SDPTypeAnswer, webrtc.SDPTypePranswer); err != nil {
		return err
	}
	return o.relaySignal(from, core.KindWebRTCAnswer, p.RemoteUserID, relayedSignal{Answer: p.Answer, RoomID: p.RoomID})
}

func (o *Orchestrator) handleCandidate(_ context.Context, from app.Connection, raw json.RawMessage) error {
	var p candidatePayload
	if err := o.decode(raw, &p); err != nil {
		return err
	}
	// an empty candidate string marks end-of-candidates and is relayed
	return o.relaySignal(from, core.KindICECandidate, p.RemoteUserID, relayedSignal{Candidate: p.Candidate, RoomID: p.RoomID})
}

func (o *Orchestrator) relaySignal(from app.Connection, kind core.Kind, remote string, msg relayedSignal) error {
	scope, err := o.signalScope(remote, msg.RoomID)
	if err != nil {
		return err
	}
	msg.FromUserID = from.UserID()
	msg.FromConnectionID = from.ID
	sent := o.deliver(from.ID, scope, kind, msg)
	if scope.Kind == core.ScopePeer && sent == 0 {
		return fmt.Errorf("%w: peer %s unreachable", core.ErrUnknownConnection, remote)
	}
	return nil
}

// checkDescription rejects descriptors pion cannot parse; the core never
// interprets them further.
func checkDescription(desc *webrtc.SessionDescription, want ...webrtc.SDPType) error {
	if desc == nil || desc.SDP == "" {
		return fmt.Errorf("%w: missing session description", core.ErrInvalidEventShape)
	}
	ok := false
	for _, t := range want {
		if desc.Type == t {
			ok = true
		}
	}
	if !ok {
		return fmt.Errorf("%w: unexpected sdp type %s", core.ErrInvalidEventShape, desc.Type)
	}
	parsed, err := desc.Unmarshal()
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidEventShape, err)
	}
	log.Debug().Str("module", "orch").Str("sdp_type", desc.Type.String()).Strs("media", mediaKinds(parsed)).Msg("session description accepted")
	return nil
}

func mediaKinds(sd *sdp.SessionDescription) []string {
	out := make([]string, 0, len(sd.MediaDescriptions))
	for _, md := range sd.MediaDescriptions {
		out = append(out, md.MediaName.Media)
	}
	return out
}
