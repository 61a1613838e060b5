package openai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"

	"github.com/AltairaLabs/mediasession/audio"
	mserrors "github.com/AltairaLabs/mediasession/errors"
	"github.com/AltairaLabs/mediasession/logger"
)

// RTP constants
const (
	frameDuration  = 20 * time.Millisecond
	rtpBufferSize  = 1500
	opusFmtpLine   = "minptime=10;useinbandfec=1"
	payloadPCMU    = 0
	payloadPCMA    = 8
	payloadOpus    = 111
	maxAnswerBytes = 1 << 20
)

// rtpCodecParameters describes codec for SDP negotiation.
func rtpCodecParameters(codec audio.Codec) (webrtc.RTPCodecParameters, error) {
	switch codec.Name() {
	case audio.CodecPCMU:
		return webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:  webrtc.MimeTypePCMU,
				ClockRate: uint32(codec.ClockRate()),
				Channels:  1,
			},
			PayloadType: payloadPCMU,
		}, nil
	case audio.CodecPCMA:
		return webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:  webrtc.MimeTypePCMA,
				ClockRate: uint32(codec.ClockRate()),
				Channels:  1,
			},
			PayloadType: payloadPCMA,
		}, nil
	case audio.CodecOpus:
		return webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:    webrtc.MimeTypeOpus,
				ClockRate:   uint32(codec.ClockRate()),
				Channels:    2,
				SDPFmtpLine: opusFmtpLine,
			},
			PayloadType: payloadOpus,
		}, nil
	default:
		return webrtc.RTPCodecParameters{}, fmt.Errorf("no RTP mapping for codec %q", codec.Name())
	}
}

// newPeerConnection builds a peer connection that offers exactly one audio codec.
func newPeerConnection(params webrtc.RTPCodecParameters, cfg webrtc.Configuration) (*webrtc.PeerConnection, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterCodec(params, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("failed to register %s codec: %w", params.MimeType, err)
	}

	// Interceptors (default includes NACK and RTCP reports)
	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, fmt.Errorf("failed to register interceptors: %w", err)
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(registry),
	)
	pc, err := api.NewPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}
	return pc, nil
}

// createOffer sets the local description and waits for ICE gathering, so the
// returned SDP carries every candidate.
func createOffer(ctx context.Context, pc *webrtc.PeerConnection) (string, error) {
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create offer: %w", err)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("failed to set local description: %w", err)
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return pc.LocalDescription().SDP, nil
}

// exchangeSDP posts the offer and returns the answer SDP.
func exchangeSDP(ctx context.Context, client *http.Client, endpoint, model, token, offer string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", mserrors.New(mserrors.KindHandshakeFailed, component, "exchange_sdp", err)
	}
	q := u.Query()
	q.Set("model", model)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewBufferString(offer))
	if err != nil {
		return "", mserrors.New(mserrors.KindHandshakeFailed, component, "exchange_sdp", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/sdp")

	logger.APIRequest(component, req.Method, u.String(), map[string]string{
		"Authorization": "Bearer " + token,
		"Content-Type":  "application/sdp",
	}, nil)

	resp, err := client.Do(req)
	if err != nil {
		logger.APIResponse(component, 0, "", err)
		return "", mserrors.New(mserrors.KindHandshakeFailed, component, "exchange_sdp", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAnswerBytes))
	if err != nil {
		return "", mserrors.New(mserrors.KindHandshakeFailed, component, "exchange_sdp", err).
			WithStatusCode(resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.APIResponse(component, resp.StatusCode, string(body), nil)
		return "", mserrors.Newf(mserrors.KindHandshakeFailed, component, "exchange_sdp",
			"sdp exchange rejected: %s", bytes.TrimSpace(body)).WithStatusCode(resp.StatusCode)
	}
	logger.APIResponse(component, resp.StatusCode, "[sdp answer]", nil)
	return string(body), nil
}
