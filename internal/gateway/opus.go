package gateway

import (
	"fmt"

	"layeh.com/gopus"

	"github.com/tomwolfe/ConvoCue/internal/audio"
)

// Browsers encode WebRTC-style Opus at 48 kHz stereo with 20 ms frames.
const (
	opusSampleRate  = 48000
	opusChannels    = 2
	opusFrameSizeMs = 20
	// opusFrameSize is the number of samples per channel per 20 ms frame.
	opusFrameSize = opusSampleRate * opusFrameSizeMs / 1000 // 960
)

// opusDecoder turns Opus packets into mono float32 PCM at the session rate.
// Each connection gets its own decoder since Opus state carries across
// consecutive packets.
type opusDecoder struct {
	dec  *gopus.Decoder
	rate int
}

func newOpusDecoder(rate int) (*opusDecoder, error) {
	dec, err := gopus.NewDecoder(opusSampleRate, opusChannels)
	if err != nil {
		return nil, fmt.Errorf("gateway: create opus decoder: %w", err)
	}
	return &opusDecoder{dec: dec, rate: rate}, nil
}

// decode decodes one packet, downmixes and resamples it.
func (d *opusDecoder) decode(packet []byte) ([]float32, error) {
	pcm, err := d.dec.Decode(packet, opusFrameSize, false)
	if err != nil {
		return nil, fmt.Errorf("gateway: opus decode: %w", err)
	}
	return audio.Resample(audio.Int16ToMono(pcm, opusChannels), opusSampleRate, d.rate), nil
}
