package models

import (
	"errors"
	"strings"

	"singalong/internal/services"
)

// Tier is a separation quality level.
type Tier string

const (
	TierHigh   Tier = "high"
	TierNormal Tier = "normal"
	TierFast   Tier = "fast"
)

// DefaultTier is used when neither a request nor the settings name one.
const DefaultTier = TierNormal

// ErrUnknownTier reports a tier name outside the preset table.
var ErrUnknownTier = errors.New("unknown quality tier")

// Preset describes the model file backing a tier.
type Preset struct {
	Tier        Tier   `json:"tier"`
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	DisplayName string `json:"displayName"`
}

var presets = map[Tier]Preset{
	TierHigh: {
		Tier:        TierHigh,
		Filename:    "MDX23C-8KFFT-InstVoc_HQ.ckpt",
		URL:         "https://huggingface.co/Blane187/all_public_uvr_models/resolve/main/MDX23C-8KFFT-InstVoc_HQ.ckpt",
		DisplayName: "MDX23C-InstVocHQ",
	},
	TierNormal: {
		Tier:        TierNormal,
		Filename:    "UVR-MDX-NET-Inst_HQ_3.onnx",
		URL:         "https://huggingface.co/seanghay/uvr_models/resolve/main/UVR-MDX-NET-Inst_HQ_3.onnx",
		DisplayName: "UVR-MDX-NET-Inst_HQ_3",
	},
	TierFast: {
		Tier:        TierFast,
		Filename:    "UVR-MDX-NET-Inst_1.onnx",
		URL:         "https://huggingface.co/Blane187/all_public_uvr_models/resolve/main/UVR-MDX-NET-Inst_1.onnx",
		DisplayName: "UVR-MDX-NET-Inst_1",
	},
}

// Tiers lists every tier from highest to lowest quality.
func Tiers() []Tier {
	return []Tier{TierHigh, TierNormal, TierFast}
}

// Lookup returns the preset for tier.
func Lookup(tier Tier) (Preset, bool) {
	p, ok := presets[tier]
	return p, ok
}

// ParseTier accepts a tier name case-insensitively.
func ParseTier(value string) (Tier, error) {
	tier := Tier(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := presets[tier]; !ok {
		return "", services.Wrap(services.ErrValidation, "models", "parse tier", value, ErrUnknownTier)
	}
	return tier, nil
}

func (t Tier) String() string {
	return string(t)
}
