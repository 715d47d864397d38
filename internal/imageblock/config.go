// Package imageblock implements the image content block: upload lifecycle,
// paste classification, tune toggling and save/validate, all behind the
// editor ports.
package imageblock

import (
	"strings"

	"inkwell/internal/editor/ports"
)

// FeatureState is the normalized availability of a block capability.
type FeatureState string

const (
	// FeatureEnabled capabilities appear in settings and are pre-enabled
	// where that makes sense
	FeatureEnabled FeatureState = "enabled"

	// FeatureDisabled capabilities never appear
	FeatureDisabled FeatureState = "disabled"

	// FeatureOptional capabilities appear but start off unless saved data
	// turns them on
	FeatureOptional FeatureState = "optional"
)

// Features holds the normalized state of every built-in capability.
type Features struct {
	Border     FeatureState
	Background FeatureState
	Stretch    FeatureState
	Caption    FeatureState
	Link       FeatureState
}

// For maps a tune name to its feature state. Unknown names are enabled so
// caller-supplied tunes are never filtered out.
func (f Features) For(tuneName string) FeatureState {
	switch tuneName {
	case TuneBorder:
		return f.Border
	case TuneBackground:
		return f.Background
	case TuneStretched:
		return f.Stretch
	case TuneCaption:
		return f.Caption
	case TuneLink:
		return f.Link
	default:
		return FeatureEnabled
	}
}

// Endpoints names the backend upload routes.
type Endpoints struct {
	ByFile string `json:"byFile"`
	ByURL  string `json:"byUrl"`
}

// ToolConfig is the caller-facing configuration, accepted as loosely as the
// host passes it. NormalizeConfig turns it into the frozen Config the tool
// actually reads.
type ToolConfig struct {
	Endpoints                Endpoints
	Field                    string
	Types                    string
	AdditionalRequestData    map[string]any
	AdditionalRequestHeaders map[string]string
	CaptionPlaceholder       string
	LinkPlaceholder          string
	ButtonContent            string
	Actions                  []ports.TuneAction
	Features                 map[string]any
}

// Config is the normalized, effectively immutable configuration. It is built
// once per tool instance and never mutated afterwards.
type Config struct {
	Endpoints                Endpoints
	Field                    string
	Types                    string
	AdditionalRequestData    map[string]any
	AdditionalRequestHeaders map[string]string
	CaptionPlaceholder       string
	LinkPlaceholder          string
	ButtonContent            string
	Actions                  []ports.TuneAction
	Features                 Features
}

// NormalizeConfig fills defaults, translates placeholder text and resolves
// the feature map to explicit tri-states.
func NormalizeConfig(raw ToolConfig, host ports.Host) Config {
	cfg := Config{
		Endpoints:          raw.Endpoints,
		Field:              raw.Field,
		Types:              raw.Types,
		CaptionPlaceholder: host.Translate(defaultString(raw.CaptionPlaceholder, "Caption")),
		LinkPlaceholder:    host.Translate(defaultString(raw.LinkPlaceholder, "Link")),
		ButtonContent:      raw.ButtonContent,
		Actions:            append([]ports.TuneAction(nil), raw.Actions...),
		Features: Features{
			Border:     normalizeFeature(raw.Features["border"]),
			Background: normalizeFeature(raw.Features["background"]),
			Stretch:    normalizeFeature(raw.Features["stretch"]),
			Caption:    normalizeFeature(raw.Features["caption"]),
			Link:       normalizeFeature(raw.Features["link"]),
		},
	}
	if cfg.Field == "" {
		cfg.Field = "image"
	}
	if cfg.Types == "" {
		cfg.Types = "image/*"
	}

	// Private copies: callers sometimes reuse and mutate their config maps.
	if len(raw.AdditionalRequestData) > 0 {
		cfg.AdditionalRequestData = make(map[string]any, len(raw.AdditionalRequestData))
		for k, v := range raw.AdditionalRequestData {
			cfg.AdditionalRequestData[k] = v
		}
	}
	if len(raw.AdditionalRequestHeaders) > 0 {
		cfg.AdditionalRequestHeaders = make(map[string]string, len(raw.AdditionalRequestHeaders))
		for k, v := range raw.AdditionalRequestHeaders {
			cfg.AdditionalRequestHeaders[k] = v
		}
	}
	return cfg
}

// normalizeFeature resolves one feature entry. Booleans map to
// enabled/disabled, "optional" stays tri-state, anything else falls back to
// enabled.
func normalizeFeature(v any) FeatureState {
	switch t := v.(type) {
	case nil:
		return FeatureEnabled
	case bool:
		if t {
			return FeatureEnabled
		}
		return FeatureDisabled
	case FeatureState:
		return normalizeFeature(string(t))
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "optional":
			return FeatureOptional
		case "disabled", "false":
			return FeatureDisabled
		default:
			return FeatureEnabled
		}
	default:
		return FeatureEnabled
	}
}

func defaultString(v, dflt string) string {
	if v == "" {
		return dflt
	}
	return v
}
