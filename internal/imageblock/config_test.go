package imageblock

import (
	"testing"

	"inkwell/internal/editor/ports"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeConfigDefaults(t *testing.T) {
	cfg := NormalizeConfig(ToolConfig{}, ports.Host{})

	assert.Equal(t, "image", cfg.Field)
	assert.Equal(t, "image/*", cfg.Types)
	assert.Equal(t, "Caption", cfg.CaptionPlaceholder)
	assert.Equal(t, "Link", cfg.LinkPlaceholder)
	assert.Equal(t, "", cfg.ButtonContent)

	// Absent features normalize to enabled.
	assert.Equal(t, FeatureEnabled, cfg.Features.Border)
	assert.Equal(t, FeatureEnabled, cfg.Features.Background)
	assert.Equal(t, FeatureEnabled, cfg.Features.Stretch)
	assert.Equal(t, FeatureEnabled, cfg.Features.Caption)
	assert.Equal(t, FeatureEnabled, cfg.Features.Link)
}

func TestNormalizeConfigKeepsExplicitValues(t *testing.T) {
	cfg := NormalizeConfig(ToolConfig{
		Endpoints:          Endpoints{ByFile: "/up/file", ByURL: "/up/url"},
		Field:              "photo",
		Types:              "image/png",
		CaptionPlaceholder: "Describe it",
		ButtonContent:      "<b>Pick</b>",
	}, ports.Host{})

	assert.Equal(t, "/up/file", cfg.Endpoints.ByFile)
	assert.Equal(t, "/up/url", cfg.Endpoints.ByURL)
	assert.Equal(t, "photo", cfg.Field)
	assert.Equal(t, "image/png", cfg.Types)
	assert.Equal(t, "Describe it", cfg.CaptionPlaceholder)
	assert.Equal(t, "<b>Pick</b>", cfg.ButtonContent)
}

func TestNormalizeConfigTranslatesPlaceholders(t *testing.T) {
	host := ports.Host{I18n: prefixTranslator{}}
	cfg := NormalizeConfig(ToolConfig{CaptionPlaceholder: "Bildunterschrift"}, host)

	assert.Equal(t, "tr:Bildunterschrift", cfg.CaptionPlaceholder)
	assert.Equal(t, "tr:Link", cfg.LinkPlaceholder)
}

func TestNormalizeFeatureValues(t *testing.T) {
	cases := map[string]struct {
		in   any
		want FeatureState
	}{
		"nil":              {nil, FeatureEnabled},
		"true":             {true, FeatureEnabled},
		"false":            {false, FeatureDisabled},
		"optional":         {"optional", FeatureOptional},
		"optional spaced":  {"  Optional ", FeatureOptional},
		"disabled string":  {"disabled", FeatureDisabled},
		"false string":     {"false", FeatureDisabled},
		"enabled string":   {"enabled", FeatureEnabled},
		"garbage string":   {"sometimes", FeatureEnabled},
		"state value":      {FeatureOptional, FeatureOptional},
		"unexpected type":  {42, FeatureEnabled},
		"unexpected slice": {[]bool{false}, FeatureEnabled},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, normalizeFeature(tc.in))
		})
	}
}

func TestNormalizeConfigCopiesMaps(t *testing.T) {
	data := map[string]any{"workspace": "w1"}
	headers := map[string]string{"X-Auth": "t"}

	cfg := NormalizeConfig(ToolConfig{
		AdditionalRequestData:    data,
		AdditionalRequestHeaders: headers,
	}, ports.Host{})

	// Mutating the caller's maps after the fact changes nothing.
	data["workspace"] = "hijacked"
	headers["X-Auth"] = "stolen"

	assert.Equal(t, "w1", cfg.AdditionalRequestData["workspace"])
	assert.Equal(t, "t", cfg.AdditionalRequestHeaders["X-Auth"])
}

func TestFeaturesFor(t *testing.T) {
	f := Features{
		Border:     FeatureDisabled,
		Background: FeatureEnabled,
		Stretch:    FeatureEnabled,
		Caption:    FeatureOptional,
		Link:       FeatureOptional,
	}

	assert.Equal(t, FeatureDisabled, f.For(TuneBorder))
	assert.Equal(t, FeatureEnabled, f.For(TuneBackground))
	assert.Equal(t, FeatureEnabled, f.For(TuneStretched))
	assert.Equal(t, FeatureOptional, f.For(TuneCaption))
	assert.Equal(t, FeatureOptional, f.For(TuneLink))

	// Names the tool does not know stay available.
	assert.Equal(t, FeatureEnabled, f.For("download"))
}
