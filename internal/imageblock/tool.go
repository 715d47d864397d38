package imageblock

import (
	"context"
	"errors"
	"sync"

	"inkwell/internal/async"
	"inkwell/internal/editor/ports"
	"inkwell/internal/events"
	"inkwell/internal/logging"
	"inkwell/internal/uploader"
	"inkwell/pkg/blocks"
)

// Params configures a Tool instance.
type Params struct {
	// ID identifies the block within its document
	ID string

	// Data is the saved block payload, zero for a fresh block
	Data blocks.ImageData

	// Config is the caller-facing tool configuration
	Config ToolConfig

	// ReadOnly marks the host document as not editable
	ReadOnly bool

	// Renderer owns the block's visual surface and is required
	Renderer ports.Renderer

	// Uploader overrides the transport; nil builds the default HTTP client
	// from Config.Endpoints
	Uploader ports.Uploader

	// Fetcher materializes blob and data sources found in pasted markup
	Fetcher ports.SourceFetcher

	// Host bundles editor-side services
	Host ports.Host

	// Executor runs deferred host notifications; nil creates a private one
	// that Close tears down
	Executor *async.Executor

	Logger logging.Logger
	Events events.Sink
}

// Tool coordinates one image block: it owns the persisted data, drives the
// renderer, runs uploads and answers the host's save and settings calls.
//
// Upload completions arrive on background goroutines, so the mutable state
// is guarded by a mutex. When several uploads race, the last completion wins.
type Tool struct {
	id       string
	config   Config
	readOnly bool

	renderer ports.Renderer
	uploader ports.Uploader
	fetcher  ports.SourceFetcher
	host     ports.Host
	executor *async.Executor
	ownExec  bool
	logger   logging.Logger
	events   events.Sink

	mu        sync.Mutex
	data      blocks.ImageData
	captionOn TriState
	linkOn    TriState
}

// New builds a Tool and applies the saved data, which pre-enables tunes and
// schedules the stretch notification exactly like a user-driven change would.
func New(p Params) (*Tool, error) {
	if p.Renderer == nil {
		return nil, errors.New("imageblock: renderer is required")
	}

	logger := logging.OrNop(p.Logger)
	sink := events.OrNop(p.Events)

	t := &Tool{
		id:       p.ID,
		config:   NormalizeConfig(p.Config, p.Host),
		readOnly: p.ReadOnly,
		renderer: p.Renderer,
		fetcher:  p.Fetcher,
		host:     p.Host,
		executor: p.Executor,
		logger:   logger,
		events:   sink,
	}

	if t.executor == nil {
		blockID := p.ID
		t.executor = async.NewExecutor(logger, async.WithFailureHook(func(name string, err error) {
			sink.Emit(events.New(events.TypeDeferFailed, blockID, events.Fields{
				"task":  name,
				"error": err.Error(),
			}))
		}))
		t.ownExec = true
	}

	t.uploader = p.Uploader
	if t.uploader == nil {
		t.uploader = uploader.New(uploader.Config{
			ByFileEndpoint: t.config.Endpoints.ByFile,
			ByURLEndpoint:  t.config.Endpoints.ByURL,
			Field:          t.config.Field,
			Types:          t.config.Types,
			ExtraData:      t.config.AdditionalRequestData,
			ExtraHeaders:   t.config.AdditionalRequestHeaders,
		}, uploader.WithLogger(logger))
	}

	t.SetData(p.Data)
	return t, nil
}

// ID returns the block identifier.
func (t *Tool) ID() string {
	return t.id
}

// ReadOnly reports whether the host opened the document read-only. The host
// is expected to withhold settings and paste calls in that mode.
func (t *Tool) ReadOnly() bool {
	return t.readOnly
}

// Config returns the normalized configuration.
func (t *Tool) Config() Config {
	return t.config
}

// Data returns a snapshot of the persisted block payload.
func (t *Tool) Data() blocks.ImageData {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.data
}

// SetData replaces the block payload. File dimensions survive refs that omit
// them, every toggle runs through the same path as a user toggle, and the
// caption and link tunes are re-derived from text presence and feature
// configuration.
func (t *Tool) SetData(d blocks.ImageData) {
	t.mu.Lock()
	merged := blocks.MergeFileRef(t.data.File, d.File)
	t.data.File = merged
	t.data.Caption = d.Caption
	t.data.Link = d.Link
	t.mu.Unlock()

	if merged.URL != "" {
		t.renderer.FillImage(merged.URL)
	}
	t.renderer.FillCaption(d.Caption)
	t.renderer.FillLink(d.Link)

	t.setTune(TuneBorder, d.WithBorder)
	t.setTune(TuneStretched, d.Stretched)
	t.setTune(TuneBackground, d.WithBackground)

	t.deriveTextTunes()
}

// deriveTextTunes forces the caption and link tunes on when their text is
// present or their feature is unconditionally enabled. It never forces them
// off: an untouched tune stays tri-state unset.
func (t *Tool) deriveTextTunes() {
	t.mu.Lock()
	captionOn := t.data.Caption != "" || t.config.Features.Caption == FeatureEnabled
	linkOn := t.data.Link != "" || t.config.Features.Link == FeatureEnabled
	if captionOn {
		t.captionOn = TriOn
	}
	if linkOn {
		t.linkOn = TriOn
	}
	t.mu.Unlock()

	if captionOn {
		t.renderer.ApplyTune(TuneCaption, true)
	}
	if linkOn {
		t.renderer.ApplyTune(TuneLink, true)
	}
}

// SetImage replaces the file ref alone, leaving caption, link and tune state
// untouched. Dimensions the new ref omits carry forward from the old one.
func (t *Tool) SetImage(ref blocks.FileRef) {
	t.assignImage(ref)
}

// assignImage merges ref into the current file and shows it once it has a
// URL. It returns the merged ref so upload completions can report it.
func (t *Tool) assignImage(ref blocks.FileRef) blocks.FileRef {
	t.mu.Lock()
	merged := blocks.MergeFileRef(t.data.File, ref)
	t.data.File = merged
	t.mu.Unlock()

	if merged.URL != "" {
		t.renderer.FillImage(merged.URL)
	}
	return merged
}

// Render mounts the visual surface and replays the active tunes onto it.
func (t *Tool) Render() ports.Node {
	node := t.renderer.Mount(t.Data())
	for _, tn := range builtinTunes {
		if t.TuneActive(tn.name) {
			t.renderer.ApplyTune(tn.name, true)
		}
	}
	return node
}

// Save pulls the live caption and link text out of the renderer, folds it
// into the payload and returns the result.
func (t *Tool) Save() blocks.ImageData {
	caption := t.renderer.Caption()
	link := t.renderer.Link()

	t.mu.Lock()
	t.data.Caption = caption
	t.data.Link = link
	out := t.data
	t.mu.Unlock()

	t.emit(events.TypeBlockSaved, events.Fields{"valid": blocks.Validate(out)})
	return out
}

// Validate reports whether saved data references uploaded content.
func (t *Tool) Validate(d blocks.ImageData) bool {
	return blocks.Validate(d)
}

// AppendCallback runs when the user inserts this tool from the toolbox: it
// immediately opens file selection.
func (t *Tool) AppendCallback() {
	t.selectAndUpload()
}

// RenderSettings builds the settings menu. Entries are rebuilt on every call
// so their active flags reflect current state.
func (t *Tool) RenderSettings() []ports.SettingsItem {
	items := make([]ports.SettingsItem, 0, len(builtinTunes)+len(t.config.Actions))

	for _, tn := range builtinTunes {
		if t.config.Features.For(tn.name) == FeatureDisabled {
			continue
		}
		name := tn.name
		items = append(items, ports.SettingsItem{
			Name:     name,
			Icon:     tn.icon,
			Label:    t.host.Translate(tn.title),
			Toggle:   true,
			Active:   t.TuneActive(name),
			Activate: func() { t.toggleTune(name) },
		})
	}

	for _, action := range t.config.Actions {
		action := action
		items = append(items, ports.SettingsItem{
			Name:     action.Name,
			Icon:     action.Icon,
			Label:    t.host.Translate(action.Title),
			Toggle:   action.Toggle,
			Active:   false,
			Activate: func() { t.activateCustom(action) },
		})
	}
	return items
}

// TuneActive resolves a tune's current on/off state. Caption and link prefer
// their override and fall back to text presence; the other tunes read the
// persisted booleans.
func (t *Tool) TuneActive(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch name {
	case TuneCaption:
		return t.captionOn.Bool(t.data.Caption != "")
	case TuneLink:
		return t.linkOn.Bool(t.data.Link != "")
	case TuneBorder:
		return t.data.WithBorder
	case TuneBackground:
		return t.data.WithBackground
	case TuneStretched:
		return t.data.Stretched
	default:
		return false
	}
}

// toggleTune flips one built-in tune from the settings menu.
func (t *Tool) toggleTune(name string) {
	switch name {
	case TuneCaption, TuneLink:
		t.toggleTextTune(name)
	default:
		next := !t.TuneActive(name)
		t.setTune(name, next)
		t.emit(events.TypeTuneToggled, events.Fields{"tune": name, "enabled": next})
	}
}

// toggleTextTune flips caption or link. Turning one off clears its stored
// text and blanks the renderer field; toggling back on starts empty.
func (t *Tool) toggleTextTune(name string) {
	t.mu.Lock()
	var next bool
	if name == TuneCaption {
		next = !t.captionOn.Bool(t.data.Caption != "")
		t.captionOn = triFromBool(next)
		if !next {
			t.data.Caption = ""
		}
	} else {
		next = !t.linkOn.Bool(t.data.Link != "")
		t.linkOn = triFromBool(next)
		if !next {
			t.data.Link = ""
		}
	}
	t.mu.Unlock()

	t.renderer.ApplyTune(name, next)
	if !next {
		if name == TuneCaption {
			t.renderer.FillCaption("")
		} else {
			t.renderer.FillLink("")
		}
	}
	t.emit(events.TypeTuneToggled, events.Fields{"tune": name, "enabled": next})
}

// setTune writes a persisted toggle, mirrors it on the renderer and, for
// stretch, schedules the host notification off the current call stack.
func (t *Tool) setTune(name string, enabled bool) {
	t.mu.Lock()
	switch name {
	case TuneBorder:
		t.data.WithBorder = enabled
	case TuneBackground:
		t.data.WithBackground = enabled
	case TuneStretched:
		t.data.Stretched = enabled
	}
	t.mu.Unlock()

	t.renderer.ApplyTune(name, enabled)

	if name == TuneStretched {
		t.scheduleStretch(enabled)
	}
}

// scheduleStretch defers the host resize call. Running it outside the
// current call stack lets the host finish whatever triggered the change
// before it measures and resizes the block.
func (t *Tool) scheduleStretch(stretched bool) {
	blockID := t.id
	t.executor.Defer("stretch."+blockID, func() error {
		return t.host.SetStretched(context.Background(), blockID, stretched)
	})
}

// activateCustom runs a caller-supplied tune. Custom tunes never touch block
// data; a nil action is a configuration mistake worth logging.
func (t *Tool) activateCustom(action ports.TuneAction) {
	if action.Action == nil {
		t.logger.Debug("custom tune %s has no action", action.Name)
		return
	}
	action.Action(action.Name)
	t.emit(events.TypeTuneToggled, events.Fields{"tune": action.Name, "custom": true})
}

// Close releases the private executor, draining scheduled notifications
// first. Tools sharing a caller-owned executor leave it untouched.
func (t *Tool) Close() {
	if t.ownExec {
		t.executor.Close()
	}
}

func (t *Tool) emit(eventType string, fields events.Fields) {
	t.events.Emit(events.New(eventType, t.id, fields))
}

// Toolbox describes the tool for the host's insert menu.
func Toolbox() ports.Toolbox {
	return ports.Toolbox{Icon: IconPicture, Title: "Image"}
}

// ReadOnlySupported reports that the tool can render in read-only documents.
func ReadOnlySupported() bool {
	return true
}
