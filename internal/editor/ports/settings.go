package ports

// Toolbox describes how the host lists a tool in its insert menu.
type Toolbox struct {
	Icon  string `json:"icon"`
	Title string `json:"title"`
}

// SettingsItem is one entry of a block's settings menu, rebuilt on every
// open. Activate runs the tool-side reaction.
type SettingsItem struct {
	Name     string
	Icon     string
	Label    string
	Toggle   bool
	Active   bool
	Activate func()
}

// TuneAction is a caller-supplied extra tune. When Action is set the tool
// delegates activation to it and leaves block data untouched.
type TuneAction struct {
	Name   string
	Icon   string
	Title  string
	Toggle bool
	Action func(name string)
}
