package search

// IconKind tags the payload of an IconDescriptor.
type IconKind string

const (
	IconFilePath    IconKind = "FilePath"
	IconDataURL     IconKind = "DataUrl"
	IconBase64Image IconKind = "Base64Image"
	IconSvg         IconKind = "Svg"
	IconDummy       IconKind = "Dummy"
)

// IconDescriptor is an immutable tagged icon reference.
type IconDescriptor struct {
	kind    IconKind
	payload string
}

func FileIcon(path string) IconDescriptor { return IconDescriptor{kind: IconFilePath, payload: path} }
func DataURLIcon(url string) IconDescriptor { return IconDescriptor{kind: IconDataURL, payload: url} }
func Base64Icon(encoded string) IconDescriptor { return IconDescriptor{kind: IconBase64Image, payload: encoded} }
func SvgIcon(markup string) IconDescriptor { return IconDescriptor{kind: IconSvg, payload: markup} }
func DummyIcon() IconDescriptor { return IconDescriptor{kind: IconDummy} }

func (d IconDescriptor) Kind() IconKind {
	if d.kind == "" {
		return IconDummy
	}
	return d.kind
}

func (d IconDescriptor) Payload() string { return d.payload }

func (d IconDescriptor) IsDummy() bool { return d.Kind() == IconDummy }

type ActionKind string

const (
	ActionOpen    ActionKind = "open"
	ActionCommand ActionKind = "command"
)

// Action describes what selecting a result does. Target is the file or URL
// for open, or the program for command.
type Action struct {
	Kind   ActionKind
	Target string
	Args   []string
}

func OpenAction(target string) Action {
	return Action{Kind: ActionOpen, Target: target}
}

func CommandAction(name string, args ...string) Action {
	return Action{Kind: ActionCommand, Target: name, Args: args}
}

// Searchable is one result candidate produced by a plugin.
type Searchable interface {
	ID() string
	Name() string
	Icon() IconDescriptor
	Type() string
	Action() Action
}

// Item is the plain Searchable implementation shared by plugins.
type Item struct {
	ItemID     string
	ItemName   string
	ItemIcon   IconDescriptor
	ItemType   string
	ItemAction Action
}

func (i Item) ID() string { return i.ItemID }
func (i Item) Name() string { return i.ItemName }
func (i Item) Icon() IconDescriptor { return i.ItemIcon }
func (i Item) Type() string { return i.ItemType }
func (i Item) Action() Action { return i.ItemAction }
