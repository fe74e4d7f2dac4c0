package model

// Language key constants.
const (
	LanguageC          = "c"
	LanguageCPP        = "cpp"
	LanguageJava       = "java"
	LanguageJavaScript = "javascript"
	LanguagePython     = "python"
)

// LanguageBinding maps a language key to the runtime name expected by
// mirrored runners and the numeric runtime id expected by submit-and-poll
// runners.
type LanguageBinding struct {
	Key         string `json:"key"`
	RuntimeName string `json:"runtime_name"`
	RuntimeID   int    `json:"runtime_id"`
}

// DefaultBindings returns the built-in language table.
func DefaultBindings() []LanguageBinding {
	return []LanguageBinding{
		{Key: LanguageC, RuntimeName: "c", RuntimeID: 50},
		{Key: LanguageCPP, RuntimeName: "cpp", RuntimeID: 54},
		{Key: LanguageJava, RuntimeName: "java", RuntimeID: 62},
		{Key: LanguageJavaScript, RuntimeName: "javascript", RuntimeID: 63},
		{Key: LanguagePython, RuntimeName: "python", RuntimeID: 71},
	}
}
