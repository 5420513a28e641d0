package model

type Language string

const (
	LangJava       Language = "java"
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangCpp        Language = "cpp"
	LangC          Language = "c"
	LangGo         Language = "go"
	LangRust       Language = "rust"
	LangKotlin     Language = "kotlin"
	LangRuby       Language = "ruby"
	LangCSharp     Language = "csharp"
)

var supportedLanguages = map[Language]bool{
	LangJava:       true,
	LangPython:     true,
	LangJavaScript: true,
	LangTypeScript: true,
	LangCpp:        true,
	LangC:          true,
	LangGo:         true,
	LangRust:       true,
	LangKotlin:     true,
	LangRuby:       true,
	LangCSharp:     true,
}

// IsValid reports whether l is a language the judge can execute.
func (l Language) IsValid() bool {
	return supportedLanguages[l]
}
