package lang

// Script statements: an import or export whose quoted literal is a relative
// path, ending in a semicolon.
const scriptStatement = `((?:import|export)\b[^;'"]*['"]\.{1,2}/[^'"\n]*['"]\s*;)`

// quotedLiteral unwraps a single- or double-quoted string.
const quotedLiteral = `'([^'\n]+)'|"([^"\n]+)"`

// Stylesheet directive statements, whole:
//  1. @use / @forward
//  2. @import, with a directly preceding "/" kept so it can be dropped later
//  3. @include meta.load-css("...") with a literal (non-url) argument
//
// No alternative consumes text before its directive, so directives packed on
// one line ("@import 'a';@import 'b';") all match.
const stylesheetDirective = `(@(?:use|forward)\s+[^;]+;)` +
	`|(/?@import\s+[^;]+;)` +
	`|(@include\s+meta\.load-css\(\s*(?:"[^"\n]+"|'[^'\n]+'))`

// stylesheetLiteral unwraps quoted literals and url() arguments, quoted or bare.
const stylesheetLiteral = `url\(\s*['"]?([^'")\s]+)['"]?\s*\)|'([^'\n]+)'|"([^"\n]+)"`

// ScriptConfig is shared by .js and .mjs.
func ScriptConfig() LanguageConfig {
	return LanguageConfig{
		Extractors: []Extractor{
			MustPattern(scriptStatement),
			MustPattern(quotedLiteral),
		},
		Resolvers: []ResolverStep{
			AppendExt(".js"),
			AppendExt(".mjs"),
		},
	}
}

// StylesheetConfig covers .scss sources and their partials.
func StylesheetConfig() LanguageConfig {
	return LanguageConfig{
		Extractors: []Extractor{
			MustPattern(stylesheetDirective),
			Func(uncommented),
			MustPattern(stylesheetLiteral),
		},
		Resolvers: []ResolverStep{
			AppendExt(".scss"),
			Partial(".scss"),
			Index("_index.scss"),
			Index("index.scss"),
		},
	}
}

// DefaultConfigs returns the built-in extension table. The map is fresh on
// every call so callers may extend it before building a registry.
func DefaultConfigs() map[string]LanguageConfig {
	script := ScriptConfig()
	return map[string]LanguageConfig{
		".js":   script,
		".mjs":  script,
		".scss": StylesheetConfig(),
	}
}

// Default returns a registry holding the built-in script and stylesheet configs.
func Default() *Registry {
	r, err := NewRegistry(DefaultConfigs())
	if err != nil {
		panic(err)
	}
	return r
}
