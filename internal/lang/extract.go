package lang

import (
	"errors"
	"fmt"
	"regexp"
)

// ExtractorKind tags the two extractor variants.
type ExtractorKind int

const (
	// PatternExtractor emits every non-empty capture group of every match.
	PatternExtractor ExtractorKind = iota
	// FuncExtractor maps one input to zero or one output.
	FuncExtractor
)

func (k ExtractorKind) String() string {
	switch k {
	case PatternExtractor:
		return "pattern"
	case FuncExtractor:
		return "func"
	default:
		return fmt.Sprintf("ExtractorKind(%d)", int(k))
	}
}

// Extractor is one stage of an extraction pipeline.
type Extractor struct {
	Kind    ExtractorKind
	Pattern *regexp.Regexp
	Func    func(string) string
}

// Pattern compiles expr into a pattern extractor. The expression must have at
// least one capture group.
func Pattern(expr string) (Extractor, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Extractor{}, fmt.Errorf("compile %q: %w", expr, err)
	}
	ex := Extractor{Kind: PatternExtractor, Pattern: re}
	if err := ex.validate(); err != nil {
		return Extractor{}, fmt.Errorf("%q: %w", expr, err)
	}
	return ex, nil
}

// MustPattern is Pattern for built-in expressions; it panics on error.
func MustPattern(expr string) Extractor {
	ex, err := Pattern(expr)
	if err != nil {
		panic(err)
	}
	return ex
}

// Func wraps fn as a function extractor. Empty results are dropped.
func Func(fn func(string) string) Extractor {
	return Extractor{Kind: FuncExtractor, Func: fn}
}

func (e Extractor) validate() error {
	switch e.Kind {
	case PatternExtractor:
		if e.Pattern == nil {
			return errors.New("nil pattern")
		}
		if e.Pattern.NumSubexp() == 0 {
			return ErrNoCaptureGroup
		}
	case FuncExtractor:
		if e.Func == nil {
			return errors.New("nil func")
		}
	default:
		return fmt.Errorf("unknown extractor kind %v", e.Kind)
	}
	return nil
}

// apply runs this stage over every input and returns the concatenated output.
func (e Extractor) apply(inputs []string) []string {
	var out []string
	switch e.Kind {
	case PatternExtractor:
		for _, in := range inputs {
			for _, m := range e.Pattern.FindAllStringSubmatch(in, -1) {
				for _, group := range m[1:] {
					if group != "" {
						out = append(out, group)
					}
				}
			}
		}
	case FuncExtractor:
		for _, in := range inputs {
			if v := e.Func(in); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// Extract runs the pipeline over content and returns the raw references in
// discovery order. Duplicates are kept.
func Extract(pipeline []Extractor, content string) []string {
	if len(pipeline) == 0 {
		return nil
	}
	current := []string{content}
	for _, ex := range pipeline {
		current = ex.apply(current)
		if len(current) == 0 {
			return nil
		}
	}
	return current
}
