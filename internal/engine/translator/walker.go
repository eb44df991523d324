package translator

import (
	"cppmsplit/internal/core/errors"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// ScopeContext carries what the walker knows about the enclosing scopes.
// Prefix qualifies out-of-line definitions ("Outer::Inner::"). Namespace is
// the enclosing namespace path; namespaces are re-opened in the source file,
// so it is only used for diagnostics.
type ScopeContext struct {
	Prefix    string
	Namespace string
	Template  bool
}

func (sc ScopeContext) String() string {
	s := sc.Namespace + sc.Prefix
	if s == "" {
		s = "::"
	}
	if sc.Template {
		s += " (template)"
	}
	return s
}

var outOfLineModifierRe = regexp.MustCompile(`\b(?:static|explicit|virtual)\b\s*`)

// walker owns the two output buffers of a single translation.
type walker struct {
	header strings.Builder
	source strings.Builder
	logger *slog.Logger
	counts map[ConstructKind]int
}

func newWalker(logger *slog.Logger) *walker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &walker{logger: logger, counts: make(map[ConstructKind]int)}
}

func (w *walker) walk(src string, sc ScopeContext) error {
	for {
		src = strings.TrimLeftFunc(src, func(r rune) bool { return r < 0x80 && isSpace(byte(r)) })
		if src == "" {
			return nil
		}
		// Empty declarations, e.g. the ';' after a namespace-scope function body.
		if src[0] == ';' {
			src = src[1:]
			continue
		}

		c, err := classify(src)
		if err != nil {
			return err
		}
		if c.Consumed <= 0 {
			return errors.Newf(errors.CodeInternal, "%s rule consumed no input", c.Kind)
		}
		w.logger.Debug("construct", "kind", c.Kind.String(), "text", c.Text, "scope", sc.String())
		w.counts[c.Kind]++

		if err := w.emit(c, sc); err != nil {
			return err
		}
		src = src[c.Consumed:]
	}
}

func (w *walker) emit(c Construct, sc ScopeContext) error {
	switch c.Kind {
	case KindIncludeDirective, KindGlobalVariable, KindEnum, KindVisibilityLabel, KindClassVariable:
		w.header.WriteString(c.Text)
		w.header.WriteByte('\n')

	case KindPreprocessorDirective:
		w.both(c.Text + "\n")

	case KindNamespace:
		w.both(c.Text + " {\n")
		inner := sc
		if c.Name != "" {
			inner.Namespace += c.Name + "::"
		}
		if err := w.walk(c.Body, inner); err != nil {
			return err
		}
		w.both("}\n")

	case KindClass:
		w.header.WriteString(c.Text + " {\n")
		inner := ScopeContext{
			Prefix:    sc.Prefix + c.Name + "::",
			Namespace: sc.Namespace,
			Template:  sc.Template || c.Template,
		}
		if err := w.walk(c.Body, inner); err != nil {
			return err
		}
		w.header.WriteString("};\n")

	case KindConstructor:
		w.emitConstructor(c, sc)

	case KindFunction:
		w.emitFunction(c, sc)

	default:
		return errors.Newf(errors.CodeInternal, "no emitter for construct kind %d", int(c.Kind))
	}
	return nil
}

func (w *walker) emitConstructor(c Construct, sc ScopeContext) {
	w.header.WriteString(c.PreModifiers + c.Text + ";\n")
	if !c.HasBody {
		return
	}
	w.source.WriteString(outOfLineModifierRe.ReplaceAllString(c.PreModifiers, ""))
	w.source.WriteString(sc.Prefix + c.Name + StripDefaultArguments(c.Params) + c.PostModifiers + c.InitList)
	w.writeBody(&w.source, c.Body)
}

func (w *walker) emitFunction(c Construct, sc ScopeContext) {
	if !c.HasBody {
		w.header.WriteString(c.Text + ";\n")
		return
	}
	if sc.Template || c.Inline {
		w.header.WriteString(c.Text)
		w.writeBody(&w.header, c.Body)
		return
	}

	w.header.WriteString(c.Text + ";\n")
	w.source.WriteString(c.Attributes)
	w.source.WriteString(outOfLineModifierRe.ReplaceAllString(c.PreModifiers, ""))
	w.source.WriteString(c.ReturnType + sc.Prefix + c.Name + StripDefaultArguments(c.Params) + c.PostModifiers)
	w.writeBody(&w.source, c.Body)
}

func (w *walker) writeBody(b *strings.Builder, body string) {
	b.WriteString(" {")
	b.WriteString(body)
	b.WriteString("}\n")
}

func (w *walker) both(s string) {
	w.header.WriteString(s)
	w.source.WriteString(s)
}
