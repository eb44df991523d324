package translator

import (
	"cppmsplit/internal/core/errors"
	"regexp"
	"strings"
)

type ConstructKind int

const (
	KindIncludeDirective ConstructKind = iota
	KindPreprocessorDirective
	KindGlobalVariable
	KindNamespace
	KindEnum
	KindClass
	KindVisibilityLabel
	KindConstructor
	KindFunction
	KindClassVariable
)

var kindNames = [...]string{
	KindIncludeDirective:      "include_directive",
	KindPreprocessorDirective: "preprocessor_directive",
	KindGlobalVariable:        "global_variable",
	KindNamespace:             "namespace",
	KindEnum:                  "enum",
	KindClass:                 "class",
	KindVisibilityLabel:       "visibility_label",
	KindConstructor:           "constructor",
	KindFunction:              "function",
	KindClassVariable:         "class_variable",
}

func (k ConstructKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Construct is one classified piece of the normalized buffer. Text holds the
// declaration as written, without the body; the remaining fields are the
// groups the matching rule captured. Consumed is the number of bytes of the
// buffer the construct occupies, body and trailing ';' included.
type Construct struct {
	Kind ConstructKind
	Text string
	Name string

	Attributes    string
	PreModifiers  string
	ReturnType    string
	Params        string
	PostModifiers string
	Specifiers    string
	PureSpecifier string
	InitList      string

	Template bool
	Inline   bool
	HasBody  bool
	Body     string
	Consumed int
}

type rule struct {
	kind     ConstructKind
	classify func(src string) (Construct, bool, error)
}

// rules is ordered by priority; the first rule that accepts the buffer wins.
var rules = []rule{
	{KindIncludeDirective, lineRule(KindIncludeDirective, regexp.MustCompile(`^#\s*include.*`))},
	{KindPreprocessorDirective, lineRule(KindPreprocessorDirective, regexp.MustCompile(`^#\s*\w+.*`))},
	{KindGlobalVariable, lineRule(KindGlobalVariable, regexp.MustCompile(`^const(?:expr|init)?\s[^(){};=]*=.*;`))},
	{KindNamespace, classifyNamespace},
	{KindEnum, classifyEnum},
	{KindClass, classifyClass},
	{KindVisibilityLabel, lineRule(KindVisibilityLabel, regexp.MustCompile(`^(?:public|protected|private)\s*:`))},
	{KindConstructor, classifyConstructor},
	{KindFunction, classifyFunction},
	{KindClassVariable, lineRule(KindClassVariable, regexp.MustCompile(`^(?:\w|[<>:,&*()\s])+\s+\w+\s*(?:\[[^\]]*\]\s*)*(?:=[^;]*|\{[^{};]*\}\s*)?;`))},
}

const maxReportedPrefix = 128

func classify(src string) (Construct, error) {
	for _, r := range rules {
		c, ok, err := r.classify(src)
		if err != nil {
			return Construct{}, err
		}
		if ok {
			return c, nil
		}
	}

	prefix := src
	if len(prefix) > maxReportedPrefix {
		prefix = prefix[:maxReportedPrefix]
	}
	return Construct{}, errors.AddContext(
		errors.New(errors.CodeUnsupportedConstruct, "encountered unexpected source code"),
		errors.CtxPrefix, prefix,
	)
}

func lineRule(kind ConstructKind, re *regexp.Regexp) func(string) (Construct, bool, error) {
	return func(src string) (Construct, bool, error) {
		loc := re.FindStringIndex(src)
		if loc == nil {
			return Construct{}, false, nil
		}
		return Construct{Kind: kind, Text: src[:loc[1]], Consumed: loc[1]}, true, nil
	}
}

var (
	namespaceRe = regexp.MustCompile(`^(?:inline\s+)?namespace(?:\s+([\w:]+))?\s*\{`)
	enumRe      = regexp.MustCompile(`^enum(?:\s+(?:class|struct))?(?:\s+(\w+))?(?:\s*:\s*[\w:]+)?\s*\{`)
	classRe     = regexp.MustCompile(
		`^(?P<TEMPLATE>(?:template\s*<.*?>\s*)?(?:requires\s+.+?\s*)?)` +
			`(?:class|struct)\s+(?P<NAME>\w+)(?:\s*<.*?>)?(?:\s+final)?` +
			`(?:\s*:\s*` + baseSpecifier + `(?:\s*,\s*` + baseSpecifier + `)*)?\s*\{`)
)

const baseSpecifier = `(?:(?:public|protected|private|virtual)\s+)*[\w:]+(?:<.*?>)?`

func classifyNamespace(src string) (Construct, bool, error) {
	m := namespaceRe.FindStringSubmatchIndex(src)
	if m == nil {
		return Construct{}, false, nil
	}
	open := m[1] - 1
	body, span, err := ExtractScope(src, open)
	if err != nil {
		return Construct{}, false, err
	}
	c := Construct{
		Kind:     KindNamespace,
		Text:     strings.TrimSpace(src[:open]),
		HasBody:  true,
		Body:     body,
		Consumed: open + span,
	}
	if m[2] >= 0 {
		c.Name = src[m[2]:m[3]]
	}
	return c, true, nil
}

func classifyEnum(src string) (Construct, bool, error) {
	m := enumRe.FindStringSubmatchIndex(src)
	if m == nil {
		return Construct{}, false, nil
	}
	open := m[1] - 1
	body, span, err := ExtractScope(src, open)
	if err != nil {
		return Construct{}, false, err
	}
	end, ok := skipSemicolon(src, open+span)
	if !ok {
		return Construct{}, false, unterminated("enum", src)
	}
	return Construct{
		Kind:     KindEnum,
		Text:     src[:end],
		Name:     submatch(src, m, 1),
		HasBody:  true,
		Body:     body,
		Consumed: end,
	}, true, nil
}

func classifyClass(src string) (Construct, bool, error) {
	m := classRe.FindStringSubmatchIndex(src)
	if m == nil {
		return Construct{}, false, nil
	}
	open := m[1] - 1
	body, span, err := ExtractScope(src, open)
	if err != nil {
		return Construct{}, false, err
	}
	end, ok := skipSemicolon(src, open+span)
	if !ok {
		return Construct{}, false, unterminated("class", src)
	}
	templ := src[m[2]:m[3]]
	return Construct{
		Kind:     KindClass,
		Text:     strings.TrimSpace(src[:open]),
		Name:     src[m[4]:m[5]],
		Template: strings.Contains(templ, "template"),
		HasBody:  true,
		Body:     body,
		Consumed: end,
	}, true, nil
}

var (
	constructorHeadRe = regexp.MustCompile(`^(?P<PREMOD>(?:(?:virtual|explicit|constexpr)\s+)*)(?P<NAME>~?\w+)\s*\(`)
	constructorTailRe = regexp.MustCompile(`^(?:\s*noexcept)?(?:\s*=\s*(?:delete|default))?`)
	initializerRe     = regexp.MustCompile(`^\s*[\w:]+(?:<.*?>)?\s*`)
)

func classifyConstructor(src string) (Construct, bool, error) {
	m := constructorHeadRe.FindStringSubmatchIndex(src)
	if m == nil {
		return Construct{}, false, nil
	}
	paramsStart := m[1] - 1
	paramsEnd := matchParens(src, paramsStart)
	if paramsEnd < 0 {
		return Construct{}, false, nil
	}
	tailEnd := paramsEnd + len(constructorTailRe.FindString(src[paramsEnd:]))

	c := Construct{
		Kind:          KindConstructor,
		PreModifiers:  src[m[2]:m[3]],
		Name:          src[m[4]:m[5]],
		Params:        src[paramsStart:paramsEnd],
		PostModifiers: src[paramsEnd:tailEnd],
	}
	c.Text = src[m[4]:tailEnd]

	pos := tailEnd
	if initEnd, ok := scanInitList(src, pos); ok {
		c.InitList = src[pos:initEnd]
		pos = initEnd
	}
	return finishDefinition(src, pos, c)
}

// scanInitList accepts ": member(args), base{args}" starting at pos and
// returns the index just past the last initializer.
func scanInitList(src string, pos int) (int, bool) {
	i := skipSpace(src, pos)
	if i >= len(src) || src[i] != ':' || (i+1 < len(src) && src[i+1] == ':') {
		return 0, false
	}
	i++
	for {
		name := initializerRe.FindString(src[i:])
		if name == "" {
			return 0, false
		}
		i += len(name)
		if i >= len(src) {
			return 0, false
		}
		var end int
		switch src[i] {
		case '(':
			end = matchParens(src, i)
		case '{':
			_, span, err := ExtractScope(src, i)
			if err != nil {
				return 0, false
			}
			end = i + span
		default:
			return 0, false
		}
		if end < 0 {
			return 0, false
		}
		i = end
		next := skipSpace(src, i)
		if next < len(src) && src[next] == ',' {
			i = next + 1
			continue
		}
		return i, true
	}
}

var (
	functionHeadRe = regexp.MustCompile(
		`^(?P<ATTR>(?:\[\[[^\]]*\]\]\s*)*)` +
			`(?P<PREMOD>(?:(?:template\s*<.*?>|const|constexpr|virtual|inline|static|explicit|friend)\s+)*)` +
			`(?:(?P<CONV>operator\s+[\w:]+(?:<.*?>)?\s*[&*]*)` +
			`|(?P<RET>(?:[\w:]+(?:<.*?>)?\s+)*[\w:]+(?:<.*?>)?(?:\s*[&*]+\s*|\s+))` +
			`(?P<NAME>operator\s*` + overloadableOperator + `|\w+))\s*\(`)
	functionTailRe = regexp.MustCompile(
		`^(?P<POSTMOD>(?:\s*(?:noexcept|const|&&|&))*)` +
			`(?P<VIRTSPEC>(?:\s+(?:override|final))*)` +
			`(?P<PURE>\s*=\s*(?:delete|default|0))?`)
	// Friend functions defined inside a class are implicitly inline.
	inlineModifierRe = regexp.MustCompile(`\b(?:inline|template|friend)\b`)
)

const overloadableOperator = `(?:\(\)|\[\]|<=>|<<=|>>=|<<|>>|==|!=|<=|>=|\+\+|--|\+=|-=|\*=|/=|%=|&=|\|=|\^=|&&|\|\||->\*|->|[=<>+\-*/%!~&|^,])`

func classifyFunction(src string) (Construct, bool, error) {
	m := functionHeadRe.FindStringSubmatchIndex(src)
	if m == nil {
		return Construct{}, false, nil
	}
	paramsStart := m[1] - 1
	paramsEnd := matchParens(src, paramsStart)
	if paramsEnd < 0 {
		return Construct{}, false, nil
	}
	t := functionTailRe.FindStringSubmatchIndex(src[paramsEnd:])
	group := func(idx int) string {
		if t[idx] < 0 {
			return ""
		}
		return src[paramsEnd+t[idx] : paramsEnd+t[idx+1]]
	}

	c := Construct{
		Kind:          KindFunction,
		Attributes:    submatch(src, m, 1),
		PreModifiers:  submatch(src, m, 2),
		ReturnType:    submatch(src, m, 4),
		Params:        src[paramsStart:paramsEnd],
		PostModifiers: group(2),
		Specifiers:    group(4),
		PureSpecifier: group(6),
	}
	if conv := submatch(src, m, 3); conv != "" {
		c.Name = strings.TrimRight(conv, " \t\n")
	} else {
		c.Name = submatch(src, m, 5)
	}
	tailEnd := paramsEnd + t[1]
	c.Text = src[:tailEnd]
	c.Inline = inlineModifierRe.MatchString(c.PreModifiers)
	return finishDefinition(src, tailEnd, c)
}

// finishDefinition completes a constructor or function construct at pos:
// either a body in braces or a terminating ';'.
func finishDefinition(src string, pos int, c Construct) (Construct, bool, error) {
	i := skipSpace(src, pos)
	if i < len(src) && src[i] == '{' {
		body, span, err := ExtractScope(src, i)
		if err != nil {
			return Construct{}, false, err
		}
		c.HasBody = true
		c.Body = body
		c.Consumed = i + span
		if end, ok := skipSemicolon(src, c.Consumed); ok {
			c.Consumed = end
		}
		return c, true, nil
	}
	if i < len(src) && src[i] == ';' {
		c.Consumed = i + 1
		return c, true, nil
	}
	return Construct{}, false, nil
}

func submatch(src string, m []int, group int) string {
	if m[2*group] < 0 {
		return ""
	}
	return src[m[2*group]:m[2*group+1]]
}

func skipSpace(src string, pos int) int {
	for pos < len(src) && isSpace(src[pos]) {
		pos++
	}
	return pos
}

func skipSemicolon(src string, pos int) (int, bool) {
	i := skipSpace(src, pos)
	if i < len(src) && src[i] == ';' {
		return i + 1, true
	}
	return pos, false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func unterminated(what, src string) error {
	prefix := src
	if len(prefix) > maxReportedPrefix {
		prefix = prefix[:maxReportedPrefix]
	}
	return errors.AddContext(
		errors.Newf(errors.CodeUnsupportedConstruct, "%s definition is not terminated by ';'", what),
		errors.CtxPrefix, prefix,
	)
}
