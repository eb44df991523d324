package translator

import (
	"cppmsplit/internal/core/errors"
	"regexp"
	"strings"
)

var moduleDeclarationRe = regexp.MustCompile(`^(?:export\s*)?module\s*([a-zA-Z0-9_.]+)(?::([a-zA-Z0-9_]+))?;$`)

// Identity names a translation unit: the module it belongs to, its partition
// (if any) and the base name shared by the generated header and source files.
type Identity struct {
	Module     string
	Partition  string
	HeaderBase string
}

// ModuleBase is the module name with dots replaced, without the partition.
// Sibling partitions are included relative to it.
func (id Identity) ModuleBase() string {
	return strings.ReplaceAll(id.Module, ".", "_")
}

// Guard is the include-guard macro of the generated header.
func (id Identity) Guard() string {
	return "__" + strings.ToUpper(id.HeaderBase) + "__"
}

func (id Identity) HeaderFile() string {
	return id.HeaderBase + ".hpp"
}

func (id Identity) SourceFile() string {
	return id.HeaderBase + ".cpp"
}

// ResolveIdentity finds the first module or partition declaration line.
func ResolveIdentity(src string) (Identity, error) {
	for _, line := range strings.Split(src, "\n") {
		m := moduleDeclarationRe.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		return newIdentity(m[1], m[2]), nil
	}
	return Identity{}, errors.New(errors.CodeMissingModuleDeclaration, "unit has no module or module partition declaration")
}

func newIdentity(module, partition string) Identity {
	id := Identity{Module: module, Partition: partition}
	id.HeaderBase = id.ModuleBase()
	if partition != "" {
		id.HeaderBase += "_" + partition
	}
	return id
}
