package translator

import (
	"cppmsplit/internal/core/errors"
	"cppmsplit/internal/shared/util"
	"path/filepath"
)

const outputPerm = 0o644

func renderHeader(id Identity, body string) string {
	guard := id.Guard()
	return "#ifndef " + guard + "\n#define " + guard + "\n\n" + body + "\n#endif\n"
}

func renderSource(id Identity, body string) string {
	return `#include "` + id.HeaderFile() + "\"\n\n" + body + "\n"
}

// WriteOutputs writes the header and source of res into dir and records
// their paths on res. Both files are staged before either is renamed into
// place.
func WriteOutputs(res *Result, dir string) error {
	headerPath := filepath.Join(dir, res.Identity.HeaderFile())
	sourcePath := filepath.Join(dir, res.Identity.SourceFile())

	err := util.CommitAll(map[string][]byte{
		headerPath: []byte(res.Header),
		sourcePath: []byte(res.Source),
	}, outputPerm)
	if err != nil {
		return errors.AddContext(errors.Wrap(err, errors.CodeIOFailure, "write outputs"), errors.CtxOperation, "write")
	}

	res.HeaderPath = headerPath
	res.SourcePath = sourcePath
	return nil
}
