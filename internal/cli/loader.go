package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// Definition declares one document type: its registry key and the table
// its rows live in.
type Definition struct {
	Name  string
	Table string
}

// LoadDefinitions loads document type definitions from a directory of CUE
// files. Definitions live under the top-level "document" struct:
//
//	document: {
//		widget: { table: "widgets" }
//		order:  { table: "orders" }
//	}
//
// The result is sorted by type name so registry construction and schema
// generation are deterministic.
func LoadDefinitions(dir string) ([]Definition, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("type definitions directory not found: %s", dir)
	}
	if err != nil {
		return nil, fmt.Errorf("access type definitions directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	cueFiles, err := findCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	if len(cueFiles) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("load CUE files: %w", inst.Err)
	}
	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("build CUE value: %w", err)
	}

	docsVal := value.LookupPath(cue.ParsePath("document"))
	if !docsVal.Exists() {
		return nil, fmt.Errorf("no document definitions found in %s", dir)
	}
	iter, err := docsVal.Fields()
	if err != nil {
		return nil, fmt.Errorf("iterate document definitions: %w", err)
	}

	var defs []Definition
	for iter.Next() {
		name := iter.Label()
		var body struct {
			Table string `json:"table"`
		}
		if err := iter.Value().Decode(&body); err != nil {
			return nil, fmt.Errorf("document.%s: %w", name, err)
		}
		if body.Table == "" {
			return nil, fmt.Errorf("document.%s: missing table", name)
		}
		defs = append(defs, Definition{Name: name, Table: body.Table})
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("no document definitions found in %s", dir)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs, nil
}

func findCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
