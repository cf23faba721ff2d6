package run

import (
	"fmt"
	"io"
	"sort"

	"github.com/botlabs-gg/bulkmod/common/config"
	"github.com/jedib0t/go-pretty/table"
)

// GenConfigDocs writes a table of every registered config option
func GenConfigDocs(w io.Writer) {
	keys := make([]string, 0, len(config.Singleton.Options))
	for k := range config.Singleton.Options {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Env", "Type", "Default", "Description"})

	for _, k := range keys {
		v := config.Singleton.Options[k]

		typeStr := ""
		def := ""
		switch d := v.DefaultValue.(type) {
		case string:
			typeStr = "string"
			def = d
		case bool:
			typeStr = "true/false"
			def = fmt.Sprint(d)
		case int, uint, float32, float64, int8, int16, int32, int64, uint8, uint16, uint32, uint64:
			typeStr = "number"
			def = fmt.Sprint(d)
		}

		t.AppendRow(table.Row{config.EnvKey(v.Name), typeStr, def, v.Description})
	}

	t.Render()
}
