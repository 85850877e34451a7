package storage

import (
	"encoding/json"
	"io"
)

type ExportData struct {
	Run    RunMetadata `json:"run"`
	Thermo *Thermo     `json:"thermo"`
}

// ExportJSON writes a run and its series as one indented JSON document.
func ExportJSON(w io.Writer, meta RunMetadata, thermo *Thermo) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ExportData{Run: meta, Thermo: thermo})
}
