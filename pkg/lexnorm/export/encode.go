package export

import (
	"encoding/json"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// DocExport is the serializable form of one aligned document.
type DocExport struct {
	DocID  string   `json:"doc_id" msgpack:"doc_id"`
	Input  []string `json:"input" msgpack:"input"`
	Output []string `json:"output" msgpack:"output"`
	Labels []string `json:"labels" msgpack:"labels"`
}

// WriteJSON writes the aligned documents as indented JSON.
func WriteJSON(w io.Writer, docs []DocExport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(docs)
}

// WriteMsgpack writes the aligned documents in the compact binary dump
// format used for project transfers.
func WriteMsgpack(w io.Writer, docs []DocExport) error {
	return msgpack.NewEncoder(w).Encode(docs)
}

// ReadMsgpack reads a binary dump written by WriteMsgpack.
func ReadMsgpack(r io.Reader) ([]DocExport, error) {
	var docs []DocExport
	if err := msgpack.NewDecoder(r).Decode(&docs); err != nil {
		return nil, err
	}
	return docs, nil
}
