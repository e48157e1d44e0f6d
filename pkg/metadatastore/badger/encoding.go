package badger

import (
	"encoding/json"

	"github.com/lockbook/lockbook-core/pkg/lbmodel"
)

// Key Namespace
//
// BadgerDB is a flat key-value store; a single prefix is enough here since
// this store holds exactly one kind of record.
//
//	Prefix  Key format     Value
//	"f:"    f:<file-id>    SignedFile (JSON)

const prefixFile = "f:"

func keyFile(id lbmodel.FileID) []byte {
	return append([]byte(prefixFile), []byte(id.String())...)
}

func encodeFile(file lbmodel.SignedFile) ([]byte, error) {
	return json.Marshal(file)
}

func decodeFile(raw []byte) (lbmodel.SignedFile, error) {
	var file lbmodel.SignedFile
	err := json.Unmarshal(raw, &file)
	return file, err
}
