package syncclient

import (
	"time"

	"github.com/invopop/jsonschema"

	"github.com/lockbook/lockbook-core/pkg/lbmodel"
)

// lbmodel carries no JSON tags by design, so the wire shapes live here:
// a plain struct-for-struct mirror the envelope payload marshals, kept
// next to the conversions so a field added to one side is easy to catch
// against the other.

type wireFileType struct {
	Tag    int            `json:"tag"`
	Target lbmodel.FileID `json:"target,omitempty"`
}

type wireSecretFileName struct {
	EncryptedValue []byte `json:"encrypted_value"`
	Hmac           []byte `json:"hmac"`
}

type wireOwner struct {
	PublicKey []byte `json:"public_key"`
}

type wireFolderAccessKey struct {
	Sealed []byte `json:"sealed"`
}

type wireUserAccessKey struct {
	Recipient wireOwner          `json:"recipient"`
	Sealed    []byte             `json:"sealed"`
	Mode      lbmodel.AccessMode `json:"mode"`
	Deleted   bool               `json:"deleted"`
}

type wireFileMetadata struct {
	ID              lbmodel.FileID      `json:"id"`
	Type            wireFileType        `json:"type"`
	Parent          lbmodel.FileID      `json:"parent"`
	Name            wireSecretFileName  `json:"name"`
	Owner           wireOwner           `json:"owner"`
	IsDeleted       bool                `json:"is_deleted"`
	DocumentHmac    []byte              `json:"document_hmac,omitempty"`
	UserAccessKeys  []wireUserAccessKey `json:"user_access_keys,omitempty"`
	FolderAccessKey wireFolderAccessKey `json:"folder_access_key"`
	LastModified    time.Time           `json:"last_modified"`
	LastModifiedBy  wireOwner           `json:"last_modified_by"`
}

type wireSignedFile struct {
	Metadata  wireFileMetadata `json:"metadata"`
	Signer    wireOwner        `json:"signer"`
	Signature []byte           `json:"signature"`
	Timestamp time.Time        `json:"timestamp"`
}

func toWireOwner(o lbmodel.Owner) wireOwner { return wireOwner{PublicKey: o.PublicKey} }

func fromWireOwner(o wireOwner) lbmodel.Owner { return lbmodel.Owner{PublicKey: o.PublicKey} }

func toWireSignedFile(f lbmodel.SignedFile) wireSignedFile {
	m := f.Metadata
	wm := wireFileMetadata{
		ID:     m.ID,
		Type:   wireFileType{Tag: int(m.Type.Tag), Target: m.Type.Target},
		Parent: m.Parent,
		Name: wireSecretFileName{
			EncryptedValue: m.Name.EncryptedValue,
			Hmac:           m.Name.Hmac,
		},
		Owner:           toWireOwner(m.Owner),
		IsDeleted:       m.IsDeleted,
		FolderAccessKey: wireFolderAccessKey{Sealed: m.FolderAccessKey.Sealed},
		LastModified:    m.LastModified,
		LastModifiedBy:  toWireOwner(m.LastModifiedBy),
	}
	if m.DocumentHmac != nil {
		h := *m.DocumentHmac
		wm.DocumentHmac = h[:]
	}
	for _, k := range m.UserAccessKeys {
		wm.UserAccessKeys = append(wm.UserAccessKeys, wireUserAccessKey{
			Recipient: toWireOwner(k.Recipient),
			Sealed:    k.Sealed,
			Mode:      k.Mode,
			Deleted:   k.Deleted,
		})
	}
	return wireSignedFile{
		Metadata:  wm,
		Signer:    toWireOwner(f.Signer),
		Signature: f.Signature,
		Timestamp: f.Timestamp,
	}
}

func fromWireSignedFile(w wireSignedFile) lbmodel.SignedFile {
	wm := w.Metadata
	m := lbmodel.FileMetadata{
		ID:     wm.ID,
		Type:   lbmodel.FileType{Tag: lbmodel.FileTypeTag(wm.Type.Tag), Target: wm.Type.Target},
		Parent: wm.Parent,
		Name: lbmodel.SecretFileName{
			EncryptedValue: wm.Name.EncryptedValue,
			Hmac:           wm.Name.Hmac,
		},
		Owner:           fromWireOwner(wm.Owner),
		IsDeleted:       wm.IsDeleted,
		FolderAccessKey: lbmodel.FolderAccessKey{Sealed: wm.FolderAccessKey.Sealed},
		LastModified:    wm.LastModified,
		LastModifiedBy:  fromWireOwner(wm.LastModifiedBy),
	}
	if len(wm.DocumentHmac) == 32 {
		var h lbmodel.DocumentHmac
		copy(h[:], wm.DocumentHmac)
		m.DocumentHmac = &h
	}
	for _, k := range wm.UserAccessKeys {
		m.UserAccessKeys = append(m.UserAccessKeys, lbmodel.UserAccessKey{
			Recipient: fromWireOwner(k.Recipient),
			Sealed:    k.Sealed,
			Mode:      k.Mode,
			Deleted:   k.Deleted,
		})
	}
	return lbmodel.SignedFile{
		Metadata:  m,
		Signer:    fromWireOwner(w.Signer),
		Signature: w.Signature,
		Timestamp: w.Timestamp,
	}
}

var envelopeSchemaReflector = &jsonschema.Reflector{ExpandedStruct: true, DoNotReference: true}

// EnvelopeSchema generates the JSON Schema for the signed request envelope
// every syncclient call sends, reflected off the same envelope type the
// (de)serialization code uses so documentation can't drift from the wire
// format it describes. Server operators and third-party client authors use
// this to validate request bodies without hand-maintaining a schema.
func EnvelopeSchema() *jsonschema.Schema {
	return envelopeSchemaReflector.Reflect(&envelope{})
}
