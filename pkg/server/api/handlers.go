package api

import (
	"encoding/json"
	"net/http"

	"github.com/lockbook/lockbook-core/pkg/lbmodel"
)

// Each request* / response* pair below is the server-side payload shape
// for one pkg/syncclient endpoint method; the field names and JSON tags
// must match the client's own request/response structs exactly.

type newAccountRequest struct {
	Username  string         `json:"username"`
	PublicKey []byte         `json:"public_key"`
	Root      wireSignedFile `json:"root"`
}

type newAccountResponse struct {
	MetadataVersion int64 `json:"metadata_version"`
}

func (s *Service) handleNewAccount(w http.ResponseWriter, r *http.Request) {
	var req newAccountRequest
	if _, err := s.readEnvelope(r, &req); err != nil {
		writeError(w, err)
		return
	}
	version, err := s.newAccount(r.Context(), req.Username, req.PublicKey, fromWireSignedFile(req.Root))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountResponse{MetadataVersion: version})
}

type getUpdatesRequest struct {
	SinceMetadataVersion int64 `json:"since_metadata_version"`
}

type getUpdatesResponse struct {
	Files    []wireSignedFile `json:"files"`
	NewSince int64            `json:"new_since"`
}

func (s *Service) handleGetUpdates(w http.ResponseWriter, r *http.Request) {
	var req getUpdatesRequest
	if _, err := s.readEnvelope(r, &req); err != nil {
		writeError(w, err)
		return
	}
	files, newSince, err := s.getUpdates(r.Context(), req.SinceMetadataVersion)
	if err != nil {
		writeError(w, err)
		return
	}
	wire := make([]wireSignedFile, 0, len(files))
	for _, f := range files {
		wire = append(wire, toWireSignedFile(f))
	}
	writeJSON(w, http.StatusOK, getUpdatesResponse{Files: wire, NewSince: newSince})
}

type upsertRequest struct {
	Updates []wireFileDiff `json:"updates"`
}

func (s *Service) handleUpsert(w http.ResponseWriter, r *http.Request) {
	var req upsertRequest
	signer, err := s.readEnvelope(r, &req)
	if err != nil {
		writeError(w, err)
		return
	}
	diffs := make([]lbmodel.FileDiff, 0, len(req.Updates))
	for _, u := range req.Updates {
		diffs = append(diffs, fromWireFileDiff(u))
	}
	if err := s.upsert(r.Context(), signer, diffs); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

type changeDocRequest struct {
	Diff       wireFileDiff `json:"diff"`
	NewContent []byte       `json:"new_content"`
}

func (s *Service) handleChangeDoc(w http.ResponseWriter, r *http.Request) {
	var req changeDocRequest
	signer, err := s.readEnvelope(r, &req)
	if err != nil {
		writeError(w, err)
		return
	}
	diff := fromWireFileDiff(req.Diff)
	if err := s.changeDoc(r.Context(), signer, diff, req.NewContent); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

type getDocRequest struct {
	ID   lbmodel.FileID `json:"id"`
	Hmac []byte         `json:"hmac"`
}

type getDocResponse struct {
	Content []byte `json:"content"`
}

func (s *Service) handleGetDoc(w http.ResponseWriter, r *http.Request) {
	var req getDocRequest
	signer, err := s.readEnvelope(r, &req)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(req.Hmac) != 32 {
		writeError(w, &wireError{code: "BAD_REQUEST", message: "hmac must be 32 bytes"})
		return
	}
	var hmac lbmodel.DocumentHmac
	copy(hmac[:], req.Hmac)
	content, err := s.getDoc(r.Context(), signer, req.ID, hmac)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, getDocResponse{Content: content})
}

type getUsageRequest struct{}

type fileUsage struct {
	ID        lbmodel.FileID `json:"id"`
	SizeBytes uint64         `json:"size_bytes"`
}

type getUsageResponse struct {
	Usages []fileUsage `json:"usages"`
	Cap    uint64      `json:"cap"`
}

func (s *Service) handleGetUsage(w http.ResponseWriter, r *http.Request) {
	var req getUsageRequest
	signer, err := s.readEnvelope(r, &req)
	if err != nil {
		writeError(w, err)
		return
	}
	usage, dataCap, err := s.getUsage(r.Context(), signer)
	if err != nil {
		writeError(w, err)
		return
	}
	usages := make([]fileUsage, 0, len(usage))
	for idStr, size := range usage {
		id, perr := lbmodel.ParseFileID(idStr)
		if perr != nil {
			continue
		}
		usages = append(usages, fileUsage{ID: id, SizeBytes: size})
	}
	writeJSON(w, http.StatusOK, getUsageResponse{Usages: usages, Cap: dataCap})
}

type getPublicKeyRequest struct {
	Username string `json:"username"`
}

type getPublicKeyResponse struct {
	Key []byte `json:"key"`
}

func (s *Service) handleGetPublicKey(w http.ResponseWriter, r *http.Request) {
	var req getPublicKeyRequest
	if _, err := s.readEnvelope(r, &req); err != nil {
		writeError(w, err)
		return
	}
	key, err := s.getPublicKey(r.Context(), req.Username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, getPublicKeyResponse{Key: key})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	we := mapError(err)
	writeJSON(w, we.httpStatus(), we.body())
}
