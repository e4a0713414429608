package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capapp/cap-backend/internal/extraction"
	"github.com/capapp/cap-backend/internal/mailbox"
	"github.com/capapp/cap-backend/internal/pipeline"
)

func (s *Server) handleDocumentUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "formulaire multipart invalide")
		return
	}

	owner, err := uuid.Parse(r.FormValue("owner_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "champ owner_id: UUID requis")
		return
	}

	doc, err := readUpload(r, "document")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if doc == nil {
		writeError(w, http.StatusBadRequest, "champ document manquant")
		return
	}

	name := r.FormValue("name")
	if name == "" {
		name = doc.Filename
	}

	result, err := s.documents.Ingest(r.Context(), pipeline.DocumentRequest{
		OwnerID:       owner,
		Name:          name,
		Raw:           doc,
		SourceChannel: pipeline.SourceUpload,
	})
	if err != nil {
		var failed *extraction.ExtractionFailedError
		if errors.As(err, &failed) {
			s.logger.Warn("document unreadable", zap.String("name", name), zap.Error(err))
			writeDegraded(w, "unreadable_document",
				"Le document n'a pas pu être lu. Vérifiez le fichier et réessayez.")
			return
		}
		s.logger.Error("document ingest failed", zap.String("name", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "archivage du document impossible")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDocumentList(w http.ResponseWriter, r *http.Request) {
	owner, err := uuid.Parse(r.URL.Query().Get("owner_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "paramètre owner_id: UUID requis")
		return
	}

	docs, err := s.archive.ListDocumentsByOwner(r.Context(), owner)
	if err != nil {
		s.logger.Error("listing documents failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lecture des documents impossible")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

type mailboxScanPayload struct {
	OwnerID string `json:"owner_id" validate:"required,uuid4"`
}

func (s *Server) handleMailboxScan(w http.ResponseWriter, r *http.Request) {
	payload := mailboxScanPayload{}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "corps de requête JSON invalide")
		return
	}
	if err := s.validate.Struct(payload); err != nil {
		writeError(w, http.StatusBadRequest, "champ owner_id: UUID requis")
		return
	}
	owner := uuid.MustParse(payload.OwnerID)

	result, err := s.documents.ScanMailbox(r.Context(), owner)
	if err != nil {
		var notConnected *mailbox.NotConnectedError
		if errors.As(err, &notConnected) {
			writeDegraded(w, "mailbox_not_connected",
				"Aucune boîte mail n'est reliée à ce compte.")
			return
		}
		s.logger.Error("mailbox scan failed", zap.Error(err))
		writeDegraded(w, "mailbox_unavailable",
			"La boîte mail n'a pas pu être consultée. Réessayez dans quelques instants.")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCachedListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 50
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "paramètre limit: entier positif requis")
			return
		}
		limit = parsed
	}

	listings, err := s.archive.SearchCachedListings(r.Context(), q.Get("motCle"), q.Get("ville"), limit)
	if err != nil {
		s.logger.Error("cached listings lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lecture du cache d'offres impossible")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"offres": listings})
}
