package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/capapp/cap-backend/internal/extraction"
	"github.com/capapp/cap-backend/internal/llm"
	"github.com/capapp/cap-backend/internal/logger"
	"github.com/capapp/cap-backend/internal/pipeline"
	"github.com/capapp/cap-backend/internal/profile"
)

// smartJobsPayload mirrors the mobile client's form. The same field
// names work as JSON keys and as multipart field names.
type smartJobsPayload struct {
	Poste       string               `json:"poste"`
	Competences []string             `json:"competences"`
	SavoirEtre  []string             `json:"savoir_etre"`
	SavoirFaire []string             `json:"savoir_faire"`
	Experiences []profile.Experience `json:"experiences"`
	Ville       string               `json:"ville"`
	Elargir     bool                 `json:"elargir"`
}

func (p *smartJobsPayload) toProfile() profile.CandidateProfile {
	return profile.CandidateProfile{
		TargetRole: p.Poste,
		Skills:     p.Competences,
		SoftSkills: p.SavoirEtre,
		KnowHow:    p.SavoirFaire,
		Experience: p.Experiences,
		Location:   p.Ville,
	}
}

func (s *Server) handleSmartJobs(w http.ResponseWriter, r *http.Request) {
	payload, cv, err := s.decodeSmartJobs(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.smartJobs.Run(r.Context(), pipeline.CVJobsRequest{
		CV:      cv,
		Form:    payload.toProfile(),
		Broaden: payload.Elargir,
	})
	if err != nil {
		s.writeReasoningFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleCVUpload stops after profile extraction; the client uses it to
// prefill the form from a CV before launching a search.
func (s *Server) handleCVUpload(w http.ResponseWriter, r *http.Request) {
	payload, cv, err := s.decodeSmartJobs(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if cv == nil {
		writeError(w, http.StatusBadRequest, "champ cvFile manquant")
		return
	}

	extracted, err := s.texts.Extract(r.Context(), *cv)
	if err != nil {
		var failed *extraction.ExtractionFailedError
		if errors.As(err, &failed) {
			writeDegraded(w, "unreadable_document",
				"Le document n'a pas pu être lu, ni par sa couche texte ni par reconnaissance optique.")
			return
		}
		s.logger.Error("cv extraction failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "extraction du texte impossible")
		return
	}

	candidate, err := s.profiles.Extract(r.Context(), extracted.Text, payload.toProfile())
	if err != nil {
		s.writeReasoningFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"profil":       candidate,
		"texte_source": extracted.Provenance,
	})
}

// writeReasoningFailure maps reasoning-service errors onto degraded 200
// responses, surfacing the raw reply when it could not be parsed.
func (s *Server) writeReasoningFailure(w http.ResponseWriter, err error) {
	var malformed *llm.MalformedOutputError
	if errors.As(err, &malformed) {
		s.logger.Error("reasoning reply unusable", zap.String("raw", logger.Truncate(malformed.Raw, 500)))
		writeJSON(w, http.StatusOK, map[string]string{
			"degradation": "reasoning_failed",
			"message":     "Le service d'analyse a répondu dans un format inexploitable. Réessayez dans quelques instants.",
			"brut":        logger.Truncate(malformed.Raw, 500),
		})
		return
	}
	s.logger.Error("reasoning call failed", zap.Error(err))
	writeDegraded(w, "reasoning_unavailable",
		"Le service d'analyse est momentanément indisponible. Réessayez dans quelques instants.")
}

// decodeSmartJobs reads the form from JSON or multipart. The CV file is
// optional in both encodings.
func (s *Server) decodeSmartJobs(r *http.Request) (*smartJobsPayload, *extraction.RawDocument, error) {
	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if contentType == "multipart/form-data" {
		return s.decodeMultipart(r)
	}

	payload := &smartJobsPayload{}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(payload); err != nil && err != io.EOF {
		return nil, nil, errors.New("corps de requête JSON invalide")
	}
	return payload, nil, nil
}

func (s *Server) decodeMultipart(r *http.Request) (*smartJobsPayload, *extraction.RawDocument, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, nil, errors.New("formulaire multipart invalide")
	}

	payload := &smartJobsPayload{
		Poste:       r.FormValue("poste"),
		Competences: splitList(r.FormValue("competences")),
		SavoirEtre:  splitList(r.FormValue("savoir_etre")),
		SavoirFaire: splitList(r.FormValue("savoir_faire")),
		Ville:       r.FormValue("ville"),
	}
	if raw := r.FormValue("elargir"); raw != "" {
		payload.Elargir, _ = strconv.ParseBool(raw)
	}
	if raw := r.FormValue("experiences"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &payload.Experiences); err != nil {
			return nil, nil, errors.New("champ experiences: JSON invalide")
		}
	}

	cv, err := readUpload(r, "cvFile")
	if err != nil {
		return nil, nil, err
	}
	return payload, cv, nil
}

// readUpload buffers one optional multipart file. A missing field is not
// an error; callers decide whether the file is required.
func readUpload(r *http.Request, field string) (*extraction.RawDocument, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, errors.New("fichier illisible")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return nil, errors.New("fichier illisible")
	}
	return &extraction.RawDocument{
		Filename:  header.Filename,
		MediaType: header.Header.Get("Content-Type"),
		Data:      data,
	}, nil
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
