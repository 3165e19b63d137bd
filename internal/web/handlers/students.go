package handlers

import (
	"image"
	"log"
	"net/http"

	_ "image/jpeg"
	_ "image/png"

	"github.com/kozaktomas/smart-attendance/internal/detect"
	"github.com/kozaktomas/smart-attendance/internal/roster"
)

// maxEnrollmentImageSize caps uploaded enrollment photos at 16 MB.
const maxEnrollmentImageSize = 16 << 20

// StudentsHandler serves the enrolled roster and enrollment uploads.
type StudentsHandler struct {
	roster   *roster.Store
	detector detect.Detector
}

// NewStudentsHandler creates a new students handler.
func NewStudentsHandler(store *roster.Store, detector detect.Detector) *StudentsHandler {
	return &StudentsHandler{roster: store, detector: detector}
}

// StudentResponse is an enrolled student without the raw encodings.
type StudentResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Encodings int    `json:"encodings"`
}

// List returns all enrolled students ordered by ID.
func (h *StudentsHandler) List(w http.ResponseWriter, r *http.Request) {
	identities := h.roster.AllIdentities()
	resp := make([]StudentResponse, 0, len(identities))
	for _, id := range identities {
		resp = append(resp, StudentResponse{
			ID:        id.ID,
			Name:      id.DisplayName,
			Encodings: len(id.Encodings),
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count":    len(resp),
		"students": resp,
	})
}

// Enroll registers a new student from a multipart form with a "name"
// field and an "image" file. The photo must contain exactly one face.
func (h *StudentsHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxEnrollmentImageSize); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	name := r.FormValue("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "could not decode image")
		return
	}

	detections, err := h.detector.Detect(r.Context(), img)
	if err != nil {
		log.Printf("Enrollment detection failed for %s: %v", sanitizeForLog(name), err)
		respondError(w, http.StatusBadGateway, "face detection failed")
		return
	}
	if len(detections) == 0 {
		respondError(w, http.StatusUnprocessableEntity, "no face found in the image")
		return
	}
	if len(detections) > 1 {
		respondError(w, http.StatusUnprocessableEntity, "image must contain exactly one face")
		return
	}

	identity, err := h.roster.Enroll(r.Context(), name, detections[0].Encoding)
	if err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}

	log.Printf("Enrolled student %s (%s)", sanitizeForLog(name), identity.ID)
	respondJSON(w, http.StatusCreated, StudentResponse{
		ID:        identity.ID,
		Name:      identity.DisplayName,
		Encodings: len(identity.Encodings),
	})
}

// AddPhoto appends another reference photo to an enrolled student.
func (h *StudentsHandler) AddPhoto(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxEnrollmentImageSize); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	name := r.FormValue("name")
	id, ok := h.roster.FindByName(name)
	if !ok {
		respondError(w, http.StatusNotFound, "student not found")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "could not decode image")
		return
	}

	detections, err := h.detector.Detect(r.Context(), img)
	if err != nil {
		respondError(w, http.StatusBadGateway, "face detection failed")
		return
	}
	if len(detections) != 1 {
		respondError(w, http.StatusUnprocessableEntity, "image must contain exactly one face")
		return
	}

	if err := h.roster.AddEncoding(r.Context(), id, detections[0].Encoding); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": id})
}
