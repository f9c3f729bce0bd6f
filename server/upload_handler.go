package server

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Daskott/kinfolk/server/gstorage"
	"github.com/Daskott/kinfolk/utils"
	"github.com/google/uuid"
)

const (
	PHOTO_FORM_FIELD = "photo"
	PHOTOS_PREFIX    = "photos"
)

var photoExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// uploadPhoto stores an image for a person record and replies with its url.
// Images go to the storage bucket when photo uploads are enabled, otherwise
// to the local uploads directory served under /uploads/.
func uploadPhoto(rw http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(rw, r.Body, MAX_BODY_BYTES)

	file, _, err := r.FormFile(PHOTO_FORM_FIELD)
	if err != nil {
		writeError(rw, http.StatusBadRequest, "%v is required: %v", PHOTO_FORM_FIELD, err)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(rw, http.StatusBadRequest, "%v", err)
		return
	}

	extension, ok := photoExtensions[http.DetectContentType(content)]
	if !ok {
		writeError(rw, http.StatusBadRequest, "only jpeg, png, gif and webp images are allowed")
		return
	}

	name := uuid.NewString() + extension
	familyID := requestUser(r).FamilyID

	var url string
	if storage != nil && isEnabled(configValues.Google.Storage.EnablePhotoUploads) {
		url, err = uploadPhotoToBucket(r, familyID, name, content)
	} else {
		url, err = savePhotoLocally(familyID, name, content)
	}
	if err != nil {
		writeError(rw, http.StatusInternalServerError, "%v", err)
		return
	}

	writeData(rw, map[string]string{"url": url}, http.StatusCreated)
}

func uploadPhotoToBucket(r *http.Request, familyID, name string, content []byte) (string, error) {
	bucket := configValues.Google.Storage.Bucket
	object := gstorage.ObjectName(path.Join(configValues.Google.Storage.Prefix, PHOTOS_PREFIX, familyID), name)

	err := storage.UploadObject(r.Context(), bucket, object, bytes.NewReader(content))
	if err != nil {
		return "", err
	}

	return gstorage.PublicURL(bucket, object), nil
}

func savePhotoLocally(familyID, name string, content []byte) (string, error) {
	dir := filepath.Join(uploadsDir, familyID)
	if err := utils.CreateDirIfNotExist(dir); err != nil {
		return "", err
	}

	if err := os.WriteFile(filepath.Join(dir, name), content, 0644); err != nil {
		return "", err
	}

	return "/" + strings.Join([]string{UPLOADS_DIR_NAME, familyID, name}, "/"), nil
}
