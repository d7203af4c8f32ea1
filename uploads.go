package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/pawnest/adoptions_backend/config"
	"github.com/pawnest/adoptions_backend/models"
	"github.com/pawnest/adoptions_backend/utils"
	"github.com/sirupsen/logrus"
)

const maxUploadSizeBytes int64 = 5 * 1024 * 1024

func thumbnailObjectKey(objectKey string) string {
	dir := path.Dir(objectKey)
	filename := path.Base(objectKey)
	return path.Join(dir, "thumbnails", filename)
}

// uploadPetPhotoHandler accepts a multipart image, stores the original and a
// 200px-wide thumbnail in GCS, and records both URLs on the pet.
func uploadPetPhotoHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		if !requireShelterStaff(c) {
			return
		}
		petId, ok := pathId(c)
		if !ok {
			return
		}
		if _, err := models.GetPet(c.Request.Context(), petId); err != nil {
			respondError(c, err)
			return
		}

		fileHeader, err := c.FormFile("photo")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
			return
		}
		if fileHeader.Size > maxUploadSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 5MB limit"})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read photo"})
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxUploadSizeBytes+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read photo"})
			return
		}
		if int64(len(data)) > maxUploadSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 5MB limit"})
			return
		}

		objectKey := fmt.Sprintf("pets/%d/%s%s", petId, utils.GenerateUniqueFilename(), path.Ext(fileHeader.Filename))
		photoURL, err := utils.UploadImageToGCS(c.Request.Context(), objectKey, data)
		if err != nil {
			config.LogError(logger, "uploads.go", "uploadPetPhotoHandler", "upload original", objectKey, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		img, err := imaging.Decode(bytes.NewReader(data))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not decode image"})
			return
		}
		thumbnail := imaging.Resize(img, 200, 0, imaging.Lanczos)

		var buf bytes.Buffer
		if err := imaging.Encode(&buf, thumbnail, imaging.JPEG); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not encode thumbnail"})
			return
		}

		thumbnailKey := thumbnailObjectKey(objectKey)
		thumbnailURL, err := utils.UploadImageToGCS(c.Request.Context(), thumbnailKey, buf.Bytes())
		if err != nil {
			config.LogError(logger, "uploads.go", "uploadPetPhotoHandler", "upload thumbnail", thumbnailKey, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		pet, err := models.SetPetPhoto(c.Request.Context(), petId, photoURL, thumbnailURL)
		if err != nil {
			// orphaned objects are cleaned up out of band
			logger.WithFields(logrus.Fields{
				"field":  "uploadPetPhotoHandler",
				"pet_id": petId,
				"object": objectKey,
			}).Warn("photo uploaded but pet update failed: " + err.Error())
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"photo_url":     pet.PhotoURL,
			"thumbnail_url": pet.ThumbnailURL,
		})
	}
}
