package handlers

import (
	"net/http"
	"strings"

	"recipes-backend/application/commands/bus"
	"recipes-backend/application/queries"
	querybus "recipes-backend/application/queries/bus"
	"recipes-backend/pkg/common"
	pkgerrors "recipes-backend/pkg/errors"

	"go.uber.org/zap"
)

// ImageHandler issues image upload URLs
type ImageHandler struct {
	base
}

// NewImageHandler creates a new image handler
func NewImageHandler(commandBus *bus.CommandBus, queryBus *querybus.QueryBus, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *ImageHandler {
	return &ImageHandler{base: newBase(commandBus, queryBus, errs, logger)}
}

// UploadURLRequest names the extension of the image to upload
type UploadURLRequest struct {
	ImageExt string `json:"imageExt"`
}

// GetUploadURL handles POST and GET /recipe/{recipeId}/image-upload-url.
// GET reads the extension from the imageExt query parameter.
func (h *ImageHandler) GetUploadURL(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	recipeID, err := pathParam(r, "recipeId")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req UploadURLRequest
	if r.Method == http.MethodGet {
		req.ImageExt = r.URL.Query().Get("imageExt")
	} else if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	upload, err := ask[*queries.ImageUploadURL](r.Context(), &h.base, queries.GetImageUploadURLQuery{
		RecipeID: recipeID,
		UserID:   userID,
		ImageExt: strings.ToLower(strings.TrimPrefix(strings.TrimSpace(req.ImageExt), ".")),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, upload)
}
