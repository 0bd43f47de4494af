package controllers

import (
	"errors"
	"net/http"

	"github.com/angelmondragon/miyf-books/api/responses"
	"github.com/angelmondragon/miyf-books/api/validators"
	"github.com/angelmondragon/miyf-books/internal/files"
	"github.com/angelmondragon/miyf-books/internal/receipts"
	pkgerrors "github.com/angelmondragon/miyf-books/pkg/errors"
	"github.com/angelmondragon/miyf-books/pkg/logger"
)

const (
	multipartOverhead  = 1 << 20
	multipartMaxMemory = 8 << 20
)

type renameRequest struct {
	Name string `json:"name" validate:"nonblank,max=200"`
}

// DriveUpload accepts a multipart "file" part plus optional transactionKey,
// description and displayName fields.
func DriveUpload(svc receipts.Service, fileSvc files.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || fileSvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "drive service unavailable"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		maxBytes := fileSvc.MaxBytes()
		if r.ContentLength > maxBytes+multipartOverhead {
			responses.WriteError(r.Context(), logg, w, tooLarge(maxBytes))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
		if err := r.ParseMultipartForm(multipartMaxMemory); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				responses.WriteError(r.Context(), logg, w, tooLarge(maxBytes))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart body"))
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "file is required").
				WithDetails(map[string]string{"file": "is required"}))
			return
		}
		defer file.Close()

		result, err := svc.Upload(r.Context(), actor, receipts.UploadInput{
			TransactionKey: validators.SanitizeString(r.FormValue("transactionKey"), 64),
			FileName:       header.Filename,
			Size:           header.Size,
			Content:        file,
			Description:    validators.SanitizeString(r.FormValue("description"), 500),
			DisplayName:    validators.SanitizeString(r.FormValue("displayName"), 200),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func DriveCheck(svc files.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "drive service unavailable"))
			return
		}
		id, err := validators.PathParam(r, "fileId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		file, err := svc.Check(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, file)
	}
}

func DriveList(svc files.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "drive service unavailable"))
			return
		}
		list, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func DriveRename(svc files.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "drive service unavailable"))
			return
		}
		id, err := validators.PathParam(r, "fileId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req renameRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		file, err := svc.Rename(r.Context(), id, req.Name)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, file)
	}
}

func DriveDelete(svc files.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "drive service unavailable"))
			return
		}
		id, err := validators.PathParam(r, "fileId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"fileId": id, "status": "deleted"})
	}
}

func tooLarge(maxBytes int64) error {
	return pkgerrors.New(pkgerrors.CodeTooLarge, "file too large").
		WithDetails(map[string]any{"maxBytes": maxBytes})
}
