package receipts

import (
	"io"

	"github.com/angelmondragon/miyf-books/pkg/drive"
)

// Receipt links one Drive file to a transaction.
type Receipt struct {
	ReceiptKey     string `json:"receiptKey"`
	TransactionKey string `json:"transactionKey"`
	FileName       string `json:"fileName"`
	FileURL        string `json:"fileUrl"`
	FileID         string `json:"fileId"`
	UploadDate     string `json:"uploadDate"`
	UploadBy       string `json:"uploadBy"`
	Description    string `json:"description"`
	DisplayName    string `json:"displayName"`
}

// CreateInput records metadata for a file that is already in Drive.
type CreateInput struct {
	TransactionKey string `json:"transactionKey" validate:"required"`
	FileName       string `json:"fileName" validate:"required"`
	FileURL        string `json:"fileUrl" validate:"required,url"`
	FileID         string `json:"fileId" validate:"required"`
	Description    string `json:"description"`
	DisplayName    string `json:"displayName"`
}

// DisplayNameInput renames a receipt for display.
type DisplayNameInput struct {
	ReceiptKey  string `json:"receiptKey" validate:"required"`
	DisplayName string `json:"displayName" validate:"required"`
}

// UploadInput is one multipart upload. TransactionKey is optional; without it
// the file is stored but no metadata row is written.
type UploadInput struct {
	TransactionKey string
	FileName       string
	Size           int64
	Content        io.Reader
	Description    string
	DisplayName    string
}

// UploadResult is the stored file and, when linked, its receipt row.
type UploadResult struct {
	FileID      string   `json:"fileId"`
	FileName    string   `json:"fileName"`
	MimeType    string   `json:"mimeType"`
	Size        int64    `json:"size"`
	ViewURL     string   `json:"viewUrl"`
	DownloadURL string   `json:"downloadUrl"`
	Receipt     *Receipt `json:"receipt,omitempty"`
}

func resultFor(file drive.File) UploadResult {
	return UploadResult{
		FileID:      file.ID,
		FileName:    file.Name,
		MimeType:    file.MimeType,
		Size:        file.Size,
		ViewURL:     file.ViewURL,
		DownloadURL: file.DownloadURL,
	}
}
