package models

// UploadRequest is the payload for creating a new share.
type UploadRequest struct {
	FileName    string `json:"fileName" binding:"required,max=255"`
	FileSize    int64  `json:"fileSize" binding:"required,gt=0"`
	ContentType string `json:"contentType" binding:"required,max=255"`
	Password    string `json:"password,omitempty"`
}

// UploadResponse returns the share handle and the presigned upload URL.
type UploadResponse struct {
	ShareID   string `json:"shareId"`
	ShareURL  string `json:"shareUrl"`
	UploadURL string `json:"uploadUrl"`
	ExpiresAt int64  `json:"expiresAt"`
	FileName  string `json:"fileName"`
	FileSize  int64  `json:"fileSize"`
}

// FileInfoResponse is the public metadata view of a share.
type FileInfoResponse struct {
	FileName            string `json:"fileName"`
	FileSize            int64  `json:"fileSize"`
	UploadedAt          int64  `json:"uploadedAt"`
	ExpiresAt           int64  `json:"expiresAt"`
	IsPasswordProtected bool   `json:"isPasswordProtected"`
}

// DownloadRequest carries the optional password for download step 1 and
// for deletes.
type DownloadRequest struct {
	Password string `json:"password,omitempty"`
}

// DownloadTokenResponse is the result of download step 1. Deliberately
// carries no transfer URL.
type DownloadTokenResponse struct {
	DownloadToken string `json:"downloadToken"`
	FileName      string `json:"fileName"`
	FileSize      int64  `json:"fileSize"`
	MimeType      string `json:"mimeType"`
}

// DownloadURLResponse is the result of redeeming a download token.
type DownloadURLResponse struct {
	DownloadURL string `json:"downloadUrl"`
	FileName    string `json:"fileName"`
	FileSize    int64  `json:"fileSize"`
	MimeType    string `json:"mimeType"`
}

// DeleteResponse acknowledges a completed delete.
type DeleteResponse struct {
	Success bool `json:"success"`
}
