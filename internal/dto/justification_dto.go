package dto

// JustificationSubmitRequest is the multipart text part of a justification.
type JustificationSubmitRequest struct {
	Justification string `form:"justification" validate:"required,max=4000"`
}

// JustificationReviewRequest is sent by an administrator reviewing a justification.
type JustificationReviewRequest struct {
	Status  string `json:"status" validate:"required,oneof=APPROVED REJECTED"`
	Comment string `json:"comment" validate:"max=2000"`
}

// JustificationDocument describes a validated attachment, independent of where it is stored.
type JustificationDocument struct {
	MimeType   string `json:"mime_type"`
	SizeBytes  int64  `json:"size_bytes"`
	StorageRef string `json:"storage_ref"`
}
