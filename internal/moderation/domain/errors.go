package domain

import "errors"

var (
	ErrNotFound         = errors.New("moderation_job_not_found")
	ErrInvalidPost      = errors.New("invalid_post_reference")
	ErrInvalidMediaURL  = errors.New("invalid_media_url")
	ErrInvalidVerdict   = errors.New("invalid_verdict")
	ErrInvalidSignature = errors.New("invalid_callback_signature")
	ErrAlreadyResolved  = errors.New("moderation_job_already_resolved")
)
