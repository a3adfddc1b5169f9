package acquisition

import (
	"fmt"

	"singalong/internal/services"
	"singalong/internal/services/ytdlp"
)

var (
	// ErrInvalidReference means yt-dlp could not resolve the reference to a video.
	ErrInvalidReference = fmt.Errorf("%w: not a downloadable video reference", services.ErrValidation)
	// ErrDuplicateJob means a job for the same video is queued or running.
	ErrDuplicateJob = fmt.Errorf("%w: a download for this video is already pending", services.ErrConflict)
	// ErrAlreadyInCatalog means the video was downloaded before.
	ErrAlreadyInCatalog = fmt.Errorf("%w: video already in library", services.ErrConflict)
	ErrBinaryMissing    = ytdlp.ErrBinaryMissing
)
