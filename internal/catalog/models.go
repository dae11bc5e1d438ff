package catalog

import "time"

// Entry is one catalog row: a single archive file tracked on disk.
//
// FilePath is the join key between the filesystem and the store and is
// unique. A nil Thumbnail simply means "not yet generated". VolumeNumber
// and VolumeRange are never both set.
type Entry struct {
	ID         int64     `json:"id"`
	FilePath   string    `json:"filePath"`
	FileName   string    `json:"fileName"`
	FileSize   int64     `json:"fileSize"`
	FileType   string    `json:"fileType"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`

	// Parsed from the filename by the scanner; all optional.
	Title          *string `json:"title,omitempty"`
	OriginalAuthor *string `json:"originalAuthor,omitempty"`
	Artist         *string `json:"artist,omitempty"`
	AuthorReading  *string `json:"authorReading,omitempty"`
	VolumeNumber   *int    `json:"volumeNumber,omitempty"`
	VolumeRange    *string `json:"volumeRange,omitempty"`

	// Supplied by an external enrichment client; all optional.
	Genre       *string `json:"genre,omitempty"`
	Publisher   *string `json:"publisher,omitempty"`
	PublishDate *string `json:"publishDate,omitempty"`
	Tags        *string `json:"tags,omitempty"`
	AIProcessed bool    `json:"aiProcessed"`

	Thumbnail            []byte     `json:"-"`
	ThumbnailGeneratedAt *time.Time `json:"thumbnailGeneratedAt,omitempty"`

	Rating *int `json:"rating,omitempty"`
}

// HasThumbnail reports whether a thumbnail blob is attached to this entry.
// For entries loaded via GetAllLight this reflects the stored state at load
// time, carried in the thumbnail_generated_at column.
func (e *Entry) HasThumbnail() bool {
	return len(e.Thumbnail) > 0 || e.ThumbnailGeneratedAt != nil
}

// PathUpdate rewrites the location columns of one entry after a physical
// move. Used exclusively by the relocation engine.
type PathUpdate struct {
	ID      int64
	NewPath string
}

// SearchCriteria is a conjunctive filter over the catalog. Zero values
// mean "no constraint" for every field.
type SearchCriteria struct {
	// Text matches as a substring against title, original author, artist
	// and file name.
	Text string

	// Processed filters on the ai_processed flag when non-nil.
	Processed *bool

	// ModifiedAfter / ModifiedBefore bound the modified_at column.
	ModifiedAfter  *time.Time
	ModifiedBefore *time.Time

	Genre     string
	Publisher string

	// Rating matches exactly when non-nil.
	Rating *int
}

// FolderStats is the per-folder slice of Statistics.
type FolderStats struct {
	Folder     string `json:"folder"`
	FileCount  int    `json:"fileCount"`
	TotalBytes int64  `json:"totalBytes"`
}

// Stats aggregates the whole catalog.
type Stats struct {
	TotalFiles     int           `json:"totalFiles"`
	TotalBytes     int64         `json:"totalBytes"`
	ProcessedFiles int           `json:"processedFiles"`
	WithThumbnail  int           `json:"withThumbnail"`
	Folders        []FolderStats `json:"folders"`
}

// OptimizeResult reports space reclamation.
type OptimizeResult struct {
	BytesBefore int64         `json:"bytesBefore"`
	BytesAfter  int64         `json:"bytesAfter"`
	Duration    time.Duration `json:"duration"`
}
