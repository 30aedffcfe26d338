package dto

type GalleryItemResponse struct {
	ID         string `json:"id" example:"gal_3f9a1c0d2b7e4a55"`
	Kind       string `json:"kind" example:"video" enums:"video,photo"`
	FileName   string `json:"file_name" example:"rover_1718035200000.mp4"`
	SizeBytes  int64  `json:"size_bytes" example:"482133"`
	Frames     int    `json:"frames,omitempty" example:"120"`
	DurationMs int64  `json:"duration_ms,omitempty" example:"6000"`
	SessionID  string `json:"session_id,omitempty" example:"0b3e2b9e-5d0c-4b8f-9a8e-2f1c3d4e5f60"`
	URL        string `json:"url" example:"/v1/gallery/gal_3f9a1c0d2b7e4a55"`
	CreatedAt  string `json:"created_at" example:"2024-06-10T15:00:00Z"`
}

type GalleryListResponse struct {
	Items  []GalleryItemResponse `json:"items"`
	Limit  int                   `json:"limit" example:"50"`
	Offset int                   `json:"offset" example:"0"`
}
