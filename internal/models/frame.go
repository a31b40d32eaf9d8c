package models

// CapturedFrame is one frame kept from a video, produced either by the live
// capture controller or the batch segmenter. Immutable once created.
type CapturedFrame struct {
	Timestamp  float64 `json:"timestamp"`
	Image      []byte  `json:"-"`
	Sharpness  float64 `json:"sharpness"`
	SceneDelta float64 `json:"scene_delta"`
}

// SceneSegment is the ordered frame set for one video. Timestamps are
// strictly increasing and the count is bounded by the segmenter's limits.
type SceneSegment struct {
	VideoID string          `json:"video_id"`
	Frames  []CapturedFrame `json:"frames"`
}

// StepText is one externally authored procedure step. Indices form a dense
// 0..N-1 sequence whose order tracks chronological progress through the video.
type StepText struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}
