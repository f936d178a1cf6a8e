package protocol

// Detection is one recognized object in a processed frame.
type Detection struct {
	ClassName  string  `json:"class_name"`
	Confidence float64 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
}

// BBox is a normalized bounding box; all four corners are always present,
// even when zero.
type BBox struct {
	XMin float64 `json:"x_min"`
	YMin float64 `json:"y_min"`
	XMax float64 `json:"x_max"`
	YMax float64 `json:"y_max"`
}

// AIResults wraps the detection list so the JSON shape matches
// "ai_results.detections" exactly.
type AIResults struct {
	Detections []Detection `json:"detections"`
}

// Response is the outgoing JSON shape for every processed frame, on both
// the connection-oriented and UDP transports. It is always emitted with
// Detections as an empty (never nil) slice when there are no detections,
// so the JSON array is never omitted.
type Response struct {
	Success         bool      `json:"success"`
	Message         string    `json:"message"`
	FrameID         string    `json:"frame_id"`
	FrameSequence   uint64    `json:"frame_sequence"`
	AIResults       AIResults `json:"ai_results"`
	OriginalWidth   int32     `json:"original_width"`
	OriginalHeight  int32     `json:"original_height"`
}

// NewResponse builds a Response with a non-nil (possibly empty) detections
// slice, so callers never have to remember the empty-vs-nil rule.
func NewResponse(success bool, message, frameID string, frameSeq uint64, width, height int32, detections []Detection) *Response {
	if detections == nil {
		detections = []Detection{}
	}
	return &Response{
		Success:        success,
		Message:        message,
		FrameID:        frameID,
		FrameSequence:  frameSeq,
		AIResults:      AIResults{Detections: detections},
		OriginalWidth:  width,
		OriginalHeight: height,
	}
}
