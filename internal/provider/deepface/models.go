package deepface

// DetectorSkip tells DeepFace the image already is a face crop.
const DetectorSkip = "skip"

// RepresentRequest for POST /represent
type RepresentRequest struct {
	Img              string `json:"img"`               // base64 encoded image
	Model            string `json:"model"`             // "Dlib" yields 128-d descriptors
	Detector         string `json:"detector"`          // "dlib", "opencv", "retinaface", "skip"
	EnforceDetection bool   `json:"enforce_detection"` // false: no face is an empty result, not a 400
}

// RepresentResponse from POST /represent
type RepresentResponse struct {
	Results []RepresentResult `json:"results"`
}

type RepresentResult struct {
	Embedding      []float64  `json:"embedding"`
	FacialArea     FacialArea `json:"facial_area"`
	FaceConfidence float64    `json:"face_confidence"`
}

type FacialArea struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}
