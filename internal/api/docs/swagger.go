package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
	"github.com/go-swagno/swagno/components/parameter"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code    string `json:"code" example:"VALIDATION_FAILED"`
	Message string `json:"message" example:"Request validation failed"`
}

// EmptyResponse represents no content response (204)
type EmptyResponse struct{}

type EnrollRequest struct {
	Name        string `json:"name" example:"Maria Silva"`
	Contact     string `json:"contact" example:"+55 11 91234-5678"`
	TimeoutSecs int    `json:"timeout_secs,omitempty" example:"8"`
}

type IdentityData struct {
	Name         string `json:"name" example:"Maria Silva"`
	Contact      string `json:"contact" example:"+55 11 91234-5678"`
	ImageRef     string `json:"image_ref" example:"Maria_Silva_1709280000.jpg"`
	HasEmbedding bool   `json:"has_embedding" example:"true"`
	CreatedAt    string `json:"created_at" example:"2024-03-01T08:00:00Z"`
	UpdatedAt    string `json:"updated_at" example:"2024-03-01T08:00:00Z"`
}

type EnrollResponse struct {
	Identity       IdentityData `json:"identity"`
	Sharpness      float64      `json:"sharpness" example:"214.7"`
	ShotsEvaluated int          `json:"shots_evaluated" example:"3"`
}

type IdentityListResponse struct {
	Identities []IdentityData `json:"identities"`
	Total      int            `json:"total" example:"1"`
}

type AttendanceEventData struct {
	ID           string `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	IdentityName string `json:"identity_name" example:"Maria Silva"`
	Contact      string `json:"contact" example:"+55 11 91234-5678"`
	Timestamp    string `json:"timestamp" example:"2024-03-01T08:02:10-03:00"`
}

type AttendanceListResponse struct {
	Events []AttendanceEventData `json:"events"`
	Total  int                   `json:"total" example:"1"`
}

type BoxData struct {
	Top    int `json:"top" example:"120"`
	Left   int `json:"left" example:"340"`
	Bottom int `json:"bottom" example:"300"`
	Right  int `json:"right" example:"520"`
}

type AnnotationData struct {
	Box       BoxData `json:"box"`
	Kind      string  `json:"kind" example:"matched"`
	Label     string  `json:"label" example:"Maria Silva"`
	Name      string  `json:"name,omitempty" example:"Maria Silva"`
	Distance  float64 `json:"distance,omitempty" example:"0.31"`
	Reason    string  `json:"reason,omitempty" example:""`
	Persisted bool    `json:"persisted,omitempty" example:"true"`
}

type AnnotationSetData struct {
	FrameSeq    uint64           `json:"frame_seq" example:"1042"`
	FrameWidth  int              `json:"frame_width" example:"1280"`
	FrameHeight int              `json:"frame_height" example:"720"`
	ComputedAt  string           `json:"computed_at" example:"2024-03-01T08:02:10-03:00"`
	Annotations []AnnotationData `json:"annotations"`
	Status      string           `json:"status" example:"Maria Silva marked present at 08:02:10"`
}

type FrameStatsData struct {
	Published uint64 `json:"published" example:"5120"`
	Dropped   uint64 `json:"dropped" example:"3900"`
}

type LiveStatusResponse struct {
	Camera        string            `json:"camera" example:"streaming"`
	CameraReopens uint64            `json:"camera_reopens" example:"0"`
	Frames        FrameStatsData    `json:"frames"`
	Annotations   AnnotationSetData `json:"annotations"`
}

type HealthResponse struct {
	Status  string `json:"status" example:"ready"`
	Version string `json:"version,omitempty" example:"0.3.0"`
	Store   string `json:"store,omitempty" example:"ok"`
	Camera  string `json:"camera,omitempty" example:"streaming"`
}

func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "Chamada API",
		Version:     "v1.0.0",
		Description: "Face recognition attendance: live enrollment, identity management and the attendance journal",
		Host:        "localhost:3000",
		Path:        "/v1",
	})

	internalError := response.New(ErrorResponse{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}, "500", "Internal Server Error")

	endpoints := []*endpoint.EndPoint{
		// POST /v1/enrollments
		endpoint.New(
			endpoint.POST,
			"/enrollments",
			endpoint.WithTags("Enrollment"),
			endpoint.WithSummary("Enroll from the live camera"),
			endpoint.WithDescription("Captures frames for up to timeout_secs and stores the sharpest qualifying face. Re-enrolling a name replaces the record."),
			endpoint.WithBody(EnrollRequest{}),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(EnrollResponse{}, "201", "Identity enrolled"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "BAD_REQUEST", Message: "Invalid request"}, "400", "Bad Request"),
				response.New(ErrorResponse{Code: "ENROLLMENT_BUSY", Message: "Another enrollment is in progress"}, "409", "Conflict"),
				response.New(ErrorResponse{Code: "ENROLLMENT_NO_QUALIFYING_SHOT", Message: "No usable face was captured before the enrollment deadline"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "name is required"}, "422", "Unprocessable Entity"),
				internalError,
			}),
		),

		// POST /v1/enrollments/image
		endpoint.New(
			endpoint.POST,
			"/enrollments/image",
			endpoint.WithTags("Enrollment"),
			endpoint.WithSummary("Enroll from an uploaded photo"),
			endpoint.WithDescription("Multipart form with name, contact and a JPEG or PNG image (max 10MB)."),
			endpoint.WithConsume([]mime.MIME{mime.MIME("multipart/form-data")}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(EnrollResponse{}, "201", "Identity enrolled"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "INVALID_IMAGE", Message: "Invalid image format or corrupted file"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "NO_FACE_DETECTED", Message: "No face detected in the image"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "LOW_QUALITY", Message: "Face rejected: too_blurry"}, "422", "Unprocessable Entity"),
				internalError,
			}),
		),

		// GET /v1/identities
		endpoint.New(
			endpoint.GET,
			"/identities",
			endpoint.WithTags("Identities"),
			endpoint.WithSummary("List enrolled identities"),
			endpoint.WithDescription("Returns every stored identity, including records waiting for re-embedding."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(IdentityListResponse{}, "200", "OK"),
			}),
			endpoint.WithErrors([]response.Response{internalError}),
		),

		// GET /v1/identities/{name}
		endpoint.New(
			endpoint.GET,
			"/identities/{name}",
			endpoint.WithTags("Identities"),
			endpoint.WithSummary("Get an identity"),
			endpoint.WithDescription("Looks up one identity by its exact name."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("name", parameter.Path, parameter.WithDescription("Identity name, URL encoded")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(IdentityData{}, "200", "OK"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "IDENTITY_NOT_FOUND", Message: "Identity not found"}, "404", "Not Found"),
				internalError,
			}),
		),

		// DELETE /v1/identities/{name}
		endpoint.New(
			endpoint.DELETE,
			"/identities/{name}",
			endpoint.WithTags("Identities"),
			endpoint.WithSummary("Delete an identity"),
			endpoint.WithDescription("Removes the record and its reference image. Past attendance events are kept."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("name", parameter.Path, parameter.WithDescription("Identity name, URL encoded")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(EmptyResponse{}, "204", "Deleted"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "IDENTITY_NOT_FOUND", Message: "Identity not found"}, "404", "Not Found"),
				response.New(ErrorResponse{Code: "ENROLLMENT_BUSY", Message: "Another enrollment is in progress"}, "409", "Conflict"),
				internalError,
			}),
		),

		// GET /v1/attendance
		endpoint.New(
			endpoint.GET,
			"/attendance",
			endpoint.WithTags("Attendance"),
			endpoint.WithSummary("Recent attendance events"),
			endpoint.WithDescription("Newest first."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.IntParam("limit", parameter.Query, parameter.WithDescription("Maximum number of events (default: 50, max: 500)")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(AttendanceListResponse{}, "200", "OK"),
			}),
			endpoint.WithErrors([]response.Response{internalError}),
		),

		// GET /v1/live/status
		endpoint.New(
			endpoint.GET,
			"/live/status",
			endpoint.WithTags("Live"),
			endpoint.WithSummary("Camera and recognition status"),
			endpoint.WithDescription("Camera state, frame counters and the last annotation set. The same set is pushed over /v1/ws as annotations.updated."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(LiveStatusResponse{}, "200", "OK"),
			}),
		),

		// GET /v1/live/frame.jpg
		endpoint.New(
			endpoint.GET,
			"/live/frame.jpg",
			endpoint.WithTags("Live"),
			endpoint.WithSummary("Latest camera frame"),
			endpoint.WithDescription("JPEG of the most recent frame; X-Frame-Seq carries its sequence number."),
			endpoint.WithProduce([]mime.MIME{mime.MIME("image/jpeg")}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(EmptyResponse{}, "200", "JPEG image"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "FRAME_UNAVAILABLE", Message: "No camera frame available"}, "503", "Service Unavailable"),
			}),
		),
	}

	sw.AddEndpoints(endpoints)

	return sw
}
