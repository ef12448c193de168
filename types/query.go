package types

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Validater interface {
	Validate() map[string]string
}

type QueryParams struct {
	Text       string `json:"query" validate:"required"`
	TopK       int    `json:"top_k" validate:"gte=0,lte=100"`
	DocumentID *int64 `json:"document_id,omitempty" validate:"omitempty,gt=0"`
}

type AskParams struct {
	Question   string `json:"question" validate:"required"`
	TopK       int    `json:"top_k" validate:"gte=0,lte=100"`
	DocumentID *int64 `json:"document_id,omitempty" validate:"omitempty,gt=0"`
}

// IngestParams describes one ingestion request after text extraction.
type IngestParams struct {
	Title    string
	Filename string `validate:"required"`
	Pages    []string
	Chunking ChunkConfig
}

// ChunkParams are the user-facing chunking overrides of an upload. Overlap
// is nil when not given, so that zero can be requested.
type ChunkParams struct {
	MaxChars int    `form:"max_chars" validate:"gte=0"`
	Overlap  *int   `form:"overlap" validate:"omitempty,gte=0"`
	Strategy string `form:"strategy" validate:"omitempty,oneof=sentence window"`
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func (params *QueryParams) Validate() map[string]string {
	return structErrors(params)
}

func (params *AskParams) Validate() map[string]string {
	return structErrors(params)
}

func (params *IngestParams) Validate() map[string]string {
	return structErrors(params)
}

func (params *ChunkParams) Validate() map[string]string {
	return structErrors(params)
}

// Apply overlays the given fields of params onto base.
func (params ChunkParams) Apply(base ChunkConfig) ChunkConfig {
	if params.MaxChars > 0 {
		base.MaxChars = params.MaxChars
	}
	if params.Overlap != nil {
		base.Overlap = *params.Overlap
	}
	if params.Strategy != "" {
		base.Strategy = ChunkStrategy(params.Strategy)
	}
	return base
}

func structErrors(params any) map[string]string {
	if err := validate.Struct(params); err != nil {
		errs, ok := err.(validator.ValidationErrors)
		if !ok {
			return map[string]string{"params": err.Error()}
		}
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: http.StatusUnprocessableEntity,
		Errors: errors,
	}
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}
