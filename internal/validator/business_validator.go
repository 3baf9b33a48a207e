package validator

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/taleemhub/monitoring-service/internal/models"
)

// BusinessValidator handles business rule validation
type BusinessValidator struct {
	validate *validator.Validate
}

// NewBusinessValidator creates a new business validator
func NewBusinessValidator() *BusinessValidator {
	validate := validator.New()

	bv := &BusinessValidator{validate: validate}
	bv.registerBusinessRules()

	return bv
}

// Validate validates business rules for any struct
func (bv *BusinessValidator) Validate(s interface{}) ValidationErrors {
	err := bv.validate.Struct(s)
	if err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ValidateRequestCreate validates data request creation business rules
func (bv *BusinessValidator) ValidateRequestCreate(req *RequestCreateRequest) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)
	errors = append(errors, bv.validateFieldTemplate(req.Fields)...)

	if req.DueDate != nil && req.DueDate.Before(time.Now()) {
		errors = append(errors, ValidationError{
			Field:   "due_date",
			Message: "must be in the future",
			Value:   req.DueDate,
			Rule:    "business_logic",
		})
	}

	return errors
}

// ValidateRequestUpdate validates data request update business rules
func (bv *BusinessValidator) ValidateRequestUpdate(req *RequestUpdateRequest, existing *models.DataRequest) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)

	if req.DueDate != nil && req.DueDate.Before(time.Now()) {
		errors = append(errors, ValidationError{
			Field:   "due_date",
			Message: "must be in the future",
			Value:   req.DueDate,
			Rule:    "business_logic",
		})
	}

	// Completed requests only accept archival; nothing else may change.
	if existing.Status == models.RequestCompleted {
		mutating := req.Title != nil || req.Description != nil || req.DueDate != nil || req.Priority != nil
		if mutating {
			errors = append(errors, ValidationError{
				Field:   "status",
				Message: "completed requests can only be archived",
				Value:   existing.Status,
				Rule:    "business_logic",
			})
		}
	}

	return errors
}

// ValidateSubmit checks an assignee's responses against the request's field
// template: every referenced field must exist, every required field must be
// answered, and each value must suit its field type.
func (bv *BusinessValidator) ValidateSubmit(fields []models.RequestField, req *SubmitResponsesRequest) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)
	if errors.HasErrors() {
		return errors
	}

	fieldsByID := make(map[string]models.RequestField, len(fields))
	for _, f := range fields {
		fieldsByID[f.ID] = f
	}

	answered := make(map[string]bool, len(req.Responses))
	for i, resp := range req.Responses {
		field, ok := fieldsByID[resp.FieldID]
		if !ok {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("responses[%d].field_id", i),
				Message: "does not belong to this request",
				Value:   resp.FieldID,
				Rule:    "business_logic",
			})
			continue
		}

		if answered[resp.FieldID] {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("responses[%d].field_id", i),
				Message: "is answered more than once",
				Value:   resp.FieldID,
				Rule:    "business_logic",
			})
			continue
		}
		answered[resp.FieldID] = true

		errors = append(errors, bv.validateResponseValue(i, field, resp)...)
	}

	for _, f := range fields {
		if f.Required && !answered[f.ID] {
			errors = append(errors, ValidationError{
				Field:   "responses",
				Message: fmt.Sprintf("required field %q is missing a response", f.Name),
				Value:   f.ID,
				Rule:    "business_logic",
			})
		}
	}

	return errors
}

// ValidateDelegate validates a delegation request payload
func (bv *BusinessValidator) ValidateDelegate(req *DelegateRequest) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)

	seen := make(map[string]bool, len(req.AssigneeIDs))
	for i, id := range req.AssigneeIDs {
		if seen[id] {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("assignee_ids[%d]", i),
				Message: "is duplicated",
				Value:   id,
				Rule:    "business_logic",
			})
		}
		seen[id] = true
	}

	return errors
}

// registerBusinessRules registers custom business rule validators
func (bv *BusinessValidator) registerBusinessRules() {
	// Title validation (1-200 characters after trimming)
	bv.validate.RegisterValidation("request_title", func(fl validator.FieldLevel) bool {
		title := strings.TrimSpace(fl.Field().String())
		return len(title) >= 1 && len(title) <= 200
	})

	// Field type validation
	bv.validate.RegisterValidation("field_type", func(fl validator.FieldLevel) bool {
		fType := fl.Field().String()
		for _, vt := range models.AllFieldTypes {
			if models.FieldType(fType) == vt {
				return true
			}
		}
		return false
	})

	// Priority validation
	bv.validate.RegisterValidation("request_priority", func(fl validator.FieldLevel) bool {
		priority := fl.Field().String()
		validPriorities := []models.RequestPriority{models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityUrgent}
		for _, vp := range validPriorities {
			if models.RequestPriority(priority) == vp {
				return true
			}
		}
		return false
	})

	// Due date validation (must be in future)
	bv.validate.RegisterValidation("future_date", func(fl validator.FieldLevel) bool {
		field := fl.Field()

		if field.Kind() == reflect.Ptr && field.IsNil() {
			return true // Optional field
		}

		var dueDate time.Time
		if field.Kind() == reflect.Ptr {
			dueDate = field.Elem().Interface().(time.Time)
		} else {
			dueDate = field.Interface().(time.Time)
		}

		return dueDate.After(time.Now())
	})
}

// validateFieldTemplate checks the field definitions as a group
func (bv *BusinessValidator) validateFieldTemplate(fields []FieldDefRequest) ValidationErrors {
	var errors ValidationErrors

	seen := make(map[string]bool, len(fields))
	for i, f := range fields {
		name := strings.ToLower(strings.TrimSpace(f.Name))
		if seen[name] {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("fields[%d].name", i),
				Message: "is duplicated",
				Value:   f.Name,
				Rule:    "business_logic",
			})
		}
		seen[name] = true
	}

	return errors
}

// validateResponseValue checks a single answer against its field's type
func (bv *BusinessValidator) validateResponseValue(index int, field models.RequestField, resp FieldResponseRequest) ValidationErrors {
	var errors ValidationErrors

	switch field.Type {
	case models.FieldNumber:
		if len(resp.Value) > 0 {
			var n json.Number
			if err := json.Unmarshal(resp.Value, &n); err != nil {
				errors = append(errors, ValidationError{
					Field:   fmt.Sprintf("responses[%d].value", index),
					Message: "must be a number",
					Value:   string(resp.Value),
					Rule:    "business_logic",
				})
			}
		} else if field.Required {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("responses[%d].value", index),
				Message: "is required",
				Rule:    "business_logic",
			})
		}

	case models.FieldText:
		if field.Required && len(resp.Value) == 0 {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("responses[%d].value", index),
				Message: "is required",
				Rule:    "business_logic",
			})
		}

	case models.FieldFile, models.FieldPhoto, models.FieldVoiceNote:
		if field.Required && (resp.FileURL == nil || *resp.FileURL == "") {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("responses[%d].file_url", index),
				Message: "is required for this field type",
				Rule:    "business_logic",
			})
		}
	}

	return errors
}
