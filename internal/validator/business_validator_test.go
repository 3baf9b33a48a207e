package validator

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/taleemhub/monitoring-service/internal/models"
)

func futureDate() *time.Time {
	d := time.Now().Add(48 * time.Hour)
	return &d
}

func validCreateRequest() *RequestCreateRequest {
	return &RequestCreateRequest{
		Title:   "Enrollment verification",
		DueDate: futureDate(),
		Fields: []FieldDefRequest{
			{Name: "Enrolled students", Type: models.FieldNumber, Required: true},
			{Name: "Remarks", Type: models.FieldText},
		},
		AssigneeIDs: []string{"user-1"},
	}
}

func fieldNames(errs ValidationErrors) []string {
	names := make([]string, 0, len(errs))
	for _, e := range errs {
		names = append(names, e.Field)
	}
	return names
}

func TestValidateRequestCreate(t *testing.T) {
	bv := NewBusinessValidator()

	t.Run("valid request passes", func(t *testing.T) {
		assert.Empty(t, bv.ValidateRequestCreate(validCreateRequest()))
	})

	t.Run("whitespace-only title fails", func(t *testing.T) {
		req := validCreateRequest()
		req.Title = "   "
		errs := bv.ValidateRequestCreate(req)
		require.True(t, errs.HasErrors())
	})

	t.Run("overlong title fails", func(t *testing.T) {
		req := validCreateRequest()
		req.Title = strings.Repeat("x", 201)
		assert.True(t, bv.ValidateRequestCreate(req).HasErrors())
	})

	t.Run("past due date fails", func(t *testing.T) {
		req := validCreateRequest()
		past := time.Now().Add(-time.Hour)
		req.DueDate = &past
		errs := bv.ValidateRequestCreate(req)
		require.True(t, errs.HasErrors())
		assert.Contains(t, fieldNames(errs), "due_date")
	})

	t.Run("nil due date is allowed", func(t *testing.T) {
		req := validCreateRequest()
		req.DueDate = nil
		assert.Empty(t, bv.ValidateRequestCreate(req))
	})

	t.Run("unknown field type fails", func(t *testing.T) {
		req := validCreateRequest()
		req.Fields[0].Type = "spreadsheet"
		assert.True(t, bv.ValidateRequestCreate(req).HasErrors())
	})

	t.Run("duplicate field names fail case-insensitively", func(t *testing.T) {
		req := validCreateRequest()
		req.Fields = []FieldDefRequest{
			{Name: "Remarks", Type: models.FieldText},
			{Name: " remarks ", Type: models.FieldText},
		}
		errs := bv.ValidateRequestCreate(req)
		require.True(t, errs.HasErrors())
		assert.Contains(t, fieldNames(errs), "fields[1].name")
	})

	t.Run("empty template fails", func(t *testing.T) {
		req := validCreateRequest()
		req.Fields = nil
		assert.True(t, bv.ValidateRequestCreate(req).HasErrors())
	})

	t.Run("no assignees fails", func(t *testing.T) {
		req := validCreateRequest()
		req.AssigneeIDs = nil
		assert.True(t, bv.ValidateRequestCreate(req).HasErrors())
	})

	t.Run("bad priority fails", func(t *testing.T) {
		req := validCreateRequest()
		req.Priority = "critical"
		assert.True(t, bv.ValidateRequestCreate(req).HasErrors())
	})
}

func TestValidateRequestUpdate(t *testing.T) {
	bv := NewBusinessValidator()
	active := &models.DataRequest{Status: models.RequestActive}
	completed := &models.DataRequest{Status: models.RequestCompleted}

	t.Run("title change on active request passes", func(t *testing.T) {
		title := "Revised title"
		assert.Empty(t, bv.ValidateRequestUpdate(&RequestUpdateRequest{Title: &title}, active))
	})

	t.Run("completed request rejects content changes", func(t *testing.T) {
		title := "Revised title"
		errs := bv.ValidateRequestUpdate(&RequestUpdateRequest{Title: &title}, completed)
		require.True(t, errs.HasErrors())
		assert.Contains(t, errs[0].Message, "archived")
	})

	t.Run("completed request can still be archived", func(t *testing.T) {
		archived := true
		assert.Empty(t, bv.ValidateRequestUpdate(&RequestUpdateRequest{Archived: &archived}, completed))
	})

	t.Run("past due date fails", func(t *testing.T) {
		past := time.Now().Add(-time.Hour)
		assert.True(t, bv.ValidateRequestUpdate(&RequestUpdateRequest{DueDate: &past}, active).HasErrors())
	})
}

func TestValidateSubmit(t *testing.T) {
	bv := NewBusinessValidator()

	fields := []models.RequestField{
		{ID: "f-number", Name: "Enrolled students", Type: models.FieldNumber, Required: true},
		{ID: "f-text", Name: "Remarks", Type: models.FieldText},
		{ID: "f-photo", Name: "Classroom photo", Type: models.FieldPhoto, Required: true},
	}

	url := "https://files.example.com/class.jpg"
	valid := func() *SubmitResponsesRequest {
		return &SubmitResponsesRequest{
			Responses: []FieldResponseRequest{
				{FieldID: "f-number", Value: datatypes.JSON(`412`)},
				{FieldID: "f-photo", FileURL: &url},
			},
		}
	}

	t.Run("valid submission passes", func(t *testing.T) {
		assert.Empty(t, bv.ValidateSubmit(fields, valid()))
	})

	t.Run("unknown field id fails", func(t *testing.T) {
		req := valid()
		req.Responses[0].FieldID = "f-ghost"
		errs := bv.ValidateSubmit(fields, req)
		require.True(t, errs.HasErrors())
		assert.Contains(t, errs[0].Message, "does not belong")
	})

	t.Run("duplicate answer fails", func(t *testing.T) {
		req := valid()
		req.Responses = append(req.Responses, FieldResponseRequest{FieldID: "f-number", Value: datatypes.JSON(`1`)})
		errs := bv.ValidateSubmit(fields, req)
		require.True(t, errs.HasErrors())
		assert.Contains(t, errs[0].Message, "more than once")
	})

	t.Run("missing required field fails", func(t *testing.T) {
		req := &SubmitResponsesRequest{
			Responses: []FieldResponseRequest{
				{FieldID: "f-text", Value: datatypes.JSON(`"only remarks"`)},
			},
		}
		errs := bv.ValidateSubmit(fields, req)
		require.True(t, errs.HasErrors())
		names := make([]string, 0, len(errs))
		for _, e := range errs {
			names = append(names, e.Message)
		}
		assert.Contains(t, strings.Join(names, "; "), "Enrolled students")
	})

	t.Run("non-numeric value for number field fails", func(t *testing.T) {
		req := valid()
		req.Responses[0].Value = datatypes.JSON(`"four hundred"`)
		errs := bv.ValidateSubmit(fields, req)
		require.True(t, errs.HasErrors())
		assert.Contains(t, errs[0].Message, "number")
	})

	t.Run("required photo without file url fails", func(t *testing.T) {
		req := valid()
		req.Responses[1].FileURL = nil
		errs := bv.ValidateSubmit(fields, req)
		require.True(t, errs.HasErrors())
		assert.Contains(t, errs[0].Field, "file_url")
	})

	t.Run("empty submission fails", func(t *testing.T) {
		assert.True(t, bv.ValidateSubmit(fields, &SubmitResponsesRequest{}).HasErrors())
	})
}

func TestValidateDelegate(t *testing.T) {
	bv := NewBusinessValidator()

	t.Run("distinct targets pass", func(t *testing.T) {
		assert.Empty(t, bv.ValidateDelegate(&DelegateRequest{AssigneeIDs: []string{"a", "b"}}))
	})

	t.Run("duplicate targets fail", func(t *testing.T) {
		errs := bv.ValidateDelegate(&DelegateRequest{AssigneeIDs: []string{"a", "a"}})
		require.True(t, errs.HasErrors())
		assert.Equal(t, "assignee_ids[1]", errs[0].Field)
	})

	t.Run("empty target list fails", func(t *testing.T) {
		assert.True(t, bv.ValidateDelegate(&DelegateRequest{}).HasErrors())
	})
}
