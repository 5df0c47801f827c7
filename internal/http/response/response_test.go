package response

import (
	"testing"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"
)

func TestOKWithData(t *testing.T) {
	data := map[string]string{"job_id": "1"}
	resp := OKWithData(data)

	assert.Equal(t, StatusOK, resp.Status)
	assert.Empty(t, resp.Error)
	assert.Equal(t, data, resp.Data)
}

func TestError(t *testing.T) {
	resp := Error("account not found")

	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, "account not found", resp.Error)
	assert.Nil(t, resp.Data)
}

func TestValidationError(t *testing.T) {
	type grant struct {
		PlanID string `validate:"omitempty,alphanum"`
		Days   int    `validate:"gte=0,max=3650"`
		Text   string `validate:"required"`
	}

	err := validator.New().Struct(grant{PlanID: "!!!", Days: 5000})
	assert.Error(t, err)

	resp := ValidationError(err.(validator.ValidationErrors))

	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Error, "field PlanID can contain only numbers and letters")
	assert.Contains(t, resp.Error, "field Days must not exceed 3650")
	assert.Contains(t, resp.Error, "field Text is a required field")
}
