package pkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type folderInput struct {
	Name  string `json:"name" validate:"required,min=1,max=255,foldername"`
	Color string `json:"color" validate:"omitempty,color"`
}

func TestValidateFolderName(t *testing.T) {
	v := NewValidator()

	assert.Nil(t, v.Validate(folderInput{Name: "Documents"}))
	assert.Nil(t, v.Validate(folderInput{Name: "Q3 report (final)"}))

	for _, bad := range []string{"", ".", "..", "a/b", "a\\b"} {
		errs := v.Validate(folderInput{Name: bad})
		assert.NotNil(t, errs, "name %q should be rejected", bad)
	}
}

func TestValidateColor(t *testing.T) {
	v := NewValidator()

	assert.Nil(t, v.Validate(folderInput{Name: "ok", Color: "#3b82f6"}))
	assert.Nil(t, v.Validate(folderInput{Name: "ok", Color: ""}))

	errs := v.Validate(folderInput{Name: "ok", Color: "blue"})
	require.NotNil(t, errs)
	assert.Equal(t, "color", errs[0].Field)
}

func TestValidationErrorFieldNamesUseJSONTags(t *testing.T) {
	v := NewValidator()
	errs := v.Validate(folderInput{Name: ""})
	require.NotEmpty(t, errs)
	assert.Equal(t, "name", errs[0].Field)
}
