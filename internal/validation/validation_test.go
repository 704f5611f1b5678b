package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/hitoshi/tunedeck/internal/model"
)

type credentials struct {
	Username string `json:"username" validate:"notblank,max=50"`
	Password string `json:"password" validate:"required,max=72"`
}

type playlistBody struct {
	Name  string   `json:"name" validate:"notblank,max=200"`
	Songs []string `json:"songs" validate:"max=3,dive,notblank"`
}

type uploadForm struct {
	Genre string `form:"genre" validate:"required"`
}

func validationMessage(t *testing.T, err error) string {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T: %v", err, err)
	}
	if apiErr.Code != model.ErrCodeValidation {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeValidation)
	}
	return apiErr.Message
}

func TestStruct_Valid_ReturnsNil(t *testing.T) {
	v := New()
	if err := v.Struct(credentials{Username: "alice", Password: "pw1"}); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestStruct_MissingFields_ReportsJSONNames(t *testing.T) {
	v := New()

	msg := validationMessage(t, v.Struct(credentials{}))
	if !strings.Contains(msg, "username is required") {
		t.Errorf("message %q does not mention username", msg)
	}
	if !strings.Contains(msg, "password is required") {
		t.Errorf("message %q does not mention password", msg)
	}
}

func TestStruct_BlankUsername_Rejected(t *testing.T) {
	v := New()

	msg := validationMessage(t, v.Struct(credentials{Username: "   ", Password: "pw"}))
	if !strings.Contains(msg, "username is required") {
		t.Errorf("message = %q", msg)
	}
}

func TestStruct_TooLong(t *testing.T) {
	v := New()

	msg := validationMessage(t, v.Struct(credentials{Username: strings.Repeat("a", 51), Password: "pw"}))
	if !strings.Contains(msg, "username must be at most 50 characters") {
		t.Errorf("message = %q", msg)
	}
}

func TestStruct_SliceRules(t *testing.T) {
	v := New()

	t.Run("nil slice is allowed", func(t *testing.T) {
		if err := v.Struct(playlistBody{Name: "Chill"}); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})

	t.Run("blank element is reported with index", func(t *testing.T) {
		msg := validationMessage(t, v.Struct(playlistBody{Name: "Chill", Songs: []string{"s1", ""}}))
		if !strings.Contains(msg, "songs[1] is required") {
			t.Errorf("message = %q", msg)
		}
	})

	t.Run("too many items", func(t *testing.T) {
		msg := validationMessage(t, v.Struct(playlistBody{Name: "Chill", Songs: []string{"a", "b", "c", "d"}}))
		if !strings.Contains(msg, "songs must contain at most 3 items") {
			t.Errorf("message = %q", msg)
		}
	})
}

func TestStruct_FormTagName(t *testing.T) {
	v := New()

	msg := validationMessage(t, v.Struct(uploadForm{}))
	if !strings.Contains(msg, "genre is required") {
		t.Errorf("message = %q", msg)
	}
}

func TestStruct_NonStruct_ReturnsPlainError(t *testing.T) {
	v := New()

	err := v.Struct("not a struct")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		t.Errorf("expected non-API error, got %v", apiErr)
	}
}
