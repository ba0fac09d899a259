package validator

import (
	"fmt"
	"path"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/srmaas/errorreport/internal/model"
	"github.com/srmaas/errorreport/internal/upload"
)

// Register installs the report validation tags on gin's binding engine:
//
//	report_status    one of the workflow status labels
//	attachment_path  a path under /uploads/ naming a single file
func Register() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected binding engine %T", binding.Validator.Engine())
	}
	return RegisterOn(v)
}

func RegisterOn(v *validator.Validate) error {
	if err := v.RegisterValidation("report_status", validateStatus); err != nil {
		return err
	}
	return v.RegisterValidation("attachment_path", validateAttachmentPath)
}

func validateStatus(fl validator.FieldLevel) bool {
	return model.IsValidStatus(fl.Field().String())
}

func validateAttachmentPath(fl validator.FieldLevel) bool {
	return IsAttachmentPath(fl.Field().String())
}

// IsAttachmentPath reports whether p references a file directly inside the
// uploads directory.
func IsAttachmentPath(p string) bool {
	if !strings.HasPrefix(p, upload.Prefix) {
		return false
	}
	name := strings.TrimPrefix(p, upload.Prefix)
	return name != "" && name != "." && name != ".." && path.Base(p) == name && !strings.Contains(name, "\\")
}
