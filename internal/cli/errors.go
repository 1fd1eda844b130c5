package cli

import (
	"errors"

	"github.com/roach88/kforge/internal/backend"
	"github.com/roach88/kforge/internal/compiler"
	"github.com/roach88/kforge/internal/device"
	"github.com/roach88/kforge/internal/ir"
	"github.com/roach88/kforge/internal/loader"
	"github.com/roach88/kforge/internal/meta"
	"github.com/roach88/kforge/internal/phases"
	"github.com/roach88/kforge/internal/store"
)

// Error codes reported by commands. Loader codes (E001-E008) and
// compilation request codes (E200-E206) pass through unchanged.
const (
	ErrCodeGeneric       = loader.ErrCodeGeneric
	ErrCodeConfig        = "E300" // Invalid property value
	ErrCodeDevice        = "E301" // Unknown device index
	ErrCodeUnimplemented = "E400" // Construct the pipeline or backend cannot lower
	ErrCodeBudget        = "E401" // Node budget exceeded
	ErrCodeMalformed     = "E402" // Graph failed verification
	ErrCodeCorrupt       = "E500" // Stored kernel failed its digest check
	ErrCodeWriteFailed   = "E501" // Output file could not be written
)

// errorCode classifies err for CLI output.
func errorCode(err error) string {
	var le *loader.LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	var re *compiler.RequestError
	if errors.As(err, &re) && len(re.Errors) > 0 {
		return re.Errors[0].Code
	}
	var nf *device.NotFoundError
	switch {
	case meta.IsConfigError(err):
		return ErrCodeConfig
	case errors.As(err, &nf):
		return ErrCodeDevice
	case phases.IsUnimplemented(err), backend.IsUnimplemented(err):
		return ErrCodeUnimplemented
	case phases.IsBudgetExceeded(err):
		return ErrCodeBudget
	case ir.IsMalformed(err):
		return ErrCodeMalformed
	case store.IsCorrupt(err):
		return ErrCodeCorrupt
	}
	return ErrCodeGeneric
}

// fail reports err through the formatter and returns the command error
// with exit code 2.
func fail(f *OutputFormatter, err error) error {
	code := errorCode(err)
	_ = f.Error(code, err.Error(), nil)
	return WrapExitError(ExitCommandError, code, err)
}
