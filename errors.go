package cohort

import (
	"fmt"
)

// Error is a wrapper for specific types of errors for which there is no additional information
// necessary. These errors are defined as global variables, and may be either returned or panicked.
type Error struct{ string }

func (err Error) Error() string {
	return err.string
}

// These are the global errors that may be returned or panicked.
var (
	ErrRegisterDuplicate  = Error{"Activation tag is already registered"}
	ErrRegisterNilReturn  = Error{"Function return is nil"}
	ErrUnknownActivation  = Error{"Activation tag is not recognized"}
	ErrLabelOutOfRange    = Error{"Label is outside of the range of classes"}
	ErrEmptyBatch         = Error{"Batch has no samples"}
	ErrBatchSize          = Error{"Batch size is outside of the range of the dataset"}
	ErrNoLayers           = Error{"Network has no layers"}
	ErrNonPositiveSize    = Error{"Size must be positive"}
	ErrInvalidConfig      = Error{"Configuration is not valid"}
	ErrSaveDirectoryInUse = Error{"Save directory already exists"}
)

// NilArgError documents errors resulting from certain arguments provided to a function being nil.
type NilArgError struct{ Arg string }

func (err NilArgError) Error() string {
	return err.Arg + " is nil"
}

// SizeMismatchError is panicked whenever a vector handed to a Layer or Network does not have the
// width that was fixed at construction. It always indicates a bug in the caller.
type SizeMismatchError struct {
	Context  string
	Expected int
	Got      int
}

func (err SizeMismatchError) Error() string {
	return fmt.Sprintf("%s: size mismatch, expected %d but got %d", err.Context, err.Expected, err.Got)
}

// FormatError is returned when a saved layer file cannot be parsed.
type FormatError struct {
	Path string
	Line int
	Msg  string
}

func (err FormatError) Error() string {
	if err.Path == "" {
		return fmt.Sprintf("line %d: %s", err.Line, err.Msg)
	}
	return fmt.Sprintf("%s:%d: %s", err.Path, err.Line, err.Msg)
}
