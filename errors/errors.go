package errors

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// Status is a Btrieve status code, as reported to guest programs through the
// status word referenced by the command structure.
type Status uint16

const (
	Success                 Status = 0
	InvalidOperation        Status = 1
	IOError                 Status = 2
	FileNotOpen             Status = 3
	KeyValueNotFound        Status = 4
	DuplicateKeyValue       Status = 5
	InvalidKeyNumber        Status = 6
	DifferentKeyNumber      Status = 7
	InvalidPositioning      Status = 8
	EOF                     Status = 9
	NonModifiableKeyValue   Status = 10
	InvalidFileName         Status = 11
	FileNotFound            Status = 12
	KeyBufferTooShort       Status = 21
	DataBufferLengthOverrun Status = 22
	AccessDenied            Status = 46
	InvalidInterface        Status = 53
)

var statusNames = map[Status]string{
	Success:                 "Success",
	InvalidOperation:        "InvalidOperation",
	IOError:                 "IOError",
	FileNotOpen:             "FileNotOpen",
	KeyValueNotFound:        "KeyValueNotFound",
	DuplicateKeyValue:       "DuplicateKeyValue",
	InvalidKeyNumber:        "InvalidKeyNumber",
	DifferentKeyNumber:      "DifferentKeyNumber",
	InvalidPositioning:      "InvalidPositioning",
	EOF:                     "EOF",
	NonModifiableKeyValue:   "NonModifiableKeyValue",
	InvalidFileName:         "InvalidFileName",
	FileNotFound:            "FileNotFound",
	KeyBufferTooShort:       "KeyBufferTooShort",
	DataBufferLengthOverrun: "DataBufferLengthOverrun",
	AccessDenied:            "AccessDenied",
	InvalidInterface:        "InvalidInterface",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Status(%d)", uint16(s))
}

func (s Status) Error() string {
	return fmt.Sprintf("btrieve status %d (%s)", uint16(s), s.String())
}

func (s Status) Code() Status { return s }

// Coder is implemented by every error in this package, and allows callers to
// obtain the status code that must be reported for it.
type Coder interface {
	Code() Status
}

// StatusOf returns the status code represented by err. A nil error yields
// Success, errors without an associated code yield IOError.
func StatusOf(err error) Status {
	if err == nil {
		return Success
	}
	var c Coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return IOError
}

// CannotAcquireLockError indicates that the data directory lock could not be
// obtained since it is in use by another process. The process holding the
// lock is present in the PID field of this error.
type CannotAcquireLockError struct {
	PID int
}

func (c CannotAcquireLockError) Error() string {
	return fmt.Sprintf("cannot acquire data directory lock, as it is being held by process %d", c.PID)
}

func (CannotAcquireLockError) Code() Status { return AccessDenied }

// CannotOpenFileError wraps any failure that prevented a file from being
// opened, be it a missing file, a corrupt one, or an I/O problem.
type CannotOpenFileError struct {
	Name string
	Err  error
}

func (c CannotOpenFileError) Error() string {
	return fmt.Sprintf("cannot open %s: %s", c.Name, c.Err)
}

func (c CannotOpenFileError) Unwrap() error { return c.Err }

func (CannotOpenFileError) Code() Status { return FileNotOpen }

// DuplicateKeyError indicates an insert or update would leave two live
// records with the same value on a key that does not allow duplicates.
type DuplicateKeyError struct {
	KeyNumber int
}

func (d DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate value for key %d", d.KeyNumber)
}

func (DuplicateKeyError) Code() Status { return DuplicateKeyValue }

// NonModifiableKeyError indicates an update attempted to change the value of a
// key lacking the Modifiable attribute.
type NonModifiableKeyError struct {
	KeyNumber int
}

func (n NonModifiableKeyError) Error() string {
	return fmt.Sprintf("key %d is not modifiable", n.KeyNumber)
}

func (NonModifiableKeyError) Code() Status { return NonModifiableKeyValue }

type InvalidKeyNumberError struct {
	KeyNumber int
}

func (i InvalidKeyNumberError) Error() string {
	return fmt.Sprintf("invalid key number %d", i.KeyNumber)
}

func (InvalidKeyNumberError) Code() Status { return InvalidKeyNumber }

type KeyBufferTooShortError struct {
	Required int
	Provided int
}

func (k KeyBufferTooShortError) Error() string {
	return fmt.Sprintf("key buffer too short: %d bytes required, %d provided", k.Required, k.Provided)
}

func (KeyBufferTooShortError) Code() Status { return KeyBufferTooShort }

type DataBufferTooShortError struct {
	Required int
	Provided int
}

func (d DataBufferTooShortError) Error() string {
	return fmt.Sprintf("data buffer too short: %d bytes required, %d provided", d.Required, d.Provided)
}

func (DataBufferTooShortError) Code() Status { return DataBufferLengthOverrun }

// UnknownPositionBlockError indicates a position block carries a token that
// is not registered, either because it was never opened or because it has
// already been closed.
type UnknownPositionBlockError struct {
	Token [16]byte
}

func (u UnknownPositionBlockError) Error() string {
	return fmt.Sprintf("position block %s is not open", hex.EncodeToString(u.Token[:]))
}

func (UnknownPositionBlockError) Code() Status { return FileNotOpen }
