package facade

import (
	"errors"
	"fmt"
	"time"
)

// Op is the stable machine-readable name of one facade operation, carried by
// UnsupportedOperationError so callers can branch on "not possible here"
// rather than "failed this time".
type Op string

const (
	OpPing              Op = "ping"
	OpVersion           Op = "version"
	OpInfo              Op = "info"
	OpRunPrg            Op = "run_prg"
	OpLoadPrg           Op = "load_prg"
	OpRunCrt            Op = "run_crt"
	OpSidplay           Op = "sidplay"
	OpReadMemory        Op = "read_memory"
	OpWriteMemory       Op = "write_memory"
	OpReset             Op = "reset"
	OpReboot            Op = "reboot"
	OpPause             Op = "pause"
	OpResume            Op = "resume"
	OpPoweroff          Op = "poweroff"
	OpMenuButton        Op = "menu_button"
	OpDebugregRead      Op = "debugreg_read"
	OpDebugregWrite     Op = "debugreg_write"
	OpDrivesList        Op = "drives_list"
	OpDriveMount        Op = "drive_mount"
	OpDriveRemove       Op = "drive_remove"
	OpDriveReset        Op = "drive_reset"
	OpDriveOn           Op = "drive_on"
	OpDriveOff          Op = "drive_off"
	OpDriveSetMode      Op = "drive_set_mode"
	OpDriveLoadRom      Op = "drive_load_rom"
	OpStreamStart       Op = "stream_start"
	OpStreamStop        Op = "stream_stop"
	OpConfigsList       Op = "configs_list"
	OpConfigGet         Op = "config_get"
	OpConfigSet         Op = "config_set"
	OpConfigBatch       Op = "config_batch_update"
	OpConfigLoadFlash   Op = "config_load_from_flash"
	OpConfigSaveFlash   Op = "config_save_to_flash"
	OpConfigReset       Op = "config_reset_to_default"
	OpFilesInfo         Op = "files_info"
	OpCreateDiskImage   Op = "create_disk_image"
)

// UnsupportedOperationError marks an operation the active backend cannot
// express, as opposed to one that failed this attempt.
type UnsupportedOperationError struct {
	Backend Kind
	Op      Op
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("facade: operation %q not supported on %s backend", e.Op, e.Backend)
}

// Unsupported builds the tagged capability-gap error for one operation.
func Unsupported(backend Kind, op Op) error {
	return &UnsupportedOperationError{Backend: backend, Op: op}
}

// IsUnsupported reports whether err is a capability gap rather than a
// transient failure.
func IsUnsupported(err error) bool {
	var u *UnsupportedOperationError
	return errors.As(err, &u)
}

// ValidationError marks input rejected before any network call was made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("facade: invalid %s: %s", e.Field, e.Reason)
}

// TimeoutError marks a bounded wait that elapsed without the awaited signal.
type TimeoutError struct {
	Stage  string
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("facade: %s timed out after %s", e.Stage, e.Budget)
}
